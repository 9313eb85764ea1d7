package service

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/noteduco342/tourchat-backend/internal/apperr"
	"github.com/noteduco342/tourchat-backend/internal/models"
	"github.com/noteduco342/tourchat-backend/internal/repository"
	"github.com/sirupsen/logrus"
)

// Claims carried by access tokens.
type Claims struct {
	UserID      uint              `json:"user_id"`
	PhoneNumber string            `json:"phone_number"`
	Role        models.Role       `json:"role"`
	Status      models.UserStatus `json:"status"`
	jwt.RegisteredClaims
}

type AuthConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

type AuthService struct {
	userRepo  repository.UserRepositoryInterface
	tokenRepo repository.RefreshTokenRepositoryInterface
	otp       *OTPService
	logs      *LogService
	cfg       AuthConfig
	log       logrus.FieldLogger
	now       func() time.Time
}

func NewAuthService(
	userRepo repository.UserRepositoryInterface,
	tokenRepo repository.RefreshTokenRepositoryInterface,
	otp *OTPService,
	logs *LogService,
	cfg AuthConfig,
	log logrus.FieldLogger,
) *AuthService {
	return &AuthService{
		userRepo:  userRepo,
		tokenRepo: tokenRepo,
		otp:       otp,
		logs:      logs,
		cfg:       cfg,
		log:       log,
		now:       time.Now,
	}
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

type AuthResult struct {
	Tokens    TokenPair           `json:"tokens"`
	User      models.UserResponse `json:"user"`
	IsNewUser bool                `json:"is_new_user"`
}

// CheckPhone sends a verification code and reports whether the phone
// already belongs to a user.
func (s *AuthService) CheckPhone(phone string) (bool, error) {
	phone, err := NormalizePhone(phone)
	if err != nil {
		return false, err
	}

	exists := true
	user, err := s.userRepo.FindByPhone(phone)
	if err != nil {
		if !repository.IsNotFound(err) {
			return false, apperr.Unexpected("user_lookup_failed", err)
		}
		exists = false
	}
	if user != nil && user.Status != models.UserActive {
		return false, apperr.Forbidden("account_disabled", "Account is not active")
	}

	if err := s.otp.SendCode(phone); err != nil {
		return false, err
	}
	return exists, nil
}

// VerifyCode consumes a code and signs the user in, creating the account on
// first use.
func (s *AuthService) VerifyCode(phone, code string) (*AuthResult, error) {
	phone, err := NormalizePhone(phone)
	if err != nil {
		return nil, err
	}
	if code == "" {
		return nil, apperr.Validation("code_required", "Verification code is required")
	}
	if err := s.otp.Verify(phone, code); err != nil {
		if apperr.Is(err, apperr.KindForbidden) {
			s.logs.Record(LogEntry{
				Level:    models.LevelWarning,
				Category: models.CategoryAuth,
				Message:  "verification locked after repeated attempts",
				Details:  map[string]interface{}{"phone": phone},
			})
		}
		return nil, err
	}

	now := s.now()
	isNew := false
	user, err := s.userRepo.FindByPhone(phone)
	switch {
	case repository.IsNotFound(err):
		user = &models.User{
			PhoneNumber: phone,
			Role:        models.RoleUser,
			Status:      models.UserActive,
			IsVerified:  true,
			LastLoginAt: &now,
		}
		if err := s.userRepo.Create(user); err != nil {
			if repository.IsUniqueViolation(err) {
				return nil, apperr.Conflict("phone_taken", "Phone number already registered")
			}
			return nil, apperr.Unexpected("user_create_failed", err)
		}
		isNew = true
	case err != nil:
		return nil, apperr.Unexpected("user_lookup_failed", err)
	default:
		if !user.IsActive() {
			return nil, apperr.Forbidden("account_disabled", "Account is not active")
		}
		user.IsVerified = true
		user.LastLoginAt = &now
		if err := s.userRepo.Update(user); err != nil {
			return nil, apperr.Unexpected("user_update_failed", err)
		}
	}

	tokens, err := s.issueTokens(user)
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"user_id": user.ID, "new_user": isNew}).Info("user signed in")

	return &AuthResult{Tokens: *tokens, User: user.ToResponse(), IsNewUser: isNew}, nil
}

// Refresh rotates a refresh token. The presented token is revoked and can
// not be used again.
func (s *AuthService) Refresh(refreshToken string) (*TokenPair, error) {
	claims, err := s.parse(refreshToken, s.cfg.RefreshSecret)
	if err != nil || claims.Subject != "refresh" {
		return nil, apperr.Unauthenticated("invalid_refresh_token", "Invalid refresh token")
	}

	hash := hashToken(refreshToken)
	if _, err := s.tokenRepo.FindValidByHash(hash); err != nil {
		if repository.IsNotFound(err) {
			return nil, apperr.Unauthenticated("invalid_refresh_token", "Invalid refresh token")
		}
		return nil, apperr.Unexpected("token_lookup_failed", err)
	}

	user, err := s.userRepo.FindByID(claims.UserID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperr.Unauthenticated("invalid_refresh_token", "Invalid refresh token")
		}
		return nil, apperr.Unexpected("user_lookup_failed", err)
	}
	if !user.IsActive() {
		return nil, apperr.Unauthenticated("account_disabled", "Account is not active")
	}

	revoked, err := s.tokenRepo.RevokeByHash(hash)
	if err != nil {
		return nil, apperr.Unexpected("token_revoke_failed", err)
	}
	if !revoked {
		return nil, apperr.Unauthenticated("invalid_refresh_token", "Invalid refresh token")
	}
	return s.issueTokens(user)
}

func (s *AuthService) Logout(refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	if _, err := s.tokenRepo.RevokeByHash(hashToken(refreshToken)); err != nil {
		return apperr.Unexpected("token_revoke_failed", err)
	}
	return nil
}

// ParseAccessToken validates an access token and returns its claims.
func (s *AuthService) ParseAccessToken(token string) (*Claims, error) {
	claims, err := s.parse(token, s.cfg.AccessSecret)
	if err != nil {
		return nil, apperr.Unauthenticated("invalid_token", "Invalid or expired token")
	}
	if claims.Subject != "access" {
		return nil, apperr.Unauthenticated("invalid_token", "Invalid or expired token")
	}
	return claims, nil
}

func (s *AuthService) parse(token, secret string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, err
	}
	if !parsed.Valid || claims.UserID == 0 {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

func (s *AuthService) sign(user *models.User, subject, secret string, ttl time.Duration) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(ttl)
	claims := Claims{
		UserID:      user.ID,
		PhoneNumber: user.PhoneNumber,
		Role:        user.Role,
		Status:      user.Status,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	return signed, expiresAt, err
}

func (s *AuthService) issueTokens(user *models.User) (*TokenPair, error) {
	access, _, err := s.sign(user, "access", s.cfg.AccessSecret, s.cfg.AccessTTL)
	if err != nil {
		return nil, apperr.Unexpected("token_sign_failed", err)
	}
	refresh, refreshExp, err := s.sign(user, "refresh", s.cfg.RefreshSecret, s.cfg.RefreshTTL)
	if err != nil {
		return nil, apperr.Unexpected("token_sign_failed", err)
	}

	if err := s.tokenRepo.Create(&models.RefreshToken{
		UserID:    user.ID,
		TokenHash: hashToken(refresh),
		ExpiresAt: refreshExp,
	}); err != nil {
		return nil, apperr.Unexpected("token_store_failed", err)
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.cfg.AccessTTL.Seconds()),
	}, nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
