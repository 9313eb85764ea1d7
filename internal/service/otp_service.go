package service

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/noteduco342/tourchat-backend/internal/apperr"
	"github.com/noteduco342/tourchat-backend/internal/cache"
	"github.com/noteduco342/tourchat-backend/internal/validation"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// SMSSender hands a verification code to the delivery provider.
type SMSSender interface {
	Send(phone, message string) error
}

// LogSender writes codes to the log instead of sending them.
type LogSender struct {
	Log logrus.FieldLogger
}

func (s LogSender) Send(phone, message string) error {
	s.Log.WithField("phone", phone).Info(message)
	return nil
}

// OTPStore keeps pending codes, attempt counters and lockouts.
type OTPStore interface {
	Save(phone string, entry cache.OTPEntry, ttl time.Duration) error
	Load(phone string) (*cache.OTPEntry, error)
	RecordAttempt(phone string, ttl time.Duration) (int64, error)
	Clear(phone string) error
	Lock(phone string, ttl time.Duration) error
	IsLocked(phone string) bool
}

type OTPService struct {
	store    OTPStore
	sender   SMSSender
	settings *SettingsService
	ttl      time.Duration
	log      logrus.FieldLogger
	now      func() time.Time
	generate func() (string, error)
}

func NewOTPService(store OTPStore, sender SMSSender, settings *SettingsService, ttl time.Duration, log logrus.FieldLogger) *OTPService {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &OTPService{
		store:    store,
		sender:   sender,
		settings: settings,
		ttl:      ttl,
		log:      log,
		now:      time.Now,
		generate: generateCode,
	}
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// NormalizePhone returns the canonical phone or a validation error.
func NormalizePhone(phone string) (string, error) {
	phone = validation.NormalizePhone(phone)
	if !validation.ValidatePhone(phone) {
		return "", apperr.Validation("invalid_phone", "Please provide a valid phone number")
	}
	return phone, nil
}

// SendCode issues a new code for phone, replacing any pending one.
func (s *OTPService) SendCode(phone string) error {
	if s.store.IsLocked(phone) {
		return apperr.Forbidden("too_many_attempts", "Too many attempts, try again later")
	}

	code, err := s.generate()
	if err != nil {
		return apperr.Unexpected("otp_generate_failed", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return apperr.Unexpected("otp_hash_failed", err)
	}

	entry := cache.OTPEntry{CodeHash: string(hash), ExpiresAt: s.now().Add(s.ttl)}
	if err := s.store.Save(phone, entry, s.ttl); err != nil {
		return apperr.Unexpected("otp_store_failed", err)
	}
	if err := s.sender.Send(phone, fmt.Sprintf("Your verification code is %s", code)); err != nil {
		_ = s.store.Clear(phone)
		return apperr.Unexpected("sms_send_failed", err)
	}
	return nil
}

// Verify checks code against the pending entry. A correct code is consumed;
// too many wrong codes lock the phone out.
func (s *OTPService) Verify(phone, code string) error {
	if s.store.IsLocked(phone) {
		return apperr.Forbidden("too_many_attempts", "Too many attempts, try again later")
	}

	entry, err := s.store.Load(phone)
	if err != nil {
		return apperr.Unexpected("otp_load_failed", err)
	}
	if entry == nil || entry.ExpiresAt.Before(s.now()) {
		return apperr.Expired("code_expired", "Verification code expired or not requested")
	}

	attempts, err := s.store.RecordAttempt(phone, s.ttl)
	if err != nil {
		return apperr.Unexpected("otp_attempt_failed", err)
	}
	maxAttempts := s.settings.Int(SettingMaxLoginAttempts, 5)
	if attempts > int64(maxAttempts) {
		lockout := time.Duration(s.settings.Int(SettingLockoutDuration, 30)) * time.Minute
		if err := s.store.Lock(phone, lockout); err != nil {
			s.log.WithError(err).Warn("failed to lock phone after repeated attempts")
		}
		return apperr.Forbidden("too_many_attempts", "Too many attempts, try again later")
	}

	if bcrypt.CompareHashAndPassword([]byte(entry.CodeHash), []byte(code)) != nil {
		return apperr.Validation("invalid_code", "Invalid verification code")
	}
	if err := s.store.Clear(phone); err != nil {
		s.log.WithError(err).Warn("failed to clear used verification code")
	}
	return nil
}
