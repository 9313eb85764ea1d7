package service

import (
	"testing"
	"time"

	"github.com/noteduco342/tourchat-backend/internal/apperr"
	"github.com/noteduco342/tourchat-backend/internal/models"
	"github.com/noteduco342/tourchat-backend/internal/testutil"
)

func TestCompleteRegistration(t *testing.T) {
	db := testutil.NewMemoryDB()
	svc := NewUserService(db.Users())
	user := db.AddUser("+15554000001", models.RoleUser)
	future := time.Now().Add(48 * time.Hour)
	past := time.Date(1990, 4, 2, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		userID   uint
		input    CompleteRegistrationInput
		wantKind apperr.Kind
		wantErr  bool
	}{
		{"Missing names", user.ID, CompleteRegistrationInput{FirstName: " "}, apperr.KindValidation, true},
		{"Bad email", user.ID, CompleteRegistrationInput{FirstName: "Ana", LastName: "Silva", Email: "nope"}, apperr.KindValidation, true},
		{"Bad gender", user.ID, CompleteRegistrationInput{FirstName: "Ana", LastName: "Silva", Gender: "robot"}, apperr.KindValidation, true},
		{"Future birth date", user.ID, CompleteRegistrationInput{FirstName: "Ana", LastName: "Silva", BirthDate: &future}, apperr.KindValidation, true},
		{"Unknown user", 9999, CompleteRegistrationInput{FirstName: "Ana", LastName: "Silva"}, apperr.KindNotFound, true},
		{"Complete", user.ID, CompleteRegistrationInput{FirstName: " Ana ", LastName: "Silva", Email: "ANA@Example.com", BirthDate: &past, Gender: models.GenderFemale}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.CompleteRegistration(tt.userID, tt.input)
			if tt.wantErr {
				assertKind(t, err, tt.wantKind)
				return
			}
			if err != nil {
				t.Fatalf("CompleteRegistration() error = %v", err)
			}
			if !got.IsRegistrationComplete || got.FirstName != "Ana" {
				t.Errorf("user = %+v, want completed registration", got)
			}
			if got.Email == nil || *got.Email != "ana@example.com" {
				t.Errorf("Email = %v, want normalized", got.Email)
			}
		})
	}

	stored, err := svc.GetProfile(user.ID)
	if err != nil {
		t.Fatalf("GetProfile() error = %v", err)
	}
	if !stored.IsRegistrationComplete {
		t.Errorf("registration not persisted")
	}
}
