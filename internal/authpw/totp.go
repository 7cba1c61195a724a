package authpw

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

var (
	ErrInvalidCode         = errors.New("invalid two-factor code")
	ErrTwoFactorEnabled    = errors.New("two-factor authentication is already enabled")
	ErrTwoFactorNotStarted = errors.New("two-factor enrollment has not been started")
	ErrTwoFactorDisabled   = errors.New("two-factor authentication is not enabled")
)

var validateOpts = totp.ValidateOpts{
	Period:    30,
	Skew:      1,
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

// Enrollment is what an authenticator app needs to add the account.
type Enrollment struct {
	Secret string
	URL    string
}

// BeginEnrollment stores a fresh secret for the user. Two-factor stays off
// until ConfirmEnrollment proves the app produces valid codes.
func (s *Service) BeginEnrollment(ctx context.Context, userID string) (Enrollment, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return Enrollment{}, err
	}
	if user.TOTPEnabled {
		return Enrollment{}, ErrTwoFactorEnabled
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.issuer,
		AccountName: user.Email,
	})
	if err != nil {
		return Enrollment{}, fmt.Errorf("generate totp key: %w", err)
	}
	if err := s.store.SetTOTPSecret(ctx, user.ID, key.Secret()); err != nil {
		return Enrollment{}, err
	}
	return Enrollment{Secret: key.Secret(), URL: key.URL()}, nil
}

func (s *Service) ConfirmEnrollment(ctx context.Context, userID, code string) error {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.TOTPEnabled {
		return ErrTwoFactorEnabled
	}
	if user.TOTPSecret == "" {
		return ErrTwoFactorNotStarted
	}
	if !s.validCode(user.TOTPSecret, code) {
		return ErrInvalidCode
	}
	return s.store.SetTOTPEnabled(ctx, user.ID, true)
}

// Disable turns two-factor off. A current code is required.
func (s *Service) Disable(ctx context.Context, userID, code string) error {
	if err := s.VerifyCode(ctx, userID, code); err != nil {
		return err
	}
	return s.store.SetTOTPEnabled(ctx, userID, false)
}

// VerifyCode checks a code against the user's enabled secret.
func (s *Service) VerifyCode(ctx context.Context, userID, code string) error {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if !user.TOTPEnabled || user.TOTPSecret == "" {
		return ErrTwoFactorDisabled
	}
	if !s.validCode(user.TOTPSecret, code) {
		return ErrInvalidCode
	}
	return nil
}

func (s *Service) validCode(secret, code string) bool {
	code = strings.TrimSpace(code)
	if code == "" {
		return false
	}
	ok, err := totp.ValidateCustom(code, secret, s.now().UTC(), validateOpts)
	return err == nil && ok
}
