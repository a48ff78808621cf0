// Package otp issues and verifies one-time email verification codes.
package otp

import (
	"civicdesk/backend/internal/apperr"
	"civicdesk/backend/internal/config"
	"civicdesk/backend/internal/localization"
	"civicdesk/backend/internal/mailer"
	"civicdesk/backend/internal/models"
	"civicdesk/backend/internal/storage"
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Service sends and checks codes. A code is usable until it expires or until
// too many wrong guesses; a correct guess clears every code for the email.
type Service struct {
	store    storage.Storage
	mail     mailer.Sender
	texts    *localization.Localizer
	validate *validator.Validate
	now      func() time.Time
	random   io.Reader
}

func NewService(store storage.Storage, mail mailer.Sender) *Service {
	return &Service{
		store:    store,
		mail:     mail,
		texts:    localization.Default(),
		validate: validator.New(),
		now:      time.Now,
		random:   rand.Reader,
	}
}

// Send issues a new code and emails it. The record is kept when delivery fails.
func (s *Service) Send(ctx context.Context, email string) error {
	email, err := s.normalize(email)
	if err != nil {
		return err
	}

	code, err := s.generate()
	if err != nil {
		return apperr.Storage("generate otp", err)
	}
	rec := &models.OTPRecord{
		Email:     email,
		Code:      code,
		ExpiresAt: s.now().Add(config.OTPTTL),
	}
	if err := s.store.CreateOTP(ctx, rec); err != nil {
		return err
	}

	subject := s.texts.GetString(localization.DefaultLanguage, "otp_subject")
	body := s.texts.Format(localization.DefaultLanguage, "otp_body", code, int(config.OTPTTL/time.Minute))
	if err := s.mail.Send(ctx, email, subject, body); err != nil {
		return apperr.Delivery("otp_send_failed", "OTP send failed", err)
	}
	return nil
}

// Verify checks code against the latest code issued for email.
func (s *Service) Verify(ctx context.Context, email, code string) error {
	email, err := s.normalize(email)
	if err != nil {
		return err
	}

	rec, err := s.store.LatestOTP(ctx, email)
	if apperr.KindOf(err) == apperr.KindNotFound {
		return apperr.NotFound("otp_not_found", "OTP not found")
	}
	if err != nil {
		return err
	}

	if rec.Expired(s.now()) {
		return apperr.Validation("otp_expired", "OTP expired")
	}

	if strings.TrimSpace(code) != rec.Code {
		if rec.Attempts+1 >= config.OTPMaxAttempts {
			if err := s.store.DeleteOTPs(ctx, email); err != nil {
				return err
			}
			return apperr.Validation("otp_attempts_exceeded", "too many attempts, request a new OTP")
		}
		if err := s.store.IncrementOTPAttempts(ctx, rec.ID); err != nil {
			return err
		}
		return apperr.Validation("invalid_otp", "Invalid OTP")
	}

	return s.store.DeleteOTPs(ctx, email)
}

func (s *Service) normalize(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := s.validate.Var(email, "required,email"); err != nil {
		return "", apperr.Validation("invalid_email", "a valid email is required")
	}
	return email, nil
}

// generate returns a uniformly random code of config.OTPLength digits without
// a leading zero.
func (s *Service) generate() (string, error) {
	low := new(big.Int).Exp(big.NewInt(10), big.NewInt(config.OTPLength-1), nil)
	span := new(big.Int).Mul(low, big.NewInt(9))
	n, err := rand.Int(s.random, span)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d", n.Add(n, low)), nil
}
