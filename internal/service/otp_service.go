package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"time"

	"waitlist_contest/internal/cache"
	"waitlist_contest/internal/domain"
	"waitlist_contest/internal/logger"
)

const (
	otpDigits      = 6
	otpMaxAttempts = 5
)

// CodeSender delivers a verification code to an address.
type CodeSender interface {
	SendCode(ctx context.Context, email, code string) error
}

// LogSender writes codes to the log instead of delivering them.
type LogSender struct{}

func (LogSender) SendCode(ctx context.Context, email, code string) error {
	logger.WithContext(ctx).Info("verification code issued", "email", MaskEmail(email), "code", code)
	return nil
}

// OTPService issues and checks one-time verification codes.
type OTPService struct {
	store  cache.Store
	sender CodeSender
	ttl    time.Duration
}

func NewOTPService(store cache.Store, sender CodeSender, ttl time.Duration) *OTPService {
	if sender == nil {
		sender = LogSender{}
	}
	return &OTPService{store: store, sender: sender, ttl: ttl}
}

func otpKey(email string) string      { return "otp:" + email }
func attemptsKey(email string) string { return "otp_attempts:" + email }

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", otpDigits, n.Int64()), nil
}

// Issue replaces any pending code for email and sends a new one.
func (s *OTPService) Issue(ctx context.Context, email string) error {
	code, err := generateCode()
	if err != nil {
		return fmt.Errorf("generate code: %w", err)
	}
	if err := s.store.Set(ctx, otpKey(email), code, s.ttl); err != nil {
		return fmt.Errorf("store code: %w", err)
	}
	_ = s.store.Delete(ctx, attemptsKey(email))
	return s.sender.SendCode(ctx, email, code)
}

// Check consumes the pending code for email if code matches it. After
// otpMaxAttempts wrong guesses the pending code is dropped.
func (s *OTPService) Check(ctx context.Context, email, code string) error {
	stored, err := s.store.Get(ctx, otpKey(email))
	if errors.Is(err, cache.ErrMiss) {
		return domain.ErrInvalidCode
	}
	if err != nil {
		return fmt.Errorf("load code: %w", err)
	}

	if subtle.ConstantTimeCompare([]byte(stored), []byte(code)) != 1 {
		n, err := s.store.Incr(ctx, attemptsKey(email), s.ttl)
		if err == nil && n >= otpMaxAttempts {
			_ = s.store.Delete(ctx, otpKey(email))
			_ = s.store.Delete(ctx, attemptsKey(email))
		}
		return domain.ErrInvalidCode
	}

	_ = s.store.Delete(ctx, otpKey(email))
	_ = s.store.Delete(ctx, attemptsKey(email))
	return nil
}
