// Package otp runs the customer portal one-time code login over WhatsApp.
package otp

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/alijaya/ispportal/internal/settings"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/rs/zerolog"
)

const (
	issuer      = "ISP Portal"
	minLength   = 4
	maxLength   = 8
	MaxAttempts = 5
)

var (
	ErrNoPending       = errors.New("no pending OTP for this number")
	ErrExpired         = errors.New("OTP expired")
	ErrInvalidCode     = errors.New("invalid OTP code")
	ErrTooManyAttempts = errors.New("too many OTP attempts")
)

// Pending is an issued code awaiting verification.
type Pending struct {
	Phone     string    `json:"phone"`
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
	Attempts  int       `json:"attempts"`
}

// Sender delivers the code to the customer.
type Sender interface {
	SendFormatted(ctx context.Context, to, message string) error
}

type Options struct {
	Store    Store
	Sender   Sender
	Settings settings.Provider
	Now      func() time.Time
	Logger   zerolog.Logger
}

// Service issues and checks login codes. Length and lifetime are read from
// settings on every Begin.
type Service struct {
	store    Store
	sender   Sender
	settings settings.Provider
	now      func() time.Time
	logger   zerolog.Logger
}

func NewService(opts Options) *Service {
	if opts.Store == nil {
		opts.Store = NewMemoryStore()
	}
	if opts.Settings == nil {
		opts.Settings = settings.Static{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		store:    opts.Store,
		sender:   opts.Sender,
		settings: opts.Settings,
		now:      opts.Now,
		logger:   opts.Logger,
	}
}

func policy(snap settings.Snapshot) (int, time.Duration) {
	length := snap.Int(settings.KeyOTPLength, settings.DefaultOTPLength)
	if length < minLength || length > maxLength {
		length = settings.DefaultOTPLength
	}
	minutes := snap.Int(settings.KeyOTPExpiryMinutes, settings.DefaultOTPExpiryMinutes)
	if minutes <= 0 {
		minutes = settings.DefaultOTPExpiryMinutes
	}
	return length, time.Duration(minutes) * time.Minute
}

// generate derives a code from a fresh random TOTP secret.
func generate(phone string, length int, expiry time.Duration, now time.Time) (string, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: phone,
	})
	if err != nil {
		return "", fmt.Errorf("generate OTP secret: %w", err)
	}
	return totp.GenerateCodeCustom(key.Secret(), now, totp.ValidateOpts{
		Period:    uint(expiry / time.Second),
		Digits:    otp.Digits(length),
		Algorithm: otp.AlgorithmSHA1,
	})
}

// Begin issues a new code for phone and sends it. Any earlier code for the
// same number is replaced.
func (s *Service) Begin(ctx context.Context, phone string) (time.Time, error) {
	length, expiry := policy(s.settings.Snapshot())
	now := s.now()

	code, err := generate(phone, length, expiry, now)
	if err != nil {
		return time.Time{}, err
	}
	pending := Pending{Phone: phone, Code: code, ExpiresAt: now.Add(expiry)}
	if err := s.store.Save(ctx, pending, expiry); err != nil {
		return time.Time{}, fmt.Errorf("save OTP: %w", err)
	}

	if s.sender != nil {
		if err := s.sender.SendFormatted(ctx, phone, Message(code, expiry)); err != nil {
			_ = s.store.Delete(ctx, phone)
			return time.Time{}, fmt.Errorf("send OTP: %w", err)
		}
	}
	s.logger.Info().Str("phone", phone).Time("expires", pending.ExpiresAt).Msg("OTP issued")
	return pending.ExpiresAt, nil
}

// Resend issues a fresh code, only while a login is pending.
func (s *Service) Resend(ctx context.Context, phone string) (time.Time, error) {
	if _, ok, err := s.store.Load(ctx, phone); err != nil {
		return time.Time{}, err
	} else if !ok {
		return time.Time{}, ErrNoPending
	}
	return s.Begin(ctx, phone)
}

// Verify checks code and consumes the pending login on success.
func (s *Service) Verify(ctx context.Context, phone, code string) error {
	pending, ok, err := s.store.Load(ctx, phone)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNoPending
	}

	if !s.now().Before(pending.ExpiresAt) {
		_ = s.store.Delete(ctx, phone)
		return ErrExpired
	}

	if subtle.ConstantTimeCompare([]byte(code), []byte(pending.Code)) != 1 {
		pending.Attempts++
		if pending.Attempts >= MaxAttempts {
			_ = s.store.Delete(ctx, phone)
			return ErrTooManyAttempts
		}
		if err := s.store.Save(ctx, pending, pending.ExpiresAt.Sub(s.now())); err != nil {
			return fmt.Errorf("save OTP: %w", err)
		}
		return ErrInvalidCode
	}

	return s.store.Delete(ctx, phone)
}

// Message is the WhatsApp text that carries a code.
func Message(code string, expiry time.Duration) string {
	return fmt.Sprintf("🔐 *KODE OTP PORTAL PELANGGAN*\n\n"+
		"Kode OTP Anda: *%s*\n"+
		"Berlaku selama %d menit.\n\n"+
		"Jangan berikan kode ini kepada siapa pun.", code, int(expiry/time.Minute))
}
