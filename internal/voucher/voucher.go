// Package voucher generates hotspot vouchers and registers them on the
// router.
package voucher

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/alijaya/ispportal/internal/mikrotik"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	FormatNumbers      = "numbers"
	FormatLetters      = "letters"
	FormatAlphanumeric = "alphanumeric"

	// TypeVoucher uses the username as password; TypeMember gets a random one.
	TypeVoucher = "voucher"
	TypeMember  = "member"

	StatusCreated = "created"
	StatusFailed  = "failed"

	DefaultPrefix         = "HSP"
	DefaultLength         = 6
	DefaultPasswordLength = 8
	DefaultModel          = "classic"
	MaxCount              = 100
	MaxLength             = 15

	maxAttempts = 200

	digitChars    = "0123456789"
	letterChars   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	passwordChars = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnpqrstuvwxyz23456789"
)

var ErrInvalidRequest = errors.New("invalid voucher request")

type Request struct {
	Profile        string `json:"profile"`
	Count          int    `json:"count"`
	Type           string `json:"voucherType"`
	Format         string `json:"voucherFormat"`
	Prefix         string `json:"prefix"`
	Length         int    `json:"numberLength"`
	PasswordLength int    `json:"passwordLength"`
	Model          string `json:"voucherModel"`
	Price          string `json:"voucherPrice"`
	ShowPrice      bool   `json:"showPrice"`
}

// Validate checks bounds and fills defaults.
func (r *Request) Validate() error {
	if r.Profile == "" {
		return fmt.Errorf("%w: profile is required", ErrInvalidRequest)
	}
	if r.Count < 1 || r.Count > MaxCount {
		return fmt.Errorf("%w: count must be between 1-%d", ErrInvalidRequest, MaxCount)
	}
	if r.Length == 0 {
		r.Length = DefaultLength
	}
	if r.Length < 1 || r.Length > MaxLength {
		return fmt.Errorf("%w: number length must be between 1-%d", ErrInvalidRequest, MaxLength)
	}
	if r.PasswordLength <= 0 {
		r.PasswordLength = DefaultPasswordLength
	}
	if r.Type == "" {
		r.Type = TypeVoucher
	}
	if r.Format == "" {
		r.Format = FormatAlphanumeric
	}
	if r.Prefix == "" {
		r.Prefix = DefaultPrefix
	}
	if r.Model == "" {
		r.Model = DefaultModel
	}
	return nil
}

type Voucher struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Profile  string `json:"profile"`
	Type     string `json:"voucherType"`
	Model    string `json:"voucherModel"`
	Price    string `json:"price,omitempty"`
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
}

type Batch struct {
	ID        string    `json:"id"`
	Profile   string    `json:"profile"`
	Type      string    `json:"type"`
	Price     string    `json:"price,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	Requested int       `json:"total"`
	Vouchers  []Voucher `json:"vouchers"`
}

// Created returns the vouchers the router accepted.
func (b *Batch) Created() []Voucher {
	var out []Voucher
	for _, v := range b.Vouchers {
		if v.Status == StatusCreated {
			out = append(out, v)
		}
	}
	return out
}

func (b *Batch) FailedCount() int {
	return len(b.Vouchers) - len(b.Created())
}

// Router is the part of the router client the generator needs.
type Router interface {
	HotspotUsers(ctx context.Context) ([]mikrotik.HotspotUser, error)
	AddHotspotUser(ctx context.Context, u mikrotik.HotspotUser) (string, error)
}

// Recorder persists finished batches.
type Recorder interface {
	SaveBatch(ctx context.Context, b *Batch) error
}

type Generator struct {
	router   Router
	recorder Recorder
	random   io.Reader
	now      func() time.Time
	logger   zerolog.Logger
}

// NewGenerator builds a generator. recorder may be nil.
func NewGenerator(router Router, recorder Recorder, logger zerolog.Logger) *Generator {
	return &Generator{
		router:   router,
		recorder: recorder,
		random:   rand.Reader,
		now:      time.Now,
		logger:   logger,
	}
}

// Generate creates req.Count hotspot users with usernames unique within the
// batch and against the users already on the router. A voucher the router
// rejects is kept in the batch with StatusFailed.
func (g *Generator) Generate(ctx context.Context, req Request) (*Batch, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	taken := map[string]bool{}
	existing, err := g.router.HotspotUsers(ctx)
	if err != nil {
		g.logger.Warn().Err(err).Msg("could not fetch existing hotspot users")
	}
	for _, u := range existing {
		taken[u.Name] = true
	}

	batch := &Batch{
		ID:        uuid.NewString(),
		Profile:   req.Profile,
		Type:      req.Type,
		CreatedAt: g.now(),
		Requested: req.Count,
	}
	if req.ShowPrice {
		batch.Price = req.Price
	}

	for i := 0; i < req.Count; i++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		username, err := g.uniqueUsername(req, taken)
		if err != nil {
			g.logger.Warn().Err(err).Int("voucher", i+1).Msg("skipping voucher")
			continue
		}
		taken[username] = true

		password := username
		if req.Type != TypeVoucher {
			if password, err = randomString(g.random, passwordChars, req.PasswordLength); err != nil {
				return nil, err
			}
		}

		v := Voucher{
			Username: username,
			Password: password,
			Profile:  req.Profile,
			Type:     req.Type,
			Model:    req.Model,
			Price:    batch.Price,
			Status:   StatusCreated,
		}
		if _, err := g.router.AddHotspotUser(ctx, mikrotik.HotspotUser{
			Name:     username,
			Password: password,
			Profile:  req.Profile,
			Comment:  "voucher " + batch.ID,
		}); err != nil {
			v.Status = StatusFailed
			v.Error = err.Error()
			g.logger.Warn().Err(err).Str("username", username).Msg("failed to create voucher")
		}
		batch.Vouchers = append(batch.Vouchers, v)
	}

	if g.recorder != nil {
		if err := g.recorder.SaveBatch(ctx, batch); err != nil {
			g.logger.Error().Err(err).Str("batch", batch.ID).Msg("failed to record voucher batch")
		}
	}
	g.logger.Info().
		Str("batch", batch.ID).
		Int("created", len(batch.Created())).
		Int("failed", batch.FailedCount()).
		Msg("vouchers generated")
	return batch, nil
}

func (g *Generator) uniqueUsername(req Request, taken map[string]bool) (string, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		name, err := Username(g.random, req.Format, req.Prefix, req.Length)
		if err != nil {
			return "", err
		}
		if !taken[name] {
			return name, nil
		}
	}
	return "", fmt.Errorf("no unique username after %d attempts", maxAttempts)
}

// Username renders one candidate name. Numbers never start with 0.
func Username(random io.Reader, format, prefix string, length int) (string, error) {
	switch format {
	case FormatNumbers:
		return randomNumber(random, length)
	case FormatLetters:
		return randomString(random, letterChars, length)
	default:
		n, err := randomNumber(random, length)
		if err != nil {
			return "", err
		}
		if prefix == "" {
			prefix = DefaultPrefix
		}
		return prefix + n, nil
	}
}

func randomNumber(random io.Reader, length int) (string, error) {
	buf := make([]byte, length)
	if _, err := io.ReadFull(random, buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	out := make([]byte, length)
	for i, b := range buf {
		if i == 0 {
			out[i] = digitChars[1+int(b)%9]
		} else {
			out[i] = digitChars[int(b)%10]
		}
	}
	return string(out), nil
}

func randomString(random io.Reader, chars string, length int) (string, error) {
	buf := make([]byte, length)
	if _, err := io.ReadFull(random, buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	out := make([]byte, length)
	for i, b := range buf {
		out[i] = chars[int(b)%len(chars)]
	}
	return string(out), nil
}
