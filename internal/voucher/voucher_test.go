package voucher

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/alijaya/ispportal/internal/mikrotik"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cycleReader repeats a fixed byte pattern.
type cycleReader struct {
	pattern []byte
	pos     int
}

func (c *cycleReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = c.pattern[c.pos%len(c.pattern)]
		c.pos++
	}
	return len(p), nil
}

type fakeRouter struct {
	existing []mikrotik.HotspotUser
	reject   map[string]bool
	added    []mikrotik.HotspotUser
}

func (f *fakeRouter) HotspotUsers(context.Context) ([]mikrotik.HotspotUser, error) {
	return f.existing, nil
}

func (f *fakeRouter) AddHotspotUser(_ context.Context, u mikrotik.HotspotUser) (string, error) {
	if f.reject[u.Name] {
		return "", errors.New("already have user with this name")
	}
	f.added = append(f.added, u)
	return "*1", nil
}

type fakeRecorder struct{ batches []*Batch }

func (f *fakeRecorder) SaveBatch(_ context.Context, b *Batch) error {
	f.batches = append(f.batches, b)
	return nil
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		ok   bool
	}{
		{name: "defaults", req: Request{Profile: "1jam", Count: 1}, ok: true},
		{name: "max count", req: Request{Profile: "1jam", Count: 100}, ok: true},
		{name: "no profile", req: Request{Count: 1}},
		{name: "zero count", req: Request{Profile: "1jam"}},
		{name: "too many", req: Request{Profile: "1jam", Count: 101}},
		{name: "long number", req: Request{Profile: "1jam", Count: 1, Length: 16}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.ok {
				require.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidRequest)
		})
	}

	req := Request{Profile: "1jam", Count: 1}
	require.NoError(t, req.Validate())
	assert.Equal(t, Request{
		Profile: "1jam", Count: 1, Type: TypeVoucher, Format: FormatAlphanumeric,
		Prefix: DefaultPrefix, Length: DefaultLength, PasswordLength: DefaultPasswordLength, Model: DefaultModel,
	}, req)
}

func TestUsernameFormats(t *testing.T) {
	rnd := &cycleReader{pattern: []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 200, 255}}

	n, err := Username(rnd, FormatNumbers, "", 6)
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^[1-9]\d{5}$`), n)

	l, err := Username(rnd, FormatLetters, "", 6)
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^[A-Z]{6}$`), l)

	a, err := Username(rnd, FormatAlphanumeric, "WIFI", 4)
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^WIFI[1-9]\d{3}$`), a)

	d, err := Username(rnd, "", "", 3)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(d, DefaultPrefix))
}

func TestGenerateUniqueNames(t *testing.T) {
	router := &fakeRouter{existing: []mikrotik.HotspotUser{{Name: "1"}}}
	recorder := &fakeRecorder{}
	g := NewGenerator(router, recorder, zerolog.Nop())
	// one-digit names: byte b renders as 1+b%9, so 0,0,1,1,2 yields 1,1,2,2,3
	g.random = &cycleReader{pattern: []byte{0, 0, 1, 1, 2}}

	batch, err := g.Generate(context.Background(), Request{Profile: "1jam", Count: 2, Format: FormatNumbers, Length: 1})
	require.NoError(t, err)

	created := batch.Created()
	require.Len(t, created, 2)
	assert.Equal(t, "2", created[0].Username)
	assert.Equal(t, "3", created[1].Username)
	assert.Equal(t, created[0].Username, created[0].Password, "voucher type reuses the username")
	assert.NotEmpty(t, batch.ID)
	require.Len(t, recorder.batches, 1)
	assert.Equal(t, batch, recorder.batches[0])
	assert.Contains(t, router.added[0].Comment, batch.ID)
}

func TestGenerateMemberPasswords(t *testing.T) {
	router := &fakeRouter{}
	g := NewGenerator(router, nil, zerolog.Nop())

	batch, err := g.Generate(context.Background(), Request{Profile: "harian", Count: 3, Type: TypeMember, PasswordLength: 10})
	require.NoError(t, err)
	for _, v := range batch.Created() {
		assert.Len(t, v.Password, 10)
		assert.NotEqual(t, v.Username, v.Password)
		assert.True(t, strings.HasPrefix(v.Username, DefaultPrefix))
	}
}

func TestGenerateKeepsRejectedVouchers(t *testing.T) {
	router := &fakeRouter{reject: map[string]bool{"2": true}}
	g := NewGenerator(router, nil, zerolog.Nop())
	g.random = &cycleReader{pattern: []byte{0, 1}}

	batch, err := g.Generate(context.Background(), Request{Profile: "1jam", Count: 2, Format: FormatNumbers, Length: 1})
	require.NoError(t, err)
	require.Len(t, batch.Vouchers, 2)
	assert.Equal(t, StatusCreated, batch.Vouchers[0].Status)
	assert.Equal(t, StatusFailed, batch.Vouchers[1].Status)
	assert.Contains(t, batch.Vouchers[1].Error, "already have user")
	assert.Equal(t, 1, batch.FailedCount())
}

func TestGenerateSkipsWhenNamespaceExhausted(t *testing.T) {
	router := &fakeRouter{}
	g := NewGenerator(router, nil, zerolog.Nop())
	g.random = &cycleReader{pattern: []byte{0}}

	batch, err := g.Generate(context.Background(), Request{Profile: "1jam", Count: 3, Format: FormatNumbers, Length: 1})
	require.NoError(t, err)
	assert.Len(t, batch.Vouchers, 1)
}

func TestMessage(t *testing.T) {
	batch := &Batch{Profile: "1jam", Type: TypeMember, Vouchers: []Voucher{
		{Username: "HSP123", Password: "abc", Status: StatusCreated},
		{Username: "HSP999", Password: "x", Status: StatusFailed},
	}}
	msg := Message(batch, "NET")

	assert.Contains(t, msg, "*Total:* 1 voucher")
	assert.Contains(t, msg, "👤 Username: `HSP123`")
	assert.Contains(t, msg, "🔑 Password: `abc`")
	assert.NotContains(t, msg, "HSP999")
	assert.True(t, strings.HasSuffix(msg, "_Generated by NET_"))
}
