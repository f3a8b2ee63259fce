package middleware

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/alijaya/ispportal/internal/database"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Token roles
const (
	RoleAdmin    = "admin"
	RoleCustomer = "customer"
)

const (
	issuer    = "ispportal"
	claimsKey = "claims"
)

var ErrTokenRevoked = errors.New("token revoked")

// Claims identifies an admin by username or a customer by phone and device.
type Claims struct {
	Role     string `json:"role"`
	Username string `json:"username,omitempty"`
	Phone    string `json:"phone,omitempty"`
	DeviceID string `json:"device_id,omitempty"`
	jwt.RegisteredClaims
}

// Revoker remembers logged-out token IDs until they would have expired.
type Revoker interface {
	Revoke(ctx context.Context, id string, until time.Time) error
	IsRevoked(ctx context.Context, id string) (bool, error)
}

// MemoryRevoker is a process-local Revoker.
type MemoryRevoker struct {
	mu      sync.Mutex
	revoked map[string]time.Time
	now     func() time.Time
}

func NewMemoryRevoker() *MemoryRevoker {
	return &MemoryRevoker{revoked: make(map[string]time.Time), now: time.Now}
}

func (m *MemoryRevoker) Revoke(_ context.Context, id string, until time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for k, exp := range m.revoked {
		if now.After(exp) {
			delete(m.revoked, k)
		}
	}
	m.revoked[id] = until
	return nil
}

func (m *MemoryRevoker) IsRevoked(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	exp, ok := m.revoked[id]
	return ok && !m.now().After(exp), nil
}

// CacheRevoker keeps revocations in Redis so every instance sees them.
type CacheRevoker struct {
	cache *database.Cache
}

func NewCacheRevoker(cache *database.Cache) *CacheRevoker {
	return &CacheRevoker{cache: cache}
}

func (r *CacheRevoker) Revoke(ctx context.Context, id string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	return r.cache.SetJSON(ctx, database.CacheKeyRevokedToken+id, true, ttl)
}

func (r *CacheRevoker) IsRevoked(ctx context.Context, id string) (bool, error) {
	return r.cache.Exists(ctx, database.CacheKeyRevokedToken+id)
}

// Auth issues and checks HS256 tokens.
type Auth struct {
	secret  []byte
	expiry  time.Duration
	revoker Revoker
	now     func() time.Time
}

func NewAuth(secret string, expiry time.Duration, revoker Revoker) *Auth {
	if revoker == nil {
		revoker = NewMemoryRevoker()
	}
	return &Auth{secret: []byte(secret), expiry: expiry, revoker: revoker, now: time.Now}
}

// GenerateToken signs claims with a fresh ID and the configured expiry.
func (a *Auth) GenerateToken(claims Claims) (string, time.Time, error) {
	now := a.now()
	expiresAt := now.Add(a.expiry)
	subject := claims.Username
	if claims.Role == RoleCustomer {
		subject = claims.Phone
	}
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   subject,
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// Parse validates the signature, expiry and revocation state.
func (a *Auth) Parse(ctx context.Context, tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(issuer), jwt.WithTimeFunc(a.now))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrTokenUnverifiable
	}

	revoked, err := a.revoker.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrTokenRevoked
	}
	return claims, nil
}

func bearerToken(c *fiber.Ctx) (string, bool) {
	parts := strings.Split(c.Get(fiber.HeaderAuthorization), " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func unauthorized(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"success": false,
		"message": message,
	})
}

// Required rejects requests without a valid token for one of roles.
func (a *Auth) Required(roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Get(fiber.HeaderAuthorization) == "" {
			return unauthorized(c, "Missing authorization header")
		}
		tokenString, ok := bearerToken(c)
		if !ok {
			return unauthorized(c, "Invalid authorization header format")
		}

		claims, err := a.Parse(c.UserContext(), tokenString)
		if errors.Is(err, ErrTokenRevoked) {
			return unauthorized(c, "Token has been revoked (logged out)")
		}
		if err != nil {
			return unauthorized(c, "Invalid or expired token")
		}

		if len(roles) > 0 && !hasRole(roles, claims.Role) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"success": false,
				"message": "Insufficient permissions",
			})
		}

		c.Locals(claimsKey, claims)
		return c.Next()
	}
}

func hasRole(roles []string, role string) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

func (a *Auth) AdminRequired() fiber.Handler {
	return a.Required(RoleAdmin)
}

func (a *Auth) CustomerRequired() fiber.Handler {
	return a.Required(RoleCustomer)
}

// Revoke invalidates the token carried by the current request.
func (a *Auth) Revoke(c *fiber.Ctx) error {
	claims := CurrentClaims(c)
	if claims == nil {
		return nil
	}
	until := a.now().Add(a.expiry)
	if claims.ExpiresAt != nil {
		until = claims.ExpiresAt.Time
	}
	return a.revoker.Revoke(c.UserContext(), claims.ID, until)
}

// CurrentClaims returns the claims stored by Required, or nil.
func CurrentClaims(c *fiber.Ctx) *Claims {
	claims, ok := c.Locals(claimsKey).(*Claims)
	if !ok {
		return nil
	}
	return claims
}

// CheckPassword compares against a bcrypt hash, or the literal value when
// the stored password is not a hash.
func CheckPassword(stored, given string) bool {
	if strings.HasPrefix(stored, "$2a$") || strings.HasPrefix(stored, "$2b$") || strings.HasPrefix(stored, "$2y$") {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(given)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(given)) == 1
}
