package handlers

import (
	"context"
	"net/http"
	"regexp"
	"testing"
	"time"

	"github.com/alijaya/ispportal/internal/mikrotik"
	"github.com/alijaya/ispportal/internal/settings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestAdminLogin(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	h := newHarness(t, map[string]interface{}{
		settings.KeyAdminUsername: "noc",
		settings.KeyAdminPassword: string(hash),
	})

	tests := []struct {
		name   string
		body   map[string]string
		status int
	}{
		{name: "valid", body: map[string]string{"username": "noc", "password": "s3cret"}, status: http.StatusOK},
		{name: "wrong password", body: map[string]string{"username": "noc", "password": "nope"}, status: http.StatusUnauthorized},
		{name: "wrong user", body: map[string]string{"username": "admin", "password": "s3cret"}, status: http.StatusUnauthorized},
		{name: "missing fields", body: map[string]string{"username": "noc"}, status: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := h.do(http.MethodPost, "/api/auth/admin/login", "", tt.body)
			assert.Equal(t, tt.status, status)
			if tt.status == http.StatusOK {
				assert.NotEmpty(t, body["token"])
				assert.Equal(t, "admin", body["role"])
			}
		})
	}
}

func TestAdminLoginDefaultCredentials(t *testing.T) {
	h := newHarness(t, nil)
	status, body := h.do(http.MethodPost, "/api/auth/admin/login", "", map[string]string{"username": "admin", "password": "admin"})
	require.Equal(t, http.StatusOK, status)

	token := body["token"].(string)
	status, me := h.do(http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "admin", me["data"].(map[string]interface{})["username"])
}

func TestCustomerLoginDirect(t *testing.T) {
	h := newHarness(t, nil)
	h.acs.devices = append(h.acs.devices, device("ZTE-F660-001", "081234567890", time.Minute, -20))

	status, body := h.do(http.MethodPost, "/api/auth/customer/login", "", map[string]string{"phone": "0812-3456-7890"})
	require.Equal(t, http.StatusOK, status)

	claims, err := h.deps.Auth.Parse(context.Background(), body["token"].(string))
	require.NoError(t, err)
	assert.Equal(t, "081234567890", claims.Phone)
	assert.Equal(t, "ZTE-F660-001", claims.DeviceID)
}

func TestCustomerLoginRejects(t *testing.T) {
	h := newHarness(t, nil)

	status, _ := h.do(http.MethodPost, "/api/auth/customer/login", "", map[string]string{"phone": "0812"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, body := h.do(http.MethodPost, "/api/auth/customer/login", "", map[string]string{"phone": "081299990000"})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Nomor pelanggan tidak ditemukan", body["message"])
}

func TestCustomerLoginFallsBackToRouter(t *testing.T) {
	h := newHarness(t, nil)
	h.router.secrets = []mikrotik.Secret{{ID: "*1", Name: "budi", Comment: "081299990000"}}

	status, body := h.do(http.MethodPost, "/api/auth/customer/login", "", map[string]string{"phone": "081299990000"})
	require.Equal(t, http.StatusOK, status)

	claims, err := h.deps.Auth.Parse(context.Background(), body["token"].(string))
	require.NoError(t, err)
	assert.Empty(t, claims.DeviceID)
}

var otpCode = regexp.MustCompile(`\*(\d+)\*`)

func TestCustomerOTPFlow(t *testing.T) {
	h := newHarness(t, map[string]interface{}{
		settings.KeyCustomerOTPEnabled: true,
		settings.KeyOTPLength:          4,
	})
	h.acs.devices = append(h.acs.devices, device("HW-HG8245-002", "081234567890", time.Minute, -20))

	status, body := h.do(http.MethodPost, "/api/auth/customer/login", "", map[string]string{"phone": "081234567890"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["otpRequired"])
	assert.Nil(t, body["token"])

	require.Len(t, h.otpSent.sent, 1)
	assert.Equal(t, "081234567890", h.otpSent.sent[0].to)
	match := otpCode.FindStringSubmatch(h.otpSent.sent[0].message)
	require.Len(t, match, 2)
	code := match[1]
	assert.Len(t, code, 4)

	status, _ = h.do(http.MethodPost, "/api/auth/customer/verify", "", map[string]string{"phone": "081234567890", "code": "0000x"})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body = h.do(http.MethodPost, "/api/auth/customer/verify", "", map[string]string{"phone": "081234567890", "code": code})
	require.Equal(t, http.StatusOK, status)
	claims, err := h.deps.Auth.Parse(context.Background(), body["token"].(string))
	require.NoError(t, err)
	assert.Equal(t, "HW-HG8245-002", claims.DeviceID)

	// the pending login is consumed
	status, _ = h.do(http.MethodPost, "/api/auth/customer/verify", "", map[string]string{"phone": "081234567890", "code": code})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestResendWithoutPendingLogin(t *testing.T) {
	h := newHarness(t, nil)
	status, _ := h.do(http.MethodPost, "/api/auth/customer/resend", "", map[string]string{"phone": "081234567890"})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestLogout(t *testing.T) {
	h := newHarness(t, nil)
	token := h.adminToken()

	status, _ := h.do(http.MethodPost, "/api/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, status)

	status, body := h.do(http.MethodGet, "/api/admin/dashboard", token, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Contains(t, body["message"], "revoked")
}
