package whatsapp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alijaya/ispportal/internal/settings"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUltramsgSend(t *testing.T) {
	var gotPath, gotTo, gotBody, gotToken string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotPath = r.URL.Path
		gotTo = r.PostForm.Get("to")
		gotBody = r.PostForm.Get("body")
		gotToken = r.PostForm.Get("token")
		_, _ = w.Write([]byte(`{"sent":"true","id":"1"}`))
	}))
	defer srv.Close()

	g := NewGateway(GatewayConfig{Provider: ProviderUltramsg, InstanceID: "instance42", Token: "tok", APIURL: srv.URL}, zerolog.Nop())
	require.NoError(t, g.Send(context.Background(), "081234567890", "hello"))

	assert.Equal(t, "/instance42/messages/chat", gotPath)
	assert.Equal(t, "6281234567890", gotTo)
	assert.Equal(t, "hello", gotBody)
	assert.Equal(t, "tok", gotToken)
}

func TestUltramsgGroupAddress(t *testing.T) {
	var gotTo string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotTo = r.PostForm.Get("to")
		_, _ = w.Write([]byte(`{"sent":"true"}`))
	}))
	defer srv.Close()

	g := NewGateway(GatewayConfig{InstanceID: "i", Token: "t", APIURL: srv.URL}, zerolog.Nop())
	require.NoError(t, g.Send(context.Background(), "1203630@g.us", "hi"))
	assert.Equal(t, "1203630@g.us", gotTo)
}

func TestGatewayErrors(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		status   int
		body     string
	}{
		{name: "ultramsg error field", provider: ProviderUltramsg, status: 200, body: `{"error":"invalid token"}`},
		{name: "ultramsg not sent", provider: ProviderUltramsg, status: 200, body: `{"sent":"false"}`},
		{name: "ultramsg http error", provider: ProviderUltramsg, status: 500, body: `oops`},
		{name: "proxrad status", provider: ProviderProxRad, status: 200, body: `{"status":403,"message":"denied"}`},
		{name: "fonnte status", provider: ProviderFonnte, status: 200, body: `{"status":false,"reason":"device disconnected"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			g := NewGateway(GatewayConfig{Provider: tt.provider, InstanceID: "i", Token: "t", APIURL: srv.URL}, zerolog.Nop())
			assert.Error(t, g.Send(context.Background(), "0811111111", "x"))
		})
	}
}

func TestFonnteSendsAuthorization(t *testing.T) {
	var auth, target string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		auth = r.Header.Get("Authorization")
		target = r.PostForm.Get("target")
		_, _ = w.Write([]byte(`{"status":true}`))
	}))
	defer srv.Close()

	g := NewGateway(GatewayConfig{Provider: ProviderFonnte, Token: "fonnte-key", APIURL: srv.URL}, zerolog.Nop())
	require.NoError(t, g.Send(context.Background(), "0822", "x"))
	assert.Equal(t, "fonnte-key", auth)
	assert.Equal(t, "62822", target)
}

func TestGatewayNotConfigured(t *testing.T) {
	g := NewGateway(GatewayConfig{Provider: ProviderUltramsg}, zerolog.Nop())
	assert.False(t, g.Configured())
	assert.ErrorIs(t, g.Send(context.Background(), "0811", "x"), ErrNotConfigured)
}

type recordingSender struct {
	to, text string
}

func (r *recordingSender) Send(_ context.Context, to, text string) error {
	r.to, r.text = to, text
	return nil
}

func TestMessengerSendFormatted(t *testing.T) {
	rec := &recordingSender{}
	m := NewMessenger(rec, settings.Static(settings.FromMap(map[string]interface{}{
		settings.KeyCompanyHeader: "ACME NET",
	})))

	require.NoError(t, m.SendFormatted(context.Background(), "0811222333", "OTP 1234"))
	assert.Equal(t, "62811222333@s.whatsapp.net", rec.to)
	assert.Equal(t, "🏢 *ACME NET*\n\nOTP 1234\n\n"+settings.DefaultFooterInfo, rec.text)
}
