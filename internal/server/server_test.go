package server

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zarvd/github-app-jwt/internal/minter"
)

func newTestServer(t *testing.T) (*Server, *rsa.PrivateKey) {
	t.Helper()
	signingKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	svr := New(slog.Default(), minter.New(signingKey), "123456")
	svr.now = func() time.Time { return time.Unix(1577836800, 0) }
	return svr, signingKey
}

func TestServer_MintToken(t *testing.T) {
	t.Parallel()

	svr, signingKey := newTestServer(t)
	handler := svr.Handler()

	t.Run("defaults to the configured issuer and lifetime", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/token", strings.NewReader(`{}`))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var resp MintTokenResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, int64(1577836800), resp.IssuedAt)
		assert.Equal(t, int64(1577837400), resp.ExpiresAt)

		claims, err := minter.Verify(resp.Token, &signingKey.PublicKey)
		require.NoError(t, err)
		assert.Equal(t, "123456", claims.Issuer)
		assert.Equal(t, resp.IssuedAt, claims.IssuedAt.Unix())
		assert.Equal(t, resp.ExpiresAt, claims.ExpiresAt.Unix())
	})

	t.Run("honors issuer and lifetime overrides", func(t *testing.T) {
		body := `{"issuer":"654321","lifetime_seconds":120}`
		req := httptest.NewRequest(http.MethodPost, "/token", strings.NewReader(body))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var resp MintTokenResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, int64(120), resp.ExpiresAt-resp.IssuedAt)

		claims, err := minter.Verify(resp.Token, &signingKey.PublicKey)
		require.NoError(t, err)
		assert.Equal(t, "654321", claims.Issuer)
	})

	t.Run("clamps lifetimes above the maximum", func(t *testing.T) {
		body := `{"lifetime_seconds":3600}`
		req := httptest.NewRequest(http.MethodPost, "/token", strings.NewReader(body))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var resp MintTokenResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, int64(600), resp.ExpiresAt-resp.IssuedAt)
	})

	t.Run("rejects malformed request bodies", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/token", strings.NewReader(`{`))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects non-POST requests", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/token", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

func TestServer_Healthz(t *testing.T) {
	t.Parallel()

	svr, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	svr.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
