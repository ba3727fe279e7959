package middleware

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testAudience = "gqljoin"
	testKeyID    = "test-key"
)

type oidcFixture struct {
	server *httptest.Server
	key    *rsa.PrivateKey
	caFile string
}

// newOIDCFixture serves discovery and a one-key JWKS over TLS. caFile holds
// the server certificate.
func newOIDCFixture(t *testing.T) *oidcFixture {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	f := &oidcFixture{key: key}
	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"issuer":                                f.server.URL,
			"jwks_uri":                              f.server.URL + "/jwks",
			"id_token_signing_alg_values_supported": []string{"RS256"},
		})
	})
	mux.HandleFunc("/jwks", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"keys": []map[string]string{{
				"kty": "RSA",
				"use": "sig",
				"alg": "RS256",
				"kid": testKeyID,
				"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
			}},
		})
	})
	f.server = httptest.NewTLSServer(mux)
	t.Cleanup(f.server.Close)

	f.caFile = filepath.Join(t.TempDir(), "ca.pem")
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: f.server.Certificate().Raw})
	require.NoError(t, os.WriteFile(f.caFile, certPEM, 0o600))
	return f
}

func (f *oidcFixture) config() OIDCAuthConfig {
	return OIDCAuthConfig{
		Enabled:   true,
		IssuerURL: f.server.URL,
		Audience:  testAudience,
		ClockSkew: time.Minute,
		CAFile:    f.caFile,
	}
}

func (f *oidcFixture) mint(t *testing.T, issuer, audience string, expiresAt time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   "user-1",
		Audience:  jwt.ClaimStrings{audience},
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		NotBefore: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = testKeyID
	signed, err := token.SignedString(f.key)
	require.NoError(t, err)
	return signed
}

func TestOIDCAuthMiddleware(t *testing.T) {
	f := newOIDCFixture(t)
	auth, err := OIDCAuthMiddleware(f.config(), nil)
	require.NoError(t, err)

	var seen AuthContext
	handler := auth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = AuthFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{name: "missing token", header: "", want: http.StatusUnauthorized},
		{name: "not a bearer token", header: "Basic dXNlcjpwYXNz", want: http.StatusUnauthorized},
		{name: "garbage token", header: "Bearer not-a-jwt", want: http.StatusUnauthorized},
		{
			name:   "valid token",
			header: "Bearer " + f.mint(t, f.server.URL, testAudience, time.Now().Add(time.Hour)),
			want:   http.StatusOK,
		},
		{
			name:   "expired within clock skew",
			header: "Bearer " + f.mint(t, f.server.URL, testAudience, time.Now().Add(-30*time.Second)),
			want:   http.StatusOK,
		},
		{
			name:   "expired beyond clock skew",
			header: "Bearer " + f.mint(t, f.server.URL, testAudience, time.Now().Add(-time.Hour)),
			want:   http.StatusUnauthorized,
		},
		{
			name:   "wrong issuer",
			header: "Bearer " + f.mint(t, "https://other.example", testAudience, time.Now().Add(time.Hour)),
			want:   http.StatusUnauthorized,
		},
		{
			name:   "wrong audience",
			header: "Bearer " + f.mint(t, f.server.URL, "someone-else", time.Now().Add(time.Hour)),
			want:   http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = AuthContext{}
			req := httptest.NewRequest(http.MethodPost, "/compile", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			require.Equal(t, tt.want, rec.Code, rec.Body.String())
			if tt.want == http.StatusOK {
				assert.Equal(t, "user-1", seen.Subject)
				assert.Equal(t, []string{testAudience}, seen.Audience)
				assert.Equal(t, f.server.URL, seen.Issuer)
				return
			}
			assert.Empty(t, seen.Subject)
			assert.Equal(t, `Bearer realm="gqljoin"`, rec.Header().Get("WWW-Authenticate"))

			var body ErrorBody
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, "unauthorized", body.Error.Code)
		})
	}
}

func TestOIDCAuthMiddleware_Disabled(t *testing.T) {
	auth, err := OIDCAuthMiddleware(OIDCAuthConfig{}, nil)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	auth(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/compile", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestOIDCAuthMiddleware_ConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  OIDCAuthConfig
	}{
		{name: "missing issuer", cfg: OIDCAuthConfig{Enabled: true, Audience: testAudience}},
		{name: "missing audience", cfg: OIDCAuthConfig{Enabled: true, IssuerURL: "https://issuer.example"}},
		{name: "plain http issuer", cfg: OIDCAuthConfig{Enabled: true, IssuerURL: "http://issuer.example", Audience: testAudience}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := OIDCAuthMiddleware(tt.cfg, nil)
			assert.Error(t, err)
		})
	}

	t.Run("untrusted issuer certificate", func(t *testing.T) {
		f := newOIDCFixture(t)
		cfg := f.config()
		cfg.CAFile = ""
		_, err := OIDCAuthMiddleware(cfg, nil)
		assert.Error(t, err)
	})
}

func TestNewOIDCHTTPClient_TrustsProvidedCA(t *testing.T) {
	f := newOIDCFixture(t)

	client, err := newOIDCHTTPClient(OIDCAuthConfig{CAFile: f.caFile})
	require.NoError(t, err)
	resp, err := client.Get(f.server.URL + "/jwks")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestNewOIDCHTTPClient_RejectsInvalidCAFile(t *testing.T) {
	caPath := filepath.Join(t.TempDir(), "invalid_ca.crt")
	require.NoError(t, os.WriteFile(caPath, []byte("not a certificate"), 0o600))

	_, err := newOIDCHTTPClient(OIDCAuthConfig{CAFile: caPath})
	assert.Error(t, err)

	_, err = newOIDCHTTPClient(OIDCAuthConfig{CAFile: filepath.Join(t.TempDir(), "missing.crt")})
	assert.Error(t, err)
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", bearerToken("Bearer abc"))
	assert.Equal(t, "abc", bearerToken("  bearer   abc "))
	assert.Empty(t, bearerToken("Bearer"))
	assert.Empty(t, bearerToken("Token abc"))
	assert.Empty(t, bearerToken(""))
}
