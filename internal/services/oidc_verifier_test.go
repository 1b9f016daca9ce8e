package services

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testClientID = "client-123.apps.googleusercontent.com"

type fakeGoogle struct {
	srv       *httptest.Server
	key       *rsa.PrivateKey
	jwksHits  atomic.Int32
	discovery atomic.Int32
}

func newFakeGoogle(t *testing.T) *fakeGoogle {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	fg := &fakeGoogle{key: key}
	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		fg.discovery.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"issuer":   "https://accounts.google.com",
			"jwks_uri": fg.srv.URL + "/certs",
		})
	})
	mux.HandleFunc("/certs", func(w http.ResponseWriter, r *http.Request) {
		fg.jwksHits.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{"keys": []map[string]string{{
			"kty": "RSA",
			"kid": "k1",
			"n":   base64.RawURLEncoding.EncodeToString(key.PublicKey.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.PublicKey.E)).Bytes()),
		}}})
	})
	fg.srv = httptest.NewServer(mux)
	t.Cleanup(fg.srv.Close)
	return fg
}

func (fg *fakeGoogle) sign(t *testing.T, claims jwt.MapClaims, kid string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = kid
	s, err := tok.SignedString(fg.key)
	require.NoError(t, err)
	return s
}

func baseClaims() jwt.MapClaims {
	now := time.Now()
	return jwt.MapClaims{
		"iss":            "https://accounts.google.com",
		"aud":            testClientID,
		"sub":            "1234567890",
		"email":          "ada@example.com",
		"email_verified": true,
		"name":           "Ada Lovelace",
		"picture":        "https://example.com/ada.png",
		"nonce":          "n-1",
		"iat":            now.Unix(),
		"exp":            now.Add(time.Hour).Unix(),
	}
}

func TestGoogleVerifierAcceptsValidToken(t *testing.T) {
	fg := newFakeGoogle(t)
	v, err := NewGoogleVerifier(fg.srv.Client(), fg.srv.URL+"/.well-known/openid-configuration", testClientID)
	require.NoError(t, err)

	id, err := v.Verify(context.Background(), fg.sign(t, baseClaims(), "k1"), "n-1")
	require.NoError(t, err)
	assert.Equal(t, "1234567890", id.Sub)
	assert.Equal(t, "ada@example.com", id.Email)
	assert.True(t, id.EmailVerified)
	assert.Equal(t, "Ada Lovelace", id.Name)

	_, err = v.Verify(context.Background(), fg.sign(t, baseClaims(), "k1"), "n-1")
	require.NoError(t, err)
	assert.Equal(t, int32(1), fg.discovery.Load())
	assert.Equal(t, int32(1), fg.jwksHits.Load())
}

func TestGoogleVerifierRejects(t *testing.T) {
	fg := newFakeGoogle(t)
	v, err := NewGoogleVerifier(fg.srv.Client(), fg.srv.URL+"/.well-known/openid-configuration", testClientID)
	require.NoError(t, err)

	mutate := func(f func(c jwt.MapClaims)) jwt.MapClaims {
		c := baseClaims()
		f(c)
		return c
	}
	cases := []struct {
		name  string
		token string
		nonce string
	}{
		{"wrong nonce", fg.sign(t, baseClaims(), "k1"), "other"},
		{"wrong audience", fg.sign(t, mutate(func(c jwt.MapClaims) { c["aud"] = "someone-else" }), "k1"), "n-1"},
		{"wrong issuer", fg.sign(t, mutate(func(c jwt.MapClaims) { c["iss"] = "https://evil.example.com" }), "k1"), "n-1"},
		{"expired", fg.sign(t, mutate(func(c jwt.MapClaims) { c["exp"] = time.Now().Add(-time.Hour).Unix() }), "k1"), "n-1"},
		{"no exp", fg.sign(t, mutate(func(c jwt.MapClaims) { delete(c, "exp") }), "k1"), "n-1"},
		{"unknown kid", fg.sign(t, baseClaims(), "k2"), "n-1"},
		{"empty", "", "n-1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := v.Verify(context.Background(), tc.token, tc.nonce)
			assert.Error(t, err)
		})
	}
}

func TestNewGoogleVerifierRequiresClientID(t *testing.T) {
	_, err := NewGoogleVerifier(nil, "", " ")
	assert.Error(t, err)
}
