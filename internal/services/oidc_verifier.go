package services

import (
	"context"
	"crypto/rsa"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	GoogleDiscoveryURL = "https://accounts.google.com/.well-known/openid-configuration"
	jwksTTL            = 6 * time.Hour
	idTokenLeeway      = 30 * time.Second
)

var googleIssuers = []string{"accounts.google.com", "https://accounts.google.com"}

// GoogleIdentity is the verified subset of a Google id_token.
type GoogleIdentity struct {
	Sub           string
	Email         string
	EmailVerified bool
	Name          string
	GivenName     string
	Picture       string
}

type IDTokenVerifier interface {
	// Verify checks signature, issuer, audience, expiry and that the nonce
	// claim equals expectedNonce.
	Verify(ctx context.Context, idToken, expectedNonce string) (*GoogleIdentity, error)
}

type googleClaims struct {
	Email         string `json:"email"`
	EmailVerified any    `json:"email_verified"`
	Name          string `json:"name"`
	GivenName     string `json:"given_name"`
	Picture       string `json:"picture"`
	Nonce         string `json:"nonce"`
	jwt.RegisteredClaims
}

type googleVerifier struct {
	httpClient   *http.Client
	discoveryURL string
	clientID     string
	issuers      []string
	now          func() time.Time

	mu      sync.Mutex
	jwksURL string
	keys    map[string]*rsa.PublicKey
	fetched time.Time
}

// NewGoogleVerifier verifies id_tokens minted for clientID. An empty
// discoveryURL means Google's production endpoint.
func NewGoogleVerifier(httpClient *http.Client, discoveryURL, clientID string) (IDTokenVerifier, error) {
	if strings.TrimSpace(clientID) == "" {
		return nil, fmt.Errorf("GOOGLE_OAUTH_CLIENT_ID is required")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if strings.TrimSpace(discoveryURL) == "" {
		discoveryURL = GoogleDiscoveryURL
	}
	return &googleVerifier{
		httpClient:   httpClient,
		discoveryURL: discoveryURL,
		clientID:     clientID,
		issuers:      googleIssuers,
		now:          time.Now,
		keys:         map[string]*rsa.PublicKey{},
	}, nil
}

func (v *googleVerifier) Verify(ctx context.Context, idToken, expectedNonce string) (*GoogleIdentity, error) {
	if strings.TrimSpace(idToken) == "" {
		return nil, errors.New("id_token is empty")
	}
	if strings.TrimSpace(expectedNonce) == "" {
		return nil, errors.New("missing expected nonce")
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithAudience(v.clientID),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(idTokenLeeway),
		jwt.WithTimeFunc(v.now),
	)
	var claims googleClaims
	tok, err := parser.ParseWithClaims(idToken, &claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if strings.TrimSpace(kid) == "" {
			return nil, errors.New("missing kid")
		}
		return v.key(ctx, kid)
	})
	if err != nil {
		return nil, fmt.Errorf("invalid id_token: %w", err)
	}
	if !tok.Valid {
		return nil, errors.New("invalid id_token")
	}
	if !v.issuerAllowed(claims.Issuer) {
		return nil, fmt.Errorf("issuer mismatch: %q", claims.Issuer)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, errors.New("missing sub")
	}
	if claims.Nonce == "" || subtle.ConstantTimeCompare([]byte(claims.Nonce), []byte(expectedNonce)) != 1 {
		return nil, errors.New("nonce mismatch")
	}

	return &GoogleIdentity{
		Sub:           claims.Subject,
		Email:         strings.TrimSpace(claims.Email),
		EmailVerified: parseBool(claims.EmailVerified),
		Name:          strings.TrimSpace(claims.Name),
		GivenName:     strings.TrimSpace(claims.GivenName),
		Picture:       strings.TrimSpace(claims.Picture),
	}, nil
}

func (v *googleVerifier) issuerAllowed(iss string) bool {
	for _, allowed := range v.issuers {
		if allowed == iss {
			return true
		}
	}
	return false
}

// key returns the signing key for kid, refreshing the JWKS when stale or
// when kid is unknown. A failed refresh falls back to a cached key.
func (v *googleVerifier) key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	cached := v.keys[kid]
	if cached != nil && v.now().Sub(v.fetched) < jwksTTL {
		return cached, nil
	}
	if err := v.refreshLocked(ctx); err != nil {
		if cached != nil {
			return cached, nil
		}
		return nil, err
	}
	if k := v.keys[kid]; k != nil {
		return k, nil
	}
	return nil, fmt.Errorf("kid not found in jwks: %s", kid)
}

func (v *googleVerifier) refreshLocked(ctx context.Context) error {
	if v.jwksURL == "" {
		var d struct {
			Issuer  string `json:"issuer"`
			JWKSURI string `json:"jwks_uri"`
		}
		if err := v.getJSON(ctx, v.discoveryURL, &d); err != nil {
			return fmt.Errorf("oidc discovery: %w", err)
		}
		if strings.TrimSpace(d.JWKSURI) == "" {
			return errors.New("oidc discovery: missing jwks_uri")
		}
		v.jwksURL = d.JWKSURI
	}

	var set struct {
		Keys []struct {
			Kty string `json:"kty"`
			Kid string `json:"kid"`
			N   string `json:"n"`
			E   string `json:"e"`
		} `json:"keys"`
	}
	if err := v.getJSON(ctx, v.jwksURL, &set); err != nil {
		return fmt.Errorf("jwks fetch: %w", err)
	}
	next := map[string]*rsa.PublicKey{}
	for _, k := range set.Keys {
		if k.Kty != "RSA" || strings.TrimSpace(k.Kid) == "" {
			continue
		}
		if pub, err := rsaFromModExp(k.N, k.E); err == nil {
			next[k.Kid] = pub
		}
	}
	if len(next) == 0 {
		return errors.New("jwks contained no usable keys")
	}
	v.keys = next
	v.fetched = v.now()
	return nil
}

func (v *googleVerifier) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	res, err := v.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return fmt.Errorf("GET %s: %s", url, res.Status)
	}
	return json.NewDecoder(res.Body).Decode(out)
}

func parseBool(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		return strings.EqualFold(x, "true") || x == "1"
	case float64:
		return x != 0
	default:
		return false
	}
}

func rsaFromModExp(nB64, eB64 string) (*rsa.PublicKey, error) {
	nb, err := base64.RawURLEncoding.DecodeString(nB64)
	if err != nil {
		return nil, err
	}
	eb, err := base64.RawURLEncoding.DecodeString(eB64)
	if err != nil {
		return nil, err
	}
	e := 0
	for _, b := range eb {
		e = e<<8 + int(b)
	}
	if e == 0 {
		return nil, errors.New("invalid exponent")
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(nb), E: e}, nil
}
