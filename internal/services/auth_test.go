package services

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/cognivue/cognivue-backend/internal/data/repos"
	"github.com/cognivue/cognivue-backend/internal/data/repos/testutil"
	"github.com/cognivue/cognivue-backend/internal/platform/apierr"
	"github.com/cognivue/cognivue-backend/internal/platform/ctxutil"
	"github.com/cognivue/cognivue-backend/internal/platform/dbctx"
	"github.com/cognivue/cognivue-backend/internal/platform/logger"
)

type fakeExchanger struct {
	*oauth2.Config
	err error
}

func (f *fakeExchanger) Exchange(ctx context.Context, code string, opts ...oauth2.AuthCodeOption) (*oauth2.Token, error) {
	if f.err != nil {
		return nil, f.err
	}
	return (&oauth2.Token{AccessToken: "access"}).WithExtra(map[string]interface{}{"id_token": "idtok-" + code}), nil
}

type fakeVerifier struct {
	identity GoogleIdentity
	nonces   []string
}

func (f *fakeVerifier) Verify(ctx context.Context, idToken, expectedNonce string) (*GoogleIdentity, error) {
	f.nonces = append(f.nonces, expectedNonce)
	if idToken == "" {
		return nil, errors.New("empty")
	}
	id := f.identity
	return &id, nil
}

type authFixture struct {
	svc      *authService
	verifier *fakeVerifier
	exch     *fakeExchanger
	users    repos.UserRepo
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	db := testutil.DB(t)
	log := logger.Nop()
	users := repos.NewUserRepo(db, log)
	exch := &fakeExchanger{Config: &oauth2.Config{
		ClientID:    "cid",
		RedirectURL: "http://localhost:8000/auth/google/callback/",
		Endpoint:    oauth2.Endpoint{AuthURL: "https://accounts.example.com/auth", TokenURL: "https://accounts.example.com/token"},
		Scopes:      []string{"openid", "email", "profile"},
	}}
	verifier := &fakeVerifier{identity: GoogleIdentity{
		Sub: "g-1", Email: "grace@example.com", EmailVerified: true, GivenName: "Grace", Picture: "https://img/1.png",
	}}
	svc := NewAuthService(db, log, users, repos.NewUserTokenRepo(db, log), repos.NewDBStateStore(db, log),
		exch, verifier, "test-secret", time.Hour).(*authService)
	return &authFixture{svc: svc, verifier: verifier, exch: exch, users: users}
}

func (f *authFixture) login(t *testing.T) *LoginResult {
	t.Helper()
	ctx := context.Background()
	redirect, err := f.svc.BeginGoogleLogin(ctx)
	require.NoError(t, err)
	u, err := url.Parse(redirect)
	require.NoError(t, err)
	q := u.Query()
	require.NotEmpty(t, q.Get("state"))
	require.NotEmpty(t, q.Get("nonce"))
	assert.Equal(t, "select_account consent", q.Get("prompt"))

	res, err := f.svc.CompleteGoogleLogin(ctx, q.Get("state"), "code", "test-agent")
	require.NoError(t, err)
	assert.Equal(t, q.Get("nonce"), f.verifier.nonces[len(f.verifier.nonces)-1])

	_, err = f.svc.CompleteGoogleLogin(ctx, q.Get("state"), "code", "test-agent")
	assert.True(t, apierr.Is(err, apierr.CodeUnauthenticated), "state must be single use")
	return res
}

func TestGoogleLoginCreatesAndRefreshesUser(t *testing.T) {
	f := newAuthFixture(t)

	first := f.login(t)
	assert.True(t, first.Created)
	assert.Equal(t, "Grace", first.User.Username)
	assert.Equal(t, "g-1", first.User.GoogleID)

	f.verifier.identity.Picture = "https://img/2.png"
	f.verifier.identity.GivenName = ""
	second := f.login(t)
	assert.False(t, second.Created)
	assert.Equal(t, first.User.ID, second.User.ID)

	stored, err := f.users.GetByEmail(dbctx.Context{Ctx: context.Background()}, "grace@example.com")
	require.NoError(t, err)
	assert.Equal(t, "https://img/2.png", stored.AvatarURL)
	assert.Equal(t, "grace", stored.Username)
}

func TestGoogleLoginRejectsUnverifiedEmail(t *testing.T) {
	f := newAuthFixture(t)
	f.verifier.identity.EmailVerified = false

	redirect, err := f.svc.BeginGoogleLogin(context.Background())
	require.NoError(t, err)
	u, _ := url.Parse(redirect)
	_, err = f.svc.CompleteGoogleLogin(context.Background(), u.Query().Get("state"), "code", "")
	require.True(t, apierr.Is(err, apierr.CodeUnauthenticated))
}

func TestGoogleLoginInputErrors(t *testing.T) {
	f := newAuthFixture(t)
	_, err := f.svc.CompleteGoogleLogin(context.Background(), "", "code", "")
	assert.True(t, apierr.Is(err, apierr.CodeValidation))
	_, err = f.svc.CompleteGoogleLogin(context.Background(), "never-issued", "code", "")
	assert.True(t, apierr.Is(err, apierr.CodeUnauthenticated))

	f.exch.err = errors.New("invalid_grant")
	redirect, err := f.svc.BeginGoogleLogin(context.Background())
	require.NoError(t, err)
	u, _ := url.Parse(redirect)
	_, err = f.svc.CompleteGoogleLogin(context.Background(), u.Query().Get("state"), "code", "")
	ae, ok := apierr.As(err)
	require.True(t, ok)
	assert.Equal(t, apierr.CodeUnauthenticated, ae.Code)
	assert.Equal(t, "invalid_grant", ae.Details)
}

func TestSessionTokenLifecycle(t *testing.T) {
	f := newAuthFixture(t)
	res := f.login(t)

	ctx, err := f.svc.SetContextFromToken(context.Background(), res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, ctxutil.UserID(ctx))

	_, err = f.svc.SetContextFromToken(context.Background(), res.Token+"x")
	assert.True(t, apierr.Is(err, apierr.CodeUnauthenticated))
	_, err = f.svc.SetContextFromToken(context.Background(), "")
	assert.True(t, apierr.Is(err, apierr.CodeUnauthenticated))

	require.NoError(t, f.svc.Logout(ctx))
	_, err = f.svc.SetContextFromToken(context.Background(), res.Token)
	assert.True(t, apierr.Is(err, apierr.CodeUnauthenticated), "revoked token must be rejected")

	require.NoError(t, f.svc.Logout(context.Background()))
}

func TestSessionTokenExpiry(t *testing.T) {
	f := newAuthFixture(t)
	res := f.login(t)
	f.svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err := f.svc.SetContextFromToken(context.Background(), res.Token)
	assert.True(t, apierr.Is(err, apierr.CodeUnauthenticated))
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	ua := strings.Repeat("a", 254) + "é" + "tail"
	got := truncate(ua, 255)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, strings.Repeat("a", 254), got)

	assert.Equal(t, "short", truncate("short", 255))
	assert.Equal(t, "ok", truncate("o\xffk", 255))
	assert.Equal(t, "日本", truncate("日本語", 7))
}
