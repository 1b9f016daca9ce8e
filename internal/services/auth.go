package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"gorm.io/gorm"

	"github.com/cognivue/cognivue-backend/internal/data/repos"
	types "github.com/cognivue/cognivue-backend/internal/domain"
	"github.com/cognivue/cognivue-backend/internal/observability"
	"github.com/cognivue/cognivue-backend/internal/platform/apierr"
	"github.com/cognivue/cognivue-backend/internal/platform/ctxutil"
	"github.com/cognivue/cognivue-backend/internal/platform/dbctx"
	"github.com/cognivue/cognivue-backend/internal/platform/logger"
)

const (
	DefaultSessionTTL = 7 * 24 * time.Hour
	oauthStateTTL     = 10 * time.Minute
)

// OAuthExchanger is the part of *oauth2.Config the login flow uses.
type OAuthExchanger interface {
	AuthCodeURL(state string, opts ...oauth2.AuthCodeOption) string
	Exchange(ctx context.Context, code string, opts ...oauth2.AuthCodeOption) (*oauth2.Token, error)
}

func NewGoogleOAuthConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Endpoint:     google.Endpoint,
		Scopes:       []string{"openid", "email", "profile"},
	}
}

type JWTClaims struct {
	jwt.RegisteredClaims
}

type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      *types.User
	Created   bool
}

type AuthService interface {
	BeginGoogleLogin(ctx context.Context) (string, error)
	CompleteGoogleLogin(ctx context.Context, state, code, userAgent string) (*LoginResult, error)
	SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error)
	Logout(ctx context.Context) error
	SessionTTL() time.Duration
}

type authService struct {
	db            *gorm.DB
	log           *logger.Logger
	userRepo      repos.UserRepo
	userTokenRepo repos.UserTokenRepo
	states        repos.OAuthStateStore
	oauth         OAuthExchanger
	verifier      IDTokenVerifier
	jwtSecretKey  string
	sessionTTL    time.Duration
	now           func() time.Time
}

func NewAuthService(
	db *gorm.DB,
	log *logger.Logger,
	userRepo repos.UserRepo,
	userTokenRepo repos.UserTokenRepo,
	states repos.OAuthStateStore,
	oauth OAuthExchanger,
	verifier IDTokenVerifier,
	jwtSecretKey string,
	sessionTTL time.Duration,
) AuthService {
	if sessionTTL <= 0 {
		sessionTTL = DefaultSessionTTL
	}
	return &authService{
		db:            db,
		log:           log.With("service", "AuthService"),
		userRepo:      userRepo,
		userTokenRepo: userTokenRepo,
		states:        states,
		oauth:         oauth,
		verifier:      verifier,
		jwtSecretKey:  jwtSecretKey,
		sessionTTL:    sessionTTL,
		now:           time.Now,
	}
}

func (as *authService) SessionTTL() time.Duration { return as.sessionTTL }

func randomToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// BeginGoogleLogin records a fresh state+nonce pair and returns the consent
// screen URL.
func (as *authService) BeginGoogleLogin(ctx context.Context) (string, error) {
	state, err := randomToken()
	if err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	nonce, err := randomToken()
	if err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	if err := as.states.Save(ctx, state, nonce, oauthStateTTL); err != nil {
		return "", fmt.Errorf("save oauth state: %w", err)
	}
	return as.oauth.AuthCodeURL(state,
		oauth2.AccessTypeOnline,
		oauth2.SetAuthURLParam("nonce", nonce),
		oauth2.SetAuthURLParam("prompt", "select_account consent"),
	), nil
}

func (as *authService) CompleteGoogleLogin(ctx context.Context, state, code, userAgent string) (*LoginResult, error) {
	metrics := observability.Current()
	if strings.TrimSpace(state) == "" || strings.TrimSpace(code) == "" {
		metrics.IncLogin("rejected")
		return nil, apierr.Validation("OAuth authentication failed: missing code or state")
	}
	nonce, err := as.states.Consume(ctx, state)
	if err != nil {
		metrics.IncLogin("rejected")
		if errors.Is(err, repos.ErrOAuthStateNotFound) {
			return nil, apierr.Unauthenticated("Login attempt expired. Please sign in again.")
		}
		return nil, fmt.Errorf("consume oauth state: %w", err)
	}

	tok, err := as.oauth.Exchange(ctx, code)
	if err != nil {
		metrics.IncLogin("error")
		as.log.Warn("OAuth code exchange failed", "error", err)
		return nil, apierr.Unauthenticated("OAuth authentication failed").WithDetails(err.Error())
	}
	rawID, _ := tok.Extra("id_token").(string)
	if rawID == "" {
		metrics.IncLogin("error")
		return nil, apierr.Unauthenticated("OAuth authentication failed").WithDetails("token response had no id_token")
	}
	identity, err := as.verifier.Verify(ctx, rawID, nonce)
	if err != nil {
		metrics.IncLogin("rejected")
		as.log.Warn("id_token verification failed", "error", err)
		return nil, apierr.Unauthenticated("OAuth authentication failed").WithDetails(err.Error())
	}
	if identity.Email == "" || !identity.EmailVerified {
		metrics.IncLogin("rejected")
		return nil, apierr.Unauthenticated("User email not available or not verified by Google.")
	}

	var out *LoginResult
	err = as.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inner := dbctx.Context{Ctx: ctx, Tx: tx}
		u, created, err := as.upsertUser(inner, identity)
		if err != nil {
			return err
		}
		token, expiresAt, err := as.issueToken(inner, u, userAgent)
		if err != nil {
			return err
		}
		out = &LoginResult{Token: token, ExpiresAt: expiresAt, User: u, Created: created}
		return nil
	})
	if err != nil {
		metrics.IncLogin("error")
		as.log.Warn("Login transaction failed", "error", err)
		return nil, err
	}
	metrics.IncLogin("ok")
	as.log.Info("User logged in", "user_id", out.User.ID, "new", out.Created)
	return out, nil
}

func (as *authService) upsertUser(dbc dbctx.Context, id *GoogleIdentity) (*types.User, bool, error) {
	username := id.GivenName
	if username == "" {
		username = (&types.User{Email: id.Email}).DisplayName()
	}
	u, created, err := as.userRepo.GetOrCreateByEmail(dbc, &types.User{
		Email:     id.Email,
		Username:  username,
		AvatarURL: id.Picture,
		GoogleID:  id.Sub,
	})
	if err != nil {
		return nil, false, fmt.Errorf("get or create user: %w", err)
	}
	if created {
		return u, true, nil
	}

	var upd repos.ProfileUpdate
	if id.Picture != "" && u.AvatarURL != id.Picture {
		upd.AvatarURL = &id.Picture
		u.AvatarURL = id.Picture
	}
	if username != "" && u.Username != username {
		upd.Username = &username
		u.Username = username
	}
	if u.GoogleID == "" && id.Sub != "" {
		upd.GoogleID = &id.Sub
		u.GoogleID = id.Sub
	}
	if err := as.userRepo.UpdateProfile(dbc, u.ID, upd); err != nil {
		return nil, false, fmt.Errorf("refresh profile: %w", err)
	}
	return u, false, nil
}

// issueToken signs a session JWT whose jti is a user_token row id.
func (as *authService) issueToken(dbc dbctx.Context, u *types.User, userAgent string) (string, time.Time, error) {
	now := as.now().UTC()
	expiresAt := now.Add(as.sessionTTL)
	row := &types.UserToken{
		ID:        uuid.New(),
		UserID:    u.ID,
		ExpiresAt: expiresAt,
		UserAgent: truncate(userAgent, 255),
	}
	if _, err := as.userTokenRepo.Create(dbc, []*types.UserToken{row}); err != nil {
		return "", time.Time{}, fmt.Errorf("create user token: %w", err)
	}
	claims := JWTClaims{RegisteredClaims: jwt.RegisteredClaims{
		ID:        row.ID.String(),
		Subject:   u.ID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(as.jwtSecretKey))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// truncate caps s at n bytes without splitting a rune. Invalid UTF-8 is
// dropped since text columns reject it.
func truncate(s string, n int) string {
	s = strings.ToValidUTF8(s, "")
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// SetContextFromToken attaches the caller to ctx. The token must verify and
// its jti row must still exist.
func (as *authService) SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error) {
	if strings.TrimSpace(tokenString) == "" {
		return ctx, apierr.Unauthenticated("Authentication required")
	}
	var claims JWTClaims
	parsed, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(as.jwtSecretKey), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(as.now),
	)
	if err != nil || !parsed.Valid {
		return ctx, apierr.Unauthenticated("Authentication required")
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return ctx, apierr.Unauthenticated("Authentication required")
	}
	tokenID, err := uuid.Parse(claims.ID)
	if err != nil {
		return ctx, apierr.Unauthenticated("Authentication required")
	}
	row, err := as.userTokenRepo.GetByID(dbctx.Context{Ctx: ctx}, tokenID)
	if err != nil {
		return ctx, fmt.Errorf("load user token: %w", err)
	}
	if row == nil || row.UserID != userID || !row.ExpiresAt.After(as.now()) {
		return ctx, apierr.Unauthenticated("Authentication required")
	}
	return ctxutil.WithRequestData(ctx, &ctxutil.RequestData{
		UserID:  userID,
		TokenID: tokenID,
		Token:   tokenString,
	}), nil
}

// Logout revokes the token attached to ctx. A context without one is a no-op.
func (as *authService) Logout(ctx context.Context) error {
	rd := ctxutil.GetRequestData(ctx)
	if rd == nil || rd.TokenID == uuid.Nil {
		return nil
	}
	if err := as.userTokenRepo.DeleteByIDs(dbctx.Context{Ctx: ctx}, []uuid.UUID{rd.TokenID}); err != nil {
		as.log.Warn("Error deleting user token", "error", err)
		return fmt.Errorf("delete user token: %w", err)
	}
	return nil
}
