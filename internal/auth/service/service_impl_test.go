package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/oauth2"
	"gorm.io/gorm"

	"github.com/briefly-app/briefly/internal/auth/domain"
	authrepository "github.com/briefly-app/briefly/internal/auth/repository"
	"github.com/briefly-app/briefly/internal/clock"
	"github.com/briefly-app/briefly/internal/config"
	creditsdomain "github.com/briefly-app/briefly/internal/credits/domain"
	creditsservice "github.com/briefly-app/briefly/internal/credits/service"
	referraldomain "github.com/briefly-app/briefly/internal/referral/domain"
	referralservice "github.com/briefly-app/briefly/internal/referral/service"
	userdomain "github.com/briefly-app/briefly/internal/user/domain"
	userrepository "github.com/briefly-app/briefly/internal/user/repository"
)

// rewriteTransport sends every outbound request to the local test server so
// the OAuth exchange and userinfo fetch never leave the process.
type rewriteTransport struct {
	host string
}

func (t rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.URL.Scheme = "http"
	req.URL.Host = t.host
	return http.DefaultTransport.RoundTrip(req)
}

type authFixture struct {
	db      *gorm.DB
	node    *snowflake.Node
	fake    *clock.FakeClock
	svc     domain.Service
	credits creditsdomain.Service

	// profile served by the fake userinfo endpoint
	googleID string
	email    string
	name     string

	oauthCtx context.Context
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&userdomain.User{},
		&userdomain.RefreshToken{},
		&referraldomain.ReferralUse{},
		&creditsdomain.CreditTransaction{},
	))

	fake := clock.NewFakeClock(time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC))
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	log := zaptest.NewLogger(t)
	plans := config.NewStaticPlanConfigHolder(config.DefaultPlanConfig())

	users := userrepository.Provide(userrepository.Params{DB: db})
	credits := creditsservice.NewService(creditsservice.Params{
		DB: db, Log: log, GenID: node, Clock: fake,
	})
	referrals := referralservice.NewService(referralservice.Params{
		DB: db, Log: log, GenID: node, Clock: fake,
		Users: users, Credits: credits, PlanCfg: plans,
	})

	f := &authFixture{
		db: db, node: node, fake: fake, credits: credits,
		googleID: "google-123",
		email:    "new@example.com",
		name:     "New User",
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "google-access-token",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/oauth2/v2/userinfo", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      f.googleID,
			"email":   f.email,
			"name":    f.name,
			"picture": "https://example.com/avatar.png",
		})
	})
	google := httptest.NewServer(mux)
	t.Cleanup(google.Close)

	f.oauthCtx = context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{
		Transport: rewriteTransport{host: strings.TrimPrefix(google.URL, "http://")},
	})

	f.svc = NewService(Params{
		Cfg: config.Config{
			AuthJWTSecret:      "unit-test-secret",
			AccessTokenTTL:     15 * time.Minute,
			RefreshTokenTTL:    30 * 24 * time.Hour,
			GoogleClientID:     "client-id",
			GoogleClientSecret: "client-secret",
			GoogleRedirectURL:  "http://localhost/auth/google/callback",
		},
		Log:       log,
		Clock:     fake,
		GenID:     node,
		PlanCfg:   plans,
		Users:     users,
		Tokens:    authrepository.Provide(authrepository.Params{DB: db}),
		Credits:   credits,
		Referrals: referrals,
	})
	return f
}

func (f *authFixture) signIn(t *testing.T, referralCode string) (*domain.TokenPair, *userdomain.User) {
	t.Helper()

	pair, user, err := f.svc.GoogleCallback(f.oauthCtx, "auth-code", referralCode)
	require.NoError(t, err)
	return pair, user
}

func TestGoogleAuthURL(t *testing.T) {
	f := newAuthFixture(t)

	url := f.svc.GoogleAuthURL("REF123")
	assert.Contains(t, url, "client_id=client-id")
	assert.Contains(t, url, "state=REF123")
}

func TestGoogleCallbackSignup(t *testing.T) {
	f := newAuthFixture(t)

	pair, user := f.signIn(t, "")
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.Equal(t, int64(900), pair.ExpiresIn)

	assert.Equal(t, "new@example.com", user.Email)
	assert.Equal(t, userdomain.PlanFree, user.Plan)
	assert.NotEmpty(t, user.ReferralCode)

	// the signup allocation goes through the ledger
	assert.Equal(t, 30, user.CreditsBalance)
	var entries []creditsdomain.CreditTransaction
	require.NoError(t, f.db.Where("user_id = ?", user.ID).Find(&entries).Error)
	require.Len(t, entries, 1)
	assert.Equal(t, creditsdomain.KindBonus, entries[0].Kind)
	assert.Equal(t, 30, entries[0].Amount)

	// a returning user signs in without a second allocation
	_, again, err := f.svc.GoogleCallback(f.oauthCtx, "auth-code", "")
	require.NoError(t, err)
	assert.Equal(t, user.ID, again.ID)
	assert.Equal(t, 30, again.CreditsBalance)
}

func TestGoogleCallbackWithReferral(t *testing.T) {
	f := newAuthFixture(t)

	_, referrer := f.signIn(t, "")

	f.googleID = "google-456"
	f.email = "referred@example.com"
	_, referred := f.signIn(t, referrer.ReferralCode)

	// 30 signup allocation plus the 5 welcome bonus
	assert.Equal(t, 35, referred.CreditsBalance)

	var got userdomain.User
	require.NoError(t, f.db.First(&got, "id = ?", referrer.ID).Error)
	assert.Equal(t, 1, got.TotalReferrals)
	assert.Equal(t, 30+50, got.CreditsBalance)

	t.Run("bad referral code never blocks signup", func(t *testing.T) {
		f.googleID = "google-789"
		f.email = "third@example.com"
		_, user := f.signIn(t, "NOSUCHCODE")
		assert.Equal(t, 30, user.CreditsBalance)
	})
}

func TestGoogleCallbackLinksExistingEmail(t *testing.T) {
	f := newAuthFixture(t)

	existing := &userdomain.User{
		ID:                f.node.Generate(),
		Email:             "new@example.com",
		Plan:              userdomain.PlanFree,
		CreditsBalance:    12,
		MonthlyAllocation: 30,
		NextResetAt:       time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
		ReferralCode:      "EXISTING",
	}
	require.NoError(t, f.db.Create(existing).Error)

	_, user := f.signIn(t, "")
	assert.Equal(t, existing.ID, user.ID)
	assert.Equal(t, "google-123", user.GoogleID)
	assert.Equal(t, 12, user.CreditsBalance, "linking is not a signup")
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)
	pair, user := f.signIn(t, "")

	t.Run("valid token", func(t *testing.T) {
		got, err := f.svc.Authenticate(ctx, pair.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, user.ID, got.ID)
	})

	t.Run("empty token", func(t *testing.T) {
		_, err := f.svc.Authenticate(ctx, "")
		assert.ErrorIs(t, err, domain.ErrNoToken)
	})

	t.Run("garbage token", func(t *testing.T) {
		_, err := f.svc.Authenticate(ctx, "not.a.jwt")
		assert.ErrorIs(t, err, domain.ErrInvalidToken)
	})

	t.Run("expired token", func(t *testing.T) {
		f.fake.Advance(16 * time.Minute)
		defer f.fake.Set(time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC))

		_, err := f.svc.Authenticate(ctx, pair.AccessToken)
		assert.ErrorIs(t, err, domain.ErrTokenExpired)
	})

	t.Run("token for a deleted user", func(t *testing.T) {
		require.NoError(t, f.db.Delete(&userdomain.User{}, "id = ?", user.ID).Error)

		_, err := f.svc.Authenticate(ctx, pair.AccessToken)
		assert.ErrorIs(t, err, domain.ErrInvalidUser)
	})
}

func TestRefreshRotation(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)
	pair, user := f.signIn(t, "")

	rotated, err := f.svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)

	got, err := f.svc.Authenticate(ctx, rotated.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	t.Run("rotated token is single use", func(t *testing.T) {
		_, err := f.svc.Refresh(ctx, pair.RefreshToken)
		assert.ErrorIs(t, err, domain.ErrInvalidToken)
	})

	t.Run("expired refresh token", func(t *testing.T) {
		f.fake.Advance(31 * 24 * time.Hour)
		defer f.fake.Set(time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC))

		_, err := f.svc.Refresh(ctx, rotated.RefreshToken)
		assert.ErrorIs(t, err, domain.ErrInvalidToken)
	})

	t.Run("empty refresh token", func(t *testing.T) {
		_, err := f.svc.Refresh(ctx, "")
		assert.ErrorIs(t, err, domain.ErrNoToken)
	})
}

func TestLogout(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)
	pair, _ := f.signIn(t, "")

	require.NoError(t, f.svc.Logout(ctx, pair.RefreshToken))

	_, err := f.svc.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)

	// logging out with no token is a no-op
	require.NoError(t, f.svc.Logout(ctx, ""))
}
