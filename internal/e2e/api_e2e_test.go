package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"

	authrepository "github.com/briefly-app/briefly/internal/auth/repository"
	authservice "github.com/briefly-app/briefly/internal/auth/service"
	"github.com/briefly-app/briefly/internal/clock"
	"github.com/briefly-app/briefly/internal/config"
	creditsdomain "github.com/briefly-app/briefly/internal/credits/domain"
	creditsservice "github.com/briefly-app/briefly/internal/credits/service"
	obsmetrics "github.com/briefly-app/briefly/internal/observability/metrics"
	paymentdomain "github.com/briefly-app/briefly/internal/payment/domain"
	paymentrepository "github.com/briefly-app/briefly/internal/payment/repository"
	paymentservice "github.com/briefly-app/briefly/internal/payment/service"
	referraldomain "github.com/briefly-app/briefly/internal/referral/domain"
	referralservice "github.com/briefly-app/briefly/internal/referral/service"
	"github.com/briefly-app/briefly/internal/server"
	subscriptionservice "github.com/briefly-app/briefly/internal/subscription/service"
	"github.com/briefly-app/briefly/internal/summarizer/adapters"
	summarizerdomain "github.com/briefly-app/briefly/internal/summarizer/domain"
	summaryservice "github.com/briefly-app/briefly/internal/summary/service"
	usagedomain "github.com/briefly-app/briefly/internal/usage/domain"
	usageservice "github.com/briefly-app/briefly/internal/usage/service"
	userdomain "github.com/briefly-app/briefly/internal/user/domain"
	userrepository "github.com/briefly-app/briefly/internal/user/repository"
	videodomain "github.com/briefly-app/briefly/internal/video/domain"
	videorepository "github.com/briefly-app/briefly/internal/video/repository"
)

const jwtSecret = "e2e-secret"

type stubProvider struct{}

func (stubProvider) Name() videodomain.Provider { return videodomain.ProviderOpenAI }

func (stubProvider) Summarize(ctx context.Context, req summarizerdomain.Request) (*summarizerdomain.Result, error) {
	return &summarizerdomain.Result{
		Summary:   "an end to end summary",
		KeyPoints: []string{"point"},
		Model:     "stub",
	}, nil
}

type stubMetadata struct{}

func (stubMetadata) Resolve(ctx context.Context, videoID string) (videodomain.Metadata, error) {
	return videodomain.Metadata{Title: "E2E Video"}, nil
}

type stubTranscripts struct{}

func (stubTranscripts) GetOrFetch(ctx context.Context, video *videodomain.Video) (*videodomain.Transcript, bool, error) {
	return &videodomain.Transcript{
		VideoRef: video.ID,
		Text:     "transcript text",
		Source:   videodomain.TranscriptSourceAuto,
	}, false, nil
}

type stubGateway struct{}

func (stubGateway) CreateOrder(ctx context.Context, amountCents int64, currency, receipt string, notes map[string]string) (*paymentdomain.GatewayOrder, error) {
	return &paymentdomain.GatewayOrder{ID: "order_" + receipt, Amount: amountCents, Currency: currency, Status: "created"}, nil
}

type testEnv struct {
	db      *gorm.DB
	node    *snowflake.Node
	fake    *clock.FakeClock
	baseURL string
	client  *http.Client
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&userdomain.User{},
		&userdomain.RefreshToken{},
		&referraldomain.ReferralUse{},
		&creditsdomain.CreditTransaction{},
		&videodomain.Video{},
		&videodomain.Transcript{},
		&videodomain.Summary{},
		&videodomain.VideoAccess{},
		&usagedomain.UsageLog{},
		&paymentdomain.PaymentOrder{},
		&paymentdomain.WebhookEvent{},
	))

	fake := clock.NewFakeClock(time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC))
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	log := zaptest.NewLogger(t)
	plans := config.NewStaticPlanConfigHolder(config.DefaultPlanConfig())

	cfg := config.Config{
		Environment:          "test",
		AuthJWTSecret:        jwtSecret,
		AccessTokenTTL:       15 * time.Minute,
		RefreshTokenTTL:      30 * 24 * time.Hour,
		PaymentKeyID:         "rzp_test",
		PaymentKeySecret:     "checkout-secret",
		PaymentWebhookSecret: "webhook-secret",
		CacheTTL:             30 * 24 * time.Hour,
		GenerationTimeout:    10 * time.Second,
	}

	users := userrepository.Provide(userrepository.Params{DB: db})
	videos := videorepository.Provide(videorepository.Params{DB: db, Log: log, GenID: node})
	credits := creditsservice.NewService(creditsservice.Params{
		DB: db, Log: log, GenID: node, Clock: fake,
	})
	usage := usageservice.NewService(usageservice.Params{
		DB: db, Log: log, GenID: node, Clock: fake,
	})
	referrals := referralservice.NewService(referralservice.Params{
		DB: db, Log: log, GenID: node, Clock: fake,
		Users: users, Credits: credits, PlanCfg: plans,
	})
	subscriptions := subscriptionservice.NewService(subscriptionservice.Params{
		DB: db, Log: log, Clock: fake, Credits: credits, PlanCfg: plans,
	})
	authsvc := authservice.NewService(authservice.Params{
		Cfg: cfg, Log: log, Clock: fake, GenID: node, PlanCfg: plans,
		Users: users, Tokens: authrepository.Provide(authrepository.Params{DB: db}),
		Credits: credits, Referrals: referrals,
	})
	summaries := summaryservice.NewService(summaryservice.Params{
		Cfg: cfg, Log: log, Clock: fake, GenID: node,
		Users: users, Videos: videos, Metadata: stubMetadata{},
		Credits: credits, Transcripts: stubTranscripts{},
		Providers: adapters.NewRegistry(stubProvider{}), Usage: usage,
	})
	payments := paymentservice.NewService(paymentservice.Params{
		Cfg: cfg, Log: log, Clock: fake, GenID: node, PlanCfg: plans,
		Gateway: stubGateway{},
		Repo:    paymentrepository.Provide(paymentrepository.Params{DB: db}),
		Subscriptions: subscriptions,
	})

	engine := server.NewEngine(obsmetrics.NewHTTPMetrics(prometheus.NewRegistry()))
	server.NewServer(server.ServerParams{
		Gin: engine, Cfg: cfg, Log: log,
		Authsvc: authsvc, SummarySvc: summaries, CreditsSvc: credits,
		UsageSvc: usage, PaymentSvc: payments, Users: users, Plans: plans,
	})

	srv := httptest.NewServer(engine)
	t.Cleanup(srv.Close)

	return &testEnv{
		db:      db,
		node:    node,
		fake:    fake,
		baseURL: srv.URL,
		client:  srv.Client(),
	}
}

func (e *testEnv) seedUser(t *testing.T, balance int) *userdomain.User {
	t.Helper()

	user := &userdomain.User{
		ID:                e.node.Generate(),
		Email:             fmt.Sprintf("%s@example.com", e.node.Generate()),
		Plan:              userdomain.PlanFree,
		CreditsBalance:    balance,
		MonthlyAllocation: 30,
		NextResetAt:       time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
		ReferralCode:      e.node.Generate().String(),
	}
	require.NoError(t, e.db.Create(user).Error)
	return user
}

func (e *testEnv) accessToken(t *testing.T, user *userdomain.User) string {
	t.Helper()

	now := e.fake.Now()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": user.ID.String(),
		"iat": now.Unix(),
		"exp": now.Add(15 * time.Minute).Unix(),
	}).SignedString([]byte(jwtSecret))
	require.NoError(t, err)
	return token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, e.baseURL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var parsed map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&parsed))
	return resp, parsed
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}

func TestAuthCodes(t *testing.T) {
	env := newTestEnv(t)

	t.Run("no token", func(t *testing.T) {
		resp, body := env.do(t, http.MethodGet, "/api/v1/me", "", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "NO_TOKEN", body["error"])
	})

	t.Run("garbage token", func(t *testing.T) {
		resp, body := env.do(t, http.MethodGet, "/api/v1/me", "garbage", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "INVALID_TOKEN", body["error"])
	})

	t.Run("expired token", func(t *testing.T) {
		user := env.seedUser(t, 5)
		token := env.accessToken(t, user)
		env.fake.Advance(16 * time.Minute)
		defer env.fake.Set(time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC))

		resp, body := env.do(t, http.MethodGet, "/api/v1/me", token, nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "TOKEN_EXPIRED", body["error"])
	})

	t.Run("token for missing user", func(t *testing.T) {
		ghost := &userdomain.User{ID: env.node.Generate()}
		resp, body := env.do(t, http.MethodGet, "/api/v1/me", env.accessToken(t, ghost), nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "INVALID_USER", body["error"])
	})
}

func TestSummarizeEndpoint(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, 5)
	token := env.accessToken(t, user)

	payload := map[string]string{"video": "https://youtu.be/dQw4w9WgXcQ"}

	resp, body := env.do(t, http.MethodPost, "/api/v1/summarize", token, payload)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, false, body["cached"])
	assert.Equal(t, float64(4), body["credits_remaining"])

	summary, ok := body["summary"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "an end to end summary", summary["summary"])

	// the same video comes back from the cache
	resp, body = env.do(t, http.MethodPost, "/api/v1/summarize", token, payload)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["cached"])
	assert.Equal(t, float64(3), body["credits_remaining"])

	t.Run("invalid video", func(t *testing.T) {
		resp, body := env.do(t, http.MethodPost, "/api/v1/summarize", token, map[string]string{"video": "nope"})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "invalid_video_id", body["error"])
	})

	t.Run("insufficient credits", func(t *testing.T) {
		broke := env.seedUser(t, 0)
		resp, body := env.do(t, http.MethodPost, "/api/v1/summarize", env.accessToken(t, broke), payload)
		assert.Equal(t, http.StatusPaymentRequired, resp.StatusCode)
		assert.Equal(t, "insufficient_credits", body["error"])
		assert.Equal(t, float64(0), body["credits_remaining"])
	})

	t.Run("daily limit", func(t *testing.T) {
		capped := env.seedUser(t, 20)
		capped.SummariesToday = 10
		require.NoError(t, env.db.Save(capped).Error)

		resp, body := env.do(t, http.MethodPost, "/api/v1/summarize", env.accessToken(t, capped), payload)
		assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
		assert.Equal(t, "daily_limit_reached", body["error"])
	})
}

func TestMeEndpoint(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, 7)

	resp, body := env.do(t, http.MethodGet, "/api/v1/me", env.accessToken(t, user), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	view, ok := body["user"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, user.Email, view["email"])
	assert.Equal(t, float64(7), view["credits_balance"])
	assert.Equal(t, user.ID.String(), view["id"])
}

func TestWebhookEndpoint(t *testing.T) {
	env := newTestEnv(t)

	body := []byte(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_1","order_id":"order_x"}}}}`)

	req, err := http.NewRequest(http.MethodPost, env.baseURL+"/payments/webhook", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("X-Razorpay-Signature", "not-a-signature")

	resp, err := env.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var events int64
	require.NoError(t, env.db.Model(&paymentdomain.WebhookEvent{}).Count(&events).Error)
	assert.Zero(t, events)
}
