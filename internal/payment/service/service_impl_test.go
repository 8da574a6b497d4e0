package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"

	"github.com/briefly-app/briefly/internal/clock"
	"github.com/briefly-app/briefly/internal/config"
	creditsdomain "github.com/briefly-app/briefly/internal/credits/domain"
	creditsservice "github.com/briefly-app/briefly/internal/credits/service"
	"github.com/briefly-app/briefly/internal/payment/domain"
	paymentrepository "github.com/briefly-app/briefly/internal/payment/repository"
	subscriptionservice "github.com/briefly-app/briefly/internal/subscription/service"
	userdomain "github.com/briefly-app/briefly/internal/user/domain"
)

const (
	testKeySecret     = "checkout-secret"
	testWebhookSecret = "webhook-secret"
)

type stubGateway struct {
	orders int
	err    error
}

func (g *stubGateway) CreateOrder(ctx context.Context, amountCents int64, currency, receipt string, notes map[string]string) (*domain.GatewayOrder, error) {
	g.orders++
	if g.err != nil {
		return nil, g.err
	}
	return &domain.GatewayOrder{
		ID:       fmt.Sprintf("order_gw%d", g.orders),
		Amount:   amountCents,
		Currency: currency,
		Status:   "created",
	}, nil
}

type paymentFixture struct {
	db      *gorm.DB
	node    *snowflake.Node
	fake    *clock.FakeClock
	svc     domain.Service
	gateway *stubGateway
}

func newPaymentFixture(t *testing.T) *paymentFixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&userdomain.User{},
		&creditsdomain.CreditTransaction{},
		&domain.PaymentOrder{},
		&domain.WebhookEvent{},
	))

	fake := clock.NewFakeClock(time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC))
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	log := zaptest.NewLogger(t)
	plans := config.NewStaticPlanConfigHolder(config.DefaultPlanConfig())

	credits := creditsservice.NewService(creditsservice.Params{
		DB: db, Log: log, GenID: node, Clock: fake,
	})
	subscriptions := subscriptionservice.NewService(subscriptionservice.Params{
		DB: db, Log: log, Clock: fake, Credits: credits, PlanCfg: plans,
	})

	gateway := &stubGateway{}
	svc := NewService(Params{
		Cfg: config.Config{
			PaymentKeyID:         "rzp_test_key",
			PaymentKeySecret:     testKeySecret,
			PaymentWebhookSecret: testWebhookSecret,
		},
		Log:           log,
		Clock:         fake,
		GenID:         node,
		PlanCfg:       plans,
		Gateway:       gateway,
		Repo:          paymentrepository.Provide(paymentrepository.Params{DB: db}),
		Subscriptions: subscriptions,
	})

	return &paymentFixture{db: db, node: node, fake: fake, svc: svc, gateway: gateway}
}

func (f *paymentFixture) seedUser(t *testing.T) *userdomain.User {
	t.Helper()

	user := &userdomain.User{
		ID:                f.node.Generate(),
		Email:             fmt.Sprintf("%s@example.com", f.node.Generate()),
		Plan:              userdomain.PlanFree,
		CreditsBalance:    5,
		MonthlyAllocation: 30,
		NextResetAt:       time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
		ReferralCode:      f.node.Generate().String(),
	}
	require.NoError(t, f.db.Create(user).Error)
	return user
}

func (f *paymentFixture) reload(t *testing.T, id snowflake.ID) *userdomain.User {
	t.Helper()

	var user userdomain.User
	require.NoError(t, f.db.First(&user, "id = ?", id).Error)
	return &user
}

func sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func capturedEvent(paymentID, orderID string) []byte {
	return []byte(fmt.Sprintf(
		`{"event":"payment.captured","payload":{"payment":{"entity":{"id":%q,"order_id":%q}}},"created_at":1750000000}`,
		paymentID, orderID,
	))
}

func TestCreateOrder(t *testing.T) {
	ctx := context.Background()
	f := newPaymentFixture(t)
	user := f.seedUser(t)

	order, err := f.svc.CreateOrder(ctx, user.ID, userdomain.BillingCycleMonthly)
	require.NoError(t, err)
	assert.Equal(t, int64(49900), order.AmountCents)
	assert.Equal(t, "INR", order.Currency)
	assert.Equal(t, domain.OrderStatusCreated, order.Status)
	assert.NotEmpty(t, order.ProviderOrderID)

	yearly, err := f.svc.CreateOrder(ctx, user.ID, userdomain.BillingCycleYearly)
	require.NoError(t, err)
	assert.Equal(t, int64(499900), yearly.AmountCents)

	// unrecognized cycles fall back to monthly
	fallback, err := f.svc.CreateOrder(ctx, user.ID, "decennial")
	require.NoError(t, err)
	assert.Equal(t, userdomain.BillingCycleMonthly, fallback.Cycle)

	t.Run("gateway failure", func(t *testing.T) {
		f.gateway.err = domain.ErrGateway
		defer func() { f.gateway.err = nil }()

		_, err := f.svc.CreateOrder(ctx, user.ID, userdomain.BillingCycleMonthly)
		assert.ErrorIs(t, err, domain.ErrGateway)
	})
}

func TestHandleWebhook(t *testing.T) {
	ctx := context.Background()
	f := newPaymentFixture(t)
	user := f.seedUser(t)

	order, err := f.svc.CreateOrder(ctx, user.ID, userdomain.BillingCycleMonthly)
	require.NoError(t, err)

	payload := capturedEvent("pay_001", order.ProviderOrderID)

	t.Run("bad signature mutates nothing", func(t *testing.T) {
		err := f.svc.HandleWebhook(ctx, payload, "deadbeef")
		assert.ErrorIs(t, err, domain.ErrInvalidSignature)

		assert.Equal(t, userdomain.PlanFree, f.reload(t, user.ID).Plan)

		var events int64
		require.NoError(t, f.db.Model(&domain.WebhookEvent{}).Count(&events).Error)
		assert.Zero(t, events)
	})

	t.Run("signature over a different body is rejected", func(t *testing.T) {
		other := capturedEvent("pay_other", order.ProviderOrderID)
		err := f.svc.HandleWebhook(ctx, payload, sign(other, testWebhookSecret))
		assert.ErrorIs(t, err, domain.ErrInvalidSignature)
	})

	t.Run("captured payment activates the subscription", func(t *testing.T) {
		require.NoError(t, f.svc.HandleWebhook(ctx, payload, sign(payload, testWebhookSecret)))

		got := f.reload(t, user.ID)
		assert.Equal(t, userdomain.PlanPro, got.Plan)
		assert.Equal(t, userdomain.SubscriptionStatusActive, got.SubscriptionStatus)

		var saved domain.PaymentOrder
		require.NoError(t, f.db.First(&saved, "id = ?", order.ID).Error)
		assert.Equal(t, domain.OrderStatusPaid, saved.Status)
		assert.Equal(t, "pay_001", saved.PaymentID)
	})

	t.Run("replay is idempotent", func(t *testing.T) {
		require.NoError(t, f.svc.HandleWebhook(ctx, payload, sign(payload, testWebhookSecret)))

		var events int64
		require.NoError(t, f.db.Model(&domain.WebhookEvent{}).Count(&events).Error)
		assert.Equal(t, int64(1), events)
	})

	t.Run("other event types are ignored", func(t *testing.T) {
		body := []byte(`{"event":"payment.failed","payload":{"payment":{"entity":{"id":"pay_002","order_id":"x"}}}}`)
		err := f.svc.HandleWebhook(ctx, body, sign(body, testWebhookSecret))
		assert.ErrorIs(t, err, domain.ErrEventIgnored)
	})

	t.Run("malformed body", func(t *testing.T) {
		body := []byte(`{"event":`)
		err := f.svc.HandleWebhook(ctx, body, sign(body, testWebhookSecret))
		assert.ErrorIs(t, err, domain.ErrInvalidPayload)
	})

	t.Run("captured event without ids", func(t *testing.T) {
		body := []byte(`{"event":"payment.captured","payload":{"payment":{"entity":{}}}}`)
		err := f.svc.HandleWebhook(ctx, body, sign(body, testWebhookSecret))
		assert.ErrorIs(t, err, domain.ErrInvalidPayload)
	})

	t.Run("unknown order", func(t *testing.T) {
		body := capturedEvent("pay_003", "order_missing")
		err := f.svc.HandleWebhook(ctx, body, sign(body, testWebhookSecret))
		assert.ErrorIs(t, err, domain.ErrOrderNotFound)
	})
}

func TestVerifyCheckout(t *testing.T) {
	ctx := context.Background()
	f := newPaymentFixture(t)
	user := f.seedUser(t)

	order, err := f.svc.CreateOrder(ctx, user.ID, userdomain.BillingCycleYearly)
	require.NoError(t, err)

	signed := sign([]byte(order.ProviderOrderID+"|pay_100"), testKeySecret)

	t.Run("bad signature", func(t *testing.T) {
		err := f.svc.VerifyCheckout(ctx, user.ID, order.ProviderOrderID, "pay_100", "nope")
		assert.ErrorIs(t, err, domain.ErrInvalidSignature)
		assert.Equal(t, userdomain.PlanFree, f.reload(t, user.ID).Plan)
	})

	t.Run("wrong user cannot settle the order", func(t *testing.T) {
		other := f.seedUser(t)
		err := f.svc.VerifyCheckout(ctx, other.ID, order.ProviderOrderID, "pay_100", signed)
		assert.ErrorIs(t, err, domain.ErrOrderNotFound)
	})

	t.Run("valid signature activates", func(t *testing.T) {
		require.NoError(t, f.svc.VerifyCheckout(ctx, user.ID, order.ProviderOrderID, "pay_100", signed))

		got := f.reload(t, user.ID)
		assert.Equal(t, userdomain.PlanPro, got.Plan)
		assert.Equal(t, userdomain.BillingCycleYearly, got.BillingCycle)

		// settling again stays a no-op
		require.NoError(t, f.svc.VerifyCheckout(ctx, user.ID, order.ProviderOrderID, "pay_100", signed))
	})
}

func TestHistory(t *testing.T) {
	ctx := context.Background()
	f := newPaymentFixture(t)
	user := f.seedUser(t)

	for i := 0; i < 3; i++ {
		_, err := f.svc.CreateOrder(ctx, user.ID, userdomain.BillingCycleMonthly)
		require.NoError(t, err)
	}

	orders, err := f.svc.History(ctx, user.ID, 2)
	require.NoError(t, err)
	assert.Len(t, orders, 2)

	orders, err = f.svc.History(ctx, f.node.Generate(), 10)
	require.NoError(t, err)
	assert.Empty(t, orders)
}
