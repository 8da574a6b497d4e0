package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/briefly-app/briefly/internal/clock"
	"github.com/briefly-app/briefly/internal/config"
	"github.com/briefly-app/briefly/internal/payment/domain"
	subscriptiondomain "github.com/briefly-app/briefly/internal/subscription/domain"
	userdomain "github.com/briefly-app/briefly/internal/user/domain"
)

type Params struct {
	fx.In

	Cfg           config.Config
	Log           *zap.Logger
	Clock         clock.Clock
	GenID         *snowflake.Node
	PlanCfg       *config.PlanConfigHolder
	Gateway       domain.Gateway
	Repo          domain.Repository
	Subscriptions subscriptiondomain.Service
}

type service struct {
	cfg           config.Config
	log           *zap.Logger
	clock         clock.Clock
	genID         *snowflake.Node
	planCfg       *config.PlanConfigHolder
	gateway       domain.Gateway
	repo          domain.Repository
	subscriptions subscriptiondomain.Service
}

func NewService(p Params) domain.Service {
	return &service{
		cfg:           p.Cfg,
		log:           p.Log.Named("payment.service"),
		clock:         p.Clock,
		genID:         p.GenID,
		planCfg:       p.PlanCfg,
		gateway:       p.Gateway,
		repo:          p.Repo,
		subscriptions: p.Subscriptions,
	}
}

func (s *service) CreateOrder(ctx context.Context, userID snowflake.ID, cycle userdomain.BillingCycle) (*domain.PaymentOrder, error) {
	if cycle != userdomain.BillingCycleMonthly && cycle != userdomain.BillingCycleYearly {
		cycle = userdomain.BillingCycleMonthly
	}

	plan := s.planCfg.Get()
	amount := plan.PriceCents(string(cycle))
	orderID := s.genID.Generate()

	gatewayOrder, err := s.gateway.CreateOrder(ctx, amount, plan.Currency, orderID.String(), map[string]string{
		"user_id": userID.String(),
		"cycle":   string(cycle),
	})
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	order := &domain.PaymentOrder{
		ID:              orderID,
		UserID:          userID,
		ProviderOrderID: gatewayOrder.ID,
		AmountCents:     amount,
		Currency:        plan.Currency,
		Cycle:           cycle,
		Status:          domain.OrderStatusCreated,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.repo.CreateOrder(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *service) VerifyCheckout(ctx context.Context, userID snowflake.ID, providerOrderID, paymentID, signature string) error {
	signed := providerOrderID + "|" + paymentID
	if !verifyHMAC([]byte(signed), signature, s.cfg.PaymentKeySecret) {
		return domain.ErrInvalidSignature
	}

	order, err := s.repo.FindOrderByProviderID(ctx, providerOrderID)
	if err != nil {
		return err
	}
	if order.UserID != userID {
		return domain.ErrOrderNotFound
	}

	return s.settleOrder(ctx, order, paymentID)
}

type webhookEnvelope struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID      string            `json:"id"`
				OrderID string            `json:"order_id"`
				Notes   map[string]string `json:"notes"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
	CreatedAt int64 `json:"created_at"`
}

func (s *service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	// Verification runs over the raw body, before any parsing, and a
	// mismatch mutates nothing.
	if !verifyHMAC(payload, signature, s.cfg.PaymentWebhookSecret) {
		return domain.ErrInvalidSignature
	}

	var envelope webhookEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return domain.ErrInvalidPayload
	}
	if strings.TrimSpace(envelope.Event) == "" {
		return domain.ErrInvalidPayload
	}

	if envelope.Event != "payment.captured" {
		return domain.ErrEventIgnored
	}

	payment := envelope.Payload.Payment.Entity
	if payment.ID == "" || payment.OrderID == "" {
		return domain.ErrInvalidPayload
	}

	created, err := s.repo.RecordEvent(ctx, &domain.WebhookEvent{
		ID:         s.genID.Generate(),
		EventID:    payment.ID,
		EventType:  envelope.Event,
		ReceivedAt: s.clock.Now(),
	})
	if err != nil {
		return err
	}
	if !created {
		s.log.Info("webhook event replayed, skipping",
			zap.String("event_id", payment.ID),
		)
		return nil
	}

	order, err := s.repo.FindOrderByProviderID(ctx, payment.OrderID)
	if err != nil {
		return err
	}
	return s.settleOrder(ctx, order, payment.ID)
}

// settleOrder activates the subscription for a paid order. Re-settling an
// already-paid order is a no-op.
func (s *service) settleOrder(ctx context.Context, order *domain.PaymentOrder, paymentID string) error {
	if order.Status == domain.OrderStatusPaid {
		return nil
	}

	now := s.clock.Now()
	if err := s.subscriptions.Activate(ctx, order.UserID, order.Cycle, now); err != nil {
		return fmt.Errorf("activate subscription: %w", err)
	}

	order.Status = domain.OrderStatusPaid
	order.PaymentID = paymentID
	order.UpdatedAt = now
	if err := s.repo.SaveOrder(ctx, order); err != nil {
		return err
	}

	s.log.Info("subscription activated",
		zap.Int64("user_id", int64(order.UserID)),
		zap.String("order_id", order.ProviderOrderID),
		zap.String("cycle", string(order.Cycle)),
	)
	return nil
}

func (s *service) Cancel(ctx context.Context, userID snowflake.ID) error {
	return s.subscriptions.CancelAtPeriodEnd(ctx, userID)
}

func (s *service) History(ctx context.Context, userID snowflake.ID, limit int) ([]domain.PaymentOrder, error) {
	return s.repo.ListOrders(ctx, userID, limit)
}

func verifyHMAC(payload []byte, signature, secret string) bool {
	signature = strings.TrimSpace(signature)
	if signature == "" || secret == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(signature), []byte(expected))
}
