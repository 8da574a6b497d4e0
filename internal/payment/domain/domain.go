// Package domain defines the payment gateway integration: order creation,
// checkout verification and webhook ingest.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"

	userdomain "github.com/briefly-app/briefly/internal/user/domain"
)

var (
	ErrInvalidSignature = errors.New("invalid_signature")
	ErrInvalidPayload   = errors.New("invalid_payload")
	ErrEventIgnored     = errors.New("event_ignored")
	ErrOrderNotFound    = errors.New("order_not_found")
	ErrGateway          = errors.New("payment_gateway_error")
)

// OrderStatus tracks the local view of a gateway order.
type OrderStatus string

const (
	OrderStatusCreated OrderStatus = "created"
	OrderStatusPaid    OrderStatus = "paid"
	OrderStatusFailed  OrderStatus = "failed"
)

// PaymentOrder is one gateway order created for an upgrade.
type PaymentOrder struct {
	ID              snowflake.ID            `gorm:"primaryKey"`
	UserID          snowflake.ID            `gorm:"not null;index"`
	ProviderOrderID string                  `gorm:"type:text;not null;uniqueIndex:ux_payment_orders_provider"`
	AmountCents     int64                   `gorm:"not null"`
	Currency        string                  `gorm:"type:text;not null"`
	Cycle           userdomain.BillingCycle `gorm:"type:text;not null"`
	Status          OrderStatus             `gorm:"type:text;not null;default:created"`
	PaymentID       string                  `gorm:"type:text"`
	CreatedAt       time.Time               `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt       time.Time               `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (PaymentOrder) TableName() string { return "payment_orders" }

// WebhookEvent stores processed webhook event ids for idempotency.
type WebhookEvent struct {
	ID         snowflake.ID `gorm:"primaryKey"`
	EventID    string       `gorm:"type:text;not null;uniqueIndex:ux_webhook_events_event"`
	EventType  string       `gorm:"type:text;not null"`
	ReceivedAt time.Time    `gorm:"not null"`
}

// TableName sets the database table name.
func (WebhookEvent) TableName() string { return "webhook_events" }

// GatewayOrder is the gateway's response to order creation.
type GatewayOrder struct {
	ID       string
	Amount   int64
	Currency string
	Status   string
}

// Gateway is the server-side API of the payment provider.
type Gateway interface {
	CreateOrder(ctx context.Context, amountCents int64, currency, receipt string, notes map[string]string) (*GatewayOrder, error)
}

type Service interface {
	// CreateOrder creates a gateway order for upgrading userID and records
	// it locally.
	CreateOrder(ctx context.Context, userID snowflake.ID, cycle userdomain.BillingCycle) (*PaymentOrder, error)

	// VerifyCheckout validates the checkout callback signature
	// (HMAC-SHA256 over "order_id|payment_id") and activates the
	// subscription on success.
	VerifyCheckout(ctx context.Context, userID snowflake.ID, providerOrderID, paymentID, signature string) error

	// HandleWebhook verifies the raw-body HMAC and processes the event.
	// Signature mismatch returns ErrInvalidSignature with no state change.
	HandleWebhook(ctx context.Context, payload []byte, signature string) error

	// Cancel flags the user's subscription to lapse at period end.
	Cancel(ctx context.Context, userID snowflake.ID) error

	History(ctx context.Context, userID snowflake.ID, limit int) ([]PaymentOrder, error)
}

type Repository interface {
	CreateOrder(ctx context.Context, order *PaymentOrder) error
	FindOrderByProviderID(ctx context.Context, providerOrderID string) (*PaymentOrder, error)
	SaveOrder(ctx context.Context, order *PaymentOrder) error
	ListOrders(ctx context.Context, userID snowflake.ID, limit int) ([]PaymentOrder, error)

	// RecordEvent stores a webhook event id. Returns false when the event
	// was already processed.
	RecordEvent(ctx context.Context, event *WebhookEvent) (bool, error)
}
