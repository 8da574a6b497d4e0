// Package gateway implements the server-side Razorpay orders API client.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/briefly-app/briefly/internal/payment/domain"
)

type Razorpay struct {
	baseURL   string
	keyID     string
	keySecret string
	client    *http.Client
}

func NewRazorpay(baseURL, keyID, keySecret string) *Razorpay {
	return &Razorpay{
		baseURL:   strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		keyID:     keyID,
		keySecret: keySecret,
		client:    &http.Client{Timeout: 30 * time.Second},
	}
}

type orderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

type orderResponse struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
	Error    *struct {
		Description string `json:"description"`
	} `json:"error"`
}

func (g *Razorpay) CreateOrder(ctx context.Context, amountCents int64, currency, receipt string, notes map[string]string) (*domain.GatewayOrder, error) {
	body, err := json.Marshal(orderRequest{
		Amount:   amountCents,
		Currency: currency,
		Receipt:  receipt,
		Notes:    notes,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGateway, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/orders", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGateway, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(g.keyID, g.keySecret)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGateway, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGateway, err)
	}

	var parsed orderResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGateway, err)
	}
	if resp.StatusCode != http.StatusOK {
		if parsed.Error != nil {
			return nil, fmt.Errorf("%w: %s", domain.ErrGateway, parsed.Error.Description)
		}
		return nil, fmt.Errorf("%w: status %d", domain.ErrGateway, resp.StatusCode)
	}
	if parsed.ID == "" {
		return nil, fmt.Errorf("%w: order without id", domain.ErrGateway)
	}

	return &domain.GatewayOrder{
		ID:       parsed.ID,
		Amount:   parsed.Amount,
		Currency: parsed.Currency,
		Status:   parsed.Status,
	}, nil
}
