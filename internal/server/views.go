package server

import (
	"time"

	"gorm.io/datatypes"

	creditsdomain "github.com/briefly-app/briefly/internal/credits/domain"
	paymentdomain "github.com/briefly-app/briefly/internal/payment/domain"
	usagedomain "github.com/briefly-app/briefly/internal/usage/domain"
	userdomain "github.com/briefly-app/briefly/internal/user/domain"
	videodomain "github.com/briefly-app/briefly/internal/video/domain"
)

// Snowflake ids are rendered as strings so they survive JSON number parsing
// in browser clients.

type userView struct {
	ID                 string     `json:"id"`
	Email              string     `json:"email"`
	Name               string     `json:"name,omitempty"`
	AvatarURL          string     `json:"avatar_url,omitempty"`
	Plan               string     `json:"plan"`
	SubscriptionStatus string     `json:"subscription_status"`
	BillingCycle       string     `json:"billing_cycle,omitempty"`
	PeriodEnd          *time.Time `json:"period_end,omitempty"`
	CancelAtPeriodEnd  bool       `json:"cancel_at_period_end"`

	CreditsBalance    int       `json:"credits_balance"`
	MonthlyAllocation int       `json:"monthly_allocation"`
	NextResetAt       time.Time `json:"next_reset_at"`

	SummariesToday int   `json:"summaries_today"`
	SummariesMonth int   `json:"summaries_month"`
	SummariesTotal int64 `json:"summaries_total"`
	MinutesSaved   int64 `json:"minutes_saved"`

	ReferralCode   string `json:"referral_code"`
	TotalReferrals int    `json:"total_referrals"`
}

func toUserView(u *userdomain.User) userView {
	return userView{
		ID:                 u.ID.String(),
		Email:              u.Email,
		Name:               u.Name,
		AvatarURL:          u.AvatarURL,
		Plan:               string(u.Plan),
		SubscriptionStatus: string(u.SubscriptionStatus),
		BillingCycle:       string(u.BillingCycle),
		PeriodEnd:          u.PeriodEnd,
		CancelAtPeriodEnd:  u.CancelAtPeriodEnd,
		CreditsBalance:     u.CreditsBalance,
		MonthlyAllocation:  u.MonthlyAllocation,
		NextResetAt:        u.NextResetAt,
		SummariesToday:     u.SummariesToday,
		SummariesMonth:     u.SummariesMonth,
		SummariesTotal:     u.SummariesTotal,
		MinutesSaved:       u.MinutesSaved,
		ReferralCode:       u.ReferralCode,
		TotalReferrals:     u.TotalReferrals,
	}
}

type videoView struct {
	ID       string `json:"id"`
	VideoID  string `json:"video_id"`
	VideoURL string `json:"video_url"`
	Title    string `json:"title,omitempty"`
}

func toVideoView(v *videodomain.Video) videoView {
	return videoView{
		ID:       v.ID.String(),
		VideoID:  v.VideoID,
		VideoURL: v.VideoURL,
		Title:    v.Title,
	}
}

type summaryView struct {
	ID        string         `json:"id"`
	Provider  string         `json:"provider"`
	Length    string         `json:"length"`
	Summary   string         `json:"summary"`
	KeyPoints datatypes.JSON `json:"key_points,omitempty"`
	Chapters  datatypes.JSON `json:"chapters,omitempty"`
	Tags      datatypes.JSON `json:"tags,omitempty"`
	Model     string         `json:"model,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

func toSummaryView(s *videodomain.Summary) summaryView {
	return summaryView{
		ID:        s.ID.String(),
		Provider:  string(s.Provider),
		Length:    string(s.Length),
		Summary:   s.Text,
		KeyPoints: s.KeyPoints,
		Chapters:  s.Chapters,
		Tags:      s.Tags,
		Model:     s.Model,
		CreatedAt: s.CreatedAt,
	}
}

type transcriptView struct {
	Language  string         `json:"language,omitempty"`
	Source    string         `json:"source"`
	Text      string         `json:"text"`
	Segments  datatypes.JSON `json:"segments,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

func toTranscriptView(t *videodomain.Transcript) transcriptView {
	return transcriptView{
		Language:  t.Language,
		Source:    string(t.Source),
		Text:      t.Text,
		Segments:  t.Segments,
		CreatedAt: t.CreatedAt,
	}
}

type usageLogView struct {
	ID             string    `json:"id"`
	VideoID        string    `json:"video_id"`
	Provider       string    `json:"provider"`
	Length         string    `json:"length"`
	CacheHit       bool      `json:"cache_hit"`
	Success        bool      `json:"success"`
	Error          string    `json:"error,omitempty"`
	CreditsCharged int       `json:"credits_charged"`
	DurationMS     int64     `json:"duration_ms"`
	CreatedAt      time.Time `json:"created_at"`
}

func toUsageLogViews(logs []usagedomain.UsageLog) []usageLogView {
	views := make([]usageLogView, 0, len(logs))
	for _, entry := range logs {
		views = append(views, usageLogView{
			ID:             entry.ID.String(),
			VideoID:        entry.VideoID,
			Provider:       string(entry.Provider),
			Length:         string(entry.Length),
			CacheHit:       entry.CacheHit,
			Success:        entry.Success,
			Error:          entry.Error,
			CreditsCharged: entry.CreditsCharged,
			DurationMS:     entry.DurationMS,
			CreatedAt:      entry.CreatedAt,
		})
	}
	return views
}

type transactionView struct {
	ID           string            `json:"id"`
	Kind         string            `json:"kind"`
	Amount       int               `json:"amount"`
	BalanceAfter int               `json:"balance_after"`
	Description  string            `json:"description,omitempty"`
	Metadata     datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
}

func toTransactionViews(txs []creditsdomain.CreditTransaction) []transactionView {
	views := make([]transactionView, 0, len(txs))
	for _, tx := range txs {
		views = append(views, transactionView{
			ID:           tx.ID.String(),
			Kind:         string(tx.Kind),
			Amount:       tx.Amount,
			BalanceAfter: tx.BalanceAfter,
			Description:  tx.Description,
			Metadata:     tx.Metadata,
			CreatedAt:    tx.CreatedAt,
		})
	}
	return views
}

type paymentOrderView struct {
	ID              string    `json:"id"`
	ProviderOrderID string    `json:"provider_order_id"`
	AmountCents     int64     `json:"amount_cents"`
	Currency        string    `json:"currency"`
	Cycle           string    `json:"cycle"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
}

func toPaymentOrderView(order *paymentdomain.PaymentOrder) paymentOrderView {
	return paymentOrderView{
		ID:              order.ID.String(),
		ProviderOrderID: order.ProviderOrderID,
		AmountCents:     order.AmountCents,
		Currency:        order.Currency,
		Cycle:           string(order.Cycle),
		Status:          string(order.Status),
		CreatedAt:       order.CreatedAt,
	}
}

func toPaymentOrderViews(orders []paymentdomain.PaymentOrder) []paymentOrderView {
	views := make([]paymentOrderView, 0, len(orders))
	for i := range orders {
		views = append(views, toPaymentOrderView(&orders[i]))
	}
	return views
}
