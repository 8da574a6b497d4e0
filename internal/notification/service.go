// Package notification sends account emails, currently only the low-credit
// warning for free-plan users.
package notification

import (
	"context"
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/briefly-app/briefly/internal/config"
	"github.com/briefly-app/briefly/internal/notification/email"
	userdomain "github.com/briefly-app/briefly/internal/user/domain"
)

type Params struct {
	fx.In

	Log     *zap.Logger
	Plans   *config.PlanConfigHolder
	Users   userdomain.Repository
	Emailer email.Provider
}

type Service struct {
	log     *zap.Logger
	plans   *config.PlanConfigHolder
	users   userdomain.Repository
	emailer email.Provider
}

func NewService(p Params) *Service {
	return &Service{
		log:     p.Log.Named("notification.service"),
		plans:   p.Plans,
		users:   p.Users,
		emailer: p.Emailer,
	}
}

// NotifyLowCredits emails every opted-in free-plan user whose balance sits
// in (0, threshold]. Returns how many emails were sent; individual send
// failures are logged and skipped.
func (s *Service) NotifyLowCredits(ctx context.Context) (int, error) {
	threshold := s.plans.Get().LowCreditThreshold
	users, err := s.users.LowCreditUsers(ctx, threshold)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, user := range users {
		subject := "You're running low on credits"
		body := fmt.Sprintf(
			"<p>Hi %s,</p><p>You have %d summary credits left this month. "+
				"Your balance resets on %s, or you can upgrade to Pro for unlimited summaries.</p>",
			user.Name, user.CreditsBalance, user.NextResetAt.Format("January 2"),
		)
		if err := s.emailer.Send(ctx, []string{user.Email}, subject, body); err != nil {
			s.log.Warn("low credit email failed",
				zap.Int64("user_id", int64(user.ID)),
				zap.Error(err),
			)
			continue
		}
		sent++
	}
	return sent, nil
}
