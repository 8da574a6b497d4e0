package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base32"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/briefly-app/briefly/internal/auth/domain"
	"github.com/briefly-app/briefly/internal/clock"
	"github.com/briefly-app/briefly/internal/config"
	creditsdomain "github.com/briefly-app/briefly/internal/credits/domain"
	referraldomain "github.com/briefly-app/briefly/internal/referral/domain"
	userdomain "github.com/briefly-app/briefly/internal/user/domain"
	"github.com/briefly-app/briefly/pkg/db"
)

const userinfoEndpoint = "https://www.googleapis.com/oauth2/v2/userinfo"

type Params struct {
	fx.In

	Cfg       config.Config
	Log       *zap.Logger
	Clock     clock.Clock
	GenID     *snowflake.Node
	PlanCfg   *config.PlanConfigHolder
	Users     userdomain.Repository
	Tokens    domain.RefreshTokenRepository
	Credits   creditsdomain.Service
	Referrals referraldomain.Service
}

type service struct {
	cfg       config.Config
	log       *zap.Logger
	clock     clock.Clock
	genID     *snowflake.Node
	planCfg   *config.PlanConfigHolder
	users     userdomain.Repository
	tokens    domain.RefreshTokenRepository
	credits   creditsdomain.Service
	referrals referraldomain.Service
	oauth     *oauth2.Config
}

func NewService(p Params) domain.Service {
	return &service{
		cfg:       p.Cfg,
		log:       p.Log.Named("auth.service"),
		clock:     p.Clock,
		genID:     p.GenID,
		planCfg:   p.PlanCfg,
		users:     p.Users,
		tokens:    p.Tokens,
		credits:   p.Credits,
		referrals: p.Referrals,
		oauth: &oauth2.Config{
			ClientID:     p.Cfg.GoogleClientID,
			ClientSecret: p.Cfg.GoogleClientSecret,
			RedirectURL:  p.Cfg.GoogleRedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
	}
}

func (s *service) GoogleAuthURL(state string) string {
	return s.oauth.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

type googleProfile struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

func (s *service) GoogleCallback(ctx context.Context, code, referralCode string) (*domain.TokenPair, *userdomain.User, error) {
	token, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", domain.ErrOAuthExchange, err)
	}

	profile, err := s.fetchProfile(ctx, token)
	if err != nil {
		return nil, nil, err
	}

	user, err := s.findOrCreateUser(ctx, profile, referralCode)
	if err != nil {
		return nil, nil, err
	}

	pair, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	return pair, user, nil
}

func (s *service) fetchProfile(ctx context.Context, token *oauth2.Token) (*googleProfile, error) {
	client := s.oauth.Client(ctx, token)
	resp, err := client.Get(userinfoEndpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrOAuthExchange, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: userinfo status %d", domain.ErrOAuthExchange, resp.StatusCode)
	}

	var profile googleProfile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrOAuthExchange, err)
	}
	if profile.ID == "" || profile.Email == "" {
		return nil, fmt.Errorf("%w: incomplete userinfo", domain.ErrOAuthExchange)
	}
	return &profile, nil
}

func (s *service) findOrCreateUser(ctx context.Context, profile *googleProfile, referralCode string) (*userdomain.User, error) {
	user, err := s.users.FindByGoogleID(ctx, profile.ID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, userdomain.ErrNotFound) {
		return nil, err
	}

	// A pre-existing email account gets its Google identity linked.
	user, err = s.users.FindByEmail(ctx, profile.Email)
	if err == nil {
		user.GoogleID = profile.ID
		if user.AvatarURL == "" {
			user.AvatarURL = profile.Picture
		}
		if err := s.users.Save(ctx, user); err != nil {
			return nil, err
		}
		return user, nil
	}
	if !errors.Is(err, userdomain.ErrNotFound) {
		return nil, err
	}

	return s.signup(ctx, profile, referralCode)
}

func (s *service) signup(ctx context.Context, profile *googleProfile, referralCode string) (*userdomain.User, error) {
	plan := s.planCfg.Get()
	now := s.clock.Now()

	user := &userdomain.User{
		ID:                 s.genID.Generate(),
		Email:              profile.Email,
		Name:               profile.Name,
		AvatarURL:          profile.Picture,
		GoogleID:           profile.ID,
		Role:               "user",
		Plan:               userdomain.PlanFree,
		SubscriptionStatus: userdomain.SubscriptionStatusNone,
		MonthlyAllocation:  plan.FreeMonthlyCredits,
		NextResetAt:        now.AddDate(0, 1, 0),
		NotifyLowCredits:   true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	for attempt := 0; ; attempt++ {
		user.ReferralCode = newReferralCode()
		err := s.users.Create(ctx, user)
		if err == nil {
			break
		}
		if db.IsDuplicateKeyErr(err) && attempt < 3 {
			continue
		}
		return nil, err
	}

	// The signup allocation flows through the ledger so every balance
	// change has a transaction row.
	if _, err := s.credits.Add(ctx, user.ID, plan.FreeMonthlyCredits, creditsdomain.KindBonus, "signup allocation", nil); err != nil {
		return nil, err
	}

	if code := strings.TrimSpace(referralCode); code != "" {
		if _, err := s.referrals.ProcessReferral(ctx, user.ID, code); err != nil {
			// A bad referral code never blocks the signup itself.
			s.log.Warn("referral not applied",
				zap.Int64("user_id", int64(user.ID)),
				zap.String("code", code),
				zap.Error(err),
			)
		}
	}

	refreshed, err := s.users.FindByID(ctx, user.ID)
	if err != nil {
		return user, nil
	}
	return refreshed, nil
}

func (s *service) Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, domain.ErrNoToken
	}

	now := s.clock.Now()
	hash := hashToken(refreshToken)
	stored, err := s.tokens.FindActive(ctx, hash, now)
	if err != nil {
		return nil, err
	}

	user, err := s.users.FindByID(ctx, stored.UserID)
	if err != nil {
		if errors.Is(err, userdomain.ErrNotFound) {
			return nil, domain.ErrInvalidUser
		}
		return nil, err
	}

	// Rotation: the presented token is single-use.
	if err := s.tokens.Revoke(ctx, hash, now); err != nil {
		return nil, err
	}
	return s.issueTokens(ctx, user)
}

func (s *service) Logout(ctx context.Context, refreshToken string) error {
	if strings.TrimSpace(refreshToken) == "" {
		return nil
	}
	return s.tokens.Revoke(ctx, hashToken(refreshToken), s.clock.Now())
}

func (s *service) Authenticate(ctx context.Context, accessToken string) (*userdomain.User, error) {
	if strings.TrimSpace(accessToken) == "" {
		return nil, domain.ErrNoToken
	}

	parsed, err := jwt.Parse(accessToken, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, domain.ErrInvalidToken
		}
		return []byte(s.cfg.AuthJWTSecret), nil
	}, jwt.WithTimeFunc(s.clock.Now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domain.ErrTokenExpired
		}
		return nil, domain.ErrInvalidToken
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, domain.ErrInvalidToken
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return nil, domain.ErrInvalidToken
	}
	userID, err := snowflake.ParseString(sub)
	if err != nil {
		return nil, domain.ErrInvalidToken
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, userdomain.ErrNotFound) {
			return nil, domain.ErrInvalidUser
		}
		return nil, err
	}
	return user, nil
}

func (s *service) issueTokens(ctx context.Context, user *userdomain.User) (*domain.TokenPair, error) {
	now := s.clock.Now()
	claims := jwt.MapClaims{
		"sub":   user.ID.String(),
		"email": user.Email,
		"plan":  string(user.Plan),
		"iat":   now.Unix(),
		"exp":   now.Add(s.cfg.AccessTokenTTL).Unix(),
	}
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.AuthJWTSecret))
	if err != nil {
		return nil, err
	}

	refresh := newRefreshToken()
	record := &userdomain.RefreshToken{
		ID:        s.genID.Generate(),
		UserID:    user.ID,
		TokenHash: hashToken(refresh),
		ExpiresAt: now.Add(s.cfg.RefreshTokenTTL),
		CreatedAt: now,
	}
	if err := s.tokens.Store(ctx, record); err != nil {
		return nil, err
	}

	return &domain.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.cfg.AccessTokenTTL.Seconds()),
	}, nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func newRefreshToken() string {
	return uuid.NewString() + "." + uuid.NewString()
}

func newReferralCode() string {
	var buf [5]byte
	if _, err := rand.Read(buf[:]); err != nil {
		panic(err)
	}
	return strings.ToUpper(base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(buf[:]))
}
