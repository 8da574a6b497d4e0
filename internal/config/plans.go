package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// PlanConfig holds the tunable credit and referral economics. It is kept
// outside env config so operators can adjust allocations without a deploy.
type PlanConfig struct {
	FreeMonthlyCredits  int   `mapstructure:"freeMonthlyCredits"`
	WelcomeBonusCredits int   `mapstructure:"welcomeBonusCredits"`
	LowCreditThreshold  int   `mapstructure:"lowCreditThreshold"`
	ReferralTiers       []int `mapstructure:"referralTiers"`
	FreeDailyLimit      int   `mapstructure:"freeDailyLimit"`
	ProDailyLimit       int   `mapstructure:"proDailyLimit"`

	ProMonthlyPriceCents int64  `mapstructure:"proMonthlyPriceCents"`
	ProYearlyPriceCents  int64  `mapstructure:"proYearlyPriceCents"`
	Currency             string `mapstructure:"currency"`
}

func DefaultPlanConfig() PlanConfig {
	return PlanConfig{
		FreeMonthlyCredits:  30,
		WelcomeBonusCredits: 5,
		LowCreditThreshold:  10,
		ReferralTiers:       []int{50, 25, 15},
		FreeDailyLimit:      10,
		ProDailyLimit:       100,

		ProMonthlyPriceCents: 49900,
		ProYearlyPriceCents:  499900,
		Currency:             "INR",
	}
}

// ReferralReward returns the reward for a referrer's next referral given how
// many they already have. Past the last tier the final tier repeats.
func (c PlanConfig) ReferralReward(priorReferrals int) int {
	if len(c.ReferralTiers) == 0 {
		return 0
	}
	if priorReferrals >= len(c.ReferralTiers) {
		return c.ReferralTiers[len(c.ReferralTiers)-1]
	}
	return c.ReferralTiers[priorReferrals]
}

// PriceCents returns the pro subscription price for a billing cycle name.
func (c PlanConfig) PriceCents(cycle string) int64 {
	if strings.EqualFold(cycle, "yearly") {
		return c.ProYearlyPriceCents
	}
	return c.ProMonthlyPriceCents
}

type PlanConfigHolder struct {
	current atomic.Value // holds PlanConfig
}

func NewPlanConfigHolder() (*PlanConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("plans")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/briefly/config")
	v.AddConfigPath("/etc/briefly")
	v.AddConfigPath(".")

	v.SetEnvPrefix("BRIEFLY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		defaults := DefaultPlanConfig()
		v.SetDefault("plans.freeMonthlyCredits", defaults.FreeMonthlyCredits)
		v.SetDefault("plans.welcomeBonusCredits", defaults.WelcomeBonusCredits)
		v.SetDefault("plans.lowCreditThreshold", defaults.LowCreditThreshold)
		v.SetDefault("plans.referralTiers", defaults.ReferralTiers)
		v.SetDefault("plans.freeDailyLimit", defaults.FreeDailyLimit)
		v.SetDefault("plans.proDailyLimit", defaults.ProDailyLimit)
		v.SetDefault("plans.proMonthlyPriceCents", defaults.ProMonthlyPriceCents)
		v.SetDefault("plans.proYearlyPriceCents", defaults.ProYearlyPriceCents)
		v.SetDefault("plans.currency", defaults.Currency)
	}

	var cfg PlanConfig
	if err := v.UnmarshalKey("plans", &cfg); err != nil {
		return nil, err
	}
	if err := validatePlanConfig(cfg); err != nil {
		return nil, err
	}

	holder := &PlanConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated PlanConfig
		if err := v.UnmarshalKey("plans", &updated); err != nil {
			log.Printf("[plan-config] reload failed: %v", err)
			return
		}
		if err := validatePlanConfig(updated); err != nil {
			log.Printf("[plan-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[plan-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *PlanConfigHolder) Get() PlanConfig {
	return h.current.Load().(PlanConfig)
}

// NewStaticPlanConfigHolder returns a holder pinned to cfg, for tests.
func NewStaticPlanConfigHolder(cfg PlanConfig) *PlanConfigHolder {
	holder := &PlanConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func validatePlanConfig(cfg PlanConfig) error {
	if cfg.FreeMonthlyCredits <= 0 {
		return errors.New("plans.freeMonthlyCredits must be positive")
	}
	if len(cfg.ReferralTiers) == 0 {
		return errors.New("plans.referralTiers cannot be empty")
	}
	return nil
}
