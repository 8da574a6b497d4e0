package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"

	authdomain "github.com/briefly-app/briefly/internal/auth/domain"
	"github.com/briefly-app/briefly/internal/config"
	creditsdomain "github.com/briefly-app/briefly/internal/credits/domain"
	obsmetrics "github.com/briefly-app/briefly/internal/observability/metrics"
	paymentdomain "github.com/briefly-app/briefly/internal/payment/domain"
	"github.com/briefly-app/briefly/internal/ratelimit"
	"github.com/briefly-app/briefly/internal/scheduler"
	summarydomain "github.com/briefly-app/briefly/internal/summary/domain"
	usagedomain "github.com/briefly-app/briefly/internal/usage/domain"
	userdomain "github.com/briefly-app/briefly/internal/user/domain"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine     *gin.Engine
	cfg        config.Config
	log        *zap.Logger
	authsvc    authdomain.Service
	summarySvc summarydomain.Service
	creditsSvc creditsdomain.Service
	usageSvc   usagedomain.Service
	paymentSvc paymentdomain.Service
	users      userdomain.Repository
	plans      *config.PlanConfigHolder
	limiter    *ratelimit.Limiter
	scheduler  *scheduler.Scheduler
}

type ServerParams struct {
	fx.In

	Gin        *gin.Engine
	Cfg        config.Config
	Log        *zap.Logger
	Authsvc    authdomain.Service
	SummarySvc summarydomain.Service
	CreditsSvc creditsdomain.Service
	UsageSvc   usagedomain.Service
	PaymentSvc paymentdomain.Service
	Users      userdomain.Repository
	Plans      *config.PlanConfigHolder
	Limiter    *ratelimit.Limiter   `optional:"true"`
	Scheduler  *scheduler.Scheduler `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:     p.Gin,
		cfg:        p.Cfg,
		log:        p.Log.Named("http.server"),
		authsvc:    p.Authsvc,
		summarySvc: p.SummarySvc,
		creditsSvc: p.CreditsSvc,
		usageSvc:   p.UsageSvc,
		paymentSvc: p.PaymentSvc,
		users:      p.Users,
		plans:      p.Plans,
		limiter:    p.Limiter,
		scheduler:  p.Scheduler,
	}

	svc.registerAuthRoutes()
	svc.registerAPIRoutes()
	svc.registerPaymentRoutes()
	svc.registerDevRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAuthRoutes() {
	auth := s.engine.Group("/auth")

	auth.GET("/google", s.GoogleLogin)
	auth.GET("/google/callback", s.GoogleCallback)
	auth.POST("/refresh", s.Refresh)
	auth.POST("/logout", s.Logout)
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api/v1", s.AuthRequired())

	api.POST("/summarize", s.SummarizeLimits(), s.Summarize)
	api.GET("/videos/:id/transcript", s.GetTranscript)

	api.GET("/me", s.Me)
	api.GET("/me/usage", s.MyUsage)
	api.GET("/me/transactions", s.MyTransactions)
}

func (s *Server) registerPaymentRoutes() {
	payments := s.engine.Group("/payments")

	// The webhook authenticates via its HMAC signature, not a bearer token.
	payments.POST("/webhook", s.PaymentWebhook)

	payments.POST("/order", s.AuthRequired(), s.CreatePaymentOrder)
	payments.POST("/verify", s.AuthRequired(), s.VerifyPayment)
	payments.POST("/cancel", s.AuthRequired(), s.CancelSubscription)
	payments.GET("/history", s.AuthRequired(), s.PaymentHistory)
}

func (s *Server) registerDevRoutes() {
	if s.cfg.IsProduction() || s.scheduler == nil {
		return
	}

	dev := s.engine.Group("/dev")
	dev.GET("/jobs", s.ListJobs)
	dev.POST("/jobs/:name/run", s.RunJob)
}
