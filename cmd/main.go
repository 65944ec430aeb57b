package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"lunchdesk/internal/caching"
	"lunchdesk/internal/config"
	"lunchdesk/internal/events"
	"lunchdesk/internal/handlers"
	"lunchdesk/internal/jobs/background"
	"lunchdesk/internal/middleware"
	"lunchdesk/internal/ordering"
	"lunchdesk/internal/repositories"
	"lunchdesk/internal/services"
	"lunchdesk/pkg/database"
	"lunchdesk/pkg/logger"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Default().Fatal("failed to load configuration", zap.Error(err))
	}

	log, err := logger.NewZapLogger(logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		Development: cfg.Log.Development,
	})
	if err != nil {
		logger.Default().Fatal("failed to build logger", zap.Error(err))
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := database.NewPool(ctx, database.PoolConfig{
		URL:             cfg.Database.URL,
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		ConnectTimeout:  cfg.Database.ConnectTimeout,
	}, log)
	if err != nil {
		return err
	}
	defer pool.Close()
	store := repositories.NewStore(pool)

	redisClient, err := caching.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return err
	}
	defer redisClient.Close()
	cacheSvc := caching.NewRedisCacheService(redisClient)
	if err := cacheSvc.Ping(ctx); err != nil {
		log.Warn("redis unavailable, settings cache and approval locks degraded", zap.Error(err))
	}

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.RabbitMQ.URL != "" {
		rabbit, err := events.NewRabbitPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, log)
		if err != nil {
			return err
		}
		publisher = rabbit
	} else {
		log.Info("rabbitmq not configured, order events are not published")
	}
	defer publisher.Close()

	cards := services.NewDisabledCardPaymentService()
	if cfg.Stripe.SecretKey != "" {
		cards = services.NewStripeCardPaymentService(cfg.Stripe.SecretKey, cfg.Stripe.Currency, log)
	} else {
		log.Info("stripe not configured, card payments disabled")
	}

	location := cfg.Location()
	pricing := ordering.Pricing{
		TaxRate:                  cfg.Ordering.TaxRate,
		DeliveryFeePerRestaurant: cfg.Ordering.DeliveryFeePerRestaurant,
	}

	orgSvc := services.NewOrganizationService(store, cacheSvc, cfg.Redis.SettingsTTL, log)
	orderSvc := services.NewCorporateOrderService(store, orgSvc, publisher, pricing, location, log)
	approvalSvc := services.NewApprovalService(store, cacheSvc, cards, publisher, pricing, location, cfg.Redis.LockTTL, log)

	auth, err := middleware.NewAuthenticator(cfg.Auth, log)
	if err != nil {
		return err
	}
	defer auth.Close()

	scheduler, err := background.NewJobScheduler(store, background.Config{
		BudgetResetCron:  cfg.Jobs.BudgetResetCron,
		ExpireStaleEvery: cfg.Jobs.ExpireStaleEvery,
		RetentionDays:    cfg.Ordering.PendingRetentionDays,
		Location:         location,
	}, log)
	if err != nil {
		return err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handlers.NewRequestValidator()
	e.Server.ReadTimeout = cfg.Server.ReadTimeout
	e.Server.WriteTimeout = cfg.Server.WriteTimeout

	e.Pre(echoMiddleware.RemoveTrailingSlash())
	e.Use(echoMiddleware.RequestID())
	e.Use(logger.NewEchoRequestLogger(log))
	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.CORS())
	e.Use(middleware.VersionHeader(middleware.APIVersion))

	handlers.RegisterRoutes(e, handlers.Routes{
		Health:        handlers.NewHealthHandlers(pool, cacheSvc, log),
		Organizations: handlers.NewOrganizationHandlers(orgSvc),
		Orders:        handlers.NewOrderHandlers(orderSvc),
		Approvals:     handlers.NewApprovalHandlers(approvalSvc),
		Auth:          auth.Middleware(),
		Manager:       middleware.RequireManager(),
		Audit:         middleware.NewAuditMiddleware(log).AuditRequest(),
	})

	scheduler.Start()
	defer func() {
		if err := scheduler.Stop(); err != nil {
			log.Error("failed to stop job scheduler", zap.Error(err))
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		log.Info("lunchdesk server starting",
			zap.String("version", version),
			zap.String("api_version", middleware.APIVersion),
			zap.String("addr", cfg.Server.Addr))
		if err := e.Start(cfg.Server.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil {
		return err
	}
	return nil
}
