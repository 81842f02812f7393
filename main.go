package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sim-swap-topup/domain/topup"
	"sim-swap-topup/infrastructure/config"
	"sim-swap-topup/infrastructure/database"
	"sim-swap-topup/infrastructure/middleware"
	"sim-swap-topup/infrastructure/queue"
	"sim-swap-topup/infrastructure/service"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

const sweepInterval = time.Minute

var logLevels = map[string]log.Level{
	"trace": log.LevelTrace,
	"debug": log.LevelDebug,
	"info":  log.LevelInfo,
	"warn":  log.LevelWarn,
	"error": log.LevelError,
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	if level, ok := logLevels[cfg.LogLevel]; ok {
		log.SetLevel(level)
	}

	repository, closeRepository := newRepository(cfg)
	defer closeRepository()

	creds := service.Credentials{Username: cfg.Username, APIKey: cfg.APIKey}
	insights := service.NewInsightsService(service.InsightsOptions{
		Credentials: creds,
		BaseURL:     cfg.InsightsURL,
		Sandbox:     cfg.Sandbox(),
		Timeout:     cfg.ProviderTimeout,
	})
	airtime := service.NewAirtimeService(service.AirtimeOptions{
		Credentials: creds,
		BaseURL:     cfg.AirtimeURL,
		Sandbox:     cfg.Sandbox(),
		Timeout:     cfg.ProviderTimeout,
	})

	retention := topup.Retention{Pending: cfg.PendingTTL, Resolved: cfg.ResolvedTTL}

	var (
		retries    = topup.NewNoopRetryScheduler()
		retryQueue *queue.RetryQueue
	)
	if cfg.NatsURL != "" {
		retryQueue, err = queue.NewRetryQueue(cfg.NatsURL)
		if err != nil {
			log.Fatal(err)
		}
		defer retryQueue.Close()
		retries = retryQueue
	}

	intake := topup.NewIntake(repository, insights, topup.IntakeOptions{
		CountryCode:  cfg.CountryCode,
		CurrencyCode: cfg.CurrencyCode,
		Retention:    retention,
	})
	engine := topup.NewEngine(repository, airtime, retries, topup.EngineOptions{
		Policy:      topup.RecentSwapPolicy{Months: cfg.SwapWindowMonths},
		Retention:   retention,
		MaxAttempts: cfg.MaxDisburseAttempts,
		StaleAfter:  cfg.StaleAfter,
	})

	if retryQueue != nil {
		consumer := topup.NewNatsConsumer(retryQueue, engine, topup.ConsumerOptions{
			MaxDeliver:    cfg.NatsMaxDeliver,
			MaxAckPending: cfg.NatsMaxAckPending,
			RetryDelay:    cfg.RetryDelay,
		})
		defer consumer.Close()

		go func() {
			if err := consumer.StartProcess(); err != nil {
				log.Fatal(err)
			}
		}()
	}

	api := fiber.New(fiber.Config{
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		DisableStartupMessage: true,
		BodyLimit:             1 * 1024 * 1024,
		ErrorHandler: middleware.NewErrorHandler(
			middleware.StatusMapping{Err: topup.ErrValidation, Status: fiber.StatusBadRequest},
			middleware.StatusMapping{Err: topup.ErrNotFound, Status: fiber.StatusNotFound},
			middleware.StatusMapping{Err: topup.ErrProvider, Status: fiber.StatusBadGateway},
			middleware.StatusMapping{Err: topup.ErrStoreBusy, Status: fiber.StatusServiceUnavailable},
		),
	})
	api.Use(recover.New())
	api.Use(logger.New())

	topup.NewController(intake, engine, topup.ControllerOptions{
		NotFoundRetries: cfg.NotFoundRetries,
		NotFoundBackoff: cfg.NotFoundBackoff,
		IntakeHandlers: []fiber.Handler{limiter.New(limiter.Config{
			Max:        cfg.RateLimitMax,
			Expiration: cfg.RateLimitWindow,
		})},
		CallbackHandlers: []fiber.Handler{middleware.CallbackToken(cfg.CallbackToken)},
	}).InitRoutes(api)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		if err := api.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Error(err)
		}
	}()

	log.Infow("server is running", "port", cfg.Port, "store", cfg.StoreBackend, "sandbox", cfg.Sandbox())
	if err = api.Listen(":" + cfg.Port); err != nil {
		log.Fatal(err)
	}
}

// newRepository builds the configured store and returns its cleanup.
func newRepository(cfg *config.Config) (topup.IRepository, func()) {
	switch cfg.StoreBackend {
	case config.StoreRedis:
		client, err := database.NewRedis(cfg.RedisAddr, cfg.RedisPool)
		if err != nil {
			log.Fatal(err)
		}
		return topup.NewRedisRepository(client), func() { _ = client.Close() }

	case config.StorePostgres:
		db, err := database.NewPostgres(cfg.PostgresDSN)
		if err != nil {
			log.Fatal(err)
		}
		repository := topup.NewPostgresRepository(db)
		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			ticker := time.NewTicker(sweepInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if _, err := repository.PurgeExpired(ctx); err != nil {
						log.Errorw("purging expired top-ups", "error", err)
					}
				}
			}
		}()
		return repository, func() { cancel(); _ = db.Close() }

	default:
		repository := topup.NewMemoryRepository(sweepInterval)
		return repository, repository.Close
	}
}
