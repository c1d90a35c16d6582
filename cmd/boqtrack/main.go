package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"boqtrack/internal/amqp"
	"boqtrack/internal/backend"
	"boqtrack/internal/cache"
	"boqtrack/internal/cli"
	"boqtrack/internal/config"
	"boqtrack/internal/format"
	apphttp "boqtrack/internal/http"
	"boqtrack/internal/log"
	"boqtrack/internal/services"
)

func main() {
	cfg, logger := cli.LoadAndValidateConfig(log.ComponentApp, (*config.Config).Validate)
	if err := run(cfg, logger); err != nil {
		logger.ErrorContext(context.Background(), "Server exited with error", log.FieldError, err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *log.Logger) error {
	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return fmt.Errorf("backend config: %w", err)
	}
	res, err := backend.NewFactory(logger).Create(ctx, backendCfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := res.Close(); err != nil {
			logger.ErrorContext(context.Background(), "Failed to close backend", log.FieldError, err)
		}
	}()

	cacheManager := cache.NewManager()
	cacheManager.Register(res.Reports)
	cacheManager.StartCleanup(time.Minute)
	defer cacheManager.Stop()

	// Ledger sync is optional; without a broker writes are not mirrored.
	var (
		publisher services.Publisher
		outbox    *services.Outbox
	)
	if cfg.AMQPURL != "" {
		amqpLogger := logger.WithComponent(log.ComponentAMQP)
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			amqpLogger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without ledger sync", log.FieldError, err)
		} else {
			defer client.Close()
			outboxCfg := services.DefaultOutboxConfig()
			outboxCfg.PollInterval = cfg.OutboxInterval
			outboxCfg.BatchSize = cfg.OutboxBatchSize
			outbox = services.NewOutbox(client, outboxCfg)
			publisher = outbox
			amqpLogger.InfoContext(ctx, "Ledger sync enabled",
				"exchange", cfg.AMQPExchange,
				"queue", cfg.AMQPQueue)
		}
	}

	formatter := format.NewFromLocale(cfg.Locale)
	reports := services.NewReportService(res.Store, res.Reports)
	transactions := services.NewTransactionService(res.Store, publisher, reports)

	deps := apphttp.Deps{
		Projects:       services.NewProjectService(res.Store),
		Budget:         services.NewBudgetService(res.Store, res.Archive, transactions, formatter),
		Transactions:   transactions,
		Reports:        reports,
		Formatter:      formatter,
		JWTSecret:      []byte(cfg.JWTSecret),
		MaxUploadBytes: cfg.MaxUploadBytes,
		RateLimit:      cfg.RateLimit,
		Logger:         logger,
	}
	if outbox != nil {
		deps.Outbox = outbox
	}
	for _, p := range res.Probes {
		deps.ReadyChecks = append(deps.ReadyChecks, apphttp.ReadyCheck{Name: p.Name, Check: p.Check})
	}

	srv := apphttp.NewServer(":"+cfg.Port, deps)
	srv.ReadTimeout = 30 * time.Second
	srv.WriteTimeout = 60 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	var svcs []cli.Service
	if outbox != nil {
		svcs = append(svcs, cli.Service{
			Name: "outbox",
			Run: func(ctx context.Context) error {
				if err := outbox.Start(ctx); err != nil {
					return err
				}
				<-ctx.Done()
				return nil
			},
			Stop: outbox.Stop,
		})
	}
	svcs = append(svcs, cli.Service{
		Name: "http",
		Run: func(context.Context) error {
			logger.InfoContext(ctx, "Starting boqtrack server",
				"port", cfg.Port,
				"backend", cfg.DataBackend,
				"report_cache", cfg.ReportCache,
				"archive", cfg.ArchiveBackend)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
		Stop: srv.Shutdown,
	})

	return cli.Run(ctx, logger, 30*time.Second, svcs...)
}
