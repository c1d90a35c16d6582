// Package cli provides the startup and shutdown steps shared by the
// boqtrack binaries.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"boqtrack/internal/config"
	"boqtrack/internal/log"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the process logger from the configured level and
// format and makes it the slog default.
func SetupLogger(cfg *config.Config, component string) *log.Logger {
	level, err := log.ParseLevel(cfg.LogLevel)
	logger := log.New(log.Config{
		Level:     level,
		Format:    cfg.LogFormat,
		Component: component,
		Writer:    os.Stdout,
	})
	log.SetDefault(logger)
	if err != nil {
		logger.WarnContext(context.Background(), "Unknown log level, using info", log.FieldError, err)
	}
	return logger
}

// LoadAndValidateConfig loads .env and the environment, sets up logging and
// runs every check. The process exits on the first failing check.
func LoadAndValidateConfig(component string, checks ...func(*config.Config) error) (*config.Config, *log.Logger) {
	LoadEnvFile()
	cfg := config.Load()
	logger := SetupLogger(cfg, component)
	for _, check := range checks {
		if err := check(cfg); err != nil {
			logger.ErrorContext(context.Background(), "Configuration validation failed", log.FieldError, err)
			os.Exit(1)
		}
	}
	return cfg, logger
}

// SignalContext is cancelled on SIGINT or SIGTERM.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

// Service is one long-running part of a binary. Run blocks until its work
// ends; Stop, when set, is called once shutdown begins.
type Service struct {
	Name string
	Run  func(ctx context.Context) error
	Stop func(ctx context.Context) error
}

// Run starts every service and waits. When ctx is cancelled or any service
// returns, all Stop functions run with a context bounded by timeout. The
// first service error is returned; context.Canceled is not an error.
func Run(ctx context.Context, logger *log.Logger, timeout time.Duration, services ...Service) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	for _, svc := range services {
		g.Go(func() error {
			defer cancel()
			logger.InfoContext(gctx, "Service starting", log.FieldOperation, log.OpStartup, "service", svc.Name)
			if err := svc.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("%s: %w", svc.Name, err)
			}
			return nil
		})
	}

	var stopping time.Time
	g.Go(func() error {
		<-gctx.Done()
		stopping = time.Now()
		logger.InfoContext(context.Background(), "Shutting down", log.FieldOperation, log.OpShutdown, "timeout", timeout.String())

		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		var errs []error
		for i := len(services) - 1; i >= 0; i-- {
			svc := services[i]
			if svc.Stop == nil {
				continue
			}
			if err := svc.Stop(shutdownCtx); err != nil {
				logger.ErrorContext(shutdownCtx, "Service stop failed", "service", svc.Name, log.FieldError, err)
				errs = append(errs, fmt.Errorf("stop %s: %w", svc.Name, err))
			}
		}
		return errors.Join(errs...)
	})

	err := g.Wait()
	if err == nil {
		logger.InfoContext(context.Background(), "Shutdown complete",
			log.FieldOperation, log.OpShutdown,
			log.FieldDurationHuman, time.Since(stopping).Round(time.Millisecond).String())
	}
	return err
}
