package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"boqtrack/internal/amqp"
	"boqtrack/internal/cli"
	"boqtrack/internal/config"
	"boqtrack/internal/log"
	gsheet "boqtrack/internal/sheets/google"
	"boqtrack/internal/worker"
)

func main() {
	cfg, logger := cli.LoadAndValidateConfig(log.ComponentWorker, (*config.Config).ValidateWorker)
	if err := run(cfg, logger); err != nil {
		logger.ErrorContext(context.Background(), "Worker exited with error", log.FieldError, err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *log.Logger) error {
	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	logger.InfoContext(ctx, "Starting boqtrack-worker")

	ledger, err := gsheet.New(ctx, gsheet.Config{
		CredentialsJSON:     cfg.GoogleServiceAccountJSON,
		CredentialsFile:     cfg.GoogleServiceAccountFile,
		LedgerSpreadsheetID: cfg.LedgerSpreadsheetID,
		LedgerSheet:         cfg.LedgerSheetName,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}
	logger.WithComponent(log.ComponentSheets).InfoContext(ctx, "Google Sheets ledger initialized",
		"spreadsheet_id", cfg.LedgerSpreadsheetID,
		"sheet", cfg.LedgerSheetName)

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		return fmt.Errorf("failed to initialize AMQP client: %w", err)
	}
	defer client.Close()

	syncWorker := worker.NewSyncWorker(ledger)

	return cli.Run(ctx, logger, 30*time.Second, cli.Service{
		Name: "ledger-sync",
		Run: func(ctx context.Context) error {
			return client.ConsumeTransactionSync(ctx, syncWorker.Handle)
		},
	})
}
