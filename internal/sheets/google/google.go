package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"boqtrack/internal/core"
	"boqtrack/internal/ingest"
	ports "boqtrack/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	ledgerSheet   string
}

var (
	_ ports.RangeReader  = (*Client)(nil)
	_ ports.LedgerWriter = (*Client)(nil)
)

// Config selects the ledger and the service account used for every call.
type Config struct {
	CredentialsJSON     string
	CredentialsFile     string
	LedgerSpreadsheetID string
	LedgerSheet         string
}

// New creates a Sheets client authenticated with a service account.
// A client without LedgerSpreadsheetID can still read BOQ ranges.
func New(ctx context.Context, cfg Config) (*Client, error) {
	svc, err := newSheetsService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	sheet := strings.TrimSpace(cfg.LedgerSheet)
	if sheet == "" {
		sheet = "Ledger"
	}
	return &Client{svc: svc, spreadsheetID: strings.TrimSpace(cfg.LedgerSpreadsheetID), ledgerSheet: sheet}, nil
}

func newSheetsService(ctx context.Context, cfg Config) (*gsheet.Service, error) {
	var credentialsJSON []byte
	switch {
	case strings.TrimSpace(cfg.CredentialsJSON) != "":
		credentialsJSON = []byte(cfg.CredentialsJSON)
	case strings.TrimSpace(cfg.CredentialsFile) != "":
		b, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
	}

	slog.InfoContext(ctx, "Creating Google Sheets service with Service Account",
		"credentials_size", len(credentialsJSON),
		"scope", gsheet.SpreadsheetsScope)

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// ReadRange reads unformatted values so numbers arrive as numbers and
// text stays text.
func (c *Client) ReadRange(ctx context.Context, spreadsheetID, rng string) ([]ingest.Row, error) {
	resp, err := c.svc.Spreadsheets.Values.Get(spreadsheetID, rng).
		ValueRenderOption("UNFORMATTED_VALUE").
		DateTimeRenderOption("FORMATTED_STRING").
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("%w: read range %s: %v", ingest.ErrUnreadableFile, rng, err)
	}
	return ingest.FromValues(resp.Values), nil
}

func (c *Client) AppendTransaction(ctx context.Context, t core.Transaction) (string, error) {
	if c.spreadsheetID == "" {
		return "", errors.New("ledger spreadsheet not configured")
	}
	rng := fmt.Sprintf("%s!A:%s", c.ledgerSheet, lastLedgerColumn)
	vr := &gsheet.ValueRange{Values: [][]interface{}{ledgerRow(t)}}
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append ledger row for %s: %w", t.ID, err)
	}
	ref := rng
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		ref = resp.Updates.UpdatedRange
	}
	slog.InfoContext(ctx, "Ledger row appended", "id", t.ID, "range", ref)
	return ref, nil
}

// DeleteTransaction removes the ledger row whose first column is id.
func (c *Client) DeleteTransaction(ctx context.Context, id string) error {
	if c.spreadsheetID == "" {
		return errors.New("ledger spreadsheet not configured")
	}
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, c.ledgerSheet+"!A:A").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read ledger ids: %w", err)
	}
	idx := findRow(resp.Values, id)
	if idx < 0 {
		return fmt.Errorf("transaction %s: %w", id, ports.ErrRowNotFound)
	}

	sheetID, err := c.sheetID(ctx, c.ledgerSheet)
	if err != nil {
		return err
	}
	req := &gsheet.BatchUpdateSpreadsheetRequest{Requests: []*gsheet.Request{{
		DeleteDimension: &gsheet.DeleteDimensionRequest{Range: &gsheet.DimensionRange{
			SheetId:    sheetID,
			Dimension:  "ROWS",
			StartIndex: int64(idx),
			EndIndex:   int64(idx + 1),
		}},
	}}}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete ledger row %d: %w", idx+1, err)
	}
	slog.InfoContext(ctx, "Ledger row deleted", "id", id, "row", idx+1)
	return nil
}

func (c *Client) sheetID(ctx context.Context, title string) (int64, error) {
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("get spreadsheet metadata: %w", err)
	}
	for _, s := range ss.Sheets {
		if s.Properties != nil && s.Properties.Title == title {
			return s.Properties.SheetId, nil
		}
	}
	return 0, fmt.Errorf("sheet %q not found in spreadsheet", title)
}
