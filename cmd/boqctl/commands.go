package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"boqtrack/internal/auth"
	"boqtrack/internal/config"
	"boqtrack/internal/format"
	"boqtrack/internal/ingest"
	"boqtrack/internal/remote"
	"boqtrack/internal/services"
	"boqtrack/internal/sheets"
	gsheet "boqtrack/internal/sheets/google"
)

func runPreview(ctx context.Context, cfg *config.Config, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("preview", flag.ContinueOnError)
	fs.SetOutput(out)
	file := fs.String("file", "", "local .xlsx or .csv file")
	sheetID := fs.String("sheet", "", "Google spreadsheet id, read instead of -file")
	rng := fs.String("range", "Sheet1!A:F", "range to read with -sheet")
	locale := fs.String("locale", cfg.Locale, "number formatting locale")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var (
		rows []ingest.Row
		err  error
	)
	switch {
	case *file != "":
		rows, err = readFile(*file)
	case *sheetID != "":
		rows, err = readSheet(ctx, cfg, *sheetID, *rng)
	default:
		return errors.New("preview needs -file or -sheet")
	}
	if err != nil {
		return err
	}

	budget := services.NewBudgetService(nil, nil, nil, format.NewFromLocale(*locale))
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tCLASS\tCODE\tDESCRIPTION\tQTY\tUNIT\tRATE\tAMOUNT")
	for _, l := range budget.Preview(rows) {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			l.Position+1, l.Classification, l.Code, l.Description,
			l.Quantity, l.UnitOfMeasure, l.Rate, l.Amount)
	}
	return tw.Flush()
}

func readFile(path string) ([]ingest.Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ingest.Read(filepath.Base(path), f)
}

// newRangeReader opens the Sheets API with the configured service account.
var newRangeReader = func(ctx context.Context, cfg *config.Config) (sheets.RangeReader, error) {
	return gsheet.New(ctx, gsheet.Config{
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	})
}

func readSheet(ctx context.Context, cfg *config.Config, spreadsheetID, rng string) ([]ingest.Row, error) {
	reader, err := newRangeReader(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return reader.ReadRange(ctx, spreadsheetID, rng)
}

func runToken(cfg *config.Config, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	fs.SetOutput(out)
	user := fs.String("user", "", "user the token is issued to")
	ttl := fs.Duration("ttl", cfg.TokenTTL, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *user == "" {
		return errors.New("token needs -user")
	}
	if len(cfg.JWTSecret) < 16 {
		return errors.New("JWT_SECRET must be at least 16 characters")
	}

	token, err := auth.Issue([]byte(cfg.JWTSecret), *user, *ttl, time.Now())
	if err != nil {
		return err
	}
	fmt.Fprintln(out, token)
	return nil
}

// remoteFlags are shared by the commands that call a server.
type remoteFlags struct {
	server string
	token  string
}

func (r *remoteFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&r.server, "server", envOr("BOQTRACK_URL", "http://localhost:8081"), "server base URL")
	fs.StringVar(&r.token, "token", os.Getenv("BOQTRACK_TOKEN"), "API token")
}

func (r *remoteFlags) client() (*remote.Client, auth.Credentials, error) {
	if r.token == "" {
		return nil, auth.Credentials{}, errors.New("missing -token (or BOQTRACK_TOKEN)")
	}
	return remote.NewClient(r.server, nil), auth.Credentials{Token: r.token}, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func runProjects(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("projects", flag.ContinueOnError)
	fs.SetOutput(out)
	var rf remoteFlags
	rf.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	client, creds, err := rf.client()
	if err != nil {
		return err
	}

	projects, err := client.ListProjects(ctx, creds)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tCODE\tLOCATION\tMANAGER")
	for _, p := range projects {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.Name, p.Code, p.Location, p.Manager)
	}
	return tw.Flush()
}

func runImport(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	fs.SetOutput(out)
	var rf remoteFlags
	rf.register(fs)
	project := fs.String("project", "", "project name")
	progress := fs.Float64("progress", 0, "progress percentage applied to every line")
	file := fs.String("file", "", "BOQ file to upload")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *project == "" || *file == "" {
		return errors.New("import needs -project and -file")
	}
	client, creds, err := rf.client()
	if err != nil {
		return err
	}

	f, err := os.Open(*file)
	if err != nil {
		return err
	}
	defer f.Close()

	res, err := client.ImportBudgetFile(ctx, creds, *project, *progress, filepath.Base(*file), f)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "import %s: %d lines, %d data, %d categories, %d totals, %d invalid\n",
		res.ImportID, res.Lines, res.DataRows, res.CategoryHeaders, res.Totals, res.Invalid)
	if res.Archived != "" {
		fmt.Fprintf(out, "archived at %s\n", res.Archived)
	}
	return nil
}

func runReport(ctx context.Context, cfg *config.Config, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	fs.SetOutput(out)
	var rf remoteFlags
	rf.register(fs)
	project := fs.String("project", "", "project name")
	locale := fs.String("locale", cfg.Locale, "number formatting locale")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *project == "" {
		return errors.New("report needs -project")
	}
	client, creds, err := rf.client()
	if err != nil {
		return err
	}

	summary, err := client.ReportSummary(ctx, creds, *project)
	if err != nil {
		return err
	}
	printSummary(out, summary, format.NewFromLocale(*locale))
	return nil
}

func printSummary(out io.Writer, s services.Summary, f *format.Formatter) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "CATEGORY\tINCOME\tEXPENSE\tPROFIT\t")
	for _, c := range s.Categories {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t\n", c.Category,
			f.SummaryNumber(c.IncomeAmount), f.SummaryNumber(c.ExpenseAmount), f.SummaryNumber(c.Profit))
	}
	fmt.Fprintf(tw, "TOTAL\t%s\t%s\t%s\t\n",
		f.SummaryNumber(s.Totals.IncomeAmount), f.SummaryNumber(s.Totals.ExpenseAmount), f.SummaryNumber(s.Totals.Profit))
	tw.Flush()

	for _, p := range s.Similar {
		fmt.Fprintf(out, "note: %q and %q look like the same category\n", p.A, p.B)
	}
}
