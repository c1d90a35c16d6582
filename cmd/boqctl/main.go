// Command boqctl previews BOQ spreadsheets locally, issues API tokens and
// talks to a running boqtrack server.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"boqtrack/internal/cli"
	"boqtrack/internal/config"
)

const usage = `usage: boqctl <command> [flags]

commands:
  preview    classify the lines of a local BOQ file or a Google Sheets range
  token      issue an API token for a user (needs JWT_SECRET)
  projects   list the projects of the token's user
  import     upload a BOQ file as a project's budget
  report     print a project's category summary
`

func main() {
	cli.LoadEnvFile()
	cfg := config.Load()
	if err := run(context.Background(), cfg, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "boqctl:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, args []string, out io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(out, usage)
		return fmt.Errorf("missing command")
	}
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "preview":
		return runPreview(ctx, cfg, rest, out)
	case "token":
		return runToken(cfg, rest, out)
	case "projects":
		return runProjects(ctx, rest, out)
	case "import":
		return runImport(ctx, rest, out)
	case "report":
		return runReport(ctx, cfg, rest, out)
	case "help", "-h", "--help":
		fmt.Fprint(out, usage)
		return nil
	default:
		fmt.Fprint(out, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}
