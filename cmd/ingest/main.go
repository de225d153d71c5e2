// Command ingest drives catalog ingestion and maintenance runs.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

const (
	exitFailure = 1
	exitUsage   = 2
)

// exitError carries a process exit code with its cause
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func withCode(code int, err error) error {
	return &exitError{code: code, err: err}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := newRootCmd().ExecuteContext(ctx)
	if err == nil {
		return
	}

	fmt.Fprintln(os.Stderr, "error:", err)
	code := exitFailure
	var ee *exitError
	if errors.As(err, &ee) {
		code = ee.code
	}
	stop()
	os.Exit(code)
}

func newRootCmd() *cobra.Command {
	var opts rootOptions

	cmd := &cobra.Command{
		Use:           "ingest",
		Short:         "Import and maintain the product catalog from Open*Facts sources",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "Config file (default: search ./config.yaml, ./config, /etc/pricelens)")
	flags.StringVar(&opts.envFile, "env-file", ".env", "Dotenv file loaded before configuration")
	flags.StringVar(&opts.logLevel, "log-level", "", "Override log level (debug, info, warn, error)")
	flags.StringVar(&opts.catalogType, "catalog", "", "Override catalog type (memory, postgres, sqlite)")
	flags.StringVar(&opts.dsn, "dsn", "", "Override catalog DSN")

	cmd.AddCommand(
		newMigrateCmd(&opts),
		newImportCmd(&opts),
		newRetryCmd(&opts),
		newNormalizeUnitsCmd(&opts),
		newBackfillTranslationsCmd(&opts),
	)
	return cmd
}
