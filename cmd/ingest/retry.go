package main

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/pricelens/catalog/internal/app"
	"github.com/pricelens/catalog/internal/infrastructure/report"
	"github.com/pricelens/catalog/internal/usecase"
)

type retryOptions struct {
	from  string
	out   string
	fresh bool
}

func newRetryCmd(root *rootOptions) *cobra.Command {
	var opts retryOptions

	cmd := &cobra.Command{
		Use:   "retry",
		Short: "Re-import every ERROR row of a previous outcome log",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRetry(cmd.Context(), cmd.OutOrStdout(), root, opts)
		},
	}

	cmd.Flags().StringVar(&opts.from, "log", "", "Outcome log of the previous run (default from config import.primary_log)")
	cmd.Flags().StringVar(&opts.out, "out", "import_retry.csv", "Outcome log for this retry run")
	cmd.Flags().BoolVar(&opts.fresh, "fresh-logs", true, "Truncate the output log instead of appending")
	return cmd
}

func runRetry(ctx context.Context, out io.Writer, root *rootOptions, opts retryOptions) error {
	rt, err := root.setup(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	from := firstNonBlank(opts.from, rt.cfg.Import.PrimaryLog)
	outcomes, err := report.ReadCSVLog(from)
	if err != nil {
		return err
	}

	sink, err := report.OpenCSVLog(opts.out, opts.fresh)
	if err != nil {
		return err
	}
	defer sink.Close()

	service := usecase.NewImportService(rt.catalog, app.NewUpstream(rt.cfg.Upstream, rt.logger), rt.logger, app.ImportServiceConfig(rt.cfg))
	rt.logger.Info("retry started", "from", from, "rows", len(outcomes))

	result, err := service.RetryFromLog(ctx, outcomes, sink)
	if result != nil {
		report.PrintRunSummary(out, result, sink.Path())
	}
	return err
}
