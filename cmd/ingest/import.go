package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pricelens/catalog/internal/app"
	"github.com/pricelens/catalog/internal/domain"
	"github.com/pricelens/catalog/internal/infrastructure/dump"
	"github.com/pricelens/catalog/internal/infrastructure/report"
	"github.com/pricelens/catalog/internal/usecase"
)

// logOptions select the outcome logs of a batch run
type logOptions struct {
	primaryLog string
	sweepLog   string
	fresh      bool
}

func (o *logOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.primaryLog, "log", "", "Primary outcome log (default from config import.primary_log)")
	cmd.Flags().StringVar(&o.sweepLog, "sweep-log", "", "Final sweep outcome log (default from config import.retry_log)")
	cmd.Flags().BoolVar(&o.fresh, "fresh-logs", false, "Truncate outcome logs instead of appending")
}

// open opens both logs, falling back to the configured paths
func (o *logOptions) open(rt *runtime) (primary, sweep *report.CSVLog, err error) {
	primaryPath := firstNonBlank(o.primaryLog, rt.cfg.Import.PrimaryLog)
	sweepPath := firstNonBlank(o.sweepLog, rt.cfg.Import.RetryLog)

	primary, err = report.OpenCSVLog(primaryPath, o.fresh)
	if err != nil {
		return nil, nil, err
	}
	sweep, err = report.OpenCSVLog(sweepPath, o.fresh)
	if err != nil {
		primary.Close()
		return nil, nil, err
	}
	return primary, sweep, nil
}

func newImportCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import products or categories into the catalog",
	}
	cmd.AddCommand(
		newImportEANCmd(root),
		newImportAllCmd(root),
		newImportDumpCmd(root),
		newImportCategoriesCmd(root),
	)
	return cmd
}

type importEANOptions struct {
	file string
	logs logOptions
}

func newImportEANCmd(root *rootOptions) *cobra.Command {
	var opts importEANOptions

	cmd := &cobra.Command{
		Use:   "ean [EAN...]",
		Short: "Import products by barcode with retries and a final sweep",
		RunE: func(cmd *cobra.Command, args []string) error {
			eans := append([]string(nil), args...)
			if opts.file != "" {
				fromFile, err := readEANFile(opts.file)
				if err != nil {
					return err
				}
				eans = append(eans, fromFile...)
			}
			if len(eans) == 0 {
				return withCode(exitUsage, errors.New("pass at least one EAN or --file"))
			}
			return runImportEANs(cmd.Context(), cmd.OutOrStdout(), root, opts, eans)
		},
	}

	cmd.Flags().StringVar(&opts.file, "file", "", "File with one EAN per line (# starts a comment)")
	opts.logs.bind(cmd)
	return cmd
}

func runImportEANs(ctx context.Context, out io.Writer, root *rootOptions, opts importEANOptions, eans []string) error {
	rt, err := root.setup(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	primary, sweep, err := opts.logs.open(rt)
	if err != nil {
		return err
	}
	defer primary.Close()
	defer sweep.Close()

	service := usecase.NewImportService(rt.catalog, app.NewUpstream(rt.cfg.Upstream, rt.logger), rt.logger, app.ImportServiceConfig(rt.cfg))
	rt.logger.Info("batch import started", "identifiers", len(eans), "workers", rt.cfg.Import.Workers)

	result, err := service.ImportBatch(ctx, eans, primary, sweep)
	if result != nil {
		report.PrintBatchSummary(out, result, primary.Path(), sweep.Path())
	}
	return err
}

type importAllOptions struct {
	datasets []string
	logs     logOptions
}

func newImportAllCmd(root *rootOptions) *cobra.Command {
	var opts importAllOptions

	cmd := &cobra.Command{
		Use:   "all",
		Short: "Import every product listed by the configured datasets",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImportAll(cmd.Context(), cmd.OutOrStdout(), root, opts)
		},
	}

	cmd.Flags().StringSliceVar(&opts.datasets, "dataset", nil, "Dataset base URL or domain (repeatable; default from config upstream.datasets)")
	opts.logs.bind(cmd)
	return cmd
}

func runImportAll(ctx context.Context, out io.Writer, root *rootOptions, opts importAllOptions) error {
	rt, err := root.setup(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	datasets := opts.datasets
	if len(datasets) == 0 {
		datasets = rt.cfg.Upstream.Datasets
	}
	if len(datasets) == 0 {
		return withCode(exitUsage, errors.New("no datasets configured"))
	}

	primary, sweep, err := opts.logs.open(rt)
	if err != nil {
		return err
	}
	defer primary.Close()
	defer sweep.Close()

	service := usecase.NewImportService(rt.catalog, app.NewUpstream(rt.cfg.Upstream, rt.logger), rt.logger, app.ImportServiceConfig(rt.cfg))

	result, err := service.ImportListing(ctx, datasets, primary, sweep)
	if result != nil {
		report.PrintBatchSummary(out, result, primary.Path(), sweep.Path())
	}
	return err
}

type importDumpOptions struct {
	file         string
	limit        int
	countryTags  []string
	countryNames []string
	allCountries bool
}

func newImportDumpCmd(root *rootOptions) *cobra.Command {
	var opts importDumpOptions

	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Import a gzip or plain JSON-lines product dump",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImportDump(cmd.Context(), cmd.OutOrStdout(), root, opts, cmd.Flags().Changed("limit"))
		},
	}

	cmd.Flags().StringVar(&opts.file, "file", "", "Dump file path, - for stdin (required)")
	cmd.Flags().IntVar(&opts.limit, "limit", 0, "Stop after this many created or updated records (0 = no cap)")
	cmd.Flags().StringSliceVar(&opts.countryTags, "country-tag", nil, "Accepted countries_tags values (default from config dump.country_tags)")
	cmd.Flags().StringSliceVar(&opts.countryNames, "country-name", nil, "Accepted countries text fragments (default from config dump.country_names)")
	cmd.Flags().BoolVar(&opts.allCountries, "all-countries", false, "Import every record regardless of country")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runImportDump(ctx context.Context, out io.Writer, root *rootOptions, opts importDumpOptions, limitSet bool) error {
	if opts.limit < 0 {
		return withCode(exitUsage, errors.New("--limit must not be negative"))
	}

	rt, err := root.setup(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	src, err := dump.Open(opts.file)
	if err != nil {
		return err
	}
	defer src.Close()

	limit := rt.cfg.Dump.Limit
	if limitSet {
		limit = opts.limit
	}

	var filter usecase.DocumentFilter
	if !opts.allCountries {
		tags, names := opts.countryTags, opts.countryNames
		if len(tags) == 0 && len(names) == 0 {
			tags, names = rt.cfg.Dump.CountryTags, rt.cfg.Dump.CountryNames
		}
		filter = usecase.CountryFilter(tags, names)
	}

	service := usecase.NewDumpService(rt.catalog, rt.logger, app.DumpServiceConfig(rt.cfg))
	rt.logger.Info("dump import started", "file", opts.file, "limit", limit)

	result, err := service.Import(ctx, src, usecase.DumpOptions{Filter: filter, Limit: limit})
	if result != nil {
		report.PrintDumpSummary(out, result)
	}
	return err
}

func newImportCategoriesCmd(root *rootOptions) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "categories",
		Short: "Import a curated category taxonomy from JSON",
		Long: "Reads a JSON array of {\"tag\", \"name\", \"parent_tag\", \"translations\"} entries.\n" +
			"Entries are applied in order; parents must precede their children or already exist.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImportCategories(cmd.Context(), cmd.OutOrStdout(), root, file)
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "JSON taxonomy file (required)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func runImportCategories(ctx context.Context, out io.Writer, root *rootOptions, file string) error {
	entries, err := readCuratedCategories(file)
	if err != nil {
		return withCode(exitUsage, err)
	}

	rt, err := root.setup(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	service := usecase.NewMaintenanceService(rt.catalog, rt.logger, rt.cfg.Import.Languages)
	result, err := service.ImportCuratedCategories(ctx, entries)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidRequest) {
			return withCode(exitUsage, err)
		}
		return err
	}
	report.PrintCategoryImport(out, result)
	return nil
}

// readEANFile reads one identifier per line, skipping blanks and # comments
func readEANFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open EAN file: %w", err)
	}
	defer f.Close()

	var eans []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		eans = append(eans, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read EAN file: %w", err)
	}
	return eans, nil
}

func readCuratedCategories(path string) ([]domain.CuratedCategory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read taxonomy: %w", err)
	}
	var entries []domain.CuratedCategory
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse taxonomy: %w", err)
	}
	return entries, nil
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
