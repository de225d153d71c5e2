package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/pricelens/catalog/internal/infrastructure/sqlstore"
)

type migrateOptions struct {
	up      bool
	down    bool
	steps   int
	version bool
	force   int
}

func newMigrateCmd(root *rootOptions) *cobra.Command {
	var opts migrateOptions

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back catalog schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			forceSet := cmd.Flags().Changed("force")
			return runMigrate(cmd.OutOrStdout(), root, opts, forceSet)
		},
	}

	cmd.Flags().BoolVar(&opts.up, "up", false, "Run all up migrations")
	cmd.Flags().BoolVar(&opts.down, "down", false, "Run all down migrations")
	cmd.Flags().IntVar(&opts.steps, "steps", 0, "Number of migrations (positive=up, negative=down)")
	cmd.Flags().BoolVar(&opts.version, "version", false, "Print current migration version")
	cmd.Flags().IntVar(&opts.force, "force", -1, "Force set version (use with caution)")
	cmd.MarkFlagsMutuallyExclusive("up", "down", "steps", "version", "force")

	return cmd
}

func runMigrate(out io.Writer, root *rootOptions, opts migrateOptions, forceSet bool) error {
	cfg, logger, err := root.loadConfig()
	if err != nil {
		return err
	}
	if cfg.Catalog.Type == "memory" {
		return withCode(exitUsage, errors.New("migrations need a postgres or sqlite catalog"))
	}

	dialect, err := sqlstore.ParseDialect(cfg.Catalog.Type)
	if err != nil {
		return withCode(exitUsage, err)
	}

	m, err := sqlstore.NewMigrator(dialect, cfg.Catalog.DSN)
	if err != nil {
		return err
	}
	defer m.Close()

	switch {
	case opts.version:
		v, dirty, err := m.Version()
		if err != nil {
			return fmt.Errorf("get version: %w", err)
		}
		fmt.Fprintf(out, "version: %d, dirty: %v\n", v, dirty)
		return nil
	case forceSet:
		if err := m.Force(opts.force); err != nil {
			return fmt.Errorf("force version: %w", err)
		}
		fmt.Fprintf(out, "forced to version %d\n", opts.force)
		return nil
	case opts.up, opts.down, opts.steps != 0:
		op := sqlstore.MigrationOp{Up: opts.up, Down: opts.down, Steps: opts.steps}
		if err := m.Run(op); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		logger.Info("migrations applied", "dialect", string(dialect), "up", opts.up, "down", opts.down, "steps", opts.steps)
		fmt.Fprintln(out, "migrations applied successfully")
		return nil
	default:
		return withCode(exitUsage, errors.New("one of --up, --down, --steps, --version or --force is required"))
	}
}
