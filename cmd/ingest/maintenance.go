package main

import (
	"github.com/spf13/cobra"

	"github.com/pricelens/catalog/internal/infrastructure/report"
	"github.com/pricelens/catalog/internal/usecase"
)

func newNormalizeUnitsCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "normalize-units",
		Short: "Map every stored unit through the unit table",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := root.setup(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()

			service := usecase.NewMaintenanceService(rt.catalog, rt.logger, rt.cfg.Import.Languages)
			result, err := service.BackfillUnits(ctx)
			if result != nil {
				report.PrintUnitBackfill(cmd.OutOrStdout(), result)
			}
			return err
		},
	}
}

func newBackfillTranslationsCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "backfill-translations",
		Short: "Fill missing translations from stored raw data",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := root.setup(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()

			service := usecase.NewMaintenanceService(rt.catalog, rt.logger, rt.cfg.Import.Languages)
			result, err := service.BackfillTranslations(ctx)
			if result != nil {
				report.PrintTranslationBackfill(cmd.OutOrStdout(), result)
			}
			return err
		},
	}
}
