package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pricelens/catalog/internal/domain"
)

// PrintBatchSummary writes the end-of-run summary of a batch or listing import
func PrintBatchSummary(w io.Writer, r *domain.BatchReport, primaryLog, sweepLog string) {
	p := r.Primary
	fmt.Fprintln(w, "\nFINAL SUMMARY")
	fmt.Fprintf(w, "  run:                 %s\n", p.ID)
	fmt.Fprintf(w, "  attempted:           %d\n", p.Attempted)
	fmt.Fprintf(w, "  created:             %d\n", p.Created)
	fmt.Fprintf(w, "  updated:             %d\n", p.Updated)
	fmt.Fprintf(w, "  skipped:             %d\n", p.Skipped)
	fmt.Fprintf(w, "  failed first pass:   %d\n", p.Failed)
	fmt.Fprintf(w, "  recovered in sweep:  %d\n", r.Recovered())
	fmt.Fprintf(w, "  permanently failed:  %d\n", r.PermanentlyFailed())
	if p.PageFailures > 0 {
		fmt.Fprintf(w, "  failed pages:        %d\n", p.PageFailures)
	}
	fmt.Fprintf(w, "  duration:            %s\n", p.FinishedAt.Sub(p.StartedAt).Round(time.Millisecond))
	if primaryLog != "" {
		fmt.Fprintf(w, "  primary log:         %s\n", primaryLog)
	}
	if r.Sweep != nil && sweepLog != "" {
		fmt.Fprintf(w, "  final sweep log:     %s\n", sweepLog)
	}
}

// PrintRunSummary writes the summary of a single pass (e.g. a retry from a log)
func PrintRunSummary(w io.Writer, r *domain.RunReport, logPath string) {
	fmt.Fprintf(w, "\n%s SUMMARY\n", strings.ToUpper(r.Name))
	fmt.Fprintf(w, "  attempted:  %d\n", r.Attempted)
	fmt.Fprintf(w, "  created:    %d\n", r.Created)
	fmt.Fprintf(w, "  updated:    %d\n", r.Updated)
	fmt.Fprintf(w, "  skipped:    %d\n", r.Skipped)
	fmt.Fprintf(w, "  failed:     %d\n", r.Failed)
	if logPath != "" {
		fmt.Fprintf(w, "  log:        %s\n", logPath)
	}
}

// PrintDumpSummary writes the summary of a bulk dump import
func PrintDumpSummary(w io.Writer, r *domain.DumpReport) {
	fmt.Fprintln(w, "\nDUMP IMPORT SUMMARY")
	fmt.Fprintf(w, "  read:        %d\n", r.Read)
	fmt.Fprintf(w, "  considered:  %d\n", r.Considered)
	fmt.Fprintf(w, "  created:     %d\n", r.Created)
	fmt.Fprintf(w, "  updated:     %d\n", r.Updated)
	fmt.Fprintf(w, "  discarded:   %d\n", r.Discarded)
	fmt.Fprintf(w, "  failed:      %d\n", r.Failed)
	if r.Truncated {
		fmt.Fprintln(w, "  stopped at the record limit")
	}
	for _, f := range r.Failures {
		fmt.Fprintf(w, "  ! %s: %s\n", f.EAN, f.Message)
	}
}

// PrintUnitBackfill writes the summary of a unit backfill
func PrintUnitBackfill(w io.Writer, r *domain.UnitBackfillReport) {
	fmt.Fprintln(w, "\nUNIT NORMALIZATION SUMMARY")
	fmt.Fprintf(w, "  updated:       %d\n", r.Updated)
	fmt.Fprintf(w, "  unchanged:     %d\n", r.Unchanged)
	fmt.Fprintf(w, "  unrecognized:  %d\n", r.Unrecognized)
	if len(r.UnknownUnits) > 0 {
		fmt.Fprintln(w, "  unrecognized units:")
		for _, u := range r.UnknownUnits {
			fmt.Fprintf(w, "  - %q\n", u)
		}
	}
}

// PrintTranslationBackfill writes the summary of a translation backfill
func PrintTranslationBackfill(w io.Writer, r *domain.TranslationBackfillReport) {
	fmt.Fprintf(w, "\ntranslations updated for %d products, %d already complete\n", r.Updated, r.Complete)
}

// PrintCategoryImport writes the summary of a curated category import
func PrintCategoryImport(w io.Writer, r *domain.CategoryImportReport) {
	fmt.Fprintf(w, "\ncategories created: %d, updated: %d, parent links: %d\n", r.Created, r.Updated, r.Linked)
}
