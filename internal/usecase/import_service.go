package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pricelens/catalog/internal/domain"
)

// Report pass names
const (
	PassPrimary = "primary"
	PassSweep   = "final-sweep"
	PassRetry   = "retry"
)

// ImportServiceConfig holds configuration for the import orchestrator
type ImportServiceConfig struct {
	// MaxAttempts per identifier in the primary pass
	MaxAttempts int
	// RetryDelay between two attempts on the same identifier
	RetryDelay time.Duration
	// Workers is the number of identifiers imported concurrently
	Workers int
	// FinalSweep retries every permanently failed identifier once more after the primary pass
	FinalSweep      bool
	MergePolicy     domain.MergePolicy
	BrandSimilarity float64
	Languages       []string
	PrimaryLanguage string
}

// ImportService fetches products from upstream sources and upserts them into the catalog
type ImportService struct {
	catalog  domain.Catalog
	upstream domain.UpstreamClient
	writer   *productWriter
	logger   *slog.Logger
	config   ImportServiceConfig

	sleep func(ctx context.Context, d time.Duration) error
}

// NewImportService creates a new import service with dependencies
func NewImportService(
	catalog domain.Catalog,
	upstream domain.UpstreamClient,
	logger *slog.Logger,
	config ImportServiceConfig,
) *ImportService {
	if logger == nil {
		logger = slog.Default()
	}
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 3
	}
	if config.Workers < 1 {
		config.Workers = 1
	}
	if !config.MergePolicy.Valid() {
		config.MergePolicy = domain.MergeOverwrite
	}

	logger = logger.With("component", "import")
	return &ImportService{
		catalog:  catalog,
		upstream: upstream,
		writer:   newProductWriter(catalog, NewHierarchyResolver(logger), config.MergePolicy),
		logger:   logger,
		config:   config,
		sleep:    sleepContext,
	}
}

// importRun is the state shared by every identifier of one run
type importRun struct {
	normalizer *Normalizer
}

// newRun starts a run with its own brand cache, loaded lazily from the catalog
func (s *ImportService) newRun() *importRun {
	cache := NewBrandCache(s.catalog, s.config.BrandSimilarity)
	return &importRun{
		normalizer: NewNormalizer(NewBrandCanonicalizer(cache), NormalizerConfig{
			Languages:       s.config.Languages,
			PrimaryLanguage: s.config.PrimaryLanguage,
		}),
	}
}

// ImportEAN imports a single identifier with the configured number of attempts
func (s *ImportService) ImportEAN(ctx context.Context, ean string) domain.ImportResult {
	return s.importWithRetries(ctx, s.newRun(), ean, s.config.MaxAttempts)
}

// ImportBatch imports every identifier, then retries the ones still failing in a
// final sweep when enabled. Outcomes are streamed to primary and sweep (either may be nil).
// A cancelled context stops scheduling new identifiers; the partial report is returned.
func (s *ImportService) ImportBatch(ctx context.Context, eans []string, primary, sweep domain.OutcomeSink) (*domain.BatchReport, error) {
	run := s.newRun()

	report := &domain.BatchReport{Primary: domain.NewRunReport(PassPrimary)}
	err := s.runPass(ctx, run, report.Primary, primary, eans, s.config.MaxAttempts)
	report.Primary.Finish()
	if err != nil {
		return report, err
	}

	report.Sweep, err = s.finalSweep(ctx, run, report.Primary, sweep)
	return report, err
}

// ImportListing pages through every dataset's product listing and imports each listed
// identifier. A failed page is recorded as an ERROR row and ends that dataset.
func (s *ImportService) ImportListing(ctx context.Context, datasets []string, primary, sweep domain.OutcomeSink) (*domain.BatchReport, error) {
	run := s.newRun()
	report := &domain.BatchReport{Primary: domain.NewRunReport(PassPrimary)}

	for _, dataset := range datasets {
		logger := s.logger.With("dataset", dataset)
		logger.Info("listing import started")

		for page := 1; ; page++ {
			if err := ctx.Err(); err != nil {
				report.Primary.Finish()
				return report, err
			}

			docs, err := s.upstream.ListPage(ctx, dataset, page)
			if err != nil {
				msg := fmt.Sprintf("listing %s page %d: %v", dataset, page, err)
				logger.Error("listing page failed", "page", page, "error", err)
				s.emit(primary, report.Primary.AddError(domain.NoIdentifier, msg))
				break
			}
			if len(docs) == 0 {
				logger.Info("listing import finished", "pages", page-1)
				break
			}

			eans := make([]string, 0, len(docs))
			for _, doc := range docs {
				ean := documentEAN(doc)
				if !ValidateEAN(ean) {
					id := ean
					if id == "" {
						id = domain.NoIdentifier
					}
					s.emit(primary, report.Primary.AddSkipped(id, fmt.Sprintf("%v: %q", domain.ErrInvalidEAN, ean)))
					continue
				}
				eans = append(eans, ean)
			}

			if err := s.runPass(ctx, run, report.Primary, primary, eans, s.config.MaxAttempts); err != nil {
				report.Primary.Finish()
				return report, err
			}
			logger.Info("listing page imported", "page", page, "listed", len(docs))
		}
	}
	report.Primary.Finish()

	var err error
	report.Sweep, err = s.finalSweep(ctx, run, report.Primary, sweep)
	return report, err
}

// RetryFromLog re-imports every identifier recorded as ERROR in a previous run's outcomes
func (s *ImportService) RetryFromLog(ctx context.Context, outcomes []domain.Outcome, sink domain.OutcomeSink) (*domain.RunReport, error) {
	seen := make(map[string]struct{}, len(outcomes))
	eans := make([]string, 0, len(outcomes))
	for _, o := range outcomes {
		if o.Status != domain.StatusError || o.EAN == "" || o.EAN == domain.NoIdentifier {
			continue
		}
		if _, dup := seen[o.EAN]; dup {
			continue
		}
		seen[o.EAN] = struct{}{}
		eans = append(eans, o.EAN)
	}

	report := domain.NewRunReport(PassRetry)
	err := s.runPass(ctx, s.newRun(), report, sink, eans, s.config.MaxAttempts)
	report.Finish()
	return report, err
}

// finalSweep gives every identifier that failed the primary pass one more attempt
func (s *ImportService) finalSweep(ctx context.Context, run *importRun, primary *domain.RunReport, sink domain.OutcomeSink) (*domain.RunReport, error) {
	failures := primary.Failures()
	if !s.config.FinalSweep || len(failures) == 0 {
		return nil, nil
	}

	eans := make([]string, 0, len(failures))
	for _, f := range failures {
		eans = append(eans, f.EAN)
	}

	s.logger.Info("final sweep started", "identifiers", len(eans))
	sweep := domain.NewRunReport(PassSweep)
	err := s.runPass(ctx, run, sweep, sink, eans, 1)
	sweep.Finish()
	return sweep, err
}

// runPass imports eans with bounded concurrency, recording every result in report
func (s *ImportService) runPass(
	ctx context.Context,
	run *importRun,
	report *domain.RunReport,
	sink domain.OutcomeSink,
	eans []string,
	attempts int,
) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.Workers)

	for _, ean := range eans {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			res := s.importWithRetries(gctx, run, ean, attempts)
			s.emit(sink, report.AddResult(res))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// importWithRetries retries transient failures up to attempts times with a fixed delay.
// Rejections return immediately.
func (s *ImportService) importWithRetries(ctx context.Context, run *importRun, ean string, attempts int) domain.ImportResult {
	var res domain.ImportResult
	for attempt := 1; attempt <= attempts; attempt++ {
		res = s.importOnce(ctx, run, ean)
		res.Attempts = attempt
		if res.Kind != domain.ResultTransient {
			return res
		}

		s.logger.Warn("import attempt failed",
			"ean", ean,
			"attempt", attempt,
			"max_attempts", attempts,
			"error", res.Err,
		)
		if attempt < attempts {
			if err := s.sleep(ctx, s.config.RetryDelay); err != nil {
				res.Err = fmt.Errorf("%w (retry aborted: %v)", res.Err, err)
				return res
			}
		}
	}
	return res
}

// importOnce performs one fetch → normalize → upsert attempt
func (s *ImportService) importOnce(ctx context.Context, run *importRun, ean string) domain.ImportResult {
	res := domain.ImportResult{EAN: ean}

	if !ValidateEAN(ean) {
		res.Kind, res.Err = domain.ResultRejected, fmt.Errorf("%w: %q", domain.ErrInvalidEAN, ean)
		return res
	}

	found, err := s.upstream.FetchProduct(ctx, ean)
	if err != nil {
		res.Err = err
		res.Kind = domain.ResultTransient
		if errors.Is(err, domain.ErrProductNotFound) {
			res.Kind = domain.ResultRejected
		}
		return res
	}
	res.Source = found.Source

	normalized, err := run.normalizer.Normalize(ctx, found.Document)
	if err != nil {
		res.Kind, res.Err = domain.ResultTransient, err
		return res
	}
	if normalized.Rejected != nil {
		res.Kind, res.Err = domain.ResultRejected, normalized.Rejected
		return res
	}

	created, err := s.writer.write(ctx, normalized.Product)
	if err != nil {
		res.Kind, res.Err = domain.ResultTransient, fmt.Errorf("store product: %w", err)
		return res
	}

	res.Kind, res.Created = domain.ResultSuccess, created
	return res
}

// emit logs an outcome and forwards it to sink
func (s *ImportService) emit(sink domain.OutcomeSink, o domain.Outcome) {
	logOutcome(s.logger, o)
	if sink == nil {
		return
	}
	if err := sink.Write(o); err != nil {
		s.logger.Error("failed to write outcome", "ean", o.EAN, "error", err)
	}
}

func logOutcome(logger *slog.Logger, o domain.Outcome) {
	switch o.Status {
	case domain.StatusOK:
		logger.Info("record imported", "ean", o.EAN, "message", o.Message)
	case domain.StatusSkipped:
		logger.Warn("record skipped", "ean", o.EAN, "message", o.Message)
	default:
		logger.Error("record failed", "ean", o.EAN, "message", o.Message)
	}
}

// productWriter stores one normalized product and its imported category in one transaction
type productWriter struct {
	catalog  domain.Catalog
	resolver *HierarchyResolver
	policy   domain.MergePolicy
}

func newProductWriter(catalog domain.Catalog, resolver *HierarchyResolver, policy domain.MergePolicy) *productWriter {
	return &productWriter{catalog: catalog, resolver: resolver, policy: policy}
}

// write upserts p, resolves its category path and links the leaf. created is true
// only when the product did not exist before.
func (w *productWriter) write(ctx context.Context, p *domain.NormalizedProduct) (bool, error) {
	var created bool
	err := w.catalog.Transact(ctx, func(tx domain.CatalogTx) error {
		stored, isNew, err := tx.UpsertProduct(ctx, p, w.policy)
		if err != nil {
			return err
		}

		leaf, err := w.resolver.Resolve(ctx, tx, p.CategoryTags)
		if err != nil {
			return err
		}
		if leaf != nil {
			if err := tx.AttachImportedCategory(ctx, stored.ID, leaf.ID); err != nil {
				return err
			}
		}

		created = isNew
		return nil
	})
	if err != nil {
		return false, err
	}
	return created, nil
}

// sleepContext waits for d or until ctx is done
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
