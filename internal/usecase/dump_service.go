package usecase

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pricelens/catalog/internal/domain"
)

// maxDumpFailures caps the failure rows kept in a dump report
const maxDumpFailures = 1000

// DocumentFilter decides whether a dump document is considered for import
type DocumentFilter func(doc domain.RawDocument) bool

// CountryFilter accepts documents whose countries_tags contain one of tags or whose
// free-text countries field mentions one of names (both case-insensitive).
// With no tags and no names every document is accepted.
func CountryFilter(tags, names []string) DocumentFilter {
	wantTags := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			wantTags[t] = struct{}{}
		}
	}
	wantNames := make([]string, 0, len(names))
	for _, n := range names {
		if n = strings.ToLower(strings.TrimSpace(n)); n != "" {
			wantNames = append(wantNames, n)
		}
	}

	if len(wantTags) == 0 && len(wantNames) == 0 {
		return func(domain.RawDocument) bool { return true }
	}

	return func(doc domain.RawDocument) bool {
		if items, ok := doc.Get("countries_tags").([]any); ok {
			for _, item := range items {
				s, ok := item.(string)
				if !ok {
					continue
				}
				if _, hit := wantTags[strings.ToLower(strings.TrimSpace(s))]; hit {
					return true
				}
			}
		}

		countries := strings.ToLower(doc.String("countries"))
		if countries == "" {
			return false
		}
		for _, n := range wantNames {
			if strings.Contains(countries, n) {
				return true
			}
		}
		return false
	}
}

// DumpServiceConfig holds configuration for the bulk dump importer
type DumpServiceConfig struct {
	MergePolicy     domain.MergePolicy
	BrandSimilarity float64
	Languages       []string
	PrimaryLanguage string
	// ProgressEvery logs a progress line every N read lines; 0 disables it
	ProgressEvery int
}

// DumpOptions tune a single dump import
type DumpOptions struct {
	Filter DocumentFilter
	// Limit stops the import once this many records were created or updated; 0 means no cap
	Limit int
}

// DumpService imports a newline-delimited JSON dump into the catalog
type DumpService struct {
	catalog domain.Catalog
	writer  *productWriter
	logger  *slog.Logger
	config  DumpServiceConfig
}

// NewDumpService creates a new dump import service
func NewDumpService(catalog domain.Catalog, logger *slog.Logger, config DumpServiceConfig) *DumpService {
	if logger == nil {
		logger = slog.Default()
	}
	if !config.MergePolicy.Valid() {
		config.MergePolicy = domain.MergeOverwrite
	}

	logger = logger.With("component", "dump")
	return &DumpService{
		catalog: catalog,
		writer:  newProductWriter(catalog, NewHierarchyResolver(logger), config.MergePolicy),
		logger:  logger,
		config:  config,
	}
}

// Import streams r line by line. Malformed lines and rejected documents are
// discarded, storage failures are counted as failed; neither stops the import.
// Only a read error or a cancelled context ends it early.
func (s *DumpService) Import(ctx context.Context, r io.Reader, opts DumpOptions) (*domain.DumpReport, error) {
	filter := opts.Filter
	if filter == nil {
		filter = func(domain.RawDocument) bool { return true }
	}

	normalizer := NewNormalizer(
		NewBrandCanonicalizer(NewBrandCache(s.catalog, s.config.BrandSimilarity)),
		NormalizerConfig{Languages: s.config.Languages, PrimaryLanguage: s.config.PrimaryLanguage},
	)

	report := &domain.DumpReport{ID: uuid.New(), StartedAt: time.Now()}
	defer func() { report.FinishedAt = time.Now() }()

	reader := bufio.NewReaderSize(r, 1<<20)
	for {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		line, readErr := reader.ReadBytes('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return report, fmt.Errorf("read dump: %w", readErr)
		}

		if line = bytes.TrimSpace(line); len(line) > 0 {
			s.importLine(ctx, normalizer, line, filter, report)

			if opts.Limit > 0 && report.Processed() >= opts.Limit {
				report.Truncated = true
				s.logger.Info("dump import limit reached", "limit", opts.Limit)
				return report, nil
			}
			if s.config.ProgressEvery > 0 && report.Read%s.config.ProgressEvery == 0 {
				s.logger.Info("dump import progress",
					"read", report.Read,
					"considered", report.Considered,
					"created", report.Created,
					"updated", report.Updated,
					"discarded", report.Discarded,
					"failed", report.Failed,
				)
			}
		}

		if errors.Is(readErr, io.EOF) {
			return report, nil
		}
	}
}

func (s *DumpService) importLine(ctx context.Context, normalizer *Normalizer, line []byte, filter DocumentFilter, report *domain.DumpReport) {
	report.Read++

	doc, err := domain.ParseRawDocument(line)
	if err != nil {
		report.Discarded++
		s.logger.Debug("discarding malformed line", "line", report.Read, "error", err)
		return
	}
	if !filter(doc) {
		return
	}
	report.Considered++

	normalized, err := normalizer.Normalize(ctx, doc)
	if err != nil {
		s.recordFailure(report, documentEAN(doc), err)
		return
	}
	if normalized.Rejected != nil {
		report.Discarded++
		s.logger.Debug("discarding document", "line", report.Read, "reason", normalized.Rejected)
		return
	}

	created, err := s.writer.write(ctx, normalized.Product)
	if err != nil {
		s.recordFailure(report, normalized.Product.EAN, fmt.Errorf("store product: %w", err))
		return
	}
	if created {
		report.Created++
	} else {
		report.Updated++
	}
}

func (s *DumpService) recordFailure(report *domain.DumpReport, ean string, err error) {
	report.Failed++
	if ean == "" {
		ean = domain.NoIdentifier
	}
	s.logger.Error("dump record failed", "ean", ean, "error", err)
	if len(report.Failures) < maxDumpFailures {
		report.Failures = append(report.Failures, domain.Outcome{
			EAN:     ean,
			Status:  domain.StatusError,
			Message: err.Error(),
		})
	}
}
