package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/pricelens/catalog/internal/domain"
)

// ServiceName is reported by the health endpoint
const ServiceName = "pricelens-catalog"

// Version is the ops server version
const Version = "1.0.0"

// maxBatchSize bounds the identifiers accepted by one batch request
const maxBatchSize = 1000

// Importer runs per-identifier imports
type Importer interface {
	ImportEAN(ctx context.Context, ean string) domain.ImportResult
	ImportBatch(ctx context.Context, eans []string, primary, sweep domain.OutcomeSink) (*domain.BatchReport, error)
}

// Pinger reports whether the catalog is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	importer Importer
	catalog  Pinger
	logger   *slog.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(importer Importer, catalog Pinger, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		importer: importer,
		catalog:  catalog,
		logger:   logger.With("component", "http"),
	}
}

// HealthCheck returns the health status of the service and its catalog
func (h *Handler) HealthCheck(c *gin.Context) {
	status, code, catalog := "healthy", http.StatusOK, "ok"
	if h.catalog != nil {
		if err := h.catalog.Ping(c.Request.Context()); err != nil {
			h.logger.Error("catalog ping failed", "error", err)
			status, code, catalog = "unhealthy", http.StatusServiceUnavailable, "unreachable"
		}
	}

	c.JSON(code, gin.H{
		"status":  status,
		"service": ServiceName,
		"version": Version,
		"catalog": catalog,
	})
}

// ImportProductResponse is the body returned for a single import
type ImportProductResponse struct {
	domain.Outcome
	Created  bool   `json:"created"`
	Source   string `json:"source,omitempty"`
	Attempts int    `json:"attempts"`
}

// ImportProduct imports one identifier with retries and returns its outcome
func (h *Handler) ImportProduct(c *gin.Context) {
	if h.importer == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "import service not configured"})
		return
	}

	ean := strings.TrimSpace(c.Param("ean"))
	res := h.importer.ImportEAN(c.Request.Context(), ean)

	c.JSON(statusForResult(res), ImportProductResponse{
		Outcome:  res.Outcome(),
		Created:  res.Created,
		Source:   res.Source,
		Attempts: res.Attempts,
	})
}

// ImportBatchRequest is the body of a batch import
type ImportBatchRequest struct {
	EANs []string `json:"eans" binding:"required"`
}

// ImportBatchResponse summarizes a batch import
type ImportBatchResponse struct {
	Report            *domain.BatchReport `json:"report"`
	Recovered         int                 `json:"recovered"`
	PermanentlyFailed int                 `json:"permanently_failed"`
}

// ImportBatch imports every identifier in the body and returns the run report
func (h *Handler) ImportBatch(c *gin.Context) {
	if h.importer == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "import service not configured"})
		return
	}

	var req ImportBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if len(req.EANs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "eans must not be empty"})
		return
	}
	if len(req.EANs) > maxBatchSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "too many eans in one batch"})
		return
	}

	report, err := h.importer.ImportBatch(c.Request.Context(), req.EANs, nil, nil)
	if err != nil {
		_ = c.Error(err)
		h.logger.Error("batch import aborted", "error", err)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "batch import aborted", "report": report})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "batch import failed", "report": report})
		return
	}

	c.JSON(http.StatusOK, ImportBatchResponse{
		Report:            report,
		Recovered:         report.Recovered(),
		PermanentlyFailed: report.PermanentlyFailed(),
	})
}

// statusForResult maps an import result to an HTTP status
func statusForResult(res domain.ImportResult) int {
	switch res.Kind {
	case domain.ResultSuccess:
		if res.Created {
			return http.StatusCreated
		}
		return http.StatusOK
	case domain.ResultRejected:
		switch {
		case errors.Is(res.Err, domain.ErrInvalidEAN):
			return http.StatusBadRequest
		case errors.Is(res.Err, domain.ErrProductNotFound):
			return http.StatusNotFound
		default:
			return http.StatusUnprocessableEntity
		}
	default:
		return http.StatusBadGateway
	}
}
