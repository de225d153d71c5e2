package domain

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status tags a per-record outcome in a run report
type Status string

const (
	StatusOK      Status = "OK"
	StatusError   Status = "ERROR"
	StatusSkipped Status = "SKIPPED"
)

// NoIdentifier is recorded when an outcome is not tied to a single record (e.g. a failed page)
const NoIdentifier = "-"

// Outcome is the recorded result of processing one identifier
type Outcome struct {
	EAN     string `json:"ean"`
	Status  Status `json:"status"`
	Message string `json:"message"`
}

// ResultKind classifies an import attempt for retry and reporting decisions
type ResultKind int

const (
	// ResultSuccess means the product was upserted
	ResultSuccess ResultKind = iota
	// ResultRejected means the record is unimportable; retrying cannot help
	ResultRejected
	// ResultTransient means an I/O or storage failure that may succeed on retry
	ResultTransient
)

func (k ResultKind) String() string {
	switch k {
	case ResultSuccess:
		return "success"
	case ResultRejected:
		return "rejected"
	case ResultTransient:
		return "transient"
	default:
		return "unknown"
	}
}

// ImportResult is the typed result of importing one identifier
type ImportResult struct {
	EAN      string     `json:"ean"`
	Kind     ResultKind `json:"-"`
	Created  bool       `json:"created"`
	Source   string     `json:"source,omitempty"`
	Attempts int        `json:"attempts"`
	Err      error      `json:"-"`
}

// Outcome converts the result to its report row
func (r ImportResult) Outcome() Outcome {
	switch r.Kind {
	case ResultSuccess:
		action := "updated"
		if r.Created {
			action = "created"
		}
		msg := action
		if r.Source != "" {
			msg += " from " + r.Source
		}
		return Outcome{EAN: r.EAN, Status: StatusOK, Message: msg}
	case ResultRejected:
		return Outcome{EAN: r.EAN, Status: StatusSkipped, Message: errMessage(r.Err)}
	default:
		return Outcome{EAN: r.EAN, Status: StatusError, Message: errMessage(r.Err)}
	}
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// OutcomeSink receives outcomes as they are produced (e.g. an append-only CSV log)
type OutcomeSink interface {
	Write(o Outcome) error
}

// RunReport accumulates counts and outcomes for one pass of an import run.
// Safe for concurrent use.
type RunReport struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Attempted  int       `json:"attempted"`
	Created    int       `json:"created"`
	Updated    int       `json:"updated"`
	Skipped    int       `json:"skipped"`
	Failed     int       `json:"failed"`
	// PageFailures counts listing pages that could not be fetched
	PageFailures int       `json:"page_failures"`
	Outcomes     []Outcome `json:"outcomes"`

	mu sync.Mutex
}

// NewRunReport starts a report for the named pass
func NewRunReport(name string) *RunReport {
	return &RunReport{
		ID:        uuid.New(),
		Name:      name,
		StartedAt: time.Now(),
		Outcomes:  make([]Outcome, 0),
	}
}

// AddResult records an import result, counting it as attempted
func (r *RunReport) AddResult(res ImportResult) Outcome {
	o := res.Outcome()

	r.mu.Lock()
	defer r.mu.Unlock()

	r.Attempted++
	switch o.Status {
	case StatusOK:
		if res.Created {
			r.Created++
		} else {
			r.Updated++
		}
	case StatusSkipped:
		r.Skipped++
	default:
		r.Failed++
	}
	r.Outcomes = append(r.Outcomes, o)
	return o
}

// AddSkipped records a record that never entered the import (e.g. invalid identifier)
func (r *RunReport) AddSkipped(ean, message string) Outcome {
	o := Outcome{EAN: ean, Status: StatusSkipped, Message: message}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.Skipped++
	r.Outcomes = append(r.Outcomes, o)
	return o
}

// AddError records a failure not tied to an import attempt (e.g. a listing page)
func (r *RunReport) AddError(ean, message string) Outcome {
	o := Outcome{EAN: ean, Status: StatusError, Message: message}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.PageFailures++
	r.Outcomes = append(r.Outcomes, o)
	return o
}

// Finish stamps the end time
func (r *RunReport) Finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.FinishedAt = time.Now()
}

// Failures returns the ERROR outcomes that carry a real identifier
func (r *RunReport) Failures() []Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Status == StatusError && o.EAN != "" && o.EAN != NoIdentifier {
			out = append(out, o)
		}
	}
	return out
}

// BatchReport is the result of a batch run: the main pass plus the optional final sweep
type BatchReport struct {
	Primary *RunReport `json:"primary"`
	Sweep   *RunReport `json:"sweep,omitempty"`
}

// Recovered is the number of identifiers that succeeded only in the final sweep
func (b *BatchReport) Recovered() int {
	if b.Sweep == nil {
		return 0
	}
	return b.Sweep.Created + b.Sweep.Updated
}

// PermanentlyFailed is the number of identifiers still failing after every pass
func (b *BatchReport) PermanentlyFailed() int {
	if b.Sweep != nil {
		return b.Sweep.Failed
	}
	return b.Primary.Failed
}

// DumpReport is the result of a bulk dump import
type DumpReport struct {
	ID         uuid.UUID `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Read       int       `json:"read"`
	Considered int       `json:"considered"`
	Created    int       `json:"created"`
	Updated    int       `json:"updated"`
	Discarded  int       `json:"discarded"`
	Failed     int       `json:"failed"`
	Truncated  bool      `json:"truncated"`
	Failures   []Outcome `json:"failures,omitempty"`
}

// Processed is the number of records written to the catalog
func (d *DumpReport) Processed() int {
	return d.Created + d.Updated
}

// UnitBackfillReport is the result of re-normalizing stored units
type UnitBackfillReport struct {
	Updated      int      `json:"updated"`
	Unchanged    int      `json:"unchanged"`
	Unrecognized int      `json:"unrecognized"`
	UnknownUnits []string `json:"unknown_units"`
}

// TranslationBackfillReport is the result of filling translations from raw data
type TranslationBackfillReport struct {
	Updated  int `json:"updated"`
	Complete int `json:"complete"`
}

// CategoryImportReport is the result of importing a curated taxonomy
type CategoryImportReport struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Linked  int `json:"linked"`
}
