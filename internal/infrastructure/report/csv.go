package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/pricelens/catalog/internal/domain"
)

var header = []string{"ean", "status", "message"}

// CSVLog is an outcome log with one "ean,status,message" row per record.
// Rows are flushed as they are written. Safe for concurrent use.
type CSVLog struct {
	path   string
	file   *os.File
	writer *csv.Writer
	mutex  sync.Mutex
}

// OpenCSVLog opens the log at path, appending to it unless truncate is set.
// The header is written when the file is empty.
func OpenCSVLog(path string, truncate bool) (*CSVLog, error) {
	flags := os.O_CREATE | os.O_WRONLY
	if truncate {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_APPEND
	}

	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open outcome log: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat outcome log: %w", err)
	}

	log := &CSVLog{path: path, file: f, writer: csv.NewWriter(f)}
	if info.Size() == 0 {
		if err := log.writeRow(header); err != nil {
			f.Close()
			return nil, err
		}
	}
	return log, nil
}

// Path returns the file the log writes to
func (l *CSVLog) Path() string {
	return l.path
}

// Write appends one outcome row
func (l *CSVLog) Write(o domain.Outcome) error {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return l.writeRowLocked([]string{o.EAN, string(o.Status), o.Message})
}

func (l *CSVLog) writeRow(row []string) error {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return l.writeRowLocked(row)
}

func (l *CSVLog) writeRowLocked(row []string) error {
	if err := l.writer.Write(row); err != nil {
		return fmt.Errorf("write outcome log: %w", err)
	}
	l.writer.Flush()
	return l.writer.Error()
}

// Close flushes and closes the file
func (l *CSVLog) Close() error {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	l.writer.Flush()
	return errors.Join(l.writer.Error(), l.file.Close())
}

// ReadCSVLog reads every outcome row of a log written by CSVLog
func ReadCSVLog(path string) ([]domain.Outcome, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open outcome log: %w", err)
	}
	defer f.Close()

	return ParseCSVLog(f)
}

// ParseCSVLog reads outcome rows from r. The header row is optional; repeated
// headers from appended runs are skipped.
func ParseCSVLog(r io.Reader) ([]domain.Outcome, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	outcomes := make([]domain.Outcome, 0)
	for line := 1; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return outcomes, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read outcome log line %d: %w", line, err)
		}
		if len(row) < 2 {
			continue
		}
		if strings.EqualFold(row[0], header[0]) && strings.EqualFold(row[1], header[1]) {
			continue
		}

		o := domain.Outcome{
			EAN:    strings.TrimSpace(row[0]),
			Status: domain.Status(strings.ToUpper(strings.TrimSpace(row[1]))),
		}
		if len(row) > 2 {
			o.Message = row[2]
		}
		outcomes = append(outcomes, o)
	}
}
