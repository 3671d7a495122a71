package audit

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrOutputLocked is returned when another run holds the audit file.
var ErrOutputLocked = errors.New("audit output is locked by another run")

// FileName returns the audit file name for prefix and mode.
func FileName(prefix string, dryRun bool) string {
	if dryRun {
		return prefix + "_dry_run.csv"
	}
	return prefix + ".csv"
}

// CSVWriter appends audit rows to a single CSV file.
type CSVWriter struct {
	path   string
	file   *os.File
	writer *csv.Writer
	lock   *flock.Flock
	rows   int
}

// OpenCSV creates (or truncates) the audit file for the given mode in dir and
// writes the header row. The file stays locked until Close.
func OpenCSV(dir, prefix string, dryRun bool) (*CSVWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create audit directory %q: %w", dir, err)
	}
	path := filepath.Join(dir, FileName(prefix, dryRun))

	lock := flock.New(path + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire audit lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOutputLocked, path)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("open audit file: %w", err)
	}

	w := &CSVWriter{path: path, file: file, writer: csv.NewWriter(file), lock: lock}
	if err := w.write(Header); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("write audit header: %w", err)
	}
	return w, nil
}

// Path returns the audit file location.
func (w *CSVWriter) Path() string {
	return w.path
}

// Rows returns the number of data rows written.
func (w *CSVWriter) Rows() int {
	return w.rows
}

// Append writes row and flushes it to disk.
func (w *CSVWriter) Append(_ context.Context, row Row) error {
	if err := w.write(row.Record()); err != nil {
		return fmt.Errorf("write audit row for concept %s: %w", row.ConceptID, err)
	}
	w.rows++
	return nil
}

func (w *CSVWriter) write(record []string) error {
	if err := w.writer.Write(record); err != nil {
		return err
	}
	w.writer.Flush()
	return w.writer.Error()
}

// Close flushes pending output, closes the file, and releases the lock.
func (w *CSVWriter) Close() error {
	if w == nil || w.file == nil {
		return nil
	}
	w.writer.Flush()
	errs := []error{w.writer.Error(), w.file.Close()}
	w.file = nil
	if err := w.lock.Unlock(); err != nil {
		errs = append(errs, fmt.Errorf("release audit lock: %w", err))
	}
	return errors.Join(errs...)
}
