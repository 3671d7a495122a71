package audit

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"conceptid/internal/extid"
)

// Status describes what happened to a concept.
type Status string

const (
	StatusSkipped     Status = "skipped"
	StatusUpdated     Status = "updated"
	StatusWouldUpdate Status = "would-update"
)

// Row is one audit record. Rows are immutable once appended.
type Row struct {
	Timestamp         time.Time
	ConceptID         string
	Name              string
	URL               string
	CurrentExternalID string
	NewExternalID     string
	Classification    extid.Classification
	Status            Status
}

// Header lists the CSV column names in order.
var Header = []string{
	"Timestamp",
	"ID",
	"Name",
	"URL",
	"Current External ID",
	"New External ID",
	"Classification",
	"Status",
}

// Record renders the row in Header order. Names are NFC-normalized so the
// same label compares equal regardless of how the server composed it.
func (r Row) Record() []string {
	return []string{
		r.Timestamp.Format(time.RFC3339),
		r.ConceptID,
		norm.NFC.String(strings.TrimSpace(r.Name)),
		r.URL,
		r.CurrentExternalID,
		r.NewExternalID,
		string(r.Classification),
		string(r.Status),
	}
}

// Sink receives audit rows in processing order.
type Sink interface {
	Append(ctx context.Context, row Row) error
	Close() error
}

type multiSink struct {
	sinks []Sink
}

// Multi returns a Sink that appends each row to every non-nil sink in
// order, stopping at the first failure.
func Multi(sinks ...Sink) Sink {
	filtered := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			filtered = append(filtered, s)
		}
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &multiSink{sinks: filtered}
}

func (m *multiSink) Append(ctx context.Context, row Row) error {
	for _, s := range m.sinks {
		if err := s.Append(ctx, row); err != nil {
			return err
		}
	}
	return nil
}

func (m *multiSink) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
