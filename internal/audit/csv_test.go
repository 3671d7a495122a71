package audit_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"conceptid/internal/audit"
	"conceptid/internal/extid"
	"conceptid/internal/testsupport"
)

func sampleRow(id string) audit.Row {
	return audit.Row{
		Timestamp:         time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		ConceptID:         id,
		Name:              "Café",
		URL:               "https://api.example.org/orgs/MSF/sources/S/concepts/" + id + "/",
		CurrentExternalID: "MSF-" + id,
		NewExternalID:     "3f2504e0-4f89-41d3-9a0c-0305e82c3301",
		Classification:    extid.LegacyPrefixed,
		Status:            audit.StatusUpdated,
	}
}

func TestFileName(t *testing.T) {
	if got := audit.FileName("updated_concepts", true); got != "updated_concepts_dry_run.csv" {
		t.Fatalf("dry-run name = %q", got)
	}
	if got := audit.FileName("updated_concepts", false); got != "updated_concepts.csv" {
		t.Fatalf("live name = %q", got)
	}
}

func TestCSVWriterWritesHeaderAndRows(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	w, err := audit.OpenCSV(dir, "updated_concepts", false)
	if err != nil {
		t.Fatalf("OpenCSV: %v", err)
	}
	if w.Path() != filepath.Join(dir, "updated_concepts.csv") {
		t.Fatalf("unexpected path %q", w.Path())
	}

	ctx := context.Background()
	for _, id := range []string{"1", "2"} {
		if err := w.Append(ctx, sampleRow(id)); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	// Rows are flushed per append, so they are visible before Close.
	records := testsupport.ReadCSV(t, w.Path())
	if len(records) != 3 {
		t.Fatalf("expected header plus 2 rows before close, got %d", len(records))
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	records = testsupport.ReadCSV(t, w.Path())
	if diff := cmp.Diff(audit.Header, records[0]); diff != "" {
		t.Fatalf("header mismatch (-want +got):\n%s", diff)
	}
	want := []string{
		"2024-05-01T10:00:00Z",
		"2",
		"Café",
		"https://api.example.org/orgs/MSF/sources/S/concepts/2/",
		"MSF-2",
		"3f2504e0-4f89-41d3-9a0c-0305e82c3301",
		"legacy-prefixed",
		"updated",
	}
	if diff := cmp.Diff(want, records[2]); diff != "" {
		t.Fatalf("row mismatch (-want +got):\n%s", diff)
	}
	if w.Rows() != 2 {
		t.Fatalf("Rows() = %d, want 2", w.Rows())
	}
	if _, err := os.Stat(w.Path() + ".lock"); err != nil {
		t.Fatalf("expected lock file to stay after close, stat err = %v", err)
	}
}

func TestCSVWriterReopensAfterClose(t *testing.T) {
	dir := t.TempDir()
	first, err := audit.OpenCSV(dir, "updated_concepts", false)
	if err != nil {
		t.Fatalf("OpenCSV: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	lockInfo, err := os.Stat(first.Path() + ".lock")
	if err != nil {
		t.Fatalf("stat lock file: %v", err)
	}

	second, err := audit.OpenCSV(dir, "updated_concepts", false)
	if err != nil {
		t.Fatalf("reopen after close: %v", err)
	}
	defer second.Close()
	again, err := os.Stat(second.Path() + ".lock")
	if err != nil {
		t.Fatalf("stat lock file: %v", err)
	}
	if !os.SameFile(lockInfo, again) {
		t.Fatal("expected the existing lock file to be reused")
	}
	if _, err := audit.OpenCSV(dir, "updated_concepts", false); !errors.Is(err, audit.ErrOutputLocked) {
		t.Fatalf("expected ErrOutputLocked while reopened, got %v", err)
	}
}

func TestCSVWriterRejectsConcurrentRun(t *testing.T) {
	dir := t.TempDir()
	first, err := audit.OpenCSV(dir, "updated_concepts", true)
	if err != nil {
		t.Fatalf("OpenCSV: %v", err)
	}
	defer first.Close()

	if _, err := audit.OpenCSV(dir, "updated_concepts", true); !errors.Is(err, audit.ErrOutputLocked) {
		t.Fatalf("expected ErrOutputLocked, got %v", err)
	}

	// The other mode writes a different file and is unaffected.
	live, err := audit.OpenCSV(dir, "updated_concepts", false)
	if err != nil {
		t.Fatalf("OpenCSV live: %v", err)
	}
	if err := live.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

type recordingSink struct {
	rows   []audit.Row
	closed bool
	err    error
}

func (s *recordingSink) Append(_ context.Context, row audit.Row) error {
	if s.err != nil {
		return s.err
	}
	s.rows = append(s.rows, row)
	return nil
}

func (s *recordingSink) Close() error {
	s.closed = true
	return nil
}

func TestMultiFansOutAndStopsOnError(t *testing.T) {
	a, b := &recordingSink{}, &recordingSink{}
	sink := audit.Multi(a, nil, b)
	if err := sink.Append(context.Background(), sampleRow("1")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if len(a.rows) != 1 || len(b.rows) != 1 {
		t.Fatalf("expected row in both sinks, got %d and %d", len(a.rows), len(b.rows))
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !a.closed || !b.closed {
		t.Fatal("expected both sinks closed")
	}

	failing := &recordingSink{err: errors.New("disk full")}
	after := &recordingSink{}
	if err := audit.Multi(failing, after).Append(context.Background(), sampleRow("2")); err == nil {
		t.Fatal("expected error")
	}
	if len(after.rows) != 0 {
		t.Fatal("expected later sinks to be skipped after a failure")
	}

	single := &recordingSink{}
	if audit.Multi(single) != audit.Sink(single) {
		t.Fatal("expected single sink to be returned unwrapped")
	}
}
