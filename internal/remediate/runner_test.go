package remediate_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"conceptid/internal/audit"
	"conceptid/internal/extid"
	"conceptid/internal/ocl"
	"conceptid/internal/remediate"
	"conceptid/internal/testsupport"
)

const validUUID = "3f2504e0-4f89-41d3-9a0c-0305e82c3301"

type memorySink struct {
	rows []audit.Row
}

func (s *memorySink) Append(_ context.Context, row audit.Row) error {
	s.rows = append(s.rows, row)
	return nil
}

func (s *memorySink) Close() error { return nil }

func newRunner(t *testing.T, server *testsupport.OCLServer, sink audit.Sink, opts ...remediate.Option) *remediate.Runner {
	t.Helper()
	client, err := ocl.New(server.URL, testsupport.DefaultToken, 5*time.Second)
	if err != nil {
		t.Fatalf("ocl.New: %v", err)
	}
	runner, err := remediate.NewRunner(client, sink, opts...)
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	return runner
}

func sequence(ids ...string) extid.Generator {
	i := 0
	return func() string {
		id := ids[i%len(ids)]
		i++
		return id
	}
}

func TestRunEmptyExternalIDIsReplaced(t *testing.T) {
	server := testsupport.NewOCLServer(t, []testsupport.FakeConcept{
		{ID: "1", DisplayName: "Malaria", ExternalID: testsupport.StringPtr(""), Names: []string{"Malaria"}},
	})
	sink := &memorySink{}
	runner := newRunner(t, server, sink, remediate.WithGenerator(sequence(validUUID)))

	summary, err := runner.Run(context.Background(), testsupport.ListingPath())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Tally != (extid.Tally{Empty: 1}) {
		t.Fatalf("unexpected tally %+v", summary.Tally)
	}
	if len(server.Writes()) != 1 {
		t.Fatalf("expected 1 update call, got %d", len(server.Writes()))
	}
	if len(sink.rows) != 1 {
		t.Fatalf("expected 1 audit row, got %d", len(sink.rows))
	}
	row := sink.rows[0]
	if row.NewExternalID != validUUID || row.Status != audit.StatusUpdated || row.Classification != extid.Empty {
		t.Fatalf("unexpected row %+v", row)
	}
	if got, _ := server.ExternalID("1"); got != validUUID {
		t.Fatalf("server external id = %q", got)
	}
}

func TestRunLegacyPrefixedIsReplaced(t *testing.T) {
	server := testsupport.NewOCLServer(t, []testsupport.FakeConcept{
		{ID: "2", DisplayName: "Cholera", ExternalID: testsupport.StringPtr("MSF-12345"), Names: []string{"Cholera"}},
	})
	sink := &memorySink{}
	runner := newRunner(t, server, sink, remediate.WithGenerator(sequence(validUUID)))

	summary, err := runner.Run(context.Background(), testsupport.ListingPath())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Tally != (extid.Tally{LegacyPrefixed: 1}) {
		t.Fatalf("unexpected tally %+v", summary.Tally)
	}
	if len(server.Writes()) != 1 {
		t.Fatalf("expected 1 update call, got %d", len(server.Writes()))
	}
	if row := sink.rows[0]; row.CurrentExternalID != "MSF-12345" || row.NewExternalID != validUUID {
		t.Fatalf("unexpected row %+v", row)
	}
}

func TestRunValidExternalIDIsSkipped(t *testing.T) {
	server := testsupport.NewOCLServer(t, []testsupport.FakeConcept{
		{ID: "3", DisplayName: "Measles", ExternalID: testsupport.StringPtr(validUUID)},
	})
	sink := &memorySink{}
	runner := newRunner(t, server, sink, remediate.WithGenerator(func() string {
		t.Fatal("generator must not be called for valid ids")
		return ""
	}))

	summary, err := runner.Run(context.Background(), testsupport.ListingPath())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Tally != (extid.Tally{Skipped: 1}) {
		t.Fatalf("unexpected tally %+v", summary.Tally)
	}
	if len(server.Writes()) != 0 {
		t.Fatalf("expected no update calls, got %d", len(server.Writes()))
	}
	if row := sink.rows[0]; row.Status != audit.StatusSkipped || row.NewExternalID != "" {
		t.Fatalf("unexpected row %+v", row)
	}
}

func mixedConcepts(n int) []testsupport.FakeConcept {
	concepts := make([]testsupport.FakeConcept, n)
	for i := range concepts {
		var ext *string
		switch i % 5 {
		case 0:
			ext = nil
		case 1:
			ext = testsupport.StringPtr(fmt.Sprintf("MSF-%d", i))
		case 2:
			ext = testsupport.StringPtr("short")
		case 3:
			ext = testsupport.StringPtr(validUUID)
		case 4:
			ext = testsupport.StringPtr("")
		}
		concepts[i] = testsupport.FakeConcept{
			ID:          fmt.Sprintf("%d", i+1),
			DisplayName: fmt.Sprintf("Concept %d", i+1),
			ExternalID:  ext,
			Names:       []string{fmt.Sprintf("Concept %d", i+1)},
		}
	}
	return concepts
}

func TestRunDryRunIssuesNoWrites(t *testing.T) {
	server := testsupport.NewOCLServer(t, mixedConcepts(25))
	server.PageSize = 10
	sink := &memorySink{}
	runner := newRunner(t, server, sink, remediate.WithDryRun(true))

	summary, err := runner.Run(context.Background(), testsupport.ListingPath())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(server.Writes()) != 0 {
		t.Fatalf("dry run issued %d write requests", len(server.Writes()))
	}
	if !summary.DryRun || summary.Total != 25 || summary.Processed != 25 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	want := extid.Tally{Empty: 10, LegacyPrefixed: 5, MalformedLength: 5, Skipped: 5}
	if summary.Tally != want {
		t.Fatalf("tally = %+v, want %+v", summary.Tally, want)
	}
	if len(sink.rows) != 25 {
		t.Fatalf("expected 25 audit rows, got %d", len(sink.rows))
	}
	for _, row := range sink.rows {
		if row.NewExternalID != "" {
			t.Fatalf("dry run row has new id: %+v", row)
		}
		if !row.Classification.Valid() && row.Status != audit.StatusWouldUpdate {
			t.Fatalf("expected would-update status, got %+v", row)
		}
	}
}

func TestRunProcessesInFetchOrderAndReportsProgress(t *testing.T) {
	server := testsupport.NewOCLServer(t, mixedConcepts(25))
	server.PageSize = 10
	sink := &memorySink{}
	var progress []remediate.Progress
	runner := newRunner(t, server, sink,
		remediate.WithProgress(func(p remediate.Progress) { progress = append(progress, p) }),
		remediate.WithClock(func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }),
	)

	summary, err := runner.Run(context.Background(), testsupport.ListingPath())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	var gotOrder, wantOrder []string
	for i, row := range sink.rows {
		gotOrder = append(gotOrder, row.ConceptID)
		wantOrder = append(wantOrder, fmt.Sprintf("%d", i+1))
		if !strings.HasPrefix(row.URL, server.URL) {
			t.Fatalf("expected absolute concept url, got %q", row.URL)
		}
		if row.Timestamp.Year() != 2024 {
			t.Fatalf("expected injected clock, got %v", row.Timestamp)
		}
	}
	if diff := cmp.Diff(wantOrder, gotOrder); diff != "" {
		t.Fatalf("audit order mismatch (-want +got):\n%s", diff)
	}
	if len(progress) != 25 || progress[24].Done != 25 || progress[24].Total != 25 {
		t.Fatalf("unexpected progress events: %d", len(progress))
	}
	if progress[24].Percent() != 100 {
		t.Fatalf("Percent() = %v", progress[24].Percent())
	}
	if summary.Tally.Remediated() != len(server.Writes()) {
		t.Fatalf("remediated %d but %d writes", summary.Tally.Remediated(), len(server.Writes()))
	}
	for _, w := range server.Writes() {
		if w.Method != http.MethodPut {
			t.Fatalf("unexpected write method %s", w.Method)
		}
	}
}

func TestRunAbortsOnUpdateFailure(t *testing.T) {
	server := testsupport.NewOCLServer(t, []testsupport.FakeConcept{
		{ID: "1", ExternalID: testsupport.StringPtr(validUUID)},
		{ID: "2", ExternalID: testsupport.StringPtr("MSF-2")},
		{ID: "3", ExternalID: testsupport.StringPtr("MSF-3")},
	})
	server.UpdateStatus = http.StatusInternalServerError
	sink := &memorySink{}
	runner := newRunner(t, server, sink)

	summary, err := runner.Run(context.Background(), testsupport.ListingPath())
	var statusErr *ocl.StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500 StatusError, got %v", err)
	}
	if summary.Processed != 1 || len(sink.rows) != 1 {
		t.Fatalf("expected only the first concept recorded, got processed=%d rows=%d", summary.Processed, len(sink.rows))
	}
	if len(server.Writes()) != 1 {
		t.Fatalf("expected the run to stop after the failed write, got %d writes", len(server.Writes()))
	}
}

func TestRunAbortsOnUnexpectedListing(t *testing.T) {
	api := &stubAPI{listErr: fmt.Errorf("page 2: %w", ocl.ErrUnexpectedPage)}
	runner, err := remediate.NewRunner(api, &memorySink{})
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	if _, err := runner.Run(context.Background(), "/concepts/"); !errors.Is(err, ocl.ErrUnexpectedPage) {
		t.Fatalf("expected ErrUnexpectedPage, got %v", err)
	}
}

func TestRunUsesDetailWhenListingOmitsFields(t *testing.T) {
	detailID := "MSF-9"
	api := &stubAPI{
		concepts: []ocl.Concept{{ID: "9", URL: "/c/9/"}},
		detail: map[string]*ocl.Concept{
			"https://api.example.org/c/9/": {ID: "9", ExternalID: &detailID, Names: []ocl.Name{{Name: "Typhoid"}}},
		},
	}
	sink := &memorySink{}
	runner, err := remediate.NewRunner(api, sink, remediate.WithDryRun(true))
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	if _, err := runner.Run(context.Background(), "/concepts/"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	row := sink.rows[0]
	if row.Classification != extid.LegacyPrefixed || row.Name != "Typhoid" || row.CurrentExternalID != "MSF-9" {
		t.Fatalf("unexpected row %+v", row)
	}
}

func TestRunStopsWhenContextCancelled(t *testing.T) {
	server := testsupport.NewOCLServer(t, mixedConcepts(5))
	ctx, cancel := context.WithCancel(context.Background())
	sink := &memorySink{}
	runner := newRunner(t, server, sink, remediate.WithDryRun(true),
		remediate.WithProgress(func(p remediate.Progress) {
			if p.Done == 2 {
				cancel()
			}
		}))

	summary, err := runner.Run(ctx, testsupport.ListingPath())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if summary.Processed != 2 {
		t.Fatalf("expected 2 processed, got %d", summary.Processed)
	}
}

func TestNewRunnerRequiresDependencies(t *testing.T) {
	if _, err := remediate.NewRunner(nil, &memorySink{}); err == nil {
		t.Fatal("expected error for nil api")
	}
	if _, err := remediate.NewRunner(&stubAPI{}, nil); err == nil {
		t.Fatal("expected error for nil sink")
	}
}

type stubAPI struct {
	concepts []ocl.Concept
	detail   map[string]*ocl.Concept
	listErr  error
	updates  int
}

func (s *stubAPI) ListConcepts(context.Context, string) ([]ocl.Concept, error) {
	return s.concepts, s.listErr
}

func (s *stubAPI) GetConcept(_ context.Context, conceptURL string) (*ocl.Concept, error) {
	if c, ok := s.detail[conceptURL]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("no detail for %s", conceptURL)
}

func (s *stubAPI) UpdateExternalID(context.Context, string, ocl.UpdateRequest) error {
	s.updates++
	return nil
}

func (s *stubAPI) ResolveURL(ref string) string {
	return "https://api.example.org" + ref
}
