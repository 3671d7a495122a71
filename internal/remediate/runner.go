package remediate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"conceptid/internal/audit"
	"conceptid/internal/extid"
	"conceptid/internal/logging"
	"conceptid/internal/ocl"
)

// API is the subset of the terminology client used by a run.
type API interface {
	ListConcepts(ctx context.Context, listURL string) ([]ocl.Concept, error)
	GetConcept(ctx context.Context, conceptURL string) (*ocl.Concept, error)
	UpdateExternalID(ctx context.Context, conceptURL string, req ocl.UpdateRequest) error
	ResolveURL(ref string) string
}

var _ API = (*ocl.Client)(nil)

// Progress describes the concept that was just processed.
type Progress struct {
	Done           int
	Total          int
	ConceptID      string
	Name           string
	ExternalID     string
	Classification extid.Classification
	Status         audit.Status
}

// Percent returns the completion percentage.
func (p Progress) Percent() float64 {
	if p.Total == 0 {
		return 100
	}
	return float64(p.Done) / float64(p.Total) * 100
}

// ProgressFunc is called once per processed concept.
type ProgressFunc func(Progress)

// Summary reports the outcome of a run.
type Summary struct {
	Tally     extid.Tally
	Total     int
	Processed int
	DryRun    bool
}

// Runner executes remediation runs.
type Runner struct {
	api      API
	sink     audit.Sink
	dryRun   bool
	generate extid.Generator
	now      func() time.Time
	progress ProgressFunc
	logger   *slog.Logger
	sampler  *logging.ProgressSampler
}

// Option configures a Runner.
type Option func(*Runner)

// WithDryRun disables write requests. Audit rows still record what would change.
func WithDryRun(dryRun bool) Option {
	return func(r *Runner) { r.dryRun = dryRun }
}

// WithGenerator overrides the identifier generator.
func WithGenerator(gen extid.Generator) Option {
	return func(r *Runner) {
		if gen != nil {
			r.generate = gen
		}
	}
}

// WithClock overrides the audit timestamp source.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

// WithProgress registers a callback invoked after each concept.
func WithProgress(fn ProgressFunc) Option {
	return func(r *Runner) { r.progress = fn }
}

// WithLogger sets the run logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logging.NewComponentLogger(logger, "remediate")
	}
}

// NewRunner constructs a Runner writing audit rows to sink.
func NewRunner(api API, sink audit.Sink, opts ...Option) (*Runner, error) {
	if api == nil {
		return nil, errors.New("remediate: api client required")
	}
	if sink == nil {
		return nil, errors.New("remediate: audit sink required")
	}
	r := &Runner{
		api:      api,
		sink:     sink,
		generate: extid.NewUUID,
		now:      time.Now,
		logger:   logging.NewComponentLogger(nil, "remediate"),
		sampler:  logging.NewProgressSampler(10),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Run processes every concept listed at listURL. The returned summary is
// valid even when an error aborts the run part way.
func (r *Runner) Run(ctx context.Context, listURL string) (Summary, error) {
	summary := Summary{DryRun: r.dryRun}

	concepts, err := r.api.ListConcepts(ctx, listURL)
	if err != nil {
		return summary, fmt.Errorf("fetch concepts: %w", err)
	}
	summary.Total = len(concepts)
	r.logger.InfoContext(ctx, "fetched concepts",
		logging.Int("count", len(concepts)),
		logging.Bool("dry_run", r.dryRun),
	)
	r.sampler.Reset()

	for _, concept := range concepts {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		row, err := r.process(logging.WithConceptID(ctx, concept.ID), concept)
		if err != nil {
			return summary, err
		}
		summary.Tally.Record(row.Classification)
		summary.Processed++
		r.report(ctx, summary, row)
	}
	return summary, nil
}

func (r *Runner) process(ctx context.Context, concept ocl.Concept) (audit.Row, error) {
	conceptURL := r.api.ResolveURL(concept.URL)

	detail, err := r.api.GetConcept(ctx, conceptURL)
	if err != nil {
		return audit.Row{}, fmt.Errorf("fetch concept %s: %w", concept.ID, err)
	}

	if concept.ExternalID == nil {
		concept.ExternalID = detail.ExternalID
	}
	classification := extid.Classify(concept.ExternalID)

	name := concept.Label()
	if name == "" {
		name = detail.Label()
	}
	row := audit.Row{
		ConceptID:         concept.ID,
		Name:              name,
		URL:               conceptURL,
		CurrentExternalID: concept.CurrentExternalID(),
		Classification:    classification,
	}

	switch {
	case classification.Valid():
		row.Status = audit.StatusSkipped
		r.logger.DebugContext(ctx, "external id valid", logging.String("external_id", row.CurrentExternalID))
	case r.dryRun:
		row.Status = audit.StatusWouldUpdate
		r.logger.DebugContext(ctx, "external id would be replaced",
			logging.String("external_id", row.CurrentExternalID),
			logging.String("classification", classification.String()),
		)
	default:
		newID := r.generate()
		req := ocl.UpdateRequest{ID: detailID(detail, concept), ExternalID: newID, Names: detail.Names}
		if err := r.api.UpdateExternalID(ctx, conceptURL, req); err != nil {
			return audit.Row{}, fmt.Errorf("update concept %s: %w", concept.ID, err)
		}
		row.NewExternalID = newID
		row.Status = audit.StatusUpdated
		r.logger.InfoContext(ctx, "external id replaced",
			logging.String("previous", row.CurrentExternalID),
			logging.String("external_id", newID),
			logging.String("classification", classification.String()),
		)
	}

	row.Timestamp = r.now()
	if err := r.sink.Append(ctx, row); err != nil {
		return audit.Row{}, fmt.Errorf("record audit row: %w", err)
	}
	return row, nil
}

func (r *Runner) report(ctx context.Context, summary Summary, row audit.Row) {
	p := Progress{
		Done:           summary.Processed,
		Total:          summary.Total,
		ConceptID:      row.ConceptID,
		Name:           row.Name,
		ExternalID:     row.CurrentExternalID,
		Classification: row.Classification,
		Status:         row.Status,
	}
	if r.progress != nil {
		r.progress(p)
	}
	if r.sampler.ShouldLog(p.Done, p.Total) {
		r.logger.InfoContext(ctx, "progress",
			logging.Int("done", p.Done),
			logging.Int("total", p.Total),
			logging.Int("remediated", summary.Tally.Remediated()),
		)
	}
}

func detailID(detail *ocl.Concept, concept ocl.Concept) string {
	if detail != nil && detail.ID != "" {
		return detail.ID
	}
	return concept.ID
}
