package testsupport

import (
	"path/filepath"
	"testing"

	"conceptid/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config pointing at apiURL with output written to a
// unique temp directory. It defaults common fields and applies any options.
func NewConfig(t testing.TB, apiURL string, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.API.URL = apiURL
	cfgVal.API.Token = DefaultToken
	cfgVal.API.OrgID = DefaultOrg
	cfgVal.API.SourceID = DefaultSource
	cfgVal.Output.Dir = filepath.Join(base, "out")

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithLedger enables the SQLite ledger inside the test temp directory.
func WithLedger() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Output.LedgerPath = filepath.Join(b.baseDir, "ledger.db")
	}
}

// WithCollection targets a collection instead of a source.
func WithCollection(id string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.API.SourceID = ""
		b.cfg.API.CollectionID = id
	}
}
