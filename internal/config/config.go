package config

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

//go:embed sample_config.toml
var sampleConfig string

// API contains connection settings for the terminology server.
type API struct {
	URL            string `toml:"url" yaml:"url"`
	Token          string `toml:"token" yaml:"token"`
	OrgID          string `toml:"org_id" yaml:"org_id"`
	SourceID       string `toml:"source_id" yaml:"source_id"`
	CollectionID   string `toml:"collection_id" yaml:"collection_id"`
	TimeoutSeconds int    `toml:"timeout_seconds" yaml:"timeout_seconds"`
	PageLimit      int    `toml:"page_limit" yaml:"page_limit"`
}

// Output contains audit destinations.
type Output struct {
	Dir        string `toml:"dir" yaml:"dir"`
	Prefix     string `toml:"prefix" yaml:"prefix"`
	LedgerPath string `toml:"ledger_path" yaml:"ledger_path"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format" yaml:"format"`
	Level  string `toml:"level" yaml:"level"`
	File   string `toml:"file" yaml:"file"`
}

// Config encapsulates all configuration values for conceptid.
type Config struct {
	API     API     `toml:"api" yaml:"api"`
	Output  Output  `toml:"output" yaml:"output"`
	Logging Logging `toml:"logging" yaml:"logging"`
}

// legacyFile mirrors the flat config.json used by the original scripts.
type legacyFile struct {
	APIURL       string `json:"OCL_API_URL"`
	SourceID     string `json:"SOURCE_ID"`
	CollectionID string `json:"COLLECTION_ID"`
	Token        string `json:"OCL_TOKEN"`
	OrgID        string `json:"ORG_ID"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultUserConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned
// config has URLs trimmed and paths expanded. The second and third results
// report the resolved file path and whether it existed.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		if err := decode(file, resolvedPath, &cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config %s: %w", resolvedPath, err)
		}
	} else if strings.TrimSpace(path) != "" {
		return nil, "", false, fmt.Errorf("config file %s not found", resolvedPath)
	}

	cfg.applyEnv()

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func decode(r io.Reader, path string, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		var legacy legacyFile
		if err := json.NewDecoder(r).Decode(&legacy); err != nil {
			return err
		}
		legacy.apply(cfg)
		return nil
	case ".yaml", ".yml":
		if err := yaml.NewDecoder(r).Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		return nil
	case ".toml", "":
		return toml.NewDecoder(r).Decode(cfg)
	default:
		return fmt.Errorf("unsupported config extension %q", filepath.Ext(path))
	}
}

func (l legacyFile) apply(cfg *Config) {
	if l.APIURL != "" {
		cfg.API.URL = l.APIURL
	}
	if l.Token != "" {
		cfg.API.Token = l.Token
	}
	if l.OrgID != "" {
		cfg.API.OrgID = l.OrgID
	}
	cfg.API.SourceID = l.SourceID
	cfg.API.CollectionID = l.CollectionID
}

func (c *Config) applyEnv() {
	if value, ok := os.LookupEnv("OCL_TOKEN"); ok && strings.TrimSpace(value) != "" {
		c.API.Token = value
	}
	if strings.TrimSpace(c.API.URL) == "" {
		if value, ok := os.LookupEnv("OCL_API_URL"); ok {
			c.API.URL = value
		}
	}
}

func resolveConfigPath(path string) (string, bool, error) {
	if strings.TrimSpace(path) != "" {
		expanded, err := expandPath(strings.TrimSpace(path))
		if err != nil {
			return "", false, err
		}
		info, err := os.Stat(expanded)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		if info.IsDir() {
			return "", false, fmt.Errorf("config path %s is a directory", expanded)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultUserConfigPath)
	if err != nil {
		return "", false, err
	}

	candidates := []string{legacyConfigName, projectConfigName}
	for _, name := range candidates {
		candidate, err := filepath.Abs(name)
		if err != nil {
			return "", false, err
		}
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true, nil
		}
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}

	return defaultPath, false, nil
}

// ListingURL returns the concept listing endpoint for the configured source,
// or the collection when no source is set.
func (c *Config) ListingURL() string {
	base := strings.TrimRight(c.API.URL, "/")
	var endpoint string
	if c.API.SourceID != "" {
		endpoint = fmt.Sprintf("%s/orgs/%s/sources/%s/concepts/", base, c.API.OrgID, c.API.SourceID)
	} else {
		endpoint = fmt.Sprintf("%s/orgs/%s/collections/%s/concepts/", base, c.API.OrgID, c.API.CollectionID)
	}
	if c.API.PageLimit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, c.API.PageLimit)
	}
	return endpoint
}

// Target describes the scanned container for log and summary output.
func (c *Config) Target() string {
	if c.API.SourceID != "" {
		return "source " + c.API.OrgID + "/" + c.API.SourceID
	}
	return "collection " + c.API.OrgID + "/" + c.API.CollectionID
}

// EnsureDirectories creates the audit output directory and the ledger
// directory when a ledger is configured.
func (c *Config) EnsureDirectories() error {
	if err := os.MkdirAll(c.Output.Dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", c.Output.Dir, err)
	}
	if strings.TrimSpace(c.Output.LedgerPath) != "" {
		dir := filepath.Dir(c.Output.LedgerPath)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create ledger directory %q: %w", dir, err)
		}
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o600); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
