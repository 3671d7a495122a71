package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrMissingKey reports a required configuration value that was not set.
var ErrMissingKey = errors.New("missing configuration key")

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateAPI(); err != nil {
		return err
	}
	if err := c.validateOutput(); err != nil {
		return err
	}
	return c.validateLogging()
}

func missing(key, legacy string) error {
	return fmt.Errorf("%w: %s (%s in config.json)", ErrMissingKey, key, legacy)
}

func (c *Config) validateAPI() error {
	if c.API.URL == "" {
		return missing("api.url", "OCL_API_URL")
	}
	parsed, err := url.Parse(c.API.URL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("api.url must be an absolute URL, got %q", c.API.URL)
	}
	if c.API.Token == "" {
		return missing("api.token", "OCL_TOKEN")
	}
	if c.API.OrgID == "" {
		return missing("api.org_id", "ORG_ID")
	}
	if c.API.SourceID == "" && c.API.CollectionID == "" {
		return missing("api.source_id or api.collection_id", "SOURCE_ID/COLLECTION_ID")
	}
	if c.API.TimeoutSeconds < 0 {
		return errors.New("api.timeout_seconds must be positive")
	}
	if c.API.PageLimit < 0 {
		return errors.New("api.page_limit must not be negative")
	}
	return nil
}

func (c *Config) validateOutput() error {
	if strings.ContainsAny(c.Output.Prefix, `/\`) {
		return fmt.Errorf("output.prefix must be a file name, got %q", c.Output.Prefix)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
