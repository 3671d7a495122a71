package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	c.normalizeAPI()
	if err := c.normalizeOutput(); err != nil {
		return err
	}
	return c.normalizeLogging()
}

func (c *Config) normalizeAPI() {
	c.API.URL = strings.TrimRight(strings.TrimSpace(c.API.URL), "/")
	c.API.Token = strings.TrimSpace(c.API.Token)
	c.API.OrgID = strings.Trim(strings.TrimSpace(c.API.OrgID), "/")
	c.API.SourceID = strings.Trim(strings.TrimSpace(c.API.SourceID), "/")
	c.API.CollectionID = strings.Trim(strings.TrimSpace(c.API.CollectionID), "/")
	if c.API.TimeoutSeconds == 0 {
		c.API.TimeoutSeconds = defaultTimeoutSeconds
	}
}

func (c *Config) normalizeOutput() error {
	var err error
	if strings.TrimSpace(c.Output.Dir) == "" {
		c.Output.Dir = defaultOutputDir
	}
	if c.Output.Dir, err = expandPath(strings.TrimSpace(c.Output.Dir)); err != nil {
		return fmt.Errorf("output.dir: %w", err)
	}
	c.Output.Prefix = strings.TrimSpace(c.Output.Prefix)
	if c.Output.Prefix == "" {
		c.Output.Prefix = defaultOutputPrefix
	}
	if c.Output.LedgerPath, err = expandPath(strings.TrimSpace(c.Output.LedgerPath)); err != nil {
		return fmt.Errorf("output.ledger_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() error {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	var err error
	if c.Logging.File, err = expandPath(strings.TrimSpace(c.Logging.File)); err != nil {
		return fmt.Errorf("logging.file: %w", err)
	}
	return nil
}
