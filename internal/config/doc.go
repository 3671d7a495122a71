// Package config loads, normalizes, and validates conceptid configuration.
//
// Three file shapes are understood. The legacy flat JSON file (OCL_API_URL,
// ORG_ID, SOURCE_ID or COLLECTION_ID, OCL_TOKEN) keeps existing config.json
// files working, while TOML and YAML files use the sectioned layout shown
// by the embedded sample. Environment variables OCL_TOKEN and OCL_API_URL
// are honoured so tokens can stay out of files.
//
// Always obtain settings through Load so callers receive trimmed URLs,
// expanded paths, and validation errors that name the missing key.
package config
