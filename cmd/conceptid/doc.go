// Package main implements the conceptid command-line interface.
//
// The CLI scans every concept in a configured terminology source or
// collection, replaces invalid external identifiers with fresh UUIDs, and
// records an audit row per concept. Subcommands cover the remediation run
// itself, configuration bootstrap and validation, and inspection of the
// optional SQLite run ledger.
package main
