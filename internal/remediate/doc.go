// Package remediate drives a remediation run: it lists every concept,
// classifies each external identifier, replaces invalid ones (unless in
// dry-run mode), and appends one audit row per concept.
//
// Processing is strictly sequential. Each concept is fetched, classified,
// and updated before the next one is considered, and the first API or audit
// failure stops the run.
package remediate
