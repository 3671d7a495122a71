// Package extid classifies concept external identifiers and mints
// replacements.
//
// Classification is pure: Classify returns a tag and never touches shared
// state. Callers aggregate outcomes with a Tally, which keeps exactly one
// counter per classified identifier.
package extid
