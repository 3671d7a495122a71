package extid

import (
	"strings"
	"unicode/utf8"
)

const (
	// LegacyPrefix marks identifiers minted by the previous numbering scheme.
	LegacyPrefix = "MSF-"
	// CanonicalLength is the length, in characters, of a hyphenated UUID string.
	CanonicalLength = 36
)

// Classification describes the state of an external identifier.
type Classification string

const (
	Valid           Classification = "valid"
	Empty           Classification = "empty"
	LegacyPrefixed  Classification = "legacy-prefixed"
	MalformedLength Classification = "malformed-length"
)

// Valid reports whether the identifier can be kept as is.
func (c Classification) Valid() bool {
	return c == Valid
}

func (c Classification) String() string {
	return string(c)
}

// Classify inspects an identifier. A nil pointer means the field was absent.
// Rules are checked in order and the first match wins.
func Classify(value *string) Classification {
	if value == nil || *value == "" {
		return Empty
	}
	if strings.HasPrefix(*value, LegacyPrefix) {
		return LegacyPrefixed
	}
	if utf8.RuneCountInString(*value) != CanonicalLength {
		return MalformedLength
	}
	return Valid
}

// ClassifyString is Classify for callers holding a plain string.
func ClassifyString(value string) Classification {
	return Classify(&value)
}
