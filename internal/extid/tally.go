package extid

// Tally accumulates classification outcomes for a run.
type Tally struct {
	Empty           int
	LegacyPrefixed  int
	MalformedLength int
	Skipped         int
}

// Record increments the counter matching c. Valid identifiers count as
// skipped since they are never remediated.
func (t *Tally) Record(c Classification) {
	switch c {
	case Empty:
		t.Empty++
	case LegacyPrefixed:
		t.LegacyPrefixed++
	case MalformedLength:
		t.MalformedLength++
	default:
		t.Skipped++
	}
}

// Remediated returns the number of identifiers that needed a replacement.
func (t Tally) Remediated() int {
	return t.Empty + t.LegacyPrefixed + t.MalformedLength
}

// Total returns the number of recorded classifications.
func (t Tally) Total() int {
	return t.Remediated() + t.Skipped
}

