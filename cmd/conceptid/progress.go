package main

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"

	"conceptid/internal/remediate"
)

// progressPrinter writes one progress line per concept. On a terminal the
// line is redrawn in place.
type progressPrinter struct {
	out     io.Writer
	inPlace bool
	printed bool
}

func newProgressPrinter(out io.Writer) *progressPrinter {
	return &progressPrinter{out: out, inPlace: isTerminal(out)}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func (p *progressPrinter) Update(progress remediate.Progress) {
	line := formatProgress(progress)
	if p.inPlace {
		fmt.Fprintf(p.out, "\r\033[K%s", line)
	} else {
		fmt.Fprintln(p.out, line)
	}
	p.printed = true
}

// Finish terminates an in-place progress line.
func (p *progressPrinter) Finish() {
	if p.inPlace && p.printed {
		fmt.Fprintln(p.out)
	}
	p.printed = false
}

func formatProgress(p remediate.Progress) string {
	return fmt.Sprintf("Progress: %d/%d (%.2f%%) - Last concept: %s (ExtID: %s)",
		p.Done, p.Total, p.Percent(), p.Name, p.ExternalID)
}
