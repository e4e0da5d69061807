// Package output formats a finished ingest run's counters for display,
// following the teacher's own internal/output package: a small
// Format enum, a Formatter interface, and a NewFormatter(name)
// constructor picking an implementation by string. The teacher's
// version formats schema diffs and migrations; this one formats the
// one thing an ingest run produces for a human or a script to read —
// its read/kept/rejected counters.
package output

import (
	"fmt"
	"strings"

	"ingestkit/internal/pipeline"
)

// Format is an enum type representing the available output formats.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// Formatter renders a finished run's counters.
type Formatter interface {
	FormatSummary(counters pipeline.Counters) (string, error)
}

// NewFormatter creates a new Formatter instance based on the given
// name. An empty name defaults to text format.
func NewFormatter(name string) (Formatter, error) {
	format := Format(strings.ToLower(strings.TrimSpace(name)))
	switch format {
	case "", FormatText:
		return textFormatter{}, nil
	case FormatJSON:
		return jsonFormatter{}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s; use 'text' or 'json'", name)
	}
}
