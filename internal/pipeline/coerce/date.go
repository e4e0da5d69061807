package coerce

import (
	"strings"
	"time"

	"ingestkit/internal/pipeline"
	"ingestkit/internal/schema"
)

// parseDate tries each format in order — user-declared formats first,
// then the common layout table, then the permissive fallback table —
// returning the first one that parses raw in full. Grounded on
// parse_date's try-formats-then-fall-back cascade in the original
// implementation's utils/date_parser.py.
func parseDate(raw string, userFormats []string) (pipeline.Date, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return pipeline.Date{}, false
	}
	for _, layout := range cascade(userFormats, schema.CommonDateLayouts, schema.PermissiveDateLayouts) {
		if t, err := time.Parse(layout, raw); err == nil {
			return pipeline.DateFromTime(t), true
		}
	}
	return pipeline.Date{}, false
}

// parseDatetime runs the same cascade over datetime layouts, then
// strips any parsed zone offset so every accepted value is rendered in
// a single naive wall-clock representation (spec §4.5: "strip timezone
// to naive microsecond timestamp"). "Z" and "+00:00" therefore produce
// identical output, as do any two equivalent-offset inputs sharing wall
// clock values.
func parseDatetime(raw string, userFormats []string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range cascade(userFormats, schema.CommonDatetimeLayouts, nil) {
		if t, err := time.Parse(layout, raw); err == nil {
			return stripZone(t), true
		}
	}
	// Permissive fallback: a bare date parses as midnight.
	for _, layout := range schema.PermissiveDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return stripZone(t), true
		}
	}
	return time.Time{}, false
}

func stripZone(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

func cascade(lists ...[]string) []string {
	var out []string
	for _, l := range lists {
		out = append(out, l...)
	}
	return out
}
