package schema

import "regexp"

// tokenSub is one ordered schema-token → Go reference-layout substitution.
// Order matters: longer tokens must be tried before shorter ones, and the
// lowercase minute token "mm" must be substituted before the uppercase
// month token "MM" or the month pass would consume it first.
type tokenSub struct {
	re   *regexp.Regexp
	repl string
}

var fracSubs = []tokenSub{
	{regexp.MustCompile(`\.?(?i:SSSSSS)`), ".000000"},
	{regexp.MustCompile(`\.?(?i:ffffff)`), ".000000"},
	{regexp.MustCompile(`\.?(?i:SSS)`), ".000"},
}

var tokenSubs = []tokenSub{
	{regexp.MustCompile(`(?i)MMMM`), "January"},
	{regexp.MustCompile(`(?i)MMM`), "Jan"},
	{regexp.MustCompile(`(?i)YYYY`), "2006"},
	{regexp.MustCompile(`(?i)HH`), "15"},
	{regexp.MustCompile(`mm`), "04"},  // minutes: lowercase only
	{regexp.MustCompile(`(?i)ss`), "05"},
	{regexp.MustCompile(`MM`), "01"},  // month: uppercase only, after minutes
	{regexp.MustCompile(`(?i)DD`), "02"},
	{regexp.MustCompile(`(?i)XXX|(?i)ZZZ|(?i)Z`), "Z07:00"},
}

// NormalizeFormat translates a schema-token date/datetime format (e.g.
// "YYYY-MM-DD") into a Go reference-time layout string (e.g.
// "2006-01-02"). A format already written with Go layout tokens is not
// distinguishable from a schema token by content alone, so callers must
// route platform-directive formats (those containing "%", the
// spec's marker for "bypasses token translation") around this function
// before calling it — see ParseFormats.
func NormalizeFormat(format string) string {
	out := format
	for _, sub := range fracSubs {
		out = sub.re.ReplaceAllString(out, sub.repl)
	}
	for _, sub := range tokenSubs {
		out = sub.re.ReplaceAllString(out, sub.repl)
	}
	return out
}

// ParseFormats normalizes a list of user-declared formats. A format
// containing "%" is assumed to already be a platform directive format
// (per spec §4.1/§4.5) and is translated from a light set of common
// strptime directives to a Go layout instead of schema tokens.
func ParseFormats(formats []string) []string {
	out := make([]string, 0, len(formats))
	for _, f := range formats {
		if containsPercent(f) {
			out = append(out, normalizeStrptime(f))
			continue
		}
		out = append(out, NormalizeFormat(f))
	}
	return out
}

func containsPercent(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == '%' {
			return true
		}
	}
	return false
}

var strptimeSubs = []tokenSub{
	{regexp.MustCompile(`%Y`), "2006"},
	{regexp.MustCompile(`%y`), "06"},
	{regexp.MustCompile(`%B`), "January"},
	{regexp.MustCompile(`%b`), "Jan"},
	{regexp.MustCompile(`%m`), "01"},
	{regexp.MustCompile(`%d`), "02"},
	{regexp.MustCompile(`%H`), "15"},
	{regexp.MustCompile(`%M`), "04"},
	{regexp.MustCompile(`%S`), "05"},
	{regexp.MustCompile(`%z`), "Z07:00"},
	{regexp.MustCompile(`%f`), "000000"},
	{regexp.MustCompile(`%\.f`), ".000000"},
}

func normalizeStrptime(format string) string {
	out := format
	for _, sub := range strptimeSubs {
		out = sub.re.ReplaceAllString(out, sub.repl)
	}
	return out
}

// CommonDateLayouts is the fallback table tried, in order, when no
// user-declared date format matches a value. Grounded on
// COMMON_DATE_FORMATS in the original implementation's date_parser.
var CommonDateLayouts = []string{
	"20060102",
	"2006-01-02",
	"01/02/2006",
	"02/01/2006",
	"2006/01/02",
	"02-Jan-2006",
	"Jan 2, 2006",
	"02 Jan 2006",
	"2006.01.02",
}

// CommonDatetimeLayouts is the fallback table tried, in order, for
// datetime fields once user-declared formats are exhausted.
var CommonDatetimeLayouts = []string{
	"2006-01-02T15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006/01/02 15:04:05",
}

// PermissiveDateLayouts is tried last, for inputs that match no
// declared or common format — a deterministic stand-in for the
// original implementation's dateutil.parser.parse(fuzzy=False).
var PermissiveDateLayouts = []string{
	"2006-1-2",
	"1/2/2006",
	"2 January 2006",
	"January 2 2006",
	"Jan 2 2006",
	"2-Jan-06",
}
