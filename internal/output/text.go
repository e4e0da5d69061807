package output

import (
	"fmt"

	"ingestkit/internal/pipeline"
)

type textFormatter struct{}

// FormatSummary renders counters as a single human-readable line.
func (textFormatter) FormatSummary(c pipeline.Counters) (string, error) {
	return fmt.Sprintf("read=%d kept=%d rejected=%d skipped=%d\n", c.Read, c.Kept, c.Rejected, c.Skipped()), nil
}
