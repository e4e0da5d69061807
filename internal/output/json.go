package output

import (
	"encoding/json"

	"ingestkit/internal/pipeline"
)

type jsonFormatter struct{}

type summaryPayload struct {
	Read     int64 `json:"read"`
	Kept     int64 `json:"kept"`
	Rejected int64 `json:"rejected"`
	Skipped  int64 `json:"skipped"`
}

// FormatSummary renders counters as a single JSON object followed by a
// newline, matching the shape of the sink's own _manifest.json plus a
// derived skipped field.
func (jsonFormatter) FormatSummary(c pipeline.Counters) (string, error) {
	payload := summaryPayload{Read: c.Read, Kept: c.Kept, Rejected: c.Rejected, Skipped: c.Skipped()}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return string(data) + "\n", nil
}
