package output

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ingestkit/internal/pipeline"
)

func TestNewFormatterDefaultsToText(t *testing.T) {
	f, err := NewFormatter("")
	require.NoError(t, err)
	assert.IsType(t, textFormatter{}, f)
}

func TestNewFormatterRejectsUnknownName(t *testing.T) {
	_, err := NewFormatter("xml")
	require.Error(t, err)
}

func TestTextFormatterFormatsCounters(t *testing.T) {
	f, err := NewFormatter("text")
	require.NoError(t, err)
	out, err := f.FormatSummary(pipeline.Counters{Read: 5, Kept: 3, Rejected: 1})
	require.NoError(t, err)
	assert.Equal(t, "read=5 kept=3 rejected=1 skipped=1\n", out)
}

func TestJSONFormatterFormatsCounters(t *testing.T) {
	f, err := NewFormatter("json")
	require.NoError(t, err)
	out, err := f.FormatSummary(pipeline.Counters{Read: 5, Kept: 3, Rejected: 1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"read":5,"kept":3,"rejected":1,"skipped":1}`, out)
}
