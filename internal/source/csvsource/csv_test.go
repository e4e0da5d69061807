package csvsource

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCSV(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "people.csv")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

// Header text is PG-safe folded before dedup so raw punctuation and
// mixed case never reach the row's column names.
func TestOpenFoldsAndDedupesHeader(t *testing.T) {
	path := writeCSV(t, "Customer Name!,Customer Name!,id\nAmy,Smith,1\n")
	a := New(path, nil, 0)
	tables, err := a.Tables(context.Background())
	require.NoError(t, err)
	require.Len(t, tables, 1)

	r, err := tables[0].Open(context.Background())
	require.NoError(t, err)
	defer r.Close()

	row, ok, err := r.Next(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, []string{"customer_name", "customer_name_1", "id"}, row.Keys)
}

// A row whose cells exactly repeat the previously yielded row is
// suppressed, while a genuinely distinct row still passes through.
func TestNextSuppressesConsecutiveDuplicateRows(t *testing.T) {
	path := writeCSV(t, "id,name\n1,Amy\n1,Amy\n2,Ben\n1,Amy\n")
	a := New(path, nil, 0)
	tables, err := a.Tables(context.Background())
	require.NoError(t, err)

	r, err := tables[0].Open(context.Background())
	require.NoError(t, err)
	defer r.Close()

	var ids []string
	for {
		row, ok, err := r.Next(context.Background())
		require.NoError(t, err)
		if !ok {
			break
		}
		v, _ := row.Get("id")
		ids = append(ids, v)
	}

	assert.Equal(t, []string{"1", "2", "1"}, ids)
}
