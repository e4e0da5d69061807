package excelsource

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeWorkbook(t *testing.T, rows [][]string) string {
	t.Helper()
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	for i, row := range rows {
		for j, cell := range row {
			ref, err := excelize.CoordinatesToCellName(j+1, i+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue(sheet, ref, cell))
		}
	}
	path := filepath.Join(t.TempDir(), "workbook.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

// Header text is PG-safe folded before dedup so raw punctuation and
// mixed case never reach the row's column names.
func TestOpenReaderFoldsAndDedupesHeader(t *testing.T) {
	path := writeWorkbook(t, [][]string{
		{"Customer Name!", "Customer Name!", "id"},
		{"Amy", "Smith", "1"},
	})
	a := New(path, "", nil)
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
	path := writeWorkbook(t, [][]string{
		{"id", "name"},
		{"1", "Amy"},
		{"1", "Amy"},
		{"2", "Ben"},
		{"1", "Amy"},
	})
	a := New(path, "", nil)
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
