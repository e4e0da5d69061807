package fwfsource

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFixedWidth(t *testing.T, lines string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.txt")
	require.NoError(t, os.WriteFile(path, []byte(lines), 0o644))
	return path
}

// A row whose cells exactly repeat the previously yielded row is
// suppressed, while a genuinely distinct row still passes through.
func TestNextSuppressesConsecutiveDuplicateRows(t *testing.T) {
	path := writeFixedWidth(t, "0001Amy  \n0001Amy  \n0002Ben  \n0001Amy  \n")
	spec := Spec{Fields: []FieldSpec{
		{Name: "id", Start: 1, Length: 4},
		{Name: "name", Start: 5, Length: 5},
	}}
	a := New(path, spec)
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

	assert.Equal(t, []string{"0001", "0002", "0001"}, ids)
}
