// Package sqldumpsource implements C2 for a plain SQL dump file: every
// CREATE TABLE establishes a column order, every single-statement
// INSERT contributes rows to its target table. Grounded on
// BaseSQLBackupInput in the original implementation's
// inputs/base_sql_backup_input.py, reimplemented against a real SQL
// parser (the same TiDB parser the teacher repository uses for DDL)
// instead of the original's hand-rolled single-line regex — this
// module reaches multiline statements and comment/escaping edge cases
// the regex approach explicitly declined to support.
package sqldumpsource

import (
	"context"
	"os"
	"strconv"
	"strings"

	"github.com/pingcap/tidb/pkg/parser"
	"github.com/pingcap/tidb/pkg/parser/ast"
	"github.com/pingcap/tidb/pkg/parser/format"
	_ "github.com/pingcap/tidb/pkg/parser/test_driver"

	"ingestkit/internal/ingesterr"
	"ingestkit/internal/pipeline"
	"ingestkit/internal/schema"
	"ingestkit/internal/source"
)

// Adapter parses a SQL dump file once (at Tables time) and replays its
// INSERT rows per matched table.
type Adapter struct {
	path   string
	schema *schema.Schema
}

// New builds a dump-file adapter for path.
func New(path string, s *schema.Schema) *Adapter {
	return &Adapter{path: path, schema: s}
}

func (a *Adapter) Close() error { return nil }

type tableData struct {
	schemaName string
	name       string
	columns    []string
	rows       [][]string
}

func (a *Adapter) Tables(ctx context.Context) ([]source.Table, error) {
	data, err := os.ReadFile(a.path)
	if err != nil {
		return nil, ingesterr.NewSourceError("reading dump file "+a.path, err)
	}

	p := parser.New()
	stmts, _, err := p.Parse(string(data), "", "")
	if err != nil {
		return nil, ingesterr.NewSourceError("parsing sql dump", err)
	}

	tables := map[string]*tableData{}
	order := make([]*tableData, 0)

	ensure := func(schemaName, name string) *tableData {
		key := schemaName + "." + name
		if t, ok := tables[key]; ok {
			return t
		}
		t := &tableData{schemaName: schemaName, name: name}
		tables[key] = t
		order = append(order, t)
		return t
	}

	for _, stmt := range stmts {
		switch s := stmt.(type) {
		case *ast.CreateTableStmt:
			t := ensure(s.Table.Schema.O, s.Table.Name.O)
			if len(t.columns) == 0 {
				for _, col := range s.Cols {
					t.columns = append(t.columns, col.Name.Name.O)
				}
			}
		case *ast.InsertStmt:
			tableName := s.Table.TableRefs.Left.(*ast.TableSource).Source.(*ast.TableName)
			t := ensure(tableName.Schema.O, tableName.Name.O)
			columns := t.columns
			if len(s.Columns) > 0 {
				columns = make([]string, len(s.Columns))
				for i, c := range s.Columns {
					columns[i] = c.Name.O
				}
			}
			for _, list := range s.Lists {
				row := make([]string, len(list))
				for i, expr := range list {
					row[i] = exprToCell(expr)
				}
				if len(columns) > 0 && len(columns) != len(row) {
					continue // column/value count mismatch, skip per original's len_mismatch rule
				}
				if len(t.columns) == 0 {
					t.columns = columns
				}
				t.rows = append(t.rows, row)
			}
		}
	}

	var out []source.Table
	for _, t := range order {
		if len(t.rows) == 0 {
			continue
		}
		if a.schema != nil && !a.schema.MatchesInclude(t.schemaName, t.name) {
			continue
		}
		td := t
		out = append(out, source.Table{
			Name:   td.name,
			Schema: td.schemaName,
			Open: func(ctx context.Context) (source.RowReader, error) {
				return &reader{table: td}, nil
			},
		})
	}
	return out, nil
}

// exprToCell renders one VALUES literal as its raw string form, with
// SQL NULL mapped to the empty string (consistent with how every other
// source represents an absent scalar).
func exprToCell(expr ast.ExprNode) string {
	var sb strings.Builder
	ctx := format.NewRestoreCtx(format.DefaultRestoreFlags, &sb)
	if err := expr.Restore(ctx); err != nil {
		return ""
	}
	s := strings.TrimSpace(sb.String())
	if strings.EqualFold(s, "NULL") {
		return ""
	}
	if unquoted, ok := unquoteString(s); ok {
		return unquoted
	}
	return s
}

func unquoteString(s string) (string, bool) {
	if len(s) >= 2 && s[0] == '\'' && s[len(s)-1] == '\'' {
		return strings.ReplaceAll(s[1:len(s)-1], "''", "'"), true
	}
	if n, err := strconv.Unquote(s); err == nil {
		return n, true
	}
	return s, false
}

type reader struct {
	table *tableData
	idx   int
}

func (r *reader) Next(ctx context.Context) (pipeline.RawRow, bool, error) {
	if r.idx >= len(r.table.rows) {
		return pipeline.RawRow{}, false, nil
	}
	row := r.table.rows[r.idx]
	r.idx++

	cols := r.table.columns
	n := len(row)
	if len(cols) < n {
		n = len(cols)
	}
	keys := make([]string, n)
	values := make(map[string]string, n)
	for i := 0; i < n; i++ {
		keys[i] = cols[i]
		values[cols[i]] = row[i]
	}
	return pipeline.NewRawRow(keys, values), true, nil
}

func (r *reader) Close() error { return nil }
