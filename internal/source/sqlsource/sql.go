// Package sqlsource implements C2 for a live MySQL connection:
// discover tables via information_schema, then stream each one with a
// plain SELECT *. Grounded on BaseSQLInput/SQLInput's
// inspect-then-select shape in the original implementation's
// inputs/{base_sql_input,sql_input}.py, narrowed from SQLAlchemy's
// multi-dialect reach to the one driver wired into this module
// (go-sql-driver/mysql); include-pattern matching is delegated to the
// schema itself (schema.Schema.MatchesInclude) rather than
// reimplemented here.
package sqlsource

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"

	"ingestkit/internal/ingesterr"
	"ingestkit/internal/pipeline"
	"ingestkit/internal/schema"
	"ingestkit/internal/source"
)

var systemSchemas = map[string]bool{
	"information_schema": true,
	"mysql":              true,
	"performance_schema": true,
	"sys":                true,
}

// Adapter discovers and streams tables from a MySQL-compatible
// database reachable at dsn.
type Adapter struct {
	db     *sql.DB
	schema *schema.Schema
}

// Open connects to dsn (a go-sql-driver/mysql DSN) and returns an
// Adapter filtering discovered tables through s's SQL include
// patterns.
func Open(dsn string, s *schema.Schema) (*Adapter, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, ingesterr.NewConfigError("opening mysql connection", err)
	}
	return &Adapter{db: db, schema: s}, nil
}

func (a *Adapter) Tables(ctx context.Context) ([]source.Table, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT TABLE_SCHEMA, TABLE_NAME FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_TYPE IN ('BASE TABLE', 'VIEW')
		ORDER BY TABLE_SCHEMA, TABLE_NAME`)
	if err != nil {
		return nil, ingesterr.NewSourceError("listing mysql tables", err)
	}
	defer rows.Close()

	var out []source.Table
	for rows.Next() {
		var schemaName, tableName string
		if err := rows.Scan(&schemaName, &tableName); err != nil {
			return nil, ingesterr.NewSourceError("scanning information_schema.tables", err)
		}
		if systemSchemas[schemaName] {
			continue
		}
		if a.schema != nil && !a.schema.MatchesInclude(schemaName, tableName) {
			continue
		}
		sn, tn := schemaName, tableName
		out = append(out, source.Table{
			Name:   tn,
			Schema: sn,
			Open: func(ctx context.Context) (source.RowReader, error) {
				return openTableReader(ctx, a.db, sn, tn)
			},
		})
	}
	return out, rows.Err()
}

func (a *Adapter) Close() error { return a.db.Close() }

type tableReader struct {
	rows *sql.Rows
	cols []string
}

func openTableReader(ctx context.Context, db *sql.DB, schemaName, tableName string) (*tableReader, error) {
	stmt := fmt.Sprintf("SELECT * FROM `%s`.`%s`", schemaName, tableName)
	rows, err := db.QueryContext(ctx, stmt)
	if err != nil {
		return nil, ingesterr.NewSourceError("querying "+schemaName+"."+tableName, err)
	}
	cols, err := rows.Columns()
	if err != nil {
		rows.Close()
		return nil, ingesterr.NewSourceError("reading column list", err)
	}
	return &tableReader{rows: rows, cols: cols}, nil
}

// Next scans one row into a RawRow. SQL NULL renders as the empty
// string, the same "present but blank" representation a CSV source
// produces for an empty cell — coercion and validation treat the two
// identically.
func (r *tableReader) Next(ctx context.Context) (pipeline.RawRow, bool, error) {
	if !r.rows.Next() {
		if err := r.rows.Err(); err != nil {
			return pipeline.RawRow{}, false, ingesterr.NewSourceError("reading row", err)
		}
		return pipeline.RawRow{}, false, nil
	}
	raw := make([]sql.RawBytes, len(r.cols))
	args := make([]any, len(raw))
	for i := range raw {
		args[i] = &raw[i]
	}
	if err := r.rows.Scan(args...); err != nil {
		return pipeline.RawRow{}, false, ingesterr.NewSourceError("scanning row", err)
	}
	values := make(map[string]string, len(r.cols))
	for i, c := range r.cols {
		values[c] = string(raw[i])
	}
	return pipeline.NewRawRow(append([]string(nil), r.cols...), values), true, nil
}

func (r *tableReader) Close() error { return r.rows.Close() }
