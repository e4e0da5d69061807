// Package main contains the cli implementation of the ingest engine.
// It uses the cobra package for cli tool implementation, the same
// library and one-flag-struct-per-command shape as smf's own cmd/smf.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ingestkit/internal/ingesterr"
	"ingestkit/internal/output"
	"ingestkit/internal/pipeline/driver"
	"ingestkit/internal/schema"
	"ingestkit/internal/sink/parquet"
	"ingestkit/internal/source"
	"ingestkit/internal/source/csvsource"
	"ingestkit/internal/source/excelsource"
	"ingestkit/internal/source/fwfsource"
	"ingestkit/internal/source/sqldumpsource"
	"ingestkit/internal/source/sqlsource"
)

type ingestFlags struct {
	destination   string
	kind          string
	schemaPath    string
	preprocessors []string
	encodings     []string
	delimiter     string
	sheet         string
	headerMode    string
	outputMode    string
	chunkSize     int
	codec         string
	maxParallel   int
	format        string
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "ingestctl",
		Short: "Schema-driven tabular data ingestion engine",
	}

	rootCmd.AddCommand(ingestCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func ingestCmd() *cobra.Command {
	flags := &ingestFlags{}
	cmd := &cobra.Command{
		Use:   "ingest <source>",
		Short: "Ingest one source into columnar output",
		Long: `Ingest reads a single source (a file path, or a database DSN when
--kind is sql) through the declared preprocessor chain and row
validator, and writes one Parquet file per logical table into the
destination directory, alongside a counter manifest and a quarantine
log of rejected rows.`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runIngest(args[0], flags)
		},
	}

	cmd.Flags().StringVarP(&flags.destination, "destination", "d", "", "Destination directory for Parquet output, manifest, and quarantine log (required)")
	cmd.Flags().StringVarP(&flags.kind, "kind", "k", "", "Input kind: csv, fwf, excel, sql, sql_backup (required)")
	cmd.Flags().StringVarP(&flags.schemaPath, "schema", "s", "", "Path to the schema document (TOML or JSON)")
	cmd.Flags().StringSliceVarP(&flags.preprocessors, "preprocessor", "p", nil, "Ordered preprocessor names to run before validation (repeatable)")
	cmd.Flags().StringSliceVar(&flags.encodings, "encoding", nil, "Ordered text-encoding fallback priority for file sources")
	cmd.Flags().StringVar(&flags.delimiter, "delimiter", ",", "Field delimiter for csv sources")
	cmd.Flags().StringVar(&flags.sheet, "sheet", "", "Sheet name for excel sources; defaults to the workbook's first sheet")
	cmd.Flags().StringVar(&flags.headerMode, "header", "auto", "Header mode: present, absent, auto")
	cmd.Flags().StringVar(&flags.outputMode, "output-mode", "vectorized", "Output mode: vectorized (buffered) or chunked")
	cmd.Flags().IntVar(&flags.chunkSize, "chunk-size", 50_000, "Row-group flush size in chunked output mode")
	cmd.Flags().StringVar(&flags.codec, "compression", "snappy", "Parquet compression codec: snappy, gzip, brotli, zstd, lz4, uncompressed")
	cmd.Flags().IntVar(&flags.maxParallel, "max-parallel-tables", 1, "Maximum number of tables processed concurrently")
	cmd.Flags().StringVar(&flags.format, "format", "text", "Run summary format: text or json")

	return cmd
}

func runIngest(sourcePath string, flags *ingestFlags) error {
	if flags.destination == "" {
		return fmt.Errorf("--destination is required")
	}
	if flags.kind == "" {
		return fmt.Errorf("--kind is required")
	}

	var sch *schema.Schema
	if flags.schemaPath != "" {
		s, err := schema.LoadFile(flags.schemaPath)
		if err != nil {
			return fmt.Errorf("loading schema: %w", err)
		}
		sch = s
	}

	src, err := buildSource(sourcePath, flags, sch)
	if err != nil {
		return fmt.Errorf("building source: %w", err)
	}
	defer func() {
		_ = src.Close()
	}()

	headerMode := schema.HeaderMode(flags.headerMode)
	if sch != nil && headerMode != "" {
		sch.HeaderMode = headerMode
	}

	outputMode := parquet.ModeBuffered
	if strings.EqualFold(flags.outputMode, "chunked") {
		outputMode = parquet.ModeChunked
	}

	snk := parquet.New(parquet.Config{
		Dir:               flags.destination,
		Schema:            sch,
		Mode:              outputMode,
		ChunkSize:         flags.chunkSize,
		Codec:             flags.codec,
		SecondaryValidate: sch != nil && !containsCoercion(flags.preprocessors),
	})

	logger, err := zap.NewProduction()
	if err != nil {
		logger = zap.NewNop()
	}
	defer func() {
		_ = logger.Sync()
	}()

	d := driver.New(driver.Config{
		Source:            src,
		Sink:              snk,
		Schema:            sch,
		Preprocessors:     flags.preprocessors,
		MaxParallelTables: flags.maxParallel,
		Logger:            logger.Sugar(),
	})

	if err := d.Run(context.Background()); err != nil {
		return err
	}

	formatter, err := output.NewFormatter(flags.format)
	if err != nil {
		return err
	}
	summary, err := formatter.FormatSummary(snk.Counters())
	if err != nil {
		return fmt.Errorf("formatting run summary: %w", err)
	}
	fmt.Print(summary)
	return nil
}

func containsCoercion(names []string) bool {
	for _, n := range names {
		if n == "type_coercion" {
			return true
		}
	}
	return false
}

func buildSource(path string, flags *ingestFlags, sch *schema.Schema) (source.Adapter, error) {
	switch flags.kind {
	case "csv":
		delimiter := rune(0)
		if flags.delimiter != "" {
			delimiter = []rune(flags.delimiter)[0]
		}
		return csvsource.New(path, sch, delimiter), nil
	case "fwf":
		spec, err := fwfSpecFromSchema(flags.schemaPath)
		if err != nil {
			return nil, err
		}
		return fwfsource.New(path, spec), nil
	case "excel":
		return excelsource.New(path, flags.sheet, sch), nil
	case "sql":
		return sqlsource.Open(path, sch)
	case "sql_backup":
		return sqldumpsource.New(path, sch), nil
	default:
		return nil, ingesterr.NewConfigError(fmt.Sprintf("unknown input kind %q", flags.kind), nil)
	}
}

// fwfSpecFromSchema reads the schema document's "x-fwf" extension
// block directly, since fwfsource.Spec is layout metadata the
// normalized schema.Schema does not carry.
func fwfSpecFromSchema(schemaPath string) (fwfsource.Spec, error) {
	if schemaPath == "" {
		return fwfsource.Spec{}, ingesterr.NewConfigError("fwf input requires --schema with an x-fwf block", nil)
	}
	doc, err := schema.LoadRawDocument(schemaPath)
	if err != nil {
		return fwfsource.Spec{}, err
	}
	xfwf, _ := doc["x-fwf"].(map[string]any)
	if xfwf == nil {
		return fwfsource.Spec{}, ingesterr.NewConfigError("schema has no x-fwf block", nil)
	}
	spec := fwfsource.Spec{}
	if enc, ok := xfwf["encoding"].(string); ok {
		spec.Encoding = enc
	}
	rawFields, _ := xfwf["fields"].([]any)
	for _, rf := range rawFields {
		m, ok := rf.(map[string]any)
		if !ok {
			continue
		}
		fs := fwfsource.FieldSpec{
			Name:   fmt.Sprint(m["name"]),
			Start:  intOr(m["start"], 0),
			Length: intOr(m["length"], 0),
			End:    intOr(m["end"], 0),
			RStrip: boolOr(m["rstrip"], true),
			LStrip: boolOr(m["lstrip"], true),
		}
		spec.Fields = append(spec.Fields, fs)
	}
	return spec, nil
}

func intOr(v any, def int) int {
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	default:
		return def
	}
}

func boolOr(v any, def bool) bool {
	b, ok := v.(bool)
	if !ok {
		return def
	}
	return b
}
