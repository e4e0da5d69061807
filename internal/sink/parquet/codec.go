package parquet

import (
	"strings"

	"github.com/apache/arrow-go/v18/parquet/compress"

	"ingestkit/internal/ingesterr"
)

// parseCodec maps a schema/CLI codec name to the parquet compression
// constant, defaulting to snappy per spec. An unrecognized name is a
// ConfigError raised at Open, before any artifact is touched.
func parseCodec(name string) (compress.Compression, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "snappy":
		return compress.Codecs.Snappy, nil
	case "gzip":
		return compress.Codecs.Gzip, nil
	case "brotli":
		return compress.Codecs.Brotli, nil
	case "zstd":
		return compress.Codecs.Zstd, nil
	case "lz4":
		return compress.Codecs.Lz4Raw, nil
	case "uncompressed", "none":
		return compress.Codecs.Uncompressed, nil
	default:
		return 0, ingesterr.NewConfigError("unknown compression codec "+name, nil)
	}
}
