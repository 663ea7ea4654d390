package dataset

import (
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/parquet/compress"
)

// Compression describes the physical encoding of a written dataset:
// codec, level and basket (row group) sizing. It never affects logical
// record content.
type Compression struct {
	Codec           string // zstd, gzip, snappy, uncompressed
	Level           int
	BasketRows      int64 // rows per row group
	UseDictionary   bool
	WriteStatistics bool
}

// DefaultCompression returns the writer defaults: zstd level 3 with
// 122880-row baskets, dictionary encoding and statistics on.
func DefaultCompression() Compression {
	return Compression{
		Codec:           "zstd",
		Level:           3,
		BasketRows:      122880,
		UseDictionary:   true,
		WriteStatistics: true,
	}
}

// codec resolves the configured codec name.
func (c Compression) codec() (compress.Compression, error) {
	switch strings.ToLower(c.Codec) {
	case "zstd":
		return compress.Codecs.Zstd, nil
	case "gzip":
		return compress.Codecs.Gzip, nil
	case "snappy":
		return compress.Codecs.Snappy, nil
	case "uncompressed", "none":
		return compress.Codecs.Uncompressed, nil
	default:
		return compress.Codecs.Uncompressed, fmt.Errorf("unknown compression codec %q", c.Codec)
	}
}

func (c Compression) String() string {
	return fmt.Sprintf("%s(level=%d, basket_rows=%d)", strings.ToLower(c.Codec), c.Level, c.BasketRows)
}
