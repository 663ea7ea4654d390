package dataset

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriter_FinalizeRenames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.parquet")

	w, err := Create(path, testSchema(), DefaultCompression())
	require.NoError(t, err)

	rec := buildEvents(t, testSchema(), 0, 10)
	defer rec.Release()
	require.NoError(t, w.Append(rec))

	// Nothing readable at the target until finalize.
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "output must not exist before Finalize")

	require.NoError(t, w.Finalize())

	_, err = os.Stat(path)
	assert.NoError(t, err, "output must exist after Finalize")
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file must be gone after Finalize")

	assert.NoError(t, Validate(path))
	assert.Equal(t, int64(10), w.Rows())
}

func TestWriter_AbortDiscards(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.parquet")

	w, err := Create(path, testSchema(), DefaultCompression())
	require.NoError(t, err)

	rec := buildEvents(t, testSchema(), 0, 10)
	defer rec.Release()
	require.NoError(t, w.Append(rec))

	w.Abort()

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "aborted output must not exist")
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "aborted temp file must be removed")

	// Append and Finalize after Abort fail.
	assert.Error(t, w.Append(rec))
	assert.ErrorIs(t, w.Finalize(), ErrFinalize)
}

func TestWriter_AppendSchemaViolation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.parquet")

	w, err := Create(path, testSchema(), DefaultCompression())
	require.NoError(t, err)
	defer w.Abort()

	other := arrow.NewSchema([]arrow.Field{
		{Name: "weight", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
		{Name: "met_pt", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
		{Name: "channel", Type: arrow.BinaryTypes.String, Nullable: true},
	}, nil)
	b := array.NewRecordBuilder(memory.NewGoAllocator(), other)
	defer b.Release()
	b.Field(0).(*array.Float64Builder).Append(1)
	b.Field(1).(*array.Float64Builder).Append(2)
	b.Field(2).(*array.StringBuilder).Append("e")
	rec := b.NewRecord()
	defer rec.Release()

	err = w.Append(rec)
	require.ErrorIs(t, err, ErrSchemaViolation)
	assert.Equal(t, int64(0), w.Rows())
}

func TestWriter_ConformsColumnOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.parquet")

	w, err := Create(path, testSchema(), DefaultCompression())
	require.NoError(t, err)

	// Same columns, different order: met_pt, channel, run.
	permuted := arrow.NewSchema([]arrow.Field{
		{Name: "met_pt", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
		{Name: "channel", Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "run", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
	}, nil)
	b := array.NewRecordBuilder(memory.NewGoAllocator(), permuted)
	defer b.Release()
	b.Field(0).(*array.Float64Builder).Append(3.5)
	b.Field(1).(*array.StringBuilder).Append("mu")
	b.Field(2).(*array.Int64Builder).Append(42)
	rec := b.NewRecord()
	defer rec.Release()

	require.NoError(t, w.Append(rec))
	require.NoError(t, w.Finalize())

	cur, err := OpenCursor(context.Background(), path, CursorOptions{})
	require.NoError(t, err)
	defer cur.Close()

	// Output column order follows the writer's schema, not the batch's.
	require.Equal(t, "run", cur.Schema().Field(0).Name)
	runs := readAll(t, cur)
	require.Equal(t, []int64{42}, runs)
}

func TestWriter_BasketRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.parquet")

	comp := DefaultCompression()
	comp.BasketRows = 100

	w, err := Create(path, testSchema(), comp)
	require.NoError(t, err)

	rec := buildEvents(t, testSchema(), 0, 1000)
	defer rec.Release()
	require.NoError(t, w.Append(rec))
	require.NoError(t, w.Finalize())

	pf, err := file.OpenParquetFile(path, false)
	require.NoError(t, err)
	defer pf.Close()

	assert.Equal(t, int64(1000), pf.NumRows())
	assert.Equal(t, 10, pf.NumRowGroups(), "1000 rows with 100-row baskets should give 10 row groups")
}

func TestWriter_Codecs(t *testing.T) {
	for _, codec := range []string{"zstd", "gzip", "snappy", "uncompressed"} {
		t.Run(codec, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), codec+".parquet")

			comp := DefaultCompression()
			comp.Codec = codec

			w, err := Create(path, testSchema(), comp)
			require.NoError(t, err)

			rec := buildEvents(t, testSchema(), 0, 50)
			defer rec.Release()
			require.NoError(t, w.Append(rec))
			require.NoError(t, w.Finalize())

			cur, err := OpenCursor(context.Background(), path, CursorOptions{})
			require.NoError(t, err)
			defer cur.Close()
			assert.Len(t, readAll(t, cur), 50)
		})
	}
}

func TestCreate_UnknownCodec(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.parquet")

	comp := DefaultCompression()
	comp.Codec = "lzma"

	_, err := Create(path, testSchema(), comp)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCreate))

	_, statErr := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(statErr), "no temp file should survive a failed Create")
}
