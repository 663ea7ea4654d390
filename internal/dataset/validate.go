package dataset

import (
	"fmt"
	"io"
	"os"
)

// Validate checks that a file is a plausible Parquet container by
// checking magic bytes, without decoding any data. Parquet files must
// have "PAR1" magic bytes at both the start and end of the file.
func Validate(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}

	// Parquet files need at least 12 bytes (4 byte header + 4 byte footer + 4 byte metadata length)
	if stat.Size() < 12 {
		return fmt.Errorf("file too small to be valid parquet (%d bytes)", stat.Size())
	}

	magic := make([]byte, 4)
	if _, err := io.ReadFull(file, magic); err != nil {
		return fmt.Errorf("failed to read header: %w", err)
	}
	if string(magic) != "PAR1" {
		return fmt.Errorf("invalid parquet magic header: got %q", magic)
	}

	if _, err := file.Seek(-4, io.SeekEnd); err != nil {
		return fmt.Errorf("failed to seek to footer: %w", err)
	}
	if _, err := io.ReadFull(file, magic); err != nil {
		return fmt.Errorf("failed to read footer: %w", err)
	}
	if string(magic) != "PAR1" {
		return fmt.Errorf("invalid parquet magic footer: got %q", magic)
	}

	return nil
}
