// Package parquetio reads and writes the reference-table artifact
// (tables.parquet): one row per table entry, exported by the ETL and loaded
// by the engine at startup.
package parquetio

import (
	"fmt"
	"io"
	"os"

	"github.com/parquet-go/parquet-go"
)

// TableRow mirrors the Parquet schema of one reference-table entry.
type TableRow struct {
	TableName string `parquet:"table_name"`
	TableType string `parquet:"table_type"`
	Code      string `parquet:"code"`
	Text      string `parquet:"text,optional"`
}

// Reader wraps a parquet GenericReader for streaming TableRow records.
type Reader struct {
	file   *os.File
	reader *parquet.GenericReader[TableRow]
}

// Open opens a tables artifact and returns a streaming Reader.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open parquet file: %w", err)
	}

	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat parquet file: %w", err)
	}

	pf, err := parquet.OpenFile(f, stat.Size())
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open parquet: %w", err)
	}

	r := parquet.NewGenericReader[TableRow](pf)
	return &Reader{file: f, reader: r}, nil
}

// NumRows returns the total number of rows in the artifact.
func (r *Reader) NumRows() int64 {
	return r.reader.NumRows()
}

// Read reads up to len(rows) records into the provided slice.
// Returns the number of rows read and io.EOF when done.
func (r *Reader) Read(rows []TableRow) (int, error) {
	n, err := r.reader.Read(rows)
	if err != nil && err != io.EOF {
		return n, fmt.Errorf("read parquet rows: %w", err)
	}
	return n, err
}

// Close releases all resources.
func (r *Reader) Close() error {
	if err := r.reader.Close(); err != nil {
		r.file.Close()
		return err
	}
	return r.file.Close()
}

// ReadAll loads the whole artifact. Reference tables are small enough
// (tens of thousands of entries) that streaming is not worth the caller's
// trouble.
func ReadAll(path string) ([]TableRow, error) {
	r, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	out := make([]TableRow, 0, r.NumRows())
	buf := make([]TableRow, 1024)
	for {
		n, readErr := r.Read(buf)
		out = append(out, buf[:n]...)
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return nil, readErr
		}
	}
	return out, nil
}

// WriteFile writes all rows to a new tables artifact at path.
func WriteFile(path string, rows []TableRow) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create parquet file: %w", err)
	}

	w := parquet.NewGenericWriter[TableRow](f)
	if _, err := w.Write(rows); err != nil {
		f.Close()
		return fmt.Errorf("write parquet rows: %w", err)
	}
	if err := w.Close(); err != nil {
		f.Close()
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return f.Close()
}
