package incc

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	snapshotDateLayout = "02/01/2006"
	utf8BOM            = "\ufeff"
)

var snapshotHeader = []string{"data", "indice"}

// ReadSnapshot loads the persisted series file. Rows whose date or index
// value does not parse are dropped. It returns ErrNoSnapshot when the file
// does not exist.
func ReadSnapshot(path string) (Series, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Series{}, ErrNoSnapshot
		}
		return Series{}, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()

	return DecodeSnapshot(f)
}

// DecodeSnapshot reads the `data,indice` table from r
func DecodeSnapshot(r io.Reader) (Series, error) {
	br := bufio.NewReader(r)
	if bom, err := br.Peek(len(utf8BOM)); err == nil && string(bom) == utf8BOM {
		_, _ = br.Discard(len(utf8BOM))
	}

	reader := csv.NewReader(br)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Series{}, fmt.Errorf("decode snapshot: missing header")
		}
		return Series{}, fmt.Errorf("decode snapshot header: %w", err)
	}
	if len(header) < 2 || strings.TrimSpace(header[0]) != snapshotHeader[0] || strings.TrimSpace(header[1]) != snapshotHeader[1] {
		return Series{}, fmt.Errorf("decode snapshot: unexpected header %v", header)
	}

	var points []IndexPoint
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Series{}, fmt.Errorf("decode snapshot row: %w", err)
		}
		if len(record) < 2 {
			continue
		}

		date, err := time.Parse(snapshotDateLayout, strings.TrimSpace(record[0]))
		if err != nil {
			continue
		}
		value, err := decimal.NewFromString(strings.TrimSpace(record[1]))
		if err != nil {
			continue
		}
		points = append(points, IndexPoint{Date: date, Value: value})
	}

	return NewSeries(points), nil
}

// EncodeSnapshot writes series as the `data,indice` table, UTF-8 with BOM
func EncodeSnapshot(w io.Writer, series Series) error {
	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return err
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(snapshotHeader); err != nil {
		return err
	}
	for _, p := range series.points {
		if err := writer.Write([]string{p.Date.Format(snapshotDateLayout), p.Value.String()}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteSnapshot atomically replaces the file at path: the table is written
// to a temporary file in the same directory, synced and renamed over path.
func WriteSnapshot(path string, series Series) (err error) {
	var buf bytes.Buffer
	if err := EncodeSnapshot(&buf, series); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("write temp snapshot: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp snapshot: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp snapshot: %w", err)
	}
	if err = os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod temp snapshot: %w", err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}
