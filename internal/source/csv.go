package source

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"liquiditySim/internal/model"
	"liquiditySim/internal/series"
)

// LoadCSV reads a raw bar CSV file. See ReadCSV.
func LoadCSV(path string) (*series.Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer file.Close()
	return ReadCSV(file)
}

// ReadCSV reads raw bar rows. The header names the columns and must contain
// a timestamp column; every other column is parsed as a decimal and an empty
// cell is a missing value.
func ReadCSV(r io.Reader) (*series.Frame, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &series.DataFormatError{Column: model.ColumnTimestamp, Reason: "empty input"}
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	tsIndex := indexOf(header, model.ColumnTimestamp)
	if tsIndex < 0 {
		return nil, &series.DataFormatError{Column: model.ColumnTimestamp, Reason: "missing from header"}
	}

	columns := make([]string, 0, len(header)-1)
	for i, c := range header {
		if i != tsIndex {
			columns = append(columns, c)
		}
	}
	frame := series.NewFrame(columns...)

	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		line++

		ts, err := ParseTime(record[tsIndex])
		if err != nil {
			return nil, &series.DataFormatError{Column: model.ColumnTimestamp, Reason: fmt.Sprintf("line %d: %v", line, err)}
		}
		row := make(map[string]decimal.NullDecimal, len(columns))
		for i, cell := range record {
			if i == tsIndex {
				continue
			}
			v, err := parseCell(cell)
			if err != nil {
				return nil, &series.DataFormatError{Column: header[i], Reason: fmt.Sprintf("line %d: %v", line, err)}
			}
			row[header[i]] = v
		}
		frame.AppendRow(ts, row)
	}
	return frame, nil
}

// WriteCSV writes a frame with a leading RFC3339 timestamp column. Missing
// values are written as empty cells.
func WriteCSV(w io.Writer, f *series.Frame) error {
	writer := csv.NewWriter(w)
	columns := f.Columns()
	if err := writer.Write(append([]string{model.ColumnTimestamp}, columns...)); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	row := make([]string, len(columns)+1)
	for i, ts := range f.Timestamps {
		row[0] = ts.UTC().Format(time.RFC3339)
		for j, c := range columns {
			v := f.Column(c)[i]
			if v.Valid {
				row[j+1] = v.Decimal.String()
			} else {
				row[j+1] = ""
			}
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}
	return nil
}

// SaveCSV writes a frame to path. See WriteCSV.
func SaveCSV(path string, f *series.Frame) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	if err := WriteCSV(file, f); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

func parseCell(cell string) (decimal.NullDecimal, error) {
	cell = strings.TrimSpace(cell)
	if cell == "" || strings.EqualFold(cell, "nan") {
		return decimal.NullDecimal{}, nil
	}
	v, err := decimal.NewFromString(cell)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(v), nil
}

func indexOf(items []string, want string) int {
	for i, item := range items {
		if item == want {
			return i
		}
	}
	return -1
}
