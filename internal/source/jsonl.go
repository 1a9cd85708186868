package source

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/shopspring/decimal"

	"liquiditySim/internal/model"
	"liquiditySim/internal/series"
)

const maxLineSize = 10 * 1024 * 1024

// LoadJSONL reads a raw bar JSONL file. See ReadJSONL.
func LoadJSONL(path string) (*series.Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer file.Close()
	return ReadJSONL(file)
}

// ReadJSONL reads one raw bar per line. Each line is an object with a
// timestamp field and numeric (or numeric string) columns; null is a missing
// value.
func ReadJSONL(r io.Reader) (*series.Frame, error) {
	scanner := bufio.NewScanner(r)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, maxLineSize)

	frame := series.NewFrame()
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}

		var fields map[string]json.RawMessage
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, &series.DataFormatError{Column: model.ColumnTimestamp, Reason: fmt.Sprintf("line %d: %v", line, err)}
		}
		tsRaw, ok := fields[model.ColumnTimestamp]
		if !ok {
			return nil, &series.DataFormatError{Column: model.ColumnTimestamp, Reason: fmt.Sprintf("line %d: missing", line)}
		}
		ts, err := ParseTime(unquote(tsRaw))
		if err != nil {
			return nil, &series.DataFormatError{Column: model.ColumnTimestamp, Reason: fmt.Sprintf("line %d: %v", line, err)}
		}

		names := make([]string, 0, len(fields))
		for name := range fields {
			if name != model.ColumnTimestamp {
				names = append(names, name)
			}
		}
		sort.Strings(names)

		row := make(map[string]decimal.NullDecimal, len(names))
		for _, name := range names {
			v, err := parseCell(unquote(fields[name]))
			if err != nil {
				return nil, &series.DataFormatError{Column: name, Reason: fmt.Sprintf("line %d: %v", line, err)}
			}
			row[name] = v
		}
		frame.AppendRow(ts, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan input: %w", err)
	}
	return frame, nil
}

// unquote returns the text of a JSON string or the literal of any other
// scalar; null becomes empty.
func unquote(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
