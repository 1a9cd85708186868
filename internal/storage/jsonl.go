package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"liquiditySim/internal/model"
)

// JsonlStorage appends records to a JSONL file.
type JsonlStorage struct {
	path string
	mu   sync.Mutex
}

func NewJsonlStorage(path string) *JsonlStorage {
	return &JsonlStorage{path: path}
}

// Path returns the output file.
func (s *JsonlStorage) Path() string {
	return s.path
}

// PutBars appends normalized bars.
func (s *JsonlStorage) PutBars(bars []model.Bar) error {
	return s.append(len(bars), func(i int) any { return bars[i] })
}

func (s *JsonlStorage) append(n int, record func(i int) any) error {
	if n == 0 {
		return nil
	}

	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	for i := 0; i < n; i++ {
		line, err := json.Marshal(record(i))
		if err != nil {
			return fmt.Errorf("marshal record: %w", err)
		}
		if _, err := writer.Write(line); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("write newline: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}

	return nil
}

// JsonlSink writes a run into a directory as runs.jsonl, actions.jsonl and
// snapshots.jsonl. Runs share the files and are told apart by run_id.
type JsonlSink struct {
	runs      *JsonlStorage
	actions   *JsonlStorage
	snapshots *JsonlStorage
}

func NewJsonlSink(dir string) *JsonlSink {
	return &JsonlSink{
		runs:      NewJsonlStorage(filepath.Join(dir, "runs.jsonl")),
		actions:   NewJsonlStorage(filepath.Join(dir, "actions.jsonl")),
		snapshots: NewJsonlStorage(filepath.Join(dir, "snapshots.jsonl")),
	}
}

type runLine struct {
	Event string `json:"event"`
	*Run
	*RunSummary
}

func (s *JsonlSink) BeginRun(_ context.Context, run Run) error {
	return s.runs.append(1, func(int) any { return runLine{Event: "begin", Run: &run} })
}

func (s *JsonlSink) PutActionBatch(_ context.Context, actions []ActionRecord) error {
	return s.actions.append(len(actions), func(i int) any { return actions[i] })
}

func (s *JsonlSink) PutSnapshotBatch(_ context.Context, snapshots []SnapshotRecord) error {
	return s.snapshots.append(len(snapshots), func(i int) any { return snapshots[i] })
}

func (s *JsonlSink) EndRun(_ context.Context, summary RunSummary) error {
	return s.runs.append(1, func(int) any { return runLine{Event: "end", RunSummary: &summary} })
}
