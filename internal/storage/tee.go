package storage

import (
	"context"
	"errors"
)

// Tee fans every call out to several sinks. All sinks are called; their
// errors are joined.
type Tee []Sink

func (t Tee) BeginRun(ctx context.Context, run Run) error {
	return t.each(func(s Sink) error { return s.BeginRun(ctx, run) })
}

func (t Tee) PutActionBatch(ctx context.Context, actions []ActionRecord) error {
	return t.each(func(s Sink) error { return s.PutActionBatch(ctx, actions) })
}

func (t Tee) PutSnapshotBatch(ctx context.Context, snapshots []SnapshotRecord) error {
	return t.each(func(s Sink) error { return s.PutSnapshotBatch(ctx, snapshots) })
}

func (t Tee) EndRun(ctx context.Context, summary RunSummary) error {
	return t.each(func(s Sink) error { return s.EndRun(ctx, summary) })
}

func (t Tee) each(call func(Sink) error) error {
	var errs []error
	for _, s := range t {
		if s == nil {
			continue
		}
		if err := call(s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
