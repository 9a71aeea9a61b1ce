package storage

import (
	"context"

	"arbscope/internal/model"
)

// Sink persists the outcome of a scan pass.
type Sink interface {
	PutReport(ctx context.Context, report model.ScanReport) error
}

// Multi fans a report out to several sinks, stopping at the first error.
type Multi []Sink

func (m Multi) PutReport(ctx context.Context, report model.ScanReport) error {
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.PutReport(ctx, report); err != nil {
			return err
		}
	}
	return nil
}
