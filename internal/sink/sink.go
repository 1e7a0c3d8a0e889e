// Package sink delivers finished reports: files, run history, Prometheus
// textfiles and Kafka.
package sink

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/vxkit/vxh/internal/report"
)

// Sink accepts a finished report.
type Sink interface {
	Name() string
	Write(ctx context.Context, r *report.Report) error
}

// Multi writes to every sink and joins their errors. One failing sink does
// not stop the others.
type Multi struct {
	Sinks  []Sink
	Logger *zap.Logger
}

// Name implements Sink.
func (m *Multi) Name() string { return "multi" }

// Write implements Sink.
func (m *Multi) Write(ctx context.Context, r *report.Report) error {
	logger := m.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var errs []error
	for _, s := range m.Sinks {
		if err := s.Write(ctx, r); err != nil {
			logger.Warn("sink failed", zap.String("sink", s.Name()), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s sink: %w", s.Name(), err))
			continue
		}
		logger.Debug("report written", zap.String("sink", s.Name()), zap.String("run_id", r.RunID))
	}
	return errors.Join(errs...)
}

// Close closes every sink that holds resources.
func (m *Multi) Close() error {
	var errs []error
	for _, s := range m.Sinks {
		if c, ok := s.(interface{ Close() error }); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}
