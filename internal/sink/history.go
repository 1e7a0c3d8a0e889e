package sink

import (
	"context"

	"github.com/vxkit/vxh/internal/metrics"
	"github.com/vxkit/vxh/internal/report"
	"github.com/vxkit/vxh/internal/storage"
)

// HistorySink records each run in the SQLite history.
type HistorySink struct {
	History *storage.History
}

// Name implements Sink.
func (h *HistorySink) Name() string { return "history" }

// Write implements Sink.
func (h *HistorySink) Write(ctx context.Context, r *report.Report) error {
	return h.History.SaveRun(ctx, r)
}

// Close closes the history database.
func (h *HistorySink) Close() error {
	return h.History.Close()
}

// TextfileSink writes report gauges for the node_exporter textfile collector.
// Transport counters observed during the run are included.
type TextfileSink struct {
	Metrics *metrics.Metrics
	Path    string
}

// Name implements Sink.
func (t *TextfileSink) Name() string { return "textfile" }

// Write implements Sink.
func (t *TextfileSink) Write(_ context.Context, r *report.Report) error {
	t.Metrics.ObserveReport(r)
	return t.Metrics.WriteTextfile(t.Path)
}

// JournalSink appends a one-line run summary to a JSONL journal.
type JournalSink struct {
	Path string
}

// Name implements Sink.
func (j *JournalSink) Name() string { return "journal" }

// Write implements Sink.
func (j *JournalSink) Write(_ context.Context, r *report.Report) error {
	return storage.AppendRun(j.Path, storage.Summarize(r))
}
