package events

import (
	"context"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mohammed-shakir/csv-geocoder/internal/logger"
)

// Sink receives events; *Publisher is the production implementation.
type Sink interface {
	Publish(ev Event) bool
}

// Recorder logs lookups and forwards misses to a sink. A query that already
// missed is not republished until it falls out of the dedupe window.
type Recorder struct {
	logger *slog.Logger
	sink   Sink
	seen   *lru.Cache[uint64, struct{}]
	now    func() time.Time
}

// NewRecorder accepts a nil sink, in which case lookups are only logged.
func NewRecorder(l *slog.Logger, sink Sink, dedupeSize int) *Recorder {
	if dedupeSize <= 0 {
		dedupeSize = 4096
	}
	c, _ := lru.New[uint64, struct{}](dedupeSize)
	return &Recorder{logger: l, sink: sink, seen: c, now: time.Now}
}

func (r *Recorder) QueryExecuted(ctx context.Context, endpoint, query string, results int) {
	r.logger.DebugContext(ctx, "query executed", "endpoint", endpoint, "query", query, "results", results)
}

func (r *Recorder) NotFound(ctx context.Context, endpoint, query string) {
	r.logger.InfoContext(ctx, "not found", "endpoint", endpoint, "query", query)
	if r.sink == nil {
		return
	}
	ev := Event{
		Kind:      KindNotFound,
		Endpoint:  endpoint,
		Query:     query,
		BatchID:   logger.BatchID(ctx),
		RequestID: logger.RequestID(ctx),
		TS:        r.now().UTC(),
	}
	if seen, _ := r.seen.ContainsOrAdd(ev.hash(), struct{}{}); seen {
		return
	}
	if !r.sink.Publish(ev) {
		r.logger.WarnContext(ctx, "event queue full, dropping", "kind", ev.Kind)
	}
}
