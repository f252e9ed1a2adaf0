package sink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hazyhaar/domreplay/record"
)

// Router delivers every batch to each of its sinks in order. A failing sink
// does not stop delivery to the next one; failures are logged and joined.
type Router struct {
	sinks  []Sink
	logger *slog.Logger
}

// NewRouter returns a Router over sinks. nil entries are skipped.
func NewRouter(logger *slog.Logger, sinks ...Sink) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Router{logger: logger}
	for _, s := range sinks {
		if s != nil {
			r.sinks = append(r.sinks, s)
		}
	}
	return r
}

// Len returns the number of sinks behind the router.
func (r *Router) Len() int { return len(r.sinks) }

func (r *Router) Send(ctx context.Context, batch record.Batch) error {
	var errs []error
	for i, s := range r.sinks {
		if err := s.Send(ctx, batch); err != nil {
			r.logger.Warn("sink: deliver batch",
				"sink", fmt.Sprintf("%T", s), "index", i,
				"session", batch.SessionID, "seq", batch.Seq, "error", err)
			errs = append(errs, fmt.Errorf("sink %d (%T): %w", i, s, err))
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink, even after a failure.
func (r *Router) Close() error {
	errs := make([]error, 0, len(r.sinks))
	for _, s := range r.sinks {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}
