package domreplay

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/hazyhaar/domreplay/internal/sink"
	"github.com/hazyhaar/domreplay/record"
)

// Sink is the output interface for recorded batches.
type Sink = sink.Sink

// BatchFunc is called for each batch.
type BatchFunc = sink.BatchFunc

// Store is the SQLite session store.
type Store = sink.Store

// Session summarises one stored recording scope.
type Session = sink.Session

// Replica keeps the tree reconstructed from the delivered stream.
type Replica = sink.Replica

// NewStdoutSink creates a stdout JSON-lines sink.
func NewStdoutSink(w io.Writer) Sink {
	return sink.NewStdout(w)
}

// NewCallbackSink creates an in-process callback sink, zero serialisation.
func NewCallbackSink(onBatch func(ctx context.Context, batch record.Batch) error) Sink {
	return sink.NewCallback(onBatch)
}

// NewRouter fans batches out to every sink.
func NewRouter(logger *slog.Logger, sinks ...Sink) Sink {
	return sink.NewRouter(logger, sinks...)
}

// OpenStore opens (or creates) a SQLite session store.
func OpenStore(path string, logger *slog.Logger) (*Store, error) {
	return sink.OpenStore(path, sink.WithStoreLogger(logger))
}

// NewReplica creates an empty replica sink.
func NewReplica() *Replica {
	return sink.NewReplica()
}

// Outputs are the sinks opened from configuration. Sink fans out to all of
// them; Store and Replica are set when configured, for later queries.
type Outputs struct {
	Sink    Sink
	Store   *Store
	Replica *Replica
}

// OpenSinks opens the configured sinks. stdout receives the JSON lines of
// "stdout" sinks.
func OpenSinks(specs []SinkConfig, stdout io.Writer, logger *slog.Logger) (*Outputs, error) {
	out := &Outputs{}
	var sinks []Sink
	for _, sc := range specs {
		switch sc.Type {
		case "stdout":
			sinks = append(sinks, NewStdoutSink(stdout))
		case "sqlite":
			st, err := OpenStore(sc.Path, logger)
			if err != nil {
				closeAll(sinks)
				return nil, fmt.Errorf("domreplay: open sinks: %w", err)
			}
			if out.Store == nil {
				out.Store = st
			}
			sinks = append(sinks, st)
		case "replica":
			if out.Replica == nil {
				out.Replica = NewReplica()
				sinks = append(sinks, out.Replica)
			}
		default:
			closeAll(sinks)
			return nil, fmt.Errorf("domreplay: open sinks: unknown sink type %q", sc.Type)
		}
	}
	out.Sink = NewRouter(logger, sinks...)
	return out, nil
}

func closeAll(sinks []Sink) {
	for _, s := range sinks {
		s.Close()
	}
}
