// CLAUDE:SUMMARY JSON-lines sink: one {"type":"batch","data":...} line per recorded batch.
package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/hazyhaar/domreplay/record"
)

// Stdout encodes each batch as one JSON line. Safe for concurrent use by
// several recorders.
type Stdout struct {
	mu    sync.Mutex
	enc   *json.Encoder
	lines int
}

// NewStdout writes to w, or to os.Stdout when w is nil.
func NewStdout(w io.Writer) *Stdout {
	if w == nil {
		w = os.Stdout
	}
	return &Stdout{enc: json.NewEncoder(w)}
}

func (s *Stdout) Send(_ context.Context, batch record.Batch) error {
	line := envelope{Type: "batch", Data: batch}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enc.Encode(line); err != nil {
		return fmt.Errorf("stdout: encode batch %s/%d: %w", batch.SessionID, batch.Seq, err)
	}
	s.lines++
	return nil
}

// Lines returns the number of batches written.
func (s *Stdout) Lines() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lines
}

func (s *Stdout) Close() error { return nil }

// envelope tags each line so that readers can tell batches from other
// line types.
type envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}
