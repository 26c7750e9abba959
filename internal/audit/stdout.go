package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// StdoutSink writes JSON-encoded audit events to stdout.
type StdoutSink struct {
	enc *json.Encoder
}

// NewStdoutSink creates a stdout sink with optional pretty-printed JSON.
func NewStdoutSink(pretty bool) *StdoutSink {
	enc := json.NewEncoder(os.Stdout)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return &StdoutSink{enc: enc}
}

func (s *StdoutSink) Write(_ context.Context, event Event) error {
	if err := s.enc.Encode(event); err != nil {
		return fmt.Errorf("audit stdout: %w", err)
	}
	return nil
}

func (s *StdoutSink) Close() error {
	return nil
}
