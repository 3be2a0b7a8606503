package reasoning

import (
	"context"

	"github.com/reasoncore/engine/streaming"
)

// StreamHandler is the UI sink external collaborator: the reasoning loop
// forwards model-stream chunks to it as they arrive and signals stream
// lifecycle boundaries. handle_chunk carries the same id/bytes/type/
// is_final/priority/created_at/metadata shape as streaming.Chunk, so the
// loop reuses that type rather than define a parallel one.
type StreamHandler interface {
	HandleChunk(ctx context.Context, chunk streaming.Chunk) error
	HandleStreamComplete(ctx context.Context, streamID string) error
	HandleStreamError(ctx context.Context, streamID string, err error) error
}

// NopStreamHandler discards every chunk; useful for headless callers that
// only care about the final Session outcome and emitted events.
type NopStreamHandler struct{}

func (NopStreamHandler) HandleChunk(context.Context, streaming.Chunk) error     { return nil }
func (NopStreamHandler) HandleStreamComplete(context.Context, string) error     { return nil }
func (NopStreamHandler) HandleStreamError(context.Context, string, error) error { return nil }
