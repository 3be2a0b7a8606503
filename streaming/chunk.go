package streaming

import "time"

// ChunkKind identifies the payload carried by a Chunk.
type ChunkKind string

const (
	ChunkText       ChunkKind = "text"
	ChunkToolCall   ChunkKind = "tool_call"
	ChunkToolResult ChunkKind = "tool_result"
	ChunkSummary    ChunkKind = "summary"
	ChunkTokenUsage ChunkKind = "token_usage"
)

// Chunk is one unit of streamed data.
type Chunk struct {
	ID        string
	Data      []byte
	Kind      ChunkKind
	IsFinal   bool
	Priority  byte
	CreatedAt time.Time
	Metadata  map[string]interface{}
}

// Size returns the chunk's footprint in bytes as tracked by the buffer.
func (c Chunk) Size() int { return len(c.Data) }
