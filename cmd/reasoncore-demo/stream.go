package main

import (
	"context"
	"fmt"
	"os"

	"github.com/reasoncore/engine/streaming"
)

// printingStreamHandler writes model-stream chunks straight to stdout as
// they arrive, standing in for a real UI's render loop.
type printingStreamHandler struct{}

func (printingStreamHandler) HandleChunk(_ context.Context, chunk streaming.Chunk) error {
	_, err := os.Stdout.Write(chunk.Data)
	return err
}

func (printingStreamHandler) HandleStreamComplete(_ context.Context, streamID string) error {
	fmt.Println()
	return nil
}

func (printingStreamHandler) HandleStreamError(_ context.Context, streamID string, err error) error {
	fmt.Fprintf(os.Stderr, "\nstream %s error: %v\n", streamID, err)
	return nil
}
