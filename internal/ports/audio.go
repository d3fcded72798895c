package ports

import (
	"context"

	"github.com/Vovarama1992/whisperer/internal/models"
)

// AudioChunkSource blocks until one full chunk has been captured.
// Partial chunks are never returned.
type AudioChunkSource interface {
	NextChunk(ctx context.Context) (models.AudioChunk, error)
}

type CaptureStream interface {
	AudioChunkSource
	Close() error
}

// AudioDevice opens one capture stream per recording session.
type AudioDevice interface {
	Open(ctx context.Context) (CaptureStream, error)
	SampleRate() int
}

type WaveformWriter interface {
	Write(path string, sampleRate int, samples []int16) error
}
