package ports

import (
	"context"
	"time"

	"github.com/Vovarama1992/whisperer/internal/models"
)

type EventType string

const (
	EventRecordStarted       EventType = "record_started"
	EventRecordCompleted     EventType = "record_completed"
	EventTranscribeStarted   EventType = "transcribe_started"
	EventTranscribeCompleted EventType = "transcribe_completed"
	EventFailed              EventType = "failed"
)

type PipelineEvent struct {
	Type     EventType `json:"event"`
	FilePath string    `json:"filePath"`
	Segments int       `json:"segments,omitempty"`
	Seconds  float64   `json:"seconds,omitempty"`
	Kind     ErrorKind `json:"kind,omitempty"`
	Message  string    `json:"message,omitempty"`
	At       time.Time `json:"at"`
}

// WhisperPipeline is the capture -> write -> transcribe orchestrator.
type WhisperPipeline interface {
	Record(ctx context.Context, path string) (string, error)
	Transcribe(ctx context.Context, path string) ([]models.TranscriptSegment, error)
	RecordAndTranscribe(ctx context.Context, path string) ([]models.TranscriptSegment, error)
	Events() <-chan PipelineEvent
}
