package domain

import (
	"context"
	"errors"
	"time"

	"github.com/Vovarama1992/go-utils/logger"
	"github.com/Vovarama1992/whisperer/internal/domain/stations"
	"github.com/Vovarama1992/whisperer/internal/models"
	"github.com/Vovarama1992/whisperer/internal/ports"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

type WhisperService struct {
	device ports.AudioDevice
	repo   ports.TranscriptRepository

	s1 *stations.S1CaptureUtterance
	s2 *stations.S2WriteWAV
	s3 *stations.S3Transcribe

	log *logger.ZapLogger

	// one recording session at a time; losers get DeviceBusy
	deviceLock *semaphore.Weighted
	events     chan ports.PipelineEvent
}

func NewWhisperService(
	device ports.AudioDevice,
	repo ports.TranscriptRepository,
	s1 *stations.S1CaptureUtterance,
	s2 *stations.S2WriteWAV,
	s3 *stations.S3Transcribe,
	log *logger.ZapLogger,
) *WhisperService {
	return &WhisperService{
		device:     device,
		repo:       repo,
		s1:         s1,
		s2:         s2,
		s3:         s3,
		log:        log,
		deviceLock: semaphore.NewWeighted(1),
		events:     make(chan ports.PipelineEvent, 100),
	}
}

func (w *WhisperService) Events() <-chan ports.PipelineEvent { return w.events }

// ========================================================================
// RECORD
// ========================================================================
func (w *WhisperService) Record(ctx context.Context, path string) (string, error) {
	if path == "" {
		return "", ports.NewError(ports.KindInvalidRequest, "record", errors.New("filePath is required"))
	}

	if !w.deviceLock.TryAcquire(1) {
		err := ports.NewError(ports.KindDeviceBusy, "record", ports.ErrDeviceBusy)
		w.fail(path, err)
		return "", err
	}
	defer w.deviceLock.Release(1)

	start := time.Now()
	w.emit(ports.PipelineEvent{Type: ports.EventRecordStarted, FilePath: path})

	stream, err := w.device.Open(ctx)
	if err != nil {
		if ctxErr := ports.ContextError(ctx, "record"); ctxErr != nil {
			err = ctxErr
		} else {
			err = ports.NewError(ports.KindCaptureUnavailable, "record", err)
		}
		w.fail(path, err)
		return "", err
	}

	u, err := w.s1.Run(ctx, stream)
	if cerr := stream.Close(); cerr != nil {
		w.log.Log(logger.LogEntry{
			Level:   "warn",
			Message: "capture stream close failed",
			Error:   cerr,
		})
	}
	if err != nil {
		w.fail(path, err)
		return "", err
	}

	if err := w.s2.Run(path, u); err != nil {
		w.fail(path, err)
		return "", err
	}

	rec := &models.Recording{
		ID:         uuid.NewString(),
		FilePath:   path,
		SampleRate: u.SampleRate,
		Samples:    len(u.Samples),
		DurationMs: int64(u.DurationSeconds() * 1000),
		CreatedAt:  time.Now(),
	}
	if err := w.repo.SaveRecording(ctx, rec); err != nil {
		w.log.Log(logger.LogEntry{
			Level:   "warn",
			Message: "save recording failed",
			Fields:  map[string]any{"filePath": path},
			Error:   err,
		})
	}

	w.emit(ports.PipelineEvent{
		Type:     ports.EventRecordCompleted,
		FilePath: path,
		Seconds:  u.DurationSeconds(),
	})
	w.log.Log(logger.LogEntry{
		Level:   "info",
		Message: "record done",
		Fields: map[string]any{
			"filePath": path,
			"seconds":  u.DurationSeconds(),
			"dur":      time.Since(start).String(),
		},
	})
	return path, nil
}

// ========================================================================
// TRANSCRIBE
// ========================================================================
func (w *WhisperService) Transcribe(ctx context.Context, path string) ([]models.TranscriptSegment, error) {
	if path == "" {
		return nil, ports.NewError(ports.KindInvalidRequest, "transcribe", errors.New("filePath is required"))
	}

	w.emit(ports.PipelineEvent{Type: ports.EventTranscribeStarted, FilePath: path})

	segs, err := w.s3.Run(ctx, path)
	if err != nil {
		w.fail(path, err)
		return nil, err
	}

	t := &models.Transcript{
		ID:        uuid.NewString(),
		FilePath:  path,
		Segments:  segs,
		CreatedAt: time.Now(),
	}
	if err := w.repo.SaveTranscript(ctx, t); err != nil {
		w.log.Log(logger.LogEntry{
			Level:   "warn",
			Message: "save transcript failed",
			Fields:  map[string]any{"filePath": path},
			Error:   err,
		})
	}

	w.emit(ports.PipelineEvent{
		Type:     ports.EventTranscribeCompleted,
		FilePath: path,
		Segments: len(segs),
	})
	return segs, nil
}

// ========================================================================
// RECORD + TRANSCRIBE
// ========================================================================

// RecordAndTranscribe only transcribes after Record has returned, so the
// waveform is fully on disk; any record failure skips transcription.
func (w *WhisperService) RecordAndTranscribe(ctx context.Context, path string) ([]models.TranscriptSegment, error) {
	if _, err := w.Record(ctx, path); err != nil {
		return nil, err
	}
	return w.Transcribe(ctx, path)
}

func (w *WhisperService) fail(path string, err error) {
	w.log.Log(logger.LogEntry{
		Level:   "error",
		Message: "pipeline failed",
		Fields: map[string]any{
			"filePath": path,
			"kind":     string(ports.KindOf(err)),
		},
		Error: err,
	})
	w.emit(ports.PipelineEvent{
		Type:     ports.EventFailed,
		FilePath: path,
		Kind:     ports.KindOf(err),
		Message:  err.Error(),
	})
}

// emit never blocks a request on a slow or absent listener.
func (w *WhisperService) emit(ev ports.PipelineEvent) {
	ev.At = time.Now()
	select {
	case w.events <- ev:
	default:
		w.log.Log(logger.LogEntry{
			Level:   "warn",
			Message: "event dropped",
			Fields:  map[string]any{"event": string(ev.Type), "filePath": ev.FilePath},
		})
	}
}
