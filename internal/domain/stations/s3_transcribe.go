package stations

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/Vovarama1992/go-utils/logger"
	"github.com/Vovarama1992/whisperer/internal/models"
	"github.com/Vovarama1992/whisperer/internal/ports"
	"golang.org/x/sync/semaphore"
)

const segmentCachePrefix = "whisperer:segments:"

type TranscribeConfig struct {
	BeamSize int
	// MaxConcurrent caps in-flight model calls; zero means unbounded.
	MaxConcurrent int
	CacheTTL      time.Duration
}

type S3Transcribe struct {
	stt   ports.TranscriptionService
	cache ports.SegmentCache
	cfg   TranscribeConfig
	sem   *semaphore.Weighted
	log   *logger.ZapLogger
}

// NewS3Transcribe wires the model behind an optional cache; cache may be nil.
func NewS3Transcribe(stt ports.TranscriptionService, cache ports.SegmentCache, cfg TranscribeConfig, log *logger.ZapLogger) *S3Transcribe {
	s := &S3Transcribe{stt: stt, cache: cache, cfg: cfg, log: log}
	if cfg.MaxConcurrent > 0 {
		s.sem = semaphore.NewWeighted(int64(cfg.MaxConcurrent))
	}
	return s
}

func (s *S3Transcribe) Run(ctx context.Context, path string) ([]models.TranscriptSegment, error) {
	const op = "transcribe"
	start := time.Now()

	key := s.cacheKey(path)
	if key != "" {
		segs, ok, err := s.cache.Get(ctx, key)
		switch {
		case err != nil:
			s.log.Log(logger.LogEntry{
				Level:   "warn",
				Message: "[S3] cache read failed",
				Fields:  map[string]any{"filePath": path},
				Error:   err,
			})
		case ok:
			s.log.Log(logger.LogEntry{
				Level:   "info",
				Message: "[S3][OK][CACHE]",
				Fields:  map[string]any{"filePath": path, "segments": len(segs)},
			})
			return segs, nil
		}
	}

	if s.sem != nil {
		if err := s.sem.Acquire(ctx, 1); err != nil {
			return nil, ports.ContextError(ctx, op)
		}
		defer s.sem.Release(1)
	}

	s.log.Log(logger.LogEntry{
		Level:   "info",
		Message: "[S3][START]",
		Fields:  map[string]any{"filePath": path, "backend": s.stt.Name(), "beam": s.cfg.BeamSize},
	})

	segs, err := s.stt.Transcribe(ctx, path, s.cfg.BeamSize)
	if err != nil {
		if ctxErr := ports.ContextError(ctx, op); ctxErr != nil {
			return nil, ctxErr
		}
		s.log.Log(logger.LogEntry{
			Level:   "error",
			Message: "[S3][ERR]",
			Fields:  map[string]any{"filePath": path},
			Error:   err,
		})
		return nil, ports.NewError(ports.KindTranscriptionFailure, op, err)
	}
	if segs == nil {
		segs = []models.TranscriptSegment{}
	}

	if key != "" {
		if err := s.cache.Set(ctx, key, segs, s.cfg.CacheTTL); err != nil {
			s.log.Log(logger.LogEntry{
				Level:   "warn",
				Message: "[S3] cache write failed",
				Fields:  map[string]any{"filePath": path},
				Error:   err,
			})
		}
	}

	s.log.Log(logger.LogEntry{
		Level:   "info",
		Message: "[S3][OK]",
		Fields: map[string]any{
			"filePath": path,
			"segments": len(segs),
			"dur":      time.Since(start).String(),
		},
	})
	return segs, nil
}

// cacheKey fingerprints the file; empty when caching is off or the file
// cannot be stat'ed (the backend reports that failure itself).
func (s *S3Transcribe) cacheKey(path string) string {
	if s.cache == nil {
		return ""
	}
	fi, err := os.Stat(path)
	if err != nil {
		return ""
	}
	raw := fmt.Sprintf("%s|%d|%d|%s|%d", path, fi.Size(), fi.ModTime().UnixNano(), s.stt.Name(), s.cfg.BeamSize)
	sum := sha256.Sum256([]byte(raw))
	return segmentCachePrefix + hex.EncodeToString(sum[:])
}
