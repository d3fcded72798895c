package stations

import (
	"context"
	"fmt"
	"time"

	"github.com/Vovarama1992/go-utils/logger"
	"github.com/Vovarama1992/whisperer/internal/models"
	"github.com/Vovarama1992/whisperer/internal/ports"
)

type RecorderState int

const (
	StateIdle RecorderState = iota
	StateListeningForSpeech
	StateRecording
)

func (s RecorderState) String() string {
	switch s {
	case StateListeningForSpeech:
		return "listening"
	case StateRecording:
		return "recording"
	default:
		return "idle"
	}
}

type VADConfig struct {
	SampleRate      int
	ChunkDuration   time.Duration
	VolumeThreshold float64
	SilenceDuration time.Duration
	// MaxDuration bounds a whole session; zero disables the ceiling.
	MaxDuration time.Duration
}

// SamplesPerChunk is the fixed chunk length a source must deliver.
func (c VADConfig) SamplesPerChunk() int {
	return int(int64(c.SampleRate) * int64(c.ChunkDuration) / int64(time.Second))
}

// S1CaptureUtterance pulls chunks until speech is followed by
// SilenceDuration of quiet, and returns the gated utterance.
type S1CaptureUtterance struct {
	cfg VADConfig
	log *logger.ZapLogger
	now func() time.Time
}

func NewS1CaptureUtterance(cfg VADConfig, log *logger.ZapLogger) *S1CaptureUtterance {
	return &S1CaptureUtterance{cfg: cfg, log: log, now: time.Now}
}

func (s *S1CaptureUtterance) Config() VADConfig { return s.cfg }

// Run drives the state machine once per chunk. A source that never gets
// loud keeps the loop in ListeningForSpeech until ctx or MaxDuration ends it.
func (s *S1CaptureUtterance) Run(ctx context.Context, src ports.AudioChunkSource) (models.Utterance, error) {
	const op = "record"

	start := s.now()
	lastLoud := start
	speechDetected := false
	state := StateListeningForSpeech

	var chunks []models.AudioChunk
	ticks := 0

	s.log.Log(logger.LogEntry{
		Level:   "info",
		Message: "[S1][START] listening for speech",
		Fields: map[string]any{
			"sampleRate": s.cfg.SampleRate,
			"threshold":  s.cfg.VolumeThreshold,
			"silence":    s.cfg.SilenceDuration.String(),
		},
	})

	for {
		if err := ports.ContextError(ctx, op); err != nil {
			s.logStop(state, ticks, len(chunks), err)
			return models.Utterance{}, err
		}
		if s.cfg.MaxDuration > 0 && s.now().Sub(start) >= s.cfg.MaxDuration {
			err := ports.NewError(ports.KindTimedOut, op,
				fmt.Errorf("max recording duration %s reached", s.cfg.MaxDuration))
			s.logStop(state, ticks, len(chunks), err)
			return models.Utterance{}, err
		}

		chunk, err := src.NextChunk(ctx)
		if err != nil {
			if ctxErr := ports.ContextError(ctx, op); ctxErr != nil {
				s.logStop(state, ticks, len(chunks), ctxErr)
				return models.Utterance{}, ctxErr
			}
			err = ports.NewError(ports.KindCaptureUnavailable, op, err)
			s.logStop(state, ticks, len(chunks), err)
			return models.Utterance{}, err
		}
		ticks++
		now := s.now()
		volume := chunk.Volume()

		// appended before the silence check so the closing chunk is kept
		if speechDetected {
			chunks = append(chunks, chunk)
		}

		if volume < s.cfg.VolumeThreshold {
			if speechDetected && now.Sub(lastLoud) > s.cfg.SilenceDuration {
				u := s.concat(chunks)
				s.log.Log(logger.LogEntry{
					Level:   "info",
					Message: "[S1][OK] silence after speech",
					Fields: map[string]any{
						"ticks":   ticks,
						"chunks":  u.Chunks,
						"samples": len(u.Samples),
						"dur":     now.Sub(start).String(),
					},
				})
				return u, nil
			}
			continue
		}

		if !speechDetected {
			chunks = append(chunks, chunk)
			speechDetected = true
			state = StateRecording
			s.log.Log(logger.LogEntry{
				Level:   "debug",
				Message: "[S1] speech detected",
				Fields:  map[string]any{"tick": ticks, "volume": volume},
			})
		}
		lastLoud = now
	}
}

func (s *S1CaptureUtterance) concat(chunks []models.AudioChunk) models.Utterance {
	total := 0
	for _, c := range chunks {
		total += len(c.Samples)
	}
	samples := make([]int16, 0, total)
	for _, c := range chunks {
		samples = append(samples, c.Samples...)
	}
	return models.Utterance{
		Samples:    samples,
		SampleRate: s.cfg.SampleRate,
		Chunks:     len(chunks),
	}
}

func (s *S1CaptureUtterance) logStop(state RecorderState, ticks, chunks int, err error) {
	s.log.Log(logger.LogEntry{
		Level:   "warn",
		Message: "[S1][STOP] recording aborted",
		Fields: map[string]any{
			"state":  state.String(),
			"ticks":  ticks,
			"chunks": chunks,
			"kind":   string(ports.KindOf(err)),
		},
		Error: err,
	})
}
