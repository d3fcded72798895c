package stations

import (
	"errors"
	"time"

	"github.com/Vovarama1992/go-utils/logger"
	"github.com/Vovarama1992/whisperer/internal/models"
	"github.com/Vovarama1992/whisperer/internal/ports"
)

type S2WriteWAV struct {
	writer ports.WaveformWriter
	log    *logger.ZapLogger
}

func NewS2WriteWAV(writer ports.WaveformWriter, log *logger.ZapLogger) *S2WriteWAV {
	return &S2WriteWAV{writer: writer, log: log}
}

func (s *S2WriteWAV) Run(path string, u models.Utterance) error {
	start := time.Now()

	if len(u.Samples) == 0 {
		return ports.NewError(ports.KindUnwritablePath, "write", errors.New("empty utterance"))
	}

	if err := s.writer.Write(path, u.SampleRate, u.Samples); err != nil {
		s.log.Log(logger.LogEntry{
			Level:   "error",
			Message: "[S2][ERR] waveform write failed",
			Fields:  map[string]any{"filePath": path},
			Error:   err,
		})
		return ports.NewError(ports.KindUnwritablePath, "write", err)
	}

	s.log.Log(logger.LogEntry{
		Level:   "info",
		Message: "[S2][OK] waveform written",
		Fields: map[string]any{
			"filePath": path,
			"samples":  len(u.Samples),
			"seconds":  u.DurationSeconds(),
			"dur":      time.Since(start).String(),
		},
	})
	return nil
}
