package infra

import (
	"context"
	"sync"

	"github.com/Vovarama1992/whisperer/internal/models"
	"github.com/Vovarama1992/whisperer/internal/ports"
)

// MemoryTranscriptRepo keeps the most recent entries when no database is
// configured. Older entries are evicted once capacity is reached.
type MemoryTranscriptRepo struct {
	mu          sync.RWMutex
	capacity    int
	recordings  []models.Recording
	transcripts []models.Transcript
}

func NewMemoryTranscriptRepo(capacity int) *MemoryTranscriptRepo {
	if capacity <= 0 {
		capacity = 100
	}
	return &MemoryTranscriptRepo{capacity: capacity}
}

var _ ports.TranscriptRepository = (*MemoryTranscriptRepo)(nil)

func (r *MemoryTranscriptRepo) SaveRecording(_ context.Context, rec *models.Recording) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recordings = appendBounded(r.recordings, *rec, r.capacity)
	return nil
}

func (r *MemoryTranscriptRepo) SaveTranscript(_ context.Context, t *models.Transcript) error {
	cp := *t
	cp.Segments = append([]models.TranscriptSegment(nil), t.Segments...)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.transcripts = appendBounded(r.transcripts, cp, r.capacity)
	return nil
}

// ListTranscripts returns newest first.
func (r *MemoryTranscriptRepo) ListTranscripts(_ context.Context, limit int) ([]models.Transcript, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return newestFirst(r.transcripts, limit), nil
}

func (r *MemoryTranscriptRepo) ListRecordings(_ context.Context, limit int) ([]models.Recording, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return newestFirst(r.recordings, limit), nil
}

func newestFirst[T any](s []T, limit int) []T {
	n := len(s)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]T, 0, n)
	for i := len(s) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s[i])
	}
	return out
}

func appendBounded[T any](s []T, v T, max int) []T {
	s = append(s, v)
	if len(s) > max {
		s = append(s[:0:0], s[len(s)-max:]...)
	}
	return s
}
