package ports

import (
	"context"
	"time"

	"github.com/Vovarama1992/whisperer/internal/models"
)

// TranscriptionService returns segments in the order the model produced them.
type TranscriptionService interface {
	Transcribe(ctx context.Context, path string, beamWidth int) ([]models.TranscriptSegment, error)
	Name() string
}

type SegmentCache interface {
	Get(ctx context.Context, key string) ([]models.TranscriptSegment, bool, error)
	Set(ctx context.Context, key string, segments []models.TranscriptSegment, ttl time.Duration) error
}
