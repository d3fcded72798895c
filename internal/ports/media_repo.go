package ports

import (
	"context"

	"github.com/Vovarama1992/whisperer/internal/models"
)

type TranscriptRepository interface {
	SaveRecording(ctx context.Context, rec *models.Recording) error
	SaveTranscript(ctx context.Context, t *models.Transcript) error
	ListTranscripts(ctx context.Context, limit int) ([]models.Transcript, error)
	ListRecordings(ctx context.Context, limit int) ([]models.Recording, error)
}
