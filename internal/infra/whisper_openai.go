package infra

import (
	"context"
	"fmt"

	"github.com/Vovarama1992/whisperer/internal/models"
	openai "github.com/sashabaranov/go-openai"
)

type OpenAIConfig struct {
	APIKey   string
	BaseURL  string // empty for api.openai.com; point at whisper.cpp / LocalAI otherwise
	Model    string
	Language string
}

// OpenAITranscriber calls /v1/audio/transcriptions with verbose_json so the
// response carries timed segments. The API has no beam control; beamWidth
// is accepted for interface parity only.
type OpenAITranscriber struct {
	client *openai.Client
	cfg    OpenAIConfig
}

func NewOpenAITranscriber(cfg OpenAIConfig) *OpenAITranscriber {
	if cfg.Model == "" {
		cfg.Model = openai.Whisper1
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	return &OpenAITranscriber{client: openai.NewClientWithConfig(oc), cfg: cfg}
}

func (o *OpenAITranscriber) Name() string { return "openai:" + o.cfg.Model }

func (o *OpenAITranscriber) Transcribe(ctx context.Context, path string, beamWidth int) ([]models.TranscriptSegment, error) {
	resp, err := o.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    o.cfg.Model,
		FilePath: path,
		Format:   openai.AudioResponseFormatVerboseJSON,
		Language: o.cfg.Language,
	})
	if err != nil {
		return nil, fmt.Errorf("openai transcription: %w", err)
	}

	segs := make([]models.TranscriptSegment, 0, len(resp.Segments))
	for _, s := range resp.Segments {
		segs = append(segs, models.TranscriptSegment{Start: s.Start, End: s.End, Text: s.Text})
	}
	// some servers omit segments for short clips
	if len(segs) == 0 && resp.Text != "" {
		segs = append(segs, models.TranscriptSegment{Start: 0, End: resp.Duration, Text: resp.Text})
	}
	return segs, nil
}
