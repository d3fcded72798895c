package stations

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Vovarama1992/whisperer/internal/models"
	"github.com/Vovarama1992/whisperer/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSTT struct {
	mu    sync.Mutex
	calls int
	beam  int
	segs  []models.TranscriptSegment
	err   error
	block chan struct{}
}

func (c *countingSTT) Name() string { return "fake:small" }

func (c *countingSTT) Transcribe(ctx context.Context, path string, beam int) ([]models.TranscriptSegment, error) {
	c.mu.Lock()
	c.calls++
	c.beam = beam
	c.mu.Unlock()
	if c.block != nil {
		select {
		case <-c.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return c.segs, c.err
}

func (c *countingSTT) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type mapCache struct {
	mu   sync.Mutex
	data map[string][]models.TranscriptSegment
	ttl  time.Duration
}

func newMapCache() *mapCache {
	return &mapCache{data: map[string][]models.TranscriptSegment{}}
}

func (m *mapCache) Get(ctx context.Context, key string) ([]models.TranscriptSegment, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *mapCache) Set(ctx context.Context, key string, segs []models.TranscriptSegment, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = segs
	m.ttl = ttl
	return nil
}

var helloWorld = []models.TranscriptSegment{
	{Start: 0.0, End: 1.2, Text: "hello"},
	{Start: 1.2, End: 2.0, Text: "world"},
}

func TestS3_PassesBeamAndKeepsOrder(t *testing.T) {
	stt := &countingSTT{segs: []models.TranscriptSegment{
		{Start: 3, End: 4, Text: "b"},
		{Start: 1, End: 2, Text: "a"},
	}}
	s := NewS3Transcribe(stt, nil, TranscribeConfig{BeamSize: 5}, nopLogger())

	segs, err := s.Run(context.Background(), "x.wav")
	require.NoError(t, err)
	assert.Equal(t, 5, stt.beam)
	assert.Equal(t, "b", segs[0].Text, "segments are returned as produced")
}

func TestS3_RepeatedCallsAreIdenticalAndCached(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.wav")
	require.NoError(t, os.WriteFile(path, []byte("RIFF"), 0o644))

	stt := &countingSTT{segs: helloWorld}
	cache := newMapCache()
	s := NewS3Transcribe(stt, cache, TranscribeConfig{BeamSize: 5, CacheTTL: time.Hour}, nopLogger())

	first, err := s.Run(context.Background(), path)
	require.NoError(t, err)
	second, err := s.Run(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, stt.Calls())
	assert.Equal(t, time.Hour, cache.ttl)
}

func TestS3_MissingFileSkipsCache(t *testing.T) {
	stt := &countingSTT{segs: helloWorld}
	cache := newMapCache()
	s := NewS3Transcribe(stt, cache, TranscribeConfig{BeamSize: 5}, nopLogger())

	_, err := s.Run(context.Background(), "/nope/x.wav")
	require.NoError(t, err)
	_, err = s.Run(context.Background(), "/nope/x.wav")
	require.NoError(t, err)
	assert.Equal(t, 2, stt.Calls())
	assert.Empty(t, cache.data)
}

func TestS3_BackendFailureIsTranscriptionFailure(t *testing.T) {
	bad := errors.New("corrupt audio")
	s := NewS3Transcribe(&countingSTT{err: bad}, nil, TranscribeConfig{BeamSize: 5}, nopLogger())

	segs, err := s.Run(context.Background(), "x.wav")
	assert.Nil(t, segs)
	assert.Equal(t, ports.KindTranscriptionFailure, ports.KindOf(err))
	assert.ErrorIs(t, err, bad)
}

func TestS3_EmptyResultIsNonNil(t *testing.T) {
	s := NewS3Transcribe(&countingSTT{}, nil, TranscribeConfig{BeamSize: 1}, nopLogger())
	segs, err := s.Run(context.Background(), "x.wav")
	require.NoError(t, err)
	assert.NotNil(t, segs)
	assert.Empty(t, segs)
}

func TestS3_ConcurrencyCapWaitsOnContext(t *testing.T) {
	stt := &countingSTT{segs: helloWorld, block: make(chan struct{})}
	s := NewS3Transcribe(stt, nil, TranscribeConfig{BeamSize: 5, MaxConcurrent: 1}, nopLogger())

	done := make(chan error, 1)
	go func() {
		_, err := s.Run(context.Background(), "a.wav")
		done <- err
	}()
	require.Eventually(t, func() bool { return stt.Calls() == 1 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := s.Run(ctx, "b.wav")
	assert.Equal(t, ports.KindTimedOut, ports.KindOf(err))
	assert.Equal(t, 1, stt.Calls(), "second call must not reach the model while the cap is held")

	close(stt.block)
	require.NoError(t, <-done)
}

func TestS3_CancelledDuringModelCall(t *testing.T) {
	stt := &countingSTT{block: make(chan struct{})}
	s := NewS3Transcribe(stt, nil, TranscribeConfig{BeamSize: 5}, nopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, err := s.Run(ctx, "a.wav")
	assert.Equal(t, ports.KindCancelled, ports.KindOf(err))
}
