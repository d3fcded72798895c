package stations

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Vovarama1992/go-utils/logger"
	"github.com/Vovarama1992/whisperer/internal/models"
	"github.com/Vovarama1992/whisperer/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testRate  = 40
	testChunk = 100 * time.Millisecond
)

func nopLogger() *logger.ZapLogger {
	return logger.NewZapLogger(zap.NewNop().Sugar())
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

// scriptedSource replays chunks, advancing the clock by one chunk per pull.
type scriptedSource struct {
	clock  *fakeClock
	chunks []models.AudioChunk
	fill   models.AudioChunk
	err    error
	pulls  int
	onPull func(pull int)
}

func (s *scriptedSource) NextChunk(ctx context.Context) (models.AudioChunk, error) {
	s.pulls++
	if s.onPull != nil {
		s.onPull(s.pulls)
	}
	if s.pulls <= len(s.chunks) {
		s.clock.t = s.clock.t.Add(testChunk)
		return s.chunks[s.pulls-1], nil
	}
	if s.err != nil {
		return models.AudioChunk{}, s.err
	}
	s.clock.t = s.clock.t.Add(testChunk)
	return s.fill, nil
}

func chunkOf(v int16) models.AudioChunk {
	return models.AudioChunk{Samples: []int16{v, -v, v, -v}}
}

func run(n int, first int16) []models.AudioChunk {
	out := make([]models.AudioChunk, n)
	for i := range out {
		out[i] = chunkOf(first + int16(i))
	}
	return out
}

func newTestRecorder(clock *fakeClock, maxDur time.Duration) *S1CaptureUtterance {
	s := NewS1CaptureUtterance(VADConfig{
		SampleRate:      testRate,
		ChunkDuration:   testChunk,
		VolumeThreshold: 500,
		SilenceDuration: time.Second,
		MaxDuration:     maxDur,
	}, nopLogger())
	s.now = clock.Now
	return s
}

func chunkValues(u models.Utterance) []int16 {
	var out []int16
	for i := 0; i < len(u.Samples); i += 4 {
		out = append(out, u.Samples[i])
	}
	return out
}

func TestVADConfig_SamplesPerChunk(t *testing.T) {
	cfg := VADConfig{SampleRate: 44000, ChunkDuration: 100 * time.Millisecond}
	assert.Equal(t, 4400, cfg.SamplesPerChunk())
}

func TestS1_LeadingSilenceExcludedAndTrailingSilenceKept(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	var script []models.AudioChunk
	script = append(script, run(5, 1)...)    // pre-speech silence
	script = append(script, run(3, 1001)...) // speech
	script = append(script, run(11, 11)...)  // silence up to the timeout
	src := &scriptedSource{clock: clock, chunks: script, fill: chunkOf(99)}

	u, err := newTestRecorder(clock, 0).Run(context.Background(), src)
	require.NoError(t, err)

	want := []int16{1001, 1002, 1003, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20, 21}
	assert.Equal(t, want, chunkValues(u))
	assert.Equal(t, 14, u.Chunks)
	assert.Equal(t, testRate, u.SampleRate)
	assert.Equal(t, 19, src.pulls, "must stop on the chunk at which the timeout elapsed")
}

func TestS1_FirstLoudChunkAppearsOnce(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	script := append(run(1, 2000), run(11, 1)...)
	src := &scriptedSource{clock: clock, chunks: script}

	u, err := newTestRecorder(clock, 0).Run(context.Background(), src)
	require.NoError(t, err)

	count := 0
	for _, v := range chunkValues(u) {
		if v == 2000 {
			count++
		}
	}
	assert.Equal(t, 1, count)
	assert.Equal(t, int16(2000), u.Samples[0])
	assert.Len(t, u.Samples, 12*4)
}

func TestS1_ShortGapDoesNotEndUtterance(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	var script []models.AudioChunk
	script = append(script, run(1, 1001)...)
	script = append(script, run(5, 1)...)
	script = append(script, run(1, 1002)...)
	script = append(script, run(11, 11)...)
	src := &scriptedSource{clock: clock, chunks: script}

	u, err := newTestRecorder(clock, 0).Run(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, 18, u.Chunks)
	assert.Equal(t, 18, src.pulls)
}

func TestS1_AllSilenceNeverTerminatesUntilCancelled(t *testing.T) {
	const bound = 500
	clock := &fakeClock{t: time.Unix(0, 0)}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src := &scriptedSource{clock: clock, fill: chunkOf(10)}
	src.onPull = func(pull int) {
		if pull == bound {
			cancel()
		}
	}

	u, err := newTestRecorder(clock, 0).Run(ctx, src)
	require.Error(t, err)
	assert.Equal(t, ports.KindCancelled, ports.KindOf(err))
	assert.Empty(t, u.Samples)
	assert.GreaterOrEqual(t, src.pulls, bound)
}

func TestS1_SourceFailureIsCaptureUnavailable(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	boom := errors.New("device gone")
	src := &scriptedSource{clock: clock, chunks: run(2, 1001), err: boom}

	_, err := newTestRecorder(clock, 0).Run(context.Background(), src)
	require.Error(t, err)
	assert.Equal(t, ports.KindCaptureUnavailable, ports.KindOf(err))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, src.pulls, "no retry after a capture failure")
}

func TestS1_ExpiredDeadlineIsTimedOut(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	src := &scriptedSource{clock: clock, fill: chunkOf(1000)}

	_, err := newTestRecorder(clock, 0).Run(ctx, src)
	assert.Equal(t, ports.KindTimedOut, ports.KindOf(err))
	assert.Zero(t, src.pulls)
}

func TestS1_MaxDurationIsTimedOut(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	src := &scriptedSource{clock: clock, fill: chunkOf(1000)}

	_, err := newTestRecorder(clock, 500*time.Millisecond).Run(context.Background(), src)
	require.Error(t, err)
	assert.Equal(t, ports.KindTimedOut, ports.KindOf(err))
	assert.Equal(t, 5, src.pulls)
}

func TestRecorderState_String(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "listening", StateListeningForSpeech.String())
	assert.Equal(t, "recording", StateRecording.String())
}
