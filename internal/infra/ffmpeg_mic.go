package infra

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"sync"

	"github.com/Vovarama1992/whisperer/internal/models"
	"github.com/Vovarama1992/whisperer/internal/ports"
)

const maxStderrPreview = 180

type MicConfig struct {
	FFmpegPath      string
	InputFormat     string // alsa, pulse, avfoundation, dshow
	InputDevice     string
	SampleRate      int
	SamplesPerChunk int
}

// FFmpegMic captures mono s16le PCM from a system input through ffmpeg.
// Each Open starts a fresh ffmpeg process so no stale audio is replayed.
type FFmpegMic struct {
	cfg MicConfig
}

func NewFFmpegMic(cfg MicConfig) *FFmpegMic {
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	return &FFmpegMic{cfg: cfg}
}

func (m *FFmpegMic) SampleRate() int { return m.cfg.SampleRate }

func (m *FFmpegMic) args() []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-f", m.cfg.InputFormat,
		"-i", m.cfg.InputDevice,
		"-vn",
		"-ac", "1",
		"-ar", strconv.Itoa(m.cfg.SampleRate),
		"-f", "s16le",
		"pipe:1",
	}
}

func (m *FFmpegMic) Open(ctx context.Context) (ports.CaptureStream, error) {
	bin, err := exec.LookPath(m.cfg.FFmpegPath)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found: %w", err)
	}

	cmd := exec.CommandContext(ctx, bin, m.args()...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg stdout pipe: %w", err)
	}
	stderr := &tailBuffer{max: maxStderrPreview}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("ffmpeg start: %w", err)
	}

	return &ffmpegStream{
		cmd:    cmd,
		stderr: stderr,
		reader: newPCMChunkReader(bufio.NewReader(stdout), m.cfg.SamplesPerChunk),
	}, nil
}

type ffmpegStream struct {
	cmd    *exec.Cmd
	stderr *tailBuffer
	reader *pcmChunkReader
	once   sync.Once
}

func (s *ffmpegStream) NextChunk(ctx context.Context) (models.AudioChunk, error) {
	if err := ctx.Err(); err != nil {
		return models.AudioChunk{}, err
	}
	chunk, err := s.reader.next()
	if err != nil {
		if tail := s.stderr.String(); tail != "" {
			return models.AudioChunk{}, fmt.Errorf("%w (ffmpeg: %s)", err, tail)
		}
		return models.AudioChunk{}, err
	}
	return chunk, nil
}

func (s *ffmpegStream) Close() error {
	s.once.Do(func() {
		if s.cmd.Process != nil {
			_ = s.cmd.Process.Kill()
		}
		_ = s.cmd.Wait()
	})
	return nil
}

// pcmChunkReader decodes fixed-size little-endian int16 chunks.
type pcmChunkReader struct {
	r       io.Reader
	samples int
	buf     []byte
}

func newPCMChunkReader(r io.Reader, samples int) *pcmChunkReader {
	return &pcmChunkReader{r: r, samples: samples, buf: make([]byte, samples*2)}
}

func (p *pcmChunkReader) next() (models.AudioChunk, error) {
	if _, err := io.ReadFull(p.r, p.buf); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return models.AudioChunk{}, fmt.Errorf("capture stream ended: %w", err)
		}
		return models.AudioChunk{}, fmt.Errorf("read pcm: %w", err)
	}
	out := make([]int16, p.samples)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(p.buf[i*2:]))
	}
	return models.AudioChunk{Samples: out}, nil
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	max int
	buf []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if len(t.buf) > t.max {
		t.buf = t.buf[len(t.buf)-t.max:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(bytes.TrimSpace(t.buf))
}
