package infra

import (
	"bufio"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/Vovarama1992/go-utils/logger"
	"github.com/Vovarama1992/whisperer/internal/models"
	"golang.org/x/sync/semaphore"
)

//go:embed assets/faster_whisper_worker.py
var workerScript []byte

const maxWorkerLine = 4 << 20

type LocalWhisperConfig struct {
	PythonPath   string
	Model        string
	Device       string // auto, cpu, cuda
	ComputeType  string
	Language     string
	StartTimeout time.Duration
}

// LocalWhisper keeps one faster-whisper worker process alive so the model is
// loaded once. Requests are serialized on that worker.
type LocalWhisper struct {
	cfg LocalWhisperConfig
	log *logger.ZapLogger

	turn       *semaphore.Weighted
	worker     *workerProc
	scriptPath string
}

func NewLocalWhisper(cfg LocalWhisperConfig, log *logger.ZapLogger) *LocalWhisper {
	if cfg.PythonPath == "" {
		cfg.PythonPath = "python3"
	}
	if cfg.Model == "" {
		cfg.Model = "small"
	}
	if cfg.Device == "" {
		cfg.Device = "auto"
	}
	if cfg.StartTimeout <= 0 {
		cfg.StartTimeout = 5 * time.Minute
	}
	return &LocalWhisper{cfg: cfg, log: log, turn: semaphore.NewWeighted(1)}
}

func (l *LocalWhisper) Name() string { return "local:" + l.cfg.Model }

// Open starts the worker and waits until the model is loaded.
func (l *LocalWhisper) Open(ctx context.Context) error {
	if err := l.turn.Acquire(ctx, 1); err != nil {
		return err
	}
	defer l.turn.Release(1)
	return l.start(ctx)
}

func (l *LocalWhisper) Close() error {
	_ = l.turn.Acquire(context.Background(), 1)
	defer l.turn.Release(1)

	if l.worker != nil {
		l.worker.kill()
		l.worker = nil
	}
	if l.scriptPath != "" {
		_ = os.Remove(l.scriptPath)
		l.scriptPath = ""
	}
	return nil
}

func (l *LocalWhisper) Transcribe(ctx context.Context, path string, beamWidth int) ([]models.TranscriptSegment, error) {
	if err := l.turn.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer l.turn.Release(1)

	if l.worker == nil {
		if err := l.start(ctx); err != nil {
			return nil, err
		}
	}

	type result struct {
		segs []models.TranscriptSegment
		err  error
	}
	w := l.worker
	done := make(chan result, 1)
	go func() {
		segs, err := exchange(w.stdin, w.lines, workerRequest{
			Audio:    path,
			BeamSize: beamWidth,
			Language: l.cfg.Language,
		})
		done <- result{segs, err}
	}()

	select {
	case <-ctx.Done():
		// the only way to abort an in-flight inference is to drop the worker
		w.kill()
		l.worker = nil
		<-done
		return nil, ctx.Err()
	case r := <-done:
		var we *workerError
		if r.err != nil && !errors.As(r.err, &we) {
			l.log.Log(logger.LogEntry{
				Level:   "error",
				Message: "whisper worker lost",
				Fields:  map[string]any{"stderr": w.stderr.String()},
				Error:   r.err,
			})
			w.kill()
			l.worker = nil
		}
		return r.segs, r.err
	}
}

func (l *LocalWhisper) start(ctx context.Context) error {
	if l.scriptPath == "" {
		f, err := os.CreateTemp("", "whisperer_worker_*.py")
		if err != nil {
			return fmt.Errorf("write worker script: %w", err)
		}
		if _, err := f.Write(workerScript); err != nil {
			f.Close()
			return fmt.Errorf("write worker script: %w", err)
		}
		f.Close()
		l.scriptPath = f.Name()
	}

	args := []string{l.scriptPath, "--model", l.cfg.Model, "--device", l.cfg.Device}
	if l.cfg.ComputeType != "" {
		args = append(args, "--compute-type", l.cfg.ComputeType)
	}
	cmd := exec.Command(l.cfg.PythonPath, args...)
	cmd.Env = os.Environ()

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("worker stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("worker stdout: %w", err)
	}
	stderr := &tailBuffer{max: 2048}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start worker: %w", err)
	}

	lines := bufio.NewScanner(stdout)
	lines.Buffer(make([]byte, 64*1024), maxWorkerLine)
	w := &workerProc{cmd: cmd, stdin: stdin, lines: lines, stderr: stderr}

	type ready struct {
		info readyInfo
		err  error
	}
	ch := make(chan ready, 1)
	go func() {
		info, err := awaitReady(lines)
		ch <- ready{info, err}
	}()

	timer := time.NewTimer(l.cfg.StartTimeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		w.kill()
		<-ch
		return ctx.Err()
	case <-timer.C:
		w.kill()
		<-ch
		return fmt.Errorf("whisper worker not ready after %s", l.cfg.StartTimeout)
	case r := <-ch:
		if r.err != nil {
			w.kill()
			if tail := stderr.String(); tail != "" {
				return fmt.Errorf("%w: %s", r.err, tail)
			}
			return r.err
		}
		l.worker = w
		l.log.Log(logger.LogEntry{
			Level:   "info",
			Message: "whisper model loaded",
			Fields: map[string]any{
				"model":       l.cfg.Model,
				"device":      r.info.Device,
				"computeType": r.info.ComputeType,
			},
		})
		return nil
	}
}

type workerProc struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	lines  *bufio.Scanner
	stderr *tailBuffer
}

func (w *workerProc) kill() {
	_ = w.stdin.Close()
	if w.cmd.Process != nil {
		_ = w.cmd.Process.Kill()
	}
	_ = w.cmd.Wait()
}

// ---- worker line protocol ----

type workerRequest struct {
	Audio    string `json:"audio"`
	BeamSize int    `json:"beam_size"`
	Language string `json:"language,omitempty"`
}

type workerMessage struct {
	Type        string  `json:"type"`
	Start       float64 `json:"start"`
	End         float64 `json:"end"`
	Text        string  `json:"text"`
	Message     string  `json:"message"`
	Device      string  `json:"device"`
	ComputeType string  `json:"compute_type"`
}

type readyInfo struct {
	Device      string
	ComputeType string
}

// workerError is a failure reported by the model; the worker stays usable.
type workerError struct{ msg string }

func (e *workerError) Error() string { return "whisper: " + e.msg }

var errWorkerExited = errors.New("whisper worker exited")

func awaitReady(lines *bufio.Scanner) (readyInfo, error) {
	for lines.Scan() {
		var msg workerMessage
		if err := json.Unmarshal(lines.Bytes(), &msg); err != nil {
			continue
		}
		switch msg.Type {
		case "ready":
			return readyInfo{Device: msg.Device, ComputeType: msg.ComputeType}, nil
		case "error":
			return readyInfo{}, &workerError{msg: msg.Message}
		}
	}
	if err := lines.Err(); err != nil {
		return readyInfo{}, fmt.Errorf("read worker: %w", err)
	}
	return readyInfo{}, errWorkerExited
}

// exchange sends one request and drains the segment stream until done.
func exchange(w io.Writer, lines *bufio.Scanner, req workerRequest) ([]models.TranscriptSegment, error) {
	if err := json.NewEncoder(w).Encode(req); err != nil {
		return nil, fmt.Errorf("send to worker: %w", err)
	}

	segs := []models.TranscriptSegment{}
	for lines.Scan() {
		var msg workerMessage
		if err := json.Unmarshal(lines.Bytes(), &msg); err != nil {
			return nil, fmt.Errorf("parse worker output: %w", err)
		}
		switch msg.Type {
		case "segment":
			segs = append(segs, models.TranscriptSegment{Start: msg.Start, End: msg.End, Text: msg.Text})
		case "done":
			return segs, nil
		case "error":
			return nil, &workerError{msg: msg.Message}
		}
	}
	if err := lines.Err(); err != nil {
		return nil, fmt.Errorf("read worker: %w", err)
	}
	return nil, errWorkerExited
}
