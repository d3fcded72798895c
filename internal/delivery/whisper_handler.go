package delivery

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/Vovarama1992/go-utils/logger"
	"github.com/Vovarama1992/whisperer/internal/models"
	"github.com/Vovarama1992/whisperer/internal/ports"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 200
	maxRequestBody      = 1 << 20
)

type WhisperHandler struct {
	pipeline ports.WhisperPipeline
	history  ports.TranscriptRepository
	log      *logger.ZapLogger
}

func NewWhisperHandler(pipeline ports.WhisperPipeline, history ports.TranscriptRepository, log *logger.ZapLogger) *WhisperHandler {
	return &WhisperHandler{
		pipeline: pipeline,
		history:  history,
		log:      log,
	}
}

type filePathRequest struct {
	FilePath string `json:"filePath"`
}

type contentResponse struct {
	Content string `json:"content"`
}

type segmentsResponse struct {
	Segments []models.TranscriptSegment `json:"segments"`
}

type historyResponse struct {
	Transcripts []models.Transcript `json:"transcripts"`
}

type recordingsResponse struct {
	Recordings []models.Recording `json:"recordings"`
}

func (h *WhisperHandler) decode(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req filePathRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(&req); err != nil {
		writeError(w, ports.NewError(ports.KindInvalidRequest, "decode", err))
		return "", false
	}
	if req.FilePath == "" {
		writeError(w, ports.NewError(ports.KindInvalidRequest, "decode", errors.New("filePath is required")))
		return "", false
	}
	return req.FilePath, true
}

func (h *WhisperHandler) logDone(route, path string, start time.Time, err error) {
	entry := logger.LogEntry{
		Level:   "info",
		Message: route + " done",
		Fields: map[string]any{
			"filePath": path,
			"dur":      time.Since(start).String(),
		},
	}
	if err != nil {
		entry.Level = "error"
		entry.Message = route + " failed"
		entry.Fields["kind"] = string(ports.KindOf(err))
		entry.Error = err
	}
	h.log.Log(entry)
}

// POST /record
func (h *WhisperHandler) Record(w http.ResponseWriter, r *http.Request) {
	path, ok := h.decode(w, r)
	if !ok {
		return
	}
	start := time.Now()

	out, err := h.pipeline.Record(r.Context(), path)
	h.logDone("record", path, start, err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, contentResponse{Content: out})
}

// POST /transcribe
func (h *WhisperHandler) Transcribe(w http.ResponseWriter, r *http.Request) {
	path, ok := h.decode(w, r)
	if !ok {
		return
	}
	start := time.Now()

	segs, err := h.pipeline.Transcribe(r.Context(), path)
	h.logDone("transcribe", path, start, err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, segmentsResponse{Segments: segs})
}

// POST /whisper
func (h *WhisperHandler) Whisper(w http.ResponseWriter, r *http.Request) {
	path, ok := h.decode(w, r)
	if !ok {
		return
	}
	start := time.Now()

	segs, err := h.pipeline.RecordAndTranscribe(r.Context(), path)
	h.logDone("whisper", path, start, err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, segmentsResponse{Segments: segs})
}

func historyLimit(r *http.Request) (int, error) {
	s := r.URL.Query().Get("limit")
	if s == "" {
		return defaultHistoryLimit, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, ports.NewError(ports.KindInvalidRequest, "history", errors.New("limit must be a positive integer"))
	}
	return min(n, maxHistoryLimit), nil
}

// GET /api/transcripts?limit=N
func (h *WhisperHandler) History(w http.ResponseWriter, r *http.Request) {
	limit, err := historyLimit(r)
	if err != nil {
		writeError(w, err)
		return
	}

	list, err := h.history.ListTranscripts(r.Context(), limit)
	if err != nil {
		writeError(w, ports.NewError(ports.KindInternal, "history", err))
		return
	}

	h.log.Log(logger.LogEntry{
		Level:   "info",
		Message: "transcript history fetched",
		Fields:  map[string]any{"count": len(list)},
	})
	writeJSON(w, http.StatusOK, historyResponse{Transcripts: list})
}

// GET /api/recordings?limit=N
func (h *WhisperHandler) Recordings(w http.ResponseWriter, r *http.Request) {
	limit, err := historyLimit(r)
	if err != nil {
		writeError(w, err)
		return
	}

	list, err := h.history.ListRecordings(r.Context(), limit)
	if err != nil {
		writeError(w, ports.NewError(ports.KindInternal, "recordings", err))
		return
	}
	writeJSON(w, http.StatusOK, recordingsResponse{Recordings: list})
}
