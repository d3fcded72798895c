package delivery

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, h *WhisperHandler, events http.HandlerFunc) {
	r.Post("/record", h.Record)
	r.Post("/transcribe", h.Transcribe)
	r.Post("/whisper", h.Whisper)

	r.Get("/api/transcripts", h.History)
	r.Get("/api/recordings", h.Recordings)
	r.Get("/ws", events)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
}
