package delivery

import (
	"encoding/json"
	"net/http"

	"github.com/Vovarama1992/whisperer/internal/ports"
)

type errorResponse struct {
	Kind    ports.ErrorKind `json:"kind"`
	Message string          `json:"message"`
}

func statusFor(kind ports.ErrorKind) int {
	switch kind {
	case ports.KindInvalidRequest:
		return http.StatusBadRequest
	case ports.KindCaptureUnavailable:
		return http.StatusServiceUnavailable
	case ports.KindUnwritablePath:
		return http.StatusUnprocessableEntity
	case ports.KindTranscriptionFailure:
		return http.StatusBadGateway
	case ports.KindDeviceBusy:
		return http.StatusConflict
	case ports.KindCancelled:
		return http.StatusRequestTimeout
	case ports.KindTimedOut:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	kind := ports.KindOf(err)
	writeJSON(w, statusFor(kind), errorResponse{Kind: kind, Message: err.Error()})
}
