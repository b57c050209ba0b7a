package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"outstanding-ledger-backend/internal/domain"
	"outstanding-ledger-backend/internal/logger"
)

const kindInternal = "INTERNAL"

type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

func statusForKind(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindInvalidAmount, domain.KindInvalidMethod:
		return http.StatusUnprocessableEntity
	case domain.KindConflict:
		return http.StatusConflict
	case domain.KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeError is the only place ledger errors become status codes. Errors
// without a kind are logged and reported without their details.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var de *domain.Error
	if !errors.As(err, &de) {
		logger.Error("Unhandled request error", "method", r.Method, "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: errorBody{
			Kind:    kindInternal,
			Message: "internal server error",
		}})
		return
	}

	status := statusForKind(de.Kind)
	if status == http.StatusConflict {
		logger.Warn("Request conflict", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, errorResponse{Error: errorBody{Kind: string(de.Kind), Message: de.Message}})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Warn("Failed to encode response", "error", err)
	}
}
