package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"vault-indexer/internal/storage"
)

// Response is the envelope every /api endpoint answers with.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data"`
	Total   *int   `json:"total,omitempty"`
	Error   string `json:"error,omitempty"`
}

// errBadRequest marks request parameter failures.
var errBadRequest = errors.New("bad request")

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func respondItem(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, Response{Success: true, Data: data})
}

// respondList answers with a page of rows. A nil slice is sent as [].
func respondList[T any](w http.ResponseWriter, rows []T, total int) {
	if rows == nil {
		rows = []T{}
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Data: rows, Total: &total})
}

// respondError maps err to a status code and writes an envelope with an empty data field.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	msg := "internal error"
	switch {
	case errors.Is(err, errBadRequest), errors.Is(err, storage.ErrInvalidInput):
		status = http.StatusBadRequest
		msg = err.Error()
	case errors.Is(err, storage.ErrNotFound):
		status = http.StatusNotFound
		msg = "not found"
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", zapRequest(r, err)...)
	}
	writeJSON(w, status, Response{Success: false, Data: []any{}, Error: msg})
}
