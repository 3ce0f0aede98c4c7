package api

import (
	"fmt"
	"net/http"
	"strconv"

	"vault-indexer/internal/domain"
	"vault-indexer/internal/storage"
)

// parsePage reads page and limit. Missing values take the defaults;
// an oversized limit is clamped, a malformed or negative value is rejected.
func parsePage(r *http.Request) (storage.PageRequest, error) {
	var p storage.PageRequest
	var err error
	if p.Page, err = queryInt(r, "page"); err != nil {
		return p, err
	}
	if p.Limit, err = queryInt(r, "limit"); err != nil {
		return p, err
	}
	return p.Normalize(), nil
}

func queryInt(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", errBadRequest, key)
	}
	return n, nil
}

func parseStatus(r *http.Request) (domain.RequestStatus, error) {
	raw := r.URL.Query().Get("status")
	if raw == "" {
		return "", nil
	}
	status, err := domain.ParseRequestStatus(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return status, nil
}

func parseResolved(r *http.Request) (*bool, error) {
	raw := r.URL.Query().Get("resolved")
	if raw == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: resolved must be a boolean", errBadRequest)
	}
	return &b, nil
}
