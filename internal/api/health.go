package api

import (
	"context"
	"net/http"
	"sort"
	"time"
)

// CheckResult is the outcome of one readiness check.
type CheckResult struct {
	Name    string `json:"name"`
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
	Latency string `json:"latency"`
}

// HealthResponse is the JSON body of /health.
type HealthResponse struct {
	Status string        `json:"status"` // "ok" or "degraded"
	Uptime string        `json:"uptime"`
	Checks []CheckResult `json:"checks"`
	Runner any           `json:"runner,omitempty"`
}

func (s *Server) handleLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	results, ok := s.runChecks(r.Context())
	status := http.StatusOK
	body := map[string]any{"status": "ready", "checks": results}
	if !ok {
		status = http.StatusServiceUnavailable
		body["status"] = "not ready"
	}
	writeJSON(w, status, body)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	results, ok := s.runChecks(r.Context())
	resp := HealthResponse{
		Status: "ok",
		Uptime: time.Since(s.started).Round(time.Second).String(),
		Checks: results,
	}
	if s.status != nil {
		resp.Runner = s.status()
	}
	status := http.StatusOK
	if !ok {
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	if s.status == nil {
		writeJSON(w, http.StatusNotFound, Response{Success: false, Data: []any{}, Error: "no status available"})
		return
	}
	respondItem(w, s.status())
}

// runChecks probes every dependency in name order.
func (s *Server) runChecks(ctx context.Context) ([]CheckResult, bool) {
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make([]CheckResult, 0, len(names))
	healthy := true
	for _, name := range names {
		checkCtx, cancel := context.WithTimeout(ctx, s.readyTimeout)
		start := time.Now()
		err := s.checks[name].Ping(checkCtx)
		cancel()

		res := CheckResult{Name: name, OK: err == nil, Latency: time.Since(start).String()}
		if err != nil {
			res.Error = err.Error()
			healthy = false
		}
		results = append(results, res)
	}
	return results, healthy
}
