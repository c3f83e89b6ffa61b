package server

import (
	"net/http"
	"runtime"
	"time"
)

type healthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	Uptime    string `json:"uptime"`
	Policy    string `json:"policy"`
	Store     string `json:"store"`
	Metrics   string `json:"metrics"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	respondOK(w, reqID, healthResponse{
		Status:    "healthy",
		Version:   "0.1.0",
		GoVersion: runtime.Version(),
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
		Policy:    s.scheduler.Stats().Policy.String(),
		Store:     availability(s.store != nil),
		Metrics:   availability(s.gatherer != nil),
	})
}

func availability(ok bool) string {
	if ok {
		return "available"
	}
	return "unavailable"
}
