package server

import "net/http"

type endpointInfo struct {
	Path        string   `json:"path"`
	Methods     []string `json:"methods"`
	Description string   `json:"description"`
}

type discoveryResponse struct {
	Name        string         `json:"name"`
	Version     string         `json:"version"`
	Description string         `json:"description"`
	Endpoints   []endpointInfo `json:"endpoints"`
}

func (s *Server) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	respondOK(w, reqID, discoveryResponse{
		Name:        "ossched API",
		Version:     "v1",
		Description: "Multi-level queue CPU scheduler: admit, dispatch and inspect ready processes",
		Endpoints: []endpointInfo{
			{"/api/v1/scheduler", []string{"GET"}, "Queue lengths, slot budgets and idle flag"},
			{"/api/v1/scheduler/reset", []string{"POST"}, "Empty all ready queues and reset slot budgets"},
			{"/api/v1/procs", []string{"POST"}, "Admit a newly runnable process"},
			{"/api/v1/procs/return", []string{"POST"}, "Return a preempted process to its ready queue"},
			{"/api/v1/procs/next", []string{"POST"}, "Dispatch the next process, if any"},
			{"/api/v1/runs", []string{"GET"}, "Recorded simulation runs. Accepts ?policy=, ?limit=, ?offset="},
			{"/api/v1/runs/{id}", []string{"GET", "DELETE"}, "Single run summary"},
			{"/api/v1/runs/{id}/dispatches", []string{"GET"}, "Dispatch trace of a run"},
			{"/api/v1/health", []string{"GET"}, "Server health and version"},
			{"/metrics", []string{"GET"}, "Prometheus metrics"},
		},
	})
}
