package server

import "net/http"

func (s *Server) handleGetScheduler(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	respondOK(w, reqID, s.scheduler.Stats())
}

func (s *Server) handleResetScheduler(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	dropped := s.scheduler.Stats().Waiting()
	s.scheduler.Init()
	s.logger.Info("scheduler reset", "dropped", dropped)
	respondOK(w, reqID, s.scheduler.Stats())
}
