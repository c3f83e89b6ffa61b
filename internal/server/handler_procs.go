package server

import (
	"encoding/json"
	"net/http"

	"github.com/me/ossched/pkg/model"
)

// decodeProc reads an AdmitRequest and builds a READY PCB from it.
func decodeProc(w http.ResponseWriter, r *http.Request, reqID string) (*model.PCB, bool) {
	var req model.AdmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, reqID, http.StatusBadRequest, &model.APIError{
			Code:    model.ErrValidation,
			Message: "Invalid JSON body: " + err.Error(),
		})
		return nil, false
	}
	p := model.NewPCB(req.PID, req.Priority)
	p.Name = req.Name
	p.State = model.ProcStateReady
	return p, true
}

func (s *Server) handleAddProc(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	p, ok := decodeProc(w, r, reqID)
	if !ok {
		return
	}
	// Once queued the PCB belongs to whoever dispatches it next.
	snapshot := *p
	if err := s.scheduler.AddProc(p); err != nil {
		respondSchedulerError(w, reqID, err)
		return
	}
	respondCreated(w, reqID, snapshot)
}

func (s *Server) handlePutProc(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	p, ok := decodeProc(w, r, reqID)
	if !ok {
		return
	}
	snapshot := *p
	if err := s.scheduler.PutProc(p); err != nil {
		respondSchedulerError(w, reqID, err)
		return
	}
	respondOK(w, reqID, snapshot)
}

func (s *Server) handleGetProc(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	p, ok := s.scheduler.GetProc()
	if !ok {
		respondOK(w, reqID, model.DispatchResponse{Dispatched: false})
		return
	}
	p.State = model.ProcStateRunning
	respondOK(w, reqID, model.DispatchResponse{Dispatched: true, PCB: p})
}
