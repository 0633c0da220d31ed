package api

import (
	"net/http"

	chi "github.com/go-chi/chi/v5"

	"github.com/imagicbell/ublockly-sub001/internal/domain"
)

func (s *Server) handleListApprovals(w http.ResponseWriter, r *http.Request) {
	pending, err := s.approvals.ListPending()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if pending == nil {
		pending = []domain.PendingAction{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"pending": pending})
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	s.resolveApproval(w, r, true)
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	s.resolveApproval(w, r, false)
}

func (s *Server) resolveApproval(w http.ResponseWriter, r *http.Request, approved bool) {
	id := chi.URLParam(r, "id")
	if err := s.approvals.Resolve(id, approved); err != nil {
		writeError(w, statusFor(err, http.StatusInternalServerError), err)
		return
	}
	status := domain.ApprovalRejected
	if approved {
		status = domain.ApprovalApproved
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": status})
}
