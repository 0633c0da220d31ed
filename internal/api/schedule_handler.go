package api

import (
	"net/http"

	chi "github.com/go-chi/chi/v5"

	"github.com/imagicbell/ublockly-sub001/internal/service"
)

func (s *Server) handleListSchedules(w http.ResponseWriter, r *http.Request) {
	list, err := s.schedules.ListSchedules()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"schedules": list})
}

func (s *Server) handleCreateSchedule(w http.ResponseWriter, r *http.Request) {
	var input service.CreateScheduleInput
	if err := decodeJSON(r, &input); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	sc, err := s.schedules.CreateSchedule(r.Context(), input)
	if err != nil {
		writeError(w, statusFor(err, http.StatusBadRequest), err)
		return
	}
	writeJSON(w, http.StatusCreated, sc)
}

func (s *Server) handleGetSchedule(w http.ResponseWriter, r *http.Request) {
	sc, err := s.schedules.GetSchedule(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, statusFor(err, http.StatusInternalServerError), err)
		return
	}
	writeJSON(w, http.StatusOK, sc)
}

func (s *Server) handleUpdateSchedule(w http.ResponseWriter, r *http.Request) {
	var input service.CreateScheduleInput
	if err := decodeJSON(r, &input); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	id := chi.URLParam(r, "id")
	if err := s.schedules.UpdateSchedule(r.Context(), id, input); err != nil {
		writeError(w, statusFor(err, http.StatusBadRequest), err)
		return
	}
	sc, err := s.schedules.GetSchedule(id)
	if err != nil {
		writeError(w, statusFor(err, http.StatusInternalServerError), err)
		return
	}
	writeJSON(w, http.StatusOK, sc)
}

func (s *Server) handleDeleteSchedule(w http.ResponseWriter, r *http.Request) {
	if err := s.schedules.DeleteSchedule(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, statusFor(err, http.StatusInternalServerError), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleRunSchedule runs the schedule synchronously. A failed run still
// answers 200 with the run snapshot; the error is in the body.
func (s *Server) handleRunSchedule(w http.ResponseWriter, r *http.Request) {
	info, err := s.schedules.RunSchedule(r.Context(), chi.URLParam(r, "id"))
	if info == nil && err != nil {
		writeError(w, statusFor(err, http.StatusInternalServerError), err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}
