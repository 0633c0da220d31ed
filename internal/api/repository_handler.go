package api

import (
	"fmt"
	"net/http"

	chi "github.com/go-chi/chi/v5"

	"github.com/imagicbell/ublockly-sub001/internal/service"
)

type publishRequest struct {
	Workspace string `json:"workspace"`
}

type pullRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleListRepositories(w http.ResponseWriter, r *http.Request) {
	list, err := s.repos.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("list repositories: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"repositories": list})
}

func (s *Server) handleCreateRepository(w http.ResponseWriter, r *http.Request) {
	var input service.RepositoryInput
	if err := decodeJSON(r, &input); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	repo, err := s.repos.Create(input)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusCreated, repo)
}

func (s *Server) handleGetRepository(w http.ResponseWriter, r *http.Request) {
	repo, err := s.repos.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, statusFor(err, http.StatusInternalServerError), err)
		return
	}
	writeJSON(w, http.StatusOK, repo)
}

func (s *Server) handleUpdateRepository(w http.ResponseWriter, r *http.Request) {
	var input service.RepositoryInput
	if err := decodeJSON(r, &input); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	id := chi.URLParam(r, "id")
	if err := s.repos.Update(id, input); err != nil {
		writeError(w, statusFor(err, http.StatusBadRequest), err)
		return
	}
	repo, err := s.repos.Get(id)
	if err != nil {
		writeError(w, statusFor(err, http.StatusInternalServerError), err)
		return
	}
	writeJSON(w, http.StatusOK, repo)
}

func (s *Server) handleDeleteRepository(w http.ResponseWriter, r *http.Request) {
	if err := s.repos.Delete(chi.URLParam(r, "id")); err != nil {
		writeError(w, statusFor(err, http.StatusInternalServerError), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTestRepository(w http.ResponseWriter, r *http.Request) {
	if err := s.repos.TestConnection(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, statusFor(err, http.StatusBadGateway), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleListPublished(w http.ResponseWriter, r *http.Request) {
	list, err := s.repos.ListPublished(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, statusFor(err, http.StatusBadGateway), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"published": list})
}

func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	var req publishRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	pub, err := s.repos.Publish(r.Context(), chi.URLParam(r, "id"), req.Workspace)
	if err != nil {
		writeError(w, statusFor(err, http.StatusBadGateway), err)
		return
	}
	writeJSON(w, http.StatusOK, pub)
}

func (s *Server) handlePull(w http.ResponseWriter, r *http.Request) {
	var req pullRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	rec, err := s.repos.Pull(r.Context(), chi.URLParam(r, "id"), req.Name)
	if err != nil {
		writeError(w, statusFor(err, http.StatusBadGateway), err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleUnpublish(w http.ResponseWriter, r *http.Request) {
	if err := s.repos.Unpublish(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "name")); err != nil {
		writeError(w, statusFor(err, http.StatusBadGateway), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
