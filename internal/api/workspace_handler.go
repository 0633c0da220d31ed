package api

import (
	"fmt"
	"io"
	"net/http"
	"sort"

	chi "github.com/go-chi/chi/v5"

	"github.com/imagicbell/ublockly-sub001/internal/service"
)

func (s *Server) handleTargets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"targets": s.codegen.Targets()})
}

func (s *Server) handleBlockTypes(w http.ResponseWriter, r *http.Request) {
	types := s.workspaces.BlockTypes()
	sort.Strings(types)
	writeJSON(w, http.StatusOK, map[string]any{"types": types})
}

func (s *Server) handleListDefinitions(w http.ResponseWriter, r *http.Request) {
	defs, err := s.workspaces.ListDefinitions()
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("list definitions: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"definitions": defs})
}

// handlePutDefinition takes the raw Blockly JSON definition as the body.
func (s *Server) handlePutDefinition(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("read body: %w", err))
		return
	}
	source := r.URL.Query().Get("source")
	if source == "" {
		source = "user"
	}
	def, err := s.workspaces.PutDefinition(r.Context(), string(body), source)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusCreated, def)
}

func (s *Server) handleDeleteDefinition(w http.ResponseWriter, r *http.Request) {
	if err := s.workspaces.DeleteDefinition(r.Context(), chi.URLParam(r, "type")); err != nil {
		writeError(w, statusFor(err, http.StatusInternalServerError), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ── Workspaces ─────────────────────────────────────────────

func (s *Server) handleListWorkspaces(w http.ResponseWriter, r *http.Request) {
	list, err := s.workspaces.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("list workspaces: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"workspaces": list})
}

func (s *Server) handleCreateWorkspace(w http.ResponseWriter, r *http.Request) {
	var input service.CreateWorkspaceInput
	if err := decodeJSON(r, &input); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	rec, err := s.workspaces.Create(r.Context(), input)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleGetWorkspace(w http.ResponseWriter, r *http.Request) {
	rec, err := s.workspaces.Resolve(chi.URLParam(r, "ref"))
	if err != nil {
		writeError(w, statusFor(err, http.StatusInternalServerError), err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleUpdateWorkspace(w http.ResponseWriter, r *http.Request) {
	var input service.UpdateWorkspaceInput
	if err := decodeJSON(r, &input); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	rec, err := s.workspaces.Update(r.Context(), chi.URLParam(r, "ref"), input)
	if err != nil {
		writeError(w, statusFor(err, http.StatusBadRequest), err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDeleteWorkspace(w http.ResponseWriter, r *http.Request) {
	if err := s.workspaces.Delete(r.Context(), chi.URLParam(r, "ref")); err != nil {
		writeError(w, statusFor(err, http.StatusInternalServerError), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleExportXML(w http.ResponseWriter, r *http.Request) {
	xml, err := s.workspaces.ExportXML(chi.URLParam(r, "ref"))
	if err != nil {
		writeError(w, statusFor(err, http.StatusInternalServerError), err)
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, xml)
}

func (s *Server) handleImportXML(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("read body: %w", err))
		return
	}
	rec, err := s.workspaces.ImportXML(r.Context(), chi.URLParam(r, "ref"), string(body))
	if err != nil {
		writeError(w, statusFor(err, http.StatusBadRequest), err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	rec, err := s.workspaces.Undo(r.Context(), chi.URLParam(r, "ref"))
	if err != nil {
		writeError(w, statusFor(err, http.StatusInternalServerError), err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleRedo(w http.ResponseWriter, r *http.Request) {
	rec, err := s.workspaces.Redo(r.Context(), chi.URLParam(r, "ref"))
	if err != nil {
		writeError(w, statusFor(err, http.StatusInternalServerError), err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	tree, err := s.workspaces.History(chi.URLParam(r, "ref"))
	if err != nil {
		writeError(w, statusFor(err, http.StatusInternalServerError), err)
		return
	}
	writeJSON(w, http.StatusOK, tree)
}

// ── Code generation ────────────────────────────────────────

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	out, err := s.codegen.Generate(chi.URLParam(r, "ref"), r.URL.Query().Get("target"))
	if err != nil {
		writeError(w, statusFor(err, http.StatusBadRequest), err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// handleWriteCode generates code and writes it to the output directory.
func (s *Server) handleWriteCode(w http.ResponseWriter, r *http.Request) {
	out, err := s.codegen.WriteFile(chi.URLParam(r, "ref"), r.URL.Query().Get("target"))
	if err != nil {
		writeError(w, statusFor(err, http.StatusBadRequest), err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}
