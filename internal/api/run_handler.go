package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	chi "github.com/go-chi/chi/v5"

	"github.com/imagicbell/ublockly-sub001/internal/interp"
	"github.com/imagicbell/ublockly-sub001/internal/service"
)

type runRequest struct {
	Mode          string `json:"mode"`
	StepsPerFrame int    `json:"stepsPerFrame"`
	FrameRate     int    `json:"frameRate"`
	// Wait blocks until a sync-mode run ends, up to TimeoutSeconds.
	Wait           bool `json:"wait"`
	TimeoutSeconds int  `json:"timeoutSeconds"`
}

func (req runRequest) options(defaults service.RunOptions) (service.RunOptions, error) {
	opts := defaults
	if req.Mode != "" {
		mode, ok := interp.ParseMode(req.Mode)
		if !ok {
			return opts, fmt.Errorf("unknown run mode %q", req.Mode)
		}
		opts.Mode = mode
	}
	if req.StepsPerFrame > 0 {
		opts.StepsPerFrame = req.StepsPerFrame
	}
	if req.FrameRate > 0 {
		opts.FrameRate = req.FrameRate
	}
	if req.TimeoutSeconds > 0 {
		opts.Timeout = time.Duration(req.TimeoutSeconds) * time.Second
	}
	return opts, nil
}

func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	opts, err := req.options(s.runs.Defaults)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	ref := chi.URLParam(r, "ref")
	info, err := s.runs.Start(r.Context(), ref, opts)
	if err != nil {
		writeError(w, statusFor(err, http.StatusBadRequest), err)
		return
	}
	if !req.Wait || opts.Mode != interp.ModeSync {
		writeJSON(w, http.StatusAccepted, info)
		return
	}

	ctx := r.Context()
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout+time.Second)
		defer cancel()
	}
	final, err := s.runs.Wait(ctx, ref)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		if snap, infoErr := s.runs.Info(ref); infoErr == nil {
			writeJSON(w, http.StatusAccepted, snap)
			return
		}
	}
	if err != nil {
		writeError(w, statusFor(err, http.StatusInternalServerError), err)
		return
	}
	writeJSON(w, http.StatusOK, final)
}

func (s *Server) handleRunInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.runs.Info(chi.URLParam(r, "ref"))
	if err != nil {
		writeError(w, statusFor(err, http.StatusInternalServerError), err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleRunControl(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "ref")
	var control func(string) (*service.RunInfo, error)
	switch action := chi.URLParam(r, "action"); action {
	case "step":
		control = s.runs.Step
	case "pause":
		control = s.runs.Pause
	case "resume":
		control = s.runs.Resume
	case "stop":
		control = s.runs.Stop
	default:
		writeError(w, http.StatusNotFound, fmt.Errorf("unknown run action %q", action))
		return
	}
	info, err := control(ref)
	if err != nil {
		writeError(w, statusFor(err, http.StatusInternalServerError), err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleRunLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := s.runs.ListRunLogs(chi.URLParam(r, "ref"))
	if err != nil {
		writeError(w, statusFor(err, http.StatusInternalServerError), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": logs})
}
