package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/energystats/energystats/pkg/log"
	"github.com/energystats/energystats/pkg/schedule"
	"github.com/energystats/energystats/pkg/storage"
	"github.com/energystats/energystats/pkg/types"
	"github.com/google/uuid"
)

// scheduleRes is the response for schedule reads: the schedule plus
// whether an edit session is open.
type scheduleRes struct {
	types.Schedule
	Editing bool `json:"editing"`
}

// currentSession returns the open edit session, or nil.
func (s *Server) currentSession() *schedule.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

func (s *Server) handleGetSchedule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if session := s.currentSession(); session != nil {
		w.Header().Set("Cache-Control", "no-store")
		writeJSON(w, scheduleRes{Schedule: session.Schedule(), Editing: true})
		return
	}

	device, err := s.getDevice(ctx)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to get device", slog.Any("error", err))
		writeJSONError(w, "failed to get device", http.StatusInternalServerError)
		return
	}
	sched, err := s.fox.GetSchedule(ctx, device.DeviceSN)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to get schedule", slog.Any("error", err))
		writeJSONError(w, "failed to get schedule", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, scheduleRes{Schedule: sched})
}

// handleEditSchedule opens an edit session over the device's current
// schedule. Re-opening replaces any existing session.
func (s *Server) handleEditSchedule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	device, err := s.getDevice(ctx)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to get device", slog.Any("error", err))
		writeJSONError(w, "failed to get device", http.StatusInternalServerError)
		return
	}
	sched, err := s.fox.GetSchedule(ctx, device.DeviceSN)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to get schedule", slog.Any("error", err))
		writeJSONError(w, "failed to get schedule", http.StatusInternalServerError)
		return
	}

	session := schedule.Open(device, sched)
	s.mu.Lock()
	s.session = session
	s.mu.Unlock()

	writeJSON(w, scheduleRes{Schedule: session.Schedule(), Editing: true})
}

// withSession runs fn against the open session and writes the updated
// working copy, translating session errors to HTTP statuses.
func (s *Server) withSession(w http.ResponseWriter, r *http.Request, fn func(*schedule.Session) error) {
	session := s.currentSession()
	if session == nil {
		writeJSONError(w, "no edit session open", http.StatusConflict)
		return
	}
	if err := fn(session); err != nil {
		if errors.Is(err, schedule.ErrSessionClosed) {
			writeJSONError(w, "edit session closed", http.StatusConflict)
			return
		}
		log.Ctx(r.Context()).ErrorContext(r.Context(), "schedule edit failed", slog.Any("error", err))
		writeJSONError(w, "schedule edit failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, scheduleRes{Schedule: session.Schedule(), Editing: true})
}

func (s *Server) handleAddPhase(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode types.WorkMode `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Mode == "" {
		req.Mode = types.WorkModeSelfUse
	}
	s.withSession(w, r, func(session *schedule.Session) error {
		return session.AddPhase(req.Mode, s.now())
	})
}

func (s *Server) handleUpdatePhase(w http.ResponseWriter, r *http.Request) {
	var phase types.SchedulePhase
	if err := json.NewDecoder(r.Body).Decode(&phase); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	phase.ID = r.PathValue("id")
	s.withSession(w, r, func(session *schedule.Session) error {
		return session.UpdatePhase(phase)
	})
}

func (s *Server) handleDeletePhase(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	s.withSession(w, r, func(session *schedule.Session) error {
		return session.DeletePhase(id)
	})
}

func (s *Server) handleFillGaps(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode types.WorkMode `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Mode == "" {
		req.Mode = types.WorkModeSelfUse
	}
	s.withSession(w, r, func(session *schedule.Session) error {
		return session.FillGaps(req.Mode)
	})
}

func (s *Server) handleSaveSchedule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session := s.currentSession()
	if session == nil {
		writeJSONError(w, "no edit session open", http.StatusConflict)
		return
	}

	if err := session.Commit(ctx, s.fox); err != nil {
		if errors.Is(err, schedule.ErrInvalidSchedule) {
			writeJSONError(w, "schedule has overlapping phases", http.StatusBadRequest)
			return
		}
		if errors.Is(err, schedule.ErrSessionClosed) {
			writeJSONError(w, "edit session closed", http.StatusConflict)
			return
		}
		log.Ctx(ctx).ErrorContext(ctx, "failed to save schedule", slog.Any("error", err))
		writeJSONError(w, "failed to save schedule", http.StatusInternalServerError)
		return
	}

	s.mu.Lock()
	s.session = nil
	s.mu.Unlock()

	log.Ctx(ctx).InfoContext(ctx, "schedule committed", slog.String("email", requestEmail(r)))
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleDiscardSchedule(w http.ResponseWriter, r *http.Request) {
	session := s.currentSession()
	if session == nil {
		writeJSONError(w, "no edit session open", http.StatusConflict)
		return
	}
	session.Discard()

	s.mu.Lock()
	s.session = nil
	s.mu.Unlock()

	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	device, err := s.getDevice(ctx)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to get device", slog.Any("error", err))
		writeJSONError(w, "failed to get device", http.StatusInternalServerError)
		return
	}
	templates, err := s.storage.ListScheduleTemplates(ctx, device.DeviceSN)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to list templates", slog.Any("error", err))
		writeJSONError(w, "failed to list templates", http.StatusInternalServerError)
		return
	}
	writeJSON(w, templates)
}

func (s *Server) handleSaveTemplate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	device, err := s.getDevice(ctx)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to get device", slog.Any("error", err))
		writeJSONError(w, "failed to get device", http.StatusInternalServerError)
		return
	}

	var template types.Schedule
	if err := json.NewDecoder(r.Body).Decode(&template); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if template.Name == "" {
		writeJSONError(w, "template name is required", http.StatusBadRequest)
		return
	}
	if !template.IsValid() {
		writeJSONError(w, "template has overlapping phases", http.StatusBadRequest)
		return
	}
	if template.TemplateID == "" {
		template.TemplateID = uuid.NewString()
	}

	if err := s.storage.SaveScheduleTemplate(ctx, device.DeviceSN, template); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to save template", slog.Any("error", err))
		writeJSONError(w, "failed to save template", http.StatusInternalServerError)
		return
	}
	writeJSON(w, template)
}

func (s *Server) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	device, err := s.getDevice(ctx)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to get device", slog.Any("error", err))
		writeJSONError(w, "failed to get device", http.StatusInternalServerError)
		return
	}
	if err := s.storage.DeleteScheduleTemplate(ctx, device.DeviceSN, r.PathValue("id")); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to delete template", slog.Any("error", err))
		writeJSONError(w, "failed to delete template", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// handleActivateTemplate pushes a stored template to the device, filling
// uncovered minutes with self-use first so the inverter always has a
// complete day.
func (s *Server) handleActivateTemplate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	device, err := s.getDevice(ctx)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to get device", slog.Any("error", err))
		writeJSONError(w, "failed to get device", http.StatusInternalServerError)
		return
	}

	templateID := r.PathValue("id")
	template, err := s.storage.GetScheduleTemplate(ctx, device.DeviceSN, templateID)
	if err != nil {
		if errors.Is(err, storage.ErrTemplateNotFound) {
			writeJSONError(w, "template not found", http.StatusNotFound)
			return
		}
		log.Ctx(ctx).ErrorContext(ctx, "failed to get template", slog.Any("error", err))
		writeJSONError(w, "failed to get template", http.StatusInternalServerError)
		return
	}

	full := schedule.FillGaps(template, types.WorkModeSelfUse, device)
	if !full.IsValid() {
		writeJSONError(w, "template has overlapping phases", http.StatusBadRequest)
		return
	}

	if err := s.fox.SaveSchedule(ctx, device.DeviceSN, full); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to activate template", slog.Any("error", err))
		writeJSONError(w, "failed to activate template", http.StatusInternalServerError)
		return
	}

	log.Ctx(ctx).InfoContext(ctx, "template activated", slog.String("templateID", templateID))
	writeJSON(w, full)
}
