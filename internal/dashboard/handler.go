package dashboard

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ayush/thunder-dashboard/backend/internal/auth"
	"github.com/ayush/thunder-dashboard/backend/internal/models"
	"github.com/ayush/thunder-dashboard/backend/internal/status"
	"github.com/ayush/thunder-dashboard/backend/internal/store"
	"github.com/ayush/thunder-dashboard/backend/internal/upload"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// writeError maps service errors to HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, upload.ErrUnsupportedType),
		errors.Is(err, ErrNoSessions),
		errors.Is(err, ErrUnknownSessions):
		code = http.StatusBadRequest
	case errors.Is(err, ErrForbiddenPath):
		code = http.StatusForbidden
	case errors.Is(err, store.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, ErrBusy):
		code = http.StatusConflict
	case errors.Is(err, ErrJobTrigger):
		code = http.StatusBadGateway
	}
	if code == http.StatusInternalServerError {
		log.Printf("dashboard: %v", err)
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

// Handler holds dashboard HTTP handlers.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Routes mounts the handlers under /api.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/subjects", h.ListSubjects)
	r.Post("/subjects", h.CreateSubject)
	r.Post("/uploads/sign", h.SignUpload)
	r.Get("/subjects/{id}/items", h.Items)
	r.Post("/subjects/{id}/sources", h.CreateSource)
	r.Post("/subjects/{id}/sessions", h.CreateSession)
	r.Post("/subjects/{id}/reports", h.GenerateReport)
	r.Delete("/sources/{id}", h.deleteItem(status.KindPDF))
	r.Delete("/sessions/{id}", h.deleteItem(status.KindAudio))
}

func (h *Handler) ListSubjects(w http.ResponseWriter, r *http.Request) {
	subjects, err := h.svc.ListSubjects(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	if subjects == nil {
		subjects = []models.Subject{}
	}
	writeJSON(w, http.StatusOK, subjects)
}

func (h *Handler) CreateSubject(w http.ResponseWriter, r *http.Request) {
	var req models.CreateSubjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		http.Error(w, `{"error":"name is required"}`, http.StatusBadRequest)
		return
	}
	sub, err := h.svc.CreateSubject(r.Context(), auth.UserID(r.Context()), req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

// SignUpload returns a time-limited write URL for one object.
func (h *Handler) SignUpload(w http.ResponseWriter, r *http.Request) {
	var req models.SignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.FileName == "" {
		http.Error(w, `{"error":"fileName and contentType are required"}`, http.StatusBadRequest)
		return
	}
	signed, err := h.svc.SignUpload(r.Context(), auth.UserID(r.Context()), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, signed)
}

func (h *Handler) CreateSource(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
		http.Error(w, `{"error":"path is required"}`, http.StatusBadRequest)
		return
	}
	src, err := h.svc.CreateSourceAndTrigger(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "id"), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, src)
}

func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
		http.Error(w, `{"error":"path is required"}`, http.StatusBadRequest)
		return
	}
	ses, err := h.svc.CreateSessionAndTrigger(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "id"), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ses)
}

// Items returns the reconciled item list of a subject.
func (h *Handler) Items(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.Items(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) GenerateReport(w http.ResponseWriter, r *http.Request) {
	var req models.GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}
	if err := h.svc.GenerateReport(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "id"), req); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]bool{"success": true})
}

func (h *Handler) deleteItem(kind status.ItemKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.svc.DeleteItem(r.Context(), auth.UserID(r.Context()), kind, chi.URLParam(r, "id")); err != nil {
			writeError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"message":"deleted"}`))
	}
}
