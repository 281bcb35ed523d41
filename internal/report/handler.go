package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ayush/thunder-dashboard/backend/internal/auth"
	"github.com/ayush/thunder-dashboard/backend/internal/models"
	"github.com/ayush/thunder-dashboard/backend/internal/store"
)

// SessionLookup checks that a session belongs to a user.
type SessionLookup interface {
	GetSession(ctx context.Context, userID, id string) (*models.Session, error)
}

// Handler serves stored reports to their owners.
type Handler struct {
	sessions SessionLookup
	reports  Fetcher
}

func NewHandler(sessions SessionLookup, reports Fetcher) *Handler {
	return &Handler{sessions: sessions, reports: reports}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/sessions/{id}/report", h.Get)
	r.Get("/sessions/{id}/report/view", h.View)
	r.Get("/sessions/{id}/report.pdf", h.DownloadPDF)
}

// Get returns the raw report document.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.owned(w, r); !ok {
		return
	}
	rep, err := h.reports.GetReport(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeFetchError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rep)
}

// View returns the report in display form.
func (h *Handler) View(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.owned(w, r); !ok {
		return
	}
	v, err := h.open(r)
	if err != nil {
		writeFetchError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// DownloadPDF renders the report as a PDF attachment.
func (h *Handler) DownloadPDF(w http.ResponseWriter, r *http.Request) {
	ses, ok := h.owned(w, r)
	if !ok {
		return
	}
	v, err := h.open(r)
	if err != nil {
		writeFetchError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := WritePDF(&buf, ses.Title, v); err != nil {
		log.Printf("report pdf %s: %v", ses.ID, err)
		http.Error(w, `{"error":"pdf rendering failed"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "attachment; filename=report.pdf")
	w.Write(buf.Bytes())
}

func (h *Handler) open(r *http.Request) (View, error) {
	viewer := NewViewer(h.reports)
	if err := viewer.Open(r.Context(), chi.URLParam(r, "id")); err != nil {
		return View{}, err
	}
	v, _ := viewer.View()
	return v, nil
}

func (h *Handler) owned(w http.ResponseWriter, r *http.Request) (*models.Session, bool) {
	ses, err := h.sessions.GetSession(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, `{"error":"session not found"}`, http.StatusNotFound)
		return nil, false
	}
	if err != nil {
		log.Printf("lookup session: %v", err)
		http.Error(w, `{"error":"failed to load session"}`, http.StatusInternalServerError)
		return nil, false
	}
	return ses, true
}

func writeFetchError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	if errors.Is(err, store.ErrReportNotFound) {
		code = http.StatusNotFound
	} else {
		log.Printf("fetch report: %v", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
