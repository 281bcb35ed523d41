package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/ayush/thunder-dashboard/backend/internal/auth"
	"github.com/ayush/thunder-dashboard/backend/internal/models"
	"github.com/ayush/thunder-dashboard/backend/internal/store"
)

type fakeFetcher struct {
	reports map[string]*models.SessionReport
	err     error
	calls   int
}

func (f *fakeFetcher) GetReport(ctx context.Context, sessionID string) (*models.SessionReport, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	rep, ok := f.reports[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w for session %s", store.ErrReportNotFound, sessionID)
	}
	return rep, nil
}

func sampleReport() *models.SessionReport {
	return &models.SessionReport{
		SessionID: "ses-1",
		ReportJSON: models.ReportBody{
			ProfessorMentioned: []models.ReportItem{{
				Title:      "Page replacement",
				Why:        "Repeated twice and marked as exam material",
				Confidence: 0.87,
				Citations: []models.Citation{
					{ChunkID: "c-1", PageStart: 12},
					{ChunkID: "c-2", PageStart: 40, PageEnd: 42},
					{ChunkID: "0123456789abcdef"},
				},
			}},
			Likely: []models.ReportItem{{Title: "Deadlock", Why: "Covered at length"}},
		},
	}
}

func TestBadge(t *testing.T) {
	cases := []struct {
		c    models.Citation
		want string
	}{
		{models.Citation{ChunkID: "x", PageStart: 12}, "p.12"},
		{models.Citation{ChunkID: "x", PageStart: 12, PageEnd: 12}, "p.12"},
		{models.Citation{ChunkID: "x", PageStart: 12, PageEnd: 15}, "p.12-15"},
		{models.Citation{ChunkID: "0123456789abcdef"}, "Ref: 01234567..."},
		{models.Citation{ChunkID: "short"}, "Ref: short..."},
	}
	for _, c := range cases {
		if got := Badge(c.c); got != c.want {
			t.Fatalf("Badge(%+v) = %q, want %q", c.c, got, c.want)
		}
	}
}

func TestConfidenceLabel(t *testing.T) {
	if got := ConfidenceLabel(0.87); got != "Conf: 87%" {
		t.Fatalf("unexpected label %q", got)
	}
	if got := ConfidenceLabel(0.456); got != "Conf: 46%" {
		t.Fatalf("unexpected label %q", got)
	}
	if got := ConfidenceLabel(0); got != "" {
		t.Fatalf("zero confidence should have no label, got %q", got)
	}
}

func TestBuildSectionsInOrder(t *testing.T) {
	v := Build(sampleReport())
	keys := []string{SectionProfessor, SectionLikely, SectionTraps}
	if len(v.Sections) != 3 {
		t.Fatalf("expected 3 sections, got %d", len(v.Sections))
	}
	for i, k := range keys {
		if v.Sections[i].Key != k {
			t.Fatalf("section %d: expected %s, got %s", i, k, v.Sections[i].Key)
		}
	}

	prof := v.Sections[0]
	if prof.Placeholder != "" || len(prof.Items) != 1 {
		t.Fatalf("unexpected professor section %+v", prof)
	}
	it := prof.Items[0]
	if it.Confidence != "Conf: 87%" || len(it.Badges) != 3 || it.Badges[1] != "p.40-42" {
		t.Fatalf("unexpected item %+v", it)
	}
	if v.Sections[1].Items[0].Confidence != "" {
		t.Fatalf("likely item has no confidence label")
	}
	if v.Sections[2].Placeholder == "" || len(v.Sections[2].Items) != 0 {
		t.Fatalf("empty trap section needs a placeholder, got %+v", v.Sections[2])
	}
}

func TestViewerStates(t *testing.T) {
	f := &fakeFetcher{reports: map[string]*models.SessionReport{"ses-1": sampleReport()}}
	v := NewViewer(f)
	if v.State() != Closed {
		t.Fatalf("new viewer should be closed")
	}

	if err := v.Open(context.Background(), "ses-1"); err != nil {
		t.Fatalf("open: %v", err)
	}
	if v.State() != Loaded {
		t.Fatalf("expected loaded, got %s", v.State())
	}
	if _, ok := v.View(); !ok {
		t.Fatalf("view should be available")
	}

	v.Close()
	if v.State() != Closed || v.SessionID() != "" {
		t.Fatalf("close should reset the viewer")
	}
	if _, ok := v.View(); ok {
		t.Fatalf("no view after close")
	}
}

func TestViewerAlwaysRefetches(t *testing.T) {
	f := &fakeFetcher{reports: map[string]*models.SessionReport{"ses-1": sampleReport()}}
	v := NewViewer(f)
	v.Open(context.Background(), "ses-1")
	v.Close()
	v.Open(context.Background(), "ses-1")
	if f.calls != 2 {
		t.Fatalf("expected 2 fetches, got %d", f.calls)
	}
}

func TestViewerErrorMessageVerbatim(t *testing.T) {
	f := &fakeFetcher{err: errors.New("connection refused")}
	v := NewViewer(f)
	if err := v.Open(context.Background(), "ses-1"); err == nil {
		t.Fatalf("expected error")
	}
	if v.State() != Failed || v.Err() != "connection refused" {
		t.Fatalf("unexpected state %s %q", v.State(), v.Err())
	}

	f.err = nil
	v.Open(context.Background(), "ses-9")
	if v.State() != Failed || v.Err() != "report not found for session ses-9" {
		t.Fatalf("unexpected state %s %q", v.State(), v.Err())
	}
}

func TestWritePDF(t *testing.T) {
	var buf bytes.Buffer
	if err := WritePDF(&buf, "Lecture 3", Build(sampleReport())); err != nil {
		t.Fatalf("pdf: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")) {
		t.Fatalf("output is not a pdf")
	}
}

type fakeSessions map[string]models.Session

func (f fakeSessions) GetSession(ctx context.Context, userID, id string) (*models.Session, error) {
	s, ok := f[id]
	if !ok || s.UserID != userID {
		return nil, store.ErrNotFound
	}
	return &s, nil
}

func newTestRouter(userID string, f *fakeFetcher) http.Handler {
	sessions := fakeSessions{
		"ses-1": {ID: "ses-1", UserID: "user-1", Title: "Lecture 3"},
		"ses-2": {ID: "ses-2", UserID: "user-1", Title: "Lecture 4"},
	}
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(auth.WithUserID(req.Context(), userID)))
		})
	})
	NewHandler(sessions, f).Routes(r)
	return r
}

func get(h http.Handler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestHandlerRoutes(t *testing.T) {
	f := &fakeFetcher{reports: map[string]*models.SessionReport{"ses-1": sampleReport()}}
	h := newTestRouter("user-1", f)

	rec := get(h, "/sessions/ses-1/report")
	if rec.Code != http.StatusOK {
		t.Fatalf("raw: expected 200, got %d", rec.Code)
	}
	var raw models.SessionReport
	if err := json.Unmarshal(rec.Body.Bytes(), &raw); err != nil || raw.SessionID != "ses-1" {
		t.Fatalf("raw: unexpected body %s", rec.Body.String())
	}

	rec = get(h, "/sessions/ses-1/report/view")
	var v View
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil || len(v.Sections) != 3 {
		t.Fatalf("view: unexpected body %s", rec.Body.String())
	}

	rec = get(h, "/sessions/ses-1/report.pdf")
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "application/pdf" {
		t.Fatalf("pdf: unexpected response %d %s", rec.Code, rec.Header().Get("Content-Type"))
	}
}

func TestHandlerMissingReport(t *testing.T) {
	h := newTestRouter("user-1", &fakeFetcher{})
	if rec := get(h, "/sessions/ses-2/report/view"); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHandlerForeignSession(t *testing.T) {
	f := &fakeFetcher{reports: map[string]*models.SessionReport{"ses-1": sampleReport()}}
	h := newTestRouter("user-2", f)
	if rec := get(h, "/sessions/ses-1/report"); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if f.calls != 0 {
		t.Fatalf("report must not be fetched for a foreign session")
	}
}
