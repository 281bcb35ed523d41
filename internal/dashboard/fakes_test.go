package dashboard

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/ayush/thunder-dashboard/backend/internal/jobs"
	"github.com/ayush/thunder-dashboard/backend/internal/models"
	"github.com/ayush/thunder-dashboard/backend/internal/store"
)

const (
	owner   = "user-1"
	subject = "subj-1"
	bucket  = "thunder-test"
)

type memRecords struct {
	subjects map[string]models.Subject
	sources  []models.Source
	sessions []models.Session
	chunks   []models.AudioChunk
	nextID   int
	inserts  int
}

func newMemRecords() *memRecords {
	return &memRecords{subjects: map[string]models.Subject{
		subject: {ID: subject, UserID: owner, Name: "Operating Systems"},
	}}
}

func (m *memRecords) id(prefix string) string {
	m.nextID++
	return fmt.Sprintf("%s-%d", prefix, m.nextID)
}

func (m *memRecords) ListSubjects(ctx context.Context, userID string) ([]models.Subject, error) {
	var out []models.Subject
	for _, s := range m.subjects {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memRecords) CreateSubject(ctx context.Context, userID, name string) (*models.Subject, error) {
	s := models.Subject{ID: m.id("subj"), UserID: userID, Name: name}
	m.subjects[s.ID] = s
	return &s, nil
}

func (m *memRecords) GetSubject(ctx context.Context, userID, subjectID string) (*models.Subject, error) {
	s, ok := m.subjects[subjectID]
	if !ok || s.UserID != userID {
		return nil, store.ErrNotFound
	}
	return &s, nil
}

func (m *memRecords) CreateSource(ctx context.Context, src *models.Source) error {
	m.inserts++
	src.ID = m.id("src")
	src.CreatedAt = time.Now()
	m.sources = append(m.sources, *src)
	return nil
}

func (m *memRecords) DeleteSource(ctx context.Context, userID, id string) (*models.Source, error) {
	for i, s := range m.sources {
		if s.ID == id && s.UserID == userID {
			m.sources = append(m.sources[:i], m.sources[i+1:]...)
			return &s, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memRecords) CreateSession(ctx context.Context, ses *models.Session) error {
	m.inserts++
	ses.ID = m.id("ses")
	ses.CreatedAt = time.Now()
	m.sessions = append(m.sessions, *ses)
	return nil
}

func (m *memRecords) CountSessions(ctx context.Context, subjectID string, ids []string) (int, error) {
	n := 0
	for _, id := range ids {
		for _, s := range m.sessions {
			if s.ID == id && s.SubjectID == subjectID {
				n++
			}
		}
	}
	return n, nil
}

func (m *memRecords) DeleteSession(ctx context.Context, userID, id string) (*models.Session, error) {
	for i, s := range m.sessions {
		if s.ID == id && s.UserID == userID {
			m.sessions = append(m.sessions[:i], m.sessions[i+1:]...)
			return &s, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memRecords) ListSources(ctx context.Context, subjectID string) ([]models.Source, error) {
	var out []models.Source
	for _, s := range m.sources {
		if s.SubjectID == subjectID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memRecords) ListSessions(ctx context.Context, subjectID string) ([]models.Session, error) {
	var out []models.Session
	for _, s := range m.sessions {
		if s.SubjectID == subjectID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memRecords) ListChunks(ctx context.Context, sessionIDs []string) ([]models.AudioChunk, error) {
	var out []models.AudioChunk
	for _, c := range m.chunks {
		for _, id := range sessionIDs {
			if c.SessionID == id {
				out = append(out, c)
			}
		}
	}
	return out, nil
}

type memObjects struct {
	presigned []string
	removed   []string
	ttl       time.Duration
}

func (o *memObjects) PresignPut(ctx context.Context, key string, ttl time.Duration) (*url.URL, error) {
	o.presigned = append(o.presigned, key)
	o.ttl = ttl
	return url.Parse("https://storage.test/" + bucket + "/" + key + "?X-Amz-Signature=abc")
}

func (o *memObjects) Locator(key string) string { return store.Locator("gs", bucket, key) }

func (o *memObjects) ObjectKey(locator string) (string, bool) {
	return store.ObjectKey("gs", bucket, locator)
}

func (o *memObjects) Remove(ctx context.Context, key string) error {
	o.removed = append(o.removed, key)
	return nil
}

type memReports struct{ deleted []string }

func (r *memReports) DeleteReport(ctx context.Context, sessionID string) error {
	r.deleted = append(r.deleted, sessionID)
	return nil
}

type run struct {
	phase   jobs.Phase
	payload any
}

type fakeJobs struct {
	runs []run
	err  error
}

func (f *fakeJobs) Run(ctx context.Context, phase jobs.Phase, payload any) error {
	f.runs = append(f.runs, run{phase: phase, payload: payload})
	return f.err
}

type memGate struct {
	held     map[string]bool
	released []string
}

func (g *memGate) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if g.held == nil {
		g.held = map[string]bool{}
	}
	if g.held[key] {
		return false, nil
	}
	g.held[key] = true
	return true, nil
}

func (g *memGate) Release(ctx context.Context, key string) error {
	delete(g.held, key)
	g.released = append(g.released, key)
	return nil
}

type fixture struct {
	records *memRecords
	objects *memObjects
	reports *memReports
	jobs    *fakeJobs
	gate    *memGate
	svc     *Service
}

func newFixture() *fixture {
	f := &fixture{
		records: newMemRecords(),
		objects: &memObjects{},
		reports: &memReports{},
		jobs:    &fakeJobs{},
		gate:    &memGate{},
	}
	f.svc = NewService(f.records, f.objects, f.reports, f.jobs, f.gate, Options{ExamWindow: "midterm"})
	return f
}
