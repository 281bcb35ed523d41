package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/ayush/thunder-dashboard/backend/internal/jobs"
	"github.com/ayush/thunder-dashboard/backend/internal/models"
	"github.com/ayush/thunder-dashboard/backend/internal/status"
	"github.com/ayush/thunder-dashboard/backend/internal/store"
	"github.com/ayush/thunder-dashboard/backend/internal/upload"
)

var (
	ErrNoSessions      = errors.New("select at least one session")
	ErrUnknownSessions = errors.New("some sessions do not belong to this subject")
	ErrForbiddenPath   = errors.New("object path is outside the subject")
	ErrBusy            = errors.New("a report job for this subject is already being started")
	ErrJobTrigger      = errors.New("failed to start processing job")
)

// RecordStore is the slice of the Postgres store the dashboard needs.
type RecordStore interface {
	status.Loader

	ListSubjects(ctx context.Context, userID string) ([]models.Subject, error)
	CreateSubject(ctx context.Context, userID, name string) (*models.Subject, error)
	GetSubject(ctx context.Context, userID, subjectID string) (*models.Subject, error)

	CreateSource(ctx context.Context, src *models.Source) error
	DeleteSource(ctx context.Context, userID, id string) (*models.Source, error)

	CreateSession(ctx context.Context, ses *models.Session) error
	CountSessions(ctx context.Context, subjectID string, ids []string) (int, error)
	DeleteSession(ctx context.Context, userID, id string) (*models.Session, error)
}

// ObjectStore signs uploads and cleans up deleted objects.
type ObjectStore interface {
	PresignPut(ctx context.Context, key string, ttl time.Duration) (*url.URL, error)
	Locator(key string) string
	ObjectKey(locator string) (string, bool)
	Remove(ctx context.Context, key string) error
}

// ReportStore drops the report of a deleted session.
type ReportStore interface {
	DeleteReport(ctx context.Context, sessionID string) error
}

// JobTrigger starts a worker execution.
type JobTrigger interface {
	Run(ctx context.Context, phase jobs.Phase, payload any) error
}

// Gate holds expiring in-flight flags.
type Gate interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// Options tunes a Service.
type Options struct {
	UploadURLTTL time.Duration
	ExamWindow   string
	GateTTL      time.Duration
}

// Service implements the dashboard's server-side operations.
type Service struct {
	records RecordStore
	objects ObjectStore
	reports ReportStore
	jobs    JobTrigger
	gate    Gate
	opts    Options
}

func NewService(records RecordStore, objects ObjectStore, reports ReportStore, trigger JobTrigger, gate Gate, opts Options) *Service {
	if opts.UploadURLTTL <= 0 {
		opts.UploadURLTTL = 15 * time.Minute
	}
	if opts.ExamWindow == "" {
		opts.ExamWindow = "midterm"
	}
	if opts.GateTTL <= 0 {
		opts.GateTTL = time.Minute
	}
	return &Service{records: records, objects: objects, reports: reports, jobs: trigger, gate: gate, opts: opts}
}

func (s *Service) ListSubjects(ctx context.Context, userID string) ([]models.Subject, error) {
	return s.records.ListSubjects(ctx, userID)
}

func (s *Service) CreateSubject(ctx context.Context, userID, name string) (*models.Subject, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("subject name is required")
	}
	return s.records.CreateSubject(ctx, userID, name)
}

// SignUpload issues a write URL for objectPath, which must live under a
// subject owned by userID.
func (s *Service) SignUpload(ctx context.Context, userID string, req models.SignRequest) (*models.SignedUpload, error) {
	if _, ok := upload.Classify(req.ContentType); !ok {
		return nil, upload.ErrUnsupportedType
	}

	key := path.Clean(strings.TrimPrefix(req.FileName, "/"))
	subjectID, rest, ok := strings.Cut(key, "/")
	if !ok || rest == "" || escapes(key) {
		return nil, ErrForbiddenPath
	}
	if _, err := s.records.GetSubject(ctx, userID, subjectID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrForbiddenPath
		}
		return nil, err
	}

	u, err := s.objects.PresignPut(ctx, key, s.opts.UploadURLTTL)
	if err != nil {
		log.Printf("presign %s: %v", key, err)
		return nil, fmt.Errorf("failed to generate upload URL: %w", err)
	}
	return &models.SignedUpload{URL: u.String(), Path: s.objects.Locator(key)}, nil
}

// escapes reports whether a cleaned relative path still climbs out of its
// root. Dots inside a file name are fine.
func escapes(key string) bool {
	for _, seg := range strings.Split(key, "/") {
		if seg == ".." {
			return true
		}
	}
	return false
}

// CreateSourceAndTrigger records an uploaded PDF as queued and starts
// phase 1. If the trigger fails the row is kept.
func (s *Service) CreateSourceAndTrigger(ctx context.Context, userID, subjectID string, req models.RegisterUploadRequest) (*models.Source, error) {
	if _, err := s.records.GetSubject(ctx, userID, subjectID); err != nil {
		return nil, err
	}
	key, err := s.subjectObject(subjectID, req.Path)
	if err != nil {
		return nil, err
	}

	src := &models.Source{
		UserID:       userID,
		SubjectID:    subjectID,
		Kind:         "textbook",
		Title:        titleOr(req.Title, key),
		StoragePath:  req.Path,
		IngestStatus: models.StatusQueued,
	}
	if err := s.records.CreateSource(ctx, src); err != nil {
		log.Printf("insert source: %v", err)
		return nil, fmt.Errorf("failed to create source record: %w", err)
	}

	err = s.jobs.Run(ctx, jobs.PhaseIngest, jobs.IngestPayload{SourceID: src.ID, GCSPDFURL: src.StoragePath})
	if err != nil {
		log.Printf("trigger phase 1 for source %s: %v", src.ID, err)
		return src, fmt.Errorf("%w: %v", ErrJobTrigger, err)
	}
	log.Printf("triggered phase 1 for source %s", src.ID)
	return src, nil
}

// CreateSessionAndTrigger records an uploaded recording as queued and
// starts the split phase. If the trigger fails the row is kept.
func (s *Service) CreateSessionAndTrigger(ctx context.Context, userID, subjectID string, req models.RegisterUploadRequest) (*models.Session, error) {
	subject, err := s.records.GetSubject(ctx, userID, subjectID)
	if err != nil {
		return nil, err
	}
	key, err := s.subjectObject(subjectID, req.Path)
	if err != nil {
		return nil, err
	}

	ses := &models.Session{
		UserID:     userID,
		SubjectID:  subjectID,
		Title:      titleOr(req.Title, key),
		ExamWindow: s.examWindow(req.ExamWindow),
		AudioPath:  req.Path,
		Status:     models.StatusQueued,
	}
	if err := s.records.CreateSession(ctx, ses); err != nil {
		log.Printf("insert session: %v", err)
		return nil, fmt.Errorf("failed to create session record: %w", err)
	}

	err = s.jobs.Run(ctx, jobs.PhaseSplit, jobs.SplitPayload{
		SessionID:   ses.ID,
		GCSAudioURL: ses.AudioPath,
		Subject:     subject.Name,
		ExamWindow:  ses.ExamWindow,
	})
	if err != nil {
		log.Printf("trigger split for session %s: %v", ses.ID, err)
		return ses, fmt.Errorf("%w: %v", ErrJobTrigger, err)
	}
	log.Printf("triggered split for session %s", ses.ID)
	return ses, nil
}

// GenerateReport starts phase 4 over the selected sessions. Completion is
// observed later through session status changes.
func (s *Service) GenerateReport(ctx context.Context, userID, subjectID string, req models.GenerateRequest) error {
	ids := dedupe(req.SessionIDs)
	if len(ids) == 0 {
		return ErrNoSessions
	}
	if _, err := s.records.GetSubject(ctx, userID, subjectID); err != nil {
		return err
	}
	n, err := s.records.CountSessions(ctx, subjectID, ids)
	if err != nil {
		return err
	}
	if n != len(ids) {
		return ErrUnknownSessions
	}

	gateKey := "report:" + subjectID
	ok, err := s.gate.Acquire(ctx, gateKey, s.opts.GateTTL)
	if err != nil {
		return fmt.Errorf("acquire report gate: %w", err)
	}
	if !ok {
		return ErrBusy
	}
	defer func() {
		if err := s.gate.Release(context.WithoutCancel(ctx), gateKey); err != nil {
			log.Printf("release %s: %v", gateKey, err)
		}
	}()

	err = s.jobs.Run(ctx, jobs.PhaseReport, jobs.ReportPayload{
		SubjectID:  subjectID,
		SessionIDs: ids,
		ExamWindow: s.examWindow(req.ExamWindow),
	})
	if err != nil {
		log.Printf("trigger report for subject %s: %v", subjectID, err)
		return fmt.Errorf("%w: %v", ErrJobTrigger, err)
	}
	log.Printf("triggered report for subject %s with %d sessions", subjectID, len(ids))
	return nil
}

// DeleteItem removes a source or session and, best effort, its stored
// object and report.
func (s *Service) DeleteItem(ctx context.Context, userID string, kind status.ItemKind, id string) error {
	switch kind {
	case status.KindPDF:
		src, err := s.records.DeleteSource(ctx, userID, id)
		if err != nil {
			return err
		}
		s.removeObject(ctx, src.StoragePath)
	case status.KindAudio:
		ses, err := s.records.DeleteSession(ctx, userID, id)
		if err != nil {
			return err
		}
		s.removeObject(ctx, ses.AudioPath)
		if err := s.reports.DeleteReport(ctx, ses.ID); err != nil {
			log.Printf("delete report of %s: %v", ses.ID, err)
		}
	default:
		return fmt.Errorf("unknown item kind %q", kind)
	}
	return nil
}

// Items returns the current reconciled list of a subject.
func (s *Service) Items(ctx context.Context, userID, subjectID string) ([]status.ItemView, error) {
	if _, err := s.records.GetSubject(ctx, userID, subjectID); err != nil {
		return nil, err
	}
	r := status.NewReconciler(subjectID, s.records)
	if err := r.Load(ctx); err != nil {
		return nil, err
	}
	return status.Present(r.Items()), nil
}

// Deleter binds DeleteItem to one user.
func (s *Service) Deleter(userID string) status.Deleter {
	return userDeleter{svc: s, userID: userID}
}

type userDeleter struct {
	svc    *Service
	userID string
}

func (d userDeleter) DeleteItem(ctx context.Context, kind status.ItemKind, id string) error {
	return d.svc.DeleteItem(ctx, d.userID, kind, id)
}

func (s *Service) subjectObject(subjectID, locator string) (string, error) {
	key, ok := s.objects.ObjectKey(locator)
	if !ok || !strings.HasPrefix(key, subjectID+"/") {
		return "", ErrForbiddenPath
	}
	return key, nil
}

func (s *Service) removeObject(ctx context.Context, locator string) {
	key, ok := s.objects.ObjectKey(locator)
	if !ok {
		return
	}
	if err := s.objects.Remove(ctx, key); err != nil {
		log.Printf("remove object %s: %v", key, err)
	}
}

func (s *Service) examWindow(requested string) string {
	if requested != "" {
		return requested
	}
	return s.opts.ExamWindow
}

// titleOr falls back to the uploaded file name without its timestamp prefix.
func titleOr(title, key string) string {
	if t := strings.TrimSpace(title); t != "" {
		return t
	}
	base := path.Base(key)
	if _, name, ok := strings.Cut(base, "_"); ok && name != "" {
		return name
	}
	return base
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
