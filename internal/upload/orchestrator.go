package upload

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ayush/thunder-dashboard/backend/internal/models"
)

var (
	// ErrUnsupportedType rejects files that are neither PDF nor audio.
	ErrUnsupportedType = errors.New("unsupported file type: only PDF and audio files can be uploaded")
	// ErrBusy is returned when an upload is already running.
	ErrBusy = errors.New("an upload is already in progress")
)

// Kind is the upload category derived from the content type.
type Kind string

const (
	KindPDF   Kind = "pdf"
	KindAudio Kind = "audio"
)

// Classify maps a content type to pdf or audio.
func Classify(contentType string) (Kind, bool) {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	switch {
	case ct == "application/pdf":
		return KindPDF, true
	case strings.HasPrefix(ct, "audio/"):
		return KindAudio, true
	}
	return "", false
}

// ObjectPath is the storage key of an upload: {subject}/{epoch-ms}_{filename}.
func ObjectPath(subjectID string, now time.Time, fileName string) string {
	return fmt.Sprintf("%s/%d_%s", subjectID, now.UnixMilli(), path.Base(fileName))
}

// File is one local file to upload.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// URLIssuer hands out time-limited write URLs.
type URLIssuer interface {
	SignUpload(ctx context.Context, objectPath, contentType string) (*models.SignedUpload, error)
}

// Putter writes bytes to a signed URL.
type Putter interface {
	Put(ctx context.Context, url, contentType string, data []byte) error
}

// Registrar records an uploaded object and starts its processing job.
type Registrar interface {
	RegisterSource(ctx context.Context, subjectID, title, path string) (string, error)
	RegisterSession(ctx context.Context, subjectID, title, path string) (string, error)
}

// Result describes what happened to one file of a batch.
type Result struct {
	File     string
	Kind     Kind
	Path     string
	RecordID string
	Skipped  bool
}

// Orchestrator runs the sign → put → register cycle for local files.
type Orchestrator struct {
	issuer    URLIssuer
	putter    Putter
	registrar Registrar
	now       func() time.Time

	inflight atomic.Bool
}

func NewOrchestrator(issuer URLIssuer, putter Putter, registrar Registrar) *Orchestrator {
	return &Orchestrator{issuer: issuer, putter: putter, registrar: registrar, now: time.Now}
}

// Upload processes files one after another. A single unsupported file is
// an error; in a batch unsupported files are skipped. The batch stops at
// the first failing file and completed steps are not undone.
func (o *Orchestrator) Upload(ctx context.Context, subjectID string, files []File) ([]Result, error) {
	if !o.inflight.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer o.inflight.Store(false)

	if len(files) == 1 {
		if _, ok := Classify(files[0].ContentType); !ok {
			return nil, fmt.Errorf("%s (%s): %w", files[0].Name, files[0].ContentType, ErrUnsupportedType)
		}
	}

	results := make([]Result, 0, len(files))
	for _, f := range files {
		kind, ok := Classify(f.ContentType)
		if !ok {
			results = append(results, Result{File: f.Name, Skipped: true})
			continue
		}
		res, err := o.uploadOne(ctx, subjectID, kind, f)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

func (o *Orchestrator) uploadOne(ctx context.Context, subjectID string, kind Kind, f File) (Result, error) {
	res := Result{File: f.Name, Kind: kind}

	objectPath := ObjectPath(subjectID, o.now(), f.Name)
	signed, err := o.issuer.SignUpload(ctx, objectPath, f.ContentType)
	if err != nil {
		return res, fmt.Errorf("%s: request upload url: %w", f.Name, err)
	}
	res.Path = signed.Path

	if err := o.putter.Put(ctx, signed.URL, f.ContentType, f.Data); err != nil {
		return res, fmt.Errorf("%s: upload: %w", f.Name, err)
	}

	switch kind {
	case KindPDF:
		res.RecordID, err = o.registrar.RegisterSource(ctx, subjectID, f.Name, signed.Path)
	case KindAudio:
		res.RecordID, err = o.registrar.RegisterSession(ctx, subjectID, f.Name, signed.Path)
	}
	if err != nil {
		return res, fmt.Errorf("%s: register: %w", f.Name, err)
	}
	return res, nil
}

// Busy reports whether an upload is running.
func (o *Orchestrator) Busy() bool { return o.inflight.Load() }
