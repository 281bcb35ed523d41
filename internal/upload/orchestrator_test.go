package upload

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ayush/thunder-dashboard/backend/internal/models"
)

type recorder struct {
	calls []string

	signErr     error
	putErr      error
	registerErr error
	puts        map[string][]byte
}

func (r *recorder) SignUpload(ctx context.Context, objectPath, contentType string) (*models.SignedUpload, error) {
	r.calls = append(r.calls, "sign "+objectPath+" "+contentType)
	if r.signErr != nil {
		return nil, r.signErr
	}
	return &models.SignedUpload{URL: "https://storage.test/" + objectPath + "?sig=x", Path: "gs://bucket/" + objectPath}, nil
}

func (r *recorder) Put(ctx context.Context, url, contentType string, data []byte) error {
	r.calls = append(r.calls, "put "+contentType)
	if r.puts == nil {
		r.puts = map[string][]byte{}
	}
	r.puts[url] = data
	return r.putErr
}

func (r *recorder) RegisterSource(ctx context.Context, subjectID, title, path string) (string, error) {
	r.calls = append(r.calls, "source "+title+" "+path)
	return "src-1", r.registerErr
}

func (r *recorder) RegisterSession(ctx context.Context, subjectID, title, path string) (string, error) {
	r.calls = append(r.calls, "session "+title+" "+path)
	return "ses-1", r.registerErr
}

func newTestOrchestrator(r *recorder) *Orchestrator {
	o := NewOrchestrator(r, r, r)
	o.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return o
}

func TestClassify(t *testing.T) {
	cases := map[string]Kind{
		"application/pdf":     KindPDF,
		"Application/PDF":     KindPDF,
		"audio/mpeg":          KindAudio,
		"audio/wav; codecs=1": KindAudio,
		"audio/x-m4a":         KindAudio,
	}
	for ct, want := range cases {
		if got, ok := Classify(ct); !ok || got != want {
			t.Fatalf("Classify(%q) = %q,%v", ct, got, ok)
		}
	}
	for _, ct := range []string{"", "text/plain", "video/mp4", "application/pdfx", "image/png"} {
		if _, ok := Classify(ct); ok {
			t.Fatalf("Classify(%q) should be unsupported", ct)
		}
	}
}

func TestObjectPath(t *testing.T) {
	got := ObjectPath("subj-1", time.UnixMilli(1700000000123), "../lectures/week 1.mp3")
	if got != "subj-1/1700000000123_week 1.mp3" {
		t.Fatalf("unexpected path %q", got)
	}
}

func TestUploadPDF(t *testing.T) {
	r := &recorder{}
	results, err := newTestOrchestrator(r).Upload(context.Background(), "subj-1", []File{
		{Name: "notes.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.4")},
	})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	want := []string{
		"sign subj-1/1700000000000_notes.pdf application/pdf",
		"put application/pdf",
		"source notes.pdf gs://bucket/subj-1/1700000000000_notes.pdf",
	}
	if strings.Join(r.calls, "\n") != strings.Join(want, "\n") {
		t.Fatalf("unexpected calls:\n%s", strings.Join(r.calls, "\n"))
	}
	if len(results) != 1 || results[0].RecordID != "src-1" || results[0].Kind != KindPDF {
		t.Fatalf("unexpected results %+v", results)
	}
}

func TestUploadAudioRegistersSession(t *testing.T) {
	r := &recorder{}
	results, err := newTestOrchestrator(r).Upload(context.Background(), "subj-1", []File{
		{Name: "lecture.mp3", ContentType: "audio/mpeg", Data: []byte("ID3")},
	})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if r.calls[2] != "session lecture.mp3 gs://bucket/subj-1/1700000000000_lecture.mp3" {
		t.Fatalf("unexpected register call %q", r.calls[2])
	}
	if results[0].RecordID != "ses-1" {
		t.Fatalf("unexpected results %+v", results)
	}
}

func TestUploadSingleUnsupportedHasNoSideEffects(t *testing.T) {
	r := &recorder{}
	_, err := newTestOrchestrator(r).Upload(context.Background(), "subj-1", []File{
		{Name: "notes.txt", ContentType: "text/plain"},
	})
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("expected ErrUnsupportedType, got %v", err)
	}
	if len(r.calls) != 0 {
		t.Fatalf("expected no calls, got %v", r.calls)
	}
}

func TestUploadBatchSkipsUnsupported(t *testing.T) {
	r := &recorder{}
	results, err := newTestOrchestrator(r).Upload(context.Background(), "subj-1", []File{
		{Name: "photo.png", ContentType: "image/png"},
		{Name: "notes.pdf", ContentType: "application/pdf"},
		{Name: "clip.mp4", ContentType: "video/mp4"},
	})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if len(r.calls) != 3 {
		t.Fatalf("expected only the pdf to be processed, got %v", r.calls)
	}
	if !results[0].Skipped || results[1].Skipped || !results[2].Skipped {
		t.Fatalf("unexpected skip flags %+v", results)
	}
}

func TestUploadStopsAtFirstFailure(t *testing.T) {
	r := &recorder{putErr: errors.New("403 SignatureDoesNotMatch")}
	results, err := newTestOrchestrator(r).Upload(context.Background(), "subj-1", []File{
		{Name: "a.pdf", ContentType: "application/pdf"},
		{Name: "b.pdf", ContentType: "application/pdf"},
	})
	if err == nil || !strings.Contains(err.Error(), "a.pdf: upload") {
		t.Fatalf("expected upload error for a.pdf, got %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("no file completed, got %+v", results)
	}
	for _, c := range r.calls {
		if strings.HasPrefix(c, "source") || strings.Contains(c, "b.pdf") {
			t.Fatalf("unexpected call after failure: %q", c)
		}
	}
}

func TestUploadSignFailureSkipsPut(t *testing.T) {
	r := &recorder{signErr: errors.New("boom")}
	_, err := newTestOrchestrator(r).Upload(context.Background(), "subj-1", []File{
		{Name: "a.mp3", ContentType: "audio/mpeg"},
	})
	if err == nil || !strings.Contains(err.Error(), "request upload url") {
		t.Fatalf("expected sign error, got %v", err)
	}
	if len(r.calls) != 1 {
		t.Fatalf("expected only the sign call, got %v", r.calls)
	}
}

type blockingIssuer struct {
	recorder
	entered chan struct{}
	release chan struct{}
}

func (b *blockingIssuer) SignUpload(ctx context.Context, objectPath, contentType string) (*models.SignedUpload, error) {
	close(b.entered)
	<-b.release
	return b.recorder.SignUpload(ctx, objectPath, contentType)
}

func TestUploadRejectsConcurrentCall(t *testing.T) {
	b := &blockingIssuer{entered: make(chan struct{}), release: make(chan struct{})}
	o := NewOrchestrator(b, &b.recorder, &b.recorder)
	files := []File{{Name: "a.pdf", ContentType: "application/pdf"}}

	done := make(chan error, 1)
	go func() {
		_, err := o.Upload(context.Background(), "subj-1", files)
		done <- err
	}()
	<-b.entered

	if _, err := o.Upload(context.Background(), "subj-1", files); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	close(b.release)
	if err := <-done; err != nil {
		t.Fatalf("first upload: %v", err)
	}
	if o.Busy() {
		t.Fatalf("flag should be cleared")
	}
}

func TestHTTPPutterSendsBytesAndContentType(t *testing.T) {
	var (
		gotMethod string
		gotType   string
		gotBody   string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotType = r.Header.Get("Content-Type")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
	}))
	defer srv.Close()

	if err := NewHTTPPutter().Put(context.Background(), srv.URL+"/obj?sig=1", "audio/mpeg", []byte("ID3data")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if gotMethod != http.MethodPut || gotType != "audio/mpeg" || gotBody != "ID3data" {
		t.Fatalf("unexpected request %s %s %q", gotMethod, gotType, gotBody)
	}
}

func TestHTTPPutterReportsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "<Error><Code>SignatureDoesNotMatch</Code></Error>", http.StatusForbidden)
	}))
	defer srv.Close()

	err := NewHTTPPutter().Put(context.Background(), srv.URL, "application/pdf", nil)
	if err == nil || !strings.Contains(err.Error(), "403") {
		t.Fatalf("expected 403 error, got %v", err)
	}
}
