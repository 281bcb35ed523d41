package main

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ayush/thunder-dashboard/backend/internal/models"
	"github.com/ayush/thunder-dashboard/backend/internal/realtime"
	"github.com/ayush/thunder-dashboard/backend/internal/report"
	"github.com/ayush/thunder-dashboard/backend/internal/status"
)

func TestParseCommand(t *testing.T) {
	cases := []struct {
		line string
		want realtime.Command
		ok   bool
	}{
		{"t ses-1", realtime.Command{Type: realtime.CmdToggle, ID: "ses-1"}, true},
		{"  d src-1 ", realtime.Command{Type: realtime.CmdDelete, ID: "src-1"}, true},
		{"g", realtime.Command{Type: realtime.CmdGenerate}, true},
		{"g final", realtime.Command{Type: realtime.CmdGenerate, ExamWindow: "final"}, true},
		{"r", realtime.Command{Type: realtime.CmdRefresh}, true},
		{"t", realtime.Command{}, false},
		{"", realtime.Command{}, false},
		{"x 1", realtime.Command{}, false},
	}
	for _, c := range cases {
		got, ok := parseCommand(c.line)
		if ok != c.ok || (ok && got != c.want) {
			t.Fatalf("parseCommand(%q) = %+v,%v", c.line, got, ok)
		}
	}
}

func TestContentType(t *testing.T) {
	if ct := contentType("notes.PDF", nil); ct != "application/pdf" {
		t.Fatalf("unexpected type %q", ct)
	}
	if ct := contentType("blob", []byte("%PDF-1.7\n")); ct != "application/pdf" {
		t.Fatalf("sniffing failed: %q", ct)
	}
}

func TestRenderItems(t *testing.T) {
	pct := 60
	out := renderItems([]status.ItemView{
		{ID: "ses-1", Kind: status.KindAudio, Title: "Week 1", StatusText: "processing", Selected: true,
			Stats: &status.Stats{Total: 10, Completed: 6, Failed: 1}, Percent: &pct, Flagged: true,
			Logs: []models.LogEntry{{TS: "10:01", Msg: "chunk 6 done"}}},
		{ID: "src-1", Kind: status.KindPDF, Title: "Textbook", StatusText: "queued"},
	})
	for _, want := range []string{"[x]", "Week 1", "60%", "6/10 chunks", "1 failed", "chunk 6 done", "Textbook", "queued"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
	if !strings.Contains(renderItems(nil), "No files yet") {
		t.Fatalf("empty list needs a hint")
	}
}

func TestRenderReport(t *testing.T) {
	v := report.Build(&models.SessionReport{
		SessionID: "ses-1",
		ReportJSON: models.ReportBody{
			Likely: []models.ReportItem{{Title: "Deadlock", Why: "Covered at length", Confidence: 0.5,
				Citations: []models.Citation{{ChunkID: "c", PageStart: 3, PageEnd: 4}}}},
		},
	})
	out := renderReport("Lecture 3", v)
	for _, want := range []string{"Lecture 3", "Deadlock", "Conf: 50%", "p.3-4", "No particular emphasis", "No trap warnings"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

type fakePDF struct {
	body string
	err  error
}

func (f fakePDF) DownloadReportPDF(ctx context.Context, sessionID string, w io.Writer) error {
	io.WriteString(w, f.body)
	return f.err
}

func TestSavePDF(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "report.pdf")

	if err := savePDF(context.Background(), fakePDF{body: "%PDF-1.3 partial", err: errors.New("connection reset")}, "ses-1", dst); err == nil {
		t.Fatalf("expected download error")
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("failed download must leave no files, found %d", len(entries))
	}

	if err := savePDF(context.Background(), fakePDF{body: "%PDF-1.3 full"}, "ses-1", dst); err != nil {
		t.Fatalf("save: %v", err)
	}
	b, err := os.ReadFile(dst)
	if err != nil || string(b) != "%PDF-1.3 full" {
		t.Fatalf("unexpected file %q %v", b, err)
	}
	if entries, _ = os.ReadDir(dir); len(entries) != 1 {
		t.Fatalf("temp file left behind: %d entries", len(entries))
	}
}
