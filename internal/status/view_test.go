package status

import (
	"testing"

	"github.com/ayush/thunder-dashboard/backend/internal/models"
)

func TestStatusText(t *testing.T) {
	cases := map[string]string{
		"queued":     "queued",
		"pending":    "preparing",
		"processing": "processing",
		"completed":  "done",
		"succeeded":  "done",
		"reasoning":  "done",
		"failed":     "failed",
		"extracting": "extracting",
		"":           "",
	}
	for in, want := range cases {
		if got := StatusText(in); got != want {
			t.Fatalf("StatusText(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPercent(t *testing.T) {
	if _, ok := Percent(Stats{}); ok {
		t.Fatalf("zero-chunk session must not report progress")
	}
	cases := []struct {
		stats Stats
		want  int
	}{
		{Stats{Total: 10, Completed: 6, Failed: 1}, 60},
		{Stats{Total: 3, Completed: 1}, 33},
		{Stats{Total: 3, Completed: 2}, 67},
		{Stats{Total: 8, Completed: 1}, 13},
		{Stats{Total: 4, Completed: 4}, 100},
	}
	for _, c := range cases {
		got, ok := Percent(c.stats)
		if !ok || got != c.want {
			t.Fatalf("Percent(%+v) = %d,%v want %d", c.stats, got, ok, c.want)
		}
	}
}

func TestPresentOmitsProgressForEmptySessions(t *testing.T) {
	views := Present([]DisplayItem{
		{ID: "ses-a", Kind: KindAudio, Status: "queued", Stats: &Stats{}},
		{ID: "src-a", Kind: KindPDF, Status: "processing"},
	})
	if views[0].Percent != nil {
		t.Fatalf("expected no percent for zero chunks")
	}
	if views[1].Stats != nil || views[1].Percent != nil {
		t.Fatalf("pdf items carry no stats")
	}
	if views[0].StatusText != "queued" || views[1].StatusText != "processing" {
		t.Fatalf("unexpected status text %+v", views)
	}
}

func TestAggregateCountsUnknownOnlyInTotal(t *testing.T) {
	st := Aggregate([]models.AudioChunk{{Status: "completed"}, {Status: "weird"}, {Status: "failed"}})
	if st.Total != 3 || st.Completed != 1 || st.Failed != 1 || st.Pending != 0 {
		t.Fatalf("unexpected %+v", st)
	}
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	src := models.Source{ID: "src-a", SubjectID: subject, IngestStatus: "queued"}
	items := Apply(nil, Event{Kind: Insert, Table: TableSources, Source: &src})

	updated := src
	updated.IngestStatus = "failed"
	next := Apply(items, Event{Kind: Update, Table: TableSources, Source: &updated})

	if items[0].Status != "queued" {
		t.Fatalf("input slice mutated")
	}
	if next[0].Status != "failed" {
		t.Fatalf("update not applied")
	}
}
