package status

import (
	"sort"
	"time"

	"github.com/ayush/thunder-dashboard/backend/internal/models"
)

// ItemKind discriminates the two kinds of uploads shown on a dashboard.
type ItemKind string

const (
	KindPDF   ItemKind = "pdf"
	KindAudio ItemKind = "audio"
)

// Stats counts the chunk states of one audio session.
type Stats struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
}

// DisplayItem is the unified row for a Source or a Session.
type DisplayItem struct {
	ID          string            `json:"id"`
	Kind        ItemKind          `json:"kind"`
	Title       string            `json:"title"`
	Status      string            `json:"status"`
	StoragePath string            `json:"path"`
	CreatedAt   time.Time         `json:"created_at"`
	Stats       *Stats            `json:"stats,omitempty"`
	Logs        []models.LogEntry `json:"logs,omitempty"`
	Selected    bool              `json:"selected"`
}

// Aggregate counts chunk states. Unrecognised states only add to Total.
func Aggregate(chunks []models.AudioChunk) Stats {
	s := Stats{Total: len(chunks)}
	for _, c := range chunks {
		switch c.Status {
		case models.StatusPending:
			s.Pending++
		case models.StatusProcessing:
			s.Processing++
		case models.StatusCompleted:
			s.Completed++
		case models.StatusFailed:
			s.Failed++
		}
	}
	return s
}

// Apply folds one event into items and returns the new list. The input
// slice is not modified. The result holds at most one item per id and is
// ordered by CreatedAt, newest first.
func Apply(items []DisplayItem, ev Event) []DisplayItem {
	out := make([]DisplayItem, len(items))
	copy(out, items)

	switch ev.Table {
	case TableSources:
		if ev.Source == nil {
			return out
		}
		out = applyRow(out, ev.Kind, sourceItem(*ev.Source), func(it *DisplayItem) {
			it.Status = ev.Source.IngestStatus
			if ev.Source.Title != "" {
				it.Title = ev.Source.Title
			}
		})
	case TableSessions:
		if ev.Session == nil {
			return out
		}
		out = applyRow(out, ev.Kind, sessionItem(*ev.Session), func(it *DisplayItem) {
			it.Status = ev.Session.Status
			it.Logs = ev.Session.Logs
		})
	case TableChunks:
		if ev.Chunk == nil || ev.Chunks == nil {
			return out
		}
		idx := indexOf(out, ev.Chunk.SessionID)
		if idx < 0 || out[idx].Kind != KindAudio {
			return out
		}
		stats := Aggregate(ev.Chunks)
		out[idx].Stats = &stats
	}

	sortItems(out)
	return out
}

func applyRow(items []DisplayItem, kind EventKind, row DisplayItem, patch func(*DisplayItem)) []DisplayItem {
	idx := indexOf(items, row.ID)
	switch kind {
	case Delete:
		if idx >= 0 {
			items = append(items[:idx:idx], items[idx+1:]...)
		}
	case Insert, Update:
		if idx >= 0 {
			patch(&items[idx])
			return items
		}
		items = append([]DisplayItem{row}, items...)
	}
	return items
}

// Snapshot builds the initial list by folding synthetic insert events for
// every source and session, then one chunk-set event per session.
func Snapshot(sources []models.Source, sessions []models.Session, chunks []models.AudioChunk) []DisplayItem {
	var items []DisplayItem
	for i := range sources {
		items = Apply(items, Event{Kind: Insert, Table: TableSources, Source: &sources[i]})
	}
	for i := range sessions {
		items = Apply(items, Event{Kind: Insert, Table: TableSessions, Session: &sessions[i]})
	}

	bySession := make(map[string][]models.AudioChunk)
	for _, c := range chunks {
		bySession[c.SessionID] = append(bySession[c.SessionID], c)
	}
	for sessionID, set := range bySession {
		items = Apply(items, Event{
			Kind:   Insert,
			Table:  TableChunks,
			Chunk:  &models.AudioChunk{SessionID: sessionID},
			Chunks: set,
		})
	}
	if items == nil {
		items = []DisplayItem{}
	}
	return items
}

func sourceItem(s models.Source) DisplayItem {
	return DisplayItem{
		ID:          s.ID,
		Kind:        KindPDF,
		Title:       s.Title,
		Status:      s.IngestStatus,
		StoragePath: s.StoragePath,
		CreatedAt:   s.CreatedAt,
	}
}

func sessionItem(s models.Session) DisplayItem {
	return DisplayItem{
		ID:          s.ID,
		Kind:        KindAudio,
		Title:       s.Title,
		Status:      s.Status,
		StoragePath: s.AudioPath,
		CreatedAt:   s.CreatedAt,
		Stats:       &Stats{},
		Logs:        s.Logs,
	}
}

func indexOf(items []DisplayItem, id string) int {
	for i := range items {
		if items[i].ID == id {
			return i
		}
	}
	return -1
}

func sortItems(items []DisplayItem) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
}
