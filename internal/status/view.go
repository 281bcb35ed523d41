package status

import (
	"math"
	"time"

	"github.com/ayush/thunder-dashboard/backend/internal/models"
)

// ItemView is a DisplayItem with its display-only fields resolved.
type ItemView struct {
	ID         string            `json:"id"`
	Kind       ItemKind          `json:"kind"`
	Title      string            `json:"title"`
	Status     string            `json:"status"`
	StatusText string            `json:"status_text"`
	CreatedAt  time.Time         `json:"created_at"`
	Stats      *Stats            `json:"stats,omitempty"`
	Percent    *int              `json:"percent,omitempty"`
	Flagged    bool              `json:"flagged"`
	Logs       []models.LogEntry `json:"logs,omitempty"`
	Selected   bool              `json:"selected"`
}

// StatusText maps a backend status to the label shown to users.
func StatusText(status string) string {
	switch status {
	case models.StatusQueued:
		return "queued"
	case models.StatusPending:
		return "preparing"
	case models.StatusProcessing:
		return "processing"
	case models.StatusCompleted, models.StatusSucceeded, models.StatusReasoning:
		// reasoning: the report is still aggregating but already viewable
		return "done"
	case models.StatusFailed:
		return "failed"
	}
	return status
}

// Percent returns round(100*completed/total). ok is false when the session
// has no chunks and no progress bar should be drawn.
func Percent(s Stats) (pct int, ok bool) {
	if s.Total == 0 {
		return 0, false
	}
	return int(math.Round(100 * float64(s.Completed) / float64(s.Total))), true
}

// Present resolves the display fields of every item.
func Present(items []DisplayItem) []ItemView {
	views := make([]ItemView, 0, len(items))
	for _, it := range items {
		v := ItemView{
			ID:         it.ID,
			Kind:       it.Kind,
			Title:      it.Title,
			Status:     it.Status,
			StatusText: StatusText(it.Status),
			CreatedAt:  it.CreatedAt,
			Stats:      it.Stats,
			Logs:       newestFirst(it.Logs),
			Selected:   it.Selected,
		}
		if it.Stats != nil {
			if pct, ok := Percent(*it.Stats); ok {
				v.Percent = &pct
			}
			v.Flagged = it.Stats.Failed > 0
		}
		views = append(views, v)
	}
	return views
}

func newestFirst(logs []models.LogEntry) []models.LogEntry {
	if len(logs) == 0 {
		return nil
	}
	out := make([]models.LogEntry, len(logs))
	for i, l := range logs {
		out[len(logs)-1-i] = l
	}
	return out
}
