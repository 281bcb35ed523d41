package report

import (
	"fmt"
	"math"

	"github.com/ayush/thunder-dashboard/backend/internal/models"
)

// Section keys in display order.
const (
	SectionProfessor = "professor_mentioned"
	SectionLikely    = "likely"
	SectionTraps     = "trap_warnings"
)

// Item is one rendered finding.
type Item struct {
	Title      string   `json:"title"`
	Why        string   `json:"why"`
	Confidence string   `json:"confidence,omitempty"`
	Badges     []string `json:"badges,omitempty"`
}

// Section is one of the three fixed report sections. Placeholder is set
// when the section has no items.
type Section struct {
	Key         string `json:"key"`
	Heading     string `json:"heading"`
	Items       []Item `json:"items"`
	Placeholder string `json:"placeholder,omitempty"`
}

// View is a loaded report ready for display.
type View struct {
	SessionID string    `json:"session_id"`
	Sections  []Section `json:"sections"`
}

// Build turns a stored report into its display form.
func Build(rep *models.SessionReport) View {
	body := rep.ReportJSON
	return View{
		SessionID: rep.SessionID,
		Sections: []Section{
			section(SectionProfessor, "Professor emphasis (likely on the exam)", "No particular emphasis", body.ProfessorMentioned),
			section(SectionLikely, "Likely exam content", "No likely content", body.Likely),
			section(SectionTraps, "Traps and misconceptions", "No trap warnings", body.TrapWarnings),
		},
	}
}

func section(key, heading, none string, items []models.ReportItem) Section {
	s := Section{Key: key, Heading: heading, Items: make([]Item, 0, len(items))}
	for _, it := range items {
		out := Item{Title: it.Title, Why: it.Why, Confidence: ConfidenceLabel(it.Confidence)}
		for _, c := range it.Citations {
			out.Badges = append(out.Badges, Badge(c))
		}
		s.Items = append(s.Items, out)
	}
	if len(s.Items) == 0 {
		s.Placeholder = none
	}
	return s
}

// ConfidenceLabel formats a [0,1] confidence as "Conf: N%". A zero
// confidence has no label.
func ConfidenceLabel(c float64) string {
	if c == 0 {
		return ""
	}
	return fmt.Sprintf("Conf: %d%%", int(math.Round(c*100)))
}

// Badge labels a citation by page range when known, else by chunk id.
func Badge(c models.Citation) string {
	if c.PageStart != 0 {
		if c.PageEnd != 0 && c.PageEnd != c.PageStart {
			return fmt.Sprintf("p.%d-%d", c.PageStart, c.PageEnd)
		}
		return fmt.Sprintf("p.%d", c.PageStart)
	}
	id := c.ChunkID
	if len(id) > 8 {
		id = id[:8]
	}
	return "Ref: " + id + "..."
}
