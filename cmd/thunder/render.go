package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ayush/thunder-dashboard/backend/internal/models"
	"github.com/ayush/thunder-dashboard/backend/internal/report"
	"github.com/ayush/thunder-dashboard/backend/internal/status"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("252")).
			Background(lipgloss.Color("236")).
			Padding(0, 1)

	pdfTag = lipgloss.NewStyle().
		Foreground(lipgloss.Color("214")).
		Bold(true)

	audioTag = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	doneStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	failedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	busyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("242"))

	noticeStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("252")).
			Padding(0, 1)

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("255")).
			Background(lipgloss.Color("25")).
			Padding(0, 1)

	badgeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Border(lipgloss.NormalBorder(), false, true).
			BorderForeground(lipgloss.Color("240"))
)

const barWidth = 20

func renderItems(items []status.ItemView) string {
	if len(items) == 0 {
		return dimStyle.Render("No files yet. Upload a PDF or a lecture recording.") + "\n"
	}
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("%-3s %-5s %-36s %-11s %s", "SEL", "KIND", "ID", "STATUS", "TITLE")))
	b.WriteString("\n")
	for _, it := range items {
		sel := "[ ]"
		if it.Kind == status.KindPDF {
			sel = "   "
		} else if it.Selected {
			sel = "[x]"
		}
		tag := pdfTag.Render(fmt.Sprintf("%-5s", "PDF"))
		if it.Kind == status.KindAudio {
			tag = audioTag.Render(fmt.Sprintf("%-5s", "AUDIO"))
		}
		fmt.Fprintf(&b, "%s %s %-36s %s %s\n", sel, tag, it.ID, statusStyle(it.StatusText).Render(fmt.Sprintf("%-11s", it.StatusText)), it.Title)

		if it.Percent != nil {
			line := "    " + progressBar(*it.Percent) + fmt.Sprintf(" %3d%%", *it.Percent)
			if it.Stats != nil {
				line += dimStyle.Render(fmt.Sprintf("  %d/%d chunks", it.Stats.Completed, it.Stats.Total))
			}
			if it.Flagged {
				line += " " + failedStyle.Render(fmt.Sprintf("%d failed", it.Stats.Failed))
			}
			b.WriteString(line + "\n")
		}
		if len(it.Logs) > 0 {
			l := it.Logs[0]
			b.WriteString("    " + dimStyle.Render(l.TS+" "+l.Msg) + "\n")
		}
	}
	return b.String()
}

func statusStyle(text string) lipgloss.Style {
	switch text {
	case "done":
		return doneStyle
	case "failed":
		return failedStyle
	case "queued", "preparing", "processing":
		return busyStyle
	}
	return dimStyle
}

func progressBar(pct int) string {
	n := pct * barWidth / 100
	return doneStyle.Render(strings.Repeat("█", n)) + dimStyle.Render(strings.Repeat("░", barWidth-n))
}

func renderReport(title string, v report.View) string {
	var b strings.Builder
	if title == "" {
		title = "Analysis report"
	}
	b.WriteString(titleStyle.Render(title) + "\n")
	b.WriteString(dimStyle.Render("session "+v.SessionID) + "\n\n")
	for _, s := range v.Sections {
		b.WriteString(sectionStyle.Render(s.Heading) + "\n")
		if s.Placeholder != "" {
			b.WriteString("  " + dimStyle.Italic(true).Render(s.Placeholder) + "\n\n")
			continue
		}
		for _, it := range s.Items {
			head := "  " + lipgloss.NewStyle().Bold(true).Render(it.Title)
			if it.Confidence != "" {
				head += "  " + dimStyle.Render(it.Confidence)
			}
			b.WriteString(head + "\n")
			b.WriteString(lipgloss.NewStyle().PaddingLeft(4).Width(88).Render(it.Why) + "\n")
			if len(it.Badges) > 0 {
				badges := make([]string, len(it.Badges))
				for i, badge := range it.Badges {
					badges[i] = badgeStyle.Render(badge)
				}
				b.WriteString("    " + strings.Join(badges, " ") + "\n")
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

func renderSubjects(subjects []models.Subject) string {
	if len(subjects) == 0 {
		return dimStyle.Render("No subjects yet.") + "\n"
	}
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("%-36s %s", "ID", "NAME")) + "\n")
	for _, s := range subjects {
		fmt.Fprintf(&b, "%-36s %s\n", s.ID, s.Name)
	}
	return b.String()
}

func renderNotice(msg string) string {
	return noticeStyle.Render(msg) + "\n"
}
