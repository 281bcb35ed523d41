package report

import (
	"context"

	"github.com/ayush/thunder-dashboard/backend/internal/models"
)

// State of a Viewer.
type State int

const (
	Closed State = iota
	Loading
	Loaded
	Failed
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	case Failed:
		return "error"
	}
	return "closed"
}

// Fetcher reads the stored report of a session.
type Fetcher interface {
	GetReport(ctx context.Context, sessionID string) (*models.SessionReport, error)
}

// Viewer shows the report of one session at a time. Every Open fetches
// again; nothing is cached between opens.
type Viewer struct {
	fetch Fetcher

	state     State
	sessionID string
	view      View
	errMsg    string
}

func NewViewer(fetch Fetcher) *Viewer {
	return &Viewer{fetch: fetch}
}

// Open loads the report of sessionID. On failure the viewer is left in
// the Failed state with the fetch error message, which is also returned.
func (v *Viewer) Open(ctx context.Context, sessionID string) error {
	v.sessionID = sessionID
	v.state = Loading
	v.view = View{}
	v.errMsg = ""

	rep, err := v.fetch.GetReport(ctx, sessionID)
	if err != nil {
		v.state = Failed
		v.errMsg = err.Error()
		return err
	}
	v.view = Build(rep)
	v.state = Loaded
	return nil
}

// Close discards the current report.
func (v *Viewer) Close() {
	*v = Viewer{fetch: v.fetch}
}

func (v *Viewer) State() State      { return v.state }
func (v *Viewer) SessionID() string { return v.sessionID }
func (v *Viewer) Err() string       { return v.errMsg }

// View returns the loaded report; ok is false unless the state is Loaded.
func (v *Viewer) View() (View, bool) {
	return v.view, v.state == Loaded
}
