package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ayush/thunder-dashboard/backend/internal/models"
	"github.com/ayush/thunder-dashboard/backend/internal/status"
	"github.com/ayush/thunder-dashboard/backend/internal/store"
)

var errNoID = errors.New("notification carries no id")

// Change is one row change as published by thunder_notify_change(). It
// names the row but does not carry it.
type Change struct {
	Kind      status.EventKind `json:"type"`
	Table     status.Table     `json:"table"`
	ID        string           `json:"id"`
	SubjectID string           `json:"subject_id"`
	SessionID string           `json:"session_id"`
}

// Decode parses a change notification.
func Decode(payload []byte) (Change, error) {
	var c Change
	if err := json.Unmarshal(payload, &c); err != nil {
		return Change{}, fmt.Errorf("decode notification: %w", err)
	}
	switch c.Kind {
	case status.Insert, status.Update, status.Delete:
	default:
		return Change{}, fmt.Errorf("unknown change type %q", c.Kind)
	}
	switch c.Table {
	case status.TableSources, status.TableSessions:
	case status.TableChunks:
		if c.SessionID == "" {
			return Change{}, fmt.Errorf("%s %s: no session id", c.Kind, c.Table)
		}
	default:
		return Change{}, fmt.Errorf("unknown table %q", c.Table)
	}
	if c.ID == "" {
		return Change{}, fmt.Errorf("%s %s: %w", c.Kind, c.Table, errNoID)
	}
	return c, nil
}

// Event builds an event from the identifiers alone. That is all a delete
// or a chunk change needs: deletes only match on id and chunk changes
// trigger a reload of the session's chunk set.
func (c Change) Event() status.Event {
	ev := status.Event{Kind: c.Kind, Table: c.Table}
	switch c.Table {
	case status.TableSources:
		ev.Source = &models.Source{ID: c.ID, SubjectID: c.SubjectID}
	case status.TableSessions:
		ev.Session = &models.Session{ID: c.ID, SubjectID: c.SubjectID}
	case status.TableChunks:
		ev.Chunk = &models.AudioChunk{ID: c.ID, SessionID: c.SessionID}
	}
	return ev
}

// RowFetcher reads the current state of a changed row.
type RowFetcher interface {
	SourceByID(ctx context.Context, id string) (*models.Source, error)
	SessionByID(ctx context.Context, id string) (*models.Session, error)
}

// Resolve turns a change into a publishable event, fetching the row for
// source and session inserts and updates. It reports false when the row is
// already gone; its delete notification follows.
func Resolve(ctx context.Context, rows RowFetcher, c Change) (status.Event, bool, error) {
	ev := c.Event()
	if c.Kind == status.Delete {
		return ev, true, nil
	}

	var err error
	switch c.Table {
	case status.TableSources:
		ev.Source, err = rows.SourceByID(ctx, c.ID)
	case status.TableSessions:
		ev.Session, err = rows.SessionByID(ctx, c.ID)
	}
	if errors.Is(err, store.ErrNotFound) {
		return status.Event{}, false, nil
	}
	if err != nil {
		return status.Event{}, false, fmt.Errorf("fetch %s %s: %w", c.Table, c.ID, err)
	}
	return ev, true, nil
}
