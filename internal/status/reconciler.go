package status

import (
	"context"
	"errors"
	"fmt"

	"github.com/ayush/thunder-dashboard/backend/internal/models"
)

// ErrUnknownItem is returned for operations on ids not in the list.
var ErrUnknownItem = errors.New("unknown item")

// Loader reads the rows a dashboard is built from.
type Loader interface {
	ListSources(ctx context.Context, subjectID string) ([]models.Source, error)
	ListSessions(ctx context.Context, subjectID string) ([]models.Session, error)
	ListChunks(ctx context.Context, sessionIDs []string) ([]models.AudioChunk, error)
}

// Deleter removes a source or session on the server.
type Deleter interface {
	DeleteItem(ctx context.Context, kind ItemKind, id string) error
}

// Reconciler keeps the DisplayItem list of one subject in sync with change
// events. It is owned by a single goroutine and is not safe for concurrent
// use.
type Reconciler struct {
	subjectID string
	loader    Loader

	items   []DisplayItem
	loaded  bool
	pending []Event
}

func NewReconciler(subjectID string, loader Loader) *Reconciler {
	return &Reconciler{subjectID: subjectID, loader: loader, items: []DisplayItem{}}
}

// Load fetches the initial snapshot and then replays the events that
// arrived while it was loading.
func (r *Reconciler) Load(ctx context.Context) error {
	sources, err := r.loader.ListSources(ctx, r.subjectID)
	if err != nil {
		return fmt.Errorf("load sources: %w", err)
	}
	sessions, err := r.loader.ListSessions(ctx, r.subjectID)
	if err != nil {
		return fmt.Errorf("load sessions: %w", err)
	}

	var chunks []models.AudioChunk
	if len(sessions) > 0 {
		ids := make([]string, len(sessions))
		for i, s := range sessions {
			ids[i] = s.ID
		}
		if chunks, err = r.loader.ListChunks(ctx, ids); err != nil {
			return fmt.Errorf("load chunks: %w", err)
		}
	}

	selected := r.Selected()
	r.items = Snapshot(sources, sessions, chunks)
	for _, id := range selected {
		if idx := indexOf(r.items, id); idx >= 0 {
			r.items[idx].Selected = true
		}
	}
	r.loaded = true

	pending := r.pending
	r.pending = nil
	for _, ev := range pending {
		if _, err := r.Handle(ctx, ev); err != nil {
			return fmt.Errorf("replay %s %s: %w", ev.Kind, ev.Table, err)
		}
	}
	return nil
}

// Reset drops the current list so the next Load starts from scratch.
// Selection flags are carried over to the reloaded items.
func (r *Reconciler) Reset() {
	r.loaded = false
	r.pending = nil
}

// Loaded reports whether the snapshot has been applied.
func (r *Reconciler) Loaded() bool { return r.loaded }

// Handle applies a change event. Events received before Load are buffered.
// It reports whether the list changed.
func (r *Reconciler) Handle(ctx context.Context, ev Event) (bool, error) {
	if !r.loaded {
		r.pending = append(r.pending, ev)
		return false, nil
	}

	if ev.Table == TableChunks {
		sessionID := ev.SessionID()
		if indexOf(r.items, sessionID) < 0 {
			return false, nil
		}
		chunks, err := r.loader.ListChunks(ctx, []string{sessionID})
		if err != nil {
			return false, fmt.Errorf("reload chunks of %s: %w", sessionID, err)
		}
		if chunks == nil {
			chunks = []models.AudioChunk{}
		}
		ev.Chunks = chunks
	} else if sid := ev.SubjectID(); sid != r.subjectID {
		return false, nil
	}

	if ev.Table == TableSessions && ev.Kind != Delete && ev.Session != nil && indexOf(r.items, ev.Session.ID) < 0 {
		return r.addSession(ctx, ev)
	}

	r.items = Apply(r.items, ev)
	return true, nil
}

// addSession inserts a session not yet in the list together with its
// current chunk set, which may predate the session event.
func (r *Reconciler) addSession(ctx context.Context, ev Event) (bool, error) {
	chunks, err := r.loader.ListChunks(ctx, []string{ev.Session.ID})
	if err != nil {
		return false, fmt.Errorf("load chunks of %s: %w", ev.Session.ID, err)
	}
	r.items = Apply(r.items, ev)
	if len(chunks) > 0 {
		r.items = Apply(r.items, Event{
			Kind:   Update,
			Table:  TableChunks,
			Chunk:  &models.AudioChunk{SessionID: ev.Session.ID},
			Chunks: chunks,
		})
	}
	return true, nil
}

// Items returns a copy of the current list.
func (r *Reconciler) Items() []DisplayItem {
	out := make([]DisplayItem, len(r.items))
	copy(out, r.items)
	return out
}

// ToggleSelect flips the selection of an audio item and returns the new
// state. PDFs cannot be selected.
func (r *Reconciler) ToggleSelect(id string) (bool, error) {
	idx := indexOf(r.items, id)
	if idx < 0 {
		return false, ErrUnknownItem
	}
	if r.items[idx].Kind != KindAudio {
		return false, nil
	}
	r.items[idx].Selected = !r.items[idx].Selected
	return r.items[idx].Selected, nil
}

// Selected returns the ids of selected items in list order.
func (r *Reconciler) Selected() []string {
	var ids []string
	for _, it := range r.items {
		if it.Selected {
			ids = append(ids, it.ID)
		}
	}
	return ids
}

func (r *Reconciler) ClearSelection() {
	for i := range r.items {
		r.items[i].Selected = false
	}
}

// Remove drops the item locally first and then asks the server to delete
// it. A failed remote delete is returned but the item stays removed.
func (r *Reconciler) Remove(ctx context.Context, id string, d Deleter) error {
	idx := indexOf(r.items, id)
	if idx < 0 {
		return ErrUnknownItem
	}
	kind := r.items[idx].Kind
	r.items = append(r.items[:idx:idx], r.items[idx+1:]...)

	if err := d.DeleteItem(ctx, kind, id); err != nil {
		return fmt.Errorf("delete %s %s: %w", kind, id, err)
	}
	return nil
}
