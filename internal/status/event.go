package status

import "github.com/ayush/thunder-dashboard/backend/internal/models"

// EventKind mirrors the trigger operation that produced a change.
type EventKind string

const (
	Insert EventKind = "INSERT"
	Update EventKind = "UPDATE"
	Delete EventKind = "DELETE"
)

// Table names the collection a change event belongs to.
type Table string

const (
	TableSources  Table = "sources"
	TableSessions Table = "sessions"
	TableChunks   Table = "audio_chunks"
)

// Event is one change to one row. Exactly one of Source, Session or Chunk
// is set, matching Table. For deletes the row is the deleted (old) row.
type Event struct {
	Kind    EventKind
	Table   Table
	Source  *models.Source
	Session *models.Session
	Chunk   *models.AudioChunk

	// Chunks is the complete chunk set of Chunk.SessionID at the time the
	// event was handled. Apply ignores chunk events without it.
	Chunks []models.AudioChunk
}

// SubjectID returns the subject a source or session event is scoped to.
// Chunk events carry no subject and return "".
func (e Event) SubjectID() string {
	switch {
	case e.Source != nil:
		return e.Source.SubjectID
	case e.Session != nil:
		return e.Session.SubjectID
	}
	return ""
}

// SessionID returns the owning session of a chunk event.
func (e Event) SessionID() string {
	if e.Chunk != nil {
		return e.Chunk.SessionID
	}
	return ""
}
