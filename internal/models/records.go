package models

import "time"

// Processing states written by the worker. Unknown values are kept verbatim.
const (
	StatusQueued     = "queued"
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusExtracting = "extracting"
	StatusCompleted  = "completed"
	StatusReasoning  = "reasoning"
	StatusSucceeded  = "succeeded"
	StatusFailed     = "failed"
)

// Subject groups the sources and sessions of one course.
type Subject struct {
	ID        string    `json:"subject_id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Source is an uploaded PDF, ingested by worker phase 1.
type Source struct {
	ID           string    `json:"source_id"`
	UserID       string    `json:"user_id"`
	SubjectID    string    `json:"subject_id"`
	Kind         string    `json:"kind"`
	Title        string    `json:"title"`
	StoragePath  string    `json:"gcs_pdf_url"`
	IngestStatus string    `json:"ingest_status"`
	CreatedAt    time.Time `json:"created_at"`
}

// LogEntry is one line of a session's append-only processing log.
type LogEntry struct {
	TS  string `json:"ts"`
	Msg string `json:"msg"`
}

// Session is an uploaded lecture recording, processed by worker phases 2-4.
type Session struct {
	ID         string     `json:"session_id"`
	UserID     string     `json:"user_id"`
	SubjectID  string     `json:"subject_id"`
	Title      string     `json:"title"`
	ExamWindow string     `json:"exam_window"`
	AudioPath  string     `json:"gcs_audio_url"`
	Status     string     `json:"status"`
	Logs       []LogEntry `json:"logs"`
	CreatedAt  time.Time  `json:"created_at"`
}

// AudioChunk is a slice of a session produced by the split phase.
type AudioChunk struct {
	ID             string  `json:"chunk_id"`
	SessionID      string  `json:"session_id"`
	ChunkIndex     int     `json:"chunk_index"`
	StartOffsetSec float64 `json:"start_offset_sec"`
	DurationSec    float64 `json:"duration_sec"`
	Status         string  `json:"status"`
}

// SignedUpload is a time-limited write URL plus the canonical locator of the
// object it writes.
type SignedUpload struct {
	URL  string `json:"url"`
	Path string `json:"path"`
}

// SignRequest is the JSON body for POST /api/uploads/sign.
type SignRequest struct {
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
}

// RegisterUploadRequest is the JSON body for registering an uploaded object.
type RegisterUploadRequest struct {
	Title      string `json:"title"`
	Path       string `json:"path"`
	ExamWindow string `json:"exam_window,omitempty"`
}

// GenerateRequest is the JSON body for POST /api/subjects/{id}/reports.
type GenerateRequest struct {
	SessionIDs []string `json:"session_ids"`
	ExamWindow string   `json:"exam_window,omitempty"`
}

// CreateSubjectRequest is the JSON body for POST /api/subjects.
type CreateSubjectRequest struct {
	Name string `json:"name"`
}
