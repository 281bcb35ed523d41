package models

// Citation points an item back at the chunk (and pages) it came from.
type Citation struct {
	ChunkID   string `json:"chunk_id"  bson:"chunk_id"`
	PageStart int    `json:"page_start,omitempty" bson:"page_start,omitempty"`
	PageEnd   int    `json:"page_end,omitempty"   bson:"page_end,omitempty"`
}

// ReportItem is a single exam-likely finding.
type ReportItem struct {
	Title      string     `json:"title"      bson:"title"`
	Why        string     `json:"why"        bson:"why"`
	Confidence float64    `json:"confidence" bson:"confidence"`
	Citations  []Citation `json:"citations"  bson:"citations"`
}

// ReportBody is the aggregate produced by worker phase 4.
type ReportBody struct {
	ProfessorMentioned []ReportItem `json:"professor_mentioned" bson:"professor_mentioned"`
	Likely             []ReportItem `json:"likely"              bson:"likely"`
	TrapWarnings       []ReportItem `json:"trap_warnings"       bson:"trap_warnings"`
}

// SessionReport is stored in MongoDB by the worker and only read here.
type SessionReport struct {
	SessionID  string     `json:"session_id"  bson:"session_id"`
	ReportJSON ReportBody `json:"report_json" bson:"report_json"`
}
