package models

import "time"

// LogEntry is one stored reading-log row.
type LogEntry struct {
	ID        int64     `json:"id"`
	Token     string    `json:"-"`
	Title     string    `json:"title"`
	URL       *string   `json:"url"`
	CreatedAt time.Time `json:"created_at"`
}

// SaveOutcome classifies what a save request did.
type SaveOutcome string

const (
	SaveOutcomeInserted  SaveOutcome = "inserted"
	SaveOutcomeDuplicate SaveOutcome = "duplicate"
	SaveOutcomeSkipped   SaveOutcome = "skipped"
)

// SaveResult reports the identity of the row a save resolved to.
// For a suppressed duplicate ID and CreatedAt describe the existing newest row.
// A skipped save carries neither.
type SaveResult struct {
	Outcome   SaveOutcome
	ID        int64
	CreatedAt time.Time
}

// Inserted reports whether a new row was written.
func (r SaveResult) Inserted() bool {
	return r.Outcome == SaveOutcomeInserted
}

// SaveLogRequest is the JSON body of POST /save.
type SaveLogRequest struct {
	Title string  `json:"title" example:"Chapter 1"`
	URL   *string `json:"url" example:"https://read.amazon.com/?asin=B00TEST"`
} // @name SaveLogRequest

// SaveLogResponse is returned by POST /save.
type SaveLogResponse struct {
	Status    string     `json:"status" example:"success"`
	ID        int64      `json:"id,omitempty" example:"1"`
	CreatedAt *time.Time `json:"created_at,omitempty" example:"2025-11-05T10:30:00Z"`
	Duplicate bool       `json:"duplicate,omitempty" example:"false"`
	Message   string     `json:"message,omitempty"`
} // @name SaveLogResponse

// ListLogsResponse is returned by GET /logs.
type ListLogsResponse struct {
	Status string     `json:"status" example:"success"`
	Logs   []LogEntry `json:"logs"`
} // @name ListLogsResponse
