package models

import (
	"time"

	"github.com/google/uuid"
)

type Outcome string

const (
	OutcomeSuccess            Outcome = "success"
	OutcomeUnsupportedType    Outcome = "unsupported_file_type"
	OutcomeServiceUnreachable Outcome = "service_unreachable"
	OutcomeServiceError       Outcome = "service_error"
	OutcomeTimeout            Outcome = "timeout"
	OutcomeFailed             Outcome = "failed"
)

// ExtractionRecord is one audited submission.
type ExtractionRecord struct {
	ID           string        `json:"id"`
	WorkspaceID  string        `json:"workspace_id"`
	SessionID    string        `json:"session_id,omitempty"`
	Filename     string        `json:"filename"`
	Template     string        `json:"template"`
	Outcome      Outcome       `json:"outcome"`
	FieldsFound  int           `json:"fields_found"`
	FieldsTotal  int           `json:"fields_total"`
	ErrorMessage string        `json:"error_message,omitempty"`
	Duration     time.Duration `json:"duration"`
	CreatedAt    time.Time     `json:"created_at"`
}

func NewExtractionRecord(workspaceID, filename, template string, outcome Outcome) *ExtractionRecord {
	return &ExtractionRecord{
		ID:          uuid.New().String(),
		WorkspaceID: workspaceID,
		Filename:    filename,
		Template:    template,
		Outcome:     outcome,
		CreatedAt:   time.Now().UTC(),
	}
}
