package session

import (
	"github.com/google/uuid"
	"github.com/kdimtricp/formfill/internal/extraction"
	"github.com/kdimtricp/formfill/internal/templates"
)

// State is the template selection and the current extraction of one user.
// The session id is non-empty exactly when a result is held. State is not
// safe for concurrent use; Workspace serializes access to it.
type State struct {
	registry   *templates.Registry
	templateID string
	result     *extraction.Result
	sessionID  string
	newID      func() string
}

func NewState(registry *templates.Registry) *State {
	return &State{
		registry:   registry,
		templateID: registry.DefaultID(),
		newID:      NewSessionID,
	}
}

// NewSessionID returns a time-ordered opaque token used to correlate a
// download with the upload that produced it. It is not a credential.
func NewSessionID() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return "doc_" + id.String()
}

// SetTemplate selects a template. Unknown ids select the default template;
// the stored id and whether id was known are returned. The held result is
// kept.
func (s *State) SetTemplate(id string) (string, bool) {
	d, known := s.registry.Resolve(id)
	s.templateID = d.ID
	return s.templateID, known
}

// RecordResult replaces any held result and issues a new session id. A nil
// result clears the state and returns "".
func (s *State) RecordResult(result *extraction.Result) string {
	if result == nil {
		s.Clear()
		return ""
	}
	s.result = result
	s.sessionID = s.newID()
	return s.sessionID
}

func (s *State) Clear() {
	s.result = nil
	s.sessionID = ""
}

func (s *State) Template() string {
	return s.templateID
}

func (s *State) Fields() []templates.FieldDescriptor {
	return s.registry.FieldsFor(s.templateID)
}

func (s *State) Result() *extraction.Result {
	return s.result
}

func (s *State) SessionID() string {
	return s.sessionID
}

func (s *State) HasResult() bool {
	return s.result != nil
}
