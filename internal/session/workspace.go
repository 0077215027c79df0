package session

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/kdimtricp/formfill/internal/extraction"
	"github.com/kdimtricp/formfill/internal/render"
	"github.com/kdimtricp/formfill/internal/status"
	"github.com/kdimtricp/formfill/internal/templates"
)

var ErrUploadInProgress = errors.New("an upload is already in progress")

// View is everything the presentation layer needs to draw one workspace.
type View struct {
	ActiveTemplate templates.TemplateDescriptor   `json:"active_template"`
	Templates      []templates.TemplateDescriptor `json:"templates"`
	Fields         []render.FieldView             `json:"fields"`
	ResultsVisible bool                           `json:"results_visible"`
	DocInfo        *render.DocInfo                `json:"doc_info,omitempty"`
	Status         *status.Message                `json:"status,omitempty"`
	Debug          string                         `json:"debug,omitempty"`
	SubmitEnabled  bool                           `json:"submit_enabled"`
	SessionID      string                         `json:"session_id,omitempty"`
}

// Snapshot is a consistent read of the fields controllers act on.
type Snapshot struct {
	TemplateID string
	SessionID  string
	HasResult  bool
	InFlight   bool
}

// Workspace is the session object of one user: template selection, the
// current result, the live status, the debug text and the upload admission
// flag. Every method takes the workspace lock; no method holds it while
// talking to the extraction service.
type Workspace struct {
	mu             sync.Mutex
	id             string
	registry       *templates.Registry
	state          *State
	notifier       *status.Notifier
	resultsVisible bool
	debug          string
	inFlight       bool
	lastSeen       time.Time
	logger         *slog.Logger
}

func NewWorkspace(id string, registry *templates.Registry, notifier *status.Notifier, logger *slog.Logger) *Workspace {
	if logger == nil {
		logger = slog.Default()
	}
	if notifier == nil {
		notifier = status.NewNotifier(status.DefaultInterval, nil)
	}
	return &Workspace{
		id:       id,
		registry: registry,
		state:    NewState(registry),
		notifier: notifier,
		lastSeen: time.Now(),
		logger:   logger.With("workspace", id),
	}
}

func (w *Workspace) ID() string {
	return w.id
}

// SelectTemplate switches the active template without touching the held
// result. An upload in flight is not affected; its completion renders
// against whatever template is active then.
func (w *Workspace) SelectTemplate(id string) string {
	w.mu.Lock()
	defer w.mu.Unlock()

	stored, known := w.state.SetTemplate(id)
	if !known {
		w.logger.Warn("session.template.unknown", "requested", id, "fallback", stored)
	}
	return stored
}

// Begin admits one upload: it fails with ErrUploadInProgress if another is
// in flight, otherwise shows the loading status, disables submission and
// returns the template id to submit with.
func (w *Workspace) Begin(loading string) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.inFlight {
		return "", ErrUploadInProgress
	}
	w.inFlight = true
	w.notifier.Show(loading, status.KindLoading)
	return w.state.Template(), nil
}

// End re-enables submission.
func (w *Workspace) End() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.inFlight = false
}

// Complete stores a successful result, reveals the results and reports
// message as a success.
func (w *Workspace) Complete(result *extraction.Result, message string) string {
	w.mu.Lock()
	defer w.mu.Unlock()

	sessionID := w.state.RecordResult(result)
	w.resultsVisible = w.state.HasResult()
	w.debug = ""
	w.notifier.Show(message, status.KindSuccess)
	return sessionID
}

// Fail reports an error without touching the held result. The debug
// surface is only replaced when debug is non-nil.
func (w *Workspace) Fail(message string, debug *string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if debug != nil {
		w.debug = *debug
	}
	w.notifier.Show(message, status.KindError)
}

func (w *Workspace) Notify(text string, kind status.Kind) status.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.notifier.Show(text, kind)
}

// Reset starts a new document: the result and session id are dropped and
// every field of the active template goes back to not processed.
func (w *Workspace) Reset(message string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.state.Clear()
	w.resultsVisible = false
	w.debug = ""
	w.notifier.Show(message, status.KindSuccess)
}

func (w *Workspace) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	return Snapshot{
		TemplateID: w.state.Template(),
		SessionID:  w.state.SessionID(),
		HasResult:  w.state.HasResult(),
		InFlight:   w.inFlight,
	}
}

// Result returns the held extraction, or nil.
func (w *Workspace) Result() *extraction.Result {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state.Result()
}

// View renders the active template's fields against the held result.
func (w *Workspace) View() View {
	w.mu.Lock()
	defer w.mu.Unlock()

	active, _ := w.registry.Resolve(w.state.Template())
	result := w.state.Result()

	v := View{
		ActiveTemplate: active,
		Templates:      w.registry.List(),
		Fields:         render.Fields(active.Fields, result),
		ResultsVisible: w.resultsVisible,
		DocInfo:        render.Summary(result),
		Debug:          w.debug,
		SubmitEnabled:  !w.inFlight,
		SessionID:      w.state.SessionID(),
	}
	if msg, visible := w.notifier.Current(); visible {
		v.Status = &msg
	}
	return v
}

func (w *Workspace) touch(now time.Time) {
	w.mu.Lock()
	w.lastSeen = now
	w.mu.Unlock()
}

func (w *Workspace) idleSince() (time.Time, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastSeen, w.inFlight
}

// Close stops pending status expiries.
func (w *Workspace) Close() {
	w.notifier.Stop()
}
