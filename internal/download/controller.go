package download

import (
	"errors"
	"log/slog"

	"github.com/kdimtricp/formfill/internal/session"
	"github.com/kdimtricp/formfill/internal/status"
)

var ErrNoActiveSession = errors.New("no active session")

const (
	MsgNoResults   = "No results to download!"
	MsgDownloading = "PDF downloading..."
)

// Retrieval identifies the artifact of a processed session rendered with
// a template.
type Retrieval struct {
	SessionID  string `json:"session_id"`
	TemplateID string `json:"template"`
	URL        string `json:"url"`
}

// Dispatcher starts a retrieval. The controller does not wait for or
// inspect the result.
type Dispatcher interface {
	Dispatch(r Retrieval)
}

type DispatchFunc func(r Retrieval)

func (f DispatchFunc) Dispatch(r Retrieval) { f(r) }

// URLBuilder maps a session and template to the URL the artifact is
// fetched from.
type URLBuilder func(sessionID, templateID string) string

type Controller struct {
	buildURL URLBuilder
	logger   *slog.Logger
}

func NewController(buildURL URLBuilder, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{buildURL: buildURL, logger: logger}
}

// Request issues a retrieval for the workspace's session using the active
// template. Without a session it reports an error and issues nothing.
func (c *Controller) Request(ws *session.Workspace, dispatcher Dispatcher) (Retrieval, error) {
	snap := ws.Snapshot()
	if snap.SessionID == "" {
		ws.Notify(MsgNoResults, status.KindError)
		c.logger.Warn("download.rejected", "workspace", ws.ID(), "reason", "no_session")
		return Retrieval{}, ErrNoActiveSession
	}

	r := Retrieval{
		SessionID:  snap.SessionID,
		TemplateID: snap.TemplateID,
		URL:        c.buildURL(snap.SessionID, snap.TemplateID),
	}
	dispatcher.Dispatch(r)
	ws.Notify(MsgDownloading, status.KindSuccess)

	c.logger.Info("download.requested", "workspace", ws.ID(), "session_id", r.SessionID, "template", r.TemplateID)
	return r, nil
}
