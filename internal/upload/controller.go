package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/kdimtricp/formfill/internal/extraction"
	"github.com/kdimtricp/formfill/internal/models"
	"github.com/kdimtricp/formfill/internal/session"
	"github.com/kdimtricp/formfill/internal/storage"
)

var ErrUnsupportedFileType = errors.New("unsupported file type")

const (
	MsgUnsupportedFileType = "Please upload JPG, PNG, or PDF!"
	MsgProcessing          = "Processing with OCR..."

	debugSnippetLen = 200
	auditTimeout    = 5 * time.Second
)

type Extractor interface {
	Process(ctx context.Context, filename string, file io.Reader, templateID string) (*extraction.Result, error)
}

type Recorder interface {
	Insert(ctx context.Context, rec *models.ExtractionRecord) error
}

// Upload is one document chosen by the user.
type Upload struct {
	Name        string
	Body        io.Reader
	Size        int64
	ContentType string
}

// Outcome describes a successful submission.
type Outcome struct {
	SessionID  string
	TemplateID string
	Found      int
	Total      int
	Result     *extraction.Result
}

type Config struct {
	// ServiceURL is named in the message shown when the service is down.
	ServiceURL string
	Timeout    time.Duration
}

type Controller struct {
	extractor Extractor
	storage   storage.Storage
	history   Recorder
	cfg       Config
	logger    *slog.Logger
}

// NewController wires the upload flow. store and history may be nil to
// skip staging and auditing.
func NewController(extractor Extractor, store storage.Storage, history Recorder, cfg Config, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		extractor: extractor,
		storage:   store,
		history:   history,
		cfg:       cfg,
		logger:    logger,
	}
}

// Submit validates the file name, admits one upload per workspace, sends
// the document with the active template to the extraction service and
// stores a successful result in the workspace. Every failure is reported
// through the workspace status and returned; submission is re-enabled on
// every path.
func (c *Controller) Submit(ctx context.Context, ws *session.Workspace, up Upload) (*Outcome, error) {
	logger := c.logger.With("workspace", ws.ID(), "filename", up.Name)

	if !Accepts(up.Name) {
		ws.Fail(MsgUnsupportedFileType, nil)
		logger.Warn("upload.rejected", "reason", "unsupported_file_type")
		rec := models.NewExtractionRecord(ws.ID(), up.Name, ws.Snapshot().TemplateID, models.OutcomeUnsupportedType)
		rec.ErrorMessage = MsgUnsupportedFileType
		c.audit(ctx, rec)
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFileType, up.Name)
	}

	templateID, err := ws.Begin(MsgProcessing)
	if err != nil {
		logger.Warn("upload.rejected", "reason", "in_flight")
		return nil, err
	}
	defer ws.End()

	start := time.Now()
	logger.Info("upload.submit", "template", templateID, "size", up.Size)

	rec := models.NewExtractionRecord(ws.ID(), up.Name, templateID, models.OutcomeFailed)
	defer func() {
		rec.Duration = time.Since(start)
		c.audit(ctx, rec)
	}()

	body, cleanup, err := c.stage(up)
	if err != nil {
		msg := fmt.Sprintf("Failed to read upload: %v", err)
		ws.Fail(msg, nil)
		rec.ErrorMessage = msg
		logger.Error("upload.stage_error", "error", err)
		return nil, err
	}
	defer cleanup()

	res, err := c.extractor.Process(ctx, up.Name, body, templateID)
	if err != nil {
		c.fail(ws, rec, err)
		logger.Error("upload.failed", "template", templateID, "outcome", rec.Outcome, "error", err)
		return nil, err
	}

	found, total := res.FieldCounts()
	sessionID := ws.Complete(res, fmt.Sprintf("Success! %d/%d fields found", found, total))

	rec.Outcome = models.OutcomeSuccess
	rec.SessionID = sessionID
	rec.FieldsFound = found
	rec.FieldsTotal = total

	logger.Info("upload.completed",
		"template", templateID,
		"session_id", sessionID,
		"fields_found", found,
		"fields_total", total,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	return &Outcome{
		SessionID:  sessionID,
		TemplateID: templateID,
		Found:      found,
		Total:      total,
		Result:     res,
	}, nil
}

// fail maps an extraction error onto the status line and, for service
// errors only, the debug surface.
func (c *Controller) fail(ws *session.Workspace, rec *models.ExtractionRecord, err error) {
	var svcErr *extraction.ServiceError

	switch {
	case errors.Is(err, extraction.ErrServiceUnreachable):
		rec.Outcome = models.OutcomeServiceUnreachable
		ws.Fail(fmt.Sprintf("Server not running at %s", c.cfg.ServiceURL), nil)
	case errors.Is(err, extraction.ErrTimeout):
		rec.Outcome = models.OutcomeTimeout
		ws.Fail(fmt.Sprintf("Extraction timed out after %s", c.cfg.Timeout), nil)
	case errors.As(err, &svcErr):
		rec.Outcome = models.OutcomeServiceError
		debug := fmt.Sprintf("Error: %s\n\nResponse: %s", svcErr.Error(), svcErr.Snippet(debugSnippetLen))
		ws.Fail(svcErr.Error(), &debug)
	case errors.Is(err, context.Canceled):
		ws.Fail("Upload cancelled", nil)
	default:
		ws.Fail(err.Error(), nil)
	}
	rec.ErrorMessage = err.Error()
}

// stage copies the upload into storage so the request body is read from
// disk. Without storage the body is passed through.
func (c *Controller) stage(up Upload) (io.Reader, func(), error) {
	if c.storage == nil {
		return up.Body, func() {}, nil
	}

	name, err := c.storage.SaveFile(up.Body, storage.FileInfo{
		Filename:    up.Name,
		ContentType: up.ContentType,
		Size:        up.Size,
	})
	if err != nil {
		return nil, nil, err
	}

	f, err := c.storage.OpenFile(name)
	if err != nil {
		c.storage.DeleteFile(name)
		return nil, nil, err
	}

	return f, func() {
		f.Close()
		if err := c.storage.DeleteFile(name); err != nil {
			c.logger.Warn("upload.cleanup_error", "file", name, "error", err)
		}
	}, nil
}

func (c *Controller) audit(ctx context.Context, rec *models.ExtractionRecord) {
	if c.history == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditTimeout)
	defer cancel()

	if err := c.history.Insert(ctx, rec); err != nil {
		c.logger.Warn("upload.audit_error", "record", rec.ID, "error", err)
	}
}
