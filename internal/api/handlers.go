package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/kdimtricp/formfill/internal/download"
	"github.com/kdimtricp/formfill/internal/extraction"
	"github.com/kdimtricp/formfill/internal/models"
	"github.com/kdimtricp/formfill/internal/session"
	"github.com/kdimtricp/formfill/internal/upload"
)

const (
	browserCookie   = "formfill_browser"
	MsgReady        = "Ready for new document"
	downloadTrigger = "formfill:download"
)

// ArtifactSource fetches a processed document from the extraction service.
type ArtifactSource interface {
	Download(ctx context.Context, sessionID, templateID string) (*extraction.Artifact, error)
}

// HistoryLister lists audited submissions of one browser.
type HistoryLister interface {
	List(ctx context.Context, workspaceID string, limit int) ([]models.ExtractionRecord, error)
}

type App struct {
	Sessions      *session.Manager
	Uploads       *upload.Controller
	Downloads     *download.Controller
	Artifacts     ArtifactSource
	History       HistoryLister
	MaxUploadSize int64
	WebDir        string
	Logger        *slog.Logger
}

// DownloadPath is the local proxy route for an artifact. It is the URL the
// browser opens when a download is requested.
func DownloadPath(sessionID, templateID string) string {
	return "/download/" + url.PathEscape(sessionID) + "?template=" + url.QueryEscape(templateID)
}

func PingHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("pong"))
}

type workspaceKey struct{}

// withWorkspace binds every request to the browser's workspace, issuing a
// cookie when the browser has none or an expired one.
func (app *App) withWorkspace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var id string
		if c, err := r.Cookie(browserCookie); err == nil {
			id = c.Value
		}

		ws, created := app.Sessions.GetOrCreate(id)
		if created {
			http.SetCookie(w, &http.Cookie{
				Name:     browserCookie,
				Value:    ws.ID(),
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), workspaceKey{}, ws)))
	})
}

func workspaceFrom(r *http.Request) *session.Workspace {
	ws, _ := r.Context().Value(workspaceKey{}).(*session.Workspace)
	return ws
}

func (app *App) HomeHandler(w http.ResponseWriter, r *http.Request) {
	tmpl, err := app.parse("index.html", "_workspace.html")
	if err != nil {
		app.logger().Error("api.template_error", "error", err)
		http.Error(w, "Error loading template", http.StatusInternalServerError)
		return
	}

	data := struct {
		Title string
		View  session.View
	}{
		Title: "ID Document Form Filler",
		View:  workspaceFrom(r).View(),
	}

	if err := tmpl.ExecuteTemplate(w, "index.html", data); err != nil {
		app.logger().Error("api.render_error", "error", err)
		http.Error(w, "Error rendering template", http.StatusInternalServerError)
	}
}

// SelectTemplateHandler switches the active template and re-renders the
// held result with it. No backend call is made.
func (app *App) SelectTemplateHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		app.renderError(w, "Invalid form")
		return
	}

	ws := workspaceFrom(r)
	ws.SelectTemplate(r.FormValue("template"))
	app.renderWorkspace(w, ws)
}

func (app *App) UploadHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, app.MaxUploadSize)

	if err := r.ParseMultipartForm(app.MaxUploadSize); err != nil {
		app.renderError(w, "File too large")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		app.renderError(w, "Failed to get file")
		return
	}
	defer file.Close()

	ws := workspaceFrom(r)
	_, err = app.Uploads.Submit(r.Context(), ws, upload.Upload{
		Name:        header.Filename,
		Body:        file,
		Size:        header.Size,
		ContentType: header.Header.Get("Content-Type"),
	})
	if err != nil {
		// The workspace status carries the message.
		app.logger().Debug("api.upload.failed", "workspace", ws.ID(), "error", err)
	}

	app.renderWorkspace(w, ws)
}

func (app *App) ResetHandler(w http.ResponseWriter, r *http.Request) {
	ws := workspaceFrom(r)
	ws.Reset(MsgReady)
	app.renderWorkspace(w, ws)
}

// DownloadHandler asks the browser, through an HX-Trigger event, to open
// the proxied artifact in a new tab.
func (app *App) DownloadHandler(w http.ResponseWriter, r *http.Request) {
	ws := workspaceFrom(r)

	dispatch := download.DispatchFunc(func(rt download.Retrieval) {
		payload, err := json.Marshal(map[string]any{
			downloadTrigger: map[string]string{"url": rt.URL},
		})
		if err != nil {
			app.logger().Error("api.download.trigger_error", "error", err)
			return
		}
		w.Header().Set("HX-Trigger", string(payload))
	})

	if _, err := app.Downloads.Request(ws, dispatch); err != nil && !errors.Is(err, download.ErrNoActiveSession) {
		app.logger().Error("api.download.failed", "workspace", ws.ID(), "error", err)
	}

	app.renderWorkspace(w, ws)
}

// StatusPartialHandler renders only the status line so polling shows
// expiry.
func (app *App) StatusPartialHandler(w http.ResponseWriter, r *http.Request) {
	tmpl, err := app.parse("_workspace.html")
	if err != nil {
		app.logger().Error("api.template_error", "error", err)
		http.Error(w, "Error loading template", http.StatusInternalServerError)
		return
	}

	if err := tmpl.ExecuteTemplate(w, "status", workspaceFrom(r).View()); err != nil {
		app.logger().Error("api.render_error", "error", err)
	}
}

// ProxyDownloadHandler streams the artifact of the browser's current
// session from the extraction service.
func (app *App) ProxyDownloadHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "session")
	snap := workspaceFrom(r).Snapshot()
	if sessionID == "" || sessionID != snap.SessionID {
		http.NotFound(w, r)
		return
	}

	templateID := r.URL.Query().Get("template")
	if templateID == "" {
		templateID = snap.TemplateID
	}

	artifact, err := app.Artifacts.Download(r.Context(), sessionID, templateID)
	if err != nil {
		app.logger().Error("api.download.proxy_error", "session_id", sessionID, "error", err)
		var svcErr *extraction.ServiceError
		switch {
		case errors.As(err, &svcErr) && svcErr.StatusCode == http.StatusNotFound:
			http.NotFound(w, r)
		case errors.Is(err, extraction.ErrTimeout):
			http.Error(w, err.Error(), http.StatusGatewayTimeout)
		default:
			http.Error(w, err.Error(), http.StatusBadGateway)
		}
		return
	}
	defer artifact.Body.Close()

	contentType := artifact.ContentType
	if contentType == "" {
		contentType = "application/pdf"
	}
	w.Header().Set("Content-Type", contentType)
	if artifact.Disposition != "" {
		w.Header().Set("Content-Disposition", artifact.Disposition)
	} else {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", sessionID+".pdf"))
	}
	if artifact.ContentLength > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(artifact.ContentLength, 10))
	}

	if _, err := io.Copy(w, artifact.Body); err != nil {
		app.logger().Warn("api.download.copy_error", "session_id", sessionID, "error", err)
	}
}

func (app *App) ViewHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, workspaceFrom(r).View())
}

func (app *App) ListTemplatesHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, app.Sessions.Registry().List())
}

func (app *App) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	if app.History == nil {
		writeJSON(w, http.StatusOK, []models.ExtractionRecord{})
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	records, err := app.History.List(r.Context(), workspaceFrom(r).ID(), limit)
	if err != nil {
		app.logger().Error("api.history_error", "error", err)
		http.Error(w, "Error loading history", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []models.ExtractionRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (app *App) renderWorkspace(w http.ResponseWriter, ws *session.Workspace) {
	tmpl, err := app.parse("_workspace.html")
	if err != nil {
		app.logger().Error("api.template_error", "error", err)
		http.Error(w, "Error loading template", http.StatusInternalServerError)
		return
	}

	if err := tmpl.ExecuteTemplate(w, "workspace", ws.View()); err != nil {
		app.logger().Error("api.render_error", "workspace", ws.ID(), "error", err)
	}
}

func (app *App) renderError(w http.ResponseWriter, message string) {
	w.WriteHeader(http.StatusBadRequest)
	fmt.Fprintf(w, `<div class="alert alert-error">%s</div>`, template.HTMLEscapeString(message))
}

func (app *App) parse(names ...string) (*template.Template, error) {
	dir := app.WebDir
	if dir == "" {
		dir = "web"
	}

	paths := make([]string, len(names))
	for i, name := range names {
		paths[i] = filepath.Join(dir, "templates", name)
	}
	return template.ParseFiles(paths...)
}

func (app *App) logger() *slog.Logger {
	if app.Logger == nil {
		return slog.Default()
	}
	return app.Logger
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
