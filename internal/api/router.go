package api

import (
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(app *App) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/ping", PingHandler)

	webDir := app.WebDir
	if webDir == "" {
		webDir = "web"
	}
	fileServer := http.FileServer(http.Dir(filepath.Join(webDir, "static")))
	r.Handle("/static/*", http.StripPrefix("/static", fileServer))

	r.Group(func(r chi.Router) {
		r.Use(app.withWorkspace)

		r.Get("/", app.HomeHandler)
		r.Post("/template", app.SelectTemplateHandler)
		r.Post("/upload", app.UploadHandler)
		r.Post("/reset", app.ResetHandler)
		r.Post("/download", app.DownloadHandler)
		r.Get("/status", app.StatusPartialHandler)
		r.Get("/download/{session}", app.ProxyDownloadHandler)

		r.Route("/api", func(r chi.Router) {
			r.Get("/view", app.ViewHandler)
			r.Get("/templates", app.ListTemplatesHandler)
			r.Get("/history", app.HistoryHandler)
		})
	})

	return r
}
