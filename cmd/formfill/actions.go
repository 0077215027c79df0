package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/kdimtricp/formfill/internal/download"
	"github.com/kdimtricp/formfill/internal/extraction"
	"github.com/kdimtricp/formfill/internal/session"
	"github.com/kdimtricp/formfill/internal/status"
	"github.com/kdimtricp/formfill/internal/templates"
	"github.com/kdimtricp/formfill/internal/upload"
)

func newLogger(c *cli.Context) *slog.Logger {
	if !c.Bool("verbose") {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func newRegistry(c *cli.Context) (*templates.Registry, error) {
	registry := templates.NewBuiltinRegistry()
	if path := c.String("templates-file"); path != "" {
		return templates.LoadOverlay(registry, path)
	}
	return registry, nil
}

func newClient(c *cli.Context, logger *slog.Logger) (*extraction.Client, error) {
	return extraction.NewClient(extraction.Config{
		BaseURL: c.String("url"),
		Timeout: c.Duration("timeout"),
	}, logger)
}

// ProcessAction runs one document through a workspace and prints the
// rendered form.
func ProcessAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one file argument")
	}
	path := c.Args().First()

	logger := newLogger(c)
	registry, err := newRegistry(c)
	if err != nil {
		return err
	}
	client, err := newClient(c, logger)
	if err != nil {
		return err
	}

	// Status expiry has no meaning for a one-shot run.
	ws := session.NewWorkspace("cli", registry, status.NewNotifier(status.DefaultInterval, &status.ManualScheduler{}), logger)
	if id := c.String("template"); id != "" {
		if got := ws.SelectTemplate(id); got != id {
			fmt.Fprintf(os.Stderr, "unknown template %q, using %q\n", id, got)
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	controller := upload.NewController(client, nil, nil, upload.Config{
		ServiceURL: client.BaseURL(),
		Timeout:    client.Timeout(),
	}, logger)

	_, submitErr := controller.Submit(c.Context, ws, upload.Upload{Name: filepath.Base(path), Body: f})

	view := ws.View()
	if c.Bool("json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(view); err != nil {
			return err
		}
	} else {
		printView(view)
	}
	if submitErr != nil {
		return submitErr
	}

	if out := c.String("download"); out != "" {
		return downloadTo(c.Context, client, ws, out, logger)
	}
	return nil
}

func downloadTo(ctx context.Context, client *extraction.Client, ws *session.Workspace, out string, logger *slog.Logger) error {
	var pending *download.Retrieval
	controller := download.NewController(client.DownloadURL, logger)
	if _, err := controller.Request(ws, download.DispatchFunc(func(r download.Retrieval) {
		pending = &r
	})); err != nil {
		return err
	}

	artifact, err := client.Download(ctx, pending.SessionID, pending.TemplateID)
	if err != nil {
		return err
	}
	defer artifact.Body.Close()

	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", out, err)
	}
	n, err := io.Copy(f, artifact.Body)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", out, err)
	}

	fmt.Printf("\nSaved %s (%d bytes) from %s\n", out, n, pending.URL)
	return nil
}

func printView(v session.View) {
	if v.Status != nil {
		fmt.Printf("[%s] %s\n\n", v.Status.Kind, v.Status.Text)
	}

	if d := v.DocInfo; d != nil {
		fmt.Printf("%-10s %s\n", "File:", d.Filename)
		fmt.Printf("%-10s %s\n", "Language:", d.Language)
		fmt.Printf("%-10s %d\n", "Pages:", d.PageCount)
		fmt.Printf("%-10s %s\n\n", "Template:", d.Template)
	}

	fmt.Println(v.ActiveTemplate.Name)
	fmt.Println(strings.Repeat("-", 60))
	for _, f := range v.Fields {
		mark := " "
		if f.Filled {
			mark = "*"
		}
		fmt.Printf("%s %-16s %s\n", mark, f.Label, f.Value)
	}

	if v.Debug != "" {
		fmt.Printf("\n%s\n", v.Debug)
	}
}

func TemplatesAction(c *cli.Context) error {
	registry, err := newRegistry(c)
	if err != nil {
		return err
	}

	for _, t := range registry.List() {
		def := ""
		if t.ID == registry.DefaultID() {
			def = " (default)"
		}
		fmt.Printf("%-10s %s%s\n", t.ID, t.Name, def)
		for _, f := range t.Fields {
			fmt.Printf("    %-12s %s %s\n", f.Key, f.Icon, f.Label)
		}
	}
	return nil
}

func CheckAction(c *cli.Context) error {
	client, err := newClient(c, newLogger(c))
	if err != nil {
		return err
	}

	if err := client.Health(c.Context); err != nil {
		if errors.Is(err, extraction.ErrServiceUnreachable) {
			return fmt.Errorf("Server not running at %s", client.BaseURL())
		}
		return err
	}

	fmt.Printf("Extraction service at %s is up\n", client.BaseURL())
	return nil
}
