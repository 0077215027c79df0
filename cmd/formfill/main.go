package main

import (
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/kdimtricp/formfill/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("cli.config", "error", err)
		os.Exit(1)
	}

	if err := newApp(cfg).Run(os.Args); err != nil {
		slog.Error("cli.failed", "error", err)
		os.Exit(1)
	}
}

func newApp(cfg *config.Config) *cli.App {
	return &cli.App{
		Name:  "formfill",
		Usage: "fill ID document forms through the extraction service",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "url",
				Usage:   "extraction service base URL",
				Value:   cfg.Extraction.URL,
				EnvVars: []string{"EXTRACTION_URL"},
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "extraction request timeout",
				Value: cfg.Extraction.Timeout,
			},
			&cli.StringFlag{
				Name:  "templates-file",
				Usage: "YAML file adding or replacing templates",
				Value: cfg.Session.TemplatesFile,
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "log requests to stderr",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "process",
				Usage:     "extract a document and print the filled form",
				ArgsUsage: "<file>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "template",
						Aliases: []string{"t"},
						Usage:   "template id",
					},
					&cli.StringFlag{
						Name:    "download",
						Aliases: []string{"o"},
						Usage:   "write the filled PDF to this path",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "print the view as JSON",
					},
				},
				Action: ProcessAction,
			},
			{
				Name:   "templates",
				Usage:  "list the available templates",
				Action: TemplatesAction,
			},
			{
				Name:   "check",
				Usage:  "check that the extraction service is up",
				Action: CheckAction,
			},
		},
	}
}
