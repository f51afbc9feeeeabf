// submodule cmd contains command definitions
package main

import (
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/tracksearch/internal/models"
)

func formatFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   "Output format: text, json, csv or markdown",
			Value:   "text",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Write to a file instead of stdout (\"-\" derives a name from the query)",
		},
	}
}

// serveCommand runs the HTTP and gRPC servers
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the HTTP API and the gRPC service",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Interface to bind (overrides server.host)",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "HTTP port (overrides server.port and PORT)",
			},
			&cli.IntFlag{
				Name:  "grpc-port",
				Usage: "gRPC port (overrides server.grpc_port and GRPC_PORT)",
			},
		},
		Action: r.Serve,
	}
}

// searchCommand runs one track search
func searchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "search",
		Aliases:   []string{"s"},
		Usage:     "Search tracks by free text",
		ArgsUsage: "<query...>",
		Flags: append([]cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"l"},
				Usage:   "Page size (1-50)",
				Value:   models.DefaultLimit,
			},
			&cli.IntFlag{
				Name:  "offset",
				Usage: "Result offset (0-1000)",
			},
			&cli.BoolFlag{
				Name:  "features",
				Usage: "Attach audio-feature embeddings",
			},
		}, formatFlags()...),
		Action: r.Search,
	}
}

// tracksCommand looks tracks up by id with their embeddings
func tracksCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "tracks",
		Aliases:   []string{"t"},
		Usage:     "Look tracks up by id and attach embeddings",
		ArgsUsage: "<id[,id...]>...",
		Flags:     formatFlags(),
		Action:    r.Tracks,
	}
}

// exportCommand embeds a list of tracks in batches
func exportCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "export",
		Aliases:   []string{"e"},
		Usage:     "Embed a list of track ids, URIs or links and export them",
		ArgsUsage: "[id|uri|url...]",
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:    "input",
				Aliases: []string{"i"},
				Usage:   "File with one or more references per line (\"-\" reads stdin)",
			},
			&cli.StringFlag{
				Name:  "title",
				Usage: "Export title, also used to name the output file",
				Value: "Export",
			},
			&cli.IntFlag{
				Name:    "workers",
				Aliases: []string{"w"},
				Usage:   "Concurrent batch lookups (max 10)",
				Value:   4,
			},
			&cli.FloatFlag{
				Name:  "rate",
				Usage: "Batches started per second",
				Value: 5,
			},
		}, formatFlags()...),
		Action: r.Export,
	}
}

// tokenCommand checks the client credentials
func tokenCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "Fetch an access token and print its expiry",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "show",
				Usage: "Also print the token value",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.Token,
	}
}

// browseCommand returns the interactive search UI command.
func browseCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "browse",
		Aliases: []string{"tui", "ui"},
		Usage:   "Launch the interactive track browser",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"l"},
				Usage:   "Results per page",
				Value:   models.DefaultLimit,
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Where to write logs while the UI owns the terminal",
				Value: "./tmp/tracksearch-browse.log",
			},
		},
		Action: r.Browse,
	}
}

// configCommand manages the configuration file
func configCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "init",
				Usage:  "Write the example configuration to --config",
				Action: r.ConfigInit,
			},
			{
				Name:   "show",
				Usage:  "Print the resolved configuration with secrets masked",
				Action: r.ConfigShow,
			},
		},
	}
}
