package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/tracksearch/internal/formatter"
	"github.com/desertthunder/tracksearch/internal/shared"
	"github.com/desertthunder/tracksearch/internal/tasks"
)

// Export reads track references, embeds them in batches and renders the result.
func (r *Runner) Export(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	ids, err := r.readExportIDs(cmd)
	if err != nil {
		return err
	}

	if err := r.setup(cmd); err != nil {
		return err
	}

	opts := tasks.BulkOpts{
		BatchSize:  r.config.Upstream.MaxIDs,
		NumWorkers: cmd.Int("workers"),
		RateLimit:  cmd.Float("rate"),
	}

	prog := make(chan tasks.ProgressUpdate, 32)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for u := range prog {
			r.logger.Info(u.Message, "phase", u.Phase)
		}
	}()

	engine := tasks.NewEngine(r.catalog, shared.WithLogger(r.logger, "component", "export"))
	result, err := engine.Embed(ctx, ids, opts, prog)
	close(prog)
	<-done
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	for _, f := range result.Failures {
		r.logger.Warn("batch skipped", "batch", f.Index+1, "ids", len(f.IDs), "err", f.Error)
	}

	export := &formatter.Export{
		Title:  cmd.String("title"),
		Total:  result.Requested,
		Limit:  result.Found,
		Tracks: result.Tracks,
	}
	return r.emit(export, format, cmd.String("output"))
}

// readExportIDs collects ids from --input ("-" for stdin) followed by the positional args.
func (r *Runner) readExportIDs(cmd *cli.Command) ([]string, error) {
	var ids []string

	if path := cmd.String("input"); path != "" {
		var in io.Reader = r.input
		if path != "-" {
			file, err := os.Open(path)
			if err != nil {
				return nil, fmt.Errorf("failed to open %s: %w", path, err)
			}
			defer file.Close()
			in = file
		}
		read, err := tasks.ReadIDs(in)
		if err != nil {
			return nil, err
		}
		ids = append(ids, read...)
	}

	for _, arg := range cmd.Args().Slice() {
		id, err := tasks.ParseTrackRef(arg)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: pass track ids as arguments or with --input", shared.ErrMissingArgument)
	}
	return ids, nil
}
