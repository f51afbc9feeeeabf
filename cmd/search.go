package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/tracksearch/internal/formatter"
	"github.com/desertthunder/tracksearch/internal/services"
	"github.com/desertthunder/tracksearch/internal/shared"
)

// Search runs a track search and renders the page.
func (r *Runner) Search(ctx context.Context, cmd *cli.Command) error {
	query := strings.TrimSpace(strings.Join(cmd.Args().Slice(), " "))
	if query == "" {
		return fmt.Errorf("%w: a search query is required", shared.ErrMissingArgument)
	}

	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	if err := r.setup(cmd); err != nil {
		return err
	}

	r.logger.Debug("searching", "query", query, "limit", cmd.Int("limit"), "offset", cmd.Int("offset"))

	page, err := r.catalog.Search(ctx, services.SearchParams{
		Query:           query,
		Limit:           cmd.Int("limit"),
		Offset:          cmd.Int("offset"),
		IncludeFeatures: cmd.Bool("features"),
	})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	export := &formatter.Export{
		Title:  "Search: " + query,
		Total:  page.Total,
		Limit:  page.Limit,
		Offset: page.Offset,
		Tracks: page.Tracks,
	}
	return r.emit(export, format, cmd.String("output"))
}

// Tracks looks up the given ids and renders them with their embeddings.
func (r *Runner) Tracks(ctx context.Context, cmd *cli.Command) error {
	var ids []string
	for _, arg := range cmd.Args().Slice() {
		ids = append(ids, shared.SplitIDs(arg)...)
	}
	if len(ids) == 0 {
		return fmt.Errorf("%w: at least one track id is required", shared.ErrMissingArgument)
	}

	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	if err := r.setup(cmd); err != nil {
		return err
	}

	tracks, err := r.catalog.TracksWithFeatures(ctx, ids)
	if err != nil {
		return fmt.Errorf("track lookup failed: %w", err)
	}

	if missing := len(ids) - len(tracks); missing > 0 {
		r.logger.Warn("some ids were not found", "requested", len(ids), "missing", missing)
	}

	export := &formatter.Export{
		Title:  "Tracks",
		Total:  len(tracks),
		Limit:  len(tracks),
		Tracks: tracks,
	}
	return r.emit(export, format, cmd.String("output"))
}

// emit writes export to stdout, or to a file when output is set ("-" picks a name).
func (r *Runner) emit(export *formatter.Export, format formatter.Format, output string) error {
	if output == "" {
		return formatter.Write(r.output, export, format)
	}
	if output == "-" {
		output = ""
	}

	path, err := formatter.WriteExport(export, format, output)
	if err != nil {
		return err
	}
	return r.writePlain("✓ Wrote %d tracks to %s\n", len(export.Tracks), path)
}
