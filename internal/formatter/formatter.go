// package formatter renders track search results as JSON, CSV, Markdown or plain text
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/desertthunder/tracksearch/internal/models"
	"github.com/desertthunder/tracksearch/internal/shared"
)

// Format names an output encoding.
type Format string

const (
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
	FormatText     Format = "text"
)

// Formats lists the accepted values of [ParseFormat].
var Formats = []Format{FormatText, FormatJSON, FormatCSV, FormatMarkdown}

// ParseFormat accepts a format name; "md" and "txt" are aliases.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "txt":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	}
	return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidInput, s)
}

// Extension is the file suffix for f, including the dot.
func (f Format) Extension() string {
	switch f {
	case FormatJSON:
		return ".json"
	case FormatCSV:
		return ".csv"
	case FormatMarkdown:
		return ".md"
	default:
		return ".txt"
	}
}

// Export is a titled page of tracks ready to be rendered.
type Export struct {
	Title  string                     `json:"title"`
	Total  int                        `json:"total"`
	Limit  int                        `json:"limit"`
	Offset int                        `json:"offset"`
	Tracks []models.TrackWithFeatures `json:"-"`
}

// exportTrack is the JSON shape of one track.
type exportTrack struct {
	ID         string            `json:"id"`
	Title      string            `json:"title"`
	Artist     string            `json:"artist"`
	Album      string            `json:"album"`
	DurationMS int               `json:"duration_ms"`
	URL        string            `json:"spotify_url"`
	Embedding  []float32         `json:"embedding,omitempty"`
	Metadata   map[string]string `json:"metadata"`
}

// ExportToJSON renders the export as indented JSON, tagging embeddings with their version.
func ExportToJSON(export *Export) ([]byte, error) {
	doc := struct {
		*Export
		EmbeddingVersion string        `json:"embedding_version"`
		Tracks           []exportTrack `json:"tracks"`
	}{Export: export, EmbeddingVersion: models.EmbeddingVersion, Tracks: make([]exportTrack, len(export.Tracks))}

	for i, t := range export.Tracks {
		doc.Tracks[i] = exportTrack{
			ID:         t.Track.ID,
			Title:      t.Track.Name,
			Artist:     t.Track.ArtistNames(),
			Album:      t.Track.Album.Name,
			DurationMS: t.Track.DurationMS,
			URL:        t.Track.URL(),
			Embedding:  t.Embedding.Slice(),
			Metadata:   t.Metadata(),
		}
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return append(data, '\n'), nil
}

// ExportToCSV converts an Export to CSV with columns ID, Title, Artist, Album, Duration, URL followed by one
// column per embedding dimension. Tracks without an embedding leave those columns empty.
func ExportToCSV(export *Export) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Title", "Artist", "Album", "Duration", "URL"}
	headers = append(headers, models.EmbeddingDimensions[:]...)
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, t := range export.Tracks {
		record := []string{
			t.Track.ID,
			t.Track.Name,
			t.Track.ArtistNames(),
			t.Track.Album.Name,
			FormatDuration(t.Track.DurationMS),
			t.Track.URL(),
		}
		for d := range models.EmbeddingDims {
			if t.Embedding == nil {
				record = append(record, "")
				continue
			}
			record = append(record, strconv.FormatFloat(float64(t.Embedding[d]), 'f', 4, 32))
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts an Export to a Markdown document with a track list and, when any track has one,
// an embedding table.
func ExportToMarkdown(export *Export) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", export.Title)
	fmt.Fprintf(&buf, "**Tracks**: %d of %d\n", len(export.Tracks), export.Total)
	if export.Offset > 0 {
		fmt.Fprintf(&buf, "**Offset**: %d\n", export.Offset)
	}
	buf.WriteString("\n## Tracks\n\n")

	embedded := 0
	for i, t := range export.Tracks {
		albumPart := ""
		if t.Track.Album.Name != "" {
			albumPart = fmt.Sprintf(" (%s)", t.Track.Album.Name)
		}
		fmt.Fprintf(&buf, "%d. [%s - %s](%s)%s [%s]\n",
			i+1, t.Track.ArtistNames(), t.Track.Name, t.Track.URL(), albumPart, FormatDuration(t.Track.DurationMS))
		if t.Embedding != nil {
			embedded++
		}
	}

	if embedded == 0 {
		return buf.Bytes(), nil
	}

	fmt.Fprintf(&buf, "\n## Embeddings (%s)\n\n", models.EmbeddingVersion)
	buf.WriteString("| Track | " + strings.Join(models.EmbeddingDimensions[:], " | ") + " |\n")
	buf.WriteString("|---" + strings.Repeat("|---:", models.EmbeddingDims) + "|\n")
	for _, t := range export.Tracks {
		if t.Embedding == nil {
			continue
		}
		cells := make([]string, models.EmbeddingDims)
		for d, v := range t.Embedding {
			cells[d] = strconv.FormatFloat(float64(v), 'f', 2, 32)
		}
		fmt.Fprintf(&buf, "| %s | %s |\n", strings.ReplaceAll(t.Track.Name, "|", `\|`), strings.Join(cells, " | "))
	}

	return buf.Bytes(), nil
}

// ExportToText converts an Export to plain text format
func ExportToText(export *Export) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "%s\n", export.Title)
	fmt.Fprintf(&buf, "Tracks: %d of %d (offset %d)\n\n", len(export.Tracks), export.Total, export.Offset)

	for i, t := range export.Tracks {
		fmt.Fprintf(&buf, "%d. %s - %s [%s]\n", i+1, t.Track.ArtistNames(), t.Track.Name, FormatDuration(t.Track.DurationMS))
		fmt.Fprintf(&buf, "   %s\n", t.Track.ID)
		if t.Embedding != nil {
			vals := make([]string, models.EmbeddingDims)
			for d, v := range t.Embedding {
				vals[d] = strconv.FormatFloat(float64(v), 'f', 2, 32)
			}
			fmt.Fprintf(&buf, "   embedding: %s\n", strings.Join(vals, " "))
		}
	}

	return buf.Bytes(), nil
}

// Render encodes export as f.
func Render(export *Export, f Format) ([]byte, error) {
	switch f {
	case FormatJSON:
		return ExportToJSON(export)
	case FormatCSV:
		return ExportToCSV(export)
	case FormatMarkdown:
		return ExportToMarkdown(export)
	case FormatText:
		return ExportToText(export)
	}
	return nil, fmt.Errorf("%w: unknown format %q", shared.ErrInvalidInput, f)
}

// Write renders export as f onto w.
func Write(w io.Writer, export *Export, f Format) error {
	data, err := Render(export, f)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write %s output: %w", f, err)
	}
	return nil
}

// WriteExport renders export as f into a file and returns its path.
//
// Defaults to a slug of the title plus the format's extension.
func WriteExport(export *Export, f Format, path string) (string, error) {
	if path == "" {
		path = Slug(export.Title) + f.Extension()
	}

	data, err := Render(export, f)
	if err != nil {
		return "", fmt.Errorf("failed to generate %s: %w", f, err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s file: %w", f, err)
	}

	return path, nil
}

// FormatDuration renders milliseconds as m:ss, or h:mm:ss past an hour.
func FormatDuration(ms int) string {
	if ms < 0 {
		ms = 0
	}
	total := ms / 1000
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// Slug lowercases s and replaces runs of anything but letters and digits with a single dash.
func Slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	out := strings.TrimSuffix(b.String(), "-")
	if out == "" {
		return "tracks"
	}
	return out
}
