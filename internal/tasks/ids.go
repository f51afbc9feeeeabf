package tasks

import (
	"bufio"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/desertthunder/tracksearch/internal/shared"
)

const maxIDLine = 1 << 20

// ReadIDs reads track ids from r, one or more per line.
func ReadIDs(r io.Reader) ([]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxIDLine)

	var ids []string
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()
		if i := strings.IndexByte(text, '#'); i >= 0 {
			text = text[:i]
		}
		for _, field := range strings.FieldsFunc(text, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' }) {
			id, err := ParseTrackRef(field)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			ids = append(ids, id)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read ids: %w", err)
	}
	return ids, nil
}

// ParseTrackRef accepts a bare id, a spotify:track: URI or an open.spotify.com track link.
func ParseTrackRef(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	switch {
	case strings.HasPrefix(ref, "spotify:"):
		parts := strings.Split(ref, ":")
		if len(parts) != 3 || parts[1] != "track" || parts[2] == "" {
			return "", fmt.Errorf("%w: %q is not a track URI", shared.ErrInvalidInput, ref)
		}
		return parts[2], nil

	case strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://"):
		u, err := url.Parse(ref)
		if err != nil {
			return "", fmt.Errorf("%w: %q: %v", shared.ErrInvalidInput, ref, err)
		}
		segs := strings.Split(strings.Trim(u.Path, "/"), "/")
		for i := 0; i+1 < len(segs); i++ {
			if segs[i] == "track" && segs[i+1] != "" {
				return segs[i+1], nil
			}
		}
		return "", fmt.Errorf("%w: %q is not a track link", shared.ErrInvalidInput, ref)
	}

	if ref == "" || strings.ContainsAny(ref, "/:?") {
		return "", fmt.Errorf("%w: %q is not a track id", shared.ErrInvalidInput, ref)
	}
	return ref, nil
}
