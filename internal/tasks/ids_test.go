package tasks

import (
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/desertthunder/tracksearch/internal/shared"
	tu "github.com/desertthunder/tracksearch/internal/testing"
)

func TestReadIDs(t *testing.T) {
	t.Run("Mixed Separators And References", func(t *testing.T) {
		input := strings.Join([]string{
			"# favourites",
			"4uLU6hMCjMI75M1A2tKUQC, 0VjIjW4GlUZAMYd2vXMi3b",
			"",
			"spotify:track:7qiZfU4dY1lWllzX7mPBI3\thttps://open.spotify.com/track/3n3Ppam7vgaVa1iaRUc9Lp?si=abc",
			"https://open.spotify.com/intl-de/track/1mea3bSkSGXuIRvnydlB5b  # trailing note",
		}, "\n")

		got, err := ReadIDs(strings.NewReader(input))
		if err != nil {
			t.Fatalf("ReadIDs() error = %v", err)
		}
		want := []string{
			"4uLU6hMCjMI75M1A2tKUQC",
			"0VjIjW4GlUZAMYd2vXMi3b",
			"7qiZfU4dY1lWllzX7mPBI3",
			"3n3Ppam7vgaVa1iaRUc9Lp",
			"1mea3bSkSGXuIRvnydlB5b",
		}
		if !slices.Equal(got, want) {
			t.Errorf("ReadIDs() = %v, want %v", got, want)
		}
	})

	t.Run("Empty Input", func(t *testing.T) {
		got, err := ReadIDs(strings.NewReader("\n# nothing here\n"))
		if err != nil {
			t.Fatalf("ReadIDs() error = %v", err)
		}
		if len(got) != 0 {
			t.Errorf("ReadIDs() = %v, want none", got)
		}
	})

	t.Run("Reports The Offending Line", func(t *testing.T) {
		_, err := ReadIDs(strings.NewReader("abc\nspotify:album:xyz\n"))
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Fatalf("error = %v, want ErrInvalidInput", err)
		}
		if !strings.Contains(err.Error(), "line 2") {
			t.Errorf("error = %v, want line number", err)
		}
	})

	t.Run("Read Failure", func(t *testing.T) {
		_, err := ReadIDs(&tu.FCloser{})
		if err == nil || !strings.Contains(err.Error(), "failed to read ids") {
			t.Errorf("error = %v", err)
		}
	})
}

func TestParseTrackRef(t *testing.T) {
	tests := []struct {
		name    string
		ref     string
		want    string
		wantErr bool
	}{
		{"bare id", " abc123 ", "abc123", false},
		{"uri", "spotify:track:abc123", "abc123", false},
		{"link", "https://open.spotify.com/track/abc123", "abc123", false},
		{"link with query", "https://open.spotify.com/track/abc123?si=x", "abc123", false},
		{"album uri", "spotify:album:abc123", "", true},
		{"empty uri id", "spotify:track:", "", true},
		{"album link", "https://open.spotify.com/album/abc123", "", true},
		{"path", "foo/bar", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTrackRef(tt.ref)
			if tt.wantErr {
				if !errors.Is(err, shared.ErrInvalidInput) {
					t.Errorf("ParseTrackRef(%q) error = %v, want ErrInvalidInput", tt.ref, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseTrackRef(%q) error = %v", tt.ref, err)
			}
			if got != tt.want {
				t.Errorf("ParseTrackRef(%q) = %q, want %q", tt.ref, got, tt.want)
			}
		})
	}
}
