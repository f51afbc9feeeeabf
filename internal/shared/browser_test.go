package shared

import (
	"errors"
	"os/exec"
	"slices"
	"testing"
)

func TestOpenBrowser(t *testing.T) {
	origRuntime, origStart := getRuntime, startCommand
	t.Cleanup(func() { getRuntime, startCommand = origRuntime, origStart })

	const link = "https://open.spotify.com/track/abc"

	t.Run("Platform Commands", func(t *testing.T) {
		tests := []struct {
			goos string
			want []string
		}{
			{"darwin", []string{"open", link}},
			{"linux", []string{"xdg-open", link}},
			{"windows", []string{"rundll32", "url.dll,FileProtocolHandler", link}},
		}
		for _, tt := range tests {
			t.Run(tt.goos, func(t *testing.T) {
				getRuntime = func() string { return tt.goos }
				cmd, err := BrowserCommand(link)
				if err != nil {
					t.Fatalf("BrowserCommand() error = %v", err)
				}
				if !slices.Equal(cmd.Args, tt.want) {
					t.Errorf("args = %v, want %v", cmd.Args, tt.want)
				}
			})
		}
	})

	t.Run("Unsupported Platform", func(t *testing.T) {
		getRuntime = func() string { return "plan9" }
		if err := OpenBrowser(link); err == nil {
			t.Error("expected error for unsupported platform")
		}
	})

	t.Run("Rejects Non-Web Links", func(t *testing.T) {
		getRuntime = func() string { return "linux" }
		if err := OpenBrowser("spotify:track:abc"); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("error = %v, want ErrInvalidInput", err)
		}
	})

	t.Run("Start", func(t *testing.T) {
		getRuntime = func() string { return "linux" }
		var started *exec.Cmd
		startCommand = func(cmd *exec.Cmd) error { started = cmd; return nil }
		if err := OpenBrowser(link); err != nil {
			t.Fatalf("OpenBrowser() error = %v", err)
		}
		if started == nil || started.Args[1] != link {
			t.Errorf("started = %v", started)
		}

		startCommand = func(*exec.Cmd) error { return errors.New("no display") }
		if err := OpenBrowser(link); err == nil {
			t.Error("expected start failure to surface")
		}
	})
}
