package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/tracksearch/internal/shared"
)

// ConfigInit writes the example configuration to the --config path.
func (r *Runner) ConfigInit(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("config")
	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}
	r.writePlain("✓ Config written to %s\n", path)
	r.writePlain("Set client_id and client_secret (or SPOTIFY_CLIENT_ID / SPOTIFY_CLIENT_SECRET) before running tracksearch serve\n")
	return nil
}

// ConfigShow prints the configuration after file and environment overrides, masking the client secret.
//
// Unlike the upstream commands it does not require credentials to be set.
func (r *Runner) ConfigShow(ctx context.Context, cmd *cli.Command) error {
	config := shared.DefaultConfig()
	if path := cmd.String("config"); path != "" {
		if _, err := os.Stat(path); err == nil {
			if config, err = shared.LoadConfig(path); err != nil {
				return err
			}
		}
	}
	if err := config.ApplyEnv(r.lookupEnv); err != nil {
		return err
	}

	masked := *config
	masked.Credentials.Spotify.ClientSecret = mask(config.Credentials.Spotify.ClientSecret)

	if err := toml.NewEncoder(r.output).Encode(masked); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

func mask(s string) string {
	if len(s) <= 4 {
		return strings.Repeat("*", len(s))
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}
