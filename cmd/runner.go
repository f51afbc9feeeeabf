package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/tracksearch/internal/auth"
	"github.com/desertthunder/tracksearch/internal/instrumentation"
	"github.com/desertthunder/tracksearch/internal/server"
	"github.com/desertthunder/tracksearch/internal/services"
	"github.com/desertthunder/tracksearch/internal/shared"
)

// TokenSource hands out bearer tokens; [auth.Cache] satisfies it.
type TokenSource interface {
	Token(ctx context.Context) (auth.Token, error)
}

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// Upstream components are built on first use from the resolved configuration unless injected through [RunnerOpts].
type Runner struct {
	config     *shared.Config
	lookupEnv  func(string) (string, bool)
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	input      io.Reader
	inst       *instrumentation.Instrumentation
	tokens     TokenSource
	catalog    server.Catalog
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	LookupEnv  func(string) (string, bool)
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
	Input      io.Reader
	Tokens     TokenSource
	Catalog    server.Catalog
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Input == nil {
		opts.Input = os.Stdin
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.LookupEnv == nil {
		opts.LookupEnv = os.LookupEnv
	}

	return &Runner{
		config:     opts.Config,
		lookupEnv:  opts.LookupEnv,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		input:      opts.Input,
		tokens:     opts.Tokens,
		catalog:    opts.Catalog,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		serveCommand, searchCommand, tracksCommand, exportCommand, tokenCommand, browseCommand, configCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// SetLogger replaces the logger used by the runner and by components built after the call.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

// Close flushes telemetry.
func (r *Runner) Close(ctx context.Context) error {
	if r.inst == nil {
		return nil
	}
	return r.inst.Shutdown(ctx)
}

// loadConfig resolves the configuration once: file, then environment, then --log-level.
func (r *Runner) loadConfig(cmd *cli.Command) (*shared.Config, error) {
	if r.config == nil {
		config, err := shared.ResolveConfig(cmd.String("config"), r.lookupEnv)
		if err != nil {
			return nil, err
		}
		r.config = config
	}

	if lvl := cmd.String("log-level"); lvl != "" {
		r.config.LogLevel = lvl
	}
	level, err := shared.ParseLogLevel(r.config.LogLevel)
	if err != nil {
		return nil, err
	}
	shared.SetLogLevel(r.logger, level)
	return r.config, nil
}

// setup builds the credential cache, catalog client and facade that the upstream commands share.
func (r *Runner) setup(cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	if r.inst == nil {
		inst, err := instrumentation.New(instrumentation.Config{
			ServiceName:    config.Telemetry.ServiceName,
			ServiceVersion: version,
			Enabled:        config.Telemetry.Enabled,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize telemetry: %w", err)
		}
		r.inst = inst
	}

	up, sp := config.Upstream, config.Credentials.Spotify

	if r.tokens == nil {
		r.tokens = auth.NewClientCredentials(sp.ClientID, sp.ClientSecret, sp.TokenURL, r.httpClient,
			auth.WithMargin(up.TokenMargin.Duration),
			auth.WithTimeout(up.RequestTimeout.Duration),
			auth.WithLogger(shared.WithLogger(r.logger, "component", "auth")),
			auth.WithInstrumentation(r.inst),
		)
	}

	if r.catalog == nil {
		provider, ok := r.tokens.(services.TokenProvider)
		if !ok {
			return fmt.Errorf("%w: token source cannot refresh", shared.ErrInvalidConfig)
		}
		client, err := services.NewSpotifyClient(sp.APIBaseURL, provider,
			services.WithHTTPClient(r.httpClient),
			services.WithRequestTimeout(up.RequestTimeout.Duration),
			services.WithTrackBatchSize(up.TrackBatchSize),
			services.WithRateLimit(up.RequestsPerSecond),
			services.WithClientLogger(shared.WithLogger(r.logger, "component", "spotify")),
			services.WithClientInstrumentation(r.inst),
		)
		if err != nil {
			return fmt.Errorf("failed to create Spotify client: %w", err)
		}

		features := services.NewFeatureFetcher(client, up.FeatureBatchSize, up.FeatureConcurrency,
			shared.WithLogger(r.logger, "component", "features"))
		r.catalog = services.NewCatalog(client, features, up.MaxIDs, shared.WithLogger(r.logger, "component", "catalog"))
	}

	return nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
