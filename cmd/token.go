package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/tracksearch/internal/auth"
)

// tokenInspector exposes the cached token state; [auth.Cache] satisfies it.
type tokenInspector interface {
	Peek() auth.State
}

type tokenReport struct {
	ExpiresAt   time.Time         `json:"expires_at"`
	ExpiresIn   int               `json:"expires_in_seconds"`
	AccessToken string            `json:"access_token,omitempty"`
	Cache       *tokenDiagnostics `json:"cache,omitempty"`
}

type tokenFailure struct {
	Error string            `json:"error"`
	Cache *tokenDiagnostics `json:"cache,omitempty"`
}

// tokenDiagnostics describes the cache without ever including a token value.
type tokenDiagnostics struct {
	Stale             bool       `json:"stale"`
	RefreshedAt       *time.Time `json:"refreshed_at,omitempty"`
	PreviousExpiresAt *time.Time `json:"previous_expires_at,omitempty"`
	LastError         string     `json:"last_error,omitempty"`
}

// Token fetches a client-credentials token and prints its expiry. The value is only printed with --show.
//
// When the fetch fails, the cache state kept from earlier refreshes is reported before the error.
func (r *Runner) Token(ctx context.Context, cmd *cli.Command) error {
	if err := r.setup(cmd); err != nil {
		return err
	}

	tok, err := r.tokens.Token(ctx)
	if err != nil {
		diag := r.tokenDiagnostics()
		if cmd.Bool("json") {
			if werr := r.writeJSON(tokenFailure{Error: err.Error(), Cache: diag}, true); werr != nil {
				return werr
			}
		} else if diag != nil {
			r.writeDiagnostics(diag)
		}
		return fmt.Errorf("failed to obtain token: %w", err)
	}

	report := tokenReport{
		ExpiresAt: tok.ExpiresAt.UTC(),
		ExpiresIn: int(time.Until(tok.ExpiresAt).Seconds()),
		Cache:     r.tokenDiagnostics(),
	}
	if cmd.Bool("show") {
		report.AccessToken = tok.Value
	}

	if cmd.Bool("json") {
		return r.writeJSON(report, true)
	}

	r.writePlain("✓ Token acquired\n")
	r.writePlain("Expires: %s (in %s)\n", report.ExpiresAt.Format(time.RFC3339), time.Duration(report.ExpiresIn)*time.Second)
	if report.AccessToken != "" {
		r.writePlain("Token: %s\n", report.AccessToken)
	}
	return nil
}

// tokenDiagnostics snapshots the token cache, or returns nil when the token source keeps no state.
func (r *Runner) tokenDiagnostics() *tokenDiagnostics {
	inspector, ok := r.tokens.(tokenInspector)
	if !ok {
		return nil
	}

	state := inspector.Peek()
	diag := &tokenDiagnostics{Stale: state.Stale}
	if !state.RefreshedAt.IsZero() {
		at := state.RefreshedAt.UTC()
		diag.RefreshedAt = &at
	}
	if state.Stale && !state.Token.IsZero() {
		at := state.Token.ExpiresAt.UTC()
		diag.PreviousExpiresAt = &at
	}
	if state.LastError != nil {
		diag.LastError = state.LastError.Error()
	}
	return diag
}

func (r *Runner) writeDiagnostics(diag *tokenDiagnostics) {
	r.writePlain("✗ Token refresh failed\n")
	if diag.RefreshedAt != nil {
		r.writePlain("Last refresh: %s\n", diag.RefreshedAt.Format(time.RFC3339))
	} else {
		r.writePlain("Last refresh: never\n")
	}
	if diag.PreviousExpiresAt != nil {
		r.writePlain("Previous token expired at: %s (not served)\n", diag.PreviousExpiresAt.Format(time.RFC3339))
	}
	if diag.LastError != "" {
		r.writePlain("Last error: %s\n", diag.LastError)
	}
}
