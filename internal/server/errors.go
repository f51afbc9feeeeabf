package server

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/desertthunder/tracksearch/internal/shared"
)

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// statusFor maps an error onto the HTTP status a caller sees.
func statusFor(err error) int {
	switch shared.KindOf(err) {
	case shared.KindInvalidInput:
		return http.StatusBadRequest
	case shared.KindRateLimited:
		return http.StatusTooManyRequests
	case shared.KindUpstreamTimeout:
		return http.StatusGatewayTimeout
	case shared.KindAuthFailure, shared.KindUpstreamProtocol, shared.KindUpstream:
		return http.StatusBadGateway
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func kindFor(err error) string {
	if k := shared.KindOf(err); k != shared.KindUnknown {
		return k.String()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return shared.KindUpstreamTimeout.String()
	}
	return "internal"
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusTooManyRequests {
		if d := shared.RetryAfterOf(err); d > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(d.Seconds()))))
		}
	}
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal server error"
	}
	writeErrorMessage(w, status, kindFor(err), msg)
}

func writeErrorMessage(w http.ResponseWriter, status int, kind, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg, Kind: kind})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
