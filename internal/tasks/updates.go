package tasks

import (
	"fmt"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	PlanBatches Phase = iota
	FetchBatch
	Complete
)

func (p Phase) String() string {
	switch p {
	case PlanBatches:
		return "plan_batches"
	case FetchBatch:
		return "fetch_batch"
	case Complete:
		return "complete"
	default:
		return ""
	}
}

func planUpdate(ids, batches int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PlanBatches,
		Step:    0,
		Total:   batches,
		Message: fmt.Sprintf("Looking up %d tracks in %d batches...", ids, batches),
	}
}

func batchCompletedUpdate(step, total int, res batchResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchBatch,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ batch %d: %d of %d found", step, total, res.index+1, len(res.tracks), len(res.ids)),
	}
}

func batchFailedUpdate(step, total int, res batchResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchBatch,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ batch %d: %v", step, total, res.index+1, res.err),
		Data:    res.err,
	}
}

func completeUpdate(total int, result *BulkResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Complete,
		Step:    total,
		Total:   total,
		Message: fmt.Sprintf("Done: %d found, %d with embeddings, %d failed batches", result.Found, result.Embedded, len(result.Failures)),
		Data:    result,
	}
}

// sendProgress delivers u without blocking; updates are dropped when nobody is listening.
func sendProgress(prog chan<- ProgressUpdate, u ProgressUpdate) {
	if prog == nil {
		return
	}
	select {
	case prog <- u:
	default:
	}
}
