// Package saga tracks the completed steps of a multi-record mutation so they
// can be undone in reverse order when a later step fails. The record store
// offers no cross-record transaction; pairing every forward write with an
// explicit compensation is what makes these operations look all-or-nothing to
// readers.
package saga

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/betweenus/backend/internal/logging"
)

// DefaultUndoTimeout bounds each compensating call. A compensation that times
// out cannot be retried automatically; it surfaces as part of a
// *CompensationError for manual repair.
const DefaultUndoTimeout = 5 * time.Second

type step struct {
	name string
	kind string
	id   string
	undo func(context.Context) error
}

// Saga is an ordered log of completed, compensable steps within a single
// operation. It is not safe for concurrent use; each invocation builds its
// own.
type Saga struct {
	name        string
	undoTimeout time.Duration
	steps       []step
}

// New returns an empty saga named for the operation it protects.
func New(name string) *Saga {
	return &Saga{name: name, undoTimeout: DefaultUndoTimeout}
}

// Completed records a finished forward step together with the action that
// undoes it. kind and id identify the record the step touched so a failed
// compensation can be reported precisely.
func (s *Saga) Completed(name, kind, id string, undo func(context.Context) error) {
	s.steps = append(s.steps, step{name: name, kind: kind, id: id, undo: undo})
}

// Rollback undoes every completed step in reverse order. It runs on a context
// detached from the forward call's cancellation so a timed-out forward step
// does not doom its own cleanup; each undo still gets a bounded timeout.
//
// A nil return means every compensation succeeded and no observable effect of
// the saga remains. A *CompensationError means at least one record was left
// behind and manual reconciliation is required.
func (s *Saga) Rollback(ctx context.Context) error {
	logger := logging.FromContext(ctx)
	base := context.WithoutCancel(ctx)

	var failures []StepFailure
	for i := len(s.steps) - 1; i >= 0; i-- {
		st := s.steps[i]

		undoCtx, cancel := context.WithTimeout(base, s.undoTimeout)
		err := st.undo(undoCtx)
		cancel()

		if err != nil {
			logger.Error("saga compensation failed",
				"saga", s.name, "step", st.name, "kind", st.kind, "id", st.id, "error", err)
			failures = append(failures, StepFailure{Step: st.name, Kind: st.kind, ID: st.id, Err: err})
			continue
		}
		logger.Info("saga step compensated", "saga", s.name, "step", st.name, "kind", st.kind, "id", st.id)
	}

	s.steps = nil
	if len(failures) > 0 {
		return &CompensationError{Saga: s.name, Failures: failures}
	}
	return nil
}

// StepFailure identifies one compensation that did not complete.
type StepFailure struct {
	Step string
	Kind string
	ID   string
	Err  error
}

// CompensationError reports rollback steps that failed, leaving records that
// violate the engine's consistency invariant. It must never be swallowed.
type CompensationError struct {
	Saga     string
	Failures []StepFailure
}

func (e *CompensationError) Error() string {
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = fmt.Sprintf("%s (%s/%s): %v", f.Step, f.Kind, f.ID, f.Err)
	}
	return fmt.Sprintf("saga %s: compensation failed: %s", e.Saga, strings.Join(parts, "; "))
}

// Unwrap exposes the first underlying failure for errors.Is/As inspection.
func (e *CompensationError) Unwrap() error {
	if len(e.Failures) == 0 {
		return nil
	}
	return e.Failures[0].Err
}
