// Package upload owns the submission lifecycle for CSV analysis: filename
// validation, the single-flight state machine driving the idle, submitting,
// success and failure views, and the submission service that talks to the
// analysis client.
package upload

import (
	"context"
	"errors"
	"sync"

	"finsight/internal/analysis"
)

// Phase is the machine's current state. Result and error data hang off the
// phase so that invalid combinations (a result while submitting, an error
// alongside a result) cannot be represented.
type Phase int

const (
	// PhaseIdle shows the upload view with no result.
	PhaseIdle Phase = iota
	// PhaseSubmitting means one request is in flight; the drop zone is
	// non-interactive until it resolves.
	PhaseSubmitting
	// PhaseSuccess shows the dashboard for the held result.
	PhaseSuccess
	// PhaseFailed shows the upload view with an error line.
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseSubmitting:
		return "submitting"
	case PhaseSuccess:
		return "success"
	case PhaseFailed:
		return "failed"
	default:
		return "idle"
	}
}

// ErrSubmissionInFlight is returned by Begin while a submission is already
// running. The drop zone is disabled client-side during a submission, so
// hitting this means a request bypassed the UI.
var ErrSubmissionInFlight = errors.New("a submission is already in flight")

// ErrResultPresent is returned by Begin from the success phase. A new file
// requires an explicit reset first.
var ErrResultPresent = errors.New("an analysis result is already present, reset first")

// Snapshot is an immutable view of the machine for rendering. Result is
// non-nil only in PhaseSuccess; Error is meaningful only in PhaseFailed.
type Snapshot struct {
	Phase  Phase
	Result *analysis.Result
	Error  analysis.UserMessage
}

// Machine is the upload/result state machine. All transitions are guarded
// by a mutex; completion calls are fenced by a generation token so that a
// response arriving after a reset cannot overwrite fresh state.
type Machine struct {
	mu     sync.Mutex
	phase  Phase
	result *analysis.Result
	errMsg analysis.UserMessage

	gen    uint64
	cancel context.CancelFunc
}

// NewMachine returns a machine in the idle phase.
func NewMachine() *Machine {
	return &Machine{phase: PhaseIdle}
}

// Begin transitions to the submitting phase, clearing any prior error.
// It returns a context derived from parent that Reset cancels, and the
// generation token the eventual Succeed or Fail call must present.
// Only one submission may be in flight; Begin from the success phase is
// rejected because the dashboard has no upload surface.
func (m *Machine) Begin(parent context.Context) (context.Context, uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.phase {
	case PhaseSubmitting:
		return nil, 0, ErrSubmissionInFlight
	case PhaseSuccess:
		return nil, 0, ErrResultPresent
	}

	ctx, cancel := context.WithCancel(parent)
	m.phase = PhaseSubmitting
	m.errMsg = analysis.UserMessage{}
	m.gen++
	m.cancel = cancel
	return ctx, m.gen, nil
}

// Succeed installs the result and moves to the success phase. The call is
// ignored (returns false) when gen is stale or the machine is no longer
// submitting, which happens when Reset won the race.
func (m *Machine) Succeed(gen uint64, result *analysis.Result) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != PhaseSubmitting || gen != m.gen {
		return false
	}
	m.phase = PhaseSuccess
	m.result = result
	m.errMsg = analysis.UserMessage{}
	m.clearCancelLocked()
	return true
}

// Fail records the user-facing message and moves to the failed phase.
// The prior result is untouched by construction: the failed phase is only
// reachable from submitting, which holds no result. Stale calls are
// ignored, same as Succeed.
func (m *Machine) Fail(gen uint64, msg analysis.UserMessage) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != PhaseSubmitting || gen != m.gen {
		return false
	}
	m.phase = PhaseFailed
	m.errMsg = msg
	m.clearCancelLocked()
	return true
}

// RejectFile records a local validation failure without entering the
// submitting phase; no request is issued. Ignored while a submission is in
// flight or a result is displayed.
func (m *Machine) RejectFile(msg analysis.UserMessage) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase == PhaseSubmitting || m.phase == PhaseSuccess {
		return false
	}
	m.phase = PhaseFailed
	m.errMsg = msg
	return true
}

// Reset returns to the idle phase from any state, clearing the result and
// error and cancelling an in-flight submission if there is one.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.clearCancelLocked()
	m.phase = PhaseIdle
	m.result = nil
	m.errMsg = analysis.UserMessage{}
}

// Snapshot returns the current state for rendering.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Snapshot{
		Phase:  m.phase,
		Result: m.result,
		Error:  m.errMsg,
	}
}

func (m *Machine) clearCancelLocked() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
}
