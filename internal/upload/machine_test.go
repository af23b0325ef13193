package upload

import (
	"context"
	"errors"
	"testing"

	"finsight/internal/analysis"
)

func TestMachine_InitialState(t *testing.T) {
	m := NewMachine()

	snap := m.Snapshot()
	if snap.Phase != PhaseIdle {
		t.Errorf("Phase = %v, want PhaseIdle", snap.Phase)
	}
	if snap.Result != nil {
		t.Errorf("Result = %v, want nil", snap.Result)
	}
	if snap.Error.Message != "" {
		t.Errorf("Error.Message = %q, want empty", snap.Error.Message)
	}
}

func TestMachine_SubmitSuccessCycle(t *testing.T) {
	m := NewMachine()

	_, gen, err := m.Begin(context.Background())
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	if got := m.Snapshot().Phase; got != PhaseSubmitting {
		t.Fatalf("Phase after Begin = %v, want PhaseSubmitting", got)
	}

	result := &analysis.Result{Filename: "finances.csv"}
	if !m.Succeed(gen, result) {
		t.Fatal("Succeed() = false, want true")
	}

	snap := m.Snapshot()
	if snap.Phase != PhaseSuccess {
		t.Errorf("Phase = %v, want PhaseSuccess", snap.Phase)
	}
	if snap.Result != result {
		t.Errorf("Result = %v, want the submitted result", snap.Result)
	}
	if snap.Error.Message != "" {
		t.Errorf("Error.Message = %q, want empty after success", snap.Error.Message)
	}
}

func TestMachine_SubmitFailureKeepsNoResult(t *testing.T) {
	m := NewMachine()

	_, gen, err := m.Begin(context.Background())
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}

	msg := analysis.UserMessage{Message: analysis.MsgUploadFailed, Code: "ANA003"}
	if !m.Fail(gen, msg) {
		t.Fatal("Fail() = false, want true")
	}

	snap := m.Snapshot()
	if snap.Phase != PhaseFailed {
		t.Errorf("Phase = %v, want PhaseFailed", snap.Phase)
	}
	if snap.Result != nil {
		t.Errorf("Result = %v, want nil after failure", snap.Result)
	}
	if snap.Error != msg {
		t.Errorf("Error = %+v, want %+v", snap.Error, msg)
	}
}

func TestMachine_SingleFlight(t *testing.T) {
	m := NewMachine()

	_, _, err := m.Begin(context.Background())
	if err != nil {
		t.Fatalf("first Begin() error = %v", err)
	}

	_, _, err = m.Begin(context.Background())
	if !errors.Is(err, ErrSubmissionInFlight) {
		t.Errorf("second Begin() error = %v, want ErrSubmissionInFlight", err)
	}
}

func TestMachine_BeginAfterFailureClearsError(t *testing.T) {
	m := NewMachine()
	m.RejectFile(analysis.UserMessage{Message: analysis.MsgNotCSV, Code: "VAL001"})

	_, _, err := m.Begin(context.Background())
	if err != nil {
		t.Fatalf("Begin() from failed phase error = %v", err)
	}

	snap := m.Snapshot()
	if snap.Phase != PhaseSubmitting {
		t.Errorf("Phase = %v, want PhaseSubmitting", snap.Phase)
	}
	if snap.Error.Message != "" {
		t.Errorf("Error.Message = %q, want cleared on new attempt", snap.Error.Message)
	}
}

func TestMachine_BeginFromSuccessRejected(t *testing.T) {
	m := NewMachine()
	_, gen, _ := m.Begin(context.Background())
	m.Succeed(gen, &analysis.Result{Filename: "a.csv"})

	_, _, err := m.Begin(context.Background())
	if !errors.Is(err, ErrResultPresent) {
		t.Errorf("Begin() from success error = %v, want ErrResultPresent", err)
	}
}

func TestMachine_ResetFromAnyPhase(t *testing.T) {
	t.Run("from success", func(t *testing.T) {
		m := NewMachine()
		_, gen, _ := m.Begin(context.Background())
		m.Succeed(gen, &analysis.Result{Filename: "a.csv"})

		m.Reset()

		snap := m.Snapshot()
		if snap.Phase != PhaseIdle || snap.Result != nil || snap.Error.Message != "" {
			t.Errorf("after Reset: %+v, want idle with no result and no error", snap)
		}
	})

	t.Run("from failed", func(t *testing.T) {
		m := NewMachine()
		m.RejectFile(analysis.UserMessage{Message: analysis.MsgNotCSV, Code: "VAL001"})

		m.Reset()

		if snap := m.Snapshot(); snap.Phase != PhaseIdle || snap.Error.Message != "" {
			t.Errorf("after Reset: %+v, want idle with no error", snap)
		}
	})
}

func TestMachine_ResetCancelsInFlight(t *testing.T) {
	m := NewMachine()

	ctx, gen, err := m.Begin(context.Background())
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}

	m.Reset()

	select {
	case <-ctx.Done():
	default:
		t.Error("submission context not cancelled by Reset")
	}

	// The stale response must not overwrite the reset state.
	if m.Succeed(gen, &analysis.Result{Filename: "stale.csv"}) {
		t.Error("Succeed() accepted a stale generation after Reset")
	}
	if snap := m.Snapshot(); snap.Phase != PhaseIdle || snap.Result != nil {
		t.Errorf("after stale Succeed: %+v, want idle with no result", snap)
	}
}

func TestMachine_StaleFailIgnored(t *testing.T) {
	m := NewMachine()

	_, oldGen, _ := m.Begin(context.Background())
	m.Reset()
	_, gen, _ := m.Begin(context.Background())

	if m.Fail(oldGen, analysis.UserMessage{Message: analysis.MsgUploadFailed}) {
		t.Error("Fail() accepted a stale generation")
	}
	if snap := m.Snapshot(); snap.Phase != PhaseSubmitting {
		t.Errorf("Phase = %v, want PhaseSubmitting untouched by stale Fail", snap.Phase)
	}

	if !m.Fail(gen, analysis.UserMessage{Message: analysis.MsgUploadFailed, Code: "ANA003"}) {
		t.Error("Fail() with current generation = false, want true")
	}
}

func TestMachine_RejectFileWhileSubmitting(t *testing.T) {
	m := NewMachine()
	_, _, _ = m.Begin(context.Background())

	if m.RejectFile(analysis.UserMessage{Message: analysis.MsgNotCSV}) {
		t.Error("RejectFile() = true during submission, want false")
	}
	if snap := m.Snapshot(); snap.Phase != PhaseSubmitting {
		t.Errorf("Phase = %v, want PhaseSubmitting", snap.Phase)
	}
}
