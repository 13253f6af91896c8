package events

import (
	"math/big"
	"strconv"

	"vaultlock/core/types"
)

const (
	// TypeLockRunStarted is emitted when an orchestration run passes
	// validation and begins resolving fees and balances.
	TypeLockRunStarted = "lockup.run.started"
	// TypeLockStepStarted is emitted when a planned step begins executing.
	TypeLockStepStarted = "lockup.step.started"
	// TypeLockStepCompleted is emitted when a step finishes successfully.
	TypeLockStepCompleted = "lockup.step.completed"
	// TypeLockStepFailed is emitted when a step fails; the run halts.
	TypeLockStepFailed = "lockup.step.failed"
	// TypeLockRunCompleted is emitted once the lock has been created.
	TypeLockRunCompleted = "lockup.run.completed"
	// TypeLockRunFailed is emitted when the run terminates without a lock.
	TypeLockRunFailed = "lockup.run.failed"
)

// LockRunStarted announces a new orchestration run.
type LockRunStarted struct {
	RunID  string
	Caller types.Principal
	Kind   string
	Steps  []string
}

func (LockRunStarted) EventType() string { return TypeLockRunStarted }

// Event renders the typed payload into the generic attribute form.
func (e LockRunStarted) Event() *types.Event {
	attrs := map[string]string{
		"runId":  e.RunID,
		"caller": e.Caller.String(),
		"kind":   e.Kind,
		"steps":  strconv.Itoa(len(e.Steps)),
	}
	return &types.Event{Type: TypeLockRunStarted, Attributes: attrs}
}

// LockStep carries the shared fields of per-step notifications.
type LockStep struct {
	RunID  string
	Caller types.Principal
	Step   string
	Amount *big.Int
}

func stepAttrs(e LockStep) map[string]string {
	attrs := map[string]string{
		"runId":  e.RunID,
		"caller": e.Caller.String(),
		"step":   e.Step,
	}
	if e.Amount != nil {
		attrs["amount"] = e.Amount.String()
	}
	return attrs
}

// LockStepStarted marks the start of a payment, deposit, custody, or create
// step.
type LockStepStarted struct{ LockStep }

func (LockStepStarted) EventType() string { return TypeLockStepStarted }

func (e LockStepStarted) Event() *types.Event {
	return &types.Event{Type: TypeLockStepStarted, Attributes: stepAttrs(e.LockStep)}
}

// LockStepCompleted marks the successful end of a step. Performed is false
// when the step's precondition was already satisfied and no call was made.
type LockStepCompleted struct {
	LockStep
	Performed bool
}

func (LockStepCompleted) EventType() string { return TypeLockStepCompleted }

func (e LockStepCompleted) Event() *types.Event {
	attrs := stepAttrs(e.LockStep)
	attrs["performed"] = strconv.FormatBool(e.Performed)
	return &types.Event{Type: TypeLockStepCompleted, Attributes: attrs}
}

// LockStepFailed marks a failed step together with the failure reason.
type LockStepFailed struct {
	LockStep
	Reason string
}

func (LockStepFailed) EventType() string { return TypeLockStepFailed }

func (e LockStepFailed) Event() *types.Event {
	attrs := stepAttrs(e.LockStep)
	attrs["reason"] = e.Reason
	return &types.Event{Type: TypeLockStepFailed, Attributes: attrs}
}

// LockRunCompleted reports the identifier of the created lock.
type LockRunCompleted struct {
	RunID  string
	Caller types.Principal
	LockID uint64
}

func (LockRunCompleted) EventType() string { return TypeLockRunCompleted }

func (e LockRunCompleted) Event() *types.Event {
	attrs := map[string]string{
		"runId":  e.RunID,
		"caller": e.Caller.String(),
		"lockId": strconv.FormatUint(e.LockID, 10),
	}
	return &types.Event{Type: TypeLockRunCompleted, Attributes: attrs}
}

// LockRunFailed reports a terminally failed run.
type LockRunFailed struct {
	RunID  string
	Caller types.Principal
	Step   string
	Reason string
}

func (LockRunFailed) EventType() string { return TypeLockRunFailed }

func (e LockRunFailed) Event() *types.Event {
	attrs := map[string]string{
		"runId":  e.RunID,
		"caller": e.Caller.String(),
		"reason": e.Reason,
	}
	if e.Step != "" {
		attrs["step"] = e.Step
	}
	return &types.Event{Type: TypeLockRunFailed, Attributes: attrs}
}
