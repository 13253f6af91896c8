package events

import (
	"math/big"
	"testing"

	"vaultlock/core/types"
)

func TestLockStepCompletedAttributes(t *testing.T) {
	evt := LockStepCompleted{
		LockStep: LockStep{
			RunID:  "run-1",
			Caller: types.Principal("caller-aaaaa-aaa"),
			Step:   "payment",
			Amount: big.NewInt(60_000_000),
		},
		Performed: true,
	}
	if evt.EventType() != TypeLockStepCompleted {
		t.Fatalf("unexpected event type %q", evt.EventType())
	}
	rendered := evt.Event()
	attrs := rendered.Attributes
	if attrs["runId"] != "run-1" || attrs["step"] != "payment" {
		t.Fatalf("unexpected attributes %v", attrs)
	}
	if attrs["amount"] != "60000000" {
		t.Fatalf("amount should render in base units, got %q", attrs["amount"])
	}
	if attrs["performed"] != "true" {
		t.Fatalf("performed flag missing, got %v", attrs)
	}
}

func TestLockRunFailedOmitsEmptyStep(t *testing.T) {
	evt := LockRunFailed{RunID: "run-2", Caller: "caller-aaaaa-aaa", Reason: "boom"}
	attrs := evt.Event().Attributes
	if _, ok := attrs["step"]; ok {
		t.Fatalf("pre-step failures should not carry a step attribute")
	}
	if attrs["reason"] != "boom" {
		t.Fatalf("reason missing, got %v", attrs)
	}
}

func TestNoopEmitter(t *testing.T) {
	var emitter Emitter = NoopEmitter{}
	emitter.Emit(LockRunStarted{RunID: "run-3"})
}
