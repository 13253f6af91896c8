package lockup

import (
	"context"
	"math/big"
	"time"

	"github.com/google/uuid"

	"vaultlock/core/events"
	"vaultlock/core/types"
)

// Config carries the injected service identifiers the engine needs. There are
// no compile-time canister constants anywhere in the package.
type Config struct {
	// ServicePrincipal is the lock service; it owns the payment and vault
	// subaccounts and receives position custody.
	ServicePrincipal types.Principal
	// FeeLedgerID is the ledger lock fees are paid on.
	FeeLedgerID types.Principal
	// FeeLedgerFee is that ledger's own transfer fee in base units.
	FeeLedgerFee *big.Int
	// FeeSymbol labels fee amounts in error messages.
	FeeSymbol string
}

// Engine sequences one lock-creation attempt: resolve the fee, top up the
// payment escrow, move funds or custody into the vault, then create the lock.
// Every run works exclusively on state fetched inside that run; a run that
// failed part-way can simply be re-invoked and will skip what already holds.
type Engine struct {
	cfg     Config
	ledger  Ledger
	service LockService
	emitter events.Emitter
	nowFn   func() time.Time
	runIDFn func() string
}

// NewEngine wires the engine with a no-op emitter. Callers can override the
// emitter via SetEmitter.
func NewEngine(cfg Config, ledger Ledger, service LockService) *Engine {
	return &Engine{
		cfg:     cfg,
		ledger:  ledger,
		service: service,
		emitter: events.NoopEmitter{},
		nowFn:   time.Now,
		runIDFn: func() string { return uuid.NewString() },
	}
}

// SetEmitter configures the progress event emitter. Passing nil resets it to
// a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source. Primarily intended for tests.
func (e *Engine) SetNowFunc(now func() time.Time) {
	if now == nil {
		e.nowFn = time.Now
		return
	}
	e.nowFn = now
}

// SetRunIDFunc overrides run identifier generation. Primarily intended for
// tests that assert on emitted events.
func (e *Engine) SetRunIDFunc(fn func() string) {
	if fn == nil {
		e.runIDFn = func() string { return uuid.NewString() }
		return
	}
	e.runIDFn = fn
}

func (e *Engine) emit(evt events.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(evt)
}

func (e *Engine) nowNs() uint64 {
	return uint64(e.nowFn().UnixNano())
}

// transferMemo stamps each transfer with a fresh identifier so the ledger's
// deduplication window can tell a deliberate retry from a duplicate submit.
func (e *Engine) transferMemo() []byte {
	id := uuid.New()
	return id[:]
}

// Run executes one lock attempt for either request kind and returns a receipt
// carrying the created lock identifier. On failure the returned error is a
// *RunError wrapping the typed cause; completed steps are never rolled back.
func (e *Engine) Run(ctx context.Context, req LockRequest) (*Receipt, error) {
	switch r := req.(type) {
	case TokenLockRequest:
		return e.LockToken(ctx, r)
	case *TokenLockRequest:
		return e.LockToken(ctx, *r)
	case PositionLockRequest:
		return e.LockPosition(ctx, r)
	case *PositionLockRequest:
		return e.LockPosition(ctx, *r)
	default:
		return nil, &RunError{Err: validationErrorf("unsupported lock request")}
	}
}

// run tracks the mutable pieces of one attempt.
type run struct {
	id     string
	caller types.Principal
	steps  []ProgressStep
}

func (r *run) addStep(label string, kind StepKind) {
	r.steps = append(r.steps, ProgressStep{Label: label, Kind: kind, Status: StatusPending})
}

func (r *run) step(kind StepKind) *ProgressStep {
	for i := range r.steps {
		if r.steps[i].Kind == kind {
			return &r.steps[i]
		}
	}
	return nil
}

func (r *run) snapshot() []ProgressStep {
	return append([]ProgressStep(nil), r.steps...)
}

func (e *Engine) stepEvent(r *run, kind StepKind, amount *big.Int) events.LockStep {
	return events.LockStep{RunID: r.id, Caller: r.caller, Step: string(kind), Amount: cloneBigInt(amount)}
}

func (e *Engine) beginStep(r *run, kind StepKind, amount *big.Int) {
	if s := r.step(kind); s != nil {
		s.Status = StatusActive
	}
	e.emit(events.LockStepStarted{LockStep: e.stepEvent(r, kind, amount)})
}

func (e *Engine) finishStep(r *run, kind StepKind, performed bool, amount *big.Int) {
	if s := r.step(kind); s != nil {
		if performed {
			s.Status = StatusCompleted
		} else {
			s.Status = StatusPreCompleted
		}
	}
	e.emit(events.LockStepCompleted{LockStep: e.stepEvent(r, kind, amount), Performed: performed})
}

func (e *Engine) failRun(r *run, kind StepKind, err error) error {
	if s := r.step(kind); s != nil {
		s.Status = StatusFailed
	}
	if kind != "" {
		e.emit(events.LockStepFailed{LockStep: e.stepEvent(r, kind, nil), Reason: err.Error()})
	}
	e.emit(events.LockRunFailed{RunID: r.id, Caller: r.caller, Step: string(kind), Reason: err.Error()})
	return &RunError{RunID: r.id, Step: kind, Steps: r.snapshot(), Err: err}
}

func (e *Engine) validateCommon(req LockRequest) error {
	if req.RequestCaller().IsZero() {
		return validationErrorf("caller principal required")
	}
	if req.RequestExpiryNs() <= e.nowNs() {
		return validationErrorf("expiry must be in the future")
	}
	return nil
}

// LockToken runs a token lock attempt end to end.
func (e *Engine) LockToken(ctx context.Context, req TokenLockRequest) (*Receipt, error) {
	r := &run{id: e.runIDFn(), caller: req.Caller}

	// Validating: purely local checks, no network I/O before they pass.
	if err := e.validateCommon(req); err != nil {
		return nil, e.failRun(r, "", err)
	}
	if req.Token == nil {
		return nil, e.failRun(r, "", validationErrorf("token required"))
	}
	if nonNil(req.Amount).Sign() <= 0 {
		return nil, e.failRun(r, "", validationErrorf("amount must be positive"))
	}
	if req.Token.ExceedsAvailable(req.Amount) {
		return nil, e.failRun(r, "", validationErrorf("amount exceeds available balance of %s", FormatBaseUnits(req.Token.Available(), req.Token.Decimals)))
	}

	// Resolving: fee schedule, payment escrow, and fresh balances.
	fee, payment, err := e.resolvePayment(ctx, KindToken, req.Premium, req.Caller)
	if err != nil {
		return nil, e.failRun(r, "", err)
	}
	token, err := e.refreshTokenBalances(ctx, req.Caller, req.Token)
	if err != nil {
		return nil, e.failRun(r, "", asCanisterError(err))
	}

	if payment != nil && !payment.Satisfied() {
		r.addStep("Pay lock fee", StepPayment)
	}
	if depositNeeded(token, req.Amount).Sign() > 0 {
		r.addStep("Deposit "+token.Symbol, StepDeposit)
	}
	r.addStep("Create lock", StepCreate)
	e.emit(events.LockRunStarted{RunID: r.id, Caller: r.caller, Kind: string(KindToken), Steps: stepLabels(r.steps)})

	if payment != nil && fee.Sign() > 0 {
		if err := e.runPaymentStep(ctx, r, payment); err != nil {
			return nil, err
		}
	}

	if r.step(StepDeposit) != nil {
		e.beginStep(r, StepDeposit, req.Amount)
		// Balances can move between planning and execution; re-check
		// against a fresh read before transferring.
		token, err = e.refreshTokenBalances(ctx, req.Caller, token)
		if err != nil {
			return nil, e.failRun(r, StepDeposit, asCanisterError(err))
		}
		needed := depositNeeded(token, req.Amount)
		if needed.Sign() <= 0 {
			e.finishStep(r, StepDeposit, false, nil)
		} else {
			if _, err := e.ensureDeposit(ctx, req.Caller, token, req.Amount); err != nil {
				return nil, e.failRun(r, StepDeposit, err)
			}
			e.finishStep(r, StepDeposit, true, needed)
		}
	}

	e.beginStep(r, StepCreate, req.Amount)
	lockID, err := e.createTokenLock(ctx, req.Amount, req.Token.LedgerID, req.ExpiryNs)
	if err != nil {
		return nil, e.failRun(r, StepCreate, err)
	}
	e.finishStep(r, StepCreate, true, req.Amount)
	e.emit(events.LockRunCompleted{RunID: r.id, Caller: r.caller, LockID: lockID})
	return &Receipt{RunID: r.id, LockID: lockID, Steps: r.snapshot()}, nil
}

// LockPosition runs a position lock attempt end to end.
func (e *Engine) LockPosition(ctx context.Context, req PositionLockRequest) (*Receipt, error) {
	r := &run{id: e.runIDFn(), caller: req.Caller}

	if err := e.validateCommon(req); err != nil {
		return nil, e.failRun(r, "", err)
	}
	if req.Position == nil {
		return nil, e.failRun(r, "", validationErrorf("no position selected"))
	}

	fee, payment, err := e.resolvePayment(ctx, KindPosition, req.Premium, req.Caller)
	if err != nil {
		return nil, e.failRun(r, "", err)
	}
	claims, err := e.service.ClaimedPositions(ctx, req.Caller)
	if err != nil {
		return nil, e.failRun(r, "", asCanisterError(err))
	}

	if payment != nil && !payment.Satisfied() {
		r.addStep("Pay lock fee", StepPayment)
	}
	if !custodySatisfied(req.Position, claims) {
		r.addStep("Transfer position custody", StepCustody)
	}
	r.addStep("Create lock", StepCreate)
	e.emit(events.LockRunStarted{RunID: r.id, Caller: r.caller, Kind: string(KindPosition), Steps: stepLabels(r.steps)})

	if payment != nil && fee.Sign() > 0 {
		if err := e.runPaymentStep(ctx, r, payment); err != nil {
			return nil, err
		}
	}

	if r.step(StepCustody) != nil {
		e.beginStep(r, StepCustody, nil)
		before := req.Position.CustodyState
		if err := e.ensureCustody(ctx, req.Caller, req.Position); err != nil {
			return nil, e.failRun(r, StepCustody, err)
		}
		e.finishStep(r, StepCustody, before != ClaimedByVault, nil)
	}

	e.beginStep(r, StepCreate, nil)
	lockID, err := e.createPositionLock(ctx, req.Position, req.ExpiryNs)
	if err != nil {
		return nil, e.failRun(r, StepCreate, err)
	}
	e.finishStep(r, StepCreate, true, nil)
	e.emit(events.LockRunCompleted{RunID: r.id, Caller: r.caller, LockID: lockID})
	return &Receipt{RunID: r.id, LockID: lockID, Steps: r.snapshot()}, nil
}

// resolvePayment fetches the fee schedule and, when a fee is owed, the
// caller's payment escrow state. A missing schedule aborts the run before any
// transfer is attempted. The returned PaymentState is nil for free locks.
func (e *Engine) resolvePayment(ctx context.Context, kind LockKind, premium bool, caller types.Principal) (*big.Int, *PaymentState, error) {
	schedule, err := e.service.FeeSchedule(ctx)
	if err != nil {
		return nil, nil, asCanisterError(err)
	}
	fee, err := ResolveFee(kind, premium, schedule)
	if err != nil {
		return nil, nil, asCanisterError(err)
	}
	if fee.Sign() == 0 {
		return fee, nil, nil
	}
	payment, err := e.fetchPaymentState(ctx, caller, fee)
	if err != nil {
		return nil, nil, asCanisterError(err)
	}
	return fee, payment, nil
}

func (e *Engine) runPaymentStep(ctx context.Context, r *run, payment *PaymentState) error {
	e.beginStep(r, StepPayment, payment.Shortfall())
	performed := !payment.Satisfied()
	refreshed, err := e.ensurePayment(ctx, r.caller, payment)
	if err != nil {
		return e.failRun(r, StepPayment, err)
	}
	if refreshed.Shortfall().Sign() > 0 {
		// The escrow balance is re-read from the service after the
		// transfer; if it still reports a shortfall the payment has
		// not settled and creating the lock would be rejected.
		return e.failRun(r, StepPayment, &TransferError{Ledger: e.cfg.FeeLedgerID, Detail: "payment escrow balance did not reach the required fee"})
	}
	*payment = *refreshed
	e.finishStep(r, StepPayment, performed, nil)
	return nil
}

// refreshTokenBalances re-reads the wallet and vault balances backing a token
// snapshot. Ledger metadata and the locked amount come from the discovery
// snapshot; only the two balances transfers can move are re-fetched.
func (e *Engine) refreshTokenBalances(ctx context.Context, caller types.Principal, token *Token) (*Token, error) {
	wallet, err := e.ledger.BalanceOf(ctx, token.LedgerID, types.Account{Owner: caller})
	if err != nil {
		return nil, err
	}
	vaultSub := VaultSubaccount(caller)
	vault, err := e.ledger.BalanceOf(ctx, token.LedgerID, types.Account{Owner: e.cfg.ServicePrincipal, Subaccount: &vaultSub})
	if err != nil {
		return nil, err
	}
	return &Token{
		LedgerID:      token.LedgerID,
		Symbol:        token.Symbol,
		Decimals:      token.Decimals,
		Fee:           cloneBigInt(token.Fee),
		WalletBalance: nonNil(wallet),
		VaultBalance:  nonNil(vault),
		LockedAmount:  cloneBigInt(token.LockedAmount),
	}, nil
}

func stepLabels(steps []ProgressStep) []string {
	labels := make([]string, 0, len(steps))
	for _, s := range steps {
		labels = append(labels, s.Label)
	}
	return labels
}
