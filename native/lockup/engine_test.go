package lockup

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"
	"time"

	"vaultlock/core/types"
)

type balanceKey struct {
	ledger types.Principal
	owner  types.Principal
	sub    types.Subaccount
}

type transferRecord struct {
	ledger types.Principal
	to     types.Account
	amount *big.Int
	fee    *big.Int
}

// mockState implements both the Ledger and LockService collaborator
// interfaces over in-memory balance maps so transfers and re-queries behave
// like the real canisters.
type mockState struct {
	caller     types.Principal
	service    types.Principal
	feeLedger  types.Principal
	paymentSub types.Subaccount

	schedule    *FeeSchedule
	scheduleErr error

	balances map[balanceKey]*big.Int

	claims          []ClaimedPosition
	claimOK         bool
	claimErr        error
	transferPosErr  error
	createErr       error
	nextLockID      uint64
	transfers       []transferRecord
	claimCalls      int
	transferPosited int
	calls           map[string]int
}

func newMockState() *mockState {
	return &mockState{
		caller:     types.Principal("caller-aaaaa-aaa"),
		service:    types.Principal("locksvc-aaaaa-aaa"),
		feeLedger:  types.Principal("feeledger-aaaaa-aaa"),
		paymentSub: types.Subaccount{0x01, 0x02},
		claimOK:    true,
		nextLockID: 42,
		balances:   make(map[balanceKey]*big.Int),
		calls:      make(map[string]int),
	}
}

func (m *mockState) record(method string) { m.calls[method]++ }

func (m *mockState) totalCalls() int {
	total := 0
	for _, n := range m.calls {
		total += n
	}
	return total
}

func (m *mockState) setBalance(ledger types.Principal, account types.Account, amount int64) {
	m.balances[accountKey(ledger, account)] = big.NewInt(amount)
}

func (m *mockState) balance(ledger types.Principal, account types.Account) *big.Int {
	if v, ok := m.balances[accountKey(ledger, account)]; ok {
		return v
	}
	return big.NewInt(0)
}

func accountKey(ledger types.Principal, account types.Account) balanceKey {
	key := balanceKey{ledger: ledger, owner: account.Owner}
	if account.Subaccount != nil {
		key.sub = *account.Subaccount
	}
	return key
}

func (m *mockState) BalanceOf(_ context.Context, ledger types.Principal, account types.Account) (*big.Int, error) {
	m.record("BalanceOf")
	return new(big.Int).Set(m.balance(ledger, account)), nil
}

func (m *mockState) Transfer(_ context.Context, ledger types.Principal, args TransferArgs) (uint64, error) {
	m.record("Transfer")
	from := types.Account{Owner: m.caller}
	if args.FromSubaccount != nil {
		from.Subaccount = args.FromSubaccount
	}
	total := new(big.Int).Add(args.Amount, args.Fee)
	fromBalance := m.balance(ledger, from)
	if fromBalance.Cmp(total) < 0 {
		return 0, fmt.Errorf("InsufficientFunds{balance=%s}", fromBalance)
	}
	m.balances[accountKey(ledger, from)] = new(big.Int).Sub(fromBalance, total)
	toKey := accountKey(ledger, args.To)
	current := big.NewInt(0)
	if v, ok := m.balances[toKey]; ok {
		current = v
	}
	m.balances[toKey] = new(big.Int).Add(current, args.Amount)
	m.transfers = append(m.transfers, transferRecord{
		ledger: ledger,
		to:     args.To,
		amount: new(big.Int).Set(args.Amount),
		fee:    new(big.Int).Set(args.Fee),
	})
	return uint64(len(m.transfers)), nil
}

func (m *mockState) FeeSchedule(context.Context) (*FeeSchedule, error) {
	m.record("FeeSchedule")
	if m.scheduleErr != nil {
		return nil, m.scheduleErr
	}
	return m.schedule, nil
}

func (m *mockState) PaymentSubaccount(_ context.Context, _ types.Principal) (types.Subaccount, error) {
	m.record("PaymentSubaccount")
	return m.paymentSub, nil
}

func (m *mockState) PaymentBalance(_ context.Context, _ types.Principal) (*big.Int, error) {
	m.record("PaymentBalance")
	account := types.Account{Owner: m.service, Subaccount: &m.paymentSub}
	return new(big.Int).Set(m.balance(m.feeLedger, account)), nil
}

func (m *mockState) CreateTokenLock(_ context.Context, amount *big.Int, ledgerID types.Principal, expiryNs uint64) (uint64, error) {
	m.record("CreateTokenLock")
	if m.createErr != nil {
		return 0, m.createErr
	}
	return m.nextLockID, nil
}

func (m *mockState) ClaimPosition(_ context.Context, swap types.Principal, positionID uint64) (bool, error) {
	m.record("ClaimPosition")
	m.claimCalls++
	if m.claimErr != nil {
		return false, m.claimErr
	}
	if m.claimOK {
		m.claims = append(m.claims, ClaimedPosition{SwapCanisterID: swap, PositionID: positionID})
	}
	return m.claimOK, nil
}

func (m *mockState) TransferPosition(_ context.Context, _ types.Principal, _, _ types.Principal, _ uint64) error {
	m.record("TransferPosition")
	m.transferPosited++
	return m.transferPosErr
}

func (m *mockState) CreatePositionLock(_ context.Context, _ PositionLockArgs) (uint64, error) {
	m.record("CreatePositionLock")
	if m.createErr != nil {
		return 0, m.createErr
	}
	return m.nextLockID, nil
}

func newTestEngine(state *mockState) *Engine {
	engine := NewEngine(Config{
		ServicePrincipal: state.service,
		FeeLedgerID:      state.feeLedger,
		FeeLedgerFee:     big.NewInt(10_000),
		FeeSymbol:        "ICP",
	}, state, stateService{state})
	engine.SetNowFunc(func() time.Time { return time.Unix(0, 1_000_000_000_000) })
	return engine
}

// stateService adapts mockState to LockService with the caller-scoped
// ClaimedPositions signature.
type stateService struct{ *mockState }

func (s stateService) ClaimedPositions(_ context.Context, _ types.Principal) ([]ClaimedPosition, error) {
	s.record("ClaimedPositions")
	return append([]ClaimedPosition(nil), s.claims...), nil
}

func freeSchedule() *FeeSchedule {
	return &FeeSchedule{
		TokenLockFee:           big.NewInt(0),
		PremiumTokenLockFee:    big.NewInt(0),
		PositionLockFee:        big.NewInt(0),
		PremiumPositionLockFee: big.NewInt(0),
	}
}

func paidSchedule(fee int64) *FeeSchedule {
	return &FeeSchedule{
		TokenLockFee:           big.NewInt(fee),
		PremiumTokenLockFee:    big.NewInt(fee / 2),
		PositionLockFee:        big.NewInt(fee),
		PremiumPositionLockFee: big.NewInt(fee / 2),
	}
}

func testToken(state *mockState, wallet, vault, locked int64) *Token {
	ledger := types.Principal("tokledger-aaaaa-aaa")
	state.setBalance(ledger, types.Account{Owner: state.caller}, wallet)
	vaultSub := VaultSubaccount(state.caller)
	state.setBalance(ledger, types.Account{Owner: state.service, Subaccount: &vaultSub}, vault)
	return &Token{
		LedgerID:      ledger,
		Symbol:        "VLT",
		Decimals:      8,
		Fee:           big.NewInt(10_000),
		WalletBalance: big.NewInt(wallet),
		VaultBalance:  big.NewInt(vault),
		LockedAmount:  big.NewInt(locked),
	}
}

func futureExpiry() uint64 { return 2_000_000_000_000 }

func TestValidationGatePerformsNoNetworkIO(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(state)

	cases := []struct {
		name string
		req  TokenLockRequest
	}{
		{
			name: "past expiry",
			req: TokenLockRequest{
				Caller:   state.caller,
				Token:    &Token{LedgerID: "led-1", WalletBalance: big.NewInt(100)},
				Amount:   big.NewInt(10),
				ExpiryNs: 1, // before the fixed test clock
			},
		},
		{
			name: "zero amount",
			req: TokenLockRequest{
				Caller:   state.caller,
				Token:    &Token{LedgerID: "led-1", WalletBalance: big.NewInt(100)},
				Amount:   big.NewInt(0),
				ExpiryNs: futureExpiry(),
			},
		},
		{
			name: "amount above available",
			req: TokenLockRequest{
				Caller:   state.caller,
				Token:    &Token{LedgerID: "led-1", WalletBalance: big.NewInt(100)},
				Amount:   big.NewInt(200),
				ExpiryNs: futureExpiry(),
			},
		},
		{
			name: "missing token",
			req: TokenLockRequest{
				Caller:   state.caller,
				Amount:   big.NewInt(10),
				ExpiryNs: futureExpiry(),
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := engine.LockToken(context.Background(), tc.req)
			if err == nil {
				t.Fatalf("expected validation failure")
			}
			var runErr *RunError
			if !errors.As(err, &runErr) {
				t.Fatalf("expected *RunError, got %T", err)
			}
			if got := runErr.Reason(); got != ReasonValidation {
				t.Fatalf("expected validation reason, got %s", got)
			}
			if state.totalCalls() != 0 {
				t.Fatalf("validation failure must not reach the network, saw %v", state.calls)
			}
		})
	}
}

func TestTokenLockFreeFeeSkipsPayment(t *testing.T) {
	state := newMockState()
	state.schedule = freeSchedule()
	engine := newTestEngine(state)
	token := testToken(state, 1_000_000, 0, 0)

	receipt, err := engine.LockToken(context.Background(), TokenLockRequest{
		Caller:   state.caller,
		Token:    token,
		Amount:   big.NewInt(500_000),
		ExpiryNs: futureExpiry(),
	})
	if err != nil {
		t.Fatalf("lock token: %v", err)
	}
	if receipt.LockID != 42 {
		t.Fatalf("expected lock id 42, got %d", receipt.LockID)
	}
	if len(state.transfers) != 1 {
		t.Fatalf("expected exactly one deposit transfer, got %d", len(state.transfers))
	}
	deposit := state.transfers[0]
	if deposit.amount.Cmp(big.NewInt(500_000)) != 0 {
		t.Fatalf("expected deposit of 500000, got %s", deposit.amount)
	}
	vaultSub := VaultSubaccount(state.caller)
	if deposit.to.Owner != state.service || deposit.to.Subaccount == nil || *deposit.to.Subaccount != vaultSub {
		t.Fatalf("deposit addressed to %s, want service vault subaccount", deposit.to)
	}
	if state.calls["PaymentSubaccount"] != 0 || state.calls["PaymentBalance"] != 0 {
		t.Fatalf("free lock must skip the payment coordinator entirely")
	}
	if state.calls["CreateTokenLock"] != 1 {
		t.Fatalf("expected exactly one create call, got %d", state.calls["CreateTokenLock"])
	}
	// plan should be deposit then create, both executed
	if len(receipt.Steps) != 2 || receipt.Steps[0].Kind != StepDeposit || receipt.Steps[1].Kind != StepCreate {
		t.Fatalf("unexpected step plan %+v", receipt.Steps)
	}
	for _, step := range receipt.Steps {
		if step.Status != StatusCompleted {
			t.Fatalf("expected completed steps, got %+v", receipt.Steps)
		}
	}
}

func TestPaymentShortfallArithmetic(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(state)
	paymentAccount := types.Account{Owner: state.service, Subaccount: &state.paymentSub}
	state.setBalance(state.feeLedger, paymentAccount, 40_000_000)
	state.setBalance(state.feeLedger, types.Account{Owner: state.caller}, 100_000_000)

	payment := &PaymentState{
		Subaccount:       state.paymentSub,
		DepositedBalance: big.NewInt(40_000_000),
		RequiredFee:      big.NewInt(100_000_000),
	}
	refreshed, err := engine.ensurePayment(context.Background(), state.caller, payment)
	if err != nil {
		t.Fatalf("ensure payment: %v", err)
	}
	if len(state.transfers) != 1 {
		t.Fatalf("expected one top-up transfer, got %d", len(state.transfers))
	}
	if got := state.transfers[0].amount; got.Cmp(big.NewInt(60_000_000)) != 0 {
		t.Fatalf("net top-up should equal the shortfall 60000000, got %s", got)
	}
	wallet := state.balance(state.feeLedger, types.Account{Owner: state.caller})
	if wallet.Cmp(big.NewInt(39_990_000)) != 0 {
		t.Fatalf("wallet should be charged shortfall+ledgerFee, got %s", wallet)
	}
	if refreshed.DepositedBalance.Cmp(big.NewInt(100_000_000)) != 0 {
		t.Fatalf("refreshed escrow balance should be re-read from the service, got %s", refreshed.DepositedBalance)
	}

	// Second call with the refreshed state is a no-op.
	before := len(state.transfers)
	if _, err := engine.ensurePayment(context.Background(), state.caller, refreshed); err != nil {
		t.Fatalf("idempotent ensure: %v", err)
	}
	if len(state.transfers) != before {
		t.Fatalf("satisfied payment must not transfer again")
	}
}

func TestPaymentInsufficientWalletFailsBeforeTransfer(t *testing.T) {
	state := newMockState()
	state.schedule = paidSchedule(50_000_000)
	engine := newTestEngine(state)
	// Wallet cannot cover shortfall + ledger fee.
	state.setBalance(state.feeLedger, types.Account{Owner: state.caller}, 50_000_000)
	token := testToken(state, 1_000_000, 0, 0)

	_, err := engine.LockToken(context.Background(), TokenLockRequest{
		Caller:   state.caller,
		Token:    token,
		Amount:   big.NewInt(500_000),
		ExpiryNs: futureExpiry(),
	})
	var insufficient *InsufficientFundsError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientFundsError, got %v", err)
	}
	if insufficient.Pool != PoolWallet {
		t.Fatalf("expected wallet pool, got %s", insufficient.Pool)
	}
	if insufficient.Missing.Cmp(big.NewInt(10_000)) != 0 {
		t.Fatalf("error must name the exact missing amount, got %s", insufficient.Missing)
	}
	if len(state.transfers) != 0 {
		t.Fatalf("no transfer may be executed when the wallet is short")
	}
	if state.calls["CreateTokenLock"] != 0 {
		t.Fatalf("failed payment must halt the run before lock creation")
	}
	var runErr *RunError
	if !errors.As(err, &runErr) || runErr.Step != StepPayment {
		t.Fatalf("failure should be attributed to the payment step, got %+v", err)
	}
}

func TestTokenLockWithFeeThenDeposit(t *testing.T) {
	state := newMockState()
	state.schedule = paidSchedule(50_000_000)
	engine := newTestEngine(state)
	state.setBalance(state.feeLedger, types.Account{Owner: state.caller}, 60_000_000)
	token := testToken(state, 1_000_000, 0, 0)

	receipt, err := engine.LockToken(context.Background(), TokenLockRequest{
		Caller:   state.caller,
		Token:    token,
		Amount:   big.NewInt(500_000),
		ExpiryNs: futureExpiry(),
	})
	if err != nil {
		t.Fatalf("lock token: %v", err)
	}
	if len(state.transfers) != 2 {
		t.Fatalf("expected payment then deposit, got %d transfers", len(state.transfers))
	}
	payment := state.transfers[0]
	if payment.ledger != state.feeLedger || payment.amount.Cmp(big.NewInt(50_000_000)) != 0 {
		t.Fatalf("unexpected payment transfer %+v", payment)
	}
	wallet := state.balance(state.feeLedger, types.Account{Owner: state.caller})
	if wallet.Cmp(big.NewInt(9_990_000)) != 0 {
		t.Fatalf("fee wallet should lose shortfall+ledgerFee, got %s", wallet)
	}
	deposit := state.transfers[1]
	if deposit.ledger != token.LedgerID || deposit.amount.Cmp(big.NewInt(500_000)) != 0 {
		t.Fatalf("unexpected deposit transfer %+v", deposit)
	}
	if len(receipt.Steps) != 3 {
		t.Fatalf("expected payment, deposit, create plan, got %+v", receipt.Steps)
	}
}

func TestDepositSkipWhenVaultCovers(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(state)
	token := testToken(state, 0, 700, 0)

	if _, err := engine.ensureDeposit(context.Background(), state.caller, token, big.NewInt(500)); err != nil {
		t.Fatalf("ensure deposit: %v", err)
	}
	if len(state.transfers) != 0 {
		t.Fatalf("vault already covers the request; no transfer expected")
	}
}

func TestDepositOnlyTopsUpShortfall(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(state)
	token := testToken(state, 1_000, 300, 0)

	if _, err := engine.ensureDeposit(context.Background(), state.caller, token, big.NewInt(500)); err != nil {
		t.Fatalf("ensure deposit: %v", err)
	}
	if len(state.transfers) != 1 {
		t.Fatalf("expected one top-up transfer")
	}
	if got := state.transfers[0].amount; got.Cmp(big.NewInt(200)) != 0 {
		t.Fatalf("only the shortfall may move, got %s", got)
	}
}

func TestCustodyIdempotence(t *testing.T) {
	state := newMockState()
	state.schedule = freeSchedule()
	engine := newTestEngine(state)
	swap := types.Principal("swap-aaaaa-aaa")
	state.claims = []ClaimedPosition{{SwapCanisterID: swap, PositionID: 7}}
	position := &LiquidityPosition{
		SwapCanisterID: swap,
		PositionID:     7,
		Token0:         "tok0-aaaaa-aaa",
		Token1:         "tok1-aaaaa-aaa",
		CustodyState:   ClaimedByVault,
	}

	receipt, err := engine.LockPosition(context.Background(), PositionLockRequest{
		Caller:   state.caller,
		Position: position,
		ExpiryNs: futureExpiry(),
	})
	if err != nil {
		t.Fatalf("lock position: %v", err)
	}
	if state.claimCalls != 0 || state.transferPosited != 0 {
		t.Fatalf("claimed position must not be claimed or transferred again")
	}
	if receipt.LockID != 42 {
		t.Fatalf("expected lock id 42, got %d", receipt.LockID)
	}
	// custody should not even be planned
	for _, step := range receipt.Steps {
		if step.Kind == StepCustody {
			t.Fatalf("custody step should not be planned when already satisfied: %+v", receipt.Steps)
		}
	}
}

func TestCustodyResumesAfterHalfCompletedClaim(t *testing.T) {
	state := newMockState()
	state.schedule = freeSchedule()
	engine := newTestEngine(state)
	swap := types.Principal("swap-aaaaa-aaa")
	// Prior attempt registered the claim but never moved ownership.
	state.claims = []ClaimedPosition{{SwapCanisterID: swap, PositionID: 7}}
	position := &LiquidityPosition{
		SwapCanisterID: swap,
		PositionID:     7,
		Token0:         "tok0-aaaaa-aaa",
		Token1:         "tok1-aaaaa-aaa",
		CustodyState:   OwnedByCaller,
	}

	if _, err := engine.LockPosition(context.Background(), PositionLockRequest{
		Caller:   state.caller,
		Position: position,
		ExpiryNs: futureExpiry(),
	}); err != nil {
		t.Fatalf("lock position: %v", err)
	}
	if state.claimCalls != 0 {
		t.Fatalf("registered claim must not be repeated")
	}
	if state.transferPosited != 1 {
		t.Fatalf("ownership transfer must resume, got %d calls", state.transferPosited)
	}
	if position.CustodyState != ClaimedByVault {
		t.Fatalf("position should end under vault custody, got %s", position.CustodyState)
	}
}

func TestCustodyTransferFailureIsCustodyError(t *testing.T) {
	state := newMockState()
	state.schedule = freeSchedule()
	state.transferPosErr = errors.New("ownership transfer rejected")
	engine := newTestEngine(state)
	position := &LiquidityPosition{
		SwapCanisterID: "swap-aaaaa-aaa",
		PositionID:     9,
		Token0:         "tok0-aaaaa-aaa",
		Token1:         "tok1-aaaaa-aaa",
		CustodyState:   OwnedByCaller,
	}

	_, err := engine.LockPosition(context.Background(), PositionLockRequest{
		Caller:   state.caller,
		Position: position,
		ExpiryNs: futureExpiry(),
	})
	var custody *CustodyError
	if !errors.As(err, &custody) {
		t.Fatalf("expected CustodyError, got %v", err)
	}
	if custody.Stage != StageTransfer {
		t.Fatalf("expected transfer stage, got %s", custody.Stage)
	}
	if state.calls["CreatePositionLock"] != 0 {
		t.Fatalf("failed custody must halt the run before lock creation")
	}
	if got := Classify(err); got != ReasonCustody {
		t.Fatalf("custody failures must classify distinctly, got %s", got)
	}
}

func TestCreateErrorSurfacesVerbatim(t *testing.T) {
	state := newMockState()
	state.schedule = freeSchedule()
	state.createErr = errors.New("lock limit reached for caller")
	engine := newTestEngine(state)
	token := testToken(state, 1_000_000, 0, 0)

	_, err := engine.LockToken(context.Background(), TokenLockRequest{
		Caller:   state.caller,
		Token:    token,
		Amount:   big.NewInt(500_000),
		ExpiryNs: futureExpiry(),
	})
	var canister *CanisterError
	if !errors.As(err, &canister) {
		t.Fatalf("expected CanisterError, got %v", err)
	}
	if canister.Msg != "lock limit reached for caller" {
		t.Fatalf("message must pass through verbatim, got %q", canister.Msg)
	}
	if state.calls["CreateTokenLock"] != 1 {
		t.Fatalf("create must not be retried automatically, got %d calls", state.calls["CreateTokenLock"])
	}
}

func TestMissingFeeScheduleAbortsBeforeTransfers(t *testing.T) {
	state := newMockState()
	state.scheduleErr = errors.New("schedule unavailable")
	engine := newTestEngine(state)
	token := testToken(state, 1_000_000, 0, 0)

	_, err := engine.LockToken(context.Background(), TokenLockRequest{
		Caller:   state.caller,
		Token:    token,
		Amount:   big.NewInt(500_000),
		ExpiryNs: futureExpiry(),
	})
	if err == nil {
		t.Fatalf("expected failure without a fee schedule")
	}
	if len(state.transfers) != 0 {
		t.Fatalf("no transfer may be attempted without a fee schedule")
	}
}

func TestRerunSkipsSatisfiedSteps(t *testing.T) {
	state := newMockState()
	state.schedule = paidSchedule(50_000_000)
	state.createErr = errors.New("temporarily unavailable")
	engine := newTestEngine(state)
	state.setBalance(state.feeLedger, types.Account{Owner: state.caller}, 100_000_000)
	token := testToken(state, 1_000_000, 0, 0)
	req := TokenLockRequest{
		Caller:   state.caller,
		Token:    token,
		Amount:   big.NewInt(500_000),
		ExpiryNs: futureExpiry(),
	}

	if _, err := engine.LockToken(context.Background(), req); err == nil {
		t.Fatalf("expected create failure on the first attempt")
	}
	transfersAfterFirst := len(state.transfers)
	if transfersAfterFirst != 2 {
		t.Fatalf("first attempt should pay and deposit, got %d transfers", transfersAfterFirst)
	}

	// Retry with a fresh snapshot, as the UI would after re-fetching.
	state.createErr = nil
	retryToken := &Token{
		LedgerID:      token.LedgerID,
		Symbol:        token.Symbol,
		Decimals:      token.Decimals,
		Fee:           big.NewInt(10_000),
		WalletBalance: state.balance(token.LedgerID, types.Account{Owner: state.caller}),
		VaultBalance:  big.NewInt(500_000),
		LockedAmount:  big.NewInt(0),
	}
	receipt, err := engine.LockToken(context.Background(), TokenLockRequest{
		Caller:   state.caller,
		Token:    retryToken,
		Amount:   big.NewInt(500_000),
		ExpiryNs: futureExpiry(),
	})
	if err != nil {
		t.Fatalf("retry should succeed: %v", err)
	}
	if len(state.transfers) != transfersAfterFirst {
		t.Fatalf("retry must skip the already-paid fee and already-deposited funds")
	}
	if receipt.LockID != 42 {
		t.Fatalf("expected lock id 42, got %d", receipt.LockID)
	}
}
