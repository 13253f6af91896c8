package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vaultlock/core/types"
	"vaultlock/native/lockup"
	"vaultlock/observability/metrics"
)

const maxRequestBody = 1 << 20 // 1 MiB

// Server is the HTTP front-end for lock orchestration.
type Server struct {
	engine   *lockup.Engine
	service  lockup.LockService
	progress *progressStore
	logger   *slog.Logger

	// one run per caller at a time; a second submit while one is in
	// flight gets 409 rather than a duplicate on-chain transfer
	inflightMu sync.Mutex
	inflight   map[types.Principal]struct{}
}

// NewServer wires the HTTP handlers around an engine.
func NewServer(engine *lockup.Engine, service lockup.LockService, progress *progressStore, logger *slog.Logger) *Server {
	if engine == nil {
		panic("engine required")
	}
	if progress == nil {
		progress = newProgressStore(0)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		engine:   engine,
		service:  service,
		progress: progress,
		logger:   logger,
		inflight: make(map[types.Principal]struct{}),
	}
}

// Router builds the chi handler tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Post("/lock/token", s.handleTokenLock)
	r.Post("/lock/position", s.handlePositionLock)
	r.Get("/runs/{runID}", s.handleRunProgress)
	r.Get("/positions/claims", s.handleClaimedPositions)
	return r
}

type tokenPayload struct {
	LedgerID      string `json:"ledgerId"`
	Symbol        string `json:"symbol"`
	Decimals      uint8  `json:"decimals"`
	Fee           string `json:"fee"`
	WalletBalance string `json:"walletBalance"`
	VaultBalance  string `json:"vaultBalance"`
	LockedAmount  string `json:"lockedAmount"`
}

type tokenLockPayload struct {
	Caller  string       `json:"caller"`
	Premium bool         `json:"premium"`
	Token   tokenPayload `json:"token"`
	// Amount is in base units; AmountText is the human decimal form and
	// wins when both are present.
	Amount     string `json:"amount"`
	AmountText string `json:"amountText"`
	ExpiryNs   uint64 `json:"expiryNs"`
}

type positionPayload struct {
	SwapCanisterID string `json:"swapCanisterId"`
	DexID          uint32 `json:"dexId"`
	PositionID     uint64 `json:"positionId"`
	Token0         string `json:"token0"`
	Token1         string `json:"token1"`
	Token0Amount   string `json:"token0Amount"`
	Token1Amount   string `json:"token1Amount"`
	CustodyState   string `json:"custodyState"`
}

type positionLockPayload struct {
	Caller   string          `json:"caller"`
	Premium  bool            `json:"premium"`
	Position positionPayload `json:"position"`
	ExpiryNs uint64          `json:"expiryNs"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Reason  string                `json:"reason"`
	Message string                `json:"message"`
	Step    string                `json:"step,omitempty"`
	Steps   []lockup.ProgressStep `json:"steps,omitempty"`
	RunID   string                `json:"runId,omitempty"`
}

func (s *Server) handleTokenLock(w http.ResponseWriter, r *http.Request) {
	var payload tokenLockPayload
	if !decodeBody(w, r, &payload) {
		return
	}
	caller, err := types.ParsePrincipal(payload.Caller)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	token, err := parseToken(payload.Token)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	amount, err := parseRequestAmount(payload.Amount, payload.AmountText, token.Decimals)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	req := lockup.TokenLockRequest{
		Caller:   caller,
		Premium:  payload.Premium,
		Token:    token,
		Amount:   amount,
		ExpiryNs: payload.ExpiryNs,
	}
	s.runLock(w, r, caller, string(lockup.KindToken), func() (*lockup.Receipt, error) {
		return s.engine.LockToken(r.Context(), req)
	})
}

func (s *Server) handlePositionLock(w http.ResponseWriter, r *http.Request) {
	var payload positionLockPayload
	if !decodeBody(w, r, &payload) {
		return
	}
	caller, err := types.ParsePrincipal(payload.Caller)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	position, err := parsePosition(payload.Position)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	req := lockup.PositionLockRequest{
		Caller:   caller,
		Premium:  payload.Premium,
		Position: position,
		ExpiryNs: payload.ExpiryNs,
	}
	s.runLock(w, r, caller, string(lockup.KindPosition), func() (*lockup.Receipt, error) {
		return s.engine.LockPosition(r.Context(), req)
	})
}

func (s *Server) runLock(w http.ResponseWriter, r *http.Request, caller types.Principal, kind string, run func() (*lockup.Receipt, error)) {
	if !s.acquire(caller) {
		writeJSON(w, http.StatusConflict, errorEnvelope{Error: errorBody{
			Reason:  "in_flight",
			Message: "a lock attempt for this caller is already running",
		}})
		return
	}
	defer s.release(caller)

	lockupMetrics := metrics.Lockup()
	lockupMetrics.RecordRunStarted(kind)
	started := time.Now()
	receipt, err := run()
	if err != nil {
		var runErr *lockup.RunError
		body := errorBody{Reason: string(lockup.ReasonCanister), Message: err.Error()}
		if errors.As(err, &runErr) {
			body = errorBody{
				Reason:  string(runErr.Reason()),
				Message: runErr.Err.Error(),
				Step:    string(runErr.Step),
				Steps:   runErr.Steps,
				RunID:   runErr.RunID,
			}
		}
		lockupMetrics.RecordRunFailed(kind, body.Reason, time.Since(started))
		s.logger.Warn("lock run failed",
			slog.String("kind", kind),
			slog.String("reason", body.Reason),
			slog.String("step", body.Step),
			slog.String("runId", body.RunID),
			slog.String("error", body.Message),
		)
		writeJSON(w, statusForReason(body.Reason), errorEnvelope{Error: body})
		return
	}
	lockupMetrics.RecordRunCompleted(kind, time.Since(started))
	s.logger.Info("lock created",
		slog.String("kind", kind),
		slog.String("runId", receipt.RunID),
		slog.Uint64("lockId", receipt.LockID),
	)
	writeJSON(w, http.StatusOK, receipt)
}

func (s *Server) handleRunProgress(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	recorded, ok := s.progress.Run(runID)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorEnvelope{Error: errorBody{
			Reason:  "not_found",
			Message: "unknown run " + runID,
		}})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"runId": runID, "events": recorded})
}

func (s *Server) handleClaimedPositions(w http.ResponseWriter, r *http.Request) {
	caller, err := types.ParsePrincipal(r.URL.Query().Get("principal"))
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	claims, err := s.service.ClaimedPositions(r.Context(), caller)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, errorEnvelope{Error: errorBody{
			Reason:  string(lockup.ReasonCanister),
			Message: err.Error(),
		}})
		return
	}
	writeJSON(w, http.StatusOK, claims)
}

func (s *Server) acquire(caller types.Principal) bool {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	if _, busy := s.inflight[caller]; busy {
		return false
	}
	s.inflight[caller] = struct{}{}
	return true
}

func (s *Server) release(caller types.Principal) {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	delete(s.inflight, caller)
}

func statusForReason(reason string) int {
	switch lockup.FailureReason(reason) {
	case lockup.ReasonValidation, lockup.ReasonInsufficientFunds:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		writeBadRequest(w, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorEnvelope{Error: errorBody{
		Reason:  string(lockup.ReasonValidation),
		Message: msg,
	}})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func parseToken(payload tokenPayload) (*lockup.Token, error) {
	ledger, err := types.ParsePrincipal(payload.LedgerID)
	if err != nil {
		return nil, err
	}
	fee, err := parseBaseUnits("fee", payload.Fee)
	if err != nil {
		return nil, err
	}
	wallet, err := parseBaseUnits("walletBalance", payload.WalletBalance)
	if err != nil {
		return nil, err
	}
	vault, err := parseBaseUnits("vaultBalance", payload.VaultBalance)
	if err != nil {
		return nil, err
	}
	locked, err := parseBaseUnits("lockedAmount", payload.LockedAmount)
	if err != nil {
		return nil, err
	}
	return &lockup.Token{
		LedgerID:      ledger,
		Symbol:        payload.Symbol,
		Decimals:      payload.Decimals,
		Fee:           fee,
		WalletBalance: wallet,
		VaultBalance:  vault,
		LockedAmount:  locked,
	}, nil
}

func parsePosition(payload positionPayload) (*lockup.LiquidityPosition, error) {
	swap, err := types.ParsePrincipal(payload.SwapCanisterID)
	if err != nil {
		return nil, err
	}
	token0, err := types.ParsePrincipal(payload.Token0)
	if err != nil {
		return nil, err
	}
	token1, err := types.ParsePrincipal(payload.Token1)
	if err != nil {
		return nil, err
	}
	amount0, err := parseBaseUnits("token0Amount", payload.Token0Amount)
	if err != nil {
		return nil, err
	}
	amount1, err := parseBaseUnits("token1Amount", payload.Token1Amount)
	if err != nil {
		return nil, err
	}
	custody := lockup.CustodyState(strings.TrimSpace(payload.CustodyState))
	if custody == "" {
		custody = lockup.OwnedByCaller
	}
	return &lockup.LiquidityPosition{
		SwapCanisterID: swap,
		DexID:          payload.DexID,
		PositionID:     payload.PositionID,
		Token0:         token0,
		Token1:         token1,
		Token0Amount:   amount0,
		Token1Amount:   amount1,
		CustodyState:   custody,
	}, nil
}

func parseRequestAmount(base, text string, decimals uint8) (*big.Int, error) {
	if strings.TrimSpace(text) != "" {
		return lockup.ToBaseUnits(text, decimals)
	}
	return parseBaseUnits("amount", base)
}

func parseBaseUnits(field, raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	v, ok := new(big.Int).SetString(trimmed, 10)
	if !ok || v.Sign() < 0 {
		return nil, errors.New(field + " must be a non-negative base-unit integer")
	}
	return v, nil
}
