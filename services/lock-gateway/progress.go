package main

import (
	"sync"

	"vaultlock/core/events"
	"vaultlock/core/types"
	"vaultlock/observability/metrics"
)

// eventPayload is anything the engine emits that can render itself into the
// generic attribute form.
type eventPayload interface {
	events.Event
	Event() *types.Event
}

// progressStore records engine events keyed by run ID so clients can poll a
// run they kicked off. Old runs are evicted FIFO once maxRuns is reached;
// ground truth always lives on chain, the store is a convenience view.
type progressStore struct {
	mu      sync.Mutex
	maxRuns int
	order   []string
	runs    map[string][]*types.Event
}

func newProgressStore(maxRuns int) *progressStore {
	if maxRuns <= 0 {
		maxRuns = 256
	}
	return &progressStore{maxRuns: maxRuns, runs: make(map[string][]*types.Event)}
}

// Emit implements events.Emitter.
func (s *progressStore) Emit(evt events.Event) {
	payload, ok := evt.(eventPayload)
	if !ok {
		return
	}
	rendered := payload.Event()
	runID := rendered.Attributes["runId"]
	if runID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.runs[runID]; !exists {
		if len(s.order) >= s.maxRuns {
			evict := s.order[0]
			s.order = s.order[1:]
			delete(s.runs, evict)
		}
		s.order = append(s.order, runID)
	}
	s.runs[runID] = append(s.runs[runID], rendered)
}

// Run returns the recorded events of a run, oldest first.
func (s *progressStore) Run(runID string) ([]*types.Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	recorded, ok := s.runs[runID]
	if !ok {
		return nil, false
	}
	return append([]*types.Event(nil), recorded...), true
}

// metricsEmitter translates engine events into prometheus counters.
type metricsEmitter struct {
	lockup *metrics.LockupMetrics
}

// Emit implements events.Emitter.
func (m metricsEmitter) Emit(evt events.Event) {
	switch e := evt.(type) {
	case events.LockStepCompleted:
		if e.Performed && (e.Step == "payment" || e.Step == "deposit") {
			m.lockup.RecordTransfer(e.Step)
		}
	case events.LockStepFailed:
		m.lockup.RecordStepFailure(e.Step)
	}
}

// fanoutEmitter forwards each event to every wired emitter.
type fanoutEmitter []events.Emitter

// Emit implements events.Emitter.
func (f fanoutEmitter) Emit(evt events.Event) {
	for _, emitter := range f {
		emitter.Emit(evt)
	}
}
