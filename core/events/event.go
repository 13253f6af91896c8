package events

// Event represents a structured progress notification emitted by an
// orchestration run.
type Event interface {
	EventType() string
}

// Emitter broadcasts events to downstream subscribers (UI adapters, the
// gateway progress endpoint, test recorders).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter satisfies the Emitter interface while discarding all events.
// Engines default to it so event wiring stays optional.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}
