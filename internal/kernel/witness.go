package kernel

import (
	"sync"
	"time"
)

// TurnEvent is the telemetry published once per completed turn.
// Observational only: subscribers never influence the turn result.
type TurnEvent struct {
	SessionID          string    `json:"session_id"`
	TensorID           string    `json:"tensor_id"`
	Status             string    `json:"status"`
	Delta              float64   `json:"delta"`
	Findings           int       `json:"findings"`
	IntegrityResonance float64   `json:"integrity_resonance"`
	PauseTriggered     bool      `json:"pause_triggered"`
	ShelfID            string    `json:"shelf_id,omitempty"`
	At                 time.Time `json:"at"`
}

// Witness is the publish/subscribe stream of turn events. Publishing
// never blocks: a subscriber that cannot keep up drops events rather
// than stalling the pipeline.
type Witness struct {
	mu   sync.RWMutex
	subs map[int]chan TurnEvent
	next int
}

// NewWitness returns an empty witness stream.
func NewWitness() *Witness {
	return &Witness{subs: make(map[int]chan TurnEvent)}
}

// Subscribe registers an observer. The returned cancel function
// removes the subscription and closes the channel.
func (w *Witness) Subscribe() (<-chan TurnEvent, func()) {
	w.mu.Lock()
	defer w.mu.Unlock()

	id := w.next
	w.next++
	ch := make(chan TurnEvent, 16)
	w.subs[id] = ch

	cancel := func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		if ch, ok := w.subs[id]; ok {
			delete(w.subs, id)
			close(ch)
		}
	}
	return ch, cancel
}

// Publish delivers an event to every subscriber without blocking.
func (w *Witness) Publish(ev TurnEvent) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	for _, ch := range w.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribers reports the current observer count.
func (w *Witness) Subscribers() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.subs)
}
