package walker

import (
	"sync"
	"time"
)

// TriggerGate holds the two client-side trigger guards: only one stop dialog
// may be open at a time, and a stop just marked visited stays quiet for a
// cool-down. Both are advisory; the server enforces idempotency on its own.
type TriggerGate struct {
	mu         sync.Mutex
	cooldown   time.Duration
	now        func() time.Time
	open       string
	suppressed map[string]time.Time
}

func NewTriggerGate(cooldown time.Duration, now func() time.Time) *TriggerGate {
	if now == nil {
		now = time.Now
	}
	return &TriggerGate{
		cooldown:   cooldown,
		now:        now,
		suppressed: make(map[string]time.Time),
	}
}

// TryOpen claims the dialog for pointID. It fails while any dialog is open.
func (g *TriggerGate) TryOpen(pointID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.open != "" {
		return false
	}
	g.open = pointID
	return true
}

// DialogOpen reports the stop whose dialog is open, if any.
func (g *TriggerGate) DialogOpen() (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.open, g.open != ""
}

func (g *TriggerGate) CloseDialog() {
	g.mu.Lock()
	g.open = ""
	g.mu.Unlock()
}

// CloseDialogFor closes the dialog only while it still belongs to pointID.
func (g *TriggerGate) CloseDialogFor(pointID string) {
	g.mu.Lock()
	if g.open == pointID {
		g.open = ""
	}
	g.mu.Unlock()
}

// MarkVisited starts the cool-down for pointID.
func (g *TriggerGate) MarkVisited(pointID string) {
	g.mu.Lock()
	g.suppressed[pointID] = g.now().Add(g.cooldown)
	g.mu.Unlock()
}

// Suppressed reports whether pointID is still cooling down.
func (g *TriggerGate) Suppressed(pointID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	until, ok := g.suppressed[pointID]
	if !ok {
		return false
	}
	if !g.now().Before(until) {
		delete(g.suppressed, pointID)
		return false
	}
	return true
}
