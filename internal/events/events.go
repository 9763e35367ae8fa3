// Package events carries progress notifications from the state machine to
// live subscribers (SSE and websocket streams).
package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

type Type string

const (
	ProgressStarted Type = "progress_started"
	ProgressPaused  Type = "progress_paused"
	ProgressResumed Type = "progress_resumed"
	StopVisited     Type = "stop_visited"
	RewardGranted   Type = "reward_granted"
	PathCompleted   Type = "path_completed"
)

// Event is the payload published to a user's subscribers.
type Event struct {
	Type              Type      `json:"type"`
	UserID            string    `json:"userId"`
	ProgressID        string    `json:"progressId"`
	PathID            string    `json:"pathId"`
	PointID           string    `json:"pointId,omitempty"`
	StopOrder         int       `json:"stopOrder,omitempty"`
	VisitedStopsCount int       `json:"visitedStopsCount"`
	RewardLabel       string    `json:"rewardLabel,omitempty"`
	At                time.Time `json:"at"`
}

// Publisher accepts events for delivery.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Broker is an in-process pub/sub for progress events, keyed by user ID.
type Broker struct {
	mu   sync.RWMutex
	subs map[string]map[chan []byte]struct{}
}

func NewBroker() *Broker {
	return &Broker{
		subs: make(map[string]map[chan []byte]struct{}),
	}
}

// Subscribe returns a channel that receives JSON-encoded events for the given user.
func (b *Broker) Subscribe(userID string) chan []byte {
	ch := make(chan []byte, 16)
	b.mu.Lock()
	if b.subs[userID] == nil {
		b.subs[userID] = make(map[chan []byte]struct{})
	}
	b.subs[userID][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a channel from the user's subscribers.
func (b *Broker) Unsubscribe(userID string, ch chan []byte) {
	b.mu.Lock()
	delete(b.subs[userID], ch)
	if len(b.subs[userID]) == 0 {
		delete(b.subs, userID)
	}
	b.mu.Unlock()
}

// Publish sends an event to all local subscribers of ev.UserID.
func (b *Broker) Publish(_ context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	b.deliver(ev.UserID, data)
	return nil
}

func (b *Broker) deliver(userID string, data []byte) {
	b.mu.RLock()
	for ch := range b.subs[userID] {
		select {
		case ch <- data:
		default:
			// Drop if subscriber is slow.
		}
	}
	b.mu.RUnlock()
}
