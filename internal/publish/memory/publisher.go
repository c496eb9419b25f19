// Package memory provides an in-process publisher that records discovery
// run reports for assertions in tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/searchscout/searchscout/internal/pattern"
)

// Publisher retains every published payload in publish order.
type Publisher struct {
	mu       sync.RWMutex
	messages []PublishedMessage
}

// PublishedMessage captures one publish call.
type PublishedMessage struct {
	Topic   string
	Payload any
}

// New returns an empty recording Publisher.
func New() *Publisher {
	return &Publisher{}
}

// Publish records the message and returns a scout-mem-N pseudo ID.
func (p *Publisher) Publish(_ context.Context, topic string, payload any) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, PublishedMessage{Topic: topic, Payload: payload})
	return fmt.Sprintf("scout-mem-%d", len(p.messages)), nil
}

// Messages returns the recorded publishes.
func (p *Publisher) Messages() []PublishedMessage {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]PublishedMessage, len(p.messages))
	copy(out, p.messages)
	return out
}

// Reports returns the payloads that are run reports, in publish order.
// The orchestrator publishes one report per batch run.
func (p *Publisher) Reports() []pattern.Report {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []pattern.Report
	for _, m := range p.messages {
		if r, ok := m.Payload.(pattern.Report); ok {
			out = append(out, r)
		}
	}
	return out
}
