package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/ritzau/depgraph/pkg/logging"
)

// ErrClosed is returned once the publisher has shut down
var ErrClosed = errors.New("publisher is closed")

// subscriberBuffer is the channel capacity per subscription
const subscriberBuffer = 64

var log = logging.New("pubsub")

// TopicConfig configures buffering behavior for a topic
type TopicConfig struct {
	BufferSize int  // events retained for late subscribers, 0 disables replay
	ReplayAll  bool // replay the whole buffer instead of only the latest event
}

type topic struct {
	config  TopicConfig
	version int
	history []Event
	subs    map[*sseSubscription]struct{}
}

// SSEPublisher implements Publisher for Server-Sent Events handlers
type SSEPublisher struct {
	mu     sync.Mutex
	topics map[string]*topic
	closed bool
}

// NewSSEPublisher creates a publisher. GraphStatusTopic replays its latest event.
func NewSSEPublisher() *SSEPublisher {
	p := &SSEPublisher{topics: make(map[string]*topic)}
	p.ConfigureTopic(GraphStatusTopic, TopicConfig{BufferSize: 1})
	return p
}

func (p *SSEPublisher) topic(name string) *topic {
	t, ok := p.topics[name]
	if !ok {
		t = &topic{subs: make(map[*sseSubscription]struct{})}
		p.topics[name] = t
	}
	return t
}

// ConfigureTopic sets buffering configuration for a topic
func (p *SSEPublisher) ConfigureTopic(name string, config TopicConfig) {
	p.mu.Lock()
	defer p.mu.Unlock()
	t := p.topic(name)
	t.config = config
	if len(t.history) > config.BufferSize {
		t.history = t.history[len(t.history)-config.BufferSize:]
	}
}

// Subscribe registers a subscription and queues replayed events for it
func (p *SSEPublisher) Subscribe(ctx context.Context, name string) (Subscription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrClosed
	}

	sub := &sseSubscription{
		topic:     name,
		events:    make(chan Event, subscriberBuffer),
		publisher: p,
	}
	t := p.topic(name)
	t.subs[sub] = struct{}{}

	replay := t.history
	if !t.config.ReplayAll && len(replay) > 1 {
		replay = replay[len(replay)-1:]
	}
	for _, event := range replay {
		sub.offer(event)
	}
	if len(replay) > 0 {
		log.Debug("Replayed events", "topic", name, "count", len(replay))
	}

	go func() {
		<-ctx.Done()
		sub.Close()
	}()

	return sub, nil
}

// Publish marshals data and delivers it to every subscriber without blocking
func (p *SSEPublisher) Publish(name string, eventType string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}

	t := p.topic(name)
	t.version++
	event := Event{Topic: name, Type: eventType, Data: payload, Version: t.version}

	if t.config.BufferSize > 0 {
		t.history = append(t.history, event)
		if len(t.history) > t.config.BufferSize {
			t.history = t.history[len(t.history)-t.config.BufferSize:]
		}
	}

	for sub := range t.subs {
		sub.offer(event)
	}
	return nil
}

// Close shuts down the publisher and closes all subscription channels
func (p *SSEPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	for _, t := range p.topics {
		for sub := range t.subs {
			sub.closeLocked()
		}
		t.subs = nil
	}
	return nil
}

func (p *SSEPublisher) unsubscribe(sub *sseSubscription) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if t, ok := p.topics[sub.topic]; ok && t.subs != nil {
		if _, ok := t.subs[sub]; ok {
			delete(t.subs, sub)
			sub.closeLocked()
		}
	}
}

// SubscriberCount reports the live subscriptions on a topic
func (p *SSEPublisher) SubscriberCount(name string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if t, ok := p.topics[name]; ok {
		return len(t.subs)
	}
	return 0
}

// sseSubscription fields other than once are guarded by the publisher's mutex.
type sseSubscription struct {
	topic     string
	events    chan Event
	publisher *SSEPublisher
	done      bool
	once      sync.Once
}

func (s *sseSubscription) Topic() string { return s.topic }

// Events is closed when the subscription or the publisher closes
func (s *sseSubscription) Events() <-chan Event { return s.events }

func (s *sseSubscription) Close() error {
	s.once.Do(func() { s.publisher.unsubscribe(s) })
	return nil
}

func (s *sseSubscription) offer(event Event) {
	if s.done {
		return
	}
	select {
	case s.events <- event:
	default:
		log.Warn("Subscription channel full, dropping event", "topic", s.topic, "version", event.Version)
	}
}

func (s *sseSubscription) closeLocked() {
	if !s.done {
		s.done = true
		close(s.events)
	}
}

// WriteSSE writes an event as a single "data:" frame
func WriteSSE(w io.Writer, event Event) error {
	frame, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, frame)
	return err
}
