// Package pubsub fans graph status events out to streaming HTTP clients.
package pubsub

import (
	"context"
	"encoding/json"
)

// Topics published by the analysis runner.
const (
	GraphStatusTopic = "graph_status"
	BuildTopic       = "build"
)

// Event types on GraphStatusTopic.
const (
	EventLoaded    = "loaded"
	EventBuilding  = "building"
	EventReady     = "ready"
	EventFailed    = "failed"
	EventCancelled = "cancelled"
	EventRules     = "rules_changed"
)

// Event is one message on a topic. Version increases per topic.
type Event struct {
	Topic   string          `json:"topic"`
	Type    string          `json:"type"`
	Data    json.RawMessage `json:"data"`
	Version int             `json:"version"`
}

// Subscription represents a client subscription to a topic
type Subscription interface {
	Topic() string
	Events() <-chan Event
	Close() error
}

// Publisher manages pub/sub subscriptions and event publishing
type Publisher interface {
	// Subscribe creates a new subscription to a topic.
	// Context cancellation will close the subscription.
	Subscribe(ctx context.Context, topic string) (Subscription, error)

	// Publish sends an event to all subscribers of a topic
	Publish(topic string, eventType string, data any) error

	Close() error
}

// GraphStatus describes the published graph after a load, build or rule change
type GraphStatus struct {
	Generation   uint64 `json:"generation"`
	Nodes        int    `json:"nodes"`
	Edges        int    `json:"edges"`
	Cycles       int    `json:"cycles"`
	RulesVersion uint64 `json:"rules_version"`
	NeedsRebuild bool   `json:"needs_rebuild,omitempty"`
	Message      string `json:"message,omitempty"`
}

// BuildProgress is published on BuildTopic while a build runs
type BuildProgress struct {
	BuildID string `json:"build_id"`
	Mode    string `json:"mode"`
	Inputs  int    `json:"inputs"`
	Error   string `json:"error,omitempty"`
}

// Nop discards everything. Used when no streaming surface is attached.
type Nop struct{}

func (Nop) Subscribe(ctx context.Context, topic string) (Subscription, error) {
	return nil, ErrClosed
}

func (Nop) Publish(string, string, any) error { return nil }

func (Nop) Close() error { return nil }
