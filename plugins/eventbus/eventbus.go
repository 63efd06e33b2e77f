// Package eventbus provides a simple publish/subscribe event bus. It is the
// app-level integration surface: the identity and session plugins publish
// their transition topics here so application code can react to sign-ins,
// sign-outs, and preference changes without reaching into those plugins.
package eventbus

import (
	"context"
)

// Constant name for identifying the eventbus plugin.
const PluginName = "eventbus"

// Handler is the function type for event subscribers. Handlers should assume
// that they may be called multiple times concurrently.
type Handler func(context.Context, *Message) error

// Message wraps the payload delivered to a handler.
type Message struct {
	// ID uniquely identifies the message for logging and deduplication.
	ID string
	// Topic the message was published to.
	Topic string
	// Data is the payload provided by the publisher.
	Data any
}

// NewMessage constructs a message for delivery. Intended for use by EventBus
// implementations.
func NewMessage(id, topic string, data any) *Message {
	return &Message{
		ID:    id,
		Topic: topic,
		Data:  data,
	}
}

// EventBus provides a publish/subscribe interface. Messages are broadcast:
// every subscriber of a topic receives its own copy.
type EventBus interface {
	// Subscribe registers a handler for messages on a topic.
	Subscribe(topic string, handler Handler)

	// Publish sends a message to all subscribers of a topic. Delivery is
	// asynchronous, errors are logged by the bus.
	Publish(topic string, data any)

	// Wait blocks until all pending messages are processed or ctx is done.
	// Publishers should be stopped first, the bus won't reject new events.
	Wait(ctx context.Context) error

	// Shutdown stops the bus and waits for in-flight handlers to finish.
	Shutdown(ctx context.Context) error
}

// Plugin registers an eventbus for other plugins to use.
func Plugin(eb EventBus) *EventBusPlugin {
	return &EventBusPlugin{EventBus: eb}
}

// EventBusPlugin provides access to an event bus for plugins and components
// to communicate with each other.
type EventBusPlugin struct {
	EventBus
}

// From portal.Plugin
func (p *EventBusPlugin) Name() string {
	return PluginName
}
