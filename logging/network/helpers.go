package network

import (
	"context"

	"platform-fighter/server/logging"
)

const (
	// EventInputRejected is emitted when the input gateway drops a message.
	EventInputRejected logging.EventType = "network.input_rejected"
	// EventConnectionOpened is emitted when a websocket session is established.
	EventConnectionOpened logging.EventType = "network.connection_opened"
	// EventConnectionClosed is emitted when a websocket session ends.
	EventConnectionClosed logging.EventType = "network.connection_closed"
)

// InputRejectedPayload captures why an input was dropped.
type InputRejectedPayload struct {
	Reason string `json:"reason"`
	Seq    uint64 `json:"seq,omitempty"`
}

// ConnectionPayload describes a session.
type ConnectionPayload struct {
	ConnectionID string `json:"connectionId"`
	Codec        string `json:"codec,omitempty"`
	Guest        bool   `json:"guest,omitempty"`
	Reason       string `json:"reason,omitempty"`
}

// InputRejected publishes a debug event for a dropped input message.
func InputRejected(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload InputRejectedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventInputRejected,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityDebug,
		Category: logging.CategoryNetwork,
		Payload:  payload,
		Extra:    extra,
	})
}

// ConnectionOpened publishes a session start.
func ConnectionOpened(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload ConnectionPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventConnectionOpened,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryNetwork,
		Payload:  payload,
		Extra:    extra,
	})
}

// ConnectionClosed publishes a session end.
func ConnectionClosed(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload ConnectionPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventConnectionClosed,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryNetwork,
		Payload:  payload,
		Extra:    extra,
	})
}
