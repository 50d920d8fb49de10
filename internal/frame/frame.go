// Package frame implements the Pusher Channels wire frame: encoding outbound system/broadcast frames and decoding
// inbound client frames.
package frame

import (
	"encoding/json"
	"fmt"

	"github.com/pusherd/pusherd/internal/presence"
	"github.com/pusherd/pusherd/internal/socketid"
)

// Frame is the wire-format structure for every WebSocket message, inbound or outbound.
type Frame struct {
	Event   string          `json:"event"`
	Channel string          `json:"channel,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Event name constants for the protocol's own control events. Application event names (subscribe callbacks,
// client-* events) are plain strings and have no constant.
const (
	EventPing                  = "pusher:ping"
	EventPong                  = "pusher:pong"
	EventSubscribe             = "pusher:subscribe"
	EventUnsubscribe           = "pusher:unsubscribe"
	EventConnectionEstablished = "pusher:connection_established"
	EventError                 = "pusher:error"
	EventSubscriptionError     = "pusher:subscription_error"
	EventSubscriptionSucceeded = "pusher_internal:subscription_succeeded"
	EventMemberAdded           = "pusher_internal:member_added"
	EventMemberRemoved         = "pusher_internal:member_removed"
	clientEventPrefix          = "client-"
)

// IsClientEvent reports whether an inbound event name is a client-originated broadcast event.
func IsClientEvent(event string) bool {
	return len(event) > len(clientEventPrefix) && event[:len(clientEventPrefix)] == clientEventPrefix
}

// stringify marshals v to JSON and then marshals the resulting text as a JSON string, matching the double-encoding
// the protocol uses for most system frames ("data" is itself a JSON-encoded string, not an inline object).
func stringify(v any) (json.RawMessage, error) {
	inner, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal frame payload: %w", err)
	}
	outer, err := json.Marshal(string(inner))
	if err != nil {
		return nil, fmt.Errorf("marshal stringified frame payload: %w", err)
	}
	return outer, nil
}

// connectionEstablishedData is the payload stringified into a connection_established frame.
type connectionEstablishedData struct {
	SocketID        string `json:"socket_id"`
	ActivityTimeout int    `json:"activity_timeout"`
}

// NewConnectionEstablished builds the frame sent immediately after a connection is accepted.
func NewConnectionEstablished(id socketid.ID, activityTimeoutSeconds int) ([]byte, error) {
	data, err := stringify(connectionEstablishedData{
		SocketID:        id.String(),
		ActivityTimeout: activityTimeoutSeconds,
	})
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Event: EventConnectionEstablished, Data: data})
}

// NewPong builds the reply to a pusher:ping frame.
func NewPong() ([]byte, error) {
	return json.Marshal(Frame{Event: EventPong, Data: json.RawMessage(`{}`)})
}

// subscriptionSucceededData is the payload stringified into a subscription_succeeded frame. Presence is omitted
// entirely for non-presence channels, serializing to "{}".
type subscriptionSucceededData struct {
	Presence *presence.Data `json:"presence,omitempty"`
}

// NewSubscriptionSucceeded builds the frame sent to a socket once its subscribe request is accepted. presenceData is
// nil for public and private channels.
func NewSubscriptionSucceeded(channel string, presenceData *presence.Data) ([]byte, error) {
	data, err := stringify(subscriptionSucceededData{Presence: presenceData})
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Event: EventSubscriptionSucceeded, Channel: channel, Data: data})
}

// memberData is the payload stringified into a member_added frame.
type memberData struct {
	UserID   string          `json:"user_id"`
	UserInfo json.RawMessage `json:"user_info,omitempty"`
}

// NewMemberAdded builds the frame broadcast to existing presence-channel members when a new member joins.
func NewMemberAdded(channel string, rec presence.Record) ([]byte, error) {
	data, err := stringify(memberData{UserID: rec.UserID, UserInfo: rec.UserInfo})
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Event: EventMemberAdded, Channel: channel, Data: data})
}

// memberRemovedData is sent as a plain inline object, not stringified, unlike the member_added payload.
type memberRemovedData struct {
	UserID string `json:"user_id"`
}

// NewMemberRemoved builds the frame broadcast to remaining presence-channel members when a member leaves.
func NewMemberRemoved(channel, userID string) ([]byte, error) {
	data, err := json.Marshal(memberRemovedData{UserID: userID})
	if err != nil {
		return nil, fmt.Errorf("marshal member_removed data: %w", err)
	}
	return json.Marshal(Frame{Event: EventMemberRemoved, Channel: channel, Data: data})
}

// errorData is the inline (non-stringified) payload of a pusher:error frame.
type errorData struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// NewError builds a fatal pusher:error frame. The caller is expected to close the connection with the same code
// immediately after sending this frame.
func NewError(code int, message string) ([]byte, error) {
	data, err := json.Marshal(errorData{Message: message, Code: code})
	if err != nil {
		return nil, fmt.Errorf("marshal error data: %w", err)
	}
	return json.Marshal(Frame{Event: EventError, Data: data})
}

// subscriptionErrorData is the inline payload of a pusher:subscription_error frame.
type subscriptionErrorData struct {
	Type   string `json:"type"`
	Error  string `json:"error"`
	Status int    `json:"status"`
}

// NewSubscriptionError builds a non-fatal subscription_error frame; the connection is left open.
func NewSubscriptionError(status int, message string) ([]byte, error) {
	data, err := json.Marshal(subscriptionErrorData{Type: "AuthError", Error: message, Status: status})
	if err != nil {
		return nil, fmt.Errorf("marshal subscription_error data: %w", err)
	}
	return json.Marshal(Frame{Event: EventSubscriptionError, Data: data})
}

// NewBroadcast builds a fan-out frame for a client-* event or an HTTP-published event. data is passed through
// unmodified — by convention publishers already hand the broker a JSON-encoded string as their event payload, and
// the broker forwards exactly the bytes it was given rather than re-encoding them.
func NewBroadcast(channel, event string, data json.RawMessage) ([]byte, error) {
	if len(data) == 0 {
		data = json.RawMessage("null")
	}
	return json.Marshal(Frame{Event: event, Channel: channel, Data: data})
}

// Normalize accepts a raw "data" value that may be either an inline JSON value or a JSON-encoded string wrapping one
// (client libraries send either), and returns the inline JSON bytes in both cases.
func Normalize(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return raw
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return json.RawMessage(asString)
	}
	return raw
}

// Stringify re-encodes already-inline JSON bytes as a JSON string, the form client-originated and HTTP-published
// event data is forwarded in (NewBroadcast passes data through unmodified, so callers stringify before calling it).
func Stringify(inline json.RawMessage) (json.RawMessage, error) {
	out, err := json.Marshal(string(inline))
	if err != nil {
		return nil, fmt.Errorf("stringify frame data: %w", err)
	}
	return out, nil
}
