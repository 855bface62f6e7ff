// Package stream runs one worker per live streaming subscription. A worker
// owns its socket, decodes events, and forwards typed messages to the
// engine's response channel; it reconnects with jittered exponential
// backoff and never touches shared state.
package stream

import (
	"encoding/json"
	"time"

	"github.com/mkordell/murmur/internal/mastodon"
	"github.com/mkordell/murmur/internal/timeline"
)

// Descriptor identifies one live or desired streaming connection.
type Descriptor struct {
	Session string // account session id
	Kind    timeline.Kind
}

// Event is anything a stream worker forwards to the synchronization loop.
// All implementations are immutable once sent.
type Event interface {
	StreamDescriptor() Descriptor
}

// StatusChanged reports a subscription lifecycle transition, including
// degraded (backoff) states the UI shows as passive staleness.
type StatusChanged struct {
	Desc      Descriptor
	State     timeline.StreamState
	Attempt   int
	NextRetry time.Time
	Err       string
}

// EntryReceived carries one new status from the stream.
type EntryReceived struct {
	Desc   Descriptor
	Status mastodon.Status
}

// EntryEdited carries an edited status ("status.update" events).
type EntryEdited struct {
	Desc   Descriptor
	Status mastodon.Status
}

// EntryDeleted carries the id of a deleted status.
type EntryDeleted struct {
	Desc Descriptor
	ID   string
}

// NotificationReceived carries one notification event.
type NotificationReceived struct {
	Desc         Descriptor
	Notification mastodon.Notification
}

func (e StatusChanged) StreamDescriptor() Descriptor        { return e.Desc }
func (e EntryReceived) StreamDescriptor() Descriptor        { return e.Desc }
func (e EntryEdited) StreamDescriptor() Descriptor          { return e.Desc }
func (e EntryDeleted) StreamDescriptor() Descriptor         { return e.Desc }
func (e NotificationReceived) StreamDescriptor() Descriptor { return e.Desc }

// envelope is the wire shape of one streaming frame: an event name plus a
// payload that is itself a JSON-encoded string.
type envelope struct {
	Event   string `json:"event"`
	Payload string `json:"payload"`
}

// decodeEvent parses one frame. Unknown event names and malformed
// payloads return ok=false; the caller drops the frame and keeps the
// connection, per the smallest-granularity rule.
func decodeEvent(desc Descriptor, data []byte) (Event, bool) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, false
	}
	switch env.Event {
	case "update":
		var status mastodon.Status
		if err := json.Unmarshal([]byte(env.Payload), &status); err != nil || status.ID == "" {
			return nil, false
		}
		return EntryReceived{Desc: desc, Status: status}, true
	case "status.update":
		var status mastodon.Status
		if err := json.Unmarshal([]byte(env.Payload), &status); err != nil || status.ID == "" {
			return nil, false
		}
		return EntryEdited{Desc: desc, Status: status}, true
	case "delete":
		if env.Payload == "" {
			return nil, false
		}
		return EntryDeleted{Desc: desc, ID: env.Payload}, true
	case "notification":
		var notification mastodon.Notification
		if err := json.Unmarshal([]byte(env.Payload), &notification); err != nil || notification.ID == "" {
			return nil, false
		}
		return NotificationReceived{Desc: desc, Notification: notification}, true
	default:
		return nil, false
	}
}
