package realtime

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/storedesk/notifykit/pkg/notification"
)

// envelope is the JSON frame exchanged in both directions.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// DecodeEvent turns one text frame into a typed Event.
func DecodeEvent(frame []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedFrame, err)
	}

	switch EventName(env.Event) {
	case EventNotification:
		var n notification.Notification
		if err := json.Unmarshal(env.Data, &n); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrMalformedFrame, env.Event, err)
		}
		if n.ID == "" {
			return nil, fmt.Errorf("%w: %s: missing id", ErrMalformedFrame, env.Event)
		}
		return NotificationReceived{Notification: n}, nil

	case EventInitial:
		list, err := decodeList(env.Data)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrMalformedFrame, env.Event, err)
		}
		return InitialLoad{Notifications: list}, nil

	case EventRefresh:
		list, err := decodeList(env.Data)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrMalformedFrame, env.Event, err)
		}
		return Refresh{Notifications: list}, nil

	case EventError:
		return decodeError(env.Data), nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}
}

// decodeList accepts either a bare array or {"notifications": [...]}.
func decodeList(data json.RawMessage) ([]notification.Notification, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return []notification.Notification{}, nil
	}
	if data[0] == '{' {
		var wrapped struct {
			Notifications []notification.Notification `json:"notifications"`
		}
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return nil, err
		}
		if wrapped.Notifications == nil {
			wrapped.Notifications = []notification.Notification{}
		}
		return wrapped.Notifications, nil
	}
	list := []notification.Notification{}
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// decodeError is lenient: a bare string becomes the message, and an
// undecodable payload is kept verbatim.
func decodeError(data json.RawMessage) ErrorReported {
	var e ErrorReported
	if err := json.Unmarshal(data, &e); err == nil {
		return e
	}
	var msg string
	if err := json.Unmarshal(data, &msg); err == nil {
		return ErrorReported{Message: msg}
	}
	return ErrorReported{Message: string(data)}
}

// EncodeCommand builds the frame for an outgoing command.
func EncodeCommand(name CommandName, payload any) ([]byte, error) {
	return encodeFrame(string(name), payload)
}

// EncodeEvent builds a server-side frame. Used by gateways and tests.
func EncodeEvent(name EventName, payload any) ([]byte, error) {
	return encodeFrame(string(name), payload)
}

func encodeFrame(name string, payload any) ([]byte, error) {
	env := envelope{Event: name}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", name, err)
		}
		env.Data = data
	}
	return json.Marshal(env)
}

// DecodeCommand parses a client frame into its name and raw payload.
func DecodeCommand(frame []byte) (CommandName, json.RawMessage, error) {
	var env envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrMalformedFrame, err)
	}
	if env.Event == "" {
		return "", nil, fmt.Errorf("%w: missing event name", ErrMalformedFrame)
	}
	return CommandName(env.Event), env.Data, nil
}

type markReadPayload struct {
	ID notification.ID `json:"id"`
}
