package realtime

import (
	"github.com/storedesk/notifykit/pkg/notification"
)

// EventName is the wire name of a server-to-client event.
type EventName string

const (
	// EventConnect and EventDisconnect are synthesized by the client on
	// lifecycle transitions; they never arrive on the wire.
	EventConnect    EventName = "connect"
	EventDisconnect EventName = "disconnect"

	EventNotification EventName = "notification"
	EventInitial      EventName = "notification:initial"
	EventRefresh      EventName = "notification:refresh"
	EventError        EventName = "notification:error"
)

// CommandName is the wire name of a client-to-server command.
type CommandName string

const (
	CommandFetch    CommandName = "notification:fetch"
	CommandMarkRead CommandName = "notification:mark_read"
)

// Event is the decoded form of everything a Client delivers to handlers.
// The concrete type is one of Connected, Disconnected, NotificationReceived,
// InitialLoad, Refresh or ErrorReported.
type Event interface {
	Name() EventName
	event()
}

// Connected is emitted after a successful dial, including reconnects.
type Connected struct {
	ConnectionID string
	Endpoint     string
	Reconnect    bool
}

// Disconnected is emitted when a live connection ends. Err is nil for an
// explicit Disconnect.
type Disconnected struct {
	ConnectionID string
	Err          error
}

// NotificationReceived carries a single pushed notification.
type NotificationReceived struct {
	Notification notification.Notification
}

// InitialLoad carries the authoritative list sent after connect or on fetch.
type InitialLoad struct {
	Notifications []notification.Notification
}

// Refresh carries a backend-declared full replacement of the list.
type Refresh struct {
	Notifications []notification.Notification
}

// ErrorReported is a server-side error pushed over the stream.
type ErrorReported struct {
	Status  int    `json:"status,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

func (Connected) Name() EventName            { return EventConnect }
func (Disconnected) Name() EventName         { return EventDisconnect }
func (NotificationReceived) Name() EventName { return EventNotification }
func (InitialLoad) Name() EventName          { return EventInitial }
func (Refresh) Name() EventName              { return EventRefresh }
func (ErrorReported) Name() EventName        { return EventError }

func (Connected) event()            {}
func (Disconnected) event()         {}
func (NotificationReceived) event() {}
func (InitialLoad) event()          {}
func (Refresh) event()              {}
func (ErrorReported) event()        {}

func (e ErrorReported) Error() string {
	if e.Code != "" {
		return "realtime: server error " + e.Code + ": " + e.Message
	}
	return "realtime: server error: " + e.Message
}

// PermissionDenied reports whether the server error is an authorization failure.
func (e ErrorReported) PermissionDenied() bool {
	return classifyPermission(e.Status, e.Code, e.Message)
}
