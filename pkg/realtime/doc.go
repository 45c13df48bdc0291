// Package realtime maintains the console's single notification stream.
//
// A Client is constructed explicitly, one per console session, and owns one
// websocket connection to the notification gateway. Frames are JSON objects
// of the form {"event": "<name>", "data": <payload>} and are decoded once, at
// the transport boundary, into the Event sum type:
//
//	Connected            synthesized after every successful dial
//	Disconnected         synthesized when a live connection ends
//	NotificationReceived "notification"
//	InitialLoad          "notification:initial"
//	Refresh              "notification:refresh"
//	ErrorReported        "notification:error"
//
// # Connecting
//
// Connect is gated: a session without a token, or without the
// notifications.view permission, silently does nothing. Otherwise the gateway
// address is resolved through a config.Resolver and the token is presented
// on the handshake.
//
//	client := realtime.New(config.NewHTTPResolver(origin),
//	    realtime.WithMetrics(prometheus.DefaultRegisterer),
//	)
//	sub := client.OnAny(func(ev realtime.Event) { ... })
//	defer client.Off(sub)
//
//	if err := client.Connect(ctx, sess); err != nil {
//	    if realtime.IsPermissionDenied(err) { ... }
//	}
//
// # Reconnecting
//
// When a live connection drops, the client emits Disconnected and redials
// with exponential backoff (1s initial, 5s cap, 5 attempts by default).
// A 401 or 403 handshake ends the cycle early. After the last attempt the
// client stays disconnected until the next Connect. All waits run on the
// clock given to WithClock (a real clock by default). Disconnect never
// triggers a reconnect.
//
// # Commands
//
// Send, FetchNotifications and MarkRead are fire-and-forget. While offline
// they log a warning and drop the command; nothing is queued.
package realtime
