// Package server implements the HTTP and WebSocket surface of the messenger.
//
// The Hub is the notification bus: it keeps the set of connected clients and fans
// every event out to all of them. Handlers map HTTP routes onto the messaging
// service and translate its errors into status codes. Routing, middleware and
// the server lifecycle live in routes.go and server.go.
package server
