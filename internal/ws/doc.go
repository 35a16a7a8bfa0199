// Package ws streams policy events to WebSocket clients.
//
// Each connection subscribes to the event bus and receives every verdict,
// enforcement pass, and intercepted click as a JSON frame. The stream is
// one-way; client frames are read only to keep the connection alive.
//
// Example Usage:
//
//	handler := ws.NewHandler(bus, metrics, logger)
//	router.GET("/events", handler.HandleConnection)
package ws
