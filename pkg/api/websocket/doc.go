// Package websocket provides real-time event streaming via WebSocket.
//
// Clients can connect to /api/v1/workspaces/:key/ws to receive task
// status updates for one workspace as they happen.
package websocket
