// Package server exposes an annotation review session over the MCP (Model
// Context Protocol) JSON-RPC envelope.
//
// # Protocol
//
// Two transports carry the same JSON-RPC 2.0 messages:
//   - stdio: one request per line on stdin, responses on stdout
//   - WebSocket: one request per text message, one response per message
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// Queue State:
//   - review_status: Position, counts and class names
//   - review_show: Every box of an image with flags and pixel rectangles
//
// Editing:
//   - review_toggle: Accept/reject a prediction or keep/remove a label
//   - review_resize: Replace a box rectangle
//
// Navigation and Output:
//   - review_navigate: Move through the queue
//   - review_preview: Lines that would be saved for an image
//   - review_save: Write every queued image
//
// Visual Inspection:
//   - review_render: Image with boxes drawn, as PNG
//   - review_crop_box: Zoom on one box, as PNG
//
// Journal:
//   - review_history: Recent saves
//
// # Concurrency
//
// Requests from all connections are handled one at a time under a single
// lock, so the review session only ever sees one caller.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: The Go error string
package server
