// Package protocol implements the JSON-RPC 2.0 method layer of the MCP server.
//
// # Overview
//
// MCP (Model Context Protocol) is a standard for AI tool integration. This
// package owns the transport-independent half of the server: request and
// response envelopes, the error-code vocabulary, and the Dispatcher that maps
// method names to behavior. Transports (stdio, HTTP+SSE) feed decoded requests
// in and carry the resulting envelopes out.
//
// # Method Table
//
//   - initialize: Protocol handshake; returns version, capabilities, server info
//   - notifications/initialized: Client acknowledgment; produces no response
//   - tools/list: Tool discovery with JSON Schema input descriptors
//   - tools/call: Tool execution through the registry
//   - resources/list: Supported but empty
//   - prompts/list: Recognized and rejected with "Method not found"
//
// Anything else gets a -32601 naming the method.
//
// # Error Mapping
//
// Tool lookup failures surface as -32601 ("Tool '<name>' not found"); tool
// execution failures surface as -32603 carrying the tool's own error text.
// Request ids are echoed back byte-for-byte, whatever JSON type the client
// chose.
//
// # Usage
//
//	d := protocol.NewDispatcher(reg, "xdmod-mcp", version, logger)
//	resp := d.Dispatch(ctx, req, sess) // nil for notifications
package protocol
