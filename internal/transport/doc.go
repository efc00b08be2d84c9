// Package transport carries JSON-RPC envelopes between clients and the dispatcher.
//
// # Stdio
//
// Stdio speaks newline-delimited JSON on stdin/stdout: one request per line in,
// one response per line out, written as soon as dispatch returns. Unparseable
// lines are answered with a -32700 envelope and the loop keeps serving. This is
// the transport MCP clients like Claude Desktop spawn directly.
//
// # HTTP+SSE
//
// HTTPServer exposes five endpoints:
//
//   - GET  /health        - Liveness probe with server name and version
//   - GET  /sse           - Long-lived event stream; first event announces the
//     session's /messages endpoint
//   - POST /messages      - JSON-RPC ingress for an SSE session (202 Accepted;
//     responses arrive on the stream)
//   - GET  /tools         - REST tool discovery
//   - POST /tools/{name}  - REST tool execution, bypassing JSON-RPC
//
// Each SSE connection owns one session with a bounded FIFO queue; keepalive
// comments are written on idle streams so proxies keep the connection open.
// Disconnecting tears the session down and later POSTs to its endpoint return
// 404.
package transport
