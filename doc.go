// Package mcp is a runtime for the Model Context Protocol (MCP), the JSON-RPC
// based protocol that connects Large Language Model applications with external
// data sources and tools. It follows the official specification from
// https://spec.modelcontextprotocol.io/specification/.
//
// The package provides both sides of a connection. A Server exposes prompts,
// resources, and tools to connecting clients, while a Client consumes them and
// may in turn serve sampling and filesystem roots back to the server. Either
// peer can issue requests at any time once the session handshake completes, so
// the two share a single session engine that correlates responses with pending
// requests regardless of arrival order.
//
// Messages travel over pluggable transports. The package ships with a standard
// input/output transport for subprocess servers and a Server-Sent Events (SSE)
// transport for HTTP, and anything that can carry ordered byte payloads can be
// plugged in through the Channel interface.
package mcp
