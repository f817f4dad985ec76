// Package handshake answers the initialize method locally so a launching
// host can discover the bridge identity and the forwardable method surface
// without an upstream round trip.
package handshake

import (
	"encoding/json"

	"trinobridge/internal/shared/jsonrpc"
)

// Fixed bridge identity reported in every initialize result
const (
	ServerName    = "trino-mcp-bridge"
	ServerVersion = "1.0.0"
)

// MethodInitialize is the distinguished method answered locally and
// never forwarded upstream.
const MethodInitialize = "initialize"

// MethodInitialized is the notification emitted after the initialize
// reply so the host knows the bridge is ready.
const MethodInitialized = "initialized"

// DefaultMethods is the query gateway surface the bridge forwards
func DefaultMethods() []string {
	return []string{
		"list_catalogs",
		"list_schemas",
		"list_tables",
		"get_table_schema",
		"run_query_sync",
		"run_query_async",
		"get_query_status",
		"get_query_results",
	}
}

// ServerInfo identifies the bridge to the calling host
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Capabilities enumerates every forwardable method mapped to true
type Capabilities struct {
	MethodSupport map[string]bool `json:"methodSupport"`
}

// InitializeResult is the synthesized initialize response payload
type InitializeResult struct {
	ServerInfo   ServerInfo   `json:"serverInfo"`
	Capabilities Capabilities `json:"capabilities"`
}

// Responder synthesizes initialize replies from a static capability
// descriptor. It has no side effects and performs no I/O.
type Responder struct {
	result InitializeResult
}

// NewResponder creates a responder advertising the given methods.
// An empty list falls back to the default gateway surface.
func NewResponder(methods []string) *Responder {
	if len(methods) == 0 {
		methods = DefaultMethods()
	}
	support := make(map[string]bool, len(methods))
	for _, m := range methods {
		support[m] = true
	}
	return &Responder{
		result: InitializeResult{
			ServerInfo:   ServerInfo{Name: ServerName, Version: ServerVersion},
			Capabilities: Capabilities{MethodSupport: support},
		},
	}
}

// Handles reports whether the method is answered locally
func (r *Responder) Handles(method string) bool {
	return method == MethodInitialize
}

// Respond builds the initialize reply carrying the request id
func (r *Responder) Respond(id json.RawMessage) (*jsonrpc.Message, error) {
	return jsonrpc.NewResponse(id, r.result)
}

// Initialized builds the ready notification sent after the reply
func (r *Responder) Initialized() (*jsonrpc.Message, error) {
	return jsonrpc.NewNotification(MethodInitialized, nil)
}
