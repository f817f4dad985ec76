package handshake

import (
	"encoding/json"
	"testing"

	"trinobridge/internal/shared/jsonrpc"
)

func TestRespondShape(t *testing.T) {
	r := NewResponder(nil)

	msg, err := r.Respond(json.RawMessage("1"))
	if err != nil {
		t.Fatalf("Respond failed: %v", err)
	}

	if string(msg.ID) != "1" {
		t.Errorf("Expected id 1, got %s", msg.ID)
	}
	if msg.Type() != jsonrpc.TypeSuccessResponse {
		t.Errorf("Expected a success response, got %s", msg.Type())
	}

	var result InitializeResult
	if err := json.Unmarshal(msg.Result, &result); err != nil {
		t.Fatalf("Failed to decode result: %v", err)
	}

	if result.ServerInfo.Name != ServerName {
		t.Errorf("Expected server name %q, got %q", ServerName, result.ServerInfo.Name)
	}
	if result.ServerInfo.Version != ServerVersion {
		t.Errorf("Expected server version %q, got %q", ServerVersion, result.ServerInfo.Version)
	}

	// Every forwardable method must be enumerated as true
	for _, m := range DefaultMethods() {
		if !result.Capabilities.MethodSupport[m] {
			t.Errorf("Expected method %q to be advertised", m)
		}
	}
	if len(result.Capabilities.MethodSupport) != len(DefaultMethods()) {
		t.Errorf("Expected %d methods, got %d", len(DefaultMethods()), len(result.Capabilities.MethodSupport))
	}
}

func TestRespondCustomMethods(t *testing.T) {
	r := NewResponder([]string{"list_catalogs", "run_query_sync"})

	msg, err := r.Respond(json.RawMessage(`"init-1"`))
	if err != nil {
		t.Fatalf("Respond failed: %v", err)
	}

	var result InitializeResult
	if err := json.Unmarshal(msg.Result, &result); err != nil {
		t.Fatalf("Failed to decode result: %v", err)
	}

	if len(result.Capabilities.MethodSupport) != 2 {
		t.Errorf("Expected 2 methods, got %d", len(result.Capabilities.MethodSupport))
	}
	if !result.Capabilities.MethodSupport["run_query_sync"] {
		t.Error("Expected run_query_sync to be advertised")
	}
}

func TestRespondNullID(t *testing.T) {
	r := NewResponder(nil)

	msg, err := r.Respond(nil)
	if err != nil {
		t.Fatalf("Respond failed: %v", err)
	}
	if string(msg.ID) != "null" {
		t.Errorf("Expected explicit null id, got %s", msg.ID)
	}
}

func TestHandles(t *testing.T) {
	r := NewResponder(nil)

	if !r.Handles("initialize") {
		t.Error("Expected initialize to be handled locally")
	}
	if r.Handles("run_query_sync") {
		t.Error("run_query_sync must be forwarded, not handled locally")
	}
	if r.Handles("initialized") {
		t.Error("initialized is a notification, not the handshake")
	}
}

func TestInitialized(t *testing.T) {
	r := NewResponder(nil)

	msg, err := r.Initialized()
	if err != nil {
		t.Fatalf("Initialized failed: %v", err)
	}
	if msg.Type() != jsonrpc.TypeNotification {
		t.Errorf("Expected a notification, got %s", msg.Type())
	}
	if msg.Method != MethodInitialized {
		t.Errorf("Expected method %q, got %q", MethodInitialized, msg.Method)
	}
}
