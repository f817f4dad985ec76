// Package jsonrpc implements the JSON-RPC 2.0 message model used on both
// sides of the bridge: the line-oriented local transport and the HTTP
// upstream. Messages are kept as a single struct with raw JSON fields and
// classified into a tagged union via Type().
package jsonrpc

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Version is the protocol version tag every message must carry
const Version = "2.0"

// Reserved JSON-RPC 2.0 error codes
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

var (
	ErrInvalidJSON    = errors.New("invalid JSON")
	ErrInvalidVersion = errors.New("jsonrpc version must be \"2.0\"")
)

// Message is a JSON-RPC 2.0 envelope. A request carries Method (and an ID
// when a reply is expected); a response carries exactly one of Result or
// Error together with the ID of the request it answers.
type Message struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error is the JSON-RPC 2.0 error object carried by failed responses
type Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Error implements the error interface
func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// MessageType classifies a decoded message
type MessageType int

const (
	TypeUnknown MessageType = iota
	TypeRequest
	TypeNotification
	TypeSuccessResponse
	TypeErrorResponse
)

// String returns a short name for logging
func (t MessageType) String() string {
	switch t {
	case TypeRequest:
		return "request"
	case TypeNotification:
		return "notification"
	case TypeSuccessResponse:
		return "response"
	case TypeErrorResponse:
		return "error_response"
	default:
		return "unknown"
	}
}

// HasID reports whether the message carries a concrete (non-null) id
func (m *Message) HasID() bool {
	return len(m.ID) > 0 && string(m.ID) != "null"
}

// Type classifies the message by which fields are present:
// result/error mark a response, method with an id marks a request,
// method without an id marks a notification.
func (m *Message) Type() MessageType {
	switch {
	case m.Error != nil:
		return TypeErrorResponse
	case len(m.Result) > 0:
		return TypeSuccessResponse
	case m.Method != "" && m.HasID():
		return TypeRequest
	case m.Method != "":
		return TypeNotification
	default:
		return TypeUnknown
	}
}

// Parse decodes and validates a single JSON-RPC message
func Parse(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	if msg.JSONRPC != Version {
		return nil, ErrInvalidVersion
	}
	return &msg, nil
}

// Encode serializes a message to its wire form without a terminator;
// framing is the transport's concern
func Encode(msg *Message) ([]byte, error) {
	return json.Marshal(msg)
}

// NewNotification builds a notification message (no id, no reply expected)
func NewNotification(method string, params interface{}) (*Message, error) {
	msg := &Message{JSONRPC: Version, Method: method}
	if params != nil {
		p, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("failed to encode params: %w", err)
		}
		msg.Params = p
	}
	return msg, nil
}

// NewResponse builds a success response for the given request id
func NewResponse(id json.RawMessage, result interface{}) (*Message, error) {
	r, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	return &Message{JSONRPC: Version, ID: normalizeID(id), Result: r}, nil
}

// NewErrorResponse builds an error response. A nil id is encoded as an
// explicit null so the caller always receives a correlatable envelope.
func NewErrorResponse(id json.RawMessage, code int, message string) *Message {
	return &Message{
		JSONRPC: Version,
		ID:      normalizeID(id),
		Error:   &Error{Code: code, Message: message},
	}
}

func normalizeID(id json.RawMessage) json.RawMessage {
	if len(id) == 0 {
		return json.RawMessage("null")
	}
	return id
}
