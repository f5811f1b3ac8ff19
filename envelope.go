package mcp

import (
	"encoding/json"
	"errors"
	"fmt"
)

// JSONRPCVersion specifies the JSON-RPC protocol version used for all messages.
const JSONRPCVersion = "2.0"

// JSON-RPC error codes as defined by the JSON-RPC 2.0 specification.
const (
	ErrCodeParse          = -32700
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternal       = -32603
)

// MessageKind identifies which of the three protocol message shapes a
// JSONRPCMessage carries.
type MessageKind int

const (
	// MessageKindRequest is a message with a method and an ID, expecting a
	// response.
	MessageKindRequest MessageKind = iota
	// MessageKindNotification is a message with a method but no ID, expecting
	// nothing back.
	MessageKindNotification
	// MessageKindResponse is a message with a result or an error correlated to
	// an earlier request by ID.
	MessageKindResponse
)

// MustString is a type that enforces string representation for fields that can be either string or
// integer in the protocol, such as request IDs and progress tokens. It handles automatic conversion
// during JSON marshaling/unmarshaling.
type MustString string

// JSONRPCMessage represents a JSON-RPC 2.0 message used for communication in the MCP protocol.
// It can represent either a request, a response, or a notification depending on which fields are
// populated. Decoding validates that the payload matches exactly one of those
// three shapes and rejects anything else.
type JSONRPCMessage struct {
	// JSONRPC must always be "2.0".
	JSONRPC string `json:"jsonrpc"`
	// ID is the message identifier, absent on notifications.
	ID MustString `json:"id,omitempty"`
	// Method is the name of the called method, absent on responses.
	Method string `json:"method,omitempty"`
	// Params contain the request parameters, if any.
	Params json.RawMessage `json:"params,omitempty"`
	// Result contains the outcome of a successful request.
	Result json.RawMessage `json:"result,omitempty"`
	// Error contains the outcome of a failed request.
	Error *JSONRPCError `json:"error,omitempty"`
}

// JSONRPCError represents an error response in the JSON-RPC 2.0 protocol. It follows the standard
// error object structure with error code, message, and optional additional data.
type JSONRPCError struct {
	// Code indicates the error type that occurred.
	Code int `json:"code"`
	// Message provides a short description of the error.
	Message string `json:"message"`
	// Data optionally carries additional error details.
	Data map[string]any `json:"data,omitempty"`
}

// Codec translates between protocol messages and the raw payloads a Channel
// carries. Implementations must be safe for concurrent use.
type Codec interface {
	// Encode serializes a message into a single payload.
	Encode(msg JSONRPCMessage) ([]byte, error)
	// Decode parses a single payload into a message, validating its shape.
	Decode(data []byte) (JSONRPCMessage, error)
}

// JSONCodec is the default Codec. It encodes each message as one JSON object.
type JSONCodec struct{}

type jsonRPCMessageAlias JSONRPCMessage

// UnmarshalJSON parses a JSON-RPC message and verifies it is well formed: the
// version field must match, a response must carry exactly one of result and
// error along with the ID of the request it answers, and anything that is not
// a response must name a method.
func (j *JSONRPCMessage) UnmarshalJSON(data []byte) error {
	var raw jsonRPCMessageAlias
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if raw.JSONRPC != JSONRPCVersion {
		return fmt.Errorf("%w: unsupported jsonrpc version %q", ErrMalformedMessage, raw.JSONRPC)
	}

	hasOutcome := len(raw.Result) > 0 || raw.Error != nil
	switch {
	case len(raw.Result) > 0 && raw.Error != nil:
		return fmt.Errorf("%w: message carries both result and error", ErrMalformedMessage)
	case hasOutcome && raw.Method != "":
		return fmt.Errorf("%w: message carries both method and outcome", ErrMalformedMessage)
	case hasOutcome && raw.ID == "":
		return fmt.Errorf("%w: response without request id", ErrMalformedMessage)
	case !hasOutcome && raw.Method == "":
		return fmt.Errorf("%w: message carries neither method nor outcome", ErrMalformedMessage)
	}

	*j = JSONRPCMessage(raw)
	return nil
}

// Kind reports the message shape. It is only meaningful on messages produced
// by a Codec or populated through the package, which are guaranteed to match
// exactly one shape.
func (j JSONRPCMessage) Kind() MessageKind {
	if len(j.Result) > 0 || j.Error != nil {
		return MessageKindResponse
	}
	if j.ID != "" {
		return MessageKindRequest
	}
	return MessageKindNotification
}

// Error implements the error interface, so protocol failures can travel through
// regular error returns and be unwrapped back into error responses.
func (j JSONRPCError) Error() string {
	return fmt.Sprintf("request error, code: %d, message: %s", j.Code, j.Message)
}

// UnmarshalJSON implements json.Unmarshaler to convert JSON data into MustString,
// handling both string and numeric input values.
func (m *MustString) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}

	switch v := v.(type) {
	case string:
		*m = MustString(v)
	case float64:
		*m = MustString(fmt.Sprintf("%d", int(v)))
	case int:
		*m = MustString(fmt.Sprintf("%d", v))
	default:
		return fmt.Errorf("invalid type: %T", v)
	}

	return nil
}

// MarshalJSON implements json.Marshaler to convert MustString back into its JSON
// string representation.
func (m MustString) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(m))
}

// Encode implements Codec.
func (JSONCodec) Encode(msg JSONRPCMessage) ([]byte, error) {
	return json.Marshal(msg)
}

// Decode implements Codec.
func (JSONCodec) Decode(data []byte) (JSONRPCMessage, error) {
	var msg JSONRPCMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		if errors.Is(err, ErrMalformedMessage) {
			return JSONRPCMessage{}, err
		}
		return JSONRPCMessage{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	return msg, nil
}
