package mcp

import "errors"

var (
	// ErrClosed is returned by operations on a closed session. Every request
	// still waiting for a response when the session closes fails with it.
	ErrClosed = errors.New("session closed")

	// ErrTimeout is returned when a request receives no response within the
	// configured request timeout.
	ErrTimeout = errors.New("request timed out")

	// ErrMalformedMessage reports a payload that does not decode into one of
	// the three protocol message shapes. Receiving one is fatal for a session.
	ErrMalformedMessage = errors.New("malformed message")
)

// CapabilityError reports a capability-gated operation attempted against a
// peer that did not declare the capability during initialization. The failure
// is local to the call; the session stays usable.
type CapabilityError struct {
	// Capability names the missing capability.
	Capability string
	// Message is the text surfaced to the caller.
	Message string
}

func (e *CapabilityError) Error() string {
	return e.Message
}

var (
	errSamplingNotSupported = &CapabilityError{
		Capability: "sampling",
		Message:    "Client must be configured with sampling capabilities",
	}
	errRootsNotSupported = &CapabilityError{
		Capability: "roots",
		Message:    "Roots not supported",
	}
)
