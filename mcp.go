package mcp

import (
	"context"
	"iter"
)

// Channel is a single duplex payload stream between two peers. A transport
// produces one Channel per connection; the session engine owns it afterwards.
//
// Payloads are opaque ordered byte slices. Translating them to protocol
// messages is the job of a Codec, so a Channel never inspects what it carries.
type Channel interface {
	// ID returns the stable unique identifier of this channel. The transport
	// must guarantee uniqueness across all channels it ever produced.
	ID() string

	// Send transmits a single payload to the peer. It blocks until the
	// payload is handed to the underlying medium, the context is done, or
	// the channel is closed.
	Send(ctx context.Context, payload []byte) error

	// Receive returns an iterator yielding payloads from the peer in arrival
	// order. The iteration ends when the peer disconnects or the channel is
	// closed.
	Receive() iter.Seq[[]byte]

	// Close releases the channel and ends the Receive iteration. The caller
	// is guaranteed to call it at most once.
	Close()
}

// ServerTransport provides the server-side communication layer. It accepts
// connections and surfaces them as channels.
type ServerTransport interface {
	// Channels returns an iterator yielding a new Channel per connecting
	// client. The iteration exits after Shutdown is called.
	Channels() iter.Seq[Channel]

	// Shutdown releases transport resources. It must not close the channels
	// it produced; the caller owns those. The caller is guaranteed to call
	// this method only once.
	Shutdown(ctx context.Context) error
}

// ClientTransport provides the client-side communication layer.
type ClientTransport interface {
	// Connect establishes a connection to the server and returns the channel
	// carrying it. The returned channel is ready for Send immediately.
	Connect(ctx context.Context) (Channel, error)
}

// PromptServer defines the interface for serving prompts in the MCP protocol.
type PromptServer interface {
	// ListPrompts returns one page of available prompts, starting at the
	// optional pagination cursor in the params.
	ListPrompts(ctx context.Context, sess *ServerSession, params ListPromptsParams) (ListPromptResult, error)

	// GetPrompt renders the named prompt with the given arguments.
	GetPrompt(ctx context.Context, sess *ServerSession, params GetPromptParams) (GetPromptResult, error)

	// CompletesPrompt provides completion suggestions for a prompt argument.
	CompletesPrompt(ctx context.Context, sess *ServerSession, params CompletesCompletionParams) (CompletionResult, error)
}

// PromptListUpdater provides an iterator that emits whenever the prompt list
// changes. The server broadcasts a list-changed notification to connected
// clients on each emission.
//
// The emission value carries no data, as clients are expected to call
// ListPrompts again to fetch the updated list.
type PromptListUpdater interface {
	PromptListUpdates() iter.Seq[struct{}]
}

// ResourceServer defines the interface for serving resources in the MCP
// protocol.
type ResourceServer interface {
	// ListResources returns one page of available resources.
	ListResources(ctx context.Context, sess *ServerSession, params ListResourcesParams) (ListResourcesResult, error)

	// ReadResource returns the contents of the resource at the given URI.
	ReadResource(ctx context.Context, sess *ServerSession, params ReadResourceParams) (ReadResourceResult, error)

	// ListResourceTemplates returns the URI templates for parameterized
	// resources.
	ListResourceTemplates(ctx context.Context, sess *ServerSession,
		params ListResourceTemplatesParams) (ListResourceTemplatesResult, error)

	// CompletesResourceTemplate provides completion suggestions for a
	// resource template argument.
	CompletesResourceTemplate(ctx context.Context, sess *ServerSession,
		params CompletesCompletionParams) (CompletionResult, error)
}

// ResourceListUpdater provides an iterator that emits whenever the resource
// list changes. The server broadcasts a list-changed notification to
// connected clients on each emission.
type ResourceListUpdater interface {
	ResourceListUpdates() iter.Seq[struct{}]
}

// ResourceSubscriptionHandler tracks per-resource update subscriptions.
type ResourceSubscriptionHandler interface {
	// SubscribeResource registers interest in updates of a resource.
	SubscribeResource(params SubscribeResourceParams)

	// UnsubscribeResource removes interest in updates of a resource.
	UnsubscribeResource(params UnsubscribeResourceParams)

	// SubscribedResourceUpdates returns an iterator yielding the URI of each
	// subscribed resource that changed. The server turns each emission into
	// an updated notification for the subscribed clients.
	SubscribedResourceUpdates() iter.Seq[string]
}

// ToolHandler executes one tool call. Returning an error marks the call
// result as failed without failing the protocol exchange, unless the error is
// a JSONRPCError, which is sent back verbatim as the request outcome.
type ToolHandler func(ctx context.Context, sess *ServerSession, params CallToolParams) (CallToolResult, error)

// LogHandler streams log messages to be delivered as message notifications.
type LogHandler interface {
	// LogStreams returns an iterator yielding log messages as they occur.
	LogStreams() iter.Seq[LogParams]

	// SetLogLevel adjusts the minimum severity of emitted messages.
	SetLogLevel(level LogLevel)
}

// RootsChangeHandler is invoked with the client's full current roots list
// after the client announces a change. Registered handlers run in
// registration order; a failing handler is logged and does not stop the
// remaining ones.
type RootsChangeHandler func(ctx context.Context, sess *ServerSession, roots []Root) error

// SamplingHandler samples a message from the client's language model on
// behalf of the server.
type SamplingHandler interface {
	CreateSampleMessage(ctx context.Context, params SamplingParams) (SamplingResult, error)
}

// PromptListWatcher receives notifications when the server's prompt list
// changes.
type PromptListWatcher interface {
	OnPromptListChanged()
}

// ResourceListWatcher receives notifications when the server's resource list
// changes.
type ResourceListWatcher interface {
	OnResourceListChanged()
}

// ResourceSubscribedWatcher receives notifications when a subscribed resource
// changes.
type ResourceSubscribedWatcher interface {
	OnResourceSubscribedChanged(uri string)
}

// ToolListWatcher receives notifications when the server's tool list changes.
type ToolListWatcher interface {
	OnToolListChanged()
}

// ProgressListener receives progress updates on long-running requests.
type ProgressListener interface {
	OnProgress(params ProgressParams)
}

// LogReceiver receives log messages sent by the server.
type LogReceiver interface {
	OnLog(params LogParams)
}
