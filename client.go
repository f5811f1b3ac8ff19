package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

var (
	defaultWriteTimeout   = 30 * time.Second
	defaultRequestTimeout = 30 * time.Second
	defaultPingInterval   = 30 * time.Second
)

const defaultPingTimeoutThreshold = 3

var errNotConnected = errors.New("client not connected")

// ClientOption is a function that configures a client.
type ClientOption func(*Client)

// Client implements a Model Context Protocol (MCP) client that enables
// communication between LLM applications and external data sources and tools.
// It manages the connection lifecycle, performs the initialization handshake,
// and provides typed access to every server capability.
//
// The client is also a peer: once connected it answers the server's ping,
// roots, and sampling requests, and forwards list-changed, progress, and log
// notifications to the configured watchers.
//
// A Client must be created using NewClient() and requires Connect() to be
// called before any operations can be performed. Close it with Close() or
// Shutdown() when no longer needed.
type Client struct {
	info         Info
	capabilities ClientCapabilities
	transport    ClientTransport
	codec        Codec

	roots           *RootsRegistry
	samplingHandler SamplingHandler

	promptListWatcher         PromptListWatcher
	resourceListWatcher       ResourceListWatcher
	resourceSubscribedWatcher ResourceSubscribedWatcher
	toolListWatcher           ToolListWatcher
	progressListener          ProgressListener
	logReceiver               LogReceiver

	writeTimeout         time.Duration
	requestTimeout       time.Duration
	pingInterval         time.Duration
	pingTimeoutThreshold int

	logger *slog.Logger

	sess *session
}

// WithRootsRegistry exposes the registry's roots to the server and declares
// the roots capability, including list-changed notifications on registry
// mutations.
func WithRootsRegistry(registry *RootsRegistry) ClientOption {
	return func(c *Client) {
		c.roots = registry
	}
}

// WithSamplingHandler lets the server sample messages from the client's
// language model and declares the sampling capability.
func WithSamplingHandler(handler SamplingHandler) ClientOption {
	return func(c *Client) {
		c.samplingHandler = handler
	}
}

// WithPromptListWatcher registers a watcher for prompt list change
// notifications.
func WithPromptListWatcher(watcher PromptListWatcher) ClientOption {
	return func(c *Client) {
		c.promptListWatcher = watcher
	}
}

// WithResourceListWatcher registers a watcher for resource list change
// notifications.
func WithResourceListWatcher(watcher ResourceListWatcher) ClientOption {
	return func(c *Client) {
		c.resourceListWatcher = watcher
	}
}

// WithResourceSubscribedWatcher registers a watcher for subscribed resource
// update notifications.
func WithResourceSubscribedWatcher(watcher ResourceSubscribedWatcher) ClientOption {
	return func(c *Client) {
		c.resourceSubscribedWatcher = watcher
	}
}

// WithToolListWatcher registers a watcher for tool list change notifications.
func WithToolListWatcher(watcher ToolListWatcher) ClientOption {
	return func(c *Client) {
		c.toolListWatcher = watcher
	}
}

// WithProgressListener registers a listener for progress notifications on
// long-running requests.
func WithProgressListener(listener ProgressListener) ClientOption {
	return func(c *Client) {
		c.progressListener = listener
	}
}

// WithLogReceiver registers a receiver for server log messages.
func WithLogReceiver(receiver LogReceiver) ClientOption {
	return func(c *Client) {
		c.logReceiver = receiver
	}
}

// WithClientCodec overrides the wire codec. The default encodes messages as
// JSON objects.
func WithClientCodec(codec Codec) ClientOption {
	return func(c *Client) {
		c.codec = codec
	}
}

// WithClientWriteTimeout sets the timeout for writing a single message to the
// transport.
func WithClientWriteTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.writeTimeout = timeout
	}
}

// WithClientRequestTimeout sets the deadline for receiving a response to a
// request.
func WithClientRequestTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.requestTimeout = timeout
	}
}

// WithClientPingInterval sets the interval of the keepalive ping. Zero
// disables the keepalive.
func WithClientPingInterval(interval time.Duration) ClientOption {
	return func(c *Client) {
		c.pingInterval = interval
	}
}

// WithClientPingTimeoutThreshold sets how many consecutive ping failures are
// tolerated before the client closes the session.
func WithClientPingTimeoutThreshold(threshold int) ClientOption {
	return func(c *Client) {
		c.pingTimeoutThreshold = threshold
	}
}

// WithClientLogger sets the logger for client operations.
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a client with the given implementation info and
// transport. The client capabilities are derived from the options: a roots
// registry declares roots, a sampling handler declares sampling.
func NewClient(info Info, transport ClientTransport, options ...ClientOption) *Client {
	c := &Client{
		info:                 info,
		transport:            transport,
		codec:                JSONCodec{},
		writeTimeout:         defaultWriteTimeout,
		requestTimeout:       defaultRequestTimeout,
		pingInterval:         defaultPingInterval,
		pingTimeoutThreshold: defaultPingTimeoutThreshold,
		logger:               slog.Default(),
	}
	for _, opt := range options {
		opt(c)
	}
	c.logger = c.logger.With(slog.String("package", "mcp"), slog.String("component", "client"))

	if c.roots != nil {
		c.capabilities.Roots = &RootsCapability{ListChanged: true}
	}
	if c.samplingHandler != nil {
		c.capabilities.Sampling = &SamplingCapability{}
	}
	return c
}

// Connect establishes the transport connection and performs the
// initialization handshake. It blocks until the server accepted the
// handshake, the context is done, or the connection failed. The client is
// ready for use when Connect returns nil.
func (c *Client) Connect(ctx context.Context) error {
	if c.sess != nil {
		return errors.New("client already connected")
	}

	channel, err := c.transport.Connect(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect transport: %w", err)
	}

	sess := newSession(sessionConfig{
		channel:        channel,
		codec:          c.codec,
		logger:         c.logger,
		writeTimeout:   c.writeTimeout,
		requestTimeout: c.requestTimeout,
	})
	c.registerHandlers(sess)

	go sess.run()

	if err := c.initialize(ctx, sess); err != nil {
		sess.close()
		return err
	}
	c.sess = sess

	if c.pingInterval > 0 {
		go sess.keepalive(c.pingInterval, c.pingTimeoutThreshold)
	}
	if c.roots != nil {
		go c.watchRoots(sess)
	}
	return nil
}

// initialize runs the three-step handshake: initialize request, version and
// capability exchange, initialized notification.
func (c *Client) initialize(ctx context.Context, sess *session) error {
	params := initializeParams{
		ProtocolVersion: protocolVersion,
		Capabilities:    c.capabilities,
		ClientInfo:      c.info,
	}

	var result initializeResult
	if err := sess.call(ctx, newRequestID(), methodInitialize, params, &result); err != nil {
		return fmt.Errorf("initialize failed: %w", err)
	}

	if result.ProtocolVersion != protocolVersion {
		return fmt.Errorf("unsupported protocol version: %s", result.ProtocolVersion)
	}

	sess.completeHandshake(result.ServerInfo, c.capabilities, result.Capabilities, result.Instructions)
	sess.markInitialized()

	if err := sess.sendNotification(ctx, methodNotificationsInitialized, nil); err != nil {
		return fmt.Errorf("failed to send initialized notification: %w", err)
	}
	return nil
}

func (c *Client) registerHandlers(sess *session) {
	sess.handle(methodPing, func(context.Context, JSONRPCMessage) (any, error) {
		return emptyResult{}, nil
	})

	if c.roots != nil {
		sess.handle(MethodRootsList, func(context.Context, JSONRPCMessage) (any, error) {
			return RootList{Roots: c.roots.Roots()}, nil
		})
	}

	if c.samplingHandler != nil {
		sess.handle(MethodSamplingCreateMessage, func(ctx context.Context, msg JSONRPCMessage) (any, error) {
			var params SamplingParams
			if err := json.Unmarshal(msg.Params, &params); err != nil {
				return nil, JSONRPCError{
					Code:    ErrCodeInvalidParams,
					Message: fmt.Sprintf("failed to unmarshal params: %v", err),
				}
			}
			return c.samplingHandler.CreateSampleMessage(ctx, params)
		})
	}

	if c.promptListWatcher != nil {
		sess.handleNotification(methodNotificationsPromptsListChanged, func(context.Context, JSONRPCMessage) {
			c.promptListWatcher.OnPromptListChanged()
		})
	}
	if c.resourceListWatcher != nil {
		sess.handleNotification(methodNotificationsResourcesListChanged, func(context.Context, JSONRPCMessage) {
			c.resourceListWatcher.OnResourceListChanged()
		})
	}
	if c.toolListWatcher != nil {
		sess.handleNotification(methodNotificationsToolsListChanged, func(context.Context, JSONRPCMessage) {
			c.toolListWatcher.OnToolListChanged()
		})
	}

	if c.resourceSubscribedWatcher != nil {
		sess.handleNotification(methodNotificationsResourcesUpdated, func(_ context.Context, msg JSONRPCMessage) {
			var params notificationsResourcesUpdatedParams
			if err := json.Unmarshal(msg.Params, &params); err != nil {
				c.logger.Error("failed to unmarshal resources updated params", slog.String("err", err.Error()))
				return
			}
			c.resourceSubscribedWatcher.OnResourceSubscribedChanged(params.URI)
		})
	}

	if c.progressListener != nil {
		sess.handleNotification(methodNotificationsProgress, func(_ context.Context, msg JSONRPCMessage) {
			var params ProgressParams
			if err := json.Unmarshal(msg.Params, &params); err != nil {
				c.logger.Error("failed to unmarshal progress params", slog.String("err", err.Error()))
				return
			}
			c.progressListener.OnProgress(params)
		})
	}

	if c.logReceiver != nil {
		sess.handleNotification(methodNotificationsMessage, func(_ context.Context, msg JSONRPCMessage) {
			var params LogParams
			if err := json.Unmarshal(msg.Params, &params); err != nil {
				c.logger.Error("failed to unmarshal log params", slog.String("err", err.Error()))
				return
			}
			c.logReceiver.OnLog(params)
		})
	}
}

// watchRoots forwards registry mutations to the server as list-changed
// notifications until the session ends.
func (c *Client) watchRoots(sess *session) {
	changes, cancel := c.roots.changes.subscribe()
	defer cancel()

	for {
		select {
		case <-sess.done:
			return
		case <-changes:
			err := sess.sendNotification(context.Background(), methodNotificationsRootsListChanged, nil)
			if err != nil {
				if errors.Is(err, ErrClosed) {
					return
				}
				c.logger.Error("failed to send roots list changed notification",
					slog.String("err", err.Error()))
			}
		}
	}
}

// ListPrompts retrieves one page of available prompts from the server.
func (c *Client) ListPrompts(ctx context.Context, params ListPromptsParams) (ListPromptResult, error) {
	if err := c.promptsCapability(); err != nil {
		return ListPromptResult{}, err
	}
	var result ListPromptResult
	if err := c.sess.call(ctx, newRequestID(), MethodPromptsList, params, &result); err != nil {
		return ListPromptResult{}, err
	}
	return result, nil
}

// GetPrompt renders the named prompt with the given arguments.
func (c *Client) GetPrompt(ctx context.Context, params GetPromptParams) (GetPromptResult, error) {
	if err := c.promptsCapability(); err != nil {
		return GetPromptResult{}, err
	}
	var result GetPromptResult
	if err := c.sess.call(ctx, newRequestID(), MethodPromptsGet, params, &result); err != nil {
		return GetPromptResult{}, err
	}
	return result, nil
}

// CompletesPrompt requests completion suggestions for a prompt argument.
func (c *Client) CompletesPrompt(ctx context.Context, params CompletesCompletionParams) (CompletionResult, error) {
	if err := c.promptsCapability(); err != nil {
		return CompletionResult{}, err
	}
	var result CompletionResult
	if err := c.sess.call(ctx, newRequestID(), MethodCompletionComplete, params, &result); err != nil {
		return CompletionResult{}, err
	}
	return result, nil
}

// ListResources retrieves one page of available resources from the server.
func (c *Client) ListResources(ctx context.Context, params ListResourcesParams) (ListResourcesResult, error) {
	if err := c.resourcesCapability(); err != nil {
		return ListResourcesResult{}, err
	}
	var result ListResourcesResult
	if err := c.sess.call(ctx, newRequestID(), MethodResourcesList, params, &result); err != nil {
		return ListResourcesResult{}, err
	}
	return result, nil
}

// ReadResource fetches the contents of the resource at the given URI.
func (c *Client) ReadResource(ctx context.Context, params ReadResourceParams) (ReadResourceResult, error) {
	if err := c.resourcesCapability(); err != nil {
		return ReadResourceResult{}, err
	}
	var result ReadResourceResult
	if err := c.sess.call(ctx, newRequestID(), MethodResourcesRead, params, &result); err != nil {
		return ReadResourceResult{}, err
	}
	return result, nil
}

// ListResourceTemplates retrieves the server's resource templates.
func (c *Client) ListResourceTemplates(ctx context.Context,
	params ListResourceTemplatesParams,
) (ListResourceTemplatesResult, error) {
	if err := c.resourcesCapability(); err != nil {
		return ListResourceTemplatesResult{}, err
	}
	var result ListResourceTemplatesResult
	if err := c.sess.call(ctx, newRequestID(), MethodResourcesTemplatesList, params, &result); err != nil {
		return ListResourceTemplatesResult{}, err
	}
	return result, nil
}

// CompletesResourceTemplate requests completion suggestions for a resource
// template argument.
func (c *Client) CompletesResourceTemplate(ctx context.Context,
	params CompletesCompletionParams,
) (CompletionResult, error) {
	if err := c.resourcesCapability(); err != nil {
		return CompletionResult{}, err
	}
	var result CompletionResult
	if err := c.sess.call(ctx, newRequestID(), MethodCompletionComplete, params, &result); err != nil {
		return CompletionResult{}, err
	}
	return result, nil
}

// SubscribeResource registers for update notifications of a resource.
func (c *Client) SubscribeResource(ctx context.Context, params SubscribeResourceParams) error {
	if err := c.subscribeCapability(); err != nil {
		return err
	}
	return c.sess.call(ctx, newRequestID(), MethodResourcesSubscribe, params, nil)
}

// UnsubscribeResource removes a resource update subscription.
func (c *Client) UnsubscribeResource(ctx context.Context, params UnsubscribeResourceParams) error {
	if err := c.subscribeCapability(); err != nil {
		return err
	}
	return c.sess.call(ctx, newRequestID(), MethodResourcesUnsubscribe, params, nil)
}

// ListTools retrieves one page of available tools from the server.
func (c *Client) ListTools(ctx context.Context, params ListToolsParams) (ListToolsResult, error) {
	if err := c.toolsCapability(); err != nil {
		return ListToolsResult{}, err
	}
	var result ListToolsResult
	if err := c.sess.call(ctx, newRequestID(), MethodToolsList, params, &result); err != nil {
		return ListToolsResult{}, err
	}
	return result, nil
}

// CallTool executes a tool on the server. A tool that failed internally
// reports through the result's IsError flag rather than an error return.
func (c *Client) CallTool(ctx context.Context, params CallToolParams) (CallToolResult, error) {
	if err := c.toolsCapability(); err != nil {
		return CallToolResult{}, err
	}
	var result CallToolResult
	if err := c.sess.call(ctx, newRequestID(), MethodToolsCall, params, &result); err != nil {
		return CallToolResult{}, err
	}
	return result, nil
}

// SetLogLevel adjusts the minimum severity of log messages the server sends.
func (c *Client) SetLogLevel(ctx context.Context, level LogLevel) error {
	if err := c.loggingCapability(); err != nil {
		return err
	}
	return c.sess.call(ctx, newRequestID(), MethodLoggingSetLevel, SetLogLevelParams{Level: level}, nil)
}

// Ping performs one round-trip health check against the server.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.ensureConnected(); err != nil {
		return err
	}
	return c.sess.ping(ctx)
}

// SendRequest issues an arbitrary request and decodes the result, for methods
// without a typed wrapper. It blocks until the response arrives; cancelling
// the context abandons the request and tells the server to stop working on
// it.
func (c *Client) SendRequest(ctx context.Context, method string, params, result any) error {
	if err := c.ensureConnected(); err != nil {
		return err
	}
	return c.sess.call(ctx, newRequestID(), method, params, result)
}

// SendRequestAsync issues a request without waiting. The returned handle
// completes when the response arrives, the request deadline passes, or the
// session closes.
func (c *Client) SendRequestAsync(ctx context.Context, method string, params any) (*PendingRequest, error) {
	if err := c.ensureConnected(); err != nil {
		return nil, err
	}
	return c.sess.sendRequest(ctx, newRequestID(), method, params)
}

// SendNotification emits an arbitrary notification, for methods without a
// typed wrapper.
func (c *Client) SendNotification(ctx context.Context, method string, params any) error {
	if err := c.ensureConnected(); err != nil {
		return err
	}
	return c.sess.sendNotification(ctx, method, params)
}

// ServerInfo returns the server's implementation info from the handshake.
func (c *Client) ServerInfo() Info {
	if c.sess == nil {
		return Info{}
	}
	return c.sess.peer()
}

// ServerCapabilities returns the capabilities the server declared during the
// handshake.
func (c *Client) ServerCapabilities() ServerCapabilities {
	if c.sess == nil {
		return ServerCapabilities{}
	}
	return c.sess.serverCapabilities()
}

// Instructions returns the usage hints the server provided during the
// handshake, if any.
func (c *Client) Instructions() string {
	if c.sess == nil {
		return ""
	}
	return c.sess.serverInstructions()
}

// Close terminates the connection immediately. In-flight requests fail with
// ErrClosed.
func (c *Client) Close() {
	if c.sess == nil {
		return
	}
	c.sess.close()
}

// Shutdown waits for in-flight requests to complete before closing, giving
// up when the context is done. Either way the session is closed when it
// returns.
func (c *Client) Shutdown(ctx context.Context) error {
	if c.sess == nil {
		return nil
	}
	err := c.sess.corr.awaitIdle(ctx)
	c.sess.close()
	return err
}

func (c *Client) ensureConnected() error {
	if c.sess == nil {
		return errNotConnected
	}
	return nil
}

func (c *Client) promptsCapability() error {
	if err := c.ensureConnected(); err != nil {
		return err
	}
	if c.sess.serverCapabilities().Prompts == nil {
		return &CapabilityError{Capability: "prompts", Message: "prompts not supported by server"}
	}
	return nil
}

func (c *Client) resourcesCapability() error {
	if err := c.ensureConnected(); err != nil {
		return err
	}
	if c.sess.serverCapabilities().Resources == nil {
		return &CapabilityError{Capability: "resources", Message: "resources not supported by server"}
	}
	return nil
}

func (c *Client) subscribeCapability() error {
	if err := c.resourcesCapability(); err != nil {
		return err
	}
	if !c.sess.serverCapabilities().Resources.Subscribe {
		return &CapabilityError{
			Capability: "resources.subscribe",
			Message:    "resource subscription not supported by server",
		}
	}
	return nil
}

func (c *Client) toolsCapability() error {
	if err := c.ensureConnected(); err != nil {
		return err
	}
	if c.sess.serverCapabilities().Tools == nil {
		return &CapabilityError{Capability: "tools", Message: "tools not supported by server"}
	}
	return nil
}

func (c *Client) loggingCapability() error {
	if err := c.ensureConnected(); err != nil {
		return err
	}
	if c.sess.serverCapabilities().Logging == nil {
		return &CapabilityError{Capability: "logging", Message: "logging not supported by server"}
	}
	return nil
}
