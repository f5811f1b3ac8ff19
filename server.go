package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"sync"
	"time"
)

// ServerOption is a function that configures a server.
type ServerOption func(*Server)

// Server implements a Model Context Protocol (MCP) server that exposes
// prompts, resources, and tools to connecting clients. It accepts channels
// from a ServerTransport, runs one session per client, and broadcasts
// list-changed, resource-updated, and log notifications to every initialized
// session.
//
// Server capabilities are derived from the configured providers: a prompt
// server declares prompts, a resource server declares resources, a tool
// registry declares tools, and a log handler declares logging. Clients are
// rejected during the handshake when they lack a capability the server was
// configured to require.
type Server struct {
	info         Info
	instructions string
	capabilities ServerCapabilities
	transport    ServerTransport
	codec        Codec

	requireRootsListClient bool
	requireSamplingClient  bool

	tools *ToolRegistry

	promptServer      PromptServer
	promptListUpdater PromptListUpdater

	resourceServer              ResourceServer
	resourceListUpdater         ResourceListUpdater
	resourceSubscriptionHandler ResourceSubscriptionHandler

	logHandler LogHandler

	rootsChangeHandlers []RootsChangeHandler

	writeTimeout         time.Duration
	requestTimeout       time.Duration
	pingInterval         time.Duration
	pingTimeoutThreshold int

	onClientConnected    func(id string, info Info)
	onClientDisconnected func(id string)

	logger *slog.Logger

	sessions        chan *ServerSession
	removedSessions chan string
	broadcasts      chan broadcast

	done        chan struct{}
	sessionsWg  sync.WaitGroup
	listenersWg sync.WaitGroup
}

// broadcast is one notification fanned out to connected sessions. A nil
// filter reaches every initialized session.
type broadcast struct {
	msg    JSONRPCMessage
	filter func(ss *ServerSession) bool
}

// ServerSession is the server-side view of one connected client, handed to
// every provider and tool handler. It carries the client's identity and
// capabilities and is the doorway for server-to-client traffic: sampling,
// roots listing, pings, progress, and log messages.
type ServerSession struct {
	sess   *session
	server *Server

	mu            sync.Mutex
	subscriptions map[string]struct{}
}

// WithToolRegistry exposes the registry's tools to clients and declares the
// tools capability. Registry mutations broadcast a tool list-changed
// notification.
func WithToolRegistry(registry *ToolRegistry) ServerOption {
	return func(s *Server) {
		s.tools = registry
	}
}

// WithPromptServer registers the prompt provider and declares the prompts
// capability.
func WithPromptServer(srv PromptServer) ServerOption {
	return func(s *Server) {
		s.promptServer = srv
	}
}

// WithPromptListUpdater broadcasts a prompt list-changed notification on each
// emission of the updater's iterator.
func WithPromptListUpdater(updater PromptListUpdater) ServerOption {
	return func(s *Server) {
		s.promptListUpdater = updater
	}
}

// WithResourceServer registers the resource provider and declares the
// resources capability.
func WithResourceServer(srv ResourceServer) ServerOption {
	return func(s *Server) {
		s.resourceServer = srv
	}
}

// WithResourceListUpdater broadcasts a resource list-changed notification on
// each emission of the updater's iterator.
func WithResourceListUpdater(updater ResourceListUpdater) ServerOption {
	return func(s *Server) {
		s.resourceListUpdater = updater
	}
}

// WithResourceSubscriptionHandler enables resource update subscriptions.
// Each URI emitted by the handler's iterator is sent as a resource-updated
// notification to the sessions subscribed to that URI.
func WithResourceSubscriptionHandler(handler ResourceSubscriptionHandler) ServerOption {
	return func(s *Server) {
		s.resourceSubscriptionHandler = handler
	}
}

// WithLogHandler streams the handler's log messages to connected clients and
// declares the logging capability.
func WithLogHandler(handler LogHandler) ServerOption {
	return func(s *Server) {
		s.logHandler = handler
	}
}

// WithRootsChangeHandler registers a handler invoked with the client's full
// roots list whenever the client announces a change. Handlers run in
// registration order.
func WithRootsChangeHandler(handler RootsChangeHandler) ServerOption {
	return func(s *Server) {
		s.rootsChangeHandlers = append(s.rootsChangeHandlers, handler)
	}
}

// WithRequireRootsListClient rejects clients that do not declare the roots
// capability during initialization.
func WithRequireRootsListClient() ServerOption {
	return func(s *Server) {
		s.requireRootsListClient = true
	}
}

// WithRequireSamplingClient rejects clients that do not declare the sampling
// capability during initialization.
func WithRequireSamplingClient() ServerOption {
	return func(s *Server) {
		s.requireSamplingClient = true
	}
}

// WithInstructions sends usage hints to clients during initialization,
// typically surfaced to the language model.
func WithInstructions(instructions string) ServerOption {
	return func(s *Server) {
		s.instructions = instructions
	}
}

// WithServerOnClientConnected sets a callback fired when a client completes
// initialization.
func WithServerOnClientConnected(fn func(id string, info Info)) ServerOption {
	return func(s *Server) {
		s.onClientConnected = fn
	}
}

// WithServerOnClientDisconnected sets a callback fired when a client's
// session ends.
func WithServerOnClientDisconnected(fn func(id string)) ServerOption {
	return func(s *Server) {
		s.onClientDisconnected = fn
	}
}

// WithServerCodec overrides the wire codec. The default encodes messages as
// JSON objects.
func WithServerCodec(codec Codec) ServerOption {
	return func(s *Server) {
		s.codec = codec
	}
}

// WithServerWriteTimeout sets the timeout for writing a single message to a
// session.
func WithServerWriteTimeout(timeout time.Duration) ServerOption {
	return func(s *Server) {
		s.writeTimeout = timeout
	}
}

// WithServerRequestTimeout sets the deadline for receiving a response to a
// server-issued request.
func WithServerRequestTimeout(timeout time.Duration) ServerOption {
	return func(s *Server) {
		s.requestTimeout = timeout
	}
}

// WithServerPingInterval sets the interval of the per-session keepalive ping.
// Zero disables the keepalive.
func WithServerPingInterval(interval time.Duration) ServerOption {
	return func(s *Server) {
		s.pingInterval = interval
	}
}

// WithServerPingTimeoutThreshold sets how many consecutive ping failures are
// tolerated before the server closes a session.
func WithServerPingTimeoutThreshold(threshold int) ServerOption {
	return func(s *Server) {
		s.pingTimeoutThreshold = threshold
	}
}

// WithServerLogger sets the logger for server operations.
func WithServerLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a server with the given implementation info and
// transport. Call Serve to start accepting clients.
func NewServer(info Info, transport ServerTransport, options ...ServerOption) *Server {
	s := &Server{
		info:                 info,
		transport:            transport,
		codec:                JSONCodec{},
		writeTimeout:         defaultWriteTimeout,
		requestTimeout:       defaultRequestTimeout,
		pingInterval:         defaultPingInterval,
		pingTimeoutThreshold: defaultPingTimeoutThreshold,
		logger:               slog.Default(),
		sessions:             make(chan *ServerSession),
		removedSessions:      make(chan string),
		broadcasts:           make(chan broadcast),
		done:                 make(chan struct{}),
	}
	for _, opt := range options {
		opt(s)
	}
	s.logger = s.logger.With(slog.String("package", "mcp"), slog.String("component", "server"))

	if s.promptServer != nil {
		s.capabilities.Prompts = &PromptsCapability{
			ListChanged: s.promptListUpdater != nil,
		}
	}
	if s.resourceServer != nil {
		s.capabilities.Resources = &ResourcesCapability{
			Subscribe:   s.resourceSubscriptionHandler != nil,
			ListChanged: s.resourceListUpdater != nil,
		}
	}
	if s.tools != nil {
		s.capabilities.Tools = &ToolsCapability{ListChanged: true}
	}
	if s.logHandler != nil {
		s.capabilities.Logging = &LogCapability{}
	}
	return s
}

// Serve accepts client channels from the transport until Shutdown is called.
// It blocks, so it is usually run on its own goroutine.
func (s *Server) Serve() {
	go s.broadcastLoop()
	s.startListeners()

	for channel := range s.transport.Channels() {
		s.sessionsWg.Add(1)
		go s.serveChannel(channel)
	}
}

// Shutdown closes every session, shuts the transport down, and waits for the
// update listeners to finish. Update listeners ranging application iterators
// only finish when those iterators end, so applications should stop their
// updaters when shutting down.
func (s *Server) Shutdown(ctx context.Context) error {
	close(s.done)
	s.sessionsWg.Wait()

	if err := s.transport.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown transport: %w", err)
	}

	listenersDone := make(chan struct{})
	go func() {
		s.listenersWg.Wait()
		close(listenersDone)
	}()
	select {
	case <-listenersDone:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("failed to stop update listeners: %w", ctx.Err())
	}
}

func (s *Server) startListeners() {
	if s.tools != nil {
		s.listenersWg.Add(1)
		go func() {
			defer s.listenersWg.Done()
			s.listenToolChanges()
		}()
	}
	if s.promptListUpdater != nil {
		s.listenersWg.Add(1)
		go func() {
			defer s.listenersWg.Done()
			s.listenUpdates(methodNotificationsPromptsListChanged, s.promptListUpdater.PromptListUpdates())
		}()
	}
	if s.resourceListUpdater != nil {
		s.listenersWg.Add(1)
		go func() {
			defer s.listenersWg.Done()
			s.listenUpdates(methodNotificationsResourcesListChanged, s.resourceListUpdater.ResourceListUpdates())
		}()
	}
	if s.resourceSubscriptionHandler != nil {
		s.listenersWg.Add(1)
		go func() {
			defer s.listenersWg.Done()
			s.listenSubscribedResources()
		}()
	}
	if s.logHandler != nil {
		s.listenersWg.Add(1)
		go func() {
			defer s.listenersWg.Done()
			s.listenLogs()
		}()
	}
}

// listenToolChanges turns registry mutations into tool list-changed
// broadcasts.
func (s *Server) listenToolChanges() {
	changes, cancel := s.tools.changes.subscribe()
	defer cancel()

	for {
		select {
		case <-s.done:
			return
		case <-changes:
			s.enqueueBroadcast(methodNotificationsToolsListChanged, nil, nil)
		}
	}
}

// listenUpdates turns each emission of an application updater into a
// list-changed broadcast.
func (s *Server) listenUpdates(method string, updates iter.Seq[struct{}]) {
	for range updates {
		select {
		case <-s.done:
			return
		default:
		}
		s.enqueueBroadcast(method, nil, nil)
	}
}

// listenSubscribedResources turns each changed URI into a resource-updated
// notification for the sessions subscribed to it.
func (s *Server) listenSubscribedResources() {
	for uri := range s.resourceSubscriptionHandler.SubscribedResourceUpdates() {
		select {
		case <-s.done:
			return
		default:
		}
		params := notificationsResourcesUpdatedParams{URI: uri}
		s.enqueueBroadcast(methodNotificationsResourcesUpdated, params, func(ss *ServerSession) bool {
			return ss.subscribedTo(uri)
		})
	}
}

// listenLogs streams the log handler's messages to connected clients.
func (s *Server) listenLogs() {
	for params := range s.logHandler.LogStreams() {
		select {
		case <-s.done:
			return
		default:
		}
		s.enqueueBroadcast(methodNotificationsMessage, params, nil)
	}
}

func (s *Server) enqueueBroadcast(method string, params any, filter func(ss *ServerSession) bool) {
	var paramsBs json.RawMessage
	if params != nil {
		var err error
		paramsBs, err = json.Marshal(params)
		if err != nil {
			s.logger.Error("failed to marshal broadcast params",
				slog.String("method", method),
				slog.String("err", err.Error()))
			return
		}
	}

	msg := JSONRPCMessage{
		JSONRPC: JSONRPCVersion,
		Method:  method,
		Params:  paramsBs,
	}
	select {
	case s.broadcasts <- broadcast{msg: msg, filter: filter}:
	case <-s.done:
	}
}

// broadcastLoop owns the session table. Sends are best effort: a failing
// session is logged and skipped, never letting one client block the others
// beyond the write timeout.
func (s *Server) broadcastLoop() {
	sessions := make(map[string]*ServerSession)

	for {
		select {
		case <-s.done:
			return
		case ss := <-s.sessions:
			sessions[ss.ID()] = ss
		case id := <-s.removedSessions:
			delete(sessions, id)
		case b := <-s.broadcasts:
			for _, ss := range sessions {
				if !ss.sess.isInitialized() {
					continue
				}
				if b.filter != nil && !b.filter(ss) {
					continue
				}
				if err := ss.sess.send(context.Background(), b.msg); err != nil {
					if errors.Is(err, ErrClosed) {
						continue
					}
					s.logger.Error("failed to broadcast message",
						slog.String("method", b.msg.Method),
						slog.String("sessionID", ss.ID()),
						slog.String("err", err.Error()))
				}
			}
		}
	}
}

// serveChannel runs one client session from handshake to disconnect.
func (s *Server) serveChannel(channel Channel) {
	defer s.sessionsWg.Done()

	var ss *ServerSession
	sess := newSession(sessionConfig{
		channel:          channel,
		codec:            s.codec,
		logger:           s.logger,
		writeTimeout:     s.writeTimeout,
		requestTimeout:   s.requestTimeout,
		enforceInitOrder: true,
		onInitialized: func() {
			if s.onClientConnected != nil {
				s.onClientConnected(ss.ID(), ss.ClientInfo())
			}
			if s.pingInterval > 0 {
				go ss.sess.keepalive(s.pingInterval, s.pingTimeoutThreshold)
			}
		},
	})
	ss = &ServerSession{
		sess:          sess,
		server:        s,
		subscriptions: make(map[string]struct{}),
	}
	s.registerHandlers(ss)

	select {
	case s.sessions <- ss:
	case <-s.done:
		sess.close()
		return
	}

	go func() {
		select {
		case <-s.done:
			sess.close()
		case <-sess.done:
		}
	}()

	sess.run()

	if s.onClientDisconnected != nil {
		s.onClientDisconnected(sess.id())
	}
	select {
	case s.removedSessions <- sess.id():
	case <-s.done:
	}
}

// registerHandlers populates the session's dispatch tables. Routes exist only
// for the configured providers, so calls against missing capabilities fail
// with method-not-found.
func (s *Server) registerHandlers(ss *ServerSession) {
	sess := ss.sess

	sess.handle(methodInitialize, func(_ context.Context, msg JSONRPCMessage) (any, error) {
		return s.handleInitialize(ss, msg)
	})
	sess.handle(methodPing, func(context.Context, JSONRPCMessage) (any, error) {
		return emptyResult{}, nil
	})

	if s.tools != nil {
		sess.handle(MethodToolsList, func(_ context.Context, msg JSONRPCMessage) (any, error) {
			var params ListToolsParams
			if err := json.Unmarshal(msg.Params, &params); err != nil {
				return nil, paramsError(err)
			}
			return ListToolsResult{Tools: s.tools.Tools()}, nil
		})
		sess.handle(MethodToolsCall, func(ctx context.Context, msg JSONRPCMessage) (any, error) {
			var params CallToolParams
			if err := json.Unmarshal(msg.Params, &params); err != nil {
				return nil, paramsError(err)
			}
			result, err := s.tools.call(ctx, ss, params)
			if err != nil {
				jsonErr := JSONRPCError{}
				if errors.As(err, &jsonErr) {
					return nil, jsonErr
				}
				return CallToolResult{
					Content: []Content{{Type: ContentTypeText, Text: err.Error()}},
					IsError: true,
				}, nil
			}
			return result, nil
		})
	}

	if s.promptServer != nil {
		sess.handle(MethodPromptsList, func(ctx context.Context, msg JSONRPCMessage) (any, error) {
			var params ListPromptsParams
			if err := json.Unmarshal(msg.Params, &params); err != nil {
				return nil, paramsError(err)
			}
			return s.promptServer.ListPrompts(ctx, ss, params)
		})
		sess.handle(MethodPromptsGet, func(ctx context.Context, msg JSONRPCMessage) (any, error) {
			var params GetPromptParams
			if err := json.Unmarshal(msg.Params, &params); err != nil {
				return nil, paramsError(err)
			}
			return s.promptServer.GetPrompt(ctx, ss, params)
		})
	}

	if s.resourceServer != nil {
		sess.handle(MethodResourcesList, func(ctx context.Context, msg JSONRPCMessage) (any, error) {
			var params ListResourcesParams
			if err := json.Unmarshal(msg.Params, &params); err != nil {
				return nil, paramsError(err)
			}
			return s.resourceServer.ListResources(ctx, ss, params)
		})
		sess.handle(MethodResourcesRead, func(ctx context.Context, msg JSONRPCMessage) (any, error) {
			var params ReadResourceParams
			if err := json.Unmarshal(msg.Params, &params); err != nil {
				return nil, paramsError(err)
			}
			return s.resourceServer.ReadResource(ctx, ss, params)
		})
		sess.handle(MethodResourcesTemplatesList, func(ctx context.Context, msg JSONRPCMessage) (any, error) {
			var params ListResourceTemplatesParams
			if err := json.Unmarshal(msg.Params, &params); err != nil {
				return nil, paramsError(err)
			}
			return s.resourceServer.ListResourceTemplates(ctx, ss, params)
		})
	}

	if s.resourceSubscriptionHandler != nil {
		sess.handle(MethodResourcesSubscribe, func(_ context.Context, msg JSONRPCMessage) (any, error) {
			var params SubscribeResourceParams
			if err := json.Unmarshal(msg.Params, &params); err != nil {
				return nil, paramsError(err)
			}
			s.resourceSubscriptionHandler.SubscribeResource(params)
			ss.subscribe(params.URI)
			return emptyResult{}, nil
		})
		sess.handle(MethodResourcesUnsubscribe, func(_ context.Context, msg JSONRPCMessage) (any, error) {
			var params UnsubscribeResourceParams
			if err := json.Unmarshal(msg.Params, &params); err != nil {
				return nil, paramsError(err)
			}
			s.resourceSubscriptionHandler.UnsubscribeResource(params)
			ss.unsubscribe(params.URI)
			return emptyResult{}, nil
		})
	}

	if s.promptServer != nil || s.resourceServer != nil {
		sess.handle(MethodCompletionComplete, func(ctx context.Context, msg JSONRPCMessage) (any, error) {
			var params CompletesCompletionParams
			if err := json.Unmarshal(msg.Params, &params); err != nil {
				return nil, paramsError(err)
			}
			switch params.Ref.Type {
			case CompletionRefPrompt:
				if s.promptServer == nil {
					return nil, JSONRPCError{
						Code:    ErrCodeMethodNotFound,
						Message: "prompts not supported",
					}
				}
				return s.promptServer.CompletesPrompt(ctx, ss, params)
			case CompletionRefResource:
				if s.resourceServer == nil {
					return nil, JSONRPCError{
						Code:    ErrCodeMethodNotFound,
						Message: "resources not supported",
					}
				}
				return s.resourceServer.CompletesResourceTemplate(ctx, ss, params)
			default:
				return nil, JSONRPCError{
					Code:    ErrCodeInvalidParams,
					Message: fmt.Sprintf("unknown completion ref type: %s", params.Ref.Type),
				}
			}
		})
	}

	if s.logHandler != nil {
		sess.handle(MethodLoggingSetLevel, func(_ context.Context, msg JSONRPCMessage) (any, error) {
			var params SetLogLevelParams
			if err := json.Unmarshal(msg.Params, &params); err != nil {
				return nil, paramsError(err)
			}
			s.logHandler.SetLogLevel(params.Level)
			return emptyResult{}, nil
		})
	}

	sess.handleNotification(methodNotificationsRootsListChanged, func(context.Context, JSONRPCMessage) {
		if len(s.rootsChangeHandlers) == 0 {
			return
		}
		go s.fanOutRootsChange(ss)
	})
}

// handleInitialize validates the handshake: protocol version first, required
// client capabilities second. The session stays unusable until the client
// follows up with the initialized notification.
func (s *Server) handleInitialize(ss *ServerSession, msg JSONRPCMessage) (any, error) {
	var params initializeParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return nil, paramsError(err)
	}

	if params.ProtocolVersion != protocolVersion {
		return nil, JSONRPCError{
			Code:    ErrCodeInvalidParams,
			Message: fmt.Sprintf("unsupported protocol version: %s", params.ProtocolVersion),
			Data: map[string]any{
				"supported": []string{protocolVersion},
				"requested": params.ProtocolVersion,
			},
		}
	}

	if s.requireRootsListClient && params.Capabilities.Roots == nil {
		return nil, JSONRPCError{
			Code:    ErrCodeInvalidParams,
			Message: "insufficient client capabilities: roots is required",
		}
	}
	if s.requireSamplingClient && params.Capabilities.Sampling == nil {
		return nil, JSONRPCError{
			Code:    ErrCodeInvalidParams,
			Message: "insufficient client capabilities: sampling is required",
		}
	}

	if !ss.sess.completeHandshake(params.ClientInfo, params.Capabilities, s.capabilities, s.instructions) {
		return nil, JSONRPCError{
			Code:    ErrCodeInvalidRequest,
			Message: "initialize already received",
		}
	}

	return initializeResult{
		ProtocolVersion: protocolVersion,
		Capabilities:    s.capabilities,
		ServerInfo:      s.info,
		Instructions:    s.instructions,
	}, nil
}

// fanOutRootsChange fetches the client's full roots list once and hands it to
// every registered handler in order. A failing handler is logged and skipped.
func (s *Server) fanOutRootsChange(ss *ServerSession) {
	ctx, cancel := context.WithTimeout(ss.sess.baseCtx, s.requestTimeout)
	defer cancel()

	list, err := ss.ListRoots(ctx)
	if err != nil {
		s.logger.Error("failed to list roots after change notification",
			slog.String("sessionID", ss.ID()),
			slog.String("err", err.Error()))
		return
	}

	for _, handler := range s.rootsChangeHandlers {
		if err := handler(ctx, ss, list.Roots); err != nil {
			s.logger.Error("roots change handler failed",
				slog.String("sessionID", ss.ID()),
				slog.String("err", err.Error()))
		}
	}
}

func paramsError(err error) JSONRPCError {
	return JSONRPCError{
		Code:    ErrCodeInvalidParams,
		Message: fmt.Sprintf("failed to unmarshal params: %v", err),
	}
}

// ID returns the session's unique identifier.
func (s *ServerSession) ID() string {
	return s.sess.id()
}

// ClientInfo returns the client's implementation info from the handshake.
func (s *ServerSession) ClientInfo() Info {
	return s.sess.peer()
}

// ClientCapabilities returns the capabilities the client declared during the
// handshake.
func (s *ServerSession) ClientCapabilities() ClientCapabilities {
	return s.sess.clientCapabilities()
}

// Ping performs one round-trip health check against the client.
func (s *ServerSession) Ping(ctx context.Context) error {
	return s.sess.ping(ctx)
}

// CreateSampleMessage asks the client to sample a message from its language
// model. It fails with a CapabilityError before anything is sent when the
// client did not declare the sampling capability.
func (s *ServerSession) CreateSampleMessage(ctx context.Context, params SamplingParams) (SamplingResult, error) {
	if s.sess.clientCapabilities().Sampling == nil {
		return SamplingResult{}, errSamplingNotSupported
	}

	var result SamplingResult
	if err := s.sess.call(ctx, newRequestID(), MethodSamplingCreateMessage, params, &result); err != nil {
		return SamplingResult{}, err
	}
	return result, nil
}

// ListRoots fetches the client's current roots list. It fails with a
// CapabilityError before anything is sent when the client did not declare the
// roots capability.
func (s *ServerSession) ListRoots(ctx context.Context) (RootList, error) {
	if s.sess.clientCapabilities().Roots == nil {
		return RootList{}, errRootsNotSupported
	}

	var result RootList
	if err := s.sess.call(ctx, newRequestID(), MethodRootsList, nil, &result); err != nil {
		return RootList{}, err
	}
	return result, nil
}

// Log sends a log message notification to this client only. Broadcasting to
// every client goes through the server's LogHandler instead.
func (s *ServerSession) Log(ctx context.Context, params LogParams) error {
	return s.sess.sendNotification(ctx, methodNotificationsMessage, params)
}

// ReportProgress sends a progress notification for a long-running request.
// The progress token comes from the originating request's metadata.
func (s *ServerSession) ReportProgress(ctx context.Context, params ProgressParams) error {
	return s.sess.sendNotification(ctx, methodNotificationsProgress, params)
}

// SendRequest issues an arbitrary request to the client and decodes the
// result, for methods without a typed wrapper.
func (s *ServerSession) SendRequest(ctx context.Context, method string, params, result any) error {
	return s.sess.call(ctx, newRequestID(), method, params, result)
}

// SendRequestAsync issues a request to the client without waiting. The
// returned handle completes when the response arrives, the request deadline
// passes, or the session closes.
func (s *ServerSession) SendRequestAsync(ctx context.Context, method string, params any) (*PendingRequest, error) {
	return s.sess.sendRequest(ctx, newRequestID(), method, params)
}

// SendNotification emits an arbitrary notification to the client.
func (s *ServerSession) SendNotification(ctx context.Context, method string, params any) error {
	return s.sess.sendNotification(ctx, method, params)
}

func (s *ServerSession) subscribe(uri string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscriptions[uri] = struct{}{}
}

func (s *ServerSession) unsubscribe(uri string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subscriptions, uri)
}

func (s *ServerSession) subscribedTo(uri string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.subscriptions[uri]
	return ok
}
