package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// newRequestID mints a fresh request ID. Every outgoing request gets its own,
// including requests issued from inside the handler of another request, so
// responses can never collide in the correlator.
func newRequestID() MustString {
	return MustString(uuid.New().String())
}

// requestHandler produces the result of one inbound request. A returned
// JSONRPCError is sent back verbatim; any other error becomes an internal
// error response.
type requestHandler func(ctx context.Context, msg JSONRPCMessage) (any, error)

// notificationHandler consumes one inbound notification. Handlers run on the
// read loop, so anything slow must move itself onto a goroutine.
type notificationHandler func(ctx context.Context, msg JSONRPCMessage)

type emptyResult struct{}

// session is the per-connection engine shared by Client and Server. It pumps
// payloads out of a Channel, translates them through a Codec, and routes each
// message by shape: responses into the correlator, requests and notifications
// into the dispatch tables.
//
// Dispatch tables are populated before run starts and are read-only
// afterwards.
type session struct {
	channel Channel
	codec   Codec
	logger  *slog.Logger

	writeTimeout   time.Duration
	requestTimeout time.Duration

	// enforceInitOrder rejects and fatally closes on any request other than
	// initialize arriving before the initialized notification. Only the
	// server side of a connection sets it.
	enforceInitOrder bool
	onInitialized    func()

	corr *correlator

	requests      map[string]requestHandler
	notifications map[string]notificationHandler

	baseCtx    context.Context
	baseCancel context.CancelFunc

	mu            sync.Mutex
	handshakeDone bool
	initialized   bool
	peerInfo      Info
	clientCaps    ClientCapabilities
	serverCaps    ServerCapabilities
	instructions  string

	inflightMu sync.Mutex
	inflight   map[MustString]context.CancelFunc

	closeOnce sync.Once
	done      chan struct{}
	onClose   func()
}

type sessionConfig struct {
	channel Channel
	codec   Codec
	logger  *slog.Logger

	writeTimeout   time.Duration
	requestTimeout time.Duration

	enforceInitOrder bool
	onInitialized    func()
	onClose          func()
}

func newSession(cfg sessionConfig) *session {
	logger := cfg.logger.With(slog.String("sessionID", cfg.channel.ID()))
	ctx, cancel := context.WithCancel(context.Background())

	return &session{
		channel:          cfg.channel,
		codec:            cfg.codec,
		logger:           logger,
		writeTimeout:     cfg.writeTimeout,
		requestTimeout:   cfg.requestTimeout,
		enforceInitOrder: cfg.enforceInitOrder,
		onInitialized:    cfg.onInitialized,
		corr:             newCorrelator(logger),
		requests:         make(map[string]requestHandler),
		notifications:    make(map[string]notificationHandler),
		baseCtx:          ctx,
		baseCancel:       cancel,
		inflight:         make(map[MustString]context.CancelFunc),
		done:             make(chan struct{}),
		onClose:          cfg.onClose,
	}
}

func (s *session) id() string {
	return s.channel.ID()
}

// handle registers the handler for an inbound request method. Registration is
// only valid before run starts.
func (s *session) handle(method string, h requestHandler) {
	s.requests[method] = h
}

// handleNotification registers the handler for an inbound notification
// method. Registration is only valid before run starts.
func (s *session) handleNotification(method string, h notificationHandler) {
	s.notifications[method] = h
}

// run pumps the channel until it ends or a malformed payload arrives. It
// closes the session on the way out, so a peer disconnect tears down
// everything that waits on it.
func (s *session) run() {
	for payload := range s.channel.Receive() {
		msg, err := s.codec.Decode(payload)
		if err != nil {
			s.logger.Error("received malformed message, closing session",
				slog.String("err", err.Error()))
			s.close()
			return
		}
		s.dispatch(msg)
	}
	s.close()
}

func (s *session) dispatch(msg JSONRPCMessage) {
	switch msg.Kind() {
	case MessageKindResponse:
		if !s.corr.deliver(msg) {
			s.logger.Warn("discarding response with no matching request",
				slog.String("requestID", string(msg.ID)))
		}
	case MessageKindRequest:
		s.dispatchRequest(msg)
	case MessageKindNotification:
		s.dispatchNotification(msg)
	}
}

// dispatchRequest routes a request to its handler on a fresh goroutine, so a
// slow handler never stalls the read loop. The handler context is cancelled
// by a matching cancellation notification and by session close.
func (s *session) dispatchRequest(msg JSONRPCMessage) {
	if s.enforceInitOrder {
		if msg.Method != methodInitialize && !s.isInitialized() {
			s.replyError(msg.ID, JSONRPCError{
				Code:    ErrCodeInvalidRequest,
				Message: fmt.Sprintf("received request %s before session is initialized", msg.Method),
			})
			s.close()
			return
		}
		if msg.Method == methodInitialize && s.isHandshakeDone() {
			s.replyError(msg.ID, JSONRPCError{
				Code:    ErrCodeInvalidRequest,
				Message: "initialize already received",
			})
			s.close()
			return
		}
	}

	h, ok := s.requests[msg.Method]
	if !ok {
		s.replyError(msg.ID, JSONRPCError{
			Code:    ErrCodeMethodNotFound,
			Message: fmt.Sprintf("method not found: %s", msg.Method),
		})
		return
	}

	ctx, cancel := context.WithCancel(s.baseCtx)
	s.inflightMu.Lock()
	s.inflight[msg.ID] = cancel
	s.inflightMu.Unlock()

	go func() {
		defer func() {
			s.inflightMu.Lock()
			delete(s.inflight, msg.ID)
			s.inflightMu.Unlock()
			cancel()
		}()

		result, err := h(ctx, msg)
		if ctx.Err() != nil {
			s.logger.Debug("dropping response for cancelled request",
				slog.String("requestID", string(msg.ID)),
				slog.String("method", msg.Method))
			return
		}
		if err != nil {
			jsonErr := JSONRPCError{}
			if !errors.As(err, &jsonErr) {
				jsonErr = JSONRPCError{
					Code:    ErrCodeInternal,
					Message: err.Error(),
				}
			}
			s.replyError(msg.ID, jsonErr)
			return
		}
		s.replyResult(msg.ID, result)
	}()
}

// dispatchNotification runs a notification handler synchronously on the read
// loop, which keeps the ordering guarantees of the initialized and cancelled
// notifications intact.
func (s *session) dispatchNotification(msg JSONRPCMessage) {
	switch msg.Method {
	case methodNotificationsInitialized:
		s.markInitialized()
		return
	case methodNotificationsCancelled:
		s.cancelInbound(msg)
		return
	}

	h, ok := s.notifications[msg.Method]
	if !ok {
		s.logger.Debug("ignoring unknown notification", slog.String("method", msg.Method))
		return
	}
	h(s.baseCtx, msg)
}

func (s *session) cancelInbound(msg JSONRPCMessage) {
	var params notificationsCancelledParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		s.logger.Error("failed to unmarshal cancelled notification params",
			slog.String("err", err.Error()))
		return
	}

	s.inflightMu.Lock()
	cancel, ok := s.inflight[MustString(params.RequestID)]
	s.inflightMu.Unlock()
	if !ok {
		return
	}
	s.logger.Debug("cancelling in-flight request",
		slog.String("requestID", params.RequestID),
		slog.String("reason", params.Reason))
	cancel()
}

// send encodes a message and writes it to the channel within the write
// timeout.
func (s *session) send(ctx context.Context, msg JSONRPCMessage) error {
	select {
	case <-s.done:
		return ErrClosed
	default:
	}

	payload, err := s.codec.Encode(msg)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	wCtx, cancel := context.WithTimeout(ctx, s.writeTimeout)
	defer cancel()
	return s.channel.Send(wCtx, payload)
}

// sendRequest registers a pending entry and writes the request. The returned
// handle completes when the response arrives, the request deadline passes, or
// the session closes.
func (s *session) sendRequest(ctx context.Context, id MustString, method string, params any) (*PendingRequest, error) {
	var paramsBs json.RawMessage
	if params != nil {
		var err error
		paramsBs, err = json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal params: %w", err)
		}
	}

	p, err := s.corr.register(id, s.requestTimeout)
	if err != nil {
		return nil, err
	}

	msg := JSONRPCMessage{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Method:  method,
		Params:  paramsBs,
	}
	if err := s.send(ctx, msg); err != nil {
		s.corr.fail(id, err)
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	return p, nil
}

// call is the blocking request facade: send, wait, decode into result. A nil
// result discards the payload. Abandoning the wait tells the peer to stop
// working on the request.
func (s *session) call(ctx context.Context, id MustString, method string, params, result any) error {
	p, err := s.sendRequest(ctx, id, method, params)
	if err != nil {
		return err
	}

	raw, err := p.Await(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			s.notifyCancelled(id, userCancelledReason)
		} else if errors.Is(err, ErrTimeout) {
			s.notifyCancelled(id, "timeout")
		}
		return err
	}

	if result == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, result); err != nil {
		return fmt.Errorf("failed to unmarshal result: %w", err)
	}
	return nil
}

func (s *session) notifyCancelled(id MustString, reason string) {
	err := s.sendNotification(context.Background(), methodNotificationsCancelled, notificationsCancelledParams{
		RequestID: string(id),
		Reason:    reason,
	})
	if err != nil && !errors.Is(err, ErrClosed) {
		s.logger.Warn("failed to send cancelled notification",
			slog.String("requestID", string(id)),
			slog.String("err", err.Error()))
	}
}

func (s *session) sendNotification(ctx context.Context, method string, params any) error {
	var paramsBs json.RawMessage
	if params != nil {
		var err error
		paramsBs, err = json.Marshal(params)
		if err != nil {
			return fmt.Errorf("failed to marshal params: %w", err)
		}
	}

	msg := JSONRPCMessage{
		JSONRPC: JSONRPCVersion,
		Method:  method,
		Params:  paramsBs,
	}
	return s.send(ctx, msg)
}

// replyResult sends a success response. A nil result becomes an empty object,
// so the response always carries an outcome.
func (s *session) replyResult(id MustString, result any) {
	resultBs := json.RawMessage("{}")
	if result != nil {
		var err error
		resultBs, err = json.Marshal(result)
		if err != nil {
			s.logger.Error("failed to marshal result",
				slog.String("requestID", string(id)),
				slog.String("err", err.Error()))
			s.replyError(id, JSONRPCError{Code: ErrCodeInternal, Message: err.Error()})
			return
		}
	}

	msg := JSONRPCMessage{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Result:  resultBs,
	}
	if err := s.send(context.Background(), msg); err != nil && !errors.Is(err, ErrClosed) {
		s.logger.Error("failed to send response",
			slog.String("requestID", string(id)),
			slog.String("err", err.Error()))
	}
}

func (s *session) replyError(id MustString, jsonErr JSONRPCError) {
	msg := JSONRPCMessage{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Error:   &jsonErr,
	}
	if err := s.send(context.Background(), msg); err != nil && !errors.Is(err, ErrClosed) {
		s.logger.Error("failed to send error response",
			slog.String("requestID", string(id)),
			slog.String("err", err.Error()))
	}
}

// ping performs one round-trip health check.
func (s *session) ping(ctx context.Context) error {
	return s.call(ctx, newRequestID(), methodPing, nil, nil)
}

// keepalive pings the peer on the given interval and closes the session after
// threshold consecutive failures.
func (s *session) keepalive(interval time.Duration, threshold int) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
		}

		if err := s.ping(s.baseCtx); err != nil {
			if errors.Is(err, ErrClosed) {
				return
			}
			failures++
			s.logger.Warn("ping failed",
				slog.Int("failures", failures),
				slog.String("err", err.Error()))
			if failures > threshold {
				s.logger.Warn("too many ping failures, closing session")
				s.close()
				return
			}
			continue
		}
		failures = 0
	}
}

// close tears the session down: it releases suspended senders with ErrClosed,
// cancels in-flight inbound handlers, and closes the channel so the read loop
// ends. It is idempotent and safe to call from any goroutine, including the
// read loop itself.
func (s *session) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.baseCancel()
		s.corr.close(ErrClosed)
		s.channel.Close()
		if s.onClose != nil {
			s.onClose()
		}
	})
}

func (s *session) markInitialized() {
	s.mu.Lock()
	already := s.initialized
	s.initialized = true
	s.mu.Unlock()

	if !already && s.onInitialized != nil {
		s.onInitialized()
	}
}

func (s *session) isInitialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized
}

func (s *session) isHandshakeDone() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handshakeDone
}

// completeHandshake freezes the peer's identity and capabilities. It reports
// false when the handshake already completed, which is a protocol violation
// on the second initialize.
func (s *session) completeHandshake(peer Info, clientCaps ClientCapabilities,
	serverCaps ServerCapabilities, instructions string,
) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handshakeDone {
		return false
	}
	s.handshakeDone = true
	s.peerInfo = peer
	s.clientCaps = clientCaps
	s.serverCaps = serverCaps
	s.instructions = instructions
	return true
}

func (s *session) peer() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peerInfo
}

func (s *session) clientCapabilities() ClientCapabilities {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clientCaps
}

func (s *session) serverCapabilities() ServerCapabilities {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.serverCaps
}

func (s *session) serverInstructions() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.instructions
}
