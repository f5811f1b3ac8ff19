package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"github.com/tmaxmax/go-sse"
)

// SSEServer is a ServerTransport that speaks Server-Sent Events over HTTP.
// The server-to-client stream is an SSE response and client-to-server
// messages arrive as HTTP POST requests.
//
// SSEServer exposes two http.Handlers, HandleSSE and HandleMessage, which
// can be mounted on any mux or framework. HandleSSE upgrades the request to
// an event stream, announces the channel's message endpoint via an
// "endpoint" event and then streams "message" events until the channel
// closes. HandleMessage accepts posted payloads and routes them to the
// channel named by the sessionID query parameter.
type SSEServer struct {
	messageURL string
	logger     *slog.Logger

	channels         chan *sseServerChannel
	removedChannels  chan string
	receivedPayloads chan ssePayload

	done   chan struct{}
	closed chan struct{}
}

// SSEServerOption configures an SSEServer.
type SSEServerOption func(*SSEServer)

// WithSSEServerLogger sets the logger for the SSE server.
func WithSSEServerLogger(logger *slog.Logger) SSEServerOption {
	return func(s *SSEServer) {
		s.logger = logger
	}
}

type ssePayload struct {
	channelID string
	payload   []byte
}

type sseWrite struct {
	msg  *sse.Message
	errs chan<- error
}

type sseServerChannel struct {
	id     string
	sess   *sse.Session
	logger *slog.Logger

	writes   chan sseWrite
	payloads chan []byte

	done           chan struct{}
	sendClosed     chan struct{}
	receivedClosed chan struct{}
}

// NewSSEServer creates a transport that advertises messageURL as the base of
// every channel's message endpoint. The server produces no channels until
// Channels is being consumed and clients connect to HandleSSE.
func NewSSEServer(messageURL string, options ...SSEServerOption) *SSEServer {
	s := &SSEServer{
		messageURL:       messageURL,
		channels:         make(chan *sseServerChannel, 5),
		removedChannels:  make(chan string),
		receivedPayloads: make(chan ssePayload),
		done:             make(chan struct{}),
		closed:           make(chan struct{}),
	}
	for _, opt := range options {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With(
		slog.String("package", "mcp"),
		slog.String("component", "sse-server"),
	)
	return s
}

// Channels yields one Channel per connected SSE client. The loop also owns
// the routing table, so posted payloads are only delivered while Channels is
// being consumed. The iterator ends after Shutdown.
func (s *SSEServer) Channels() iter.Seq[Channel] {
	return func(yield func(Channel) bool) {
		defer close(s.closed)

		channels := make(map[string]*sseServerChannel)

		for {
			select {
			case <-s.done:
				return
			case channel := <-s.channels:
				go channel.pumpWrites()

				channels[channel.id] = channel

				if !yield(channel) {
					return
				}
			case channelID := <-s.removedChannels:
				delete(channels, channelID)
			case recv := <-s.receivedPayloads:
				channel, ok := channels[recv.channelID]
				if !ok {
					// The channel may already be closed and removed.
					continue
				}

				select {
				case channel.payloads <- recv.payload:
				case <-channel.done:
				case <-s.done:
					return
				}
			}
		}
	}
}

// Shutdown stops producing channels and waits for the Channels iterator to
// return. Channels handed out before shutdown are closed by their consumer,
// not by the transport.
func (s *SSEServer) Shutdown(ctx context.Context) error {
	close(s.done)

	select {
	case <-ctx.Done():
		return fmt.Errorf("failed to shutdown SSE server: %w", ctx.Err())
	case <-s.closed:
	}
	return nil
}

// HandleSSE returns the handler for the event stream endpoint. The handler
// blocks for the lifetime of the channel, so the surrounding http.Server
// must not enforce a write timeout on this route.
func (s *SSEServer) HandleSSE() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := sse.Upgrade(w, r)
		if err != nil {
			nErr := fmt.Errorf("failed to upgrade session: %w", err)
			s.logger.Error("failed to upgrade session", slog.String("err", nErr.Error()))
			http.Error(w, nErr.Error(), http.StatusInternalServerError)
			return
		}

		channelID := uuid.New().String()

		// Tell the client where to post its messages for this channel.
		url := fmt.Sprintf("%s?sessionID=%s", s.messageURL, channelID)

		msg := sse.Message{
			Type: sse.Type("endpoint"),
		}
		msg.AppendData(url)
		if err := sess.Send(&msg); err != nil {
			nErr := fmt.Errorf("failed to write endpoint event: %w", err)
			s.logger.Error("failed to write endpoint event", slog.String("err", nErr.Error()))
			http.Error(w, nErr.Error(), http.StatusInternalServerError)
			return
		}
		if err := sess.Flush(); err != nil {
			nErr := fmt.Errorf("failed to flush endpoint event: %w", err)
			s.logger.Error("failed to flush endpoint event", slog.String("err", nErr.Error()))
			http.Error(w, nErr.Error(), http.StatusInternalServerError)
			return
		}

		channel := &sseServerChannel{
			id:             channelID,
			sess:           sess,
			logger:         s.logger.With(slog.String("sessionID", channelID)),
			writes:         make(chan sseWrite),
			payloads:       make(chan []byte, 5),
			done:           make(chan struct{}),
			sendClosed:     make(chan struct{}),
			receivedClosed: make(chan struct{}),
		}

		select {
		case s.channels <- channel:
		case <-s.done:
			return
		}

		// Keep the response open until the channel winds down, then tell the
		// routing loop to forget it. Server shutdown unblocks both waits even
		// when the channel was never consumed.
		select {
		case <-channel.sendClosed:
		case <-s.done:
		}
		select {
		case <-channel.receivedClosed:
		case <-s.done:
		}

		select {
		case s.removedChannels <- channelID:
		case <-s.done:
		}
	})
}

// HandleMessage returns the handler for the endpoint clients POST messages
// to. Payloads must be well-formed JSON; anything beyond that is judged by
// the consuming session's codec.
func (s *SSEServer) HandleMessage() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		channelID := r.URL.Query().Get("sessionID")
		if channelID == "" {
			nErr := errors.New("missing sessionID query parameter")
			s.logger.Warn("missing sessionID query parameter")
			http.Error(w, nErr.Error(), http.StatusBadRequest)
			return
		}

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			nErr := fmt.Errorf("failed to read request body: %w", err)
			s.logger.Warn("failed to read request body", slog.String("err", err.Error()))
			http.Error(w, nErr.Error(), http.StatusBadRequest)
			return
		}
		if !json.Valid(payload) {
			nErr := errors.New("request body is not valid JSON")
			s.logger.Warn("request body is not valid JSON", slog.String("sessionID", channelID))
			http.Error(w, nErr.Error(), http.StatusBadRequest)
			return
		}

		// Feed the routing loop, which owns the lookup from sessionID to channel.
		select {
		case <-s.done:
		case s.receivedPayloads <- ssePayload{channelID: channelID, payload: payload}:
		}
	})
}

func (c *sseServerChannel) ID() string { return c.id }

func (c *sseServerChannel) Send(ctx context.Context, payload []byte) error {
	msg := sse.Message{
		Type: sse.Type("message"),
	}
	msg.AppendData(string(payload))

	errs := make(chan error, 1)

	// Queue the write so a single goroutine touches the sse session.
	select {
	case c.writes <- sseWrite{msg: &msg, errs: errs}:
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrClosed
	}

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrClosed
	}
}

func (c *sseServerChannel) Receive() iter.Seq[[]byte] {
	return func(yield func([]byte) bool) {
		defer close(c.receivedClosed)

		for {
			select {
			case payload := <-c.payloads:
				if !yield(payload) {
					return
				}
			case <-c.done:
				return
			}
		}
	}
}

func (c *sseServerChannel) Close() {
	close(c.done)
}

func (c *sseServerChannel) pumpWrites() {
	defer close(c.sendClosed)

	for {
		select {
		case write := <-c.writes:
			err := c.sess.Send(write.msg)
			if err == nil {
				err = c.sess.Flush()
			}
			if err != nil {
				c.logger.Warn("failed to send message", slog.String("err", err.Error()))
			}
			write.errs <- err
		case <-c.done:
			return
		}
	}
}

// SSEClient is a ClientTransport that connects to an SSEServer. Connect
// performs the endpoint handshake and returns a Channel whose Send posts to
// the advertised message endpoint and whose Receive yields the stream's
// "message" events.
type SSEClient struct {
	connectURL string
	httpClient *http.Client
	logger     *slog.Logger

	maxPayloadSize int
}

// SSEClientOption configures an SSEClient.
type SSEClientOption func(*SSEClient)

// WithSSEClientMaxPayloadSize sets the maximum size of a single event read
// from the stream. Events beyond the limit terminate the channel. Zero means
// no limit.
func WithSSEClientMaxPayloadSize(size int) SSEClientOption {
	return func(c *SSEClient) {
		c.maxPayloadSize = size
	}
}

// WithSSEClientHTTPClient sets the http.Client used for both the event
// stream and message posts.
func WithSSEClientHTTPClient(httpClient *http.Client) SSEClientOption {
	return func(c *SSEClient) {
		c.httpClient = httpClient
	}
}

// WithSSEClientLogger sets the logger for the SSE client.
func WithSSEClientLogger(logger *slog.Logger) SSEClientOption {
	return func(c *SSEClient) {
		c.logger = logger
	}
}

// NewSSEClient creates a client transport that connects to connectURL, the
// URL served by an SSEServer's HandleSSE handler.
func NewSSEClient(connectURL string, options ...SSEClientOption) *SSEClient {
	c := &SSEClient{
		connectURL: connectURL,
	}
	for _, opt := range options {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = http.DefaultClient
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.logger = c.logger.With(
		slog.String("package", "mcp"),
		slog.String("component", "sse-client"),
	)
	return c
}

// Connect opens the event stream and blocks until the server advertises the
// message endpoint or ctx expires. The stream itself is not bound to ctx and
// stays open until the returned Channel is closed.
func (c *SSEClient) Connect(ctx context.Context) (Channel, error) {
	streamCtx, cancel := context.WithCancel(context.Background())

	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, c.connectURL, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	// The request carries streamCtx so the stream outlives Connect's ctx,
	// but the dial itself must still be interruptible by the caller.
	connected := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-connected:
		}
	}()

	resp, err := c.httpClient.Do(req)
	close(connected)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to connect to SSE server: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	channel := &sseClientChannel{
		id:         uuid.New().String(),
		httpClient: c.httpClient,
		logger:     c.logger,
		payloads:   make(chan []byte),
		cancel:     cancel,
		done:       make(chan struct{}),
	}

	ready := make(chan error, 1)
	go channel.listen(resp.Body, c.maxPayloadSize, ready)

	select {
	case err := <-ready:
		if err != nil {
			cancel()
			return nil, err
		}
	case <-ctx.Done():
		cancel()
		return nil, ctx.Err()
	}

	return channel, nil
}

type sseClientChannel struct {
	id         string
	messageURL string
	httpClient *http.Client
	logger     *slog.Logger

	payloads chan []byte
	cancel   context.CancelFunc
	done     chan struct{}
}

func (c *sseClientChannel) listen(body io.ReadCloser, maxPayloadSize int, ready chan<- error) {
	defer func() {
		body.Close()
		close(c.payloads)
	}()

	var config *sse.ReadConfig
	if maxPayloadSize > 0 {
		config = &sse.ReadConfig{
			MaxEventSize: maxPayloadSize,
		}
	}

	endpointSet := false

	for ev, err := range sse.Read(body, config) {
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				c.logger.Error("failed to read SSE event", slog.String("err", err.Error()))
			}
			return
		}

		switch ev.Type {
		case "endpoint":
			if endpointSet {
				continue
			}

			// Validate and parse the endpoint URL before posting anything to it.
			u, err := url.Parse(ev.Data)
			if err != nil {
				ready <- fmt.Errorf("failed to parse endpoint URL: %w", err)
				return
			}
			if u.String() == "" {
				ready <- errors.New("received empty endpoint URL")
				return
			}
			c.messageURL = u.String()
			if id := u.Query().Get("sessionID"); id != "" {
				c.id = id
			}

			endpointSet = true
			ready <- nil
		case "message":
			if !endpointSet {
				c.logger.Error("received message event before endpoint event")
				continue
			}

			select {
			case c.payloads <- []byte(ev.Data):
			case <-c.done:
				return
			}
		default:
			c.logger.Error("unhandled event type", slog.String("type", ev.Type))
		}
	}
}

func (c *sseClientChannel) ID() string { return c.id }

func (c *sseClientChannel) Send(ctx context.Context, payload []byte) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.messageURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	return nil
}

func (c *sseClientChannel) Receive() iter.Seq[[]byte] {
	return func(yield func([]byte) bool) {
		for payload := range c.payloads {
			if !yield(payload) {
				return
			}
		}
	}
}

func (c *sseClientChannel) Close() {
	close(c.done)
	c.cancel()
}
