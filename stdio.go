package mcp

import (
	"bufio"
	"context"
	"errors"
	"io"
	"iter"
	"log/slog"
	"strings"

	"github.com/google/uuid"
)

// StdIO carries the protocol over standard input/output, or any other
// io.Reader and io.Writer pair. Payloads are newline-delimited, one message
// per line, which matches how MCP servers run as subprocesses.
//
// The transport holds exactly one connection, so it implements both
// ServerTransport and ClientTransport: the server side yields the single
// channel from Channels, the client side returns it from Connect. The caller
// keeps ownership of the reader and writer; closing them is not the
// transport's job.
type StdIO struct {
	channel *stdIOChannel
	closed  chan struct{}
}

type stdIOChannel struct {
	id     string
	reader io.Reader
	writer io.Writer
	logger *slog.Logger

	writes chan stdIOWrite
	done   chan struct{}
}

type stdIOWrite struct {
	payload []byte
	errs    chan error
}

// NewStdIO creates a transport reading payloads from reader and writing them
// to writer.
func NewStdIO(reader io.Reader, writer io.Writer) *StdIO {
	channel := &stdIOChannel{
		id:     uuid.New().String(),
		reader: reader,
		writer: writer,
		logger: slog.Default().With(
			slog.String("package", "mcp"),
			slog.String("component", "stdio"),
		),
		writes: make(chan stdIOWrite),
		done:   make(chan struct{}),
	}
	go channel.pumpWrites()

	return &StdIO{
		channel: channel,
		closed:  make(chan struct{}),
	}
}

// Channels implements ServerTransport. The iterator yields the transport's
// single channel, then blocks until that channel closes or the transport
// shuts down.
func (s *StdIO) Channels() iter.Seq[Channel] {
	return func(yield func(Channel) bool) {
		if !yield(s.channel) {
			return
		}
		select {
		case <-s.channel.done:
		case <-s.closed:
		}
	}
}

// Shutdown implements ServerTransport.
func (s *StdIO) Shutdown(context.Context) error {
	close(s.closed)
	return nil
}

// Connect implements ClientTransport.
func (s *StdIO) Connect(context.Context) (Channel, error) {
	return s.channel, nil
}

func (c *stdIOChannel) ID() string {
	return c.id
}

// Send queues the payload for the writer goroutine and waits for the write
// to finish. Funneling all writes through one goroutine keeps concurrent
// senders from interleaving inside the newline framing.
func (c *stdIOChannel) Send(ctx context.Context, payload []byte) error {
	write := stdIOWrite{
		payload: payload,
		errs:    make(chan error, 1),
	}

	select {
	case c.writes <- write:
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrClosed
	}

	select {
	case err := <-write.errs:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrClosed
	}
}

// Receive yields one payload per non-empty input line until the reader ends
// or the channel closes.
func (c *stdIOChannel) Receive() iter.Seq[[]byte] {
	return func(yield func([]byte) bool) {
		type readResult struct {
			line string
			err  error
		}

		reader := bufio.NewReader(c.reader)
		for {
			// Reading happens on its own goroutine, so a close can
			// interrupt the iteration even while the reader blocks.
			results := make(chan readResult, 1)
			go func() {
				line, err := reader.ReadString('\n')
				results <- readResult{line: line, err: err}
			}()

			var res readResult
			select {
			case <-c.done:
				return
			case res = <-results:
			}

			if res.err != nil {
				if !errors.Is(res.err, io.EOF) {
					c.logger.Error("failed to read payload", slog.String("err", res.err.Error()))
				}
				return
			}

			line := strings.TrimSuffix(res.line, "\n")
			if line == "" {
				continue
			}
			if !yield([]byte(line)) {
				return
			}
		}
	}
}

// Close implements Channel. The underlying reader and writer stay open, as
// the caller owns them.
func (c *stdIOChannel) Close() {
	close(c.done)
}

func (c *stdIOChannel) pumpWrites() {
	for {
		select {
		case write := <-c.writes:
			buf := make([]byte, 0, len(write.payload)+1)
			buf = append(buf, write.payload...)
			buf = append(buf, '\n')
			_, err := c.writer.Write(buf)
			write.errs <- err
		case <-c.done:
			return
		}
	}
}
