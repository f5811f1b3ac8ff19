package everything

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/tidemill/go-mcp"
)

const pageSize = 10

// Server exercises every capability family of the protocol from one place:
// prompts, resources with subscriptions, tools with progress and sampling,
// and the logging channel. It exists to test client implementations against
// a server that genuinely uses everything.
//
// Wire one instance into mcp.NewServer with WithToolRegistry,
// WithPromptServer, WithResourceServer, WithResourceSubscriptionHandler and
// WithLogHandler.
type Server struct {
	registry *mcp.ToolRegistry

	resources []mcp.Resource
	contents  map[string]mcp.ResourceContents

	levelMu  sync.RWMutex
	logLevel mcp.LogLevel

	subscribers    sync.Map // resource URI to struct{}
	updateInterval time.Duration

	logs       chan mcp.LogParams
	subUpdates chan string

	done       chan struct{}
	tickerDone chan struct{}
}

// Option configures a Server.
type Option func(*Server)

// WithUpdateInterval sets how often subscribed resources report a simulated
// update. The default is 30 seconds.
func WithUpdateInterval(interval time.Duration) Option {
	return func(s *Server) {
		s.updateInterval = interval
	}
}

// NewServer creates the test server and starts the background task that
// simulates updates of subscribed resources.
//
// Callers must call Close when finished to stop the background task.
func NewServer(options ...Option) (*Server, error) {
	resources, contents := genResources()

	s := &Server{
		registry:       mcp.NewToolRegistry(),
		resources:      resources,
		contents:       contents,
		logLevel:       mcp.LogLevelDebug,
		updateInterval: 30 * time.Second,
		logs:           make(chan mcp.LogParams, 10),
		subUpdates:     make(chan string),
		done:           make(chan struct{}),
		tickerDone:     make(chan struct{}),
	}
	for _, opt := range options {
		opt(s)
	}

	if err := s.registerTools(); err != nil {
		return nil, err
	}

	go s.simulateResourceUpdates()

	return s, nil
}

// Registry returns the tool registry holding the test tools.
func (s *Server) Registry() *mcp.ToolRegistry {
	return s.registry
}

// Close stops the background tasks and ends the update iterators.
func (s *Server) Close() {
	close(s.done)
	<-s.tickerDone
}

// pageOf slices one page out of items. The cursor is the numeric offset of
// the page, produced by a previous call.
func pageOf[T any](items []T, cursor string) ([]T, string, error) {
	start := 0
	if cursor != "" {
		var err error
		start, err = strconv.Atoi(cursor)
		if err != nil || start < 0 || start > len(items) {
			return nil, "", fmt.Errorf("invalid cursor: %s", cursor)
		}
	}
	end := min(start+pageSize, len(items))

	nextCursor := ""
	if end < len(items) {
		nextCursor = strconv.Itoa(end)
	}
	return items[start:end], nextCursor, nil
}
