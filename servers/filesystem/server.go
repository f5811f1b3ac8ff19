package filesystem

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/tidemill/go-mcp"
)

// Server exposes a sandboxed slice of the local filesystem over MCP. Every
// operation is restricted to the configured root directories; paths outside
// them, including symlink escapes, are rejected.
//
// The server provides filesystem tools through its tool registry and serves
// files as resources. Files live under file scheme URIs, and subscribed
// resources are watched with fsnotify so clients learn about changes as they
// happen. Wire one instance into mcp.NewServer with WithToolRegistry,
// WithResourceServer, WithResourceListUpdater and
// WithResourceSubscriptionHandler.
type Server struct {
	roots    []string
	registry *mcp.ToolRegistry
	watcher  *fsnotify.Watcher
	logger   *slog.Logger

	subMu sync.Mutex
	subs  map[string]string // watched path to subscribed URI

	listUpdates chan struct{}
	subUpdates  chan string

	done        chan struct{}
	watcherDone chan struct{}
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger used for watcher and subscription diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a filesystem server rooted at the given directories. Each
// root must exist and be a directory; roots are resolved to their real
// absolute paths before any sandbox checks. The root directories are watched
// so resource list changes reach subscribed clients.
//
// Callers must call Close when finished to release the filesystem watcher.
func NewServer(roots []string, options ...Option) (*Server, error) {
	if len(roots) == 0 {
		return nil, errors.New("at least one root directory is required")
	}

	resolved := make([]string, 0, len(roots))
	for _, root := range roots {
		absolute, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("resolve root directory %s: %w", root, err)
		}
		realPath, err := filepath.EvalSymlinks(absolute)
		if err != nil {
			return nil, fmt.Errorf("resolve root directory %s: %w", root, err)
		}
		info, err := os.Stat(realPath)
		if err != nil {
			return nil, fmt.Errorf("stat root directory %s: %w", root, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("root %s is not a directory", root)
		}
		resolved = append(resolved, realPath)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create filesystem watcher: %w", err)
	}
	for _, root := range resolved {
		if err := watcher.Add(root); err != nil {
			watcher.Close()
			return nil, fmt.Errorf("watch root directory %s: %w", root, err)
		}
	}

	s := &Server{
		roots:    resolved,
		registry: mcp.NewToolRegistry(),
		watcher:  watcher,
		logger: slog.Default().With(
			slog.String("server", "filesystem"),
		),
		subs:        make(map[string]string),
		listUpdates: make(chan struct{}, 1),
		subUpdates:  make(chan string),
		done:        make(chan struct{}),
		watcherDone: make(chan struct{}),
	}
	for _, opt := range options {
		opt(s)
	}

	if err := s.registerTools(); err != nil {
		watcher.Close()
		return nil, err
	}

	go s.watchEvents()

	return s, nil
}

// Registry returns the tool registry holding the filesystem tools.
func (s *Server) Registry() *mcp.ToolRegistry {
	return s.registry
}

// Close stops the filesystem watcher and ends the update iterators.
func (s *Server) Close() error {
	close(s.done)
	err := s.watcher.Close()
	<-s.watcherDone
	return err
}

func (s *Server) watchEvents() {
	defer close(s.watcherDone)

	for {
		select {
		case <-s.done:
			return
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			s.handleEvent(event)
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Error("filesystem watcher failed", slog.String("err", err.Error()))
		}
	}
}

func (s *Server) handleEvent(event fsnotify.Event) {
	// Creations, removals and renames change what ListResources returns.
	// The signal is coalesced, clients re-list to see the actual state.
	if event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename) {
		select {
		case s.listUpdates <- struct{}{}:
		default:
		}
	}

	s.subMu.Lock()
	uri, subscribed := s.subs[filepath.Clean(event.Name)]
	s.subMu.Unlock()
	if !subscribed {
		return
	}

	select {
	case s.subUpdates <- uri:
	case <-s.done:
	}
}
