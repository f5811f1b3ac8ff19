package memory

import (
	"github.com/tidemill/go-mcp"
)

// Server stores a persistent knowledge graph of entities, relations, and
// observations in a single JSON file and exposes graph operations as tools.
// It is the classic memory server: clients build up facts across sessions
// and query them back later.
//
// Wire one instance into mcp.NewServer with WithToolRegistry.
type Server struct {
	store    *graphStore
	registry *mcp.ToolRegistry
}

// NewServer creates a memory server persisting its graph at the given file
// path. The file is created on the first write; its parent directory must
// exist.
func NewServer(path string) (*Server, error) {
	s := &Server{
		store:    newGraphStore(path),
		registry: mcp.NewToolRegistry(),
	}
	if err := s.registerTools(); err != nil {
		return nil, err
	}
	return s, nil
}

// Registry returns the tool registry holding the graph tools.
func (s *Server) Registry() *mcp.ToolRegistry {
	return s.registry
}
