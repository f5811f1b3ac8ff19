package everything

import (
	"encoding/json"
	"iter"

	"github.com/tidemill/go-mcp"
)

// LogStreams implements mcp.LogHandler.
func (s *Server) LogStreams() iter.Seq[mcp.LogParams] {
	return func(yield func(mcp.LogParams) bool) {
		for {
			select {
			case <-s.done:
				return
			case params := <-s.logs:
				if !yield(params) {
					return
				}
			}
		}
	}
}

// SetLogLevel implements mcp.LogHandler.
func (s *Server) SetLogLevel(level mcp.LogLevel) {
	s.levelMu.Lock()
	s.logLevel = level
	s.levelMu.Unlock()
}

func (s *Server) log(msg string, level mcp.LogLevel) {
	s.levelMu.RLock()
	minLevel := s.logLevel
	s.levelMu.RUnlock()
	if level < minLevel {
		return
	}

	data, _ := json.Marshal(struct {
		Message string `json:"message"`
	}{Message: msg})

	// Messages are dropped when nothing drains the stream, so operations
	// never stall on logging.
	select {
	case s.logs <- mcp.LogParams{
		Level:  level,
		Logger: "everything",
		Data:   data,
	}:
	default:
	}
}
