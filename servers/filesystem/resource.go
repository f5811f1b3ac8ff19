package filesystem

import (
	"context"
	"encoding/base64"
	"fmt"
	"io/fs"
	"iter"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/tidemill/go-mcp"
)

const resourcePageSize = 100

// ListResources implements mcp.ResourceServer. It lists the regular files
// under the root directories as file scheme resources, one page at a time.
// The cursor is the numeric offset of the next page.
func (s *Server) ListResources(
	_ context.Context,
	_ *mcp.ServerSession,
	params mcp.ListResourcesParams,
) (mcp.ListResourcesResult, error) {
	files, err := s.listFiles()
	if err != nil {
		return mcp.ListResourcesResult{}, err
	}

	start := 0
	if params.Cursor != "" {
		start, err = strconv.Atoi(params.Cursor)
		if err != nil || start < 0 || start > len(files) {
			return mcp.ListResourcesResult{}, fmt.Errorf("invalid cursor: %s", params.Cursor)
		}
	}
	end := min(start+resourcePageSize, len(files))

	resources := make([]mcp.Resource, 0, end-start)
	for _, path := range files[start:end] {
		resources = append(resources, mcp.Resource{
			URI:      pathToURI(path),
			Name:     filepath.Base(path),
			MimeType: mimeTypeOf(path),
		})
	}

	nextCursor := ""
	if end < len(files) {
		nextCursor = strconv.Itoa(end)
	}

	return mcp.ListResourcesResult{
		Resources:  resources,
		NextCursor: nextCursor,
	}, nil
}

// ReadResource implements mcp.ResourceServer. Text files are returned
// verbatim, anything else as a base64 blob.
func (s *Server) ReadResource(
	_ context.Context,
	_ *mcp.ServerSession,
	params mcp.ReadResourceParams,
) (mcp.ReadResourceResult, error) {
	path, err := uriToPath(params.URI)
	if err != nil {
		return mcp.ReadResourceResult{}, err
	}
	validPath, err := validatePath(path, s.roots)
	if err != nil {
		return mcp.ReadResourceResult{}, err
	}

	info, err := os.Stat(validPath)
	if err != nil {
		return mcp.ReadResourceResult{}, fmt.Errorf("stat resource %s: %w", params.URI, err)
	}
	if info.IsDir() {
		return mcp.ReadResourceResult{}, fmt.Errorf("resource %s is a directory", params.URI)
	}

	bs, err := os.ReadFile(validPath)
	if err != nil {
		return mcp.ReadResourceResult{}, fmt.Errorf("read resource %s: %w", params.URI, err)
	}

	contents := mcp.ResourceContents{
		URI:      params.URI,
		MimeType: mimeTypeOf(validPath),
	}
	if utf8.Valid(bs) {
		contents.Text = string(bs)
	} else {
		contents.MimeType = "application/octet-stream"
		contents.Blob = base64.StdEncoding.EncodeToString(bs)
	}

	return mcp.ReadResourceResult{
		Contents: []mcp.ResourceContents{contents},
	}, nil
}

// ListResourceTemplates implements mcp.ResourceServer.
func (s *Server) ListResourceTemplates(
	_ context.Context,
	_ *mcp.ServerSession,
	_ mcp.ListResourceTemplatesParams,
) (mcp.ListResourceTemplatesResult, error) {
	return mcp.ListResourceTemplatesResult{
		Templates: []mcp.ResourceTemplate{
			{
				URITemplate: "file://{path}",
				Name:        "File",
				Description: "A file under one of the allowed directories, addressed by absolute path",
			},
		},
	}, nil
}

// CompletesResourceTemplate implements mcp.ResourceServer. It completes the
// path argument of the file template with matching entries under the roots.
func (s *Server) CompletesResourceTemplate(
	_ context.Context,
	_ *mcp.ServerSession,
	params mcp.CompletesCompletionParams,
) (mcp.CompletionResult, error) {
	var result mcp.CompletionResult
	if params.Argument.Name != "path" {
		return result, nil
	}

	values := s.completePath(params.Argument.Value)
	if len(values) > resourcePageSize {
		values = values[:resourcePageSize]
		result.Completion.HasMore = true
	}
	result.Completion.Values = values
	result.Completion.Total = len(values)
	return result, nil
}

func (s *Server) completePath(partial string) []string {
	var values []string
	for _, root := range s.roots {
		prefix := filepath.Join(root, filepath.FromSlash(partial))
		// When the partial names a directory, complete its entries instead
		// of the directory itself.
		dir := filepath.Dir(prefix)
		if strings.HasSuffix(partial, "/") || partial == "" {
			dir = prefix
		}

		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			full := filepath.Join(dir, entry.Name())
			if !strings.HasPrefix(full, prefix) {
				continue
			}
			rel, err := filepath.Rel(root, full)
			if err != nil {
				continue
			}
			values = append(values, filepath.ToSlash(rel))
		}
	}
	slices.Sort(values)
	return slices.Compact(values)
}

// SubscribeResource implements mcp.ResourceSubscriptionHandler. The resource
// is added to the filesystem watcher; subsequent changes surface through
// SubscribedResourceUpdates.
func (s *Server) SubscribeResource(params mcp.SubscribeResourceParams) {
	path, err := uriToPath(params.URI)
	if err == nil {
		path, err = validatePath(path, s.roots)
	}
	if err != nil {
		s.logger.Warn("rejecting resource subscription",
			slog.String("uri", params.URI),
			slog.String("err", err.Error()))
		return
	}

	s.subMu.Lock()
	s.subs[path] = params.URI
	s.subMu.Unlock()

	if err := s.watcher.Add(path); err != nil {
		s.logger.Warn("failed to watch subscribed resource",
			slog.String("uri", params.URI),
			slog.String("err", err.Error()))
	}
}

// UnsubscribeResource implements mcp.ResourceSubscriptionHandler.
func (s *Server) UnsubscribeResource(params mcp.UnsubscribeResourceParams) {
	path, err := uriToPath(params.URI)
	if err != nil {
		return
	}
	path = filepath.Clean(path)

	s.subMu.Lock()
	delete(s.subs, path)
	s.subMu.Unlock()

	if err := s.watcher.Remove(path); err != nil {
		s.logger.Debug("failed to unwatch resource",
			slog.String("uri", params.URI),
			slog.String("err", err.Error()))
	}
}

// SubscribedResourceUpdates implements mcp.ResourceSubscriptionHandler.
func (s *Server) SubscribedResourceUpdates() iter.Seq[string] {
	return func(yield func(string) bool) {
		for {
			select {
			case <-s.done:
				return
			case uri := <-s.subUpdates:
				if !yield(uri) {
					return
				}
			}
		}
	}
}

// ResourceListUpdates implements mcp.ResourceListUpdater. It emits when
// entries under the root directories are created, removed or renamed.
func (s *Server) ResourceListUpdates() iter.Seq[struct{}] {
	return func(yield func(struct{}) bool) {
		for {
			select {
			case <-s.done:
				return
			case <-s.listUpdates:
				if !yield(struct{}{}) {
					return
				}
			}
		}
	}
}

func (s *Server) listFiles() ([]string, error) {
	var files []string
	for _, root := range s.roots {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if d.Name() == ".git" {
					return filepath.SkipDir
				}
				return nil
			}
			if d.Type().IsRegular() {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk root directory %s: %w", root, err)
		}
	}
	slices.Sort(files)
	return files, nil
}

func mimeTypeOf(path string) string {
	mimeType := mime.TypeByExtension(filepath.Ext(path))
	if mimeType == "" {
		return "text/plain"
	}
	// Strip the charset parameter TypeByExtension appends to text types.
	if base, _, ok := strings.Cut(mimeType, ";"); ok {
		return base
	}
	return mimeType
}
