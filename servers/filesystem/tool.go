package filesystem

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tidemill/go-mcp"
)

const (
	readFileDescription = `Read the complete contents of a file from the file system.
Handles various text encodings and provides detailed error messages
if the file cannot be read. Use this tool when you need to examine
the contents of a single file. Only works within allowed directories.`

	readMultipleFilesDescription = `Read the contents of multiple files simultaneously. This is more
efficient than reading files one by one when you need to analyze
or compare multiple files. Each file's content is returned with its
path as a reference. Failed reads for individual files won't stop
the entire operation. Only works within allowed directories.`

	writeFileDescription = `Create a new file or completely overwrite an existing file with new content.
Use with caution as it will overwrite existing files without warning.
Handles text content with proper encoding. Only works within allowed directories.`

	editFileDescription = `Make line-based edits to a text file. Each edit replaces exact line sequences
with new content. Returns a git-style diff showing the changes made.
Only works within allowed directories.`

	createDirectoryDescription = `Create a new directory or ensure a directory exists. Can create multiple
nested directories in one operation. If the directory already exists,
this operation will succeed silently. Only works within allowed directories.`

	listDirectoryDescription = `Get a detailed listing of all files and directories in a specified path.
Results clearly distinguish between files and directories with [FILE] and [DIR]
prefixes. Only works within allowed directories.`

	directoryTreeDescription = `Get a recursive tree view of files and directories as a JSON structure.
Each entry includes 'name', 'type' (file/directory), and 'children' for directories.
Only works within allowed directories.`

	moveFileDescription = `Move or rename files and directories. Can move files between directories
and rename them in a single operation. If the destination exists, the
operation will fail. Both source and destination must be within allowed directories.`

	searchFilesDescription = `Recursively search for files and directories matching a pattern.
The search is case-insensitive and matches partial names. Returns full
paths to all matching items. Only searches within allowed directories.`

	getFileInfoDescription = `Retrieve detailed metadata about a file or directory, including size,
timestamps, permissions, and type. Only works within allowed directories.`

	listAllowedDirectoriesDescription = `Returns the list of directories that this server is allowed to access.`
)

type treeEntry struct {
	Name     string      `json:"name"`
	Type     string      `json:"type"`
	Children []treeEntry `json:"children,omitempty"`
}

type fileInfo struct {
	Size        int64  `json:"size"`
	Created     string `json:"created"`
	Modified    string `json:"modified"`
	IsDirectory bool   `json:"isDirectory"`
	IsFile      bool   `json:"isFile"`
	Permissions string `json:"permissions"`
}

func (s *Server) registerTools() error {
	if err := mcp.AddTool(s.registry, "read_file", readFileDescription, s.readFile); err != nil {
		return err
	}
	if err := mcp.AddTool(s.registry, "read_multiple_files", readMultipleFilesDescription, s.readMultipleFiles); err != nil {
		return err
	}
	if err := mcp.AddTool(s.registry, "write_file", writeFileDescription, s.writeFile); err != nil {
		return err
	}
	if err := mcp.AddTool(s.registry, "edit_file", editFileDescription, s.editFile); err != nil {
		return err
	}
	if err := mcp.AddTool(s.registry, "create_directory", createDirectoryDescription, s.createDirectory); err != nil {
		return err
	}
	if err := mcp.AddTool(s.registry, "list_directory", listDirectoryDescription, s.listDirectory); err != nil {
		return err
	}
	if err := mcp.AddTool(s.registry, "directory_tree", directoryTreeDescription, s.directoryTree); err != nil {
		return err
	}
	if err := mcp.AddTool(s.registry, "move_file", moveFileDescription, s.moveFile); err != nil {
		return err
	}
	if err := mcp.AddTool(s.registry, "search_files", searchFilesDescription, s.searchFiles); err != nil {
		return err
	}
	if err := mcp.AddTool(s.registry, "get_file_info", getFileInfoDescription, s.getFileInfo); err != nil {
		return err
	}
	return s.registry.Add(mcp.Tool{
		Name:        "list_allowed_directories",
		Description: listAllowedDirectoriesDescription,
	}, s.listAllowedDirectories)
}

func (s *Server) readFile(_ context.Context, _ *mcp.ServerSession, args ReadFileArgs) (mcp.CallToolResult, error) {
	validPath, err := validatePath(args.Path, s.roots)
	if err != nil {
		return mcp.CallToolResult{}, err
	}

	info, err := os.Stat(validPath)
	if err != nil {
		return mcp.CallToolResult{}, fmt.Errorf("stat file %s: %w", args.Path, err)
	}
	if info.IsDir() {
		return mcp.CallToolResult{}, fmt.Errorf("path %s is a directory, not a file", args.Path)
	}

	bs, err := os.ReadFile(validPath)
	if err != nil {
		return mcp.CallToolResult{}, fmt.Errorf("read file %s: %w", args.Path, err)
	}

	return textResult(string(bs)), nil
}

func (s *Server) readMultipleFiles(
	_ context.Context,
	_ *mcp.ServerSession,
	args ReadMultipleFilesArgs,
) (mcp.CallToolResult, error) {
	contents := make([]mcp.Content, 0, len(args.Paths))
	for _, path := range args.Paths {
		text, err := readOneFile(path, s.roots)
		if err != nil {
			// A failed read becomes part of the result so the other files
			// still come through.
			text = fmt.Sprintf("%s: Error - %v", path, err)
		}
		contents = append(contents, mcp.Content{
			Type: mcp.ContentTypeText,
			Text: text,
		})
	}

	return mcp.CallToolResult{Content: contents}, nil
}

func readOneFile(path string, roots []string) (string, error) {
	validPath, err := validatePath(path, roots)
	if err != nil {
		return "", err
	}
	bs, err := os.ReadFile(validPath)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:\n%s\n", path, bs), nil
}

func (s *Server) writeFile(_ context.Context, _ *mcp.ServerSession, args WriteFileArgs) (mcp.CallToolResult, error) {
	validPath, err := validatePath(args.Path, s.roots)
	if err != nil {
		return mcp.CallToolResult{}, err
	}

	if err := os.WriteFile(validPath, []byte(args.Content), 0o600); err != nil {
		return mcp.CallToolResult{}, fmt.Errorf("write file %s: %w", args.Path, err)
	}

	return textResult(fmt.Sprintf("Successfully wrote to %s", args.Path)), nil
}

func (s *Server) editFile(_ context.Context, _ *mcp.ServerSession, args EditFileArgs) (mcp.CallToolResult, error) {
	validPath, err := validatePath(args.Path, s.roots)
	if err != nil {
		return mcp.CallToolResult{}, err
	}

	diff, err := applyFileEdits(validPath, args.Edits, args.DryRun)
	if err != nil {
		return mcp.CallToolResult{}, err
	}

	return textResult(diff), nil
}

func (s *Server) createDirectory(
	_ context.Context,
	_ *mcp.ServerSession,
	args CreateDirectoryArgs,
) (mcp.CallToolResult, error) {
	validPath, err := validatePath(args.Path, s.roots)
	if err != nil {
		return mcp.CallToolResult{}, err
	}

	if err := os.MkdirAll(validPath, 0o700); err != nil {
		return mcp.CallToolResult{}, fmt.Errorf("create directory %s: %w", args.Path, err)
	}

	return textResult(fmt.Sprintf("Successfully created directory %s", args.Path)), nil
}

func (s *Server) listDirectory(_ context.Context, _ *mcp.ServerSession, args ListDirectoryArgs) (mcp.CallToolResult, error) {
	validPath, err := validatePath(args.Path, s.roots)
	if err != nil {
		return mcp.CallToolResult{}, err
	}

	entries, err := os.ReadDir(validPath)
	if err != nil {
		return mcp.CallToolResult{}, fmt.Errorf("read directory %s: %w", args.Path, err)
	}

	contents := make([]mcp.Content, 0, len(entries))
	for _, entry := range entries {
		prefix := "[FILE]"
		if entry.IsDir() {
			prefix = "[DIR]"
		}
		contents = append(contents, mcp.Content{
			Type: mcp.ContentTypeText,
			Text: fmt.Sprintf("%s %s", prefix, entry.Name()),
		})
	}

	return mcp.CallToolResult{Content: contents}, nil
}

func (s *Server) directoryTree(_ context.Context, _ *mcp.ServerSession, args DirectoryTreeArgs) (mcp.CallToolResult, error) {
	tree, err := s.buildTree(args.Path)
	if err != nil {
		return mcp.CallToolResult{}, err
	}

	bs, err := json.MarshalIndent(tree, "", "  ")
	if err != nil {
		return mcp.CallToolResult{}, fmt.Errorf("encode directory tree: %w", err)
	}

	return textResult(string(bs)), nil
}

func (s *Server) buildTree(path string) ([]treeEntry, error) {
	validPath, err := validatePath(path, s.roots)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(validPath)
	if err != nil {
		return nil, fmt.Errorf("read directory %s: %w", path, err)
	}

	tree := make([]treeEntry, 0, len(entries))
	for _, entry := range entries {
		if entry.Name() == ".git" {
			continue
		}

		node := treeEntry{
			Name: entry.Name(),
			Type: "file",
		}
		if entry.IsDir() {
			node.Type = "directory"
			children, err := s.buildTree(filepath.Join(path, entry.Name()))
			if err != nil {
				return nil, err
			}
			node.Children = children
		}
		tree = append(tree, node)
	}

	return tree, nil
}

func (s *Server) moveFile(_ context.Context, _ *mcp.ServerSession, args MoveFileArgs) (mcp.CallToolResult, error) {
	validSource, err := validatePath(args.Source, s.roots)
	if err != nil {
		return mcp.CallToolResult{}, err
	}
	validDestination, err := validatePath(args.Destination, s.roots)
	if err != nil {
		return mcp.CallToolResult{}, err
	}

	if _, err := os.Stat(validDestination); err == nil {
		return mcp.CallToolResult{}, fmt.Errorf("destination %s already exists", args.Destination)
	}

	if err := os.Rename(validSource, validDestination); err != nil {
		return mcp.CallToolResult{}, fmt.Errorf("move %s to %s: %w", args.Source, args.Destination, err)
	}

	return textResult(fmt.Sprintf("Successfully moved %s to %s", args.Source, args.Destination)), nil
}

func (s *Server) searchFiles(ctx context.Context, _ *mcp.ServerSession, args SearchFilesArgs) (mcp.CallToolResult, error) {
	validPath, err := validatePath(args.Path, s.roots)
	if err != nil {
		return mcp.CallToolResult{}, err
	}

	matches, err := searchPaths(ctx, s.roots, validPath, args.Pattern, args.Exclude)
	if err != nil {
		return mcp.CallToolResult{}, fmt.Errorf("search files: %w", err)
	}

	if len(matches) == 0 {
		return textResult("No matches found"), nil
	}

	contents := make([]mcp.Content, 0, len(matches))
	for _, match := range matches {
		contents = append(contents, mcp.Content{
			Type: mcp.ContentTypeText,
			Text: match,
		})
	}
	return mcp.CallToolResult{Content: contents}, nil
}

func (s *Server) getFileInfo(_ context.Context, _ *mcp.ServerSession, args GetFileInfoArgs) (mcp.CallToolResult, error) {
	validPath, err := validatePath(args.Path, s.roots)
	if err != nil {
		return mcp.CallToolResult{}, err
	}

	info, err := os.Stat(validPath)
	if err != nil {
		return mcp.CallToolResult{}, fmt.Errorf("stat %s: %w", args.Path, err)
	}

	bs, err := json.MarshalIndent(fileInfo{
		Size:        info.Size(),
		Created:     info.ModTime().Format("2006-01-02 15:04:05"),
		Modified:    info.ModTime().Format("2006-01-02 15:04:05"),
		IsDirectory: info.IsDir(),
		IsFile:      info.Mode().IsRegular(),
		Permissions: info.Mode().Perm().String(),
	}, "", "  ")
	if err != nil {
		return mcp.CallToolResult{}, fmt.Errorf("encode file info: %w", err)
	}

	return textResult(string(bs)), nil
}

func (s *Server) listAllowedDirectories(
	_ context.Context,
	_ *mcp.ServerSession,
	_ mcp.CallToolParams,
) (mcp.CallToolResult, error) {
	contents := make([]mcp.Content, 0, len(s.roots))
	for _, root := range s.roots {
		contents = append(contents, mcp.Content{
			Type: mcp.ContentTypeText,
			Text: root,
		})
	}
	return mcp.CallToolResult{Content: contents}, nil
}

func textResult(text string) mcp.CallToolResult {
	return mcp.CallToolResult{
		Content: []mcp.Content{
			{
				Type: mcp.ContentTypeText,
				Text: text,
			},
		},
	}
}
