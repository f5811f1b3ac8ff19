package filesystem

// ReadFileArgs are the arguments of the read_file tool.
type ReadFileArgs struct {
	Path string `json:"path"`
}

// ReadMultipleFilesArgs are the arguments of the read_multiple_files tool.
type ReadMultipleFilesArgs struct {
	Paths []string `json:"paths"`
}

// WriteFileArgs are the arguments of the write_file tool.
type WriteFileArgs struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// EditFileArgs are the arguments of the edit_file tool.
type EditFileArgs struct {
	Path   string          `json:"path"`
	Edits  []EditOperation `json:"edits"`
	DryRun bool            `json:"dryRun,omitempty"`
}

// EditOperation replaces one occurrence of OldText with NewText.
type EditOperation struct {
	OldText string `json:"oldText"`
	NewText string `json:"newText"`
}

// CreateDirectoryArgs are the arguments of the create_directory tool.
type CreateDirectoryArgs struct {
	Path string `json:"path"`
}

// ListDirectoryArgs are the arguments of the list_directory tool.
type ListDirectoryArgs struct {
	Path string `json:"path"`
}

// DirectoryTreeArgs are the arguments of the directory_tree tool.
type DirectoryTreeArgs struct {
	Path string `json:"path"`
}

// MoveFileArgs are the arguments of the move_file tool.
type MoveFileArgs struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
}

// SearchFilesArgs are the arguments of the search_files tool.
type SearchFilesArgs struct {
	Path    string   `json:"path"`
	Pattern string   `json:"pattern"`
	Exclude []string `json:"excludePatterns,omitempty"`
}

// GetFileInfoArgs are the arguments of the get_file_info tool.
type GetFileInfoArgs struct {
	Path string `json:"path"`
}
