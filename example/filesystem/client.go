package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/tidemill/go-mcp"
	"github.com/tidemill/go-mcp/servers/filesystem"
)

// client drives the filesystem tools from an interactive prompt. Every tool
// argument is asked for on stdin, the call result is printed, and the loop
// starts over until the user exits or interrupts.
type client struct {
	cli *mcp.Client

	ctx    context.Context
	cancel context.CancelFunc

	stdin *bufio.Scanner
}

func newClient(transport mcp.ClientTransport, logger *slog.Logger) *client {
	ctx, cancel := context.WithCancel(context.Background())

	cli := mcp.NewClient(mcp.Info{
		Name:    "filesystem-client",
		Version: "1.0",
	}, transport, mcp.WithClientLogger(logger))

	return &client{
		cli:    cli,
		ctx:    ctx,
		cancel: cancel,
		stdin:  bufio.NewScanner(os.Stdin),
	}
}

func (c *client) run(root string) {
	defer c.cli.Close()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	defer signal.Stop(sigChan)
	go func() {
		<-sigChan
		c.cancel()
	}()

	if err := c.cli.Connect(c.ctx); err != nil {
		fmt.Printf("Failed to connect to server: %v\n", err)
		return
	}
	fmt.Printf("Connected to %s, serving %s\n", c.cli.ServerInfo().Name, root)

	for {
		tools, err := c.cli.ListTools(c.ctx, mcp.ListToolsParams{})
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			fmt.Printf("Failed to list tools: %v\n", err)
			return
		}

		fmt.Println()
		for i, tool := range tools.Tools {
			fmt.Printf("%d. %s\n", i+1, tool.Name)
		}
		fmt.Println()
		fmt.Println("Type one of the commands:")
		fmt.Println("- call <tool number>: Call the tool with the given number, eg. call 1")
		fmt.Println("- desc <tool number>: Show the description of the tool with the given number, eg. desc 1")
		fmt.Println("- exit: Exit the program")

		input, err := c.ask("")
		if err != nil {
			return
		}
		if input == "exit" {
			return
		}

		fields := strings.Fields(input)
		if len(fields) != 2 {
			fmt.Printf("Unknown command: %s\n", input)
			continue
		}
		number, err := strconv.Atoi(fields[1])
		if err != nil || number < 1 || number > len(tools.Tools) {
			fmt.Printf("Invalid tool number: %s\n", fields[1])
			continue
		}
		tool := tools.Tools[number-1]

		switch fields[0] {
		case "call":
			if err := c.callTool(tool.Name); err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				fmt.Printf("Failed to call %s: %v\n", tool.Name, err)
			}
		case "desc":
			fmt.Printf("Description for tool %s:\n%s\n", tool.Name, tool.Description)
		default:
			fmt.Printf("Unknown command: %s\n", fields[0])
		}
	}
}

func (c *client) callTool(name string) error {
	args, err := c.askArgs(name)
	if err != nil {
		return err
	}

	data, err := json.Marshal(args)
	if err != nil {
		return err
	}
	result, err := c.cli.CallTool(c.ctx, mcp.CallToolParams{
		Name:      name,
		Arguments: data,
	})
	if err != nil {
		return err
	}

	if len(result.Content) == 0 {
		fmt.Println("No content returned")
		return nil
	}
	for _, content := range result.Content {
		fmt.Println(content.Text)
	}
	return nil
}

// askArgs collects the arguments of the named tool from stdin.
func (c *client) askArgs(name string) (any, error) {
	switch name {
	case "read_file":
		path, err := c.ask("Enter path to the file:")
		if err != nil {
			return nil, err
		}
		return filesystem.ReadFileArgs{Path: path}, nil

	case "read_multiple_files":
		input, err := c.ask("Enter paths to the files (comma-separated):")
		if err != nil {
			return nil, err
		}
		return filesystem.ReadMultipleFilesArgs{Paths: splitList(input)}, nil

	case "write_file":
		path, err := c.ask("Enter path to the file:")
		if err != nil {
			return nil, err
		}
		content, err := c.ask("Enter content:")
		if err != nil {
			return nil, err
		}
		return filesystem.WriteFileArgs{Path: path, Content: content}, nil

	case "edit_file":
		path, err := c.ask("Enter path to the file:")
		if err != nil {
			return nil, err
		}
		input, err := c.ask("Enter edits (old text:new text), separated by commas:")
		if err != nil {
			return nil, err
		}
		var edits []filesystem.EditOperation
		for _, edit := range splitList(input) {
			oldText, newText, ok := strings.Cut(edit, ":")
			if !ok {
				fmt.Printf("Skipping invalid edit: %s\n", edit)
				continue
			}
			edits = append(edits, filesystem.EditOperation{
				OldText: strings.TrimSpace(oldText),
				NewText: strings.TrimSpace(newText),
			})
		}
		return filesystem.EditFileArgs{Path: path, Edits: edits}, nil

	case "create_directory":
		path, err := c.ask("Enter path to the directory:")
		if err != nil {
			return nil, err
		}
		return filesystem.CreateDirectoryArgs{Path: path}, nil

	case "list_directory":
		path, err := c.ask("Enter path to the directory:")
		if err != nil {
			return nil, err
		}
		return filesystem.ListDirectoryArgs{Path: path}, nil

	case "directory_tree":
		path, err := c.ask("Enter path to the directory:")
		if err != nil {
			return nil, err
		}
		return filesystem.DirectoryTreeArgs{Path: path}, nil

	case "move_file":
		source, err := c.ask("Enter path to the source file:")
		if err != nil {
			return nil, err
		}
		destination, err := c.ask("Enter path to the destination file:")
		if err != nil {
			return nil, err
		}
		return filesystem.MoveFileArgs{Source: source, Destination: destination}, nil

	case "search_files":
		path, err := c.ask("Enter path to search from:")
		if err != nil {
			return nil, err
		}
		pattern, err := c.ask("Enter pattern:")
		if err != nil {
			return nil, err
		}
		exclude, err := c.ask("Enter exclude patterns (comma-separated, empty for none):")
		if err != nil {
			return nil, err
		}
		return filesystem.SearchFilesArgs{
			Path:    path,
			Pattern: pattern,
			Exclude: splitList(exclude),
		}, nil

	case "get_file_info":
		path, err := c.ask("Enter path to the file:")
		if err != nil {
			return nil, err
		}
		return filesystem.GetFileInfoArgs{Path: path}, nil

	default:
		// list_allowed_directories and anything added later take no
		// arguments.
		return struct{}{}, nil
	}
}

// ask prints the prompt and waits for one line of input. It fails with
// context.Canceled once the user interrupts the program.
func (c *client) ask(prompt string) (string, error) {
	if prompt != "" {
		fmt.Println(prompt)
	}

	inputChan := make(chan string, 1)
	errChan := make(chan error, 1)
	go func() {
		if c.stdin.Scan() {
			inputChan <- strings.TrimSpace(c.stdin.Text())
			return
		}
		if err := c.stdin.Err(); err != nil {
			errChan <- err
			return
		}
		errChan <- os.ErrClosed
	}()

	select {
	case <-c.ctx.Done():
		return "", context.Canceled
	case err := <-errChan:
		return "", err
	case input := <-inputChan:
		return input, nil
	}
}

func splitList(input string) []string {
	var items []string
	for _, item := range strings.Split(input, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			items = append(items, item)
		}
	}
	return items
}
