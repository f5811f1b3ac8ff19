package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/tidemill/go-mcp"
	"github.com/tidemill/go-mcp/servers/everything"
)

// demoSampler answers sampling requests with a canned response, echoing the
// prompt so the round trip is visible in the output.
type demoSampler struct{}

func (demoSampler) CreateSampleMessage(_ context.Context, params mcp.SamplingParams) (mcp.SamplingResult, error) {
	prompt := ""
	if len(params.Messages) > 0 {
		prompt = params.Messages[0].Content.Text
	}
	return mcp.SamplingResult{
		Role: mcp.RoleAssistant,
		Content: mcp.SamplingContent{
			Type: mcp.ContentTypeText,
			Text: fmt.Sprintf("You asked: %q. This is a canned response.", prompt),
		},
		Model:      "demo-model",
		StopReason: "endTurn",
	}, nil
}

// notifications funnels server-pushed events into channels the tour can wait
// on.
type notifications struct {
	progress   chan mcp.ProgressParams
	subscribed chan string
	logs       chan mcp.LogParams
}

func newNotifications() *notifications {
	return &notifications{
		progress:   make(chan mcp.ProgressParams, 16),
		subscribed: make(chan string, 16),
		logs:       make(chan mcp.LogParams, 16),
	}
}

func (n *notifications) OnProgress(params mcp.ProgressParams) {
	n.progress <- params
}

func (n *notifications) OnResourceSubscribedChanged(uri string) {
	n.subscribed <- uri
}

func (n *notifications) OnLog(params mcp.LogParams) {
	n.logs <- params
}

// tour connects to the server and walks through every capability family,
// printing what comes back.
func tour(connectURL string, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	events := newNotifications()
	cli := mcp.NewClient(mcp.Info{
		Name:    "everything-client",
		Version: "1.0",
	}, mcp.NewSSEClient(connectURL, mcp.WithSSEClientLogger(logger)),
		mcp.WithSamplingHandler(demoSampler{}),
		mcp.WithProgressListener(events),
		mcp.WithResourceSubscribedWatcher(events),
		mcp.WithLogReceiver(events),
		mcp.WithClientLogger(logger),
	)
	defer cli.Close()

	if err := cli.Connect(ctx); err != nil {
		fmt.Printf("Failed to connect: %v\n", err)
		return
	}
	fmt.Printf("Connected to %s %s\n", cli.ServerInfo().Name, cli.ServerInfo().Version)
	fmt.Printf("Instructions: %s\n", cli.Instructions())

	step := func(name string, fn func() error) {
		fmt.Printf("\n--- %s ---\n", name)
		if err := fn(); err != nil {
			fmt.Printf("%s failed: %v\n", name, err)
		}
	}

	step("prompts", func() error {
		prompts, err := cli.ListPrompts(ctx, mcp.ListPromptsParams{})
		if err != nil {
			return err
		}
		for _, prompt := range prompts.Prompts {
			fmt.Printf("prompt %s: %s\n", prompt.Name, prompt.Description)
		}

		result, err := cli.GetPrompt(ctx, mcp.GetPromptParams{
			Name: "complex_prompt",
			Arguments: map[string]string{
				"temperature": "0.7",
				"style":       "formal",
			},
		})
		if err != nil {
			return err
		}
		for _, msg := range result.Messages {
			if msg.Content.Type == mcp.ContentTypeText {
				fmt.Printf("%s: %s\n", msg.Role, msg.Content.Text)
			} else {
				fmt.Printf("%s: [%s]\n", msg.Role, msg.Content.Type)
			}
		}

		completions, err := cli.CompletesPrompt(ctx, mcp.CompletesCompletionParams{
			Ref:      mcp.CompletionRef{Type: mcp.CompletionRefPrompt, Name: "complex_prompt"},
			Argument: mcp.CompletionArgument{Name: "style", Value: "f"},
		})
		if err != nil {
			return err
		}
		fmt.Printf("completions for style=f*: %v\n", completions.Completion.Values)
		return nil
	})

	step("resources", func() error {
		resources, err := cli.ListResources(ctx, mcp.ListResourcesParams{})
		if err != nil {
			return err
		}
		fmt.Printf("first page holds %d resources, next cursor %q\n",
			len(resources.Resources), resources.NextCursor)

		read, err := cli.ReadResource(ctx, mcp.ReadResourceParams{URI: "test://static/resource/1"})
		if err != nil {
			return err
		}
		fmt.Printf("resource 1: %s\n", read.Contents[0].Text)

		templates, err := cli.ListResourceTemplates(ctx, mcp.ListResourceTemplatesParams{})
		if err != nil {
			return err
		}
		for _, template := range templates.Templates {
			fmt.Printf("template %s: %s\n", template.Name, template.URITemplate)
		}
		return nil
	})

	step("subscriptions", func() error {
		uri := "test://static/resource/42"
		if err := cli.SubscribeResource(ctx, mcp.SubscribeResourceParams{URI: uri}); err != nil {
			return err
		}
		fmt.Printf("subscribed to %s, waiting for an update...\n", uri)

		select {
		case updated := <-events.subscribed:
			fmt.Printf("resource updated: %s\n", updated)
		case <-time.After(30 * time.Second):
			fmt.Println("no update within 30s")
		}
		return cli.UnsubscribeResource(ctx, mcp.UnsubscribeResourceParams{URI: uri})
	})

	step("tools", func() error {
		tools, err := cli.ListTools(ctx, mcp.ListToolsParams{})
		if err != nil {
			return err
		}
		for _, tool := range tools.Tools {
			fmt.Printf("tool %s\n", tool.Name)
		}

		echoArgs, err := json.Marshal(everything.EchoArgs{Message: "hello over SSE"})
		if err != nil {
			return err
		}
		echo, err := cli.CallTool(ctx, mcp.CallToolParams{Name: "echo", Arguments: echoArgs})
		if err != nil {
			return err
		}
		fmt.Printf("echo replied: %s\n", echo.Content[0].Text)

		addArgs, err := json.Marshal(everything.AddArgs{A: 2, B: 40})
		if err != nil {
			return err
		}
		sum, err := cli.CallTool(ctx, mcp.CallToolParams{Name: "add", Arguments: addArgs})
		if err != nil {
			return err
		}
		fmt.Printf("add replied: %s\n", sum.Content[0].Text)
		return nil
	})

	step("progress", func() error {
		args, err := json.Marshal(everything.LongRunningOperationArgs{Duration: 2, Steps: 4})
		if err != nil {
			return err
		}

		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				select {
				case params := <-events.progress:
					fmt.Printf("progress %v of %v\n", params.Progress, params.Total)
					if params.Progress >= params.Total {
						return
					}
				case <-ctx.Done():
					return
				}
			}
		}()

		result, err := cli.CallTool(ctx, mcp.CallToolParams{
			Name:      "longRunningOperation",
			Arguments: args,
			Meta:      mcp.ParamsMeta{ProgressToken: "tour-progress"},
		})
		if err != nil {
			return err
		}
		<-done
		fmt.Printf("operation replied: %s\n", result.Content[0].Text)
		return nil
	})

	step("sampling", func() error {
		args, err := json.Marshal(everything.SampleLLMArgs{Prompt: "What is the answer?", MaxTokens: 50})
		if err != nil {
			return err
		}
		result, err := cli.CallTool(ctx, mcp.CallToolParams{Name: "sampleLLM", Arguments: args})
		if err != nil {
			return err
		}
		fmt.Printf("sampleLLM replied: %s\n", result.Content[0].Text)
		return nil
	})

	step("logging", func() error {
		if err := cli.SetLogLevel(ctx, mcp.LogLevelDebug); err != nil {
			return err
		}
		// Trigger an operation so the server has something to log.
		if _, err := cli.ListPrompts(ctx, mcp.ListPromptsParams{}); err != nil {
			return err
		}

		select {
		case params := <-events.logs:
			fmt.Printf("server log [%s] %s: %s\n", params.Level, params.Logger, string(params.Data))
		case <-time.After(5 * time.Second):
			fmt.Println("no log message within 5s")
		}
		return nil
	})

	fmt.Println("\nTour complete.")
}
