package everything

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/tidemill/go-mcp"
)

// tinyImageData is a 1x1 transparent PNG, base64 encoded.
const tinyImageData = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR42mNkYAAAAAYAAjCB0C8AAAAASUVORK5CYII="

// EchoArgs are the arguments of the echo tool.
type EchoArgs struct {
	Message string `json:"message"`
}

// AddArgs are the arguments of the add tool.
type AddArgs struct {
	A float64 `json:"a"`
	B float64 `json:"b"`
}

// LongRunningOperationArgs are the arguments of the longRunningOperation
// tool.
type LongRunningOperationArgs struct {
	Duration float64 `json:"duration,omitempty"`
	Steps    float64 `json:"steps,omitempty"`
}

// SampleLLMArgs are the arguments of the sampleLLM tool.
type SampleLLMArgs struct {
	Prompt    string  `json:"prompt"`
	MaxTokens float64 `json:"maxTokens,omitempty"`
}

var longRunningOperationSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "duration": { "type": "number", "default": 10 },
    "steps": { "type": "number", "default": 5 }
  }
}`)

func (s *Server) registerTools() error {
	if err := mcp.AddTool(s.registry, "echo", "Echoes back the input", s.echo); err != nil {
		return err
	}
	if err := mcp.AddTool(s.registry, "add", "Adds two numbers", s.add); err != nil {
		return err
	}
	// longRunningOperation needs the raw call params for the progress token,
	// so it skips the typed constructor.
	err := s.registry.Add(mcp.Tool{
		Name:        "longRunningOperation",
		Description: "Demonstrates a long running operation with progress updates",
		InputSchema: longRunningOperationSchema,
	}, s.longRunningOperation)
	if err != nil {
		return err
	}
	err = s.registry.Add(mcp.Tool{
		Name:        "printEnv",
		Description: "Prints all environment variables, helpful for debugging MCP server configuration",
	}, s.printEnv)
	if err != nil {
		return err
	}
	if err := mcp.AddTool(s.registry, "sampleLLM", "Samples from an LLM using MCP's sampling feature", s.sampleLLM); err != nil {
		return err
	}
	return s.registry.Add(mcp.Tool{
		Name:        "getTinyImage",
		Description: "Returns a tiny test image",
	}, s.getTinyImage)
}

func (s *Server) echo(_ context.Context, _ *mcp.ServerSession, args EchoArgs) (mcp.CallToolResult, error) {
	s.log(fmt.Sprintf("echo: %s", args.Message), mcp.LogLevelDebug)

	return textResult(args.Message), nil
}

func (s *Server) add(_ context.Context, _ *mcp.ServerSession, args AddArgs) (mcp.CallToolResult, error) {
	s.log(fmt.Sprintf("add: %f + %f", args.A, args.B), mcp.LogLevelDebug)

	return textResult(fmt.Sprintf("The sum of %f and %f is %f", args.A, args.B, args.A+args.B)), nil
}

func (s *Server) longRunningOperation(
	ctx context.Context,
	sess *mcp.ServerSession,
	params mcp.CallToolParams,
) (mcp.CallToolResult, error) {
	args := LongRunningOperationArgs{Duration: 10, Steps: 5}
	if len(params.Arguments) > 0 {
		if err := json.Unmarshal(params.Arguments, &args); err != nil {
			return mcp.CallToolResult{}, fmt.Errorf("decode longRunningOperation arguments: %w", err)
		}
	}
	if args.Steps < 1 {
		args.Steps = 1
	}

	s.log(fmt.Sprintf("longRunningOperation: %f seconds in %f steps", args.Duration, args.Steps), mcp.LogLevelDebug)

	stepDuration := time.Duration(args.Duration / args.Steps * float64(time.Second))
	for i := range int(args.Steps) {
		select {
		case <-time.After(stepDuration):
		case <-ctx.Done():
			return mcp.CallToolResult{}, ctx.Err()
		}

		if params.Meta.ProgressToken == "" {
			continue
		}
		err := sess.ReportProgress(ctx, mcp.ProgressParams{
			ProgressToken: params.Meta.ProgressToken,
			Progress:      float64(i + 1),
			Total:         args.Steps,
		})
		if err != nil {
			return mcp.CallToolResult{}, err
		}
	}

	return textResult(fmt.Sprintf(
		"Long running operation completed. Duration: %f seconds, Steps: %f", args.Duration, args.Steps)), nil
}

func (s *Server) printEnv(_ context.Context, _ *mcp.ServerSession, _ mcp.CallToolParams) (mcp.CallToolResult, error) {
	return textResult(fmt.Sprintf("Environment variables:\n%s", strings.Join(os.Environ(), "\n"))), nil
}

func (s *Server) sampleLLM(ctx context.Context, sess *mcp.ServerSession, args SampleLLMArgs) (mcp.CallToolResult, error) {
	s.log(fmt.Sprintf("sampleLLM: %s", args.Prompt), mcp.LogLevelDebug)

	maxTokens := int(args.MaxTokens)
	if maxTokens == 0 {
		maxTokens = 100
	}

	result, err := sess.CreateSampleMessage(ctx, mcp.SamplingParams{
		Messages: []mcp.SamplingMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.SamplingContent{
					Type: mcp.ContentTypeText,
					Text: args.Prompt,
				},
			},
		},
		ModelPreferences: mcp.SamplingModelPreferences{
			CostPriority:         1,
			SpeedPriority:        2,
			IntelligencePriority: 3,
		},
		SystemPrompt: "You are a helpful assistant.",
		MaxTokens:    maxTokens,
	})
	if err != nil {
		return mcp.CallToolResult{}, err
	}

	return textResult(result.Content.Text), nil
}

func (s *Server) getTinyImage(_ context.Context, _ *mcp.ServerSession, _ mcp.CallToolParams) (mcp.CallToolResult, error) {
	return mcp.CallToolResult{
		Content: []mcp.Content{
			{
				Type:     mcp.ContentTypeImage,
				Data:     tinyImageData,
				MimeType: "image/png",
			},
		},
	}, nil
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
