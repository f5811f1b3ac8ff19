package everything

import (
	"context"
	"fmt"
	"strings"

	"github.com/tidemill/go-mcp"
)

var promptList = []mcp.Prompt{
	{
		Name:        "simple_prompt",
		Description: "A prompt without arguments",
	},
	{
		Name:        "complex_prompt",
		Description: "A prompt with arguments",
		Arguments: []mcp.PromptArgument{
			{
				Name:        "temperature",
				Description: "Temperature setting",
				Required:    true,
			},
			{
				Name:        "style",
				Description: "Output style",
			},
		},
	},
}

var promptCompletions = map[string][]string{
	"style":       {"casual", "formal", "technical", "friendly"},
	"temperature": {"0", "0.5", "0.7", "1.0"},
}

// ListPrompts implements mcp.PromptServer.
func (s *Server) ListPrompts(
	_ context.Context,
	_ *mcp.ServerSession,
	params mcp.ListPromptsParams,
) (mcp.ListPromptResult, error) {
	s.log(fmt.Sprintf("ListPrompts: cursor %q", params.Cursor), mcp.LogLevelDebug)

	prompts, nextCursor, err := pageOf(promptList, params.Cursor)
	if err != nil {
		return mcp.ListPromptResult{}, err
	}

	return mcp.ListPromptResult{
		Prompts:    prompts,
		NextCursor: nextCursor,
	}, nil
}

// GetPrompt implements mcp.PromptServer.
func (s *Server) GetPrompt(
	_ context.Context,
	_ *mcp.ServerSession,
	params mcp.GetPromptParams,
) (mcp.GetPromptResult, error) {
	s.log(fmt.Sprintf("GetPrompt: %s", params.Name), mcp.LogLevelDebug)

	switch params.Name {
	case "simple_prompt":
		return mcp.GetPromptResult{
			Description: "A simple prompt",
			Messages: []mcp.PromptMessage{
				{
					Role: mcp.RoleUser,
					Content: mcp.Content{
						Type: mcp.ContentTypeText,
						Text: "This is a simple prompt without arguments.",
					},
				},
			},
		}, nil
	case "complex_prompt":
		return mcp.GetPromptResult{
			Description: "A complex prompt",
			Messages: []mcp.PromptMessage{
				{
					Role: mcp.RoleUser,
					Content: mcp.Content{
						Type: mcp.ContentTypeText,
						Text: fmt.Sprintf("This is a complex prompt with arguments: temperature=%s, style=%s",
							params.Arguments["temperature"], params.Arguments["style"]),
					},
				},
				{
					Role: mcp.RoleAssistant,
					Content: mcp.Content{
						Type: mcp.ContentTypeText,
						Text: "I understand. You've provided a complex prompt with temperature and style arguments. " +
							"How would you like me to proceed?",
					},
				},
				{
					Role: mcp.RoleUser,
					Content: mcp.Content{
						Type:     mcp.ContentTypeImage,
						Data:     tinyImageData,
						MimeType: "image/png",
					},
				},
			},
		}, nil
	default:
		return mcp.GetPromptResult{}, fmt.Errorf("prompt not found: %s", params.Name)
	}
}

// CompletesPrompt implements mcp.PromptServer.
func (s *Server) CompletesPrompt(
	_ context.Context,
	_ *mcp.ServerSession,
	params mcp.CompletesCompletionParams,
) (mcp.CompletionResult, error) {
	s.log(fmt.Sprintf("CompletesPrompt: %s", params.Argument.Name), mcp.LogLevelDebug)

	var result mcp.CompletionResult
	values := completeValues(promptCompletions[params.Argument.Name], params.Argument.Value)
	result.Completion.Values = values
	result.Completion.Total = len(values)
	return result, nil
}

func completeValues(candidates []string, prefix string) []string {
	var values []string
	for _, candidate := range candidates {
		if strings.HasPrefix(candidate, prefix) {
			values = append(values, candidate)
		}
	}
	return values
}
