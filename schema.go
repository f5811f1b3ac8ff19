package mcp

import (
	"encoding/json"
	"fmt"
)

// Method names for client-to-server requests.
const (
	MethodPromptsList            = "prompts/list"
	MethodPromptsGet             = "prompts/get"
	MethodResourcesList          = "resources/list"
	MethodResourcesRead          = "resources/read"
	MethodResourcesTemplatesList = "resources/templates/list"
	MethodResourcesSubscribe     = "resources/subscribe"
	MethodResourcesUnsubscribe   = "resources/unsubscribe"
	MethodToolsList              = "tools/list"
	MethodToolsCall              = "tools/call"
	MethodCompletionComplete     = "completion/complete"
	MethodLoggingSetLevel        = "logging/setLevel"
)

// Method names for server-to-client requests.
const (
	MethodRootsList             = "roots/list"
	MethodSamplingCreateMessage = "sampling/createMessage"
)

const (
	methodPing       = "ping"
	methodInitialize = "initialize"

	methodNotificationsInitialized          = "notifications/initialized"
	methodNotificationsCancelled            = "notifications/cancelled"
	methodNotificationsPromptsListChanged   = "notifications/prompts/list_changed"
	methodNotificationsResourcesListChanged = "notifications/resources/list_changed"
	methodNotificationsResourcesUpdated     = "notifications/resources/updated"
	methodNotificationsToolsListChanged     = "notifications/tools/list_changed"
	methodNotificationsProgress             = "notifications/progress"
	methodNotificationsMessage              = "notifications/message"
	methodNotificationsRootsListChanged     = "notifications/roots/list_changed"
)

const (
	protocolVersion = "2024-11-05"

	userCancelledReason = "user_cancelled"
)

// CompletionRefPrompt and CompletionRefResource identify what a completion
// request refers to.
const (
	CompletionRefPrompt   = "ref/prompt"
	CompletionRefResource = "ref/resource"
)

// ContentType represents the type of content in messages.
type ContentType string

// Content types for messages exchanged between client and server.
const (
	ContentTypeText     ContentType = "text"
	ContentTypeImage    ContentType = "image"
	ContentTypeResource ContentType = "resource"
)

// Role represents the sender of a prompt or sampling message.
type Role string

// Roles for prompt and sampling messages.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// LogLevel represents the severity level of log messages, following syslog
// severity with the least severe first.
type LogLevel int

// Log levels accepted by logging/setLevel and carried by message
// notifications.
const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelNotice
	LogLevelWarning
	LogLevelError
	LogLevelCritical
	LogLevelAlert
	LogLevelEmergency
)

// Info contains metadata about a client or server implementation.
type Info struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ParamsMeta carries optional metadata attached to request parameters, most
// notably the progress token the receiver uses when reporting progress for
// the request.
type ParamsMeta struct {
	ProgressToken MustString `json:"progressToken,omitempty"`
}

type initializeParams struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ClientCapabilities `json:"capabilities"`
	ClientInfo      Info               `json:"clientInfo"`
}

type initializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ServerCapabilities `json:"capabilities"`
	ServerInfo      Info               `json:"serverInfo"`
	Instructions    string             `json:"instructions,omitempty"`
}

// ClientCapabilities declares the optional protocol features a client
// supports. A nil field means the feature is unsupported and requests
// depending on it must not be sent to this client.
type ClientCapabilities struct {
	Roots    *RootsCapability    `json:"roots,omitempty"`
	Sampling *SamplingCapability `json:"sampling,omitempty"`
}

// RootsCapability describes the client's filesystem roots support.
type RootsCapability struct {
	ListChanged bool `json:"listChanged"`
}

// SamplingCapability indicates the client accepts sampling requests. Its
// presence alone declares the capability.
type SamplingCapability struct{}

// ServerCapabilities declares the optional protocol features a server
// supports. A nil field means the corresponding method group is unavailable.
type ServerCapabilities struct {
	Prompts   *PromptsCapability   `json:"prompts,omitempty"`
	Resources *ResourcesCapability `json:"resources,omitempty"`
	Tools     *ToolsCapability     `json:"tools,omitempty"`
	Logging   *LogCapability       `json:"logging,omitempty"`
}

// PromptsCapability describes the server's prompts support.
type PromptsCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

// ResourcesCapability describes the server's resources support.
type ResourcesCapability struct {
	Subscribe   bool `json:"subscribe,omitempty"`
	ListChanged bool `json:"listChanged,omitempty"`
}

// ToolsCapability describes the server's tools support.
type ToolsCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

// LogCapability indicates the server emits log notifications. Its presence
// alone declares the capability.
type LogCapability struct{}

// Prompt defines a template for generating prompts with optional arguments.
// Servers expose prompts so clients can discover and render them.
type Prompt struct {
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Arguments   []PromptArgument `json:"arguments,omitempty"`
}

// PromptArgument defines a single argument that can be passed to a prompt.
type PromptArgument struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required,omitempty"`
}

// PromptMessage represents one message in a rendered prompt.
type PromptMessage struct {
	Role    Role    `json:"role"`
	Content Content `json:"content"`
}

// Content represents message content with its type. Text is set for
// ContentTypeText, Data holds base64-encoded binary for ContentTypeImage, and
// Resource is set for ContentTypeResource.
type Content struct {
	Type ContentType `json:"type"`

	Text     string            `json:"text,omitempty"`
	Data     string            `json:"data,omitempty"`
	MimeType string            `json:"mimeType,omitempty"`
	Resource *ResourceContents `json:"resource,omitempty"`
}

// ListPromptsParams contains parameters for listing available prompts.
type ListPromptsParams struct {
	// Cursor is an optional pagination cursor from a previous list call.
	// Empty string requests the first page.
	Cursor string `json:"cursor,omitempty"`

	// Meta carries optional metadata, including the progress token.
	Meta ParamsMeta `json:"_meta,omitempty"`
}

// ListPromptResult represents one page of available prompts.
type ListPromptResult struct {
	Prompts []Prompt `json:"prompts"`

	// NextCursor, when non-empty, fetches the next page when passed as
	// Cursor in a subsequent list call.
	NextCursor string `json:"nextCursor,omitempty"`
}

// GetPromptParams contains parameters for retrieving a rendered prompt.
type GetPromptParams struct {
	Name      string            `json:"name"`
	Arguments map[string]string `json:"arguments,omitempty"`
	Meta      ParamsMeta        `json:"_meta,omitempty"`
}

// GetPromptResult represents a rendered prompt.
type GetPromptResult struct {
	Description string          `json:"description,omitempty"`
	Messages    []PromptMessage `json:"messages"`
}

// CompletesCompletionParams contains parameters for completing an argument of
// a prompt or resource template.
type CompletesCompletionParams struct {
	Ref      CompletionRef      `json:"ref"`
	Argument CompletionArgument `json:"argument"`
}

// CompletionRef identifies the target of a completion request. Type must be
// CompletionRefPrompt or CompletionRefResource; Name is set for prompts and
// URI for resource templates.
type CompletionRef struct {
	Type string `json:"type"`
	Name string `json:"name,omitempty"`
	URI  string `json:"uri,omitempty"`
}

// CompletionArgument is the argument being completed and the partial value
// typed so far.
type CompletionArgument struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// CompletionResult represents the matching values for a completion request.
type CompletionResult struct {
	Completion struct {
		Values  []string `json:"values"`
		Total   int      `json:"total,omitempty"`
		HasMore bool     `json:"hasMore,omitempty"`
	} `json:"completion"`
}

// Resource describes a content resource with associated metadata. The content
// itself is fetched separately via resources/read.
type Resource struct {
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

// ResourceContents holds the content of a resource. Text resources populate
// Text, binary resources populate Blob with base64-encoded data.
type ResourceContents struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType,omitempty"`
	Text     string `json:"text,omitempty"`
	Blob     string `json:"blob,omitempty"`
}

// ResourceTemplate defines a URI template for parameterized resources.
type ResourceTemplate struct {
	URITemplate string `json:"uriTemplate"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

// ListResourcesParams contains parameters for listing available resources.
type ListResourcesParams struct {
	Cursor string     `json:"cursor,omitempty"`
	Meta   ParamsMeta `json:"_meta,omitempty"`
}

// ListResourcesResult represents one page of available resources.
type ListResourcesResult struct {
	Resources  []Resource `json:"resources"`
	NextCursor string     `json:"nextCursor,omitempty"`
}

// ReadResourceParams contains parameters for reading a resource.
type ReadResourceParams struct {
	URI  string     `json:"uri"`
	Meta ParamsMeta `json:"_meta,omitempty"`
}

// ReadResourceResult represents the contents of a read resource. A single URI
// may expand to multiple contents entries.
type ReadResourceResult struct {
	Contents []ResourceContents `json:"contents"`
}

// ListResourceTemplatesParams contains parameters for listing resource
// templates.
type ListResourceTemplatesParams struct {
	Meta ParamsMeta `json:"_meta,omitempty"`
}

// ListResourceTemplatesResult represents the available resource templates.
type ListResourceTemplatesResult struct {
	Templates []ResourceTemplate `json:"resourceTemplates"`
}

// SubscribeResourceParams contains parameters for subscribing to updates of a
// resource.
type SubscribeResourceParams struct {
	URI string `json:"uri"`
}

// UnsubscribeResourceParams contains parameters for unsubscribing from
// updates of a resource.
type UnsubscribeResourceParams struct {
	URI string `json:"uri"`
}

// Tool defines a callable tool. InputSchema must be a valid JSON Schema
// describing the tool's arguments object; arguments are validated against it
// before the tool runs.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}

// ListToolsParams contains parameters for listing available tools.
type ListToolsParams struct {
	Cursor string     `json:"cursor,omitempty"`
	Meta   ParamsMeta `json:"_meta,omitempty"`
}

// ListToolsResult represents one page of available tools.
type ListToolsResult struct {
	Tools      []Tool `json:"tools"`
	NextCursor string `json:"nextCursor,omitempty"`
}

// CallToolParams contains parameters for executing a tool.
type CallToolParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
	Meta      ParamsMeta      `json:"_meta,omitempty"`
}

// CallToolResult represents the outcome of a tool execution. A failure inside
// the tool sets IsError and describes the failure in Content, while the
// protocol exchange itself still succeeds.
type CallToolResult struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError"`
}

// Root represents a filesystem root the client exposes to the server.
type Root struct {
	URI  string `json:"uri"`
	Name string `json:"name,omitempty"`
}

// RootList represents the client's current set of roots.
type RootList struct {
	Roots []Root `json:"roots"`
}

// SamplingParams asks the client to sample a message from its language model.
// The client stays in control of model access and may alter or refuse the
// request.
type SamplingParams struct {
	Messages         []SamplingMessage        `json:"messages"`
	ModelPreferences SamplingModelPreferences `json:"modelPreferences"`
	SystemPrompt     string                   `json:"systemPrompt,omitempty"`
	MaxTokens        int                      `json:"maxTokens"`
}

// SamplingMessage represents a message in the sampling conversation history.
type SamplingMessage struct {
	Role    Role            `json:"role"`
	Content SamplingContent `json:"content"`
}

// SamplingContent represents the content of a sampling message, either text
// or a base64-encoded image.
type SamplingContent struct {
	Type ContentType `json:"type"`

	Text     string `json:"text,omitempty"`
	Data     string `json:"data,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
}

// SamplingModelPreferences hints at the server's model selection priorities.
// Priorities range from 0 to 1, higher meaning more important.
type SamplingModelPreferences struct {
	Hints                []SamplingModelHint `json:"hints,omitempty"`
	CostPriority         float64             `json:"costPriority,omitempty"`
	SpeedPriority        float64             `json:"speedPriority,omitempty"`
	IntelligencePriority float64             `json:"intelligencePriority,omitempty"`
}

// SamplingModelHint suggests a model by name or family.
type SamplingModelHint struct {
	Name string `json:"name"`
}

// SamplingResult represents the message sampled by the client, along with the
// model that produced it.
type SamplingResult struct {
	Role       Role            `json:"role"`
	Content    SamplingContent `json:"content"`
	Model      string          `json:"model"`
	StopReason string          `json:"stopReason,omitempty"`
}

// SetLogLevelParams adjusts the minimum severity of log notifications the
// server sends.
type SetLogLevelParams struct {
	Level LogLevel `json:"level"`
}

// LogParams is the payload of a log message notification.
type LogParams struct {
	Level  LogLevel        `json:"level"`
	Logger string          `json:"logger,omitempty"`
	Data   json.RawMessage `json:"data"`
}

// ProgressParams is the payload of a progress notification for a long-running
// request. The token ties the notification back to the originating request.
type ProgressParams struct {
	ProgressToken MustString `json:"progressToken"`
	Progress      float64    `json:"progress"`
	Total         float64    `json:"total,omitempty"`
}

type notificationsCancelledParams struct {
	RequestID string `json:"requestId"`
	Reason    string `json:"reason,omitempty"`
}

type notificationsResourcesUpdatedParams struct {
	URI string `json:"uri"`
}

// String returns the lowercase protocol string of the log level.
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "debug"
	case LogLevelInfo:
		return "info"
	case LogLevelNotice:
		return "notice"
	case LogLevelWarning:
		return "warning"
	case LogLevelError:
		return "error"
	case LogLevelCritical:
		return "critical"
	case LogLevelAlert:
		return "alert"
	case LogLevelEmergency:
		return "emergency"
	}
	return ""
}

// MarshalJSON encodes the log level as its protocol string.
func (l LogLevel) MarshalJSON() ([]byte, error) {
	s := l.String()
	if s == "" {
		return nil, fmt.Errorf("invalid log level: %d", int(l))
	}
	return json.Marshal(s)
}

// UnmarshalJSON decodes a protocol string into a log level.
func (l *LogLevel) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	switch s {
	case "debug":
		*l = LogLevelDebug
	case "info":
		*l = LogLevelInfo
	case "notice":
		*l = LogLevelNotice
	case "warning":
		*l = LogLevelWarning
	case "error":
		*l = LogLevelError
	case "critical":
		*l = LogLevelCritical
	case "alert":
		*l = LogLevelAlert
	case "emergency":
		*l = LogLevelEmergency
	default:
		return fmt.Errorf("invalid log level: %s", s)
	}
	return nil
}
