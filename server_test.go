package mcp_test

import (
	"context"
	"errors"
	"iter"
	"slices"
	"strings"
	"sync"
	"time"

	mcp "github.com/tidemill/go-mcp"
)

type mockPromptServer struct {
	lock            sync.Mutex
	listParams      mcp.ListPromptsParams
	getParams       mcp.GetPromptParams
	completesParams mcp.CompletesCompletionParams
}

type mockPromptListUpdater struct {
	ch   chan struct{}
	done chan struct{}
}

type mockResourceServer struct {
	listDelay time.Duration

	lock                    sync.Mutex
	listParams              mcp.ListResourcesParams
	readParams              mcp.ReadResourceParams
	listTemplatesParams     mcp.ListResourceTemplatesParams
	completesTemplateParams mcp.CompletesCompletionParams
}

type mockResourceListUpdater struct {
	ch   chan struct{}
	done chan struct{}
}

type mockResourceSubscriptionHandler struct {
	lock              sync.Mutex
	subscribeParams   mcp.SubscribeResourceParams
	unsubscribeParams mcp.UnsubscribeResourceParams

	ch   chan string
	done chan struct{}
}

type mockLogHandler struct {
	lock  sync.Mutex
	level mcp.LogLevel

	params chan mcp.LogParams
	done   chan struct{}
}

type rootsRecorder struct {
	lock  sync.Mutex
	calls [][]mcp.Root
}

func (m *mockPromptServer) ListPrompts(
	ctx context.Context,
	sess *mcp.ServerSession,
	params mcp.ListPromptsParams,
) (mcp.ListPromptResult, error) {
	m.lock.Lock()
	m.listParams = params
	m.lock.Unlock()

	if params.Meta.ProgressToken != "" {
		for i := range 10 {
			_ = sess.ReportProgress(ctx, mcp.ProgressParams{
				ProgressToken: params.Meta.ProgressToken,
				Progress:      float64(i) / 10,
				Total:         10,
			})
		}
	}

	return mcp.ListPromptResult{
		Prompts: []mcp.Prompt{{Name: "test-prompt"}},
	}, nil
}

func (m *mockPromptServer) GetPrompt(
	_ context.Context,
	_ *mcp.ServerSession,
	params mcp.GetPromptParams,
) (mcp.GetPromptResult, error) {
	m.lock.Lock()
	m.getParams = params
	m.lock.Unlock()

	return mcp.GetPromptResult{
		Messages: []mcp.PromptMessage{
			{
				Role:    mcp.RoleAssistant,
				Content: mcp.Content{Type: mcp.ContentTypeText, Text: "Test prompt"},
			},
		},
	}, nil
}

func (m *mockPromptServer) CompletesPrompt(
	_ context.Context,
	_ *mcp.ServerSession,
	params mcp.CompletesCompletionParams,
) (mcp.CompletionResult, error) {
	m.lock.Lock()
	m.completesParams = params
	m.lock.Unlock()

	var result mcp.CompletionResult
	result.Completion.Values = []string{"test-value"}
	return result, nil
}

func (m *mockPromptServer) lastListParams() mcp.ListPromptsParams {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.listParams
}

func (m *mockPromptServer) lastGetParams() mcp.GetPromptParams {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.getParams
}

func (m *mockPromptServer) lastCompletesParams() mcp.CompletesCompletionParams {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.completesParams
}

func (m mockPromptListUpdater) PromptListUpdates() iter.Seq[struct{}] {
	return func(yield func(struct{}) bool) {
		for {
			select {
			case <-m.done:
				return
			case <-m.ch:
				if !yield(struct{}{}) {
					return
				}
			}
		}
	}
}

func (m *mockResourceServer) ListResources(
	ctx context.Context,
	_ *mcp.ServerSession,
	params mcp.ListResourcesParams,
) (mcp.ListResourcesResult, error) {
	if m.listDelay > 0 {
		select {
		case <-ctx.Done():
			return mcp.ListResourcesResult{}, ctx.Err()
		case <-time.After(m.listDelay):
		}
	}

	m.lock.Lock()
	m.listParams = params
	m.lock.Unlock()

	return mcp.ListResourcesResult{
		Resources: []mcp.Resource{{URI: "test://resource", Name: "Test Resource"}},
	}, nil
}

func (m *mockResourceServer) ReadResource(
	_ context.Context,
	_ *mcp.ServerSession,
	params mcp.ReadResourceParams,
) (mcp.ReadResourceResult, error) {
	m.lock.Lock()
	m.readParams = params
	m.lock.Unlock()

	return mcp.ReadResourceResult{
		Contents: []mcp.ResourceContents{
			{URI: params.URI, MimeType: "text/plain", Text: "test content"},
		},
	}, nil
}

func (m *mockResourceServer) ListResourceTemplates(
	_ context.Context,
	_ *mcp.ServerSession,
	params mcp.ListResourceTemplatesParams,
) (mcp.ListResourceTemplatesResult, error) {
	m.lock.Lock()
	m.listTemplatesParams = params
	m.lock.Unlock()

	return mcp.ListResourceTemplatesResult{
		Templates: []mcp.ResourceTemplate{
			{URITemplate: "test://resource/{name}", Name: "Test Template"},
		},
	}, nil
}

func (m *mockResourceServer) CompletesResourceTemplate(
	_ context.Context,
	_ *mcp.ServerSession,
	params mcp.CompletesCompletionParams,
) (mcp.CompletionResult, error) {
	m.lock.Lock()
	m.completesTemplateParams = params
	m.lock.Unlock()

	var result mcp.CompletionResult
	result.Completion.Values = []string{"test-template-value"}
	return result, nil
}

func (m *mockResourceServer) lastReadParams() mcp.ReadResourceParams {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.readParams
}

func (m mockResourceListUpdater) ResourceListUpdates() iter.Seq[struct{}] {
	return func(yield func(struct{}) bool) {
		for {
			select {
			case <-m.done:
				return
			case <-m.ch:
				if !yield(struct{}{}) {
					return
				}
			}
		}
	}
}

func (m *mockResourceSubscriptionHandler) SubscribeResource(params mcp.SubscribeResourceParams) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.subscribeParams = params
}

func (m *mockResourceSubscriptionHandler) UnsubscribeResource(params mcp.UnsubscribeResourceParams) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.unsubscribeParams = params
}

func (m *mockResourceSubscriptionHandler) SubscribedResourceUpdates() iter.Seq[string] {
	return func(yield func(string) bool) {
		for {
			select {
			case <-m.done:
				return
			case uri := <-m.ch:
				if !yield(uri) {
					return
				}
			}
		}
	}
}

func (m *mockResourceSubscriptionHandler) lastSubscribeParams() mcp.SubscribeResourceParams {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.subscribeParams
}

func (m *mockResourceSubscriptionHandler) lastUnsubscribeParams() mcp.UnsubscribeResourceParams {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.unsubscribeParams
}

func (m *mockLogHandler) LogStreams() iter.Seq[mcp.LogParams] {
	return func(yield func(mcp.LogParams) bool) {
		for {
			select {
			case <-m.done:
				return
			case params := <-m.params:
				if !yield(params) {
					return
				}
			}
		}
	}
}

func (m *mockLogHandler) SetLogLevel(level mcp.LogLevel) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.level = level
}

func (m *mockLogHandler) logLevel() mcp.LogLevel {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.level
}

func (r *rootsRecorder) handle(_ context.Context, _ *mcp.ServerSession, roots []mcp.Root) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.calls = append(r.calls, slices.Clone(roots))
	return nil
}

func (r *rootsRecorder) count() int {
	r.lock.Lock()
	defer r.lock.Unlock()
	return len(r.calls)
}

func (r *rootsRecorder) last() []mcp.Root {
	r.lock.Lock()
	defer r.lock.Unlock()
	if len(r.calls) == 0 {
		return nil
	}
	return slices.Clone(r.calls[len(r.calls)-1])
}

// rootsFanoutLog records which handler saw which roots list, in invocation
// order, across every handler sharing the log.
type rootsFanoutLog struct {
	lock    sync.Mutex
	entries []string
}

// handler returns a roots-change handler that records its invocation under
// the given name and optionally fails afterwards.
func (l *rootsFanoutLog) handler(name string, fail bool) mcp.RootsChangeHandler {
	return func(_ context.Context, _ *mcp.ServerSession, roots []mcp.Root) error {
		uris := make([]string, len(roots))
		for i, root := range roots {
			uris[i] = root.URI
		}
		l.lock.Lock()
		l.entries = append(l.entries, name+":"+strings.Join(uris, ","))
		l.lock.Unlock()

		if fail {
			return errors.New("handler rejected the update")
		}
		return nil
	}
}

func (l *rootsFanoutLog) count() int {
	l.lock.Lock()
	defer l.lock.Unlock()
	return len(l.entries)
}

func (l *rootsFanoutLog) snapshot() []string {
	l.lock.Lock()
	defer l.lock.Unlock()
	return slices.Clone(l.entries)
}
