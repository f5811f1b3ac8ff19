package mcp_test

import (
	"context"
	"slices"
	"sync"

	mcp "github.com/tidemill/go-mcp"
)

type mockPromptListWatcher struct {
	lock        sync.Mutex
	updateCount int
}

type mockResourceListWatcher struct {
	lock        sync.Mutex
	updateCount int
}

type mockResourceSubscribedWatcher struct {
	lock sync.Mutex
	uris []string
}

type mockToolListWatcher struct {
	lock        sync.Mutex
	updateCount int
}

type mockSamplingHandler struct {
	lock   sync.Mutex
	called bool
}

type mockProgressListener struct {
	lock   sync.Mutex
	params []mcp.ProgressParams
}

type mockLogReceiver struct {
	lock   sync.Mutex
	params []mcp.LogParams
}

func (m *mockPromptListWatcher) OnPromptListChanged() {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.updateCount++
}

func (m *mockPromptListWatcher) count() int {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.updateCount
}

func (m *mockResourceListWatcher) OnResourceListChanged() {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.updateCount++
}

func (m *mockResourceListWatcher) count() int {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.updateCount
}

func (m *mockResourceSubscribedWatcher) OnResourceSubscribedChanged(uri string) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.uris = append(m.uris, uri)
}

func (m *mockResourceSubscribedWatcher) seen() []string {
	m.lock.Lock()
	defer m.lock.Unlock()
	return slices.Clone(m.uris)
}

func (m *mockToolListWatcher) OnToolListChanged() {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.updateCount++
}

func (m *mockToolListWatcher) count() int {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.updateCount
}

func (m *mockSamplingHandler) CreateSampleMessage(context.Context, mcp.SamplingParams) (mcp.SamplingResult, error) {
	m.lock.Lock()
	m.called = true
	m.lock.Unlock()

	return mcp.SamplingResult{
		Role: mcp.RoleAssistant,
		Content: mcp.SamplingContent{
			Type: mcp.ContentTypeText,
			Text: "Test response",
		},
		Model:      "test-model",
		StopReason: "endTurn",
	}, nil
}

func (m *mockSamplingHandler) wasCalled() bool {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.called
}

func (m *mockProgressListener) OnProgress(params mcp.ProgressParams) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.params = append(m.params, params)
}

func (m *mockProgressListener) count() int {
	m.lock.Lock()
	defer m.lock.Unlock()
	return len(m.params)
}

func (m *mockLogReceiver) OnLog(params mcp.LogParams) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.params = append(m.params, params)
}

func (m *mockLogReceiver) count() int {
	m.lock.Lock()
	defer m.lock.Unlock()
	return len(m.params)
}
