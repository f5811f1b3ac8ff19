package everything

import (
	"context"
	"encoding/base64"
	"fmt"
	"iter"
	"time"

	"github.com/tidemill/go-mcp"
)

var resourceCompletions = map[string][]string{
	"id": {"1", "2", "3", "4", "5"},
}

// genResources produces the 100 static test resources, alternating between
// plain text and base64 blobs.
func genResources() ([]mcp.Resource, map[string]mcp.ResourceContents) {
	resources := make([]mcp.Resource, 0, 100)
	contents := make(map[string]mcp.ResourceContents, 100)

	for i := range 100 {
		uri := fmt.Sprintf("test://static/resource/%d", i+1)
		name := fmt.Sprintf("Resource %d", i+1)

		if i%2 == 0 {
			resources = append(resources, mcp.Resource{
				URI:      uri,
				Name:     name,
				MimeType: "text/plain",
			})
			contents[uri] = mcp.ResourceContents{
				URI:      uri,
				MimeType: "text/plain",
				Text:     fmt.Sprintf("Resource %d: This is a plain text resource", i+1),
			}
			continue
		}

		blob := fmt.Sprintf("Resource %d: This is a base64 blob", i+1)
		resources = append(resources, mcp.Resource{
			URI:      uri,
			Name:     name,
			MimeType: "application/octet-stream",
		})
		contents[uri] = mcp.ResourceContents{
			URI:      uri,
			MimeType: "application/octet-stream",
			Blob:     base64.StdEncoding.EncodeToString([]byte(blob)),
		}
	}

	return resources, contents
}

// ListResources implements mcp.ResourceServer.
func (s *Server) ListResources(
	_ context.Context,
	_ *mcp.ServerSession,
	params mcp.ListResourcesParams,
) (mcp.ListResourcesResult, error) {
	s.log(fmt.Sprintf("ListResources: cursor %q", params.Cursor), mcp.LogLevelDebug)

	resources, nextCursor, err := pageOf(s.resources, params.Cursor)
	if err != nil {
		return mcp.ListResourcesResult{}, err
	}

	return mcp.ListResourcesResult{
		Resources:  resources,
		NextCursor: nextCursor,
	}, nil
}

// ReadResource implements mcp.ResourceServer.
func (s *Server) ReadResource(
	_ context.Context,
	_ *mcp.ServerSession,
	params mcp.ReadResourceParams,
) (mcp.ReadResourceResult, error) {
	s.log(fmt.Sprintf("ReadResource: %s", params.URI), mcp.LogLevelDebug)

	contents, ok := s.contents[params.URI]
	if !ok {
		return mcp.ReadResourceResult{}, fmt.Errorf("resource not found: %s", params.URI)
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
	s.log("ListResourceTemplates", mcp.LogLevelDebug)

	return mcp.ListResourceTemplatesResult{
		Templates: []mcp.ResourceTemplate{
			{
				URITemplate: "test://static/resource/{id}",
				Name:        "Static Resource",
				Description: "A static resource with a numeric ID",
			},
		},
	}, nil
}

// CompletesResourceTemplate implements mcp.ResourceServer.
func (s *Server) CompletesResourceTemplate(
	_ context.Context,
	_ *mcp.ServerSession,
	params mcp.CompletesCompletionParams,
) (mcp.CompletionResult, error) {
	s.log(fmt.Sprintf("CompletesResourceTemplate: %s", params.Argument.Name), mcp.LogLevelDebug)

	var result mcp.CompletionResult
	values := completeValues(resourceCompletions[params.Argument.Name], params.Argument.Value)
	result.Completion.Values = values
	result.Completion.Total = len(values)
	return result, nil
}

// SubscribeResource implements mcp.ResourceSubscriptionHandler.
func (s *Server) SubscribeResource(params mcp.SubscribeResourceParams) {
	s.log(fmt.Sprintf("SubscribeResource: %s", params.URI), mcp.LogLevelDebug)

	s.subscribers.Store(params.URI, struct{}{})
}

// UnsubscribeResource implements mcp.ResourceSubscriptionHandler.
func (s *Server) UnsubscribeResource(params mcp.UnsubscribeResourceParams) {
	s.log(fmt.Sprintf("UnsubscribeResource: %s", params.URI), mcp.LogLevelDebug)

	s.subscribers.Delete(params.URI)
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

// simulateResourceUpdates reports every subscribed resource as updated once
// per interval, giving clients subscription traffic to test against.
func (s *Server) simulateResourceUpdates() {
	defer close(s.tickerDone)

	ticker := time.NewTicker(s.updateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
		}

		s.subscribers.Range(func(key, _ any) bool {
			uri, _ := key.(string)

			select {
			case s.subUpdates <- uri:
				return true
			case <-s.done:
				return false
			}
		})
	}
}
