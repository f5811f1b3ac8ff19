package mcp_test

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	mcp "github.com/tidemill/go-mcp"
)

func TestSSEServerAndClient(t *testing.T) {
	mux := http.NewServeMux()
	testServer := httptest.NewServer(mux)

	server := mcp.NewSSEServer(testServer.URL + "/message")
	mux.Handle("/sse", server.HandleSSE())
	mux.Handle("/message", server.HandleMessage())
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			t.Logf("server forced to shutdown: %v", err)
		}
		testServer.Close()
	}()

	channels := make(chan mcp.Channel, 1)
	go func() {
		for channel := range server.Channels() {
			channels <- channel
		}
	}()

	client := mcp.NewSSEClient(testServer.URL+"/sse",
		mcp.WithSSEClientHTTPClient(testServer.Client()))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	clientChannel, err := client.Connect(ctx)
	if err != nil {
		t.Fatalf("failed to connect client: %v", err)
	}
	defer clientChannel.Close()

	var serverChannel mcp.Channel
	select {
	case serverChannel = <-channels:
	case <-ctx.Done():
		t.Fatal("timeout waiting for server channel")
	}
	defer serverChannel.Close()

	// The client adopts the session ID the server handed out in the endpoint
	// event.
	if clientChannel.ID() != serverChannel.ID() {
		t.Errorf("client channel ID = %q, server channel ID = %q, want equal",
			clientChannel.ID(), serverChannel.ID())
	}

	clientReceived := make(chan []byte, 1)
	go func() {
		for payload := range clientChannel.Receive() {
			clientReceived <- payload
			return
		}
	}()

	serverPayload := []byte(`{"jsonrpc":"2.0","method":"test","params":{"test":"hello"}}`)
	if err := serverChannel.Send(ctx, serverPayload); err != nil {
		t.Fatalf("failed to send server payload: %v", err)
	}

	select {
	case got := <-clientReceived:
		if !bytes.Equal(got, serverPayload) {
			t.Errorf("client received %s, want %s", got, serverPayload)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for client to receive payload")
	}

	serverReceived := make(chan []byte, 1)
	go func() {
		for payload := range serverChannel.Receive() {
			serverReceived <- payload
			return
		}
	}()

	clientPayload := []byte(`{"jsonrpc":"2.0","method":"response","params":{"response":"world"}}`)
	if err := clientChannel.Send(ctx, clientPayload); err != nil {
		t.Fatalf("failed to send client payload: %v", err)
	}

	select {
	case got := <-serverReceived:
		if !bytes.Equal(got, clientPayload) {
			t.Errorf("server received %s, want %s", got, clientPayload)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for server to receive payload")
	}
}

func TestSSEServerMultipleClients(t *testing.T) {
	mux := http.NewServeMux()
	testServer := httptest.NewServer(mux)

	server := mcp.NewSSEServer(testServer.URL + "/message")
	mux.Handle("/sse", server.HandleSSE())
	mux.Handle("/message", server.HandleMessage())
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			t.Logf("server forced to shutdown: %v", err)
		}
		testServer.Close()
	}()

	var channelCount int64
	go func() {
		for channel := range server.Channels() {
			atomic.AddInt64(&channelCount, 1)
			go func(channel mcp.Channel) {
				for range channel.Receive() {
				}
			}(channel)
		}
	}()

	var mu sync.Mutex
	clientChannels := make([]mcp.Channel, 0, 10)

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()

			client := mcp.NewSSEClient(testServer.URL+"/sse",
				mcp.WithSSEClientHTTPClient(testServer.Client()))

			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()

			channel, err := client.Connect(ctx)
			if err != nil {
				t.Errorf("failed to connect client: %v", err)
				return
			}

			mu.Lock()
			clientChannels = append(clientChannels, channel)
			mu.Unlock()
		}()
	}
	wg.Wait()

	waitCondition(t, 2*time.Second, func() bool {
		return atomic.LoadInt64(&channelCount) == 10
	}, "expected 10 server channels")

	mu.Lock()
	for _, channel := range clientChannels {
		channel.Close()
	}
	mu.Unlock()
}

func TestSSEConnectionNegativeCases(t *testing.T) {
	t.Run("InvalidConnectionURL", func(t *testing.T) {
		client := mcp.NewSSEClient("http://non-existent-url-12345.local/sse")

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		if _, err := client.Connect(ctx); err == nil {
			t.Fatal("expected an error when connecting to invalid URL, got nil")
		}
	})

	t.Run("MissingSessionID", func(t *testing.T) {
		mux := http.NewServeMux()
		testServer := httptest.NewServer(mux)
		defer testServer.Close()

		server := mcp.NewSSEServer(testServer.URL + "/message")
		mux.Handle("/message", server.HandleMessage())

		resp, err := testServer.Client().Post(testServer.URL+"/message",
			"application/json", bytes.NewReader([]byte(`{"jsonrpc":"2.0","method":"ping","id":"1"}`)))
		if err != nil {
			t.Fatalf("failed to send request: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
		}
	})

	t.Run("InvalidMessageFormat", func(t *testing.T) {
		mux := http.NewServeMux()
		testServer := httptest.NewServer(mux)
		defer testServer.Close()

		server := mcp.NewSSEServer(testServer.URL + "/message")
		mux.Handle("/message", server.HandleMessage())

		resp, err := testServer.Client().Post(testServer.URL+"/message?sessionID=any",
			"application/json", bytes.NewReader([]byte(`{invalid json}`)))
		if err != nil {
			t.Fatalf("failed to send request: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
		}
	})

	t.Run("ConnectTimeout", func(t *testing.T) {
		// An SSE stream that never sends the endpoint event keeps Connect
		// waiting until its context gives up.
		mux := http.NewServeMux()
		mux.HandleFunc("/sse", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/event-stream")
			w.WriteHeader(http.StatusOK)
			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
			<-r.Context().Done()
		})
		testServer := httptest.NewServer(mux)
		defer testServer.Close()

		client := mcp.NewSSEClient(testServer.URL+"/sse",
			mcp.WithSSEClientHTTPClient(testServer.Client()))

		ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
		defer cancel()

		if _, err := client.Connect(ctx); err == nil {
			t.Fatal("expected a timeout error, got nil")
		}
	})

	t.Run("ServerShutdownDuringActiveSession", func(t *testing.T) {
		mux := http.NewServeMux()
		testServer := httptest.NewServer(mux)

		server := mcp.NewSSEServer(testServer.URL + "/message")
		mux.Handle("/sse", server.HandleSSE())
		mux.Handle("/message", server.HandleMessage())

		go func() {
			for channel := range server.Channels() {
				go func(channel mcp.Channel) {
					for range channel.Receive() {
					}
				}(channel)
			}
		}()

		client := mcp.NewSSEClient(testServer.URL+"/sse",
			mcp.WithSSEClientHTTPClient(testServer.Client()))

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		clientChannel, err := client.Connect(ctx)
		if err != nil {
			t.Fatalf("failed to connect client: %v", err)
		}
		defer clientChannel.Close()

		received := make(chan []byte, 1)
		receiveDone := make(chan struct{})
		go func() {
			defer close(receiveDone)
			for payload := range clientChannel.Receive() {
				received <- payload
			}
		}()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			t.Fatalf("failed to shutdown server: %v", err)
		}
		testServer.Close()

		select {
		case <-receiveDone:
		case <-time.After(2 * time.Second):
			t.Fatal("client receive did not end after server shutdown")
		}

		select {
		case payload := <-received:
			t.Fatalf("unexpected payload after shutdown: %s", payload)
		default:
		}
	})
}

func TestSSEBidirectionalMessageFlow(t *testing.T) {
	mux := http.NewServeMux()
	testServer := httptest.NewServer(mux)

	server := mcp.NewSSEServer(testServer.URL + "/message")
	mux.Handle("/sse", server.HandleSSE())
	mux.Handle("/message", server.HandleMessage())
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			t.Logf("server forced to shutdown: %v", err)
		}
		testServer.Close()
	}()

	channels := make(chan mcp.Channel, 1)
	go func() {
		for channel := range server.Channels() {
			channels <- channel
		}
	}()

	client := mcp.NewSSEClient(testServer.URL+"/sse",
		mcp.WithSSEClientHTTPClient(testServer.Client()))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	clientChannel, err := client.Connect(ctx)
	if err != nil {
		t.Fatalf("failed to connect client: %v", err)
	}
	defer clientChannel.Close()

	var serverChannel mcp.Channel
	select {
	case serverChannel = <-channels:
	case <-ctx.Done():
		t.Fatal("timeout waiting for server channel")
	}
	defer serverChannel.Close()

	serverToClient := [][]byte{
		[]byte(`{"jsonrpc":"2.0","method":"request1","params":{"data":"first request"}}`),
		[]byte(`{"jsonrpc":"2.0","method":"request2","params":{"data":"second request"}}`),
	}
	clientToServer := [][]byte{
		[]byte(`{"jsonrpc":"2.0","method":"response1","params":{"received":"request1"}}`),
		[]byte(`{"jsonrpc":"2.0","method":"response2","params":{"received":"request2"}}`),
	}

	clientPayloads := make(chan []byte, len(serverToClient))
	go func() {
		for payload := range clientChannel.Receive() {
			clientPayloads <- payload
		}
		close(clientPayloads)
	}()

	serverPayloads := make(chan []byte, len(clientToServer))
	go func() {
		for payload := range serverChannel.Receive() {
			serverPayloads <- payload
		}
		close(serverPayloads)
	}()

	for i := range serverToClient {
		sendCtx, sendCancel := context.WithTimeout(context.Background(), time.Second)
		if err := serverChannel.Send(sendCtx, serverToClient[i]); err != nil {
			sendCancel()
			t.Fatalf("failed to send server payload: %v", err)
		}
		sendCancel()

		if err := clientChannel.Send(ctx, clientToServer[i]); err != nil {
			t.Fatalf("failed to send client payload: %v", err)
		}
	}

	for i := range serverToClient {
		select {
		case got := <-clientPayloads:
			if !bytes.Equal(got, serverToClient[i]) {
				t.Errorf("client received %s, want %s", got, serverToClient[i])
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timeout waiting for client payload %d", i)
		}

		select {
		case got := <-serverPayloads:
			if !bytes.Equal(got, clientToServer[i]) {
				t.Errorf("server received %s, want %s", got, clientToServer[i])
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timeout waiting for server payload %d", i)
		}
	}
}

func TestSSELargeMessagePayload(t *testing.T) {
	mux := http.NewServeMux()
	testServer := httptest.NewServer(mux)

	server := mcp.NewSSEServer(testServer.URL + "/message")
	mux.Handle("/sse", server.HandleSSE())
	mux.Handle("/message", server.HandleMessage())
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			t.Logf("server forced to shutdown: %v", err)
		}
		testServer.Close()
	}()

	channels := make(chan mcp.Channel, 1)
	go func() {
		for channel := range server.Channels() {
			channels <- channel
		}
	}()

	payloadSizes := []int{
		1 * 1024,        // 1 KB
		100 * 1024,      // 100 KB
		1 * 1024 * 1024, // 1 MB
	}

	for _, size := range payloadSizes {
		t.Run(fmt.Sprintf("PayloadSize_%d", size), func(t *testing.T) {
			client := mcp.NewSSEClient(testServer.URL+"/sse",
				mcp.WithSSEClientHTTPClient(testServer.Client()),
				mcp.WithSSEClientMaxPayloadSize(2*1024*1024))

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			clientChannel, err := client.Connect(ctx)
			if err != nil {
				t.Fatalf("failed to connect client: %v", err)
			}
			defer clientChannel.Close()

			var serverChannel mcp.Channel
			select {
			case serverChannel = <-channels:
			case <-ctx.Done():
				t.Fatal("timeout waiting for server channel")
			}
			defer serverChannel.Close()

			go func(channel mcp.Channel) {
				for range channel.Receive() {
				}
			}(serverChannel)

			// The payload has to be valid JSON without raw newlines so the
			// event data survives SSE framing untouched.
			payload := generateRandomJSON(size)

			received := make(chan []byte, 1)
			go func() {
				for p := range clientChannel.Receive() {
					received <- p
					return
				}
			}()

			sendCtx, sendCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer sendCancel()

			if err := serverChannel.Send(sendCtx, payload); err != nil {
				t.Fatalf("failed to send large payload: %v", err)
			}

			select {
			case got := <-received:
				if !bytes.Equal(got, payload) {
					t.Errorf("received payload of %d bytes does not match sent payload of %d bytes",
						len(got), len(payload))
				}
			case <-time.After(5 * time.Second):
				t.Fatalf("timeout waiting for large payload of size %d", size)
			}
		})
	}
}

func TestSSEClientMaxPayloadSizeExceeded(t *testing.T) {
	mux := http.NewServeMux()
	testServer := httptest.NewServer(mux)

	server := mcp.NewSSEServer(testServer.URL + "/message")
	mux.Handle("/sse", server.HandleSSE())
	mux.Handle("/message", server.HandleMessage())
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			t.Logf("server forced to shutdown: %v", err)
		}
		testServer.Close()
	}()

	channels := make(chan mcp.Channel, 1)
	go func() {
		for channel := range server.Channels() {
			channels <- channel
		}
	}()

	client := mcp.NewSSEClient(testServer.URL+"/sse",
		mcp.WithSSEClientHTTPClient(testServer.Client()),
		mcp.WithSSEClientMaxPayloadSize(1024))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	clientChannel, err := client.Connect(ctx)
	if err != nil {
		t.Fatalf("failed to connect client: %v", err)
	}
	defer clientChannel.Close()

	var serverChannel mcp.Channel
	select {
	case serverChannel = <-channels:
	case <-ctx.Done():
		t.Fatal("timeout waiting for server channel")
	}
	defer serverChannel.Close()

	receiveDone := make(chan struct{})
	received := make(chan []byte, 1)
	go func() {
		defer close(receiveDone)
		for payload := range clientChannel.Receive() {
			received <- payload
		}
	}()

	// Ten times the client's limit. The client drops the stream rather than
	// deliver it.
	if err := serverChannel.Send(ctx, generateRandomJSON(10*1024)); err != nil {
		t.Fatalf("failed to send oversized payload: %v", err)
	}

	select {
	case <-receiveDone:
	case <-time.After(2 * time.Second):
		t.Fatal("client receive did not end after oversized payload")
	}

	select {
	case payload := <-received:
		t.Fatalf("unexpected payload delivered: %d bytes", len(payload))
	default:
	}
}
