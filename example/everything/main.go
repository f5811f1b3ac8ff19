// Command everything serves the all-capabilities test server over SSE and
// runs a scripted client against it, touching prompts, resources,
// subscriptions, tools, progress, sampling, and logging in one pass.
//
// Configuration comes from the environment:
//
//	EVERYTHING_ADDR             listen address (default :8080)
//	EVERYTHING_UPDATE_INTERVAL  simulated resource update interval (default 3s)
//	EVERYTHING_DEBUG            set to true to log protocol diagnostics to stderr
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/tidemill/go-mcp"
	"github.com/tidemill/go-mcp/servers/everything"
)

type config struct {
	Addr           string        `env:"EVERYTHING_ADDR,default=:8080"`
	UpdateInterval time.Duration `env:"EVERYTHING_UPDATE_INTERVAL,default=3s"`
	Debug          bool          `env:"EVERYTHING_DEBUG,default=false"`
}

func main() {
	var cfg config
	if err := envdecode.Decode(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logLevel := slog.LevelWarn
	if cfg.Debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))

	es, err := everything.NewServer(everything.WithUpdateInterval(cfg.UpdateInterval))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create test server: %v\n", err)
		os.Exit(1)
	}

	baseURL := fmt.Sprintf("http://localhost%s", cfg.Addr)
	sse := mcp.NewSSEServer(baseURL+"/message", mcp.WithSSEServerLogger(logger))

	mux := http.NewServeMux()
	mux.Handle("/sse", sse.HandleSSE())
	mux.Handle("/message", sse.HandleMessage())
	httpSrv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 15 * time.Second,
	}
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(os.Stderr, "HTTP server error: %v\n", err)
			os.Exit(1)
		}
	}()

	srv := mcp.NewServer(mcp.Info{
		Name:    "everything",
		Version: "1.0",
	}, sse,
		mcp.WithToolRegistry(es.Registry()),
		mcp.WithPromptServer(es),
		mcp.WithResourceServer(es),
		mcp.WithResourceSubscriptionHandler(es),
		mcp.WithLogHandler(es),
		mcp.WithInstructions("Test server exercising every protocol capability."),
		mcp.WithServerLogger(logger),
	)
	go srv.Serve()
	fmt.Printf("Server listening on %s\n", cfg.Addr)

	tour(baseURL+"/sse", logger)

	// The test server's Close ends its update iterators, which the protocol
	// server's listeners wait on during Shutdown.
	es.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Server forced to shutdown: %v\n", err)
	}
	if err := httpSrv.Shutdown(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "HTTP server forced to shutdown: %v\n", err)
	}
}
