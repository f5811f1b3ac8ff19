// Command filesystem runs the filesystem server and an interactive client
// against it over an in-process stdio pair.
//
// Configuration comes from the environment:
//
//	FILESYSTEM_ROOT   root directory served to the client (required)
//	FILESYSTEM_DEBUG  set to true to log protocol diagnostics to stderr
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/tidemill/go-mcp"
	"github.com/tidemill/go-mcp/servers/filesystem"
)

type config struct {
	Root  string `env:"FILESYSTEM_ROOT,required"`
	Debug bool   `env:"FILESYSTEM_DEBUG,default=false"`
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

	fs, err := filesystem.NewServer([]string{cfg.Root}, filesystem.WithLogger(logger))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create filesystem server: %v\n", err)
		os.Exit(1)
	}

	srvReader, cliWriter := io.Pipe()
	cliReader, srvWriter := io.Pipe()

	srvIO := mcp.NewStdIO(srvReader, srvWriter)
	cliIO := mcp.NewStdIO(cliReader, cliWriter)

	srv := mcp.NewServer(mcp.Info{
		Name:    "filesystem",
		Version: "1.0",
	}, srvIO,
		mcp.WithToolRegistry(fs.Registry()),
		mcp.WithResourceServer(fs),
		mcp.WithResourceListUpdater(fs),
		mcp.WithResourceSubscriptionHandler(fs),
		mcp.WithServerPingInterval(30*time.Second),
		mcp.WithServerLogger(logger),
	)
	go srv.Serve()

	c := newClient(cliIO, logger)
	c.run(cfg.Root)

	// Closing the filesystem server ends its update iterators, which the
	// protocol server's listeners wait on during Shutdown.
	if err := fs.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close filesystem server: %v\n", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Server forced to shutdown: %v\n", err)
	}
}
