// Command memory runs the knowledge graph server over an in-process stdio
// pair and walks a scripted session against it: building a small graph,
// querying it, and reading it back.
//
// Configuration comes from the environment:
//
//	MEMORY_FILE   path of the JSON file holding the graph (default memory.json)
//	MEMORY_DEBUG  set to true to log protocol diagnostics to stderr
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/tidemill/go-mcp"
	"github.com/tidemill/go-mcp/servers/memory"
)

type config struct {
	File  string `env:"MEMORY_FILE,default=memory.json"`
	Debug bool   `env:"MEMORY_DEBUG,default=false"`
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

	ms, err := memory.NewServer(cfg.File)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create memory server: %v\n", err)
		os.Exit(1)
	}

	srvReader, cliWriter := io.Pipe()
	cliReader, srvWriter := io.Pipe()

	srvIO := mcp.NewStdIO(srvReader, srvWriter)
	cliIO := mcp.NewStdIO(cliReader, cliWriter)

	srv := mcp.NewServer(mcp.Info{
		Name:    "memory",
		Version: "1.0",
	}, srvIO,
		mcp.WithToolRegistry(ms.Registry()),
		mcp.WithServerLogger(logger),
	)
	go srv.Serve()

	run(cliIO, cfg.File, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Server forced to shutdown: %v\n", err)
	}
}

// run connects to the graph server and plays through a small session.
func run(transport mcp.ClientTransport, file string, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cli := mcp.NewClient(mcp.Info{
		Name:    "memory-client",
		Version: "1.0",
	}, transport, mcp.WithClientLogger(logger))
	defer cli.Close()

	if err := cli.Connect(ctx); err != nil {
		fmt.Printf("Failed to connect: %v\n", err)
		return
	}
	fmt.Printf("Connected to %s, graph stored in %s\n", cli.ServerInfo().Name, file)

	call := func(tool string, args any) {
		data, err := json.Marshal(args)
		if err != nil {
			fmt.Printf("%s: %v\n", tool, err)
			return
		}
		result, err := cli.CallTool(ctx, mcp.CallToolParams{
			Name:      tool,
			Arguments: data,
		})
		if err != nil {
			fmt.Printf("%s: %v\n", tool, err)
			return
		}
		fmt.Printf("%s: %s\n", tool, result.Content[0].Text)
	}

	call("create_entities", memory.CreateEntitiesArgs{
		Entities: []memory.Entity{
			{Name: "Ada", EntityType: "Person", Observations: []string{"Writes compilers"}},
			{Name: "Analytical Engine", EntityType: "Machine", Observations: []string{"Never built"}},
		},
	})
	call("create_relations", memory.CreateRelationsArgs{
		Relations: []memory.Relation{
			{From: "Ada", To: "Analytical Engine", RelationType: "programs"},
		},
	})
	call("add_observations", memory.AddObservationsArgs{
		Observations: []memory.ObservationSet{
			{EntityName: "Ada", Contents: []string{"Published the first algorithm"}},
		},
	})
	call("search_nodes", memory.SearchNodesArgs{Query: "algorithm"})
	call("open_nodes", memory.OpenNodesArgs{Names: []string{"Analytical Engine"}})
	call("read_graph", struct{}{})
}
