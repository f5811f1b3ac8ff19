package memory

import (
	"context"
	"encoding/json"

	"github.com/tidemill/go-mcp"
)

const (
	createEntitiesDescription = `Create multiple new entities in the knowledge graph.`

	createRelationsDescription = `Create multiple new relations between entities in the knowledge graph.
Relations should be in active voice.`

	addObservationsDescription = `Add new observations to existing entities in the knowledge graph.`

	deleteEntitiesDescription = `Delete multiple entities and their associated relations from the knowledge graph.`

	deleteObservationsDescription = `Delete specific observations from entities in the knowledge graph.`

	deleteRelationsDescription = `Delete multiple relations from the knowledge graph.`

	readGraphDescription = `Read the entire knowledge graph.`

	searchNodesDescription = `Search for nodes in the knowledge graph based on a query.`

	openNodesDescription = `Open specific nodes in the knowledge graph by their names.`
)

func (s *Server) registerTools() error {
	if err := mcp.AddTool(s.registry, "create_entities", createEntitiesDescription, s.createEntities); err != nil {
		return err
	}
	if err := mcp.AddTool(s.registry, "create_relations", createRelationsDescription, s.createRelations); err != nil {
		return err
	}
	if err := mcp.AddTool(s.registry, "add_observations", addObservationsDescription, s.addObservations); err != nil {
		return err
	}
	if err := mcp.AddTool(s.registry, "delete_entities", deleteEntitiesDescription, s.deleteEntities); err != nil {
		return err
	}
	if err := mcp.AddTool(s.registry, "delete_observations", deleteObservationsDescription, s.deleteObservations); err != nil {
		return err
	}
	if err := mcp.AddTool(s.registry, "delete_relations", deleteRelationsDescription, s.deleteRelations); err != nil {
		return err
	}
	if err := mcp.AddTool(s.registry, "search_nodes", searchNodesDescription, s.searchNodes); err != nil {
		return err
	}
	if err := mcp.AddTool(s.registry, "open_nodes", openNodesDescription, s.openNodes); err != nil {
		return err
	}
	// read_graph takes no arguments, so it skips the typed constructor.
	return s.registry.Add(mcp.Tool{
		Name:        "read_graph",
		Description: readGraphDescription,
	}, s.readGraph)
}

func (s *Server) createEntities(
	_ context.Context, _ *mcp.ServerSession, args CreateEntitiesArgs,
) (mcp.CallToolResult, error) {
	created, err := s.store.createEntities(args.Entities)
	if err != nil {
		return mcp.CallToolResult{}, err
	}
	return jsonResult(created)
}

func (s *Server) createRelations(
	_ context.Context, _ *mcp.ServerSession, args CreateRelationsArgs,
) (mcp.CallToolResult, error) {
	created, err := s.store.createRelations(args.Relations)
	if err != nil {
		return mcp.CallToolResult{}, err
	}
	return jsonResult(created)
}

func (s *Server) addObservations(
	_ context.Context, _ *mcp.ServerSession, args AddObservationsArgs,
) (mcp.CallToolResult, error) {
	added, err := s.store.addObservations(args.Observations)
	if err != nil {
		return mcp.CallToolResult{}, err
	}
	return jsonResult(added)
}

func (s *Server) deleteEntities(
	_ context.Context, _ *mcp.ServerSession, args DeleteEntitiesArgs,
) (mcp.CallToolResult, error) {
	if err := s.store.deleteEntities(args.EntityNames); err != nil {
		return mcp.CallToolResult{}, err
	}
	return textResult("Entities deleted successfully"), nil
}

func (s *Server) deleteObservations(
	_ context.Context, _ *mcp.ServerSession, args DeleteObservationsArgs,
) (mcp.CallToolResult, error) {
	if err := s.store.deleteObservations(args.Deletions); err != nil {
		return mcp.CallToolResult{}, err
	}
	return textResult("Observations deleted successfully"), nil
}

func (s *Server) deleteRelations(
	_ context.Context, _ *mcp.ServerSession, args DeleteRelationsArgs,
) (mcp.CallToolResult, error) {
	if err := s.store.deleteRelations(args.Relations); err != nil {
		return mcp.CallToolResult{}, err
	}
	return textResult("Relations deleted successfully"), nil
}

func (s *Server) readGraph(
	_ context.Context, _ *mcp.ServerSession, _ mcp.CallToolParams,
) (mcp.CallToolResult, error) {
	graph, err := s.store.graph()
	if err != nil {
		return mcp.CallToolResult{}, err
	}
	return jsonResult(graph)
}

func (s *Server) searchNodes(
	_ context.Context, _ *mcp.ServerSession, args SearchNodesArgs,
) (mcp.CallToolResult, error) {
	graph, err := s.store.searchNodes(args.Query)
	if err != nil {
		return mcp.CallToolResult{}, err
	}
	return jsonResult(graph)
}

func (s *Server) openNodes(
	_ context.Context, _ *mcp.ServerSession, args OpenNodesArgs,
) (mcp.CallToolResult, error) {
	graph, err := s.store.openNodes(args.Names)
	if err != nil {
		return mcp.CallToolResult{}, err
	}
	return jsonResult(graph)
}

func jsonResult(v any) (mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.CallToolResult{}, err
	}
	return textResult(string(data)), nil
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
