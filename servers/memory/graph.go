package memory

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"
)

// Entity is a node in the knowledge graph. Entities are identified by name;
// creating a name twice keeps the first entity untouched.
type Entity struct {
	Name         string   `json:"name" jsonschema:"description=The name of the entity"`
	EntityType   string   `json:"entityType" jsonschema:"description=The type of the entity"`
	Observations []string `json:"observations" jsonschema:"description=Observation contents associated with the entity"`
}

// Relation is a directed edge between two entities, identified by the
// (from, to, relationType) triple.
type Relation struct {
	From         string `json:"from" jsonschema:"description=The name of the entity where the relation starts"`
	To           string `json:"to" jsonschema:"description=The name of the entity where the relation ends"`
	RelationType string `json:"relationType" jsonschema:"description=The type of the relation"`
}

// ObservationSet names an entity and the observation contents to add to it.
type ObservationSet struct {
	EntityName string   `json:"entityName" jsonschema:"description=The name of the entity to add the observations to"`
	Contents   []string `json:"contents" jsonschema:"description=Observation contents to add"`
}

// ObservationDeletion names an entity and the observations to remove from it.
type ObservationDeletion struct {
	EntityName   string   `json:"entityName" jsonschema:"description=The name of the entity containing the observations"`
	Observations []string `json:"observations" jsonschema:"description=The observations to delete"`
}

// Graph is a snapshot of the stored entities and relations.
type Graph struct {
	Entities  []Entity   `json:"entities"`
	Relations []Relation `json:"relations"`
}

// graphRecord is the on-disk form: the file holds one JSON array of records,
// each tagged as an entity or a relation.
type graphRecord struct {
	Type string `json:"type"`

	Name         string   `json:"name,omitempty"`
	EntityType   string   `json:"entityType,omitempty"`
	Observations []string `json:"observations,omitempty"`

	From         string `json:"from,omitempty"`
	To           string `json:"to,omitempty"`
	RelationType string `json:"relationType,omitempty"`
}

// graphStore persists a knowledge graph in a single JSON file. Every
// operation reloads the file, applies the change, and writes it back under
// one lock, so concurrent tool calls never interleave partial updates.
type graphStore struct {
	mu   sync.Mutex
	path string
}

func newGraphStore(path string) *graphStore {
	return &graphStore{path: path}
}

func (g *graphStore) load() (Graph, error) {
	data, err := os.ReadFile(g.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Graph{Entities: []Entity{}, Relations: []Relation{}}, nil
		}
		return Graph{}, fmt.Errorf("read graph file %s: %w", g.path, err)
	}

	var records []graphRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return Graph{}, fmt.Errorf("decode graph file %s: %w", g.path, err)
	}

	graph := Graph{Entities: []Entity{}, Relations: []Relation{}}
	for _, record := range records {
		switch record.Type {
		case "entity":
			graph.Entities = append(graph.Entities, Entity{
				Name:         record.Name,
				EntityType:   record.EntityType,
				Observations: record.Observations,
			})
		case "relation":
			graph.Relations = append(graph.Relations, Relation{
				From:         record.From,
				To:           record.To,
				RelationType: record.RelationType,
			})
		}
	}
	return graph, nil
}

func (g *graphStore) save(graph Graph) error {
	records := make([]graphRecord, 0, len(graph.Entities)+len(graph.Relations))
	for _, entity := range graph.Entities {
		records = append(records, graphRecord{
			Type:         "entity",
			Name:         entity.Name,
			EntityType:   entity.EntityType,
			Observations: entity.Observations,
		})
	}
	for _, relation := range graph.Relations {
		records = append(records, graphRecord{
			Type:         "relation",
			From:         relation.From,
			To:           relation.To,
			RelationType: relation.RelationType,
		})
	}

	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode graph: %w", err)
	}
	if err := os.WriteFile(g.path, data, 0o600); err != nil {
		return fmt.Errorf("write graph file %s: %w", g.path, err)
	}
	return nil
}

// createEntities adds the entities whose names are not yet present and
// returns only those, so callers see what was actually created.
func (g *graphStore) createEntities(entities []Entity) ([]Entity, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	graph, err := g.load()
	if err != nil {
		return nil, err
	}

	created := make([]Entity, 0, len(entities))
	for _, entity := range entities {
		exists := slices.ContainsFunc(graph.Entities, func(e Entity) bool {
			return e.Name == entity.Name
		})
		if exists {
			continue
		}
		graph.Entities = append(graph.Entities, entity)
		created = append(created, entity)
	}

	if err := g.save(graph); err != nil {
		return nil, err
	}
	return created, nil
}

// createRelations adds the relations that are not yet present and returns
// only those. Relations referring to unknown entities are stored as given;
// the graph does not enforce referential integrity.
func (g *graphStore) createRelations(relations []Relation) ([]Relation, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	graph, err := g.load()
	if err != nil {
		return nil, err
	}

	created := make([]Relation, 0, len(relations))
	for _, relation := range relations {
		if slices.Contains(graph.Relations, relation) {
			continue
		}
		graph.Relations = append(graph.Relations, relation)
		created = append(created, relation)
	}

	if err := g.save(graph); err != nil {
		return nil, err
	}
	return created, nil
}

// addObservations appends new observation contents to existing entities and
// returns per entity the contents that were actually added. Naming an
// unknown entity fails the whole operation.
func (g *graphStore) addObservations(sets []ObservationSet) ([]ObservationSet, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	graph, err := g.load()
	if err != nil {
		return nil, err
	}

	added := make([]ObservationSet, 0, len(sets))
	for _, set := range sets {
		i := slices.IndexFunc(graph.Entities, func(e Entity) bool {
			return e.Name == set.EntityName
		})
		if i < 0 {
			return nil, fmt.Errorf("entity not found: %s", set.EntityName)
		}

		var fresh []string
		for _, content := range set.Contents {
			if slices.Contains(graph.Entities[i].Observations, content) {
				continue
			}
			graph.Entities[i].Observations = append(graph.Entities[i].Observations, content)
			fresh = append(fresh, content)
		}
		added = append(added, ObservationSet{
			EntityName: set.EntityName,
			Contents:   fresh,
		})
	}

	if err := g.save(graph); err != nil {
		return nil, err
	}
	return added, nil
}

// deleteEntities removes the named entities along with every relation that
// starts or ends at one of them. Unknown names are ignored.
func (g *graphStore) deleteEntities(names []string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	graph, err := g.load()
	if err != nil {
		return err
	}

	doomed := make(map[string]bool, len(names))
	for _, name := range names {
		doomed[name] = true
	}

	graph.Entities = slices.DeleteFunc(graph.Entities, func(e Entity) bool {
		return doomed[e.Name]
	})
	graph.Relations = slices.DeleteFunc(graph.Relations, func(r Relation) bool {
		return doomed[r.From] || doomed[r.To]
	})

	return g.save(graph)
}

// deleteObservations removes the listed observations from their entities.
// Unknown entities and observations are ignored.
func (g *graphStore) deleteObservations(deletions []ObservationDeletion) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	graph, err := g.load()
	if err != nil {
		return err
	}

	for _, deletion := range deletions {
		i := slices.IndexFunc(graph.Entities, func(e Entity) bool {
			return e.Name == deletion.EntityName
		})
		if i < 0 {
			continue
		}
		graph.Entities[i].Observations = slices.DeleteFunc(graph.Entities[i].Observations, func(obs string) bool {
			return slices.Contains(deletion.Observations, obs)
		})
	}

	return g.save(graph)
}

// deleteRelations removes the given relations. Relations not present are
// ignored.
func (g *graphStore) deleteRelations(relations []Relation) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	graph, err := g.load()
	if err != nil {
		return err
	}

	graph.Relations = slices.DeleteFunc(graph.Relations, func(r Relation) bool {
		return slices.Contains(relations, r)
	})

	return g.save(graph)
}

// graph returns the complete stored graph.
func (g *graphStore) graph() (Graph, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.load()
}

// searchNodes returns the entities whose name, type, or observations contain
// the query, matched case-insensitively, plus the relations connecting two
// matched entities.
func (g *graphStore) searchNodes(query string) (Graph, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	graph, err := g.load()
	if err != nil {
		return Graph{}, err
	}

	needle := strings.ToLower(query)
	matches := func(e Entity) bool {
		if strings.Contains(strings.ToLower(e.Name), needle) ||
			strings.Contains(strings.ToLower(e.EntityType), needle) {
			return true
		}
		return slices.ContainsFunc(e.Observations, func(obs string) bool {
			return strings.Contains(strings.ToLower(obs), needle)
		})
	}

	entities := make([]Entity, 0)
	for _, entity := range graph.Entities {
		if matches(entity) {
			entities = append(entities, entity)
		}
	}
	return Graph{
		Entities:  entities,
		Relations: connectingRelations(graph.Relations, entities),
	}, nil
}

// openNodes returns the named entities and the relations connecting two of
// them. Unknown names are ignored.
func (g *graphStore) openNodes(names []string) (Graph, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	graph, err := g.load()
	if err != nil {
		return Graph{}, err
	}

	wanted := make(map[string]bool, len(names))
	for _, name := range names {
		wanted[name] = true
	}

	entities := make([]Entity, 0, len(names))
	for _, entity := range graph.Entities {
		if wanted[entity.Name] {
			entities = append(entities, entity)
		}
	}
	return Graph{
		Entities:  entities,
		Relations: connectingRelations(graph.Relations, entities),
	}, nil
}

// connectingRelations filters relations down to those whose both endpoints
// are in the entity set.
func connectingRelations(relations []Relation, entities []Entity) []Relation {
	names := make(map[string]bool, len(entities))
	for _, entity := range entities {
		names[entity.Name] = true
	}

	connected := make([]Relation, 0)
	for _, relation := range relations {
		if names[relation.From] && names[relation.To] {
			connected = append(connected, relation)
		}
	}
	return connected
}
