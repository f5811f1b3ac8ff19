package memory

// CreateEntitiesArgs are the arguments of the create_entities tool.
type CreateEntitiesArgs struct {
	Entities []Entity `json:"entities" jsonschema:"description=The entities to create"`
}

// CreateRelationsArgs are the arguments of the create_relations tool.
type CreateRelationsArgs struct {
	Relations []Relation `json:"relations" jsonschema:"description=The relations to create"`
}

// AddObservationsArgs are the arguments of the add_observations tool.
type AddObservationsArgs struct {
	Observations []ObservationSet `json:"observations" jsonschema:"description=The observations to add"`
}

// DeleteEntitiesArgs are the arguments of the delete_entities tool.
type DeleteEntitiesArgs struct {
	EntityNames []string `json:"entityNames" jsonschema:"description=The names of the entities to delete"`
}

// DeleteObservationsArgs are the arguments of the delete_observations tool.
type DeleteObservationsArgs struct {
	Deletions []ObservationDeletion `json:"deletions" jsonschema:"description=The observations to delete per entity"`
}

// DeleteRelationsArgs are the arguments of the delete_relations tool.
type DeleteRelationsArgs struct {
	Relations []Relation `json:"relations" jsonschema:"description=The relations to delete"`
}

// SearchNodesArgs are the arguments of the search_nodes tool.
type SearchNodesArgs struct {
	Query string `json:"query" jsonschema:"description=The query to match against entity names and types and observation content"`
}

// OpenNodesArgs are the arguments of the open_nodes tool.
type OpenNodesArgs struct {
	Names []string `json:"names" jsonschema:"description=The names of the entities to retrieve"`
}
