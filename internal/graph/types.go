package graph

// EntityType classifies what kind of thing an entity node represents
type EntityType string

const (
	EntityTool     EntityType = "tool"
	EntityConcept  EntityType = "concept"
	EntityTopic    EntityType = "topic"
	EntityExercise EntityType = "exercise"
	EntityFood     EntityType = "food"
	EntityBrand    EntityType = "brand"
	EntityPerson   EntityType = "person"
	EntityOther    EntityType = "other"
)

// ParseEntityType maps a free-form type string onto a known EntityType.
// Anything unrecognized becomes EntityOther.
func ParseEntityType(s string) EntityType {
	switch EntityType(s) {
	case EntityTool, EntityConcept, EntityTopic, EntityExercise, EntityFood, EntityBrand, EntityPerson:
		return EntityType(s)
	default:
		return EntityOther
	}
}

// Entity is a node in a user's knowledge graph. Name is always normalized;
// Aliases keep the raw variants seen in extractions.
type Entity struct {
	Key     EntityKey  `json:"key"`
	Name    string     `json:"name"`
	Type    EntityType `json:"type"`
	Aliases []string   `json:"aliases,omitempty"`
}

// SaveInput is the graph projection of an externally-owned save record
type SaveInput struct {
	ID       string
	Phone    string
	Title    string
	Summary  string
	Category string
	Tags     []string
	Source   string
}

// RelationEdge is a typed semantic relation between two entities
type RelationEdge struct {
	Src      EntityKey
	Dst      EntityKey
	RelType  string
	Weight   float64
	Evidence string
}

// EntityMentions pairs an entity with its live-counted mention frequency
type EntityMentions struct {
	Entity   Entity
	Mentions int
}

// GraphEdge is a co-occurrence edge between two selected nodes, as returned
// to the visualization client
type GraphEdge struct {
	Source string  `json:"source"`
	Target string  `json:"target"`
	Weight float64 `json:"weight"`
}

// CategoryCount is a category node with the number of saves in it
type CategoryCount struct {
	Name  string `json:"name"`
	Saves int    `json:"saves"`
}

// SaveHit is a save reached during traversal, with the entity key that
// mentioned it
type SaveHit struct {
	SaveID    string
	Title     string
	Summary   string
	Category  string
	EntityKey string
}

// NeighborHit is an entity reached over a CO_OCCURS_WITH edge
type NeighborHit struct {
	Key    string  // neighboring entity key
	Name   string  // neighboring entity name
	Via    string  // name of the entity we expanded from
	Weight float64 // co-occurrence weight of the bridging edge
}
