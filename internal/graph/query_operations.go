package graph

import (
	"context"
	"fmt"
)

// ============================================================================
// Query-side reads
// ============================================================================

// TopMentionedEntities ranks a user's entities by mention frequency, counted
// live by traversal rather than from a stored counter, so retried jobs that
// re-merged the same MENTIONS edge cannot inflate the ranking.
func (r *Repository) TopMentionedEntities(ctx context.Context, phone string, limit int) ([]EntityMentions, error) {
	session := r.readSession(ctx)
	defer session.Close(ctx)

	query := `
		MATCH (e:Entity {user_phone: $phone})
		OPTIONAL MATCH (s:Save)-[m:MENTIONS]->(e)
		WITH e, count(m) as mentions
		RETURN e.key as key, e.name as name, e.type as type, e.aliases as aliases, mentions
		ORDER BY mentions DESC, e.name ASC
		LIMIT $limit
	`

	result, err := session.Run(ctx, query, map[string]interface{}{
		"phone": phone,
		"limit": limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to rank entities: %w", err)
	}

	var ranked []EntityMentions
	for result.Next(ctx) {
		record := result.Record()
		ranked = append(ranked, EntityMentions{
			Entity:   entityFromRecord(record),
			Mentions: getIntFromRecord(record, "mentions"),
		})
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("failed to read ranked entities: %w", err)
	}

	return ranked, nil
}

// CoOccurrenceEdges fetches CO_OCCURS_WITH edges strictly between the given
// entity keys, above the weight floor. The edge is stored in canonical
// direction, so a single directed match covers the undirected semantics.
func (r *Repository) CoOccurrenceEdges(ctx context.Context, phone string, keys []string, minWeight float64) ([]GraphEdge, error) {
	session := r.readSession(ctx)
	defer session.Close(ctx)

	query := `
		MATCH (a:Entity {user_phone: $phone})-[c:CO_OCCURS_WITH]->(b:Entity)
		WHERE a.key IN $keys AND b.key IN $keys AND c.weight >= $min_weight
		RETURN a.key as source, b.key as target, c.weight as weight
		ORDER BY weight DESC
	`

	result, err := session.Run(ctx, query, map[string]interface{}{
		"phone":      phone,
		"keys":       keys,
		"min_weight": minWeight,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch co-occurrence edges: %w", err)
	}

	var edges []GraphEdge
	for result.Next(ctx) {
		record := result.Record()
		edges = append(edges, GraphEdge{
			Source: getStringFromRecord(record, "source"),
			Target: getStringFromRecord(record, "target"),
			Weight: getFloat64FromRecord(record, "weight"),
		})
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("failed to read co-occurrence edges: %w", err)
	}

	return edges, nil
}

// ============================================================================
// Traversal-side reads
// ============================================================================

// SavesMentioning fetches saves that mention any of the given entity keys,
// with the key that reached each save.
func (r *Repository) SavesMentioning(ctx context.Context, phone string, keys []string) ([]SaveHit, error) {
	session := r.readSession(ctx)
	defer session.Close(ctx)

	query := `
		MATCH (s:Save {user_phone: $phone})-[:MENTIONS]->(e:Entity)
		WHERE e.key IN $keys
		OPTIONAL MATCH (s)-[:IN_CATEGORY]->(c:Category)
		RETURN s.id as save_id, s.title as title, s.summary as summary,
		       c.name as category, e.key as entity_key
	`

	result, err := session.Run(ctx, query, map[string]interface{}{
		"phone": phone,
		"keys":  keys,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch saves mentioning entities: %w", err)
	}

	var hits []SaveHit
	for result.Next(ctx) {
		record := result.Record()
		hits = append(hits, SaveHit{
			SaveID:    getStringFromRecord(record, "save_id"),
			Title:     getStringFromRecord(record, "title"),
			Summary:   getStringFromRecord(record, "summary"),
			Category:  getStringFromRecord(record, "category"),
			EntityKey: getStringFromRecord(record, "entity_key"),
		})
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("failed to read save hits: %w", err)
	}

	return hits, nil
}

// CoOccurringNeighbors expands from the given entity keys over
// CO_OCCURS_WITH edges at or above minWeight, in either direction, and
// returns the neighboring entities with the bridging edge weight.
func (r *Repository) CoOccurringNeighbors(ctx context.Context, phone string, keys []string, minWeight float64) ([]NeighborHit, error) {
	session := r.readSession(ctx)
	defer session.Close(ctx)

	query := `
		MATCH (e:Entity {user_phone: $phone})-[c:CO_OCCURS_WITH]-(n:Entity)
		WHERE e.key IN $keys AND NOT n.key IN $keys AND c.weight >= $min_weight
		RETURN n.key as key, n.name as name, e.name as via, c.weight as weight
		ORDER BY weight DESC
	`

	result, err := session.Run(ctx, query, map[string]interface{}{
		"phone":      phone,
		"keys":       keys,
		"min_weight": minWeight,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to expand co-occurring neighbors: %w", err)
	}

	var neighbors []NeighborHit
	for result.Next(ctx) {
		record := result.Record()
		neighbors = append(neighbors, NeighborHit{
			Key:    getStringFromRecord(record, "key"),
			Name:   getStringFromRecord(record, "name"),
			Via:    getStringFromRecord(record, "via"),
			Weight: getFloat64FromRecord(record, "weight"),
		})
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("failed to read neighbors: %w", err)
	}

	return neighbors, nil
}
