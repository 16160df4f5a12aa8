package graph

import (
	"context"
	"fmt"
)

// ============================================================================
// Entity and edge merge operations
// ============================================================================

// MergeEntity merges an entity node by its deterministic key. On create it
// sets name/type/aliases; on match it unions in any new aliases and keeps
// the existing type.
func (r *Repository) MergeEntity(ctx context.Context, ent Entity) error {
	session := r.writeSession(ctx)
	defer session.Close(ctx)

	query := `
		MERGE (e:Entity {key: $key})
		ON CREATE SET e.name = $name,
		              e.type = $type,
		              e.user_phone = $phone,
		              e.aliases = $aliases,
		              e.created_at = datetime()
		ON MATCH SET e.aliases = e.aliases + [a IN $aliases WHERE NOT a IN e.aliases]
	`

	aliases := ent.Aliases
	if aliases == nil {
		aliases = []string{}
	}

	_, err := session.Run(ctx, query, map[string]interface{}{
		"key":     ent.Key.String(),
		"name":    ent.Name,
		"type":    string(ent.Type),
		"phone":   ent.Key.Phone,
		"aliases": aliases,
	})
	if err != nil {
		return fmt.Errorf("failed to merge entity %q: %w", ent.Name, err)
	}
	return nil
}

// MergeMention merges the MENTIONS edge from a save to an entity.
// Confidence only ever goes up (max-merge), so retried jobs cannot lower it.
func (r *Repository) MergeMention(ctx context.Context, saveID string, key EntityKey, confidence float64) error {
	session := r.writeSession(ctx)
	defer session.Close(ctx)

	query := `
		MATCH (s:Save {id: $save_id})
		MATCH (e:Entity {key: $key})
		MERGE (s)-[m:MENTIONS]->(e)
		ON CREATE SET m.confidence = $confidence
		ON MATCH SET m.confidence = CASE
			WHEN m.confidence < $confidence THEN $confidence
			ELSE m.confidence
		END
	`

	_, err := session.Run(ctx, query, map[string]interface{}{
		"save_id":    saveID,
		"key":        key.String(),
		"confidence": confidence,
	})
	if err != nil {
		return fmt.Errorf("failed to merge mention: %w", err)
	}
	return nil
}

// MergeCoOccurrence merges the undirected CO_OCCURS_WITH edge between two
// entities, accumulating weight by 1.0 per observed co-occurrence. Callers
// pass the pair in canonical order (a < b) so the stored direction is stable.
func (r *Repository) MergeCoOccurrence(ctx context.Context, a, b EntityKey) error {
	session := r.writeSession(ctx)
	defer session.Close(ctx)

	query := `
		MATCH (x:Entity {key: $a})
		MATCH (y:Entity {key: $b})
		MERGE (x)-[c:CO_OCCURS_WITH]->(y)
		ON CREATE SET c.weight = 1.0
		ON MATCH SET c.weight = c.weight + 1.0
	`

	_, err := session.Run(ctx, query, map[string]interface{}{
		"a": a.String(),
		"b": b.String(),
	})
	if err != nil {
		return fmt.Errorf("failed to merge co-occurrence: %w", err)
	}
	return nil
}

// MergeRelation merges a typed RELATED_TO edge keyed by (src, dst, rel_type).
// Weight is max-merged; evidence refreshes when the weight improves.
func (r *Repository) MergeRelation(ctx context.Context, rel RelationEdge) error {
	session := r.writeSession(ctx)
	defer session.Close(ctx)

	query := `
		MATCH (s:Entity {key: $src})
		MATCH (d:Entity {key: $dst})
		MERGE (s)-[r:RELATED_TO {rel_type: $rel_type}]->(d)
		ON CREATE SET r.weight = $weight, r.evidence = $evidence
		ON MATCH SET r.evidence = CASE WHEN r.weight < $weight THEN $evidence ELSE r.evidence END,
		             r.weight = CASE WHEN r.weight < $weight THEN $weight ELSE r.weight END
	`

	_, err := session.Run(ctx, query, map[string]interface{}{
		"src":      rel.Src.String(),
		"dst":      rel.Dst.String(),
		"rel_type": rel.RelType,
		"weight":   rel.Weight,
		"evidence": rel.Evidence,
	})
	if err != nil {
		return fmt.Errorf("failed to merge relation %q: %w", rel.RelType, err)
	}
	return nil
}

// ============================================================================
// Resolver lookups
// ============================================================================

// EntityByKey fetches a single entity by its deterministic key, or nil
func (r *Repository) EntityByKey(ctx context.Context, key EntityKey) (*Entity, error) {
	session := r.readSession(ctx)
	defer session.Close(ctx)

	query := `
		MATCH (e:Entity {key: $key})
		RETURN e.key as key, e.name as name, e.type as type, e.aliases as aliases
	`

	result, err := session.Run(ctx, query, map[string]interface{}{"key": key.String()})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch entity by key: %w", err)
	}

	if result.Next(ctx) {
		ent := entityFromRecord(result.Record())
		return &ent, nil
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("failed to read entity record: %w", err)
	}
	return nil, nil
}

// EntitiesByName fetches entities whose normalized name or aliases match
// the given normalized name, within one user's namespace.
func (r *Repository) EntitiesByName(ctx context.Context, phone, normalizedName string) ([]Entity, error) {
	session := r.readSession(ctx)
	defer session.Close(ctx)

	query := `
		MATCH (e:Entity {user_phone: $phone})
		WHERE e.name = $name OR $name IN [a IN e.aliases | toLower(a)]
		RETURN e.key as key, e.name as name, e.type as type, e.aliases as aliases
	`

	result, err := session.Run(ctx, query, map[string]interface{}{
		"phone": phone,
		"name":  normalizedName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch entities by name: %w", err)
	}

	return collectEntities(ctx, result)
}

// EntitiesByPrefix fetches entities whose normalized name starts with the
// given prefix, within one user's namespace. Used to bound the fuzzy
// candidate set.
func (r *Repository) EntitiesByPrefix(ctx context.Context, phone, prefix string) ([]Entity, error) {
	session := r.readSession(ctx)
	defer session.Close(ctx)

	query := `
		MATCH (e:Entity {user_phone: $phone})
		WHERE e.name STARTS WITH $prefix
		RETURN e.key as key, e.name as name, e.type as type, e.aliases as aliases
	`

	result, err := session.Run(ctx, query, map[string]interface{}{
		"phone":  phone,
		"prefix": prefix,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch entities by prefix: %w", err)
	}

	return collectEntities(ctx, result)
}
