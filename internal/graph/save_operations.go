package graph

import (
	"context"
	"fmt"
)

// ============================================================================
// Save / Category / Tag merge operations
// ============================================================================

// MergeSaveStructure merges the base bookkeeping for a save: the User node,
// the Save node (title/summary refreshed on re-merge), the SAVED edge, and
// Category/Tag nodes with their existence edges. Idempotent: re-running for
// the same save changes nothing except the refreshed fields.
func (r *Repository) MergeSaveStructure(ctx context.Context, save SaveInput) error {
	session := r.writeSession(ctx)
	defer session.Close(ctx)

	query := `
		MERGE (u:User {phone: $phone})
		MERGE (s:Save {id: $save_id})
		SET s.user_phone = $phone,
		    s.title = $title,
		    s.summary = $summary,
		    s.source = $source,
		    s.updated_at = datetime()
		MERGE (u)-[:SAVED]->(s)
	`

	params := map[string]interface{}{
		"phone":   save.Phone,
		"save_id": save.ID,
		"title":   save.Title,
		"summary": save.Summary,
		"source":  save.Source,
	}

	if _, err := session.Run(ctx, query, params); err != nil {
		return fmt.Errorf("failed to merge save structure: %w", err)
	}

	if save.Category != "" {
		categoryQuery := `
			MATCH (s:Save {id: $save_id})
			MERGE (c:Category {user_phone: $phone, name: $category})
			MERGE (s)-[:IN_CATEGORY]->(c)
		`
		_, err := session.Run(ctx, categoryQuery, map[string]interface{}{
			"save_id":  save.ID,
			"phone":    save.Phone,
			"category": save.Category,
		})
		if err != nil {
			return fmt.Errorf("failed to merge category: %w", err)
		}
	}

	for _, tag := range save.Tags {
		if tag == "" {
			continue
		}
		tagQuery := `
			MATCH (s:Save {id: $save_id})
			MERGE (t:Tag {user_phone: $phone, name: $tag})
			MERGE (s)-[:HAS_TAG]->(t)
		`
		_, err := session.Run(ctx, tagQuery, map[string]interface{}{
			"save_id": save.ID,
			"phone":   save.Phone,
			"tag":     tag,
		})
		if err != nil {
			return fmt.Errorf("failed to merge tag %q: %w", tag, err)
		}
	}

	return nil
}

// CategoryCounts returns the user's categories with save counts, for
// visualization context alongside the entity subgraph.
func (r *Repository) CategoryCounts(ctx context.Context, phone string) ([]CategoryCount, error) {
	session := r.readSession(ctx)
	defer session.Close(ctx)

	query := `
		MATCH (c:Category {user_phone: $phone})<-[:IN_CATEGORY]-(s:Save)
		RETURN c.name as name, count(s) as saves
		ORDER BY saves DESC
	`

	result, err := session.Run(ctx, query, map[string]interface{}{"phone": phone})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch category counts: %w", err)
	}

	var counts []CategoryCount
	for result.Next(ctx) {
		record := result.Record()
		counts = append(counts, CategoryCount{
			Name:  getStringFromRecord(record, "name"),
			Saves: getIntFromRecord(record, "saves"),
		})
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("failed to read category counts: %w", err)
	}

	return counts, nil
}
