package graph

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// ============================================================================
// Record helpers
// ============================================================================

func getStringFromRecord(record *neo4j.Record, key string) string {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return ""
	}
	if str, ok := val.(string); ok {
		return str
	}
	return ""
}

func getIntFromRecord(record *neo4j.Record, key string) int {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return 0
	}
	if i, ok := val.(int64); ok {
		return int(i)
	}
	if i, ok := val.(int); ok {
		return i
	}
	return 0
}

func getFloat64FromRecord(record *neo4j.Record, key string) float64 {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return 0.0
	}
	if f, ok := val.(float64); ok {
		return f
	}
	if i, ok := val.(int64); ok {
		return float64(i)
	}
	return 0.0
}

func getStringSliceFromRecord(record *neo4j.Record, key string) []string {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return []string{}
	}
	if slice, ok := val.([]interface{}); ok {
		result := make([]string, 0, len(slice))
		for _, v := range slice {
			if str, ok := v.(string); ok {
				result = append(result, str)
			}
		}
		return result
	}
	return []string{}
}

func collectEntities(ctx context.Context, result neo4j.ResultWithContext) ([]Entity, error) {
	var entities []Entity
	for result.Next(ctx) {
		entities = append(entities, entityFromRecord(result.Record()))
	}
	if err := result.Err(); err != nil {
		return nil, err
	}
	return entities, nil
}

func entityFromRecord(record *neo4j.Record) Entity {
	return Entity{
		Key:     ParseKey(getStringFromRecord(record, "key")),
		Name:    getStringFromRecord(record, "name"),
		Type:    EntityType(getStringFromRecord(record, "type")),
		Aliases: getStringSliceFromRecord(record, "aliases"),
	}
}
