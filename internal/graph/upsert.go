package graph

import (
	"context"

	"recallgraph/internal/extract"
	"recallgraph/pkg/logger"
	"go.uber.org/zap"
)

// GraphWriter is the write surface the upserter needs. All methods are
// merge-style: safe to re-run for the same save.
type GraphWriter interface {
	MergeSaveStructure(ctx context.Context, save SaveInput) error
	MergeEntity(ctx context.Context, ent Entity) error
	MergeMention(ctx context.Context, saveID string, key EntityKey, confidence float64) error
	MergeCoOccurrence(ctx context.Context, a, b EntityKey) error
	MergeRelation(ctx context.Context, rel RelationEdge) error
}

// Upserter merges one save plus its extraction into the graph. Re-running
// for an unchanged save leaves MENTIONS confidence and RELATED_TO weight
// unchanged (max-merge); CO_OCCURS_WITH weight grows by one per pair per
// run, by design.
type Upserter struct {
	writer   GraphWriter
	resolver *Resolver
	logger   *zap.Logger
}

// NewUpserter creates an upserter over the given writer and resolver
func NewUpserter(writer GraphWriter, resolver *Resolver) *Upserter {
	return &Upserter{
		writer:   writer,
		resolver: resolver,
		logger:   logger.Get(),
	}
}

// UpsertResult summarizes what one upsert merged
type UpsertResult struct {
	EntityCount   int
	RelationCount int
	Entities      []string
}

// UpsertSave merges the save's base structure, its extracted entities and
// their edges. A zero-entity extraction still merges the base Save/Category/
// Tag structure, so extraction failure never blocks bookkeeping.
func (u *Upserter) UpsertSave(ctx context.Context, save SaveInput, ex extract.Extraction) (*UpsertResult, error) {
	if err := u.writer.MergeSaveStructure(ctx, save); err != nil {
		return nil, err
	}

	// Resolve-and-merge each extracted entity, building the name -> key map
	// that relation resolution reuses. Resolving relations through this map
	// (instead of re-normalizing strings later) keeps the two stages from
	// drifting apart.
	nameToKey := make(map[string]EntityKey)
	seenKeys := make(map[string]bool)
	var resolvedKeys []EntityKey
	var entityNames []string

	for _, cand := range ex.Entities {
		normalized := NormalizeName(cand.Name)
		if normalized == "" {
			continue
		}

		matches, err := u.resolver.ResolveName(ctx, save.Phone, cand.Name)
		if err != nil {
			return nil, err
		}

		var key EntityKey
		if len(matches) > 0 {
			key = matches[0].Key
		} else {
			key = EntityKey{Phone: save.Phone, Name: normalized}
		}

		ent := Entity{
			Key:     key,
			Name:    key.Name,
			Type:    ParseEntityType(cand.Type),
			Aliases: cand.Aliases,
		}
		if err := u.writer.MergeEntity(ctx, ent); err != nil {
			return nil, err
		}
		if err := u.writer.MergeMention(ctx, save.ID, key, cand.Confidence); err != nil {
			return nil, err
		}

		// Two candidates can resolve onto the same entity (a fuzzy variant
		// of one already merged); count the entity once.
		if !seenKeys[key.String()] {
			seenKeys[key.String()] = true
			resolvedKeys = append(resolvedKeys, key)
			entityNames = append(entityNames, key.Name)
		}
		nameToKey[normalized] = key
		for _, alias := range cand.Aliases {
			if a := NormalizeName(alias); a != "" {
				if _, taken := nameToKey[a]; !taken {
					nameToKey[a] = key
				}
			}
		}
	}

	// Every unordered pair of entities in this save co-occurred once.
	for _, pair := range CanonicalPairs(resolvedKeys) {
		if err := u.writer.MergeCoOccurrence(ctx, pair.A, pair.B); err != nil {
			return nil, err
		}
	}

	relationCount := 0
	for _, rel := range ex.Relations {
		src, srcOK := nameToKey[NormalizeName(rel.Src)]
		dst, dstOK := nameToKey[NormalizeName(rel.Dst)]
		if !srcOK || !dstOK {
			// Relations whose endpoints didn't resolve to extracted
			// entities are dropped silently.
			u.logger.Debug("Dropping relation with unresolved endpoint",
				zap.String("src", rel.Src),
				zap.String("dst", rel.Dst),
				zap.String("rel_type", rel.RelType),
			)
			continue
		}
		if src == dst {
			continue
		}

		edge := RelationEdge{
			Src:      src,
			Dst:      dst,
			RelType:  rel.RelType,
			Weight:   rel.Weight,
			Evidence: rel.Evidence,
		}
		if err := u.writer.MergeRelation(ctx, edge); err != nil {
			return nil, err
		}
		relationCount++
	}

	return &UpsertResult{
		EntityCount:   len(resolvedKeys),
		RelationCount: relationCount,
		Entities:      entityNames,
	}, nil
}
