package graph

import (
	"context"
	"sort"

	"recallgraph/pkg/logger"
	"go.uber.org/zap"
)

const (
	// fuzzyPrefixLen bounds the fuzzy candidate set: only entities whose
	// normalized name shares this prefix with the query are compared.
	fuzzyPrefixLen = 4
	// fuzzyMaxDistance is the largest edit distance still accepted as a match
	fuzzyMaxDistance = 3
	// fuzzyMaxMatches caps how many fuzzy matches a single query returns
	fuzzyMaxMatches = 3
)

// EntityLookup is the read surface the resolver needs from the graph store
type EntityLookup interface {
	EntityByKey(ctx context.Context, key EntityKey) (*Entity, error)
	EntitiesByName(ctx context.Context, phone, normalizedName string) ([]Entity, error)
	EntitiesByPrefix(ctx context.Context, phone, prefix string) ([]Entity, error)
}

// Resolver maps candidate entity names onto existing entities in a user's
// namespace: exact key/name match first, prefix-bounded fuzzy match second.
type Resolver struct {
	lookup EntityLookup
	logger *zap.Logger
}

// NewResolver creates a resolver over the given lookup
func NewResolver(lookup EntityLookup) *Resolver {
	return &Resolver{
		lookup: lookup,
		logger: logger.Get(),
	}
}

// ResolveName resolves a candidate name within one user's namespace.
// Stage 1 is exact: the deterministic key, then case-insensitive
// normalized-name or alias equality. Stage 2 (only when stage 1 is empty)
// is fuzzy: candidates sharing the first 4 normalized characters, edit
// distance at most 3, up to 3 matches ascending by distance.
func (r *Resolver) ResolveName(ctx context.Context, phone, name string) ([]Entity, error) {
	normalized := NormalizeName(name)
	if normalized == "" {
		return nil, nil
	}

	key := EntityKey{Phone: phone, Name: normalized}
	if ent, err := r.lookup.EntityByKey(ctx, key); err != nil {
		return nil, err
	} else if ent != nil {
		return []Entity{*ent}, nil
	}

	exact, err := r.lookup.EntitiesByName(ctx, phone, normalized)
	if err != nil {
		return nil, err
	}
	if len(exact) > 0 {
		return exact, nil
	}

	return r.resolveFuzzy(ctx, phone, normalized)
}

// ResolveKey resolves a storage-form key directly
func (r *Resolver) ResolveKey(ctx context.Context, rawKey string) ([]Entity, error) {
	key := ParseKey(rawKey)
	if key.Phone == "" || key.Name == "" {
		return nil, nil
	}
	ent, err := r.lookup.EntityByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if ent == nil {
		return nil, nil
	}
	return []Entity{*ent}, nil
}

func (r *Resolver) resolveFuzzy(ctx context.Context, phone, normalized string) ([]Entity, error) {
	// Rune-wise, not byte-wise: a multi-byte rune at the boundary must not
	// be split into an invalid prefix.
	prefix := normalized
	if runes := []rune(prefix); len(runes) > fuzzyPrefixLen {
		prefix = string(runes[:fuzzyPrefixLen])
	}

	candidates, err := r.lookup.EntitiesByPrefix(ctx, phone, prefix)
	if err != nil {
		return nil, err
	}

	type scored struct {
		ent  Entity
		dist int
	}
	var matches []scored
	for _, cand := range candidates {
		d := editDistance(normalized, cand.Name)
		if d <= fuzzyMaxDistance {
			matches = append(matches, scored{ent: cand, dist: d})
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].dist != matches[j].dist {
			return matches[i].dist < matches[j].dist
		}
		return matches[i].ent.Name < matches[j].ent.Name
	})

	if len(matches) > fuzzyMaxMatches {
		matches = matches[:fuzzyMaxMatches]
	}

	result := make([]Entity, 0, len(matches))
	for _, m := range matches {
		result = append(result, m.ent)
	}

	if len(result) > 0 {
		r.logger.Debug("Fuzzy-resolved entity name",
			zap.String("query", normalized),
			zap.String("match", result[0].Name),
		)
	}

	return result, nil
}

// editDistance computes the Levenshtein distance between two strings using
// a two-row dynamic program.
func editDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = minInt(prev[j]+1, minInt(curr[j-1]+1, prev[j-1]+cost))
		}
		prev, curr = curr, prev
	}

	return prev[len(rb)]
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
