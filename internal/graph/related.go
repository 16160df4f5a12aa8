package graph

import (
	"context"
	"fmt"
	"math"
	"sort"

	"recallgraph/pkg/logger"
	"go.uber.org/zap"
)

const (
	maxRelatedHops      = 2
	defaultRelatedHops  = 2
	maxRelatedLimit     = 50
	defaultRelatedLimit = 10
	// coOccurHopMinWeight filters which co-occurrence edges are strong
	// enough to expand across during the second hop
	coOccurHopMinWeight = 0.5
	// coOccurHopDamping scales second-hop scores below direct mentions of
	// equal edge weight
	coOccurHopDamping = 0.8
)

// TraversalStore is the read surface the related-saves service needs
type TraversalStore interface {
	SavesMentioning(ctx context.Context, phone string, keys []string) ([]SaveHit, error)
	CoOccurringNeighbors(ctx context.Context, phone string, keys []string, minWeight float64) ([]NeighborHit, error)
}

// RelatedService answers "what saves are related to this entity" via a
// bounded 1-/2-hop graph walk.
type RelatedService struct {
	resolver *Resolver
	store    TraversalStore
	logger   *zap.Logger
}

// NewRelatedService creates a related-saves service. A nil store is allowed
// and reported in the debug field.
func NewRelatedService(resolver *Resolver, store TraversalStore) *RelatedService {
	return &RelatedService{
		resolver: resolver,
		store:    store,
		logger:   logger.Get(),
	}
}

// RelatedRequest identifies an entity either by storage-form key or by name
type RelatedRequest struct {
	Phone      string
	EntityKey  string
	EntityName string
	Hops       int
	Limit      int
}

// RelatedResult is one save reached by the walk
type RelatedResult struct {
	SaveID   string  `json:"save_id"`
	Title    string  `json:"title"`
	Summary  string  `json:"summary,omitempty"`
	Category string  `json:"category,omitempty"`
	Score    float64 `json:"score"`
	PathKind string  `json:"path_kind"`
	Via      string  `json:"via,omitempty"` // bridging entity for co_occurs paths
}

// RelatedResponse is the ranked result list plus explainability fields
type RelatedResponse struct {
	Results      []RelatedResult `json:"results"`
	EntitiesUsed []string        `json:"entities_used"`
	Debug        string          `json:"debug,omitempty"`
}

// Related resolves the identifier, walks direct mentions and (for hops >= 2)
// one co-occurrence hop, deduplicates by save id with direct paths taking
// precedence, and returns the top results by score.
func (s *RelatedService) Related(ctx context.Context, req RelatedRequest) *RelatedResponse {
	hops := clampHops(req.Hops)
	limit := clampRelatedLimit(req.Limit)

	resp := &RelatedResponse{
		Results:      []RelatedResult{},
		EntitiesUsed: []string{},
	}

	if s.store == nil {
		resp.Debug = "graph store not configured"
		return resp
	}

	entities, err := s.resolveIdentifier(ctx, req)
	if err != nil {
		s.logger.Error("Entity resolution failed",
			zap.String("phone", req.Phone),
			zap.String("name", req.EntityName),
			zap.Error(err),
		)
		resp.Debug = "entity resolution failed"
		return resp
	}
	if len(entities) == 0 {
		resp.Debug = fmt.Sprintf("no entity matched %q", identifierOf(req))
		return resp
	}

	keys := make([]string, 0, len(entities))
	for _, ent := range entities {
		keys = append(keys, ent.Key.String())
		resp.EntitiesUsed = append(resp.EntitiesUsed, ent.Name)
	}

	// Direct results come first so a save reachable both ways is reported
	// once, as "direct".
	seen := make(map[string]bool)

	direct, err := s.store.SavesMentioning(ctx, req.Phone, keys)
	if err != nil {
		s.logger.Error("Direct traversal failed", zap.String("phone", req.Phone), zap.Error(err))
		resp.Debug = "traversal failed"
		return resp
	}
	for _, hit := range direct {
		if seen[hit.SaveID] {
			continue
		}
		seen[hit.SaveID] = true
		resp.Results = append(resp.Results, RelatedResult{
			SaveID:   hit.SaveID,
			Title:    hit.Title,
			Summary:  hit.Summary,
			Category: hit.Category,
			Score:    1.0,
			PathKind: "direct",
		})
	}

	if hops >= 2 {
		if err := s.appendCoOccurResults(ctx, req.Phone, keys, seen, resp); err != nil {
			s.logger.Error("Co-occurrence hop failed", zap.String("phone", req.Phone), zap.Error(err))
			resp.Debug = "co-occurrence hop failed; returning direct results only"
		}
	}

	sort.SliceStable(resp.Results, func(i, j int) bool {
		return resp.Results[i].Score > resp.Results[j].Score
	})
	if len(resp.Results) > limit {
		resp.Results = resp.Results[:limit]
	}

	return resp
}

func (s *RelatedService) appendCoOccurResults(ctx context.Context, phone string, keys []string, seen map[string]bool, resp *RelatedResponse) error {
	neighbors, err := s.store.CoOccurringNeighbors(ctx, phone, keys, coOccurHopMinWeight)
	if err != nil {
		return err
	}
	if len(neighbors) == 0 {
		return nil
	}

	// Keep the strongest bridging edge per neighbor.
	byKey := make(map[string]NeighborHit, len(neighbors))
	neighborKeys := make([]string, 0, len(neighbors))
	for _, n := range neighbors {
		if existing, ok := byKey[n.Key]; !ok || n.Weight > existing.Weight {
			if !ok {
				neighborKeys = append(neighborKeys, n.Key)
			}
			byKey[n.Key] = n
		}
	}

	hits, err := s.store.SavesMentioning(ctx, phone, neighborKeys)
	if err != nil {
		return err
	}

	for _, hit := range hits {
		if seen[hit.SaveID] {
			continue
		}
		bridge, ok := byKey[hit.EntityKey]
		if !ok {
			continue
		}
		seen[hit.SaveID] = true
		resp.Results = append(resp.Results, RelatedResult{
			SaveID:   hit.SaveID,
			Title:    hit.Title,
			Summary:  hit.Summary,
			Category: hit.Category,
			Score:    round2(bridge.Weight * coOccurHopDamping),
			PathKind: "co_occurs",
			Via:      bridge.Name,
		})
	}

	return nil
}

func (s *RelatedService) resolveIdentifier(ctx context.Context, req RelatedRequest) ([]Entity, error) {
	if req.EntityKey != "" {
		return s.resolver.ResolveKey(ctx, req.EntityKey)
	}
	return s.resolver.ResolveName(ctx, req.Phone, req.EntityName)
}

func identifierOf(req RelatedRequest) string {
	if req.EntityKey != "" {
		return req.EntityKey
	}
	return req.EntityName
}

func clampHops(h int) int {
	if h <= 0 {
		return defaultRelatedHops
	}
	if h > maxRelatedHops {
		return maxRelatedHops
	}
	return h
}

func clampRelatedLimit(l int) int {
	if l <= 0 {
		return defaultRelatedLimit
	}
	if l > maxRelatedLimit {
		return maxRelatedLimit
	}
	return l
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
