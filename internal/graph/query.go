package graph

import (
	"context"

	"recallgraph/pkg/logger"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	// maxQueryNodes is the hard server-side cap on returned entity nodes;
	// edge count grows quadratically in node count, so this stays small.
	maxQueryNodes     = 60
	defaultQueryNodes = 40
	// minEdgeWeightFloor is enforced regardless of what the client asks for
	minEdgeWeightFloor = 0.3
)

// QueryStore is the read surface the query service needs
type QueryStore interface {
	TopMentionedEntities(ctx context.Context, phone string, limit int) ([]EntityMentions, error)
	CoOccurrenceEdges(ctx context.Context, phone string, keys []string, minWeight float64) ([]GraphEdge, error)
	CategoryCounts(ctx context.Context, phone string) ([]CategoryCount, error)
}

// QueryService serves bounded subgraphs for visualization. It never
// propagates store errors to callers: failures degrade to an empty
// response with a message.
type QueryService struct {
	store  QueryStore
	logger *zap.Logger
}

// NewQueryService creates a query service. A nil store is allowed and
// reported as "graph store not configured".
func NewQueryService(store QueryStore) *QueryService {
	return &QueryService{
		store:  store,
		logger: logger.Get(),
	}
}

// QueryRequest carries the client's (unclamped) parameters
type QueryRequest struct {
	Phone         string
	LimitNodes    int
	MinEdgeWeight float64
}

// QueryNode is one node of the returned subgraph. Entity nodes carry
// mention counts; appended category nodes carry save counts instead.
type QueryNode struct {
	Key      string `json:"key"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Mentions int    `json:"mentions,omitempty"`
	Saves    int    `json:"saves,omitempty"`
}

// QueryMeta reports the effective parameters and result shape
type QueryMeta struct {
	LimitNodes    int     `json:"limit_nodes"`
	MinEdgeWeight float64 `json:"min_edge_weight"`
	NodeCount     int     `json:"node_count"`
	EdgeCount     int     `json:"edge_count"`
	Message       string  `json:"message,omitempty"`
}

// QueryResponse is the subgraph payload
type QueryResponse struct {
	Nodes []QueryNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
	Meta  QueryMeta   `json:"meta"`
}

// Query returns the top entities by live-recomputed mention frequency, the
// co-occurrence edges strictly between them above the clamped weight floor,
// and the user's categories for context.
func (s *QueryService) Query(ctx context.Context, req QueryRequest) *QueryResponse {
	limit := clampLimitNodes(req.LimitNodes)
	minWeight := clampMinEdgeWeight(req.MinEdgeWeight)

	resp := &QueryResponse{
		Nodes: []QueryNode{},
		Edges: []GraphEdge{},
		Meta: QueryMeta{
			LimitNodes:    limit,
			MinEdgeWeight: minWeight,
		},
	}

	if s.store == nil {
		resp.Meta.Message = "graph store not configured"
		return resp
	}

	ranked, err := s.store.TopMentionedEntities(ctx, req.Phone, limit)
	if err != nil {
		s.logger.Error("Entity ranking failed", zap.String("phone", req.Phone), zap.Error(err))
		resp.Meta.Message = "graph query failed"
		return resp
	}
	if len(ranked) == 0 {
		resp.Meta.Message = "no entities yet for this user"
		return resp
	}

	keys := make([]string, 0, len(ranked))
	for _, em := range ranked {
		keys = append(keys, em.Entity.Key.String())
		resp.Nodes = append(resp.Nodes, QueryNode{
			Key:      em.Entity.Key.String(),
			Name:     em.Entity.Name,
			Type:     string(em.Entity.Type),
			Mentions: em.Mentions,
		})
	}

	var edges []GraphEdge
	var categories []CategoryCount

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		edges, err = s.store.CoOccurrenceEdges(gctx, req.Phone, keys, minWeight)
		return err
	})
	g.Go(func() error {
		var err error
		categories, err = s.store.CategoryCounts(gctx, req.Phone)
		return err
	})
	if err := g.Wait(); err != nil {
		s.logger.Error("Subgraph fetch failed", zap.String("phone", req.Phone), zap.Error(err))
		resp.Meta.Message = "graph query failed"
		return resp
	}

	resp.Edges = append(resp.Edges, edges...)
	for _, cat := range categories {
		resp.Nodes = append(resp.Nodes, QueryNode{
			Key:   "category:" + cat.Name,
			Name:  cat.Name,
			Type:  "category",
			Saves: cat.Saves,
		})
	}

	resp.Meta.NodeCount = len(resp.Nodes)
	resp.Meta.EdgeCount = len(resp.Edges)
	return resp
}

func clampLimitNodes(n int) int {
	if n <= 0 {
		return defaultQueryNodes
	}
	if n > maxQueryNodes {
		return maxQueryNodes
	}
	return n
}

func clampMinEdgeWeight(w float64) float64 {
	if w < minEdgeWeightFloor {
		return minEdgeWeightFloor
	}
	return w
}
