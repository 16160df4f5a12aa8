package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTraversalStore serves saves per entity key, mirroring the
// MENTIONS/CO_OCCURS_WITH read queries.
type fakeTraversalStore struct {
	savesByKey map[string][]SaveHit
	neighbors  []NeighborHit

	gotMinWeight float64
}

func (f *fakeTraversalStore) SavesMentioning(_ context.Context, _ string, keys []string) ([]SaveHit, error) {
	var out []SaveHit
	for _, k := range keys {
		out = append(out, f.savesByKey[k]...)
	}
	return out, nil
}

func (f *fakeTraversalStore) CoOccurringNeighbors(_ context.Context, _ string, _ []string, minWeight float64) ([]NeighborHit, error) {
	f.gotMinWeight = minWeight
	var out []NeighborHit
	for _, n := range f.neighbors {
		if n.Weight >= minWeight {
			out = append(out, n)
		}
	}
	return out, nil
}

func newRelatedFixture(phone string) (*fakeTraversalStore, *RelatedService) {
	python := testEntity(phone, "python")
	pandas := testEntity(phone, "pandas")

	store := &fakeTraversalStore{
		savesByKey: map[string][]SaveHit{
			python.Key.String(): {
				{SaveID: "save-1", Title: "Python tips", EntityKey: python.Key.String()},
			},
			pandas.Key.String(): {
				{SaveID: "save-2", Title: "Pandas cookbook", EntityKey: pandas.Key.String()},
			},
		},
		neighbors: []NeighborHit{
			{Key: pandas.Key.String(), Name: "pandas", Weight: 1.0},
		},
	}
	lookup := &fakeLookup{entities: []Entity{python, pandas}}
	return store, NewRelatedService(NewResolver(lookup), store)
}

func TestRelatedDirectAndCoOccur(t *testing.T) {
	phone := "+15551234567"
	_, svc := newRelatedFixture(phone)

	resp := svc.Related(context.Background(), RelatedRequest{Phone: phone, EntityName: "python"})

	require.Len(t, resp.Results, 2)
	assert.Equal(t, "save-1", resp.Results[0].SaveID)
	assert.Equal(t, "direct", resp.Results[0].PathKind)
	assert.Equal(t, 1.0, resp.Results[0].Score)

	assert.Equal(t, "save-2", resp.Results[1].SaveID)
	assert.Equal(t, "co_occurs", resp.Results[1].PathKind)
	assert.Equal(t, 0.8, resp.Results[1].Score, "edge weight damped by 0.8")
	assert.Equal(t, "pandas", resp.Results[1].Via)
	assert.Equal(t, []string{"python"}, resp.EntitiesUsed)
}

func TestRelatedHopsOneSkipsExpansion(t *testing.T) {
	phone := "+15551234567"
	_, svc := newRelatedFixture(phone)

	resp := svc.Related(context.Background(), RelatedRequest{Phone: phone, EntityName: "python", Hops: 1})

	require.Len(t, resp.Results, 1)
	assert.Equal(t, "direct", resp.Results[0].PathKind)
}

func TestRelatedDirectTakesPrecedence(t *testing.T) {
	phone := "+15551234567"
	store, svc := newRelatedFixture(phone)

	// The bridged entity also mentions save-1; the direct path wins.
	pandasKey := NewEntityKey(phone, "pandas").String()
	store.savesByKey[pandasKey] = append(store.savesByKey[pandasKey],
		SaveHit{SaveID: "save-1", Title: "Python tips", EntityKey: pandasKey})

	resp := svc.Related(context.Background(), RelatedRequest{Phone: phone, EntityName: "python"})

	counts := make(map[string]int)
	for _, r := range resp.Results {
		counts[r.SaveID]++
	}
	assert.Equal(t, 1, counts["save-1"], "a save reachable both ways appears once")
	for _, r := range resp.Results {
		if r.SaveID == "save-1" {
			assert.Equal(t, "direct", r.PathKind)
		}
	}
}

func TestRelatedWeakNeighborsFiltered(t *testing.T) {
	phone := "+15551234567"
	store, svc := newRelatedFixture(phone)
	store.neighbors[0].Weight = 0.4

	resp := svc.Related(context.Background(), RelatedRequest{Phone: phone, EntityName: "python"})

	require.Len(t, resp.Results, 1, "edges below 0.5 are not expanded")
	assert.Equal(t, 0.5, store.gotMinWeight)
}

func TestRelatedLimitTruncates(t *testing.T) {
	phone := "+15551234567"
	store, svc := newRelatedFixture(phone)
	pythonKey := NewEntityKey(phone, "python").String()
	for _, id := range []string{"save-3", "save-4", "save-5"} {
		store.savesByKey[pythonKey] = append(store.savesByKey[pythonKey],
			SaveHit{SaveID: id, EntityKey: pythonKey})
	}

	resp := svc.Related(context.Background(), RelatedRequest{Phone: phone, EntityName: "python", Limit: 2})

	assert.Len(t, resp.Results, 2)
}

func TestRelatedClampsHopsAndLimit(t *testing.T) {
	phone := "+15551234567"
	_, svc := newRelatedFixture(phone)

	resp := svc.Related(context.Background(), RelatedRequest{
		Phone:      phone,
		EntityName: "python",
		Hops:       9,
		Limit:      500,
	})

	// Hops clamp to 2: the co-occurrence hop still runs, nothing deeper.
	require.Len(t, resp.Results, 2)
}

func TestRelatedUnresolvedIdentifier(t *testing.T) {
	phone := "+15551234567"
	_, svc := newRelatedFixture(phone)

	resp := svc.Related(context.Background(), RelatedRequest{Phone: phone, EntityName: "zzzz"})

	assert.Empty(t, resp.Results)
	assert.Contains(t, resp.Debug, "no entity matched")
}

func TestRelatedNilStore(t *testing.T) {
	svc := NewRelatedService(nil, nil)

	resp := svc.Related(context.Background(), RelatedRequest{Phone: "+1", EntityName: "python"})

	assert.Empty(t, resp.Results)
	assert.Equal(t, "graph store not configured", resp.Debug)
}

func TestRelatedByKey(t *testing.T) {
	phone := "+15551234567"
	_, svc := newRelatedFixture(phone)

	resp := svc.Related(context.Background(), RelatedRequest{
		Phone:     phone,
		EntityKey: NewEntityKey(phone, "pandas").String(),
	})

	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "save-2", resp.Results[0].SaveID)
	assert.Equal(t, []string{"pandas"}, resp.EntitiesUsed)
}
