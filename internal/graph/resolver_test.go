package graph

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLookup is an in-memory EntityLookup for resolver tests
type fakeLookup struct {
	entities   []Entity
	lastPrefix string
}

func (f *fakeLookup) EntityByKey(_ context.Context, key EntityKey) (*Entity, error) {
	for _, e := range f.entities {
		if e.Key == key {
			ent := e
			return &ent, nil
		}
	}
	return nil, nil
}

func (f *fakeLookup) EntitiesByName(_ context.Context, phone, name string) ([]Entity, error) {
	var out []Entity
	for _, e := range f.entities {
		if e.Key.Phone != phone {
			continue
		}
		if e.Name == name {
			out = append(out, e)
			continue
		}
		for _, a := range e.Aliases {
			if strings.ToLower(a) == name {
				out = append(out, e)
				break
			}
		}
	}
	return out, nil
}

func (f *fakeLookup) EntitiesByPrefix(_ context.Context, phone, prefix string) ([]Entity, error) {
	f.lastPrefix = prefix
	var out []Entity
	for _, e := range f.entities {
		if e.Key.Phone == phone && strings.HasPrefix(e.Name, prefix) {
			out = append(out, e)
		}
	}
	return out, nil
}

func testEntity(phone, name string) Entity {
	key := NewEntityKey(phone, name)
	return Entity{Key: key, Name: key.Name, Type: EntityOther}
}

func TestEditDistance(t *testing.T) {
	assert.Equal(t, 0, editDistance("python", "python"))
	assert.Equal(t, 0, editDistance("", ""))
	assert.Equal(t, 6, editDistance("", "python"))
	assert.Equal(t, 1, editDistance("python", "pythons"))
	assert.Equal(t, 1, editDistance("python", "pithon"))
	assert.Equal(t, 3, editDistance("kitten", "sitting"))
}

func TestResolveNameExactByKey(t *testing.T) {
	phone := "+15551234567"
	lookup := &fakeLookup{entities: []Entity{testEntity(phone, "python")}}
	r := NewResolver(lookup)

	got, err := r.ResolveName(context.Background(), phone, "  PYTHON ")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "python", got[0].Name)
}

func TestResolveNameByAlias(t *testing.T) {
	phone := "+15551234567"
	ent := testEntity(phone, "javascript")
	ent.Aliases = []string{"JS"}
	lookup := &fakeLookup{entities: []Entity{ent}}
	r := NewResolver(lookup)

	got, err := r.ResolveName(context.Background(), phone, "js")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "javascript", got[0].Name)
}

func TestResolveNameFuzzy(t *testing.T) {
	phone := "+15551234567"
	lookup := &fakeLookup{entities: []Entity{
		testEntity(phone, "pandas"),
		testEntity(phone, "pandas dataframe"), // distance > 3, same prefix
		testEntity(phone, "pytorch"),          // different prefix
	}}
	r := NewResolver(lookup)

	got, err := r.ResolveName(context.Background(), phone, "panda")
	require.NoError(t, err)
	require.Len(t, got, 1, "only candidates within distance 3 match")
	assert.Equal(t, "pandas", got[0].Name)
}

func TestResolveNameFuzzyOrderingAndCap(t *testing.T) {
	phone := "+15551234567"
	lookup := &fakeLookup{entities: []Entity{
		testEntity(phone, "testers"), // distance 3
		testEntity(phone, "tests"),   // distance 1
		testEntity(phone, "testy"),   // distance 1
		testEntity(phone, "tester"),  // distance 2
	}}
	r := NewResolver(lookup)

	got, err := r.ResolveName(context.Background(), phone, "test")
	require.NoError(t, err)
	require.Len(t, got, 3, "fuzzy matches are capped at 3")
	// Ascending by distance, name breaks ties.
	assert.Equal(t, "tests", got[0].Name)
	assert.Equal(t, "testy", got[1].Name)
	assert.Equal(t, "tester", got[2].Name)
}

func TestResolveNamePrefixBoundsCandidates(t *testing.T) {
	phone := "+15551234567"
	// "note" is within distance 3 of "node" but shares no 4-char prefix,
	// so the fuzzy stage never sees it.
	lookup := &fakeLookup{entities: []Entity{testEntity(phone, "note")}}
	r := NewResolver(lookup)

	got, err := r.ResolveName(context.Background(), phone, "node")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestResolveNameFuzzyMultibytePrefix(t *testing.T) {
	phone := "+15551234567"
	lookup := &fakeLookup{entities: []Entity{testEntity(phone, "añejos")}}
	r := NewResolver(lookup)

	got, err := r.ResolveName(context.Background(), phone, "añejo")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "añejos", got[0].Name)

	// The candidate prefix is the first 4 characters, not the first 4 bytes.
	assert.Equal(t, "añej", lookup.lastPrefix)
	assert.True(t, utf8.ValidString(lookup.lastPrefix))
}

func TestResolveNameDoesNotCrossTenants(t *testing.T) {
	lookup := &fakeLookup{entities: []Entity{testEntity("+15550000001", "python")}}
	r := NewResolver(lookup)

	got, err := r.ResolveName(context.Background(), "+15550000002", "python")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestResolveNameEmpty(t *testing.T) {
	r := NewResolver(&fakeLookup{})
	got, err := r.ResolveName(context.Background(), "+1", "  !! ")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestResolveKey(t *testing.T) {
	phone := "+15551234567"
	ent := testEntity(phone, "python")
	r := NewResolver(&fakeLookup{entities: []Entity{ent}})

	got, err := r.ResolveKey(context.Background(), ent.Key.String())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, ent.Key, got[0].Key)

	missing, err := r.ResolveKey(context.Background(), phone+"::nothing")
	require.NoError(t, err)
	assert.Empty(t, missing)
}
