package extract

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateWellFormed(t *testing.T) {
	response := `{
		"entities": [
			{"name": "python", "type": "tool", "aliases": ["py"], "confidence": 0.9},
			{"name": "data science", "type": "topic", "confidence": 0.7}
		],
		"relations": [
			{"src": "python", "dst": "data science", "rel_type": "uses", "weight": 0.8, "evidence": "python for data science"}
		]
	}`

	result := Validate(response)
	require.False(t, result.Failed)
	require.Len(t, result.Extraction.Entities, 2)
	assert.Equal(t, "python", result.Extraction.Entities[0].Name)
	assert.Equal(t, []string{"py"}, result.Extraction.Entities[0].Aliases)
	require.Len(t, result.Extraction.Relations, 1)
	assert.Equal(t, "uses", result.Extraction.Relations[0].RelType)
}

func TestValidateFencedResponse(t *testing.T) {
	response := "Here is the extraction:\n```json\n" +
		`{"entities":[{"name":"python","type":"tool","confidence":0.9}],"relations":[]}` +
		"\n```\nLet me know if you need anything else."

	result := Validate(response)
	require.False(t, result.Failed)
	require.Len(t, result.Extraction.Entities, 1)
	assert.Equal(t, "python", result.Extraction.Entities[0].Name)
}

func TestValidateMalformed(t *testing.T) {
	tests := []struct {
		name     string
		response string
	}{
		{"empty", ""},
		{"prose only", "I could not find any entities in this note."},
		{"truncated json", `{"entities":[{"name":"python"`},
		{"wrong shape", `{"message":"hello"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Validate(tt.response)
			assert.True(t, result.Failed)
			assert.NotEmpty(t, result.Reason)
			assert.Empty(t, result.Extraction.Entities)
			assert.Empty(t, result.Extraction.Relations)
		})
	}
}

func TestValidateDropsEmptyNames(t *testing.T) {
	response := `{
		"entities": [
			{"name": "   ", "type": "tool", "confidence": 0.9},
			{"name": "python", "type": "tool", "confidence": 0.9}
		],
		"relations": [
			{"src": "", "dst": "python", "rel_type": "uses", "weight": 0.5},
			{"src": "python", "dst": "pandas", "rel_type": "", "weight": 0.5}
		]
	}`

	result := Validate(response)
	require.False(t, result.Failed)
	require.Len(t, result.Extraction.Entities, 1)
	assert.Empty(t, result.Extraction.Relations)
}

func TestValidateClampsScores(t *testing.T) {
	response := `{
		"entities": [{"name": "python", "type": "TOOL", "confidence": 1.7}],
		"relations": [{"src": "a", "dst": "b", "rel_type": "uses", "weight": -0.2}]
	}`

	result := Validate(response)
	require.False(t, result.Failed)
	assert.Equal(t, 1.0, result.Extraction.Entities[0].Confidence)
	assert.Equal(t, "tool", result.Extraction.Entities[0].Type)
	assert.Equal(t, 0.0, result.Extraction.Relations[0].Weight)
}

func TestValidateCapsOutput(t *testing.T) {
	var ents, rels []string
	for i := 0; i < 20; i++ {
		ents = append(ents, fmt.Sprintf(`{"name":"entity %d","type":"other","confidence":0.5}`, i))
		rels = append(rels, fmt.Sprintf(`{"src":"entity %d","dst":"entity %d","rel_type":"uses","weight":0.5}`, i, i+1))
	}
	response := fmt.Sprintf(`{"entities":[%s],"relations":[%s]}`,
		strings.Join(ents, ","), strings.Join(rels, ","))

	result := Validate(response)
	require.False(t, result.Failed)
	assert.Len(t, result.Extraction.Entities, maxEntities)
	assert.Len(t, result.Extraction.Relations, maxRelations)
}

func TestValidateEmptyExtraction(t *testing.T) {
	result := Validate(`{"entities":[],"relations":[]}`)
	assert.False(t, result.Failed, "empty but well-shaped output is valid")
	assert.Empty(t, result.Extraction.Entities)
}
