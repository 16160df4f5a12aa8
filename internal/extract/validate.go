package extract

import (
	"encoding/json"
	"strings"
)

// rawExtraction mirrors the JSON shape the model is asked for, before any
// sanitization.
type rawExtraction struct {
	Entities  []rawEntity   `json:"entities"`
	Relations []rawRelation `json:"relations"`
}

type rawEntity struct {
	Name       string   `json:"name"`
	Type       string   `json:"type"`
	Aliases    []string `json:"aliases"`
	Confidence float64  `json:"confidence"`
}

type rawRelation struct {
	Src      string  `json:"src"`
	Dst      string  `json:"dst"`
	RelType  string  `json:"rel_type"`
	Weight   float64 `json:"weight"`
	Evidence string  `json:"evidence"`
}

// Validate turns raw model output into a tagged Result. Unparseable or
// wrongly-shaped output yields a Failed result with empty arrays; valid
// output is sanitized (unknown types kept as-is for the graph layer to
// normalize, confidences and weights clamped, empty names dropped) and
// capped at 12 entities / 10 relations.
func Validate(response string) Result {
	jsonStr := carveJSONObject(response)
	if jsonStr == "" {
		return failed("no JSON object in response")
	}

	var raw rawExtraction
	if err := json.Unmarshal([]byte(jsonStr), &raw); err != nil {
		return failed("malformed JSON: " + err.Error())
	}
	if raw.Entities == nil && raw.Relations == nil {
		return failed("response has neither entities nor relations")
	}

	var ex Extraction
	for _, re := range raw.Entities {
		name := strings.TrimSpace(re.Name)
		if name == "" {
			continue
		}
		ex.Entities = append(ex.Entities, Entity{
			Name:       name,
			Type:       strings.ToLower(strings.TrimSpace(re.Type)),
			Aliases:    cleanAliases(re.Aliases),
			Confidence: clamp01(re.Confidence),
		})
		if len(ex.Entities) >= maxEntities {
			break
		}
	}

	for _, rr := range raw.Relations {
		src := strings.TrimSpace(rr.Src)
		dst := strings.TrimSpace(rr.Dst)
		relType := strings.TrimSpace(rr.RelType)
		if src == "" || dst == "" || relType == "" {
			continue
		}
		ex.Relations = append(ex.Relations, Relation{
			Src:      src,
			Dst:      dst,
			RelType:  relType,
			Weight:   clamp01(rr.Weight),
			Evidence: strings.TrimSpace(rr.Evidence),
		})
		if len(ex.Relations) >= maxRelations {
			break
		}
	}

	return Result{Extraction: ex}
}

// carveJSONObject extracts the outermost {...} block from a response that
// may be wrapped in markdown fences or prose.
func carveJSONObject(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return ""
	}
	return s[start : end+1]
}

func cleanAliases(aliases []string) []string {
	var out []string
	for _, a := range aliases {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

func failed(reason string) Result {
	return Result{Failed: true, Reason: reason}
}
