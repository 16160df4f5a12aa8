package extract

// Entity is one candidate entity produced by the model
type Entity struct {
	Name       string   `json:"name"`
	Type       string   `json:"type"`
	Aliases    []string `json:"aliases,omitempty"`
	Confidence float64  `json:"confidence"`
}

// Relation is one candidate relation between extracted entities
type Relation struct {
	Src      string  `json:"src"`
	Dst      string  `json:"dst"`
	RelType  string  `json:"rel_type"`
	Weight   float64 `json:"weight"`
	Evidence string  `json:"evidence,omitempty"`
}

// Extraction is the validated, sanitized output of one extraction run
type Extraction struct {
	Entities  []Entity   `json:"entities"`
	Relations []Relation `json:"relations"`
}

// Result is the tagged outcome of validating model output. A Failed result
// carries an empty Extraction and the reason; the enclosing job still
// succeeds, so flaky model output cannot cause retry storms.
type Result struct {
	Extraction Extraction
	Failed     bool
	Reason     string
}

// SaveFields is the slice of a save record the extractor prompts with
type SaveFields struct {
	Title    string
	Summary  string
	Category string
	Tags     []string
	Source   string
	Note     string
}
