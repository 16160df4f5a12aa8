package extract

import (
	"context"
	"fmt"
	"strings"

	"recallgraph/pkg/config"
	"recallgraph/pkg/logger"
	"go.uber.org/zap"
)

const (
	// maxEntities and maxRelations hard-cap extraction output to bound
	// graph growth and LLM cost per save.
	maxEntities  = 12
	maxRelations = 10
)

const defaultSystemPrompt = `You extract entities and relations from short personal notes.
Respond with a single JSON object and nothing else:
{"entities":[{"name":"...","type":"tool|concept|topic|exercise|food|brand|person|other","aliases":["..."],"confidence":0.0}],
"relations":[{"src":"...","dst":"...","rel_type":"...","weight":0.0,"evidence":"..."}]}
Use at most 12 entities and 10 relations. Relation src/dst must be entity names from your own entities list.`

const defaultUserPrompt = `Extract entities and relations from this saved note.

Title: %s
Summary: %s
Category: %s
Tags: %s
Source: %s
Note: %s`

// LLMClient is the text-completion surface the extractor consumes. Retry of
// transport-level failures is owned by the implementation, not by this
// package.
type LLMClient interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Extractor turns save fields into candidate entities and relations via an
// LLM, validating the response strictly instead of blind-parsing it.
type Extractor struct {
	llm     LLMClient
	prompts config.Prompts
	logger  *zap.Logger
}

// NewExtractor creates an extractor. Empty prompt fields fall back to the
// compiled-in defaults.
func NewExtractor(llm LLMClient, prompts config.Prompts) *Extractor {
	if prompts.ExtractionSystem == "" {
		prompts.ExtractionSystem = defaultSystemPrompt
	}
	if prompts.ExtractionUser == "" {
		prompts.ExtractionUser = defaultUserPrompt
	}
	return &Extractor{
		llm:     llm,
		prompts: prompts,
		logger:  logger.Get(),
	}
}

// Extract runs one extraction. A transport error from the LLM is returned
// to the caller (the job layer owns retries); malformed model output is a
// soft failure reported in the tagged Result.
func (e *Extractor) Extract(ctx context.Context, save SaveFields) (Result, error) {
	userPrompt := fmt.Sprintf(e.prompts.ExtractionUser,
		save.Title,
		save.Summary,
		save.Category,
		strings.Join(save.Tags, ", "),
		save.Source,
		save.Note,
	)

	response, err := e.llm.Complete(ctx, e.prompts.ExtractionSystem, userPrompt)
	if err != nil {
		return Result{}, fmt.Errorf("extraction request failed: %w", err)
	}

	result := Validate(response)
	if result.Failed {
		e.logger.Warn("Extraction output rejected",
			zap.String("reason", result.Reason),
			zap.Int("response_len", len(response)),
		)
	}
	return result, nil
}
