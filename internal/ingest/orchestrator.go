package ingest

import (
	"context"

	"recallgraph/internal/extract"
	"recallgraph/internal/graph"
	"recallgraph/internal/store"
	"recallgraph/pkg/logger"
	"go.uber.org/zap"
)

// SaveGetter is the slice of the relational store this pipeline reads
type SaveGetter interface {
	GetSave(ctx context.Context, id string) (*store.Save, error)
}

// Orchestrator runs the extract-and-upsert pipeline for one save. It is
// invoked by the drain worker per job and directly by the upsert API.
type Orchestrator struct {
	saves     SaveGetter
	extractor *extract.Extractor
	upserter  *graph.Upserter // nil when no graph store is configured
	logger    *zap.Logger
}

// NewOrchestrator creates the pipeline. A nil upserter puts it in degraded
// mode: jobs still run and succeed, but graph writes are skipped.
func NewOrchestrator(saves SaveGetter, extractor *extract.Extractor, upserter *graph.Upserter) *Orchestrator {
	return &Orchestrator{
		saves:     saves,
		extractor: extractor,
		upserter:  upserter,
		logger:    logger.Get(),
	}
}

// Result summarizes one pipeline run
type Result struct {
	GraphActive      bool     `json:"graph_active"`
	EntityCount      int      `json:"entity_count"`
	RelationCount    int      `json:"relation_count"`
	Entities         []string `json:"entities"`
	ExtractionFailed bool     `json:"extraction_failed,omitempty"`
}

// ProcessSave fetches the save, extracts entities and merges everything
// into the graph. Extraction output that fails validation degrades to an
// empty extraction; the run still succeeds so base bookkeeping lands.
func (o *Orchestrator) ProcessSave(ctx context.Context, saveID, userPhone string) (*Result, error) {
	save, err := o.saves.GetSave(ctx, saveID)
	if err != nil {
		return nil, err
	}
	phone := save.UserPhone
	if phone == "" {
		phone = userPhone
	}

	extraction := extract.Extraction{}
	extractionFailed := false

	res, err := o.extractor.Extract(ctx, extract.SaveFields{
		Title:    save.Title,
		Summary:  save.Summary,
		Category: save.Category,
		Tags:     save.Tags,
		Source:   save.Source,
		Note:     save.Note,
	})
	if err != nil {
		return nil, err
	}
	if res.Failed {
		o.logger.Warn("Extraction soft-failed, merging base structure only",
			zap.String("save_id", saveID),
			zap.String("reason", res.Reason),
		)
		extractionFailed = true
	} else {
		extraction = res.Extraction
	}

	if o.upserter == nil {
		return &Result{
			GraphActive:      false,
			Entities:         []string{},
			ExtractionFailed: extractionFailed,
		}, nil
	}

	upserted, err := o.upserter.UpsertSave(ctx, graph.SaveInput{
		ID:       save.ID,
		Phone:    phone,
		Title:    save.Title,
		Summary:  save.Summary,
		Category: save.Category,
		Tags:     save.Tags,
		Source:   save.Source,
	}, extraction)
	if err != nil {
		return nil, err
	}

	o.logger.Info("Save merged into graph",
		zap.String("save_id", saveID),
		zap.String("phone", phone),
		zap.Int("entities", upserted.EntityCount),
		zap.Int("relations", upserted.RelationCount),
	)

	entities := upserted.Entities
	if entities == nil {
		entities = []string{}
	}

	return &Result{
		GraphActive:      true,
		EntityCount:      upserted.EntityCount,
		RelationCount:    upserted.RelationCount,
		Entities:         entities,
		ExtractionFailed: extractionFailed,
	}, nil
}
