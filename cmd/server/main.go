package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"recallgraph/internal/adapter"
	"recallgraph/internal/extract"
	"recallgraph/internal/graph"
	"recallgraph/internal/ingest"
	"recallgraph/internal/jobs"
	"recallgraph/internal/server"
	"recallgraph/internal/store"
	"recallgraph/pkg/config"
	"recallgraph/pkg/logger"
	"go.uber.org/zap"
)

func main() {
	if err := logger.Init(os.Getenv("ENV")); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	log := logger.Get()
	log.Info("Starting graph ingestion server...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	ctx := context.Background()

	// Relational store: saves, graph jobs, dead letters.
	pool, err := store.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	if err := store.Migrate(ctx, pool); err != nil {
		log.Fatal("Failed to apply schema", zap.Error(err))
	}

	saveStore := store.NewSaveStore(pool)
	jobStore := store.NewJobStore(pool)

	// Graph store is optional: without it the service runs in degraded
	// mode and reports graph_active:false.
	var graphRepo *graph.Repository
	if cfg.GraphEnabled() {
		driver, err := neo4j.NewDriverWithContext(
			cfg.Neo4jURI,
			neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPassword, ""),
		)
		if err != nil {
			log.Fatal("Failed to create Neo4j driver", zap.Error(err))
		}
		defer driver.Close(ctx)

		if err := driver.VerifyConnectivity(ctx); err != nil {
			log.Fatal("Failed to verify Neo4j connectivity", zap.Error(err))
		}

		graphRepo = graph.NewRepository(driver)
		if err := graphRepo.EnsureConstraints(ctx); err != nil {
			log.Fatal("Failed to ensure graph constraints", zap.Error(err))
		}
	} else {
		log.Warn("NEO4J_URI not set; running without a graph store")
	}

	llm := adapter.NewLLMAdapter(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.ModelID)
	extractor := extract.NewExtractor(llm, cfg.Prompts)

	var upserter *graph.Upserter
	var queryService *graph.QueryService
	var relatedService *graph.RelatedService
	if graphRepo != nil {
		resolver := graph.NewResolver(graphRepo)
		upserter = graph.NewUpserter(graphRepo, resolver)
		queryService = graph.NewQueryService(graphRepo)
		relatedService = graph.NewRelatedService(resolver, graphRepo)
	} else {
		queryService = graph.NewQueryService(nil)
		relatedService = graph.NewRelatedService(nil, nil)
	}

	pipeline := ingest.NewOrchestrator(saveStore, extractor, upserter)
	drainer := jobs.NewDrainer(jobStore, pipeline, cfg.DrainJobDelay)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: server.New(cfg, jobStore, drainer, pipeline, queryService, relatedService).Router(),
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	log.Info("Server started", zap.String("port", cfg.Port), zap.Bool("graph_active", graphRepo != nil))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited")
}
