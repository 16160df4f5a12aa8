package graph

import (
	"context"
	"testing"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// These tests require a running Neo4j instance at bolt://localhost:7687
// (user neo4j / password). Run with -short to skip them.

func TestRepository_MergeAndResolve(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	ctx := context.Background()
	driver, err := createTestDriver()
	if err != nil {
		t.Fatalf("Failed to create driver: %v", err)
	}
	defer driver.Close(ctx)

	repo := NewRepository(driver)
	phone := "+1555test" + time.Now().Format("20060102150405")
	defer cleanupTestUser(ctx, driver, phone)

	save := SaveInput{
		ID:       "save-" + phone,
		Phone:    phone,
		Title:    "Intro to pandas",
		Category: "Programming",
		Tags:     []string{"python"},
	}
	if err := repo.MergeSaveStructure(ctx, save); err != nil {
		t.Fatalf("MergeSaveStructure failed: %v", err)
	}

	ent := Entity{Key: NewEntityKey(phone, "python"), Name: "python", Type: EntityTool, Aliases: []string{"py"}}
	if err := repo.MergeEntity(ctx, ent); err != nil {
		t.Fatalf("MergeEntity failed: %v", err)
	}
	if err := repo.MergeMention(ctx, save.ID, ent.Key, 0.9); err != nil {
		t.Fatalf("MergeMention failed: %v", err)
	}

	got, err := repo.EntityByKey(ctx, ent.Key)
	if err != nil {
		t.Fatalf("EntityByKey failed: %v", err)
	}
	if got == nil {
		t.Fatal("Expected entity after merge, got nil")
	}
	if got.Name != "python" {
		t.Errorf("Expected entity name 'python', got '%s'", got.Name)
	}

	byAlias, err := repo.EntitiesByName(ctx, phone, "py")
	if err != nil {
		t.Fatalf("EntitiesByName failed: %v", err)
	}
	if len(byAlias) != 1 {
		t.Errorf("Expected 1 entity by alias, got %d", len(byAlias))
	}
}

func TestRepository_CoOccurrenceAccumulates(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	ctx := context.Background()
	driver, err := createTestDriver()
	if err != nil {
		t.Fatalf("Failed to create driver: %v", err)
	}
	defer driver.Close(ctx)

	repo := NewRepository(driver)
	phone := "+1555test" + time.Now().Format("20060102150405")
	defer cleanupTestUser(ctx, driver, phone)

	a := Entity{Key: NewEntityKey(phone, "python"), Name: "python", Type: EntityTool}
	b := Entity{Key: NewEntityKey(phone, "data science"), Name: "data science", Type: EntityTopic}
	for _, ent := range []Entity{a, b} {
		if err := repo.MergeEntity(ctx, ent); err != nil {
			t.Fatalf("MergeEntity failed: %v", err)
		}
	}

	for i := 0; i < 2; i++ {
		if err := repo.MergeCoOccurrence(ctx, a.Key, b.Key); err != nil {
			t.Fatalf("MergeCoOccurrence failed: %v", err)
		}
	}

	edges, err := repo.CoOccurrenceEdges(ctx, phone, []string{a.Key.String(), b.Key.String()}, 0.3)
	if err != nil {
		t.Fatalf("CoOccurrenceEdges failed: %v", err)
	}
	if len(edges) != 1 {
		t.Fatalf("Expected 1 co-occurrence edge, got %d", len(edges))
	}
	if edges[0].Weight != 2.0 {
		t.Errorf("Expected accumulated weight 2.0, got %v", edges[0].Weight)
	}
}

func TestRepository_RelationMaxMerge(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	ctx := context.Background()
	driver, err := createTestDriver()
	if err != nil {
		t.Fatalf("Failed to create driver: %v", err)
	}
	defer driver.Close(ctx)

	repo := NewRepository(driver)
	phone := "+1555test" + time.Now().Format("20060102150405")
	defer cleanupTestUser(ctx, driver, phone)

	src := Entity{Key: NewEntityKey(phone, "python"), Name: "python", Type: EntityTool}
	dst := Entity{Key: NewEntityKey(phone, "data science"), Name: "data science", Type: EntityTopic}
	for _, ent := range []Entity{src, dst} {
		if err := repo.MergeEntity(ctx, ent); err != nil {
			t.Fatalf("MergeEntity failed: %v", err)
		}
	}

	rel := RelationEdge{Src: src.Key, Dst: dst.Key, RelType: "uses", Weight: 0.8, Evidence: "python for data science"}
	if err := repo.MergeRelation(ctx, rel); err != nil {
		t.Fatalf("MergeRelation failed: %v", err)
	}

	// A weaker observation of the same relation must not lower the weight.
	rel.Weight = 0.4
	if err := repo.MergeRelation(ctx, rel); err != nil {
		t.Fatalf("MergeRelation failed: %v", err)
	}

	session := driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)
	result, err := session.Run(ctx,
		"MATCH (:Entity {key: $src})-[r:RELATED_TO {rel_type: $rt}]->(:Entity {key: $dst}) RETURN r.weight AS weight",
		map[string]interface{}{"src": src.Key.String(), "dst": dst.Key.String(), "rt": "uses"})
	if err != nil {
		t.Fatalf("Verification query failed: %v", err)
	}
	record, err := result.Single(ctx)
	if err != nil {
		t.Fatalf("Expected exactly one RELATED_TO edge: %v", err)
	}
	weight, _ := record.Get("weight")
	if weight != 0.8 {
		t.Errorf("Expected max-merged weight 0.8, got %v", weight)
	}
}

func createTestDriver() (neo4j.DriverWithContext, error) {
	uri := "bolt://localhost:7687"
	user := "neo4j"
	password := "password"

	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, err
	}

	return driver, nil
}

func cleanupTestUser(ctx context.Context, driver neo4j.DriverWithContext, phone string) {
	session := driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)
	_, _ = session.Run(ctx,
		"MATCH (n) WHERE n.user_phone = $phone OR n.key STARTS WITH $prefix DETACH DELETE n",
		map[string]interface{}{"phone": phone, "prefix": phone + "::"})
}
