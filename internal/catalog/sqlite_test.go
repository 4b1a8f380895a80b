package catalog

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"stack8s/internal/ranking"
	"stack8s/internal/types"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.db")
	store, err := NewSQLiteStore(path, "text-embedding-3-small", "hf_chunker_v1")
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func boolPtr(b bool) *bool        { return &b }
func floatPtr(f float64) *float64 { return &f }

func TestDriverPairing(t *testing.T) {
	// vec_distance_cosine only exists on connections the cgo driver
	// opens; the pure-Go driver must stay on the scan path.
	if vecAvailable && driverName != "sqlite3" {
		t.Fatalf("vec-enabled build must open with the cgo driver, got %q", driverName)
	}
	if !vecAvailable && driverName != "sqlite" {
		t.Fatalf("default build must open with the pure-Go driver, got %q", driverName)
	}
}

func TestSQLiteStore_InstanceRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	recs := []types.ComputeRecord{
		{ID: "aws-g5", Provider: "aws", Name: "g5.xlarge", InstanceType: "g5.xlarge",
			VCPU: 4, RAMGB: 16, GPUCount: 1, GPUModel: "A10G", VRAMPerGPUGB: 24,
			PriceMonthly: 730, PriceHourly: 1.0, Regions: []string{"us-east-1"}},
		{ID: "aws-m5", Provider: "aws", Name: "m5.large", InstanceType: "m5.large",
			VCPU: 2, RAMGB: 8, GPUCount: 0, PriceMonthly: 70},
	}
	if err := store.UpsertInstances(ctx, recs); err != nil {
		t.Fatalf("UpsertInstances() error = %v", err)
	}

	all, err := store.QueryInstances(ctx, ranking.ComputeFilter{})
	if err != nil {
		t.Fatalf("QueryInstances() error = %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("QueryInstances() returned %d records, want 2", len(all))
	}

	gpu, err := store.QueryInstances(ctx, ranking.ComputeFilter{GPUNeeded: boolPtr(true)})
	if err != nil {
		t.Fatalf("QueryInstances(gpu) error = %v", err)
	}
	if len(gpu) != 1 || gpu[0].ID != "aws-g5" {
		t.Fatalf("gpu candidates = %+v, want only aws-g5", gpu)
	}
	if diff := cmp.Diff([]string{"us-east-1"}, gpu[0].Regions); diff != "" {
		t.Fatalf("regions mismatch (-want +got):\n%s", diff)
	}

	cheap, err := store.QueryInstances(ctx, ranking.ComputeFilter{MaxPriceMonthly: floatPtr(100)})
	if err != nil {
		t.Fatalf("QueryInstances(price) error = %v", err)
	}
	if len(cheap) != 1 || cheap[0].ID != "aws-m5" {
		t.Fatalf("price candidates = %+v, want only aws-m5", cheap)
	}
}

func TestSQLiteStore_PackagesExcludeDeprecated(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	recs := []types.PackageRecord{
		{ID: "p1", Name: "mlflow", Description: "experiment tracking", Stars: 100},
		{ID: "p2", Name: "mlflow-legacy", Description: "old tracking chart", Deprecated: true},
		{ID: "p3", Name: "redis", Description: "in-memory store"},
	}
	if err := store.UpsertPackages(ctx, recs); err != nil {
		t.Fatalf("UpsertPackages() error = %v", err)
	}

	got, err := store.QueryPackages(ctx, "mlflow")
	if err != nil {
		t.Fatalf("QueryPackages() error = %v", err)
	}
	if len(got) != 1 || got[0].Name != "mlflow" {
		t.Fatalf("candidates = %+v, want only mlflow", got)
	}
}

func TestSQLiteStore_ChunkRetrievalScopedAndOrdered(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// Two chunks in scope with different similarity to the query, one
	// chunk written under another chunker version.
	if err := store.InsertChunk(ctx, "card-a", "about llama", []float32{1, 0}); err != nil {
		t.Fatalf("InsertChunk() error = %v", err)
	}
	if err := store.InsertChunk(ctx, "card-b", "about whisper", []float32{0, 1}); err != nil {
		t.Fatalf("InsertChunk() error = %v", err)
	}
	other, err := NewSQLiteStore(store.dbPath, "text-embedding-3-small", "hf_chunker_v2")
	if err != nil {
		t.Fatalf("NewSQLiteStore(other scope) error = %v", err)
	}
	defer other.Close()
	if err := other.InsertChunk(ctx, "card-c", "stale index", []float32{1, 0}); err != nil {
		t.Fatalf("InsertChunk(other scope) error = %v", err)
	}

	chunks, err := store.NearestChunks(ctx, []float32{1, 0}, 10)
	if err != nil {
		t.Fatalf("NearestChunks() error = %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("NearestChunks() returned %d chunks, want 2 (out-of-scope chunk leaked)", len(chunks))
	}
	if chunks[0].CardHash != "card-a" {
		t.Fatalf("best chunk = %q, want card-a", chunks[0].CardHash)
	}
	if chunks[0].Similarity <= chunks[1].Similarity {
		t.Fatalf("chunks not ordered by similarity: %v", chunks)
	}
}

func TestSQLiteStore_ModelsForCards(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	recs := []types.ModelRecord{
		{ModelID: "org/llama", PipelineTag: "text-generation", License: "llama3", Downloads: 100, Likes: 5, CardHash: "h1"},
		{ModelID: "org/llama-gguf", PipelineTag: "text-generation", License: "llama3", Downloads: 50, Likes: 2, CardHash: "h1"},
		{ModelID: "org/bert", PipelineTag: "fill-mask", License: "apache-2.0", CardHash: "h2"},
	}
	if err := store.UpsertModels(ctx, recs); err != nil {
		t.Fatalf("UpsertModels() error = %v", err)
	}

	got, err := store.ModelsForCards(ctx, []string{"h1", "h-missing"})
	if err != nil {
		t.Fatalf("ModelsForCards() error = %v", err)
	}
	ids := make([]string, len(got))
	for i, m := range got {
		ids[i] = m.ModelID
	}
	if diff := cmp.Diff([]string{"org/llama", "org/llama-gguf"}, ids); diff != "" {
		t.Fatalf("models mismatch (-want +got):\n%s", diff)
	}

	empty, err := store.ModelsForCards(ctx, nil)
	if err != nil {
		t.Fatalf("ModelsForCards(nil) error = %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("ModelsForCards(nil) = %v, want empty", empty)
	}
}

func TestSQLiteStore_ReindexReplacesChunks(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.InsertChunk(ctx, "card-a", "v1 text", []float32{1, 0}); err != nil {
		t.Fatalf("InsertChunk() error = %v", err)
	}
	if err := store.DeleteChunksForCard(ctx, "card-a"); err != nil {
		t.Fatalf("DeleteChunksForCard() error = %v", err)
	}
	if err := store.InsertChunk(ctx, "card-a", "v2 text", []float32{1, 0}); err != nil {
		t.Fatalf("InsertChunk() error = %v", err)
	}

	chunks, err := store.NearestChunks(ctx, []float32{1, 0}, 10)
	if err != nil {
		t.Fatalf("NearestChunks() error = %v", err)
	}
	if len(chunks) != 1 || chunks[0].ChunkText != "v2 text" {
		t.Fatalf("chunks = %+v, want single v2 chunk", chunks)
	}
}

func TestEmbeddingBlobRoundTrip(t *testing.T) {
	in := []float32{0.25, -1.5, 3.75}
	out, err := decodeEmbedding(encodeEmbedding(in))
	if err != nil {
		t.Fatalf("decodeEmbedding() error = %v", err)
	}
	if diff := cmp.Diff(in, out); diff != "" {
		t.Fatalf("blob round trip mismatch (-want +got):\n%s", diff)
	}

	if _, err := decodeEmbedding([]byte{1, 2, 3}); err == nil {
		t.Fatalf("decodeEmbedding() error = nil, want error on ragged blob")
	}
}
