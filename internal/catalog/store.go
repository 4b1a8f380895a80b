// Package catalog provides read access to the deployment catalogs: cloud
// compute instances, Kubernetes packages, and HuggingFace models with
// their card-chunk embeddings. The backing store is a single SQLite
// database. Vector search uses the sqlite-vec extension when compiled in
// and falls back to a brute-force cosine scan otherwise; both paths
// produce the same ordering for the same data.
package catalog

import (
	"context"

	"stack8s/internal/ranking"
	"stack8s/internal/types"
)

// Store is the structured catalog surface used by the compute and
// Kubernetes retrieval tools.
type Store interface {
	// QueryInstances returns candidate compute records for the filter.
	// The store may push predicates into SQL as an optimization; the
	// caller re-applies the full filter before ranking.
	QueryInstances(ctx context.Context, f ranking.ComputeFilter) ([]types.ComputeRecord, error)

	// QueryPackages returns the non-deprecated candidate pool for a
	// package search. Document-frequency statistics are computed by the
	// ranker over exactly this pool.
	QueryPackages(ctx context.Context, query string) ([]types.PackageRecord, error)
}

// ChunkStore is the vector retrieval surface used by the model search
// tool. Chunk queries are always scoped to one embedding model and one
// chunker version so scores from different index generations never mix.
type ChunkStore interface {
	// NearestChunks returns up to limit chunks closest to the query
	// embedding, best first, with cosine similarity attached.
	NearestChunks(ctx context.Context, queryEmbedding []float32, limit int) ([]types.ScoredChunk, error)

	// ModelsForCards resolves card hashes to the model rows that share
	// those cards. Unknown hashes are skipped silently.
	ModelsForCards(ctx context.Context, cardHashes []string) ([]types.ModelRecord, error)
}
