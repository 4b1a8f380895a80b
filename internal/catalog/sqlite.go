package catalog

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"stack8s/internal/logging"
	"stack8s/internal/ranking"
	"stack8s/internal/types"
)

// vecAvailable is flipped on by the build-tagged init when the
// sqlite-vec extension is registered with the driver.
var vecAvailable = false

const (
	instanceCandidateLimit = 100
	packageCandidateLimit  = 50
)

// SQLiteStore implements Store and ChunkStore on a single SQLite file.
type SQLiteStore struct {
	db             *sql.DB
	mu             sync.RWMutex
	dbPath         string
	indexModelName string
	chunkerVersion string
}

// NewSQLiteStore opens (creating if needed) the catalog database at path.
// indexModelName and chunkerVersion scope every chunk query; rows written
// under a different scope are invisible to retrieval.
func NewSQLiteStore(path, indexModelName, chunkerVersion string) (*SQLiteStore, error) {
	timer := logging.StartTimer(logging.CategoryStore, "NewSQLiteStore")
	defer timer.Stop()

	logging.Store("Opening catalog store at %s (index=%s, chunker=%s)", path, indexModelName, chunkerVersion)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create catalog directory: %w", err)
	}

	db, err := sql.Open(driverName, path)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to open catalog database: %v", err)
		return nil, fmt.Errorf("failed to open catalog database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StoreDebug("Failed to set sqlite busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.StoreDebug("Failed to set sqlite journal_mode=WAL: %v", err)
	}

	s := &SQLiteStore{
		db:             db,
		dbPath:         path,
		indexModelName: indexModelName,
		chunkerVersion: chunkerVersion,
	}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	logging.Store("Catalog store ready (sqlite-vec available: %v)", vecAvailable)
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS compute_instances (
		id              TEXT PRIMARY KEY,
		provider        TEXT NOT NULL,
		name            TEXT NOT NULL,
		instance_type   TEXT,
		vcpu            INTEGER NOT NULL DEFAULT 0,
		ram_gb          REAL NOT NULL DEFAULT 0,
		gpu_count       INTEGER NOT NULL DEFAULT 0,
		gpu_model       TEXT,
		vram_per_gpu_gb INTEGER NOT NULL DEFAULT 0,
		price_monthly   REAL NOT NULL DEFAULT 0,
		price_hourly    REAL NOT NULL DEFAULT 0,
		regions         TEXT,
		description     TEXT,
		available       INTEGER NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS k8s_packages (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL UNIQUE,
		description TEXT,
		version     TEXT,
		category    TEXT,
		official    INTEGER NOT NULL DEFAULT 0,
		deprecated  INTEGER NOT NULL DEFAULT 0,
		stars       INTEGER NOT NULL DEFAULT 0,
		search_text TEXT
	);

	CREATE TABLE IF NOT EXISTS hf_models (
		model_id     TEXT PRIMARY KEY,
		pipeline_tag TEXT,
		license      TEXT,
		downloads    INTEGER NOT NULL DEFAULT 0,
		likes        INTEGER NOT NULL DEFAULT 0,
		card_hash    TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_hf_models_card_hash ON hf_models(card_hash);

	CREATE TABLE IF NOT EXISTS hf_card_chunks (
		id                   INTEGER PRIMARY KEY AUTOINCREMENT,
		card_hash            TEXT NOT NULL,
		chunk_text           TEXT NOT NULL,
		embedding            BLOB NOT NULL,
		embedding_model_name TEXT NOT NULL,
		chunker_version      TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_card_chunks_scope
		ON hf_card_chunks(embedding_model_name, chunker_version);
	`
	if _, err := s.db.Exec(schema); err != nil {
		logging.Get(logging.CategoryStore).Error("Schema init failed: %v", err)
		return fmt.Errorf("failed to initialize catalog schema: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// =============================================================================
// COMPUTE INSTANCES
// =============================================================================

// QueryInstances returns candidate records for the filter. Numeric and
// equality predicates are pushed into SQL; region and GPU model matching
// happens in the ranker, which re-checks every predicate anyway.
// Unavailable instances are always excluded.
func (s *SQLiteStore) QueryInstances(ctx context.Context, f ranking.ComputeFilter) ([]types.ComputeRecord, error) {
	timer := logging.StartTimer(logging.CategoryStore, "QueryInstances")
	defer timer.Stop()

	s.mu.RLock()
	defer s.mu.RUnlock()

	where := []string{"available = 1"}
	var args []interface{}

	if f.GPUNeeded != nil {
		if *f.GPUNeeded {
			where = append(where, "gpu_count > 0")
		} else {
			where = append(where, "gpu_count = 0")
		}
	}
	if f.MinVRAMGB != nil {
		where = append(where, "vram_per_gpu_gb >= ?")
		args = append(args, *f.MinVRAMGB)
	}
	if f.MaxPriceMonthly != nil {
		where = append(where, "price_monthly <= ?")
		args = append(args, *f.MaxPriceMonthly)
	}
	if f.Provider != "" {
		where = append(where, "LOWER(provider) = LOWER(?)")
		args = append(args, f.Provider)
	}
	if f.MinVCPU != nil {
		where = append(where, "vcpu >= ?")
		args = append(args, *f.MinVCPU)
	}
	if f.MinRAMGB != nil {
		where = append(where, "ram_gb >= ?")
		args = append(args, *f.MinRAMGB)
	}

	query := fmt.Sprintf(`
		SELECT id, provider, name, instance_type, vcpu, ram_gb, gpu_count,
		       COALESCE(gpu_model, ''), vram_per_gpu_gb, price_monthly,
		       price_hourly, COALESCE(regions, '[]'), COALESCE(description, '')
		FROM compute_instances
		WHERE %s
		LIMIT %d`, strings.Join(where, " AND "), instanceCandidateLimit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Instance query failed: %v", err)
		return nil, fmt.Errorf("instance query failed: %w", err)
	}
	defer rows.Close()

	var out []types.ComputeRecord
	for rows.Next() {
		var rec types.ComputeRecord
		var regionsJSON string
		if err := rows.Scan(
			&rec.ID, &rec.Provider, &rec.Name, &rec.InstanceType,
			&rec.VCPU, &rec.RAMGB, &rec.GPUCount, &rec.GPUModel,
			&rec.VRAMPerGPUGB, &rec.PriceMonthly, &rec.PriceHourly,
			&regionsJSON, &rec.Description,
		); err != nil {
			return nil, fmt.Errorf("failed to scan instance row: %w", err)
		}
		if regionsJSON != "" {
			if err := json.Unmarshal([]byte(regionsJSON), &rec.Regions); err != nil {
				logging.Get(logging.CategoryStore).Warn("Bad regions JSON for %s: %v", rec.ID, err)
			}
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("instance row iteration failed: %w", err)
	}

	logging.StoreDebug("QueryInstances returned %d candidates", len(out))
	return out, nil
}

// UpsertInstances writes compute records, replacing on id.
func (s *SQLiteStore) UpsertInstances(ctx context.Context, recs []types.ComputeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin instance upsert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO compute_instances
			(id, provider, name, instance_type, vcpu, ram_gb, gpu_count,
			 gpu_model, vram_per_gpu_gb, price_monthly, price_hourly,
			 regions, description, available)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)`)
	if err != nil {
		return fmt.Errorf("failed to prepare instance upsert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range recs {
		regionsJSON, _ := json.Marshal(rec.Regions)
		if _, err := stmt.ExecContext(ctx,
			rec.ID, rec.Provider, rec.Name, rec.InstanceType,
			rec.VCPU, rec.RAMGB, rec.GPUCount, rec.GPUModel,
			rec.VRAMPerGPUGB, rec.PriceMonthly, rec.PriceHourly,
			string(regionsJSON), rec.Description,
		); err != nil {
			return fmt.Errorf("failed to upsert instance %s: %w", rec.ID, err)
		}
	}
	return tx.Commit()
}

// =============================================================================
// KUBERNETES PACKAGES
// =============================================================================

// QueryPackages returns the non-deprecated candidate pool for a query.
// Selection is deliberately loose (substring on name, description, and
// search text); the lexical ranker does the real ordering and exclusion.
func (s *SQLiteStore) QueryPackages(ctx context.Context, query string) ([]types.PackageRecord, error) {
	timer := logging.StartTimer(logging.CategoryStore, "QueryPackages")
	defer timer.Stop()

	s.mu.RLock()
	defer s.mu.RUnlock()

	like := "%" + strings.ToLower(strings.TrimSpace(query)) + "%"
	sqlQuery := fmt.Sprintf(`
		SELECT id, name, COALESCE(description, ''), COALESCE(version, ''),
		       COALESCE(category, ''), official, deprecated, stars,
		       COALESCE(search_text, '')
		FROM k8s_packages
		WHERE deprecated = 0
		  AND (LOWER(name) LIKE ? OR LOWER(description) LIKE ? OR LOWER(search_text) LIKE ?)
		ORDER BY stars DESC, name ASC
		LIMIT %d`, packageCandidateLimit)

	rows, err := s.db.QueryContext(ctx, sqlQuery, like, like, like)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Package query failed: %v", err)
		return nil, fmt.Errorf("package query failed: %w", err)
	}
	defer rows.Close()

	var out []types.PackageRecord
	for rows.Next() {
		var rec types.PackageRecord
		if err := rows.Scan(
			&rec.ID, &rec.Name, &rec.Description, &rec.Version,
			&rec.Category, &rec.Official, &rec.Deprecated, &rec.Stars,
			&rec.SearchText,
		); err != nil {
			return nil, fmt.Errorf("failed to scan package row: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("package row iteration failed: %w", err)
	}

	logging.StoreDebug("QueryPackages(%q) returned %d candidates", query, len(out))
	return out, nil
}

// UpsertPackages writes package records, replacing on id.
func (s *SQLiteStore) UpsertPackages(ctx context.Context, recs []types.PackageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin package upsert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO k8s_packages
			(id, name, description, version, category, official, deprecated, stars, search_text)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare package upsert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range recs {
		if _, err := stmt.ExecContext(ctx,
			rec.ID, rec.Name, rec.Description, rec.Version,
			rec.Category, rec.Official, rec.Deprecated, rec.Stars, rec.SearchText,
		); err != nil {
			return fmt.Errorf("failed to upsert package %s: %w", rec.Name, err)
		}
	}
	return tx.Commit()
}

// =============================================================================
// HUGGINGFACE MODELS AND CARD CHUNKS
// =============================================================================

// NearestChunks returns the limit best chunks for the query embedding
// within the store's index scope, best first. With sqlite-vec the
// distance is computed inside SQLite; otherwise all scoped chunks are
// scanned and scored in Go. Both paths order identically.
func (s *SQLiteStore) NearestChunks(ctx context.Context, queryEmbedding []float32, limit int) ([]types.ScoredChunk, error) {
	timer := logging.StartTimer(logging.CategoryStore, "NearestChunks")
	defer timer.Stop()

	if limit <= 0 {
		limit = 50
	}
	if len(queryEmbedding) == 0 {
		return nil, fmt.Errorf("empty query embedding")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if vecAvailable {
		return s.nearestChunksVec(ctx, queryEmbedding, limit)
	}
	return s.nearestChunksScan(ctx, queryEmbedding, limit)
}

func (s *SQLiteStore) nearestChunksVec(ctx context.Context, queryEmbedding []float32, limit int) ([]types.ScoredChunk, error) {
	queryBlob := encodeEmbedding(queryEmbedding)

	rows, err := s.db.QueryContext(ctx, `
		SELECT card_hash, chunk_text, vec_distance_cosine(embedding, ?) AS distance
		FROM hf_card_chunks
		WHERE embedding_model_name = ? AND chunker_version = ?
		ORDER BY distance ASC
		LIMIT ?`,
		queryBlob, s.indexModelName, s.chunkerVersion, limit)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Vector chunk search failed: %v", err)
		return nil, fmt.Errorf("chunk search failed: %w", err)
	}
	defer rows.Close()

	var out []types.ScoredChunk
	for rows.Next() {
		var c types.ScoredChunk
		var distance float64
		if err := rows.Scan(&c.CardHash, &c.ChunkText, &distance); err != nil {
			return nil, fmt.Errorf("failed to scan chunk row: %w", err)
		}
		c.Similarity = 1.0 - distance
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("chunk row iteration failed: %w", err)
	}

	logging.StoreDebug("NearestChunks (vec) returned %d chunks", len(out))
	return out, nil
}

func (s *SQLiteStore) nearestChunksScan(ctx context.Context, queryEmbedding []float32, limit int) ([]types.ScoredChunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT card_hash, chunk_text, embedding
		FROM hf_card_chunks
		WHERE embedding_model_name = ? AND chunker_version = ?`,
		s.indexModelName, s.chunkerVersion)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Chunk scan failed: %v", err)
		return nil, fmt.Errorf("chunk search failed: %w", err)
	}
	defer rows.Close()

	var out []types.ScoredChunk
	for rows.Next() {
		var c types.ScoredChunk
		var blob []byte
		if err := rows.Scan(&c.CardHash, &c.ChunkText, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan chunk row: %w", err)
		}
		emb, err := decodeEmbedding(blob)
		if err != nil {
			logging.Get(logging.CategoryStore).Warn("Skipping chunk with bad embedding (card=%s): %v", c.CardHash, err)
			continue
		}
		c.Similarity = cosineSimilarity(queryEmbedding, emb)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("chunk row iteration failed: %w", err)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Similarity > out[j].Similarity
	})
	if len(out) > limit {
		out = out[:limit]
	}

	logging.StoreDebug("NearestChunks (scan) returned %d chunks", len(out))
	return out, nil
}

// ModelsForCards resolves card hashes to model rows. Order follows
// model_id so repeated calls are reproducible.
func (s *SQLiteStore) ModelsForCards(ctx context.Context, cardHashes []string) ([]types.ModelRecord, error) {
	timer := logging.StartTimer(logging.CategoryStore, "ModelsForCards")
	defer timer.Stop()

	if len(cardHashes) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(cardHashes)), ",")
	args := make([]interface{}, len(cardHashes))
	for i, h := range cardHashes {
		args[i] = h
	}

	query := fmt.Sprintf(`
		SELECT model_id, COALESCE(pipeline_tag, ''), COALESCE(license, ''),
		       downloads, likes, card_hash
		FROM hf_models
		WHERE card_hash IN (%s)
		ORDER BY model_id ASC`, placeholders)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Model lookup failed: %v", err)
		return nil, fmt.Errorf("model lookup failed: %w", err)
	}
	defer rows.Close()

	var out []types.ModelRecord
	for rows.Next() {
		var rec types.ModelRecord
		if err := rows.Scan(
			&rec.ModelID, &rec.PipelineTag, &rec.License,
			&rec.Downloads, &rec.Likes, &rec.CardHash,
		); err != nil {
			return nil, fmt.Errorf("failed to scan model row: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("model row iteration failed: %w", err)
	}

	logging.StoreDebug("ModelsForCards resolved %d models from %d hashes", len(out), len(cardHashes))
	return out, nil
}

// UpsertModels writes model records, replacing on model_id.
func (s *SQLiteStore) UpsertModels(ctx context.Context, recs []types.ModelRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin model upsert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO hf_models
			(model_id, pipeline_tag, license, downloads, likes, card_hash)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare model upsert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range recs {
		if _, err := stmt.ExecContext(ctx,
			rec.ModelID, rec.PipelineTag, rec.License,
			rec.Downloads, rec.Likes, rec.CardHash,
		); err != nil {
			return fmt.Errorf("failed to upsert model %s: %w", rec.ModelID, err)
		}
	}
	return tx.Commit()
}

// InsertChunk writes one embedded card chunk under the store's index
// scope. Used by the index builder; retrieval never writes chunks.
func (s *SQLiteStore) InsertChunk(ctx context.Context, cardHash, chunkText string, embedding []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO hf_card_chunks
			(card_hash, chunk_text, embedding, embedding_model_name, chunker_version)
		VALUES (?, ?, ?, ?, ?)`,
		cardHash, chunkText, encodeEmbedding(embedding), s.indexModelName, s.chunkerVersion)
	if err != nil {
		return fmt.Errorf("failed to insert chunk for card %s: %w", cardHash, err)
	}
	return nil
}

// DeleteChunksForCard removes a card's chunks within the index scope so
// a card can be re-indexed without duplicates.
func (s *SQLiteStore) DeleteChunksForCard(ctx context.Context, cardHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		DELETE FROM hf_card_chunks
		WHERE card_hash = ? AND embedding_model_name = ? AND chunker_version = ?`,
		cardHash, s.indexModelName, s.chunkerVersion)
	if err != nil {
		return fmt.Errorf("failed to delete chunks for card %s: %w", cardHash, err)
	}
	return nil
}

// =============================================================================
// EMBEDDING BLOBS
// =============================================================================

// encodeEmbedding encodes a float32 slice as a little-endian blob, the
// layout sqlite-vec expects.
func encodeEmbedding(vec []float32) []byte {
	buf := &bytes.Buffer{}
	if err := binary.Write(buf, binary.LittleEndian, vec); err != nil {
		return nil
	}
	return buf.Bytes()
}

// decodeEmbedding is the inverse of encodeEmbedding.
func decodeEmbedding(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("embedding blob length %d not a multiple of 4", len(blob))
	}
	out := make([]float32, len(blob)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return out, nil
}

// cosineSimilarity is used by the brute-force scan path. Zero vectors
// score 0.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		af, bf := float64(a[i]), float64(b[i])
		dot += af * bf
		na += af * af
		nb += bf * bf
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
