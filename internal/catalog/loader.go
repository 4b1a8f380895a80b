package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"

	"stack8s/internal/embedding"
	"stack8s/internal/logging"
	"stack8s/internal/types"
)

// =============================================================================
// CATALOG LOADING AND CARD INDEXING
// =============================================================================

// Snapshot is the on-disk JSON format for seeding a catalog database.
type Snapshot struct {
	Instances []types.ComputeRecord `json:"instances"`
	Packages  []types.PackageRecord `json:"packages"`
	Models    []types.ModelRecord   `json:"models"`
}

// ModelCard pairs a card hash with its full markdown text for indexing.
type ModelCard struct {
	CardHash string `json:"card_hash"`
	Text     string `json:"text"`
}

// LoadSnapshot reads a catalog snapshot file and upserts everything it
// contains.
func LoadSnapshot(ctx context.Context, store *SQLiteStore, path string) (Snapshot, error) {
	var snap Snapshot

	data, err := os.ReadFile(path)
	if err != nil {
		return snap, fmt.Errorf("failed to read catalog snapshot: %w", err)
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		return snap, fmt.Errorf("failed to parse catalog snapshot: %w", err)
	}

	if err := store.UpsertInstances(ctx, snap.Instances); err != nil {
		return snap, err
	}
	if err := store.UpsertPackages(ctx, snap.Packages); err != nil {
		return snap, err
	}
	if err := store.UpsertModels(ctx, snap.Models); err != nil {
		return snap, err
	}

	logging.Store("Loaded snapshot: %d instances, %d packages, %d models",
		len(snap.Instances), len(snap.Packages), len(snap.Models))
	return snap, nil
}

// IndexModelCards chunks and embeds model cards into the store's index
// scope. Existing chunks for a card are replaced so re-indexing is
// idempotent. Cards with empty text are skipped.
func IndexModelCards(ctx context.Context, store *SQLiteStore, engine embedding.EmbeddingEngine, cards []ModelCard) error {
	timer := logging.StartTimer(logging.CategoryStore, "IndexModelCards")
	defer timer.Stop()

	for _, card := range cards {
		chunks := ChunkCard(card.Text)
		if len(chunks) == 0 {
			logging.StoreDebug("Skipping empty card %s", card.CardHash)
			continue
		}

		vectors, err := engine.EmbedBatch(ctx, chunks)
		if err != nil {
			return fmt.Errorf("failed to embed card %s: %w", card.CardHash, err)
		}
		if len(vectors) != len(chunks) {
			return fmt.Errorf("embedding count mismatch for card %s: %d chunks, %d vectors",
				card.CardHash, len(chunks), len(vectors))
		}

		if err := store.DeleteChunksForCard(ctx, card.CardHash); err != nil {
			return err
		}
		for i, chunk := range chunks {
			if err := store.InsertChunk(ctx, card.CardHash, chunk, vectors[i]); err != nil {
				return err
			}
		}
		logging.StoreDebug("Indexed card %s into %d chunks", card.CardHash, len(chunks))
	}
	return nil
}

// Chunking parameters, in words. Word count approximates token count
// closely enough for sizing; the split points are what matter for
// retrieval quality.
const (
	chunkTargetWords  = 400
	chunkOverlapWords = 50
)

var headingRe = regexp.MustCompile(`^#{2,3}\s+`)

// ChunkCard splits card markdown deterministically: whole card if small,
// otherwise by H2/H3 headings, with a sliding window over any section
// still larger than the target. The same text always produces the same
// chunks, which keeps chunk rows stable across re-indexing runs.
func ChunkCard(text string) []string {
	normalized := strings.TrimSpace(strings.ReplaceAll(text, "\r\n", "\n"))
	if normalized == "" {
		return nil
	}
	if wordCount(normalized) <= chunkTargetWords {
		return []string{normalized}
	}

	var sections []string
	var current []string
	for _, line := range strings.Split(normalized, "\n") {
		if headingRe.MatchString(line) && len(current) > 0 {
			sections = append(sections, strings.Join(current, "\n"))
			current = current[:0]
		}
		current = append(current, line)
	}
	if len(current) > 0 {
		sections = append(sections, strings.Join(current, "\n"))
	}

	if len(sections) <= 1 {
		return slidingWindowSplit(normalized)
	}

	var chunks []string
	for _, section := range sections {
		section = strings.TrimSpace(section)
		if section == "" {
			continue
		}
		if wordCount(section) <= chunkTargetWords {
			chunks = append(chunks, section)
			continue
		}
		chunks = append(chunks, slidingWindowSplit(section)...)
	}
	return chunks
}

func slidingWindowSplit(text string) []string {
	words := strings.Fields(text)
	var chunks []string
	start := 0
	for start < len(words) {
		end := start + chunkTargetWords
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[start:end], " "))
		if end == len(words) {
			break
		}
		start = end - chunkOverlapWords
	}
	return chunks
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}
