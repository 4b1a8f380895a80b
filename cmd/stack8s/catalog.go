package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"stack8s/internal/catalog"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Load and index catalog data",
}

var catalogLoadCmd = &cobra.Command{
	Use:   "load [snapshot.json]",
	Short: "Load a catalog snapshot into the database",
	Long: `Reads a snapshot file with "instances", "packages", and "models"
arrays and upserts everything into the catalog database.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		snap, err := catalog.LoadSnapshot(cmd.Context(), store, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Loaded %d instances, %d packages, %d models into %s\n",
			len(snap.Instances), len(snap.Packages), len(snap.Models), cfg.Catalog.DatabasePath)
		return nil
	},
}

var catalogIndexCmd = &cobra.Command{
	Use:   "index [cards.json]",
	Short: "Chunk and embed model cards into the vector index",
	Long: `Reads a JSON array of {"card_hash", "text"} objects, chunks each
card, embeds the chunks, and stores them under the configured embedding
model and chunker version. Re-indexing a card replaces its chunks.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read cards file: %w", err)
		}
		var cards []catalog.ModelCard
		if err := json.Unmarshal(data, &cards); err != nil {
			return fmt.Errorf("failed to parse cards file: %w", err)
		}

		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		engine, err := newEmbeddingEngine()
		if err != nil {
			return err
		}

		if err := catalog.IndexModelCards(cmd.Context(), store, engine, cards); err != nil {
			return err
		}
		fmt.Printf("Indexed %d cards with %s\n", len(cards), engine.Name())
		return nil
	},
}

func init() {
	catalogCmd.AddCommand(catalogLoadCmd)
	catalogCmd.AddCommand(catalogIndexCmd)
}
