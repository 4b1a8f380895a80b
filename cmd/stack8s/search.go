package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"stack8s/internal/tools"
)

// Debug search commands run one retrieval tool directly and print the
// same text block the architect would see in its prompt.

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Run a single catalog search (debugging)",
}

var (
	computeGPU      bool
	computeMinVRAM  int
	computeGPUModel string
	computeMaxPrice float64
	computeProvider string
	computeRegion   string
	computeTopK     int
)

var searchComputeCmd = &cobra.Command{
	Use:   "compute",
	Short: "Search compute instances",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		q := tools.ComputeQuery{TopK: computeTopK}
		if cmd.Flags().Changed("gpu") {
			q.GPUNeeded = &computeGPU
		}
		if cmd.Flags().Changed("min-vram") {
			q.MinVRAMGB = &computeMinVRAM
		}
		if cmd.Flags().Changed("max-price") {
			q.MaxPriceMonthly = &computeMaxPrice
		}
		q.GPUModel = computeGPUModel
		q.Provider = computeProvider
		q.Region = computeRegion

		tool := tools.NewComputeTool(store, cfg.Retrieval.ComputeTopK)
		res, err := tool.Search(cmd.Context(), q)
		if err != nil {
			return err
		}
		fmt.Println(res.RenderForLLM())
		fmt.Printf("\n(total found: %d, showing %d)\n", res.Metadata.TotalFound, res.Results.Len())
		return nil
	},
}

var k8sTopK int

var searchK8sCmd = &cobra.Command{
	Use:   "k8s [query]",
	Short: "Search Kubernetes packages",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		tool := tools.NewK8sTool(store, cfg.Retrieval.K8sTopK)
		res, err := tool.Search(cmd.Context(), tools.K8sQuery{
			Query: strings.Join(args, " "),
			TopK:  k8sTopK,
		})
		if err != nil {
			return err
		}
		fmt.Println(res.RenderForLLM())
		fmt.Printf("\n(total found: %d, showing %d)\n", res.Metadata.TotalFound, res.Results.Len())
		return nil
	},
}

var (
	hfPipelineTag string
	hfTopK        int
)

var searchHFCmd = &cobra.Command{
	Use:   "hf [query]",
	Short: "Search HuggingFace models",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		engine, err := newEmbeddingEngine()
		if err != nil {
			return err
		}

		tool := tools.NewHFTool(store, engine,
			cfg.Retrieval.RelevanceWeight, cfg.Retrieval.PopularityWeight,
			cfg.Retrieval.ChunkOversample, cfg.Retrieval.HFTopK)
		res, err := tool.Search(cmd.Context(), tools.HFQuery{
			Query:       strings.Join(args, " "),
			PipelineTag: hfPipelineTag,
			TopK:        hfTopK,
		})
		if err != nil {
			return err
		}
		fmt.Println(res.RenderForLLM())
		fmt.Printf("\n(total found: %d, showing %d)\n", res.Metadata.TotalFound, res.Results.Len())
		return nil
	},
}

func init() {
	searchComputeCmd.Flags().BoolVar(&computeGPU, "gpu", false, "require (or with =false exclude) GPUs")
	searchComputeCmd.Flags().IntVar(&computeMinVRAM, "min-vram", 0, "minimum VRAM per GPU in GB")
	searchComputeCmd.Flags().StringVar(&computeGPUModel, "gpu-model", "", "GPU model substring, e.g. A100")
	searchComputeCmd.Flags().Float64Var(&computeMaxPrice, "max-price", 0, "maximum monthly price in USD")
	searchComputeCmd.Flags().StringVar(&computeProvider, "provider", "", "cloud provider")
	searchComputeCmd.Flags().StringVar(&computeRegion, "region", "", "region")
	searchComputeCmd.Flags().IntVar(&computeTopK, "top-k", 0, "number of results")

	searchK8sCmd.Flags().IntVar(&k8sTopK, "top-k", 0, "number of results")

	searchHFCmd.Flags().StringVar(&hfPipelineTag, "pipeline-tag", "", "filter by pipeline tag")
	searchHFCmd.Flags().IntVar(&hfTopK, "top-k", 0, "number of results")

	searchCmd.AddCommand(searchComputeCmd)
	searchCmd.AddCommand(searchK8sCmd)
	searchCmd.AddCommand(searchHFCmd)
}
