package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/auralabs/aura/internal/config"
	"github.com/auralabs/aura/internal/ingest"
	"github.com/auralabs/aura/internal/openai"
	"github.com/auralabs/aura/internal/retrieval"
	"github.com/auralabs/aura/internal/storage"
)

const demoDoc = `Servicios: Depilación láser axilas $29.990, duración 20 min.
Contraindicaciones: embarazo, fotosensibilidad.
Políticas: reagendos con 24h.
Promos: 2x1 axilas+bozo hasta 30/09.`

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the demo clinic knowledge base",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		store, err := storage.Open(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("opening storage: %w", err)
		}
		defer store.Close()

		if err := store.EnsureClinic(cfg.Clinic.DemoClinicID, cfg.Clinic.DemoName); err != nil {
			return fmt.Errorf("ensuring demo clinic: %w", err)
		}

		llm := openai.New(cfg.OpenAI.BaseURL, cfg.OpenAI.APIKey)
		embedder := retrieval.NewEmbedder(llm, cfg.OpenAI.EmbedModel, cfg.OpenAI.EmbedDimensions)
		pipeline := ingest.NewPipeline(store, embedder)

		result, err := pipeline.Ingest(context.Background(), cfg.Clinic.DemoClinicID, "Servicios Demo", "inline", demoDoc)
		if err != nil {
			return fmt.Errorf("seeding knowledge base: %w", err)
		}

		fmt.Printf("seeded document %s with %d chunks\n", result.DocumentID, result.ChunkCount)
		return nil
	},
}
