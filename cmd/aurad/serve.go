package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/auralabs/aura/internal/api"
	"github.com/auralabs/aura/internal/bridge"
	"github.com/auralabs/aura/internal/config"
	"github.com/auralabs/aura/internal/ingest"
	"github.com/auralabs/aura/internal/intent"
	"github.com/auralabs/aura/internal/openai"
	"github.com/auralabs/aura/internal/retrieval"
	"github.com/auralabs/aura/internal/router"
	"github.com/auralabs/aura/internal/storage"
	"github.com/auralabs/aura/internal/whatsapp"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the aurad server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "aurad version %s\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	// Initialize structured logging.
	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Open storage.
	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	if err := store.EnsureClinic(cfg.Clinic.DemoClinicID, cfg.Clinic.DemoName); err != nil {
		return fmt.Errorf("ensuring demo clinic: %w", err)
	}

	// Build the retrieval and routing stack.
	llm := openai.New(cfg.OpenAI.BaseURL, cfg.OpenAI.APIKey)
	embedder := retrieval.NewEmbedder(llm, cfg.OpenAI.EmbedModel, cfg.OpenAI.EmbedDimensions)
	vectorStore := retrieval.NewSQLiteVectorStore(store.DB())
	retriever := retrieval.NewRetriever(embedder, vectorStore)
	classifier := intent.NewClassifier(llm, cfg.OpenAI.ChatModel)
	turns := router.New(classifier, retriever, llm, cfg.OpenAI.ChatModel, store, cfg.Retrieval.TopK)
	pipeline := ingest.NewPipeline(store, embedder)

	// Build the WhatsApp channel bridge.
	waClient := whatsapp.New(cfg.WhatsApp.APIBaseURL, cfg.WhatsApp.AccessToken, cfg.WhatsApp.PhoneNumberID)
	waBridge := bridge.New(store, cfg.Clinic.DemoClinicID)

	handler := api.NewAppHandler(api.AppDeps{
		Ingester:    pipeline,
		Searcher:    retriever,
		Router:      turns,
		Bridge:      waBridge,
		Sender:      waClient,
		ClinicID:    cfg.Clinic.DemoClinicID,
		VerifyToken: cfg.WhatsApp.VerifyToken,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// Start the inbound worker.
	worker := bridge.NewWorker(store, turns, waClient, cfg.Clinic.DemoClinicID, 500*time.Millisecond)
	go worker.Run(ctx)

	// Start server in a goroutine.
	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "aurad listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for signal or server error.
	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	// Graceful shutdown with timeout.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
