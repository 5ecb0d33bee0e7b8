package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"openrag/app/server"
	"openrag/config"
	"openrag/model"
	"openrag/service"
	"openrag/store"
	"openrag/vectorstore"
	"openrag/vectorstore/pgvector"
	"openrag/vectorstore/qdrant"

	"github.com/joho/godotenv"
)

func init() {
	// Optional: settings may come from the real environment instead.
	_ = godotenv.Load()
}

func main() {
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatal("error loading configuration: ", err)
	}

	ctx := context.Background()

	db, err := store.NewPostgresStore(ctx, cfg.Postgres.DSN())
	if err != nil {
		log.Fatal("error connecting to Postgres: ", err)
	}
	defer db.Close()

	if err := db.Init(ctx); err != nil {
		log.Fatal("error creating tables: ", err)
	}

	index, err := newVectorIndex(ctx, cfg)
	if err != nil {
		log.Fatal("error building vector index client: ", err)
	}

	generator, err := model.NewGenerator(cfg.LLM)
	if err != nil {
		log.Fatal("error building generation client: ", err)
	}

	var (
		blobs    = store.NewS3Store(cfg.Blob)
		embedder = model.NewHTTPEmbedder(cfg.Embedding.URL, cfg.Embedding.Timeout())
		svc      = service.New(slog.Default(), db, blobs, embedder, index, generator,
			cfg.Pipeline, cfg.LLM, cfg.Vector)
		srv = server.New(cfg.Server.ListenAddr, svc)
	)

	// The default collection exists from the start, in the metadata store
	// and in the vector index, so queries against an empty system behave.
	if _, err := db.GetOrCreateCollection(ctx, cfg.Pipeline.DefaultCollection, cfg.Vector.Dimension); err != nil {
		log.Fatal("error creating default collection: ", err)
	}
	if err := index.EnsureCollection(ctx, cfg.Pipeline.DefaultCollection, cfg.Vector.Dimension); err != nil {
		log.Fatal("error creating default vector collection: ", err)
	}

	go func() {
		if err := srv.Run(); err != nil {
			log.Fatal("server error: ", err)
		}
	}()

	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, os.Interrupt, syscall.SIGTERM)
	<-sigch
	log.Println("Received shutdown signal, shutting down gracefully...")

	srv.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	svc.Stop(shutdownCtx)
}

func newVectorIndex(ctx context.Context, cfg *config.Config) (vectorstore.Index, error) {
	switch cfg.Vector.Backend {
	case "qdrant":
		return qdrant.NewIndex(qdrant.Config{
			URL:     cfg.Vector.QdrantURL,
			APIKey:  cfg.Vector.APIKey,
			Timeout: 30 * time.Second,
		}), nil
	case "pgvector":
		return pgvector.NewIndex(ctx, cfg.Postgres.DSN())
	default:
		return nil, fmt.Errorf("unknown vector backend: %s", cfg.Vector.Backend)
	}
}
