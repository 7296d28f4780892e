// kairosd serves the KAIROS search/begin/next/attest/mint/update/delete
// protocol over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/kairos-dev/kairos/internal/cache"
	"github.com/kairos-dev/kairos/internal/config"
	"github.com/kairos-dev/kairos/internal/embedding"
	"github.com/kairos-dev/kairos/internal/engine"
	"github.com/kairos-dev/kairos/internal/kv"
	"github.com/kairos-dev/kairos/internal/memory"
	"github.com/kairos-dev/kairos/internal/proofengine"
	"github.com/kairos-dev/kairos/internal/proofstore"
	"github.com/kairos-dev/kairos/internal/vectorstore"
)

// startupHealthCheckAttempts and startupHealthCheckInterval bound how long
// kairosd waits for the vector store to come up before it starts serving.
const (
	startupHealthCheckAttempts = 30
	startupHealthCheckInterval = 1 * time.Second
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("Warning: could not load %s: %v", envPath, err)
		log.Printf("Continuing with existing environment variables...")
	} else {
		log.Printf("Loaded environment from %s", envPath)
	}

	ginMode := getEnv("GIN_MODE", "debug")
	gin.SetMode(ginMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		log.Fatalf("Failed to initialize configuration: %v", err)
	}

	vs, err := vectorstore.NewQdrantStore(cfg.VectorStore.URL, cfg.VectorStore.Collection, cfg.VectorStore.APIKey)
	if err != nil {
		log.Fatalf("Failed to connect to vector store: %v", err)
	}
	if err := waitForVectorStoreHealthy(ctx, vs); err != nil {
		log.Fatalf("Vector store never became healthy: %v", err)
	}
	if err := vs.EnsureCollection(ctx, cfg.Embedding.Dim); err != nil {
		log.Fatalf("Failed to ensure vector collection: %v", err)
	}

	embedder := embedding.NewHTTPClient(cfg.Embedding.URL, cfg.Embedding.Model, cfg.Embedding.Dim)

	kvStore, err := kv.NewRedisStore(cfg.KV.URL, cfg.KV.Prefix)
	if err != nil {
		log.Fatalf("Failed to connect to key/value store: %v", err)
	}

	mem := memory.New(vs, embedder, kvStore)
	proofStore := proofstore.New(kvStore, int64(config.ProofTTL.Seconds()))
	proofEngine := proofengine.New(proofStore, embedder, cfg.CommentSemanticThreshold, int64(cfg.MaxRetries))
	eng := engine.New(mem, proofEngine, proofStore, cfg)

	if cfg.SnapshotOnStart {
		if err := seedSystemProtocols(ctx, mem, cfg.DefaultSpaceID, cfg.SnapshotDir); err != nil {
			log.Fatalf("Failed to seed system memory points: %v", err)
		}
	}

	subscriber := cache.NewSubscriber(kvStore)
	if err := subscriber.Start(ctx, mem.Cache().Invalidate); err != nil {
		log.Fatalf("Failed to start cache invalidation subscriber: %v", err)
	}
	defer subscriber.Stop()

	router := gin.Default()
	registerRoutes(router, eng, vs)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Starting kairosd")
		log.Printf("HTTP Port: %s", cfg.Port)
		log.Printf("Config Directory: %s", *configDir)
		log.Printf("Vector Store Collection: %s", cfg.VectorStore.Collection)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Printf("Shutting down kairosd")
		subscriber.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Fatalf("Failed to shut down cleanly: %v", err)
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}
}

// waitForVectorStoreHealthy polls the vector store's health check with a
// bounded number of attempts, so a slow-starting dependency doesn't fail
// the whole process on the first try.
func waitForVectorStoreHealthy(ctx context.Context, vs *vectorstore.QdrantStore) error {
	var lastErr error
	for attempt := 1; attempt <= startupHealthCheckAttempts; attempt++ {
		lastErr = vs.HealthCheck(ctx)
		if lastErr == nil {
			return nil
		}
		log.Printf("Vector store not yet healthy (attempt %d/%d): %v", attempt, startupHealthCheckAttempts, lastErr)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(startupHealthCheckInterval):
		}
	}
	return fmt.Errorf("vector store did not become healthy after %d attempts: %w", startupHealthCheckAttempts, lastErr)
}

func registerRoutes(router *gin.Engine, eng *engine.Engine, vs *vectorstore.QdrantStore) {
	router.GET("/health", func(c *gin.Context) {
		if err := vs.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	v1 := router.Group("/v1")
	v1.POST("/search", handleSearch(eng))
	v1.POST("/begin", handleBegin(eng))
	v1.POST("/next", handleNext(eng))
	v1.POST("/attest", handleAttest(eng))
	v1.POST("/mint", handleMint(eng))
	v1.POST("/update", handleUpdate(eng))
	v1.POST("/delete", handleDelete(eng))
}
