package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/tidewater/bmc/internal/advisor"
	"github.com/tidewater/bmc/internal/api"
	"github.com/tidewater/bmc/internal/config"
	"github.com/tidewater/bmc/internal/embedding"
	"github.com/tidewater/bmc/internal/extractor"
	"github.com/tidewater/bmc/internal/memory"
	"github.com/tidewater/bmc/internal/proactive"
	"github.com/tidewater/bmc/internal/provider"
	"github.com/tidewater/bmc/internal/rag"
	"github.com/tidewater/bmc/internal/store"
	"github.com/tidewater/bmc/internal/transcript"
	"github.com/tidewater/bmc/internal/vectorstore"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	logger.Info("Starting BMC advisor...")

	// Load configuration
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "configs/bmc.json"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.String("path", cfgPath), zap.Error(err))
	}
	logger.Info("Config loaded", zap.String("path", cfgPath))

	// Initialize provider router
	router := provider.NewRouter(logger)
	for _, pc := range cfg.Providers {
		provCfg := provider.Config{
			ID: pc.ID, Type: pc.Type, Name: pc.Name,
			Endpoint: pc.Endpoint, APIKey: pc.APIKey,
			Extra: pc.Extra,
		}
		switch pc.Type {
		case "openai":
			router.Register(provider.NewOpenAIProvider(provCfg, logger))
		case "anthropic":
			router.Register(provider.NewAnthropicProvider(provCfg, logger))
		default:
			logger.Warn("unknown provider type", zap.String("id", pc.ID), zap.String("type", pc.Type))
		}
	}
	bindRole(router, provider.RoleAdvisor, cfg.Roles.Advisor)
	bindRole(router, provider.RoleExtractor, cfg.Roles.Extractor)
	bindRole(router, provider.RoleSuggester, cfg.Roles.Suggester)
	bindRole(router, provider.RoleJudge, cfg.Roles.Judge)

	// Initialize PostgreSQL store
	users, err := store.New(cfg.Database.Postgres.DSN, logger)
	if err != nil {
		logger.Fatal("PostgreSQL unavailable", zap.Error(err))
	}
	migrationsDir := cfg.Server.MigrationsDir
	if migrationsDir == "" {
		migrationsDir = "migrations"
	}
	if err := users.Migrate(context.Background(), migrationsDir); err != nil {
		logger.Fatal("migration failed", zap.Error(err))
	}

	// Initialize Redis transcript store
	transcripts, err := transcript.New(cfg.Database.Redis.URL, 0, logger)
	if err != nil {
		logger.Fatal("Redis unavailable", zap.Error(err))
	}

	// Initialize document retrieval (optional: Qdrant + embedding endpoint)
	var ragSvc *rag.Service
	if cfg.Database.Qdrant.Host != "" && cfg.Embedding.Endpoint != "" {
		qdrant, qErr := vectorstore.NewClient(vectorstore.QdrantConfig{
			Host: cfg.Database.Qdrant.Host,
			Port: cfg.Database.Qdrant.Port,
		})
		if qErr != nil {
			logger.Warn("Qdrant unavailable, running without document retrieval", zap.Error(qErr))
		} else {
			embedder := embedding.NewAPIProvider(embedding.Config{
				Endpoint:  cfg.Embedding.Endpoint,
				Model:     cfg.Embedding.Model,
				APIKey:    cfg.Embedding.APIKey,
				Dimension: cfg.Embedding.Dimension,
			})
			svc := rag.New(embedder, qdrant, logger)
			if initErr := svc.Init(context.Background()); initErr != nil {
				logger.Warn("document collection init failed, running without retrieval", zap.Error(initErr))
			} else {
				ragSvc = svc
				logger.Info("Document retrieval initialized")
			}
		}
	}

	// Initialize memory pipeline
	ex := extractor.New(router, cfg.Roles.Extractor.Model, logger)
	sug := proactive.NewEngine(router, cfg.Roles.Suggester.Model, logger)
	orch := memory.NewOrchestrator(users, ex, sug, logger)
	pipeline := memory.NewPipeline(orch, memory.PipelineConfig{
		Workers:        cfg.Pipeline.Workers,
		ExtractTimeout: time.Duration(cfg.Pipeline.ExtractTimeoutSecs) * time.Second,
		SuggestTimeout: time.Duration(cfg.Pipeline.SuggestTimeoutSecs) * time.Second,
	}, logger)

	// Initialize advisor
	var retriever advisor.Retriever
	var ingestor api.Ingestor
	if ragSvc != nil {
		retriever = ragSvc
		ingestor = ragSvc
	}
	adv := advisor.New(router, retriever, cfg.Roles.Advisor.Model, logger)

	// Build HTTP handler
	handler := api.NewHandler(users, transcripts, adv, pipeline, ingestor, cfg.Pipeline.WindowTurns, logger)

	// Start server
	port := fmt.Sprintf("%d", cfg.Server.Port)
	if port == "0" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: handler.Router(),
	}

	go func() {
		logger.Info("BMC advisor listening", zap.String("port", port))
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down BMC advisor...")
	srv.Shutdown(context.Background())
	// Let in-flight memory updates commit before closing the stores.
	pipeline.Wait()
	transcripts.Close()
	users.Close()
	if ragSvc != nil {
		ragSvc.Close()
	}
}

func bindRole(router *provider.Router, role string, b config.RoleBinding) {
	if b.Provider != "" {
		router.Bind(role, b.Provider)
	}
	if len(b.Fallbacks) > 0 {
		router.SetFallbacks(role, b.Fallbacks)
	}
}
