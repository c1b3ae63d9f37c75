package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragpack/internal/config"
	"github.com/kailas-cloud/ragpack/internal/db"
	dbRedis "github.com/kailas-cloud/ragpack/internal/db/redis"
	"github.com/kailas-cloud/ragpack/internal/domain"
	"github.com/kailas-cloud/ragpack/internal/domain/message"
	"github.com/kailas-cloud/ragpack/internal/domain/search/mode"
	"github.com/kailas-cloud/ragpack/internal/domain/search/request"
	"github.com/kailas-cloud/ragpack/internal/domain/term"
	logpkg "github.com/kailas-cloud/ragpack/internal/logger"
	"github.com/kailas-cloud/ragpack/internal/metrics"
	"github.com/kailas-cloud/ragpack/internal/repository/chunkindex"
	"github.com/kailas-cloud/ragpack/internal/repository/embcache"
	factsrepo "github.com/kailas-cloud/ragpack/internal/repository/facts"
	searchrepo "github.com/kailas-cloud/ragpack/internal/repository/search"
	"github.com/kailas-cloud/ragpack/internal/tokenizer"
	chiTransport "github.com/kailas-cloud/ragpack/internal/transport/chi"
	openaiTransport "github.com/kailas-cloud/ragpack/internal/transport/openai"
	chatuc "github.com/kailas-cloud/ragpack/internal/usecase/chat"
	"github.com/kailas-cloud/ragpack/internal/usecase/contextbuild"
	embeddinguc "github.com/kailas-cloud/ragpack/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/ragpack/internal/usecase/health"
	memoryuc "github.com/kailas-cloud/ragpack/internal/usecase/memory"
	"github.com/kailas-cloud/ragpack/internal/usecase/packing"
	"github.com/kailas-cloud/ragpack/internal/usecase/retrieval"
	"github.com/kailas-cloud/ragpack/internal/usecase/scope"
	"github.com/kailas-cloud/ragpack/internal/usecase/terms"
	"github.com/kailas-cloud/ragpack/internal/version"
)

func main() {
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, logpkg.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting ragpack API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:      cfg.Database.Addrs,
		Password:   cfg.Database.Password,
		ClientName: "ragpack",
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	serverVersion, err := store.ServerVersion(ctx)
	if err != nil {
		logger.Warn("Could not read database version", zap.Error(err))
	}
	if !store.SupportsHybridSearch(ctx) {
		logger.Fatal("Database does not support FT.HYBRID (Redis 8.4+ required)", zap.String("redis_version", serverVersion))
	}
	logger.Info("Connected to database", zap.String("redis_version", serverVersion))

	// Register metrics explicitly (no init())
	metrics.RegisterHTTPMetrics()
	metrics.RegisterProviderMetrics()
	metrics.RegisterPipelineMetrics()

	if cfg.Index.Bootstrap {
		idx := chunkindex.New(store, cfg.Embedding.Dimensions, logger).WithHNSW(chunkindex.HNSWConfig{
			M:           cfg.Index.HNSWM,
			EFConstruct: cfg.Index.HNSWEFConstruct,
		})
		if err := idx.EnsureIndex(ctx); err != nil {
			logger.Fatal("Failed to ensure chunk index", zap.Error(err))
		}
	}

	counter, err := tokenizer.New(cfg.Tokenizer.Kind, cfg.Tokenizer.Encoding, cfg.Tokenizer.CharsPerToken)
	if err != nil {
		logger.Fatal("Failed to create tokenizer", zap.Error(err))
	}

	queryEmbedder := buildEmbedder(cfg, store, logger)
	healthProviders := map[string]healthuc.Checker{"embedding": queryEmbedder}

	extractor, release := buildBooster(cfg, logger)
	defer release()

	matchMode, err := mode.Parse(cfg.Retrieval.MatchMode)
	if err != nil {
		logger.Fatal("Invalid match mode", zap.Error(err))
	}
	retriever := retrieval.New(searchrepo.New(store), queryEmbedder, retrieval.Config{
		MatchMode: matchMode,
		MaxTerms:  cfg.Retrieval.MaxTerms,
		Fusion:    request.Fusion{Constant: cfg.Retrieval.RRFConstant, Window: cfg.Retrieval.RRFWindow},
		Timeout:   time.Duration(cfg.Retrieval.TimeoutMs) * time.Millisecond,
	}, logger)

	gate := scope.New(scope.Config{
		MinMessages:   *cfg.Scope.MinMessages,
		MaxCandidates: cfg.Scope.MaxCandidates,
		IQRMultiplier: cfg.Scope.IQRMultiplier,
		ErrorBuffer:   *cfg.Scope.ErrorBuffer,
	}, logger)

	var factStore memoryuc.FactStore
	switch cfg.Memory.Backend {
	case "memory":
		factStore = factsrepo.NewMemory()
	default:
		factStore = factsrepo.New(store, time.Duration(cfg.Memory.TTLSec)*time.Second)
	}
	memorySvc := memoryuc.New(factStore, logger)

	builder := contextbuild.New(
		extractor, retriever, gate, packing.New(counter, logger), memorySvc,
		contextbuild.Config{
			Weights: terms.Weights{
				Query:     cfg.Extraction.Weights.Query,
				User:      cfg.Extraction.Weights.User,
				Assistant: cfg.Extraction.Weights.Assistant,
			},
			ResultSize: cfg.Retrieval.ResultSize,
		},
		logger,
	)

	var chatter chiTransport.Chatter
	if cfg.LLM.Provider != "" {
		prov := cfg.Provider(cfg.LLM.Provider)
		completer := openaiTransport.NewCompleter(&openaiTransport.Config{
			APIKey:      prov.APIKey,
			BaseURL:     prov.BaseURL,
			Model:       cfg.LLM.Model,
			MaxTokens:   cfg.LLM.MaxTokens,
			Temperature: cfg.LLM.Temperature,
			Provider:    cfg.LLM.Provider,
			Logger:      logger,
		})
		chatter = chatuc.New(builder, completer, cfg.Packing.OutOfScopeMessage, logger)
		healthProviders["llm"] = completer
	}

	healthSvc := healthuc.New(store, healthProviders, 2*time.Second)

	defaults := contextbuild.Settings{
		Packing: packing.Settings{
			MaxContextTokens:        cfg.Packing.MaxContextTokens,
			ReserveCompletionTokens: cfg.Packing.ReserveCompletionTokens,
			ReserveHeadroomTokens:   cfg.Packing.ReserveHeadroomTokens,
			ContextPrefix:           cfg.Packing.ContextPrefix,
		},
		MemoryPrefix:      cfg.Memory.Prefix,
		OutOfScopeMessage: cfg.Packing.OutOfScopeMessage,
	}
	server := chiTransport.NewServer(builder, chatter, memorySvc, healthSvc, defaults, logger)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      server.Router(cfg.Auth.APIKeys),
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// queryEmbedder is the embedder chain that also reports provider health.
type queryEmbedder interface {
	domain.Embedder
	domain.HealthChecker
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> Instruction -> Query
func buildEmbedder(cfg config.Config, store db.Store, logger *zap.Logger) queryEmbedder {
	prov := cfg.Provider(cfg.Embedding.Provider)
	base := openaiTransport.NewEmbedder(&openaiTransport.Config{
		APIKey:     prov.APIKey,
		BaseURL:    prov.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   cfg.Embedding.Provider,
		Logger:     logger,
	})

	var embedder queryEmbedder = base
	if cfg.Embedding.CacheTTLSec > 0 {
		embedder = embcache.New(base, store, embcache.Options{
			Model:      cfg.Embedding.Model,
			TTL:        time.Duration(cfg.Embedding.CacheTTLSec) * time.Second,
			Dimensions: cfg.Embedding.Dimensions,
			CacheTotal: metrics.EmbeddingCacheTotal,
		}, logger)
	}

	// Instruction prefix sits inside the cache chain, so the cache key includes the instruction
	if cfg.Embedding.QueryInstruction != "" {
		embedder = domain.NewInstructionEmbedder(embedder, cfg.Embedding.QueryInstruction)
	}

	return embeddinguc.NewQueryEmbedder(
		embedder, cfg.Embedding.Provider, cfg.Embedding.Model, cfg.Embedding.MaxQueryRunes, logger,
	)
}

// buildBooster returns the term extractor, or a no-op when extraction is not configured.
func buildBooster(cfg config.Config, logger *zap.Logger) (contextbuild.TermExtractor, func()) {
	if cfg.Extraction.Provider == "" {
		logger.Info("Term extraction disabled, retrieval runs without boosts")
		return noBoost{}, func() {}
	}

	prov := cfg.Provider(cfg.Extraction.Provider)
	extractor := openaiTransport.NewTermExtractor(&openaiTransport.Config{
		APIKey:   prov.APIKey,
		BaseURL:  prov.BaseURL,
		Model:    cfg.Extraction.Model,
		Provider: cfg.Extraction.Provider,
		Logger:   logger,
	})
	booster, err := terms.New(extractor, terms.Config{
		PoolSize:    cfg.Extraction.PoolSize,
		PassTimeout: time.Duration(cfg.Extraction.PassTimeoutMs) * time.Millisecond,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to create term booster", zap.Error(err))
	}
	return booster, booster.Release
}

type noBoost struct{}

func (noBoost) Extract(context.Context, string, []message.Message, terms.Weights) []term.Term {
	return nil
}
