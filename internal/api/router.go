package api

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/parleyhq/parley/internal/api/handlers"
	mw "github.com/parleyhq/parley/internal/api/middleware"
	"github.com/parleyhq/parley/internal/buildconfig"
	"github.com/parleyhq/parley/internal/config"
	"github.com/parleyhq/parley/internal/domain"
	"github.com/parleyhq/parley/internal/embedding"
	"github.com/parleyhq/parley/internal/imagesearch"
	"github.com/parleyhq/parley/internal/llm"
	"github.com/parleyhq/parley/internal/service"
	"github.com/parleyhq/parley/internal/store"
)

// App holds the router plus metrics counters for lifecycle management.
type App struct {
	Router       *chi.Mux
	startTime    time.Time
	requestCount atomic.Int64
	errorCount   atomic.Int64
}

func NewApp(db *pgxpool.Pool, logger *zap.Logger) *App {
	// Stores
	agentStore := store.NewAgentStore(db)
	ruleStore := store.NewRuleStore(db)
	knowledgeStore := store.NewKnowledgeStore(db)
	traceStore := store.NewTraceStore(db)

	// External clients via provider factory
	llmProvider := config.LLMProvider()
	embeddingProvider := config.EmbeddingProvider()
	imageProvider := config.ImageSearchProvider()

	llmClient, err := llm.NewClient(llmProvider, config.LLMAPIKey())
	if err != nil {
		logger.Warn("LLM client initialization failed", zap.String("provider", llmProvider), zap.Error(err))
	} else {
		logger.Info("LLM client initialized", zap.String("provider", llmProvider))
	}

	embeddingClient, err := embedding.NewClient(embeddingProvider, config.EmbeddingAPIKey())
	if err != nil {
		logger.Warn("Embedding client initialization failed", zap.String("provider", embeddingProvider), zap.Error(err))
	} else {
		logger.Info("Embedding client initialized", zap.String("provider", embeddingProvider))
	}

	imageClient, err := imagesearch.NewClient(imageProvider, config.GoogleSearchAPIKey(), config.GoogleSearchEngineID())
	if err != nil {
		logger.Warn("Image search client initialization failed", zap.String("provider", imageProvider), zap.Error(err))
	} else {
		logger.Info("Image search client initialized", zap.String("provider", imageProvider))
	}

	// Services
	agentSvc := service.NewAgentService(agentStore)
	ruleSvc := service.NewRuleService(ruleStore, agentStore)
	knowledgeSvc := service.NewKnowledgeService(knowledgeStore, agentStore, traceStore, embeddingClient, logger)
	detector := service.NewConditionDetector(llmClient, traceStore, logger)
	matcher := service.NewRuleMatcher(llmClient, logger)
	turnSvc := service.NewTurnService(agentStore, ruleStore, traceStore, detector, matcher, knowledgeSvc, llmClient, imageClient, logger)

	// Handlers
	agentHandler := handlers.NewAgentHandler(agentSvc)
	ruleHandler := handlers.NewRuleHandler(ruleSvc)
	knowledgeHandler := handlers.NewKnowledgeHandler(knowledgeSvc)
	chatHandler := handlers.NewChatHandler(turnSvc, knowledgeSvc)

	r := chi.NewRouter()

	app := &App{
		Router:    r,
		startTime: time.Now(),
	}

	// Metrics collector for middleware
	metricsCollector := mw.NewMetricsCollector(&app.requestCount, &app.errorCount)

	// Global middleware (order matters)
	r.Use(mw.RequestID)
	r.Use(middleware.RealIP)
	r.Use(metricsCollector.Middleware)
	r.Use(mw.Logging(logger))
	r.Use(middleware.Recoverer)
	r.Use(mw.RateLimit(config.RateLimitRPS(), config.RateLimitBurst()))

	r.Get("/health", healthHandler(db))
	r.Get("/metrics", app.metricsHandler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/agents", func(r chi.Router) {
			r.Post("/", agentHandler.Create)
			r.Route("/{agentID}", func(r chi.Router) {
				r.Get("/", agentHandler.GetByID)
				r.Put("/", agentHandler.Update)
				r.Delete("/", agentHandler.Delete)

				r.Post("/chat", chatHandler.Chat)
				r.Post("/teach", chatHandler.Teach)
				r.Get("/sessions/{sessionID}/history", chatHandler.History)

				r.Route("/rules", func(r chi.Router) {
					r.Post("/", ruleHandler.Create)
					r.Get("/", ruleHandler.List)
				})

				r.Route("/knowledge", func(r chi.Router) {
					r.Post("/", knowledgeHandler.Ingest)
					r.Get("/", knowledgeHandler.List)
				})
			})
		})

		r.Route("/rules/{id}", func(r chi.Router) {
			r.Get("/", ruleHandler.GetByID)
			r.Put("/", ruleHandler.Update)
			r.Delete("/", ruleHandler.Deactivate)
		})

		r.Route("/knowledge/{id}", func(r chi.Router) {
			r.Put("/", knowledgeHandler.Update)
			r.Delete("/", knowledgeHandler.Delete)
		})
	})

	return app
}

// NewRouter returns just the chi.Mux.
func NewRouter(db *pgxpool.Pool, logger *zap.Logger) *chi.Mux {
	return NewApp(db, logger).Router
}

func healthHandler(db *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(r.Context()); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "error": err.Error()})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}

func (app *App) metricsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)

		uptime := time.Since(app.startTime)

		response := map[string]any{
			"uptime_seconds": uptime.Seconds(),
			"uptime_human":   uptime.Round(time.Second).String(),
			"request_count":  app.requestCount.Load(),
			"error_count":    app.errorCount.Load(),
			"goroutines":     runtime.NumGoroutine(),
			"memory": map[string]any{
				"alloc_mb":       float64(memStats.Alloc) / 1024 / 1024,
				"total_alloc_mb": float64(memStats.TotalAlloc) / 1024 / 1024,
				"sys_mb":         float64(memStats.Sys) / 1024 / 1024,
				"num_gc":         memStats.NumGC,
			},
			"go_version": runtime.Version(),
			"build":      buildconfig.VersionInfo(),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(response)
	}
}

// Ensure stores and clients satisfy interfaces at compile time.
var (
	_ domain.AgentStore      = (*store.AgentStore)(nil)
	_ domain.RuleStore       = (*store.RuleStore)(nil)
	_ domain.KnowledgeStore  = (*store.KnowledgeStore)(nil)
	_ domain.TraceStore      = (*store.TraceStore)(nil)
	_ domain.EmbeddingClient = (*embedding.OpenAIClient)(nil)
	_ domain.EmbeddingClient = (*embedding.GenAIClient)(nil)
	_ domain.EmbeddingClient = (*embedding.MockClient)(nil)
	_ llm.Client             = (*llm.OpenAIClient)(nil)
	_ llm.Client             = (*llm.GeminiClient)(nil)
	_ llm.Client             = (*llm.MockClient)(nil)
	_ domain.ImageSearcher   = (*imagesearch.GoogleClient)(nil)
	_ domain.ImageSearcher   = (*imagesearch.MockClient)(nil)
)
