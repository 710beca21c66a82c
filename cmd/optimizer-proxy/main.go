// Command optimizer-proxy exposes the image optimization pipeline over HTTP
// for document generation services that do not link the library directly.
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/pdf-image-optimizer/pkg/cache"
	"github.com/Sternrassler/pdf-image-optimizer/pkg/logging"
	"github.com/Sternrassler/pdf-image-optimizer/pkg/optimizer"
	"github.com/Sternrassler/pdf-image-optimizer/pkg/policy"
)

type serverConfig struct {
	// Port the HTTP server listens on.
	Port string `env:"PORT" envDefault:"8080"`

	// RedisURL enables the Redis cache backend. Empty means in-memory.
	RedisURL string `env:"REDIS_URL"`

	// SourceBaseURL is the base URL image identities are resolved against.
	SourceBaseURL string `env:"SOURCE_BASE_URL"`

	// SourceDir resolves identities against a local directory instead.
	SourceDir string `env:"SOURCE_DIR"`

	// FallbackEnabled serves original bytes when optimization fails.
	FallbackEnabled bool `env:"FALLBACK_ENABLED" envDefault:"true"`

	// StorageBudgetBytes is the advisory cache budget (0 = unlimited).
	StorageBudgetBytes int64 `env:"STORAGE_BUDGET_BYTES"`

	// OptimizeTimeout bounds a single optimization.
	OptimizeTimeout time.Duration `env:"OPTIMIZE_TIMEOUT" envDefault:"8s"`

	// LogLevel is the minimum log level (debug, info, warn, error).
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// LogPretty enables human-readable console output.
	LogPretty bool `env:"LOG_PRETTY"`
}

func main() {
	var cfg serverConfig
	if err := env.Parse(&cfg); err != nil {
		panic(err)
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = logging.LogLevel(cfg.LogLevel)
	logCfg.Pretty = cfg.LogPretty
	logger := logging.Setup(logCfg)

	store := newStore(cfg, logger)
	manager := cache.NewManager(store, cache.ManagerConfig{BudgetBytes: cfg.StorageBudgetBytes})

	optCfg := optimizer.Config{
		Fetcher:         newFetcher(cfg),
		Cache:           manager,
		FallbackEnabled: cfg.FallbackEnabled,
		OptimizeTimeout: cfg.OptimizeTimeout,
	}
	opt, err := optimizer.New(optCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create optimizer")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/optimize", optimizeHandler(opt))
	mux.HandleFunc("/storage/metrics", storageMetricsHandler(opt))
	mux.HandleFunc("/storage/has", storageHasHandler(opt))

	addr := ":" + cfg.Port
	logger.Info().
		Str("addr", addr).
		Str("backend", store.Backend()).
		Bool("fallback", cfg.FallbackEnabled).
		Msg("Starting optimizer proxy")

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	if err := server.ListenAndServe(); err != nil {
		logger.Fatal().Err(err).Msg("Server failed")
	}
}

// newStore connects the Redis backend when configured, otherwise falls back
// to the in-memory store.
func newStore(cfg serverConfig, logger zerolog.Logger) cache.Store {
	if cfg.RedisURL == "" {
		logger.Info().Msg("No REDIS_URL configured, using in-memory cache")
		return cache.NewMemoryStore()
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisURL})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Str("redis_url", cfg.RedisURL).Msg("Failed to connect to Redis")
	}

	logger.Info().Str("redis_url", cfg.RedisURL).Msg("Connected to Redis")
	return cache.NewRedisStore(client)
}

// newFetcher picks the source fetcher from configuration. A local directory
// takes precedence over a base URL.
func newFetcher(cfg serverConfig) optimizer.SourceFetcher {
	if cfg.SourceDir != "" {
		return &optimizer.FileFetcher{BaseDir: cfg.SourceDir}
	}
	return &optimizer.HTTPFetcher{BaseURL: cfg.SourceBaseURL}
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// optimizeHandler serves GET /optimize?id=<identity>&type=<content-type>.
// The optimized bytes are returned directly; metadata travels in headers.
func optimizeHandler(opt *optimizer.Optimizer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := r.URL.Query().Get("id")
		if identity == "" {
			http.Error(w, "missing id parameter", http.StatusBadRequest)
			return
		}
		ct := policy.ContentType(r.URL.Query().Get("type"))
		if !ct.Valid() {
			http.Error(w, "invalid type parameter (text, photo, graphics, logo)", http.StatusBadRequest)
			return
		}

		res := opt.OptimizeImageForPDF(r.Context(), identity, ct)
		if res.Error != "" && len(res.Data) == 0 {
			http.Error(w, res.Error, http.StatusBadGateway)
			return
		}

		contentType := "application/octet-stream"
		if res.Format != "" {
			contentType = "image/" + res.Format
		}
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("X-Optimization-Technique", string(res.Metadata.Technique))
		w.Header().Set("X-Compression-Ratio", strconv.FormatFloat(res.CompressionRatio, 'f', 3, 64))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(res.Data)
	}
}

func storageMetricsHandler(opt *optimizer.Optimizer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metrics, err := opt.GetCompressedImageStorageMetrics(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(metrics)
	}
}

func storageHasHandler(opt *optimizer.Optimizer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := r.URL.Query().Get("id")
		if identity == "" {
			http.Error(w, "missing id parameter", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]bool{
			"cached": opt.HasCompressedImage(r.Context(), identity),
		})
	}
}
