package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"

	"github.com/hyperifyio/goregistry/internal/cache"
	"github.com/hyperifyio/goregistry/internal/llm"
)

// App bundles the resolved configuration, capability flags and the analysis
// client for the HTTP layer. It is built once at startup; request handlers
// never mutate it.
type App struct {
	Cfg      Config
	Caps     Capabilities
	Analyzer *llm.Analyzer
}

// New applies defaults, creates working directories and constructs the LLM
// client. The LLM backend is probed best-effort: an unreachable backend is
// logged, not fatal, since the PDF endpoints work without it.
func New(ctx context.Context, cfg Config) (*App, error) {
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if cfg.TempDir == "" {
		cfg.TempDir = "temp"
	}
	if cfg.ImagesDir == "" {
		cfg.ImagesDir = filepath.Join(cfg.TempDir, "images")
	}
	if err := os.MkdirAll(cfg.TempDir, 0o755); err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	if err := os.MkdirAll(cfg.ImagesDir, 0o755); err != nil {
		return nil, fmt.Errorf("create images dir: %w", err)
	}

	caps := ResolveCapabilities(cfg)
	a := &App{Cfg: cfg, Caps: caps}

	var respCache *cache.LLMCache
	if cfg.CacheDir != "" {
		if cfg.CacheMaxAge > 0 {
			if removed, err := cache.PurgeByAge(cfg.CacheDir, cfg.CacheMaxAge); err != nil {
				log.Warn().Err(err).Msg("cache purge failed; continuing")
			} else if removed > 0 {
				log.Info().Int("removed", removed).Msg("purged stale cache entries")
			}
		}
		respCache = &cache.LLMCache{Dir: cfg.CacheDir}
	}

	if caps.LLM {
		transportCfg := openai.DefaultConfig(cfg.LLMAPIKey)
		if cfg.LLMBaseURL != "" {
			transportCfg.BaseURL = cfg.LLMBaseURL
		}
		transportCfg.HTTPClient = newLLMHTTPClient()
		client := &llm.OpenAIProvider{Inner: openai.NewClientWithConfig(transportCfg)}
		a.Analyzer = &llm.Analyzer{Client: client, Cache: respCache, DefaultModel: cfg.LLMModel}

		// Connectivity preflight by listing models; best-effort only.
		pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if models, err := client.ListModels(pctx); err != nil {
			log.Warn().Err(err).Msg("LLM model list failed; continuing")
		} else {
			log.Info().Int("count", len(models.Models)).Msg("LLM models available")
		}
	} else {
		log.Warn().Msg("no LLM API key configured; /openai endpoints disabled")
	}

	return a, nil
}
