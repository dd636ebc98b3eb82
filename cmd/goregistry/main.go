package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/goregistry/internal/app"
	"github.com/hyperifyio/goregistry/internal/server"
)

func main() {
	// Logging setup
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	var (
		addr        string
		tempDir     string
		imagesDir   string
		maxUpload   int64
		llmBaseURL  string
		llmModel    string
		llmKey      string
		cacheDir    string
		cacheMaxAge time.Duration
		configPath  string
		envFiles    string
		verbose     bool
	)

	flag.StringVar(&addr, "addr", "", "Listen address, e.g. :8080")
	flag.StringVar(&tempDir, "temp.dir", "", "Directory for uploaded files")
	flag.StringVar(&imagesDir, "images.dir", "", "Directory for extracted images")
	flag.Int64Var(&maxUpload, "max.uploadBytes", 0, "Maximum upload size in bytes (default 16 MiB)")
	flag.StringVar(&llmBaseURL, "llm.base", "", "OpenAI-compatible base URL")
	flag.StringVar(&llmModel, "llm.model", "", "Default model name")
	flag.StringVar(&llmKey, "llm.key", "", "API key for OpenAI-compatible server")
	flag.StringVar(&cacheDir, "cache.dir", "", "LLM response cache directory (empty disables)")
	flag.DurationVar(&cacheMaxAge, "cache.maxAge", 0, "Max age for cache entries before purge (e.g. 24h); 0 disables")
	flag.StringVar(&configPath, "config", "", "Optional YAML or JSON config file")
	flag.StringVar(&envFiles, "env", ".env", "Comma-separated dotenv files to load (missing files are skipped)")
	flag.BoolVar(&verbose, "v", false, "Verbose logging")
	flag.Parse()

	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	if s := strings.TrimSpace(envFiles); s != "" {
		paths := make([]string, 0, 2)
		for _, p := range strings.Split(s, ",") {
			if v := strings.TrimSpace(p); v != "" {
				paths = append(paths, v)
			}
		}
		if err := app.LoadEnvFiles(paths...); err != nil {
			log.Warn().Err(err).Msg("dotenv load failed; continuing")
		}
	}

	cfg := app.Config{
		Addr:           addr,
		MaxUploadBytes: maxUpload,
		TempDir:        tempDir,
		ImagesDir:      imagesDir,
		LLMBaseURL:     llmBaseURL,
		LLMModel:       llmModel,
		LLMAPIKey:      llmKey,
		CacheDir:       cacheDir,
		CacheMaxAge:    cacheMaxAge,
		Verbose:        verbose,
	}

	if strings.TrimSpace(configPath) != "" {
		fc, err := app.LoadConfigFile(configPath)
		if err != nil {
			log.Error().Err(err).Str("path", configPath).Msg("config file load failed")
			os.Exit(1)
		}
		app.ApplyFileConfig(&cfg, fc)
	}
	app.ApplyEnvToConfig(&cfg)
	if cfg.Verbose && !verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	if err := run(cfg); err != nil {
		log.Error().Err(err).Msg("run failed")
		os.Exit(1)
	}
}

func run(cfg app.Config) error {
	ctx := context.Background()

	a, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}

	srv := &http.Server{
		Addr:              a.Cfg.Addr,
		Handler:           server.New(a.Cfg, a.Caps, a.Analyzer).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", a.Cfg.Addr).
			Bool("pdf_available", a.Caps.PDF).
			Bool("llm_available", a.Caps.LLM).
			Msg("listening")
		errCh <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case sig := <-stop:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
