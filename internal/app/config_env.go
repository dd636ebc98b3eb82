package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ApplyEnvToConfig populates unset fields of cfg from environment variables.
// Explicit cfg values (flags) take precedence over env.
func ApplyEnvToConfig(cfg *Config) {
	if cfg == nil {
		return
	}

	if cfg.Addr == "" {
		cfg.Addr = os.Getenv("ADDR")
	}
	if cfg.TempDir == "" {
		cfg.TempDir = os.Getenv("TEMP_FOLDER")
	}
	if cfg.ImagesDir == "" {
		cfg.ImagesDir = os.Getenv("IMAGES_FOLDER")
	}

	if cfg.LLMBaseURL == "" {
		cfg.LLMBaseURL = os.Getenv("LLM_BASE_URL")
	}
	if cfg.LLMModel == "" {
		cfg.LLMModel = os.Getenv("LLM_MODEL")
	}
	if cfg.LLMAPIKey == "" {
		// OPENAI_API_KEY is the conventional name; LLM_API_KEY wins if both set.
		v := os.Getenv("LLM_API_KEY")
		if v == "" {
			v = os.Getenv("OPENAI_API_KEY")
		}
		cfg.LLMAPIKey = v
	}

	if cfg.MaxUploadBytes == 0 {
		if s := strings.TrimSpace(os.Getenv("MAX_CONTENT_LENGTH")); s != "" {
			if n, err := strconv.ParseInt(s, 10, 64); err == nil && n > 0 {
				cfg.MaxUploadBytes = n
			}
		}
	}

	if cfg.CacheDir == "" {
		cfg.CacheDir = os.Getenv("CACHE_DIR")
	}
	if cfg.CacheMaxAge == 0 {
		if s := os.Getenv("CACHE_MAX_AGE"); s != "" {
			if d, err := time.ParseDuration(s); err == nil {
				cfg.CacheMaxAge = d
			}
		}
	}

	if !cfg.Verbose {
		switch strings.ToLower(strings.TrimSpace(os.Getenv("VERBOSE"))) {
		case "1", "true", "yes", "on":
			cfg.Verbose = true
		}
	}
}
