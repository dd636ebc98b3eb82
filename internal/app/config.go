package app

import (
	"strings"
	"time"
)

// Config holds runtime configuration for the API server.
type Config struct {
	// HTTP
	Addr           string
	MaxUploadBytes int64

	// Filesystem
	TempDir   string
	ImagesDir string

	// LLM
	LLMBaseURL string
	LLMModel   string
	LLMAPIKey  string

	// Cache
	CacheDir    string
	CacheMaxAge time.Duration

	Verbose bool
}

// DefaultMaxUploadBytes caps multipart request bodies at 16 MiB.
const DefaultMaxUploadBytes = 16 << 20

// Capabilities is resolved once at startup and passed to request handlers,
// replacing hidden process-wide availability flags. PDF parsing is compiled
// in, so its flag only exists for the health report; the LLM capability
// depends on an API key being configured.
type Capabilities struct {
	PDF bool
	LLM bool
}

// ResolveCapabilities derives the capability set from cfg.
func ResolveCapabilities(cfg Config) Capabilities {
	return Capabilities{
		PDF: true,
		LLM: strings.TrimSpace(cfg.LLMAPIKey) != "",
	}
}
