// Package server exposes the PDF parsing and analysis API over HTTP. All
// user-facing error messages are Korean, matching the documents the service
// is built for; logs are English.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/goregistry/internal/app"
	"github.com/hyperifyio/goregistry/internal/llm"
)

// User-facing messages, matching the wire contract of the API.
const (
	msgNoFilePart     = "파일이 없습니다"
	msgNoFileSelected = "선택된 파일이 없습니다"
	msgPDFOnly        = "PDF 파일만 허용됩니다"
	msgPDFUnavailable = "PDF 파싱 기능을 사용할 수 없습니다"
	msgLLMUnavailable = "OPENAI_API_KEY 환경 변수가 설정되지 않았습니다"
	msgNoAnalyzeText  = "분석할 텍스트가 없습니다"
	msgNoSummaryText  = "요약할 텍스트가 없습니다"
	msgNoPDFText      = "PDF에서 텍스트를 추출할 수 없습니다"
	msgLLMBadJSON     = "OpenAI API가 올바른 JSON 형식으로 응답하지 않았습니다"
	msgBadJSONBody    = "잘못된 JSON 요청입니다"
)

// Server holds the request-independent pieces: configuration, the
// capability flags resolved at startup and the analysis client.
type Server struct {
	cfg      app.Config
	caps     app.Capabilities
	analyzer *llm.Analyzer
}

// New builds a Server. analyzer may be nil when the LLM capability is off.
func New(cfg app.Config, caps app.Capabilities, analyzer *llm.Analyzer) *Server {
	return &Server{cfg: cfg, caps: caps, analyzer: analyzer}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(s.limitBody)

	r.Get("/health", s.handleHealth)
	r.Route("/pdf", func(r chi.Router) {
		r.Post("/extract-text", s.handleExtractText)
		r.Post("/extract-images", s.handleExtractImages)
		r.Post("/extract-structured", s.handleExtractStructured)
	})
	r.Route("/openai", func(r chi.Router) {
		r.Post("/analyze", s.handleAnalyze)
		r.Post("/summarize", s.handleSummarize)
		r.Post("/analyze-registration", s.handleAnalyzeRegistration)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "healthy",
		"pdf_available": s.caps.PDF,
		"llm_available": s.caps.LLM,
	})
}

// limitBody caps request bodies so an oversized upload fails fast instead of
// filling the temp dir.
func (s *Server) limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.MaxUploadBytes > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
		}
		next.ServeHTTP(w, r)
	})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request")
	})
}
