package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/hyperifyio/goregistry/internal/llm"
	"github.com/hyperifyio/goregistry/internal/pdfdoc"
)

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if !s.caps.LLM {
		writeError(w, http.StatusInternalServerError, msgLLMUnavailable)
		return
	}
	var req struct {
		Text   string `json:"text"`
		Model  string `json:"model"`
		Prompt string `json:"prompt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, msgBadJSONBody)
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, msgNoAnalyzeText)
		return
	}
	res, err := s.analyzer.Analyze(r.Context(), req.Text, req.Model, req.Prompt)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	if !s.caps.LLM {
		writeError(w, http.StatusInternalServerError, msgLLMUnavailable)
		return
	}
	var req struct {
		Text      string `json:"text"`
		Model     string `json:"model"`
		MaxTokens int    `json:"max_tokens"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, msgBadJSONBody)
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, msgNoSummaryText)
		return
	}
	res, err := s.analyzer.Summarize(r.Context(), req.Text, req.Model, req.MaxTokens)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleAnalyzeRegistration(w http.ResponseWriter, r *http.Request) {
	if !s.caps.LLM {
		writeError(w, http.StatusInternalServerError, msgLLMUnavailable)
		return
	}
	if !s.caps.PDF {
		writeError(w, http.StatusInternalServerError, msgPDFUnavailable)
		return
	}
	path, _, aerr := s.saveUpload(r)
	if aerr != nil {
		writeError(w, aerr.status, aerr.msg)
		return
	}
	defer s.removeTemp(path)
	model := r.FormValue("model")

	doc, err := pdfdoc.Open(path)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer doc.Close()

	text := doc.AllText()
	if strings.TrimSpace(text) == "" {
		writeError(w, http.StatusBadRequest, msgNoPDFText)
		return
	}

	res, err := s.analyzer.AnalyzeRegistration(r.Context(), text, model)
	if err != nil {
		if errors.Is(err, llm.ErrNotJSON) {
			writeError(w, http.StatusInternalServerError, msgLLMBadJSON)
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}
