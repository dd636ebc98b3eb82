package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jung-kurt/gofpdf"
	openai "github.com/sashabaranov/go-openai"

	"github.com/hyperifyio/goregistry/internal/app"
	"github.com/hyperifyio/goregistry/internal/llm"
)

// stubLLM records the last request and answers every chat completion with a
// fixed message.
type stubLLM struct {
	lastReq openai.ChatCompletionRequest
	content string
	tokens  int
	err     error
}

func (s *stubLLM) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	s.lastReq = req
	if s.err != nil {
		return openai.ChatCompletionResponse{}, s.err
	}
	return openai.ChatCompletionResponse{
		Model: req.Model,
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: s.content}},
		},
		Usage: openai.Usage{TotalTokens: s.tokens},
	}, nil
}

func mustOpen(t *testing.T, path string) *os.File {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

func newTestServer(t *testing.T, caps app.Capabilities, client llm.Client) *Server {
	t.Helper()
	cfg := app.Config{
		TempDir:        t.TempDir(),
		ImagesDir:      t.TempDir(),
		MaxUploadBytes: app.DefaultMaxUploadBytes,
	}
	var analyzer *llm.Analyzer
	if client != nil {
		analyzer = &llm.Analyzer{Client: client}
	}
	return New(cfg, caps, analyzer)
}

// fixturePDF writes an uncompressed single-page PDF with the given lines so
// content streams stay readable for the text extractor.
func fixturePDF(t *testing.T, dir string, lines ...string) string {
	t.Helper()
	doc := gofpdf.New("P", "mm", "A4", "")
	doc.SetCompression(false)
	doc.SetFont("Helvetica", "", 12)
	doc.AddPage()
	for _, line := range lines {
		doc.CellFormat(0, 6, line, "", 1, "L", false, 0, "")
	}
	path := filepath.Join(dir, "fixture.pdf")
	if err := doc.OutputFileAndClose(path); err != nil {
		t.Fatalf("write fixture pdf: %v", err)
	}
	return path
}

func multipartUpload(t *testing.T, fieldFilename, content string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", fieldFilename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := io.WriteString(part, content); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return m
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, app.Capabilities{PDF: true, LLM: true}, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["status"] != "healthy" {
		t.Fatalf("status field = %v", body["status"])
	}
	if body["pdf_available"] != true || body["llm_available"] != true {
		t.Fatalf("capabilities = %v", body)
	}
}

func TestExtractTextMissingFilePart(t *testing.T) {
	srv := newTestServer(t, app.Capabilities{PDF: true}, nil)
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("other", "x"); err != nil {
		t.Fatalf("write field: %v", err)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/pdf/extract-text", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if got := decodeBody(t, rec)["error"]; got != msgNoFilePart {
		t.Fatalf("error = %v, want %q", got, msgNoFilePart)
	}
}

func TestExtractTextEmptyFilename(t *testing.T) {
	srv := newTestServer(t, app.Capabilities{PDF: true}, nil)
	body, ctype := multipartUpload(t, "", "data", nil)
	req := httptest.NewRequest(http.MethodPost, "/pdf/extract-text", body)
	req.Header.Set("Content-Type", ctype)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if got := decodeBody(t, rec)["error"]; got != msgNoFileSelected {
		t.Fatalf("error = %v, want %q", got, msgNoFileSelected)
	}
}

func TestExtractTextRejectsNonPDF(t *testing.T) {
	srv := newTestServer(t, app.Capabilities{PDF: true}, nil)
	body, ctype := multipartUpload(t, "notes.txt", "plain text", nil)
	req := httptest.NewRequest(http.MethodPost, "/pdf/extract-text", body)
	req.Header.Set("Content-Type", ctype)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if got := decodeBody(t, rec)["error"]; got != msgPDFOnly {
		t.Fatalf("error = %v, want %q", got, msgPDFOnly)
	}
}

func TestExtractTextReturnsContent(t *testing.T) {
	srv := newTestServer(t, app.Capabilities{PDF: true}, nil)
	dir := t.TempDir()
	path := fixturePDF(t, dir, "hello from page one")
	raw, err := io.ReadAll(mustOpen(t, path))
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}

	body, ctype := multipartUpload(t, "doc.pdf", string(raw), nil)
	req := httptest.NewRequest(http.MethodPost, "/pdf/extract-text", body)
	req.Header.Set("Content-Type", ctype)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	got := decodeBody(t, rec)
	if got["filename"] != "doc.pdf" {
		t.Fatalf("filename = %v", got["filename"])
	}
	text, _ := got["text_content"].(string)
	if !strings.Contains(text, "hello from page one") {
		t.Fatalf("text_content = %q, want fixture line", text)
	}
}

func TestExtractStructuredDefaults(t *testing.T) {
	srv := newTestServer(t, app.Capabilities{PDF: true}, nil)
	dir := t.TempDir()
	path := fixturePDF(t, dir, "just an ordinary document")
	raw, err := io.ReadAll(mustOpen(t, path))
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}

	body, ctype := multipartUpload(t, "doc.pdf", string(raw), nil)
	req := httptest.NewRequest(http.MethodPost, "/pdf/extract-structured", body)
	req.Header.Set("Content-Type", ctype)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	got := decodeBody(t, rec)
	if got["document_type"] != nil {
		t.Fatalf("document_type = %v, want null", got["document_type"])
	}
	owners, ok := got["ownership_info"].([]any)
	if !ok || len(owners) != 0 {
		t.Fatalf("ownership_info = %v, want empty array", got["ownership_info"])
	}
	if got["page_count"] != float64(1) {
		t.Fatalf("page_count = %v", got["page_count"])
	}
}

func TestExtractImagesNoneInTextPDF(t *testing.T) {
	srv := newTestServer(t, app.Capabilities{PDF: true}, nil)
	dir := t.TempDir()
	path := fixturePDF(t, dir, "text only")
	raw, err := io.ReadAll(mustOpen(t, path))
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}

	body, ctype := multipartUpload(t, "doc.pdf", string(raw), nil)
	req := httptest.NewRequest(http.MethodPost, "/pdf/extract-images", body)
	req.Header.Set("Content-Type", ctype)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	got := decodeBody(t, rec)
	if got["image_count"] != float64(0) {
		t.Fatalf("image_count = %v, want 0", got["image_count"])
	}
	images, ok := got["images"].([]any)
	if !ok || len(images) != 0 {
		t.Fatalf("images = %v, want empty array", got["images"])
	}
}

func TestAnalyzeRequiresText(t *testing.T) {
	srv := newTestServer(t, app.Capabilities{PDF: true, LLM: true}, &stubLLM{content: "ok"})
	req := httptest.NewRequest(http.MethodPost, "/openai/analyze", strings.NewReader(`{"text":""}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if got := decodeBody(t, rec)["error"]; got != msgNoAnalyzeText {
		t.Fatalf("error = %v, want %q", got, msgNoAnalyzeText)
	}
}

func TestAnalyzeBadJSONBody(t *testing.T) {
	srv := newTestServer(t, app.Capabilities{PDF: true, LLM: true}, &stubLLM{content: "ok"})
	req := httptest.NewRequest(http.MethodPost, "/openai/analyze", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if got := decodeBody(t, rec)["error"]; got != msgBadJSONBody {
		t.Fatalf("error = %v, want %q", got, msgBadJSONBody)
	}
}

func TestAnalyzeSucceeds(t *testing.T) {
	stub := &stubLLM{content: "분석 결과", tokens: 42}
	srv := newTestServer(t, app.Capabilities{PDF: true, LLM: true}, stub)
	req := httptest.NewRequest(http.MethodPost, "/openai/analyze", strings.NewReader(`{"text":"본문"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	got := decodeBody(t, rec)
	if got["response"] != "분석 결과" {
		t.Fatalf("response = %v", got["response"])
	}
	if got["model"] != llm.DefaultModel {
		t.Fatalf("model = %v, want %q", got["model"], llm.DefaultModel)
	}
	if got["tokens"] != float64(42) {
		t.Fatalf("tokens = %v", got["tokens"])
	}
}

func TestAnalyzeUsesConfiguredDefaultModel(t *testing.T) {
	stub := &stubLLM{content: "분석 결과"}
	cfg := app.Config{
		TempDir:        t.TempDir(),
		ImagesDir:      t.TempDir(),
		MaxUploadBytes: app.DefaultMaxUploadBytes,
		LLMModel:       "configured-model",
	}
	srv := New(cfg, app.Capabilities{PDF: true, LLM: true},
		&llm.Analyzer{Client: stub, DefaultModel: cfg.LLMModel})

	req := httptest.NewRequest(http.MethodPost, "/openai/analyze", strings.NewReader(`{"text":"본문"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if stub.lastReq.Model != "configured-model" {
		t.Fatalf("chat request carried model %q, want configured default", stub.lastReq.Model)
	}
	if got := decodeBody(t, rec)["model"]; got != "configured-model" {
		t.Fatalf("model = %v, want configured default", got)
	}
}

func TestSummarizeRequiresText(t *testing.T) {
	srv := newTestServer(t, app.Capabilities{PDF: true, LLM: true}, &stubLLM{content: "ok"})
	req := httptest.NewRequest(http.MethodPost, "/openai/summarize", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if got := decodeBody(t, rec)["error"]; got != msgNoSummaryText {
		t.Fatalf("error = %v, want %q", got, msgNoSummaryText)
	}
}

func TestOpenAIEndpointsRequireKey(t *testing.T) {
	srv := newTestServer(t, app.Capabilities{PDF: true, LLM: false}, nil)
	for _, path := range []string{"/openai/analyze", "/openai/summarize"} {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{"text":"abc"}`))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)

		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("%s: status = %d, want 500", path, rec.Code)
		}
		if got := decodeBody(t, rec)["error"]; got != msgLLMUnavailable {
			t.Fatalf("%s: error = %v, want %q", path, got, msgLLMUnavailable)
		}
	}
}

func TestAnalyzeRegistrationReturnsJSON(t *testing.T) {
	stub := &stubLLM{content: `{"document_type":"등기사항전부증명서"}`, tokens: 7}
	srv := newTestServer(t, app.Capabilities{PDF: true, LLM: true}, stub)
	dir := t.TempDir()
	path := fixturePDF(t, dir, "registration body text")
	raw, err := io.ReadAll(mustOpen(t, path))
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}

	body, ctype := multipartUpload(t, "deed.pdf", string(raw), map[string]string{"model": "gpt-4o-mini"})
	req := httptest.NewRequest(http.MethodPost, "/openai/analyze-registration", body)
	req.Header.Set("Content-Type", ctype)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	got := decodeBody(t, rec)
	resp, ok := got["response"].(map[string]any)
	if !ok {
		t.Fatalf("response = %v, want nested object", got["response"])
	}
	if resp["document_type"] != "등기사항전부증명서" {
		t.Fatalf("document_type = %v", resp["document_type"])
	}
	if got["model"] != "gpt-4o-mini" {
		t.Fatalf("model = %v", got["model"])
	}
}

func TestUploadCapRejectsOversizedBody(t *testing.T) {
	cfg := app.Config{
		TempDir:        t.TempDir(),
		ImagesDir:      t.TempDir(),
		MaxUploadBytes: 512,
	}
	srv := New(cfg, app.Capabilities{PDF: true}, nil)

	body, ctype := multipartUpload(t, "big.pdf", strings.Repeat("a", 4096), nil)
	req := httptest.NewRequest(http.MethodPost, "/pdf/extract-text", body)
	req.Header.Set("Content-Type", ctype)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	assertDirEmpty(t, cfg.TempDir)
}

func TestTempUploadRemovedAfterSuccess(t *testing.T) {
	srv := newTestServer(t, app.Capabilities{PDF: true}, nil)
	dir := t.TempDir()
	path := fixturePDF(t, dir, "hello")
	raw, err := io.ReadAll(mustOpen(t, path))
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}

	body, ctype := multipartUpload(t, "doc.pdf", string(raw), nil)
	req := httptest.NewRequest(http.MethodPost, "/pdf/extract-text", body)
	req.Header.Set("Content-Type", ctype)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	assertDirEmpty(t, srv.cfg.TempDir)
}

func TestTempUploadRemovedAfterParseFailure(t *testing.T) {
	srv := newTestServer(t, app.Capabilities{PDF: true}, nil)

	body, ctype := multipartUpload(t, "broken.pdf", "this is not a pdf", nil)
	req := httptest.NewRequest(http.MethodPost, "/pdf/extract-text", body)
	req.Header.Set("Content-Type", ctype)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	assertDirEmpty(t, srv.cfg.TempDir)
}

func assertDirEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir %s: %v", dir, err)
	}
	if len(entries) != 0 {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Fatalf("dir %s not empty: %v", dir, names)
	}
}

func TestAnalyzeRegistrationNonJSONReply(t *testing.T) {
	stub := &stubLLM{content: "이건 JSON이 아닙니다"}
	srv := newTestServer(t, app.Capabilities{PDF: true, LLM: true}, stub)
	dir := t.TempDir()
	path := fixturePDF(t, dir, "registration body text")
	raw, err := io.ReadAll(mustOpen(t, path))
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}

	body, ctype := multipartUpload(t, "deed.pdf", string(raw), nil)
	req := httptest.NewRequest(http.MethodPost, "/openai/analyze-registration", body)
	req.Header.Set("Content-Type", ctype)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if got := decodeBody(t, rec)["error"]; got != msgLLMBadJSON {
		t.Fatalf("error = %v, want %q", got, msgLLMBadJSON)
	}
}
