// Command openai-stub is a minimal OpenAI-compatible chat backend for local
// development and end-to-end tests. It recognizes the analysis, summary and
// registration prompts by their system message and answers deterministically.
package main

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"strings"
)

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func main() {
	model := os.Getenv("MODEL_ID")
	if strings.TrimSpace(model) == "" {
		model = "test-model"
	}
	addr := os.Getenv("ADDR")
	if strings.TrimSpace(addr) == "" {
		addr = ":8081"
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"id": model, "object": "model"}},
		})
	})
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		var req chatRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		sys := ""
		if len(req.Messages) > 0 {
			sys = strings.TrimSpace(req.Messages[0].Content)
		}
		var content string
		switch {
		case strings.Contains(sys, "등기사항전부증명서"):
			res := map[string]any{
				"basic_info": map[string]any{
					"real_estate":       "서울특별시 테스트구 테스트로 1",
					"identifier_number": "1234-5678-901234",
				},
				"summary": "테스트용 등기부등본 분석 결과입니다.",
			}
			b, _ := json.Marshal(res)
			content = string(b)
		case strings.Contains(sys, "텍스트 분석 전문가"):
			content = "분석 결과: 제공된 텍스트에서 핵심 정보를 추출했습니다."
		case strings.Contains(sys, "텍스트 요약 전문가"):
			content = "요약: 제공된 텍스트의 간결한 요약입니다."
		default:
			http.Error(w, "unexpected system", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model": req.Model,
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": content}},
			},
			"usage": map[string]int{"total_tokens": 42},
		})
	})

	log.Printf("openai-stub listening on %s (model=%s)", addr, model)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatal(err)
	}
}
