package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/hyperifyio/goregistry/internal/cache"
)

// DefaultModel is used when a request does not name one.
const DefaultModel = "gpt-4o"

// DefaultSummaryMaxTokens bounds summaries when the caller does not.
const DefaultSummaryMaxTokens = 500

// ErrNotJSON indicates the model ignored the JSON response format. The
// caller surfaces this to the user; there is no retry.
var ErrNotJSON = errors.New("model did not return valid JSON")

const analyzeSystemPrompt = "당신은 텍스트 분석 전문가입니다. 제공된 텍스트를 분석하고 중요한 정보를 추출하여 구조화된 형태로 제공해주세요."

const summarizeSystemPrompt = "당신은 텍스트 요약 전문가입니다. 제공된 텍스트를 간결하게 요약해주세요."

// registrationSystemPrompt instructs the model to analyze a registration
// certificate and answer with a fixed snake_case JSON structure.
const registrationSystemPrompt = `
아래 등기사항전부증명서(말소사항 포함) 원문을 분석하고, 출력 형식은 반드시 JSON으로, 키는 모두 snake_case(띄어쓰기 대신 언더바)로 작성해 주세요.

출력 예시 구조:

{
  "basic_info": {
    "real_estate": "도로명주소 또는 지번",
    "identifier_number": "고유번호",
    "examination_datetime": "YYYY-MM-DD HH:MM:SS",
    "registry_office": "관할 등기소 명칭"
  },
  "building": {
    "structure": "철근콘크리트구조 등",
    "usage": "단독주택(다가구 6) 외1 등",
    "floor_areas": {
      "floor_1": "㎡",
      "floor_2": "㎡",
      "floor_3": "㎡",
      "floor_4": "㎡",
      "floor_5": "㎡",
      // ... 추가 층수 ...
      "floor_rooftop": "㎡ (연면적 제외 여부)"
    },
    "total_floor_area": "㎡",
    "total_floor_area_pyeong": "평"
  },
  "ownership_history": [
    {
      "event_date": "YYYY-MM-DD",
      "event_type": "소유권보존/이전 등기",
      "owner_name": "이름",
      "owner_id": "주민등록번호 앞6자리-**",
      "owner_address": "주소",
      "remarks": "매매일/등기원인/매매가액 등"
    }
    // …다른 변천 기록들
  ],
  "lien_history": [
    {
      "event_date": "YYYY-MM-DD",
      "lien_type": "압류 설정/해제",
      "lien_holder": "기관명",
      "remarks": "압류 사유 등"
    }
    // …
  ],
  "mortgage_history": [
    {
      "mortgage_number": 1,
      "registration_date": "YYYY-MM-DD",
      "max_loan_amount": "금액",
      "mortgagor": "채무자 이름",
      "mortgagee": "근저당권자 기관명",
      "cancellation_date": "YYYY-MM-DD"
    }
    // …다른 근저당권 기록
  ],
  "sale_list": [
    {
      "list_number": "목록번호",
      "transaction_date": "YYYY-MM-DD",
      "transaction_amount": "금액",
      "properties": {
        "land": "토지 주소",
        "building": "건물 주소"
      }
    }
  ],
  "risk_analysis": {
    "positive_factors": ["항목1", "항목2"],
    "caution_factors": ["항목1", "항목2"],
    "risk_factors": ["항목"]
  },
  "lease_checkpoints": ["확인사항1", "확인사항2"],
  "safe_deposit_levels": {
    "recommended_upper_limit": "금액",
    "maximum_safe_limit": "금액"
  },
  "insurance_and_protection": ["항목1", "항목2"],
  "overall_evaluation": {
    "risk_score": 0,
    "comment": "부동산의 전반적 안전성 및 권고사항"
  }
}
`

// Result is a plain-text completion plus usage accounting.
type Result struct {
	Response string `json:"response"`
	Model    string `json:"model"`
	Tokens   int    `json:"tokens"`
}

// RegistrationResult carries the parsed JSON analysis of a certificate.
type RegistrationResult struct {
	Response json.RawMessage `json:"response"`
	Model    string          `json:"model"`
	Tokens   int             `json:"tokens"`
}

// Analyzer runs the fixed analysis prompts against a chat model. Cache is
// optional; when set, responses are reused for identical model+prompt pairs.
// DefaultModel, when set, is used for requests that do not name a model;
// DefaultModel falls back to the package constant when empty.
type Analyzer struct {
	Client       Client
	Cache        *cache.LLMCache
	DefaultModel string
}

// Analyze sends text with the general analysis prompt. An extra user prompt
// may be prepended; the empty string is allowed.
func (a *Analyzer) Analyze(ctx context.Context, text, model, prompt string) (Result, error) {
	return a.chat(ctx, a.resolveModel(model), analyzeSystemPrompt, prompt+"\n\n"+text, 0, nil)
}

// Summarize sends text with the summarization prompt, bounding the reply to
// maxTokens (DefaultSummaryMaxTokens when <= 0).
func (a *Analyzer) Summarize(ctx context.Context, text, model string, maxTokens int) (Result, error) {
	if maxTokens <= 0 {
		maxTokens = DefaultSummaryMaxTokens
	}
	return a.chat(ctx, a.resolveModel(model), summarizeSystemPrompt, text, maxTokens, nil)
}

// AnalyzeRegistration sends certificate text with the registration prompt,
// requesting a JSON object reply, and parses it. A reply that is not valid
// JSON yields ErrNotJSON.
func (a *Analyzer) AnalyzeRegistration(ctx context.Context, text, model string) (RegistrationResult, error) {
	format := &openai.ChatCompletionResponseFormat{
		Type: openai.ChatCompletionResponseFormatTypeJSONObject,
	}
	res, err := a.chat(ctx, a.resolveModel(model), registrationSystemPrompt, text, 0, format)
	if err != nil {
		return RegistrationResult{}, err
	}
	var parsed json.RawMessage
	if err := json.Unmarshal([]byte(strings.TrimSpace(res.Response)), &parsed); err != nil {
		return RegistrationResult{}, ErrNotJSON
	}
	return RegistrationResult{Response: parsed, Model: res.Model, Tokens: res.Tokens}, nil
}

func (a *Analyzer) chat(ctx context.Context, model, system, user string, maxTokens int, format *openai.ChatCompletionResponseFormat) (Result, error) {
	if a.Client == nil {
		return Result{}, errors.New("llm client not configured")
	}

	var key string
	if a.Cache != nil {
		key = cache.KeyFrom(model, system+"\n\n"+user)
		if raw, ok, _ := a.Cache.Get(ctx, key); ok {
			var res Result
			if err := json.Unmarshal(raw, &res); err == nil && res.Response != "" {
				return res, nil
			}
		}
	}

	req := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		MaxTokens:      maxTokens,
		ResponseFormat: format,
	}
	resp, err := a.Client.CreateChatCompletion(ctx, req)
	if err != nil {
		return Result{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Result{}, errors.New("chat completion returned no choices")
	}

	res := Result{
		Response: resp.Choices[0].Message.Content,
		Model:    model,
		Tokens:   resp.Usage.TotalTokens,
	}
	if a.Cache != nil {
		if raw, err := json.Marshal(res); err == nil {
			_ = a.Cache.Save(ctx, key, raw)
		}
	}
	return res, nil
}

// resolveModel picks the request model, then the configured default, then
// the package constant.
func (a *Analyzer) resolveModel(model string) string {
	if strings.TrimSpace(model) != "" {
		return model
	}
	if strings.TrimSpace(a.DefaultModel) != "" {
		return a.DefaultModel
	}
	return DefaultModel
}
