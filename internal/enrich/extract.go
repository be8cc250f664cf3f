package enrich

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/EnzoMH/cradcrawl-enrich/internal/model"
	"github.com/EnzoMH/cradcrawl-enrich/pkg/anthropic"
)

// FieldExtractor pulls candidate contact values out of page text.
// Best-effort: it may return fewer fields than requested and never
// fails just because nothing was found.
type FieldExtractor interface {
	Extract(ctx context.Context, text string, targets []model.ContactField) (map[model.ContactField]string, error)
}

// maxExtractInput bounds how much page text is sent per call. Contact
// blocks sit near the top or bottom of Korean institution pages, so
// the head of the document is almost always enough.
const maxExtractInput = 12000

const extractSystemPrompt = `당신은 한국 기관/교회 웹사이트에서 연락처 정보를 추출하는 도우미입니다.
주어진 페이지 텍스트에서 요청된 필드만 찾아 JSON 객체 하나로 답하십시오.
확실하지 않은 값은 포함하지 마십시오. 설명 없이 JSON만 출력하십시오.
필드: phone(대표 전화), fax(팩스), email(이메일), homepage(홈페이지 URL), address(주소)`

// ClaudeExtractor implements FieldExtractor with the Anthropic API.
type ClaudeExtractor struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewClaudeExtractor creates a ClaudeExtractor.
func NewClaudeExtractor(client anthropic.Client, modelID string) *ClaudeExtractor {
	return &ClaudeExtractor{
		client:    client,
		model:     modelID,
		maxTokens: 1024,
	}
}

// Extract asks the model for only the target fields and parses its
// JSON reply. Keys outside the target list are dropped so extraction
// can never overwrite a field that is already present.
func (e *ClaudeExtractor) Extract(ctx context.Context, text string, targets []model.ContactField) (map[model.ContactField]string, error) {
	if len(targets) == 0 {
		return nil, nil
	}
	if len(text) > maxExtractInput {
		text = text[:maxExtractInput]
	}

	keys := make([]string, len(targets))
	for i, t := range targets {
		keys[i] = string(t)
	}

	temp := 0.0
	resp, err := e.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     e.model,
		MaxTokens: e.maxTokens,
		System:    []anthropic.SystemBlock{{Text: extractSystemPrompt}},
		Messages: []anthropic.Message{{
			Role: "user",
			Content: "요청 필드: " + strings.Join(keys, ", ") +
				"\n\n페이지 텍스트:\n" + text,
		}},
		Temperature: &temp,
	})
	if err != nil {
		return nil, eris.Wrap(err, "extract: create message")
	}
	resp.Usage.LogUsage(e.model, "extract")

	return parseExtraction(resp.Text(), targets)
}

// parseExtraction decodes the model's JSON reply, tolerating markdown
// code fences, and keeps only requested, non-empty string values.
func parseExtraction(reply string, targets []model.ContactField) (map[model.ContactField]string, error) {
	body := strings.TrimSpace(reply)
	if i := strings.Index(body, "{"); i >= 0 {
		if j := strings.LastIndex(body, "}"); j > i {
			body = body[i : j+1]
		}
	}
	if body == "" {
		return nil, nil
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return nil, eris.Wrap(err, "extract: parse reply")
	}

	allowed := make(map[model.ContactField]bool, len(targets))
	for _, t := range targets {
		allowed[t] = true
	}

	out := make(map[model.ContactField]string)
	for k, v := range raw {
		f := model.ContactField(k)
		if !allowed[f] {
			continue
		}
		s, ok := v.(string)
		if !ok {
			continue
		}
		s = strings.TrimSpace(s)
		if s == "" || strings.EqualFold(s, "null") {
			continue
		}
		out[f] = s
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

// EstimateTokens gives a rough token count for rate-limit budgeting.
// Korean text runs about two characters per token; this deliberately
// overestimates a little.
func EstimateTokens(text string) int {
	n := len([]rune(text))
	if n > maxExtractInput {
		n = maxExtractInput
	}
	return n/2 + 200
}
