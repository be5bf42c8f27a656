// Package advisor produces market opinions for the consensus debate:
// LLM experts over OpenRouter's chat-completions API plus a
// deterministic rule-based advisor wrapping the strategy scorer.
package advisor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"coinhero/internal/model"
)

// DefaultBaseURL is the OpenRouter chat-completions endpoint root.
const DefaultBaseURL = "https://openrouter.ai/api/v1"

// Expert is one debate persona: a display identity plus the hosted
// model that argues for it.
type Expert struct {
	ID    string
	Name  string
	Role  string
	Focus string
	Model string
}

// DefaultPanel returns the standing three-expert panel: a balanced
// technical analyst, a trend strategist, and a risk officer, each on a
// different hosted model so their blind spots differ.
func DefaultPanel() []Expert {
	return []Expert{
		{
			ID: "claude", Name: "클로드 리", Role: "균형 분석가",
			Focus: "기술적 지표, 온체인 데이터, 거래량 분석",
			Model: "anthropic/claude-sonnet-4",
		},
		{
			ID: "gemini", Name: "제미 나인", Role: "트렌드 전략가",
			Focus: "신기술 트렌드, 생태계 발전, 커뮤니티 성장",
			Model: "google/gemini-2.5-pro-preview",
		},
		{
			ID: "gpt", Name: "지피 테일러", Role: "리스크 총괄",
			Focus: "거시경제, 규제 리스크, 시장 심리",
			Model: "openai/gpt-4.1",
		},
	}
}

// OpenRouter is one expert backed by the OpenRouter API. It implements
// model.Advisor; a failed or unparseable call is "no opinion", never a
// fabricated verdict.
type OpenRouter struct {
	client *resty.Client
	expert Expert
}

// NewOpenRouter builds an advisor for one expert. An empty baseURL
// uses the public endpoint.
func NewOpenRouter(baseURL, apiKey string, expert Expert) *OpenRouter {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(45*time.Second).
		SetHeader("Authorization", "Bearer "+apiKey).
		SetHeader("Content-Type", "application/json").
		SetHeader("X-Title", "CoinHero")
	return &OpenRouter{client: client, expert: expert}
}

func (o *OpenRouter) Name() string { return o.expert.ID }

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// RequestOpinion asks the expert for a verdict on one market. Prior
// opinions from the same debate round are folded into the prompt so
// the expert can agree or push back.
func (o *OpenRouter) RequestOpinion(ctx context.Context, market string, mc model.MarketContext, prior []model.Opinion) (*model.Opinion, error) {
	req := chatRequest{
		Model: o.expert.Model,
		Messages: []chatMessage{
			{Role: "system", Content: o.systemPrompt()},
			{Role: "user", Content: userPrompt(market, mc, prior)},
		},
		Temperature: 0.7,
		MaxTokens:   600,
	}

	var out chatResponse
	resp, err := o.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		Post("/chat/completions")
	if err != nil {
		return nil, fmt.Errorf("openrouter %s: %w", o.expert.ID, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("openrouter %s: status %d: %w", o.expert.ID, resp.StatusCode(), model.ErrUnavailable)
	}
	if len(out.Choices) == 0 {
		return nil, fmt.Errorf("openrouter %s: empty response: %w", o.expert.ID, model.ErrUnavailable)
	}

	op, err := ParseOpinion(out.Choices[0].Message.Content)
	if err != nil {
		return nil, fmt.Errorf("openrouter %s: %w", o.expert.ID, err)
	}
	op.Source = o.expert.ID
	op.Market = market
	op.TS = time.Now()
	return op, nil
}

func (o *OpenRouter) systemPrompt() string {
	return fmt.Sprintf(`당신은 '%s'입니다.
역할: %s
전문 분야: %s

당신은 암호화폐 전문 애널리스트로서 다른 전문가들과 토론합니다.
자신의 관점에서 분석하되, 이전 전문가 의견이 있다면 동의 또는 반박하세요.

응답 형식 (JSON만, 다른 텍스트 없이):
{
    "opinion": "strong_buy" | "buy" | "hold" | "sell" | "strong_sell",
    "confidence": 0-100,
    "content": "한국어 2-4문장 분석",
    "key_points": ["핵심 포인트 1", "핵심 포인트 2"]
}`, o.expert.Name, o.expert.Role, o.expert.Focus)
}

func userPrompt(market string, mc model.MarketContext, prior []model.Opinion) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] 코인을 분석해주세요.\n\n현재 시장 데이터:\n", market)
	fmt.Fprintf(&b, "- 현재가: ₩%.0f\n", mc.Price)
	fmt.Fprintf(&b, "- 24시간 변동: %.2f%%\n", mc.ChangeRate24h)
	fmt.Fprintf(&b, "- RSI: %.1f\n", mc.RSI)
	fmt.Fprintf(&b, "- 볼린저 %%B: %.1f\n", mc.PercentB)
	fmt.Fprintf(&b, "- 거래량 비율: %.1f배\n", mc.VolumeRatio)
	fmt.Fprintf(&b, "- 지지선: ₩%.0f / 저항선: ₩%.0f\n", mc.Support, mc.Resistance)
	fmt.Fprintf(&b, "- 시장 상태: %s\n", mc.Condition)
	if mc.Score > 0 {
		fmt.Fprintf(&b, "- 전략 점수: %.1f점 (%s)\n", mc.Score, strings.Join(mc.Reasons, ", "))
	}
	if len(prior) > 0 {
		b.WriteString("\n[이전 전문가들의 의견]\n")
		for _, p := range prior {
			fmt.Fprintf(&b, "- %s: %s (신뢰도 %.0f%%) %s\n", p.Source, p.Verdict, p.Confidence, p.Rationale)
		}
	}
	return b.String()
}
