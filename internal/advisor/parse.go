package advisor

import (
	"encoding/json"
	"fmt"
	"strings"

	"coinhero/internal/model"
)

// opinionPayload is the JSON shape the experts are instructed to emit.
type opinionPayload struct {
	Opinion    string   `json:"opinion"`
	Confidence float64  `json:"confidence"`
	Content    string   `json:"content"`
	KeyPoints  []string `json:"key_points"`
}

// ParseOpinion extracts an Opinion from raw model output. Models wrap
// JSON in markdown code fences or chat filler more often than not, so
// the parser strips fences and slices from the first '{' to the last
// '}' before unmarshalling. Anything that still fails to parse, or
// carries an unknown verdict, is an error and counts as no opinion.
func ParseOpinion(raw string) (*model.Opinion, error) {
	body := stripCodeFence(raw)

	start := strings.Index(body, "{")
	end := strings.LastIndex(body, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in response: %w", model.ErrUnavailable)
	}

	var p opinionPayload
	if err := json.Unmarshal([]byte(body[start:end+1]), &p); err != nil {
		return nil, fmt.Errorf("malformed opinion JSON: %w", model.ErrUnavailable)
	}

	verdict := model.Verdict(strings.ToLower(strings.TrimSpace(p.Opinion)))
	switch verdict {
	case model.VerdictStrongBuy, model.VerdictBuy, model.VerdictHold, model.VerdictSell, model.VerdictStrongSell:
	default:
		return nil, fmt.Errorf("unknown verdict %q: %w", p.Opinion, model.ErrUnavailable)
	}

	return &model.Opinion{
		Verdict:    verdict,
		Confidence: model.Clamp100(p.Confidence),
		Rationale:  p.Content,
		KeyPoints:  p.KeyPoints,
	}, nil
}

// stripCodeFence removes a surrounding markdown fence, with or without
// a language tag.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.Index(s, "\n"); i >= 0 {
		// Drop the language tag line ("json", "JSON", or empty).
		first := strings.TrimSpace(s[:i])
		if len(first) <= 8 && !strings.Contains(first, "{") {
			s = s[i+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
