package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/joseph-ayodele/caba/internal/common"
	"github.com/joseph-ayodele/caba/internal/llm"
)

const systemPrompt = "You extract cab trips from booking documents. Reply with JSON only."

// Complete implements llm.Completer using chat/completions in JSON mode.
// JSON mode requires a top-level object, so the reply usually wraps the trip
// array under "trips"; the parser unwraps it.
func (c *Client) Complete(ctx context.Context, req llm.CompletionRequest) (string, error) {
	start := time.Now()
	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": req.Prompt + "\n\nWrap the array in an object: {\"trips\": [...]}."},
		},
	}
	headers := map[string]string{
		"Authorization": "Bearer " + c.cfg.APIKey,
		"X-Request-Id":  req.ReqID,
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	raw, _, err := llm.SendJSON(ctx, c.http, endpoint, body, headers, c.logger)
	if err != nil {
		c.logger.Warn("llm.openai.http_error",
			"req_id", req.ReqID, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", err
	}

	var cc struct {
		Choices []struct {
			FinishReason string `json:"finish_reason"`
			Message      struct {
				Content string `json:"content"`
				Refusal string `json:"refusal"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		c.logger.Error("llm.openai.decode_error",
			"req_id", req.ReqID, "error", err, "raw_bytes", len(raw),
		)
		return "", common.NewParseError("decode openai response", err)
	}
	if len(cc.Choices) == 0 {
		return "", common.NewParseError("no choices in openai response", nil)
	}
	choice := cc.Choices[0]
	if choice.Message.Refusal != "" || choice.FinishReason == "content_filter" {
		return "", common.NewAIRequestError(fmt.Sprintf("openai refused the request: %s", choice.Message.Refusal), nil)
	}

	c.logger.Debug("llm.openai.ok",
		"req_id", req.ReqID,
		"model", c.cfg.Model,
		"finish_reason", choice.FinishReason,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return choice.Message.Content, nil
}
