package vertex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"cloud.google.com/go/vertexai/genai"
	"github.com/joseph-ayodele/caba/internal/common"
	"github.com/joseph-ayodele/caba/internal/llm"
)

const DefaultModel = "gemini-2.5-flash"

type Config struct {
	ProjectID   string
	Region      string
	Model       string
	Temperature float32
	Timeout     time.Duration // per call; 0 = none
}

// Client is the Vertex AI backend. It authenticates with application default credentials.
type Client struct {
	cfg        Config
	baseClient *genai.Client
	model      *genai.GenerativeModel
	logger     *slog.Logger
}

func NewClient(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ProjectID == "" || cfg.Region == "" {
		return nil, common.NewConfigError("vertex: projectID and region cannot be empty")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	baseClient, err := genai.NewClient(ctx, cfg.ProjectID, cfg.Region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}
	model := baseClient.GenerativeModel(cfg.Model)
	model.GenerationConfig = genai.GenerationConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](cfg.Temperature),
	}

	return &Client{cfg: cfg, baseClient: baseClient, model: model, logger: logger}, nil
}

// Complete implements llm.Completer.
func (c *Client) Complete(ctx context.Context, req llm.CompletionRequest) (string, error) {
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}
	start := time.Now()

	resp, err := c.model.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		var blocked *genai.BlockedError
		if errors.As(err, &blocked) {
			return "", common.NewAIRequestError("vertex blocked the request", err)
		}
		return "", fmt.Errorf("vertex generate error: %w", err)
	}

	text := extractText(resp)
	c.logger.Debug("llm.vertex.ok",
		"req_id", req.ReqID,
		"path", common.DocumentPathFromContext(ctx),
		"model", c.cfg.Model,
		"chars", len(text),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return text, nil
}

func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	return sb.String()
}

func (c *Client) Close() error {
	if c.baseClient != nil {
		return c.baseClient.Close()
	}
	return nil
}
