// Package narrative generates the executive summary embedded in audit
// documents using an OpenAI-compatible endpoint. Generation is best-effort;
// callers fall back to a placeholder sentence when it fails.
package narrative

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Summarizer produces the executive summary paragraph for one unit's audit
// document. Use this interface for dependency injection to enable mocking
// in tests.
type Summarizer interface {
	// SummarizeUnitAudit writes a one-paragraph executive summary for the
	// unit's audit result.
	SummarizeUnitAudit(ctx context.Context, req SummaryRequest) (string, error)
}

// SummaryRequest carries the facts the summary is built from.
type SummaryRequest struct {
	UnitName        string
	OverallScore    float64
	Predicate       string
	InstrumentCount int
	RejectedCount   int
}

// Config holds configuration for creating a narrative client.
type Config struct {
	BaseURL string // e.g. "https://api.openai.com/v1"
	Model   string // e.g. "gpt-4o-mini"
	APIKey  string
}

// Client generates summaries via an OpenAI-compatible chat endpoint.
type Client struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// NewClient creates a new narrative client.
func NewClient(cfg *Config, logger *zap.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")

	return &Client{
		client: openai.NewClientWithConfig(clientConfig),
		model:  cfg.Model,
		logger: logger.Named("narrative"),
	}, nil
}

var _ Summarizer = (*Client)(nil)

const systemMessage = "You are a quality-assurance officer writing formal " +
	"internal audit reports for a higher-education institution. Answer with " +
	"a single paragraph of plain prose, no headings or lists."

// SummarizeUnitAudit generates a one-paragraph executive summary.
func (c *Client) SummarizeUnitAudit(ctx context.Context, req SummaryRequest) (string, error) {
	prompt := fmt.Sprintf(
		"Write a one-paragraph executive summary for the internal quality audit of unit %q. "+
			"The unit scored %.2f out of 4.00 (%s) across %d audit instruments, "+
			"of which %d had evidence rejected during desk evaluation.",
		req.UnitName, req.OverallScore, req.Predicate, req.InstrumentCount, req.RejectedCount)

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemMessage},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0.3,
	})
	if err != nil {
		c.logger.Warn("Summary generation failed",
			zap.String("unit", req.UnitName),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return "", fmt.Errorf("summary generation failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}

	summary := strings.TrimSpace(resp.Choices[0].Message.Content)
	c.logger.Info("Summary generated",
		zap.String("unit", req.UnitName),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Duration("elapsed", time.Since(start)))
	return summary, nil
}

// PlaceholderSummary is the fallback text used when generation is
// unavailable or fails. Document creation never blocks on the summarizer.
func PlaceholderSummary(unitName string) string {
	return fmt.Sprintf("An automatic executive summary for unit %s could not be generated. "+
		"Refer to the score summary and field verification notes for details.", unitName)
}
