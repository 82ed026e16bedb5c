// Package claude implements the verification oracle on the Anthropic
// Messages API: the model classifies a report's text and media
// references into content labels and a veracity score.
package claude

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/kawacukennedy/civicsense/internal/report"
)

const responseTokens = 512

// Client implements report.Oracle against the Claude API.
type Client struct {
	client anthropic.Client
	model  string
}

// New creates a new Claude-backed oracle with the given API key and model.
func New(apiKey, model string) *Client {
	return &Client{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

// inference is the JSON shape we ask the model to produce.
type inference struct {
	VeracityScore float64  `json:"veracity_score"`
	Labels        []string `json:"labels"`
}

// Infer classifies the report content. Transport failures and malformed
// model output surface as report.ErrOracleUnavailable so the caller can
// leave the report unscored and retry.
func (c *Client) Infer(ctx context.Context, mediaRefs []string, text string) (float64, []string, error) {
	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: responseTokens,
		System:    []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(buildPrompt(mediaRefs, text))),
		},
	})
	if err != nil {
		return 0, nil, fmt.Errorf("%w: claude call: %v", report.ErrOracleUnavailable, err)
	}

	var out string
	for _, block := range msg.Content {
		if block.Type == "text" {
			out = block.Text
		}
	}

	inf, err := parseInference(out)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", report.ErrOracleUnavailable, err)
	}
	return inf.VeracityScore, inf.Labels, nil
}

const systemPrompt = `You classify citizen-submitted civic issue reports (potholes, flooding, broken streetlights, litter, and similar).

Respond with a single JSON object and nothing else:
{"veracity_score": <0..1, how plausible the report describes a real civic issue>, "labels": [<lowercase snake_case category labels>]}`

func buildPrompt(mediaRefs []string, text string) string {
	var b strings.Builder
	b.WriteString("Report text:\n")
	b.WriteString(text)
	if len(mediaRefs) > 0 {
		b.WriteString("\n\nAttached media references:\n")
		for _, ref := range mediaRefs {
			b.WriteString(ref)
			b.WriteString("\n")
		}
	}
	return b.String()
}

// parseInference extracts the JSON object from the model output, which
// may be wrapped in prose or a code fence.
func parseInference(out string) (*inference, error) {
	start := strings.Index(out, "{")
	end := strings.LastIndex(out, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in model output")
	}

	var inf inference
	if err := json.Unmarshal([]byte(out[start:end+1]), &inf); err != nil {
		return nil, fmt.Errorf("unmarshal model output: %w", err)
	}
	if inf.VeracityScore < 0 || inf.VeracityScore > 1 {
		return nil, fmt.Errorf("veracity score %v outside [0,1]", inf.VeracityScore)
	}
	return &inf, nil
}
