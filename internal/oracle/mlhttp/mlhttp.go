// Package mlhttp implements the verification oracle against the internal
// ML inference service over plain HTTP.
package mlhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kawacukennedy/civicsense/internal/report"
)

const httpTimeout = 30 * time.Second

// Client implements report.Oracle against the ML inference service.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// New creates a new inference client for the given base endpoint,
// e.g. http://ml:8090.
func New(endpoint string) *Client {
	return &Client{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: httpTimeout,
		},
	}
}

type inferRequest struct {
	Text      string   `json:"text"`
	MediaRefs []string `json:"media_refs,omitempty"`
}

type inferResponse struct {
	VeracityScore float64 `json:"veracity_score"`
	Labels        []struct {
		Label      string  `json:"label"`
		Confidence float64 `json:"confidence"`
	} `json:"labels"`
}

// Infer sends the report content to the inference service. Any
// transport or protocol failure surfaces as report.ErrOracleUnavailable.
func (c *Client) Infer(ctx context.Context, mediaRefs []string, text string) (float64, []string, error) {
	body, err := json.Marshal(inferRequest{Text: text, MediaRefs: mediaRefs})
	if err != nil {
		return 0, nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.endpoint+"/internal/ml/text_infer", bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", report.ErrOracleUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, nil, fmt.Errorf("%w: read response: %v", report.ErrOracleUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		return 0, nil, fmt.Errorf("%w: inference service returned %d: %s", report.ErrOracleUnavailable, resp.StatusCode, string(respBody))
	}

	var out inferResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return 0, nil, fmt.Errorf("%w: unmarshal response: %v", report.ErrOracleUnavailable, err)
	}
	if out.VeracityScore < 0 || out.VeracityScore > 1 {
		return 0, nil, fmt.Errorf("%w: veracity score %v outside [0,1]", report.ErrOracleUnavailable, out.VeracityScore)
	}

	labels := make([]string, 0, len(out.Labels))
	for _, l := range out.Labels {
		labels = append(labels, l.Label)
	}
	return out.VeracityScore, labels, nil
}
