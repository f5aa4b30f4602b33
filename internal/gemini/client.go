// Package gemini implements the client for the Google generative language API.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/castellan/gembridge/internal/config"
	"github.com/castellan/gembridge/internal/constants"
	"github.com/castellan/gembridge/internal/errors"
)

// Content is one turn of conversation content in the wire format.
type Content struct {
	Parts []Part `json:"parts"`
}

// Part is a single piece of content, always text for this relay.
type Part struct {
	Text string `json:"text"`
}

// generateRequest is the request envelope for generateContent.
type generateRequest struct {
	Contents []Content `json:"contents"`
}

// candidate is one generated completion in the response envelope.
type candidate struct {
	Content Content `json:"content"`
}

// generateResponse is the subset of the response envelope the relay reads.
type generateResponse struct {
	Candidates []candidate `json:"candidates"`
}

// Result carries the extracted candidate text together with the raw
// upstream payload, which the relay echoes back to the caller.
type Result struct {
	Text string
	Raw  json.RawMessage
}

// Client calls the generative language API. A zero timeout leaves the
// outbound call unbounded; a slow upstream then blocks only the request
// waiting on it.
type Client struct {
	endpoint   string
	model      string
	apiKey     config.RedactedString
	httpClient *http.Client
}

// NewClient creates a client from the upstream configuration.
func NewClient(cfg config.Gemini) *Client {
	var timeout time.Duration
	if cfg.Timeout != nil {
		timeout = *cfg.Timeout
	}
	return &Client{
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		model:      cfg.Model,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// GenerateContent sends the prompt to the AI service and returns the first
// candidate's text along with the raw response payload. A success response
// that lacks the candidate text path is a decode error, not a silent
// fallback: a malformed upstream response should surface, not be masked.
func (c *Client) GenerateContent(ctx context.Context, prompt string) (*Result, error) {
	payload, err := json.Marshal(generateRequest{
		Contents: []Content{{Parts: []Part{{Text: prompt}}}},
	})
	if err != nil {
		return nil, errors.WrapInternal(err, "encoding request envelope")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.requestURL(), bytes.NewReader(payload))
	if err != nil {
		return nil, errors.WrapInternal(err, "building upstream request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.WrapUpstream(sanitizeURLError(err), "AI service request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.WrapUpstream(err, "reading AI service response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.NewUpstreamStatusError(resp.StatusCode, truncate(string(body), constants.UpstreamErrorBodyLimit))
	}

	var envelope generateResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, errors.WrapDecode(err, "parsing AI service response")
	}

	text, ok := firstCandidateText(envelope)
	if !ok {
		return nil, errors.NewDecodeError("AI service response contained no candidate text")
	}

	return &Result{Text: text, Raw: body}, nil
}

// requestURL builds the model-specific generateContent URL with the API key
// attached as a query credential.
func (c *Client) requestURL() string {
	return c.endpoint + "/" + c.model + ":generateContent?key=" + url.QueryEscape(c.apiKey.Value())
}

// firstCandidateText extracts candidates[0].content.parts[0].text.
func firstCandidateText(envelope generateResponse) (string, bool) {
	if len(envelope.Candidates) == 0 {
		return "", false
	}
	parts := envelope.Candidates[0].Content.Parts
	if len(parts) == 0 {
		return "", false
	}
	return parts[0].Text, true
}

// sanitizeURLError strips the query string from url.Error values so the
// API key never reaches logs or error responses.
func sanitizeURLError(err error) error {
	var urlErr *url.Error
	if stderrors.As(err, &urlErr) {
		if idx := strings.Index(urlErr.URL, "?"); idx >= 0 {
			urlErr.URL = urlErr.URL[:idx]
		}
	}
	return err
}

// truncate limits s to max bytes for log-safe error context.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
