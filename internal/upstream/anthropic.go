// Package upstream provides the one concrete collab.UpstreamChatService the
// cmd/keygated binary wires in: a minimal Anthropic Messages API client. The
// key lifecycle components only ever depend on the collab.UpstreamChatService
// interface; this package exists purely to give the CLI something real to
// dial, grounded on the reference service's internal/providers
// AnthropicProvider/BaseProvider authentication idiom (x-api-key header,
// anthropic-version header) rather than that package's full reverse-proxy
// request/response transformation machinery, which stays out of scope.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/relaykeys/keygated/internal/collab"
)

const (
	// DefaultBaseURL is the production Anthropic API endpoint.
	DefaultBaseURL = "https://api.anthropic.com"

	anthropicVersion  = "2023-06-01"
	messagesPath      = "/v1/messages"
	defaultMaxTokens  = 1
	defaultHTTPClient = 30 * time.Second
)

// AnthropicClient issues minimal Messages API calls, primarily used by the
// scheduled verifier's synthetic probe and the retry handler's real request
// path.
type AnthropicClient struct {
	httpClient *http.Client
	baseURL    string
}

// NewAnthropicClient builds a client against baseURL. An empty baseURL uses
// DefaultBaseURL.
func NewAnthropicClient(baseURL string) *AnthropicClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &AnthropicClient{
		httpClient: &http.Client{Timeout: defaultHTTPClient},
		baseURL:    baseURL,
	}
}

type messagesRequest struct {
	Model     string           `json:"model"`
	MaxTokens int              `json:"max_tokens"`
	Messages  []messageContent `json:"messages"`
}

type messageContent struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
}

// StatusError reports a non-2xx response from the upstream API. It implements
// collab.StatusCoder so the classifier can use the structured code directly.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream: status code %d: %s", e.Code, e.Body)
}

// StatusCode implements collab.StatusCoder.
func (e *StatusError) StatusCode() (int, bool) { return e.Code, true }

var _ collab.StatusCoder = (*StatusError)(nil)
var _ collab.UpstreamChatService = (*AnthropicClient)(nil)

// Generate issues a single Messages API call authenticated with key.
func (c *AnthropicClient) Generate(ctx context.Context, model string, req collab.ChatRequest, key string) (collab.ChatResponse, error) {
	payload := messagesRequest{
		Model:     model,
		MaxTokens: defaultMaxTokens,
		Messages:  []messageContent{{Role: "user", Content: req.Prompt}},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return collab.ChatResponse{}, fmt.Errorf("upstream: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+messagesPath, bytes.NewReader(body))
	if err != nil {
		return collab.ChatResponse{}, fmt.Errorf("upstream: build request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("anthropic-version", anthropicVersion)
	httpReq.Header.Set("x-api-key", key)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return collab.ChatResponse{}, fmt.Errorf("upstream: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return collab.ChatResponse{}, fmt.Errorf("upstream: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return collab.ChatResponse{}, &StatusError{Code: resp.StatusCode, Body: string(respBody)}
	}

	var parsed messagesResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return collab.ChatResponse{}, fmt.Errorf("upstream: parse response: %w", err)
	}

	var text string
	if len(parsed.Content) > 0 {
		text = parsed.Content[0].Text
	}

	return collab.ChatResponse{Text: text}, nil
}
