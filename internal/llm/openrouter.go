package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// OpenRouterClient talks to an OpenAI-compatible chat completions endpoint.
type OpenRouterClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewOpenRouterClient creates a client for the given base URL and API key.
func NewOpenRouterClient(baseURL, apiKey string) *OpenRouterClient {
	return &OpenRouterClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

// Complete sends a non-streaming completion request.
func (c *OpenRouterClient) Complete(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	body, err := c.buildRequestBody(req, false)
	if err != nil {
		return nil, err
	}

	httpReq, err := c.newRequest(ctx, body)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, string(respBody))
	}

	var result ChatResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &result, nil
}

// Stream sends a streaming completion request and returns a channel of
// parsed frames.
func (c *OpenRouterClient) Stream(ctx context.Context, req ChatRequest) (<-chan Frame, error) {
	frames := make(chan Frame)

	body, err := c.buildRequestBody(req, true)
	if err != nil {
		close(frames)
		return frames, err
	}

	go c.streamRequest(ctx, frames, body)
	return frames, nil
}

// Name returns the provider name.
func (c *OpenRouterClient) Name() string {
	return "openrouter"
}

func (c *OpenRouterClient) buildRequestBody(req ChatRequest, stream bool) ([]byte, error) {
	body := map[string]any{
		"model":    req.Model,
		"messages": req.Messages,
	}
	if req.Temperature != nil {
		body["temperature"] = *req.Temperature
	}
	if req.MaxTokens > 0 {
		body["max_tokens"] = req.MaxTokens
	}
	if len(req.Tools) > 0 {
		body["tools"] = req.Tools
		choice := req.ToolChoice
		if choice == "" {
			choice = "auto"
		}
		body["tool_choice"] = choice
	}
	if stream {
		body["stream"] = true
		body["stream_options"] = map[string]any{"include_usage": true}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	return payload, nil
}

func (c *OpenRouterClient) newRequest(ctx context.Context, body []byte) (*http.Request, error) {
	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	return httpReq, nil
}

func (c *OpenRouterClient) streamRequest(ctx context.Context, frames chan Frame, body []byte) {
	defer close(frames)

	httpReq, err := c.newRequest(ctx, body)
	if err != nil {
		frames <- Frame{Err: err}
		return
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		frames <- Frame{Err: fmt.Errorf("request failed: %w", err)}
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		frames <- Frame{Err: fmt.Errorf("API error (%d): %s", resp.StatusCode, string(respBody))}
		return
	}

	scanner := newServerSentEventScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}

		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			return
		}

		var frame Frame
		if err := json.Unmarshal([]byte(data), &frame); err != nil {
			// Skip malformed frames rather than killing the whole stream.
			continue
		}

		select {
		case frames <- frame:
		case <-ctx.Done():
			return
		}
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		frames <- Frame{Err: fmt.Errorf("stream read failed: %w", err)}
	}
}
