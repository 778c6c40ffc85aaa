// Package backend talks to the generative model service. The coach
// core only assumes "submit prompt, receive text": everything else
// (provider, retries, timeouts) stays behind Client.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://openrouter.ai/api/v1"
	defaultTimeout = 60 * time.Second
	maxRetries     = 3
	initialBackoff = 500 * time.Millisecond
)

// ErrEmptyCompletion is returned when the service answers successfully
// but with no usable text.
var ErrEmptyCompletion = errors.New("empty completion")

// Completion is the result of one model invocation.
type Completion struct {
	Text       string
	TokensUsed int
	Model      string
}

// Client communicates with an OpenRouter-compatible completion API.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewClient creates a backend client using model for all invocations.
func NewClient(apiKey, model string) *Client {
	return &Client{
		apiKey:     apiKey,
		model:      model,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

// NewClientWithBaseURL creates a client pointing at a custom base URL (for testing).
func NewClientWithBaseURL(apiKey, model, baseURL string) *Client {
	c := NewClient(apiKey, model)
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// Invoke submits the fully assembled prompt and returns the model's
// text. Rate limiting (HTTP 429) is retried with exponential backoff;
// any other failure is returned to the caller, who treats it as "no
// result" rather than a crash.
func (c *Client) Invoke(ctx context.Context, prompt string, maxTokens int) (Completion, error) {
	body, err := json.Marshal(chatRequest{
		Model:     c.model,
		Messages:  []chatMessage{{Role: "user", Content: prompt}},
		MaxTokens: maxTokens,
	})
	if err != nil {
		return Completion{}, fmt.Errorf("marshaling request: %w", err)
	}

	var lastErr error
	for attempt := range maxRetries {
		comp, err := c.doInvoke(ctx, body)
		if err == nil {
			return comp, nil
		}

		if !isRateLimit(err) {
			return Completion{}, err
		}

		lastErr = err
		if attempt < maxRetries-1 {
			backoff := time.Duration(float64(initialBackoff) * math.Pow(2, float64(attempt)))
			select {
			case <-ctx.Done():
				return Completion{}, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	return Completion{}, fmt.Errorf("rate limited after %d retries: %w", maxRetries, lastErr)
}

func (c *Client) doInvoke(ctx context.Context, body []byte) (Completion, error) {
	reqCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return Completion{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Completion{}, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return Completion{}, &rateLimitError{status: resp.StatusCode}
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return Completion{}, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Completion{}, fmt.Errorf("decoding response: %w", err)
	}
	if len(parsed.Choices) == 0 || strings.TrimSpace(parsed.Choices[0].Message.Content) == "" {
		return Completion{}, ErrEmptyCompletion
	}

	return Completion{
		Text:       parsed.Choices[0].Message.Content,
		TokensUsed: parsed.Usage.TotalTokens,
		Model:      parsed.Model,
	}, nil
}

// rateLimitError is returned on HTTP 429.
type rateLimitError struct {
	status int
}

func (e *rateLimitError) Error() string {
	return fmt.Sprintf("rate limited (HTTP %d)", e.status)
}

func isRateLimit(err error) bool {
	var rl *rateLimitError
	return errors.As(err, &rl)
}
