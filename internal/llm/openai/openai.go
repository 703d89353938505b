// Package openai completes prompts with the OpenAI Responses API.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/slok/kage/internal/log"
	"github.com/slok/kage/internal/model"
)

const (
	defaultBaseURL = "https://api.openai.com"
	responsesPath  = "/v1/responses"
)

// APIKeyFromEnv returns the API key from the environment.
func APIKeyFromEnv() string {
	if k := os.Getenv("OPENAI_API_KEY"); k != "" {
		return k
	}
	return os.Getenv("OPENAI_APIKEY")
}

// ClientConfig is the configuration for the OpenAI client.
type ClientConfig struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
	Logger     log.Logger
}

func (c *ClientConfig) defaults() error {
	if c.APIKey == "" {
		return fmt.Errorf("OpenAI is not configured, missing API key: %w", model.ErrNotValid)
	}
	if c.Model == "" {
		c.Model = model.DefaultModel
	}
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	c.BaseURL = strings.TrimSuffix(c.BaseURL, "/")
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 2 * time.Minute}
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "llm.OpenAI"})
	return nil
}

// Client is an OpenAI Responses API client.
type Client struct {
	apiKey     string
	mu         sync.RWMutex
	model      string
	baseURL    string
	httpClient *http.Client
	logger     log.Logger
}

// NewClient returns a new OpenAI client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Client{
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		baseURL:    cfg.BaseURL,
		httpClient: cfg.HTTPClient,
		logger:     cfg.Logger,
	}, nil
}

type apiRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type apiContent struct {
	Text *string `json:"text"`
}

type apiOutput struct {
	Content []apiContent `json:"content"`
}

type apiChoice struct {
	Message *struct {
		Content *string `json:"content"`
	} `json:"message"`
	Text *string `json:"text"`
}

type apiResponse struct {
	Output     []apiOutput `json:"output"`
	OutputText *string     `json:"output_text"`
	// Chat completion compatible servers.
	Choices []apiChoice `json:"choices"`
}

// SetModel changes the model used by the next completions. An empty model sets the default one.
func (c *Client) SetModel(m string) {
	if m == "" {
		m = model.DefaultModel
	}
	c.mu.Lock()
	c.model = m
	c.mu.Unlock()
}

// Model returns the model used for completions.
func (c *Client) Model() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.model
}

// Complete sends the prompt and returns the text of the response.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	mdl := c.Model()
	body, err := json.Marshal(apiRequest{Model: mdl, Input: prompt})
	if err != nil {
		return "", fmt.Errorf("could not marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+responsesPath, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("could not create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("could not send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("could not read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("OpenAI error: %d %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var apiResp apiResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return "", fmt.Errorf("could not parse response: %w", err)
	}

	c.logger.Debugf("Completion with model %s took %s", mdl, time.Since(start))

	if text, ok := apiResp.text(); ok {
		return text, nil
	}

	// Unknown shape, return it raw so the caller can see it.
	return string(respBody), nil
}

func (r apiResponse) text() (string, bool) {
	if len(r.Output) > 0 && len(r.Output[0].Content) > 0 && r.Output[0].Content[0].Text != nil {
		return *r.Output[0].Content[0].Text, true
	}
	if r.OutputText != nil {
		return *r.OutputText, true
	}
	if len(r.Choices) > 0 {
		ch := r.Choices[0]
		if ch.Message != nil && ch.Message.Content != nil {
			return *ch.Message.Content, true
		}
		if ch.Text != nil {
			return *ch.Text, true
		}
	}
	return "", false
}
