package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ROIAWARECHILE/miner-contract-cognito-sub000/internal/domain"
	"github.com/ROIAWARECHILE/miner-contract-cognito-sub000/internal/prompts"
	"github.com/go-resty/resty/v2"
)

// LLMClient turns extracted document text into structured JSON using an
// OpenAI-compatible chat completion endpoint.
type LLMClient struct {
	client   *resty.Client
	model    string
	endpoint string
}

// LLMConfig holds configuration for the model service.
type LLMConfig struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
	Timeout  time.Duration
}

// NewLLMClient creates a new LLM client.
func NewLLMClient(cfg *LLMConfig) *LLMClient {
	client := resty.New()
	client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	client.SetHeader("Content-Type", "application/json")

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	client.SetTimeout(timeout)

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}

	return &LLMClient{
		client:   client,
		model:    cfg.Model,
		endpoint: baseURL + "/chat/completions",
	}
}

// GetModel returns the model name being used.
func (c *LLMClient) GetModel() string {
	return c.model
}

// OpenAI-compatible Chat Completion API request/response structures
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float32       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// ExtractStructured sends document text with the type-specific prompt and
// returns the model's JSON object. The raw text of the model answer is
// returned alongside for the audit record.
func (c *LLMClient) ExtractStructured(ctx context.Context, text string, docType domain.DocumentType) (json.RawMessage, string, error) {
	userPrompt := prompts.UserPromptFor(docType)
	if userPrompt == "" {
		return nil, "", &ParseError{Service: "llm", Detail: fmt.Sprintf("no prompt registered for doc type %q", docType)}
	}

	req := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: prompts.ExtractionSystemPrompt},
			{Role: "user", Content: userPrompt + text},
		},
		MaxTokens:   2000,
		Temperature: 0,
	}

	var resp chatResponse
	httpResp, err := c.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&resp).
		Post(c.endpoint)

	if err != nil {
		return nil, "", &UpstreamError{Service: "llm", Message: err.Error()}
	}

	if httpResp.StatusCode() < 200 || httpResp.StatusCode() >= 300 {
		msg := string(httpResp.Body())
		if resp.Error != nil {
			msg = resp.Error.Message
		}
		return nil, "", &UpstreamError{
			Service:    "llm",
			StatusCode: httpResp.StatusCode(),
			Message:    msg,
			RetryAfter: parseRetryAfter(httpResp.Header().Get("Retry-After")),
		}
	}

	if resp.Error != nil {
		return nil, "", &UpstreamError{
			Service:    "llm",
			StatusCode: httpResp.StatusCode(),
			Message:    resp.Error.Message,
		}
	}

	if len(resp.Choices) == 0 {
		return nil, "", &UpstreamError{
			Service:    "llm",
			StatusCode: httpResp.StatusCode(),
			Message:    "no choices in response",
		}
	}

	content := resp.Choices[0].Message.Content
	raw, err := StripToJSON(content)
	if err != nil {
		return nil, content, err
	}
	return raw, content, nil
}
