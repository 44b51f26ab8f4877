package extract

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
)

// ParserClient calls the external PDF-parsing service that turns document
// bytes into plain text.
type ParserClient struct {
	client   *resty.Client
	endpoint string
}

// ParserConfig holds configuration for the parser service.
type ParserConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// NewParserClient creates a new parser client.
func NewParserClient(cfg *ParserConfig) *ParserClient {
	client := resty.New()
	client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	client.SetHeader("Content-Type", "application/json")

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 90 * time.Second
	}
	client.SetTimeout(timeout)

	return &ParserClient{
		client:   client,
		endpoint: cfg.BaseURL + "/parse",
	}
}

type parseRequest struct {
	Filename      string `json:"filename"`
	ContentBase64 string `json:"content_base64"`
}

type parseResponse struct {
	Text  string `json:"text"`
	Pages int    `json:"pages"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// ParseText sends document bytes to the parsing service and returns the
// extracted plain text and page count.
func (c *ParserClient) ParseText(ctx context.Context, document []byte, filename string) (string, int, error) {
	req := parseRequest{
		Filename:      filename,
		ContentBase64: base64.StdEncoding.EncodeToString(document),
	}

	var resp parseResponse
	httpResp, err := c.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&resp).
		Post(c.endpoint)

	if err != nil {
		return "", 0, &UpstreamError{Service: "parser", Message: err.Error()}
	}

	if httpResp.StatusCode() < 200 || httpResp.StatusCode() >= 300 {
		msg := string(httpResp.Body())
		if resp.Error != nil {
			msg = resp.Error.Message
		}
		return "", 0, &UpstreamError{
			Service:    "parser",
			StatusCode: httpResp.StatusCode(),
			Message:    msg,
			RetryAfter: parseRetryAfter(httpResp.Header().Get("Retry-After")),
		}
	}

	if resp.Error != nil {
		return "", 0, &UpstreamError{
			Service:    "parser",
			StatusCode: httpResp.StatusCode(),
			Message:    resp.Error.Message,
		}
	}

	if resp.Text == "" {
		return "", 0, &ParseError{Service: "parser", Detail: fmt.Sprintf("empty text for %s", filename)}
	}

	return resp.Text, resp.Pages, nil
}

// parseRetryAfter interprets a Retry-After header value in seconds.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	secs, err := strconv.Atoi(value)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
