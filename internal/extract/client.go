// Package extract adapts the two external extraction services (a PDF-parse
// SaaS and an LLM) behind one client. Each call carries a timeout, and
// rate-limit responses are retried with bounded exponential backoff; any
// other upstream failure propagates immediately.
package extract

import (
	"context"
	"encoding/json"

	"github.com/ROIAWARECHILE/miner-contract-cognito-sub000/internal/domain"
)

// TextParser is the bytes-to-text half of extraction.
type TextParser interface {
	ParseText(ctx context.Context, document []byte, filename string) (text string, pages int, err error)
}

// StructuredExtractor is the text-to-JSON half of extraction.
type StructuredExtractor interface {
	ExtractStructured(ctx context.Context, text string, docType domain.DocumentType) (json.RawMessage, string, error)
}

// Result carries one extraction attempt's output before validation.
type Result struct {
	Raw      json.RawMessage
	ModelOut string // verbatim model answer, kept for the audit record
	Text     string // parsed document text
	Pages    int
}

// Client drives the extraction sequence for one document. Known document
// types take two external calls (parse, then model); unknown documents
// take only the parse call and surface their text for manual review.
type Client struct {
	parser TextParser
	llm    StructuredExtractor
	retry  RetryPolicy
}

// NewClient creates an extraction client with the given retry policy.
func NewClient(parser TextParser, llm StructuredExtractor, retry RetryPolicy) *Client {
	return &Client{parser: parser, llm: llm, retry: retry}
}

// Extract runs the extraction sequence for one document.
func (c *Client) Extract(ctx context.Context, document []byte, filename string, docType domain.DocumentType) (*Result, error) {
	var (
		text  string
		pages int
	)
	err := c.retry.Do(ctx, func() error {
		var err error
		text, pages, err = c.parser.ParseText(ctx, document, filename)
		return err
	})
	if err != nil {
		return nil, err
	}

	res := &Result{Text: text, Pages: pages}

	// Unknown documents have no schema; the validator flags them for
	// review with the parsed text attached.
	if docType == domain.DocTypeUnknown {
		return res, nil
	}

	err = c.retry.Do(ctx, func() error {
		var err error
		res.Raw, res.ModelOut, err = c.llm.ExtractStructured(ctx, text, docType)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
