// Package rewrite is the client for the external LLM rewrite service
// (an Ollama-compatible HTTP API). The service receives a document plus a
// rubric-scoped instruction and must return exactly one rewritten document.
package rewrite

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	// DefaultBaseURL is the default rewrite service URL.
	DefaultBaseURL = "http://localhost:11434"
	// DefaultModel is the default generation model.
	DefaultModel = "gpt-oss:20b"
)

// Rubric-scoped rewrite instructions. Each pass may alter only the
// properties relevant to its rubric and must preserve factual claims
// verbatim; that constraint is conveyed here, at the call boundary, and
// is not independently verified by this service.
var rubricInstructions = map[string]string{
	"readability": "Improve readability only: shorten long sentences, break up dense paragraphs, replace jargon with plain words, and add transition words. Match the register of the existing text.",
	"seo":         "Improve search structure only: sharpen the title and meta description, add descriptive subheadings, and strengthen internal linking opportunities.",
	"aeo":         "Improve answer-engine structure only: open with a direct answer, add or tighten an FAQ section, and make key insights quotable as standalone sentences.",
	"engagement":  "Improve engagement only: strengthen the hook, address the reader directly, add concrete examples, and end with a clear call to action.",
}

// Request describes one rewrite invocation.
type Request struct {
	Title           string
	MetaDescription string
	Body            string
	Rubric          string
	Research        []string // optional factual fragments the rewrite may incorporate
}

// Response mirrors the generate endpoint's wire format.
type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
	Format string `json:"format,omitempty"`
}

type generateResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Document is the parsed rewrite result.
type Document struct {
	Title           string `json:"title"`
	MetaDescription string `json:"meta_description"`
	Body            string `json:"body"`
}

// ParseError reports a response that could not be interpreted as a
// rewritten document. Raw retains the response text for diagnostics.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse rewrite response: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Client calls the rewrite service.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewClient creates a rewrite client. A nil httpClient falls back to the
// default client.
func NewClient(baseURL, model string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if model == "" {
		model = DefaultModel
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		model:      model,
		httpClient: httpClient,
	}
}

// Rewrite sends one document through the service and parses the response.
// Transport failures and non-success statuses return plain errors; a
// response that is not a single well-formed document returns a ParseError.
func (c *Client) Rewrite(ctx context.Context, req Request) (Document, error) {
	prompt := c.buildPrompt(req)

	payload, err := json.Marshal(generateRequest{
		Model:  c.model,
		Prompt: prompt,
		Stream: false,
		Format: "json",
	})
	if err != nil {
		return Document{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return Document{}, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Document{}, fmt.Errorf("rewrite request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 10*1024*1024))
	if err != nil {
		return Document{}, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Document{}, fmt.Errorf("rewrite HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	var genResp generateResponse
	if err := json.Unmarshal(raw, &genResp); err != nil {
		return Document{}, &ParseError{Raw: string(raw), Err: err}
	}

	var doc Document
	if err := json.Unmarshal([]byte(genResp.Response), &doc); err != nil {
		return Document{}, &ParseError{Raw: genResp.Response, Err: err}
	}
	if strings.TrimSpace(doc.Body) == "" {
		return Document{}, &ParseError{Raw: genResp.Response, Err: fmt.Errorf("rewritten document has no body")}
	}

	return doc, nil
}

// buildPrompt assembles the rubric-scoped instruction around the document.
func (c *Client) buildPrompt(req Request) string {
	var b strings.Builder
	b.WriteString("You are a content editor. Rewrite the document below.\n\n")
	b.WriteString("CONSTRAINTS:\n")
	b.WriteString("- ")
	if instr, ok := rubricInstructions[req.Rubric]; ok {
		b.WriteString(instr)
	} else {
		b.WriteString("Improve overall quality.")
	}
	b.WriteString("\n- Preserve every factual claim verbatim. Do not add, remove, or alter facts, numbers, names, or dates.\n")
	b.WriteString("- Do not change properties unrelated to the requested improvement.\n\n")

	if len(req.Research) > 0 {
		b.WriteString("VERIFIED FACTS you may incorporate where they fit naturally:\n")
		for _, fragment := range req.Research {
			b.WriteString("- ")
			b.WriteString(fragment)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "TITLE: %s\n\nMETA DESCRIPTION: %s\n\nBODY:\n%s\n\n", req.Title, req.MetaDescription, req.Body)
	b.WriteString(`Return ONLY a JSON object with this exact shape, no commentary:
{"title": "...", "meta_description": "...", "body": "..."}`)
	return b.String()
}
