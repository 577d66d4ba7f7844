package rewrite

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewClientDefaults(t *testing.T) {
	c := NewClient("", "", nil)
	if c.baseURL != DefaultBaseURL {
		t.Errorf("baseURL = %q, want %q", c.baseURL, DefaultBaseURL)
	}
	if c.model != DefaultModel {
		t.Errorf("model = %q, want %q", c.model, DefaultModel)
	}
	if c.httpClient == nil {
		t.Error("Expected a non-nil http client")
	}
}

func TestRewriteSuccess(t *testing.T) {
	var gotPrompt string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("Path = %q, want /api/generate", r.URL.Path)
		}
		var req generateRequest
		json.NewDecoder(r.Body).Decode(&req)
		gotPrompt = req.Prompt
		if req.Stream {
			t.Error("Expected stream=false")
		}

		inner, _ := json.Marshal(Document{
			Title:           "Better Title",
			MetaDescription: "Better meta.",
			Body:            "Better body text for the article.",
		})
		json.NewEncoder(w).Encode(generateResponse{Model: req.Model, Response: string(inner), Done: true})
	}))
	defer server.Close()

	c := NewClient(server.URL, "test-model", nil)
	doc, err := c.Rewrite(context.Background(), Request{
		Title:           "Old Title",
		MetaDescription: "Old meta.",
		Body:            "Old body.",
		Rubric:          "readability",
		Research:        []string{"Adoption grew 45% last year."},
	})
	if err != nil {
		t.Fatalf("Rewrite failed: %v", err)
	}

	if doc.Title != "Better Title" {
		t.Errorf("Title = %q, want %q", doc.Title, "Better Title")
	}
	if doc.Body == "" {
		t.Error("Expected a non-empty body")
	}

	// The prompt carries the rubric instruction, the document, and the
	// research fragments.
	for _, want := range []string{"readability", "Old Title", "Old body.", "Adoption grew 45% last year."} {
		if !strings.Contains(gotPrompt, want) {
			t.Errorf("Prompt missing %q", want)
		}
	}
	if !strings.Contains(gotPrompt, "Preserve every factual claim verbatim") {
		t.Error("Prompt missing the fact-preservation constraint")
	}
}

func TestRewriteUnparsableResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(generateResponse{Response: "sure, here's a nicer version of your article", Done: true})
	}))
	defer server.Close()

	c := NewClient(server.URL, "test-model", nil)
	_, err := c.Rewrite(context.Background(), Request{Body: "text", Rubric: "seo"})

	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("Expected ParseError, got %v", err)
	}
	if parseErr.Raw != "sure, here's a nicer version of your article" {
		t.Errorf("Raw = %q, want the raw response text", parseErr.Raw)
	}
}

func TestRewriteEmptyBodyIsParseError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inner, _ := json.Marshal(Document{Title: "Only a Title"})
		json.NewEncoder(w).Encode(generateResponse{Response: string(inner), Done: true})
	}))
	defer server.Close()

	c := NewClient(server.URL, "test-model", nil)
	_, err := c.Rewrite(context.Background(), Request{Body: "text", Rubric: "aeo"})

	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("Expected ParseError for a document with no body, got %v", err)
	}
}

func TestRewriteHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer server.Close()

	c := NewClient(server.URL, "test-model", nil)
	_, err := c.Rewrite(context.Background(), Request{Body: "text"})
	if err == nil {
		t.Fatal("Expected an error for a non-200 response")
	}
	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		t.Error("HTTP errors must not be reported as parse errors")
	}
}
