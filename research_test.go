package optimizer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/zombar/optimizer/models"
	"github.com/zombar/optimizer/search"
)

// captureEvents records pipeline notifications for assertions.
type captureEvents struct {
	mu       sync.Mutex
	degraded []string
}

func (c *captureEvents) PassStarted(string, models.Rubric) {}

func (c *captureEvents) PassCompleted(*models.ImprovementPassResult) {}

func (c *captureEvents) ProviderDegraded(provider, reason string) {
	c.mu.Lock()
	c.degraded = append(c.degraded, provider)
	c.mu.Unlock()
}

func (c *captureEvents) degradedProviders() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.degraded...)
}

// newSearchServer serves canned organic results per query keyword and
// fails any query containing "case study".
func newSearchServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Query string `json:"q"`
		}
		json.NewDecoder(r.Body).Decode(&req)

		if strings.Contains(req.Query, "case study") {
			http.Error(w, "quota exceeded", http.StatusTooManyRequests)
			return
		}

		var snippets []string
		switch {
		case strings.Contains(req.Query, "statistics"):
			snippets = []string{
				"Widget adoption grew 45% last year according to an industry survey. Widget adoption grew 45% last year according to an industry survey.",
				"Companies report saving $12,000 per quarter with automated widgets.",
				"Roughly 3 million users now rely on widget platforms daily.",
				"Widget budgets increased 20% across 1,400 companies surveyed.",
				"Teams using widgets ship 2 times faster than teams without them.",
				"Support tickets dropped 30% after widget rollouts in most organizations.",
				"Revenue per widget rose 15% in the most recent quarter reported.",
			}
		case strings.Contains(req.Query, "trends"):
			snippets = []string{
				"The rise of autonomous widgets is an emerging trend this year.",
				"Analysts forecast a shift toward self-configuring widget platforms.",
			}
		}

		type organic struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			Snippet string `json:"snippet"`
		}
		results := make([]organic, 0, len(snippets))
		for _, s := range snippets {
			results = append(results, organic{Title: "Result", Link: "https://example.com", Snippet: s})
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"organic": results})
	}))
}

func TestResearchAggregatesAndDegrades(t *testing.T) {
	server := newSearchServer(t)
	defer server.Close()

	config := DefaultConfig()
	config.SearchBaseURL = server.URL
	config.SearchAPIKey = "test-key"

	events := &captureEvents{}
	o := New(config, events)

	rc := o.Research(context.Background(), "widgets", "widget platforms")

	// Statistics capped at five even though seven qualify.
	if len(rc.Statistics) != 5 {
		t.Errorf("Statistics count = %d, want 5", len(rc.Statistics))
	}
	// The duplicated snippet sentence must appear only once.
	seen := map[string]int{}
	for _, s := range rc.Statistics {
		seen[s]++
	}
	for s, n := range seen {
		if n > 1 {
			t.Errorf("Fragment %q appears %d times, want 1", s, n)
		}
	}

	if len(rc.RecentTrends) != 2 {
		t.Errorf("RecentTrends count = %d, want 2", len(rc.RecentTrends))
	}

	// The failing case-study query degrades to empty without failing the rest.
	if len(rc.CaseStudies) != 0 {
		t.Errorf("CaseStudies count = %d, want 0", len(rc.CaseStudies))
	}
	degraded := events.degradedProviders()
	found := false
	for _, p := range degraded {
		if p == "search:case_studies" {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected a search:case_studies degradation event, got %v", degraded)
	}

	if rc.Empty() {
		t.Error("Expected a non-empty research context")
	}
}

func TestResearchWithoutCredentialIsEmpty(t *testing.T) {
	config := DefaultConfig()
	// No API key: every query returns zero results without a provider call.
	o := New(config, &captureEvents{})

	rc := o.Research(context.Background(), "widgets", "")
	if !rc.Empty() {
		t.Error("Expected empty research context without a search credential")
	}
}

func TestResearchFallsBackToTopic(t *testing.T) {
	var lastQueries []string
	var mu sync.Mutex
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Query string `json:"q"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		mu.Lock()
		lastQueries = append(lastQueries, req.Query)
		mu.Unlock()
		json.NewEncoder(w).Encode(map[string]interface{}{"organic": []search.Result{}})
	}))
	defer server.Close()

	config := DefaultConfig()
	config.SearchBaseURL = server.URL
	config.SearchAPIKey = "test-key"
	o := New(config, &captureEvents{})

	o.Research(context.Background(), "   ", "widget platforms")

	mu.Lock()
	defer mu.Unlock()
	if len(lastQueries) != 3 {
		t.Fatalf("Expected 3 queries, got %d", len(lastQueries))
	}
	for _, q := range lastQueries {
		if !strings.Contains(q, "widget platforms") {
			t.Errorf("Query %q should fall back to the topic", q)
		}
	}
}

func TestExtractFragmentsFilters(t *testing.T) {
	results := []search.Result{
		{Snippet: "Short one. Widget adoption grew 45% in the latest industry survey period."},
		{Snippet: "Widget adoption grew 45% in the latest industry survey period."},
	}

	fragments := extractFragments(results, isStatisticSentence, 10)
	if len(fragments) != 1 {
		t.Fatalf("Expected 1 deduplicated fragment, got %d: %v", len(fragments), fragments)
	}
	if !strings.Contains(fragments[0], "45%") {
		t.Errorf("Unexpected fragment %q", fragments[0])
	}
}
