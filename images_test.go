package optimizer

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/zombar/optimizer/models"
)

// fakeImageProvider serves canned results per query.
type fakeImageProvider struct {
	name    string
	results map[string][]models.ImageResult
	err     error
	queries []string
}

func (f *fakeImageProvider) Name() string { return f.name }

func (f *fakeImageProvider) Search(_ context.Context, query string, count int) ([]models.ImageResult, error) {
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	results := f.results[query]
	if len(results) > count {
		results = results[:count]
	}
	return results, nil
}

func fakeImages(source string, n int) []models.ImageResult {
	out := make([]models.ImageResult, n)
	for i := range out {
		out[i] = models.ImageResult{URL: "https://images.example.com/" + source, Source: source}
	}
	return out
}

func newImageTestOptimizer(primary, secondary *fakeImageProvider) *Optimizer {
	config := DefaultConfig()
	config.EnableImageProbing = false
	o := New(config, &captureEvents{})
	o.imagePrimary = primary
	o.imageSecondary = secondary
	return o
}

func TestResolveImagesPrimaryOnly(t *testing.T) {
	primary := &fakeImageProvider{name: "unsplash", results: map[string][]models.ImageResult{
		"coffee roasting": fakeImages("unsplash", 3),
	}}
	secondary := &fakeImageProvider{name: "pexels"}
	o := newImageTestOptimizer(primary, secondary)

	results := o.ResolveImages(context.Background(), "coffee roasting", "The Coffee Roasting Handbook", 3)

	if len(results) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(results))
	}
	for _, r := range results {
		if r.Source != "unsplash" {
			t.Errorf("Source = %q, want unsplash", r.Source)
		}
		if r.ID == "" {
			t.Error("Expected a generated ID for results without one")
		}
	}
}

func TestResolveImagesSecondaryFillsShortfall(t *testing.T) {
	primary := &fakeImageProvider{name: "unsplash", results: map[string][]models.ImageResult{
		"coffee roasting": fakeImages("unsplash", 1),
	}}
	secondary := &fakeImageProvider{name: "pexels", results: map[string][]models.ImageResult{
		"coffee roasting": fakeImages("pexels", 2),
	}}
	o := newImageTestOptimizer(primary, secondary)

	results := o.ResolveImages(context.Background(), "coffee roasting", "", 3)

	if len(results) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(results))
	}
	// Primary results come first.
	if results[0].Source != "unsplash" {
		t.Errorf("results[0].Source = %q, want unsplash", results[0].Source)
	}
	if results[1].Source != "pexels" || results[2].Source != "pexels" {
		t.Error("Expected the shortfall filled by the secondary provider")
	}
}

func TestResolveImagesDerivedTitleQuery(t *testing.T) {
	primary := &fakeImageProvider{name: "unsplash", results: map[string][]models.ImageResult{
		"coffee roasting": fakeImages("unsplash", 2),
	}}
	secondary := &fakeImageProvider{name: "pexels"}
	o := newImageTestOptimizer(primary, secondary)

	// The supplied query finds nothing; the title-derived query succeeds.
	results := o.ResolveImages(context.Background(), "zq-obscure-keyword", "The Coffee Roasting Handbook for Beginners", 2)

	if len(results) != 2 {
		t.Fatalf("Expected 2 results from the derived query, got %d", len(results))
	}
	// Both the original and the derived query must have been tried.
	if len(primary.queries) != 2 {
		t.Fatalf("Expected 2 primary queries, got %v", primary.queries)
	}
	if primary.queries[1] != "coffee roasting" {
		t.Errorf("Derived query = %q, want %q", primary.queries[1], "coffee roasting")
	}
}

func TestResolveImagesEmptyIsTerminal(t *testing.T) {
	primary := &fakeImageProvider{name: "unsplash"}
	secondary := &fakeImageProvider{name: "pexels"}
	o := newImageTestOptimizer(primary, secondary)

	results := o.ResolveImages(context.Background(), "nothing here", "Nothing Anywhere Either", 3)

	if results == nil {
		t.Fatal("Expected an empty slice, not nil")
	}
	if len(results) != 0 {
		t.Errorf("Expected 0 results, got %d", len(results))
	}
}

func TestResolveImagesProviderFailureDegrades(t *testing.T) {
	primary := &fakeImageProvider{name: "unsplash", err: errors.New("rate limited")}
	secondary := &fakeImageProvider{name: "pexels", results: map[string][]models.ImageResult{
		"coffee roasting": fakeImages("pexels", 3),
	}}

	config := DefaultConfig()
	config.EnableImageProbing = false
	events := &captureEvents{}
	o := New(config, events)
	o.imagePrimary = primary
	o.imageSecondary = secondary

	results := o.ResolveImages(context.Background(), "coffee roasting", "", 3)

	if len(results) != 3 {
		t.Fatalf("Expected secondary results after primary failure, got %d", len(results))
	}
	degraded := events.degradedProviders()
	if len(degraded) == 0 || degraded[0] != "images:unsplash" {
		t.Errorf("Expected an images:unsplash degradation event, got %v", degraded)
	}
}

func TestResolveImagesDefaultCount(t *testing.T) {
	primary := &fakeImageProvider{name: "unsplash", results: map[string][]models.ImageResult{
		"coffee roasting": fakeImages("unsplash", 5),
	}}
	o := newImageTestOptimizer(primary, &fakeImageProvider{name: "pexels"})

	results := o.ResolveImages(context.Background(), "coffee roasting", "", 0)
	if len(results) != 3 {
		t.Errorf("Expected the default of 3 results, got %d", len(results))
	}
}

type cachedCandidate struct {
	slug        string
	contentType string
	size        int
}

// captureImageStore records cached candidates without touching disk.
type captureImageStore struct {
	mu    sync.Mutex
	saves []cachedCandidate
}

func (c *captureImageStore) SaveImage(data []byte, slug, contentType string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.saves = append(c.saves, cachedCandidate{slug: slug, contentType: contentType, size: len(data)})
	return "images/2026/08/" + slug + ".png", nil
}

func TestResolveImagesProbingCachesCandidates(t *testing.T) {
	payload := []byte("candidate image bytes")
	imageServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(payload)
	}))
	defer imageServer.Close()

	primary := &fakeImageProvider{name: "unsplash", results: map[string][]models.ImageResult{
		"coffee roasting": {{ID: "cand-1", URL: imageServer.URL + "/cand-1.png", Source: "unsplash"}},
	}}

	config := DefaultConfig()
	config.EnableImageProbing = true
	o := New(config, &captureEvents{})
	o.imagePrimary = primary
	o.imageSecondary = &fakeImageProvider{name: "pexels"}

	store := &captureImageStore{}
	o.SetImageStore(store)

	results := o.ResolveImages(context.Background(), "coffee roasting", "", 1)
	if len(results) != 1 {
		t.Fatalf("Expected 1 result, got %d", len(results))
	}

	r := results[0]
	if r.FilePath != "images/2026/08/cand-1.png" {
		t.Errorf("FilePath = %q, want the cached key", r.FilePath)
	}
	if r.ContentType != "image/png" {
		t.Errorf("ContentType = %q, want image/png", r.ContentType)
	}
	if r.FileSizeBytes != int64(len(payload)) {
		t.Errorf("FileSizeBytes = %d, want %d", r.FileSizeBytes, len(payload))
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.saves) != 1 {
		t.Fatalf("Expected 1 cached candidate, got %d", len(store.saves))
	}
	if store.saves[0].slug != "cand-1" || store.saves[0].contentType != "image/png" || store.saves[0].size != len(payload) {
		t.Errorf("Unexpected cached candidate: %+v", store.saves[0])
	}
}

func TestResolveImagesProbeFailureLeavesCandidateUncached(t *testing.T) {
	imageServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer imageServer.Close()

	primary := &fakeImageProvider{name: "unsplash", results: map[string][]models.ImageResult{
		"coffee roasting": {{ID: "cand-1", URL: imageServer.URL + "/cand-1.png", Source: "unsplash"}},
	}}

	config := DefaultConfig()
	config.EnableImageProbing = true
	o := New(config, &captureEvents{})
	o.imagePrimary = primary
	o.imageSecondary = &fakeImageProvider{name: "pexels"}

	store := &captureImageStore{}
	o.SetImageStore(store)

	results := o.ResolveImages(context.Background(), "coffee roasting", "", 1)
	if len(results) != 1 {
		t.Fatalf("Expected the candidate kept despite the failed probe, got %d", len(results))
	}
	if results[0].FilePath != "" {
		t.Errorf("FilePath = %q, want empty after a failed download", results[0].FilePath)
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.saves) != 0 {
		t.Errorf("Expected nothing cached after a failed download, got %d", len(store.saves))
	}
}

func TestDeriveQuery(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"The Coffee Roasting Handbook for Beginners", "coffee roasting"},
		{"Tips", ""},
		{"", ""},
	}

	for _, tt := range tests {
		if got := deriveQuery(tt.title); got != tt.want {
			t.Errorf("deriveQuery(%q) = %q, want %q", tt.title, got, tt.want)
		}
	}
}
