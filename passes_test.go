package optimizer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"github.com/zombar/optimizer/models"
)

// newRewriteServer returns a mock rewrite service whose generate endpoint
// always responds with the given inner payload.
func newRewriteServer(t *testing.T, inner string, requests *int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests != nil {
			atomic.AddInt64(requests, 1)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"model":    "test-model",
			"response": inner,
			"done":     true,
		})
	}))
}

func testDocument() models.ContentDocument {
	return models.ContentDocument{
		ID:              "doc-1",
		Title:           "What Is Content Scoring?",
		MetaDescription: "A practical guide to content scoring.",
		Body:            sampleMarkdownBody,
		CreatedAt:       time.Now(),
	}
}

func TestRunPassInvalidRubricRejectedBeforeAnyCall(t *testing.T) {
	var requests int64
	server := newRewriteServer(t, `{}`, &requests)
	defer server.Close()

	config := DefaultConfig()
	config.RewriteBaseURL = server.URL
	o := New(config, nil)

	_, err := o.RunPass(context.Background(), testDocument(), models.Rubric("velocity"), nil)

	var invalidPass *InvalidPassError
	if !errors.As(err, &invalidPass) {
		t.Fatalf("Expected InvalidPassError, got %v", err)
	}
	if invalidPass.Requested != "velocity" {
		t.Errorf("Requested = %q, want %q", invalidPass.Requested, "velocity")
	}
	if atomic.LoadInt64(&requests) != 0 {
		t.Errorf("Expected no rewrite requests for an invalid rubric, got %d", requests)
	}
}

func TestRunPassSuccess(t *testing.T) {
	rewritten, _ := json.Marshal(map[string]string{
		"title":            "Content Scoring Explained",
		"meta_description": "How content scoring works and why it matters.",
		"body":             "Content scoring is the practice of measuring article quality. It helps teams improve drafts before publishing.",
	})
	server := newRewriteServer(t, string(rewritten), nil)
	defer server.Close()

	config := DefaultConfig()
	config.RewriteBaseURL = server.URL
	o := New(config, nil)

	doc := testDocument()
	result, err := o.RunPass(context.Background(), doc, models.RubricReadability, nil)
	if err != nil {
		t.Fatalf("RunPass failed: %v", err)
	}

	if result.PassName != models.RubricReadability {
		t.Errorf("PassName = %s, want %s", result.PassName, models.RubricReadability)
	}
	if result.DocumentID != doc.ID {
		t.Errorf("DocumentID = %s, want %s", result.DocumentID, doc.ID)
	}
	if result.Content.ID == doc.ID || result.Content.ID == "" {
		t.Errorf("Expected a fresh document ID, got %q", result.Content.ID)
	}
	if result.Content.Title != "Content Scoring Explained" {
		t.Errorf("Title = %q, want rewritten title", result.Content.Title)
	}
	if result.ScoreBefore != result.Before.RubricScore(models.RubricReadability) {
		t.Errorf("ScoreBefore = %d, want %d", result.ScoreBefore, result.Before.RubricScore(models.RubricReadability))
	}
	if result.ScoreAfter != result.After.RubricScore(models.RubricReadability) {
		t.Errorf("ScoreAfter = %d, want %d", result.ScoreAfter, result.After.RubricScore(models.RubricReadability))
	}
	if result.WordCount == 0 {
		t.Error("Expected non-zero word count for the rewritten document")
	}
	// Scoring the produced content afresh reproduces the recorded scores.
	if !reflect.DeepEqual(o.Score(result.Content), result.After) {
		t.Error("Re-scoring the rewritten content must reproduce the recorded after scores")
	}
}

func TestRunPassKeepsTitleWhenRewriteOmitsIt(t *testing.T) {
	rewritten, _ := json.Marshal(map[string]string{
		"body": "Content scoring is the practice of measuring article quality before publishing.",
	})
	server := newRewriteServer(t, string(rewritten), nil)
	defer server.Close()

	config := DefaultConfig()
	config.RewriteBaseURL = server.URL
	o := New(config, nil)

	doc := testDocument()
	result, err := o.RunPass(context.Background(), doc, models.RubricAEO, nil)
	if err != nil {
		t.Fatalf("RunPass failed: %v", err)
	}

	if result.Content.Title != doc.Title {
		t.Errorf("Title = %q, want original %q", result.Content.Title, doc.Title)
	}
	if result.Content.MetaDescription != doc.MetaDescription {
		t.Errorf("MetaDescription = %q, want original", result.Content.MetaDescription)
	}
}

func TestRunPassServiceUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusInternalServerError)
	}))
	defer server.Close()

	config := DefaultConfig()
	config.RewriteBaseURL = server.URL
	o := New(config, nil)

	_, err := o.RunPass(context.Background(), testDocument(), models.RubricSEO, nil)

	var external *ExternalServiceError
	if !errors.As(err, &external) {
		t.Fatalf("Expected ExternalServiceError, got %v", err)
	}
	if external.Service != "rewrite" {
		t.Errorf("Service = %q, want %q", external.Service, "rewrite")
	}
}

func TestRunPassUnparsableResponse(t *testing.T) {
	server := newRewriteServer(t, "here is your improved article: much better now", nil)
	defer server.Close()

	config := DefaultConfig()
	config.RewriteBaseURL = server.URL
	o := New(config, nil)

	_, err := o.RunPass(context.Background(), testDocument(), models.RubricEngagement, nil)

	var unparsable *UnparsableResponseError
	if !errors.As(err, &unparsable) {
		t.Fatalf("Expected UnparsableResponseError, got %v", err)
	}
	if unparsable.Raw == "" {
		t.Error("Expected raw response to be retained for diagnostics")
	}
}

func TestRunPassCancelledContext(t *testing.T) {
	server := newRewriteServer(t, `{}`, nil)
	defer server.Close()

	config := DefaultConfig()
	config.RewriteBaseURL = server.URL
	o := New(config, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := o.RunPass(ctx, testDocument(), models.RubricSEO, nil)
	if err == nil {
		t.Fatal("Expected an error for a cancelled context")
	}
}

func TestResearchFragmentsFlattening(t *testing.T) {
	if got := researchFragments(nil); got != nil {
		t.Errorf("Expected nil for nil research, got %v", got)
	}

	rc := &models.ResearchContext{
		Statistics:   []string{"a", "b"},
		CaseStudies:  []string{"c"},
		RecentTrends: []string{"d"},
	}
	got := researchFragments(rc)
	if len(got) != 4 {
		t.Errorf("Expected 4 fragments, got %d", len(got))
	}
}
