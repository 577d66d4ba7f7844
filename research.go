package optimizer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zombar/optimizer/models"
	"github.com/zombar/optimizer/search"
)

// Result caps, applied in priority order.
const (
	maxStatistics  = 5
	maxCaseStudies = 3
	maxTrends      = 4
)

var caseStudyKeywords = []string{
	"case study", "increased", "improved", "achieved", "grew", "reduced",
	"helped", "resulted in",
}

var trendKeywords = []string{
	"trend", "growing", "emerging", "rise of", "shift", "forecast",
	"expected to", "increasingly",
}

// Research fans out three independent search queries (current-year
// statistics, case-study examples, current-year trends) concurrently and
// reduces the snippets to short factual fragments usable by rewrite
// passes. Each query degrades to an empty list on provider failure; one
// failing query never blocks or fails the others.
func (o *Optimizer) Research(ctx context.Context, keyword, topic string) models.ResearchContext {
	if strings.TrimSpace(keyword) == "" {
		keyword = topic
	}
	year := time.Now().Year()

	var statResults, caseResults, trendResults []search.Result

	// The three sub-queries are fully independent; closures swallow
	// provider errors into degradation events so a slow or failing
	// provider cannot serialize or cancel the rest.
	var g errgroup.Group
	g.Go(func() error {
		statResults = o.searchOrDegrade(ctx, fmt.Sprintf("%s statistics %d", keyword, year), "statistics")
		return nil
	})
	g.Go(func() error {
		caseResults = o.searchOrDegrade(ctx, fmt.Sprintf("%s case study results", keyword), "case_studies")
		return nil
	})
	g.Go(func() error {
		trendResults = o.searchOrDegrade(ctx, fmt.Sprintf("%s trends %d", keyword, year), "trends")
		return nil
	})
	g.Wait()

	return models.ResearchContext{
		Statistics:   extractFragments(statResults, isStatisticSentence, maxStatistics),
		CaseStudies:  extractFragments(caseResults, matchesAny(caseStudyKeywords), maxCaseStudies),
		RecentTrends: extractFragments(trendResults, matchesAny(trendKeywords), maxTrends),
	}
}

// searchOrDegrade runs one provider query, reporting failures as
// degradation rather than errors.
func (o *Optimizer) searchOrDegrade(ctx context.Context, query, kind string) []search.Result {
	results, err := o.searchClient.Search(ctx, query)
	if err != nil {
		o.events.ProviderDegraded("search:"+kind, err.Error())
		return nil
	}
	return results
}

// extractFragments selects snippet sentences matching a pattern predicate,
// deduplicates them, and caps the list.
func extractFragments(results []search.Result, match func(string) bool, limit int) []string {
	fragments := []string{}
	seen := make(map[string]bool)
	for _, r := range results {
		for _, sentence := range splitSentences(r.Snippet) {
			sentence = strings.TrimSpace(sentence)
			if len(sentence) < 20 || !match(sentence) {
				continue
			}
			key := strings.ToLower(sentence)
			if seen[key] {
				continue
			}
			seen[key] = true
			fragments = append(fragments, sentence)
			if len(fragments) >= limit {
				return fragments
			}
		}
	}
	return fragments
}

func matchesAny(keywords []string) func(string) bool {
	return func(s string) bool {
		lower := strings.ToLower(s)
		for _, k := range keywords {
			if strings.Contains(lower, k) {
				return true
			}
		}
		return false
	}
}
