package optimizer

import (
	"math"

	"github.com/zombar/optimizer/models"
)

// Point allocations are fixed per rubric and documented here; they are not
// configurable at call time. Count-based sub-features earn linear partial
// credit capped at their allocation.

// ScoreDocument extracts metrics once and scores every rubric. It never
// fails: malformed or empty input produces a low, well-defined score.
func ScoreDocument(doc models.ContentDocument) models.CompositeScore {
	m := ExtractMetrics(doc)
	target := doc.TargetFleschScore
	if target == 0 {
		target = defaultFleschTarget
	}
	return ScoreMetrics(m, target)
}

// Score scores a document through this service instance. Documents that
// supply no reading-ease target get the configured default instead of the
// package fallback; an explicit per-document target always wins.
func (o *Optimizer) Score(doc models.ContentDocument) models.CompositeScore {
	if doc.TargetFleschScore == 0 {
		doc.TargetFleschScore = o.config.DefaultTargetFlesch
	}
	return ScoreDocument(doc)
}

// ScoreMetrics maps an extracted MetricSet to the composite score. Pure
// and deterministic: identical metrics always yield identical scores.
func ScoreMetrics(m models.MetricSet, targetFlesch float64) models.CompositeScore {
	var breakdown []models.CategoryScore

	aeo, geo, aeoParts := scoreAEO(m)
	breakdown = append(breakdown, aeoParts...)

	seo, seoParts := scoreSEO(m)
	breakdown = append(breakdown, seoParts...)

	read, readParts := scoreReadability(m, targetFlesch)
	breakdown = append(breakdown, readParts...)

	eng, engParts := scoreEngagement(m)
	breakdown = append(breakdown, engParts...)

	return models.CompositeScore{
		AEO:         aeo,
		SEO:         seo,
		Readability: read,
		Engagement:  eng,
		GeoScore:    geo,
		WordCount:   m.WordCount,
		Breakdown:   breakdown,
	}
}

// cappedCredit is linear partial credit: min(count, threshold) * points,
// never exceeding threshold*points however large the count grows.
func cappedCredit(count, threshold, pointsPerUnit int) int {
	if count > threshold {
		count = threshold
	}
	if count < 0 {
		count = 0
	}
	return count * pointsPerUnit
}

func boolPoints(b bool, points int) int {
	if b {
		return points
	}
	return 0
}

// scoreAEO scores the answer-engine rubric. Its five sub-categories are
// allocated 30/25/20/15/10 and the overall value is their plain sum, so it
// is always within [0, 100]. The local-signals sub-category is skipped
// entirely (points unearned, not reassigned) when the document carries no
// local context.
func scoreAEO(m models.MetricSet) (overall, geo int, parts []models.CategoryScore) {
	directAnswers := boolPoints(m.HasDirectAnswer, 15) + boolPoints(m.AnswerFirst, 15)

	quotability := boolPoints(m.StatisticCount > 0, 10) + cappedCredit(m.QuotableCount, 3, 5)

	structure := boolPoints(m.HasFAQSection, 10) +
		boolPoints(m.HasHowToSteps, 5) +
		boolPoints(m.HasTable, 5)

	depth := boolPoints(m.DefinitionCount > 0, 5) + cappedCredit(m.SubtopicCount, 5, 2)

	local := 0
	if m.HasLocalContext {
		local = boolPoints(m.NearMeCount > 0, 4) +
			boolPoints(m.CityMentions > 0, 3) +
			boolPoints(m.AreaMentions > 0, 3)
	}

	parts = []models.CategoryScore{
		{Rubric: models.RubricAEO, Name: "direct_answers", Value: directAnswers, Max: 30},
		{Rubric: models.RubricAEO, Name: "quotability", Value: quotability, Max: 25},
		{Rubric: models.RubricAEO, Name: "structure", Value: structure, Max: 20},
		{Rubric: models.RubricAEO, Name: "topical_depth", Value: depth, Max: 15},
		{Rubric: models.RubricAEO, Name: "local_signals", Value: local, Max: 10},
	}
	return directAnswers + quotability + structure + depth + local, local, parts
}

// scoreSEO scores on-page structure out of 100:
// title 20, meta description 15, headings 20, internal links 20,
// content depth 15, answer blocks 10.
func scoreSEO(m models.MetricSet) (int, []models.CategoryScore) {
	title := 0
	switch {
	case m.TitleLength >= 30 && m.TitleLength <= 60:
		title = 12
	case m.TitleLength > 0 && m.TitleLength <= 70:
		title = 6
	}
	if m.TitleLength > 0 {
		title += 8
	}

	meta := 0
	switch {
	case m.MetaDescLength >= 120 && m.MetaDescLength <= 160:
		meta = 15
	case m.MetaDescLength >= 50 && m.MetaDescLength < 200:
		meta = 8
	case m.MetaDescLength > 0:
		meta = 4
	}

	headings := cappedCredit(m.SubtopicCount, 5, 4)
	links := cappedCredit(m.InternalLinkCount, 5, 4)

	depth := 0
	switch {
	case m.WordCount >= 1500:
		depth = 15
	case m.WordCount >= 800:
		depth = 10
	case m.WordCount >= 300:
		depth = 5
	}

	answerBlocks := boolPoints(m.HasFAQSection, 5) + boolPoints(m.HasTable || m.HasHowToSteps, 5)

	parts := []models.CategoryScore{
		{Rubric: models.RubricSEO, Name: "title_quality", Value: title, Max: 20},
		{Rubric: models.RubricSEO, Name: "meta_description", Value: meta, Max: 15},
		{Rubric: models.RubricSEO, Name: "heading_structure", Value: headings, Max: 20},
		{Rubric: models.RubricSEO, Name: "internal_links", Value: links, Max: 20},
		{Rubric: models.RubricSEO, Name: "content_depth", Value: depth, Max: 15},
		{Rubric: models.RubricSEO, Name: "answer_blocks", Value: answerBlocks, Max: 10},
	}
	return title + meta + headings + links + depth + answerBlocks, parts
}

// scoreReadability scores out of 100: target alignment 40, sentence length
// 20, paragraph structure 15, complex-word ratio 15, flow 10.
//
// Target alignment penalizes deviation from the caller's desired register
// in both directions; an extremely simple body scores poorly against a
// technical target. "Simpler is always better" is deliberately not the
// model here.
func scoreReadability(m models.MetricSet, targetFlesch float64) (int, []models.CategoryScore) {
	alignment := 0
	if m.WordCount > 0 {
		deviation := math.Abs(m.FleschScore - targetFlesch)
		alignment = 40 - int(math.Round(deviation))
		if alignment < 0 {
			alignment = 0
		}
	}

	sentenceLen := 0
	switch {
	case m.SentenceCount == 0:
	case m.AvgSentenceWords >= 11 && m.AvgSentenceWords <= 20:
		sentenceLen = 20
	case m.AvgSentenceWords >= 8 && m.AvgSentenceWords <= 25:
		sentenceLen = 12
	default:
		sentenceLen = 4
	}

	paragraphs := 0
	if m.ParagraphCount > 1 {
		avgParaWords := float64(m.WordCount) / float64(m.ParagraphCount)
		switch {
		case avgParaWords <= 120:
			paragraphs = 15
		case avgParaWords <= 200:
			paragraphs = 8
		}
	}

	complexity := 0
	switch {
	case m.WordCount == 0:
	case m.ComplexWordRatio <= 0.10:
		complexity = 15
	case m.ComplexWordRatio <= 0.20:
		complexity = 10
	case m.ComplexWordRatio <= 0.30:
		complexity = 5
	}

	flow := cappedCredit(m.TransitionCount, 5, 2)

	parts := []models.CategoryScore{
		{Rubric: models.RubricReadability, Name: "target_alignment", Value: alignment, Max: 40},
		{Rubric: models.RubricReadability, Name: "sentence_length", Value: sentenceLen, Max: 20},
		{Rubric: models.RubricReadability, Name: "paragraph_structure", Value: paragraphs, Max: 15},
		{Rubric: models.RubricReadability, Name: "complex_words", Value: complexity, Max: 15},
		{Rubric: models.RubricReadability, Name: "flow", Value: flow, Max: 10},
	}
	return alignment + sentenceLen + paragraphs + complexity + flow, parts
}

// scoreEngagement scores out of 100: hook 20, quotable insights 20,
// evidence 15, examples 15, call to action 10, direct address 10,
// formatting variety 10.
func scoreEngagement(m models.MetricSet) (int, []models.CategoryScore) {
	hook := boolPoints(m.QuestionInIntro, 12) + boolPoints(m.HasDirectAnswer, 8)
	quotables := cappedCredit(m.QuotableCount, 4, 5)
	evidence := cappedCredit(m.StatisticCount, 3, 5)
	examples := cappedCredit(m.ExampleCount, 3, 5)
	cta := boolPoints(m.HasCallToAction, 10)
	address := cappedCredit(m.SecondPersonCount, 5, 2)

	variety := cappedCredit(m.ListBlockCount, 2, 3) + boolPoints(m.HasTable, 4)

	parts := []models.CategoryScore{
		{Rubric: models.RubricEngagement, Name: "hook", Value: hook, Max: 20},
		{Rubric: models.RubricEngagement, Name: "quotable_insights", Value: quotables, Max: 20},
		{Rubric: models.RubricEngagement, Name: "evidence", Value: evidence, Max: 15},
		{Rubric: models.RubricEngagement, Name: "examples", Value: examples, Max: 15},
		{Rubric: models.RubricEngagement, Name: "call_to_action", Value: cta, Max: 10},
		{Rubric: models.RubricEngagement, Name: "direct_address", Value: address, Max: 10},
		{Rubric: models.RubricEngagement, Name: "formatting_variety", Value: variety, Max: 10},
	}
	return hook + quotables + evidence + examples + cta + address + variety, parts
}
