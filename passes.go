package optimizer

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/zombar/optimizer/models"
	"github.com/zombar/optimizer/rewrite"
)

// RunPass executes one selective improvement pass: score the document,
// ask the rewrite service to improve exactly one rubric while preserving
// factual claims verbatim, and score the result.
//
// A failed pass leaves the document completely untouched; there is at most
// one rewrite attempt per invocation and no partial application. The
// fact-check guard is deliberately not involved here: a selective pass is
// defined to never invalidate a prior verification (see Guard).
func (o *Optimizer) RunPass(ctx context.Context, doc models.ContentDocument, rubric models.Rubric, research *models.ResearchContext) (*models.ImprovementPassResult, error) {
	if _, ok := models.ParseRubric(string(rubric)); !ok {
		// Rejected before any external call is attempted.
		return nil, &InvalidPassError{Requested: string(rubric)}
	}

	tracer := otel.Tracer("optimizer")
	ctx, span := tracer.Start(ctx, "improvement_pass")
	span.SetAttributes(
		attribute.String("rubric", string(rubric)),
		attribute.String("document_id", doc.ID),
	)
	defer span.End()

	before := o.Score(doc)
	o.events.PassStarted(doc.ID, rubric)

	if err := o.acquireRewriteSlot(ctx); err != nil {
		return nil, &ExternalServiceError{Service: "rewrite", Err: err}
	}
	rewritten, err := o.rewriteClient.Rewrite(ctx, rewrite.Request{
		Title:           doc.Title,
		MetaDescription: doc.MetaDescription,
		Body:            doc.Body,
		Rubric:          string(rubric),
		Research:        researchFragments(research),
	})
	o.releaseRewriteSlot()
	if err != nil {
		var parseErr *rewrite.ParseError
		if errors.As(err, &parseErr) {
			return nil, &UnparsableResponseError{Service: "rewrite", Raw: parseErr.Raw, Err: parseErr}
		}
		return nil, &ExternalServiceError{Service: "rewrite", Err: err}
	}

	newDoc := models.ContentDocument{
		ID:                uuid.New().String(),
		Title:             orDefault(rewritten.Title, doc.Title),
		MetaDescription:   orDefault(rewritten.MetaDescription, doc.MetaDescription),
		Body:              rewritten.Body,
		Local:             doc.Local,
		TargetFleschScore: doc.TargetFleschScore,
		CreatedAt:         time.Now(),
	}

	after := o.Score(newDoc)

	result := &models.ImprovementPassResult{
		ID:          uuid.New().String(),
		PassName:    rubric,
		DocumentID:  doc.ID,
		ScoreBefore: before.RubricScore(rubric),
		ScoreAfter:  after.RubricScore(rubric),
		Content:     newDoc,
		Before:      before,
		After:       after,
		WordCount:   after.WordCount,
		CreatedAt:   time.Now(),
	}
	o.events.PassCompleted(result)
	return result, nil
}

// acquireRewriteSlot blocks until a rewrite slot is free or the context is
// cancelled.
func (o *Optimizer) acquireRewriteSlot(ctx context.Context) error {
	select {
	case o.rewriteSemaphore <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Optimizer) releaseRewriteSlot() {
	<-o.rewriteSemaphore
}

// researchFragments flattens a research context into the short factual
// fragments handed to the rewrite service.
func researchFragments(r *models.ResearchContext) []string {
	if r == nil {
		return nil
	}
	var out []string
	out = append(out, r.Statistics...)
	out = append(out, r.CaseStudies...)
	out = append(out, r.RecentTrends...)
	return out
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
