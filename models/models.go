package models

import "time"

// Rubric identifies one independent scoring dimension.
type Rubric string

const (
	RubricReadability Rubric = "readability"
	RubricSEO         Rubric = "seo"
	RubricAEO         Rubric = "aeo"
	RubricEngagement  Rubric = "engagement"
)

// ParseRubric maps a caller-supplied string onto the closed rubric set.
// Unknown values return ok=false; callers must reject them before any
// external call is attempted.
func ParseRubric(s string) (Rubric, bool) {
	switch Rubric(s) {
	case RubricReadability, RubricSEO, RubricAEO, RubricEngagement:
		return Rubric(s), true
	}
	return "", false
}

// Rubrics returns every valid rubric, in display order.
func Rubrics() []Rubric {
	return []Rubric{RubricReadability, RubricSEO, RubricAEO, RubricEngagement}
}

// LocalContext describes the geographic audience a document targets.
// When absent, location-specific metrics are skipped rather than scored zero.
type LocalContext struct {
	City        string `json:"city,omitempty"`
	State       string `json:"state,omitempty"`
	ServiceArea string `json:"service_area,omitempty"`
}

// ContentDocument is one immutable version of a piece of long-form content.
type ContentDocument struct {
	ID              string        `json:"id"`
	Title           string        `json:"title"`
	MetaDescription string        `json:"meta_description"`
	Body            string        `json:"body"`
	Local           *LocalContext `json:"local_context,omitempty"`

	// TargetFleschScore is the desired reading-ease register for the
	// intended audience (>=70 general public, <=40 technical/graduate).
	// Zero means "use the default target".
	TargetFleschScore float64 `json:"target_flesch_score,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// MetricSet holds the boolean/count features derived from one document.
// It is produced fresh on every scoring call and never persisted; the same
// input text always yields the same MetricSet.
type MetricSet struct {
	// Answer-engine features
	HasDirectAnswer bool `json:"has_direct_answer"`
	AnswerFirst     bool `json:"answer_first"`
	StatisticCount  int  `json:"statistic_count"`
	QuotableCount   int  `json:"quotable_count"`
	DefinitionCount int  `json:"definition_count"`
	HasFAQSection   bool `json:"has_faq_section"`
	FAQCount        int  `json:"faq_count"`
	HasHowToSteps   bool `json:"has_howto_steps"`
	HowToStepCount  int  `json:"howto_step_count"`
	HasTable        bool `json:"has_table"`
	SubtopicCount   int  `json:"subtopic_count"`

	// Link structure
	InternalLinkCount int `json:"internal_link_count"`
	ExternalLinkCount int `json:"external_link_count"`

	// Text statistics
	WordCount        int     `json:"word_count"`
	SentenceCount    int     `json:"sentence_count"`
	ParagraphCount   int     `json:"paragraph_count"`
	AvgSentenceWords float64 `json:"avg_sentence_words"`
	FleschScore      float64 `json:"flesch_score"`
	ComplexWordRatio float64 `json:"complex_word_ratio"`
	TransitionCount  int     `json:"transition_count"`
	ListBlockCount   int     `json:"list_block_count"`

	// Engagement features
	QuestionInIntro   bool `json:"question_in_intro"`
	HasCallToAction   bool `json:"has_call_to_action"`
	SecondPersonCount int  `json:"second_person_count"`
	ExampleCount      int  `json:"example_count"`

	// Metadata features
	TitleLength    int `json:"title_length"`
	MetaDescLength int `json:"meta_desc_length"`

	// Local/geographic features. Only populated when the document carries
	// a LocalContext; HasLocalContext distinguishes "skipped" from zero.
	HasLocalContext bool `json:"has_local_context"`
	NearMeCount     int  `json:"near_me_count"`
	CityMentions    int  `json:"city_mentions"`
	AreaMentions    int  `json:"area_mentions"`
}

// CategoryScore is one sub-score within a rubric. Value is always within
// [0, Max]; Max is fixed per category and never configurable at call time.
type CategoryScore struct {
	Rubric Rubric `json:"rubric"`
	Name   string `json:"name"`
	Value  int    `json:"value"`
	Max    int    `json:"max"`
}

// CompositeScore carries every rubric's 0-100 score plus the per-category
// breakdown for display and auditing. The rubrics are independent; no
// site-wide combination happens here.
type CompositeScore struct {
	AEO         int `json:"aeo_score"`
	SEO         int `json:"seo_score"`
	Readability int `json:"readability_score"`
	Engagement  int `json:"engagement_score"`

	// GeoScore surfaces the AEO local-signal sub-component on its own
	// because the surrounding system persists it separately.
	GeoScore  int `json:"geo_score"`
	WordCount int `json:"word_count"`

	Breakdown []CategoryScore `json:"breakdown"`
}

// RubricScore returns the 0-100 score for one rubric.
func (c CompositeScore) RubricScore(r Rubric) int {
	switch r {
	case RubricAEO:
		return c.AEO
	case RubricSEO:
		return c.SEO
	case RubricReadability:
		return c.Readability
	case RubricEngagement:
		return c.Engagement
	}
	return 0
}

// ImprovementPassResult records one selective-improvement pass. It is
// immutable once produced; the caller decides whether to commit it.
type ImprovementPassResult struct {
	ID          string          `json:"id"`
	PassName    Rubric          `json:"pass_name"`
	DocumentID  string          `json:"document_id"`
	ScoreBefore int             `json:"score_before"`
	ScoreAfter  int             `json:"score_after"`
	Content     ContentDocument `json:"content"`
	Before      CompositeScore  `json:"category_scores_before"`
	After       CompositeScore  `json:"category_scores_after"`
	WordCount   int             `json:"word_count"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Validity states for a FactCheckRecord.
const (
	FactCheckUnverified = "unverified"
	FactCheckValid      = "valid"
	FactCheckStale      = "stale"
)

// FactCheckRecord tracks whether the last factual verification of a
// document is still trustworthy. Validity becomes stale only when content
// has been regenerated wholesale; a selective single-rubric pass leaves a
// valid record valid.
type FactCheckRecord struct {
	DocumentVersionID string    `json:"document_version_id"`
	Score             float64   `json:"score"`
	Claims            []string  `json:"claims"`
	Validity          string    `json:"validity"`
	CheckedAt         time.Time `json:"checked_at"`
}

// ResearchContext is the fan-in result of the research aggregator: short
// factual fragments usable by rewrite passes.
type ResearchContext struct {
	Statistics   []string `json:"statistics"`
	CaseStudies  []string `json:"case_studies"`
	RecentTrends []string `json:"recent_trends"`
}

// Empty reports whether no research survived extraction.
func (r ResearchContext) Empty() bool {
	return len(r.Statistics) == 0 && len(r.CaseStudies) == 0 && len(r.RecentTrends) == 0
}

// ImageResult is one candidate illustrative image from a stock provider.
type ImageResult struct {
	ID           string `json:"id,omitempty"`
	URL          string `json:"url"`
	ThumbURL     string `json:"thumb_url,omitempty"`
	Description  string `json:"description,omitempty"`
	Photographer string `json:"photographer,omitempty"`
	Source       string `json:"source"` // provider name, e.g. "unsplash"

	// Populated by candidate probing when enabled.
	Width         int    `json:"width,omitempty"`
	Height        int    `json:"height,omitempty"`
	ContentType   string `json:"content_type,omitempty"`
	FileSizeBytes int64  `json:"file_size_bytes,omitempty"`
	Attribution   string `json:"attribution,omitempty"` // EXIF artist/copyright when present
	FilePath      string `json:"file_path,omitempty"`   // cached copy in storage, if saved
}

// RewrittenDocument is the parsed response of the external rewrite service.
type RewrittenDocument struct {
	Title           string `json:"title"`
	MetaDescription string `json:"meta_description"`
	Body            string `json:"body"`
}
