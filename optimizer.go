// Package optimizer scores long-form content across independent quality
// rubrics (AEO, SEO, readability, engagement) and runs selective rewrite
// passes that improve one rubric at a time while leaving prior
// fact-verification results intact.
package optimizer

import (
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/zombar/optimizer/rewrite"
	"github.com/zombar/optimizer/search"
	"github.com/zombar/optimizer/stockimages"
)

// Config contains optimizer configuration. Provider credentials are passed
// in explicitly; leaf functions never read the process environment.
type Config struct {
	HTTPTimeout time.Duration

	RewriteBaseURL string // LLM rewrite service (Ollama-compatible)
	RewriteModel   string

	SearchBaseURL string // web search provider; empty API key degrades to no results
	SearchAPIKey  string

	UnsplashAccessKey string // primary image provider
	PexelsAPIKey      string // secondary image provider

	EnableImageProbing bool          // download candidates to record dimensions/attribution
	MaxImageSizeBytes  int64         // maximum candidate image size to download
	ImageTimeout       time.Duration // timeout per candidate download

	DefaultTargetFlesch float64 // reading-ease target when a document supplies none
}

// DefaultConfig returns default optimizer configuration.
func DefaultConfig() Config {
	return Config{
		HTTPTimeout:         30 * time.Second,
		RewriteBaseURL:      rewrite.DefaultBaseURL,
		RewriteModel:        rewrite.DefaultModel,
		SearchBaseURL:       search.DefaultBaseURL,
		EnableImageProbing:  true,
		MaxImageSizeBytes:   10 * 1024 * 1024, // 10MB
		ImageTimeout:        15 * time.Second,
		DefaultTargetFlesch: defaultFleschTarget,
	}
}

// Optimizer orchestrates scoring, improvement passes, research aggregation
// and image resolution for one service instance.
type Optimizer struct {
	config           Config
	httpClient       *http.Client
	rewriteClient    *rewrite.Client
	searchClient     *search.Client
	imagePrimary     stockimages.Provider
	imageSecondary   stockimages.Provider
	imageStore       ImageStore    // optional cache for probed candidates
	rewriteSemaphore chan struct{} // limits concurrent rewrite requests
	events           Events
}

// New creates a new Optimizer. A nil events sink falls back to log output.
func New(config Config, events Events) *Optimizer {
	if events == nil {
		events = logEvents{}
	}
	if config.DefaultTargetFlesch == 0 {
		config.DefaultTargetFlesch = defaultFleschTarget
	}

	// Outbound calls propagate trace context.
	httpClient := &http.Client{
		Timeout:   config.HTTPTimeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	// Limit concurrent rewrite requests to 3 to prevent overloading the
	// model server during batch operations.
	maxConcurrentRewrites := 3

	return &Optimizer{
		config:           config,
		httpClient:       httpClient,
		rewriteClient:    rewrite.NewClient(config.RewriteBaseURL, config.RewriteModel, httpClient),
		searchClient:     search.NewClient(config.SearchBaseURL, config.SearchAPIKey, httpClient),
		imagePrimary:     stockimages.NewUnsplashClient(config.UnsplashAccessKey, httpClient),
		imageSecondary:   stockimages.NewPexelsClient(config.PexelsAPIKey, httpClient),
		rewriteSemaphore: make(chan struct{}, maxConcurrentRewrites),
		events:           events,
	}
}
