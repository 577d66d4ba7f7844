package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zombar/optimizer"
	"github.com/zombar/optimizer/db"
	"github.com/zombar/optimizer/models"
	"github.com/zombar/optimizer/slug"
	"github.com/zombar/optimizer/storage"
	"github.com/zombar/optimizer/telemetry"
)

// Server represents the API server
type Server struct {
	db          *db.DB
	optimizer   *optimizer.Optimizer
	guard       *optimizer.Guard
	storage     storage.Backend
	recorder    *telemetry.Recorder
	addr        string
	server      *http.Server
	mux         *http.ServeMux
	corsEnabled bool
}

// Config contains server configuration
type Config struct {
	Addr            string
	DBConfig        db.Config
	OptimizerConfig optimizer.Config
	StoragePath     string
	CORSEnabled     bool

	// S3 selects object storage for snapshots instead of the local
	// filesystem when set.
	S3 *storage.S3Config

	// Recorder receives pipeline metrics; nil disables instrumentation.
	Recorder *telemetry.Recorder
}

// DefaultConfig returns default server configuration
func DefaultConfig() Config {
	return Config{
		Addr:            ":8080",
		OptimizerConfig: optimizer.DefaultConfig(),
		StoragePath:     "./storage",
		CORSEnabled:     true,
	}
}

// NewServer creates a new API server
func NewServer(config Config) (*Server, error) {
	database, err := db.New(config.DBConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	var storageInstance storage.Backend
	if config.S3 != nil {
		storageInstance, err = storage.NewS3Storage(context.Background(), *config.S3)
	} else {
		storageInstance, err = storage.New(storage.Config{
			BasePath: config.StoragePath,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	var events optimizer.Events
	if config.Recorder != nil {
		events = optimizer.CombineEvents(config.Recorder)
	}
	optimizerInstance := optimizer.New(config.OptimizerConfig, events)
	optimizerInstance.SetImageStore(storageInstance)

	guard := optimizer.NewGuard()
	// Rehydrate verification state so restarts don't silently forget
	// which documents were already fact-checked.
	if records, err := database.ListFactChecks(); err != nil {
		log.Printf("Failed to restore fact-check records: %v", err)
	} else {
		for documentID, rec := range records {
			guard.Restore(documentID, rec)
		}
	}

	s := &Server{
		db:          database,
		optimizer:   optimizerInstance,
		guard:       guard,
		storage:     storageInstance,
		recorder:    config.Recorder,
		addr:        config.Addr,
		mux:         http.NewServeMux(),
		corsEnabled: config.CORSEnabled,
	}

	s.registerRoutes()

	s.server = &http.Server{
		Addr:         config.Addr,
		Handler:      s.middleware(s.mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // improvement passes wait on the rewrite service
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// registerRoutes sets up all API routes
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.Handle("/metrics", promhttp.Handler())
	s.mux.HandleFunc("/api/score", s.handleScore)
	s.mux.HandleFunc("/api/improve", s.handleImprove)
	s.mux.HandleFunc("/api/research", s.handleResearch)
	s.mux.HandleFunc("/api/images/suggest", s.handleImageSuggest)
	s.mux.HandleFunc("/api/documents", s.handleDocuments)
	s.mux.HandleFunc("/api/documents/", s.handleDocument) // Handles /api/documents/{id} and subresources
}

// Start starts the API server
func (s *Server) Start() error {
	log.Printf("Starting API server on %s", s.addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down API server...")
	if err := s.server.Shutdown(ctx); err != nil {
		return err
	}
	return s.db.Close()
}

// DB returns the database for metrics collection
func (s *Server) DB() *db.DB {
	return s.db
}

// middleware applies common middleware to all routes
func (s *Server) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.corsEnabled {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
		}

		// Logging (skip health and metrics scrapes to reduce noise)
		start := time.Now()
		quiet := r.URL.Path == "/health" || r.URL.Path == "/metrics"
		if !quiet {
			log.Printf("%s %s", r.Method, r.URL.Path)
		}

		next.ServeHTTP(w, r)

		if !quiet {
			log.Printf("%s %s - completed in %v", r.Method, r.URL.Path, time.Since(start))
		}
	})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	count, err := s.db.CountDocuments()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get count")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"documents": count,
		"time":      time.Now(),
	})
}

// DocumentRequest carries an inline document in a request body.
type DocumentRequest struct {
	ID                string               `json:"id,omitempty"`
	Title             string               `json:"title"`
	MetaDescription   string               `json:"meta_description"`
	Body              string               `json:"body"`
	Local             *models.LocalContext `json:"local_context,omitempty"`
	TargetFleschScore float64              `json:"target_flesch_score,omitempty"`
}

func (req DocumentRequest) toDocument() models.ContentDocument {
	return models.ContentDocument{
		ID:                req.ID,
		Title:             req.Title,
		MetaDescription:   req.MetaDescription,
		Body:              req.Body,
		Local:             req.Local,
		TargetFleschScore: req.TargetFleschScore,
		CreatedAt:         time.Now(),
	}
}

// ScoreResponse pairs the composite scores with the raw metric set.
type ScoreResponse struct {
	Scores  models.CompositeScore `json:"scores"`
	Metrics models.MetricSet      `json:"metrics"`
}

// handleScore scores an inline document without persisting anything
func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req DocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Body == "" {
		respondError(w, http.StatusBadRequest, "body is required")
		return
	}

	doc := req.toDocument()
	scores := s.optimizer.Score(doc)
	metrics := optimizer.ExtractMetrics(doc)

	if s.recorder != nil {
		s.recorder.DocumentScored()
	}

	respondJSON(w, http.StatusOK, ScoreResponse{Scores: scores, Metrics: metrics})
}

// ImproveRequest asks for one selective improvement pass.
type ImproveRequest struct {
	Document     *DocumentRequest `json:"document,omitempty"`
	DocumentID   string           `json:"document_id,omitempty"`
	Rubric       string           `json:"rubric"`
	WithResearch bool             `json:"with_research"`
	Keyword      string           `json:"keyword,omitempty"`
	Save         bool             `json:"save"`
}

// handleImprove runs one improvement pass over an inline or stored document
func (s *Server) handleImprove(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req ImproveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var doc models.ContentDocument
	switch {
	case req.Document != nil:
		doc = req.Document.toDocument()
	case req.DocumentID != "":
		stored, err := s.db.GetDocumentByID(req.DocumentID)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "database error")
			return
		}
		if stored == nil {
			respondError(w, http.StatusNotFound, "document not found")
			return
		}
		doc = stored.Document
	default:
		respondError(w, http.StatusBadRequest, "document or document_id is required")
		return
	}
	if doc.Body == "" {
		respondError(w, http.StatusBadRequest, "document body is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
	defer cancel()

	var research *models.ResearchContext
	if req.WithResearch {
		rc := s.optimizer.Research(ctx, req.Keyword, doc.Title)
		if !rc.Empty() {
			research = &rc
		}
	}

	result, err := s.optimizer.RunPass(ctx, doc, models.Rubric(req.Rubric), research)
	if err != nil {
		if s.recorder != nil {
			s.recorder.PassFailed(req.Rubric)
		}
		respondOptimizerError(w, err)
		return
	}

	if req.Save {
		if err := s.db.SavePassResult(result); err != nil {
			log.Printf("Failed to save pass result: %v", err)
			// Still return the result even if save fails
		}
		if err := s.db.SaveDocument(&result.Content, result.After, slug.GenerateWithFallback(result.Content.Title, result.Content.ID)); err != nil {
			log.Printf("Failed to save improved document: %v", err)
		}
	}

	respondJSON(w, http.StatusOK, result)
}

// ResearchRequest asks for supporting facts on a topic.
type ResearchRequest struct {
	Keyword string `json:"keyword"`
	Topic   string `json:"topic,omitempty"`
}

// handleResearch aggregates supporting facts for a keyword
func (s *Server) handleResearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req ResearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Keyword == "" && req.Topic == "" {
		respondError(w, http.StatusBadRequest, "keyword is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	respondJSON(w, http.StatusOK, s.optimizer.Research(ctx, req.Keyword, req.Topic))
}

// ImageSuggestRequest asks for candidate illustrative images.
type ImageSuggestRequest struct {
	Query string `json:"query"`
	Title string `json:"title,omitempty"`
	Count int    `json:"count,omitempty"`
}

// ImageSuggestResponse wraps the candidate list.
type ImageSuggestResponse struct {
	Images []models.ImageResult `json:"images"`
	Count  int                  `json:"count"`
}

// handleImageSuggest resolves candidate images for a topic
func (s *Server) handleImageSuggest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req ImageSuggestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" && req.Title == "" {
		respondError(w, http.StatusBadRequest, "query or title is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	images := s.optimizer.ResolveImages(ctx, req.Query, req.Title, req.Count)
	respondJSON(w, http.StatusOK, ImageSuggestResponse{Images: images, Count: len(images)})
}

// ListResponse wraps a documents listing.
type ListResponse struct {
	Documents []*db.StoredDocument `json:"documents"`
	Count     int                  `json:"count"`
	Limit     int                  `json:"limit"`
	Offset    int                  `json:"offset"`
}

// handleDocuments handles listing and creating documents
func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListDocuments(w, r)
	case http.MethodPost:
		s.handleCreateDocument(w, r)
	default:
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	limit := 50
	offset := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	docs, err := s.db.ListDocuments(limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "database error")
		return
	}
	count, err := s.db.CountDocuments()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "database error")
		return
	}

	respondJSON(w, http.StatusOK, ListResponse{
		Documents: docs,
		Count:     count,
		Limit:     limit,
		Offset:    offset,
	})
}

func (s *Server) handleCreateDocument(w http.ResponseWriter, r *http.Request) {
	var req DocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Body == "" {
		respondError(w, http.StatusBadRequest, "body is required")
		return
	}

	doc := req.toDocument()
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	scores := s.optimizer.Score(doc)

	docSlug := slug.GenerateWithFallback(doc.Title, doc.ID)
	if err := s.db.SaveDocument(&doc, scores, docSlug); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to save document")
		return
	}

	// Archive a snapshot; the DB row stays authoritative if this fails.
	if _, err := s.storage.SaveDocument(doc.Body, docSlug); err != nil {
		log.Printf("Failed to archive document snapshot: %v", err)
	}

	if s.recorder != nil {
		s.recorder.DocumentScored()
	}

	respondJSON(w, http.StatusCreated, db.StoredDocument{
		Document: doc,
		Scores:   scores,
		Slug:     docSlug,
	})
}

// handleDocument dispatches /api/documents/{id} and its subresources
func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/documents/")
	if path == "" {
		respondError(w, http.StatusBadRequest, "id is required")
		return
	}

	parts := strings.SplitN(path, "/", 2)
	id := parts[0]

	if len(parts) == 2 {
		switch parts[1] {
		case "passes":
			s.handleDocumentPasses(w, r, id)
		case "factcheck":
			s.handleDocumentFactCheck(w, r, id)
		case "regenerated":
			s.handleDocumentRegenerated(w, r, id)
		default:
			respondError(w, http.StatusNotFound, "not found")
		}
		return
	}

	switch r.Method {
	case http.MethodGet:
		stored, err := s.db.GetDocumentByID(id)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "database error")
			return
		}
		if stored == nil {
			respondError(w, http.StatusNotFound, "document not found")
			return
		}
		respondJSON(w, http.StatusOK, stored)

	case http.MethodDelete:
		if err := s.db.DeleteDocumentByID(id); err != nil {
			respondError(w, http.StatusNotFound, "document not found")
			return
		}
		s.guard.Forget(id)
		respondJSON(w, http.StatusOK, map[string]string{
			"status": "deleted",
			"id":     id,
		})

	default:
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleDocumentPasses lists the improvement pass history for a document
func (s *Server) handleDocumentPasses(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	results, err := s.db.GetPassResultsByDocumentID(id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "database error")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"document_id": id,
		"passes":      results,
		"count":       len(results),
	})
}

// FactCheckRequest installs a fresh verification result.
type FactCheckRequest struct {
	VersionID string   `json:"version_id"`
	Score     float64  `json:"score"`
	Claims    []string `json:"claims,omitempty"`
}

// handleDocumentFactCheck reads or installs the verification state
func (s *Server) handleDocumentFactCheck(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodGet:
		respondJSON(w, http.StatusOK, s.guard.Record(id))

	case http.MethodPost:
		var req FactCheckRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.VersionID == "" {
			req.VersionID = id
		}

		rec := s.guard.MarkVerified(id, req.VersionID, req.Score, req.Claims)
		if err := s.db.SaveFactCheck(id, rec); err != nil {
			log.Printf("Failed to persist fact check: %v", err)
		}
		respondJSON(w, http.StatusOK, rec)

	default:
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleDocumentRegenerated records a wholesale content regeneration,
// which stales any prior verification
func (s *Server) handleDocumentRegenerated(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	rec := s.guard.MarkRegenerated(id)
	if err := s.db.SaveFactCheck(id, rec); err != nil {
		log.Printf("Failed to persist fact check: %v", err)
	}
	respondJSON(w, http.StatusOK, rec)
}

// respondOptimizerError maps pipeline errors onto HTTP statuses: caller
// mistakes are 400s, upstream failures are 502s.
func respondOptimizerError(w http.ResponseWriter, err error) {
	var invalidPass *optimizer.InvalidPassError
	if errors.As(err, &invalidPass) {
		respondError(w, http.StatusBadRequest, invalidPass.Error())
		return
	}

	var unparsable *optimizer.UnparsableResponseError
	if errors.As(err, &unparsable) {
		respondError(w, http.StatusBadGateway, unparsable.Error())
		return
	}

	var external *optimizer.ExternalServiceError
	if errors.As(err, &external) {
		respondError(w, http.StatusBadGateway, external.Error())
		return
	}

	respondError(w, http.StatusInternalServerError, fmt.Sprintf("improvement pass failed: %v", err))
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
