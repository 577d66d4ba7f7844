package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/zombar/optimizer/models"
)

// DB wraps the database connection and provides data access methods
type DB struct {
	conn *sql.DB
}

// Config contains database configuration
type Config struct {
	DSN string // PostgreSQL connection string
}

// New creates a new database connection and runs pending migrations
func New(config Config) (*DB, error) {
	conn, err := sql.Open("postgres", config.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	db := &DB{conn: conn}

	if err := Migrate(conn); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// DB returns the underlying database connection for metrics collection
func (db *DB) DB() *sql.DB {
	return db.conn
}

// StoredDocument pairs a document with its last-computed scores.
type StoredDocument struct {
	Document models.ContentDocument `json:"document"`
	Scores   models.CompositeScore  `json:"scores"`
	Slug     string                 `json:"slug,omitempty"`
}

// SaveDocument upserts a document together with its composite scores. The
// full document is stored as a JSON blob; score columns are denormalized
// for listing and sorting without unmarshalling.
func (db *DB) SaveDocument(doc *models.ContentDocument, scores models.CompositeScore, slug string) error {
	stored := StoredDocument{Document: *doc, Scores: scores, Slug: slug}
	jsonData, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	query := `
		INSERT INTO optimizer_documents (id, slug, data, aeo_score, seo_score, readability_score, engagement_score, geo_score, word_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT(id) DO UPDATE SET
			slug = excluded.slug,
			data = excluded.data,
			aeo_score = excluded.aeo_score,
			seo_score = excluded.seo_score,
			readability_score = excluded.readability_score,
			engagement_score = excluded.engagement_score,
			geo_score = excluded.geo_score,
			word_count = excluded.word_count,
			updated_at = excluded.updated_at
	`

	_, err = db.conn.Exec(
		query,
		doc.ID,
		nullString(slug),
		string(jsonData),
		scores.AEO,
		scores.SEO,
		scores.Readability,
		scores.Engagement,
		scores.GeoScore,
		scores.WordCount,
		doc.CreatedAt,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to save document: %w", err)
	}

	return nil
}

// GetDocumentByID retrieves a stored document by ID
func (db *DB) GetDocumentByID(id string) (*StoredDocument, error) {
	var jsonData string
	err := db.conn.QueryRow("SELECT data FROM optimizer_documents WHERE id = $1", id).Scan(&jsonData)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query document: %w", err)
	}

	var stored StoredDocument
	if err := json.Unmarshal([]byte(jsonData), &stored); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document: %w", err)
	}

	return &stored, nil
}

// GetDocumentBySlug retrieves a stored document by slug
func (db *DB) GetDocumentBySlug(slug string) (*StoredDocument, error) {
	var jsonData string
	err := db.conn.QueryRow("SELECT data FROM optimizer_documents WHERE slug = $1", slug).Scan(&jsonData)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query document by slug: %w", err)
	}

	var stored StoredDocument
	if err := json.Unmarshal([]byte(jsonData), &stored); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document: %w", err)
	}

	return &stored, nil
}

// ListDocuments returns stored documents with pagination, newest first
func (db *DB) ListDocuments(limit, offset int) ([]*StoredDocument, error) {
	query := `
		SELECT data FROM optimizer_documents
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := db.conn.Query(query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var results []*StoredDocument
	for rows.Next() {
		var jsonData string
		if err := rows.Scan(&jsonData); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		var stored StoredDocument
		if err := json.Unmarshal([]byte(jsonData), &stored); err != nil {
			return nil, fmt.Errorf("failed to unmarshal document: %w", err)
		}

		results = append(results, &stored)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return results, nil
}

// CountDocuments returns the total number of stored documents
func (db *DB) CountDocuments() (int, error) {
	var count int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM optimizer_documents").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return count, nil
}

// DeleteDocumentByID deletes a document and its pass results and fact check
func (db *DB) DeleteDocumentByID(id string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec("DELETE FROM optimizer_documents WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("no document found with id: %s", id)
	}

	if _, err := tx.Exec("DELETE FROM optimizer_pass_results WHERE document_id = $1", id); err != nil {
		return fmt.Errorf("failed to delete pass results: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM optimizer_fact_checks WHERE document_id = $1", id); err != nil {
		return fmt.Errorf("failed to delete fact check: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// SavePassResult persists one improvement pass result
func (db *DB) SavePassResult(result *models.ImprovementPassResult) error {
	jsonData, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal pass result: %w", err)
	}

	query := `
		INSERT INTO optimizer_pass_results (id, document_id, rubric, score_before, score_after, data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = db.conn.Exec(
		query,
		result.ID,
		result.DocumentID,
		string(result.PassName),
		result.ScoreBefore,
		result.ScoreAfter,
		string(jsonData),
		result.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save pass result: %w", err)
	}

	return nil
}

// GetPassResultsByDocumentID retrieves all pass results for a document,
// oldest first
func (db *DB) GetPassResultsByDocumentID(documentID string) ([]*models.ImprovementPassResult, error) {
	query := `
		SELECT data FROM optimizer_pass_results
		WHERE document_id = $1
		ORDER BY created_at
	`

	rows, err := db.conn.Query(query, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query pass results: %w", err)
	}
	defer rows.Close()

	var results []*models.ImprovementPassResult
	for rows.Next() {
		var jsonData string
		if err := rows.Scan(&jsonData); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		var result models.ImprovementPassResult
		if err := json.Unmarshal([]byte(jsonData), &result); err != nil {
			return nil, fmt.Errorf("failed to unmarshal pass result: %w", err)
		}

		results = append(results, &result)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return results, nil
}

// SaveFactCheck upserts the fact-check record for a document
func (db *DB) SaveFactCheck(documentID string, rec models.FactCheckRecord) error {
	claimsJSON, err := json.Marshal(rec.Claims)
	if err != nil {
		return fmt.Errorf("failed to marshal claims: %w", err)
	}

	query := `
		INSERT INTO optimizer_fact_checks (document_id, version_id, score, claims, validity, checked_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT(document_id) DO UPDATE SET
			version_id = excluded.version_id,
			score = excluded.score,
			claims = excluded.claims,
			validity = excluded.validity,
			checked_at = excluded.checked_at,
			updated_at = excluded.updated_at
	`

	_, err = db.conn.Exec(
		query,
		documentID,
		rec.DocumentVersionID,
		rec.Score,
		string(claimsJSON),
		rec.Validity,
		nullTime(rec.CheckedAt),
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to save fact check: %w", err)
	}

	return nil
}

// GetFactCheckByDocumentID retrieves the fact-check record for a document
func (db *DB) GetFactCheckByDocumentID(documentID string) (*models.FactCheckRecord, error) {
	var (
		versionID  string
		score      float64
		claimsJSON sql.NullString
		validity   string
		checkedAt  sql.NullTime
	)

	query := "SELECT version_id, score, claims, validity, checked_at FROM optimizer_fact_checks WHERE document_id = $1"
	err := db.conn.QueryRow(query, documentID).Scan(&versionID, &score, &claimsJSON, &validity, &checkedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query fact check: %w", err)
	}

	rec := &models.FactCheckRecord{
		DocumentVersionID: versionID,
		Score:             score,
		Validity:          validity,
	}
	if claimsJSON.Valid && claimsJSON.String != "" && claimsJSON.String != "null" {
		if err := json.Unmarshal([]byte(claimsJSON.String), &rec.Claims); err != nil {
			return nil, fmt.Errorf("failed to unmarshal claims: %w", err)
		}
	}
	if checkedAt.Valid {
		rec.CheckedAt = checkedAt.Time
	}

	return rec, nil
}

// ListFactChecks returns every persisted fact-check record keyed by
// document ID, used to rehydrate the in-memory guard at startup.
func (db *DB) ListFactChecks() (map[string]models.FactCheckRecord, error) {
	rows, err := db.conn.Query("SELECT document_id, version_id, score, claims, validity, checked_at FROM optimizer_fact_checks")
	if err != nil {
		return nil, fmt.Errorf("failed to query fact checks: %w", err)
	}
	defer rows.Close()

	out := make(map[string]models.FactCheckRecord)
	for rows.Next() {
		var (
			documentID string
			versionID  string
			score      float64
			claimsJSON sql.NullString
			validity   string
			checkedAt  sql.NullTime
		)
		if err := rows.Scan(&documentID, &versionID, &score, &claimsJSON, &validity, &checkedAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		rec := models.FactCheckRecord{
			DocumentVersionID: versionID,
			Score:             score,
			Validity:          validity,
		}
		if claimsJSON.Valid && claimsJSON.String != "" && claimsJSON.String != "null" {
			if err := json.Unmarshal([]byte(claimsJSON.String), &rec.Claims); err != nil {
				continue // skip malformed entries
			}
		}
		if checkedAt.Valid {
			rec.CheckedAt = checkedAt.Time
		}
		out[documentID] = rec
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return out, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
