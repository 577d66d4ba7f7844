package optimizer

import (
	"sync"
	"time"

	"github.com/zombar/optimizer/models"
)

// Guard tracks, per document, whether the last-computed fact-verification
// result is still valid.
//
// State machine: Unverified -> Verified -> Stale. Only wholesale content
// regeneration moves a record to Stale; selective single-rubric passes
// never transition it — RunPass has no access to the guard at all, so the
// invariant holds by construction. There is no way back from Stale except
// a fresh verification.
//
// Records are keyed by logical document and replaced whole, never mutated
// in place.
type Guard struct {
	mu      sync.RWMutex
	records map[string]models.FactCheckRecord
}

// NewGuard creates an empty fact-check guard.
func NewGuard() *Guard {
	return &Guard{records: make(map[string]models.FactCheckRecord)}
}

// Record returns a copy of the current record for a document. Documents
// that were never verified report FactCheckUnverified.
func (g *Guard) Record(documentID string) models.FactCheckRecord {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if rec, ok := g.records[documentID]; ok {
		return rec
	}
	return models.FactCheckRecord{
		DocumentVersionID: documentID,
		Validity:          models.FactCheckUnverified,
	}
}

// Validity reports the current verification state for a document.
func (g *Guard) Validity(documentID string) string {
	return g.Record(documentID).Validity
}

// MarkVerified installs a fresh verification result, replacing whatever
// record existed before.
func (g *Guard) MarkVerified(documentID, versionID string, score float64, claims []string) models.FactCheckRecord {
	rec := models.FactCheckRecord{
		DocumentVersionID: versionID,
		Score:             score,
		Claims:            append([]string(nil), claims...),
		Validity:          models.FactCheckValid,
		CheckedAt:         time.Now(),
	}
	g.mu.Lock()
	g.records[documentID] = rec
	g.mu.Unlock()
	return rec
}

// MarkRegenerated records that the document's content was regenerated
// wholesale. A valid record becomes stale; an unverified document stays
// unverified.
func (g *Guard) MarkRegenerated(documentID string) models.FactCheckRecord {
	g.mu.Lock()
	defer g.mu.Unlock()
	rec, ok := g.records[documentID]
	if !ok {
		return models.FactCheckRecord{
			DocumentVersionID: documentID,
			Validity:          models.FactCheckUnverified,
		}
	}
	stale := rec
	stale.Validity = models.FactCheckStale
	g.records[documentID] = stale
	return stale
}

// Restore loads a previously persisted record, e.g. at service start.
func (g *Guard) Restore(documentID string, rec models.FactCheckRecord) {
	g.mu.Lock()
	g.records[documentID] = rec
	g.mu.Unlock()
}

// Forget drops the record for a deleted document.
func (g *Guard) Forget(documentID string) {
	g.mu.Lock()
	delete(g.records, documentID)
	g.mu.Unlock()
}
