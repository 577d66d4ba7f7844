package optimizer

import (
	"testing"
	"time"

	"github.com/zombar/optimizer/models"
)

func TestGuardDefaultsToUnverified(t *testing.T) {
	g := NewGuard()

	if got := g.Validity("unknown-doc"); got != models.FactCheckUnverified {
		t.Errorf("Validity = %q, want %q", got, models.FactCheckUnverified)
	}
}

func TestGuardVerifyThenRegenerate(t *testing.T) {
	g := NewGuard()

	rec := g.MarkVerified("doc-1", "v1", 0.92, []string{"claim one", "claim two"})
	if rec.Validity != models.FactCheckValid {
		t.Fatalf("Validity = %q, want %q", rec.Validity, models.FactCheckValid)
	}
	if rec.CheckedAt.IsZero() {
		t.Error("Expected CheckedAt to be set")
	}
	if g.Validity("doc-1") != models.FactCheckValid {
		t.Error("Expected stored record to be valid")
	}

	stale := g.MarkRegenerated("doc-1")
	if stale.Validity != models.FactCheckStale {
		t.Errorf("Validity = %q, want %q after regeneration", stale.Validity, models.FactCheckStale)
	}
	// The rest of the record survives; only validity transitions.
	if stale.Score != 0.92 || len(stale.Claims) != 2 {
		t.Error("Expected score and claims preserved when a record goes stale")
	}

	// No way back from stale except a fresh verification.
	if g.Validity("doc-1") != models.FactCheckStale {
		t.Error("Expected record to stay stale")
	}
	fresh := g.MarkVerified("doc-1", "v2", 0.88, nil)
	if fresh.Validity != models.FactCheckValid {
		t.Error("Expected a fresh verification to make the record valid again")
	}
	if fresh.DocumentVersionID != "v2" {
		t.Errorf("DocumentVersionID = %q, want %q", fresh.DocumentVersionID, "v2")
	}
}

func TestGuardRegenerateUnverifiedStaysUnverified(t *testing.T) {
	g := NewGuard()

	rec := g.MarkRegenerated("never-checked")
	if rec.Validity != models.FactCheckUnverified {
		t.Errorf("Validity = %q, want %q", rec.Validity, models.FactCheckUnverified)
	}
	if g.Validity("never-checked") != models.FactCheckUnverified {
		t.Error("Expected document to stay unverified")
	}
}

func TestGuardRecordReturnsCopy(t *testing.T) {
	g := NewGuard()
	g.MarkVerified("doc-1", "v1", 0.5, []string{"claim"})

	rec := g.Record("doc-1")
	rec.Validity = models.FactCheckStale

	if g.Validity("doc-1") != models.FactCheckValid {
		t.Error("Mutating a returned record must not affect the stored one")
	}
}

func TestGuardRestoreAndForget(t *testing.T) {
	g := NewGuard()

	g.Restore("doc-1", models.FactCheckRecord{
		DocumentVersionID: "v7",
		Score:             0.75,
		Validity:          models.FactCheckValid,
		CheckedAt:         time.Now().Add(-time.Hour),
	})
	if g.Validity("doc-1") != models.FactCheckValid {
		t.Error("Expected restored record to be valid")
	}

	g.Forget("doc-1")
	if g.Validity("doc-1") != models.FactCheckUnverified {
		t.Error("Expected forgotten document to report unverified")
	}
}
