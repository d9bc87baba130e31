/*
interfaces.go - Collaborator interfaces consumed by the engine's callers

PURPOSE:
  The engine itself takes plain values (plan, snapshot, history) so the
  computation stays pure and trivially concurrent. These interfaces are
  the contract for the surrounding application that loads those values
  and persists the results. Reference implementations live in
  store/memory and store/sqlite.

OWNERSHIP:
  The BenefitsUsed ledger is owned per (patient, plan, benefit year) by
  the caller's persistence layer. Two rules keep it consistent:
    1. Serialize ledger updates per patient, so two concurrent
       validations never both assume the same starting balance.
    2. Persist the ledger delta atomically with the claim it belongs
       to, so a validated-but-uncommitted plan never consumes headroom.
*/
package coverage

import (
	"context"
	"time"

	"github.com/lumident/benefits-engine/catalog"
	"github.com/lumident/benefits-engine/plan"
)

// CatalogProvider returns ProcedureCode entries by code.
// *catalog.Catalog satisfies it.
type CatalogProvider interface {
	Lookup(code string) (catalog.ProcedureCode, bool)
}

var _ CatalogProvider = (*catalog.Catalog)(nil)

// PlanProvider returns the plan for a lookup key. Treated read-only and
// not cached beyond one call.
type PlanProvider interface {
	Plan(ctx context.Context, key string) (plan.InsurancePlan, error)
}

// BenefitsStore owns the per-patient benefits ledger.
type BenefitsStore interface {
	// Snapshot returns the current totals for (patient, plan, year).
	// A missing ledger reads as zero totals, not an error.
	Snapshot(ctx context.Context, patientID, planKey string, year int) (BenefitsUsed, error)

	// Apply persists a delta after a claim is confirmed and returns the
	// resulting snapshot. Implementations must apply atomically.
	Apply(ctx context.Context, patientID, planKey string, year int, delta LedgerDelta) (BenefitsUsed, error)
}

// HistoryFilter narrows a history query. Zero fields mean "no filter".
type HistoryFilter struct {
	Code string
	From time.Time
	To   time.Time
}

// HistoryStore returns prior-procedure records for frequency counting.
type HistoryStore interface {
	History(ctx context.Context, patientID string, filter HistoryFilter) ([]HistoryRecord, error)
	Record(ctx context.Context, patientID string, records ...HistoryRecord) error
}
