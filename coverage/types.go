/*
Package coverage implements the benefits estimation core: the Coverage
Validator and the Treatment-Plan Validator.

PURPOSE:
  Given an insurance plan, a benefits-ledger snapshot, prior-procedure
  history and a procedure request, compute what the payer pays, what the
  patient owes, and which rules (frequency, pre-authorization, alternate
  benefit, annual maximum) affect the claim.

KEY CONCEPTS IN THIS FILE (types.go):
  - BenefitsUsed: per-patient per-benefit-year running totals (snapshot)
  - LedgerDelta: the proposed ledger change a validation pass produces
  - HistoryRecord: one prior procedure, used only for frequency counting
  - Request: one procedure to validate
  - ValidationResult / PlanValidation: the outputs

DESIGN PRINCIPLES:
  1. Purity: validators never mutate shared state; they read a snapshot
     and return a delta for the caller to persist
  2. Precision: all money is decimal.Decimal; rounding happens only at
     presentation
  3. Total preservation: insurer amount + patient amount equals the
     requested cost exactly, covered or not

SEE ALSO:
  - validator.go: Single-procedure validation
  - treatmentplan.go: Ordered multi-procedure fold over one ledger
  - interfaces.go: Collaborator store interfaces
*/
package coverage

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/lumident/benefits-engine/catalog"
)

// =============================================================================
// BENEFIT BUCKETS - Which ledger total a category accrues against
// =============================================================================

// Bucket identifies the ledger total a procedure's insurer payment
// accrues against.
type Bucket string

const (
	BucketPreventive  Bucket = "preventive"
	BucketBasic       Bucket = "basic"
	BucketMajor       Bucket = "major"
	BucketOrthodontic Bucket = "orthodontic"
)

// BucketFor maps a procedure category to its ledger bucket.
func BucketFor(c catalog.Category) Bucket {
	switch c {
	case catalog.Diagnostic, catalog.Preventive:
		return BucketPreventive
	case catalog.Prosthodontic:
		return BucketMajor
	case catalog.Orthodontic:
		return BucketOrthodontic
	default:
		return BucketBasic
	}
}

// =============================================================================
// BENEFITS LEDGER - Snapshot and delta
// =============================================================================

// BenefitsUsed is the running-total snapshot for one
// (patient, plan, benefit year). The engine only reads it; writes go
// through the caller's store as LedgerDelta applications.
type BenefitsUsed struct {
	PreventiveUsed  decimal.Decimal
	BasicUsed       decimal.Decimal
	MajorUsed       decimal.Decimal
	OrthodonticUsed decimal.Decimal

	DeductibleMetIndividual decimal.Decimal
	DeductibleMetFamily     decimal.Decimal
}

// Apply returns a new snapshot with the delta added. The receiver is
// unchanged.
func (b BenefitsUsed) Apply(d LedgerDelta) BenefitsUsed {
	return BenefitsUsed{
		PreventiveUsed:          b.PreventiveUsed.Add(d.Preventive),
		BasicUsed:               b.BasicUsed.Add(d.Basic),
		MajorUsed:               b.MajorUsed.Add(d.Major),
		OrthodonticUsed:         b.OrthodonticUsed.Add(d.Orthodontic),
		DeductibleMetIndividual: b.DeductibleMetIndividual.Add(d.DeductibleIndividual),
		DeductibleMetFamily:     b.DeductibleMetFamily.Add(d.DeductibleFamily),
	}
}

// LedgerDelta is the proposed ledger change produced by a validation
// pass. The caller persists it atomically with the claim it belongs to.
type LedgerDelta struct {
	Preventive  decimal.Decimal
	Basic       decimal.Decimal
	Major       decimal.Decimal
	Orthodontic decimal.Decimal

	DeductibleIndividual decimal.Decimal
	DeductibleFamily     decimal.Decimal
}

// IsZero reports whether the delta changes nothing.
func (d LedgerDelta) IsZero() bool {
	return d.Preventive.IsZero() && d.Basic.IsZero() && d.Major.IsZero() &&
		d.Orthodontic.IsZero() && d.DeductibleIndividual.IsZero() && d.DeductibleFamily.IsZero()
}

// add accumulates the insurer amount for a bucket plus the deductible
// consumed by one procedure.
func (d LedgerDelta) add(bucket Bucket, insurer, deductible decimal.Decimal) LedgerDelta {
	switch bucket {
	case BucketPreventive:
		d.Preventive = d.Preventive.Add(insurer)
	case BucketBasic:
		d.Basic = d.Basic.Add(insurer)
	case BucketMajor:
		d.Major = d.Major.Add(insurer)
	case BucketOrthodontic:
		d.Orthodontic = d.Orthodontic.Add(insurer)
	}
	d.DeductibleIndividual = d.DeductibleIndividual.Add(deductible)
	d.DeductibleFamily = d.DeductibleFamily.Add(deductible)
	return d
}

// =============================================================================
// HISTORY AND REQUEST
// =============================================================================

// HistoryRecord is one prior procedure. It exists only for frequency
// counting; amounts live in the ledger.
type HistoryRecord struct {
	Code        string
	ServiceDate time.Time
	Tooth       string
	Quadrant    string
	Surfaces    []string
}

// Request is one procedure to validate.
type Request struct {
	Code     string
	Cost     decimal.Decimal
	Tooth    string
	Surfaces []string
	Quadrant string

	// ServiceDate defaults to now when zero.
	ServiceDate time.Time
}

// =============================================================================
// RESULTS
// =============================================================================

// ValidationResult is the outcome of validating one procedure.
//
// Invariant: InsurerAmount + PatientAmount always equals the requested
// cost exactly, covered or not.
type ValidationResult struct {
	Code string
	Cost decimal.Decimal

	Covered          bool
	CoverageFraction decimal.Decimal
	InsurerAmount    decimal.Decimal
	PatientAmount    decimal.Decimal

	DeductibleApplied  bool
	DeductibleConsumed decimal.Decimal

	RequiresPreAuth   bool
	FrequencyExceeded bool

	AlternateCode string

	Warnings            []string
	MissingRequirements []string
}

// PlanValidation is the outcome of validating an ordered treatment
// plan as one fiscal pass.
type PlanValidation struct {
	// Results, in the same order as the input procedures. Procedures
	// skipped from totals (no code, non-positive fee) do not appear.
	Results []ValidationResult

	TotalCost    decimal.Decimal
	TotalInsurer decimal.Decimal
	TotalPatient decimal.Decimal

	// Headroom left after the pass.
	RemainingDeductible    decimal.Decimal
	RemainingAnnualMaximum decimal.Decimal

	// Delta is the proposed ledger change for the whole pass.
	Delta LedgerDelta
}
