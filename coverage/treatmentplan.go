/*
treatmentplan.go - Ordered treatment-plan validation

PURPOSE:
  Validates an ordered procedure list as one fiscal pass. Deductible
  and annual-maximum headroom are shared across the whole plan, so
  after each procedure the portion of deductible actually consumed and
  the insurer amount actually paid are folded into a working ledger
  copy before the next procedure is validated. Caller-supplied order is
  the tie-break for first claim on that headroom.

SKIP RULES:
  A procedure with no code or a non-positive fee is dropped from the
  pass entirely - not an error, and not part of the totals. Everything
  else produces a result, covered or not.

OUTPUT:
  Per-procedure results (input order, minus skipped lines), plan
  totals, post-pass remaining deductible and annual maximum, and the
  LedgerDelta the caller persists once the plan is accepted.
*/
package coverage

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/lumident/benefits-engine/plan"
)

// PlanValidator folds the single-procedure validator over an ordered
// procedure list carrying ledger consumption forward.
type PlanValidator struct {
	Coverage *Validator
}

// NewPlanValidator creates a treatment-plan validator over the given
// catalog-backed coverage validator.
func NewPlanValidator(v *Validator) *PlanValidator {
	return &PlanValidator{Coverage: v}
}

// Validate runs one fiscal pass over the procedures in caller order.
// The input snapshot is never mutated; the working copy exists only
// inside the pass.
func (pv *PlanValidator) Validate(p plan.InsurancePlan, used BenefitsUsed, history []HistoryRecord, procedures []Request) PlanValidation {
	out := PlanValidation{
		TotalCost:    decimal.Zero,
		TotalInsurer: decimal.Zero,
		TotalPatient: decimal.Zero,
	}

	working := used
	for _, req := range procedures {
		if strings.TrimSpace(req.Code) == "" || !req.Cost.IsPositive() {
			continue
		}

		result := pv.Coverage.Validate(p, working, history, req)
		out.Results = append(out.Results, result)

		out.TotalCost = out.TotalCost.Add(req.Cost)
		out.TotalInsurer = out.TotalInsurer.Add(result.InsurerAmount)
		out.TotalPatient = out.TotalPatient.Add(result.PatientAmount)

		// Fold this procedure's consumption into the working ledger so
		// the next procedure cannot double-spend deductible or maximum.
		proc, ok := pv.Coverage.Catalog.Lookup(req.Code)
		if !ok {
			continue
		}
		step := LedgerDelta{}.add(BucketFor(proc.Category), result.InsurerAmount, result.DeductibleConsumed)
		working = working.Apply(step)
		out.Delta = addDeltas(out.Delta, step)
	}

	out.RemainingDeductible = clampZero(p.DeductibleIndividual.Sub(working.DeductibleMetIndividual))
	out.RemainingAnnualMaximum = clampZero(p.AnnualMaximum.Sub(working.BasicUsed).Sub(working.MajorUsed))
	return out
}

func addDeltas(a, b LedgerDelta) LedgerDelta {
	return LedgerDelta{
		Preventive:           a.Preventive.Add(b.Preventive),
		Basic:                a.Basic.Add(b.Basic),
		Major:                a.Major.Add(b.Major),
		Orthodontic:          a.Orthodontic.Add(b.Orthodontic),
		DeductibleIndividual: a.DeductibleIndividual.Add(b.DeductibleIndividual),
		DeductibleFamily:     a.DeductibleFamily.Add(b.DeductibleFamily),
	}
}

func clampZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
