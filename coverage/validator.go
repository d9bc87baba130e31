/*
validator.go - Single-procedure coverage validation

PURPOSE:
  The core algorithm. Given a plan, a ledger snapshot, procedure
  history and one procedure request, produce a ValidationResult with
  the insurer/patient split and every rule flag that applies.

STEPS, IN ORDER:
  1. Resolve the code in the catalog; unknown codes are fully patient
     responsibility with a warning, never an error
  2. Resolve the coverage rule (code, else category, else not covered)
  3. Count qualifying history inside the frequency lookback window
  4. Surface pre-authorization requirements (reported, never checked)
  5. Attach the alternate-benefit code as a non-blocking warning
  6. Consume deductible and apply the coverage fraction
  7. Cap the insurer amount at remaining maximums
  8. Patient amount = cost - insurer amount, so the sum invariant
     holds exactly

FREQUENCY AND DEDUCTIBLE:
  A frequency-exceeded procedure skips deductible consumption and is
  costed as if the deductible had already been met, and it still
  reports Covered=true. The exceeded flag and warning carry the
  signal; blocking is a payer decision, not an estimation one.

CONCURRENCY:
  Validate is a pure function of its inputs. The Validator holds only
  the read-only catalog, so one Validator may serve any number of
  concurrent callers.

SEE ALSO:
  - treatmentplan.go: Folding this over an ordered procedure list
  - plan: Rule resolution and configuration validation
*/
package coverage

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lumident/benefits-engine/catalog"
	"github.com/lumident/benefits-engine/plan"
)

// Validator validates single procedures against a plan and ledger
// snapshot.
type Validator struct {
	Catalog CatalogProvider
}

// NewValidator creates a validator over the given catalog.
func NewValidator(c CatalogProvider) *Validator {
	return &Validator{Catalog: c}
}

// Validate runs the coverage algorithm for one procedure request.
func (v *Validator) Validate(p plan.InsurancePlan, used BenefitsUsed, history []HistoryRecord, req Request) ValidationResult {
	result := ValidationResult{
		Code:          req.Code,
		Cost:          req.Cost,
		InsurerAmount: decimal.Zero,
		PatientAmount: req.Cost,
	}

	serviceDate := req.ServiceDate
	if serviceDate.IsZero() {
		serviceDate = time.Now().UTC()
	}

	// Step 1: resolve the code.
	proc, ok := v.Catalog.Lookup(req.Code)
	if !ok {
		result.Warnings = append(result.Warnings, fmt.Sprintf("Invalid CDT code: %s", req.Code))
		return result
	}

	// Step 2: resolve the coverage rule.
	rule, ok := p.RuleFor(proc.Code, proc.Category)
	if !ok {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("%s is not covered under %s", proc.Code, p.PlanName))
		return result
	}

	result.Covered = true
	result.CoverageFraction = rule.Fraction
	result.MissingRequirements = structuralGaps(proc, rule, req)

	// Step 3: frequency limit.
	if limit, ok := p.FrequencyFor(proc.Code, proc.Category); ok {
		count := countOccurrences(history, limit, req, serviceDate)
		if count >= limit.MaxCount {
			result.FrequencyExceeded = true
			result.Warnings = append(result.Warnings,
				frequencyWarning(proc.Code, limit, count))
		}
	}

	// Step 4: pre-authorization. The validator states what is needed;
	// it does not check what is on file.
	if pa, ok := p.PreAuthFor(proc.Code, proc.Category); ok && pa.Required {
		result.RequiresPreAuth = true
		for _, doc := range pa.Documents {
			result.MissingRequirements = append(result.MissingRequirements,
				fmt.Sprintf("pre-authorization: %s", doc))
		}
	}

	// Step 5: alternate benefit. Non-blocking; amounts are unchanged.
	if alt := p.AlternateFor(proc.Code, rule); alt != "" {
		result.AlternateCode = alt
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("Alternate benefit applies: %s may be reimbursed at the %s rate", proc.Code, alt))
	}

	// Step 6: deductible, then coverage fraction.
	bucket := BucketFor(proc.Category)
	insurable := req.Cost
	if deductibleApplies(p, rule, bucket) && !result.FrequencyExceeded {
		remaining := p.DeductibleIndividual.Sub(used.DeductibleMetIndividual)
		if remaining.IsPositive() {
			consumed := decimal.Min(remaining, req.Cost)
			result.DeductibleApplied = true
			result.DeductibleConsumed = consumed
			insurable = req.Cost.Sub(consumed)
		}
	}
	insurer := insurable.Mul(rule.Fraction)

	// Step 7: cap at remaining maximums.
	if headroom, capped := remainingCap(p, used, bucket); capped && insurer.GreaterThan(headroom) {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("Benefit maximum reached: insurer payment reduced from %s to %s",
				insurer.StringFixed(2), headroom.StringFixed(2)))
		insurer = headroom
	}

	// Step 8: the sum invariant.
	result.InsurerAmount = insurer
	result.PatientAmount = req.Cost.Sub(insurer)
	return result
}

// deductibleApplies folds the plan-level preventive waiver into the
// rule-level flag.
func deductibleApplies(p plan.InsurancePlan, rule plan.CoverageRule, bucket Bucket) bool {
	if !rule.DeductibleApplies {
		return false
	}
	if bucket == BucketPreventive && !p.DeductibleAppliesToPreventive {
		return false
	}
	return true
}

// remainingCap returns the insurer-payment headroom for a bucket.
// capped is false when no maximum binds (nothing to cap against).
func remainingCap(p plan.InsurancePlan, used BenefitsUsed, bucket Bucket) (headroom decimal.Decimal, capped bool) {
	switch bucket {
	case BucketOrthodontic:
		if p.OrthoLifetimeMaximum == nil {
			return decimal.Zero, false
		}
		headroom = p.OrthoLifetimeMaximum.Sub(used.OrthodonticUsed)
	default:
		headroom = p.AnnualMaximum.Sub(used.BasicUsed).Sub(used.MajorUsed)
		if bucket == BucketPreventive && p.PreventiveMaximum != nil {
			headroom = decimal.Min(headroom, p.PreventiveMaximum.Sub(used.PreventiveUsed))
		}
	}
	if headroom.IsNegative() {
		headroom = decimal.Zero
	}
	return headroom, true
}

// structuralGaps lists tooth/surface/quadrant data the request needs
// but does not carry. Surfacing instead of aborting keeps a plan pass
// total-preserving for incomplete charting.
func structuralGaps(proc catalog.ProcedureCode, rule plan.CoverageRule, req Request) []string {
	var gaps []string
	if (proc.RequiresTooth || rule.RequiresTooth) && req.Tooth == "" {
		gaps = append(gaps, fmt.Sprintf("tooth number required for %s", proc.Code))
	}
	if (proc.RequiresSurface || rule.RequiresSurface) && len(req.Surfaces) == 0 {
		gaps = append(gaps, fmt.Sprintf("surfaces required for %s", proc.Code))
	}
	if (proc.RequiresQuadrant || rule.RequiresQuadrant) && req.Quadrant == "" {
		gaps = append(gaps, fmt.Sprintf("quadrant required for %s", proc.Code))
	}
	return gaps
}

// countOccurrences counts history records of the same code (and, when
// the limit is scoped, the same tooth or quadrant) with a service date
// in [serviceDate - lookback, serviceDate).
func countOccurrences(history []HistoryRecord, limit plan.FrequencyLimit, req Request, serviceDate time.Time) int {
	lookbackDays, bounded := limit.LookbackDays()
	windowStart := time.Time{}
	if bounded {
		windowStart = serviceDate.AddDate(0, 0, -lookbackDays)
	}

	count := 0
	for _, h := range history {
		if h.Code != req.Code {
			continue
		}
		if limit.PerTooth && h.Tooth != req.Tooth {
			continue
		}
		if limit.PerQuadrant && h.Quadrant != req.Quadrant {
			continue
		}
		if !h.ServiceDate.Before(serviceDate) {
			continue
		}
		if bounded && h.ServiceDate.Before(windowStart) {
			continue
		}
		count++
	}
	return count
}

func frequencyWarning(code string, limit plan.FrequencyLimit, count int) string {
	if days, bounded := limit.LookbackDays(); bounded {
		return fmt.Sprintf("Frequency limit exceeded for %s: %s (%d in the last %d days)",
			code, limit.Describe(), count, days)
	}
	return fmt.Sprintf("Frequency limit exceeded for %s: %s (%d on record)",
		code, limit.Describe(), count)
}
