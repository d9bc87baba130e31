package coverage_test

import (
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumident/benefits-engine/catalog"
	"github.com/lumident/benefits-engine/coverage"
	"github.com/lumident/benefits-engine/plan"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newValidator() *coverage.Validator {
	return coverage.NewValidator(catalog.Reference())
}

func defaultPlan() plan.InsurancePlan {
	return plan.CreateDefaultPlan("DELTA-001", "Delta Dental PPO", "GRP-1")
}

func svc(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func assertSum(t *testing.T, r coverage.ValidationResult) {
	t.Helper()
	sum := r.InsurerAmount.Add(r.PatientAmount)
	assert.True(t, sum.Equal(r.Cost),
		"insurer %s + patient %s != cost %s", r.InsurerAmount, r.PatientAmount, r.Cost)
}

// =============================================================================
// BASELINE COVERAGE TESTS
// =============================================================================

func TestValidate_PreventiveFullyCovered(t *testing.T) {
	// GIVEN: D1110 cleaning at $89.00, no history, deductible unmet
	// WHEN: Validating against the reference PPO
	// THEN: 100% coverage, insurer $89.00, patient $0.00, no deductible

	v := newValidator()

	result := v.Validate(defaultPlan(), coverage.BenefitsUsed{}, nil, coverage.Request{
		Code:        "D1110",
		Cost:        d("89.00"),
		ServiceDate: svc(2025, time.March, 10),
	})

	assert.True(t, result.Covered)
	assert.True(t, result.CoverageFraction.Equal(d("1.00")))
	assert.True(t, result.InsurerAmount.Equal(d("89.00")), "insurer %s", result.InsurerAmount)
	assert.True(t, result.PatientAmount.IsZero(), "patient %s", result.PatientAmount)
	assert.False(t, result.DeductibleApplied)
	assert.False(t, result.FrequencyExceeded)
	assert.Empty(t, result.Warnings)
	assertSum(t, result)
}

func TestValidate_DeductibleConsumedBeforeFraction(t *testing.T) {
	// GIVEN: D2392 at $190.00, tooth 14, surfaces M+O, $50 deductible remaining
	// WHEN: Validating
	// THEN: deductible consumes $50, insurer = (190-50)*0.8 = $112.00,
	//       patient = $78.00

	v := newValidator()

	result := v.Validate(defaultPlan(), coverage.BenefitsUsed{}, nil, coverage.Request{
		Code:        "D2392",
		Cost:        d("190.00"),
		Tooth:       "14",
		Surfaces:    []string{"M", "O"},
		ServiceDate: svc(2025, time.March, 10),
	})

	assert.True(t, result.Covered)
	assert.True(t, result.DeductibleApplied)
	assert.True(t, result.DeductibleConsumed.Equal(d("50.00")), "consumed %s", result.DeductibleConsumed)
	assert.True(t, result.InsurerAmount.Equal(d("112.00")), "insurer %s", result.InsurerAmount)
	assert.True(t, result.PatientAmount.Equal(d("78.00")), "patient %s", result.PatientAmount)
	assertSum(t, result)
}

func TestValidate_DeductiblePartiallyMet(t *testing.T) {
	// $30 of the $50 deductible already met: only $20 left to consume.
	v := newValidator()
	used := coverage.BenefitsUsed{DeductibleMetIndividual: d("30.00")}

	result := v.Validate(defaultPlan(), used, nil, coverage.Request{
		Code:        "D2140",
		Cost:        d("115.00"),
		Tooth:       "19",
		Surfaces:    []string{"O"},
		ServiceDate: svc(2025, time.March, 10),
	})

	assert.True(t, result.DeductibleConsumed.Equal(d("20.00")))
	// (115 - 20) * 0.8 = 76
	assert.True(t, result.InsurerAmount.Equal(d("76.00")), "insurer %s", result.InsurerAmount)
	assertSum(t, result)
}

func TestValidate_CostBelowDeductible_AllConsumed(t *testing.T) {
	// A $38 procedure against a fresh $50 deductible: the whole cost is
	// deductible, insurer pays nothing.
	v := newValidator()
	p := defaultPlan()
	p.DeductibleAppliesToPreventive = true
	p.CategoryRules[catalog.Preventive] = plan.CoverageRule{
		Fraction: d("1.00"), DeductibleApplies: true,
	}

	result := v.Validate(p, coverage.BenefitsUsed{}, nil, coverage.Request{
		Code:        "D1206",
		Cost:        d("38.00"),
		ServiceDate: svc(2025, time.March, 10),
	})

	assert.True(t, result.DeductibleConsumed.Equal(d("38.00")))
	assert.True(t, result.InsurerAmount.IsZero())
	assert.True(t, result.PatientAmount.Equal(d("38.00")))
	assertSum(t, result)
}

func TestValidate_PreventiveDeductibleWaived(t *testing.T) {
	// The rule says the deductible applies, but the plan waives it for
	// the preventive bucket.
	v := newValidator()
	p := defaultPlan()
	p.CategoryRules[catalog.Preventive] = plan.CoverageRule{
		Fraction: d("1.00"), DeductibleApplies: true,
	}
	p.DeductibleAppliesToPreventive = false

	result := v.Validate(p, coverage.BenefitsUsed{}, nil, coverage.Request{
		Code:        "D1110",
		Cost:        d("89.00"),
		ServiceDate: svc(2025, time.March, 10),
	})

	assert.False(t, result.DeductibleApplied)
	assert.True(t, result.InsurerAmount.Equal(d("89.00")))
}

// =============================================================================
// ANNUAL MAXIMUM TESTS
// =============================================================================

func TestValidate_AnnualMaximumCapsInsurer(t *testing.T) {
	// GIVEN: D2740 crown at $1200.00 with $1400 of the $1500 annual max
	//        already used and the deductible met
	// WHEN: Validating
	// THEN: pre-cap insurer share $600.00 is capped to $100.00,
	//       patient owes $1100.00, with a warning

	v := newValidator()
	used := coverage.BenefitsUsed{
		BasicUsed:               d("1400.00"),
		DeductibleMetIndividual: d("50.00"),
	}

	result := v.Validate(defaultPlan(), used, nil, coverage.Request{
		Code:        "D2740",
		Cost:        d("1200.00"),
		Tooth:       "30",
		ServiceDate: svc(2025, time.October, 2),
	})

	assert.True(t, result.Covered)
	assert.True(t, result.InsurerAmount.Equal(d("100.00")), "insurer %s", result.InsurerAmount)
	assert.True(t, result.PatientAmount.Equal(d("1100.00")), "patient %s", result.PatientAmount)
	require.NotEmpty(t, result.Warnings)
	assert.Contains(t, result.Warnings[len(result.Warnings)-1], "Benefit maximum reached")
	assertSum(t, result)
}

func TestValidate_AnnualMaximumExhausted(t *testing.T) {
	// Maximum fully used: insurer pays zero but the procedure is still
	// reported as covered.
	v := newValidator()
	used := coverage.BenefitsUsed{
		BasicUsed:               d("1500.00"),
		DeductibleMetIndividual: d("50.00"),
	}

	result := v.Validate(defaultPlan(), used, nil, coverage.Request{
		Code:        "D2140",
		Cost:        d("115.00"),
		Tooth:       "19",
		Surfaces:    []string{"O"},
		ServiceDate: svc(2025, time.November, 20),
	})

	assert.True(t, result.Covered)
	assert.True(t, result.InsurerAmount.IsZero())
	assert.True(t, result.PatientAmount.Equal(d("115.00")))
	assertSum(t, result)
}

func TestValidate_OrthoUsesLifetimeMaximum(t *testing.T) {
	// Orthodontics caps against its own lifetime maximum, not the
	// annual maximum, even when the annual max is exhausted.
	v := newValidator()
	used := coverage.BenefitsUsed{
		BasicUsed:       d("1500.00"),
		OrthodonticUsed: d("900.00"),
	}

	result := v.Validate(defaultPlan(), used, nil, coverage.Request{
		Code:        "D8080",
		Cost:        d("5200.00"),
		ServiceDate: svc(2025, time.May, 5),
	})

	// 50% of 5200 = 2600, capped to 1000 - 900 = 100.
	assert.True(t, result.InsurerAmount.Equal(d("100.00")), "insurer %s", result.InsurerAmount)
	assertSum(t, result)
}

func TestValidate_NoOrthoMaximum_Uncapped(t *testing.T) {
	v := newValidator()
	p := defaultPlan()
	p.OrthoLifetimeMaximum = nil

	result := v.Validate(p, coverage.BenefitsUsed{}, nil, coverage.Request{
		Code:        "D8080",
		Cost:        d("5200.00"),
		ServiceDate: svc(2025, time.May, 5),
	})

	assert.True(t, result.InsurerAmount.Equal(d("2600.00")), "insurer %s", result.InsurerAmount)
}

// =============================================================================
// UNKNOWN / UNCOVERED CODE TESTS
// =============================================================================

func TestValidate_UnknownCode_PatientPaysAll(t *testing.T) {
	// Unknown codes are a warning, never an error, and never abort.
	v := newValidator()

	result := v.Validate(defaultPlan(), coverage.BenefitsUsed{}, nil, coverage.Request{
		Code:        "D9999",
		Cost:        d("250.00"),
		ServiceDate: svc(2025, time.March, 10),
	})

	assert.False(t, result.Covered)
	assert.True(t, result.InsurerAmount.IsZero())
	assert.True(t, result.PatientAmount.Equal(d("250.00")))
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "Invalid CDT code: D9999", result.Warnings[0])
	assertSum(t, result)
}

func TestValidate_CodeWithoutRule_NotCovered(t *testing.T) {
	// A known code with neither a code nor a category rule is patient
	// responsibility with a plan-specific warning.
	v := newValidator()
	p := plan.InsurancePlan{
		PlanName:             "Preventive Only",
		AnnualMaximum:        d("1000.00"),
		DeductibleIndividual: d("0"),
		CategoryRules: map[catalog.Category]plan.CoverageRule{
			catalog.Preventive: {Fraction: d("1.00")},
		},
	}

	result := v.Validate(p, coverage.BenefitsUsed{}, nil, coverage.Request{
		Code:        "D2140",
		Cost:        d("115.00"),
		Tooth:       "19",
		Surfaces:    []string{"O"},
		ServiceDate: svc(2025, time.March, 10),
	})

	assert.False(t, result.Covered)
	assert.True(t, result.PatientAmount.Equal(d("115.00")))
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "D2140 is not covered under Preventive Only", result.Warnings[0])
	assertSum(t, result)
}

// =============================================================================
// FREQUENCY LIMIT TESTS
// =============================================================================

func TestValidate_FrequencyExceeded_StillCoveredNonBlocking(t *testing.T) {
	// GIVEN: Two D1110 cleanings inside the 1-year lookback (limit: 2/yr)
	// WHEN: Validating a third
	// THEN: FrequencyExceeded with a warning, but Covered stays true

	v := newValidator()
	history := []coverage.HistoryRecord{
		{Code: "D1110", ServiceDate: svc(2025, time.January, 15)},
		{Code: "D1110", ServiceDate: svc(2025, time.July, 10)},
	}

	result := v.Validate(defaultPlan(), coverage.BenefitsUsed{}, history, coverage.Request{
		Code:        "D1110",
		Cost:        d("89.00"),
		ServiceDate: svc(2025, time.November, 5),
	})

	assert.True(t, result.Covered)
	assert.True(t, result.FrequencyExceeded)
	require.NotEmpty(t, result.Warnings)
	assert.Contains(t, result.Warnings[0], "Frequency limit exceeded for D1110")
}

func TestValidate_FrequencyWithinLimit(t *testing.T) {
	// One cleaning on record: the second is fine.
	v := newValidator()
	history := []coverage.HistoryRecord{
		{Code: "D1110", ServiceDate: svc(2025, time.January, 15)},
	}

	result := v.Validate(defaultPlan(), coverage.BenefitsUsed{}, history, coverage.Request{
		Code:        "D1110",
		Cost:        d("89.00"),
		ServiceDate: svc(2025, time.July, 10),
	})

	assert.False(t, result.FrequencyExceeded)
	assert.Empty(t, result.Warnings)
}

func TestValidate_FrequencyOldHistoryOutsideLookback(t *testing.T) {
	// Records older than the lookback window do not count.
	v := newValidator()
	history := []coverage.HistoryRecord{
		{Code: "D1110", ServiceDate: svc(2023, time.January, 15)},
		{Code: "D1110", ServiceDate: svc(2023, time.July, 10)},
	}

	result := v.Validate(defaultPlan(), coverage.BenefitsUsed{}, history, coverage.Request{
		Code:        "D1110",
		Cost:        d("89.00"),
		ServiceDate: svc(2025, time.November, 5),
	})

	assert.False(t, result.FrequencyExceeded)
}

func TestValidate_FrequencySkipsDeductibleConsumption(t *testing.T) {
	// A frequency-exceeded procedure is costed as if the deductible had
	// been met: no consumption, fraction applies to the full cost.
	v := newValidator()
	history := []coverage.HistoryRecord{
		{Code: "D4910", ServiceDate: svc(2025, time.January, 10)},
		{Code: "D4910", ServiceDate: svc(2025, time.March, 10)},
		{Code: "D4910", ServiceDate: svc(2025, time.May, 10)},
		{Code: "D4910", ServiceDate: svc(2025, time.July, 10)},
	}

	result := v.Validate(defaultPlan(), coverage.BenefitsUsed{}, history, coverage.Request{
		Code:        "D4910",
		Cost:        d("135.00"),
		ServiceDate: svc(2025, time.September, 10),
	})

	assert.True(t, result.FrequencyExceeded)
	assert.False(t, result.DeductibleApplied)
	assert.True(t, result.DeductibleConsumed.IsZero())
	// 135 * 0.8 with no deductible taken out.
	assert.True(t, result.InsurerAmount.Equal(d("108.00")), "insurer %s", result.InsurerAmount)
	assertSum(t, result)
}

func TestValidate_PerToothFrequency_OtherToothDoesNotCount(t *testing.T) {
	// D2740 is limited per tooth: a crown on tooth 3 does not block a
	// crown on tooth 14.
	v := newValidator()
	history := []coverage.HistoryRecord{
		{Code: "D2740", Tooth: "3", ServiceDate: svc(2024, time.June, 1)},
	}

	result := v.Validate(defaultPlan(), coverage.BenefitsUsed{}, history, coverage.Request{
		Code:        "D2740",
		Cost:        d("1200.00"),
		Tooth:       "14",
		ServiceDate: svc(2025, time.June, 1),
	})
	assert.False(t, result.FrequencyExceeded)

	sameTooth := v.Validate(defaultPlan(), coverage.BenefitsUsed{}, history, coverage.Request{
		Code:        "D2740",
		Cost:        d("1200.00"),
		Tooth:       "3",
		ServiceDate: svc(2025, time.June, 1),
	})
	assert.True(t, sameTooth.FrequencyExceeded)
}

func TestValidate_PerQuadrantFrequency(t *testing.T) {
	v := newValidator()
	history := []coverage.HistoryRecord{
		{Code: "D4341", Quadrant: "UR", ServiceDate: svc(2025, time.February, 1)},
	}

	otherQuadrant := v.Validate(defaultPlan(), coverage.BenefitsUsed{}, history, coverage.Request{
		Code:        "D4341",
		Cost:        d("275.00"),
		Quadrant:    "LL",
		ServiceDate: svc(2025, time.August, 1),
	})
	assert.False(t, otherQuadrant.FrequencyExceeded)

	sameQuadrant := v.Validate(defaultPlan(), coverage.BenefitsUsed{}, history, coverage.Request{
		Code:        "D4341",
		Cost:        d("275.00"),
		Quadrant:    "UR",
		ServiceDate: svc(2025, time.August, 1),
	})
	assert.True(t, sameQuadrant.FrequencyExceeded)
}

func TestValidate_LifetimeLimitIgnoresAge(t *testing.T) {
	// Lifetime limits have no lookback: a decades-old record counts.
	v := newValidator()
	p := defaultPlan()
	p.CodeFrequencyLimits["D8080"] = plan.FrequencyLimit{MaxCount: 1, PeriodUnit: plan.UnitLifetime}

	history := []coverage.HistoryRecord{
		{Code: "D8080", ServiceDate: svc(2005, time.June, 1)},
	}

	result := v.Validate(p, coverage.BenefitsUsed{}, history, coverage.Request{
		Code:        "D8080",
		Cost:        d("5200.00"),
		ServiceDate: svc(2025, time.June, 1),
	})
	assert.True(t, result.FrequencyExceeded)
}

// =============================================================================
// PRE-AUTHORIZATION TESTS
// =============================================================================

func TestValidate_PreAuthReported(t *testing.T) {
	// The validator states what pre-authorization needs; it never checks
	// what is on file.
	v := newValidator()

	result := v.Validate(defaultPlan(), coverage.BenefitsUsed{}, nil, coverage.Request{
		Code:        "D2740",
		Cost:        d("1200.00"),
		Tooth:       "30",
		ServiceDate: svc(2025, time.March, 10),
	})

	assert.True(t, result.RequiresPreAuth)
	assert.Contains(t, result.MissingRequirements, "pre-authorization: x-rays")
	assert.Contains(t, result.MissingRequirements, "pre-authorization: narrative")
	// Amounts are unaffected by the pre-auth flag.
	assert.True(t, result.InsurerAmount.IsPositive())
	assertSum(t, result)
}

// =============================================================================
// ALTERNATE BENEFIT TESTS
// =============================================================================

func TestValidate_AlternateBenefit_NonBlockingWarning(t *testing.T) {
	// Posterior composite downgrade: warning plus AlternateCode, amounts
	// computed from the billed code.
	v := newValidator()

	result := v.Validate(defaultPlan(), coverage.BenefitsUsed{}, nil, coverage.Request{
		Code:        "D2391",
		Cost:        d("150.00"),
		Tooth:       "19",
		Surfaces:    []string{"O"},
		ServiceDate: svc(2025, time.March, 10),
	})

	assert.Equal(t, "D2140", result.AlternateCode)
	require.NotEmpty(t, result.Warnings)
	assert.Equal(t, "Alternate benefit applies: D2391 may be reimbursed at the D2140 rate", result.Warnings[0])
	// (150 - 50) * 0.8 = 80: billed-code economics, not the alternate's.
	assert.True(t, result.InsurerAmount.Equal(d("80.00")), "insurer %s", result.InsurerAmount)
	assertSum(t, result)
}

// =============================================================================
// STRUCTURAL REQUIREMENT TESTS
// =============================================================================

func TestValidate_MissingToothAndSurfaces(t *testing.T) {
	v := newValidator()

	result := v.Validate(defaultPlan(), coverage.BenefitsUsed{}, nil, coverage.Request{
		Code:        "D2392",
		Cost:        d("190.00"),
		ServiceDate: svc(2025, time.March, 10),
	})

	assert.Contains(t, result.MissingRequirements, "tooth number required for D2392")
	assert.Contains(t, result.MissingRequirements, "surfaces required for D2392")
	// Gaps are surfaced, not blocking: amounts are still computed.
	assert.True(t, result.Covered)
	assertSum(t, result)
}

func TestValidate_MissingQuadrant(t *testing.T) {
	v := newValidator()

	result := v.Validate(defaultPlan(), coverage.BenefitsUsed{}, nil, coverage.Request{
		Code:        "D4341",
		Cost:        d("275.00"),
		ServiceDate: svc(2025, time.March, 10),
	})

	assert.Contains(t, result.MissingRequirements, "quadrant required for D4341")
}

// =============================================================================
// PURITY AND INVARIANT TESTS
// =============================================================================

func TestValidate_Idempotent(t *testing.T) {
	// Same inputs, same outputs: validation never mutates its inputs.
	v := newValidator()
	used := coverage.BenefitsUsed{DeductibleMetIndividual: d("20.00"), BasicUsed: d("300.00")}
	req := coverage.Request{
		Code:        "D2392",
		Cost:        d("190.00"),
		Tooth:       "14",
		Surfaces:    []string{"M", "O"},
		ServiceDate: svc(2025, time.March, 10),
	}

	first := v.Validate(defaultPlan(), used, nil, req)
	second := v.Validate(defaultPlan(), used, nil, req)

	assert.True(t, first.InsurerAmount.Equal(second.InsurerAmount))
	assert.True(t, first.PatientAmount.Equal(second.PatientAmount))
	assert.True(t, first.DeductibleConsumed.Equal(second.DeductibleConsumed))
	assert.True(t, used.DeductibleMetIndividual.Equal(d("20.00")), "input snapshot mutated")
}

func TestValidate_ConcurrentCallsAgree(t *testing.T) {
	// GIVEN: One validator and one shared plan/snapshot/history
	// WHEN: Validating the same procedure from many goroutines at once
	// THEN: Every goroutine sees the result a lone caller would

	v := newValidator()
	p := defaultPlan()
	used := coverage.BenefitsUsed{DeductibleMetIndividual: d("50.00")}
	history := []coverage.HistoryRecord{
		{Code: "D1110", ServiceDate: svc(2025, time.January, 15)},
	}
	req := coverage.Request{
		Code: "D2392", Cost: d("190.00"), Tooth: "14",
		Surfaces: []string{"M", "O"}, ServiceDate: svc(2025, time.July, 10),
	}

	base := v.Validate(p, used, history, req)

	const workers = 16
	results := make([]coverage.ValidationResult, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = v.Validate(p, used, history, req)
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		assert.True(t, r.InsurerAmount.Equal(base.InsurerAmount))
		assert.True(t, r.PatientAmount.Equal(base.PatientAmount))
		assert.True(t, r.DeductibleConsumed.Equal(base.DeductibleConsumed))
		assert.Equal(t, base.Warnings, r.Warnings)
		assertSum(t, r)
	}
}

func TestValidate_SumInvariantAcrossCases(t *testing.T) {
	// insurer + patient == cost holds for every path through the
	// validator: covered, uncovered, unknown, capped, frequency-hit.
	v := newValidator()
	history := []coverage.HistoryRecord{
		{Code: "D1110", ServiceDate: svc(2025, time.January, 15)},
		{Code: "D1110", ServiceDate: svc(2025, time.July, 10)},
	}
	used := coverage.BenefitsUsed{BasicUsed: d("1450.00"), DeductibleMetIndividual: d("50.00")}

	requests := []coverage.Request{
		{Code: "D1110", Cost: d("89.00")},
		{Code: "D9999", Cost: d("250.00")},
		{Code: "D2740", Cost: d("1200.00"), Tooth: "30"},
		{Code: "D2392", Cost: d("190.00"), Tooth: "14", Surfaces: []string{"M", "O"}},
		{Code: "D8080", Cost: d("5200.00")},
		{Code: "D0120", Cost: d("0.01")},
	}

	for _, req := range requests {
		req.ServiceDate = svc(2025, time.November, 5)
		assertSum(t, v.Validate(defaultPlan(), used, history, req))
	}
}
