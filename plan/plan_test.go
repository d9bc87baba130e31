package plan_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumident/benefits-engine/catalog"
	"github.com/lumident/benefits-engine/plan"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// =============================================================================
// RULE RESOLUTION TESTS
// =============================================================================

func TestRuleFor_CodeLevelWinsOverCategory(t *testing.T) {
	// GIVEN: The reference PPO covers restorative at 80% but crowns at 50%
	// WHEN: Resolving D2740 (a restorative code with a code-level rule)
	// THEN: The code-level rule wins

	p := plan.CreateDefaultPlan("payer", "PPO", "grp")

	rule, ok := p.RuleFor("D2740", catalog.Restorative)
	require.True(t, ok)
	assert.True(t, rule.Fraction.Equal(d("0.50")))

	rule, ok = p.RuleFor("D2140", catalog.Restorative)
	require.True(t, ok)
	assert.True(t, rule.Fraction.Equal(d("0.80")))
}

func TestRuleFor_NeitherCodeNorCategory(t *testing.T) {
	p := plan.InsurancePlan{PlanName: "empty"}

	_, ok := p.RuleFor("D1110", catalog.Preventive)
	assert.False(t, ok)
}

func TestAlternateFor_PlanMapWinsOverRule(t *testing.T) {
	// The plan-level alternate map overrides the rule-level code.
	p := plan.InsurancePlan{
		AlternateBenefits: map[string]string{"D2392": "D2150"},
	}
	rule := plan.CoverageRule{AlternateCode: "D2140"}

	assert.Equal(t, "D2150", p.AlternateFor("D2392", rule))
	assert.Equal(t, "D2140", p.AlternateFor("D2391", rule))
	assert.Equal(t, "", p.AlternateFor("D2391", plan.CoverageRule{}))
}

func TestAlternateFor_SelfReferenceIgnored(t *testing.T) {
	rule := plan.CoverageRule{AlternateCode: "D2140"}
	p := plan.InsurancePlan{}

	assert.Equal(t, "", p.AlternateFor("D2140", rule))
}

// =============================================================================
// FREQUENCY LIMIT TESTS
// =============================================================================

func TestLookbackDays_Units(t *testing.T) {
	days, ok := plan.FrequencyLimit{PeriodAmount: 10, PeriodUnit: plan.UnitDays}.LookbackDays()
	require.True(t, ok)
	assert.Equal(t, 10, days)

	days, ok = plan.FrequencyLimit{PeriodAmount: 6, PeriodUnit: plan.UnitMonths}.LookbackDays()
	require.True(t, ok)
	assert.Equal(t, 180, days)

	days, ok = plan.FrequencyLimit{PeriodAmount: 2, PeriodUnit: plan.UnitYears}.LookbackDays()
	require.True(t, ok)
	assert.Equal(t, 730, days)

	_, ok = plan.FrequencyLimit{PeriodUnit: plan.UnitLifetime}.LookbackDays()
	assert.False(t, ok)
}

func TestDescribe(t *testing.T) {
	f := plan.FrequencyLimit{MaxCount: 2, PeriodAmount: 1, PeriodUnit: plan.UnitYears}
	assert.Equal(t, "2 per 1 years", f.Describe())

	f = plan.FrequencyLimit{MaxCount: 1, PeriodUnit: plan.UnitLifetime}
	assert.Equal(t, "1 per lifetime", f.Describe())
}

// =============================================================================
// DEFAULT PLAN TESTS
// =============================================================================

func TestCreateDefaultPlan_PassesValidation(t *testing.T) {
	p := plan.CreateDefaultPlan("DELTA-001", "Delta Dental PPO", "GRP-1")

	require.NoError(t, p.Validate())
	assert.Equal(t, "DELTA-001", p.PayerID)
	assert.True(t, p.AnnualMaximum.Equal(d("1500.00")))
	assert.True(t, p.DeductibleIndividual.Equal(d("50.00")))
	assert.False(t, p.DeductibleAppliesToPreventive)
	require.NotNil(t, p.OrthoLifetimeMaximum)
	assert.True(t, p.OrthoLifetimeMaximum.Equal(d("1000.00")))
}

func TestCreateDefaultPlan_CoversEveryReferenceCategory(t *testing.T) {
	p := plan.CreateDefaultPlan("payer", "PPO", "grp")

	for _, c := range catalog.Categories() {
		_, ok := p.CategoryRules[c]
		assert.True(t, ok, "category %s has no default rule", c)
	}
}

func TestCreateDefaultPlan_PosteriorCompositeDowngrades(t *testing.T) {
	p := plan.CreateDefaultPlan("payer", "PPO", "grp")

	assert.Equal(t, "D2140", p.AlternateBenefits["D2391"])
	assert.Equal(t, "D2150", p.AlternateBenefits["D2392"])
	assert.Equal(t, "D2160", p.AlternateBenefits["D2393"])
	assert.Equal(t, "D2161", p.AlternateBenefits["D2394"])
}

// =============================================================================
// CONFIGURATION VALIDATION TESTS
// =============================================================================

func TestValidate_FractionOutsideRange(t *testing.T) {
	// GIVEN: A plan with a 1.5 coverage fraction
	// WHEN: Validating
	// THEN: ConfigurationError wrapping ErrInvalidConfiguration

	p := plan.InsurancePlan{
		PlanName: "broken",
		CategoryRules: map[catalog.Category]plan.CoverageRule{
			catalog.Preventive: {Fraction: d("1.5")},
		},
	}

	err := p.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, plan.ErrInvalidConfiguration))

	var cfg *plan.ConfigurationError
	require.ErrorAs(t, err, &cfg)
	assert.Equal(t, "broken", cfg.PlanName)
	require.Len(t, cfg.Defects, 1)
	assert.Contains(t, cfg.Defects[0], "outside [0,1]")
}

func TestValidate_CollectsAllDefects(t *testing.T) {
	neg := d("-10")
	p := plan.InsurancePlan{
		PlanName:             "broken",
		AnnualMaximum:        d("-1500"),
		DeductibleIndividual: d("100"),
		DeductibleFamily:     d("50"),
		PreventiveMaximum:    &neg,
		AlternateBenefits:    map[string]string{"D2392": "D2392"},
	}

	var cfg *plan.ConfigurationError
	require.ErrorAs(t, p.Validate(), &cfg)
	assert.Len(t, cfg.Defects, 4)
}

func TestValidate_FrequencyDefects(t *testing.T) {
	p := plan.InsurancePlan{
		PlanName: "broken",
		CodeFrequencyLimits: map[string]plan.FrequencyLimit{
			"D0120": {MaxCount: 0, PeriodAmount: 1, PeriodUnit: plan.UnitYears},
			"D1110": {MaxCount: 1, PeriodAmount: 0, PeriodUnit: plan.UnitMonths},
			"D0210": {MaxCount: 1, PeriodAmount: 1, PeriodUnit: plan.PeriodUnit("fortnights")},
			"D2740": {MaxCount: 1, PeriodAmount: 1, PeriodUnit: plan.UnitYears, PerTooth: true, PerQuadrant: true},
		},
	}

	var cfg *plan.ConfigurationError
	require.ErrorAs(t, p.Validate(), &cfg)
	assert.Len(t, cfg.Defects, 4)
}

func TestValidate_LifetimeNeedsNoPeriodAmount(t *testing.T) {
	p := plan.InsurancePlan{
		PlanName: "ok",
		CodeFrequencyLimits: map[string]plan.FrequencyLimit{
			"D8080": {MaxCount: 1, PeriodUnit: plan.UnitLifetime},
		},
	}

	assert.NoError(t, p.Validate())
}

// =============================================================================
// BENEFIT PERIOD TESTS
// =============================================================================

func TestBenefitYear_CalendarYear(t *testing.T) {
	p := plan.CreateDefaultPlan("payer", "PPO", "grp")

	period := p.BenefitYear(plan.PeriodCalendarYear, time.Date(2025, time.June, 15, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, 2025, period.Year())
	assert.True(t, period.Contains(time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, period.Contains(time.Date(2025, time.December, 31, 23, 0, 0, 0, time.UTC)))
	assert.False(t, period.Contains(time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)))
}

func TestBenefitYear_PolicyYear_AnchoredOnEffectiveDate(t *testing.T) {
	// GIVEN: A plan effective July 1
	// WHEN: Asking for the period containing a date before the anniversary
	// THEN: The period starts on the previous year's anniversary

	p := plan.InsurancePlan{
		EffectiveDate: time.Date(2023, time.July, 1, 0, 0, 0, 0, time.UTC),
	}

	period := p.BenefitYear(plan.PeriodPolicyYear, time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2024, time.July, 1, 0, 0, 0, 0, time.UTC), period.Start)
	assert.Equal(t, 2024, period.Year())

	period = p.BenefitYear(plan.PeriodPolicyYear, time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, 2025, period.Year())
}

func TestBenefitYear_PolicyYearWithoutEffectiveDate_FallsBackToCalendar(t *testing.T) {
	p := plan.InsurancePlan{}

	period := p.BenefitYear(plan.PeriodPolicyYear, time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC), period.Start)
}

func TestBenefitPeriod_Next(t *testing.T) {
	p := plan.InsurancePlan{}
	period := p.BenefitYear(plan.PeriodCalendarYear, time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC))

	next := period.Next()
	assert.Equal(t, 2026, next.Year())
	assert.Equal(t, period.End.AddDate(0, 0, 1), next.Start)
}
