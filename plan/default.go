/*
default.go - Reference PPO plan configuration

PURPOSE:
  Ready-to-use plan matching a typical employer PPO dental contract:
  $1500 annual maximum, $50 individual deductible waived for preventive
  care, 100/80/50 coverage tiers, standard exam/cleaning/x-ray frequency
  limits, pre-authorization on crowns, endodontics, periodontal scaling
  and dentures, and the usual posterior composite -> amalgam downgrade
  map.

CUSTOMIZATION:
  This is a starting point. Real contracts differ in tiers, waiting
  periods and sub-maximums; load those through the JSON factory.

SEE ALSO:
  - factory.go: JSON-based plan creation
  - types.go: InsurancePlan definition
*/
package plan

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/lumident/benefits-engine/catalog"
)

func amount(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// CreateDefaultPlan returns the reference PPO configuration for the
// given payer identity. The returned plan always passes Validate.
func CreateDefaultPlan(payerID, planName, groupNumber string) InsurancePlan {
	ortho := amount("1000.00")

	p := InsurancePlan{
		PayerID:       payerID,
		PlanName:      planName,
		GroupNumber:   groupNumber,
		EffectiveDate: time.Date(time.Now().Year(), time.January, 1, 0, 0, 0, 0, time.UTC),

		AnnualMaximum:        amount("1500.00"),
		OrthoLifetimeMaximum: &ortho,

		DeductibleIndividual:          amount("50.00"),
		DeductibleFamily:              amount("150.00"),
		DeductibleAppliesToPreventive: false,

		CategoryRules: map[catalog.Category]CoverageRule{
			catalog.Diagnostic:    {Fraction: amount("1.00"), DeductibleApplies: false},
			catalog.Preventive:    {Fraction: amount("1.00"), DeductibleApplies: false},
			catalog.Restorative:   {Fraction: amount("0.80"), DeductibleApplies: true},
			catalog.Endodontic:    {Fraction: amount("0.80"), DeductibleApplies: true},
			catalog.Periodontic:   {Fraction: amount("0.80"), DeductibleApplies: true},
			catalog.OralSurgery:   {Fraction: amount("0.80"), DeductibleApplies: true},
			catalog.Prosthodontic: {Fraction: amount("0.50"), DeductibleApplies: true},
			catalog.Orthodontic:   {Fraction: amount("0.50"), DeductibleApplies: false},
		},

		// Crowns reimburse at the major tier even though they sit in the
		// restorative category.
		CodeRules: map[string]CoverageRule{
			"D2740": {Fraction: amount("0.50"), DeductibleApplies: true},
			"D2750": {Fraction: amount("0.50"), DeductibleApplies: true},
		},

		CodeFrequencyLimits: map[string]FrequencyLimit{
			"D0120": {MaxCount: 2, PeriodAmount: 1, PeriodUnit: UnitYears},
			"D1110": {MaxCount: 2, PeriodAmount: 1, PeriodUnit: UnitYears},
			"D1120": {MaxCount: 2, PeriodAmount: 1, PeriodUnit: UnitYears},
			"D0274": {MaxCount: 1, PeriodAmount: 1, PeriodUnit: UnitYears},
			"D0210": {MaxCount: 1, PeriodAmount: 3, PeriodUnit: UnitYears},
			"D0330": {MaxCount: 1, PeriodAmount: 3, PeriodUnit: UnitYears},
			"D4910": {MaxCount: 4, PeriodAmount: 1, PeriodUnit: UnitYears},
			"D2740": {MaxCount: 1, PeriodAmount: 5, PeriodUnit: UnitYears, PerTooth: true},
			"D4341": {MaxCount: 1, PeriodAmount: 2, PeriodUnit: UnitYears, PerQuadrant: true},
		},

		CodePreAuthRules: map[string]PreAuthRule{
			"D2740": {Required: true, Documents: []DocumentKind{DocXRays, DocNarrative}},
			"D2750": {Required: true, Documents: []DocumentKind{DocXRays, DocNarrative}},
			"D3310": {Required: true, Documents: []DocumentKind{DocXRays}},
			"D3320": {Required: true, Documents: []DocumentKind{DocXRays}},
			"D3330": {Required: true, Documents: []DocumentKind{DocXRays}},
			"D4341": {Required: true, Documents: []DocumentKind{DocXRays, DocPerioChart}},
			"D5110": {Required: true, Documents: []DocumentKind{DocNarrative, DocPhotos}},
			"D5120": {Required: true, Documents: []DocumentKind{DocNarrative, DocPhotos}},
			"D5213": {Required: true, Documents: []DocumentKind{DocNarrative, DocPhotos}},
		},

		AlternateBenefits: map[string]string{
			"D2391": "D2140",
			"D2392": "D2150",
			"D2393": "D2160",
			"D2394": "D2161",
		},

		Version: 1,
	}

	return p
}
