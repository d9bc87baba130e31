/*
Package plan defines payer plan configuration: the rules an insurance
contract applies to procedure claims.

PURPOSE:
  An InsurancePlan bundles annual maximums, deductibles, coverage rules,
  frequency limits, pre-authorization rules and an alternate-benefit map
  for one payer/group contract. Plans are immutable per version and
  replaced, never mutated, when contract terms change.

KEY CONCEPTS IN THIS FILE (types.go):
  - CoverageRule: fraction + deductible flag + structural requirements
  - FrequencyLimit: occurrence cap over a lookback window
  - PreAuthRule: required supporting documentation
  - InsurancePlan: the full contract with resolution helpers

RESOLUTION ORDER:
  Code-level entries win over category-level defaults; a code with
  neither is not covered. Category defaults are ordinary configuration
  entries, not a separate computation path.

SEE ALSO:
  - default.go: Reference PPO configuration
  - factory.go: JSON plan parsing
  - errors.go: ConfigurationError, fatal at plan load time
*/
package plan

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lumident/benefits-engine/catalog"
)

// =============================================================================
// DOCUMENT KINDS - Pre-authorization supporting material
// =============================================================================

type DocumentKind string

const (
	DocXRays      DocumentKind = "x-rays"
	DocNarrative  DocumentKind = "narrative"
	DocPerioChart DocumentKind = "periodontal_chart"
	DocPhotos     DocumentKind = "photos"
)

// =============================================================================
// COVERAGE RULE
// =============================================================================

// CoverageRule determines how much of a procedure's cost the payer
// reimburses. Keyed by code or category on the plan.
type CoverageRule struct {
	// Fraction of cost the insurer pays, in [0, 1].
	Fraction decimal.Decimal

	// DeductibleApplies marks whether the patient's deductible is
	// consumed before the fraction applies.
	DeductibleApplies bool

	// Structural requirements layered on top of the catalog's.
	RequiresTooth    bool
	RequiresSurface  bool
	RequiresQuadrant bool

	// AlternateCode, when set, names the cheaper clinically-equivalent
	// code the payer may reimburse at. Informational: it never changes
	// computed amounts.
	AlternateCode string
}

// =============================================================================
// FREQUENCY LIMIT
// =============================================================================

type PeriodUnit string

const (
	UnitDays     PeriodUnit = "days"
	UnitMonths   PeriodUnit = "months"
	UnitYears    PeriodUnit = "years"
	UnitLifetime PeriodUnit = "lifetime"
)

// FrequencyLimit restricts how often a code may be billed within a
// lookback window.
type FrequencyLimit struct {
	MaxCount     int
	PeriodAmount int
	PeriodUnit   PeriodUnit

	// Scope: when set, occurrences only count against the limit if they
	// share the same tooth (or quadrant) as the request.
	PerTooth    bool
	PerQuadrant bool
}

// LookbackDays converts the limit's period into a day count.
// ok is false for lifetime limits (unbounded lookback).
func (f FrequencyLimit) LookbackDays() (days int, ok bool) {
	switch f.PeriodUnit {
	case UnitDays:
		return f.PeriodAmount, true
	case UnitMonths:
		return f.PeriodAmount * 30, true
	case UnitYears:
		return f.PeriodAmount * 365, true
	default:
		return 0, false
	}
}

// Describe renders the limit for warnings, e.g. "2 per 12 months".
func (f FrequencyLimit) Describe() string {
	if f.PeriodUnit == UnitLifetime {
		return fmt.Sprintf("%d per lifetime", f.MaxCount)
	}
	return fmt.Sprintf("%d per %d %s", f.MaxCount, f.PeriodAmount, f.PeriodUnit)
}

// =============================================================================
// PRE-AUTHORIZATION RULE
// =============================================================================

// PreAuthRule states that payer approval is needed before a procedure
// is covered, and which documents the submission needs. The validator
// only reports what is required; it never checks what is on file.
type PreAuthRule struct {
	Required  bool
	Documents []DocumentKind
}

// =============================================================================
// INSURANCE PLAN
// =============================================================================

// InsurancePlan is one payer/group contract. Immutable per version:
// replace the whole value when terms change.
type InsurancePlan struct {
	PayerID       string
	PlanName      string
	GroupNumber   string
	EffectiveDate time.Time

	AnnualMaximum decimal.Decimal

	// Optional sub-maximums. Nil means the general annual maximum is the
	// only cap for the bucket.
	PreventiveMaximum    *decimal.Decimal
	OrthoLifetimeMaximum *decimal.Decimal

	DeductibleIndividual decimal.Decimal
	DeductibleFamily     decimal.Decimal

	// DeductibleAppliesToPreventive: most PPOs waive the deductible for
	// preventive care; the flag exists for the plans that don't.
	DeductibleAppliesToPreventive bool

	CodeRules     map[string]CoverageRule
	CategoryRules map[catalog.Category]CoverageRule

	CodeFrequencyLimits     map[string]FrequencyLimit
	CategoryFrequencyLimits map[catalog.Category]FrequencyLimit

	CodePreAuthRules     map[string]PreAuthRule
	CategoryPreAuthRules map[catalog.Category]PreAuthRule

	// AlternateBenefits maps a billed code to the cheaper code the payer
	// reimburses at. Wins over CoverageRule.AlternateCode.
	AlternateBenefits map[string]string

	Version int
}

// =============================================================================
// RESOLUTION - code-level first, then category-level, then not covered
// =============================================================================

// RuleFor resolves the coverage rule for a code. ok is false when the
// plan covers neither the code nor its category.
func (p InsurancePlan) RuleFor(code string, category catalog.Category) (CoverageRule, bool) {
	if r, ok := p.CodeRules[code]; ok {
		return r, true
	}
	if r, ok := p.CategoryRules[category]; ok {
		return r, true
	}
	return CoverageRule{}, false
}

// FrequencyFor resolves the frequency limit for a code, if any.
func (p InsurancePlan) FrequencyFor(code string, category catalog.Category) (FrequencyLimit, bool) {
	if f, ok := p.CodeFrequencyLimits[code]; ok {
		return f, true
	}
	if f, ok := p.CategoryFrequencyLimits[category]; ok {
		return f, true
	}
	return FrequencyLimit{}, false
}

// PreAuthFor resolves the pre-authorization rule for a code, if any.
func (p InsurancePlan) PreAuthFor(code string, category catalog.Category) (PreAuthRule, bool) {
	if r, ok := p.CodePreAuthRules[code]; ok {
		return r, true
	}
	if r, ok := p.CategoryPreAuthRules[category]; ok {
		return r, true
	}
	return PreAuthRule{}, false
}

// AlternateFor resolves the alternate-benefit code for a billed code.
// Empty when no downgrade applies.
func (p InsurancePlan) AlternateFor(code string, rule CoverageRule) string {
	if alt, ok := p.AlternateBenefits[code]; ok && alt != code {
		return alt
	}
	if rule.AlternateCode != "" && rule.AlternateCode != code {
		return rule.AlternateCode
	}
	return ""
}
