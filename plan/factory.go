/*
factory.go - JSON to InsurancePlan conversion

PURPOSE:
  Converts JSON plan definitions into InsurancePlan values. Payer
  contracts change without code changes: benefits coordinators maintain
  plan JSON, and the factory builds validated Go structs from it.

JSON SCHEMA:
  {
    "payer_id": "delta-dental",
    "plan_name": "Delta PPO Plus",
    "group_number": "GRP-4417",
    "effective_date": "2025-01-01",
    "annual_maximum": "1500.00",
    "deductible_individual": "50.00",
    "category_rules": {
      "preventive": {"fraction": "1.0"},
      "restorative": {"fraction": "0.8", "deductible_applies": true}
    },
    "code_frequency_limits": {
      "D1110": {"max_count": 2, "period_amount": 1, "period_unit": "years"}
    },
    "code_preauth_rules": {
      "D2740": {"required": true, "documents": ["x-rays", "narrative"]}
    },
    "alternate_benefits": {"D2392": "D2150"}
  }

VALIDATION:
  The factory runs InsurancePlan.Validate before returning. A malformed
  plan never leaves this package (ConfigurationError at load time, not
  at per-procedure time).

MONEY:
  Monetary fields are JSON strings parsed with shopspring/decimal so
  contract amounts never pass through float64.

SEE ALSO:
  - types.go: InsurancePlan definition
  - default.go: Go-based reference configuration
*/
package plan

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lumident/benefits-engine/catalog"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// PlanJSON is the JSON representation of an insurance plan.
type PlanJSON struct {
	PayerID       string `json:"payer_id"`
	PlanName      string `json:"plan_name"`
	GroupNumber   string `json:"group_number"`
	EffectiveDate string `json:"effective_date,omitempty"` // YYYY-MM-DD

	AnnualMaximum        string  `json:"annual_maximum"`
	PreventiveMaximum    *string `json:"preventive_maximum,omitempty"`
	OrthoLifetimeMaximum *string `json:"ortho_lifetime_maximum,omitempty"`

	DeductibleIndividual          string `json:"deductible_individual"`
	DeductibleFamily              string `json:"deductible_family,omitempty"`
	DeductibleAppliesToPreventive bool   `json:"deductible_applies_to_preventive,omitempty"`

	CodeRules     map[string]CoverageRuleJSON `json:"code_rules,omitempty"`
	CategoryRules map[string]CoverageRuleJSON `json:"category_rules,omitempty"`

	CodeFrequencyLimits     map[string]FrequencyLimitJSON `json:"code_frequency_limits,omitempty"`
	CategoryFrequencyLimits map[string]FrequencyLimitJSON `json:"category_frequency_limits,omitempty"`

	CodePreAuthRules     map[string]PreAuthRuleJSON `json:"code_preauth_rules,omitempty"`
	CategoryPreAuthRules map[string]PreAuthRuleJSON `json:"category_preauth_rules,omitempty"`

	AlternateBenefits map[string]string `json:"alternate_benefits,omitempty"`

	Version int `json:"version,omitempty"`
}

// CoverageRuleJSON represents a coverage rule.
type CoverageRuleJSON struct {
	Fraction          string `json:"fraction"`
	DeductibleApplies bool   `json:"deductible_applies,omitempty"`
	RequiresTooth     bool   `json:"requires_tooth,omitempty"`
	RequiresSurface   bool   `json:"requires_surface,omitempty"`
	RequiresQuadrant  bool   `json:"requires_quadrant,omitempty"`
	AlternateCode     string `json:"alternate_code,omitempty"`
}

// FrequencyLimitJSON represents a frequency limit.
type FrequencyLimitJSON struct {
	MaxCount     int    `json:"max_count"`
	PeriodAmount int    `json:"period_amount,omitempty"`
	PeriodUnit   string `json:"period_unit"` // days, months, years, lifetime
	PerTooth     bool   `json:"per_tooth,omitempty"`
	PerQuadrant  bool   `json:"per_quadrant,omitempty"`
}

// PreAuthRuleJSON represents a pre-authorization rule.
type PreAuthRuleJSON struct {
	Required  bool     `json:"required"`
	Documents []string `json:"documents,omitempty"`
}

// =============================================================================
// PLAN FACTORY
// =============================================================================

// Factory converts JSON plans to InsurancePlan values and back.
type Factory struct{}

// NewFactory creates a new plan factory.
func NewFactory() *Factory {
	return &Factory{}
}

// Parse parses a JSON document into a validated InsurancePlan.
func (f *Factory) Parse(data []byte) (InsurancePlan, error) {
	var pj PlanJSON
	if err := json.Unmarshal(data, &pj); err != nil {
		return InsurancePlan{}, fmt.Errorf("failed to parse plan JSON: %w", err)
	}
	return f.FromJSON(pj)
}

// FromJSON converts PlanJSON to a validated InsurancePlan.
func (f *Factory) FromJSON(pj PlanJSON) (InsurancePlan, error) {
	p := InsurancePlan{
		PayerID:                       pj.PayerID,
		PlanName:                      pj.PlanName,
		GroupNumber:                   pj.GroupNumber,
		DeductibleAppliesToPreventive: pj.DeductibleAppliesToPreventive,
		AlternateBenefits:             pj.AlternateBenefits,
		Version:                       pj.Version,
	}
	if p.Version == 0 {
		p.Version = 1
	}

	if pj.EffectiveDate != "" {
		t, err := time.Parse("2006-01-02", pj.EffectiveDate)
		if err != nil {
			return InsurancePlan{}, fmt.Errorf("invalid effective_date: %w", err)
		}
		p.EffectiveDate = t
	}

	var err error
	if p.AnnualMaximum, err = parseMoney("annual_maximum", pj.AnnualMaximum); err != nil {
		return InsurancePlan{}, err
	}
	if p.DeductibleIndividual, err = parseMoney("deductible_individual", pj.DeductibleIndividual); err != nil {
		return InsurancePlan{}, err
	}
	if pj.DeductibleFamily != "" {
		if p.DeductibleFamily, err = parseMoney("deductible_family", pj.DeductibleFamily); err != nil {
			return InsurancePlan{}, err
		}
	}
	if pj.PreventiveMaximum != nil {
		m, err := parseMoney("preventive_maximum", *pj.PreventiveMaximum)
		if err != nil {
			return InsurancePlan{}, err
		}
		p.PreventiveMaximum = &m
	}
	if pj.OrthoLifetimeMaximum != nil {
		m, err := parseMoney("ortho_lifetime_maximum", *pj.OrthoLifetimeMaximum)
		if err != nil {
			return InsurancePlan{}, err
		}
		p.OrthoLifetimeMaximum = &m
	}

	if len(pj.CodeRules) > 0 {
		p.CodeRules = make(map[string]CoverageRule, len(pj.CodeRules))
		for code, rj := range pj.CodeRules {
			r, err := parseRule(code, rj)
			if err != nil {
				return InsurancePlan{}, err
			}
			p.CodeRules[code] = r
		}
	}
	if len(pj.CategoryRules) > 0 {
		p.CategoryRules = make(map[catalog.Category]CoverageRule, len(pj.CategoryRules))
		for catName, rj := range pj.CategoryRules {
			cat := catalog.Category(catName)
			if !cat.Valid() {
				return InsurancePlan{}, fmt.Errorf("unknown category %q in category_rules", catName)
			}
			r, err := parseRule(catName, rj)
			if err != nil {
				return InsurancePlan{}, err
			}
			p.CategoryRules[cat] = r
		}
	}

	if len(pj.CodeFrequencyLimits) > 0 {
		p.CodeFrequencyLimits = make(map[string]FrequencyLimit, len(pj.CodeFrequencyLimits))
		for code, fj := range pj.CodeFrequencyLimits {
			p.CodeFrequencyLimits[code] = parseFrequency(fj)
		}
	}
	if len(pj.CategoryFrequencyLimits) > 0 {
		p.CategoryFrequencyLimits = make(map[catalog.Category]FrequencyLimit, len(pj.CategoryFrequencyLimits))
		for catName, fj := range pj.CategoryFrequencyLimits {
			cat := catalog.Category(catName)
			if !cat.Valid() {
				return InsurancePlan{}, fmt.Errorf("unknown category %q in category_frequency_limits", catName)
			}
			p.CategoryFrequencyLimits[cat] = parseFrequency(fj)
		}
	}

	if len(pj.CodePreAuthRules) > 0 {
		p.CodePreAuthRules = make(map[string]PreAuthRule, len(pj.CodePreAuthRules))
		for code, aj := range pj.CodePreAuthRules {
			p.CodePreAuthRules[code] = parsePreAuth(aj)
		}
	}
	if len(pj.CategoryPreAuthRules) > 0 {
		p.CategoryPreAuthRules = make(map[catalog.Category]PreAuthRule, len(pj.CategoryPreAuthRules))
		for catName, aj := range pj.CategoryPreAuthRules {
			cat := catalog.Category(catName)
			if !cat.Valid() {
				return InsurancePlan{}, fmt.Errorf("unknown category %q in category_preauth_rules", catName)
			}
			p.CategoryPreAuthRules[cat] = parsePreAuth(aj)
		}
	}

	if err := p.Validate(); err != nil {
		return InsurancePlan{}, err
	}
	return p, nil
}

// ToJSON converts an InsurancePlan to its JSON representation.
func (f *Factory) ToJSON(p InsurancePlan) PlanJSON {
	pj := PlanJSON{
		PayerID:                       p.PayerID,
		PlanName:                      p.PlanName,
		GroupNumber:                   p.GroupNumber,
		AnnualMaximum:                 p.AnnualMaximum.StringFixed(2),
		DeductibleIndividual:          p.DeductibleIndividual.StringFixed(2),
		DeductibleAppliesToPreventive: p.DeductibleAppliesToPreventive,
		AlternateBenefits:             p.AlternateBenefits,
		Version:                       p.Version,
	}
	if !p.EffectiveDate.IsZero() {
		pj.EffectiveDate = p.EffectiveDate.Format("2006-01-02")
	}
	if !p.DeductibleFamily.IsZero() {
		pj.DeductibleFamily = p.DeductibleFamily.StringFixed(2)
	}
	if p.PreventiveMaximum != nil {
		s := p.PreventiveMaximum.StringFixed(2)
		pj.PreventiveMaximum = &s
	}
	if p.OrthoLifetimeMaximum != nil {
		s := p.OrthoLifetimeMaximum.StringFixed(2)
		pj.OrthoLifetimeMaximum = &s
	}

	if len(p.CodeRules) > 0 {
		pj.CodeRules = make(map[string]CoverageRuleJSON, len(p.CodeRules))
		for code, r := range p.CodeRules {
			pj.CodeRules[code] = ruleJSON(r)
		}
	}
	if len(p.CategoryRules) > 0 {
		pj.CategoryRules = make(map[string]CoverageRuleJSON, len(p.CategoryRules))
		for cat, r := range p.CategoryRules {
			pj.CategoryRules[string(cat)] = ruleJSON(r)
		}
	}
	if len(p.CodeFrequencyLimits) > 0 {
		pj.CodeFrequencyLimits = make(map[string]FrequencyLimitJSON, len(p.CodeFrequencyLimits))
		for code, fl := range p.CodeFrequencyLimits {
			pj.CodeFrequencyLimits[code] = frequencyJSON(fl)
		}
	}
	if len(p.CategoryFrequencyLimits) > 0 {
		pj.CategoryFrequencyLimits = make(map[string]FrequencyLimitJSON, len(p.CategoryFrequencyLimits))
		for cat, fl := range p.CategoryFrequencyLimits {
			pj.CategoryFrequencyLimits[string(cat)] = frequencyJSON(fl)
		}
	}
	if len(p.CodePreAuthRules) > 0 {
		pj.CodePreAuthRules = make(map[string]PreAuthRuleJSON, len(p.CodePreAuthRules))
		for code, r := range p.CodePreAuthRules {
			pj.CodePreAuthRules[code] = preAuthJSON(r)
		}
	}
	if len(p.CategoryPreAuthRules) > 0 {
		pj.CategoryPreAuthRules = make(map[string]PreAuthRuleJSON, len(p.CategoryPreAuthRules))
		for cat, r := range p.CategoryPreAuthRules {
			pj.CategoryPreAuthRules[string(cat)] = preAuthJSON(r)
		}
	}
	return pj
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func parseMoney(field, s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, fmt.Errorf("missing required field %q", field)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s %q: %w", field, s, err)
	}
	return d, nil
}

func parseRule(key string, rj CoverageRuleJSON) (CoverageRule, error) {
	frac, err := decimal.NewFromString(rj.Fraction)
	if err != nil {
		return CoverageRule{}, fmt.Errorf("invalid fraction %q for %s: %w", rj.Fraction, key, err)
	}
	return CoverageRule{
		Fraction:          frac,
		DeductibleApplies: rj.DeductibleApplies,
		RequiresTooth:     rj.RequiresTooth,
		RequiresSurface:   rj.RequiresSurface,
		RequiresQuadrant:  rj.RequiresQuadrant,
		AlternateCode:     rj.AlternateCode,
	}, nil
}

func parseFrequency(fj FrequencyLimitJSON) FrequencyLimit {
	return FrequencyLimit{
		MaxCount:     fj.MaxCount,
		PeriodAmount: fj.PeriodAmount,
		PeriodUnit:   parsePeriodUnit(fj.PeriodUnit),
		PerTooth:     fj.PerTooth,
		PerQuadrant:  fj.PerQuadrant,
	}
}

func parsePeriodUnit(s string) PeriodUnit {
	switch s {
	case "days":
		return UnitDays
	case "months":
		return UnitMonths
	case "lifetime":
		return UnitLifetime
	case "years":
		return UnitYears
	default:
		// Validate rejects it downstream with a field-specific defect.
		return PeriodUnit(s)
	}
}

func parsePreAuth(aj PreAuthRuleJSON) PreAuthRule {
	r := PreAuthRule{Required: aj.Required}
	for _, d := range aj.Documents {
		r.Documents = append(r.Documents, DocumentKind(d))
	}
	return r
}

func ruleJSON(r CoverageRule) CoverageRuleJSON {
	return CoverageRuleJSON{
		Fraction:          r.Fraction.String(),
		DeductibleApplies: r.DeductibleApplies,
		RequiresTooth:     r.RequiresTooth,
		RequiresSurface:   r.RequiresSurface,
		RequiresQuadrant:  r.RequiresQuadrant,
		AlternateCode:     r.AlternateCode,
	}
}

func frequencyJSON(f FrequencyLimit) FrequencyLimitJSON {
	return FrequencyLimitJSON{
		MaxCount:     f.MaxCount,
		PeriodAmount: f.PeriodAmount,
		PeriodUnit:   string(f.PeriodUnit),
		PerTooth:     f.PerTooth,
		PerQuadrant:  f.PerQuadrant,
	}
}

func preAuthJSON(r PreAuthRule) PreAuthRuleJSON {
	aj := PreAuthRuleJSON{Required: r.Required}
	for _, d := range r.Documents {
		aj.Documents = append(aj.Documents, string(d))
	}
	return aj
}
