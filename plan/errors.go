/*
errors.go - Plan configuration errors

PURPOSE:
  A malformed plan (coverage fraction outside [0,1], negative maximum)
  indicates a corrupt contract unsafe to validate against at all, so
  configuration errors are fatal at plan-load time, never deferred to
  per-procedure validation.

USAGE:
  if err := p.Validate(); err != nil {
      var cfgErr *plan.ConfigurationError
      if errors.As(err, &cfgErr) { ... }
  }
*/
package plan

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidConfiguration is the sentinel wrapped by every
// ConfigurationError. Use with errors.Is().
var ErrInvalidConfiguration = errors.New("invalid plan configuration")

// ConfigurationError describes one or more defects found while loading
// a plan.
type ConfigurationError struct {
	PlanName string
	Defects  []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("plan %q: %s", e.PlanName, strings.Join(e.Defects, "; "))
}

func (e *ConfigurationError) Unwrap() error { return ErrInvalidConfiguration }

// Validate checks the plan for configuration defects. A nil return
// means the plan is safe to validate procedures against.
func (p InsurancePlan) Validate() error {
	var defects []string

	if p.AnnualMaximum.IsNegative() {
		defects = append(defects, "annual maximum is negative")
	}
	if p.PreventiveMaximum != nil && p.PreventiveMaximum.IsNegative() {
		defects = append(defects, "preventive maximum is negative")
	}
	if p.OrthoLifetimeMaximum != nil && p.OrthoLifetimeMaximum.IsNegative() {
		defects = append(defects, "orthodontic lifetime maximum is negative")
	}
	if p.DeductibleIndividual.IsNegative() {
		defects = append(defects, "individual deductible is negative")
	}
	if p.DeductibleFamily.IsNegative() {
		defects = append(defects, "family deductible is negative")
	}
	if !p.DeductibleFamily.IsZero() && p.DeductibleFamily.LessThan(p.DeductibleIndividual) {
		defects = append(defects, "family deductible below individual deductible")
	}

	for code, r := range p.CodeRules {
		if bad := fractionDefect(r.Fraction); bad != "" {
			defects = append(defects, fmt.Sprintf("rule for code %s: %s", code, bad))
		}
	}
	for cat, r := range p.CategoryRules {
		if bad := fractionDefect(r.Fraction); bad != "" {
			defects = append(defects, fmt.Sprintf("rule for category %s: %s", cat, bad))
		}
	}

	for code, f := range p.CodeFrequencyLimits {
		if bad := frequencyDefect(f); bad != "" {
			defects = append(defects, fmt.Sprintf("frequency limit for code %s: %s", code, bad))
		}
	}
	for cat, f := range p.CategoryFrequencyLimits {
		if bad := frequencyDefect(f); bad != "" {
			defects = append(defects, fmt.Sprintf("frequency limit for category %s: %s", cat, bad))
		}
	}

	for code, alt := range p.AlternateBenefits {
		if alt == "" {
			defects = append(defects, fmt.Sprintf("alternate benefit for %s is empty", code))
		}
		if alt == code {
			defects = append(defects, fmt.Sprintf("alternate benefit for %s references itself", code))
		}
	}

	if len(defects) == 0 {
		return nil
	}
	return &ConfigurationError{PlanName: p.PlanName, Defects: defects}
}

func fractionDefect(f decimal.Decimal) string {
	if f.IsNegative() || f.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Sprintf("coverage fraction %s outside [0,1]", f)
	}
	return ""
}

func frequencyDefect(f FrequencyLimit) string {
	if f.MaxCount < 1 {
		return "max count below 1"
	}
	switch f.PeriodUnit {
	case UnitDays, UnitMonths, UnitYears:
		if f.PeriodAmount < 1 {
			return "period amount below 1"
		}
	case UnitLifetime:
		// no period amount needed
	default:
		return fmt.Sprintf("unknown period unit %q", f.PeriodUnit)
	}
	if f.PerTooth && f.PerQuadrant {
		return "limit scoped to both tooth and quadrant"
	}
	return ""
}
