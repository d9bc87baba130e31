/*
period.go - Benefit year boundaries

PURPOSE:
  Maximums and deductibles reset per benefit year. Most contracts run
  on the calendar year; some run on the plan's effective ("policy")
  anniversary. Ledger snapshots are keyed by the starting year of the
  benefit period a service date falls into.
*/
package plan

import "time"

// =============================================================================
// BENEFIT PERIOD
// =============================================================================

// BenefitPeriod is one 12-month accounting window, inclusive of both
// endpoints at day granularity.
type BenefitPeriod struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the period.
func (p BenefitPeriod) Contains(t time.Time) bool {
	d := day(t)
	return !d.Before(day(p.Start)) && !d.After(day(p.End))
}

// Year is the ledger key for this period: the year the period starts in.
func (p BenefitPeriod) Year() int { return p.Start.Year() }

func (p BenefitPeriod) String() string {
	return "[" + p.Start.Format("2006-01-02") + ", " + p.End.Format("2006-01-02") + "]"
}

// Next returns the following benefit period.
func (p BenefitPeriod) Next() BenefitPeriod {
	return BenefitPeriod{Start: p.End.AddDate(0, 0, 1), End: p.End.AddDate(1, 0, 0)}
}

// =============================================================================
// PERIOD CONFIG
// =============================================================================

type BenefitPeriodType string

const (
	PeriodCalendarYear BenefitPeriodType = "calendar_year"
	PeriodPolicyYear   BenefitPeriodType = "policy_year"
)

// BenefitYear returns the benefit period containing date, derived from
// the plan's period type and effective date.
func (p InsurancePlan) BenefitYear(periodType BenefitPeriodType, date time.Time) BenefitPeriod {
	switch periodType {
	case PeriodPolicyYear:
		if !p.EffectiveDate.IsZero() {
			return policyYearPeriod(p.EffectiveDate, date)
		}
		fallthrough
	default:
		start := time.Date(date.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
		return BenefitPeriod{Start: start, End: start.AddDate(1, 0, -1)}
	}
}

func policyYearPeriod(anchor, date time.Time) BenefitPeriod {
	years := date.Year() - anchor.Year()
	start := time.Date(anchor.Year()+years, anchor.Month(), anchor.Day(), 0, 0, 0, 0, time.UTC)
	if day(date).Before(day(start)) {
		start = start.AddDate(-1, 0, 0)
	}
	return BenefitPeriod{Start: start, End: start.AddDate(1, 0, -1)}
}

func day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
