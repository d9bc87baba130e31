/*
Package finance converts a patient's aggregated responsibility into a
menu of payment options.

PURPOSE:
  After a treatment-plan pass, the remaining patient balance may be
  large enough that the practice offers structured payment. The
  generator applies configured thresholds:

    > $200   pay-in-full with a prompt-pay discount, and a 3-month
             zero-interest plan
    > $1000  also a 6-month zero-interest plan
    > $2500  also a 12-month financed plan using the standard
             amortization formula, flagged for credit approval

AMORTIZATION:
  monthly = P * r / (1 - (1+r)^-n)
  with P the principal, r the monthly rate (APR/12) and n the term in
  months. Computed in full decimal precision; rounding to cents happens
  only at presentation.

IDEMPOTENCE:
  Options is a pure function of the total; callers may retry freely.
*/
package finance

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// FINANCIAL OPTION
// =============================================================================

// Option is one payment alternative offered to the patient.
type Option struct {
	Name        string
	Description string

	// TotalPatientPays is the all-in amount under this option.
	TotalPatientPays decimal.Decimal

	// Savings relative to paying the raw balance. Zero for plans that
	// neither discount nor charge interest.
	Savings decimal.Decimal

	DurationMonths int
	MonthlyPayment decimal.Decimal

	// InterestRate is the annual rate (APR) as a fraction; DiscountRate
	// likewise. At most one of the two is non-zero.
	InterestRate decimal.Decimal
	DiscountRate decimal.Decimal

	RequiresCreditApproval bool
}

// =============================================================================
// GENERATOR
// =============================================================================

// Generator produces payment options above configured thresholds.
// The zero value is not usable; construct with NewGenerator.
type Generator struct {
	// Threshold below which no options are offered.
	Threshold decimal.Decimal

	// ExtendedThreshold adds the 6-month plan; FinancedThreshold adds
	// the 12-month financed plan.
	ExtendedThreshold decimal.Decimal
	FinancedThreshold decimal.Decimal

	PayInFullDiscount decimal.Decimal
	FinancingAPR      decimal.Decimal
}

// NewGenerator returns a generator with the reference configuration:
// $200 / $1000 / $2500 thresholds, 5% prompt-pay discount, 9.9% APR.
func NewGenerator() *Generator {
	return &Generator{
		Threshold:         decimal.RequireFromString("200"),
		ExtendedThreshold: decimal.RequireFromString("1000"),
		FinancedThreshold: decimal.RequireFromString("2500"),
		PayInFullDiscount: decimal.RequireFromString("0.05"),
		FinancingAPR:      decimal.RequireFromString("0.099"),
	}
}

// Options returns the payment menu for a total patient responsibility.
// Empty (not an error) at or below the threshold.
func (g *Generator) Options(total decimal.Decimal) []Option {
	if !total.GreaterThan(g.Threshold) {
		return nil
	}

	one := decimal.NewFromInt(1)
	options := []Option{
		{
			Name: "Pay in full",
			Description: fmt.Sprintf("Pay the full balance today with a %s%% discount",
				g.PayInFullDiscount.Mul(decimal.NewFromInt(100)).String()),
			TotalPatientPays: total.Mul(one.Sub(g.PayInFullDiscount)),
			Savings:          total.Mul(g.PayInFullDiscount),
			DurationMonths:   1,
			MonthlyPayment:   total.Mul(one.Sub(g.PayInFullDiscount)),
			DiscountRate:     g.PayInFullDiscount,
		},
		installmentPlan(total, 3),
	}

	if total.GreaterThan(g.ExtendedThreshold) {
		options = append(options, installmentPlan(total, 6))
	}

	if total.GreaterThan(g.FinancedThreshold) {
		options = append(options, g.financedPlan(total, 12))
	}

	return options
}

// installmentPlan is a zero-interest plan: equal monthly payments, no
// savings, no credit check.
func installmentPlan(total decimal.Decimal, months int) Option {
	return Option{
		Name:             fmt.Sprintf("%d-month plan", months),
		Description:      fmt.Sprintf("%d equal monthly payments, 0%% interest", months),
		TotalPatientPays: total,
		Savings:          decimal.Zero,
		DurationMonths:   months,
		MonthlyPayment:   total.Div(decimal.NewFromInt(int64(months))),
	}
}

// financedPlan amortizes the balance over the term at the configured
// APR: monthly = P*r / (1 - (1+r)^-n), computed as P*r*(1+r)^n /
// ((1+r)^n - 1) to stay in exact decimal arithmetic.
func (g *Generator) financedPlan(total decimal.Decimal, months int) Option {
	one := decimal.NewFromInt(1)
	n := decimal.NewFromInt(int64(months))
	r := g.FinancingAPR.Div(decimal.NewFromInt(12))

	compound := one.Add(r).Pow(n)
	monthly := total.Mul(r).Mul(compound).Div(compound.Sub(one))
	totalPays := monthly.Mul(n)

	return Option{
		Name: fmt.Sprintf("%d-month financing", months),
		Description: fmt.Sprintf("%d monthly payments at %s%% APR, subject to credit approval",
			months, g.FinancingAPR.Mul(decimal.NewFromInt(100)).String()),
		TotalPatientPays:       totalPays,
		Savings:                total.Sub(totalPays), // negative: cost of financing
		DurationMonths:         months,
		MonthlyPayment:         monthly,
		InterestRate:           g.FinancingAPR,
		RequiresCreditApproval: true,
	}
}
