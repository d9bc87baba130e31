/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication, decoupling the
  internal domain model from the external contract. Monetary values are
  serialized as strings with exactly two decimal places: rounding to
  cents happens here and only here, never inside the engine.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

SEE ALSO:
  - handlers.go: Uses these types
  - plan/factory.go: PlanJSON used directly for plan payloads
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/lumident/benefits-engine/catalog"
	"github.com/lumident/benefits-engine/coverage"
	"github.com/lumident/benefits-engine/finance"
	"github.com/lumident/benefits-engine/plan"
)

// money renders a decimal as a two-place string for presentation.
func money(d decimal.Decimal) string { return d.StringFixed(2) }

// =============================================================================
// CATALOG
// =============================================================================

// ProcedureCodeDTO represents one catalog entry.
type ProcedureCodeDTO struct {
	Code             string `json:"code"`
	Description      string `json:"description"`
	Category         string `json:"category"`
	BaseFee          string `json:"base_fee"`
	RequiresTooth    bool   `json:"requires_tooth,omitempty"`
	RequiresSurface  bool   `json:"requires_surface,omitempty"`
	RequiresQuadrant bool   `json:"requires_quadrant,omitempty"`
	MaxSurfaces      int    `json:"max_surfaces,omitempty"`
}

func toProcedureCodeDTO(p catalog.ProcedureCode) ProcedureCodeDTO {
	return ProcedureCodeDTO{
		Code:             p.Code,
		Description:      p.Description,
		Category:         string(p.Category),
		BaseFee:          money(p.BaseFee),
		RequiresTooth:    p.RequiresTooth,
		RequiresSurface:  p.RequiresSurface,
		RequiresQuadrant: p.RequiresQuadrant,
		MaxSurfaces:      p.MaxSurfaces,
	}
}

// QuickEstimateDTO is the plan-free estimate for one code.
type QuickEstimateDTO struct {
	Code          string `json:"code"`
	Cost          string `json:"cost"`
	InsurerAmount string `json:"insurer_amount"`
	PatientAmount string `json:"patient_amount"`
	Note          string `json:"note"`
}

// =============================================================================
// PLANS
// =============================================================================

// CreatePlanRequest stores a plan configuration under a key.
type CreatePlanRequest struct {
	Key  string        `json:"key"`
	Plan plan.PlanJSON `json:"plan"`
}

// CreateDefaultPlanRequest stores the reference PPO under a key.
type CreateDefaultPlanRequest struct {
	Key         string `json:"key"`
	PayerID     string `json:"payer_id"`
	PlanName    string `json:"plan_name"`
	GroupNumber string `json:"group_number"`
}

// =============================================================================
// VALIDATION
// =============================================================================

// ProcedureRequest is one procedure line in a validation request.
type ProcedureRequest struct {
	Code        string   `json:"code"`
	Cost        string   `json:"cost,omitempty"` // empty = catalog fee
	Tooth       string   `json:"tooth,omitempty"`
	Surfaces    []string `json:"surfaces,omitempty"`
	Quadrant    string   `json:"quadrant,omitempty"`
	ServiceDate string   `json:"service_date,omitempty"` // YYYY-MM-DD
}

// ValidateRequest validates a single procedure.
type ValidateRequest struct {
	PlanKey     string           `json:"plan_key"`
	BenefitYear int              `json:"benefit_year,omitempty"` // 0 = service-date year
	Procedure   ProcedureRequest `json:"procedure"`
}

// ValidatePlanRequest validates an ordered treatment plan.
type ValidatePlanRequest struct {
	PlanKey     string             `json:"plan_key"`
	BenefitYear int                `json:"benefit_year,omitempty"`
	Procedures  []ProcedureRequest `json:"procedures"`
}

// ValidationResultDTO is one procedure's validation outcome.
type ValidationResultDTO struct {
	Code                string   `json:"code"`
	Cost                string   `json:"cost"`
	IsCovered           bool     `json:"is_covered"`
	CoverageFraction    string   `json:"coverage_fraction"`
	InsurerAmount       string   `json:"insurer_amount"`
	PatientAmount       string   `json:"patient_amount"`
	DeductibleApplied   bool     `json:"deductible_applied"`
	DeductibleConsumed  string   `json:"deductible_consumed"`
	RequiresPreauth     bool     `json:"requires_preauth"`
	FrequencyExceeded   bool     `json:"frequency_exceeded"`
	AlternateCode       string   `json:"alternate_code,omitempty"`
	Warnings            []string `json:"warnings,omitempty"`
	MissingRequirements []string `json:"missing_requirements,omitempty"`
}

func toValidationResultDTO(r coverage.ValidationResult) ValidationResultDTO {
	return ValidationResultDTO{
		Code:                r.Code,
		Cost:                money(r.Cost),
		IsCovered:           r.Covered,
		CoverageFraction:    r.CoverageFraction.String(),
		InsurerAmount:       money(r.InsurerAmount),
		PatientAmount:       money(r.PatientAmount),
		DeductibleApplied:   r.DeductibleApplied,
		DeductibleConsumed:  money(r.DeductibleConsumed),
		RequiresPreauth:     r.RequiresPreAuth,
		FrequencyExceeded:   r.FrequencyExceeded,
		AlternateCode:       r.AlternateCode,
		Warnings:            r.Warnings,
		MissingRequirements: r.MissingRequirements,
	}
}

// PlanValidationDTO is the full treatment-plan outcome, with the
// financial options menu for the aggregated patient responsibility.
type PlanValidationDTO struct {
	Results                []ValidationResultDTO `json:"results"`
	TotalCost              string                `json:"total_cost"`
	TotalInsurer           string                `json:"total_insurer"`
	TotalPatient           string                `json:"total_patient"`
	RemainingDeductible    string                `json:"remaining_deductible"`
	RemainingAnnualMaximum string                `json:"remaining_annual_maximum"`
	FinancialOptions       []FinancialOptionDTO  `json:"financial_options,omitempty"`
}

func toPlanValidationDTO(v coverage.PlanValidation, options []finance.Option) PlanValidationDTO {
	dto := PlanValidationDTO{
		TotalCost:              money(v.TotalCost),
		TotalInsurer:           money(v.TotalInsurer),
		TotalPatient:           money(v.TotalPatient),
		RemainingDeductible:    money(v.RemainingDeductible),
		RemainingAnnualMaximum: money(v.RemainingAnnualMaximum),
	}
	for _, r := range v.Results {
		dto.Results = append(dto.Results, toValidationResultDTO(r))
	}
	for _, o := range options {
		dto.FinancialOptions = append(dto.FinancialOptions, toFinancialOptionDTO(o))
	}
	return dto
}

// =============================================================================
// FINANCIAL OPTIONS
// =============================================================================

// FinancialOptionsRequest asks for options on a raw balance.
type FinancialOptionsRequest struct {
	TotalPatientResponsibility string `json:"total_patient_responsibility"`
}

// FinancialOptionDTO is one payment alternative.
type FinancialOptionDTO struct {
	Name                   string `json:"name"`
	Description            string `json:"description"`
	TotalPatientPays       string `json:"total_patient_pays"`
	Savings                string `json:"savings"`
	DurationMonths         int    `json:"duration_months"`
	MonthlyPayment         string `json:"monthly_payment"`
	InterestRate           string `json:"interest_rate"`
	DiscountRate           string `json:"discount_rate"`
	RequiresCreditApproval bool   `json:"requires_credit_approval"`
}

func toFinancialOptionDTO(o finance.Option) FinancialOptionDTO {
	return FinancialOptionDTO{
		Name:                   o.Name,
		Description:            o.Description,
		TotalPatientPays:       money(o.TotalPatientPays),
		Savings:                money(o.Savings),
		DurationMonths:         o.DurationMonths,
		MonthlyPayment:         money(o.MonthlyPayment),
		InterestRate:           o.InterestRate.String(),
		DiscountRate:           o.DiscountRate.String(),
		RequiresCreditApproval: o.RequiresCreditApproval,
	}
}

// =============================================================================
// BENEFITS AND HISTORY
// =============================================================================

// BenefitsDTO is the ledger snapshot for one benefit year.
type BenefitsDTO struct {
	PatientID               string `json:"patient_id"`
	PlanKey                 string `json:"plan_key"`
	BenefitYear             int    `json:"benefit_year"`
	PreventiveUsed          string `json:"preventive_used"`
	BasicUsed               string `json:"basic_used"`
	MajorUsed               string `json:"major_used"`
	OrthodonticUsed         string `json:"orthodontic_used"`
	DeductibleMetIndividual string `json:"deductible_met_individual"`
	DeductibleMetFamily     string `json:"deductible_met_family"`
}

func toBenefitsDTO(patientID, planKey string, year int, b coverage.BenefitsUsed) BenefitsDTO {
	return BenefitsDTO{
		PatientID:               patientID,
		PlanKey:                 planKey,
		BenefitYear:             year,
		PreventiveUsed:          money(b.PreventiveUsed),
		BasicUsed:               money(b.BasicUsed),
		MajorUsed:               money(b.MajorUsed),
		OrthodonticUsed:         money(b.OrthodonticUsed),
		DeductibleMetIndividual: money(b.DeductibleMetIndividual),
		DeductibleMetFamily:     money(b.DeductibleMetFamily),
	}
}

// HistoryRecordDTO is one prior procedure.
type HistoryRecordDTO struct {
	Code        string   `json:"code"`
	ServiceDate string   `json:"service_date"`
	Tooth       string   `json:"tooth,omitempty"`
	Quadrant    string   `json:"quadrant,omitempty"`
	Surfaces    []string `json:"surfaces,omitempty"`
}

func toHistoryRecordDTO(h coverage.HistoryRecord) HistoryRecordDTO {
	return HistoryRecordDTO{
		Code:        h.Code,
		ServiceDate: h.ServiceDate.Format("2006-01-02"),
		Tooth:       h.Tooth,
		Quadrant:    h.Quadrant,
		Surfaces:    h.Surfaces,
	}
}

func parseServiceDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse("2006-01-02", s)
}

// =============================================================================
// CLAIMS
// =============================================================================

// ConfirmClaimRequest commits a validated treatment plan against the
// ledger: the procedures are re-validated against the current snapshot
// and the resulting delta is applied atomically.
type ConfirmClaimRequest struct {
	PlanKey     string             `json:"plan_key"`
	BenefitYear int                `json:"benefit_year,omitempty"`
	Procedures  []ProcedureRequest `json:"procedures"`
}

// ClaimDTO is the confirmation outcome.
type ClaimDTO struct {
	ClaimID     string            `json:"claim_id"`
	InsurerPaid string            `json:"insurer_paid"`
	PatientPaid string            `json:"patient_paid"`
	Benefits    BenefitsDTO       `json:"benefits"`
	Validation  PlanValidationDTO `json:"validation"`
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}
