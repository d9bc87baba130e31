/*
handlers.go - HTTP API handlers for the benefits estimation engine

PURPOSE:
  Exposes the estimation engine via REST. Handles HTTP request and
  response shape, JSON serialization, and delegates all computation to
  the coverage/finance packages. This layer is the "caller" the engine
  contract talks about: it loads plan/ledger/history snapshots, invokes
  the pure validators, and owns ledger-delta persistence.

ENDPOINTS:
  Catalog:
    GET    /api/catalog                       List procedure codes
    GET    /api/catalog/{code}                One procedure code
    GET    /api/catalog/{code}/estimate       Plan-free quick estimate

  Plans:
    GET    /api/plans                         List plan keys
    POST   /api/plans                         Create plan from JSON
    POST   /api/plans/default                 Create the reference PPO
    GET    /api/plans/{key}                   Plan configuration

  Patients:
    POST   /api/patients/{id}/validate        Validate one procedure
    POST   /api/patients/{id}/treatment-plan  Validate an ordered plan
    POST   /api/patients/{id}/claims          Confirm a claim (ledger write)
    GET    /api/patients/{id}/benefits        Ledger snapshot
    GET    /api/patients/{id}/history         Procedure history
    POST   /api/patients/{id}/history         Record history
    GET    /api/patients/{id}/events          Event log

  Finance:
    POST   /api/financial-options             Options for a raw balance

LEDGER OWNERSHIP:
  Claim confirmation is the only path that writes the ledger. Writes
  for the same patient are serialized with a per-patient mutex, and the
  delta is applied atomically with the claim's history/event records,
  so a validated-but-unconfirmed plan never consumes headroom.

ERROR HANDLING:
  - 400: invalid input, malformed plan configuration
  - 404: unknown plan key or catalog code
  - 500: store failures

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lumident/benefits-engine/catalog"
	"github.com/lumident/benefits-engine/coverage"
	"github.com/lumident/benefits-engine/events"
	"github.com/lumident/benefits-engine/finance"
	"github.com/lumident/benefits-engine/plan"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Store bundles every persistence capability the handlers need. Both
// store/memory and store/sqlite satisfy it.
type Store interface {
	coverage.BenefitsStore
	coverage.HistoryStore
	coverage.PlanProvider
	events.Log

	SavePlan(ctx context.Context, key string, p plan.InsurancePlan) error
	ListPlanKeys(ctx context.Context) ([]string, error)
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store   Store
	Catalog *catalog.Catalog

	Validator     *coverage.Validator
	PlanValidator *coverage.PlanValidator
	Finance       *finance.Generator

	// Per-patient write serialization for claim confirmation.
	patientMu sync.Map // patientID -> *sync.Mutex
}

// NewHandler creates a handler over the given store and catalog.
func NewHandler(store Store, cat *catalog.Catalog) *Handler {
	v := coverage.NewValidator(cat)
	return &Handler{
		Store:         store,
		Catalog:       cat,
		Validator:     v,
		PlanValidator: coverage.NewPlanValidator(v),
		Finance:       finance.NewGenerator(),
	}
}

func (h *Handler) lockPatient(patientID string) func() {
	mu, _ := h.patientMu.LoadOrStore(patientID, &sync.Mutex{})
	m := mu.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}

// =============================================================================
// CATALOG HANDLERS
// =============================================================================

// ListCodes returns the full procedure catalog.
func (h *Handler) ListCodes(w http.ResponseWriter, r *http.Request) {
	codes := h.Catalog.Codes()
	out := make([]ProcedureCodeDTO, 0, len(codes))
	for _, c := range codes {
		out = append(out, toProcedureCodeDTO(c))
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"version": h.Catalog.Version(),
		"codes":   out,
	})
}

// GetCode returns one catalog entry.
func (h *Handler) GetCode(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	p, ok := h.Catalog.Lookup(code)
	if !ok {
		respondError(w, http.StatusNotFound, "unknown CDT code: "+code)
		return
	}
	respondJSON(w, http.StatusOK, toProcedureCodeDTO(p))
}

// QuickEstimate returns the plan-free estimate for a code. Intended
// for patients with no plan on file; the rules engine is the real
// computation.
func (h *Handler) QuickEstimate(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	cost, err := h.costOrCatalogFee(code, r.URL.Query().Get("cost"), 0)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	insurer, patient, err := h.Catalog.QuickEstimate(code, cost)
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, QuickEstimateDTO{
		Code:          code,
		Cost:          money(cost),
		InsurerAmount: money(insurer),
		PatientAmount: money(patient),
		Note:          "estimate without plan on file; actual coverage depends on plan rules",
	})
}

// =============================================================================
// PLAN HANDLERS
// =============================================================================

// ListPlans returns all stored plan keys.
func (h *Handler) ListPlans(w http.ResponseWriter, r *http.Request) {
	keys, err := h.Store.ListPlanKeys(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"plans": keys})
}

// CreatePlan parses, validates and stores a plan configuration.
func (h *Handler) CreatePlan(w http.ResponseWriter, r *http.Request) {
	var req CreatePlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Key == "" {
		respondError(w, http.StatusBadRequest, "plan key is required")
		return
	}

	p, err := plan.NewFactory().FromJSON(req.Plan)
	if err != nil {
		// Configuration defects are client errors: the plan is corrupt.
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.Store.SavePlan(r.Context(), req.Key, p); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"key": req.Key, "version": p.Version})
}

// CreateDefaultPlan stores the reference PPO under a key.
func (h *Handler) CreateDefaultPlan(w http.ResponseWriter, r *http.Request) {
	var req CreateDefaultPlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Key == "" {
		respondError(w, http.StatusBadRequest, "plan key is required")
		return
	}

	p := plan.CreateDefaultPlan(req.PayerID, req.PlanName, req.GroupNumber)
	if err := h.Store.SavePlan(r.Context(), req.Key, p); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, plan.NewFactory().ToJSON(p))
}

// GetPlan returns a stored plan's configuration.
func (h *Handler) GetPlan(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	p, err := h.Store.Plan(r.Context(), key)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, plan.NewFactory().ToJSON(p))
}

// =============================================================================
// VALIDATION HANDLERS
// =============================================================================

// ValidateProcedure validates a single procedure for a patient.
func (h *Handler) ValidateProcedure(w http.ResponseWriter, r *http.Request) {
	patientID := chi.URLParam(r, "id")

	var req ValidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	p, used, history, creq, _, err := h.loadValidationInputs(r.Context(), patientID, req.PlanKey, req.BenefitYear, []ProcedureRequest{req.Procedure})
	if err != nil {
		respondStoreError(w, err)
		return
	}

	result := h.Validator.Validate(p, used, history, creq[0])
	respondJSON(w, http.StatusOK, toValidationResultDTO(result))
}

// ValidateTreatmentPlan validates an ordered procedure list as one
// fiscal pass and attaches financial options for the patient total.
func (h *Handler) ValidateTreatmentPlan(w http.ResponseWriter, r *http.Request) {
	patientID := chi.URLParam(r, "id")

	var req ValidatePlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	p, used, history, procedures, _, err := h.loadValidationInputs(r.Context(), patientID, req.PlanKey, req.BenefitYear, req.Procedures)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	validation := h.PlanValidator.Validate(p, used, history, procedures)
	options := h.Finance.Options(validation.TotalPatient)

	// Estimation is an auditable action even before any claim exists.
	ev := events.New(patientID, events.KindValidationPerformed)
	ev.Validation = &events.ValidationPerformed{
		PlanKey:      req.PlanKey,
		Codes:        codesOf(validation),
		TotalInsurer: validation.TotalInsurer.String(),
		TotalPatient: validation.TotalPatient.String(),
	}
	if err := h.Store.Append(r.Context(), ev); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, toPlanValidationDTO(validation, options))
}

// ConfirmClaim re-validates the procedures against the current ledger
// snapshot and commits the resulting delta. The only ledger write path.
func (h *Handler) ConfirmClaim(w http.ResponseWriter, r *http.Request) {
	patientID := chi.URLParam(r, "id")

	var req ConfirmClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	unlock := h.lockPatient(patientID)
	defer unlock()

	p, used, history, procedures, year, err := h.loadValidationInputs(r.Context(), patientID, req.PlanKey, req.BenefitYear, req.Procedures)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	validation := h.PlanValidator.Validate(p, used, history, procedures)
	if len(validation.Results) == 0 {
		respondError(w, http.StatusBadRequest, "no billable procedures in claim")
		return
	}

	next, err := h.Store.Apply(r.Context(), patientID, req.PlanKey, year, validation.Delta)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var records []coverage.HistoryRecord
	for _, proc := range procedures {
		if proc.Code == "" || !proc.Cost.IsPositive() {
			continue
		}
		date := proc.ServiceDate
		if date.IsZero() {
			date = time.Now().UTC()
		}
		records = append(records, coverage.HistoryRecord{
			Code:        proc.Code,
			ServiceDate: date,
			Tooth:       proc.Tooth,
			Quadrant:    proc.Quadrant,
			Surfaces:    proc.Surfaces,
		})
	}
	if err := h.Store.Record(r.Context(), patientID, records...); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	claimID := uuid.NewString()
	ev := events.New(patientID, events.KindClaimConfirmed)
	ev.Claim = &events.ClaimConfirmed{
		ClaimID:     claimID,
		PlanKey:     req.PlanKey,
		BenefitYear: year,
		Codes:       codesOf(validation),
		InsurerPaid: validation.TotalInsurer.String(),
		PatientPaid: validation.TotalPatient.String(),
	}
	batch := append(h.preAuthEvents(patientID, p, validation), ev)
	if err := h.Store.AppendBatch(r.Context(), batch); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusCreated, ClaimDTO{
		ClaimID:     claimID,
		InsurerPaid: money(validation.TotalInsurer),
		PatientPaid: money(validation.TotalPatient),
		Benefits:    toBenefitsDTO(patientID, req.PlanKey, year, next),
		Validation:  toPlanValidationDTO(validation, nil),
	})
}

// =============================================================================
// BENEFITS / HISTORY / EVENTS HANDLERS
// =============================================================================

// GetBenefits returns the ledger snapshot for a benefit year.
func (h *Handler) GetBenefits(w http.ResponseWriter, r *http.Request) {
	patientID := chi.URLParam(r, "id")
	planKey := r.URL.Query().Get("plan_key")
	if planKey == "" {
		respondError(w, http.StatusBadRequest, "plan_key query parameter is required")
		return
	}
	year := time.Now().UTC().Year()
	if y := r.URL.Query().Get("year"); y != "" {
		parsed, err := strconv.Atoi(y)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid year")
			return
		}
		year = parsed
	}

	used, err := h.Store.Snapshot(r.Context(), patientID, planKey, year)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, toBenefitsDTO(patientID, planKey, year, used))
}

// GetHistory returns a patient's procedure history.
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	patientID := chi.URLParam(r, "id")

	filter := coverage.HistoryFilter{Code: r.URL.Query().Get("code")}
	history, err := h.Store.History(r.Context(), patientID, filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]HistoryRecordDTO, 0, len(history))
	for _, rec := range history {
		out = append(out, toHistoryRecordDTO(rec))
	}
	respondJSON(w, http.StatusOK, map[string]any{"history": out})
}

// RecordHistory appends procedure history records.
func (h *Handler) RecordHistory(w http.ResponseWriter, r *http.Request) {
	patientID := chi.URLParam(r, "id")

	var in []HistoryRecordDTO
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	var records []coverage.HistoryRecord
	for _, dto := range in {
		date, err := parseServiceDate(dto.ServiceDate)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid service_date: "+dto.ServiceDate)
			return
		}
		records = append(records, coverage.HistoryRecord{
			Code:        dto.Code,
			ServiceDate: date,
			Tooth:       dto.Tooth,
			Quadrant:    dto.Quadrant,
			Surfaces:    dto.Surfaces,
		})
	}
	if err := h.Store.Record(r.Context(), patientID, records...); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"recorded": len(records)})
}

// ListEvents returns a patient's event log in append order.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	patientID := chi.URLParam(r, "id")
	log, err := h.Store.List(r.Context(), patientID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"events": log})
}

// =============================================================================
// FINANCE HANDLER
// =============================================================================

// FinancialOptions returns payment options for a raw patient balance.
func (h *Handler) FinancialOptions(w http.ResponseWriter, r *http.Request) {
	var req FinancialOptionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	total, err := decimal.NewFromString(req.TotalPatientResponsibility)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid total_patient_responsibility")
		return
	}

	options := h.Finance.Options(total)
	out := make([]FinancialOptionDTO, 0, len(options))
	for _, o := range options {
		out = append(out, toFinancialOptionDTO(o))
	}
	respondJSON(w, http.StatusOK, map[string]any{"options": out})
}

// =============================================================================
// SHARED HELPERS
// =============================================================================

// loadValidationInputs resolves plan, snapshot, history and coverage
// requests for a validation pass. The benefit year defaults to the
// calendar year of the first procedure's service date.
func (h *Handler) loadValidationInputs(ctx context.Context, patientID, planKey string, benefitYear int, procedures []ProcedureRequest) (plan.InsurancePlan, coverage.BenefitsUsed, []coverage.HistoryRecord, []coverage.Request, int, error) {
	p, err := h.Store.Plan(ctx, planKey)
	if err != nil {
		return plan.InsurancePlan{}, coverage.BenefitsUsed{}, nil, nil, 0, err
	}

	requests := make([]coverage.Request, 0, len(procedures))
	for _, pr := range procedures {
		creq, err := h.toCoverageRequest(pr)
		if err != nil {
			return plan.InsurancePlan{}, coverage.BenefitsUsed{}, nil, nil, 0, &badRequestError{msg: err.Error()}
		}
		requests = append(requests, creq)
	}

	anchor := time.Now().UTC()
	if len(requests) > 0 && !requests[0].ServiceDate.IsZero() {
		anchor = requests[0].ServiceDate
	}
	year := benefitYear
	if year == 0 {
		year = p.BenefitYear(plan.PeriodCalendarYear, anchor).Year()
	}

	used, err := h.Store.Snapshot(ctx, patientID, planKey, year)
	if err != nil {
		return plan.InsurancePlan{}, coverage.BenefitsUsed{}, nil, nil, 0, err
	}
	history, err := h.Store.History(ctx, patientID, coverage.HistoryFilter{})
	if err != nil {
		return plan.InsurancePlan{}, coverage.BenefitsUsed{}, nil, nil, 0, err
	}
	return p, used, history, requests, year, nil
}

func (h *Handler) toCoverageRequest(pr ProcedureRequest) (coverage.Request, error) {
	date, err := parseServiceDate(pr.ServiceDate)
	if err != nil {
		return coverage.Request{}, errors.New("invalid service_date: " + pr.ServiceDate)
	}
	cost, err := h.costOrCatalogFee(pr.Code, pr.Cost, len(pr.Surfaces))
	if err != nil {
		return coverage.Request{}, err
	}
	return coverage.Request{
		Code:        pr.Code,
		Cost:        cost,
		Tooth:       pr.Tooth,
		Surfaces:    pr.Surfaces,
		Quadrant:    pr.Quadrant,
		ServiceDate: date,
	}, nil
}

// costOrCatalogFee parses an explicit cost, falling back to the
// catalog fee (surface-scaled) when the client sends none. An unknown
// code with no explicit cost cannot be priced at all, so the catalog
// error surfaces as a 400 instead of a silently dropped line. With an
// explicit cost the validator still prices the line and warns.
func (h *Handler) costOrCatalogFee(code, raw string, surfaces int) (decimal.Decimal, error) {
	if raw != "" {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return decimal.Zero, errors.New("invalid cost: " + raw)
		}
		return d, nil
	}
	if code == "" {
		return decimal.Zero, nil
	}
	fee, err := h.Catalog.Fee(code, surfaces)
	if err != nil {
		return decimal.Zero, err
	}
	return fee, nil
}

// preAuthEvents builds one PreAuthRequested event per result that
// needs payer approval, so the submission requirement is on record
// before the claim itself.
func (h *Handler) preAuthEvents(patientID string, p plan.InsurancePlan, v coverage.PlanValidation) []events.Event {
	var out []events.Event
	for _, res := range v.Results {
		if !res.RequiresPreAuth {
			continue
		}
		var docs []string
		if entry, ok := h.Catalog.Lookup(res.Code); ok {
			if pa, found := p.PreAuthFor(res.Code, entry.Category); found {
				for _, d := range pa.Documents {
					docs = append(docs, string(d))
				}
			}
		}
		ev := events.New(patientID, events.KindPreAuthRequested)
		ev.PreAuth = &events.PreAuthRequested{Code: res.Code, Documents: docs}
		out = append(out, ev)
	}
	return out
}

func codesOf(v coverage.PlanValidation) []string {
	out := make([]string, 0, len(v.Results))
	for _, r := range v.Results {
		out = append(out, r.Code)
	}
	return out
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, ErrorResponse{Error: msg})
}

// badRequestError marks client-input failures raised while loading
// validation inputs.
type badRequestError struct{ msg string }

func (e *badRequestError) Error() string { return e.msg }

func respondStoreError(w http.ResponseWriter, err error) {
	var br *badRequestError
	if errors.As(err, &br) {
		respondError(w, http.StatusBadRequest, br.msg)
		return
	}
	if isNotFound(err) {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	if errors.Is(err, plan.ErrInvalidConfiguration) {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondError(w, http.StatusInternalServerError, err.Error())
}

// isNotFound matches both store packages' NotFoundError types without
// importing either (keeps api decoupled from concrete stores).
func isNotFound(err error) bool {
	var nf interface{ NotFound() bool }
	return errors.As(err, &nf) && nf.NotFound()
}
