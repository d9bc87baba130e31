/*
Package memory provides in-memory store implementations (testing/dev).

PURPOSE:
  Implements the coverage collaborator interfaces (BenefitsStore,
  HistoryStore, PlanProvider) and the events.Log against plain maps
  guarded by a RWMutex. Behavior matches store/sqlite so tests can run
  against either.
*/
package memory

import (
	"context"
	"sync"

	"github.com/lumident/benefits-engine/coverage"
	"github.com/lumident/benefits-engine/events"
	"github.com/lumident/benefits-engine/plan"
)

// Store is the in-memory implementation of all collaborator interfaces.
type Store struct {
	mu       sync.RWMutex
	benefits map[ledgerKey]coverage.BenefitsUsed
	history  map[string][]coverage.HistoryRecord
	plans    map[string]plan.InsurancePlan
	events   map[string][]events.Event
}

type ledgerKey struct {
	PatientID string
	PlanKey   string
	Year      int
}

// New creates an empty store.
func New() *Store {
	return &Store{
		benefits: make(map[ledgerKey]coverage.BenefitsUsed),
		history:  make(map[string][]coverage.HistoryRecord),
		plans:    make(map[string]plan.InsurancePlan),
		events:   make(map[string][]events.Event),
	}
}

var (
	_ coverage.BenefitsStore = (*Store)(nil)
	_ coverage.HistoryStore  = (*Store)(nil)
	_ coverage.PlanProvider  = (*Store)(nil)
	_ events.Log             = (*Store)(nil)
)

// =============================================================================
// BENEFITS LEDGER
// =============================================================================

// Snapshot returns the totals for (patient, plan, year). A missing
// ledger reads as zero totals.
func (s *Store) Snapshot(_ context.Context, patientID, planKey string, year int) (coverage.BenefitsUsed, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.benefits[ledgerKey{patientID, planKey, year}], nil
}

// Apply adds the delta atomically and returns the resulting snapshot.
func (s *Store) Apply(_ context.Context, patientID, planKey string, year int, delta coverage.LedgerDelta) (coverage.BenefitsUsed, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := ledgerKey{patientID, planKey, year}
	next := s.benefits[k].Apply(delta)
	s.benefits[k] = next
	return next, nil
}

// =============================================================================
// PROCEDURE HISTORY
// =============================================================================

func (s *Store) History(_ context.Context, patientID string, filter coverage.HistoryFilter) ([]coverage.HistoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []coverage.HistoryRecord
	for _, h := range s.history[patientID] {
		if filter.Code != "" && h.Code != filter.Code {
			continue
		}
		if !filter.From.IsZero() && h.ServiceDate.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && h.ServiceDate.After(filter.To) {
			continue
		}
		out = append(out, h)
	}
	return out, nil
}

func (s *Store) Record(_ context.Context, patientID string, records ...coverage.HistoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history[patientID] = append(s.history[patientID], records...)
	return nil
}

// =============================================================================
// PLANS
// =============================================================================

func (s *Store) Plan(_ context.Context, key string) (plan.InsurancePlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.plans[key]
	if !ok {
		return plan.InsurancePlan{}, &NotFoundError{Kind: "plan", Key: key}
	}
	return p, nil
}

// SavePlan stores a plan under a lookup key, replacing any previous
// version.
func (s *Store) SavePlan(_ context.Context, key string, p plan.InsurancePlan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plans[key] = p
	return nil
}

// ListPlanKeys returns all stored plan keys.
func (s *Store) ListPlanKeys(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.plans))
	for k := range s.plans {
		keys = append(keys, k)
	}
	return keys, nil
}

// =============================================================================
// EVENT LOG
// =============================================================================

func (s *Store) Append(_ context.Context, e events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[e.PatientID] = append(s.events[e.PatientID], e)
	return nil
}

func (s *Store) AppendBatch(ctx context.Context, es []events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range es {
		s.events[e.PatientID] = append(s.events[e.PatientID], e)
	}
	return nil
}

func (s *Store) List(_ context.Context, patientID string) ([]events.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]events.Event, len(s.events[patientID]))
	copy(out, s.events[patientID])
	return out, nil
}

// =============================================================================
// ERRORS
// =============================================================================

// NotFoundError indicates a missing stored record.
type NotFoundError struct {
	Kind string
	Key  string
}

func (e *NotFoundError) Error() string {
	return e.Kind + " not found: " + e.Key
}

// NotFound marks the error for transport-layer status mapping.
func (e *NotFoundError) NotFound() bool { return true }
