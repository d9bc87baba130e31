/*
Package events provides the typed append-only event log for benefit
activity.

PURPOSE:
  Every consequential action - a validation performed, a claim
  confirmed against the ledger, a pre-authorization requested - is
  recorded as a strongly-typed event. The log is the audit trail for
  "why does this ledger look like this".

CRITICAL INVARIANTS:
  1. APPEND-ONLY: no update, no delete
  2. IMMUTABLE: once written, events are never modified
  3. TYPED: one payload struct per kind; no loose JSON blobs

CORRECTIONS:
  A wrong entry is never edited. The correcting action (e.g. a claim
  reversal) appends its own event; history is preserved.

SEE ALSO:
  - store/memory, store/sqlite: Log implementations
*/
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// EVENT KINDS AND PAYLOADS
// =============================================================================

type Kind string

const (
	KindValidationPerformed Kind = "validation_performed"
	KindClaimConfirmed      Kind = "claim_confirmed"
	KindPreAuthRequested    Kind = "preauth_requested"
)

// ValidationPerformed records one estimation pass. Amounts are decimal
// strings at full precision.
type ValidationPerformed struct {
	PlanKey      string   `json:"plan_key"`
	Codes        []string `json:"codes"`
	TotalInsurer string   `json:"total_insurer"`
	TotalPatient string   `json:"total_patient"`
}

// ClaimConfirmed records a ledger delta committed for a claim.
type ClaimConfirmed struct {
	ClaimID     string   `json:"claim_id"`
	PlanKey     string   `json:"plan_key"`
	BenefitYear int      `json:"benefit_year"`
	Codes       []string `json:"codes"`
	InsurerPaid string   `json:"insurer_paid"`
	PatientPaid string   `json:"patient_paid"`
}

// PreAuthRequested records a pre-authorization submission.
type PreAuthRequested struct {
	Code      string   `json:"code"`
	Documents []string `json:"documents"`
}

// Event is one immutable log entry. Exactly one payload pointer is
// non-nil, matching Kind.
type Event struct {
	ID        string    `json:"id"`
	PatientID string    `json:"patient_id"`
	Kind      Kind      `json:"kind"`
	At        time.Time `json:"at"`

	Validation *ValidationPerformed `json:"validation,omitempty"`
	Claim      *ClaimConfirmed      `json:"claim,omitempty"`
	PreAuth    *PreAuthRequested    `json:"preauth,omitempty"`
}

// New creates an event with a fresh ID and timestamp. The caller sets
// the payload matching kind.
func New(patientID string, kind Kind) Event {
	return Event{
		ID:        uuid.NewString(),
		PatientID: patientID,
		Kind:      kind,
		At:        time.Now().UTC(),
	}
}

// =============================================================================
// LOG INTERFACE
// =============================================================================

// Log is the append-only event store.
//
// INVARIANTS:
//   - Append-only: no Update, no Delete
//   - List returns events in append order
type Log interface {
	Append(ctx context.Context, e Event) error
	AppendBatch(ctx context.Context, es []Event) error
	List(ctx context.Context, patientID string) ([]Event, error)
}
