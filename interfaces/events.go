package interfaces

import (
	"time"

	"github.com/google/uuid"
)

// EventKind names a committed state transition.
type EventKind string

const (
	EventBusinessVerified    EventKind = "business_verified"
	EventVerificationRevoked EventKind = "verification_revoked"
	EventAdminChanged        EventKind = "admin_changed"
	EventAssessorAdded       EventKind = "assessor_added"
	EventAssessorRemoved     EventKind = "assessor_removed"
	EventInvoiceRegistered   EventKind = "invoice_registered"
	EventInvoiceCertified    EventKind = "invoice_certified"
	EventRiskAssessed        EventKind = "risk_assessed"
	EventRiskUpdated         EventKind = "risk_updated"
	EventInvoiceFunded       EventKind = "invoice_funded"
	EventInvoiceRepaid       EventKind = "invoice_repaid"
	EventFeeChanged          EventKind = "fee_changed"
)

// Event is the journal entry of a committed operation. Fields that do not
// apply to the kind are left zero.
type Event struct {
	ID        uuid.UUID `json:"id"`
	Kind      EventKind `json:"kind"`
	Actor     Address   `json:"actor"`
	At        time.Time `json:"at"`
	InvoiceID string    `json:"invoice_id,omitempty"`
	Business  Address   `json:"business"`
	Subject   Address   `json:"subject"`
	Amount    uint64    `json:"amount,omitempty"`
	FeeAmount uint64    `json:"fee_amount,omitempty"`
	Score     uint64    `json:"score,omitempty"`
	FeeBps    uint64    `json:"fee_bps,omitempty"`
}

// NewEvent stamps a fresh event id.
func NewEvent(kind EventKind, actor Address, at time.Time) Event {
	return Event{
		ID:    uuid.New(),
		Kind:  kind,
		Actor: actor,
		At:    at,
	}
}
