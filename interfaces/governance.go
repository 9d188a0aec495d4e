package interfaces

import (
	"context"
)

// VerificationOracle answers whether a business currently passes the verification gate.
type VerificationOracle interface {
	IsBusinessVerified(business Address) bool
}

// CertificationOracle exposes invoice metadata and certification status.
type CertificationOracle interface {
	// GetInvoice returns the invoice record and whether it exists.
	GetInvoice(invoiceID string, business Address) (InvoiceRecord, bool)

	// IsInvoiceCertified defaults to false for unknown invoices.
	IsInvoiceCertified(invoiceID string, business Address) bool
}

// RiskOracle exposes the latest risk assessment of an invoice.
type RiskOracle interface {
	// GetRiskScore returns the risk record and whether one exists.
	GetRiskScore(invoiceID string, business Address) (RiskRecord, bool)
}

// FundingOracle exposes funding positions.
type FundingOracle interface {
	// GetFundingDetails returns the funding record and whether one exists.
	GetFundingDetails(invoiceID string, business Address) (FundingRecord, bool)
}

// Settlement is the value movement directed by a successful funding:
// Net goes from Funder to Business, Fee from Funder to FeeSink.
type Settlement struct {
	Key      InvoiceKey
	Funder   Address
	Business Address
	FeeSink  Address
	Amount   uint64
	Net      uint64
	Fee      uint64
}

// Ledger is the value-transfer primitive of the hosting environment.
// Settle must either move all of the settlement or nothing.
type Ledger interface {
	Settle(ctx context.Context, s Settlement) error
}

// EventSink receives an event for every committed state transition.
// Record must not block the caller for long.
type EventSink interface {
	Record(Event)
}
