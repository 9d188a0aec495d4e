package interfaces

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

const (
	// MaxRiskScore is the upper bound of a risk score; the lower bound is 0.
	MaxRiskScore uint64 = 100

	// BasisPointsDenominator is 100% expressed in basis points.
	BasisPointsDenominator uint64 = 10000

	// MaxInvoiceIDLength bounds caller-chosen invoice identifiers.
	MaxInvoiceIDLength = 64
)

// Address identifies a principal (business, funder, payer, admin, assessor).
type Address = common.Address

// ParseAddress parses a 0x-prefixed or bare 40-char hex address.
func ParseAddress(s string) (Address, error) {
	if !common.IsHexAddress(s) {
		return Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}

// InvoiceKey is the canonical invoice handle shared by every registry.
// Invoice ids are only unique per owning business.
type InvoiceKey struct {
	InvoiceID string  `json:"invoice_id"`
	Business  Address `json:"business"`
}

// NewInvoiceKey builds a key, validating the invoice id.
func NewInvoiceKey(invoiceID string, business Address) (InvoiceKey, error) {
	if err := ValidateInvoiceID(invoiceID); err != nil {
		return InvoiceKey{}, err
	}
	return InvoiceKey{InvoiceID: invoiceID, Business: business}, nil
}

// String returns business/invoiceId.
func (k InvoiceKey) String() string {
	return k.Business.Hex() + "/" + k.InvoiceID
}

// ValidateInvoiceID rejects empty, oversized or path-unsafe identifiers.
func ValidateInvoiceID(invoiceID string) error {
	if invoiceID == "" {
		return fmt.Errorf("%w: empty", ErrInvalidInvoiceID)
	}
	if len(invoiceID) > MaxInvoiceIDLength {
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalidInvoiceID, MaxInvoiceIDLength)
	}
	if strings.ContainsAny(invoiceID, "/?#") {
		return fmt.Errorf("%w: %q contains reserved characters", ErrInvalidInvoiceID, invoiceID)
	}
	return nil
}

// VerificationRecord is the verification gate for a business.
// Absence means unverified.
type VerificationRecord struct {
	Business Address `json:"business"`
	Verified bool    `json:"verified"`
}

// InvoiceRecord holds invoice metadata and its certification flag.
type InvoiceRecord struct {
	InvoiceID string    `json:"invoice_id"`
	Business  Address   `json:"business"`
	Amount    uint64    `json:"amount"`
	DueDate   time.Time `json:"due_date"`
	Payer     Address   `json:"payer"`
	Certified bool      `json:"certified"`
}

// Key returns the invoice handle of the record.
func (r InvoiceRecord) Key() InvoiceKey {
	return InvoiceKey{InvoiceID: r.InvoiceID, Business: r.Business}
}

// RiskRecord is the latest risk assessment of a certified invoice.
type RiskRecord struct {
	InvoiceID string    `json:"invoice_id"`
	Business  Address   `json:"business"`
	Score     uint64    `json:"score"`
	Timestamp time.Time `json:"timestamp"`
	Assessor  Address   `json:"assessor"`
}

// FundingRecord is written once by a successful funding and flipped to
// repaid once.
type FundingRecord struct {
	InvoiceID string    `json:"invoice_id"`
	Business  Address   `json:"business"`
	Amount    uint64    `json:"amount"`
	FeeAmount uint64    `json:"fee_amount"`
	Funder    Address   `json:"funder"`
	FundedAt  time.Time `json:"funded_at"`
	Repaid    bool      `json:"repaid"`
}

// NetAmount is the part of Amount paid to the business.
func (r FundingRecord) NetAmount() uint64 {
	return r.Amount - r.FeeAmount
}

// RepaymentPolicy decides who may mark a funded invoice as repaid.
type RepaymentPolicy int

const (
	// RepaymentByPayerOrBusiness lets either the invoice payer or the owning business mark repayment.
	RepaymentByPayerOrBusiness RepaymentPolicy = iota
	// RepaymentByPayer restricts repayment marking to the invoice payer.
	RepaymentByPayer
	// RepaymentByBusiness restricts repayment marking to the owning business.
	RepaymentByBusiness
)

// String returns the flag representation of the policy.
func (p RepaymentPolicy) String() string {
	switch p {
	case RepaymentByPayerOrBusiness:
		return "payer-or-business"
	case RepaymentByPayer:
		return "payer"
	case RepaymentByBusiness:
		return "business"
	default:
		return "unknown"
	}
}

// ParseRepaymentPolicy is the inverse of RepaymentPolicy.String.
func ParseRepaymentPolicy(s string) (RepaymentPolicy, error) {
	switch s {
	case "payer-or-business", "":
		return RepaymentByPayerOrBusiness, nil
	case "payer":
		return RepaymentByPayer, nil
	case "business":
		return RepaymentByBusiness, nil
	default:
		return 0, fmt.Errorf("unknown repayment policy %q", s)
	}
}

// Allows reports whether caller may mark an invoice with the given payer and business as repaid.
func (p RepaymentPolicy) Allows(caller, payer, business Address) bool {
	switch p {
	case RepaymentByPayer:
		return caller == payer
	case RepaymentByBusiness:
		return caller == business
	default:
		return caller == payer || caller == business
	}
}
