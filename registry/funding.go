package registry

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/holiman/uint256"
	"github.com/ruteri/invoice-financing-protocol/interfaces"
)

// FundingRegistry is the terminal consumer of the pipeline. It accepts a
// single funding per invoice once the upstream registries report verified,
// certified and risk-assessed, and a single repayment afterwards. It only
// reads upstream state.
type FundingRegistry struct {
	mu            sync.RWMutex
	config        *ProtocolConfig
	verification  interfaces.VerificationOracle
	certification interfaces.CertificationOracle
	risk          interfaces.RiskOracle
	ledger        interfaces.Ledger
	clock         clock.Clock
	records       map[interfaces.InvoiceKey]interfaces.FundingRecord
	log           *slog.Logger
}

// FundingDeps are the collaborators of a FundingRegistry.
type FundingDeps struct {
	Verification  interfaces.VerificationOracle
	Certification interfaces.CertificationOracle
	Risk          interfaces.RiskOracle
	Ledger        interfaces.Ledger
	Clock         clock.Clock
}

// NewFundingRegistry creates an empty funding registry.
func NewFundingRegistry(config *ProtocolConfig, deps FundingDeps, log *slog.Logger) *FundingRegistry {
	return &FundingRegistry{
		config:        config,
		verification:  deps.Verification,
		certification: deps.Certification,
		risk:          deps.Risk,
		ledger:        deps.Ledger,
		clock:         deps.Clock,
		records:       make(map[interfaces.InvoiceKey]interfaces.FundingRecord),
		log:           log,
	}
}

// SplitAmount returns floor(amount*bps/10000) as the fee and the remainder
// as the net amount. bps above 10000 is treated as 10000.
func SplitAmount(amount, bps uint64) (fee, net uint64) {
	if bps > interfaces.BasisPointsDenominator {
		bps = interfaces.BasisPointsDenominator
	}
	f := new(uint256.Int).Mul(uint256.NewInt(amount), uint256.NewInt(bps))
	f.Div(f, uint256.NewInt(interfaces.BasisPointsDenominator))
	fee = f.Uint64()
	return fee, amount - fee
}

// FundInvoice advances the invoice amount on behalf of caller. The fee is
// computed from the fee in force now and frozen into the record.
// The settlement is directed to the ledger before the record is written;
// a failed settlement leaves no record.
func (r *FundingRegistry) FundInvoice(ctx context.Context, caller interfaces.Address, invoiceID string, business interfaces.Address) (interfaces.FundingRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := interfaces.InvoiceKey{InvoiceID: invoiceID, Business: business}
	invoice, err := r.validateFund(key)
	if err != nil {
		r.log.Debug("Rejected funding", "invoiceId", invoiceID, "business", business, "funder", caller, "err", err)
		return interfaces.FundingRecord{}, err
	}

	bps := r.config.FeeBasisPoints()
	fee, net := SplitAmount(invoice.Amount, bps)

	settlement := interfaces.Settlement{
		Key:      key,
		Funder:   caller,
		Business: business,
		FeeSink:  r.config.FeeSink(),
		Amount:   invoice.Amount,
		Net:      net,
		Fee:      fee,
	}
	if err := r.ledger.Settle(ctx, settlement); err != nil {
		r.log.Error("Funding settlement failed", "invoiceId", invoiceID, "business", business, "funder", caller, "err", err)
		return interfaces.FundingRecord{}, fmt.Errorf("%w: %w", interfaces.ErrSettlementFailed, err)
	}

	record := interfaces.FundingRecord{
		InvoiceID: invoiceID,
		Business:  business,
		Amount:    invoice.Amount,
		FeeAmount: fee,
		Funder:    caller,
		FundedAt:  r.clock.Now().UTC(),
		Repaid:    false,
	}
	r.records[key] = record

	r.log.Info("Invoice funded",
		"invoiceId", invoiceID,
		"business", business,
		"funder", caller,
		"amount", invoice.Amount,
		"fee", fee,
		"net", net,
		"feeBasisPoints", bps)
	return record, nil
}

func (r *FundingRegistry) checkFund(key interfaces.InvoiceKey) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, err := r.validateFund(key)
	return err
}

// validateFund checks the funding preconditions in order and returns the
// invoice. Must be called with r.mu held.
func (r *FundingRegistry) validateFund(key interfaces.InvoiceKey) (interfaces.InvoiceRecord, error) {
	invoice, exists := r.certification.GetInvoice(key.InvoiceID, key.Business)
	if !exists {
		return invoice, interfaces.ErrNotFound
	}
	if !r.verification.IsBusinessVerified(key.Business) {
		return invoice, interfaces.ErrBusinessNotVerified
	}
	if !r.certification.IsInvoiceCertified(key.InvoiceID, key.Business) {
		return invoice, interfaces.ErrInvoiceNotCertified
	}
	if _, assessed := r.risk.GetRiskScore(key.InvoiceID, key.Business); !assessed {
		return invoice, interfaces.ErrRiskNotAssessed
	}
	if _, funded := r.records[key]; funded {
		return invoice, interfaces.ErrAlreadyFunded
	}
	return invoice, nil
}

// MarkInvoiceRepaid closes a funded position. It is bookkeeping only; no
// value moves.
func (r *FundingRegistry) MarkInvoiceRepaid(caller interfaces.Address, invoiceID string, business interfaces.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := interfaces.InvoiceKey{InvoiceID: invoiceID, Business: business}
	if err := r.validateRepay(caller, key); err != nil {
		r.log.Debug("Rejected repayment", "invoiceId", invoiceID, "business", business, "caller", caller, "err", err)
		return err
	}

	record := r.records[key]
	record.Repaid = true
	r.records[key] = record

	r.log.Info("Invoice repaid", "invoiceId", invoiceID, "business", business, "caller", caller)
	return nil
}

func (r *FundingRegistry) checkRepay(caller interfaces.Address, key interfaces.InvoiceKey) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.validateRepay(caller, key)
}

// validateRepay must be called with r.mu held.
func (r *FundingRegistry) validateRepay(caller interfaces.Address, key interfaces.InvoiceKey) error {
	record, exists := r.records[key]
	if !exists {
		return interfaces.ErrNotFound
	}
	if record.Repaid {
		return interfaces.ErrAlreadyRepaid
	}

	invoice, _ := r.certification.GetInvoice(key.InvoiceID, key.Business)
	if !r.config.RepaymentPolicy().Allows(caller, invoice.Payer, key.Business) {
		return interfaces.ErrNotAuthorized
	}
	return nil
}

// GetFundingDetails returns the funding record and whether one exists.
func (r *FundingRegistry) GetFundingDetails(invoiceID string, business interfaces.Address) (interfaces.FundingRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, exists := r.records[interfaces.InvoiceKey{InvoiceID: invoiceID, Business: business}]
	return record, exists
}

// GetFeePercentage returns the current fee in basis points.
func (r *FundingRegistry) GetFeePercentage() uint64 {
	return r.config.FeeBasisPoints()
}

// SetFeePercentage changes the fee for future fundings. Existing records keep
// the fee they were funded at.
func (r *FundingRegistry) SetFeePercentage(caller interfaces.Address, newBasisPoints uint64) error {
	if err := r.config.SetFeeBasisPoints(caller, newBasisPoints); err != nil {
		r.log.Debug("Rejected fee change", "caller", caller, "feeBasisPoints", newBasisPoints, "err", err)
		return err
	}
	r.log.Info("Fee changed", "caller", caller, "feeBasisPoints", newBasisPoints)
	return nil
}

func (r *FundingRegistry) export() []interfaces.FundingRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res := make([]interfaces.FundingRecord, 0, len(r.records))
	for _, rec := range r.records {
		res = append(res, rec)
	}
	slices.SortFunc(res, func(a, b interfaces.FundingRecord) int {
		return compareKeys(interfaces.InvoiceKey{InvoiceID: a.InvoiceID, Business: a.Business}, interfaces.InvoiceKey{InvoiceID: b.InvoiceID, Business: b.Business})
	})
	return res
}

func (r *FundingRegistry) load(records []interfaces.FundingRecord) {
	loaded := make(map[interfaces.InvoiceKey]interfaces.FundingRecord, len(records))
	for _, rec := range records {
		loaded[interfaces.InvoiceKey{InvoiceID: rec.InvoiceID, Business: rec.Business}] = rec
	}

	r.mu.Lock()
	r.records = loaded
	r.mu.Unlock()
}
