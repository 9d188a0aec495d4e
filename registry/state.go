package registry

import (
	"errors"
	"fmt"
	"time"

	"github.com/holiman/uint256"
	"github.com/ruteri/invoice-financing-protocol/interfaces"
)

// ErrInvalidState is returned by Restore when a state violates a protocol
// invariant.
var ErrInvalidState = errors.New("invalid protocol state")

// State is a complete, consistent copy of the protocol. Record slices are
// sorted by business then invoice id.
type State struct {
	Admin           interfaces.Address   `json:"admin"`
	FeeBasisPoints  uint64               `json:"fee_basis_points"`
	Assessors       []interfaces.Address `json:"assessors"`
	AdminIsAssessor bool                 `json:"admin_is_assessor"`
	RepaymentPolicy string               `json:"repayment_policy"`
	FeeSink         interfaces.Address   `json:"fee_sink"`

	Verifications []interfaces.VerificationRecord `json:"verifications"`
	Invoices      []interfaces.InvoiceRecord      `json:"invoices"`
	Risks         []interfaces.RiskRecord         `json:"risks"`
	Fundings      []interfaces.FundingRecord      `json:"fundings"`

	TakenAt time.Time `json:"taken_at"`
}

// Snapshot copies the full protocol state between two operations.
func (p *Protocol) Snapshot() State {
	p.mu.Lock()
	defer p.mu.Unlock()

	return State{
		Admin:           p.config.Admin(),
		FeeBasisPoints:  p.config.FeeBasisPoints(),
		Assessors:       p.config.Assessors(),
		AdminIsAssessor: p.config.AdminIsAssessor(),
		RepaymentPolicy: p.config.RepaymentPolicy().String(),
		FeeSink:         p.config.FeeSink(),
		Verifications:   p.identity.export(),
		Invoices:        p.certification.export(),
		Risks:           p.risk.export(),
		Fundings:        p.funding.export(),
		TakenAt:         p.clock.Now().UTC(),
	}
}

// Restore replaces the protocol state with s. Nothing is replaced unless s
// passes validation.
func (p *Protocol) Restore(s State) error {
	policy, err := interfaces.ParseRepaymentPolicy(s.RepaymentPolicy)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidState, err)
	}

	config, err := NewProtocolConfig(ConfigOpts{
		Admin:           s.Admin,
		FeeBasisPoints:  s.FeeBasisPoints,
		Assessors:       s.Assessors,
		AdminIsAssessor: s.AdminIsAssessor,
		RepaymentPolicy: policy,
		FeeSink:         s.FeeSink,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidState, err)
	}

	if err := s.validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidState, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.config.replace(config)
	p.identity.load(s.Verifications)
	p.certification.load(s.Invoices)
	p.risk.load(s.Risks)
	p.funding.load(s.Fundings)

	for _, f := range s.Fundings {
		if current, _ := SplitAmount(f.Amount, s.FeeBasisPoints); f.FeeAmount > current {
			bps, _ := FeeBasisPointsFor(f.Amount, f.FeeAmount)
			p.log.Warn("Restored funding carries a fee above the current rate",
				"invoiceId", f.InvoiceID,
				"business", f.Business,
				"fee", f.FeeAmount,
				"feeBasisPoints", bps,
				"currentFeeBasisPoints", s.FeeBasisPoints)
		}
	}

	p.log.Info("Protocol state restored",
		"takenAt", s.TakenAt,
		"invoices", len(s.Invoices),
		"fundings", len(s.Fundings))
	return nil
}

// validate checks the cross-registry invariants of the record sets.
// Verification at funding time is not checked since it may have been
// revoked since.
func (s State) validate() error {
	seenBusinesses := make(map[interfaces.Address]bool, len(s.Verifications))
	for _, v := range s.Verifications {
		if seenBusinesses[v.Business] {
			return fmt.Errorf("duplicate verification for %s", v.Business)
		}
		seenBusinesses[v.Business] = true
	}

	invoices := make(map[interfaces.InvoiceKey]interfaces.InvoiceRecord, len(s.Invoices))
	for _, inv := range s.Invoices {
		key, err := interfaces.NewInvoiceKey(inv.InvoiceID, inv.Business)
		if err != nil {
			return err
		}
		if _, dup := invoices[key]; dup {
			return fmt.Errorf("duplicate invoice %s", key)
		}
		if inv.Amount == 0 {
			return fmt.Errorf("invoice %s: %w", key, interfaces.ErrInvalidAmount)
		}
		invoices[key] = inv
	}

	risks := make(map[interfaces.InvoiceKey]bool, len(s.Risks))
	for _, r := range s.Risks {
		key := interfaces.InvoiceKey{InvoiceID: r.InvoiceID, Business: r.Business}
		if risks[key] {
			return fmt.Errorf("duplicate risk record %s", key)
		}
		if r.Score > interfaces.MaxRiskScore {
			return fmt.Errorf("risk record %s: %w", key, interfaces.ErrInvalidScore)
		}
		if !invoices[key].Certified {
			return fmt.Errorf("risk record %s: %w", key, interfaces.ErrInvoiceNotCertified)
		}
		risks[key] = true
	}

	fundings := make(map[interfaces.InvoiceKey]bool, len(s.Fundings))
	for _, f := range s.Fundings {
		key := interfaces.InvoiceKey{InvoiceID: f.InvoiceID, Business: f.Business}
		if fundings[key] {
			return fmt.Errorf("duplicate funding %s", key)
		}
		if !risks[key] {
			return fmt.Errorf("funding %s: %w", key, interfaces.ErrRiskNotAssessed)
		}
		if f.Amount != invoices[key].Amount {
			return fmt.Errorf("funding %s: amount %d does not match invoice amount %d", key, f.Amount, invoices[key].Amount)
		}
		if f.FeeAmount > f.Amount {
			return fmt.Errorf("funding %s: fee %d exceeds amount %d", key, f.FeeAmount, f.Amount)
		}
		if _, ok := FeeBasisPointsFor(f.Amount, f.FeeAmount); !ok {
			return fmt.Errorf("funding %s: fee %d on %d matches no fee rate: %w", key, f.FeeAmount, f.Amount, interfaces.ErrInvalidFeePercentage)
		}
		fundings[key] = true
	}
	return nil
}

// FeeBasisPointsFor returns the lowest fee rate under which SplitAmount
// charges exactly fee on amount, and false when no rate does.
func FeeBasisPointsFor(amount, fee uint64) (uint64, bool) {
	if amount == 0 {
		return 0, fee == 0
	}
	// ceil(fee * denominator / amount)
	bps := new(uint256.Int).Mul(uint256.NewInt(fee), uint256.NewInt(interfaces.BasisPointsDenominator))
	bps.Add(bps, uint256.NewInt(amount-1))
	bps.Div(bps, uint256.NewInt(amount))
	if !bps.IsUint64() || bps.Uint64() > interfaces.BasisPointsDenominator {
		return 0, false
	}
	if charged, _ := SplitAmount(amount, bps.Uint64()); charged != fee {
		return 0, false
	}
	return bps.Uint64(), true
}
