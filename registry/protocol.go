package registry

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/ruteri/invoice-financing-protocol/interfaces"
)

// Observer is notified of every mutating operation. metrics.ProtocolMetrics
// implements it.
type Observer interface {
	ObserveOperation(op string, err error)
	ObserveFunding(record interfaces.FundingRecord)
}

// ProtocolOpts configures a Protocol.
type ProtocolOpts struct {
	Config ConfigOpts

	// Ledger settles fundings. Required.
	Ledger interfaces.Ledger

	// Events and Observer are optional.
	Events   interfaces.EventSink
	Observer Observer

	// Clock defaults to the wall clock.
	Clock clock.Clock
}

// Protocol composes the four registries into the funding pipeline and
// executes one operation at a time. Every mutating operation re-validates
// its preconditions against current state, then checks the lifecycle
// transition table, and only then mutates.
type Protocol struct {
	mu sync.Mutex

	config        *ProtocolConfig
	identity      *IdentityRegistry
	certification *CertificationRegistry
	risk          *RiskRegistry
	funding       *FundingRegistry

	events   interfaces.EventSink
	observer Observer
	clock    clock.Clock
	log      *slog.Logger
}

// NewProtocol wires the registries together.
func NewProtocol(opts ProtocolOpts, log *slog.Logger) (*Protocol, error) {
	if opts.Ledger == nil {
		return nil, errors.New("ledger is required")
	}

	config, err := NewProtocolConfig(opts.Config)
	if err != nil {
		return nil, err
	}

	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}

	identity := NewIdentityRegistry(config, log.With("registry", "identity"))
	certification := NewCertificationRegistry(identity, log.With("registry", "certification"))
	risk := NewRiskRegistry(config, certification, clk, log.With("registry", "risk"))
	funding := NewFundingRegistry(config, FundingDeps{
		Verification:  identity,
		Certification: certification,
		Risk:          risk,
		Ledger:        opts.Ledger,
		Clock:         clk,
	}, log.With("registry", "funding"))

	return &Protocol{
		config:        config,
		identity:      identity,
		certification: certification,
		risk:          risk,
		funding:       funding,
		events:        opts.Events,
		observer:      opts.Observer,
		clock:         clk,
		log:           log,
	}, nil
}

// VerifyBusiness marks business as verified. Admin only.
func (p *Protocol) VerifyBusiness(caller, business interfaces.Address) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := p.identity.VerifyBusiness(caller, business)
	p.commit("verify_business", err, func(ev *interfaces.Event) {
		ev.Kind = interfaces.EventBusinessVerified
		ev.Business = business
	}, caller)
	return err
}

// RevokeVerification marks business as unverified. Admin only.
func (p *Protocol) RevokeVerification(caller, business interfaces.Address) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := p.identity.RevokeVerification(caller, business)
	p.commit("revoke_verification", err, func(ev *interfaces.Event) {
		ev.Kind = interfaces.EventVerificationRevoked
		ev.Business = business
	}, caller)
	return err
}

func (p *Protocol) IsBusinessVerified(business interfaces.Address) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.identity.IsBusinessVerified(business)
}

// SetAdmin replaces the admin. Admin only.
func (p *Protocol) SetAdmin(caller, newAdmin interfaces.Address) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := p.identity.SetAdmin(caller, newAdmin)
	p.commit("set_admin", err, func(ev *interfaces.Event) {
		ev.Kind = interfaces.EventAdminChanged
		ev.Subject = newAdmin
	}, caller)
	return err
}

func (p *Protocol) GetAdmin() interfaces.Address {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.config.Admin()
}

// AddAssessor grants the assessor role. Admin only.
func (p *Protocol) AddAssessor(caller, assessor interfaces.Address) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := p.config.AddAssessor(caller, assessor)
	p.commit("add_assessor", err, func(ev *interfaces.Event) {
		ev.Kind = interfaces.EventAssessorAdded
		ev.Subject = assessor
	}, caller)
	return err
}

// RemoveAssessor revokes the assessor role. Admin only.
func (p *Protocol) RemoveAssessor(caller, assessor interfaces.Address) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := p.config.RemoveAssessor(caller, assessor)
	p.commit("remove_assessor", err, func(ev *interfaces.Event) {
		ev.Kind = interfaces.EventAssessorRemoved
		ev.Subject = assessor
	}, caller)
	return err
}

func (p *Protocol) IsAssessor(addr interfaces.Address) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.config.IsAssessor(addr)
}

// RegisterInvoice records a new uncertified invoice owned by caller.
func (p *Protocol) RegisterInvoice(caller interfaces.Address, invoiceID string, amount uint64, dueDate time.Time, payer interfaces.Address) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := interfaces.InvoiceKey{InvoiceID: invoiceID, Business: caller}
	err := p.guard(key, interfaces.ActionRegister, func() error {
		return p.certification.checkRegister(caller, invoiceID, amount)
	})
	if err == nil {
		err = p.certification.RegisterInvoice(caller, invoiceID, amount, dueDate, payer)
	}
	p.commit("register_invoice", err, func(ev *interfaces.Event) {
		ev.Kind = interfaces.EventInvoiceRegistered
		ev.InvoiceID = invoiceID
		ev.Business = caller
		ev.Amount = amount
		ev.Subject = payer
	}, caller)
	return err
}

// CertifyInvoice self-certifies an invoice of a verified business.
func (p *Protocol) CertifyInvoice(caller interfaces.Address, invoiceID string, business interfaces.Address) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := interfaces.InvoiceKey{InvoiceID: invoiceID, Business: business}
	err := p.guard(key, interfaces.ActionCertify, func() error {
		return p.certification.checkCertify(caller, key)
	})
	if err == nil {
		err = p.certification.CertifyInvoice(caller, invoiceID, business)
	}
	p.commit("certify_invoice", err, func(ev *interfaces.Event) {
		ev.Kind = interfaces.EventInvoiceCertified
		ev.InvoiceID = invoiceID
		ev.Business = business
	}, caller)
	return err
}

func (p *Protocol) GetInvoice(invoiceID string, business interfaces.Address) (interfaces.InvoiceRecord, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.certification.GetInvoice(invoiceID, business)
}

func (p *Protocol) IsInvoiceCertified(invoiceID string, business interfaces.Address) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.certification.IsInvoiceCertified(invoiceID, business)
}

// AssessRisk attaches a score to a certified, not yet funded invoice.
// Once the invoice is funded the score a funder relied on is frozen and
// AssessRisk fails with interfaces.ErrInvalidTransition.
func (p *Protocol) AssessRisk(caller interfaces.Address, invoiceID string, business interfaces.Address, score uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := interfaces.InvoiceKey{InvoiceID: invoiceID, Business: business}
	err := p.guard(key, interfaces.ActionAssessRisk, func() error {
		return p.risk.checkAssess(caller, key, score)
	})
	if err == nil {
		err = p.risk.AssessRisk(caller, invoiceID, business, score)
	}
	p.commit("assess_risk", err, func(ev *interfaces.Event) {
		ev.Kind = interfaces.EventRiskAssessed
		ev.InvoiceID = invoiceID
		ev.Business = business
		ev.Score = score
	}, caller)
	return err
}

// UpdateRiskAssessment overwrites the score of an assessed, not yet funded
// invoice. On a funded or repaid invoice it fails with
// interfaces.ErrInvalidTransition, which is not one of the risk registry's
// own failure kinds.
func (p *Protocol) UpdateRiskAssessment(caller interfaces.Address, invoiceID string, business interfaces.Address, newScore uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := interfaces.InvoiceKey{InvoiceID: invoiceID, Business: business}
	err := p.guard(key, interfaces.ActionUpdateRisk, func() error {
		return p.risk.checkUpdate(caller, key, newScore)
	})
	if err == nil {
		err = p.risk.UpdateRiskAssessment(caller, invoiceID, business, newScore)
	}
	p.commit("update_risk", err, func(ev *interfaces.Event) {
		ev.Kind = interfaces.EventRiskUpdated
		ev.InvoiceID = invoiceID
		ev.Business = business
		ev.Score = newScore
	}, caller)
	return err
}

func (p *Protocol) GetRiskScore(invoiceID string, business interfaces.Address) (interfaces.RiskRecord, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.risk.GetRiskScore(invoiceID, business)
}

// FundInvoice advances the invoice amount from caller and settles the fee
// split through the ledger.
func (p *Protocol) FundInvoice(ctx context.Context, caller interfaces.Address, invoiceID string, business interfaces.Address) (interfaces.FundingRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := interfaces.InvoiceKey{InvoiceID: invoiceID, Business: business}
	var record interfaces.FundingRecord
	err := p.guard(key, interfaces.ActionFund, func() error {
		return p.funding.checkFund(key)
	})
	if err == nil {
		record, err = p.funding.FundInvoice(ctx, caller, invoiceID, business)
	}
	p.commit("fund_invoice", err, func(ev *interfaces.Event) {
		ev.Kind = interfaces.EventInvoiceFunded
		ev.InvoiceID = invoiceID
		ev.Business = business
		ev.Amount = record.Amount
		ev.FeeAmount = record.FeeAmount
	}, caller)
	if err == nil && p.observer != nil {
		p.observer.ObserveFunding(record)
	}
	return record, err
}

// MarkInvoiceRepaid closes a funded position.
func (p *Protocol) MarkInvoiceRepaid(caller interfaces.Address, invoiceID string, business interfaces.Address) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := interfaces.InvoiceKey{InvoiceID: invoiceID, Business: business}
	err := p.guard(key, interfaces.ActionRepay, func() error {
		return p.funding.checkRepay(caller, key)
	})
	if err == nil {
		err = p.funding.MarkInvoiceRepaid(caller, invoiceID, business)
	}
	p.commit("mark_repaid", err, func(ev *interfaces.Event) {
		ev.Kind = interfaces.EventInvoiceRepaid
		ev.InvoiceID = invoiceID
		ev.Business = business
	}, caller)
	return err
}

func (p *Protocol) GetFundingDetails(invoiceID string, business interfaces.Address) (interfaces.FundingRecord, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.funding.GetFundingDetails(invoiceID, business)
}

func (p *Protocol) GetFeePercentage() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.funding.GetFeePercentage()
}

// SetFeePercentage changes the fee applied to future fundings. Admin only.
func (p *Protocol) SetFeePercentage(caller interfaces.Address, newBasisPoints uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := p.funding.SetFeePercentage(caller, newBasisPoints)
	p.commit("set_fee", err, func(ev *interfaces.Event) {
		ev.Kind = interfaces.EventFeeChanged
		ev.FeeBps = newBasisPoints
	}, caller)
	return err
}

// InvoiceState derives the lifecycle position of an invoice.
func (p *Protocol) InvoiceState(invoiceID string, business interfaces.Address) interfaces.InvoiceState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stateOf(interfaces.InvoiceKey{InvoiceID: invoiceID, Business: business})
}

// stateOf must be called with p.mu held.
func (p *Protocol) stateOf(key interfaces.InvoiceKey) interfaces.InvoiceState {
	if record, funded := p.funding.GetFundingDetails(key.InvoiceID, key.Business); funded {
		if record.Repaid {
			return interfaces.StateRepaid
		}
		return interfaces.StateFunded
	}
	if _, assessed := p.risk.GetRiskScore(key.InvoiceID, key.Business); assessed {
		return interfaces.StateRiskAssessed
	}
	invoice, exists := p.certification.GetInvoice(key.InvoiceID, key.Business)
	if !exists {
		return interfaces.StateUnregistered
	}
	if invoice.Certified {
		return interfaces.StateCertified
	}
	return interfaces.StateRegistered
}

// guard runs the operation's own precondition checks first so callers see
// the specific error kind, then rejects anything the transition table does
// not allow from the current state.
func (p *Protocol) guard(key interfaces.InvoiceKey, action interfaces.Action, validate func() error) error {
	if err := validate(); err != nil {
		return err
	}
	if _, err := interfaces.Transition(p.stateOf(key), action); err != nil {
		p.log.Debug("Rejected lifecycle transition", "invoiceId", key.InvoiceID, "business", key.Business, "action", action, "err", err)
		return err
	}
	return nil
}

// commit reports the outcome of a mutating operation and, on success,
// records its event.
func (p *Protocol) commit(op string, err error, fill func(*interfaces.Event), actor interfaces.Address) {
	if p.observer != nil {
		p.observer.ObserveOperation(op, err)
	}
	if err != nil || p.events == nil {
		return
	}

	ev := interfaces.NewEvent("", actor, p.clock.Now().UTC())
	fill(&ev)
	p.events.Record(ev)
}
