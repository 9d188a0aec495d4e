// Package registry implements the invoice-financing protocol: four
// registries composed into one funding pipeline.
//
// The registries are independent and talk to each other only through the
// read-only capabilities in the interfaces package:
//
//   - IdentityRegistry is the admin-controlled verification gate
//     (interfaces.VerificationOracle).
//   - CertificationRegistry stores invoices and their self-certification
//     (interfaces.CertificationOracle).
//   - RiskRegistry attaches scores in [0, 100] to certified invoices
//     (interfaces.RiskOracle).
//   - FundingRegistry funds verified, certified, risk-assessed invoices
//     once, computes the fee split and later accepts a single repayment
//     (interfaces.FundingOracle).
//
// Admin, fee, assessor set, repayment policy and fee sink live in a single
// ProtocolConfig shared by reference; every mutation of it is
// authorization-checked.
//
// # Protocol
//
// Protocol owns the registries and serializes every operation behind one
// mutex, so cross-registry reads are consistent within an operation and
// all operations are totally ordered. A mutating operation first runs the
// registry's own precondition checks, then consults the lifecycle
// transition table (interfaces.Transition) for the invoice's derived state.
// No state is written unless both pass.
//
// Fundings are settled through an interfaces.Ledger before the funding
// record is written; a failed settlement leaves no record. Successful
// mutations are recorded to an optional interfaces.EventSink, and every
// mutating operation is reported to an optional Observer.
//
// # Usage Example
//
//	p, err := registry.NewProtocol(registry.ProtocolOpts{
//	    Config: registry.ConfigOpts{Admin: admin, FeeBasisPoints: 500, AdminIsAssessor: true},
//	    Ledger: ledger.NewMemoryLedger(),
//	}, logger)
//
//	_ = p.VerifyBusiness(admin, business)
//	_ = p.RegisterInvoice(business, "INV-2023-001", 1000, due, payer)
//	_ = p.CertifyInvoice(business, "INV-2023-001", business)
//	_ = p.AssessRisk(admin, "INV-2023-001", business, 75)
//	record, err := p.FundInvoice(ctx, funder, "INV-2023-001", business)
//
// Snapshot and Restore copy the complete state out of and back into a
// Protocol; Restore validates the cross-registry invariants first.
package registry
