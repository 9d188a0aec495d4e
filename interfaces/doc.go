// Package interfaces defines the types and capabilities shared by the
// invoice-financing registries, separating contracts from implementations.
//
// # Records
//
// Every registry is keyed by InvoiceKey, the pair of a caller-chosen invoice id
// and the owning business Address. VerificationRecord, InvoiceRecord,
// RiskRecord and FundingRecord are the stored shapes; reads return a record and
// a presence flag instead of a nullable value.
//
// # Capabilities
//
// The funding registry depends on VerificationOracle, CertificationOracle and
// RiskOracle rather than on concrete registries, and directs value movement
// through a Ledger. Committed transitions are reported to an EventSink.
//
// # Lifecycle
//
// Transition holds the invoice lifecycle table:
//
//	Unregistered -> Registered -> Certified -> RiskAssessed -> Funded -> Repaid
//
// RiskAssessed may be re-entered by re-assessment. No edge is reversible.
//
// # Errors
//
// All failures are sentinel errors matched with errors.Is. ErrorCode maps them
// to stable wire codes such as ERR_INVALID_SCORE.
//
// # Storage
//
// StorageBackend provides content-addressed storage for journaled events and
// state snapshots across file, S3, IPFS and Vault backends.
package interfaces
