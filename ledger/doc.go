// Package ledger provides the value-transfer collaborators that settle
// invoice fundings.
//
// MemoryLedger keeps balances in process and moves the full settlement in
// one step. EthLedger pays the net amount out of a protocol escrow account
// on an Ethereum-compatible chain; the escrow doubles as the fee sink, so
// the fee stays where it is.
package ledger
