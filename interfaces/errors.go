package interfaces

import "errors"

// Protocol error kinds. Every failing operation returns one of these
// (optionally wrapped) and leaves state untouched.
var (
	// ErrNotAuthorized is returned when the caller lacks the role an operation requires.
	ErrNotAuthorized = errors.New("caller not authorized")

	// ErrNotFound is returned when a referenced record is absent.
	ErrNotFound = errors.New("record not found")

	ErrAlreadyExists    = errors.New("invoice already registered")
	ErrAlreadyCertified = errors.New("invoice already certified")
	ErrAlreadyFunded    = errors.New("invoice already funded")
	ErrAlreadyRepaid    = errors.New("invoice already repaid")

	ErrInvalidAmount        = errors.New("invalid amount")
	ErrInvalidScore         = errors.New("risk score out of range")
	ErrInvalidFeePercentage = errors.New("fee basis points out of range")
	ErrInvalidInvoiceID     = errors.New("invalid invoice id")

	// Pipeline ordering failures: an upstream registry does not report the
	// state the operation depends on.
	ErrBusinessNotVerified = errors.New("business not verified")
	ErrInvoiceNotCertified = errors.New("invoice not certified")
	ErrRiskNotAssessed     = errors.New("risk not assessed")

	// ErrInvalidTransition is returned when an action is not in the lifecycle transition table for the invoice's current state.
	ErrInvalidTransition = errors.New("invalid lifecycle transition")

	// ErrSettlementFailed is returned when the value-transfer collaborator rejects a funding settlement.
	ErrSettlementFailed = errors.New("settlement failed")

	// ErrInsufficientFunds is returned by ledgers when the funder cannot cover the advance.
	ErrInsufficientFunds = errors.New("insufficient funds")
)

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrNotAuthorized, "ERR_NOT_AUTHORIZED"},
	{ErrNotFound, "ERR_NOT_FOUND"},
	{ErrAlreadyExists, "ERR_ALREADY_EXISTS"},
	{ErrAlreadyCertified, "ERR_ALREADY_CERTIFIED"},
	{ErrAlreadyFunded, "ERR_ALREADY_FUNDED"},
	{ErrAlreadyRepaid, "ERR_ALREADY_REPAID"},
	{ErrInvalidAmount, "ERR_INVALID_AMOUNT"},
	{ErrInvalidScore, "ERR_INVALID_SCORE"},
	{ErrInvalidFeePercentage, "ERR_INVALID_FEE_PERCENTAGE"},
	{ErrInvalidInvoiceID, "ERR_INVALID_INVOICE_ID"},
	{ErrBusinessNotVerified, "ERR_BUSINESS_NOT_VERIFIED"},
	{ErrInvoiceNotCertified, "ERR_INVOICE_NOT_CERTIFIED"},
	{ErrRiskNotAssessed, "ERR_RISK_NOT_ASSESSED"},
	{ErrInvalidTransition, "ERR_INVALID_TRANSITION"},
	{ErrInsufficientFunds, "ERR_INSUFFICIENT_FUNDS"},
	{ErrSettlementFailed, "ERR_SETTLEMENT_FAILED"},
}

// ErrorCode returns the stable wire code for a protocol error, or
// ERR_INTERNAL for anything else.
func ErrorCode(err error) string {
	for _, c := range errorCodes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "ERR_INTERNAL"
}

// ErrorFromCode maps a wire code back to its sentinel. Unknown codes yield nil.
func ErrorFromCode(code string) error {
	for _, c := range errorCodes {
		if c.code == code {
			return c.err
		}
	}
	return nil
}
