package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ruteri/invoice-financing-protocol/cryptoutils"
	"github.com/ruteri/invoice-financing-protocol/interfaces"
)

// Wire codes that do not correspond to a protocol error.
const (
	ErrCodeUnauthenticated = "ERR_UNAUTHENTICATED"
	ErrCodeBadRequest      = "ERR_BAD_REQUEST"
	ErrCodeInternal        = "ERR_INTERNAL"
)

// ErrBadRequest marks malformed requests: undecodable bodies and invalid
// path parameters.
var ErrBadRequest = errors.New("bad request")

// SuccessResponse is returned by mutations without a result.
type SuccessResponse struct {
	Success bool `json:"success"`
}

// ErrorResponse is returned by every failing request.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

type SetAdminRequest struct {
	NewAdmin interfaces.Address `json:"new_admin"`
}

type AdminResponse struct {
	Admin interfaces.Address `json:"admin"`
}

type VerifiedResponse struct {
	Business interfaces.Address `json:"business"`
	Verified bool               `json:"verified"`
}

// RegisterInvoiceRequest registers an invoice for the authenticated caller.
// DueDate is in unix seconds.
type RegisterInvoiceRequest struct {
	InvoiceID string             `json:"invoice_id"`
	Amount    uint64             `json:"amount"`
	DueDate   int64              `json:"due_date"`
	Payer     interfaces.Address `json:"payer"`
}

// DueTime converts DueDate to a UTC time.
func (r RegisterInvoiceRequest) DueTime() time.Time {
	return time.Unix(r.DueDate, 0).UTC()
}

type CertifiedResponse struct {
	Certified bool `json:"certified"`
}

type InvoiceStateResponse struct {
	State interfaces.InvoiceState `json:"state"`
}

type RiskScoreRequest struct {
	Score uint64 `json:"score"`
}

// FundResponse is the committed funding record plus the net advance paid
// to the business.
type FundResponse struct {
	interfaces.FundingRecord
	NetAmount uint64 `json:"net_amount"`
}

type FeeRequest struct {
	FeeBasisPoints uint64 `json:"fee_basis_points"`
}

type FeeResponse struct {
	FeeBasisPoints uint64 `json:"fee_basis_points"`
}

type SnapshotResponse struct {
	ContentID interfaces.ContentID `json:"content_id"`
	TakenAt   time.Time            `json:"taken_at"`
}

// ErrorCodeFor returns the wire code for err, including the codes the
// boundary adds on top of the protocol's own.
func ErrorCodeFor(err error) string {
	switch {
	case errors.Is(err, cryptoutils.ErrUnauthenticated):
		return ErrCodeUnauthenticated
	case errors.Is(err, ErrBadRequest):
		return ErrCodeBadRequest
	default:
		return interfaces.ErrorCode(err)
	}
}

// StatusForError maps an error kind to an HTTP status.
func StatusForError(err error) int {
	switch {
	case errors.Is(err, cryptoutils.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, interfaces.ErrNotAuthorized):
		return http.StatusForbidden
	case errors.Is(err, interfaces.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, interfaces.ErrSettlementFailed):
		return http.StatusBadGateway
	case errors.Is(err, interfaces.ErrAlreadyExists),
		errors.Is(err, interfaces.ErrAlreadyCertified),
		errors.Is(err, interfaces.ErrAlreadyFunded),
		errors.Is(err, interfaces.ErrAlreadyRepaid),
		errors.Is(err, interfaces.ErrBusinessNotVerified),
		errors.Is(err, interfaces.ErrInvoiceNotCertified),
		errors.Is(err, interfaces.ErrRiskNotAssessed),
		errors.Is(err, interfaces.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, interfaces.ErrInvalidAmount),
		errors.Is(err, interfaces.ErrInvalidScore),
		errors.Is(err, interfaces.ErrInvalidFeePercentage),
		errors.Is(err, interfaces.ErrInvalidInvoiceID),
		errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// NewErrorResponse builds the failure body for err.
func NewErrorResponse(err error) ErrorResponse {
	return ErrorResponse{
		Success: false,
		Error:   ErrorCodeFor(err),
		Message: err.Error(),
	}
}

// APIError is a failure reported by the server. It unwraps to the protocol
// sentinel named by Code so callers can use errors.Is across the wire.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Code, e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	switch e.Code {
	case ErrCodeUnauthenticated:
		return cryptoutils.ErrUnauthenticated
	case ErrCodeBadRequest:
		return ErrBadRequest
	default:
		return interfaces.ErrorFromCode(e.Code)
	}
}
