package handlers

import (
	"net/http"

	"github.com/ruteri/invoice-financing-protocol/api"
	"github.com/ruteri/invoice-financing-protocol/interfaces"
)

// HandleVerifyBusiness marks a business verified.
//
// URL format: POST /api/v1/businesses/{business}/verify
func (h *Handler) HandleVerifyBusiness(w http.ResponseWriter, r *http.Request) {
	business, err := addressParam(r, "business")
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeResult(w, h.protocol.VerifyBusiness(callerFrom(r), business))
}

// HandleRevokeVerification clears a business's verification.
//
// URL format: POST /api/v1/businesses/{business}/revoke
func (h *Handler) HandleRevokeVerification(w http.ResponseWriter, r *http.Request) {
	business, err := addressParam(r, "business")
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeResult(w, h.protocol.RevokeVerification(callerFrom(r), business))
}

func (h *Handler) HandleIsBusinessVerified(w http.ResponseWriter, r *http.Request) {
	business, err := addressParam(r, "business")
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, api.VerifiedResponse{
		Business: business,
		Verified: h.protocol.IsBusinessVerified(business),
	})
}

// HandleSetAdmin transfers the admin role.
//
// URL format: POST /api/v1/admin
// Request body: {"new_admin": "0x..."}
func (h *Handler) HandleSetAdmin(w http.ResponseWriter, r *http.Request) {
	var req api.SetAdminRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeResult(w, h.protocol.SetAdmin(callerFrom(r), req.NewAdmin))
}

func (h *Handler) HandleGetAdmin(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, api.AdminResponse{Admin: h.protocol.GetAdmin()})
}

func (h *Handler) HandleAddAssessor(w http.ResponseWriter, r *http.Request) {
	assessor, err := addressParam(r, "assessor")
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeResult(w, h.protocol.AddAssessor(callerFrom(r), assessor))
}

func (h *Handler) HandleRemoveAssessor(w http.ResponseWriter, r *http.Request) {
	assessor, err := addressParam(r, "assessor")
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeResult(w, h.protocol.RemoveAssessor(callerFrom(r), assessor))
}

// HandleRegisterInvoice registers an invoice owned by the caller.
//
// URL format: POST /api/v1/invoices
// Request body: {"invoice_id": "...", "amount": 1000, "due_date": 1672531200, "payer": "0x..."}
func (h *Handler) HandleRegisterInvoice(w http.ResponseWriter, r *http.Request) {
	var req api.RegisterInvoiceRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeResult(w, h.protocol.RegisterInvoice(callerFrom(r), req.InvoiceID, req.Amount, req.DueTime(), req.Payer))
}

func (h *Handler) HandleCertifyInvoice(w http.ResponseWriter, r *http.Request) {
	invoiceID, business, err := invoiceParams(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeResult(w, h.protocol.CertifyInvoice(callerFrom(r), invoiceID, business))
}

func (h *Handler) HandleGetInvoice(w http.ResponseWriter, r *http.Request) {
	invoiceID, business, err := invoiceParams(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	invoice, ok := h.protocol.GetInvoice(invoiceID, business)
	if !ok {
		h.writeError(w, notFound("invoice"))
		return
	}
	h.writeJSON(w, http.StatusOK, invoice)
}

func (h *Handler) HandleIsInvoiceCertified(w http.ResponseWriter, r *http.Request) {
	invoiceID, business, err := invoiceParams(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, api.CertifiedResponse{
		Certified: h.protocol.IsInvoiceCertified(invoiceID, business),
	})
}

func (h *Handler) HandleInvoiceState(w http.ResponseWriter, r *http.Request) {
	invoiceID, business, err := invoiceParams(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, api.InvoiceStateResponse{
		State: h.protocol.InvoiceState(invoiceID, business),
	})
}

// HandleAssessRisk records the first (or a replacement) risk score.
//
// URL format: POST /api/v1/invoices/{business}/{invoiceId}/risk
// Request body: {"score": 75}
func (h *Handler) HandleAssessRisk(w http.ResponseWriter, r *http.Request) {
	invoiceID, business, err := invoiceParams(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	var req api.RiskScoreRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeResult(w, h.protocol.AssessRisk(callerFrom(r), invoiceID, business, req.Score))
}

// HandleUpdateRisk replaces an existing risk score.
//
// URL format: PUT /api/v1/invoices/{business}/{invoiceId}/risk
func (h *Handler) HandleUpdateRisk(w http.ResponseWriter, r *http.Request) {
	invoiceID, business, err := invoiceParams(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	var req api.RiskScoreRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeResult(w, h.protocol.UpdateRiskAssessment(callerFrom(r), invoiceID, business, req.Score))
}

func (h *Handler) HandleGetRiskScore(w http.ResponseWriter, r *http.Request) {
	invoiceID, business, err := invoiceParams(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	risk, ok := h.protocol.GetRiskScore(invoiceID, business)
	if !ok {
		h.writeError(w, notFound("risk assessment"))
		return
	}
	h.writeJSON(w, http.StatusOK, risk)
}

// HandleFundInvoice funds an invoice from the caller and returns the
// committed record.
//
// URL format: POST /api/v1/invoices/{business}/{invoiceId}/fund
func (h *Handler) HandleFundInvoice(w http.ResponseWriter, r *http.Request) {
	invoiceID, business, err := invoiceParams(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	record, err := h.protocol.FundInvoice(r.Context(), callerFrom(r), invoiceID, business)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, api.FundResponse{
		FundingRecord: record,
		NetAmount:     record.NetAmount(),
	})
}

func (h *Handler) HandleMarkRepaid(w http.ResponseWriter, r *http.Request) {
	invoiceID, business, err := invoiceParams(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeResult(w, h.protocol.MarkInvoiceRepaid(callerFrom(r), invoiceID, business))
}

func (h *Handler) HandleGetFundingDetails(w http.ResponseWriter, r *http.Request) {
	invoiceID, business, err := invoiceParams(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	record, ok := h.protocol.GetFundingDetails(invoiceID, business)
	if !ok {
		h.writeError(w, notFound("funding"))
		return
	}
	h.writeJSON(w, http.StatusOK, record)
}

func (h *Handler) HandleGetFee(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, api.FeeResponse{FeeBasisPoints: h.protocol.GetFeePercentage()})
}

// HandleSetFee changes the protocol fee.
//
// URL format: POST /api/v1/fee
// Request body: {"fee_basis_points": 500}
func (h *Handler) HandleSetFee(w http.ResponseWriter, r *http.Request) {
	var req api.FeeRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeResult(w, h.protocol.SetFeePercentage(callerFrom(r), req.FeeBasisPoints))
}

// HandleSnapshot stores the full protocol state and returns its content id.
// Admin only.
//
// URL format: POST /api/v1/snapshot
func (h *Handler) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	if callerFrom(r) != h.protocol.GetAdmin() {
		h.writeError(w, interfaces.ErrNotAuthorized)
		return
	}
	if h.snapshots == nil {
		h.writeError(w, errSnapshotsDisabled)
		return
	}

	state := h.protocol.Snapshot()
	id, err := h.snapshots.Save(r.Context(), state)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.log.Info("snapshot stored", "contentID", id.String(), "takenAt", state.TakenAt)
	h.writeJSON(w, http.StatusOK, api.SnapshotResponse{ContentID: id, TakenAt: state.TakenAt})
}
