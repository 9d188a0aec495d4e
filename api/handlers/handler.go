package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/go-chi/chi/v5"
	"github.com/ruteri/invoice-financing-protocol/api"
	"github.com/ruteri/invoice-financing-protocol/cryptoutils"
	"github.com/ruteri/invoice-financing-protocol/interfaces"
	"github.com/ruteri/invoice-financing-protocol/registry"
)

// maxBodySize is the maximum allowed request body size (1MB).
const maxBodySize = 1024 * 1024

type callerKey struct{}

// SnapshotSaver persists a protocol snapshot. Implemented by
// storage.SnapshotStore.
type SnapshotSaver interface {
	Save(ctx context.Context, state registry.State) (interfaces.ContentID, error)
}

type HandlerOpts struct {
	// Snapshots enables POST /api/v1/snapshot when set.
	Snapshots SnapshotSaver

	// Clock is used to check caller signature timestamps.
	Clock clock.Clock

	// MaxSkew defaults to cryptoutils.DefaultMaxSkew.
	MaxSkew time.Duration

	// ReplayCapacity bounds the signed requests remembered for replay
	// detection. Defaults to cryptoutils.DefaultReplayCapacity.
	ReplayCapacity int
}

// Handler serves the protocol operations over HTTP.
type Handler struct {
	protocol  *registry.Protocol
	snapshots SnapshotSaver
	clock     clock.Clock
	callers   *cryptoutils.CallerVerifier
	log       *slog.Logger
}

func NewHandler(protocol *registry.Protocol, opts HandlerOpts, log *slog.Logger) *Handler {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	return &Handler{
		protocol:  protocol,
		snapshots: opts.Snapshots,
		clock:     opts.Clock,
		callers:   cryptoutils.NewCallerVerifier(opts.MaxSkew, opts.ReplayCapacity),
		log:       log,
	}
}

// RegisterRoutes mounts the protocol routes on r. Mutations require a
// caller signature, reads are public.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/businesses/{business}/verified", h.HandleIsBusinessVerified)
		r.Get("/admin", h.HandleGetAdmin)
		r.Get("/fee", h.HandleGetFee)
		r.Get("/invoices/{business}/{invoiceId}", h.HandleGetInvoice)
		r.Get("/invoices/{business}/{invoiceId}/certified", h.HandleIsInvoiceCertified)
		r.Get("/invoices/{business}/{invoiceId}/state", h.HandleInvoiceState)
		r.Get("/invoices/{business}/{invoiceId}/risk", h.HandleGetRiskScore)
		r.Get("/invoices/{business}/{invoiceId}/funding", h.HandleGetFundingDetails)

		r.Group(func(r chi.Router) {
			r.Use(h.authenticate)

			r.Post("/businesses/{business}/verify", h.HandleVerifyBusiness)
			r.Post("/businesses/{business}/revoke", h.HandleRevokeVerification)
			r.Post("/admin", h.HandleSetAdmin)
			r.Post("/assessors/{assessor}", h.HandleAddAssessor)
			r.Delete("/assessors/{assessor}", h.HandleRemoveAssessor)
			r.Post("/fee", h.HandleSetFee)
			r.Post("/invoices", h.HandleRegisterInvoice)
			r.Post("/invoices/{business}/{invoiceId}/certify", h.HandleCertifyInvoice)
			r.Post("/invoices/{business}/{invoiceId}/risk", h.HandleAssessRisk)
			r.Put("/invoices/{business}/{invoiceId}/risk", h.HandleUpdateRisk)
			r.Post("/invoices/{business}/{invoiceId}/fund", h.HandleFundInvoice)
			r.Post("/invoices/{business}/{invoiceId}/repay", h.HandleMarkRepaid)
			r.Post("/snapshot", h.HandleSnapshot)
		})
	})
}

// authenticate verifies the caller headers, refuses replays of an already
// accepted request and stores the caller address in the request context.
// The body is buffered so handlers can read it again.
func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
		if err != nil {
			h.writeError(w, fmt.Errorf("%w: failed to read request body: %w", api.ErrBadRequest, err))
			return
		}

		caller, err := h.callers.Verify(r, body, h.clock.Now())
		if err != nil {
			h.log.Debug("rejected unauthenticated request", "path", r.URL.Path, "err", err)
			h.writeError(w, err)
			return
		}

		r.Body = io.NopCloser(bytes.NewReader(body))
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), callerKey{}, caller)))
	})
}

func callerFrom(r *http.Request) interfaces.Address {
	caller, _ := r.Context().Value(callerKey{}).(interfaces.Address)
	return caller
}

func addressParam(r *http.Request, name string) (interfaces.Address, error) {
	addr, err := interfaces.ParseAddress(chi.URLParam(r, name))
	if err != nil {
		return interfaces.Address{}, fmt.Errorf("%w: %s: %w", api.ErrBadRequest, name, err)
	}
	return addr, nil
}

func invoiceParams(r *http.Request) (string, interfaces.Address, error) {
	business, err := addressParam(r, "business")
	if err != nil {
		return "", interfaces.Address{}, err
	}
	return chi.URLParam(r, "invoiceId"), business, nil
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid request body: %w", api.ErrBadRequest, err)
	}
	return nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("Failed to encode response", "err", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := api.StatusForError(err)
	if status == http.StatusInternalServerError {
		h.log.Error("request failed", "err", err)
	}
	h.writeJSON(w, status, api.NewErrorResponse(err))
}

func (h *Handler) writeResult(w http.ResponseWriter, err error) {
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, api.SuccessResponse{Success: true})
}

func notFound(what string) error {
	return fmt.Errorf("%w: %s", interfaces.ErrNotFound, what)
}

var errSnapshotsDisabled = errors.New("snapshot storage not configured")
