package clients

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ruteri/invoice-financing-protocol/api"
	"github.com/ruteri/invoice-financing-protocol/cryptoutils"
	"github.com/ruteri/invoice-financing-protocol/interfaces"
)

type ClientOpts struct {
	// HTTPClient defaults to a client with a 30s timeout.
	HTTPClient *http.Client

	// Clock stamps request signatures. Defaults to the wall clock.
	Clock clock.Clock
}

// FinancingClient calls the protocol server, signing every mutation with
// the caller key.
type FinancingClient struct {
	serverAddr string
	key        *ecdsa.PrivateKey
	httpClient *http.Client
	clock      clock.Clock
}

// NewFinancingClient creates a client for the server at serverAddr. key may
// be nil for a read-only client.
func NewFinancingClient(serverAddr string, key *ecdsa.PrivateKey, opts ClientOpts) *FinancingClient {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	return &FinancingClient{
		serverAddr: strings.TrimSuffix(serverAddr, "/"),
		key:        key,
		httpClient: opts.HTTPClient,
		clock:      opts.Clock,
	}
}

// Address returns the caller address of the client key.
func (c *FinancingClient) Address() interfaces.Address {
	if c.key == nil {
		return interfaces.Address{}
	}
	return crypto.PubkeyToAddress(c.key.PublicKey)
}

func invoicePath(invoiceID string, business interfaces.Address, suffix string) string {
	return fmt.Sprintf("/api/v1/invoices/%s/%s%s", business.Hex(), url.PathEscape(invoiceID), suffix)
}

// do performs a request and decodes a 200 response into out. Failures are
// returned as *api.APIError.
func (c *FinancingClient) do(ctx context.Context, method, path string, in, out any, signed bool) error {
	var body []byte
	if in != nil {
		var err error
		if body, err = json.Marshal(in); err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.serverAddr+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	if signed {
		if c.key == nil {
			return errors.New("a caller key is required for this operation")
		}
		if err := cryptoutils.SignRequest(req, body, c.key, c.clock.Now()); err != nil {
			return err
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("could not reach %s: %w", path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp api.ErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err != nil || errResp.Error == "" {
			return &api.APIError{StatusCode: resp.StatusCode, Code: api.ErrCodeInternal, Message: string(respBody)}
		}
		return &api.APIError{StatusCode: resp.StatusCode, Code: errResp.Error, Message: errResp.Message}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// lookup turns a not-found failure into a false result.
func lookup(err error) (bool, error) {
	if errors.Is(err, interfaces.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (c *FinancingClient) VerifyBusiness(ctx context.Context, business interfaces.Address) error {
	return c.do(ctx, http.MethodPost, "/api/v1/businesses/"+business.Hex()+"/verify", nil, nil, true)
}

func (c *FinancingClient) RevokeVerification(ctx context.Context, business interfaces.Address) error {
	return c.do(ctx, http.MethodPost, "/api/v1/businesses/"+business.Hex()+"/revoke", nil, nil, true)
}

func (c *FinancingClient) IsBusinessVerified(ctx context.Context, business interfaces.Address) (bool, error) {
	var resp api.VerifiedResponse
	err := c.do(ctx, http.MethodGet, "/api/v1/businesses/"+business.Hex()+"/verified", nil, &resp, false)
	return resp.Verified, err
}

func (c *FinancingClient) SetAdmin(ctx context.Context, newAdmin interfaces.Address) error {
	return c.do(ctx, http.MethodPost, "/api/v1/admin", api.SetAdminRequest{NewAdmin: newAdmin}, nil, true)
}

func (c *FinancingClient) GetAdmin(ctx context.Context) (interfaces.Address, error) {
	var resp api.AdminResponse
	err := c.do(ctx, http.MethodGet, "/api/v1/admin", nil, &resp, false)
	return resp.Admin, err
}

func (c *FinancingClient) AddAssessor(ctx context.Context, assessor interfaces.Address) error {
	return c.do(ctx, http.MethodPost, "/api/v1/assessors/"+assessor.Hex(), nil, nil, true)
}

func (c *FinancingClient) RemoveAssessor(ctx context.Context, assessor interfaces.Address) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/assessors/"+assessor.Hex(), nil, nil, true)
}

// RegisterInvoice registers an invoice owned by the client's address.
func (c *FinancingClient) RegisterInvoice(ctx context.Context, invoiceID string, amount uint64, dueDate time.Time, payer interfaces.Address) error {
	return c.do(ctx, http.MethodPost, "/api/v1/invoices", api.RegisterInvoiceRequest{
		InvoiceID: invoiceID,
		Amount:    amount,
		DueDate:   dueDate.Unix(),
		Payer:     payer,
	}, nil, true)
}

func (c *FinancingClient) CertifyInvoice(ctx context.Context, invoiceID string, business interfaces.Address) error {
	return c.do(ctx, http.MethodPost, invoicePath(invoiceID, business, "/certify"), nil, nil, true)
}

// GetInvoice returns the invoice and whether it exists.
func (c *FinancingClient) GetInvoice(ctx context.Context, invoiceID string, business interfaces.Address) (interfaces.InvoiceRecord, bool, error) {
	var record interfaces.InvoiceRecord
	found, err := lookup(c.do(ctx, http.MethodGet, invoicePath(invoiceID, business, ""), nil, &record, false))
	return record, found, err
}

func (c *FinancingClient) IsInvoiceCertified(ctx context.Context, invoiceID string, business interfaces.Address) (bool, error) {
	var resp api.CertifiedResponse
	err := c.do(ctx, http.MethodGet, invoicePath(invoiceID, business, "/certified"), nil, &resp, false)
	return resp.Certified, err
}

func (c *FinancingClient) InvoiceState(ctx context.Context, invoiceID string, business interfaces.Address) (interfaces.InvoiceState, error) {
	var resp api.InvoiceStateResponse
	err := c.do(ctx, http.MethodGet, invoicePath(invoiceID, business, "/state"), nil, &resp, false)
	return resp.State, err
}

func (c *FinancingClient) AssessRisk(ctx context.Context, invoiceID string, business interfaces.Address, score uint64) error {
	return c.do(ctx, http.MethodPost, invoicePath(invoiceID, business, "/risk"), api.RiskScoreRequest{Score: score}, nil, true)
}

func (c *FinancingClient) UpdateRiskAssessment(ctx context.Context, invoiceID string, business interfaces.Address, score uint64) error {
	return c.do(ctx, http.MethodPut, invoicePath(invoiceID, business, "/risk"), api.RiskScoreRequest{Score: score}, nil, true)
}

// GetRiskScore returns the latest risk record and whether one exists.
func (c *FinancingClient) GetRiskScore(ctx context.Context, invoiceID string, business interfaces.Address) (interfaces.RiskRecord, bool, error) {
	var record interfaces.RiskRecord
	found, err := lookup(c.do(ctx, http.MethodGet, invoicePath(invoiceID, business, "/risk"), nil, &record, false))
	return record, found, err
}

// FundInvoice funds an invoice from the client's address.
func (c *FinancingClient) FundInvoice(ctx context.Context, invoiceID string, business interfaces.Address) (api.FundResponse, error) {
	var resp api.FundResponse
	err := c.do(ctx, http.MethodPost, invoicePath(invoiceID, business, "/fund"), nil, &resp, true)
	return resp, err
}

func (c *FinancingClient) MarkInvoiceRepaid(ctx context.Context, invoiceID string, business interfaces.Address) error {
	return c.do(ctx, http.MethodPost, invoicePath(invoiceID, business, "/repay"), nil, nil, true)
}

// GetFundingDetails returns the funding record and whether one exists.
func (c *FinancingClient) GetFundingDetails(ctx context.Context, invoiceID string, business interfaces.Address) (interfaces.FundingRecord, bool, error) {
	var record interfaces.FundingRecord
	found, err := lookup(c.do(ctx, http.MethodGet, invoicePath(invoiceID, business, "/funding"), nil, &record, false))
	return record, found, err
}

func (c *FinancingClient) GetFeePercentage(ctx context.Context) (uint64, error) {
	var resp api.FeeResponse
	err := c.do(ctx, http.MethodGet, "/api/v1/fee", nil, &resp, false)
	return resp.FeeBasisPoints, err
}

func (c *FinancingClient) SetFeePercentage(ctx context.Context, basisPoints uint64) error {
	return c.do(ctx, http.MethodPost, "/api/v1/fee", api.FeeRequest{FeeBasisPoints: basisPoints}, nil, true)
}

// Snapshot asks the server to persist its state. Admin only.
func (c *FinancingClient) Snapshot(ctx context.Context) (api.SnapshotResponse, error) {
	var resp api.SnapshotResponse
	err := c.do(ctx, http.MethodPost, "/api/v1/snapshot", nil, &resp, true)
	return resp, err
}
