package handlers

import (
	"bytes"
	"crypto/ecdsa"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/go-chi/chi/v5"
	"github.com/ruteri/invoice-financing-protocol/api"
	"github.com/ruteri/invoice-financing-protocol/cryptoutils"
	"github.com/ruteri/invoice-financing-protocol/interfaces"
	"github.com/ruteri/invoice-financing-protocol/ledger"
	"github.com/ruteri/invoice-financing-protocol/registry"
	"github.com/ruteri/invoice-financing-protocol/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type party struct {
	key  *ecdsa.PrivateKey
	addr interfaces.Address
}

func newParty(t *testing.T) party {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return party{key: key, addr: crypto.PubkeyToAddress(key.PublicKey)}
}

type testEnv struct {
	router   http.Handler
	clock    *clock.Mock
	ledger   *ledger.MemoryLedger
	protocol *registry.Protocol

	admin, assessor, business, payer, funder, stranger party
}

// setupTestEnvironment creates a protocol with a 5% fee behind a router.
func setupTestEnvironment(t *testing.T, snapshots SnapshotSaver) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	env := &testEnv{
		clock:    clock.NewMock(),
		admin:    newParty(t),
		assessor: newParty(t),
		business: newParty(t),
		payer:    newParty(t),
		funder:   newParty(t),
		stranger: newParty(t),
	}
	env.clock.Set(time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC))
	env.ledger = ledger.NewMemoryLedger(logger)

	protocol, err := registry.NewProtocol(registry.ProtocolOpts{
		Config: registry.ConfigOpts{
			Admin:          env.admin.addr,
			FeeBasisPoints: 500,
			Assessors:      []interfaces.Address{env.assessor.addr},
		},
		Ledger: env.ledger,
		Clock:  env.clock,
	}, logger)
	require.NoError(t, err)
	env.protocol = protocol

	handler := NewHandler(protocol, HandlerOpts{Snapshots: snapshots, Clock: env.clock}, logger)
	mux := chi.NewRouter()
	handler.RegisterRoutes(mux)
	env.router = mux
	return env
}

// do sends a request signed by signer (unsigned when nil).
func (env *testEnv) do(t *testing.T, method, path string, body any, signer *party) *httptest.ResponseRecorder {
	t.Helper()

	var raw []byte
	if body != nil {
		var err error
		raw, err = json.Marshal(body)
		require.NoError(t, err)
	}

	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	if signer != nil {
		require.NoError(t, cryptoutils.SignRequest(req, raw, signer.key, env.clock.Now()))
	}

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func requireOK(t *testing.T, w *httptest.ResponseRecorder) {
	t.Helper()
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func invoicePath(env *testEnv, suffix string) string {
	return "/api/v1/invoices/" + env.business.addr.Hex() + "/INV-2023-001" + suffix
}

// fundable drives an invoice up to the risk-assessed state.
func (env *testEnv) fundable(t *testing.T) {
	t.Helper()
	requireOK(t, env.do(t, http.MethodPost, "/api/v1/businesses/"+env.business.addr.Hex()+"/verify", nil, &env.admin))
	requireOK(t, env.do(t, http.MethodPost, "/api/v1/invoices", api.RegisterInvoiceRequest{
		InvoiceID: "INV-2023-001",
		Amount:    1000,
		DueDate:   1672531200,
		Payer:     env.payer.addr,
	}, &env.business))
	requireOK(t, env.do(t, http.MethodPost, invoicePath(env, "/certify"), nil, &env.business))
	requireOK(t, env.do(t, http.MethodPost, invoicePath(env, "/risk"), api.RiskScoreRequest{Score: 75}, &env.assessor))
}

func TestFinancingPipeline(t *testing.T) {
	env := setupTestEnvironment(t, nil)
	env.fundable(t)
	env.ledger.Deposit(env.funder.addr, 1000)

	w := env.do(t, http.MethodGet, invoicePath(env, "/state"), nil, nil)
	requireOK(t, w)
	assert.Equal(t, interfaces.StateRiskAssessed, decode[api.InvoiceStateResponse](t, w).State)

	w = env.do(t, http.MethodPost, invoicePath(env, "/fund"), nil, &env.funder)
	requireOK(t, w)
	funded := decode[api.FundResponse](t, w)
	assert.Equal(t, uint64(1000), funded.Amount)
	assert.Equal(t, uint64(50), funded.FeeAmount)
	assert.Equal(t, uint64(950), funded.NetAmount)
	assert.Equal(t, env.funder.addr, funded.Funder)
	assert.False(t, funded.Repaid)

	assert.Equal(t, uint64(950), env.ledger.BalanceOf(env.business.addr).Uint64())
	assert.Equal(t, uint64(50), env.ledger.BalanceOf(env.admin.addr).Uint64())

	requireOK(t, env.do(t, http.MethodPost, invoicePath(env, "/repay"), nil, &env.payer))

	w = env.do(t, http.MethodGet, invoicePath(env, "/funding"), nil, nil)
	requireOK(t, w)
	assert.True(t, decode[interfaces.FundingRecord](t, w).Repaid)

	w = env.do(t, http.MethodGet, invoicePath(env, ""), nil, nil)
	requireOK(t, w)
	invoice := decode[interfaces.InvoiceRecord](t, w)
	assert.True(t, invoice.Certified)
	assert.Equal(t, env.payer.addr, invoice.Payer)
	assert.Equal(t, int64(1672531200), invoice.DueDate.Unix())

	w = env.do(t, http.MethodGet, invoicePath(env, "/risk"), nil, nil)
	requireOK(t, w)
	risk := decode[interfaces.RiskRecord](t, w)
	assert.Equal(t, uint64(75), risk.Score)
	assert.Equal(t, env.assessor.addr, risk.Assessor)

	w = env.do(t, http.MethodGet, invoicePath(env, "/state"), nil, nil)
	assert.Equal(t, interfaces.StateRepaid, decode[api.InvoiceStateResponse](t, w).State)
}

func TestAdministration(t *testing.T) {
	env := setupTestEnvironment(t, nil)

	w := env.do(t, http.MethodGet, "/api/v1/fee", nil, nil)
	requireOK(t, w)
	assert.Equal(t, uint64(500), decode[api.FeeResponse](t, w).FeeBasisPoints)

	requireOK(t, env.do(t, http.MethodPost, "/api/v1/fee", api.FeeRequest{FeeBasisPoints: 250}, &env.admin))
	w = env.do(t, http.MethodGet, "/api/v1/fee", nil, nil)
	assert.Equal(t, uint64(250), decode[api.FeeResponse](t, w).FeeBasisPoints)

	requireOK(t, env.do(t, http.MethodPost, "/api/v1/assessors/"+env.stranger.addr.Hex(), nil, &env.admin))
	assert.True(t, env.protocol.IsAssessor(env.stranger.addr))
	requireOK(t, env.do(t, http.MethodDelete, "/api/v1/assessors/"+env.stranger.addr.Hex(), nil, &env.admin))
	assert.False(t, env.protocol.IsAssessor(env.stranger.addr))

	requireOK(t, env.do(t, http.MethodPost, "/api/v1/businesses/"+env.business.addr.Hex()+"/verify", nil, &env.admin))
	w = env.do(t, http.MethodGet, "/api/v1/businesses/"+env.business.addr.Hex()+"/verified", nil, nil)
	assert.True(t, decode[api.VerifiedResponse](t, w).Verified)
	requireOK(t, env.do(t, http.MethodPost, "/api/v1/businesses/"+env.business.addr.Hex()+"/revoke", nil, &env.admin))
	w = env.do(t, http.MethodGet, "/api/v1/businesses/"+env.business.addr.Hex()+"/verified", nil, nil)
	assert.False(t, decode[api.VerifiedResponse](t, w).Verified)

	requireOK(t, env.do(t, http.MethodPost, "/api/v1/admin", api.SetAdminRequest{NewAdmin: env.stranger.addr}, &env.admin))
	w = env.do(t, http.MethodGet, "/api/v1/admin", nil, nil)
	assert.Equal(t, env.stranger.addr, decode[api.AdminResponse](t, w).Admin)

	// The previous admin lost the role.
	w = env.do(t, http.MethodPost, "/api/v1/fee", api.FeeRequest{FeeBasisPoints: 100}, &env.admin)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestErrorResponses(t *testing.T) {
	env := setupTestEnvironment(t, nil)
	env.fundable(t)
	registerOther := api.RegisterInvoiceRequest{InvoiceID: "INV-2023-002", Amount: 0, DueDate: 1672531200, Payer: env.payer.addr}

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		signer *party
		status int
		code   string
	}{
		{
			name:   "unsigned mutation",
			method: http.MethodPost,
			path:   "/api/v1/fee",
			body:   api.FeeRequest{FeeBasisPoints: 100},
			status: http.StatusUnauthorized,
			code:   api.ErrCodeUnauthenticated,
		},
		{
			name:   "non-admin verification",
			method: http.MethodPost,
			path:   "/api/v1/businesses/" + env.stranger.addr.Hex() + "/verify",
			signer: &env.stranger,
			status: http.StatusForbidden,
			code:   "ERR_NOT_AUTHORIZED",
		},
		{
			name:   "missing invoice",
			method: http.MethodGet,
			path:   "/api/v1/invoices/" + env.stranger.addr.Hex() + "/INV-2023-001",
			status: http.StatusNotFound,
			code:   "ERR_NOT_FOUND",
		},
		{
			name:   "missing funding",
			method: http.MethodGet,
			path:   invoicePath(env, "/funding"),
			status: http.StatusNotFound,
			code:   "ERR_NOT_FOUND",
		},
		{
			name:   "duplicate registration",
			method: http.MethodPost,
			path:   "/api/v1/invoices",
			body:   api.RegisterInvoiceRequest{InvoiceID: "INV-2023-001", Amount: 1000, DueDate: 1672531200, Payer: env.payer.addr},
			signer: &env.business,
			status: http.StatusConflict,
			code:   "ERR_ALREADY_EXISTS",
		},
		{
			name:   "zero amount",
			method: http.MethodPost,
			path:   "/api/v1/invoices",
			body:   registerOther,
			signer: &env.business,
			status: http.StatusBadRequest,
			code:   "ERR_INVALID_AMOUNT",
		},
		{
			name:   "score above maximum",
			method: http.MethodPut,
			path:   invoicePath(env, "/risk"),
			body:   api.RiskScoreRequest{Score: 101},
			signer: &env.assessor,
			status: http.StatusBadRequest,
			code:   "ERR_INVALID_SCORE",
		},
		{
			name:   "fee above maximum",
			method: http.MethodPost,
			path:   "/api/v1/fee",
			body:   api.FeeRequest{FeeBasisPoints: 10001},
			signer: &env.admin,
			status: http.StatusBadRequest,
			code:   "ERR_INVALID_FEE_PERCENTAGE",
		},
		{
			name:   "repay before funding",
			method: http.MethodPost,
			path:   invoicePath(env, "/repay"),
			signer: &env.payer,
			status: http.StatusNotFound,
			code:   "ERR_NOT_FOUND",
		},
		{
			name:   "funder without balance",
			method: http.MethodPost,
			path:   invoicePath(env, "/fund"),
			signer: &env.funder,
			status: http.StatusBadGateway,
			code:   "ERR_INSUFFICIENT_FUNDS",
		},
		{
			name:   "malformed address",
			method: http.MethodGet,
			path:   "/api/v1/businesses/not-an-address/verified",
			status: http.StatusBadRequest,
			code:   api.ErrCodeBadRequest,
		},
		{
			name:   "unknown body field",
			method: http.MethodPost,
			path:   "/api/v1/fee",
			body:   map[string]any{"fee": 100},
			signer: &env.admin,
			status: http.StatusBadRequest,
			code:   api.ErrCodeBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, tt.method, tt.path, tt.body, tt.signer)
			require.Equal(t, tt.status, w.Code, w.Body.String())

			resp := decode[api.ErrorResponse](t, w)
			assert.False(t, resp.Success)
			assert.Equal(t, tt.code, resp.Error)
			assert.NotEmpty(t, resp.Message)
		})
	}

	// Nothing above changed the funding state.
	_, funded := env.protocol.GetFundingDetails("INV-2023-001", env.business.addr)
	assert.False(t, funded)
}

func TestAuthenticate_StaleSignature(t *testing.T) {
	env := setupTestEnvironment(t, nil)

	raw, err := json.Marshal(api.FeeRequest{FeeBasisPoints: 100})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/fee", bytes.NewReader(raw))
	require.NoError(t, cryptoutils.SignRequest(req, raw, env.admin.key, env.clock.Now()))

	env.clock.Add(cryptoutils.DefaultMaxSkew + time.Minute)

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, uint64(500), env.protocol.GetFeePercentage())
}

func TestAuthenticate_ReplayedRequest(t *testing.T) {
	env := setupTestEnvironment(t, nil)
	verifyPath := "/api/v1/businesses/" + env.business.addr.Hex() + "/verify"

	captured := httptest.NewRequest(http.MethodPost, verifyPath, nil)
	require.NoError(t, cryptoutils.SignRequest(captured, nil, env.admin.key, env.clock.Now()))

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, captured)
	requireOK(t, w)

	env.clock.Add(time.Minute)
	requireOK(t, env.do(t, http.MethodPost, "/api/v1/businesses/"+env.business.addr.Hex()+"/revoke", nil, &env.admin))
	require.False(t, env.protocol.IsBusinessVerified(env.business.addr))

	env.clock.Add(time.Minute)
	replay := httptest.NewRequest(http.MethodPost, verifyPath, nil)
	replay.Header = captured.Header.Clone()

	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, replay)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, api.ErrCodeUnauthenticated, decode[api.ErrorResponse](t, w).Error)
	assert.False(t, env.protocol.IsBusinessVerified(env.business.addr))

	// A freshly signed verify still goes through.
	requireOK(t, env.do(t, http.MethodPost, verifyPath, nil, &env.admin))
	assert.True(t, env.protocol.IsBusinessVerified(env.business.addr))
}

func TestHandleSnapshot(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	backend, err := storage.NewFileBackend(t.TempDir(), logger)
	require.NoError(t, err)
	store := storage.NewSnapshotStore(backend, logger)

	env := setupTestEnvironment(t, store)
	env.fundable(t)

	w := env.do(t, http.MethodPost, "/api/v1/snapshot", nil, &env.stranger)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/snapshot", nil, &env.admin)
	requireOK(t, w)
	resp := decode[api.SnapshotResponse](t, w)

	state, err := store.Load(t.Context(), resp.ContentID)
	require.NoError(t, err)
	assert.Len(t, state.Invoices, 1)
	assert.Len(t, state.Risks, 1)
	assert.Equal(t, env.admin.addr, state.Admin)
}

func TestHandleSnapshot_Disabled(t *testing.T) {
	env := setupTestEnvironment(t, nil)

	w := env.do(t, http.MethodPost, "/api/v1/snapshot", nil, &env.admin)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
