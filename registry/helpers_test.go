package registry

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ruteri/invoice-financing-protocol/interfaces"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	admin    = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	assessor = common.HexToAddress("0x00000000000000000000000000000000000000a2")
	business = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	payer    = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	funder   = common.HexToAddress("0x00000000000000000000000000000000000000f1")
	stranger = common.HexToAddress("0x00000000000000000000000000000000000000e1")

	dueDate = time.Date(2024, time.March, 31, 0, 0, 0, 0, time.UTC)
)

const invoiceID = "INV-2023-001"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(t *testing.T) *ProtocolConfig {
	config, err := NewProtocolConfig(ConfigOpts{
		Admin:     admin,
		Assessors: []interfaces.Address{assessor},
	})
	require.NoError(t, err)
	return config
}

type testProtocol struct {
	*Protocol
	ledger *MockLedger
	clock  *clock.Mock
}

func newTestProtocol(t *testing.T, config ConfigOpts) *testProtocol {
	ledger := &MockLedger{}
	ledger.On("Settle", mock.Anything, mock.Anything).Return(nil)

	clk := clock.NewMock()
	clk.Set(time.Date(2023, time.October, 1, 12, 0, 0, 0, time.UTC))

	p, err := NewProtocol(ProtocolOpts{
		Config: config,
		Ledger: ledger,
		Clock:  clk,
	}, testLogger())
	require.NoError(t, err)

	return &testProtocol{Protocol: p, ledger: ledger, clock: clk}
}

func defaultConfig() ConfigOpts {
	return ConfigOpts{
		Admin:     admin,
		Assessors: []interfaces.Address{assessor},
	}
}

// toRiskAssessed drives the standard invoice up to the risk-assessed state.
func (p *testProtocol) toRiskAssessed(t *testing.T, amount uint64) {
	require.NoError(t, p.VerifyBusiness(admin, business))
	require.NoError(t, p.RegisterInvoice(business, invoiceID, amount, dueDate, payer))
	require.NoError(t, p.CertifyInvoice(business, invoiceID, business))
	require.NoError(t, p.AssessRisk(assessor, invoiceID, business, 75))
}
