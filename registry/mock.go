package registry

import (
	"context"

	"github.com/ruteri/invoice-financing-protocol/interfaces"
	"github.com/stretchr/testify/mock"
)

// MockVerificationOracle mocks the VerificationOracle interface
type MockVerificationOracle struct {
	mock.Mock
}

// IsBusinessVerified mocks the IsBusinessVerified method
func (m *MockVerificationOracle) IsBusinessVerified(business interfaces.Address) bool {
	args := m.Called(business)
	return args.Bool(0)
}

// MockCertificationOracle mocks the CertificationOracle interface
type MockCertificationOracle struct {
	mock.Mock
}

// GetInvoice mocks the GetInvoice method
func (m *MockCertificationOracle) GetInvoice(invoiceID string, business interfaces.Address) (interfaces.InvoiceRecord, bool) {
	args := m.Called(invoiceID, business)
	return args.Get(0).(interfaces.InvoiceRecord), args.Bool(1)
}

// IsInvoiceCertified mocks the IsInvoiceCertified method
func (m *MockCertificationOracle) IsInvoiceCertified(invoiceID string, business interfaces.Address) bool {
	args := m.Called(invoiceID, business)
	return args.Bool(0)
}

// MockRiskOracle mocks the RiskOracle interface
type MockRiskOracle struct {
	mock.Mock
}

// GetRiskScore mocks the GetRiskScore method
func (m *MockRiskOracle) GetRiskScore(invoiceID string, business interfaces.Address) (interfaces.RiskRecord, bool) {
	args := m.Called(invoiceID, business)
	return args.Get(0).(interfaces.RiskRecord), args.Bool(1)
}

// MockLedger mocks the Ledger interface
type MockLedger struct {
	mock.Mock
}

// Settle mocks the Settle method
func (m *MockLedger) Settle(ctx context.Context, s interfaces.Settlement) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

// MockEventSink mocks the EventSink interface
type MockEventSink struct {
	mock.Mock
}

// Record mocks the Record method
func (m *MockEventSink) Record(ev interfaces.Event) {
	m.Called(ev)
}

// MockObserver mocks the Observer interface
type MockObserver struct {
	mock.Mock
}

// ObserveOperation mocks the ObserveOperation method
func (m *MockObserver) ObserveOperation(op string, err error) {
	m.Called(op, err)
}

// ObserveFunding mocks the ObserveFunding method
func (m *MockObserver) ObserveFunding(record interfaces.FundingRecord) {
	m.Called(record)
}
