package registry

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/ruteri/invoice-financing-protocol/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRiskRegistry(t *testing.T, certified bool) (*RiskRegistry, *clock.Mock) {
	certification := &MockCertificationOracle{}
	certification.On("IsInvoiceCertified", invoiceID, business).Return(certified)
	certification.On("IsInvoiceCertified", "other", business).Return(false)

	clk := clock.NewMock()
	clk.Set(time.Date(2023, time.October, 1, 12, 0, 0, 0, time.UTC))

	return NewRiskRegistry(testConfig(t), certification, clk, testLogger()), clk
}

func TestRiskRegistry_AssessRiskBoundaries(t *testing.T) {
	tests := []struct {
		name    string
		score   uint64
		wantErr error
	}{
		{"zero", 0, nil},
		{"max", 100, nil},
		{"typical", 75, nil},
		{"just above max", 101, interfaces.ErrInvalidScore},
		{"far above max", 1 << 40, interfaces.ErrInvalidScore},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, clk := newTestRiskRegistry(t, true)

			err := r.AssessRisk(assessor, invoiceID, business, tt.score)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				_, exists := r.GetRiskScore(invoiceID, business)
				assert.False(t, exists)
				return
			}

			require.NoError(t, err)
			record, exists := r.GetRiskScore(invoiceID, business)
			require.True(t, exists)
			assert.Equal(t, interfaces.RiskRecord{
				InvoiceID: invoiceID,
				Business:  business,
				Score:     tt.score,
				Timestamp: clk.Now().UTC(),
				Assessor:  assessor,
			}, record)
		})
	}
}

func TestRiskRegistry_AssessRiskPreconditions(t *testing.T) {
	r, _ := newTestRiskRegistry(t, true)

	// Authorization is checked before range.
	assert.ErrorIs(t, r.AssessRisk(stranger, invoiceID, business, 101), interfaces.ErrNotAuthorized)
	// Range is checked before certification.
	assert.ErrorIs(t, r.AssessRisk(assessor, "other", business, 101), interfaces.ErrInvalidScore)
	assert.ErrorIs(t, r.AssessRisk(assessor, "other", business, 50), interfaces.ErrInvoiceNotCertified)

	uncertified, _ := newTestRiskRegistry(t, false)
	assert.ErrorIs(t, uncertified.AssessRisk(assessor, invoiceID, business, 50), interfaces.ErrInvoiceNotCertified)
}

func TestRiskRegistry_UpdateRiskAssessment(t *testing.T) {
	r, clk := newTestRiskRegistry(t, true)
	config := r.config
	require.NoError(t, config.AddAssessor(admin, stranger))

	assert.ErrorIs(t, r.UpdateRiskAssessment(assessor, invoiceID, business, 10), interfaces.ErrNotFound)

	require.NoError(t, r.AssessRisk(assessor, invoiceID, business, 75))

	clk.Add(time.Hour)
	assert.ErrorIs(t, r.UpdateRiskAssessment(admin, invoiceID, business, 10), interfaces.ErrNotAuthorized)
	assert.ErrorIs(t, r.UpdateRiskAssessment(stranger, invoiceID, business, 101), interfaces.ErrInvalidScore)

	require.NoError(t, r.UpdateRiskAssessment(stranger, invoiceID, business, 40))

	record, exists := r.GetRiskScore(invoiceID, business)
	require.True(t, exists)
	assert.Equal(t, uint64(40), record.Score)
	assert.Equal(t, stranger, record.Assessor)
	assert.Equal(t, clk.Now().UTC(), record.Timestamp)
}

func TestRiskRegistry_ReassessOverwrites(t *testing.T) {
	r, _ := newTestRiskRegistry(t, true)

	require.NoError(t, r.AssessRisk(assessor, invoiceID, business, 75))
	require.NoError(t, r.AssessRisk(assessor, invoiceID, business, 20))

	record, _ := r.GetRiskScore(invoiceID, business)
	assert.Equal(t, uint64(20), record.Score)
	assert.Len(t, r.export(), 1)
}
