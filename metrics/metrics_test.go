package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/ruteri/invoice-financing-protocol/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProtocolMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewProtocolMetrics(reg, "invoice_financing")

	m.ObserveOperation("fund_invoice", nil)
	m.ObserveOperation("fund_invoice", interfaces.ErrAlreadyFunded)
	m.ObserveOperation("fund_invoice", interfaces.ErrAlreadyFunded)
	m.ObserveOperation("set_fee", errors.New("boom"))
	m.ObserveFunding(interfaces.FundingRecord{Amount: 1000, FeeAmount: 50})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("fund_invoice", "ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.operations.WithLabelValues("fund_invoice", "ERR_ALREADY_FUNDED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("set_fee", "ERR_INTERNAL")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.fundings))
	assert.Equal(t, 1000.0, testutil.ToFloat64(m.fundedAmount))
	assert.Equal(t, 50.0, testutil.ToFloat64(m.feesCollected))
}

func TestProtocolMetrics_Nil(t *testing.T) {
	var m *ProtocolMetrics
	assert.NotPanics(t, func() {
		m.ObserveOperation("fund_invoice", nil)
		m.ObserveFunding(interfaces.FundingRecord{})
	})
}

type journalStats struct{ failed, dropped int64 }

func (j journalStats) Failed() int64  { return j.failed }
func (j journalStats) Dropped() int64 { return j.dropped }

func TestMetricsServer_Handler(t *testing.T) {
	srv, err := New("invoice_financing", "127.0.0.1:0")
	require.NoError(t, err)

	NewProtocolMetrics(srv.Registerer(), srv.Namespace()).ObserveOperation("verify_business", nil)
	RegisterJournal(srv.Registerer(), srv.Namespace(), journalStats{failed: 2, dropped: 1})

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `invoice_financing_operations_total{operation="verify_business",result="ok"} 1`)
	assert.Contains(t, body, "invoice_financing_journal_failed_events_total 2")
	assert.Contains(t, body, "invoice_financing_journal_dropped_events_total 1")
	assert.Contains(t, body, "go_goroutines")

	_, err = New("", ":0")
	assert.Error(t, err)
}
