package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/ruteri/invoice-financing-protocol/interfaces"
)

// ProtocolMetrics counts protocol operations and funding volume. It
// implements registry.Observer.
type ProtocolMetrics struct {
	operations    *prometheus.CounterVec
	fundings      prometheus.Counter
	fundedAmount  prometheus.Counter
	feesCollected prometheus.Counter
	fundingSize   prometheus.Histogram
}

// NewProtocolMetrics registers the protocol metrics with reg.
func NewProtocolMetrics(reg prometheus.Registerer, namespace string) *ProtocolMetrics {
	factory := promauto.With(reg)

	return &ProtocolMetrics{
		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Protocol operations by operation and result code",
		}, []string{"operation", "result"}), // result: "ok" or an ERR_* code

		fundings: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fundings_total",
			Help:      "Invoices funded",
		}),

		fundedAmount: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "funded_amount_total",
			Help:      "Sum of funded invoice amounts",
		}),

		feesCollected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fees_collected_total",
			Help:      "Sum of protocol fees taken at funding",
		}),

		fundingSize: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "funding_amount",
			Help:      "Distribution of funded invoice amounts",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		}),
	}
}

// ObserveOperation records the outcome of a mutating operation.
func (m *ProtocolMetrics) ObserveOperation(op string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = interfaces.ErrorCode(err)
	}
	m.operations.WithLabelValues(op, result).Inc()
}

// ObserveFunding records a committed funding.
func (m *ProtocolMetrics) ObserveFunding(record interfaces.FundingRecord) {
	if m == nil {
		return
	}
	m.fundings.Inc()
	m.fundedAmount.Add(float64(record.Amount))
	m.feesCollected.Add(float64(record.FeeAmount))
	m.fundingSize.Observe(float64(record.Amount))
}

// JournalStats is implemented by storage.Journal.
type JournalStats interface {
	Failed() int64
	Dropped() int64
}

// RegisterJournal exposes the journal's failure counters.
func RegisterJournal(reg prometheus.Registerer, namespace string, journal JournalStats) {
	factory := promauto.With(reg)

	factory.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "journal_failed_events_total",
		Help:      "Events that could not be persisted",
	}, func() float64 { return float64(journal.Failed()) })

	factory.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "journal_dropped_events_total",
		Help:      "Events recorded after the journal stopped",
	}, func() float64 { return float64(journal.Dropped()) })
}
