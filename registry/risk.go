package registry

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/ruteri/invoice-financing-protocol/interfaces"
)

// RiskRegistry attaches bounded risk scores to certified invoices. It
// implements interfaces.RiskOracle.
type RiskRegistry struct {
	mu            sync.RWMutex
	config        *ProtocolConfig
	certification interfaces.CertificationOracle
	clock         clock.Clock
	records       map[interfaces.InvoiceKey]interfaces.RiskRecord
	log           *slog.Logger
}

// NewRiskRegistry creates an empty registry. Assessor membership is read
// from config on every call.
func NewRiskRegistry(config *ProtocolConfig, certification interfaces.CertificationOracle, clk clock.Clock, log *slog.Logger) *RiskRegistry {
	return &RiskRegistry{
		config:        config,
		certification: certification,
		clock:         clk,
		records:       make(map[interfaces.InvoiceKey]interfaces.RiskRecord),
		log:           log,
	}
}

// AssessRisk records score for a certified invoice, stamped with the
// current time and caller as assessor. A repeated assessment overwrites the
// previous one.
func (r *RiskRegistry) AssessRisk(caller interfaces.Address, invoiceID string, business interfaces.Address, score uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := interfaces.InvoiceKey{InvoiceID: invoiceID, Business: business}
	if err := r.validateAssess(caller, key, score); err != nil {
		r.log.Debug("Rejected risk assessment", "invoiceId", invoiceID, "business", business, "caller", caller, "score", score, "err", err)
		return err
	}

	r.write(caller, key, score)
	r.log.Info("Risk assessed", "invoiceId", invoiceID, "business", business, "assessor", caller, "score", score)
	return nil
}

func (r *RiskRegistry) checkAssess(caller interfaces.Address, key interfaces.InvoiceKey, score uint64) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.validateAssess(caller, key, score)
}

// validateAssess must be called with r.mu held.
func (r *RiskRegistry) validateAssess(caller interfaces.Address, key interfaces.InvoiceKey, score uint64) error {
	if err := r.validateAssessor(caller, score); err != nil {
		return err
	}
	if !r.certification.IsInvoiceCertified(key.InvoiceID, key.Business) {
		return interfaces.ErrInvoiceNotCertified
	}
	return nil
}

// UpdateRiskAssessment overwrites an existing assessment.
func (r *RiskRegistry) UpdateRiskAssessment(caller interfaces.Address, invoiceID string, business interfaces.Address, newScore uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := interfaces.InvoiceKey{InvoiceID: invoiceID, Business: business}
	if err := r.validateUpdate(caller, key, newScore); err != nil {
		r.log.Debug("Rejected risk update", "invoiceId", invoiceID, "business", business, "caller", caller, "score", newScore, "err", err)
		return err
	}

	previous := r.records[key].Score
	r.write(caller, key, newScore)
	r.log.Info("Risk updated", "invoiceId", invoiceID, "business", business, "assessor", caller, "previous", previous, "score", newScore)
	return nil
}

func (r *RiskRegistry) checkUpdate(caller interfaces.Address, key interfaces.InvoiceKey, score uint64) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.validateUpdate(caller, key, score)
}

// validateUpdate must be called with r.mu held.
func (r *RiskRegistry) validateUpdate(caller interfaces.Address, key interfaces.InvoiceKey, score uint64) error {
	if err := r.validateAssessor(caller, score); err != nil {
		return err
	}
	if _, exists := r.records[key]; !exists {
		return interfaces.ErrNotFound
	}
	return nil
}

func (r *RiskRegistry) validateAssessor(caller interfaces.Address, score uint64) error {
	if !r.config.IsAssessor(caller) {
		return interfaces.ErrNotAuthorized
	}
	if score > interfaces.MaxRiskScore {
		return fmt.Errorf("%w: %d", interfaces.ErrInvalidScore, score)
	}
	return nil
}

func (r *RiskRegistry) write(assessor interfaces.Address, key interfaces.InvoiceKey, score uint64) {
	r.records[key] = interfaces.RiskRecord{
		InvoiceID: key.InvoiceID,
		Business:  key.Business,
		Score:     score,
		Timestamp: r.clock.Now().UTC(),
		Assessor:  assessor,
	}
}

// GetRiskScore returns the latest assessment and whether one exists.
func (r *RiskRegistry) GetRiskScore(invoiceID string, business interfaces.Address) (interfaces.RiskRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, exists := r.records[interfaces.InvoiceKey{InvoiceID: invoiceID, Business: business}]
	return record, exists
}

func (r *RiskRegistry) export() []interfaces.RiskRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res := make([]interfaces.RiskRecord, 0, len(r.records))
	for _, rec := range r.records {
		res = append(res, rec)
	}
	slices.SortFunc(res, func(a, b interfaces.RiskRecord) int {
		return compareKeys(interfaces.InvoiceKey{InvoiceID: a.InvoiceID, Business: a.Business}, interfaces.InvoiceKey{InvoiceID: b.InvoiceID, Business: b.Business})
	})
	return res
}

func (r *RiskRegistry) load(records []interfaces.RiskRecord) {
	loaded := make(map[interfaces.InvoiceKey]interfaces.RiskRecord, len(records))
	for _, rec := range records {
		loaded[interfaces.InvoiceKey{InvoiceID: rec.InvoiceID, Business: rec.Business}] = rec
	}

	r.mu.Lock()
	r.records = loaded
	r.mu.Unlock()
}
