package registry

import (
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/ruteri/invoice-financing-protocol/interfaces"
)

// CertificationRegistry stores invoice metadata and the owner's
// self-certification. It implements interfaces.CertificationOracle.
type CertificationRegistry struct {
	mu           sync.RWMutex
	verification interfaces.VerificationOracle
	invoices     map[interfaces.InvoiceKey]interfaces.InvoiceRecord
	log          *slog.Logger
}

// NewCertificationRegistry creates an empty registry gated on verification.
func NewCertificationRegistry(verification interfaces.VerificationOracle, log *slog.Logger) *CertificationRegistry {
	return &CertificationRegistry{
		verification: verification,
		invoices:     make(map[interfaces.InvoiceKey]interfaces.InvoiceRecord),
		log:          log,
	}
}

// RegisterInvoice records an uncertified invoice owned by caller.
func (r *CertificationRegistry) RegisterInvoice(caller interfaces.Address, invoiceID string, amount uint64, dueDate time.Time, payer interfaces.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key, err := r.validateRegister(caller, invoiceID, amount)
	if err != nil {
		r.log.Debug("Rejected invoice registration", "invoiceId", invoiceID, "business", caller, "err", err)
		return err
	}

	r.invoices[key] = interfaces.InvoiceRecord{
		InvoiceID: invoiceID,
		Business:  caller,
		Amount:    amount,
		DueDate:   dueDate.UTC(),
		Payer:     payer,
		Certified: false,
	}

	r.log.Info("Invoice registered", "invoiceId", invoiceID, "business", caller, "amount", amount, "payer", payer)
	return nil
}

func (r *CertificationRegistry) checkRegister(caller interfaces.Address, invoiceID string, amount uint64) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, err := r.validateRegister(caller, invoiceID, amount)
	return err
}

// validateRegister must be called with r.mu held.
func (r *CertificationRegistry) validateRegister(caller interfaces.Address, invoiceID string, amount uint64) (interfaces.InvoiceKey, error) {
	key, err := interfaces.NewInvoiceKey(invoiceID, caller)
	if err != nil {
		return key, err
	}
	if _, exists := r.invoices[key]; exists {
		return key, interfaces.ErrAlreadyExists
	}
	if amount == 0 {
		return key, interfaces.ErrInvalidAmount
	}
	return key, nil
}

// CertifyInvoice flips the certified flag. Only the owning business may
// certify, once, and only while it is verified.
func (r *CertificationRegistry) CertifyInvoice(caller interfaces.Address, invoiceID string, business interfaces.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := interfaces.InvoiceKey{InvoiceID: invoiceID, Business: business}
	if err := r.validateCertify(caller, key); err != nil {
		r.log.Debug("Rejected invoice certification", "invoiceId", invoiceID, "business", business, "caller", caller, "err", err)
		return err
	}

	record := r.invoices[key]
	record.Certified = true
	r.invoices[key] = record

	r.log.Info("Invoice certified", "invoiceId", invoiceID, "business", business)
	return nil
}

func (r *CertificationRegistry) checkCertify(caller interfaces.Address, key interfaces.InvoiceKey) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.validateCertify(caller, key)
}

// validateCertify must be called with r.mu held.
func (r *CertificationRegistry) validateCertify(caller interfaces.Address, key interfaces.InvoiceKey) error {
	if caller != key.Business {
		return interfaces.ErrNotAuthorized
	}
	record, exists := r.invoices[key]
	if !exists {
		return interfaces.ErrNotFound
	}
	if record.Certified {
		return interfaces.ErrAlreadyCertified
	}
	if !r.verification.IsBusinessVerified(key.Business) {
		return interfaces.ErrBusinessNotVerified
	}
	return nil
}

// GetInvoice returns the invoice and whether it exists.
func (r *CertificationRegistry) GetInvoice(invoiceID string, business interfaces.Address) (interfaces.InvoiceRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, exists := r.invoices[interfaces.InvoiceKey{InvoiceID: invoiceID, Business: business}]
	return record, exists
}

// IsInvoiceCertified defaults to false for unknown invoices.
func (r *CertificationRegistry) IsInvoiceCertified(invoiceID string, business interfaces.Address) bool {
	record, exists := r.GetInvoice(invoiceID, business)
	return exists && record.Certified
}

func (r *CertificationRegistry) export() []interfaces.InvoiceRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res := make([]interfaces.InvoiceRecord, 0, len(r.invoices))
	for _, rec := range r.invoices {
		res = append(res, rec)
	}
	slices.SortFunc(res, func(a, b interfaces.InvoiceRecord) int { return compareKeys(a.Key(), b.Key()) })
	return res
}

func (r *CertificationRegistry) load(records []interfaces.InvoiceRecord) {
	invoices := make(map[interfaces.InvoiceKey]interfaces.InvoiceRecord, len(records))
	for _, rec := range records {
		invoices[rec.Key()] = rec
	}

	r.mu.Lock()
	r.invoices = invoices
	r.mu.Unlock()
}

func compareKeys(a, b interfaces.InvoiceKey) int {
	if c := a.Business.Cmp(b.Business); c != 0 {
		return c
	}
	return strings.Compare(a.InvoiceID, b.InvoiceID)
}
