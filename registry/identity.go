package registry

import (
	"log/slog"
	"slices"
	"sync"

	"github.com/ruteri/invoice-financing-protocol/interfaces"
)

// IdentityRegistry is the admin-controlled business verification gate.
// It implements interfaces.VerificationOracle.
type IdentityRegistry struct {
	mu       sync.RWMutex
	config   *ProtocolConfig
	verified map[interfaces.Address]bool
	log      *slog.Logger
}

// NewIdentityRegistry creates an empty registry governed by config's admin.
func NewIdentityRegistry(config *ProtocolConfig, log *slog.Logger) *IdentityRegistry {
	return &IdentityRegistry{
		config:   config,
		verified: make(map[interfaces.Address]bool),
		log:      log,
	}
}

// VerifyBusiness marks business as verified. Idempotent.
func (r *IdentityRegistry) VerifyBusiness(caller, business interfaces.Address) error {
	return r.setVerified(caller, business, true)
}

// RevokeVerification marks business as unverified. Existing certifications
// and fundings are unaffected; only later gated operations see the change.
func (r *IdentityRegistry) RevokeVerification(caller, business interfaces.Address) error {
	return r.setVerified(caller, business, false)
}

func (r *IdentityRegistry) setVerified(caller, business interfaces.Address, verified bool) error {
	if !r.config.IsAdmin(caller) {
		r.log.Debug("Rejected verification change", "caller", caller, "business", business, "verified", verified)
		return interfaces.ErrNotAuthorized
	}

	r.mu.Lock()
	r.verified[business] = verified
	r.mu.Unlock()

	r.log.Info("Business verification updated", "business", business, "verified", verified)
	return nil
}

// IsBusinessVerified defaults to false for unknown businesses.
func (r *IdentityRegistry) IsBusinessVerified(business interfaces.Address) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.verified[business]
}

// SetAdmin hands the admin role to newAdmin in one step.
func (r *IdentityRegistry) SetAdmin(caller, newAdmin interfaces.Address) error {
	if err := r.config.SetAdmin(caller, newAdmin); err != nil {
		r.log.Debug("Rejected admin change", "caller", caller, "newAdmin", newAdmin)
		return err
	}
	r.log.Info("Admin changed", "previous", caller, "admin", newAdmin)
	return nil
}

func (r *IdentityRegistry) export() []interfaces.VerificationRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res := make([]interfaces.VerificationRecord, 0, len(r.verified))
	for business, verified := range r.verified {
		res = append(res, interfaces.VerificationRecord{Business: business, Verified: verified})
	}
	slices.SortFunc(res, func(a, b interfaces.VerificationRecord) int { return a.Business.Cmp(b.Business) })
	return res
}

func (r *IdentityRegistry) load(records []interfaces.VerificationRecord) {
	verified := make(map[interfaces.Address]bool, len(records))
	for _, rec := range records {
		verified[rec.Business] = rec.Verified
	}

	r.mu.Lock()
	r.verified = verified
	r.mu.Unlock()
}
