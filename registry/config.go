package registry

import (
	"fmt"
	"slices"
	"sync"

	"github.com/ruteri/invoice-financing-protocol/interfaces"
)

// ConfigOpts is the deployment-time protocol configuration.
type ConfigOpts struct {
	Admin          interfaces.Address
	FeeBasisPoints uint64

	// Assessors may attach risk scores. AdminIsAssessor additionally grants
	// the current admin the assessor role.
	Assessors       []interfaces.Address
	AdminIsAssessor bool

	RepaymentPolicy interfaces.RepaymentPolicy

	// FeeSink receives protocol fees. Defaults to the initial admin.
	FeeSink interfaces.Address
}

// ProtocolConfig is the single-owner protocol configuration shared by
// reference between the registries. All mutation goes through
// authorization-checked setters.
type ProtocolConfig struct {
	mu              sync.RWMutex
	admin           interfaces.Address
	feeBasisPoints  uint64
	assessors       map[interfaces.Address]bool
	adminIsAssessor bool
	repaymentPolicy interfaces.RepaymentPolicy
	feeSink         interfaces.Address
}

// NewProtocolConfig validates opts and initializes the configuration.
func NewProtocolConfig(opts ConfigOpts) (*ProtocolConfig, error) {
	if opts.FeeBasisPoints > interfaces.BasisPointsDenominator {
		return nil, fmt.Errorf("%w: %d", interfaces.ErrInvalidFeePercentage, opts.FeeBasisPoints)
	}

	feeSink := opts.FeeSink
	if feeSink == (interfaces.Address{}) {
		feeSink = opts.Admin
	}

	assessors := make(map[interfaces.Address]bool, len(opts.Assessors))
	for _, a := range opts.Assessors {
		assessors[a] = true
	}

	return &ProtocolConfig{
		admin:           opts.Admin,
		feeBasisPoints:  opts.FeeBasisPoints,
		assessors:       assessors,
		adminIsAssessor: opts.AdminIsAssessor,
		repaymentPolicy: opts.RepaymentPolicy,
		feeSink:         feeSink,
	}, nil
}

// Admin returns the current admin.
func (c *ProtocolConfig) Admin() interfaces.Address {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.admin
}

// IsAdmin reports whether addr is the current admin.
func (c *ProtocolConfig) IsAdmin(addr interfaces.Address) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return addr == c.admin
}

// SetAdmin replaces the admin. Only the current admin may call it and the
// change is effective immediately.
func (c *ProtocolConfig) SetAdmin(caller, newAdmin interfaces.Address) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if caller != c.admin {
		return interfaces.ErrNotAuthorized
	}
	c.admin = newAdmin
	return nil
}

// FeeBasisPoints returns the current protocol fee.
func (c *ProtocolConfig) FeeBasisPoints() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.feeBasisPoints
}

// SetFeeBasisPoints sets the protocol fee. Admin only, at most 10000.
func (c *ProtocolConfig) SetFeeBasisPoints(caller interfaces.Address, bps uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if caller != c.admin {
		return interfaces.ErrNotAuthorized
	}
	if bps > interfaces.BasisPointsDenominator {
		return fmt.Errorf("%w: %d", interfaces.ErrInvalidFeePercentage, bps)
	}
	c.feeBasisPoints = bps
	return nil
}

// IsAssessor reports whether addr currently holds the assessor role.
func (c *ProtocolConfig) IsAssessor(addr interfaces.Address) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.adminIsAssessor && addr == c.admin {
		return true
	}
	return c.assessors[addr]
}

// AddAssessor grants the assessor role. Admin only, idempotent.
func (c *ProtocolConfig) AddAssessor(caller, assessor interfaces.Address) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if caller != c.admin {
		return interfaces.ErrNotAuthorized
	}
	c.assessors[assessor] = true
	return nil
}

// RemoveAssessor revokes the assessor role. Admin only, idempotent.
func (c *ProtocolConfig) RemoveAssessor(caller, assessor interfaces.Address) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if caller != c.admin {
		return interfaces.ErrNotAuthorized
	}
	delete(c.assessors, assessor)
	return nil
}

// Assessors returns the explicit assessor set, sorted.
func (c *ProtocolConfig) Assessors() []interfaces.Address {
	c.mu.RLock()
	defer c.mu.RUnlock()

	res := make([]interfaces.Address, 0, len(c.assessors))
	for a := range c.assessors {
		res = append(res, a)
	}
	slices.SortFunc(res, func(a, b interfaces.Address) int { return a.Cmp(b) })
	return res
}

// AdminIsAssessor reports whether the admin implicitly holds the assessor role.
func (c *ProtocolConfig) AdminIsAssessor() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.adminIsAssessor
}

// RepaymentPolicy returns who may mark repayment.
func (c *ProtocolConfig) RepaymentPolicy() interfaces.RepaymentPolicy {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.repaymentPolicy
}

// FeeSink returns the address credited with protocol fees.
func (c *ProtocolConfig) FeeSink() interfaces.Address {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.feeSink
}

// replace swaps in the configuration of other. Used when restoring state.
func (c *ProtocolConfig) replace(other *ProtocolConfig) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.admin = other.admin
	c.feeBasisPoints = other.feeBasisPoints
	c.assessors = other.assessors
	c.adminIsAssessor = other.adminIsAssessor
	c.repaymentPolicy = other.repaymentPolicy
	c.feeSink = other.feeSink
}
