package registry

import (
	"testing"

	"github.com/ruteri/invoice-financing-protocol/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityRegistry_VerifyAndRevoke(t *testing.T) {
	r := NewIdentityRegistry(testConfig(t), testLogger())

	assert.False(t, r.IsBusinessVerified(business))

	assert.ErrorIs(t, r.VerifyBusiness(stranger, business), interfaces.ErrNotAuthorized)
	assert.False(t, r.IsBusinessVerified(business))

	require.NoError(t, r.VerifyBusiness(admin, business))
	require.NoError(t, r.VerifyBusiness(admin, business))
	assert.True(t, r.IsBusinessVerified(business))

	assert.ErrorIs(t, r.RevokeVerification(business, business), interfaces.ErrNotAuthorized)
	assert.True(t, r.IsBusinessVerified(business))

	require.NoError(t, r.RevokeVerification(admin, business))
	assert.False(t, r.IsBusinessVerified(business))

	// Revocation is a toggle; the record is kept.
	assert.Equal(t, []interfaces.VerificationRecord{{Business: business, Verified: false}}, r.export())
}

func TestIdentityRegistry_SetAdmin(t *testing.T) {
	r := NewIdentityRegistry(testConfig(t), testLogger())

	assert.ErrorIs(t, r.SetAdmin(stranger, stranger), interfaces.ErrNotAuthorized)

	require.NoError(t, r.SetAdmin(admin, stranger))
	assert.ErrorIs(t, r.VerifyBusiness(admin, business), interfaces.ErrNotAuthorized)
	require.NoError(t, r.VerifyBusiness(stranger, business))
}
