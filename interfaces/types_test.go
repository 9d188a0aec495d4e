package interfaces

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAddress(t *testing.T) {
	addr, err := ParseAddress("0x00000000000000000000000000000000000000aa")
	require.NoError(t, err)
	assert.Equal(t, byte(0xaa), addr[19])

	_, err = ParseAddress("ST1PQHQKV0RJXZFY1DGX8MNSNYVE3VGZJSRTPGZGM")
	assert.Error(t, err)
}

func TestNewInvoiceKey(t *testing.T) {
	business, _ := ParseAddress("0x00000000000000000000000000000000000000bb")

	key, err := NewInvoiceKey("INV-2023-001", business)
	require.NoError(t, err)
	assert.Equal(t, business.Hex()+"/INV-2023-001", key.String())

	_, err = NewInvoiceKey("", business)
	assert.Error(t, err)
	_, err = NewInvoiceKey("a/b", business)
	assert.Error(t, err)
	_, err = NewInvoiceKey(strings.Repeat("x", MaxInvoiceIDLength+1), business)
	assert.Error(t, err)
}

func TestRepaymentPolicy(t *testing.T) {
	payer, _ := ParseAddress("0x0000000000000000000000000000000000000001")
	business, _ := ParseAddress("0x0000000000000000000000000000000000000002")
	other, _ := ParseAddress("0x0000000000000000000000000000000000000003")

	assert.True(t, RepaymentByPayerOrBusiness.Allows(payer, payer, business))
	assert.True(t, RepaymentByPayerOrBusiness.Allows(business, payer, business))
	assert.False(t, RepaymentByPayerOrBusiness.Allows(other, payer, business))
	assert.True(t, RepaymentByPayer.Allows(payer, payer, business))
	assert.False(t, RepaymentByPayer.Allows(business, payer, business))
	assert.True(t, RepaymentByBusiness.Allows(business, payer, business))
	assert.False(t, RepaymentByBusiness.Allows(payer, payer, business))

	for _, p := range []RepaymentPolicy{RepaymentByPayerOrBusiness, RepaymentByPayer, RepaymentByBusiness} {
		parsed, err := ParseRepaymentPolicy(p.String())
		require.NoError(t, err)
		assert.Equal(t, p, parsed)
	}
	_, err := ParseRepaymentPolicy("funder")
	assert.Error(t, err)
}
