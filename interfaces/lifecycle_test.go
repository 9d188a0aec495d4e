package interfaces

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransition_HappyPath(t *testing.T) {
	state := StateUnregistered
	for _, action := range []Action{ActionRegister, ActionCertify, ActionAssessRisk, ActionUpdateRisk, ActionFund, ActionRepay} {
		next, err := Transition(state, action)
		require.NoError(t, err, "%s from %s", action, state)
		state = next
	}
	assert.Equal(t, StateRepaid, state)
}

func TestTransition_Rejected(t *testing.T) {
	cases := []struct {
		from   InvoiceState
		action Action
	}{
		{StateRegistered, ActionRegister},
		{StateUnregistered, ActionCertify},
		{StateCertified, ActionCertify},
		{StateRegistered, ActionAssessRisk},
		{StateCertified, ActionUpdateRisk},
		{StateCertified, ActionFund},
		{StateFunded, ActionFund},
		{StateFunded, ActionUpdateRisk},
		{StateRiskAssessed, ActionRepay},
		{StateRepaid, ActionRepay},
		{StateRepaid, ActionFund},
	}
	for _, tc := range cases {
		t.Run(tc.action.String()+"_from_"+tc.from.String(), func(t *testing.T) {
			next, err := Transition(tc.from, tc.action)
			assert.True(t, errors.Is(err, ErrInvalidTransition))
			assert.Equal(t, tc.from, next)
		})
	}
}

func TestInvoiceState_Text(t *testing.T) {
	for s := StateUnregistered; s <= StateRepaid; s++ {
		text, err := s.MarshalText()
		require.NoError(t, err)

		var decoded InvoiceState
		require.NoError(t, decoded.UnmarshalText(text))
		assert.Equal(t, s, decoded)
	}

	_, err := ParseInvoiceState("settled")
	assert.Error(t, err)
}
