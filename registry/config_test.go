package registry

import (
	"testing"

	"github.com/ruteri/invoice-financing-protocol/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProtocolConfig(t *testing.T) {
	t.Run("fee sink defaults to admin", func(t *testing.T) {
		config, err := NewProtocolConfig(ConfigOpts{Admin: admin, FeeBasisPoints: 250})
		require.NoError(t, err)
		assert.Equal(t, admin, config.FeeSink())
		assert.Equal(t, uint64(250), config.FeeBasisPoints())
	})

	t.Run("explicit fee sink", func(t *testing.T) {
		config, err := NewProtocolConfig(ConfigOpts{Admin: admin, FeeSink: stranger})
		require.NoError(t, err)
		assert.Equal(t, stranger, config.FeeSink())
	})

	t.Run("fee above 100%", func(t *testing.T) {
		_, err := NewProtocolConfig(ConfigOpts{Admin: admin, FeeBasisPoints: 10001})
		assert.ErrorIs(t, err, interfaces.ErrInvalidFeePercentage)
	})
}

func TestProtocolConfig_SetAdmin(t *testing.T) {
	config := testConfig(t)

	assert.ErrorIs(t, config.SetAdmin(stranger, stranger), interfaces.ErrNotAuthorized)
	assert.Equal(t, admin, config.Admin())

	require.NoError(t, config.SetAdmin(admin, stranger))
	assert.True(t, config.IsAdmin(stranger))
	assert.False(t, config.IsAdmin(admin))

	// The previous admin lost the role immediately.
	assert.ErrorIs(t, config.SetFeeBasisPoints(admin, 100), interfaces.ErrNotAuthorized)
	require.NoError(t, config.SetFeeBasisPoints(stranger, 100))
}

func TestProtocolConfig_SetFeeBasisPoints(t *testing.T) {
	config := testConfig(t)

	tests := []struct {
		name    string
		caller  interfaces.Address
		bps     uint64
		wantErr error
	}{
		{"zero", admin, 0, nil},
		{"full", admin, 10000, nil},
		{"five percent", admin, 500, nil},
		{"above full", admin, 10001, interfaces.ErrInvalidFeePercentage},
		{"not admin checked first", stranger, 10001, interfaces.ErrNotAuthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := config.FeeBasisPoints()
			err := config.SetFeeBasisPoints(tt.caller, tt.bps)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, before, config.FeeBasisPoints())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.bps, config.FeeBasisPoints())
		})
	}
}

func TestProtocolConfig_Assessors(t *testing.T) {
	config := testConfig(t)

	assert.True(t, config.IsAssessor(assessor))
	assert.False(t, config.IsAssessor(admin))

	assert.ErrorIs(t, config.AddAssessor(stranger, stranger), interfaces.ErrNotAuthorized)
	require.NoError(t, config.AddAssessor(admin, stranger))
	require.NoError(t, config.AddAssessor(admin, stranger))
	assert.True(t, config.IsAssessor(stranger))
	assert.Equal(t, []interfaces.Address{assessor, stranger}, config.Assessors())

	require.NoError(t, config.RemoveAssessor(admin, assessor))
	assert.False(t, config.IsAssessor(assessor))
	assert.ErrorIs(t, config.RemoveAssessor(assessor, stranger), interfaces.ErrNotAuthorized)
}

func TestProtocolConfig_AdminIsAssessor(t *testing.T) {
	config, err := NewProtocolConfig(ConfigOpts{Admin: admin, AdminIsAssessor: true})
	require.NoError(t, err)
	assert.True(t, config.IsAssessor(admin))

	// The role follows the admin.
	require.NoError(t, config.SetAdmin(admin, stranger))
	assert.False(t, config.IsAssessor(admin))
	assert.True(t, config.IsAssessor(stranger))
}
