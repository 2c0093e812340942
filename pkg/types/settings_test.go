package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateSettings(t *testing.T) {
	t.Run("from zero", func(t *testing.T) {
		s, migrated, err := MigrateSettings(Settings{}, 0)
		require.NoError(t, err)
		assert.True(t, migrated)
		assert.NotNil(t, s.StringNames)
		assert.Equal(t, 10, s.MinSOC)
		assert.Equal(t, 60, s.RefreshIntervalSeconds)
	})

	t.Run("already current", func(t *testing.T) {
		in := Settings{MinSOC: 15, RefreshIntervalSeconds: 30}
		s, migrated, err := MigrateSettings(in, CurrentSettingsVersion)
		require.NoError(t, err)
		assert.False(t, migrated)
		assert.Equal(t, in, s)
	})

	t.Run("idempotent at head", func(t *testing.T) {
		s, _, err := MigrateSettings(Settings{}, 0)
		require.NoError(t, err)
		again, migrated, err := MigrateSettings(s, CurrentSettingsVersion)
		require.NoError(t, err)
		assert.False(t, migrated)
		assert.Equal(t, s, again)
	})

	t.Run("preserves existing values", func(t *testing.T) {
		s, _, err := MigrateSettings(Settings{MinSOC: 25}, 1)
		require.NoError(t, err)
		assert.Equal(t, 25, s.MinSOC)
	})
}

func TestStringDisplayName(t *testing.T) {
	s := Settings{StringNames: map[string]string{
		"pv1": "East Array",
		"pv2": "West Array",
	}}

	assert.Equal(t, "East Array", s.StringDisplayName(StringPV1))
	assert.Equal(t, "West Array", s.StringDisplayName(StringPV2))
	// unset strings get default labels
	assert.Equal(t, "PV3", s.StringDisplayName(StringPV3))
	// unrecognized keys fall back to the PV6 label
	assert.Equal(t, "PV6", s.StringDisplayName(StringType("pv9")))

	s.StringNames["pv6"] = "CT2 Array"
	assert.Equal(t, "CT2 Array", s.StringDisplayName(StringType("bogus")))
}
