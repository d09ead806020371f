package host

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/lockdown/internal/types"
)

func TestCheckTolerance_GateRequiresRuntimeTypeInformation(t *testing.T) {
	tolerant := types.NewCompositeType("tolerant", types.KindObject,
		types.Getter("foo", types.Integer, types.WithTypeError()),
	)

	err := Capabilities{}.CheckTolerance(tolerant)
	require.Error(t, err)
	assert.True(t, types.IsFatal(err))

	assert.NoError(t, Capabilities{RuntimeTypeInformation: true}.CheckTolerance(tolerant))
}

func TestCheckTolerance_KeyErrorIsNotGated(t *testing.T) {
	keyTolerant := types.NewCompositeType("", types.KindObject,
		types.Getter("foo", types.Integer, types.WithKeyError()),
	)
	assert.NoError(t, Capabilities{}.CheckTolerance(keyTolerant))
}

func TestDefault(t *testing.T) {
	caps := Default()
	assert.False(t, caps.Debug)
	assert.True(t, caps.RuntimeTypeInformation)
}
