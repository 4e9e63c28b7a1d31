package guard

import (
	"testing"

	"stakehub/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuardRejectsReentry(t *testing.T) {
	g := New()

	release, err := g.Enter()
	require.NoError(t, err)

	_, err = g.Enter()
	assert.ErrorIs(t, err, errors.ErrReentrant)
	assert.Equal(t, errors.KindState, errors.KindOf(err))

	release()

	release, err = g.Enter()
	require.NoError(t, err)
	release()
}

func TestGuardReleasedOnPanic(t *testing.T) {
	g := New()

	func() {
		defer func() { _ = recover() }()
		release, err := g.Enter()
		require.NoError(t, err)
		defer release()
		panic("boom")
	}()

	release, err := g.Enter()
	require.NoError(t, err)
	release()
}
