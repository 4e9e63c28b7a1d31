package access

import (
	"testing"

	"stakehub/internal/domain"
	"stakehub/pkg/errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	owner    = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	admin    = common.HexToAddress("0x00000000000000000000000000000000000000a2")
	resolver = common.HexToAddress("0x00000000000000000000000000000000000000a3")
	creator  = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	stranger = common.HexToAddress("0x00000000000000000000000000000000000000f1")
	treasury = common.HexToAddress("0x00000000000000000000000000000000000000fe")
)

func newPolicy(t *testing.T) *Policy {
	t.Helper()
	p, err := NewPolicy(owner, treasury, 1000, 200)
	require.NoError(t, err)
	return p
}

func TestNewPolicyValidation(t *testing.T) {
	_, err := NewPolicy(domain.Address{}, treasury, 1000, 200)
	assert.ErrorIs(t, err, errors.ErrZeroAddress)

	_, err = NewPolicy(owner, treasury, 1000, 1001)
	assert.ErrorIs(t, err, errors.ErrFeeTooHigh)

	_, err = NewPolicy(owner, treasury, 10001, 0)
	assert.ErrorIs(t, err, errors.ErrFeeTooHigh)
}

func TestRoles(t *testing.T) {
	p := newPolicy(t)

	assert.ErrorIs(t, p.GrantAdmin(stranger, admin), errors.ErrUnauthorized)
	require.NoError(t, p.GrantAdmin(owner, admin))
	assert.True(t, p.IsAdmin(admin))
	assert.True(t, p.IsAdmin(owner))

	assert.ErrorIs(t, p.GrantResolver(stranger, resolver), errors.ErrUnauthorized)
	require.NoError(t, p.GrantResolver(admin, resolver))

	assert.True(t, p.CanResolve(resolver, creator))
	assert.True(t, p.CanResolve(creator, creator))
	assert.False(t, p.CanResolve(stranger, creator))
	assert.False(t, p.CanResolve(admin, creator))

	assert.True(t, p.CanCancel(admin, creator))
	assert.True(t, p.CanCancel(creator, creator))
	assert.False(t, p.CanCancel(resolver, creator))

	require.NoError(t, p.RevokeResolver(owner, resolver))
	assert.False(t, p.CanResolve(resolver, creator))

	require.NoError(t, p.RevokeAdmin(owner, admin))
	assert.False(t, p.IsAdmin(admin))
}

func TestFeeSettings(t *testing.T) {
	p := newPolicy(t)

	assert.ErrorIs(t, p.SetPlatformFee(stranger, 100), errors.ErrUnauthorized)
	err := p.SetPlatformFee(owner, 1001)
	assert.ErrorIs(t, err, errors.ErrFeeTooHigh)
	assert.Equal(t, errors.KindValidation, errors.KindOf(err))

	require.NoError(t, p.SetPlatformFee(owner, 1000))
	assert.Equal(t, uint16(1000), p.PlatformFeeBps())

	assert.ErrorIs(t, p.SetFeeRecipient(owner, domain.Address{}), errors.ErrZeroAddress)
	require.NoError(t, p.SetFeeRecipient(owner, stranger))
	assert.Equal(t, stranger, p.FeeRecipient())
}

func TestPause(t *testing.T) {
	p := newPolicy(t)
	require.NoError(t, p.CheckActive())

	assert.ErrorIs(t, p.Pause(stranger), errors.ErrUnauthorized)
	require.NoError(t, p.Pause(owner))
	err := p.CheckActive()
	assert.ErrorIs(t, err, errors.ErrPaused)
	assert.Equal(t, errors.KindState, errors.KindOf(err))

	require.NoError(t, p.Unpause(owner))
	assert.NoError(t, p.CheckActive())
}

func TestSnapshot(t *testing.T) {
	p := newPolicy(t)
	require.NoError(t, p.GrantResolver(owner, resolver))
	require.NoError(t, p.GrantResolver(owner, creator))

	v := p.Snapshot()
	assert.Equal(t, owner, v.Owner)
	assert.Equal(t, []domain.Address{resolver, creator}, v.Resolvers)
	assert.Empty(t, v.Admins)
	assert.Equal(t, uint16(200), v.PlatformFeeBps)
}
