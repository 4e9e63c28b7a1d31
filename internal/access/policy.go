// Package access holds the capability policy checked by settlement operations.
package access

import (
	"slices"
	"sync"

	"stakehub/internal/domain"
	"stakehub/pkg/errors"
)

// Policy carries the owner, administrator and resolver sets plus the
// protocol-wide fee settings and pause switch. It is passed explicitly into
// the services that consult it.
type Policy struct {
	mu             sync.RWMutex
	owner          domain.Address
	admins         map[domain.Address]struct{}
	resolvers      map[domain.Address]struct{}
	feeCapBps      uint16
	platformFeeBps uint16
	feeRecipient   domain.Address
	paused         bool
}

// View is a read-only snapshot of the policy.
type View struct {
	Owner          domain.Address   `json:"owner"`
	Admins         []domain.Address `json:"admins"`
	Resolvers      []domain.Address `json:"resolvers"`
	FeeCapBps      uint16           `json:"fee_cap_bps"`
	PlatformFeeBps uint16           `json:"platform_fee_bps"`
	FeeRecipient   domain.Address   `json:"fee_recipient"`
	Paused         bool             `json:"paused"`
}

func NewPolicy(owner, feeRecipient domain.Address, feeCapBps, platformFeeBps uint16) (*Policy, error) {
	if owner == (domain.Address{}) || feeRecipient == (domain.Address{}) {
		return nil, errors.Validation(errors.ErrZeroAddress)
	}
	if feeCapBps > domain.BasisPoints || platformFeeBps > feeCapBps {
		return nil, errors.Validationf(errors.ErrFeeTooHigh, "platform fee %d bps, cap %d bps", platformFeeBps, feeCapBps)
	}
	return &Policy{
		owner:          owner,
		admins:         make(map[domain.Address]struct{}),
		resolvers:      make(map[domain.Address]struct{}),
		feeCapBps:      feeCapBps,
		platformFeeBps: platformFeeBps,
		feeRecipient:   feeRecipient,
	}, nil
}

// IsAdmin reports whether a holds administrator rights. The owner always does.
func (p *Policy) IsAdmin(a domain.Address) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.isAdmin(a)
}

func (p *Policy) isAdmin(a domain.Address) bool {
	if a == p.owner {
		return true
	}
	_, ok := p.admins[a]
	return ok
}

func (p *Policy) IsResolver(a domain.Address) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.resolvers[a]
	return ok
}

// CanResolve reports whether caller may resolve or finalize an instance
// created by originator.
func (p *Policy) CanResolve(caller, originator domain.Address) bool {
	return caller == originator || p.IsResolver(caller)
}

// CanCancel reports whether caller may cancel an instance created by originator.
func (p *Policy) CanCancel(caller, originator domain.Address) bool {
	return caller == originator || p.IsAdmin(caller)
}

// CheckActive fails while the emergency pause is engaged.
func (p *Policy) CheckActive() error {
	if p.Paused() {
		return errors.State(errors.ErrPaused)
	}
	return nil
}

func (p *Policy) Paused() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.paused
}

func (p *Policy) FeeCapBps() uint16 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.feeCapBps
}

func (p *Policy) PlatformFeeBps() uint16 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.platformFeeBps
}

func (p *Policy) FeeRecipient() domain.Address {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.feeRecipient
}

// SetPlatformFee changes the platform fee applied to instances created afterwards.
func (p *Policy) SetPlatformFee(caller domain.Address, bps uint16) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.isAdmin(caller) {
		return errors.Unauthorized(errors.ErrUnauthorized)
	}
	if bps > p.feeCapBps {
		return errors.Validationf(errors.ErrFeeTooHigh, "platform fee %d bps, cap %d bps", bps, p.feeCapBps)
	}
	p.platformFeeBps = bps
	return nil
}

func (p *Policy) SetFeeRecipient(caller, recipient domain.Address) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.isAdmin(caller) {
		return errors.Unauthorized(errors.ErrUnauthorized)
	}
	if recipient == (domain.Address{}) {
		return errors.Validation(errors.ErrZeroAddress)
	}
	p.feeRecipient = recipient
	return nil
}

// GrantAdmin and RevokeAdmin are reserved to the owner.
func (p *Policy) GrantAdmin(caller, a domain.Address) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if caller != p.owner {
		return errors.Unauthorized(errors.ErrUnauthorized)
	}
	if a == (domain.Address{}) {
		return errors.Validation(errors.ErrZeroAddress)
	}
	p.admins[a] = struct{}{}
	return nil
}

func (p *Policy) RevokeAdmin(caller, a domain.Address) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if caller != p.owner {
		return errors.Unauthorized(errors.ErrUnauthorized)
	}
	delete(p.admins, a)
	return nil
}

func (p *Policy) GrantResolver(caller, a domain.Address) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.isAdmin(caller) {
		return errors.Unauthorized(errors.ErrUnauthorized)
	}
	if a == (domain.Address{}) {
		return errors.Validation(errors.ErrZeroAddress)
	}
	p.resolvers[a] = struct{}{}
	return nil
}

func (p *Policy) RevokeResolver(caller, a domain.Address) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.isAdmin(caller) {
		return errors.Unauthorized(errors.ErrUnauthorized)
	}
	delete(p.resolvers, a)
	return nil
}

func (p *Policy) Pause(caller domain.Address) error {
	return p.setPaused(caller, true)
}

func (p *Policy) Unpause(caller domain.Address) error {
	return p.setPaused(caller, false)
}

func (p *Policy) setPaused(caller domain.Address, paused bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.isAdmin(caller) {
		return errors.Unauthorized(errors.ErrUnauthorized)
	}
	p.paused = paused
	return nil
}

// Snapshot returns the current policy for the read surface.
func (p *Policy) Snapshot() View {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v := View{
		Owner:          p.owner,
		FeeCapBps:      p.feeCapBps,
		PlatformFeeBps: p.platformFeeBps,
		FeeRecipient:   p.feeRecipient,
		Paused:         p.paused,
		Admins:         make([]domain.Address, 0, len(p.admins)),
		Resolvers:      make([]domain.Address, 0, len(p.resolvers)),
	}
	for a := range p.admins {
		v.Admins = append(v.Admins, a)
	}
	for a := range p.resolvers {
		v.Resolvers = append(v.Resolvers, a)
	}
	slices.SortFunc(v.Admins, domain.Address.Cmp)
	slices.SortFunc(v.Resolvers, domain.Address.Cmp)
	return v
}
