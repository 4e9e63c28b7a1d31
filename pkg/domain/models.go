package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Address identifies a participant, originator or fee recipient.
type Address = common.Address

// PoolID is the externally supplied identifier of a pool or round.
type PoolID string

// Choice is a zero-based index into a pool's discrete options.
type Choice uint8

const (
	MinChoices = 2
	MaxChoices = 10

	// BasisPoints is 100% expressed in bps.
	BasisPoints = 10000
)

// PoolStatus represents the lifecycle state of a pool.
type PoolStatus string

const (
	PoolStatusActive    PoolStatus = "active"
	PoolStatusResolved  PoolStatus = "resolved"
	PoolStatusCancelled PoolStatus = "cancelled"
)

// Terminal reports whether no further transition is possible.
func (s PoolStatus) Terminal() bool {
	return s == PoolStatusResolved || s == PoolStatusCancelled
}

// Pool is one staking challenge instance.
type Pool struct {
	ID             PoolID            `json:"id" db:"id"`
	Originator     Address           `json:"originator" db:"originator"`
	ChoiceCount    uint8             `json:"choice_count" db:"choice_count"`
	Deadline       time.Time         `json:"deadline" db:"deadline"`
	MinStake       decimal.Decimal   `json:"min_stake" db:"min_stake"`
	MaxStake       decimal.Decimal   `json:"max_stake" db:"max_stake"`
	SeedAmount     decimal.Decimal   `json:"seed_amount" db:"seed_amount"`
	PlatformFeeBps uint16            `json:"platform_fee_bps" db:"platform_fee_bps"`
	CreatorFeeBps  uint16            `json:"creator_fee_bps" db:"creator_fee_bps"`
	TotalStaked    decimal.Decimal   `json:"total_staked" db:"total_staked"`
	ChoiceTotals   []decimal.Decimal `json:"choice_totals" db:"-"`
	WinningChoice  Choice            `json:"winning_choice" db:"winning_choice"`
	Status         PoolStatus        `json:"status" db:"status"`
	CancelReason   string            `json:"cancel_reason,omitempty" db:"cancel_reason"`
	SeedReclaimed  bool              `json:"seed_reclaimed" db:"seed_reclaimed"`

	// Frozen at resolution; claims never recompute fees.
	PlatformFee decimal.Decimal `json:"platform_fee" db:"platform_fee"`
	CreatorFee  decimal.Decimal `json:"creator_fee" db:"creator_fee"`
	PayoutPool  decimal.Decimal `json:"payout_pool" db:"payout_pool"`

	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty" db:"resolved_at"`
}

// Pot is the amount fees and payouts are computed from: every stake plus the seed.
func (p *Pool) Pot() decimal.Decimal {
	return p.TotalStaked.Add(p.SeedAmount)
}

// ValidChoice reports whether c indexes one of the pool's options.
func (p *Pool) ValidChoice(c Choice) bool {
	return uint8(c) < p.ChoiceCount
}

// Clone returns a deep copy so callers never alias store-owned slices.
func (p Pool) Clone() Pool {
	p.ChoiceTotals = append([]decimal.Decimal(nil), p.ChoiceTotals...)
	if p.ResolvedAt != nil {
		t := *p.ResolvedAt
		p.ResolvedAt = &t
	}
	return p
}

// UserStake is the cumulative stake of one participant on one choice of one pool.
type UserStake struct {
	PoolID      PoolID          `json:"pool_id" db:"pool_id"`
	Participant Address         `json:"participant" db:"participant"`
	Choice      Choice          `json:"choice" db:"choice"`
	Amount      decimal.Decimal `json:"amount" db:"amount"`
	Claimed     bool            `json:"claimed" db:"claimed"`
}

// RoundStatus represents the lifecycle state of a commit-reveal round.
type RoundStatus string

const (
	RoundStatusNotStarted  RoundStatus = "not_started"
	RoundStatusCommitPhase RoundStatus = "commit_phase"
	RoundStatusRevealPhase RoundStatus = "reveal_phase"
	RoundStatusFinalized   RoundStatus = "finalized"
	RoundStatusCancelled   RoundStatus = "cancelled"
)

// Terminal reports whether no further transition is possible.
func (s RoundStatus) Terminal() bool {
	return s == RoundStatusFinalized || s == RoundStatusCancelled
}

// Round is a pool whose choices stay hidden until the commit window closes.
type Round struct {
	ID             PoolID            `json:"id" db:"id"`
	Originator     Address           `json:"originator" db:"originator"`
	ChoiceCount    uint8             `json:"choice_count" db:"choice_count"`
	CommitDeadline time.Time         `json:"commit_deadline" db:"commit_deadline"`
	RevealDeadline time.Time         `json:"reveal_deadline" db:"reveal_deadline"`
	MinStake       decimal.Decimal   `json:"min_stake" db:"min_stake"`
	MaxStake       decimal.Decimal   `json:"max_stake" db:"max_stake"`
	SeedAmount     decimal.Decimal   `json:"seed_amount" db:"seed_amount"`
	PlatformFeeBps uint16            `json:"platform_fee_bps" db:"platform_fee_bps"`
	CreatorFeeBps  uint16            `json:"creator_fee_bps" db:"creator_fee_bps"`
	TotalCommitted decimal.Decimal   `json:"total_committed" db:"total_committed"`
	TotalRevealed  decimal.Decimal   `json:"total_revealed" db:"total_revealed"`
	ChoiceTotals   []decimal.Decimal `json:"choice_totals" db:"-"`
	RevealCount    int               `json:"reveal_count" db:"reveal_count"`
	WinningChoice  Choice            `json:"winning_choice" db:"winning_choice"`
	Status         RoundStatus       `json:"status" db:"status"`
	CancelReason   string            `json:"cancel_reason,omitempty" db:"cancel_reason"`
	SeedReclaimed  bool              `json:"seed_reclaimed" db:"seed_reclaimed"`

	PlatformFee decimal.Decimal `json:"platform_fee" db:"platform_fee"`
	CreatorFee  decimal.Decimal `json:"creator_fee" db:"creator_fee"`
	PayoutPool  decimal.Decimal `json:"payout_pool" db:"payout_pool"`

	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	FinalizedAt *time.Time `json:"finalized_at,omitempty" db:"finalized_at"`
}

// Pot is the revealed stake plus the seed. Unrevealed stake never enters it.
func (r *Round) Pot() decimal.Decimal {
	return r.TotalRevealed.Add(r.SeedAmount)
}

// ValidChoice reports whether c indexes one of the round's options.
func (r *Round) ValidChoice(c Choice) bool {
	return uint8(c) < r.ChoiceCount
}

// Clone returns a deep copy.
func (r Round) Clone() Round {
	r.ChoiceTotals = append([]decimal.Decimal(nil), r.ChoiceTotals...)
	if r.FinalizedAt != nil {
		t := *r.FinalizedAt
		r.FinalizedAt = &t
	}
	return r
}

// Commitment binds a participant's locked stake to a hidden choice.
type Commitment struct {
	RoundID        PoolID          `json:"round_id" db:"round_id"`
	Participant    Address         `json:"participant" db:"participant"`
	Hash           common.Hash     `json:"hash" db:"hash"`
	Amount         decimal.Decimal `json:"amount" db:"amount"`
	RevealedChoice Choice          `json:"revealed_choice" db:"revealed_choice"`
	Revealed       bool            `json:"revealed" db:"revealed"`
	Claimed        bool            `json:"claimed" db:"claimed"`
}
