// Package domain re-exports core domain types so internal code can import
// `stakehub/internal/domain` while using definitions from `stakehub/pkg/domain`.
package domain

import pkg "stakehub/pkg/domain"

// Address identifies an account on the value ledger.
type Address = pkg.Address

// PoolID identifies a pool or commit-reveal round.
type PoolID = pkg.PoolID

// Choice indexes one option of a pool.
type Choice = pkg.Choice

// Pool represents a staking pool.
type Pool = pkg.Pool

// PoolStatus represents pool lifecycle states.
type PoolStatus = pkg.PoolStatus

// UserStake represents one participant's stake on one choice.
type UserStake = pkg.UserStake

// Round represents a commit-reveal round.
type Round = pkg.Round

// RoundStatus represents round lifecycle states.
type RoundStatus = pkg.RoundStatus

// Commitment represents a participant's hidden choice in a round.
type Commitment = pkg.Commitment

// Re-exported limits.
const (
	MinChoices  = pkg.MinChoices
	MaxChoices  = pkg.MaxChoices
	BasisPoints = pkg.BasisPoints
)

// Re-exported pool statuses.
const (
	PoolStatusActive    = pkg.PoolStatusActive
	PoolStatusResolved  = pkg.PoolStatusResolved
	PoolStatusCancelled = pkg.PoolStatusCancelled
)

// Re-exported round statuses.
const (
	RoundStatusNotStarted  = pkg.RoundStatusNotStarted
	RoundStatusCommitPhase = pkg.RoundStatusCommitPhase
	RoundStatusRevealPhase = pkg.RoundStatusRevealPhase
	RoundStatusFinalized   = pkg.RoundStatusFinalized
	RoundStatusCancelled   = pkg.RoundStatusCancelled
)
