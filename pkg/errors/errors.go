// Package errors provides common, reusable error values and helpers.
package errors

import (
	"errors"
	"fmt"
)

// Validation errors: malformed or out-of-range input.
var (
	ErrInvalidChoiceCount = errors.New("choice count out of range")
	ErrInvalidChoice      = errors.New("choice out of range")
	ErrDeadlineTooSoon    = errors.New("deadline must be further in the future")
	ErrMinStakeTooLow     = errors.New("minimum stake below protocol floor")
	ErrInvalidStakeBounds = errors.New("maximum stake below minimum stake")
	ErrFeeTooHigh         = errors.New("fee rate exceeds cap")
	ErrStakeTooLow        = errors.New("stake below pool minimum")
	ErrStakeTooHigh       = errors.New("stake above pool maximum")
	ErrStakeCeiling       = errors.New("cumulative stake on choice exceeds pool maximum")
	ErrInvalidAmount      = errors.New("amount must be positive")
	ErrCommitWindowShort  = errors.New("commit window below minimum duration")
	ErrRevealWindowShort  = errors.New("reveal window below minimum duration")
	ErrZeroCommitment     = errors.New("commitment hash must not be zero")
	ErrCommitmentMismatch = errors.New("choice and secret do not match commitment")
	ErrZeroAddress        = errors.New("address must not be zero")
	ErrEmptyID            = errors.New("identifier must not be empty")
)

// State errors: the operation is not valid in the current lifecycle phase.
var (
	ErrPoolExists        = errors.New("pool already exists")
	ErrPoolNotFound      = errors.New("pool not found")
	ErrPoolNotActive     = errors.New("pool is not active")
	ErrPoolNotResolved   = errors.New("pool is not resolved")
	ErrPoolNotCancelled  = errors.New("pool is not cancelled")
	ErrStakingClosed     = errors.New("staking deadline has passed")
	ErrNoStake           = errors.New("no stake found")
	ErrNoWinningStake    = errors.New("no stake on winning choice")
	ErrAlreadyClaimed    = errors.New("already claimed")
	ErrNothingToClaim    = errors.New("nothing to claim")
	ErrRoundExists       = errors.New("round already exists")
	ErrRoundNotFound     = errors.New("round not found")
	ErrNotCommitPhase    = errors.New("round is not in commit phase")
	ErrCommitClosed      = errors.New("commit deadline has passed")
	ErrAlreadyCommitted  = errors.New("already committed")
	ErrNoCommitment      = errors.New("no commitment found")
	ErrRevealNotOpen     = errors.New("reveal phase has not started")
	ErrRevealClosed      = errors.New("reveal deadline has passed")
	ErrAlreadyRevealed   = errors.New("already revealed")
	ErrNotRevealed       = errors.New("commitment was not revealed")
	ErrCannotFinalize    = errors.New("round cannot be finalized yet")
	ErrRoundNotFinalized = errors.New("round is not finalized")
	ErrRoundTerminal     = errors.New("round is already finalized or cancelled")
	ErrSeedUnavailable   = errors.New("seed is not reclaimable")
	ErrPaused            = errors.New("operations are paused")
	ErrReentrant         = errors.New("reentrant call rejected")
)

// Authorization errors.
var (
	ErrUnauthorized = errors.New("caller is not authorized")
)

// External dependency errors.
var (
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrTransferFailed        = errors.New("value transfer failed")
)

// Transport errors.
var (
	ErrDuplicateRequest = errors.New("duplicate request in progress")
)

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
