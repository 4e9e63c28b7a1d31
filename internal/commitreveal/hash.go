// Package commitreveal runs rounds in which participants lock a stake
// under a hash of their choice and disclose the choice only after the commit
// window has closed.
package commitreveal

import (
	"stakehub/internal/domain"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Hash is the commitment a participant submits:
// keccak256(choice as one byte || 32-byte secret || 20-byte participant address).
// Including the address means a copied commitment cannot be revealed by
// anybody but its author.
func Hash(choice domain.Choice, secret common.Hash, participant domain.Address) common.Hash {
	return crypto.Keccak256Hash([]byte{byte(choice)}, secret.Bytes(), participant.Bytes())
}
