// Package config loads and validates service configuration.
package config

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ValidateCore ensures critical configuration is present and consistent.
func (c *Config) ValidateCore() error {
	var missing []string

	if strings.TrimSpace(c.Server.Port) == "" {
		missing = append(missing, "SERVER_PORT")
	}
	if strings.TrimSpace(c.JWT.Secret) == "" || c.JWT.Secret == "change-this-secret" {
		missing = append(missing, "JWT_SECRET")
	}
	if !common.IsHexAddress(c.Settlement.Owner) {
		missing = append(missing, "SETTLEMENT_OWNER")
	}
	if !common.IsHexAddress(c.Settlement.FeeRecipient) {
		missing = append(missing, "SETTLEMENT_FEE_RECIPIENT")
	}
	for _, a := range append(append([]string{}, c.Settlement.Admins...), c.Settlement.Resolvers...) {
		if !common.IsHexAddress(a) {
			missing = append(missing, fmt.Sprintf("SETTLEMENT_ADMINS/RESOLVERS (%s)", a))
		}
	}
	if c.Redis.Enabled && strings.TrimSpace(c.Redis.URL) == "" {
		missing = append(missing, "REDIS_URL")
	}

	switch c.Ledger.Backend {
	case "memory":
	case "postgres":
		if strings.TrimSpace(c.Database.URL) == "" {
			missing = append(missing, "DATABASE_URL")
		}
		if !common.IsHexAddress(c.Ledger.CustodyAccount) {
			missing = append(missing, "LEDGER_CUSTODY_ACCOUNT")
		}
		if strings.TrimSpace(c.Journal.StatePath) == "" {
			missing = append(missing, "STATE_PATH")
		}
	default:
		missing = append(missing, "LEDGER_BACKEND")
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	if c.Server.Backlog <= 0 {
		return fmt.Errorf("SEQUENCER_BACKLOG must be positive")
	}

	s := c.Settlement
	if s.PlatformFeeBps > s.FeeCapBps {
		return fmt.Errorf("SETTLEMENT_PLATFORM_FEE_BPS %d exceeds SETTLEMENT_FEE_CAP_BPS %d", s.PlatformFeeBps, s.FeeCapBps)
	}
	if s.FeeCapBps > 10000 {
		return fmt.Errorf("SETTLEMENT_FEE_CAP_BPS %d exceeds 10000", s.FeeCapBps)
	}
	if !s.MinStakeFloor.IsPositive() {
		return fmt.Errorf("SETTLEMENT_MIN_STAKE_FLOOR must be positive")
	}
	if s.Precision < 0 {
		return fmt.Errorf("SETTLEMENT_PRECISION must not be negative")
	}

	return nil
}
