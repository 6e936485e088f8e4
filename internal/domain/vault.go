package domain

import "time"

// VaultStrategy categorises how a managed vault trades.
type VaultStrategy string

const (
	VaultStrategyLP        VaultStrategy = "liquidity_provider"
	VaultStrategyMomentum  VaultStrategy = "momentum"
	VaultStrategyArbitrage VaultStrategy = "arbitrage"
	VaultStrategyYield     VaultStrategy = "yield"
)

// Vault is a managed strategy that users copy-trade by depositing funds.
type Vault struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	ManagerID     string        `json:"manager_id"`
	Strategy      VaultStrategy `json:"strategy"`
	TotalValue    float64       `json:"total_value"`
	Followers     int           `json:"followers"`
	AllTimeReturn float64       `json:"all_time_return"` // percentage
	CreatedAt     time.Time     `json:"created_at"`
}
