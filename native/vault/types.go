package vault

import (
	"math/big"

	"amanavault/crypto"
)

// VaultState captures the global accounting state for the vault module. Amount
// values are denominated in the asset token's smallest unit and expressed as
// big integers to preserve on-ledger precision.
type VaultState struct {
	// Initialized flips exactly once; every mutating operation requires it.
	Initialized bool `json:"initialized"`
	// Admin is compared against the caller on privileged operations.
	Admin crypto.Address `json:"admin"`
	// AssetSymbol names the underlying token the vault pools.
	AssetSymbol string `json:"assetSymbol"`
	// FeeRateBps is applied to the profit portion of withdrawals.
	FeeRateBps uint64 `json:"feeRateBps"`
	// FeeRecipient is credited with performance fee proceeds.
	FeeRecipient crypto.Address `json:"feeRecipient"`
	// TotalShares is the sum of all holder share balances.
	TotalShares *big.Int `json:"totalShares"`
	// StrategyName records the currently bound strategy for observability.
	StrategyName string `json:"strategyName,omitempty"`

	// Reward campaign state. RewardPerShare is a 1e18-scaled accumulator that
	// only ever grows; LastAccrualTime is the unix second it was last settled.
	RewardToken     string   `json:"rewardToken,omitempty"`
	RewardStart     uint64   `json:"rewardStart"`
	RewardEnd       uint64   `json:"rewardEnd"`
	RewardAmount    *big.Int `json:"rewardAmount"`
	RewardPerShare  *big.Int `json:"rewardPerShare"`
	LastAccrualTime uint64   `json:"lastAccrualTime"`
}

func (s *VaultState) normalize() *VaultState {
	if s.TotalShares == nil {
		s.TotalShares = big.NewInt(0)
	}
	if s.RewardAmount == nil {
		s.RewardAmount = big.NewInt(0)
	}
	if s.RewardPerShare == nil {
		s.RewardPerShare = big.NewInt(0)
	}
	return s
}

// Position maintains the vault holding for an individual participant.
type Position struct {
	// Address is the unique holder identifier.
	Address crypto.Address `json:"address"`
	// Shares is the holder's proportional claim on pooled assets.
	Shares *big.Int `json:"shares"`
	// RewardSnapshot is the accumulator value at the holder's last settlement.
	RewardSnapshot *big.Int `json:"rewardSnapshot"`
	// UnclaimedReward carries settled-but-unclaimed reward token units.
	UnclaimedReward *big.Int `json:"unclaimedReward"`
	// ClaimedReward tallies everything already paid out.
	ClaimedReward *big.Int `json:"claimedReward"`
}

func (p *Position) normalize() *Position {
	if p.Shares == nil {
		p.Shares = big.NewInt(0)
	}
	if p.RewardSnapshot == nil {
		p.RewardSnapshot = big.NewInt(0)
	}
	if p.UnclaimedReward == nil {
		p.UnclaimedReward = big.NewInt(0)
	}
	if p.ClaimedReward == nil {
		p.ClaimedReward = big.NewInt(0)
	}
	return p
}
