package vault

import (
	"math/big"
	"strings"

	"amanavault/crypto"
	nativecommon "amanavault/native/common"
)

// Reward campaigns distribute a fixed amount of a secondary token over a fixed
// wall-clock window, proportional to shares held over time. The accrual is
// pull-based: every share mutation settles the global accumulator and the
// touched holder's snapshot first, so no holder iteration ever happens.

// settleGlobal advances the 1e18-scaled reward-per-share accumulator up to the
// current timestamp, clamped to the campaign window. Outside the window, or
// with no shares outstanding, only the settlement clock moves.
func (e *Engine) settleGlobal(vs *VaultState) {
	now := e.timestamp
	defer func() { vs.LastAccrualTime = now }()
	if vs.RewardAmount.Sign() <= 0 || vs.RewardEnd <= vs.RewardStart {
		return
	}
	from := vs.LastAccrualTime
	if from < vs.RewardStart {
		from = vs.RewardStart
	}
	to := now
	if to > vs.RewardEnd {
		to = vs.RewardEnd
	}
	if to <= from || vs.TotalShares.Sign() == 0 {
		return
	}
	elapsed := new(big.Int).SetUint64(to - from)
	duration := new(big.Int).SetUint64(vs.RewardEnd - vs.RewardStart)
	increment := new(big.Int).Mul(vs.RewardAmount, elapsed)
	increment.Mul(increment, wad)
	increment.Quo(increment, new(big.Int).Mul(duration, vs.TotalShares))
	vs.RewardPerShare = new(big.Int).Add(vs.RewardPerShare, increment)
}

// settleHolder moves the accumulator delta since the holder's last snapshot
// into their unclaimed balance. Must run before any change to the holder's
// share count.
func settleHolder(vs *VaultState, pos *Position) {
	delta := new(big.Int).Sub(vs.RewardPerShare, pos.RewardSnapshot)
	if delta.Sign() > 0 && pos.Shares.Sign() > 0 {
		earned := new(big.Int).Mul(pos.Shares, delta)
		earned.Quo(earned, wad)
		pos.UnclaimedReward = new(big.Int).Add(pos.UnclaimedReward, earned)
	}
	pos.RewardSnapshot = copyBigInt(vs.RewardPerShare)
}

// SetRewardToken configures the payout token for future campaigns. Changing it
// mid-window would redenominate accrued-but-unclaimed balances, so the call is
// rejected while a campaign is active.
func (e *Engine) SetRewardToken(caller crypto.Address, symbol string) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return errInvalidAsset
	}
	vs, err := e.requireInitialized()
	if err != nil {
		return err
	}
	if !vs.Admin.Equal(caller) {
		return errUnauthorized
	}
	if vs.RewardAmount.Sign() > 0 && e.timestamp < vs.RewardEnd {
		return errRewardWindowActive
	}
	vs.RewardToken = symbol
	return e.state.PutVaultState(vs)
}

// SetRewardsInterval starts or overwrites a reward campaign. The previous
// window is settled up to now before the new one takes effect; campaigns never
// queue. The reward amount is pulled from the admin's balance so every later
// claim is fully funded.
func (e *Engine) SetRewardsInterval(caller crypto.Address, start, end uint64, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	if start >= end {
		return errRewardWindowInvalid
	}
	vs, err := e.requireInitialized()
	if err != nil {
		return err
	}
	if !vs.Admin.Equal(caller) {
		return errUnauthorized
	}
	if vs.RewardToken == "" {
		return errRewardTokenUnset
	}

	e.settleGlobal(vs)

	if err := e.tokens.TransferFrom(vs.RewardToken, e.moduleAddress, caller, e.moduleAddress, amount); err != nil {
		return err
	}

	vs.RewardStart = start
	vs.RewardEnd = end
	vs.RewardAmount = new(big.Int).Set(amount)
	if err := e.state.PutVaultState(vs); err != nil {
		return err
	}
	e.state.AppendEvent(newRewardsIntervalEvent(vs.RewardToken, start, end, amount))
	return nil
}

// ClaimableRewards reports what a claim would pay out right now without
// mutating state.
func (e *Engine) ClaimableRewards(holder crypto.Address) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	vs, err := e.loadState()
	if err != nil {
		return nil, err
	}
	pos, err := e.loadPosition(holder)
	if err != nil {
		return nil, err
	}
	e.settleGlobal(vs)
	settleHolder(vs, pos)
	return copyBigInt(pos.UnclaimedReward), nil
}

// ClaimRewards settles and pays out the caller's accrued reward tokens. A zero
// claimable balance is a successful no-op, not an error.
func (e *Engine) ClaimRewards(caller, recipient crypto.Address) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if err := e.guard.Enter(); err != nil {
		return nil, err
	}
	defer e.guard.Exit()
	vs, err := e.requireInitialized()
	if err != nil {
		return nil, err
	}

	e.settleGlobal(vs)
	pos, err := e.loadPosition(caller)
	if err != nil {
		return nil, err
	}
	settleHolder(vs, pos)

	amount := copyBigInt(pos.UnclaimedReward)
	if amount.Sign() == 0 {
		if err := e.state.PutPosition(pos); err != nil {
			return nil, err
		}
		if err := e.state.PutVaultState(vs); err != nil {
			return nil, err
		}
		return big.NewInt(0), nil
	}
	if vs.RewardToken == "" {
		return nil, errRewardTokenUnset
	}

	pos.UnclaimedReward = big.NewInt(0)
	pos.ClaimedReward = new(big.Int).Add(pos.ClaimedReward, amount)
	if err := e.state.PutPosition(pos); err != nil {
		return nil, err
	}
	if err := e.state.PutVaultState(vs); err != nil {
		return nil, err
	}

	if err := e.tokens.Transfer(vs.RewardToken, e.moduleAddress, recipient, amount); err != nil {
		return nil, err
	}
	e.state.AppendEvent(newRewardsClaimedEvent(caller, recipient, amount))
	return amount, nil
}
