package vault

import (
	"math/big"
	"strconv"

	"amanavault/core/types"
	"amanavault/crypto"
)

const (
	EventTypeDeposited          = "vault.deposited"
	EventTypeWithdrawn          = "vault.withdrawn"
	EventTypeFeePaid            = "vault.fee_paid"
	EventTypeStrategyUpdated    = "vault.strategy_updated"
	EventTypeRewardsIntervalSet = "vault.rewards_interval_set"
	EventTypeRewardsClaimed     = "vault.rewards_claimed"
)

func bigAttr(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func newDepositedEvent(caller, receiver crypto.Address, amount, shares *big.Int) *types.Event {
	return &types.Event{Type: EventTypeDeposited, Attributes: map[string]string{
		"caller":   caller.String(),
		"receiver": receiver.String(),
		"assets":   bigAttr(amount),
		"shares":   bigAttr(shares),
	}}
}

func newWithdrawnEvent(caller, receiver, owner crypto.Address, requested, received, shares *big.Int) *types.Event {
	return &types.Event{Type: EventTypeWithdrawn, Attributes: map[string]string{
		"caller":    caller.String(),
		"receiver":  receiver.String(),
		"owner":     owner.String(),
		"requested": bigAttr(requested),
		"received":  bigAttr(received),
		"shares":    bigAttr(shares),
	}}
}

func newFeePaidEvent(recipient crypto.Address, fee *big.Int) *types.Event {
	return &types.Event{Type: EventTypeFeePaid, Attributes: map[string]string{
		"recipient": recipient.String(),
		"amount":    bigAttr(fee),
	}}
}

func newStrategyUpdatedEvent(name string) *types.Event {
	return &types.Event{Type: EventTypeStrategyUpdated, Attributes: map[string]string{
		"strategy": name,
	}}
}

func newRewardsIntervalEvent(token string, start, end uint64, amount *big.Int) *types.Event {
	return &types.Event{Type: EventTypeRewardsIntervalSet, Attributes: map[string]string{
		"token":  token,
		"start":  strconv.FormatUint(start, 10),
		"end":    strconv.FormatUint(end, 10),
		"amount": bigAttr(amount),
	}}
}

func newRewardsClaimedEvent(holder, recipient crypto.Address, amount *big.Int) *types.Event {
	return &types.Event{Type: EventTypeRewardsClaimed, Attributes: map[string]string{
		"holder":    holder.String(),
		"recipient": recipient.String(),
		"amount":    bigAttr(amount),
	}}
}
