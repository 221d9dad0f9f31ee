package vault

import (
	"math/big"
	"strings"

	"amanavault/core/types"
	"amanavault/crypto"
	nativecommon "amanavault/native/common"
)

const moduleName = "vault"

type engineState interface {
	VaultState() (*VaultState, error)
	PutVaultState(state *VaultState) error
	Position(addr crypto.Address) (*Position, error)
	PutPosition(pos *Position) error
	ShareAllowance(owner, spender crypto.Address) (*big.Int, error)
	SetShareAllowance(owner, spender crypto.Address, amount *big.Int) error
	AppendEvent(evt *types.Event)
}

// TokenLedger is the fungible-token surface the vault consumes. Both the asset
// token and the reward token move through it; the vault never inspects balances
// beyond what these calls surface.
type TokenLedger interface {
	Transfer(symbol string, from, to crypto.Address, amount *big.Int) error
	TransferFrom(symbol string, spender, owner, to crypto.Address, amount *big.Int) error
}

// Strategy is the venue adapter bound to the vault. Deposited assets are
// forwarded to its module account before Invest runs, since the venue pulls
// from there. Divest returns the amount the venue actually released, which the
// vault treats as ground truth.
type Strategy interface {
	Name() string
	ModuleAddress() crypto.Address
	Invest(caller crypto.Address, amount *big.Int) error
	Divest(caller crypto.Address, amount *big.Int, recipient crypto.Address) (*big.Int, error)
	EstimatedTotalAssets() (*big.Int, error)
}

// Engine orchestrates share accounting, performance fees and the reward
// campaign for the vault module. Deposits land directly in the strategy's
// module account; the vault's own account only holds assets transiently on the
// withdrawal side while proceeds are split between receiver and fee recipient.
type Engine struct {
	state         engineState
	moduleAddress crypto.Address
	tokens        TokenLedger
	strategy      Strategy
	pauses        nativecommon.PauseView
	guard         nativecommon.ReentrancyGuard
	timestamp     uint64
}

// NewEngine constructs a vault engine owning the given module account.
func NewEngine(moduleAddr crypto.Address) *Engine {
	return &Engine{moduleAddress: moduleAddr}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetTokenLedger wires the fungible-token collaborator.
func (e *Engine) SetTokenLedger(tokens TokenLedger) {
	if e == nil {
		return
	}
	e.tokens = tokens
}

func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetTimestamp records the unix second used for reward accrual deltas.
func (e *Engine) SetTimestamp(ts uint64) {
	if e == nil {
		return
	}
	e.timestamp = ts
}

// ModuleAddress returns the protocol-owned account backing the vault.
func (e *Engine) ModuleAddress() crypto.Address {
	return e.moduleAddress
}

// BindStrategy attaches the live strategy adapter for this process. The
// persisted strategy name is only updated through SetStrategy; this call is
// the process-start wiring counterpart.
func (e *Engine) BindStrategy(s Strategy) {
	if e == nil {
		return
	}
	e.strategy = s
}

// Initialize performs the one-shot vault setup. A second call fails with
// errAlreadyInitialized and leaves state untouched.
func (e *Engine) Initialize(admin crypto.Address, assetSymbol string, feeRateBps uint64, feeRecipient crypto.Address) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if admin.IsZero() {
		return errInvalidAdmin
	}
	assetSymbol = strings.ToUpper(strings.TrimSpace(assetSymbol))
	if assetSymbol == "" {
		return errInvalidAsset
	}
	if feeRateBps > basisPoints.Uint64() {
		return errInvalidFeeRate
	}
	vs, err := e.loadState()
	if err != nil {
		return err
	}
	if vs.Initialized {
		return errAlreadyInitialized
	}
	vs.Initialized = true
	vs.Admin = admin
	vs.AssetSymbol = assetSymbol
	vs.FeeRateBps = feeRateBps
	if feeRecipient.IsZero() {
		feeRecipient = admin
	}
	vs.FeeRecipient = feeRecipient
	vs.LastAccrualTime = e.timestamp
	return e.state.PutVaultState(vs)
}

// SetStrategy binds the vault to a strategy adapter. Rebinding while the
// current strategy still reports assets is rejected: the admin must divest the
// old position fully first, otherwise funds would be stranded or double
// counted by TotalAssets.
func (e *Engine) SetStrategy(caller crypto.Address, strategy Strategy) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	vs, err := e.requireInitialized()
	if err != nil {
		return err
	}
	if !vs.Admin.Equal(caller) {
		return errUnauthorized
	}
	if e.strategy != nil {
		held, err := e.strategy.EstimatedTotalAssets()
		if err != nil {
			return err
		}
		if held.Sign() > 0 {
			return errStrategyPositionLive
		}
	}
	vs.StrategyName = ""
	if strategy != nil {
		vs.StrategyName = strategy.Name()
	}
	// Persist first; the live binding only moves once the name is recorded,
	// so a write failure cannot leave the two out of step.
	if err := e.state.PutVaultState(vs); err != nil {
		return err
	}
	e.strategy = strategy
	e.state.AppendEvent(newStrategyUpdatedEvent(vs.StrategyName))
	return nil
}

// SetFeeRate updates the performance fee taken on realized profit.
func (e *Engine) SetFeeRate(caller crypto.Address, feeRateBps uint64) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if feeRateBps > basisPoints.Uint64() {
		return errInvalidFeeRate
	}
	vs, err := e.requireInitialized()
	if err != nil {
		return err
	}
	if !vs.Admin.Equal(caller) {
		return errUnauthorized
	}
	vs.FeeRateBps = feeRateBps
	return e.state.PutVaultState(vs)
}

// TotalAssets reports the present value of everything the vault controls. The
// vault holds no idle balance, so this delegates entirely to the strategy.
func (e *Engine) TotalAssets() (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if e.strategy == nil {
		return big.NewInt(0), nil
	}
	return e.strategy.EstimatedTotalAssets()
}

// State returns a copy of the persisted vault state for read surfaces.
func (e *Engine) State() (*VaultState, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	vs, err := e.loadState()
	if err != nil {
		return nil, err
	}
	clone := *vs
	clone.TotalShares = copyBigInt(vs.TotalShares)
	clone.RewardAmount = copyBigInt(vs.RewardAmount)
	clone.RewardPerShare = copyBigInt(vs.RewardPerShare)
	return &clone, nil
}

// PositionOf returns a copy of the holder's full position for read surfaces.
func (e *Engine) PositionOf(holder crypto.Address) (*Position, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	pos, err := e.loadPosition(holder)
	if err != nil {
		return nil, err
	}
	clone := *pos
	clone.Shares = copyBigInt(pos.Shares)
	clone.RewardSnapshot = copyBigInt(pos.RewardSnapshot)
	clone.UnclaimedReward = copyBigInt(pos.UnclaimedReward)
	clone.ClaimedReward = copyBigInt(pos.ClaimedReward)
	return &clone, nil
}

// SharesOf reports the holder's share balance.
func (e *Engine) SharesOf(holder crypto.Address) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	pos, err := e.loadPosition(holder)
	if err != nil {
		return nil, err
	}
	return copyBigInt(pos.Shares), nil
}

// ConvertToShares previews the shares a deposit of the given size would mint.
func (e *Engine) ConvertToShares(amount *big.Int) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	vs, err := e.loadState()
	if err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return big.NewInt(0), nil
	}
	total, err := e.TotalAssets()
	if err != nil {
		return nil, err
	}
	if vs.TotalShares.Sign() == 0 || total.Sign() == 0 {
		return copyBigInt(amount), nil
	}
	return mulDivFloor(amount, vs.TotalShares, total), nil
}

// ConvertToAssets previews the asset value of the given share amount.
func (e *Engine) ConvertToAssets(shares *big.Int) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	vs, err := e.loadState()
	if err != nil {
		return nil, err
	}
	if shares == nil || shares.Sign() <= 0 || vs.TotalShares.Sign() == 0 {
		return big.NewInt(0), nil
	}
	total, err := e.TotalAssets()
	if err != nil {
		return nil, err
	}
	return mulDivFloor(shares, total, vs.TotalShares), nil
}

// Deposit pulls assets from the caller, forwards them to the strategy and
// mints shares to the receiver. The first deposit into an empty vault mints
// one share per asset unit; later deposits mint floor(amount*S/T) so rounding
// always favours the vault.
func (e *Engine) Deposit(caller crypto.Address, amount *big.Int, receiver crypto.Address) (*big.Int, error) {
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
	if amount == nil || amount.Sign() <= 0 {
		return nil, errInvalidAmount
	}
	vs, err := e.requireInitialized()
	if err != nil {
		return nil, err
	}
	if e.strategy == nil {
		return nil, errStrategyNotBound
	}

	total, err := e.strategy.EstimatedTotalAssets()
	if err != nil {
		return nil, err
	}
	minted := new(big.Int)
	if vs.TotalShares.Sign() == 0 || total.Sign() == 0 {
		minted.Set(amount)
	} else {
		minted = mulDivFloor(amount, vs.TotalShares, total)
	}

	e.settleGlobal(vs)
	pos, err := e.loadPosition(receiver)
	if err != nil {
		return nil, err
	}
	settleHolder(vs, pos)

	pos.Shares = new(big.Int).Add(pos.Shares, minted)
	vs.TotalShares = new(big.Int).Add(vs.TotalShares, minted)
	if err := e.state.PutPosition(pos); err != nil {
		return nil, err
	}
	if err := e.state.PutVaultState(vs); err != nil {
		return nil, err
	}

	// Share accounting is final before the external calls; a reentrant
	// callback observes consistent state. The assets go straight to the
	// strategy's module account, which is where the venue pulls from.
	if err := e.tokens.TransferFrom(vs.AssetSymbol, e.moduleAddress, caller, e.strategy.ModuleAddress(), amount); err != nil {
		return nil, err
	}
	if err := e.strategy.Invest(e.moduleAddress, amount); err != nil {
		return nil, err
	}

	e.state.AppendEvent(newDepositedEvent(caller, receiver, amount, minted))
	return minted, nil
}

// Withdraw redeems the requested asset amount for the owner, burning
// ceil(amount*S/T) shares. The strategy's divest return value, not the
// requested amount, decides what the receiver is paid: a venue shortfall is
// passed through honestly while the share burn still reflects the request.
func (e *Engine) Withdraw(caller crypto.Address, amount *big.Int, receiver, owner crypto.Address) (*big.Int, error) {
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
	if amount == nil || amount.Sign() <= 0 {
		return nil, errInvalidAmount
	}
	vs, err := e.requireInitialized()
	if err != nil {
		return nil, err
	}
	if e.strategy == nil {
		return nil, errStrategyNotBound
	}
	if vs.TotalShares.Sign() == 0 {
		return nil, errNoShares
	}

	total, err := e.strategy.EstimatedTotalAssets()
	if err != nil {
		return nil, err
	}
	if total.Sign() == 0 {
		return nil, errNoShares
	}
	burned := mulDivCeil(amount, vs.TotalShares, total)

	if _, err := e.redeemShares(vs, caller, owner, receiver, burned, amount, total); err != nil {
		return nil, err
	}
	return burned, nil
}

// Redeem burns an exact share amount and pays out the proportional asset
// value, rounded down.
func (e *Engine) Redeem(caller crypto.Address, shares *big.Int, receiver, owner crypto.Address) (*big.Int, error) {
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
	if shares == nil || shares.Sign() <= 0 {
		return nil, errInvalidAmount
	}
	vs, err := e.requireInitialized()
	if err != nil {
		return nil, err
	}
	if e.strategy == nil {
		return nil, errStrategyNotBound
	}
	if vs.TotalShares.Sign() == 0 {
		return nil, errNoShares
	}

	total, err := e.strategy.EstimatedTotalAssets()
	if err != nil {
		return nil, err
	}
	amount := mulDivFloor(shares, total, vs.TotalShares)
	if amount.Sign() <= 0 {
		return nil, errInvalidAmount
	}
	return e.redeemShares(vs, caller, owner, receiver, shares, amount, total)
}

// redeemShares is the shared withdrawal path: burn first, divest second, split
// the actual proceeds between fee recipient and receiver last.
func (e *Engine) redeemShares(vs *VaultState, caller, owner, receiver crypto.Address, burn, amount, totalBefore *big.Int) (*big.Int, error) {
	sharesBefore := copyBigInt(vs.TotalShares)

	e.settleGlobal(vs)
	pos, err := e.loadPosition(owner)
	if err != nil {
		return nil, err
	}
	settleHolder(vs, pos)

	if pos.Shares.Cmp(burn) < 0 {
		return nil, errInsufficientShares
	}
	if !caller.Equal(owner) {
		allowed, err := e.state.ShareAllowance(owner, caller)
		if err != nil {
			return nil, err
		}
		if allowed.Cmp(burn) < 0 {
			return nil, errInsufficientAllowance
		}
		if err := e.state.SetShareAllowance(owner, caller, new(big.Int).Sub(allowed, burn)); err != nil {
			return nil, err
		}
	}

	pos.Shares = new(big.Int).Sub(pos.Shares, burn)
	vs.TotalShares = new(big.Int).Sub(vs.TotalShares, burn)
	if err := e.state.PutPosition(pos); err != nil {
		return nil, err
	}
	if err := e.state.PutVaultState(vs); err != nil {
		return nil, err
	}

	received, err := e.strategy.Divest(e.moduleAddress, amount, e.moduleAddress)
	if err != nil {
		return nil, err
	}
	if received == nil || received.Sign() == 0 {
		return nil, errDivestReturnedZero
	}

	fee := profitFee(vs.FeeRateBps, totalBefore, sharesBefore, received)
	payout := new(big.Int).Sub(received, fee)
	if fee.Sign() > 0 {
		if err := e.tokens.Transfer(vs.AssetSymbol, e.moduleAddress, vs.FeeRecipient, fee); err != nil {
			return nil, err
		}
		e.state.AppendEvent(newFeePaidEvent(vs.FeeRecipient, fee))
	}
	if payout.Sign() > 0 {
		if err := e.tokens.Transfer(vs.AssetSymbol, e.moduleAddress, receiver, payout); err != nil {
			return nil, err
		}
	}

	e.state.AppendEvent(newWithdrawnEvent(caller, receiver, owner, amount, payout, burn))
	return payout, nil
}

// profitFee charges the configured rate on the vault-wide profit ratio of the
// redeemed amount: fee = rate * (T - S) * received / (T * 10000) when the share
// price sits above the 1:1 bootstrap level. The vault tracks no per-holder cost
// basis, so an individual withdrawer may be charged above or below their true
// personal gain.
func profitFee(feeRateBps uint64, totalAssets, totalShares, received *big.Int) *big.Int {
	if feeRateBps == 0 || totalAssets == nil || totalShares == nil || received == nil {
		return big.NewInt(0)
	}
	if totalAssets.Sign() <= 0 || totalAssets.Cmp(totalShares) <= 0 {
		return big.NewInt(0)
	}
	profit := new(big.Int).Sub(totalAssets, totalShares)
	fee := new(big.Int).Mul(profit, received)
	fee.Mul(fee, new(big.Int).SetUint64(feeRateBps))
	den := new(big.Int).Mul(totalAssets, basisPoints)
	return fee.Quo(fee, den)
}

// ApproveShares lets a spender burn up to the given share amount on the
// owner's behalf through Withdraw/Redeem.
func (e *Engine) ApproveShares(owner, spender crypto.Address, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if amount == nil || amount.Sign() < 0 {
		return errInvalidAmount
	}
	if _, err := e.requireInitialized(); err != nil {
		return err
	}
	return e.state.SetShareAllowance(owner, spender, new(big.Int).Set(amount))
}

func (e *Engine) requireInitialized() (*VaultState, error) {
	vs, err := e.loadState()
	if err != nil {
		return nil, err
	}
	if !vs.Initialized {
		return nil, errNotInitialized
	}
	return vs, nil
}

func (e *Engine) loadState() (*VaultState, error) {
	vs, err := e.state.VaultState()
	if err != nil {
		return nil, err
	}
	if vs == nil {
		vs = &VaultState{}
	}
	return vs.normalize(), nil
}

func (e *Engine) loadPosition(addr crypto.Address) (*Position, error) {
	pos, err := e.state.Position(addr)
	if err != nil {
		return nil, err
	}
	if pos == nil {
		pos = &Position{Address: addr}
	}
	return pos.normalize(), nil
}
