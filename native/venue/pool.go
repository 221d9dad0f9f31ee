package venue

import (
	"errors"
	"math/big"

	"amanavault/core/types"
	"amanavault/crypto"
)

var (
	errNilState      = errors.New("venue pool: state not configured")
	errInvalidAmount = errors.New("venue pool: amount must be positive")
	errUnauthorized  = errors.New("venue pool: unauthorized caller")
	errNoPosition    = errors.New("venue pool: depositor holds no receipt shares")
)

var (
	basisPoints = big.NewInt(10_000)
	ray         = mustBigInt("1000000000000000000000000000") // 1e27 index precision
	halfRay     = new(big.Int).Rsh(ray, 1)
)

const secondsPerYear = 31_536_000

const (
	eventDeposited = "venue.deposited"
	eventWithdrawn = "venue.withdrawn"
)

func mustBigInt(value string) *big.Int {
	v, ok := new(big.Int).SetString(value, 10)
	if !ok {
		panic("invalid big integer constant")
	}
	return v
}

// PoolState captures the global accounting for the simulated lending pool. The
// supply index starts at 1e27 and grows linearly with the configured annual
// rate; receipt shares convert to assets through it.
type PoolState struct {
	Index           *big.Int `json:"index"`
	TotalShares     *big.Int `json:"totalShares"`
	LastAccrualTime uint64   `json:"lastAccrualTime"`
	RateBpsAnnual   uint64   `json:"rateBpsAnnual"`
	// WithdrawLimit caps how much a single withdrawal can release, modelling
	// venue-side illiquidity. Nil or zero means uncapped.
	WithdrawLimit *big.Int `json:"withdrawLimit,omitempty"`
}

func (s *PoolState) normalize() *PoolState {
	if s.Index == nil || s.Index.Sign() == 0 {
		s.Index = new(big.Int).Set(ray)
	}
	if s.TotalShares == nil {
		s.TotalShares = big.NewInt(0)
	}
	return s
}

type poolState interface {
	PoolState() (*PoolState, error)
	PutPoolState(state *PoolState) error
	ReceiptBalance(addr crypto.Address) (*big.Int, error)
	SetReceiptBalance(addr crypto.Address, amount *big.Int) error
	AppendEvent(evt *types.Event)
}

// TokenLedger is the asset surface the pool needs: balance moves plus minting
// for realised interest. The pool module account is the asset's minter.
type TokenLedger interface {
	Transfer(symbol string, from, to crypto.Address, amount *big.Int) error
	Mint(caller crypto.Address, symbol string, to crypto.Address, amount *big.Int) error
	BalanceOf(symbol string, addr crypto.Address) (*big.Int, error)
}

// Pool is an in-process stand-in for an external lending venue: deposits earn
// a linear supply-index yield, withdrawals can be liquidity-capped, and
// receipt shares are fungible per depositor.
type Pool struct {
	state         poolState
	moduleAddress crypto.Address
	admin         crypto.Address
	assetSymbol   string
	tokens        TokenLedger
	timestamp     uint64
}

// NewPool constructs a pool owning the given module account.
func NewPool(moduleAddr, admin crypto.Address, assetSymbol string) *Pool {
	return &Pool{moduleAddress: moduleAddr, admin: admin, assetSymbol: assetSymbol}
}

// SetState wires the pool to the external persistence layer.
func (p *Pool) SetState(state poolState) { p.state = state }

// SetTokenLedger wires the asset token collaborator.
func (p *Pool) SetTokenLedger(tokens TokenLedger) {
	if p == nil {
		return
	}
	p.tokens = tokens
}

// SetTimestamp records the unix second used for index accrual deltas.
func (p *Pool) SetTimestamp(ts uint64) {
	if p == nil {
		return
	}
	p.timestamp = ts
}

// ModuleAddress returns the protocol-owned account holding pooled assets.
func (p *Pool) ModuleAddress() crypto.Address {
	return p.moduleAddress
}

// SetRate updates the annual supply rate in basis points. Admin only.
func (p *Pool) SetRate(caller crypto.Address, bps uint64) error {
	if p == nil || p.state == nil {
		return errNilState
	}
	if !p.admin.Equal(caller) {
		return errUnauthorized
	}
	ps, err := p.loadState()
	if err != nil {
		return err
	}
	p.accrue(ps)
	ps.RateBpsAnnual = bps
	return p.state.PutPoolState(ps)
}

// SetWithdrawLimit caps per-call withdrawals to simulate venue illiquidity.
// Zero clears the cap. Admin only.
func (p *Pool) SetWithdrawLimit(caller crypto.Address, limit *big.Int) error {
	if p == nil || p.state == nil {
		return errNilState
	}
	if !p.admin.Equal(caller) {
		return errUnauthorized
	}
	ps, err := p.loadState()
	if err != nil {
		return err
	}
	if limit == nil || limit.Sign() <= 0 {
		ps.WithdrawLimit = nil
	} else {
		ps.WithdrawLimit = new(big.Int).Set(limit)
	}
	return p.state.PutPoolState(ps)
}

// accrue advances the supply index linearly since the last settlement.
func (p *Pool) accrue(ps *PoolState) {
	now := p.timestamp
	defer func() { ps.LastAccrualTime = now }()
	if ps.RateBpsAnnual == 0 || now <= ps.LastAccrualTime || ps.LastAccrualTime == 0 {
		return
	}
	delta := new(big.Int).SetUint64(now - ps.LastAccrualTime)
	growth := new(big.Int).Mul(ps.Index, new(big.Int).SetUint64(ps.RateBpsAnnual))
	growth.Mul(growth, delta)
	growth.Quo(growth, new(big.Int).Mul(basisPoints, big.NewInt(secondsPerYear)))
	ps.Index = new(big.Int).Add(ps.Index, growth)
}

// projectedIndex returns the index the pool would hold after accruing to the
// current timestamp, without persisting anything.
func (p *Pool) projectedIndex(ps *PoolState) *big.Int {
	clone := &PoolState{
		Index:           new(big.Int).Set(ps.Index),
		TotalShares:     ps.TotalShares,
		LastAccrualTime: ps.LastAccrualTime,
		RateBpsAnnual:   ps.RateBpsAnnual,
	}
	p.accrue(clone)
	return clone.Index
}

// Deposit pulls assets from the depositor and mints receipt shares at the
// current index.
func (p *Pool) Deposit(from crypto.Address, amount *big.Int) (*big.Int, error) {
	if p == nil || p.state == nil {
		return nil, errNilState
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, errInvalidAmount
	}
	ps, err := p.loadState()
	if err != nil {
		return nil, err
	}
	p.accrue(ps)

	if err := p.tokens.Transfer(p.assetSymbol, from, p.moduleAddress, amount); err != nil {
		return nil, err
	}

	minted := sharesFromAssets(amount, ps.Index)
	balance, err := p.state.ReceiptBalance(from)
	if err != nil {
		return nil, err
	}
	if err := p.state.SetReceiptBalance(from, new(big.Int).Add(balance, minted)); err != nil {
		return nil, err
	}
	ps.TotalShares = new(big.Int).Add(ps.TotalShares, minted)
	if err := p.state.PutPoolState(ps); err != nil {
		return nil, err
	}
	p.state.AppendEvent(&types.Event{Type: eventDeposited, Attributes: map[string]string{
		"from":   from.String(),
		"amount": amount.String(),
		"shares": minted.String(),
	}})
	return minted, nil
}

// Withdraw releases up to the requested asset amount to the recipient,
// honouring the liquidity cap, and burns the corresponding receipt shares.
// Interest owed beyond the pool's held balance is minted on demand, which is
// how the simulated yield materialises on the ledger.
func (p *Pool) Withdraw(owner crypto.Address, amount *big.Int, to crypto.Address) (*big.Int, error) {
	if p == nil || p.state == nil {
		return nil, errNilState
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, errInvalidAmount
	}
	ps, err := p.loadState()
	if err != nil {
		return nil, err
	}
	p.accrue(ps)

	shares, err := p.state.ReceiptBalance(owner)
	if err != nil {
		return nil, err
	}
	if shares.Sign() == 0 {
		return nil, errNoPosition
	}
	redeemable := assetsFromShares(shares, ps.Index)

	value := new(big.Int).Set(amount)
	if value.Cmp(redeemable) > 0 {
		value.Set(redeemable)
	}
	if ps.WithdrawLimit != nil && ps.WithdrawLimit.Sign() > 0 && value.Cmp(ps.WithdrawLimit) > 0 {
		value.Set(ps.WithdrawLimit)
	}
	if value.Sign() == 0 {
		return big.NewInt(0), nil
	}

	burned := sharesFromAssets(value, ps.Index)
	if burned.Cmp(shares) > 0 {
		burned = new(big.Int).Set(shares)
	}
	if err := p.state.SetReceiptBalance(owner, new(big.Int).Sub(shares, burned)); err != nil {
		return nil, err
	}
	ps.TotalShares = new(big.Int).Sub(ps.TotalShares, burned)
	if err := p.state.PutPoolState(ps); err != nil {
		return nil, err
	}

	held, err := p.tokens.BalanceOf(p.assetSymbol, p.moduleAddress)
	if err != nil {
		return nil, err
	}
	if held.Cmp(value) < 0 {
		owed := new(big.Int).Sub(value, held)
		if err := p.tokens.Mint(p.moduleAddress, p.assetSymbol, p.moduleAddress, owed); err != nil {
			return nil, err
		}
	}
	if err := p.tokens.Transfer(p.assetSymbol, p.moduleAddress, to, value); err != nil {
		return nil, err
	}
	p.state.AppendEvent(&types.Event{Type: eventWithdrawn, Attributes: map[string]string{
		"owner":  owner.String(),
		"to":     to.String(),
		"amount": value.String(),
		"shares": burned.String(),
	}})
	return value, nil
}

// ConvertToAssets maps receipt shares to underlying value at the projected
// current index. This is the canonical conversion entry point for callers.
func (p *Pool) ConvertToAssets(shares *big.Int) (*big.Int, error) {
	if p == nil || p.state == nil {
		return nil, errNilState
	}
	if shares == nil || shares.Sign() <= 0 {
		return big.NewInt(0), nil
	}
	ps, err := p.loadState()
	if err != nil {
		return nil, err
	}
	return assetsFromShares(shares, p.projectedIndex(ps)), nil
}

// ReceiptBalanceOf reports the receipt shares held by an address.
func (p *Pool) ReceiptBalanceOf(owner crypto.Address) (*big.Int, error) {
	if p == nil || p.state == nil {
		return nil, errNilState
	}
	return p.state.ReceiptBalance(owner)
}

func (p *Pool) loadState() (*PoolState, error) {
	ps, err := p.state.PoolState()
	if err != nil {
		return nil, err
	}
	if ps == nil {
		ps = &PoolState{LastAccrualTime: p.timestamp}
	}
	return ps.normalize(), nil
}

func sharesFromAssets(amount, index *big.Int) *big.Int {
	if amount == nil || amount.Sign() <= 0 || index == nil || index.Sign() == 0 {
		return big.NewInt(0)
	}
	scaled := new(big.Int).Mul(amount, ray)
	scaled.Add(scaled, halfUp(index))
	scaled.Quo(scaled, index)
	return scaled
}

func assetsFromShares(shares, index *big.Int) *big.Int {
	if shares == nil || shares.Sign() <= 0 || index == nil || index.Sign() == 0 {
		return big.NewInt(0)
	}
	scaled := new(big.Int).Mul(shares, index)
	scaled.Add(scaled, halfRay)
	scaled.Quo(scaled, ray)
	return scaled
}

func halfUp(x *big.Int) *big.Int {
	if x == nil || x.Sign() <= 0 {
		return big.NewInt(0)
	}
	half := new(big.Int).Add(x, big.NewInt(1))
	half.Rsh(half, 1)
	return half
}
