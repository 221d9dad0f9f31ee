package strategy

import (
	"errors"
	"math/big"
	"strings"

	"amanavault/crypto"
	nativecommon "amanavault/native/common"
)

var (
	errNilVenue      = errors.New("strategy engine: venue not configured")
	errInvalidAmount = errors.New("strategy engine: amount must be positive")
	errUnauthorized  = errors.New("strategy engine: caller is not the bound vault")
)

const moduleName = "strategy"

// Venue is the external yield protocol the strategy places assets into. The
// receipt shares it issues are its own accounting unit; only ConvertToAssets
// maps them back to underlying value.
type Venue interface {
	Deposit(from crypto.Address, amount *big.Int) (*big.Int, error)
	Withdraw(owner crypto.Address, amount *big.Int, to crypto.Address) (*big.Int, error)
	ConvertToAssets(shares *big.Int) (*big.Int, error)
	ReceiptBalanceOf(owner crypto.Address) (*big.Int, error)
}

// Engine adapts exactly one external venue for exactly one vault. It keeps no
// per-user state: its entire position is the fungible receipt balance held by
// its module account.
type Engine struct {
	name          string
	vault         crypto.Address
	moduleAddress crypto.Address
	assetSymbol   string
	venue         Venue
	pauses        nativecommon.PauseView
	guard         nativecommon.ReentrancyGuard
}

// NewEngine constructs a strategy bound to the given vault module account.
func NewEngine(name string, vault, moduleAddr crypto.Address, assetSymbol string) *Engine {
	return &Engine{
		name:          strings.TrimSpace(name),
		vault:         vault,
		moduleAddress: moduleAddr,
		assetSymbol:   strings.ToUpper(strings.TrimSpace(assetSymbol)),
	}
}

// SetVenue wires the external venue collaborator.
func (e *Engine) SetVenue(v Venue) {
	if e == nil {
		return
	}
	e.venue = v
}

func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// Name identifies the adapter for observability and rebind auditing.
func (e *Engine) Name() string {
	if e == nil {
		return ""
	}
	return e.name
}

// ModuleAddress returns the protocol-owned account holding the venue receipts.
func (e *Engine) ModuleAddress() crypto.Address {
	return e.moduleAddress
}

// Invest deposits the amount into the venue. Only the bound vault may call;
// repeated calls simply grow the position.
func (e *Engine) Invest(caller crypto.Address, amount *big.Int) error {
	if e == nil || e.venue == nil {
		return errNilVenue
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if !e.vault.Equal(caller) {
		return errUnauthorized
	}
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	if err := e.guard.Enter(); err != nil {
		return err
	}
	defer e.guard.Exit()
	_, err := e.venue.Deposit(e.moduleAddress, amount)
	return err
}

// Divest asks the venue to release the amount towards the recipient and
// reports what was actually obtained. The venue may release less under a
// liquidity cap, or slightly more when interest accrued between the estimate
// and the redemption; either way the returned value is the ground truth.
func (e *Engine) Divest(caller crypto.Address, amount *big.Int, recipient crypto.Address) (*big.Int, error) {
	if e == nil || e.venue == nil {
		return nil, errNilVenue
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if !e.vault.Equal(caller) {
		return nil, errUnauthorized
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, errInvalidAmount
	}
	if err := e.guard.Enter(); err != nil {
		return nil, err
	}
	defer e.guard.Exit()
	returned, err := e.venue.Withdraw(e.moduleAddress, amount, recipient)
	if err != nil {
		return nil, err
	}
	if returned == nil {
		returned = big.NewInt(0)
	}
	return returned, nil
}

// EstimatedTotalAssets converts the held receipt balance into underlying asset
// terms through the venue's canonical exchange rate. Never assumes 1:1.
func (e *Engine) EstimatedTotalAssets() (*big.Int, error) {
	if e == nil || e.venue == nil {
		return nil, errNilVenue
	}
	receipts, err := e.venue.ReceiptBalanceOf(e.moduleAddress)
	if err != nil {
		return nil, err
	}
	if receipts.Sign() == 0 {
		return big.NewInt(0), nil
	}
	return e.venue.ConvertToAssets(receipts)
}
