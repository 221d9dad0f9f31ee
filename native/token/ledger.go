package token

import (
	"errors"
	"math/big"
	"strings"

	"amanavault/core/types"
	"amanavault/crypto"
	nativecommon "amanavault/native/common"
)

var (
	errNilState             = errors.New("token ledger: state not configured")
	errUnknownToken         = errors.New("token ledger: token not registered")
	errTokenExists          = errors.New("token ledger: token already registered")
	errInvalidSymbol        = errors.New("token ledger: symbol required")
	errInvalidAmount        = errors.New("token ledger: amount must be positive")
	errUnauthorizedMinter   = errors.New("token ledger: unauthorized minter")
	ErrInsufficientBalance  = errors.New("token ledger: insufficient balance")
	ErrInsufficientAllowed  = errors.New("token ledger: insufficient allowance")
	errSelfTransferDisabled = errors.New("token ledger: sender and recipient are identical")
)

const moduleName = "token"

const (
	eventTransferred = "token.transferred"
	eventMinted      = "token.minted"
	eventApproved    = "token.approved"
)

// Token describes a registered fungible token.
type Token struct {
	Symbol      string         `json:"symbol"`
	Name        string         `json:"name"`
	Decimals    uint8          `json:"decimals"`
	Minter      crypto.Address `json:"minter"`
	TotalSupply *big.Int       `json:"totalSupply"`
}

type ledgerState interface {
	Token(symbol string) (*Token, error)
	PutToken(token *Token) error
	Balance(symbol string, addr crypto.Address) (*big.Int, error)
	SetBalance(symbol string, addr crypto.Address, amount *big.Int) error
	Allowance(symbol string, owner, spender crypto.Address) (*big.Int, error)
	SetAllowance(symbol string, owner, spender crypto.Address, amount *big.Int) error
	AppendEvent(evt *types.Event)
}

// Ledger maintains balances and allowances for every registered token. The
// vault consumes it through the standard fungible-token surface and never
// inspects ledger internals.
type Ledger struct {
	state  ledgerState
	pauses nativecommon.PauseView
}

func NewLedger() *Ledger {
	return &Ledger{}
}

// SetState wires the ledger to the external persistence layer.
func (l *Ledger) SetState(state ledgerState) { l.state = state }

func (l *Ledger) SetPauses(p nativecommon.PauseView) {
	if l == nil {
		return
	}
	l.pauses = p
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// Register creates a new token entry with a zero supply.
func (l *Ledger) Register(symbol, name string, decimals uint8, minter crypto.Address) (*Token, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	symbol = normalizeSymbol(symbol)
	if symbol == "" {
		return nil, errInvalidSymbol
	}
	existing, err := l.state.Token(symbol)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, errTokenExists
	}
	token := &Token{
		Symbol:      symbol,
		Name:        strings.TrimSpace(name),
		Decimals:    decimals,
		Minter:      minter,
		TotalSupply: big.NewInt(0),
	}
	if err := l.state.PutToken(token); err != nil {
		return nil, err
	}
	return token, nil
}

// Mint credits newly issued units to the recipient. Only the registered minter
// may mint.
func (l *Ledger) Mint(caller crypto.Address, symbol string, to crypto.Address, amount *big.Int) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(l.pauses, moduleName); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	symbol = normalizeSymbol(symbol)
	token, err := l.requireToken(symbol)
	if err != nil {
		return err
	}
	if !token.Minter.Equal(caller) {
		return errUnauthorizedMinter
	}
	balance, err := l.state.Balance(symbol, to)
	if err != nil {
		return err
	}
	if err := l.state.SetBalance(symbol, to, new(big.Int).Add(balance, amount)); err != nil {
		return err
	}
	token.TotalSupply = new(big.Int).Add(token.TotalSupply, amount)
	if err := l.state.PutToken(token); err != nil {
		return err
	}
	l.state.AppendEvent(&types.Event{Type: eventMinted, Attributes: map[string]string{
		"symbol": symbol,
		"to":     to.String(),
		"amount": amount.String(),
	}})
	return nil
}

// Transfer moves units from the caller to the recipient.
func (l *Ledger) Transfer(symbol string, from, to crypto.Address, amount *big.Int) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(l.pauses, moduleName); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	if from.Equal(to) {
		return errSelfTransferDisabled
	}
	symbol = normalizeSymbol(symbol)
	if _, err := l.requireToken(symbol); err != nil {
		return err
	}
	return l.move(symbol, from, to, amount)
}

// Approve sets the spender allowance over the owner's balance. A zero amount
// clears any prior approval.
func (l *Ledger) Approve(symbol string, owner, spender crypto.Address, amount *big.Int) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(l.pauses, moduleName); err != nil {
		return err
	}
	if amount == nil || amount.Sign() < 0 {
		return errInvalidAmount
	}
	symbol = normalizeSymbol(symbol)
	if _, err := l.requireToken(symbol); err != nil {
		return err
	}
	if err := l.state.SetAllowance(symbol, owner, spender, new(big.Int).Set(amount)); err != nil {
		return err
	}
	l.state.AppendEvent(&types.Event{Type: eventApproved, Attributes: map[string]string{
		"symbol":  symbol,
		"owner":   owner.String(),
		"spender": spender.String(),
		"amount":  amount.String(),
	}})
	return nil
}

// TransferFrom spends the caller's allowance to move the owner's funds.
func (l *Ledger) TransferFrom(symbol string, spender, owner, to crypto.Address, amount *big.Int) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(l.pauses, moduleName); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	symbol = normalizeSymbol(symbol)
	if _, err := l.requireToken(symbol); err != nil {
		return err
	}
	if !spender.Equal(owner) {
		allowed, err := l.state.Allowance(symbol, owner, spender)
		if err != nil {
			return err
		}
		if allowed.Cmp(amount) < 0 {
			return ErrInsufficientAllowed
		}
		if err := l.state.SetAllowance(symbol, owner, spender, new(big.Int).Sub(allowed, amount)); err != nil {
			return err
		}
	}
	return l.move(symbol, owner, to, amount)
}

// BalanceOf reports the holder's balance, zero when unset.
func (l *Ledger) BalanceOf(symbol string, addr crypto.Address) (*big.Int, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	symbol = normalizeSymbol(symbol)
	if _, err := l.requireToken(symbol); err != nil {
		return nil, err
	}
	return l.state.Balance(symbol, addr)
}

// TotalSupply reports the cumulative minted amount for a token.
func (l *Ledger) TotalSupply(symbol string) (*big.Int, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	token, err := l.requireToken(normalizeSymbol(symbol))
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(token.TotalSupply), nil
}

// AllowanceOf reports the spender's remaining allowance over the owner's funds.
func (l *Ledger) AllowanceOf(symbol string, owner, spender crypto.Address) (*big.Int, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	symbol = normalizeSymbol(symbol)
	if _, err := l.requireToken(symbol); err != nil {
		return nil, err
	}
	return l.state.Allowance(symbol, owner, spender)
}

func (l *Ledger) requireToken(symbol string) (*Token, error) {
	token, err := l.state.Token(symbol)
	if err != nil {
		return nil, err
	}
	if token == nil {
		return nil, errUnknownToken
	}
	if token.TotalSupply == nil {
		token.TotalSupply = big.NewInt(0)
	}
	return token, nil
}

func (l *Ledger) move(symbol string, from, to crypto.Address, amount *big.Int) error {
	fromBalance, err := l.state.Balance(symbol, from)
	if err != nil {
		return err
	}
	if fromBalance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	toBalance, err := l.state.Balance(symbol, to)
	if err != nil {
		return err
	}
	if err := l.state.SetBalance(symbol, from, new(big.Int).Sub(fromBalance, amount)); err != nil {
		return err
	}
	if err := l.state.SetBalance(symbol, to, new(big.Int).Add(toBalance, amount)); err != nil {
		return err
	}
	l.state.AppendEvent(&types.Event{Type: eventTransferred, Attributes: map[string]string{
		"symbol": symbol,
		"from":   from.String(),
		"to":     to.String(),
		"amount": amount.String(),
	}})
	return nil
}
