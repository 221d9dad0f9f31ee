package vault

import (
	"errors"
	"math/big"
	"testing"

	"amanavault/core/types"
	"amanavault/crypto"
)

// memVaultState is a map-backed engineState for tests.
type memVaultState struct {
	vs         *VaultState
	positions  map[string]*Position
	allowances map[string]*big.Int
	events     []*types.Event
}

func newMemVaultState() *memVaultState {
	return &memVaultState{
		positions:  make(map[string]*Position),
		allowances: make(map[string]*big.Int),
	}
}

func (m *memVaultState) VaultState() (*VaultState, error) {
	if m.vs == nil {
		return nil, nil
	}
	clone := *m.vs
	return &clone, nil
}

func (m *memVaultState) PutVaultState(vs *VaultState) error {
	clone := *vs
	m.vs = &clone
	return nil
}

func (m *memVaultState) Position(addr crypto.Address) (*Position, error) {
	pos, ok := m.positions[string(addr.Bytes())]
	if !ok {
		return nil, nil
	}
	clone := *pos
	return &clone, nil
}

func (m *memVaultState) PutPosition(pos *Position) error {
	clone := *pos
	m.positions[string(pos.Address.Bytes())] = &clone
	return nil
}

func (m *memVaultState) ShareAllowance(owner, spender crypto.Address) (*big.Int, error) {
	allowed, ok := m.allowances[string(owner.Bytes())+"/"+string(spender.Bytes())]
	if !ok {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(allowed), nil
}

func (m *memVaultState) SetShareAllowance(owner, spender crypto.Address, amount *big.Int) error {
	m.allowances[string(owner.Bytes())+"/"+string(spender.Bytes())] = new(big.Int).Set(amount)
	return nil
}

func (m *memVaultState) AppendEvent(evt *types.Event) {
	m.events = append(m.events, evt)
}

// memLedger tracks token balances without supply or allowance rules; the vault
// only exercises Transfer and TransferFrom.
type memLedger struct {
	balances map[string]map[string]*big.Int
}

func newMemLedger() *memLedger {
	return &memLedger{balances: make(map[string]map[string]*big.Int)}
}

func (l *memLedger) balance(symbol string, addr crypto.Address) *big.Int {
	byAddr, ok := l.balances[symbol]
	if !ok {
		return big.NewInt(0)
	}
	value, ok := byAddr[string(addr.Bytes())]
	if !ok {
		return big.NewInt(0)
	}
	return new(big.Int).Set(value)
}

func (l *memLedger) credit(symbol string, addr crypto.Address, amount *big.Int) {
	byAddr, ok := l.balances[symbol]
	if !ok {
		byAddr = make(map[string]*big.Int)
		l.balances[symbol] = byAddr
	}
	key := string(addr.Bytes())
	existing, ok := byAddr[key]
	if !ok {
		existing = big.NewInt(0)
	}
	byAddr[key] = new(big.Int).Add(existing, amount)
}

func (l *memLedger) Transfer(symbol string, from, to crypto.Address, amount *big.Int) error {
	if l.balance(symbol, from).Cmp(amount) < 0 {
		return errors.New("insufficient balance")
	}
	l.credit(symbol, from, new(big.Int).Neg(amount))
	l.credit(symbol, to, amount)
	return nil
}

func (l *memLedger) TransferFrom(symbol string, spender, owner, to crypto.Address, amount *big.Int) error {
	return l.Transfer(symbol, owner, to, amount)
}

// stubStrategy reports a configurable asset total. Invest books assets the
// vault already forwarded to the strategy's module account; Divest pays the
// recipient from that account, minting any accrued yield on demand the way the
// real venue does.
type stubStrategy struct {
	name       string
	assets     *big.Int
	ledger     *memLedger
	symbol     string
	moduleAddr crypto.Address

	// divestCap limits what a single divest can release, zero means uncapped.
	divestCap *big.Int
	onInvest  func() error
	onDivest  func() error
}

func (s *stubStrategy) Name() string { return s.name }

func (s *stubStrategy) ModuleAddress() crypto.Address { return s.moduleAddr }

func (s *stubStrategy) Invest(caller crypto.Address, amount *big.Int) error {
	if s.onInvest != nil {
		if err := s.onInvest(); err != nil {
			return err
		}
	}
	// The vault forwards assets before calling Invest; a short balance means
	// the deposit never arrived.
	if s.ledger.balance(s.symbol, s.moduleAddr).Cmp(amount) < 0 {
		return errors.New("insufficient balance")
	}
	s.assets.Add(s.assets, amount)
	return nil
}

func (s *stubStrategy) Divest(caller crypto.Address, amount *big.Int, recipient crypto.Address) (*big.Int, error) {
	if s.onDivest != nil {
		if err := s.onDivest(); err != nil {
			return nil, err
		}
	}
	released := new(big.Int).Set(amount)
	if released.Cmp(s.assets) > 0 {
		released.Set(s.assets)
	}
	if s.divestCap != nil && s.divestCap.Sign() > 0 && released.Cmp(s.divestCap) > 0 {
		released.Set(s.divestCap)
	}
	s.assets.Sub(s.assets, released)
	if held := s.ledger.balance(s.symbol, s.moduleAddr); held.Cmp(released) < 0 {
		// Accrued yield materialises on release, like venue interest.
		s.ledger.credit(s.symbol, s.moduleAddr, new(big.Int).Sub(released, held))
	}
	if err := s.ledger.Transfer(s.symbol, s.moduleAddr, recipient, released); err != nil {
		return nil, err
	}
	return released, nil
}

func (s *stubStrategy) EstimatedTotalAssets() (*big.Int, error) {
	return new(big.Int).Set(s.assets), nil
}

func testAddr(tag byte) crypto.Address {
	raw := make([]byte, 20)
	raw[19] = tag
	return crypto.NewAddress(crypto.AccountPrefix, raw)
}

const testAsset = "USDC"

type vaultFixture struct {
	engine   *Engine
	state    *memVaultState
	ledger   *memLedger
	strategy *stubStrategy
	admin    crypto.Address
	module   crypto.Address
}

func newVaultFixture(t *testing.T) *vaultFixture {
	t.Helper()
	module := crypto.ModuleAddress("vault")
	admin := testAddr(0x01)
	state := newMemVaultState()
	ledger := newMemLedger()
	strategy := &stubStrategy{
		name:       "lending-v1",
		assets:     big.NewInt(0),
		ledger:     ledger,
		symbol:     testAsset,
		moduleAddr: crypto.ModuleAddress("strategy/lending-v1"),
	}
	engine := NewEngine(module)
	engine.SetState(state)
	engine.SetTokenLedger(ledger)
	engine.SetTimestamp(1_000)
	if err := engine.Initialize(admin, testAsset, 0, crypto.Address{}); err != nil {
		t.Fatalf("initialize vault: %v", err)
	}
	if err := engine.SetStrategy(admin, strategy); err != nil {
		t.Fatalf("bind strategy: %v", err)
	}
	return &vaultFixture{
		engine:   engine,
		state:    state,
		ledger:   ledger,
		strategy: strategy,
		admin:    admin,
		module:   module,
	}
}

func (f *vaultFixture) fund(addr crypto.Address, amount int64) {
	f.ledger.credit(testAsset, addr, big.NewInt(amount))
}

func (f *vaultFixture) mustDeposit(t *testing.T, caller crypto.Address, amount int64) *big.Int {
	t.Helper()
	minted, err := f.engine.Deposit(caller, big.NewInt(amount), caller)
	if err != nil {
		t.Fatalf("deposit %d: %v", amount, err)
	}
	return minted
}

func requireBig(t *testing.T, want int64, got *big.Int, label string) {
	t.Helper()
	if got == nil || got.Cmp(big.NewInt(want)) != 0 {
		t.Fatalf("%s: want %d, got %v", label, want, got)
	}
}
