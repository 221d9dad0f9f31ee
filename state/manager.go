package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"amanavault/core/types"
	"amanavault/crypto"
	"amanavault/native/token"
	"amanavault/native/vault"
	"amanavault/native/venue"
	"amanavault/storage"
)

// Manager adapts a key-value database into the narrow state interfaces the
// native engines consume. Records are JSON-encoded under prefixed keys; events
// emitted during an operation are collected in memory for the node to publish
// after the operation commits.
type Manager struct {
	db     storage.Database
	events []*types.Event
}

func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

func (m *Manager) getJSON(key []byte, out interface{}) (bool, error) {
	raw, err := m.db.Get(key)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("state: decode %s: %w", key, err)
	}
	return true, nil
}

func (m *Manager) putJSON(key []byte, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("state: encode %s: %w", key, err)
	}
	return m.db.Put(key, raw)
}

func (m *Manager) getBig(key []byte) (*big.Int, error) {
	var encoded string
	ok, err := m.getJSON(key, &encoded)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	value, valid := new(big.Int).SetString(encoded, 10)
	if !valid {
		return nil, fmt.Errorf("state: corrupt big integer at %s", key)
	}
	return value, nil
}

func (m *Manager) putBig(key []byte, value *big.Int) error {
	if value == nil {
		value = big.NewInt(0)
	}
	return m.putJSON(key, value.String())
}

// AppendEvent records an event emitted by an engine during the current
// operation.
func (m *Manager) AppendEvent(evt *types.Event) {
	if evt == nil {
		return
	}
	m.events = append(m.events, evt)
}

// Events returns everything appended since the manager was created.
func (m *Manager) Events() []*types.Event {
	return m.events
}

// --- token ledger state ---

func (m *Manager) Token(symbol string) (*token.Token, error) {
	var stored token.Token
	ok, err := m.getJSON(tokenKey(symbol), &stored)
	if err != nil || !ok {
		return nil, err
	}
	return &stored, nil
}

func (m *Manager) PutToken(t *token.Token) error {
	if t == nil {
		return fmt.Errorf("state: nil token")
	}
	return m.putJSON(tokenKey(t.Symbol), t)
}

func (m *Manager) Balance(symbol string, addr crypto.Address) (*big.Int, error) {
	return m.getBig(balanceKey(symbol, addr))
}

func (m *Manager) SetBalance(symbol string, addr crypto.Address, amount *big.Int) error {
	return m.putBig(balanceKey(symbol, addr), amount)
}

func (m *Manager) Allowance(symbol string, owner, spender crypto.Address) (*big.Int, error) {
	return m.getBig(allowanceKey(symbol, owner, spender))
}

func (m *Manager) SetAllowance(symbol string, owner, spender crypto.Address, amount *big.Int) error {
	return m.putBig(allowanceKey(symbol, owner, spender), amount)
}

// --- vault state ---

func (m *Manager) VaultState() (*vault.VaultState, error) {
	var stored vault.VaultState
	ok, err := m.getJSON(vaultStateKey(), &stored)
	if err != nil || !ok {
		return nil, err
	}
	return &stored, nil
}

func (m *Manager) PutVaultState(vs *vault.VaultState) error {
	if vs == nil {
		return fmt.Errorf("state: nil vault state")
	}
	return m.putJSON(vaultStateKey(), vs)
}

func (m *Manager) Position(addr crypto.Address) (*vault.Position, error) {
	var stored vault.Position
	ok, err := m.getJSON(positionKey(addr), &stored)
	if err != nil || !ok {
		return nil, err
	}
	return &stored, nil
}

func (m *Manager) PutPosition(pos *vault.Position) error {
	if pos == nil {
		return fmt.Errorf("state: nil position")
	}
	return m.putJSON(positionKey(pos.Address), pos)
}

func (m *Manager) ShareAllowance(owner, spender crypto.Address) (*big.Int, error) {
	return m.getBig(shareAllowanceKey(owner, spender))
}

func (m *Manager) SetShareAllowance(owner, spender crypto.Address, amount *big.Int) error {
	return m.putBig(shareAllowanceKey(owner, spender), amount)
}

// --- venue state ---

func (m *Manager) PoolState() (*venue.PoolState, error) {
	var stored venue.PoolState
	ok, err := m.getJSON(poolStateKey(), &stored)
	if err != nil || !ok {
		return nil, err
	}
	return &stored, nil
}

func (m *Manager) PutPoolState(ps *venue.PoolState) error {
	if ps == nil {
		return fmt.Errorf("state: nil pool state")
	}
	return m.putJSON(poolStateKey(), ps)
}

func (m *Manager) ReceiptBalance(addr crypto.Address) (*big.Int, error) {
	return m.getBig(receiptKey(addr))
}

func (m *Manager) SetReceiptBalance(addr crypto.Address, amount *big.Int) error {
	return m.putBig(receiptKey(addr), amount)
}

// --- genesis ---

// GenesisApplied reports whether the one-shot genesis document already ran
// against this database.
func (m *Manager) GenesisApplied() (bool, error) {
	var applied bool
	ok, err := m.getJSON(genesisKey(), &applied)
	if err != nil {
		return false, err
	}
	return ok && applied, nil
}

func (m *Manager) SetGenesisApplied() error {
	return m.putJSON(genesisKey(), true)
}

// --- module pauses ---

func (m *Manager) IsPaused(module string) bool {
	paused := make(map[string]bool)
	if ok, err := m.getJSON(pausesKey(), &paused); err != nil || !ok {
		return false
	}
	return paused[module]
}

func (m *Manager) SetPaused(module string, value bool) error {
	paused := make(map[string]bool)
	if _, err := m.getJSON(pausesKey(), &paused); err != nil {
		return err
	}
	if value {
		paused[module] = true
	} else {
		delete(paused, module)
	}
	return m.putJSON(pausesKey(), paused)
}
