package core

import (
	"errors"
	"math/big"
	"sync"
	"time"

	"amanavault/core/types"
	"amanavault/crypto"
	"amanavault/native/strategy"
	"amanavault/native/token"
	"amanavault/native/vault"
	"amanavault/native/venue"
	"amanavault/observability"
	"amanavault/state"
	"amanavault/storage"
)

var (
	ErrNotInitialized = errors.New("node: vault not initialized; apply genesis first")
	errUnauthorized   = errors.New("node: unauthorized caller")
)

// Node owns the engines and serializes every ledger operation. Each mutating
// call runs against a fresh write overlay that commits only on success, giving
// the all-or-nothing semantics the accounting invariants rely on.
type Node struct {
	mu sync.Mutex
	db storage.Database

	ledger   *token.Ledger
	vault    *vault.Engine
	strategy *strategy.Engine
	venue    *venue.Pool

	assetSymbol string
	now         func() time.Time

	subMu   sync.Mutex
	subs    map[int]chan *types.Event
	nextSub int
}

// NewNode constructs a node over the given database. If the database already
// carries an initialized vault, the engines are wired from persisted state;
// otherwise ApplyGenesis must run before any operation.
func NewNode(db storage.Database) (*Node, error) {
	n := &Node{
		db:     db,
		ledger: token.NewLedger(),
		vault:  vault.NewEngine(crypto.ModuleAddress("vault")),
		now:    time.Now,
		subs:   make(map[int]chan *types.Event),
	}
	mgr := state.NewManager(db)
	vs, err := mgr.VaultState()
	if err != nil {
		return nil, err
	}
	if vs != nil && vs.Initialized {
		n.buildCollaborators(vs.AssetSymbol, vs.StrategyName, vs.Admin)
	}
	return n, nil
}

// SetNowFunc overrides the wall clock, used by tests to drive the reward
// schedule deterministically.
func (n *Node) SetNowFunc(now func() time.Time) {
	if now != nil {
		n.now = now
	}
}

func (n *Node) buildCollaborators(assetSymbol, strategyName string, admin crypto.Address) {
	n.assetSymbol = assetSymbol
	n.venue = venue.NewPool(crypto.ModuleAddress("venue/lending"), admin, assetSymbol)
	if strategyName != "" {
		s := strategy.NewEngine(strategyName, n.vault.ModuleAddress(), crypto.ModuleAddress("strategy/"+strategyName), assetSymbol)
		s.SetVenue(n.venue)
		n.strategy = s
		n.vault.BindStrategy(s)
	}
}

// wire points every engine at the manager backing the current operation.
func (n *Node) wire(mgr *state.Manager, ts uint64) {
	n.ledger.SetState(mgr)
	n.ledger.SetPauses(mgr)
	n.vault.SetState(mgr)
	n.vault.SetTokenLedger(n.ledger)
	n.vault.SetPauses(mgr)
	n.vault.SetTimestamp(ts)
	if n.venue != nil {
		n.venue.SetState(mgr)
		n.venue.SetTokenLedger(n.ledger)
		n.venue.SetTimestamp(ts)
	}
	if n.strategy != nil {
		n.strategy.SetPauses(mgr)
	}
}

func (n *Node) withWrite(op string, params interface{}, fn func(mgr *state.Manager) error) (*types.Receipt, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	overlay := storage.NewOverlay(n.db)
	mgr := state.NewManager(overlay)
	appliedAt := n.now()
	n.wire(mgr, uint64(appliedAt.Unix()))
	if err := fn(mgr); err != nil {
		return nil, err
	}
	if err := overlay.Commit(); err != nil {
		return nil, err
	}
	events := mgr.Events()
	n.publish(events)
	return types.NewReceipt(op, params, appliedAt, events), nil
}

func (n *Node) withRead(fn func(mgr *state.Manager) error) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	overlay := storage.NewOverlay(n.db)
	mgr := state.NewManager(overlay)
	n.wire(mgr, uint64(n.now().Unix()))
	return fn(mgr)
}

func (n *Node) requireVault() error {
	if n.strategy == nil || n.venue == nil || n.assetSymbol == "" {
		return ErrNotInitialized
	}
	return nil
}

func (n *Node) requireAdmin(mgr *state.Manager, caller crypto.Address) (*vault.VaultState, error) {
	vs, err := mgr.VaultState()
	if err != nil {
		return nil, err
	}
	if vs == nil || !vs.Initialized {
		return nil, ErrNotInitialized
	}
	if !vs.Admin.Equal(caller) {
		return nil, errUnauthorized
	}
	return vs, nil
}

// --- vault operations ---

// Deposit pools assets from the caller and mints vault shares to the receiver.
func (n *Node) Deposit(caller crypto.Address, amount *big.Int, receiver crypto.Address) (*big.Int, *types.Receipt, error) {
	if err := n.requireVault(); err != nil {
		return nil, nil, err
	}
	var minted *big.Int
	receipt, err := n.withWrite("vault.deposit", map[string]string{
		"caller": caller.String(), "receiver": receiver.String(), "amount": amount.String(),
	}, func(*state.Manager) error {
		var err error
		minted, err = n.vault.Deposit(caller, amount, receiver)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return minted, receipt, nil
}

// Withdraw redeems the requested asset amount, burning shares from the owner.
func (n *Node) Withdraw(caller crypto.Address, amount *big.Int, receiver, owner crypto.Address) (*big.Int, *types.Receipt, error) {
	if err := n.requireVault(); err != nil {
		return nil, nil, err
	}
	var burned *big.Int
	receipt, err := n.withWrite("vault.withdraw", map[string]string{
		"caller": caller.String(), "receiver": receiver.String(), "owner": owner.String(), "amount": amount.String(),
	}, func(*state.Manager) error {
		var err error
		burned, err = n.vault.Withdraw(caller, amount, receiver, owner)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return burned, receipt, nil
}

// Redeem burns an exact share count and pays out the proportional assets.
func (n *Node) Redeem(caller crypto.Address, shares *big.Int, receiver, owner crypto.Address) (*big.Int, *types.Receipt, error) {
	if err := n.requireVault(); err != nil {
		return nil, nil, err
	}
	var assets *big.Int
	receipt, err := n.withWrite("vault.redeem", map[string]string{
		"caller": caller.String(), "receiver": receiver.String(), "owner": owner.String(), "shares": shares.String(),
	}, func(*state.Manager) error {
		var err error
		assets, err = n.vault.Redeem(caller, shares, receiver, owner)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return assets, receipt, nil
}

// ApproveShares grants a spender the right to burn the owner's shares.
func (n *Node) ApproveShares(owner, spender crypto.Address, amount *big.Int) (*types.Receipt, error) {
	return n.withWrite("vault.approveShares", map[string]string{
		"owner": owner.String(), "spender": spender.String(), "amount": amount.String(),
	}, func(*state.Manager) error {
		return n.vault.ApproveShares(owner, spender, amount)
	})
}

// ClaimRewards pays out the caller's accrued reward tokens.
func (n *Node) ClaimRewards(caller, recipient crypto.Address) (*big.Int, *types.Receipt, error) {
	var amount *big.Int
	receipt, err := n.withWrite("vault.claimRewards", map[string]string{
		"caller": caller.String(), "recipient": recipient.String(),
	}, func(*state.Manager) error {
		var err error
		amount, err = n.vault.ClaimRewards(caller, recipient)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return amount, receipt, nil
}

// SetRewardToken configures the payout token for future reward campaigns.
func (n *Node) SetRewardToken(caller crypto.Address, symbol string) (*types.Receipt, error) {
	return n.withWrite("vault.setRewardToken", map[string]string{
		"caller": caller.String(), "symbol": symbol,
	}, func(*state.Manager) error {
		return n.vault.SetRewardToken(caller, symbol)
	})
}

// SetRewardsInterval starts or overwrites a reward campaign window.
func (n *Node) SetRewardsInterval(caller crypto.Address, start, end uint64, amount *big.Int) (*types.Receipt, error) {
	return n.withWrite("vault.setRewardsInterval", map[string]string{
		"caller": caller.String(), "amount": amount.String(),
	}, func(*state.Manager) error {
		return n.vault.SetRewardsInterval(caller, start, end, amount)
	})
}

// SetFeeRate updates the performance fee rate. Admin only.
func (n *Node) SetFeeRate(caller crypto.Address, feeRateBps uint64) (*types.Receipt, error) {
	return n.withWrite("vault.setFeeRate", map[string]string{
		"caller": caller.String(),
	}, func(*state.Manager) error {
		return n.vault.SetFeeRate(caller, feeRateBps)
	})
}

// RebindStrategy constructs a fresh adapter over the configured venue and
// binds the vault to it. The engine rejects the rebind unless the previous
// strategy's position is fully divested.
func (n *Node) RebindStrategy(caller crypto.Address, name string) (*types.Receipt, error) {
	if err := n.requireVault(); err != nil {
		return nil, err
	}
	replacement := strategy.NewEngine(name, n.vault.ModuleAddress(), crypto.ModuleAddress("strategy/"+name), n.assetSymbol)
	replacement.SetVenue(n.venue)
	receipt, err := n.withWrite("vault.setStrategy", map[string]string{
		"caller": caller.String(), "strategy": name,
	}, func(*state.Manager) error {
		return n.vault.SetStrategy(caller, replacement)
	})
	if err != nil {
		// A failed commit discards the persisted name; restore the live
		// binding so the engine and the stored state keep naming the same
		// strategy.
		n.vault.BindStrategy(n.strategy)
		return nil, err
	}
	n.strategy = replacement
	return receipt, nil
}

// Pause halts a module's mutating operations. Admin only.
func (n *Node) Pause(caller crypto.Address, module string) (*types.Receipt, error) {
	return n.withWrite("system.pause", map[string]string{"module": module}, func(mgr *state.Manager) error {
		if _, err := n.requireAdmin(mgr, caller); err != nil {
			return err
		}
		return mgr.SetPaused(module, true)
	})
}

// Resume lifts a module pause. Admin only.
func (n *Node) Resume(caller crypto.Address, module string) (*types.Receipt, error) {
	return n.withWrite("system.resume", map[string]string{"module": module}, func(mgr *state.Manager) error {
		if _, err := n.requireAdmin(mgr, caller); err != nil {
			return err
		}
		return mgr.SetPaused(module, false)
	})
}

// SetVenueRate adjusts the simulated venue's annual supply rate. Admin only.
func (n *Node) SetVenueRate(caller crypto.Address, bps uint64) (*types.Receipt, error) {
	if err := n.requireVault(); err != nil {
		return nil, err
	}
	return n.withWrite("venue.setRate", map[string]string{"caller": caller.String()}, func(*state.Manager) error {
		return n.venue.SetRate(caller, bps)
	})
}

// SetVenueWithdrawLimit caps the venue's per-call withdrawals. Admin only.
func (n *Node) SetVenueWithdrawLimit(caller crypto.Address, limit *big.Int) (*types.Receipt, error) {
	if err := n.requireVault(); err != nil {
		return nil, err
	}
	return n.withWrite("venue.setWithdrawLimit", map[string]string{"caller": caller.String()}, func(*state.Manager) error {
		return n.venue.SetWithdrawLimit(caller, limit)
	})
}

// --- token operations ---

// TokenTransfer moves token units between accounts.
func (n *Node) TokenTransfer(symbol string, from, to crypto.Address, amount *big.Int) (*types.Receipt, error) {
	return n.withWrite("token.transfer", map[string]string{
		"symbol": symbol, "from": from.String(), "to": to.String(), "amount": amount.String(),
	}, func(*state.Manager) error {
		return n.ledger.Transfer(symbol, from, to, amount)
	})
}

// TokenApprove sets a spender allowance.
func (n *Node) TokenApprove(symbol string, owner, spender crypto.Address, amount *big.Int) (*types.Receipt, error) {
	return n.withWrite("token.approve", map[string]string{
		"symbol": symbol, "owner": owner.String(), "spender": spender.String(), "amount": amount.String(),
	}, func(*state.Manager) error {
		return n.ledger.Approve(symbol, owner, spender, amount)
	})
}

// TokenMint issues new units; only the registered minter may call.
func (n *Node) TokenMint(caller crypto.Address, symbol string, to crypto.Address, amount *big.Int) (*types.Receipt, error) {
	return n.withWrite("token.mint", map[string]string{
		"symbol": symbol, "to": to.String(), "amount": amount.String(),
	}, func(*state.Manager) error {
		return n.ledger.Mint(caller, symbol, to, amount)
	})
}

// --- read surface ---

// VaultView aggregates the read-only vault summary for RPC and gateway.
type VaultView struct {
	State       *vault.VaultState `json:"state"`
	TotalAssets *big.Int          `json:"totalAssets"`
}

func (n *Node) Vault() (*VaultView, error) {
	var view VaultView
	err := n.withRead(func(*state.Manager) error {
		vs, err := n.vault.State()
		if err != nil {
			return err
		}
		total, err := n.vault.TotalAssets()
		if err != nil {
			return err
		}
		view = VaultView{State: vs, TotalAssets: total}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &view, nil
}

func (n *Node) TotalAssets() (*big.Int, error) {
	var total *big.Int
	err := n.withRead(func(*state.Manager) error {
		var err error
		total, err = n.vault.TotalAssets()
		return err
	})
	return total, err
}

func (n *Node) SharesOf(holder crypto.Address) (*big.Int, error) {
	var shares *big.Int
	err := n.withRead(func(*state.Manager) error {
		var err error
		shares, err = n.vault.SharesOf(holder)
		return err
	})
	return shares, err
}

func (n *Node) PositionOf(holder crypto.Address) (*vault.Position, error) {
	var pos *vault.Position
	err := n.withRead(func(*state.Manager) error {
		var err error
		pos, err = n.vault.PositionOf(holder)
		return err
	})
	return pos, err
}

func (n *Node) ClaimableRewards(holder crypto.Address) (*big.Int, error) {
	var amount *big.Int
	err := n.withRead(func(*state.Manager) error {
		var err error
		amount, err = n.vault.ClaimableRewards(holder)
		return err
	})
	return amount, err
}

func (n *Node) ConvertToShares(amount *big.Int) (*big.Int, error) {
	var shares *big.Int
	err := n.withRead(func(*state.Manager) error {
		var err error
		shares, err = n.vault.ConvertToShares(amount)
		return err
	})
	return shares, err
}

func (n *Node) ConvertToAssets(shares *big.Int) (*big.Int, error) {
	var amount *big.Int
	err := n.withRead(func(*state.Manager) error {
		var err error
		amount, err = n.vault.ConvertToAssets(shares)
		return err
	})
	return amount, err
}

func (n *Node) StrategyAssets() (*big.Int, error) {
	if err := n.requireVault(); err != nil {
		return nil, err
	}
	var total *big.Int
	err := n.withRead(func(*state.Manager) error {
		var err error
		total, err = n.strategy.EstimatedTotalAssets()
		return err
	})
	return total, err
}

func (n *Node) TokenBalance(symbol string, addr crypto.Address) (*big.Int, error) {
	var balance *big.Int
	err := n.withRead(func(*state.Manager) error {
		var err error
		balance, err = n.ledger.BalanceOf(symbol, addr)
		return err
	})
	return balance, err
}

func (n *Node) TokenSupply(symbol string) (*big.Int, error) {
	var supply *big.Int
	err := n.withRead(func(*state.Manager) error {
		var err error
		supply, err = n.ledger.TotalSupply(symbol)
		return err
	})
	return supply, err
}

// --- event stream ---

// Subscribe registers an event listener. The returned cancel function must be
// called to release the subscription; slow consumers drop events rather than
// block the ledger.
func (n *Node) Subscribe() (<-chan *types.Event, func()) {
	n.subMu.Lock()
	defer n.subMu.Unlock()
	id := n.nextSub
	n.nextSub++
	ch := make(chan *types.Event, 64)
	n.subs[id] = ch
	cancel := func() {
		n.subMu.Lock()
		defer n.subMu.Unlock()
		if existing, ok := n.subs[id]; ok {
			delete(n.subs, id)
			close(existing)
		}
	}
	return ch, cancel
}

func (n *Node) publish(events []*types.Event) {
	if len(events) == 0 {
		return
	}
	for _, evt := range events {
		observability.Events().RecordEvent(evt.Type)
	}
	n.subMu.Lock()
	defer n.subMu.Unlock()
	for _, ch := range n.subs {
		for _, evt := range events {
			select {
			case ch <- evt:
			default:
			}
		}
	}
}
