package core

import (
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"amanavault/core/types"
	"amanavault/crypto"
	"amanavault/state"
	"amanavault/storage"
)

// ErrGenesisApplied signals that the database already went through genesis.
var ErrGenesisApplied = errors.New("genesis: already applied to this database")

// Genesis is the one-shot bootstrap document for a fresh database: token
// registrations, seeded balances, vault parameters and the simulated venue
// configuration.
type Genesis struct {
	Network  string           `yaml:"network"`
	Tokens   []GenesisToken   `yaml:"tokens"`
	Balances []GenesisBalance `yaml:"balances"`
	Vault    GenesisVault     `yaml:"vault"`
	Strategy GenesisStrategy  `yaml:"strategy"`
	Venue    GenesisVenue     `yaml:"venue"`
}

// GenesisToken registers a fungible token. Minter accepts a bech32 address or
// the aliases "venue" (the pool module account, used for the yield-bearing
// asset) and "admin" (the vault admin, used for the reward token).
type GenesisToken struct {
	Symbol   string `yaml:"symbol"`
	Name     string `yaml:"name"`
	Decimals uint8  `yaml:"decimals"`
	Minter   string `yaml:"minter"`
}

type GenesisBalance struct {
	Address string `yaml:"address"`
	Symbol  string `yaml:"symbol"`
	Amount  string `yaml:"amount"`
}

type GenesisVault struct {
	Admin        string `yaml:"admin"`
	Asset        string `yaml:"asset"`
	FeeRateBps   uint64 `yaml:"feeRateBps"`
	FeeRecipient string `yaml:"feeRecipient"`
	RewardToken  string `yaml:"rewardToken"`
}

type GenesisStrategy struct {
	Name string `yaml:"name"`
}

type GenesisVenue struct {
	RateBpsAnnual uint64 `yaml:"rateBpsAnnual"`
	WithdrawLimit string `yaml:"withdrawLimit"`
}

// LoadGenesis parses a genesis document from disk.
func LoadGenesis(path string) (*Genesis, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("genesis: read %s: %w", path, err)
	}
	var doc Genesis
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("genesis: parse %s: %w", path, err)
	}
	return &doc, nil
}

func (g *Genesis) resolveMinter(raw string, admin crypto.Address) (crypto.Address, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "venue":
		return crypto.ModuleAddress("venue/lending"), nil
	case "admin":
		return admin, nil
	case "":
		return crypto.Address{}, fmt.Errorf("genesis: token minter required")
	default:
		return crypto.DecodeAddress(raw)
	}
}

// ApplyGenesis bootstraps a fresh database from the document and wires the
// node's collaborators. Running it against an already-bootstrapped database
// fails with ErrGenesisApplied and changes nothing.
func (n *Node) ApplyGenesis(doc *Genesis) (*types.Receipt, error) {
	if doc == nil {
		return nil, fmt.Errorf("genesis: nil document")
	}
	admin, err := crypto.DecodeAddress(doc.Vault.Admin)
	if err != nil {
		return nil, fmt.Errorf("genesis: vault admin: %w", err)
	}
	feeRecipient := admin
	if strings.TrimSpace(doc.Vault.FeeRecipient) != "" {
		feeRecipient, err = crypto.DecodeAddress(doc.Vault.FeeRecipient)
		if err != nil {
			return nil, fmt.Errorf("genesis: fee recipient: %w", err)
		}
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	overlay := storage.NewOverlay(n.db)
	mgr := state.NewManager(overlay)
	appliedAt := n.now()
	ts := uint64(appliedAt.Unix())

	applied, err := mgr.GenesisApplied()
	if err != nil {
		return nil, err
	}
	if applied {
		return nil, ErrGenesisApplied
	}

	n.ledger.SetState(mgr)
	n.ledger.SetPauses(mgr)
	n.vault.SetState(mgr)
	n.vault.SetTokenLedger(n.ledger)
	n.vault.SetPauses(mgr)
	n.vault.SetTimestamp(ts)

	for _, entry := range doc.Tokens {
		minter, err := doc.resolveMinter(entry.Minter, admin)
		if err != nil {
			return nil, fmt.Errorf("genesis: token %s: %w", entry.Symbol, err)
		}
		if _, err := n.ledger.Register(entry.Symbol, entry.Name, entry.Decimals, minter); err != nil {
			return nil, fmt.Errorf("genesis: register %s: %w", entry.Symbol, err)
		}
	}

	// Balances are seeded directly rather than minted so the minter policy
	// only ever applies to post-genesis issuance.
	for _, entry := range doc.Balances {
		holder, err := crypto.DecodeAddress(entry.Address)
		if err != nil {
			return nil, fmt.Errorf("genesis: balance address %s: %w", entry.Address, err)
		}
		amount, ok := new(big.Int).SetString(strings.TrimSpace(entry.Amount), 10)
		if !ok || amount.Sign() < 0 {
			return nil, fmt.Errorf("genesis: balance amount %q for %s", entry.Amount, entry.Address)
		}
		symbol := strings.ToUpper(strings.TrimSpace(entry.Symbol))
		tok, err := mgr.Token(symbol)
		if err != nil {
			return nil, err
		}
		if tok == nil {
			return nil, fmt.Errorf("genesis: balance for unregistered token %s", symbol)
		}
		existing, err := mgr.Balance(symbol, holder)
		if err != nil {
			return nil, err
		}
		if err := mgr.SetBalance(symbol, holder, new(big.Int).Add(existing, amount)); err != nil {
			return nil, err
		}
		tok.TotalSupply = new(big.Int).Add(tok.TotalSupply, amount)
		if err := mgr.PutToken(tok); err != nil {
			return nil, err
		}
	}

	if err := n.vault.Initialize(admin, doc.Vault.Asset, doc.Vault.FeeRateBps, feeRecipient); err != nil {
		return nil, err
	}
	if strings.TrimSpace(doc.Vault.RewardToken) != "" {
		if err := n.vault.SetRewardToken(admin, doc.Vault.RewardToken); err != nil {
			return nil, err
		}
	}

	// Collaborators are staged locally and only adopted once the overlay
	// commits, so a failed genesis leaves the node inert.
	staged := &Node{ledger: n.ledger, vault: n.vault}
	staged.buildCollaborators(strings.ToUpper(strings.TrimSpace(doc.Vault.Asset)), doc.Strategy.Name, admin)
	if staged.venue != nil {
		staged.venue.SetState(mgr)
		staged.venue.SetTokenLedger(n.ledger)
		staged.venue.SetTimestamp(ts)
		if doc.Venue.RateBpsAnnual > 0 {
			if err := staged.venue.SetRate(admin, doc.Venue.RateBpsAnnual); err != nil {
				return nil, err
			}
		}
		if strings.TrimSpace(doc.Venue.WithdrawLimit) != "" {
			limit, ok := new(big.Int).SetString(strings.TrimSpace(doc.Venue.WithdrawLimit), 10)
			if !ok {
				return nil, fmt.Errorf("genesis: venue withdraw limit %q", doc.Venue.WithdrawLimit)
			}
			if err := staged.venue.SetWithdrawLimit(admin, limit); err != nil {
				return nil, err
			}
		}
	}
	if staged.strategy != nil {
		staged.strategy.SetPauses(mgr)
		if err := n.vault.SetStrategy(admin, staged.strategy); err != nil {
			return nil, err
		}
	}

	if err := mgr.SetGenesisApplied(); err != nil {
		return nil, err
	}
	if err := overlay.Commit(); err != nil {
		return nil, err
	}

	n.assetSymbol = staged.assetSymbol
	n.venue = staged.venue
	n.strategy = staged.strategy
	events := mgr.Events()
	n.publish(events)
	return types.NewReceipt("genesis.apply", map[string]string{"network": doc.Network}, appliedAt, events), nil
}
