package strategy

import (
	"errors"
	"math/big"
	"testing"

	"amanavault/crypto"
)

// stubVenue records calls and lets tests script the release amount.
type stubVenue struct {
	receipts    map[string]*big.Int
	depositFrom crypto.Address
	withdrawTo  crypto.Address
	release     *big.Int
	rateNum     int64
	rateDen     int64
}

func newStubVenue() *stubVenue {
	return &stubVenue{receipts: make(map[string]*big.Int), rateNum: 1, rateDen: 1}
}

func (v *stubVenue) Deposit(from crypto.Address, amount *big.Int) (*big.Int, error) {
	v.depositFrom = from
	key := string(from.Bytes())
	existing, ok := v.receipts[key]
	if !ok {
		existing = big.NewInt(0)
	}
	v.receipts[key] = new(big.Int).Add(existing, amount)
	return new(big.Int).Set(amount), nil
}

func (v *stubVenue) Withdraw(owner crypto.Address, amount *big.Int, to crypto.Address) (*big.Int, error) {
	v.withdrawTo = to
	if v.release != nil {
		return new(big.Int).Set(v.release), nil
	}
	return new(big.Int).Set(amount), nil
}

func (v *stubVenue) ConvertToAssets(shares *big.Int) (*big.Int, error) {
	value := new(big.Int).Mul(shares, big.NewInt(v.rateNum))
	return value.Quo(value, big.NewInt(v.rateDen)), nil
}

func (v *stubVenue) ReceiptBalanceOf(owner crypto.Address) (*big.Int, error) {
	existing, ok := v.receipts[string(owner.Bytes())]
	if !ok {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(existing), nil
}

func testAddr(tag byte) crypto.Address {
	raw := make([]byte, 20)
	raw[19] = tag
	return crypto.NewAddress(crypto.AccountPrefix, raw)
}

func newTestStrategy() (*Engine, *stubVenue, crypto.Address) {
	vault := crypto.ModuleAddress("vault")
	module := crypto.ModuleAddress("strategy/lending-v1")
	venue := newStubVenue()
	engine := NewEngine("lending-v1", vault, module, "USDC")
	engine.SetVenue(venue)
	return engine, venue, vault
}

func TestInvestOnlyFromBoundVault(t *testing.T) {
	engine, _, vault := newTestStrategy()
	if err := engine.Invest(testAddr(0x0a), big.NewInt(100)); !errors.Is(err, errUnauthorized) {
		t.Fatalf("outsider: want errUnauthorized, got %v", err)
	}
	if err := engine.Invest(vault, big.NewInt(100)); err != nil {
		t.Fatalf("vault invest: %v", err)
	}
}

func TestInvestPlacesFundsUnderModuleAccount(t *testing.T) {
	engine, venue, vault := newTestStrategy()
	if err := engine.Invest(vault, big.NewInt(250)); err != nil {
		t.Fatalf("invest: %v", err)
	}
	if !venue.depositFrom.Equal(engine.ModuleAddress()) {
		t.Fatalf("venue deposit came from %s, want strategy module account", venue.depositFrom)
	}
}

func TestDivestReportsVenueGroundTruth(t *testing.T) {
	engine, venue, vault := newTestStrategy()
	recipient := testAddr(0x0b)

	// The venue releases less than requested under a liquidity squeeze.
	venue.release = big.NewInt(300)
	released, err := engine.Divest(vault, big.NewInt(500), recipient)
	if err != nil {
		t.Fatalf("divest: %v", err)
	}
	if released.Cmp(big.NewInt(300)) != 0 {
		t.Fatalf("released: want 300, got %s", released)
	}
	if !venue.withdrawTo.Equal(recipient) {
		t.Fatalf("venue paid %s, want recipient", venue.withdrawTo)
	}
}

func TestDivestOnlyFromBoundVault(t *testing.T) {
	engine, _, _ := newTestStrategy()
	if _, err := engine.Divest(testAddr(0x0a), big.NewInt(1), testAddr(0x0a)); !errors.Is(err, errUnauthorized) {
		t.Fatalf("want errUnauthorized, got %v", err)
	}
}

func TestAmountValidation(t *testing.T) {
	engine, _, vault := newTestStrategy()
	for _, amount := range []*big.Int{nil, big.NewInt(0), big.NewInt(-1)} {
		if err := engine.Invest(vault, amount); !errors.Is(err, errInvalidAmount) {
			t.Fatalf("invest %v: want errInvalidAmount, got %v", amount, err)
		}
		if _, err := engine.Divest(vault, amount, vault); !errors.Is(err, errInvalidAmount) {
			t.Fatalf("divest %v: want errInvalidAmount, got %v", amount, err)
		}
	}
}

func TestEstimatedTotalAssetsUsesVenueRate(t *testing.T) {
	engine, venue, vault := newTestStrategy()
	if err := engine.Invest(vault, big.NewInt(1_000)); err != nil {
		t.Fatalf("invest: %v", err)
	}

	// 1000 receipts at a 3:2 exchange rate value the position at 1500.
	venue.rateNum, venue.rateDen = 3, 2
	total, err := engine.EstimatedTotalAssets()
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	if total.Cmp(big.NewInt(1_500)) != 0 {
		t.Fatalf("total: want 1500, got %s", total)
	}
}

func TestEstimatedTotalAssetsZeroWithoutPosition(t *testing.T) {
	engine, _, _ := newTestStrategy()
	total, err := engine.EstimatedTotalAssets()
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	if total.Sign() != 0 {
		t.Fatalf("total: want 0, got %s", total)
	}
}

func TestUnconfiguredVenueFails(t *testing.T) {
	engine := NewEngine("lending-v1", crypto.ModuleAddress("vault"), crypto.ModuleAddress("strategy/lending-v1"), "USDC")
	if err := engine.Invest(crypto.ModuleAddress("vault"), big.NewInt(1)); !errors.Is(err, errNilVenue) {
		t.Fatalf("want errNilVenue, got %v", err)
	}
}
