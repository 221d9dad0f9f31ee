package vault

import (
	"errors"
	"math/big"
	"testing"

	"amanavault/crypto"
	nativecommon "amanavault/native/common"
)

func TestInitializeIsOneShot(t *testing.T) {
	f := newVaultFixture(t)
	err := f.engine.Initialize(f.admin, testAsset, 0, f.admin)
	if !errors.Is(err, errAlreadyInitialized) {
		t.Fatalf("want errAlreadyInitialized, got %v", err)
	}
}

func TestInitializeRejectsExcessFeeRate(t *testing.T) {
	engine := NewEngine(crypto.ModuleAddress("vault"))
	engine.SetState(newMemVaultState())
	err := engine.Initialize(testAddr(0x01), testAsset, 10_001, testAddr(0x01))
	if !errors.Is(err, errInvalidFeeRate) {
		t.Fatalf("want errInvalidFeeRate, got %v", err)
	}
}

func TestFirstDepositMintsOneToOne(t *testing.T) {
	f := newVaultFixture(t)
	alice := testAddr(0x0a)
	f.fund(alice, 1_000)

	minted := f.mustDeposit(t, alice, 1_000)
	requireBig(t, 1_000, minted, "minted shares")

	shares, err := f.engine.SharesOf(alice)
	if err != nil {
		t.Fatalf("shares of: %v", err)
	}
	requireBig(t, 1_000, shares, "alice shares")
	requireBig(t, 0, f.ledger.balance(testAsset, alice), "alice balance drained")
}

func TestDepositFundsStrategyModuleAccount(t *testing.T) {
	f := newVaultFixture(t)
	alice := testAddr(0x0a)
	f.fund(alice, 1_000)
	f.mustDeposit(t, alice, 1_000)

	// The deposit lands where the venue pulls from; the vault's own account
	// never holds it.
	requireBig(t, 1_000, f.ledger.balance(testAsset, f.strategy.moduleAddr), "strategy module funded")
	requireBig(t, 0, f.ledger.balance(testAsset, f.module), "vault module idle balance")
}

func TestSecondDepositMintsProportionally(t *testing.T) {
	f := newVaultFixture(t)
	alice, bob := testAddr(0x0a), testAddr(0x0b)
	f.fund(alice, 1_000)
	f.fund(bob, 500)

	f.mustDeposit(t, alice, 1_000)
	// Yield accrues: 1000 assets become 2000 against 1000 shares.
	f.strategy.assets.Add(f.strategy.assets, big.NewInt(1_000))

	minted := f.mustDeposit(t, bob, 500)
	requireBig(t, 250, minted, "bob shares at 2:1 price")
}

func TestDepositRoundsDownInVaultFavour(t *testing.T) {
	f := newVaultFixture(t)
	alice, bob := testAddr(0x0a), testAddr(0x0b)
	f.fund(alice, 1_000)
	f.fund(bob, 7)

	f.mustDeposit(t, alice, 1_000)
	f.strategy.assets.Add(f.strategy.assets, big.NewInt(500))

	// 7 * 1000 / 1500 = 4.66..., floor to 4.
	minted := f.mustDeposit(t, bob, 7)
	requireBig(t, 4, minted, "floored share mint")
}

func TestDepositRejectsNonPositiveAmounts(t *testing.T) {
	f := newVaultFixture(t)
	alice := testAddr(0x0a)
	for _, amount := range []*big.Int{nil, big.NewInt(0), big.NewInt(-5)} {
		if _, err := f.engine.Deposit(alice, amount, alice); !errors.Is(err, errInvalidAmount) {
			t.Fatalf("amount %v: want errInvalidAmount, got %v", amount, err)
		}
	}
}

func TestWithdrawBurnsSharesRoundedUp(t *testing.T) {
	f := newVaultFixture(t)
	alice := testAddr(0x0a)
	f.fund(alice, 1_000)
	f.mustDeposit(t, alice, 1_000)
	f.strategy.assets.Add(f.strategy.assets, big.NewInt(500))

	// 7 * 1000 / 1500 = 4.66..., ceil to 5 shares.
	burned, err := f.engine.Withdraw(alice, big.NewInt(7), alice, alice)
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	requireBig(t, 5, burned, "ceiled share burn")

	shares, _ := f.engine.SharesOf(alice)
	requireBig(t, 995, shares, "remaining shares")
}

func TestRedeemPaysFloorOfProportionalValue(t *testing.T) {
	f := newVaultFixture(t)
	alice := testAddr(0x0a)
	f.fund(alice, 1_000)
	f.mustDeposit(t, alice, 1_000)
	f.strategy.assets.Add(f.strategy.assets, big.NewInt(500))

	// 3 shares * 1500 / 1000 = 4.5, floor to 4 assets.
	assets, err := f.engine.Redeem(alice, big.NewInt(3), alice, alice)
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	requireBig(t, 4, assets, "floored asset payout")
	requireBig(t, 4, f.ledger.balance(testAsset, alice), "alice credited")
}

func TestWithdrawChargesPerformanceFeeOnProfit(t *testing.T) {
	f := newVaultFixture(t)
	if err := f.engine.SetFeeRate(f.admin, 1_000); err != nil {
		t.Fatalf("set fee rate: %v", err)
	}
	feeRecipient := testAddr(0x0f)
	vs, _ := f.state.VaultState()
	vs.FeeRecipient = feeRecipient
	if err := f.state.PutVaultState(vs); err != nil {
		t.Fatalf("seed fee recipient: %v", err)
	}

	alice := testAddr(0x0a)
	f.fund(alice, 1_000)
	f.mustDeposit(t, alice, 1_000)
	// 5% profit: 1000 assets grow to 1050 against 1000 shares.
	f.strategy.assets.Add(f.strategy.assets, big.NewInt(50))

	payout, err := f.engine.Redeem(alice, big.NewInt(1_000), alice, alice)
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	// fee = 50 profit * 1050 received * 1000bps / (1050 * 10000) = 5.
	requireBig(t, 1_045, payout, "payout net of fee")
	requireBig(t, 1_045, f.ledger.balance(testAsset, alice), "alice balance")
	requireBig(t, 5, f.ledger.balance(testAsset, feeRecipient), "fee recipient balance")
}

func TestNoFeeWithoutProfit(t *testing.T) {
	f := newVaultFixture(t)
	if err := f.engine.SetFeeRate(f.admin, 1_000); err != nil {
		t.Fatalf("set fee rate: %v", err)
	}
	alice := testAddr(0x0a)
	f.fund(alice, 1_000)
	f.mustDeposit(t, alice, 1_000)

	payout, err := f.engine.Redeem(alice, big.NewInt(400), alice, alice)
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	requireBig(t, 400, payout, "payout at bootstrap price")
}

func TestProfitFeeTable(t *testing.T) {
	cases := []struct {
		name        string
		rateBps     uint64
		totalAssets int64
		totalShares int64
		received    int64
		want        int64
	}{
		{"zero rate", 0, 1_050, 1_000, 1_050, 0},
		{"no profit", 1_000, 1_000, 1_000, 1_000, 0},
		{"loss", 1_000, 900, 1_000, 900, 0},
		{"full withdrawal", 1_000, 1_050, 1_000, 1_050, 5},
		{"partial withdrawal", 1_000, 1_050, 1_000, 525, 2},
		{"max rate", 10_000, 2_000, 1_000, 2_000, 1_000},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fee := profitFee(tc.rateBps, big.NewInt(tc.totalAssets), big.NewInt(tc.totalShares), big.NewInt(tc.received))
			requireBig(t, tc.want, fee, "fee")
		})
	}
}

func TestWithdrawHonoursVenueShortfall(t *testing.T) {
	f := newVaultFixture(t)
	alice := testAddr(0x0a)
	f.fund(alice, 1_000)
	f.mustDeposit(t, alice, 1_000)

	// The venue can only release 300 per call.
	f.strategy.divestCap = big.NewInt(300)

	burned, err := f.engine.Withdraw(alice, big.NewInt(500), alice, alice)
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	// Shares burn against the request, the payout reflects what was released.
	requireBig(t, 500, burned, "burned shares")
	requireBig(t, 300, f.ledger.balance(testAsset, alice), "alice received capped amount")
}

func TestWithdrawFailsWhenVenueReturnsNothing(t *testing.T) {
	f := newVaultFixture(t)
	alice := testAddr(0x0a)
	f.fund(alice, 1_000)
	f.mustDeposit(t, alice, 1_000)
	f.strategy.divestCap = big.NewInt(0)
	f.strategy.assets.SetInt64(0)

	if _, err := f.engine.Withdraw(alice, big.NewInt(1), alice, alice); !errors.Is(err, errNoShares) {
		// With no venue assets the conversion short-circuits before divesting.
		t.Fatalf("want errNoShares, got %v", err)
	}
}

func TestTwoHoldersKeepIndependentClaims(t *testing.T) {
	f := newVaultFixture(t)
	alice, bob := testAddr(0x0a), testAddr(0x0b)
	f.fund(alice, 600)
	f.fund(bob, 400)

	f.mustDeposit(t, alice, 600)
	f.mustDeposit(t, bob, 400)
	f.strategy.assets.Add(f.strategy.assets, big.NewInt(500)) // 1000 -> 1500

	aliceOut, err := f.engine.Redeem(alice, big.NewInt(600), alice, alice)
	if err != nil {
		t.Fatalf("alice redeem: %v", err)
	}
	requireBig(t, 900, aliceOut, "alice proportional payout")

	bobOut, err := f.engine.Redeem(bob, big.NewInt(400), bob, bob)
	if err != nil {
		t.Fatalf("bob redeem: %v", err)
	}
	requireBig(t, 600, bobOut, "bob proportional payout")
}

func TestWithdrawByApprovedSpender(t *testing.T) {
	f := newVaultFixture(t)
	alice, operator := testAddr(0x0a), testAddr(0x0c)
	f.fund(alice, 1_000)
	f.mustDeposit(t, alice, 1_000)

	if _, err := f.engine.Withdraw(operator, big.NewInt(100), operator, alice); !errors.Is(err, errInsufficientAllowance) {
		t.Fatalf("want errInsufficientAllowance, got %v", err)
	}

	if err := f.engine.ApproveShares(alice, operator, big.NewInt(150)); err != nil {
		t.Fatalf("approve shares: %v", err)
	}
	burned, err := f.engine.Withdraw(operator, big.NewInt(100), operator, alice)
	if err != nil {
		t.Fatalf("spender withdraw: %v", err)
	}
	requireBig(t, 100, burned, "burned shares")
	requireBig(t, 100, f.ledger.balance(testAsset, operator), "operator received payout")

	remaining, _ := f.state.ShareAllowance(alice, operator)
	requireBig(t, 50, remaining, "allowance decremented")
}

func TestWithdrawRejectsOverdraw(t *testing.T) {
	f := newVaultFixture(t)
	alice := testAddr(0x0a)
	f.fund(alice, 100)
	f.mustDeposit(t, alice, 100)

	if _, err := f.engine.Redeem(alice, big.NewInt(101), alice, alice); !errors.Is(err, errInsufficientShares) {
		t.Fatalf("want errInsufficientShares, got %v", err)
	}
}

func TestDepositRejectsReentrancy(t *testing.T) {
	f := newVaultFixture(t)
	alice := testAddr(0x0a)
	f.fund(alice, 2_000)

	var reentryErr error
	f.strategy.onInvest = func() error {
		_, reentryErr = f.engine.Deposit(alice, big.NewInt(1), alice)
		return nil
	}
	f.mustDeposit(t, alice, 1_000)
	if !errors.Is(reentryErr, nativecommon.ErrReentrancy) {
		t.Fatalf("want ErrReentrancy from nested deposit, got %v", reentryErr)
	}
}

func TestWithdrawRejectsReentrancy(t *testing.T) {
	f := newVaultFixture(t)
	alice := testAddr(0x0a)
	f.fund(alice, 1_000)
	f.mustDeposit(t, alice, 1_000)

	var reentryErr error
	f.strategy.onDivest = func() error {
		_, reentryErr = f.engine.Withdraw(alice, big.NewInt(1), alice, alice)
		return nil
	}
	if _, err := f.engine.Withdraw(alice, big.NewInt(100), alice, alice); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if !errors.Is(reentryErr, nativecommon.ErrReentrancy) {
		t.Fatalf("want ErrReentrancy from nested withdraw, got %v", reentryErr)
	}
}

func TestPauseBlocksMutations(t *testing.T) {
	f := newVaultFixture(t)
	alice := testAddr(0x0a)
	f.fund(alice, 1_000)
	f.engine.SetPauses(pausedModules{"vault": true})

	if _, err := f.engine.Deposit(alice, big.NewInt(100), alice); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("deposit: want ErrModulePaused, got %v", err)
	}
	if _, err := f.engine.Withdraw(alice, big.NewInt(100), alice, alice); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("withdraw: want ErrModulePaused, got %v", err)
	}
}

func TestSetStrategyRejectsLivePosition(t *testing.T) {
	f := newVaultFixture(t)
	alice := testAddr(0x0a)
	f.fund(alice, 1_000)
	f.mustDeposit(t, alice, 1_000)

	replacement := &stubStrategy{
		name:       "lending-v2",
		assets:     big.NewInt(0),
		ledger:     f.ledger,
		symbol:     testAsset,
		moduleAddr: crypto.ModuleAddress("strategy/lending-v2"),
	}
	if err := f.engine.SetStrategy(f.admin, replacement); !errors.Is(err, errStrategyPositionLive) {
		t.Fatalf("want errStrategyPositionLive, got %v", err)
	}

	// After a full exit the rebind goes through.
	if _, err := f.engine.Redeem(alice, big.NewInt(1_000), alice, alice); err != nil {
		t.Fatalf("exit position: %v", err)
	}
	if err := f.engine.SetStrategy(f.admin, replacement); err != nil {
		t.Fatalf("rebind after exit: %v", err)
	}
	vs, _ := f.state.VaultState()
	if vs.StrategyName != "lending-v2" {
		t.Fatalf("strategy name not updated: %q", vs.StrategyName)
	}
}

func TestSetStrategyRequiresAdmin(t *testing.T) {
	f := newVaultFixture(t)
	if err := f.engine.SetStrategy(testAddr(0x0a), f.strategy); !errors.Is(err, errUnauthorized) {
		t.Fatalf("want errUnauthorized, got %v", err)
	}
}

func TestConvertRoundTripNeverCreatesValue(t *testing.T) {
	f := newVaultFixture(t)
	alice := testAddr(0x0a)
	f.fund(alice, 1_000)
	f.mustDeposit(t, alice, 1_000)
	f.strategy.assets.Add(f.strategy.assets, big.NewInt(333))

	for _, amount := range []int64{1, 7, 99, 500} {
		shares, err := f.engine.ConvertToShares(big.NewInt(amount))
		if err != nil {
			t.Fatalf("convert to shares: %v", err)
		}
		back, err := f.engine.ConvertToAssets(shares)
		if err != nil {
			t.Fatalf("convert to assets: %v", err)
		}
		if back.Cmp(big.NewInt(amount)) > 0 {
			t.Fatalf("round trip of %d produced %s assets", amount, back)
		}
	}
}

// pausedModules is a static pause view for tests.
type pausedModules map[string]bool

func (p pausedModules) IsPaused(module string) bool { return p[module] }
