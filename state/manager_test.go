package state

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"amanavault/core/types"
	"amanavault/crypto"
	"amanavault/native/token"
	"amanavault/native/vault"
	"amanavault/native/venue"
	"amanavault/storage"
)

func testAddr(tag byte) crypto.Address {
	raw := make([]byte, 20)
	raw[19] = tag
	return crypto.NewAddress(crypto.AccountPrefix, raw)
}

func TestTokenRoundTrip(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())

	missing, err := mgr.Token("USDC")
	require.NoError(t, err)
	require.Nil(t, missing)

	minter := testAddr(0x01)
	require.NoError(t, mgr.PutToken(&token.Token{
		Symbol:      "USDC",
		Name:        "USD Coin",
		Decimals:    6,
		Minter:      minter,
		TotalSupply: big.NewInt(1_000),
	}))

	stored, err := mgr.Token("USDC")
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.Equal(t, "USDC", stored.Symbol)
	require.Equal(t, uint8(6), stored.Decimals)
	require.True(t, stored.Minter.Equal(minter))
	require.Zero(t, stored.TotalSupply.Cmp(big.NewInt(1_000)))
}

func TestBalancesDefaultToZero(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())
	holder := testAddr(0x02)

	balance, err := mgr.Balance("USDC", holder)
	require.NoError(t, err)
	require.Zero(t, balance.Sign())

	require.NoError(t, mgr.SetBalance("USDC", holder, big.NewInt(42)))
	balance, err = mgr.Balance("USDC", holder)
	require.NoError(t, err)
	require.Zero(t, balance.Cmp(big.NewInt(42)))
}

func TestVaultStateRoundTrip(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())

	missing, err := mgr.VaultState()
	require.NoError(t, err)
	require.Nil(t, missing)

	admin := testAddr(0x01)
	require.NoError(t, mgr.PutVaultState(&vault.VaultState{
		Initialized:    true,
		Admin:          admin,
		AssetSymbol:    "USDC",
		FeeRateBps:     1_000,
		FeeRecipient:   admin,
		TotalShares:    big.NewInt(500),
		StrategyName:   "lending-v1",
		RewardToken:    "AMA",
		RewardStart:    1_000,
		RewardEnd:      2_000,
		RewardAmount:   big.NewInt(1_000_000),
		RewardPerShare: big.NewInt(7),
	}))

	stored, err := mgr.VaultState()
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.True(t, stored.Initialized)
	require.True(t, stored.Admin.Equal(admin))
	require.Equal(t, "lending-v1", stored.StrategyName)
	require.Zero(t, stored.TotalShares.Cmp(big.NewInt(500)))
	require.Zero(t, stored.RewardAmount.Cmp(big.NewInt(1_000_000)))
}

func TestPositionRoundTrip(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())
	holder := testAddr(0x0a)

	missing, err := mgr.Position(holder)
	require.NoError(t, err)
	require.Nil(t, missing)

	require.NoError(t, mgr.PutPosition(&vault.Position{
		Address:         holder,
		Shares:          big.NewInt(100),
		RewardSnapshot:  big.NewInt(3),
		UnclaimedReward: big.NewInt(9),
		ClaimedReward:   big.NewInt(1),
	}))

	stored, err := mgr.Position(holder)
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.True(t, stored.Address.Equal(holder))
	require.Zero(t, stored.Shares.Cmp(big.NewInt(100)))
	require.Zero(t, stored.UnclaimedReward.Cmp(big.NewInt(9)))
}

func TestPoolStateRoundTrip(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())

	require.NoError(t, mgr.PutPoolState(&venue.PoolState{
		Index:           big.NewInt(123),
		TotalShares:     big.NewInt(456),
		LastAccrualTime: 789,
		RateBpsAnnual:   500,
		WithdrawLimit:   big.NewInt(10),
	}))

	stored, err := mgr.PoolState()
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.Zero(t, stored.Index.Cmp(big.NewInt(123)))
	require.Equal(t, uint64(500), stored.RateBpsAnnual)
	require.Zero(t, stored.WithdrawLimit.Cmp(big.NewInt(10)))
}

func TestPausesPersistAcrossManagers(t *testing.T) {
	db := storage.NewMemDB()
	mgr := NewManager(db)

	require.False(t, mgr.IsPaused("vault"))
	require.NoError(t, mgr.SetPaused("vault", true))
	require.True(t, mgr.IsPaused("vault"))
	require.False(t, mgr.IsPaused("token"))

	reopened := NewManager(db)
	require.True(t, reopened.IsPaused("vault"))

	require.NoError(t, reopened.SetPaused("vault", false))
	require.False(t, reopened.IsPaused("vault"))
}

func TestGenesisFlag(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())

	applied, err := mgr.GenesisApplied()
	require.NoError(t, err)
	require.False(t, applied)

	require.NoError(t, mgr.SetGenesisApplied())
	applied, err = mgr.GenesisApplied()
	require.NoError(t, err)
	require.True(t, applied)
}

func TestOverlayDiscardLeavesBaseUntouched(t *testing.T) {
	db := storage.NewMemDB()
	holder := testAddr(0x0a)

	overlay := storage.NewOverlay(db)
	staged := NewManager(overlay)
	require.NoError(t, staged.SetBalance("USDC", holder, big.NewInt(100)))

	// The overlay was never committed; the base still reads zero.
	base := NewManager(db)
	balance, err := base.Balance("USDC", holder)
	require.NoError(t, err)
	require.Zero(t, balance.Sign())
}

func TestOverlayCommitFlushesToBase(t *testing.T) {
	db := storage.NewMemDB()
	holder := testAddr(0x0a)

	overlay := storage.NewOverlay(db)
	staged := NewManager(overlay)
	require.NoError(t, staged.SetBalance("USDC", holder, big.NewInt(100)))
	require.NoError(t, overlay.Commit())

	base := NewManager(db)
	balance, err := base.Balance("USDC", holder)
	require.NoError(t, err)
	require.Zero(t, balance.Cmp(big.NewInt(100)))
}

func TestEventsAccumulate(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())
	require.Empty(t, mgr.Events())

	mgr.AppendEvent(&types.Event{Type: "vault.deposited"})
	mgr.AppendEvent(nil)
	mgr.AppendEvent(&types.Event{Type: "vault.withdrawn"})

	events := mgr.Events()
	require.Len(t, events, 2)
	require.Equal(t, "vault.deposited", events[0].Type)
}
