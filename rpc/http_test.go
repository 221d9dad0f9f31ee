package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"amanavault/core"
	"amanavault/crypto"
	"amanavault/storage"
)

const testSecret = "test-rpc-secret"

func testAddr(tag byte) crypto.Address {
	raw := make([]byte, 20)
	raw[19] = tag
	return crypto.NewAddress(crypto.AccountPrefix, raw)
}

func newTestNode(t *testing.T) (*core.Node, crypto.Address, crypto.Address) {
	t.Helper()
	node, err := core.NewNode(storage.NewMemDB())
	require.NoError(t, err)

	admin, alice := testAddr(0x01), testAddr(0x0a)
	doc := &core.Genesis{
		Network: "amana-test",
		Tokens: []core.GenesisToken{
			{Symbol: "USDC", Name: "USD Coin", Decimals: 6, Minter: "venue"},
			{Symbol: "AMA", Name: "Amana Rewards", Decimals: 18, Minter: "admin"},
		},
		Balances: []core.GenesisBalance{
			{Address: alice.String(), Symbol: "USDC", Amount: "1000000"},
		},
		Vault: core.GenesisVault{
			Admin:       admin.String(),
			Asset:       "USDC",
			FeeRateBps:  1_000,
			RewardToken: "AMA",
		},
		Strategy: core.GenesisStrategy{Name: "lending-v1"},
		Venue:    core.GenesisVenue{RateBpsAnnual: 500},
	}
	_, err = node.ApplyGenesis(doc)
	require.NoError(t, err)

	// Deposits pull the asset through the vault module's spending allowance.
	_, err = node.TokenApprove("USDC", alice, crypto.ModuleAddress("vault"), big.NewInt(1_000_000))
	require.NoError(t, err)
	return node, admin, alice
}

func newTestServer(t *testing.T) (*Server, crypto.Address, crypto.Address) {
	t.Helper()
	node, admin, alice := newTestNode(t)
	server := NewServer(node, Options{JWTSecret: testSecret, RateLimit: 1_000, RateBurst: 1_000})
	return server, admin, alice
}

func call(t *testing.T, s *Server, token string, method string, params interface{}) (*httptest.ResponseRecorder, *RPCResponse) {
	t.Helper()
	body := map[string]interface{}{
		"jsonrpc": jsonRPCVersion,
		"id":      1,
		"method":  method,
	}
	if params != nil {
		body["params"] = []interface{}{params}
	}
	encoded, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(encoded))
	req.RemoteAddr = "192.0.2.1:4000"
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	s.handle(recorder, req)

	resp := &RPCResponse{}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), resp))
	return recorder, resp
}

func mintToken(t *testing.T, secret string) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   "operator",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestHandleRejectsNonPost(t *testing.T) {
	server, _, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	recorder := httptest.NewRecorder()
	server.handle(recorder, req)
	require.Equal(t, http.StatusMethodNotAllowed, recorder.Code)
}

func TestHandleSetsRequestID(t *testing.T) {
	server, _, _ := newTestServer(t)
	recorder, _ := call(t, server, "", "vault_totalAssets", nil)
	require.NotEmpty(t, recorder.Header().Get("X-Request-Id"))
}

func TestUnknownMethod(t *testing.T) {
	server, _, _ := newTestServer(t)
	recorder, resp := call(t, server, "", "vault_frobnicate", nil)
	require.Equal(t, http.StatusNotFound, recorder.Code)
	require.NotNil(t, resp.Error)
	require.Equal(t, codeMethodNotFound, resp.Error.Code)
}

func TestUnsupportedVersionRejected(t *testing.T) {
	server, _, _ := newTestServer(t)
	raw := []byte(`{"jsonrpc":"1.0","id":1,"method":"vault_totalAssets"}`)
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(raw))
	recorder := httptest.NewRecorder()
	server.handle(recorder, req)
	require.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestDepositAndReadBack(t *testing.T) {
	server, _, alice := newTestServer(t)

	_, resp := call(t, server, "", "vault_deposit", map[string]string{
		"caller": alice.String(),
		"amount": "250000",
	})
	require.Nil(t, resp.Error)

	result, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	var op OperationResult
	require.NoError(t, json.Unmarshal(result, &op))
	require.Equal(t, "250000", op.Amount)
	require.NotNil(t, op.Receipt)
	require.Equal(t, "vault.deposit", op.Receipt.Operation)

	_, resp = call(t, server, "", "vault_sharesOf", map[string]string{"address": alice.String()})
	require.Nil(t, resp.Error)
	require.Equal(t, "250000", resp.Result)
}

func TestDepositValidatesParams(t *testing.T) {
	server, _, alice := newTestServer(t)

	recorder, resp := call(t, server, "", "vault_deposit", map[string]string{
		"caller": alice.String(),
		"amount": "-5",
	})
	require.Equal(t, http.StatusBadRequest, recorder.Code)
	require.Equal(t, codeInvalidParams, resp.Error.Code)

	recorder, resp = call(t, server, "", "vault_deposit", map[string]string{
		"amount": "100",
	})
	require.Equal(t, http.StatusBadRequest, recorder.Code)
	require.Equal(t, codeInvalidParams, resp.Error.Code)
}

func TestAdminMethodsRequireBearerToken(t *testing.T) {
	server, admin, _ := newTestServer(t)
	params := map[string]interface{}{
		"caller":     admin.String(),
		"feeRateBps": 500,
	}

	recorder, resp := call(t, server, "", "vault_setFeeRate", params)
	require.Equal(t, http.StatusUnauthorized, recorder.Code)
	require.Equal(t, codeUnauthorized, resp.Error.Code)

	recorder, _ = call(t, server, mintToken(t, "wrong-secret"), "vault_setFeeRate", params)
	require.Equal(t, http.StatusUnauthorized, recorder.Code)

	recorder, resp = call(t, server, mintToken(t, testSecret), "vault_setFeeRate", params)
	require.Equal(t, http.StatusOK, recorder.Code)
	require.Nil(t, resp.Error)
}

func TestAdminMethodsDisabledWithoutSecret(t *testing.T) {
	node, admin, _ := newTestNode(t)
	server := NewServer(node, Options{RateLimit: 100, RateBurst: 100})

	recorder, _ := call(t, server, mintToken(t, testSecret), "vault_setFeeRate", map[string]interface{}{
		"caller":     admin.String(),
		"feeRateBps": 500,
	})
	require.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestRateLimitPerClient(t *testing.T) {
	node, _, _ := newTestNode(t)
	server := NewServer(node, Options{RateLimit: 1, RateBurst: 1})

	send := func(remote string) int {
		raw := []byte(fmt.Sprintf(`{"jsonrpc":"%s","id":1,"method":"vault_totalAssets"}`, jsonRPCVersion))
		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(raw))
		req.RemoteAddr = remote
		recorder := httptest.NewRecorder()
		server.handle(recorder, req)
		return recorder.Code
	}

	require.Equal(t, http.StatusOK, send("192.0.2.1:4000"))
	require.Equal(t, http.StatusTooManyRequests, send("192.0.2.1:4000"))
	// A different client address has its own bucket.
	require.Equal(t, http.StatusOK, send("192.0.2.2:4000"))
}

func TestVaultGetState(t *testing.T) {
	server, _, _ := newTestServer(t)
	_, resp := call(t, server, "", "vault_getState", nil)
	require.Nil(t, resp.Error)

	encoded, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	var view struct {
		State struct {
			AssetSymbol  string `json:"assetSymbol"`
			StrategyName string `json:"strategyName"`
		} `json:"state"`
	}
	require.NoError(t, json.Unmarshal(encoded, &view))
	require.Equal(t, "USDC", view.State.AssetSymbol)
	require.Equal(t, "lending-v1", view.State.StrategyName)
}

func TestTokenBalanceOverRPC(t *testing.T) {
	server, _, alice := newTestServer(t)
	_, resp := call(t, server, "", "token_balance", map[string]string{
		"symbol":  "USDC",
		"address": alice.String(),
	})
	require.Nil(t, resp.Error)

	encoded, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	var balance BalanceResult
	require.NoError(t, json.Unmarshal(encoded, &balance))
	require.Equal(t, "1000000", balance.Amount)
	require.Equal(t, "USDC", balance.Symbol)
}
