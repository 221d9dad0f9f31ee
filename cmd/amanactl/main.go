package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"amanavault/cmd/internal/passphrase"
	"amanavault/crypto"
)

const (
	rpcURLEnv       = "AMANA_RPC_URL"
	rpcTokenEnv     = "AMANA_RPC_TOKEN"
	rpcSecretEnv    = "AMANA_RPC_SECRET"
	operatorPassEnv = "AMANA_OPERATOR_PASS"
)

func rpcEndpoint() string {
	if url := strings.TrimSpace(os.Getenv(rpcURLEnv)); url != "" {
		return url
	}
	return "http://localhost:8080"
}

func main() {
	args := os.Args[1:]
	if len(args) < 1 {
		printUsage()
		return
	}

	var err error
	switch args[0] {
	case "generate-key":
		err = generateKey(args[1:])
	case "show-address":
		err = showAddress(args[1:])
	case "mint-token":
		err = mintAuthToken(args[1:])
	case "call":
		err = call(args[1:])
	case "vault":
		err = vaultState()
	case "position":
		err = position(args[1:])
	case "balance":
		err = balance(args[1:])
	default:
		printUsage()
		err = fmt.Errorf("unknown command %q", args[0])
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Usage: amanactl <command> [args]

Commands:
  generate-key <file>               Create a new operator keystore
  show-address <file>               Print the address held in a keystore
  mint-token [ttl-minutes]          Mint an admin bearer token (needs ` + rpcSecretEnv + `)
  call <method> <params-json>       Invoke a raw JSON-RPC method
  vault                             Show the vault summary
  position <address>                Show a holder's vault position
  balance <symbol> <address>        Show a token balance

Environment:
  ` + rpcURLEnv + `     RPC endpoint (default http://localhost:8080)
  ` + rpcTokenEnv + `   Bearer token attached to admin calls
  ` + operatorPassEnv + `  Keystore passphrase (prompted when unset)`)
}

func generateKey(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: generate-key <file>")
	}
	pass, err := passphrase.NewSource(operatorPassEnv).Get()
	if err != nil {
		return err
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return err
	}
	if err := crypto.SaveToKeystore(args[0], key, pass); err != nil {
		return err
	}
	fmt.Println("Address:", key.PubKey().Address().String())
	fmt.Println("Keystore written to", args[0])
	return nil
}

func showAddress(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: show-address <file>")
	}
	pass, err := passphrase.NewSource(operatorPassEnv).Get()
	if err != nil {
		return err
	}
	key, err := crypto.LoadFromKeystore(args[0], pass)
	if err != nil {
		return err
	}
	fmt.Println(key.PubKey().Address().String())
	return nil
}

func mintAuthToken(args []string) error {
	secret := strings.TrimSpace(os.Getenv(rpcSecretEnv))
	if secret == "" {
		return fmt.Errorf("%s not set", rpcSecretEnv)
	}
	ttl := 60
	if len(args) > 0 {
		parsed, err := strconv.Atoi(args[0])
		if err != nil || parsed <= 0 {
			return fmt.Errorf("ttl must be a positive number of minutes")
		}
		ttl = parsed
	}
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "operator",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(ttl) * time.Minute)),
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return err
	}
	fmt.Println(signed)
	return nil
}

func call(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: call <method> [params-json]")
	}
	params := json.RawMessage(`{}`)
	if len(args) > 1 {
		if !json.Valid([]byte(args[1])) {
			return fmt.Errorf("params must be valid JSON")
		}
		params = json.RawMessage(args[1])
	}
	result, err := invoke(args[0], params)
	if err != nil {
		return err
	}
	return printJSON(result)
}

func vaultState() error {
	result, err := invoke("vault_getState", nil)
	if err != nil {
		return err
	}
	return printJSON(result)
}

func position(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: position <address>")
	}
	result, err := invoke("vault_getPosition", map[string]string{"address": args[0]})
	if err != nil {
		return err
	}
	return printJSON(result)
}

func balance(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: balance <symbol> <address>")
	}
	result, err := invoke("token_balance", map[string]string{
		"symbol":  args[0],
		"address": args[1],
	})
	if err != nil {
		return err
	}
	return printJSON(result)
}

func invoke(method string, params interface{}) (json.RawMessage, error) {
	request := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
	}
	if params != nil {
		request["params"] = []interface{}{params}
	} else {
		request["params"] = []interface{}{}
	}
	body, err := json.Marshal(request)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodPost, rpcEndpoint(), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token := strings.TrimSpace(os.Getenv(rpcTokenEnv)); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var decoded struct {
		Result json.RawMessage `json:"result"`
		Error  *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if decoded.Error != nil {
		return nil, fmt.Errorf("rpc error %d: %s", decoded.Error.Code, decoded.Error.Message)
	}
	return decoded.Result, nil
}

func printJSON(raw json.RawMessage) error {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		fmt.Println(string(raw))
		return nil
	}
	fmt.Println(pretty.String())
	return nil
}
