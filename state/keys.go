package state

import (
	"encoding/hex"
	"fmt"

	"amanavault/crypto"
)

func addrKey(addr crypto.Address) string {
	return hex.EncodeToString(addr.Bytes())
}

func tokenKey(symbol string) []byte {
	return []byte(fmt.Sprintf("token/meta/%s", symbol))
}

func balanceKey(symbol string, addr crypto.Address) []byte {
	return []byte(fmt.Sprintf("token/bal/%s/%s", symbol, addrKey(addr)))
}

func allowanceKey(symbol string, owner, spender crypto.Address) []byte {
	return []byte(fmt.Sprintf("token/allow/%s/%s/%s", symbol, addrKey(owner), addrKey(spender)))
}

func vaultStateKey() []byte {
	return []byte("vault/state")
}

func positionKey(addr crypto.Address) []byte {
	return []byte(fmt.Sprintf("vault/pos/%s", addrKey(addr)))
}

func shareAllowanceKey(owner, spender crypto.Address) []byte {
	return []byte(fmt.Sprintf("vault/allow/%s/%s", addrKey(owner), addrKey(spender)))
}

func poolStateKey() []byte {
	return []byte("venue/state")
}

func receiptKey(addr crypto.Address) []byte {
	return []byte(fmt.Sprintf("venue/receipt/%s", addrKey(addr)))
}

func pausesKey() []byte {
	return []byte("system/pauses")
}

func genesisKey() []byte {
	return []byte("system/genesis")
}
