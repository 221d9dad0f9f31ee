package crypto

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/accounts/keystore"
)

// Operator keys are persisted as standard encrypted keystore documents so
// common wallet tooling can inspect them; the bech32 amn address is derived
// from the key on load rather than stored in the file.

// SaveToKeystore encrypts the operator key under the passphrase and writes it
// to path. Encryption runs in a scratch directory and the finished document is
// moved into place, so a crash never leaves a half-written keystore behind.
func SaveToKeystore(path string, key *PrivateKey, passphrase string) error {
	if key == nil || key.PrivateKey == nil {
		return fmt.Errorf("keystore: no operator key to save")
	}
	if path == "" {
		return fmt.Errorf("keystore: path required")
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("keystore: create directory: %w", err)
	}

	scratch, err := os.MkdirTemp(dir, ".keystore-*")
	if err != nil {
		return fmt.Errorf("keystore: scratch directory: %w", err)
	}
	defer os.RemoveAll(scratch)

	store := keystore.NewKeyStore(scratch, keystore.StandardScryptN, keystore.StandardScryptP)
	account, err := store.ImportECDSA(key.PrivateKey, passphrase)
	if err != nil {
		return fmt.Errorf("keystore: encrypt operator key: %w", err)
	}
	if err := os.Rename(account.URL.Path, path); err != nil {
		return fmt.Errorf("keystore: move into place: %w", err)
	}
	return os.Chmod(path, 0o600)
}

// LoadFromKeystore decrypts the operator keystore at path. A wrong passphrase
// surfaces as a decrypt error without touching the file.
func LoadFromKeystore(path, passphrase string) (*PrivateKey, error) {
	if path == "" {
		return nil, fmt.Errorf("keystore: path required")
	}
	encrypted, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("keystore: read %s: %w", path, err)
	}
	decrypted, err := keystore.DecryptKey(encrypted, passphrase)
	if err != nil {
		return nil, fmt.Errorf("keystore: decrypt operator key: %w", err)
	}
	return &PrivateKey{PrivateKey: decrypted.PrivateKey}, nil
}
