//go:build darwin

package internal

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/keybase/go-keychain"
)

const (
	KeychainService = "leapp"
	KeychainAccount = "master-key"
)

// GetMasterKey retrieves the vault master key from one of three sources
// (in priority order):
// 1. Explicit flag/argument (passed in)
// 2. Environment variable (LEAPP_SECRET)
// 3. System Keychain (macOS only)
func GetMasterKey(explicitSecret string) (string, error) {
	if explicitSecret != "" {
		return explicitSecret, nil
	}

	envSecret := os.Getenv("LEAPP_SECRET")
	if envSecret != "" {
		return envSecret, nil
	}

	secret, err := getKeychainSecret()
	if err == nil && secret != "" {
		return secret, nil
	}

	return "", fmt.Errorf("no master key found")
}

// SetupKeychain generates a new master key and stores it in the keychain.
func SetupKeychain() (string, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return "", err
	}
	secret := hex.EncodeToString(key) // 64 chars hex string

	if err := StoreKeychainSecret(secret); err != nil {
		return "", err
	}
	return secret, nil
}

// StoreKeychainSecret saves an existing master key into the keychain,
// replacing any previous one.
func StoreKeychainSecret(secret string) error {
	item := keychain.NewItem()
	item.SetSecClass(keychain.SecClassGenericPassword)
	item.SetService(KeychainService)
	item.SetAccount(KeychainAccount)
	item.SetLabel("Leapp Encryption Key")
	item.SetAccessGroup(KeychainService)
	item.SetData([]byte(secret))
	item.SetSynchronizable(keychain.SynchronizableNo)
	item.SetAccessible(keychain.AccessibleWhenUnlocked)

	// Remove existing if any
	keychain.DeleteItem(item)

	if err := keychain.AddItem(item); err != nil {
		return fmt.Errorf("failed to save to keychain: %w", err)
	}
	return nil
}

func getKeychainSecret() (string, error) {
	query := keychain.NewItem()
	query.SetSecClass(keychain.SecClassGenericPassword)
	query.SetService(KeychainService)
	query.SetAccount(KeychainAccount)
	query.SetMatchLimit(keychain.MatchLimitOne)
	query.SetReturnData(true)

	results, err := keychain.QueryItem(query)
	if err != nil {
		return "", err
	} else if len(results) != 1 {
		return "", fmt.Errorf("master key not found in keychain")
	}

	return string(results[0].Data), nil
}
