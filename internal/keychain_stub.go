//go:build !darwin

package internal

import (
	"fmt"
	"os"
)

// GetMasterKey stub for non-macOS
func GetMasterKey(explicitSecret string) (string, error) {
	if explicitSecret != "" {
		return explicitSecret, nil
	}
	envSecret := os.Getenv("LEAPP_SECRET")
	if envSecret != "" {
		return envSecret, nil
	}
	return "", fmt.Errorf("no master key found and keychain is only supported on macOS")
}

// SetupKeychain stub for non-macOS
func SetupKeychain() (string, error) {
	return "", fmt.Errorf("keychain integration is only supported on macOS")
}

// StoreKeychainSecret stub for non-macOS
func StoreKeychainSecret(secret string) error {
	return fmt.Errorf("keychain integration is only supported on macOS")
}
