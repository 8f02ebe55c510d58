package internal

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// VaultService is the service name under which this tool files its secrets.
const VaultService = "leapp"

// SecretVault stores named secrets. Implementations must be safe for
// concurrent use by the state machine and the strategies.
type SecretVault interface {
	GetSecret(service, key string) (string, error)
	SaveSecret(service, key, value string) error
	DeletePassword(service, key string) error
}

var vaultPath = filepath.Join(os.Getenv("HOME"), ".leapp", "secrets.json")

// FileVault keeps secrets in an encrypted JSON file. Each value is sealed
// individually with AES-GCM under the master key; the file itself carries
// only base64 ciphertext.
type FileVault struct {
	mu  sync.Mutex
	key []byte
}

// NewFileVault creates a vault bound to the given master key.
func NewFileVault(masterKey string) (*FileVault, error) {
	if len(masterKey) < 32 {
		return nil, fmt.Errorf("master key must be at least 32 bytes")
	}
	return &FileVault{key: []byte(masterKey)}, nil
}

func (v *FileVault) load() (map[string]string, error) {
	data := make(map[string]string)
	b, err := os.ReadFile(vaultPath)
	if os.IsNotExist(err) {
		return data, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read vault: %w", err)
	}
	if err := json.Unmarshal(b, &data); err != nil {
		return nil, fmt.Errorf("failed to parse vault: %w", err)
	}
	return data, nil
}

func (v *FileVault) save(data map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(vaultPath), 0700); err != nil {
		return err
	}
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(vaultPath, b, 0600)
}

func (v *FileVault) GetSecret(service, key string) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	data, err := v.load()
	if err != nil {
		return "", err
	}
	enc, ok := data[service+"/"+key]
	if !ok {
		return "", fmt.Errorf("%w: %s/%s", ErrSecretNotFound, service, key)
	}
	raw, err := base64.StdEncoding.DecodeString(enc)
	if err != nil {
		return "", &ParseError{Key: key, Err: err}
	}
	plain, err := Decrypt(raw, v.key)
	if err != nil {
		return "", &ParseError{Key: key, Err: err}
	}
	return string(plain), nil
}

func (v *FileVault) SaveSecret(service, key, value string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	data, err := v.load()
	if err != nil {
		return err
	}
	sealed, err := Encrypt([]byte(value), v.key)
	if err != nil {
		return err
	}
	data[service+"/"+key] = base64.StdEncoding.EncodeToString(sealed)
	return v.save(data)
}

func (v *FileVault) DeletePassword(service, key string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	data, err := v.load()
	if err != nil {
		return err
	}
	if _, ok := data[service+"/"+key]; !ok {
		return fmt.Errorf("%w: %s/%s", ErrSecretNotFound, service, key)
	}
	delete(data, service+"/"+key)
	if len(data) == 0 {
		return os.Remove(vaultPath)
	}
	return v.save(data)
}
