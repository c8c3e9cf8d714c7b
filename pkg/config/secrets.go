package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/crypto/scrypt"
)

// Secrets file constants.
const (
	SecretsFilename = "secrets.json.enc"

	scryptN  = 32768
	scryptR  = 8
	scryptP  = 1
	keySize  = 32 // AES-256
	saltSize = 16
)

// Well-known secret names.
const (
	SecretAzureOpenAIKey     = "AZURE_OPENAI_KEY"
	SecretGitHubClientSecret = "GITHUB_CLIENT_SECRET"
	SecretDevinAPIKey        = "DEVIN_API_KEY"
)

//nolint:gochecknoglobals // process-wide secrets cache, set once at startup
var (
	secretsMu     sync.RWMutex
	loadedSecrets map[string]string
)

// LoadSecrets decrypts the secrets file in dir with the given passphrase
// and caches the result for GetSecret. A missing secrets file leaves the
// cache empty; lookups then fall through to the environment.
func LoadSecrets(dir, passphrase string) error {
	path := filepath.Join(dir, SecretsFilename)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		secretsMu.Lock()
		loadedSecrets = map[string]string{}
		secretsMu.Unlock()
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read secrets file: %w", err)
	}

	plaintext, err := decrypt(data, passphrase)
	if err != nil {
		return fmt.Errorf("failed to decrypt secrets: %w", err)
	}

	var secrets map[string]string
	if err := json.Unmarshal(plaintext, &secrets); err != nil {
		return fmt.Errorf("failed to parse secrets: %w", err)
	}

	secretsMu.Lock()
	loadedSecrets = secrets
	secretsMu.Unlock()
	return nil
}

// SaveSecrets encrypts the given secrets with the passphrase and writes
// them to the secrets file in dir, replacing the cached set.
func SaveSecrets(dir, passphrase string, secrets map[string]string) error {
	plaintext, err := json.Marshal(secrets)
	if err != nil {
		return fmt.Errorf("failed to marshal secrets: %w", err)
	}

	ciphertext, err := encrypt(plaintext, passphrase)
	if err != nil {
		return fmt.Errorf("failed to encrypt secrets: %w", err)
	}

	path := filepath.Join(dir, SecretsFilename)
	if err := os.WriteFile(path, ciphertext, 0o600); err != nil {
		return fmt.Errorf("failed to write secrets file: %w", err)
	}

	secretsMu.Lock()
	loadedSecrets = secrets
	secretsMu.Unlock()
	return nil
}

// GetSecret returns the named secret, preferring the decrypted secrets
// file over the environment. Returns empty string when absent in both.
func GetSecret(name string) string {
	secretsMu.RLock()
	v := loadedSecrets[name]
	secretsMu.RUnlock()
	if v != "" {
		return strings.TrimSpace(v)
	}
	return strings.TrimSpace(os.Getenv(name))
}

func deriveKey(passphrase string, salt []byte) ([]byte, error) {
	return scrypt.Key([]byte(passphrase), salt, scryptN, scryptR, scryptP, keySize)
}

func encrypt(plaintext []byte, passphrase string) ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	key, err := deriveKey(passphrase, salt)
	if err != nil {
		return nil, fmt.Errorf("key derivation failed: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	// Layout: salt || nonce || ciphertext.
	out := make([]byte, 0, saltSize+gcm.NonceSize()+len(plaintext)+gcm.Overhead())
	out = append(out, salt...)
	out = append(out, nonce...)
	return gcm.Seal(out, nonce, plaintext, nil), nil
}

func decrypt(data []byte, passphrase string) ([]byte, error) {
	if len(data) < saltSize {
		return nil, fmt.Errorf("secrets file too short")
	}
	salt := data[:saltSize]

	key, err := deriveKey(passphrase, salt)
	if err != nil {
		return nil, fmt.Errorf("key derivation failed: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	rest := data[saltSize:]
	if len(rest) < gcm.NonceSize() {
		return nil, fmt.Errorf("secrets file too short")
	}
	nonce, ciphertext := rest[:gcm.NonceSize()], rest[gcm.NonceSize():]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("wrong passphrase or corrupted secrets file")
	}
	return plaintext, nil
}
