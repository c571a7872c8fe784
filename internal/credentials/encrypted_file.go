package credentials

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/argon2"

	"github.com/kevensen/gollama-clippy/internal/logging"
)

const (
	credentialsFile = "credentials.enc"
	saltFile        = ".salt"
	saltSize        = 32
)

// EncryptedFileStore persists keys per provider in an AES-GCM encrypted file. The
// encryption key is derived with argon2 from the machine identity and a random salt.
type EncryptedFileStore struct {
	path     string
	provider string
	key      []byte
	mu       sync.RWMutex
	logger   *logging.Logger
}

type credentialData struct {
	Providers map[string]string `json:"providers"`
}

// NewEncryptedFileStore opens the store in dir for provider, creating dir if needed
func NewEncryptedFileStore(dir, provider string) (*EncryptedFileStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create credentials directory %s: %w", dir, err)
	}

	key, err := deriveEncryptionKey(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to derive credentials key: %w", err)
	}

	return &EncryptedFileStore{
		path:     filepath.Join(dir, credentialsFile),
		provider: provider,
		key:      key,
		logger:   logging.WithComponent("credentials").With("provider", provider),
	}, nil
}

// Get returns the stored key. A file that cannot be decrypted is treated as empty.
func (e *EncryptedFileStore) Get() (string, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	data, err := e.load()
	if err != nil {
		e.logger.Warn("Failed to read credentials file", "path", e.path, "error", err)
		return "", false
	}

	secret, ok := data.Providers[e.provider]
	return secret, ok && secret != ""
}

func (e *EncryptedFileStore) Set(secret string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	data, err := e.load()
	if err != nil {
		e.logger.Warn("Replacing unreadable credentials file", "path", e.path, "error", err)
		data = &credentialData{}
	}
	if data.Providers == nil {
		data.Providers = make(map[string]string)
	}
	data.Providers[e.provider] = secret

	if err := e.save(data); err != nil {
		return err
	}
	e.logger.Info("Stored API key")
	return nil
}

func (e *EncryptedFileStore) Clear() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	data, err := e.load()
	if err != nil {
		data = &credentialData{}
	}
	if _, ok := data.Providers[e.provider]; !ok && err == nil {
		return nil
	}
	delete(data.Providers, e.provider)

	if err := e.save(data); err != nil {
		return err
	}
	e.logger.Info("Cleared API key")
	return nil
}

func (e *EncryptedFileStore) load() (*credentialData, error) {
	encrypted, err := os.ReadFile(e.path)
	if os.IsNotExist(err) {
		return &credentialData{Providers: make(map[string]string)}, nil
	}
	if err != nil {
		return nil, err
	}

	plaintext, err := e.decrypt(encrypted)
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}

	var data credentialData
	if err := json.Unmarshal(plaintext, &data); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}
	return &data, nil
}

func (e *EncryptedFileStore) save(data *credentialData) error {
	plaintext, err := json.Marshal(data)
	if err != nil {
		return err
	}

	encrypted, err := e.encrypt(plaintext)
	if err != nil {
		return err
	}

	tmpPath := e.path + ".tmp"
	if err := os.WriteFile(tmpPath, encrypted, 0600); err != nil {
		return fmt.Errorf("failed to write credentials file: %w", err)
	}
	return os.Rename(tmpPath, e.path)
}

func (e *EncryptedFileStore) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(e.key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func (e *EncryptedFileStore) encrypt(plaintext []byte) ([]byte, error) {
	gcm, err := e.gcm()
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func (e *EncryptedFileStore) decrypt(ciphertext []byte) ([]byte, error) {
	gcm, err := e.gcm()
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, fmt.Errorf("ciphertext too short")
	}

	nonce, ciphertext := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ciphertext, nil)
}

func deriveEncryptionKey(dir string) ([]byte, error) {
	salt, err := getOrCreateSalt(filepath.Join(dir, saltFile))
	if err != nil {
		return nil, err
	}

	username := os.Getenv("USER")
	if username == "" {
		username = os.Getenv("USERNAME")
	}
	return argon2.IDKey([]byte(machineIdentifier()+username), salt, 1, 64*1024, 4, 32), nil
}

func getOrCreateSalt(path string) ([]byte, error) {
	salt, err := os.ReadFile(path)
	if err == nil && len(salt) == saltSize {
		return salt, nil
	}

	salt = make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, salt, 0600); err != nil {
		return nil, err
	}
	return salt, nil
}

func machineIdentifier() string {
	for _, path := range []string{"/etc/machine-id", "/var/lib/dbus/machine-id"} {
		if data, err := os.ReadFile(path); err == nil && len(data) > 0 {
			return string(data)
		}
	}

	hostname, _ := os.Hostname()
	sum := sha256.Sum256([]byte(hostname + os.Getenv("HOME") + os.Getenv("USER")))
	return hex.EncodeToString(sum[:])
}

// DefaultDir returns the directory holding the encrypted credentials file
func DefaultDir() string {
	return filepath.Join(filepath.Dir(logging.DefaultDir()), "credentials")
}
