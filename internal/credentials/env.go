package credentials

import (
	"errors"
	"io/fs"
	"os"
	"sync"

	"github.com/joho/godotenv"

	"github.com/kevensen/gollama-clippy/internal/logging"
)

// LoadDotEnv loads environment files without overriding variables that are already
// set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return err
		}
		logging.WithComponent("credentials").Debug("Loaded environment file", "path", p)
	}
	return nil
}

// EnvStore falls back to an environment variable when the wrapped store is empty.
// Once the environment key has been cleared after a rejection it is not offered again.
type EnvStore struct {
	Store
	Var string

	mu       sync.Mutex
	rejected bool
}

// NewEnvStore wraps inner with a fallback to the variable name
func NewEnvStore(inner Store, name string) *EnvStore {
	return &EnvStore{Store: inner, Var: name}
}

func (e *EnvStore) Get() (string, bool) {
	if secret, ok := e.Store.Get(); ok {
		return secret, true
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.rejected || e.Var == "" {
		return "", false
	}
	secret := os.Getenv(e.Var)
	return secret, secret != ""
}

func (e *EnvStore) Set(secret string) error {
	e.mu.Lock()
	e.rejected = false
	e.mu.Unlock()
	return e.Store.Set(secret)
}

func (e *EnvStore) Clear() error {
	e.mu.Lock()
	e.rejected = true
	e.mu.Unlock()
	return e.Store.Clear()
}
