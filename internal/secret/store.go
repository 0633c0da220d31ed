package secret

import (
	"os"
	"strings"
	"sync"
)

// SecretStore keeps repository passwords out of the workspace database.
type SecretStore interface {
	// Set stores a secret value under the given key.
	Set(key string, value []byte) error

	// Get retrieves the secret value for the given key.
	// Returns empty slice and nil error if key does not exist.
	Get(key string) ([]byte, error)

	// Delete removes the secret for the given key.
	Delete(key string) error
}

// EnvPrefix is prepended to the upper-cased key when reading secrets from
// the environment, so repository "ab-12" maps to UBLOCKLY_SECRET_AB_12.
const EnvPrefix = "UBLOCKLY_SECRET_"

// EnvVar returns the environment variable name for key.
func EnvVar(key string) string {
	var b strings.Builder
	b.WriteString(EnvPrefix)
	for _, r := range strings.ToUpper(key) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

// EnvStore reads secrets from environment variables and falls back to an
// inner store for writes and misses. Inner may be nil.
type EnvStore struct {
	Inner SecretStore
}

func (e *EnvStore) Get(key string) ([]byte, error) {
	if v, ok := os.LookupEnv(EnvVar(key)); ok {
		return []byte(v), nil
	}
	if e.Inner == nil {
		return nil, nil
	}
	return e.Inner.Get(key)
}

func (e *EnvStore) Set(key string, value []byte) error {
	if e.Inner == nil {
		return nil
	}
	return e.Inner.Set(key, value)
}

func (e *EnvStore) Delete(key string) error {
	if e.Inner == nil {
		return nil
	}
	return e.Inner.Delete(key)
}

// MemoryStore is an in-process store used on hosts without a keychain.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (m *MemoryStore) Set(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *MemoryStore) Get(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[key], nil
}

func (m *MemoryStore) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}
