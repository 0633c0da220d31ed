package secret

import (
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

const keychainService = "ublockly-repository"

// security exits with 44 when the item does not exist.
const errItemNotFound = 44

// KeychainStore keeps repository passwords in the macOS login keychain as
// generic passwords, one per key, under a single service name.
type KeychainStore struct {
	Service string
}

func NewKeychainStore() *KeychainStore {
	return &KeychainStore{Service: keychainService}
}

// Default returns the keychain on macOS and an in-memory store elsewhere,
// both wrapped so UBLOCKLY_SECRET_* variables take precedence.
func Default() SecretStore {
	if runtime.GOOS == "darwin" {
		return &EnvStore{Inner: NewKeychainStore()}
	}
	return &EnvStore{Inner: NewMemoryStore()}
}

func (k *KeychainStore) security(args ...string) ([]byte, error) {
	out, err := exec.Command("security", args...).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == errItemNotFound {
			return nil, errNotFound
		}
		if exitErr != nil && len(exitErr.Stderr) > 0 {
			return nil, fmt.Errorf("security %s: %s: %w", args[0], strings.TrimSpace(string(exitErr.Stderr)), err)
		}
		return nil, fmt.Errorf("security %s: %w", args[0], err)
	}
	return out, nil
}

var errNotFound = errors.New("keychain item not found")

// Set stores value under key, updating an existing item in place.
func (k *KeychainStore) Set(key string, value []byte) error {
	_, err := k.security("add-generic-password", "-U", "-a", key, "-s", k.Service, "-w", string(value))
	return err
}

// Get returns nil, nil for a missing item.
func (k *KeychainStore) Get(key string) ([]byte, error) {
	out, err := k.security("find-generic-password", "-a", key, "-s", k.Service, "-w")
	if errors.Is(err, errNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return []byte(strings.TrimRight(string(out), "\n")), nil
}

func (k *KeychainStore) Delete(key string) error {
	_, err := k.security("delete-generic-password", "-a", key, "-s", k.Service)
	if errors.Is(err, errNotFound) {
		return nil
	}
	return err
}
