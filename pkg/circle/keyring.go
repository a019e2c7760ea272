// Package circle implements membrane crossing: the keyring that records
// which circles an identity may sync with, the router that decides which
// cloud circles receive an entity change, the bridge that queues those
// changes off the store's save hooks, and sealed-box invitations for
// sharing circle keys.
package circle

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Sync policies a circle binding can carry. Unknown circles are treated as
// local-only.
const (
	PolicyLocalOnly = "local-only"
	PolicyCloud     = "cloud"
)

const keyringVersion = 1

// Binding is one entry in the keyring: the key to cross a single circle's
// membrane.
type Binding struct {
	SyncPolicy       string `json:"sync_policy"`
	EncryptionKeyB64 string `json:"encryption_key_b64,omitempty"`
	Default          bool   `json:"default,omitempty"`
}

// EncryptionKey decodes the binding's base64 circle key. Returns nil when
// the binding carries no key.
func (b Binding) EncryptionKey() ([]byte, error) {
	if b.EncryptionKeyB64 == "" {
		return nil, nil
	}
	key, err := base64.StdEncoding.DecodeString(b.EncryptionKeyB64)
	if err != nil {
		return nil, fmt.Errorf("decoding circle key: %w", err)
	}
	return key, nil
}

// Identity names who holds this keyring.
type Identity struct {
	UserID         string `json:"user_id"`
	SigningKeyPath string `json:"signing_key_path,omitempty"`
}

// Keyring holds an identity and its circle bindings.
type Keyring struct {
	Version  int                `json:"version"`
	Identity Identity           `json:"identity"`
	Bindings map[string]Binding `json:"bindings"`
}

// NewKeyring creates an empty keyring for the given user.
func NewKeyring(userID string) *Keyring {
	return &Keyring{
		Version:  keyringVersion,
		Identity: Identity{UserID: userID},
		Bindings: map[string]Binding{},
	}
}

// LoadKeyring reads a keyring file. A missing file yields an empty keyring
// for the anonymous identity rather than an error.
func LoadKeyring(path string) (*Keyring, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return NewKeyring("anonymous"), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading keyring: %w", err)
	}

	var k Keyring
	if err := json.Unmarshal(raw, &k); err != nil {
		return nil, fmt.Errorf("parsing keyring: %w", err)
	}
	if k.Version != keyringVersion {
		return nil, fmt.Errorf("unsupported keyring version: %d", k.Version)
	}
	if k.Bindings == nil {
		k.Bindings = map[string]Binding{}
	}
	return &k, nil
}

// Save writes the keyring as indented JSON, creating parent directories as
// needed.
func (k *Keyring) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating keyring directory: %w", err)
	}

	raw, err := json.MarshalIndent(k, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding keyring: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return fmt.Errorf("writing keyring: %w", err)
	}
	return nil
}

// Binding returns the binding for a circle and whether one exists.
func (k *Keyring) Binding(circleID string) (Binding, bool) {
	b, ok := k.Bindings[circleID]
	return b, ok
}

// CanCross reports whether the keyring holds any binding for the circle.
func (k *Keyring) CanCross(circleID string) bool {
	_, ok := k.Bindings[circleID]
	return ok
}

// IsLocalOnly reports whether changes in the circle must stay on this
// machine. Absent bindings are local-only.
func (k *Keyring) IsLocalOnly(circleID string) bool {
	b, ok := k.Bindings[circleID]
	if !ok {
		return true
	}
	return b.SyncPolicy != PolicyCloud
}

// AddBinding inserts or replaces a binding. A binding marked default clears
// the default flag on every other binding.
func (k *Keyring) AddBinding(circleID string, b Binding) {
	if b.SyncPolicy == "" {
		b.SyncPolicy = PolicyLocalOnly
	}
	if b.Default {
		for id, other := range k.Bindings {
			if other.Default {
				other.Default = false
				k.Bindings[id] = other
			}
		}
	}
	k.Bindings[circleID] = b
}

// DefaultCircle returns the circle id flagged as default, or "".
func (k *Keyring) DefaultCircle() string {
	for id, b := range k.Bindings {
		if b.Default {
			return id
		}
	}
	return ""
}

// CloudCircles lists the circle ids bound with the cloud sync policy.
func (k *Keyring) CloudCircles() []string {
	var ids []string
	for id, b := range k.Bindings {
		if b.SyncPolicy == PolicyCloud {
			ids = append(ids, id)
		}
	}
	return ids
}
