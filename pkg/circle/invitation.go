package circle

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/crypto/nacl/box"
)

const invitationVersion = 1

// Invitation carries a circle's symmetric key sealed to one recipient. Only
// the holder of the matching private key can recover the circle key.
type Invitation struct {
	Username     string
	CircleID     string
	EncryptedKey []byte
	CreatedAt    time.Time
}

type invitationFile struct {
	Version         int    `json:"version"`
	Username        string `json:"username"`
	CircleID        string `json:"circle_id"`
	EncryptedKeyB64 string `json:"encrypted_key_b64"`
	CreatedAt       string `json:"created_at"`
}

// GenerateKeypair creates a fresh X25519 keypair for sealed-box exchange.
func GenerateKeypair() (publicKey, privateKey *[32]byte, err error) {
	publicKey, privateKey, err = box.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("generating keypair: %w", err)
	}
	return publicKey, privateKey, nil
}

// CreateInvitation seals the circle key to the recipient's public key.
func CreateInvitation(username, circleID string, circleKey []byte, recipientPublicKey *[32]byte) (*Invitation, error) {
	if username == "" || circleID == "" {
		return nil, fmt.Errorf("username and circle id are required")
	}
	if len(circleKey) == 0 {
		return nil, fmt.Errorf("circle key is empty")
	}

	sealed, err := box.SealAnonymous(nil, circleKey, recipientPublicKey, rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("sealing circle key: %w", err)
	}

	return &Invitation{
		Username:     username,
		CircleID:     circleID,
		EncryptedKey: sealed,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// Decrypt opens the sealed circle key with the recipient's keypair. Any
// other keypair fails.
func (inv *Invitation) Decrypt(publicKey, privateKey *[32]byte) ([]byte, error) {
	circleKey, ok := box.OpenAnonymous(nil, inv.EncryptedKey, publicKey, privateKey)
	if !ok {
		return nil, fmt.Errorf("decrypting invitation for %s: key mismatch", inv.CircleID)
	}
	return circleKey, nil
}

// WriteFile stores the invitation at <accessDir>/<circle_id>/<username>.enc
// and returns the path.
func (inv *Invitation) WriteFile(accessDir string) (string, error) {
	dir := filepath.Join(accessDir, inv.CircleID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating circle access directory: %w", err)
	}

	payload := invitationFile{
		Version:         invitationVersion,
		Username:        inv.Username,
		CircleID:        inv.CircleID,
		EncryptedKeyB64: base64.StdEncoding.EncodeToString(inv.EncryptedKey),
		CreatedAt:       inv.CreatedAt.Format(time.RFC3339),
	}

	raw, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding invitation: %w", err)
	}

	path := filepath.Join(dir, inv.Username+".enc")
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return "", fmt.Errorf("writing invitation: %w", err)
	}
	return path, nil
}

// LoadInvitation reads an invitation file.
func LoadInvitation(path string) (*Invitation, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading invitation: %w", err)
	}

	var payload invitationFile
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("parsing invitation: %w", err)
	}
	if payload.Version != invitationVersion {
		return nil, fmt.Errorf("unsupported invitation version: %d", payload.Version)
	}

	sealed, err := base64.StdEncoding.DecodeString(payload.EncryptedKeyB64)
	if err != nil {
		return nil, fmt.Errorf("decoding invitation key: %w", err)
	}

	createdAt, err := time.Parse(time.RFC3339, payload.CreatedAt)
	if err != nil {
		createdAt = time.Time{}
	}

	return &Invitation{
		Username:     payload.Username,
		CircleID:     payload.CircleID,
		EncryptedKey: sealed,
		CreatedAt:    createdAt,
	}, nil
}

// Members lists usernames with an invitation under the circle's access
// directory.
func Members(accessDir, circleID string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(accessDir, circleID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing circle members: %w", err)
	}

	var members []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".enc") {
			continue
		}
		members = append(members, strings.TrimSuffix(name, ".enc"))
	}
	return members, nil
}
