// Package security protects provider API credentials at rest with
// AES-256-GCM under an application key.
package security

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/Mithrandiirr/hookwise/core"
)

const envelopePrefix = "hookwise.secret.v1:"

type envelope struct {
	KeyID      string `json:"kid"`
	Version    int    `json:"ver"`
	Algorithm  string `json:"alg"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

type Option func(*AppKeySealer)

func WithKeyID(id string) Option {
	return func(sealer *AppKeySealer) {
		if trimmed := strings.TrimSpace(id); trimmed != "" {
			sealer.keyID = trimmed
		}
	}
}

// AppKeySealer seals credentials under a single application key. Key
// material may be a 64-char hex string, a raw 16/24/32 byte key, or any
// other secret, which is stretched through SHA-256.
type AppKeySealer struct {
	key   []byte
	keyID string
}

func NewAppKeySealer(keyMaterial string, opts ...Option) (*AppKeySealer, error) {
	material := bytes.TrimSpace([]byte(keyMaterial))
	if len(material) == 0 {
		return nil, fmt.Errorf("security: key material is required")
	}
	sealer := &AppKeySealer{
		key:   normalizeKey(material),
		keyID: "app-key",
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(sealer)
	}
	return sealer, nil
}

func (s *AppKeySealer) Seal(plaintext string) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("security: sealer is nil")
	}
	if plaintext == "" {
		return nil, fmt.Errorf("security: plaintext is required")
	}
	gcm, err := s.cipher()
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("security: nonce generation failed: %w", err)
	}

	sealed := gcm.Seal(nil, nonce, []byte(plaintext), nil)
	data, err := json.Marshal(envelope{
		KeyID:      s.keyID,
		Version:    1,
		Algorithm:  "aes-256-gcm",
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(sealed),
	})
	if err != nil {
		return nil, fmt.Errorf("security: encode envelope: %w", err)
	}
	return append([]byte(envelopePrefix), data...), nil
}

func (s *AppKeySealer) Open(sealed []byte) (string, error) {
	if s == nil {
		return "", fmt.Errorf("security: sealer is nil")
	}
	if len(sealed) == 0 {
		return "", fmt.Errorf("security: sealed credential is required")
	}

	payload := strings.TrimPrefix(string(sealed), envelopePrefix)
	var parsed envelope
	if err := json.Unmarshal([]byte(payload), &parsed); err != nil {
		return "", fmt.Errorf("security: decode envelope: %w", err)
	}
	if parsed.KeyID != "" && parsed.KeyID != s.keyID {
		return "", fmt.Errorf("security: key id mismatch: got %q want %q", parsed.KeyID, s.keyID)
	}

	nonce, err := base64.StdEncoding.DecodeString(parsed.Nonce)
	if err != nil {
		return "", fmt.Errorf("security: decode nonce: %w", err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(parsed.Ciphertext)
	if err != nil {
		return "", fmt.Errorf("security: decode ciphertext: %w", err)
	}

	gcm, err := s.cipher()
	if err != nil {
		return "", err
	}
	if len(nonce) != gcm.NonceSize() {
		return "", fmt.Errorf("security: nonce size mismatch")
	}
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("security: decrypt credential: %w", err)
	}
	return string(plaintext), nil
}

func (s *AppKeySealer) cipher() (cipher.AEAD, error) {
	block, err := aes.NewCipher(s.key)
	if err != nil {
		return nil, fmt.Errorf("security: create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("security: create gcm: %w", err)
	}
	return gcm, nil
}

func normalizeKey(material []byte) []byte {
	if len(material) == 64 {
		if decoded, err := hex.DecodeString(string(material)); err == nil {
			return decoded
		}
	}
	if len(material) == 16 || len(material) == 24 || len(material) == 32 {
		key := make([]byte, len(material))
		copy(key, material)
		return key
	}
	sum := sha256.Sum256(material)
	return sum[:]
}

var _ core.CredentialSealer = (*AppKeySealer)(nil)
