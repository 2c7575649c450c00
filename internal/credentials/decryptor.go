package credentials

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"pixel-relay/internal/models"
)

// DecryptError marks a credential bundle that could not be decrypted. It is a
// terminal per-destination failure; the pipeline never retries it.
type DecryptError struct {
	Platform string
	Err      error
}

func (e *DecryptError) Error() string {
	return fmt.Sprintf("decrypt %s credentials: %v", e.Platform, e.Err)
}

func (e *DecryptError) Unwrap() error { return e.Err }

// AESDecryptor decrypts credential bundles stored by the admin app:
// base64(nonce || AES-256-GCM ciphertext) of the JSON-encoded bundle.
type AESDecryptor struct {
	key []byte
}

// NewAESDecryptor takes the hex-encoded 32-byte key shared with the admin app.
func NewAESDecryptor(hexKey string) (*AESDecryptor, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("credential key is not valid hex: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("credential key must be 32 bytes, got %d", len(key))
	}
	return &AESDecryptor{key: key}, nil
}

// Decrypt opens a config's encrypted credential bundle.
func (d *AESDecryptor) Decrypt(cfg *models.DestinationConfig, platform string) (*models.CredentialBundle, error) {
	plaintext, err := d.open(cfg.EncryptedCredentials)
	if err != nil {
		return nil, &DecryptError{Platform: platform, Err: err}
	}

	var bundle models.CredentialBundle
	if err := json.Unmarshal(plaintext, &bundle); err != nil {
		return nil, &DecryptError{Platform: platform, Err: fmt.Errorf("bundle decode: %w", err)}
	}
	return &bundle, nil
}

func (d *AESDecryptor) open(encoded string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("base64 decode: %w", err)
	}

	block, err := aes.NewCipher(d.key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(raw) < gcm.NonceSize() {
		return nil, fmt.Errorf("ciphertext shorter than nonce")
	}

	nonce, ciphertext := raw[:gcm.NonceSize()], raw[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ciphertext, nil)
}

// Encrypt seals a credential bundle the way the admin app does. Used by tests
// and provisioning tooling.
func (d *AESDecryptor) Encrypt(bundle *models.CredentialBundle) (string, error) {
	plaintext, err := json.Marshal(bundle)
	if err != nil {
		return "", err
	}

	block, err := aes.NewCipher(d.key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	sealed := gcm.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}
