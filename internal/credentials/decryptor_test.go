package credentials

import (
	"strings"
	"testing"

	"pixel-relay/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKeyHex = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func TestDecryptRoundTrip(t *testing.T) {
	d, err := NewAESDecryptor(testKeyHex)
	require.NoError(t, err)

	bundle := &models.CredentialBundle{
		MeasurementID: "G-XYZ",
		APISecret:     "topsecret",
	}
	sealed, err := d.Encrypt(bundle)
	require.NoError(t, err)

	cfg := &models.DestinationConfig{EncryptedCredentials: sealed}
	got, err := d.Decrypt(cfg, models.PlatformGA4)
	require.NoError(t, err)
	assert.Equal(t, bundle, got)
}

func TestDecryptWrongKey(t *testing.T) {
	encryptor, err := NewAESDecryptor(testKeyHex)
	require.NoError(t, err)
	sealed, err := encryptor.Encrypt(&models.CredentialBundle{PixelID: "p"})
	require.NoError(t, err)

	otherKey := strings.Repeat("ff", 32)
	d, err := NewAESDecryptor(otherKey)
	require.NoError(t, err)

	_, err = d.Decrypt(&models.DestinationConfig{EncryptedCredentials: sealed}, models.PlatformMeta)
	require.Error(t, err)

	var decErr *DecryptError
	require.ErrorAs(t, err, &decErr)
	assert.Equal(t, models.PlatformMeta, decErr.Platform)
}

func TestDecryptGarbageCiphertext(t *testing.T) {
	d, err := NewAESDecryptor(testKeyHex)
	require.NoError(t, err)

	_, err = d.Decrypt(&models.DestinationConfig{EncryptedCredentials: "not base64!!"}, models.PlatformTikTok)
	var decErr *DecryptError
	require.ErrorAs(t, err, &decErr)
}

func TestNewAESDecryptorRejectsBadKeys(t *testing.T) {
	_, err := NewAESDecryptor("zzzz")
	assert.Error(t, err)

	_, err = NewAESDecryptor("abcd") // 2 bytes, not 32
	assert.Error(t, err)
}
