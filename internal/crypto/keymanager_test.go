package crypto

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKeyHex = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func TestEncryptDecryptRoundTrip(t *testing.T) {
	blob, err := EncryptKey("0x"+testKeyHex, "hunter2")
	require.NoError(t, err)

	got, err := DecryptKey(blob, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, testKeyHex, got)

	_, err = DecryptKey(blob, "wrong")
	assert.Error(t, err)
}

func TestEncryptKey_RejectsBadInput(t *testing.T) {
	_, err := EncryptKey(testKeyHex, "")
	assert.Error(t, err, "empty password")

	_, err = EncryptKey("abcd", "pw")
	assert.Error(t, err, "short key")

	_, err = EncryptKey("zz", "pw")
	assert.Error(t, err, "non-hex key")
}

func TestLoadKey_RawTakesPrecedence(t *testing.T) {
	key, err := LoadKey(KeyConfig{RawPrivateKey: "0x" + testKeyHex})
	require.NoError(t, err)

	want, err := ethcrypto.HexToECDSA(testKeyHex)
	require.NoError(t, err)
	assert.Equal(t, want.D, key.D)
}

func TestLoadKey_FromEncryptedFile(t *testing.T) {
	blob, err := EncryptKey(testKeyHex, "pw")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "wallet.json")
	require.NoError(t, os.WriteFile(path, blob, 0o600))

	key, err := LoadKey(KeyConfig{EncryptedKeyPath: path, KeyPassword: "pw"})
	require.NoError(t, err)
	assert.Equal(t, testKeyHex, hex.EncodeToString(ethcrypto.FromECDSA(key)))
}

func TestLoadKey_NoSourceConfigured(t *testing.T) {
	_, err := LoadKey(KeyConfig{})
	assert.Error(t, err)
}
