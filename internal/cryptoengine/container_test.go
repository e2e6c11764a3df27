package cryptoengine_test

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zynqcloud/securevault/internal/cryptoengine"
	"github.com/zynqcloud/securevault/internal/vaulterr"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key, err := cryptoengine.GenerateUserKey()
	require.NoError(t, err)

	cases := [][]byte{
		[]byte(""),
		[]byte("hello, vault"),
		bytes.Repeat([]byte{0x41}, 1024),
	}
	for _, plaintext := range cases {
		container, err := cryptoengine.Encrypt(plaintext, key)
		require.NoError(t, err)
		got, err := cryptoengine.Decrypt(container, key)
		require.NoError(t, err)
		require.Equal(t, plaintext, got)
	}
}

func TestContainerFormat(t *testing.T) {
	key, err := cryptoengine.GenerateUserKey()
	require.NoError(t, err)

	plaintext := bytes.Repeat([]byte{0x41}, 1024)
	container, err := cryptoengine.Encrypt(plaintext, key)
	require.NoError(t, err)

	require.Equal(t, 96+len(plaintext), len(container))
	require.NotEqual(t, bytes.Repeat([]byte{0}, 64), container[0:64], "salt should be random, not zero")
}

func TestDecryptWithWrongKeyFailsIntegrity(t *testing.T) {
	key1, err := cryptoengine.GenerateUserKey()
	require.NoError(t, err)
	key2, err := cryptoengine.GenerateUserKey()
	require.NoError(t, err)

	container, err := cryptoengine.Encrypt([]byte("secret bytes"), key1)
	require.NoError(t, err)

	_, err = cryptoengine.Decrypt(container, key2)
	require.Error(t, err)
	require.True(t, vaulterr.Is(err, vaulterr.IntegrityFailure))
}

func TestDecryptWithTamperedByteFailsIntegrity(t *testing.T) {
	key, err := cryptoengine.GenerateUserKey()
	require.NoError(t, err)

	container, err := cryptoengine.Encrypt([]byte("a message of some length"), key)
	require.NoError(t, err)

	for i := range container {
		tampered := make([]byte, len(container))
		copy(tampered, container)
		tampered[i] ^= 0xFF

		_, err := cryptoengine.Decrypt(tampered, key)
		require.Errorf(t, err, "byte %d mutation should break decryption", i)
		require.True(t, vaulterr.Is(err, vaulterr.IntegrityFailure))
	}
}

func TestDecryptTruncatedContainer(t *testing.T) {
	key, err := cryptoengine.GenerateUserKey()
	require.NoError(t, err)

	container, err := cryptoengine.Encrypt([]byte("short"), key)
	require.NoError(t, err)

	_, err = cryptoengine.Decrypt(container[:50], key)
	require.Error(t, err)
	require.True(t, vaulterr.Is(err, vaulterr.IntegrityFailure))
}

func TestHashAndFileChecksum(t *testing.T) {
	data := bytes.Repeat([]byte{0x41}, 1024)
	hexHash := cryptoengine.Hash(data)
	require.Len(t, hexHash, 64)

	path := t.TempDir() + "/f.bin"
	require.NoError(t, os.WriteFile(path, data, 0o640))

	checksum, err := cryptoengine.FileChecksum(path)
	require.NoError(t, err)
	require.Equal(t, hexHash, checksum)
}

func TestPasswordHashAndVerify(t *testing.T) {
	digest, err := cryptoengine.PasswordHash("Aa1!aaaa")
	require.NoError(t, err)
	require.True(t, cryptoengine.PasswordVerify("Aa1!aaaa", digest))
	require.False(t, cryptoengine.PasswordVerify("wrong-password", digest))
}

func TestRandomTokenHex(t *testing.T) {
	tok1, err := cryptoengine.RandomTokenHex(32)
	require.NoError(t, err)
	tok2, err := cryptoengine.RandomTokenHex(32)
	require.NoError(t, err)

	require.Len(t, tok1, 64)
	require.NotEqual(t, tok1, tok2)
}
