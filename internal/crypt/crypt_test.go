package crypt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// Low work factor keeps scrypt fast in tests.
var testCipher = Cipher{WorkFactor: 10}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	data := []byte{0x00, 0x01, 0xff, 'k', 'e', 'y', '\n'}

	ct, err := testCipher.Encrypt(data, "hunter2")
	require.NoError(t, err)
	require.NotEqual(t, data, ct)

	pt, err := testCipher.Decrypt(ct, "hunter2")
	require.NoError(t, err)
	require.Equal(t, data, pt)
}

func TestDecrypt_WrongPassphrase(t *testing.T) {
	ct, err := testCipher.Encrypt([]byte("secret"), "right")
	require.NoError(t, err)

	_, err = testCipher.Decrypt(ct, "wrong")
	require.ErrorIs(t, err, ErrWrongKey)
}

func TestDecrypt_Corrupt(t *testing.T) {
	_, err := testCipher.Decrypt([]byte("not an age file"), "pass")
	require.ErrorIs(t, err, ErrCorrupt)
}

func TestEmptyPassphrase(t *testing.T) {
	_, err := testCipher.Encrypt([]byte("x"), "")
	require.ErrorIs(t, err, ErrEmptyPassphrase)
	_, err = testCipher.Decrypt([]byte("x"), "")
	require.ErrorIs(t, err, ErrEmptyPassphrase)
}

func TestHashName(t *testing.T) {
	h := HashName("ssh/id_ed25519")
	require.Equal(t, h, HashName("ssh/id_ed25519"))
	require.NotEqual(t, h, HashName("ssh/config"))
	require.Len(t, h, 43)
	require.False(t, strings.ContainsAny(h, "+/="))
}

func TestEncryptedPath(t *testing.T) {
	require.Equal(t, "ssh/config.age", EncryptedPath("ssh/config", false))

	hidden := EncryptedPath("ssh/id_ed25519", true)
	require.Equal(t, HashName("ssh")+"/"+HashName("ssh/id_ed25519")+".age", hidden)
	require.NotContains(t, hidden, "id_ed25519")

	require.Equal(t, HashName("token")+".age", EncryptedPath("token", true))
}

func TestStatic(t *testing.T) {
	got, err := Static("pw").Passphrase(true)
	require.NoError(t, err)
	require.Equal(t, "pw", got)

	_, err = Static("").Passphrase(false)
	require.ErrorIs(t, err, ErrEmptyPassphrase)
}
