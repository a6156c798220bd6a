package secrets

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCipher(t *testing.T) *Cipher {
	t.Helper()
	c, err := New("test-secret", "test-salt")
	require.NoError(t, err)
	return c
}

func TestCipher_RoundTrip(t *testing.T) {
	t.Parallel()
	c := newTestCipher(t)

	for _, in := range []string{"123-45-6789", "p@ssw0rd!", "x", strings.Repeat("long", 100), "ünïcødé"} {
		enc, err := c.Encrypt(in)
		require.NoError(t, err)
		assert.True(t, IsEncrypted(enc), enc)
		assert.NotContains(t, enc, in)

		out, err := c.Decrypt(enc)
		require.NoError(t, err)
		assert.Equal(t, in, out)
	}
}

func TestCipher_FreshIVPerCall(t *testing.T) {
	t.Parallel()
	c := newTestCipher(t)

	a, err := c.Encrypt("123-45-6789")
	require.NoError(t, err)
	b, err := c.Encrypt("123-45-6789")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.NotEqual(t, strings.Split(a, ":")[0], strings.Split(b, ":")[0])
}

func TestCipher_TamperDetected(t *testing.T) {
	t.Parallel()
	c := newTestCipher(t)

	enc, err := c.Encrypt("123-45-6789")
	require.NoError(t, err)
	parts := strings.Split(enc, ":")

	// swapping in another record's iv must break authentication
	other, err := c.Encrypt("987-65-4321")
	require.NoError(t, err)
	swapped := strings.Split(other, ":")[0] + ":" + parts[1] + ":" + parts[2]
	_, err = c.Decrypt(swapped)
	assert.Error(t, err)

	_, err = c.Decrypt("nothex:zz:yy")
	assert.ErrorIs(t, err, ErrMalformed)
	_, err = c.Decrypt("abc")
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestCipher_WrongKey(t *testing.T) {
	t.Parallel()
	c := newTestCipher(t)
	other, err := New("another-secret", "test-salt")
	require.NoError(t, err)

	enc, err := c.Encrypt("secret")
	require.NoError(t, err)
	_, err = other.Decrypt(enc)
	assert.Error(t, err)
}

func TestCipher_Empty(t *testing.T) {
	t.Parallel()
	c := newTestCipher(t)

	enc, err := c.Encrypt("")
	require.NoError(t, err)
	assert.Empty(t, enc)
	dec, err := c.Decrypt("")
	require.NoError(t, err)
	assert.Empty(t, dec)

	_, err = New("  ", "salt")
	assert.ErrorIs(t, err, ErrNoKey)
}

func TestMaskSSN(t *testing.T) {
	t.Parallel()
	c := newTestCipher(t)

	enc, err := c.Encrypt("123-45-6789")
	require.NoError(t, err)
	masked, err := c.MaskSSN(enc)
	require.NoError(t, err)
	assert.Equal(t, "***-**-6789", masked)

	assert.Equal(t, "***-**-4321", Mask("987654321"))
	assert.Equal(t, "***-**-****", Mask("12"))
}
