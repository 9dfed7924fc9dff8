package session_test

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-booking-auth/session"
)

func TestPassphraseCipher_RoundTrip(t *testing.T) {
	c := session.NewPassphraseCipher(session.DefaultPassphrase)
	assert.True(t, c.UsesDefaultKey())

	for _, plain := range []string{
		"",
		"x",
		"exactly sixteen!",
		`{"IsLoggedIn":true,"UserName":"Søren Ærø","Roles":[]}`,
	} {
		blob, err := c.Encrypt([]byte(plain))
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(blob, "U2FsdGVkX1"))

		raw, err := base64.StdEncoding.DecodeString(blob)
		require.NoError(t, err)
		assert.Zero(t, (len(raw)-16)%16)

		got, err := c.Decrypt(blob)
		require.NoError(t, err)
		assert.Equal(t, plain, string(got))
	}
}

func TestPassphraseCipher_SaltsEachBlob(t *testing.T) {
	c := session.NewPassphraseCipher("k")
	a, err := c.Encrypt([]byte("same"))
	require.NoError(t, err)
	b, err := c.Encrypt([]byte("same"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestPassphraseCipher_RejectsBadBlobs(t *testing.T) {
	c := session.NewPassphraseCipher("k")

	_, err := c.Decrypt("%%%")
	assert.True(t, errors.IsCategory(err, errors.CategoryBadInput))

	_, err = c.Decrypt(base64.StdEncoding.EncodeToString([]byte("NotSalted_1234567890123456")))
	assert.True(t, errors.IsCategory(err, errors.CategoryBadInput))

	blob, err := c.Encrypt([]byte("payload"))
	require.NoError(t, err)
	got, err := session.NewPassphraseCipher("other").Decrypt(blob)
	if err == nil {
		assert.NotEqual(t, "payload", string(got))
	}
}

func TestPassphraseCipher_EmptyPassphraseUsesDefault(t *testing.T) {
	assert.True(t, session.NewPassphraseCipher("").UsesDefaultKey())
	assert.False(t, session.NewPassphraseCipher("custom").UsesDefaultKey())
}

func TestGCMCipher_RoundTripAndTamper(t *testing.T) {
	restore := session.GCMIterations
	session.GCMIterations = 1000
	t.Cleanup(func() { session.GCMIterations = restore })

	c := session.NewGCMCipher("a better passphrase")
	assert.False(t, c.UsesDefaultKey())

	blob, err := c.Encrypt([]byte("header.payload.signature"))
	require.NoError(t, err)

	got, err := c.Decrypt(blob)
	require.NoError(t, err)
	assert.Equal(t, "header.payload.signature", string(got))

	raw, err := base64.StdEncoding.DecodeString(blob)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0x01
	_, err = c.Decrypt(base64.StdEncoding.EncodeToString(raw))
	assert.Error(t, err)

	_, err = session.NewGCMCipher("wrong").Decrypt(blob)
	assert.Error(t, err)

	_, err = c.Decrypt(base64.StdEncoding.EncodeToString([]byte("short")))
	assert.Error(t, err)
}
