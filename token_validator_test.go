package auth_test

import (
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-booking-auth"
)

func TestHMACValidator_Malformed(t *testing.T) {
	v := auth.NewHMACValidator(auth.ValidatorOptions{SigningKey: []byte(testKey)}, nil)

	for _, raw := range []string{"", "abc", "a.b", "a.b.c.d"} {
		_, err := v.Validate(raw)
		require.Error(t, err, raw)
		assert.True(t, auth.IsMalformedError(err), "%q: %v", raw, err)
	}
}

func TestHMACValidator_SignedGarbage(t *testing.T) {
	v := auth.NewHMACValidator(auth.ValidatorOptions{SigningKey: []byte(testKey)}, nil)

	signing := "bm90LWpzb24.bm90LWpzb24"
	sig, err := jwt.SigningMethodHS256.Sign(signing, []byte(testKey))
	require.NoError(t, err)

	_, err = v.Validate(signing + "." + base64.RawURLEncoding.EncodeToString(sig))
	assert.True(t, auth.IsMalformedError(err), "%v", err)
}

func TestHMACValidator_RejectsOtherAlgorithms(t *testing.T) {
	now := time.Now()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{
		"sub": alice.id,
		"exp": now.Add(time.Hour).Unix(),
	}).SignedString([]byte(testKey))
	require.NoError(t, err)

	v := auth.NewHMACValidator(auth.ValidatorOptions{SigningKey: []byte(testKey)}, nil)
	_, err = v.Validate(token)
	assert.True(t, auth.IsTokenError(err))
}

func TestTokenValidatorFunc(t *testing.T) {
	var nilFn auth.TokenValidatorFunc
	_, err := nilFn.Validate("x.y.z")
	assert.ErrorIs(t, err, auth.ErrUnauthorized)

	want := &auth.JWTClaims{UID: "u1"}
	fn := auth.TokenValidatorFunc(func(raw string) (auth.AuthClaims, error) {
		if raw == "good" {
			return want, nil
		}
		return nil, errors.New("nope")
	})

	claims, err := fn.Validate("good")
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID())

	_, err = fn.Validate("bad")
	assert.Error(t, err)
}
