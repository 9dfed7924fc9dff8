package session_test

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-booking-auth"
	"github.com/goliatone/go-booking-auth/session"
)

func TestDecodePayload_RoundTrip(t *testing.T) {
	cases := []struct {
		name  string
		user  string
		email string
	}{
		{"ascii", "alice", "a@b.com"},
		{"utf8", "Søren Ærøskøbing", "søren@ærø.dk"},
		{"cjk", "山田太郎", "yamada@example.jp"},
		{"emoji", "Zoë 🛎️", "zoe@example.com"},
	}

	issued := time.Now().Truncate(time.Second)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			token := mint(t, tc.user, tc.email, issued, time.Hour)

			p, err := session.DecodePayload(token)
			require.NoError(t, err)
			assert.Equal(t, tc.user, p.Name)
			assert.Equal(t, tc.email, p.Email)
			assert.NotEmpty(t, p.UserID)
			assert.Equal(t, p.UserID, p.Subject)
			assert.Equal(t, "booking-api", p.Issuer)
			assert.Equal(t, []string{"booking-client"}, []string(p.Audience))
			assert.Equal(t, issued.Unix(), p.IssuedAt.Unix())
			assert.Equal(t, issued.Add(time.Hour).Unix(), p.ExpiresAt.Unix())
			assert.Equal(t, tc.user, p.DisplayName())
		})
	}
}

func TestDecodePayload_ScalarAudience(t *testing.T) {
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	body := base64.RawURLEncoding.EncodeToString([]byte(`{"unique_name":"bo","aud":"booking-client","exp":4102444800}`))

	p, err := session.DecodePayload(header + "." + body + ".sig")
	require.NoError(t, err)
	assert.Equal(t, []string{"booking-client"}, []string(p.Audience))
	assert.Equal(t, "bo", p.DisplayName())
}

func TestDecodePayload_Failures(t *testing.T) {
	for _, raw := range []string{"", "one", "one.two", "a.b.c.d", "!!.??.sig"} {
		_, err := session.DecodePayload(raw)
		require.Error(t, err, raw)
		assert.True(t, auth.HasKind(err, auth.TextCodeDecodeFailure), raw)
	}

	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256"}`))
	body := base64.RawURLEncoding.EncodeToString([]byte(`[1,2,3]`))
	_, err := session.DecodePayload(header + "." + body + ".sig")
	assert.True(t, auth.HasKind(err, auth.TextCodeDecodeFailure))
}

func TestPayload_Expired(t *testing.T) {
	now := time.Now()
	p, err := session.DecodePayload(mint(t, "a", "a@b.com", now, time.Minute))
	require.NoError(t, err)

	assert.False(t, p.Expired(now))
	assert.True(t, p.Expired(now.Add(2*time.Minute)))

	var empty *session.Payload
	assert.True(t, empty.Expired(now))
	assert.Equal(t, session.UnknownUser, empty.DisplayName())
	assert.Empty(t, empty.Roles())
}

func TestNext(t *testing.T) {
	cases := []struct {
		from session.State
		ev   session.Event
		want session.State
	}{
		{session.StateLoggedOut, session.EventLogin, session.StateLoggedIn},
		{session.StateLoggedOut, session.EventRehydrate, session.StateLoggedIn},
		{session.StateLoggedOut, session.EventRehydrateFailed, session.StateLoggedOut},
		{session.StateLoggedIn, session.EventLogout, session.StateLoggedOut},
		{session.StateLoggedIn, session.EventRehydrateFailed, session.StateLoggedOut},
		{session.StateLoggedIn, session.EventLogin, session.StateLoggedIn},
	}
	for _, tc := range cases {
		got, err := session.Next(tc.from, tc.ev)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "%s on %s", tc.from, tc.ev)
	}

	_, err := session.Next(session.StateLoggedIn, session.Event("teleport"))
	assert.Error(t, err)
	assert.Equal(t, "logged_in", session.StateLoggedIn.String())
}
