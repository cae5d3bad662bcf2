package guard

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	dErrors "sentra/pkg/domain-errors"
)

func signAssertion(t *testing.T, key string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	require.NoError(t, err)
	return token
}

func TestVerifyAcceptsValidAssertion(t *testing.T) {
	v := NewMFAVerifier("key")
	token := signAssertion(t, "key", jwt.MapClaims{
		"sub": "actor-1",
		"mfa": true,
		"exp": time.Now().Add(time.Minute).Unix(),
	})
	require.NoError(t, v.Verify(token, "actor-1"))
}

func TestVerifyRejectsEverythingWithoutSigningKey(t *testing.T) {
	v := NewMFAVerifier("")

	// A token signed with the empty secret must not pass an unconfigured
	// verifier; a session hijacker could mint one.
	forged := signAssertion(t, "", jwt.MapClaims{
		"sub": "actor-1",
		"mfa": true,
		"exp": time.Now().Add(time.Minute).Unix(),
	})
	err := v.Verify(forged, "actor-1")
	require.True(t, dErrors.HasCode(err, dErrors.CodeMFARequired))
}

func TestVerifyRejections(t *testing.T) {
	v := NewMFAVerifier("key")
	valid := jwt.MapClaims{
		"sub": "actor-1",
		"mfa": true,
		"exp": time.Now().Add(time.Minute).Unix(),
	}

	cases := []struct {
		name  string
		token string
		actor string
	}{
		{"empty token", "", "actor-1"},
		{"garbage token", "not.a.token", "actor-1"},
		{"wrong key", signAssertion(t, "other-key", valid), "actor-1"},
		{"expired", signAssertion(t, "key", jwt.MapClaims{
			"sub": "actor-1",
			"mfa": true,
			"exp": time.Now().Add(-time.Minute).Unix(),
		}), "actor-1"},
		{"no expiry", signAssertion(t, "key", jwt.MapClaims{
			"sub": "actor-1",
			"mfa": true,
		}), "actor-1"},
		{"mfa claim false", signAssertion(t, "key", jwt.MapClaims{
			"sub": "actor-1",
			"mfa": false,
			"exp": time.Now().Add(time.Minute).Unix(),
		}), "actor-1"},
		{"mfa claim missing", signAssertion(t, "key", jwt.MapClaims{
			"sub": "actor-1",
			"exp": time.Now().Add(time.Minute).Unix(),
		}), "actor-1"},
		{"subject mismatch", signAssertion(t, "key", valid), "actor-2"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := v.Verify(tc.token, tc.actor)
			require.True(t, dErrors.HasCode(err, dErrors.CodeMFARequired))
		})
	}
}
