package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	dErrors "sentra/pkg/domain-errors"
)

func TestParseRejectsInvalidInput(t *testing.T) {
	for _, input := range []string{"", "not-a-uuid", "00000000-0000-0000-0000-000000000000"} {
		_, err := ParseActorID(input)
		require.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput), "input %q", input)
		_, err = ParseSessionID(input)
		require.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput), "input %q", input)
	}
}

func TestParseRoundTrip(t *testing.T) {
	actorID := NewActorID()
	parsed, err := ParseActorID(actorID.String())
	require.NoError(t, err)
	require.Equal(t, actorID, parsed)
}

func TestIDsMarshalAsCanonicalStrings(t *testing.T) {
	sessionID := NewSessionID()
	raw, err := json.Marshal(sessionID)
	require.NoError(t, err)
	require.Equal(t, `"`+sessionID.String()+`"`, string(raw))

	var decoded SessionID
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Equal(t, sessionID, decoded)
}
