package patterns

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScanInjection(t *testing.T) {
	registry := Default()
	cases := []struct {
		name    string
		payload string
		rule    string
	}{
		{"script tag", `<script>alert(1)</script>`, "script_tag"},
		{"javascript uri", `javascript:alert(1)`, "script_tag"},
		{"event handler", `<img src=x onerror=steal()>`, "event_handler"},
		{"iframe", `<iframe src="https://evil.example">`, "markup_injection"},
		{"union select", `q=1 UNION SELECT password FROM users`, "sql_keywords"},
		{"drop table", `'; DROP TABLE claims`, "sql_keywords"},
		{"comment", `value /* hidden */`, "sql_comment"},
		{"tautology", `name=' OR 1=1`, "sql_tautology"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			match, ok := registry.ScanString(tc.payload)
			require.True(t, ok)
			require.Equal(t, CategoryInjection, match.Category)
			require.Equal(t, tc.rule, match.Name)
		})
	}
}

func TestScanUnencryptedPHI(t *testing.T) {
	registry := Default()
	cases := []struct {
		name    string
		payload string
		rule    string
	}{
		{"national id", `{"patient":"1023456789"}`, "national_id"},
		{"card number", `card 4111 1111 1111 1111`, "card_number"},
		{"email", `contact me at alice@example.com`, "email_address"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			match, ok := registry.Scan([]byte(tc.payload))
			require.True(t, ok)
			require.Equal(t, CategoryUnencryptedPHI, match.Category)
			require.Equal(t, tc.rule, match.Name)
		})
	}
}

func TestScanCleanPayloads(t *testing.T) {
	registry := Default()
	for _, payload := range []string{
		``,
		`{"claim_ref":"CLM-2031","amount":1200.50}`,
		`routine follow up visit, vitals stable`,
	} {
		_, ok := registry.ScanString(payload)
		require.False(t, ok, "payload should pass: %s", payload)
	}
}
