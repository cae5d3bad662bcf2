package privacy

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAnonymizeIP(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"203.0.113.45", "203.0.x.x"},
		{"10.0.0.1", "10.0.x.x"},
		{" 192.168.1.7 ", "192.168.x.x"},
		{"2001:db8:85a3::8a2e:370:7334", "2001:db8::x"},
		{"", "unknown"},
		{"not-an-ip", "unknown"},
		{"999.1.1.1", "unknown"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, AnonymizeIP(tc.in), "input %q", tc.in)
	}
}
