package stream

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUnwrap(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{name: "envelope", in: `{"content":"Buy index funds."}`, want: "Buy index funds."},
		{name: "plain text", in: "Plain text, not JSON", want: "Plain text, not JSON"},
		{name: "padded envelope", in: "  {\"content\":\"Rebalance yearly.\"}\n", want: "Rebalance yearly."},
		{name: "empty content", in: `{"content":""}`, want: `{"content":""}`},
		{name: "missing content", in: `{"answer":"x"}`, want: `{"answer":"x"}`},
		{name: "non-string content", in: `{"content":5}`, want: `{"content":5}`},
		{name: "json string", in: `"just a string"`, want: `"just a string"`},
		{name: "empty", in: "   ", want: ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, Unwrap(tc.in))
		})
	}
}

func TestClean(t *testing.T) {
	require.Equal(t, "Hello", Clean(`data: "Hello"`))
	require.Equal(t, "one two", Clean("Data: one data:two"))
	require.Equal(t, "Plain", Clean("  Plain  "))
}
