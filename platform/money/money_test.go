package money

import "testing"

func TestFormat(t *testing.T) {
	cases := []struct {
		amount int64
		code   string
		want   string
	}{
		{15000, "USD", "USD 15,000"},
		{6000, "usd", "USD 6,000"},
		{1250000, "EUR", "EUR 1,250,000"},
		{850, "nope", "USD 850"},
	}
	for _, tc := range cases {
		if got := Format(tc.amount, tc.code); got != tc.want {
			t.Fatalf("Format(%d, %q): expected %q, got %q", tc.amount, tc.code, tc.want, got)
		}
	}
}
