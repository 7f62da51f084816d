package sanitize

import "testing"

func TestText(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "  Acme   Studio ", "Acme Studio"},
		{"tags", "<b>Acme</b> <i>Studio</i>", "Acme Studio"},
		{"entities", "Smith &amp; Sons", "Smith & Sons"},
		{"encoded tag stays text", "&lt;b&gt;hi", "<b>hi"},
		{"script dropped", "hello<script>alert(1)</script> world", "hello world"},
		{"line breaks kept", "first line\n\n  second   line ", "first line\nsecond line"},
		{"empty", "   ", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Text(tc.in); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}
