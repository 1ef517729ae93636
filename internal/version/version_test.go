package version

import "testing"

func TestFormat(t *testing.T) {
	cases := map[string]string{
		"":       "",
		"dev":    "dev",
		"0.1.0":  "v0.1.0",
		"v0.1.0": "v0.1.0",
	}
	for in, want := range cases {
		if got := Format(in); got != want {
			t.Errorf("Format(%q) = %q; want %q", in, got, want)
		}
	}
}
