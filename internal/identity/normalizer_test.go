package identity

import "testing"

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"  Reader@Example.COM  ", "reader@example.com"},
		{"reader@example.com", "reader@example.com"},
		{"\tUPPER@X.COM\n", "upper@x.com"},
		{"", ""},
		{"   ", ""},
	}
	for _, tc := range cases {
		if got := Normalize(tc.in); got != tc.want {
			t.Fatalf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFingerprintStableAndCaseInsensitive(t *testing.T) {
	a := Fingerprint("Reader@Example.com")
	b := Fingerprint("  reader@example.com ")
	if a == "" || a != b {
		t.Fatalf("expected equal fingerprints, got %q and %q", a, b)
	}
	if Fingerprint("") != "" {
		t.Fatal("empty identity must fingerprint to empty")
	}
}
