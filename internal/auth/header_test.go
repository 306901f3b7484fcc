package auth

import "testing"

func TestCredentialFromHeader(t *testing.T) {
	cases := map[string]string{
		"":              "",
		"   ":           "",
		"abc":           "abc",
		"Bearer abc":    "abc",
		"BEARER abc":    "abc",
		" Bearer  abc ": "abc",
		"Bearer":        "Bearer",
		"Basic abc":     "Basic abc",
	}
	for in, want := range cases {
		if got := CredentialFromHeader(in); got != want {
			t.Fatalf("CredentialFromHeader(%q) = %q, want %q", in, got, want)
		}
	}
}
