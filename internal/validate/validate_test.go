package validate

import (
	"strings"
	"testing"
)

func TestEmail(t *testing.T) {
	cases := map[string]bool{
		"somebody@example.com":      true,
		"first.last+tag@example.org": true,
		"somebody AT example DOT com": false,
		"some random string":         false,
		"@example.com":               false,
		strings.Repeat("a", 245) + "@example.com": false,
	}
	for value, want := range cases {
		got := Email(value) == nil
		if got != want {
			t.Fatalf("Email(%q) valid=%v, want %v", value, got, want)
		}
	}
}

func TestNotEmpty(t *testing.T) {
	if NotEmpty("  \t") == nil {
		t.Fatalf("expected whitespace to be rejected")
	}
	if errEmpty := NotEmpty(" x "); errEmpty != nil {
		t.Fatalf("unexpected error: %v", errEmpty)
	}
}

func TestNetAddr(t *testing.T) {
	if errAddr := NetAddr("localhost"); errAddr != nil {
		t.Fatalf("localhost: %v", errAddr)
	}
	if errAddr := NetAddr("localhost:443"); errAddr != nil {
		t.Fatalf("localhost:443: %v", errAddr)
	}
	if NetAddr("just something else") != ErrInvalidNetAddr {
		t.Fatalf("expected invalid net address for multiple words")
	}
	if NetAddr("localhost:http") != ErrNonNumericPort {
		t.Fatalf("expected non-numeric port error")
	}
	if NetAddr("a:1:2") != ErrInvalidNetAddr {
		t.Fatalf("expected invalid net address for two colons")
	}
}
