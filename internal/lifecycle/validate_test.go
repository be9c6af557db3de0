package lifecycle

import (
	"strings"
	"testing"
)

func TestValidateGroupRef(t *testing.T) {
	valid := []string{
		"@testgroup",
		"@a_b_c_d_e",
		"https://t.me/testgroup",
		"https://t.me/joinchat/AbCd-eF_123",
		"  @testgroup  ", // whitespace is trimmed
	}
	for _, in := range valid {
		if err := ValidateGroupRef(in); err != nil {
			t.Errorf("expected %q to validate, got %v", in, err)
		}
	}

	invalid := []string{
		"",
		"@abc",                        // too short
		"@" + strings.Repeat("a", 40), // too long
		"@bad-name",                   // hyphen not allowed in handles
		"testgroup",                   // missing @
		"http://t.me/testgroup",       // not https
		"https://t.me/",               // empty name
		"https://example.com/group",   // wrong host
	}
	for _, in := range invalid {
		if err := ValidateGroupRef(in); err == nil {
			t.Errorf("expected %q to be rejected", in)
		}
	}
}
