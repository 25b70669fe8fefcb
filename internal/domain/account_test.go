package domain

import "testing"

func TestValidateAccount(t *testing.T) {
	valid := []string{"alice", "bob-1", "gad.rian", "abc"}
	for _, name := range valid {
		if err := ValidateAccount(name); err != nil {
			t.Errorf("ValidateAccount(%q) = %v, want nil", name, err)
		}
	}

	invalid := []string{
		"",
		"ab",                // too short
		"averyverylongname", // too long
		"Alice",             // uppercase
		"1alice",            // starts with digit
		"alice-",            // trailing dash
		"alice.",            // trailing dot
		"ali--ce",           // consecutive separators
		"ali_ce",            // disallowed character
	}
	for _, name := range invalid {
		if err := ValidateAccount(name); err == nil {
			t.Errorf("ValidateAccount(%q) = nil, want error", name)
		}
	}
}
