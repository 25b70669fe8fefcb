package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidAccount indicates an account name that violates Hive naming rules.
var ErrInvalidAccount = errors.New("invalid account name")

// ValidateAccount checks a Hive account name: lowercase, 3-16 characters,
// starts with a letter, only letters, digits, dashes and dots, with no
// consecutive or trailing dashes/dots.
func ValidateAccount(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty", ErrInvalidAccount)
	}
	if len(name) < 3 || len(name) > 16 {
		return fmt.Errorf("%w: %q must be between 3 and 16 characters", ErrInvalidAccount, name)
	}
	if name != strings.ToLower(name) {
		return fmt.Errorf("%w: %q must be lowercase", ErrInvalidAccount, name)
	}
	if name[0] < 'a' || name[0] > 'z' {
		return fmt.Errorf("%w: %q must start with a letter", ErrInvalidAccount, name)
	}
	if name[len(name)-1] == '-' || name[len(name)-1] == '.' {
		return fmt.Errorf("%w: %q cannot end with a dash or dot", ErrInvalidAccount, name)
	}
	prevSep := false
	for _, c := range name {
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			prevSep = false
		case c == '-' || c == '.':
			if prevSep {
				return fmt.Errorf("%w: %q has consecutive dashes or dots", ErrInvalidAccount, name)
			}
			prevSep = true
		default:
			return fmt.Errorf("%w: %q contains disallowed character %q", ErrInvalidAccount, name, c)
		}
	}
	return nil
}
