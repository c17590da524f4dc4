package auth

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/onairfm/gatekeeper/pkg/domain"
)

// PasswordPolicy defines password requirements for registration.
type PasswordPolicy struct {
	MinLength        int
	RequireUppercase bool
	RequireLowercase bool
	RequireNumber    bool
}

// DefaultPasswordPolicy returns the baseline policy: length only.
func DefaultPasswordPolicy() *PasswordPolicy {
	return &PasswordPolicy{MinLength: 8}
}

// ValidatePassword checks a password against the policy.
func (p *PasswordPolicy) ValidatePassword(password string) error {
	var missing []string

	if p.MinLength > 0 && len(password) < p.MinLength {
		missing = append(missing, fmt.Sprintf("at least %d characters", p.MinLength))
	}
	if p.RequireUppercase && !containsClass(password, unicode.IsUpper) {
		missing = append(missing, "an uppercase letter")
	}
	if p.RequireLowercase && !containsClass(password, unicode.IsLower) {
		missing = append(missing, "a lowercase letter")
	}
	if p.RequireNumber && !containsClass(password, unicode.IsDigit) {
		missing = append(missing, "a number")
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: needs %s", domain.ErrWeakPassword, strings.Join(missing, ", "))
	}
	return nil
}

func containsClass(s string, class func(rune) bool) bool {
	for _, r := range s {
		if class(r) {
			return true
		}
	}
	return false
}
