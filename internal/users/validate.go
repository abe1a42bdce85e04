package users

import (
	"fmt"
	"net/mail"
	"strings"

	"github.com/ariefcatur/go-storefront/internal/apperr"
)

// NormalizeAddress trims fields, applies defaults and checks required ones.
func NormalizeAddress(a *Address) error {
	a.Type = strings.ToLower(strings.TrimSpace(a.Type))
	if a.Type == "" {
		a.Type = "shipping"
	}
	if a.Type != "shipping" && a.Type != "billing" {
		return fmt.Errorf("address type %q: %w", a.Type, apperr.ErrInvalid)
	}
	for _, f := range []*string{&a.StreetAddress, &a.City, &a.State, &a.PostalCode, &a.Country} {
		*f = strings.TrimSpace(*f)
	}
	if a.Country == "" {
		a.Country = DefaultCountry
	}
	if a.StreetAddress == "" || a.City == "" || a.State == "" || a.PostalCode == "" {
		return fmt.Errorf("street, city, state and postal code are required: %w", apperr.ErrInvalid)
	}
	return nil
}

func ValidEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}
