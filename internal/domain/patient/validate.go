package patient

import (
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	zipCodePattern = regexp.MustCompile(`^[0-9]{5}(?:-[0-9]{4})?$`)
	phonePattern   = regexp.MustCompile(`^[0-9]{10}$`)

	validate = validator.New()
)

func init() {
	_ = validate.RegisterValidation("zipcode", func(fl validator.FieldLevel) bool {
		return zipCodePattern.MatchString(fl.Field().String())
	})
	_ = validate.RegisterValidation("phone10", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
}

// ValidateZip reports whether s is a 5 digit or ZIP+4 postal code.
func ValidateZip(s string) bool {
	return validate.Var(s, "zipcode") == nil
}

// ValidatePhone reports whether s is exactly ten ASCII digits.
func ValidatePhone(s string) bool {
	return validate.Var(s, "phone10") == nil
}

// ValidateEmail checks the syntax of an address and that its domain is a
// fully qualified name. The returned address has surrounding whitespace
// removed and a lower-cased domain; the local part keeps its case.
func ValidateEmail(s string) (string, error) {
	addr := strings.TrimSpace(s)
	if err := validate.Var(addr, "required,email"); err != nil {
		return "", invalid(msgBadEmail)
	}
	at := strings.LastIndexByte(addr, '@')
	if at <= 0 || at == len(addr)-1 {
		return "", invalid(msgBadEmail)
	}
	local, domain := addr[:at], strings.ToLower(addr[at+1:])
	// fqdn accepts a root-anchored name like "example.com."
	if strings.HasSuffix(domain, ".") {
		return "", invalid(msgBadEmail)
	}
	if err := validate.Var(domain, "fqdn"); err != nil {
		return "", invalid(msgBadEmail)
	}
	return local + "@" + domain, nil
}
