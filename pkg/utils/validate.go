package utils

import (
	"strconv"

	"github.com/go-playground/validator/v10"
)

// MinPhoneLength is the shortest phone number a registrant may give.
const MinPhoneLength = 10

// validate applies the same rules as gin's binding tags, so a value that
// passes a request binding also passes here.
var validate = validator.New()

// ValidEmail reports whether s is a well-formed email address.
func ValidEmail(s string) bool {
	return validate.Var(s, "required,email") == nil
}

// ValidWebsite reports whether s is an absolute http or https URL.
func ValidWebsite(s string) bool {
	return validate.Var(s, "required,http_url") == nil
}

// ValidPhone reports whether s is long enough to be a phone number.
func ValidPhone(s string) bool {
	return validate.Var(s, "required,min="+strconv.Itoa(MinPhoneLength)) == nil
}
