package checkout

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Form field names, as reported in ValidationError.Fields.
const (
	FieldName       = "name"
	FieldEmail      = "email"
	FieldAddress    = "address"
	FieldCity       = "city"
	FieldZipCode    = "zipCode"
	FieldCardNumber = "cardNumber"
	FieldExpiryDate = "expiryDate"
	FieldCVV        = "cvv"
)

const (
	minCardDigits = 16
	minCVVDigits  = 3
)

var emailPattern = regexp.MustCompile(`\S+@\S+\.\S+`)

// Form holds the shipping and payment details submitted at checkout. No
// payment is processed; the card fields are only checked for shape.
type Form struct {
	Name       string
	Email      string
	Address    string
	City       string
	ZipCode    string
	CardNumber string
	ExpiryDate string
	CVV        string
}

// ValidationError lists the fields that failed validation with a message
// for each.
type ValidationError struct {
	Fields map[string]string
}

// Names returns the invalid field names in sorted order.
func (e *ValidationError) Names() []string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString("invalid checkout form: ")
	for i, name := range e.Names() {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(e.Fields[name])
	}
	return b.String()
}

// Validate checks f and returns a *ValidationError describing every invalid
// field, or nil.
func Validate(f Form) error {
	errs := make(map[string]string)

	required := func(field, value, msg string) bool {
		if strings.TrimSpace(value) == "" {
			errs[field] = msg
			return false
		}
		return true
	}

	required(FieldName, f.Name, "Name is required")
	if required(FieldEmail, f.Email, "Email is required") && !emailPattern.MatchString(f.Email) {
		errs[FieldEmail] = "Email is invalid"
	}
	required(FieldAddress, f.Address, "Address is required")
	required(FieldCity, f.City, "City is required")
	required(FieldZipCode, f.ZipCode, "ZIP code is required")
	if required(FieldCardNumber, f.CardNumber, "Card number is required") &&
		utf8.RuneCountInString(stripSpace(f.CardNumber)) < minCardDigits {
		errs[FieldCardNumber] = "Card number must be 16 digits"
	}
	required(FieldExpiryDate, f.ExpiryDate, "Expiry date is required")
	if required(FieldCVV, f.CVV, "CVV is required") && utf8.RuneCountInString(f.CVV) < minCVVDigits {
		errs[FieldCVV] = "CVV must be 3 digits"
	}

	if len(errs) == 0 {
		return nil
	}
	return &ValidationError{Fields: errs}
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
