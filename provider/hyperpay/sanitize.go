package hyperpay

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/mstgnz/hyperpay/infra/config"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Placeholders used outside strict mode
const (
	DefaultGivenName = "Test"
	DefaultSurname   = "User"
	DefaultEmail     = "test@example.com"
	DefaultStreet    = "Test Street 1"
	DefaultCity      = "Riyadh"
	DefaultPostcode  = "11564"
	DefaultCountry   = "SA"
)

const (
	maxNameLen     = 50
	maxStreetLen   = 100
	maxCityLen     = 80
	maxStateLen    = 50
	maxPostcodeLen = 16
	minPhoneLen    = 7
	maxPhoneLen    = 25
)

var countryPattern = regexp.MustCompile(`^[A-Z]{2}$`)

// Sanitizer turns a host Customer into a BillingProfile the gateway accepts.
// In strict mode every invalid required field is reported; otherwise
// placeholders are substituted.
type Sanitizer struct {
	Strict          bool
	TestCountry     string
	HomeCountry     string
	HomeCallingCode string
	StateCountries  map[string]bool
}

// Sanitize validates and normalizes c
func (s Sanitizer) Sanitize(c Customer) (BillingProfile, error) {
	var (
		p       BillingProfile
		invalid []string
	)

	// fill uses value when ok, otherwise records field or falls back
	fill := func(field, value string, ok bool, fallback string) string {
		if ok {
			return value
		}
		if s.Strict {
			invalid = append(invalid, field)
			return ""
		}
		return fallback
	}

	given, surname := SplitName(c.Name)
	if given == "" {
		if s.Strict {
			invalid = append(invalid, "name")
		} else {
			given, surname = DefaultGivenName, DefaultSurname
		}
	}
	p.GivenName, p.Surname = given, surname

	email := strings.TrimSpace(c.Email)
	p.Email = fill("email", email, ValidEmail(email), DefaultEmail)

	street := CleanText(c.Street, maxStreetLen)
	p.Street = fill("street", street, len(street) >= 5 && strings.ContainsFunc(street, unicode.IsDigit), DefaultStreet)

	city := CleanText(c.City, maxCityLen)
	p.City = fill("city", city, len(city) >= 2, DefaultCity)

	postcode := CleanText(c.Postcode, maxPostcodeLen)
	p.Postcode = fill("postcode", postcode, countAlphanumeric(postcode) >= 3, DefaultPostcode)

	country := strings.ToUpper(strings.TrimSpace(c.Country))
	p.Country = fill("country", country, countryPattern.MatchString(country), s.testCountry())

	if s.StateCountries[p.Country] {
		p.State = CleanText(c.State, maxStateLen)
	}

	p.Phone = s.NormalizePhone(c.Phone, p.Country)
	p.Mobile = s.NormalizePhone(c.Mobile, p.Country)

	if len(invalid) > 0 {
		return BillingProfile{}, &ValidationError{Fields: invalid}
	}
	return p, nil
}

func (s Sanitizer) testCountry() string {
	if s.TestCountry != "" {
		return s.TestCountry
	}
	return DefaultCountry
}

// SplitName splits on whitespace: the first token is the given name and the
// rest the surname. A single token is used for both.
func SplitName(full string) (given, surname string) {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return truncate(parts[0], maxNameLen), truncate(parts[0], maxNameLen)
	default:
		return truncate(parts[0], maxNameLen), truncate(strings.Join(parts[1:], " "), maxNameLen)
	}
}

// ValidEmail checks the local@domain.tld shape
func ValidEmail(email string) bool {
	if email == "" {
		return false
	}
	if err := config.App().Validator.Var(email, "email"); err != nil {
		return false
	}
	at := strings.LastIndex(email, "@")
	domain := email[at+1:]
	dot := strings.LastIndex(domain, ".")
	return dot > 0 && dot < len(domain)-1
}

var asciiFold = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// CleanText transliterates s to ASCII, keeps letters, digits, spaces and
// `. , - / #`, collapses whitespace and caps the result at maxLen.
func CleanText(s string, maxLen int) string {
	folded, _, err := transform.String(asciiFold, s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	for _, r := range folded {
		switch {
		case r > unicode.MaxASCII:
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteByte(' ')
		case strings.ContainsRune(".,-/#", r):
			b.WriteRune(r)
		}
	}

	return truncate(strings.Join(strings.Fields(b.String()), " "), maxLen)
}

// NormalizePhone keeps digits and a leading plus. A 00 prefix becomes +, and
// a local number with trunk 0 in the home country gets the calling code.
// Returns "" when the result is not a plausible number.
func (s Sanitizer) NormalizePhone(raw, country string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	var digits strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()
	if d == "" {
		return ""
	}

	var n string
	switch {
	case strings.HasPrefix(raw, "+"):
		n = "+" + d
	case strings.HasPrefix(d, "00"):
		n = "+" + d[2:]
	case strings.HasPrefix(d, "0") && s.HomeCallingCode != "" && country == s.HomeCountry:
		n = "+" + s.HomeCallingCode + d[1:]
	default:
		n = d
	}

	if len(n) < minPhoneLen || len(n) > maxPhoneLen {
		return ""
	}
	return n
}

func countAlphanumeric(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			n++
		}
	}
	return n
}

func truncate(s string, max int) string {
	r := []rune(s)
	if max <= 0 || len(r) <= max {
		return s
	}
	return strings.TrimSpace(string(r[:max]))
}
