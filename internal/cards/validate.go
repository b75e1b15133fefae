package cards

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"payment_gateway/internal/domain"
)

var holderNameRe = regexp.MustCompile(`^[A-Za-z ]+$`)

// NormalizeNumber strips spaces and dashes and checks digits, length and the Luhn checksum.
func NormalizeNumber(number string) (string, error) {
	clean := strings.NewReplacer(" ", "", "-", "").Replace(number)
	if clean == "" {
		return "", domain.Validation("card_number is required")
	}
	for _, r := range clean {
		if r < '0' || r > '9' {
			return "", domain.Validation("card_number must contain only digits")
		}
	}
	if len(clean) < 13 || len(clean) > 19 {
		return "", domain.Validation("card_number must be between 13 and 19 digits")
	}
	if !PassesLuhn(clean) {
		return "", domain.Validation("card_number is invalid")
	}
	return clean, nil
}

// PassesLuhn implements the standard mod 10 check. digits must be ASCII digits.
func PassesLuhn(digits string) bool {
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		n := int(digits[i] - '0')
		if double {
			n *= 2
			if n > 9 {
				n -= 9
			}
		}
		sum += n
		double = !double
	}
	return sum%10 == 0
}

// DetectType guesses the card network from the number prefix.
func DetectType(number string) string {
	switch {
	case strings.HasPrefix(number, "4"):
		return domain.CardVisa
	case len(number) >= 2 && number[:2] >= "51" && number[:2] <= "55":
		return domain.CardMastercard
	case len(number) >= 4 && number[:4] >= "2221" && number[:4] <= "2720":
		return domain.CardMastercard
	case strings.HasPrefix(number, "34"), strings.HasPrefix(number, "37"):
		return domain.CardAmex
	case strings.HasPrefix(number, "6011"), strings.HasPrefix(number, "65"):
		return domain.CardDiscover
	}
	return domain.CardUnknown
}

// Mask hides everything but the last four digits.
func Mask(number string) string {
	if len(number) < 4 {
		return "****"
	}
	return "**** **** **** " + number[len(number)-4:]
}

// validateCVV checks the security code; it is never stored.
func validateCVV(cvv string) error {
	if len(cvv) < 3 || len(cvv) > 4 {
		return domain.Validation("cvv must be 3 or 4 digits")
	}
	for _, r := range cvv {
		if r < '0' || r > '9' {
			return domain.Validation("cvv must contain only digits")
		}
	}
	return nil
}

// validateHolder returns the upper-cased holder name.
func validateHolder(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || !holderNameRe.MatchString(name) {
		return "", domain.Validation("card_holder_name must contain only letters")
	}
	return strings.ToUpper(name), nil
}

// validateExpiry rejects malformed values and months before the current one.
// It returns the month zero-padded to two digits.
func validateExpiry(month, year string, now time.Time) (string, string, error) {
	m, err := strconv.Atoi(month)
	if err != nil || m < 1 || m > 12 {
		return "", "", domain.Validation("expiry_month must be between 01 and 12")
	}
	if len(year) != 4 {
		return "", "", domain.Validation("expiry_year must be 4 digits")
	}
	y, err := strconv.Atoi(year)
	if err != nil {
		return "", "", domain.Validation("expiry_year must be 4 digits")
	}
	if y < now.Year() || (y == now.Year() && m < int(now.Month())) {
		return "", "", domain.Validation("card has expired")
	}
	return strconv.Itoa(100 + m)[1:], year, nil
}
