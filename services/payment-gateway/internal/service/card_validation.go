// services/payment-gateway/internal/service/card_validation.go
package service

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ReasonCode is the closed set of reasons a payment can fail for.
type ReasonCode string

const (
	ReasonInvalidFormat      ReasonCode = "invalid_format"
	ReasonFailedChecksum     ReasonCode = "failed_checksum"
	ReasonExpired            ReasonCode = "expired"
	ReasonUnsupportedMethod  ReasonCode = "unsupported_method"
	ReasonSettlementDeclined ReasonCode = "settlement_declined"
)

// Instrument fields a failure can refer to.
const (
	FieldPaymentMethod = "payment_method"
	FieldCardNumber    = "card_number"
	FieldExpiryDate    = "expiry_date"
	FieldCVV           = "cvv"
)

const (
	minCardDigits = 13
	maxCardDigits = 19
)

// ValidationFailure is the Invalid outcome of a validator. A nil
// *ValidationFailure means the input is valid.
type ValidationFailure struct {
	Code  ReasonCode
	Field string
}

// Message renders the failure for display.
func (f *ValidationFailure) Message() string {
	return reasonMessage(f.Code, f.Field)
}

func reasonMessage(code ReasonCode, field string) string {
	switch code {
	case ReasonFailedChecksum:
		return "card number failed checksum validation"
	case ReasonExpired:
		return "card has expired"
	case ReasonUnsupportedMethod:
		return "unsupported payment method"
	case ReasonSettlementDeclined:
		return "payment could not be processed"
	case ReasonInvalidFormat:
		switch field {
		case FieldCardNumber:
			return "card number must contain 13 to 19 digits"
		case FieldExpiryDate:
			return "expiry date must be in MM/YY format"
		case FieldCVV:
			return "CVV must be 3 or 4 digits"
		}
		return "invalid format"
	}
	return "payment failed"
}

func invalid(code ReasonCode, field string) *ValidationFailure {
	return &ValidationFailure{Code: code, Field: field}
}

// NormalizeCardNumber removes space and hyphen separators.
func NormalizeCardNumber(cardNumber string) string {
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' {
			return -1
		}
		return r
	}, cardNumber)
}

// ValidateCardNumber checks shape and Luhn checksum of a card number that
// may contain separators.
func ValidateCardNumber(cardNumber string) *ValidationFailure {
	digits := NormalizeCardNumber(cardNumber)
	if !isDigits(digits) || len(digits) < minCardDigits || len(digits) > maxCardDigits {
		return invalid(ReasonInvalidFormat, FieldCardNumber)
	}
	if !ValidateLuhnChecksum(digits) {
		return invalid(ReasonFailedChecksum, FieldCardNumber)
	}
	return nil
}

// ValidateLuhnChecksum validates a card number using Luhn algorithm.
// Every second digit from the right is doubled.
func ValidateLuhnChecksum(cardNumber string) bool {
	if cardNumber == "" || !isDigits(cardNumber) {
		return false
	}

	var sum int
	parity := len(cardNumber) % 2

	for i, digit := range cardNumber {
		d := int(digit - '0')
		if i%2 == parity {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
	}

	return sum%10 == 0
}

// DetectCardNetwork detects the card network based on IIN
func DetectCardNetwork(cardNumber string) string {
	if len(cardNumber) < 2 {
		return ""
	}

	prefix := cardNumber[:2]

	switch {
	case prefix == "34" || prefix == "37":
		return "amex"
	case prefix >= "40" && prefix <= "49":
		return "visa"
	case prefix >= "51" && prefix <= "55":
		return "mastercard"
	case prefix >= "22" && prefix <= "27":
		return "mastercard"
	case prefix >= "60" && prefix <= "65":
		return "discover"
	default:
		return ""
	}
}

var expiryPattern = regexp.MustCompile(`^(0[1-9]|1[0-2])/([0-9]{2})$`)

// Expiry is a parsed MM/YY token.
type Expiry struct {
	Month time.Month
	Year  int
}

// LastValidDay is the final calendar day the card can be used on.
func (e Expiry) LastValidDay() time.Time {
	// Day 0 of the following month is the last day of this one.
	return time.Date(e.Year, e.Month+1, 0, 0, 0, 0, 0, time.UTC)
}

// ParseExpiry parses an MM/YY token. Two-digit years are read as 20YY;
// a year more than 50 years ahead of now is taken from the previous century.
func ParseExpiry(token string, now time.Time) (Expiry, bool) {
	m := expiryPattern.FindStringSubmatch(token)
	if m == nil {
		return Expiry{}, false
	}

	month, err := strconv.Atoi(m[1])
	if err != nil {
		return Expiry{}, false
	}
	yy, err := strconv.Atoi(m[2])
	if err != nil {
		return Expiry{}, false
	}

	year := 2000 + yy
	if year > now.UTC().Year()+50 {
		year -= 100
	}

	return Expiry{Month: time.Month(month), Year: year}, true
}

// ValidateExpiry checks an MM/YY token against now. The card stays valid
// through the last day of its expiry month.
func ValidateExpiry(token string, now time.Time) *ValidationFailure {
	expiry, ok := ParseExpiry(token, now)
	if !ok {
		return invalid(ReasonInvalidFormat, FieldExpiryDate)
	}

	utc := now.UTC()
	today := time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC)
	if expiry.LastValidDay().Before(today) {
		return invalid(ReasonExpired, FieldExpiryDate)
	}
	return nil
}

var cvvPattern = regexp.MustCompile(`^[0-9]{3,4}$`)

// ValidateCVV checks the security code is 3 or 4 ASCII digits.
func ValidateCVV(cvv string) *ValidationFailure {
	if !cvvPattern.MatchString(cvv) {
		return invalid(ReasonInvalidFormat, FieldCVV)
	}
	return nil
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
