// services/payment-gateway/internal/service/masking.go
package service

const (
	maskedGroup       = "****"
	maskedPlaceholder = "**** **** **** ****"
)

// MaskCardNumber renders a digit-only card number as "**** **** **** 1234".
// Inputs shorter than four digits, or containing non-digits, yield a fully
// masked placeholder.
func MaskCardNumber(digits string) string {
	if len(digits) < 4 || !isDigits(digits) {
		return maskedPlaceholder
	}
	return maskedGroup + " " + maskedGroup + " " + maskedGroup + " " + lastFour(digits)
}

// lastFour returns the trailing four characters, or all of s when shorter.
func lastFour(s string) string {
	if len(s) <= 4 {
		return s
	}
	return s[len(s)-4:]
}
