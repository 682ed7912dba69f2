package region

import (
	"errors"
	"strings"
)

// Region is the coarse geographic classification used by the free-shipping
// policy: the preferred south/southeast set versus everywhere else.
type Region string

const (
	SouthSoutheast Region = "south_southeast"
	Other          Region = "other"
)

// ErrInvalidCEP is returned when a postal code does not normalize to 8 digits.
var ErrInvalidCEP = errors.New("invalid CEP")

// NormalizeCEP strips non-digit characters and requires exactly 8 digits.
func NormalizeCEP(raw string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) != 8 {
		return "", ErrInvalidCEP
	}
	return digits, nil
}

// Classify maps a CEP to its macro region using the two leading digits.
// Correios prefix allocation: SP 01-19, RJ 20-28, ES 29, MG 30-39,
// PR 80-87, SC 88-89, RS 90-99 form the south/southeast set.
func Classify(cep string) (Region, error) {
	normalized, err := NormalizeCEP(cep)
	if err != nil {
		return "", err
	}
	prefix := (int(normalized[0]-'0') * 10) + int(normalized[1]-'0')
	switch {
	case prefix <= 39:
		return SouthSoutheast, nil
	case prefix >= 80:
		return SouthSoutheast, nil
	default:
		return Other, nil
	}
}
