// Package codegen produces human-readable product codes and
// checksum-validated EAN-13 barcodes for the catalog.
package codegen

import (
	"math/rand"
	"strings"
)

const productCodePrefix = "PRD-"

// NewProductCode returns a code like "PRD-XK42". The scheme carries no
// uniqueness guarantee; collisions are possible and accepted.
func NewProductCode() string {
	var b strings.Builder
	b.Grow(len(productCodePrefix) + 4)
	b.WriteString(productCodePrefix)
	for i := 0; i < 2; i++ {
		b.WriteByte(byte('A' + rand.Intn(26)))
	}
	for i := 0; i < 2; i++ {
		b.WriteByte(byte('0' + rand.Intn(10)))
	}
	return b.String()
}

// NewBarcode returns a 13-digit numeric string: 12 random digits followed by
// their EAN-13 check digit.
func NewBarcode() string {
	digits := make([]int, 12)
	for i := range digits {
		digits[i] = rand.Intn(10)
	}
	buf := make([]byte, 0, 13)
	for _, d := range digits {
		buf = append(buf, byte('0'+d))
	}
	buf = append(buf, byte('0'+ChecksumDigit(digits)))
	return string(buf)
}

// ChecksumDigit computes the EAN-13 check digit for 12 payload digits.
// Counting 1-based from the right (check digit excluded), digits at odd
// positions are weighted 3, the rest 1.
func ChecksumDigit(digits []int) int {
	oddSum, evenSum := 0, 0
	for i := len(digits) - 1; i >= 0; i-- {
		pos := len(digits) - i
		if pos%2 == 1 {
			oddSum += digits[i]
		} else {
			evenSum += digits[i]
		}
	}
	return (10 - ((oddSum*3 + evenSum) % 10)) % 10
}

// Validate reports whether code is a 13-digit barcode whose last digit
// matches the checksum recomputed from the first 12.
func Validate(code string) bool {
	if len(code) != 13 {
		return false
	}
	digits := make([]int, 12)
	for i := 0; i < 12; i++ {
		c := code[i]
		if c < '0' || c > '9' {
			return false
		}
		digits[i] = int(c - '0')
	}
	check := code[12]
	if check < '0' || check > '9' {
		return false
	}
	return int(check-'0') == ChecksumDigit(digits)
}
