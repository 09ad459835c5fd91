package codegen

import (
	"strings"
	"testing"
)

func TestChecksumDigit(t *testing.T) {
	cases := []struct {
		digits []int
		want   int
	}{
		// Weighted sum 3*(2+4+6+8+0+2) + (1+3+5+7+9+1) = 92, check digit 8.
		{[]int{1, 2, 3, 4, 5, 6, 7, 8, 9, 0, 1, 2}, 8},
		{[]int{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}, 0},
		// 4006381333931 is a published EAN-13 example.
		{[]int{4, 0, 0, 6, 3, 8, 1, 3, 3, 3, 9, 3}, 1},
	}

	for _, tc := range cases {
		got := ChecksumDigit(tc.digits)
		if got != tc.want {
			t.Errorf("ChecksumDigit(%v) = %d, want %d", tc.digits, got, tc.want)
		}
	}
}

func TestNewBarcodeIsValid(t *testing.T) {
	for i := 0; i < 100; i++ {
		barcode := NewBarcode()
		if len(barcode) != 13 {
			t.Fatalf("barcode %q has length %d, want 13", barcode, len(barcode))
		}
		if !Validate(barcode) {
			t.Fatalf("generated barcode %q fails checksum validation", barcode)
		}
	}
}

func TestNewProductCodeFormat(t *testing.T) {
	for i := 0; i < 100; i++ {
		code := NewProductCode()
		if len(code) != 8 {
			t.Fatalf("code %q has length %d, want 8", code, len(code))
		}
		if !strings.HasPrefix(code, "PRD-") {
			t.Fatalf("code %q missing PRD- prefix", code)
		}
		for _, c := range code[4:6] {
			if c < 'A' || c > 'Z' {
				t.Fatalf("code %q: expected uppercase letters at positions 5-6", code)
			}
		}
		for _, c := range code[6:8] {
			if c < '0' || c > '9' {
				t.Fatalf("code %q: expected digits at positions 7-8", code)
			}
		}
	}
}

func TestValidateRejectsMalformedCodes(t *testing.T) {
	cases := []string{
		"",
		"123",
		"12345678901234",
		"400638133393a",
		"4006381333930", // wrong check digit
	}
	for _, code := range cases {
		if Validate(code) {
			t.Errorf("Validate(%q) = true, want false", code)
		}
	}
}
