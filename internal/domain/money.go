package domain

import "math"

// All monetary values are unsigned integers in the smallest currency
// unit. Arithmetic that could wrap must go through the checked helpers
// so overflow surfaces as ErrArithmeticOverflow instead of silently
// wrapping around.

// CheckedMul returns a*b, or ErrArithmeticOverflow if the product does
// not fit in a uint64.
func CheckedMul(a, b uint64) (uint64, error) {
	if a != 0 && b > math.MaxUint64/a {
		return 0, ErrArithmeticOverflow
	}
	return a * b, nil
}

// CheckedAdd returns a+b, or ErrArithmeticOverflow if the sum does not
// fit in a uint64.
func CheckedAdd(a, b uint64) (uint64, error) {
	if b > math.MaxUint64-a {
		return 0, ErrArithmeticOverflow
	}
	return a + b, nil
}
