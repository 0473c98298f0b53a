package math

import "golang.org/x/exp/constraints"

// DivUp is the integer ceiling of n / d. d must be non-zero.
func DivUp[T constraints.Integer](n, d T) T {
	return (n + d - 1) / d
}

// AlignUp rounds n up to the next multiple of align.
func AlignUp[T constraints.Integer](n, align T) T {
	if align == 0 {
		return n
	}
	return DivUp(n, align) * align
}
