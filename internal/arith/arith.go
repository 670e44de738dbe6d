// Package arith holds the numeric functions exported by the guest module.
//
// These are plain Go so they can be tested natively and shared by every guest
// target (wasip1 and js).
package arith

import "math"

// Add returns a + b.
//
// Go fixed-width integers wrap on overflow (two's complement), so
// Add(math.MaxInt32, 1) == math.MinInt32. WebAssembly's i32.add has the same
// semantics, which means the native and guest results always agree.
func Add(a, b int32) int32 {
	return a + b
}

// Overflows reports whether the mathematical sum of a and b lies outside the
// int32 range, in which case Add wrapped.
func Overflows(a, b int32) bool {
	sum := int64(a) + int64(b)
	return sum > math.MaxInt32 || sum < math.MinInt32
}
