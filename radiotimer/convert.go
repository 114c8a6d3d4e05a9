// Tick <-> nanosecond conversion
// https://github.com/f-secure-foundry/tamago
//
// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package radiotimer

import "math/bits"

// At 32,768 Hz, one tick is exactly 5^9/2^6 ns (5^9 = 1,953,125). NsToTicks
// inverts this using a fixed-point reciprocal (N=78, M=2^(6+N)/5^9), the same
// multiply-high-then-shift technique the Go compiler itself uses to replace
// integer division by a constant.
const (
	tickNumerator  = 1953125 // 5^9
	tickShift      = 6
	nsToTicksMagic = 9903520314283042199 // 2^84 / 5^9, floor
	nsToTicksShift = 78
)

// TicksToNs converts a tick count to nanoseconds. The result is only exact
// for ticks whose nanosecond equivalent fits in a uint64, i.e. up to
// approximately 584 years; the 55-bit tick domain itself spans far longer
// (tens of thousands of years) but no caller needs a nanosecond view that far
// out. Values returned by NsToTicks always satisfy this.
func TicksToNs(ticks uint64) uint64 {
	hi, lo := bits.Mul64(ticks, tickNumerator)

	var carry uint64
	lo, carry = bits.Add64(lo, 1<<(tickShift-1), 0) // round to nearest
	hi += carry

	return hi<<(64-tickShift) | lo>>tickShift
}

// NsToTicks converts a nanosecond duration to the nearest tick count. The
// full range is approximately 584 years in ns (the practical bound of a
// uint64 nanosecond counter).
func NsToTicks(ns uint64) uint64 {
	hi, _ := bits.Mul64(ns, nsToTicksMagic)
	hi += 1 << (nsToTicksShift - 64 - 1) // round to nearest (2^77 >> 64 == 2^13)
	return hi >> (nsToTicksShift - 64)
}
