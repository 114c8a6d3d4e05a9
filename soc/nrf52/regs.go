// Simulated nRF52 RADIO register file
// https://github.com/f-secure-foundry/tamago
//
// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package nrf52 provides a host-testable simulation of an nRF52-class
// RADIO peripheral implementing the radio.Peripheral interface, standing
// in for real silicon. The "addresses" are slice indices into an
// in-process register file instead of unsafe.Pointer dereferences, and a
// background goroutine stands in for the radio's autonomous shortcut and
// ramp-timing state machine.
package nrf52

// Register offsets, named after the subset of the real RADIO peripheral's
// register map this simulation models.
const (
	regState = iota
	regShorts
	regFrequency
	regTxPower
	regPcnf0 // SFD byte packed into bits [7:0]
	regCcaCtrl
	regCcaThreshold
	regTifs
	regCount
)

// Bit positions within regShorts, mirroring the real READY_START /
// END_DISABLE-style shortcut bits this simulation actually exercises.
const (
	shortRxReadyStart = iota
	shortTxReadyStart
	shortEndDisable
)

// regFile is an in-memory register file, narrow enough to matter for this
// simulation but laid out with the usual get/set/clear/setN MMIO access
// pattern.
type regFile struct {
	words [regCount]uint32
}

func (r *regFile) get(reg, pos, mask int) uint32 {
	return (r.words[reg] >> uint(pos)) & uint32(mask)
}

func (r *regFile) set(reg, pos int) {
	r.words[reg] |= 1 << uint(pos)
}

func (r *regFile) clear(reg, pos int) {
	r.words[reg] &^= 1 << uint(pos)
}

func (r *regFile) setN(reg, pos, mask int, val uint32) {
	r.words[reg] = (r.words[reg] &^ (uint32(mask) << uint(pos))) | (val << uint(pos))
}
