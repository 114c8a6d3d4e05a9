// IEEE 802.15.4 addressing field presence resolution
// https://github.com/f-secure-foundry/tamago
//
// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package frame

import (
	"errors"
	"fmt"
)

// PanCompression selects which PAN-ID-compression rule set governs
// addressing field presence.
type PanCompression int

const (
	// PanCompressionLegacy selects the pre-2015 compression rules.
	PanCompressionLegacy PanCompression = iota
	// PanCompressionYes selects the 2015+ rules with the compression flag set.
	PanCompressionYes
	// PanCompressionNo selects the 2015+ rules with the compression flag clear.
	PanCompressionNo
)

// AddressingRepr is the (dst_mode, src_mode, pan_ids_equal,
// pan_id_compression_flavor) tuple that deterministically resolves
// addressing field presence and length.
type AddressingRepr struct {
	DstMode     AddressMode
	SrcMode     AddressMode
	PanIDsEqual bool
	Compression PanCompression
}

// Presence describes whether each of the four address-related fields is
// present in the addressing block.
type Presence struct {
	DstPan  bool
	DstAddr bool
	SrcPan  bool
	SrcAddr bool
}

// ErrInvalidAddressing is returned when the (flavor, dst_mode, src_mode,
// pan_ids_equal) tuple has no valid presence-table row.
var ErrInvalidAddressing = errors.New("frame: invalid addressing field combination")

const (
	panIDLength     = 2
	shortAddrLength = 2
	extendedAddrLen = 8
)

func addrLength(m AddressMode) int {
	switch m {
	case AddressModeShort:
		return shortAddrLength
	case AddressModeExtended:
		return extendedAddrLen
	default:
		return 0
	}
}

// Resolve computes field presence for the repr. Invalid combinations are
// rejected, never silently accepted.
func (r AddressingRepr) Resolve() (Presence, error) {
	dstAbsent := r.DstMode == AddressModeAbsent
	srcAbsent := r.SrcMode == AddressModeAbsent

	switch r.Compression {
	case PanCompressionLegacy:
		switch {
		case dstAbsent && srcAbsent:
			return Presence{}, fmt.Errorf("%w: legacy, both addresses absent", ErrInvalidAddressing)
		case dstAbsent && !srcAbsent:
			if r.PanIDsEqual {
				return Presence{}, fmt.Errorf("%w: legacy, dst absent with pan_ids_equal", ErrInvalidAddressing)
			}
			return Presence{SrcPan: true, SrcAddr: true}, nil
		case !dstAbsent && srcAbsent:
			if r.PanIDsEqual {
				return Presence{}, fmt.Errorf("%w: legacy, src absent with pan_ids_equal", ErrInvalidAddressing)
			}
			return Presence{DstPan: true, DstAddr: true}, nil
		default: // both present
			if r.PanIDsEqual {
				return Presence{DstPan: true, DstAddr: true, SrcAddr: true}, nil
			}
			return Presence{DstPan: true, DstAddr: true, SrcPan: true, SrcAddr: true}, nil
		}

	case PanCompressionYes:
		switch {
		case dstAbsent && srcAbsent:
			return Presence{DstPan: true}, nil
		case !dstAbsent && srcAbsent:
			return Presence{DstAddr: true}, nil
		case dstAbsent && !srcAbsent:
			return Presence{SrcAddr: true}, nil
		case r.DstMode == AddressModeExtended && r.SrcMode == AddressModeExtended:
			return Presence{DstAddr: true, SrcAddr: true}, nil
		default: // at least one of dst/src is Short
			return Presence{DstPan: true, DstAddr: true, SrcAddr: true}, nil
		}

	case PanCompressionNo:
		switch {
		case dstAbsent && srcAbsent:
			return Presence{}, nil
		case !dstAbsent && srcAbsent:
			return Presence{DstPan: true, DstAddr: true}, nil
		case dstAbsent && !srcAbsent:
			return Presence{SrcPan: true, SrcAddr: true}, nil
		case r.DstMode == AddressModeExtended && r.SrcMode == AddressModeExtended:
			return Presence{DstPan: true, DstAddr: true, SrcAddr: true}, nil
		default: // both present, at least one Short
			return Presence{DstPan: true, DstAddr: true, SrcPan: true, SrcAddr: true}, nil
		}
	}

	return Presence{}, fmt.Errorf("%w: unknown compression flavor %d", ErrInvalidAddressing, r.Compression)
}

// Length returns the total addressing-field byte length implied by p and the
// repr's address modes.
func (r AddressingRepr) Length(p Presence) int {
	n := 0
	if p.DstPan {
		n += panIDLength
	}
	if p.DstAddr {
		n += addrLength(r.DstMode)
	}
	if p.SrcPan {
		n += panIDLength
	}
	if p.SrcAddr {
		n += addrLength(r.SrcMode)
	}
	return n
}

// AddressingFieldsLength resolves presence and returns the total addressing
// block length in one step.
func (r AddressingRepr) AddressingFieldsLength() (int, error) {
	p, err := r.Resolve()
	if err != nil {
		return 0, err
	}
	return r.Length(p), nil
}
