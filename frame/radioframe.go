// Radio frame and MPDU buffer geometry
// https://github.com/f-secure-foundry/tamago
//
// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package frame implements the zero-copy buffer/frame infrastructure: PHY
// framing geometry (RadioFrame), MPDU reinterpretation (MpduFrame) and the
// staged MPDU field-range parser (FieldRanges, AddressingRepr).
//
// Every exported frame type wraps exactly one dma.Token. Conversions between
// frame types move that token between Go values without copying the
// underlying bytes, so a single allocation travels from DMA reception
// through MPDU parsing without a memcpy.
package frame

import (
	"errors"
	"fmt"

	"github.com/dot15d4go/dot15d4/dma"
)

// ErrGeometry is returned when a frame's requested geometry does not fit the
// backing buffer.
var ErrGeometry = errors.New("frame: geometry does not fit buffer")

// ErrConsumed is returned by any method called on a frame value whose
// underlying token has already been moved into a different frame type or
// released.
var ErrConsumed = errors.New("frame: frame already consumed")

// Geometry describes driver-configured PHY framing independent of any
// particular buffer instance.
type Geometry struct {
	// Headroom is the number of bytes before the MPDU reserved for PHY
	// headers. May be zero.
	Headroom int

	// MaxSDU is the maximum MPDU length (without FCS) this driver
	// configuration supports.
	MaxSDU int

	// DriverOverhead is any additional trailing bytes the driver
	// implementation requires.
	DriverOverhead int

	// LengthFCS is 0 when FCS is hardware-offloaded, otherwise 2 or 4.
	LengthFCS int
}

// fits validates the geometry against a buffer of the given capacity.
func (g Geometry) fits(bufLen int) error {
	if g.Headroom+g.MaxSDU+g.DriverOverhead > bufLen {
		return fmt.Errorf("%w: headroom(%d)+maxSDU(%d)+overhead(%d) > buffer(%d)",
			ErrGeometry, g.Headroom, g.MaxSDU, g.DriverOverhead, bufLen)
	}
	return nil
}

// UnsizedFrame is a RadioFrame<Unsized>: a buffer reserved to receive a frame
// of as-yet-unknown length.
type UnsizedFrame struct {
	geom Geometry
	tok  *dma.Token
}

// SizedFrame is a RadioFrame<Sized>: a buffer holding (or about to transmit)
// an MPDU of exactly sduLen bytes, with FCS immediately following per geom.
type SizedFrame struct {
	geom   Geometry
	tok    *dma.Token
	sduLen int
}

// NewUnsizedFrame wraps tok as a RadioFrame ready to receive a frame, per the
// given geometry. The token's length must be at least geom's required
// capacity.
func NewUnsizedFrame(tok *dma.Token, geom Geometry) (*UnsizedFrame, error) {
	if err := geom.fits(tok.Len()); err != nil {
		return nil, err
	}
	return &UnsizedFrame{geom: geom, tok: tok}, nil
}

// Geometry returns the frame's configured geometry.
func (f *UnsizedFrame) Geometry() Geometry { return f.geom }

// Headroom returns the number of reserved bytes preceding the MPDU.
func (f *UnsizedFrame) Headroom() int { return f.geom.Headroom }

// Raw returns the full backing buffer, for use by hardware DMA setup
// (PACKETPTR and friends). Valid only while the frame is not consumed.
func (f *UnsizedFrame) Raw() ([]byte, error) {
	if f.tok == nil {
		return nil, ErrConsumed
	}
	return f.tok.Bytes(), nil
}

// ToSized converts the frame to a RadioFrame<Sized> of the given SDU length
// (without FCS), zero-copy: the underlying token moves into the returned
// SizedFrame and f becomes consumed.
func (f *UnsizedFrame) ToSized(sduLen int) (*SizedFrame, error) {
	if f.tok == nil {
		return nil, ErrConsumed
	}
	if f.geom.Headroom+sduLen+f.geom.LengthFCS+f.geom.DriverOverhead > f.tok.Len() {
		return nil, fmt.Errorf("%w: sized frame exceeds buffer", ErrGeometry)
	}

	sized := &SizedFrame{geom: f.geom, tok: f.tok, sduLen: sduLen}
	f.tok = nil

	return sized, nil
}

// Release returns the frame's underlying token, consuming the frame. The
// caller becomes responsible for eventually releasing the token to its
// pool.
func (f *UnsizedFrame) Release() (*dma.Token, error) {
	if f.tok == nil {
		return nil, ErrConsumed
	}
	tok := f.tok
	f.tok = nil
	return tok, nil
}

// Geometry returns the frame's configured geometry.
func (f *SizedFrame) Geometry() Geometry { return f.geom }

// SDULength returns the MPDU length without FCS.
func (f *SizedFrame) SDULength() int { return f.sduLen }

// OffsetFCS returns the byte offset, from the start of the buffer, where the
// FCS begins (or would begin, for hardware-offloaded FCS).
func (f *SizedFrame) OffsetFCS() int { return f.geom.Headroom + f.sduLen }

// SDU returns the MPDU payload view (without FCS), aliasing the underlying
// buffer.
func (f *SizedFrame) SDU() ([]byte, error) {
	if f.tok == nil {
		return nil, ErrConsumed
	}
	b := f.tok.Bytes()
	start := f.geom.Headroom
	return b[start : start+f.sduLen], nil
}

// FCS returns the FCS bytes, or nil if FCS is hardware-offloaded
// (geom.LengthFCS == 0).
func (f *SizedFrame) FCS() ([]byte, error) {
	if f.tok == nil {
		return nil, ErrConsumed
	}
	if f.geom.LengthFCS == 0 {
		return nil, nil
	}
	b := f.tok.Bytes()
	start := f.OffsetFCS()
	return b[start : start+f.geom.LengthFCS], nil
}

// Raw returns the full backing buffer.
func (f *SizedFrame) Raw() ([]byte, error) {
	if f.tok == nil {
		return nil, ErrConsumed
	}
	return f.tok.Bytes(), nil
}

// ToUnsized converts back to a RadioFrame<Unsized>, zero-copy, e.g. when a
// driver recovers a frame buffer to reuse it for the next receive window.
func (f *SizedFrame) ToUnsized() (*UnsizedFrame, error) {
	if f.tok == nil {
		return nil, ErrConsumed
	}
	u := &UnsizedFrame{geom: f.geom, tok: f.tok}
	f.tok = nil
	return u, nil
}

// Release returns the frame's underlying token, consuming the frame.
func (f *SizedFrame) Release() (*dma.Token, error) {
	if f.tok == nil {
		return nil, ErrConsumed
	}
	tok := f.tok
	f.tok = nil
	return tok, nil
}

// Resize re-interprets the same buffer as holding a different SDU length,
// without touching the token; used when a task result carries back a frame
// whose SDU length differs from what was scheduled.
func (f *SizedFrame) Resize(sduLen int) error {
	if f.tok == nil {
		return ErrConsumed
	}
	if f.geom.Headroom+sduLen+f.geom.LengthFCS+f.geom.DriverOverhead > f.tok.Len() {
		return fmt.Errorf("%w: resize exceeds buffer", ErrGeometry)
	}
	f.sduLen = sduLen
	return nil
}
