// IEEE 802.15.4 frame control field
// https://github.com/f-secure-foundry/tamago
//
// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package frame

import "encoding/binary"

// AddressMode is the 2-bit dst/src addressing mode sub-field.
type AddressMode uint8

const (
	AddressModeAbsent   AddressMode = 0b00
	AddressModeReserved AddressMode = 0b01
	AddressModeShort    AddressMode = 0b10
	AddressModeExtended AddressMode = 0b11
)

// FrameType is the 3-bit frame type sub-field.
type FrameType uint8

const (
	FrameTypeBeacon       FrameType = 0
	FrameTypeData         FrameType = 1
	FrameTypeAck          FrameType = 2
	FrameTypeCommand      FrameType = 3
	FrameTypeReserved4    FrameType = 4
	FrameTypeMultipurpose FrameType = 5
	FrameTypeFragment     FrameType = 6
	FrameTypeExtended     FrameType = 7
)

// FrameVersion is the 2-bit frame version sub-field.
type FrameVersion uint8

const (
	FrameVersion2003     FrameVersion = 0b00
	FrameVersion2006     FrameVersion = 0b01
	FrameVersion2015     FrameVersion = 0b10
	FrameVersionReserved FrameVersion = 0b11
)

// Bit positions within the little-endian 16-bit frame control field.
const (
	bitType             = 0 // 3 bits
	bitSecurityEnabled  = 3
	bitFramePending     = 4
	bitAckRequest       = 5
	bitPanIDCompression = 6
	bitReserved         = 7
	bitSeqNrSuppression = 8
	bitIEPresent        = 9
	bitDstAddrMode      = 10 // 2 bits
	bitFrameVersion     = 12 // 2 bits
	bitSrcAddrMode      = 14 // 2 bits
)

// FrameControl wraps the 2-byte frame control field and exposes bit-field
// accessors. Every setter/getter pair round-trips without disturbing other
// sub-fields.
type FrameControl uint16

// ParseFrameControl reads the little-endian frame control field from the
// first two bytes of b.
func ParseFrameControl(b []byte) FrameControl {
	return FrameControl(binary.LittleEndian.Uint16(b))
}

// Put writes the frame control field, little-endian, into the first two
// bytes of b.
func (fc FrameControl) Put(b []byte) {
	binary.LittleEndian.PutUint16(b, uint16(fc))
}

func getBits(v uint16, pos, width int) uint16 {
	mask := uint16((1 << width) - 1)
	return (v >> pos) & mask
}

func setBits(v uint16, pos, width int, val uint16) uint16 {
	mask := uint16((1 << width) - 1)
	v &^= mask << pos
	v |= (val & mask) << pos
	return v
}

func (fc FrameControl) Type() FrameType {
	return FrameType(getBits(uint16(fc), bitType, 3))
}

func (fc FrameControl) WithType(t FrameType) FrameControl {
	return FrameControl(setBits(uint16(fc), bitType, 3, uint16(t)))
}

func (fc FrameControl) SecurityEnabled() bool {
	return getBits(uint16(fc), bitSecurityEnabled, 1) != 0
}

func (fc FrameControl) WithSecurityEnabled(v bool) FrameControl {
	return FrameControl(setBits(uint16(fc), bitSecurityEnabled, 1, boolBit(v)))
}

func (fc FrameControl) FramePending() bool {
	return getBits(uint16(fc), bitFramePending, 1) != 0
}

func (fc FrameControl) WithFramePending(v bool) FrameControl {
	return FrameControl(setBits(uint16(fc), bitFramePending, 1, boolBit(v)))
}

func (fc FrameControl) AckRequest() bool {
	return getBits(uint16(fc), bitAckRequest, 1) != 0
}

func (fc FrameControl) WithAckRequest(v bool) FrameControl {
	return FrameControl(setBits(uint16(fc), bitAckRequest, 1, boolBit(v)))
}

func (fc FrameControl) PanIDCompression() bool {
	return getBits(uint16(fc), bitPanIDCompression, 1) != 0
}

func (fc FrameControl) WithPanIDCompression(v bool) FrameControl {
	return FrameControl(setBits(uint16(fc), bitPanIDCompression, 1, boolBit(v)))
}

func (fc FrameControl) SeqNrSuppression() bool {
	return getBits(uint16(fc), bitSeqNrSuppression, 1) != 0
}

func (fc FrameControl) WithSeqNrSuppression(v bool) FrameControl {
	return FrameControl(setBits(uint16(fc), bitSeqNrSuppression, 1, boolBit(v)))
}

func (fc FrameControl) IEPresent() bool {
	return getBits(uint16(fc), bitIEPresent, 1) != 0
}

func (fc FrameControl) WithIEPresent(v bool) FrameControl {
	return FrameControl(setBits(uint16(fc), bitIEPresent, 1, boolBit(v)))
}

func (fc FrameControl) DstAddrMode() AddressMode {
	return AddressMode(getBits(uint16(fc), bitDstAddrMode, 2))
}

func (fc FrameControl) WithDstAddrMode(m AddressMode) FrameControl {
	return FrameControl(setBits(uint16(fc), bitDstAddrMode, 2, uint16(m)))
}

func (fc FrameControl) SrcAddrMode() AddressMode {
	return AddressMode(getBits(uint16(fc), bitSrcAddrMode, 2))
}

func (fc FrameControl) WithSrcAddrMode(m AddressMode) FrameControl {
	return FrameControl(setBits(uint16(fc), bitSrcAddrMode, 2, uint16(m)))
}

func (fc FrameControl) Version() FrameVersion {
	return FrameVersion(getBits(uint16(fc), bitFrameVersion, 2))
}

func (fc FrameControl) WithVersion(v FrameVersion) FrameControl {
	return FrameControl(setBits(uint16(fc), bitFrameVersion, 2, uint16(v)))
}

func boolBit(v bool) uint16 {
	if v {
		return 1
	}
	return 0
}
