// MPDU reinterpretation of a radio frame buffer
// https://github.com/f-secure-foundry/tamago
//
// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package frame

import "github.com/dot15d4go/dot15d4/dma"

// MpduFrame re-interprets a SizedFrame's buffer as an MPDU: an offset inside
// the buffer plus the MPDU length without FCS. Like SizedFrame/UnsizedFrame,
// it wraps exactly one dma.Token and the conversion to/from SizedFrame moves
// that token rather than copying it.
type MpduFrame struct {
	tok        *dma.Token
	mpduOffset int
	mpduLen    int
}

// ToMpduFrame converts a SizedFrame into its MPDU view. The MPDU offset
// inside the buffer equals the frame's configured headroom; the MPDU length
// equals the frame's SDU length. Zero-copy: f is consumed.
func (f *SizedFrame) ToMpduFrame() (*MpduFrame, error) {
	if f.tok == nil {
		return nil, ErrConsumed
	}

	m := &MpduFrame{
		tok:        f.tok,
		mpduOffset: f.geom.Headroom,
		mpduLen:    f.sduLen,
	}
	f.tok = nil

	return m, nil
}

// ToSizedFrame converts back into a SizedFrame, given the geometry the
// original RadioFrame was configured with (the MPDU offset must equal
// geom.Headroom; callers constructing an MpduFrame by hand, e.g. a parser,
// are responsible for this invariant).
func (m *MpduFrame) ToSizedFrame(geom Geometry) (*SizedFrame, error) {
	if m.tok == nil {
		return nil, ErrConsumed
	}

	f := &SizedFrame{geom: geom, tok: m.tok, sduLen: m.mpduLen}
	m.tok = nil

	return f, nil
}

// Offset returns the MPDU's byte offset inside the underlying buffer.
func (m *MpduFrame) Offset() int { return m.mpduOffset }

// Len returns the MPDU length without FCS.
func (m *MpduFrame) Len() int { return m.mpduLen }

// Bytes returns the MPDU payload view, aliasing the underlying buffer.
func (m *MpduFrame) Bytes() ([]byte, error) {
	if m.tok == nil {
		return nil, ErrConsumed
	}
	b := m.tok.Bytes()
	return b[m.mpduOffset : m.mpduOffset+m.mpduLen], nil
}

// Release returns the frame's underlying token, consuming the frame.
func (m *MpduFrame) Release() (*dma.Token, error) {
	if m.tok == nil {
		return nil, ErrConsumed
	}
	tok := m.tok
	m.tok = nil
	return tok, nil
}
