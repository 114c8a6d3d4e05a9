// Staged MPDU field range parser
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

// Range is a byte range [Start, End) inside an MPDU buffer. An absent field
// has Present == false and Start == End == 0.
type Range struct {
	Present    bool
	Start, End int
}

func (r Range) Len() int {
	if !r.Present {
		return 0
	}
	return r.End - r.Start
}

// ErrFieldOverflow is returned when a stage's computed offset would not fit
// in the field's wire representation, or extends past the declared MPDU
// length.
var ErrFieldOverflow = errors.New("frame: field range overflow")

// ErrStageOrder names a parser stage driven out of order (e.g. requesting
// security fields before addressing has been resolved). The stage types
// make such calls impossible to write, so no function here returns it.
var ErrStageOrder = errors.New("frame: parser stage invoked out of order")

// FieldRanges is the compact staged cache of MPDU sub-field byte ranges.
// Only fields whose offsets are known in the current stage are populated.
type FieldRanges struct {
	FrameControl Range
	SeqNr        Range
	DstPan       Range
	DstAddr      Range
	SrcPan       Range
	SrcAddr      Range
	AuxSecHeader Range
	IEs          Range
	Payload      Range
	MIC          Range
	FCS          Range

	mpduLen int
}

// FrameControlStage is the parser's entry stage.
type FrameControlStage struct {
	ranges  FieldRanges
	offset  int // next unallocated offset
	mpduLen int
}

// NewFrameControlStage begins staged parsing of an MPDU of mpduLen bytes
// (ranges are offsets from the MPDU's first byte), with seqNrPresent indicating whether the
// sequence number field follows the frame control field (it is absent when
// FrameControl.SeqNrSuppression() is set).
func NewFrameControlStage(mpduLen int, seqNrPresent bool) (*FrameControlStage, error) {
	if mpduLen < 2 {
		return nil, fmt.Errorf("%w: mpdu shorter than frame control field", ErrFieldOverflow)
	}

	s := &FrameControlStage{mpduLen: mpduLen}
	s.ranges.FrameControl = Range{Present: true, Start: 0, End: 2}
	s.offset = 2

	if seqNrPresent {
		if s.offset+1 > mpduLen {
			return nil, fmt.Errorf("%w: sequence number", ErrFieldOverflow)
		}
		s.ranges.SeqNr = Range{Present: true, Start: s.offset, End: s.offset + 1}
		s.offset++
	}

	return s, nil
}

// AddressingStage is unlocked once addressing presence/length has been
// resolved.
type AddressingStage struct {
	ranges  FieldRanges
	offset  int
	mpduLen int
}

// WithAddressing advances to the addressing stage using repr to resolve
// field presence and lengths.
func (s *FrameControlStage) WithAddressing(repr AddressingRepr) (*AddressingStage, error) {
	presence, err := repr.Resolve()
	if err != nil {
		return nil, err
	}

	next := &AddressingStage{ranges: s.ranges, offset: s.offset, mpduLen: s.mpduLen}

	place := func(present bool, length int, dst *Range) error {
		if !present {
			*dst = Range{}
			return nil
		}
		if next.offset+length > next.mpduLen {
			return fmt.Errorf("%w: addressing field", ErrFieldOverflow)
		}
		*dst = Range{Present: true, Start: next.offset, End: next.offset + length}
		next.offset += length
		return nil
	}

	if err := place(presence.DstPan, panIDLength, &next.ranges.DstPan); err != nil {
		return nil, err
	}
	if err := place(presence.DstAddr, addrLength(repr.DstMode), &next.ranges.DstAddr); err != nil {
		return nil, err
	}
	if err := place(presence.SrcPan, panIDLength, &next.ranges.SrcPan); err != nil {
		return nil, err
	}
	if err := place(presence.SrcAddr, addrLength(repr.SrcMode), &next.ranges.SrcAddr); err != nil {
		return nil, err
	}

	return next, nil
}

// WithoutAddressing advances to the addressing stage with no addressing
// fields present at all (e.g. frame version 2015+ with an Information
// Element carrying addressing instead).
func (s *FrameControlStage) WithoutAddressing() *AddressingStage {
	return &AddressingStage{ranges: s.ranges, offset: s.offset, mpduLen: s.mpduLen}
}

// DstPan returns the resolved destination PAN ID range, for callers (e.g.
// driver service address filtering) that need addressing before the rest of
// the MPDU has been staged.
func (s *AddressingStage) DstPan() Range { return s.ranges.DstPan }

// DstAddr returns the resolved destination address range.
func (s *AddressingStage) DstAddr() Range { return s.ranges.DstAddr }

// SecurityStage is unlocked once the auxiliary security header range is
// known.
type SecurityStage struct {
	ranges  FieldRanges
	offset  int
	mpduLen int
}

// SecurityRepr describes the auxiliary security header's length, if present.
// Cryptographic processing happens elsewhere; only the header's size
// accounting is needed here.
type SecurityRepr struct {
	AuxHeaderLength int
}

// WithSecurity advances to the security stage, placing the auxiliary
// security header immediately after addressing.
func (s *AddressingStage) WithSecurity(repr SecurityRepr) (*SecurityStage, error) {
	next := &SecurityStage{ranges: s.ranges, offset: s.offset, mpduLen: s.mpduLen}

	if repr.AuxHeaderLength > 0 {
		if next.offset+repr.AuxHeaderLength > next.mpduLen {
			return nil, fmt.Errorf("%w: auxiliary security header", ErrFieldOverflow)
		}
		next.ranges.AuxSecHeader = Range{Present: true, Start: next.offset, End: next.offset + repr.AuxHeaderLength}
		next.offset += repr.AuxHeaderLength
	}

	return next, nil
}

// WithoutSecurity advances to the security stage with no security header.
func (s *AddressingStage) WithoutSecurity() *SecurityStage {
	return &SecurityStage{ranges: s.ranges, offset: s.offset, mpduLen: s.mpduLen}
}

// finalize places IEs, payload, MIC and FCS ranges given their lengths and
// returns the completed FieldRanges (AllFields stage).
func (s *SecurityStage) finalize(ieLen, payloadLen, micLen, fcsLen int) (FieldRanges, error) {
	ranges := s.ranges
	offset := s.offset

	place := func(length int, dst *Range) error {
		if length == 0 {
			*dst = Range{}
			return nil
		}
		if offset+length > s.mpduLen+fcsLen && dst != &ranges.FCS {
			return fmt.Errorf("%w: field extends past mpdu", ErrFieldOverflow)
		}
		*dst = Range{Present: true, Start: offset, End: offset + length}
		offset += length
		return nil
	}

	if err := place(ieLen, &ranges.IEs); err != nil {
		return FieldRanges{}, err
	}
	if err := place(payloadLen, &ranges.Payload); err != nil {
		return FieldRanges{}, err
	}
	if err := place(micLen, &ranges.MIC); err != nil {
		return FieldRanges{}, err
	}
	if err := place(fcsLen, &ranges.FCS); err != nil {
		return FieldRanges{}, err
	}

	if offset != s.mpduLen+fcsLen {
		return FieldRanges{}, fmt.Errorf("%w: field layout does not cover declared mpdu length (got %d want %d)",
			ErrFieldOverflow, offset, s.mpduLen+fcsLen)
	}

	ranges.mpduLen = s.mpduLen
	return ranges, nil
}

// WithIEsAndPayloadLength completes parsing given explicit IE and payload
// lengths. The MIC length is passed by the caller rather than derived from
// the security header, since cryptographic processing happens elsewhere.
func (s *SecurityStage) WithIEsAndPayloadLength(ieLen, payloadLen, micLen, fcsLen int) (FieldRanges, error) {
	return s.finalize(ieLen, payloadLen, micLen, fcsLen)
}

// WithIEsAndMpduLength completes parsing given an IE length and the total
// remaining MPDU length (IEs + payload + MIC combined), splitting the
// remainder into payload per payloadLen and leaving MIC explicit.
func (s *SecurityStage) WithIEsAndMpduLength(ieLen, remainingMpduLen, micLen, fcsLen int) (FieldRanges, error) {
	payloadLen := remainingMpduLen - ieLen - micLen
	if payloadLen < 0 {
		return FieldRanges{}, fmt.Errorf("%w: ie+mic exceed remaining mpdu length", ErrFieldOverflow)
	}
	return s.finalize(ieLen, payloadLen, micLen, fcsLen)
}

// WithoutIEsAndPayloadLength completes parsing with no IEs, given only a
// payload length.
func (s *SecurityStage) WithoutIEsAndPayloadLength(payloadLen, micLen, fcsLen int) (FieldRanges, error) {
	return s.finalize(0, payloadLen, micLen, fcsLen)
}

// WithoutIEsAndMpduLength completes parsing with no IEs, deriving payload
// length from the total remaining MPDU length.
func (s *SecurityStage) WithoutIEsAndMpduLength(remainingMpduLen, micLen, fcsLen int) (FieldRanges, error) {
	payloadLen := remainingMpduLen - micLen
	if payloadLen < 0 {
		return FieldRanges{}, fmt.Errorf("%w: mic exceeds remaining mpdu length", ErrFieldOverflow)
	}
	return s.finalize(0, payloadLen, micLen, fcsLen)
}
