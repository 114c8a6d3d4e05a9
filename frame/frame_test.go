// https://github.com/f-secure-foundry/tamago
//
// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package frame

import (
	"testing"

	"github.com/dot15d4go/dot15d4/dma"
)

// TestFrameControlRoundTrip checks that a setter followed by a getter
// returns the original value and leaves other sub-fields unchanged.
func TestFrameControlRoundTrip(t *testing.T) {
	var fc FrameControl

	fc = fc.WithType(FrameTypeData)
	fc = fc.WithAckRequest(true)
	fc = fc.WithDstAddrMode(AddressModeShort)
	fc = fc.WithSrcAddrMode(AddressModeExtended)
	fc = fc.WithVersion(FrameVersion2006)
	fc = fc.WithPanIDCompression(true)

	if fc.Type() != FrameTypeData {
		t.Fatalf("type: got %v", fc.Type())
	}
	if !fc.AckRequest() {
		t.Fatal("ack request not set")
	}
	if fc.DstAddrMode() != AddressModeShort {
		t.Fatalf("dst addr mode: got %v", fc.DstAddrMode())
	}
	if fc.SrcAddrMode() != AddressModeExtended {
		t.Fatalf("src addr mode: got %v", fc.SrcAddrMode())
	}
	if fc.Version() != FrameVersion2006 {
		t.Fatalf("version: got %v", fc.Version())
	}
	if !fc.PanIDCompression() {
		t.Fatal("pan id compression not set")
	}
	if fc.SecurityEnabled() || fc.FramePending() || fc.SeqNrSuppression() || fc.IEPresent() {
		t.Fatal("unrelated sub-fields were disturbed")
	}

	// flipping one field back off must not disturb the others
	fc = fc.WithAckRequest(false)
	if fc.AckRequest() {
		t.Fatal("ack request still set after clearing")
	}
	if fc.DstAddrMode() != AddressModeShort || fc.Version() != FrameVersion2006 {
		t.Fatal("clearing one field disturbed others")
	}
}

func TestFrameControlWireFormat(t *testing.T) {
	// An immediate ACK's frame control word: frame-type 2 (Ack), frame
	// version 2003, seq suppression off -> on-air bytes "02 00".
	var fc FrameControl
	fc = fc.WithType(FrameTypeAck).WithVersion(FrameVersion2003)

	b := make([]byte, 2)
	fc.Put(b)

	if b[0] != 0x02 || b[1] != 0x00 {
		t.Fatalf("got % x, want 02 00", b)
	}

	parsed := ParseFrameControl(b)
	if parsed.Type() != FrameTypeAck || parsed.Version() != FrameVersion2003 {
		t.Fatalf("round trip mismatch: %+v", parsed)
	}
}

// TestCRC16KermitCheckValue uses the standard CRC-16/KERMIT check value for
// the ASCII string "123456789" (0x2189) as ground truth for the
// polynomial/reflection implementation.
func TestCRC16KermitCheckValue(t *testing.T) {
	got := CRC16Kermit([]byte("123456789"))
	if got != 0x2189 {
		t.Fatalf("got %#04x, want 0x2189", got)
	}
}

// addressingCases enumerates every (flavor, dst, src, pan_ids_equal)
// combination, used for both the length check and exhaustive
// error/valid-row coverage of the presence table.
func addressingCases() []struct {
	repr    AddressingRepr
	wantErr bool
} {
	var cases []struct {
		repr    AddressingRepr
		wantErr bool
	}

	modes := []AddressMode{AddressModeAbsent, AddressModeShort, AddressModeExtended}
	flavors := []PanCompression{PanCompressionLegacy, PanCompressionYes, PanCompressionNo}

	for _, flavor := range flavors {
		for _, dst := range modes {
			for _, src := range modes {
				for _, eq := range []bool{true, false} {
					repr := AddressingRepr{DstMode: dst, SrcMode: src, PanIDsEqual: eq, Compression: flavor}
					wantErr := flavor == PanCompressionLegacy && (dst == AddressModeAbsent && src == AddressModeAbsent ||
						(dst == AddressModeAbsent || src == AddressModeAbsent) && dst != src && eq)
					cases = append(cases, struct {
						repr    AddressingRepr
						wantErr bool
					}{repr, wantErr})
				}
			}
		}
	}

	return cases
}

// TestAddressingPresenceLength checks that for every presence-table input,
// Length equals the sum of the four presence-conditioned field lengths.
func TestAddressingPresenceLength(t *testing.T) {
	for _, c := range addressingCases() {
		presence, err := c.repr.Resolve()

		if c.wantErr {
			if err == nil {
				t.Errorf("%+v: expected error, got none", c.repr)
			}
			continue
		}

		if err != nil {
			t.Errorf("%+v: unexpected error: %v", c.repr, err)
			continue
		}

		want := 0
		if presence.DstPan {
			want += panIDLength
		}
		if presence.DstAddr {
			want += addrLength(c.repr.DstMode)
		}
		if presence.SrcPan {
			want += panIDLength
		}
		if presence.SrcAddr {
			want += addrLength(c.repr.SrcMode)
		}

		got := c.repr.Length(presence)
		if got != want {
			t.Errorf("%+v: length mismatch got %d want %d", c.repr, got, want)
		}
	}
}

func TestAddressingLegacyRows(t *testing.T) {
	r := AddressingRepr{DstMode: AddressModeShort, SrcMode: AddressModeExtended, PanIDsEqual: false, Compression: PanCompressionLegacy}
	p, err := r.Resolve()
	if err != nil {
		t.Fatal(err)
	}
	if !(p.DstPan && p.DstAddr && p.SrcPan && p.SrcAddr) {
		t.Fatalf("expected all four fields present, got %+v", p)
	}

	r.PanIDsEqual = true
	p, err = r.Resolve()
	if err != nil {
		t.Fatal(err)
	}
	if !(p.DstPan && p.DstAddr && !p.SrcPan && p.SrcAddr) {
		t.Fatalf("expected src pan omitted when pan ids equal, got %+v", p)
	}
}

func TestAddressingModernCompressedBothExtended(t *testing.T) {
	r := AddressingRepr{DstMode: AddressModeExtended, SrcMode: AddressModeExtended, PanIDsEqual: true, Compression: PanCompressionYes}
	p, err := r.Resolve()
	if err != nil {
		t.Fatal(err)
	}
	if p.DstPan || p.SrcPan || !p.DstAddr || !p.SrcAddr {
		t.Fatalf("expected (-,d,-,s), got %+v", p)
	}
}

func TestRadioFrameGeometryAndZeroCopyConversion(t *testing.T) {
	pool := dma.NewPool(128, 1)
	tok, err := pool.TryAllocate(128)
	if err != nil {
		t.Fatal(err)
	}

	geom := Geometry{Headroom: 1, MaxSDU: 125, DriverOverhead: 2, LengthFCS: 2}

	unsized, err := NewUnsizedFrame(tok, geom)
	if err != nil {
		t.Fatal(err)
	}

	sized, err := unsized.ToSized(10)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := unsized.Raw(); err != ErrConsumed {
		t.Fatal("expected source frame to be consumed after ToSized")
	}

	if sized.SDULength() != 10 {
		t.Fatalf("sdu length: got %d", sized.SDULength())
	}
	if sized.OffsetFCS() != geom.Headroom+10 {
		t.Fatalf("offset fcs: got %d", sized.OffsetFCS())
	}

	mpdu, err := sized.ToMpduFrame()
	if err != nil {
		t.Fatal(err)
	}
	if mpdu.Offset() != geom.Headroom || mpdu.Len() != 10 {
		t.Fatalf("mpdu geometry mismatch: offset=%d len=%d", mpdu.Offset(), mpdu.Len())
	}

	back, err := mpdu.ToSizedFrame(geom)
	if err != nil {
		t.Fatal(err)
	}

	released, err := back.Release()
	if err != nil {
		t.Fatal(err)
	}
	if err := released.Release(); err != nil {
		t.Fatalf("final release: %v", err)
	}
}

func TestGeometryRejectsOversizedFrame(t *testing.T) {
	pool := dma.NewPool(8, 1)
	tok, _ := pool.TryAllocate(8)

	geom := Geometry{Headroom: 4, MaxSDU: 8, DriverOverhead: 0}
	if _, err := NewUnsizedFrame(tok, geom); err == nil {
		t.Fatal("expected geometry error")
	}
}
