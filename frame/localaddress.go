// IEEE 802.15.4 local address filtering
// https://github.com/f-secure-foundry/tamago
//
// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package frame

// Broadcast PAN ID and short address, per 802.15.4: either one present in a
// frame's destination addressing matches every receiver regardless of its
// configured address.
const (
	BroadcastPANID uint16 = 0xffff
	BroadcastShort uint16 = 0xffff
)

// LocalAddress is the PAN ID, short address and extended address this
// driver answers to. The zero value still matches frames without a
// destination address (e.g. an ACK), broadcast destinations, and frames
// addressed to PAN 0 with short address 0 or extended address 0.
type LocalAddress struct {
	PANID        uint16
	ShortAddr    uint16
	ExtendedAddr uint64
}

// MatchesDst reports whether a frame's resolved destination addressing is
// for this address. dstPanPresent/dstAddrPresent mirror the presence
// table Resolve computes; an absent destination address (legacy
// frames with only a source address, or any frame whose addressing omits a
// destination entirely) always matches, since there is nothing to filter on.
func (a LocalAddress) MatchesDst(dstPanPresent bool, dstPan uint16, dstAddrPresent bool, dstMode AddressMode, dstAddr uint64) bool {
	if !dstAddrPresent {
		return true
	}
	if dstPanPresent && dstPan != BroadcastPANID && dstPan != a.PANID {
		return false
	}
	switch dstMode {
	case AddressModeShort:
		return uint16(dstAddr) == BroadcastShort || uint16(dstAddr) == a.ShortAddr
	case AddressModeExtended:
		return dstAddr == a.ExtendedAddr
	default:
		return true
	}
}
