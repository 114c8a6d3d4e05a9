// Frame check sequence computation
// https://github.com/f-secure-foundry/tamago
//
// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package frame

import "hash/crc32"

// CRC16Kermit computes the CRC-16/KERMIT checksum (poly 0x1021, init 0x0000,
// reflected in and out, no final xor) used as the default 2-byte FCS.
func CRC16Kermit(data []byte) uint16 {
	var crc uint16

	for _, b := range data {
		crc ^= uint16(b)
		for i := 0; i < 8; i++ {
			if crc&1 != 0 {
				crc = (crc >> 1) ^ 0x8408
			} else {
				crc >>= 1
			}
		}
	}

	return crc
}

// CRC32ISOHDLC computes the CRC-32/ISO-HDLC checksum used as the optional
// 4-byte FCS. This is the same polynomial as the stdlib's crc32.IEEE
// table.
func CRC32ISOHDLC(data []byte) uint32 {
	return crc32.ChecksumIEEE(data)
}

// PutFCS16 writes the little-endian CRC-16/KERMIT of data into b (2 bytes).
func PutFCS16(b []byte, data []byte) {
	crc := CRC16Kermit(data)
	b[0] = byte(crc)
	b[1] = byte(crc >> 8)
}

// PutFCS32 writes the little-endian CRC-32/ISO-HDLC of data into b (4 bytes).
func PutFCS32(b []byte, data []byte) {
	crc := CRC32ISOHDLC(data)
	b[0] = byte(crc)
	b[1] = byte(crc >> 8)
	b[2] = byte(crc >> 16)
	b[3] = byte(crc >> 24)
}
