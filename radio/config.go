// Off-state-only radio configuration
// https://github.com/f-secure-foundry/tamago
//
// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package radio

import (
	"errors"
	"fmt"
)

// FCSMode names which checksum (if any) frames carry: hardware-offloaded,
// or a software CRC-16 or CRC-32. DriverConfig records it; New takes no
// DriverConfig, and the Driver neither appends nor verifies an FCS itself.
type FCSMode int

const (
	FCSNone FCSMode = iota // hardware offload
	FCS16                  // CRC-16/Kermit, software
	FCS32                  // CRC-32/ISO-HDLC, software
)

// ErrNotOff is returned by the Off-state-only configuration knobs when
// called while the driver isn't in the Off state.
var ErrNotOff = errors.New("radio: configuration knob is Off-state-only")

// DriverConfig holds the Off-state-only knobs plus the driver-wide FCS
// mode.
type DriverConfig struct {
	Channel    int // 11..26
	CCAMode    CCAMode
	CCAThresh  uint8
	SFD        byte
	TxPowerDBm int
	FCS        FCSMode
}

// SetChannel validates and applies the IEEE channel number, Off-state-only.
func (d *Driver) SetChannel(channel int) error {
	if d.Kind() != KindOff {
		return ErrNotOff
	}
	if channel < 11 || channel > 26 {
		return fmt.Errorf("radio: channel %d out of range 11..26", channel)
	}
	if err := d.peripheral.SetChannel(channel); err != nil {
		return err
	}
	d.config.Channel = channel
	return nil
}

// SetCCAMode applies the clear-channel-assessment strategy, Off-state-only.
func (d *Driver) SetCCAMode(mode CCAMode, threshold uint8) error {
	if d.Kind() != KindOff {
		return ErrNotOff
	}
	d.peripheral.SetCCAMode(mode, threshold)
	d.config.CCAMode = mode
	d.config.CCAThresh = threshold
	return nil
}

// SetSFD applies the start-of-frame-delimiter byte, Off-state-only.
func (d *Driver) SetSFD(sfd byte) error {
	if d.Kind() != KindOff {
		return ErrNotOff
	}
	d.peripheral.SetSFD(sfd)
	d.config.SFD = sfd
	return nil
}

// SetTxPower applies transmit power in dBm, Off-state-only.
func (d *Driver) SetTxPower(dbm int) error {
	if d.Kind() != KindOff {
		return ErrNotOff
	}
	if err := d.peripheral.SetTxPower(dbm); err != nil {
		return err
	}
	d.config.TxPowerDBm = dbm
	return nil
}

// SetIFS installs SIFS/LIFS/AIFS (in radio ticks) into the peripheral's
// inter-frame-spacing register ahead of any transition that must honour
// it.
func (d *Driver) SetIFS(sifs, lifs, aifs uint32) {
	d.peripheral.SetIFS(sifs, lifs, aifs)
}
