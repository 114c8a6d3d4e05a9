// Radio peripheral abstraction
// https://github.com/f-secure-foundry/tamago
//
// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package radio

import "context"

// Event names a hardware completion event the state machine waits on
// (DISABLED, RXREADY, TXREADY, END, FRAMESTART, BCMATCH on nRF-class
// radios). Peripheral implementations translate these into whatever their
// concrete event/shortcut register layout uses (see soc/nrf52 for one).
type Event int

const (
	EventDisabled Event = iota
	EventRxReady
	EventTxReady
	EventEnd
	EventFrameStart
	EventBcMatch
)

// HWState is the peripheral's own state register value, read back to detect
// a task that completed before its shortcut was armed.
type HWState int

const (
	HWDisabled HWState = iota
	HWRxIdle
	HWRx
	HWTxIdle
	HWTx
	HWRampingDown
)

// CCAMode selects the clear-channel assessment strategy. Configurable in
// the Off state only.
type CCAMode int

const (
	CCACarrierSense CCAMode = iota
	CCAEnergyDetection
)

// Shortcuts is the set of hardware shortcuts a transition's OnScheduled
// callback arms before reading back HWState, so a completion racing the
// arming is never missed.
type Shortcuts struct {
	DisabledOnEnd  bool
	RxReadyOnStart bool
	TxReadyOnStart bool
	StartOnRxReady bool
	StartOnTxReady bool
}

// Peripheral is the register-level surface the radio state machine drives.
// It is deliberately small and synchronous except for WaitEvent, which is
// the one hardware suspension point. soc/nrf52 implements this against a
// simulated register file.
type Peripheral interface {
	SetChannel(channel int) error
	SetCCAMode(mode CCAMode, threshold uint8)
	SetSFD(sfd byte)
	SetTxPower(dbm int) error
	SetIFS(sifs, lifs, aifs uint32)

	ArmShortcuts(s Shortcuts)
	Start()
	Disable()
	State() HWState

	// WaitEvent suspends until ev fires or ctx is cancelled.
	WaitEvent(ctx context.Context, ev Event) error

	// SetTxBuffer/SetRxBuffer program PACKETPTR for the next task.
	SetTxBuffer(buf []byte)
	SetRxBuffer(buf []byte)

	// CRCOK reports the result of the most recently completed Rx, valid
	// only immediately after an EventEnd wait returns during Rx.Run.
	CRCOK() bool

	// ReceivedLength returns the MPDU length (without FCS) of the frame
	// most recently received, valid under the same conditions as CRCOK.
	ReceivedLength() int

	// CCABusy reports whether CCA failed for the most recently attempted
	// Tx entry.
	CCABusy() bool

	// FrameStartInfo returns the addressing-relevant prefix of the frame
	// currently being received, valid immediately after EventFrameStart
	// fires, used by the driver service to resolve preliminary frame info
	// without waiting for END.
	FrameStartInfo() []byte
}
