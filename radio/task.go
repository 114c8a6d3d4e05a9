// Per-task result and error types
// https://github.com/f-secure-foundry/tamago
//
// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package radio

import "github.com/dot15d4go/dot15d4/frame"

// StateKind names one of the three typestates a Driver can occupy.
type StateKind int

const (
	KindOff StateKind = iota
	KindRx
	KindTx
)

func (k StateKind) String() string {
	switch k {
	case KindOff:
		return "off"
	case KindRx:
		return "rx"
	case KindTx:
		return "tx"
	default:
		return "unknown"
	}
}

// OffResult is the sole Off-task outcome: the radio is disabled.
type OffResult struct{}

// RxOutcome tags which of Rx's four result variants a RxResult carries.
type RxOutcome int

const (
	RxFrame RxOutcome = iota
	RxWindowEnded
	RxCrcError
	RxFilteredFrame
)

// RxResult is the Rx task's Result type. Exactly one of Sized/Unsized is
// populated, matching which variant Outcome names.
type RxResult struct {
	Outcome RxOutcome
	Sized   *frame.SizedFrame   // RxFrame, RxFilteredFrame
	Unsized *frame.UnsizedFrame // RxWindowEnded, RxCrcError
}

// RxError is Rx's sole error variant, produced only when run is called with
// altOutcomeIsError=true and the received frame's CRC failed.
type RxError struct {
	Unsized *frame.UnsizedFrame
}

func (e *RxError) Error() string { return "radio: rx crc error" }

// TxOutcome tags which of Tx's two result variants a TxResult carries.
type TxOutcome int

const (
	TxSent TxOutcome = iota
	TxNack
)

// TxResult is the Tx task's Result type.
type TxResult struct {
	Outcome TxOutcome
	Sized   *frame.SizedFrame
}

// TxError is Tx's sole error variant: the CCA precondition failed before the
// frame was ever put on air, so the frame is handed back intact.
type TxError struct {
	Sized *frame.SizedFrame
}

func (e *TxError) Error() string { return "radio: cca busy" }

// SchedulingError is returned by a state callback (on_scheduled, transition,
// on_task_complete, exit, cleanup) when the hardware fails to cooperate, e.g.
// a wait for a completion event times out or observes an unexpected state.
type SchedulingError struct {
	State StateKind
	Msg   string
}

func (e *SchedulingError) Error() string {
	return "radio: scheduling error in " + e.State.String() + ": " + e.Msg
}
