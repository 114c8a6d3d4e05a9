// Radio driver typestate machine
// https://github.com/f-secure-foundry/tamago
//
// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package radio implements the driver's core typestate state machine
// (Off/Rx/Tx), its per-task results and errors, and transition execution
// with Entered/Rollback/Fallback outcomes. Register access is abstracted
// behind Peripheral so the same state machine runs against a simulated
// radio (soc/nrf52) or real silicon.
package radio

import (
	"context"
	"log"
	"sync"

	"github.com/dot15d4go/dot15d4/frame"
)

// Driver owns the radio typestate machine. Exactly one Driver exists per
// peripheral; exclusive ownership is established at construction by taking
// the Peripheral by value.
type Driver struct {
	peripheral Peripheral

	mu     sync.Mutex
	kind   StateKind
	config DriverConfig
}

// New constructs a Driver in the Off state, owning peripheral exclusively.
func New(peripheral Peripheral) *Driver {
	return &Driver{peripheral: peripheral, kind: KindOff}
}

// Kind reports the driver's current typestate.
func (d *Driver) Kind() StateKind {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.kind
}

func (d *Driver) setKind(k StateKind) {
	d.mu.Lock()
	d.kind = k
	d.mu.Unlock()
}

// armReadMaybeKick is the "arm -> read -> maybe kick" interleaving required
// at every scheduling point: a shortcut is armed before the state register
// is read back; if the peripheral already settled into idle despite the
// shortcut being armed, the previous task finished before the shortcut took
// effect and software must kick the next task manually.
func (d *Driver) armReadMaybeKick(shorts Shortcuts, idle HWState, kick func()) error {
	d.peripheral.ArmShortcuts(shorts)
	if d.peripheral.State() == idle {
		kick()
	}
	return nil
}

// SwitchOff is the infallible Fallback target: it forces the radio off
// regardless of current state, the invariant that keeps the whole machine
// total.
func (d *Driver) SwitchOff(ctx context.Context) OffResult {
	d.peripheral.Disable()
	if err := d.peripheral.WaitEvent(ctx, EventDisabled); err != nil {
		log.Printf("radio: switch_off did not observe DISABLED: %v", err)
	}
	d.setKind(KindOff)
	return OffResult{}
}

// TransitionToOff builds the External transition from the current state
// into Off.
func (d *Driver) TransitionToOff() Transition {
	source := d.Kind()
	return Transition{
		Source: source,
		Target: KindOff,
		OnScheduled: func() error {
			return d.armReadMaybeKick(Shortcuts{DisabledOnEnd: true}, hwIdleFor(source), d.peripheral.Disable)
		},
		EnterTarget: func(ctx context.Context) error {
			if err := d.peripheral.WaitEvent(ctx, EventDisabled); err != nil {
				return &SchedulingError{State: KindOff, Msg: err.Error()}
			}
			return nil
		},
		Cleanup: func(OutcomeKind) { d.setKind(KindOff) },
	}
}

func hwIdleFor(k StateKind) HWState {
	switch k {
	case KindRx:
		return HWRxIdle
	case KindTx:
		return HWTxIdle
	default:
		return HWDisabled
	}
}

// TransitionToRx builds the transition (External or Self) into a new Rx
// task over buf. altOutcomeIsError is recorded on the Transition only; a CRC
// failure surfaces as an error according to the flag the run callback
// passes to RunRx.
func (d *Driver) TransitionToRx(buf *frame.UnsizedFrame, altOutcomeIsError bool) Transition {
	source := d.Kind()
	return Transition{
		Source:            source,
		Target:            KindRx,
		AltOutcomeIsError: altOutcomeIsError,
		OnScheduled: func() error {
			raw, err := buf.Raw()
			if err != nil {
				return err
			}
			d.peripheral.SetRxBuffer(raw)
			return d.armReadMaybeKick(Shortcuts{RxReadyOnStart: true}, hwIdleFor(source), d.peripheral.Start)
		},
		EnterTarget: func(ctx context.Context) error {
			if source == KindRx {
				return nil
			}
			if err := d.peripheral.WaitEvent(ctx, EventRxReady); err != nil {
				return &SchedulingError{State: KindRx, Msg: err.Error()}
			}
			return nil
		},
		Cleanup: func(kind OutcomeKind) {
			if kind == OutcomeEntered {
				d.setKind(KindRx)
			}
		},
	}
}

// TransitionToTx builds the transition into a new Tx task sending frame.
func (d *Driver) TransitionToTx(f *frame.SizedFrame) Transition {
	source := d.Kind()
	return Transition{
		Source: source,
		Target: KindTx,
		OnScheduled: func() error {
			raw, err := f.Raw()
			if err != nil {
				return err
			}
			d.peripheral.SetTxBuffer(raw)
			return d.armReadMaybeKick(Shortcuts{TxReadyOnStart: true}, hwIdleFor(source), d.peripheral.Start)
		},
		// CCA is checked inside RunTx, between the TXREADY and END waits
		// (same place the real ramp would resolve it), so a busy channel
		// surfaces as a *TxError from run() -> OutcomeRollback rather than
		// forcing the whole driver off: CCA busy is routine, not a fault.
		Cleanup: func(kind OutcomeKind) {
			if kind == OutcomeEntered {
				d.setKind(KindTx)
			}
		},
	}
}

// RunOff performs Off's do-activity: there is none beyond already being
// disabled, so it returns immediately.
func (d *Driver) RunOff(ctx context.Context) (interface{}, error) {
	return OffResult{}, nil
}

// RunRx performs Rx's do-activity: waits for END, then resolves CRC status
// and produces the appropriate RxResult/RxError.
func (d *Driver) RunRx(ctx context.Context, buf *frame.UnsizedFrame, altOutcomeIsError bool) (interface{}, error) {
	if err := d.peripheral.WaitEvent(ctx, EventEnd); err != nil {
		return nil, &SchedulingError{State: KindRx, Msg: err.Error()}
	}

	if !d.peripheral.CRCOK() {
		if altOutcomeIsError {
			return nil, &RxError{Unsized: buf}
		}
		return &RxResult{Outcome: RxCrcError, Unsized: buf}, nil
	}

	sized, err := buf.ToSized(d.peripheral.ReceivedLength())
	if err != nil {
		return nil, &SchedulingError{State: KindRx, Msg: err.Error()}
	}

	return &RxResult{Outcome: RxFrame, Sized: sized}, nil
}

// RunRxEndedByPreemption produces the RxWindowEnded variant when the Rx
// window is ended by an outbound request rather than by END firing.
func RunRxEndedByPreemption(buf *frame.UnsizedFrame) *RxResult {
	return &RxResult{Outcome: RxWindowEnded, Unsized: buf}
}

// RunTx performs Tx's do-activity: waits for TXREADY, checks CCA when cca
// is true (back-to-back ACK transmissions pass cca=false since an ACK is
// never subject to clear-channel assessment), then either reports the
// channel busy (*TxError, rolled back to the source state) or waits for END
// and reports Sent.
func (d *Driver) RunTx(ctx context.Context, f *frame.SizedFrame, cca bool) (interface{}, error) {
	if err := d.peripheral.WaitEvent(ctx, EventTxReady); err != nil {
		return nil, &SchedulingError{State: KindTx, Msg: err.Error()}
	}
	if cca && d.peripheral.CCABusy() {
		return nil, &TxError{Sized: f}
	}
	if err := d.peripheral.WaitEvent(ctx, EventEnd); err != nil {
		return nil, &SchedulingError{State: KindTx, Msg: err.Error()}
	}
	return &TxResult{Outcome: TxSent, Sized: f}, nil
}

// Peripheral exposes the underlying Peripheral, for callers (package driver)
// that need to drive additional register-level behavior such as arming the
// ACK-wait timer alongside a transition.
func (d *Driver) Peripheral() Peripheral { return d.peripheral }
