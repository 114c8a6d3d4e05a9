// Simulated nRF52 RADIO peripheral
// https://github.com/f-secure-foundry/tamago
//
// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package nrf52

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dot15d4go/dot15d4/radio"
)

// rampDelay stands in for the real radio's RXEN/TXEN-to-READY ramp time
// (~40us on real nRF52 silicon); simulated coarsely since nothing here runs
// against a cycle-accurate clock.
const rampDelay = 2 * time.Millisecond

// FrameSource supplies the next frame the simulated radio "receives" when
// in Rx mode, letting tests and the CLI demo script an exchange without a
// real antenna. A nil payload is delivered as a zero-length frame:
// FRAMESTART and END still fire.
type FrameSource func() (payload []byte, crcOK bool)

// Radio is a host-testable, in-process simulation of an nRF52-class RADIO
// peripheral.
type Radio struct {
	regs regFile

	mu             sync.Mutex
	state          radio.HWState
	shorts         radio.Shortcuts
	txBuf          []byte
	rxBuf          []byte
	mode           pendingMode
	crcOK          bool
	recvLen        int
	ccaBusy        bool
	frameStartInfo []byte

	events map[radio.Event]chan struct{}

	// latched sticks an event "set" the instant fire() closes its channel,
	// mirroring how real nRF52 EVENTS_* registers stay set until software
	// clears them: a caller that asks to wait on an event already fired
	// this cycle (e.g. EnterTarget checking TXREADY/RXREADY after Run has
	// already observed END) gets an immediate answer instead of blocking on
	// a freshly replaced, not-yet-fired channel. Start/Disable clear the
	// per-cycle subset before kicking off the next autonomous sequence.
	latched map[radio.Event]bool

	// FrameSource, if set, is consulted each time a simulated Rx completes
	// to decide what was "received". Defaults to a fixed zero-length CRC-OK
	// frame otherwise.
	FrameSource FrameSource

	// CCADecision, if set, is consulted on every Tx entry to decide whether
	// CCA reports busy. Defaults to always-clear.
	CCADecision func() bool
}

type pendingMode int

const (
	pendingNone pendingMode = iota
	pendingRx
	pendingTx
)

// New constructs a Radio in the Disabled state.
func New() *Radio {
	r := &Radio{
		state: radio.HWDisabled,
		events: map[radio.Event]chan struct{}{
			radio.EventDisabled:   make(chan struct{}),
			radio.EventRxReady:    make(chan struct{}),
			radio.EventTxReady:    make(chan struct{}),
			radio.EventEnd:        make(chan struct{}),
			radio.EventFrameStart: make(chan struct{}),
			radio.EventBcMatch:    make(chan struct{}),
		},
		latched: make(map[radio.Event]bool),
	}
	return r
}

func (r *Radio) fire(ev radio.Event) {
	r.mu.Lock()
	old := r.events[ev]
	r.events[ev] = make(chan struct{})
	r.latched[ev] = true
	r.mu.Unlock()
	close(old)
}

// SetChannel implements radio.Peripheral.
func (r *Radio) SetChannel(channel int) error {
	if channel < 11 || channel > 26 {
		return fmt.Errorf("nrf52: channel %d out of range", channel)
	}
	freq := (channel - 10) * 5
	r.mu.Lock()
	r.regs.setN(regFrequency, 0, 0x7f, uint32(freq))
	r.mu.Unlock()
	return nil
}

// SetCCAMode implements radio.Peripheral.
func (r *Radio) SetCCAMode(mode radio.CCAMode, threshold uint8) {
	r.mu.Lock()
	r.regs.setN(regCcaCtrl, 0, 0x1, uint32(mode))
	r.regs.setN(regCcaThreshold, 0, 0xff, uint32(threshold))
	r.mu.Unlock()
}

// SetSFD implements radio.Peripheral.
func (r *Radio) SetSFD(sfd byte) {
	r.mu.Lock()
	r.regs.setN(regPcnf0, 0, 0xff, uint32(sfd))
	r.mu.Unlock()
}

// SetTxPower implements radio.Peripheral.
func (r *Radio) SetTxPower(dbm int) error {
	r.mu.Lock()
	r.regs.setN(regTxPower, 0, 0xff, uint32(int8(dbm)))
	r.mu.Unlock()
	return nil
}

// SetIFS implements radio.Peripheral.
func (r *Radio) SetIFS(sifs, lifs, aifs uint32) {
	r.mu.Lock()
	r.regs.words[regTifs] = sifs<<16 | lifs<<8 | aifs
	r.mu.Unlock()
}

// ArmShortcuts implements radio.Peripheral.
func (r *Radio) ArmShortcuts(s radio.Shortcuts) {
	r.mu.Lock()
	r.shorts = s
	word := uint32(0)
	if s.RxReadyOnStart {
		word |= 1 << shortRxReadyStart
	}
	if s.TxReadyOnStart {
		word |= 1 << shortTxReadyStart
	}
	if s.DisabledOnEnd {
		word |= 1 << shortEndDisable
	}
	r.regs.words[regShorts] = word
	r.mu.Unlock()
}

// Start implements radio.Peripheral: kicks off the autonomous ramp/receive
// (or ramp/transmit) sequence on a background goroutine.
func (r *Radio) Start() {
	r.mu.Lock()
	mode := r.mode
	r.latched[radio.EventRxReady] = false
	r.latched[radio.EventTxReady] = false
	r.latched[radio.EventEnd] = false
	r.latched[radio.EventFrameStart] = false
	r.latched[radio.EventBcMatch] = false
	r.mu.Unlock()

	switch mode {
	case pendingRx:
		go r.runRx()
	case pendingTx:
		go r.runTx()
	}
}

// Disable implements radio.Peripheral.
func (r *Radio) Disable() {
	r.mu.Lock()
	r.latched[radio.EventDisabled] = false
	r.mu.Unlock()
	go func() {
		time.Sleep(rampDelay)
		r.mu.Lock()
		r.state = radio.HWDisabled
		r.mu.Unlock()
		r.fire(radio.EventDisabled)
	}()
}

// State implements radio.Peripheral.
func (r *Radio) State() radio.HWState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// WaitEvent implements radio.Peripheral.
func (r *Radio) WaitEvent(ctx context.Context, ev radio.Event) error {
	r.mu.Lock()
	if r.latched[ev] {
		r.mu.Unlock()
		return nil
	}
	ch := r.events[ev]
	r.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SetTxBuffer implements radio.Peripheral.
func (r *Radio) SetTxBuffer(buf []byte) {
	r.mu.Lock()
	r.txBuf = buf
	r.mode = pendingTx
	r.mu.Unlock()
}

// SetRxBuffer implements radio.Peripheral.
func (r *Radio) SetRxBuffer(buf []byte) {
	r.mu.Lock()
	r.rxBuf = buf
	r.mode = pendingRx
	r.mu.Unlock()
}

// CRCOK implements radio.Peripheral.
func (r *Radio) CRCOK() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.crcOK
}

// ReceivedLength implements radio.Peripheral.
func (r *Radio) ReceivedLength() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recvLen
}

// CCABusy implements radio.Peripheral.
func (r *Radio) CCABusy() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ccaBusy
}

// FrameStartInfo implements radio.Peripheral.
func (r *Radio) FrameStartInfo() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frameStartInfo
}

func (r *Radio) runRx() {
	time.Sleep(rampDelay)
	r.mu.Lock()
	r.state = radio.HWRx
	r.mu.Unlock()
	r.fire(radio.EventRxReady)

	time.Sleep(rampDelay)

	var payload []byte
	crcOK := true
	if r.FrameSource != nil {
		payload, crcOK = r.FrameSource()
	}

	r.mu.Lock()
	n := copy(r.rxBuf, payload)
	r.crcOK = crcOK
	r.recvLen = n
	r.frameStartInfo = payload
	shorts := r.shorts
	r.mu.Unlock()

	r.fire(radio.EventFrameStart)
	r.fire(radio.EventEnd)

	if shorts.DisabledOnEnd {
		r.mu.Lock()
		r.state = radio.HWDisabled
		r.mu.Unlock()
		r.fire(radio.EventDisabled)
	} else {
		r.mu.Lock()
		r.state = radio.HWRxIdle
		r.mu.Unlock()
	}
}

func (r *Radio) runTx() {
	time.Sleep(rampDelay)

	busy := false
	if r.CCADecision != nil {
		busy = r.CCADecision()
	}
	r.mu.Lock()
	r.ccaBusy = busy
	r.mu.Unlock()

	if busy {
		r.mu.Lock()
		r.state = radio.HWTxIdle
		r.mu.Unlock()
		r.fire(radio.EventTxReady)
		return
	}

	r.mu.Lock()
	r.state = radio.HWTx
	r.mu.Unlock()
	r.fire(radio.EventTxReady)

	time.Sleep(rampDelay)
	r.fire(radio.EventEnd)

	r.mu.Lock()
	shorts := r.shorts
	r.mu.Unlock()

	if shorts.DisabledOnEnd {
		r.mu.Lock()
		r.state = radio.HWDisabled
		r.mu.Unlock()
		r.fire(radio.EventDisabled)
	} else {
		r.mu.Lock()
		r.state = radio.HWTxIdle
		r.mu.Unlock()
	}
}
