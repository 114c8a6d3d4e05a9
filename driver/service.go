// Driver service event loop
// https://github.com/f-secure-foundry/tamago
//
// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package driver turns the radio package's typestate machine into an event
// loop driven by the upper-layer request channel: an Off/Rx/Tx dispatch
// with the MAC-layer ACK/AIFS timing layered on top.
package driver

import (
	"context"
	"log"
	"sync"

	"github.com/dot15d4go/dot15d4/frame"
	"github.com/dot15d4go/dot15d4/mpmc"
	"github.com/dot15d4go/dot15d4/radio"
	"github.com/dot15d4go/dot15d4/radiotimer"
)

// RequestKind tags a Request's payload.
type RequestKind int

const (
	RequestTx RequestKind = iota
	RequestRx
)

// Request is the upper-layer -> service message.
type Request struct {
	Kind RequestKind
	Tx   TaskTx
	Rx   TaskRx
}

// TaskTx is an outbound send request.
type TaskTx struct {
	Frame *frame.SizedFrame
	CCA   bool
}

// TaskRx is a receive-window request.
type TaskRx struct {
	Buffer *frame.UnsizedFrame
}

// ResponseKind tags a Response's payload.
type ResponseKind int

const (
	ResponseTx ResponseKind = iota
	ResponseRx
	ResponseOff
)

// TxOutcome tags a Tx response's variant.
type TxOutcome int

const (
	TxSent TxOutcome = iota
	TxNack
	TxCcaBusy
	TxRadioError
)

// Response is the service -> upper-layer message.
type Response struct {
	Kind ResponseKind

	TxOutcome TxOutcome
	TxFrame   *frame.SizedFrame

	RxResult *radio.RxResult
	RxErr    error // non-nil on RadioError

	OffResult *radio.OffResult
	OffErr    error
}

// Channel is the concrete upper-layer request channel type this service
// mediates.
type Channel = mpmc.Channel[Request, Response]

// Config carries AIFS/SIFS/LIFS (radio ticks) and the per-task 802.15.4
// timing constants.
type Config struct {
	AIFSTicks uint32
	SIFSTicks uint32
	LIFSTicks uint32

	// AckWaitTicks is t_ACK = AIFS + SHR + PHR; for O-QPSK 250kb/s this is
	// 24 symbols (384us), converted to ticks by the caller.
	AckWaitTicks uint64

	// LocalAddress is the PAN ID/short/extended address this driver answers
	// to, used to gate the address filter in resolvePreliminaryInfo. Its
	// zero value is PAN 0, short address 0 and extended address 0; see
	// frame.LocalAddress for what that still matches.
	LocalAddress frame.LocalAddress
}

// Service is the driver service event loop.
type Service struct {
	d     *radio.Driver
	ch    *Channel
	tm    *radiotimer.Timer
	cfg   Config
	probe mpmc.ConsumerToken

	// ackMu guards the single pre-allocated outgoing ACK frame reused on
	// every ACK transmission, patched in place rather than allocated
	// per-ACK: the AIFS budget leaves no room for the allocator.
	ackMu    sync.Mutex
	ackFrame *frame.SizedFrame

	// tempMu guards the second pre-allocated Rx buffer used to receive
	// ACKs and to absorb invalid/filtered frames without losing the main
	// Rx buffer's contents.
	tempMu sync.Mutex
	tempRx *frame.UnsizedFrame

	// rxMu guards the response token and buffer of the Rx window currently
	// open, if any. Entering Rx only arms the hardware (beginRx); the token
	// is completed later, once a frame actually clears address filtering
	// (finishRx/sendAck) or the window is preempted (endRxWindow). A drop
	// (dropInvalidFrame) leaves both fields untouched so the same token
	// stays alive across back-to-back invalid arrivals.
	rxMu    sync.Mutex
	rxToken *mpmc.ResponseToken
	rxBuf   *frame.UnsizedFrame

	// localAddr is this driver's own address, compared against each
	// frame's resolved destination addressing.
	localAddr frame.LocalAddress
}

// NewService constructs a Service. ackFrame and tempRx are the two
// pre-allocated cells; ownership of both transfers to the Service.
func NewService(d *radio.Driver, ch *Channel, tm *radiotimer.Timer, cfg Config, ackFrame *frame.SizedFrame, tempRx *frame.UnsizedFrame) (*Service, error) {
	tok, err := ch.TryAllocateConsumerToken(mpmc.DirectionAny)
	if err != nil {
		return nil, err
	}
	d.SetIFS(cfg.SIFSTicks, cfg.LIFSTicks, cfg.AIFSTicks)
	return &Service{d: d, ch: ch, tm: tm, cfg: cfg, probe: tok, ackFrame: ackFrame, tempRx: tempRx, localAddr: cfg.LocalAddress}, nil
}

// Run drives the event loop until ctx is cancelled. Tx is never left
// dangling for this loop to dispatch on: beginTx drives the
// whole send, ACK-wait and response sequence itself before returning, so by
// the time Kind() is re-read here the driver is back in Off or Rx.
func (s *Service) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		switch s.d.Kind() {
		case radio.KindOff:
			if err := s.dispatchOff(ctx); err != nil {
				return err
			}
		case radio.KindRx:
			if err := s.dispatchRx(ctx); err != nil {
				return err
			}
		}
	}
}

// dispatchOff awaits the next request, schedules it, and reports CCA
// failure inline if Tx's precondition fails.
func (s *Service) dispatchOff(ctx context.Context) error {
	rtok, req, err := s.ch.WaitForRequest(ctx, s.probe)
	if err != nil {
		return err
	}

	switch req.Kind {
	case RequestTx:
		s.beginTx(ctx, rtok, req.Tx)
	case RequestRx:
		s.beginRx(ctx, rtok, req.Rx.Buffer)
	}
	return nil
}

func (s *Service) beginTx(ctx context.Context, rtok mpmc.ResponseToken, task TaskTx) {
	tr := s.d.TransitionToTx(task.Frame)
	outcome := radio.ExecuteTransition(ctx, tr, func(ctx context.Context) (interface{}, error) {
		return s.d.RunTx(ctx, task.Frame, task.CCA)
	}, func() { s.d.SwitchOff(ctx) })

	if outcome.Kind != radio.OutcomeEntered {
		s.respondFromOutcome(rtok, outcome)
		return
	}

	sent := outcome.PrevResult.(*radio.TxResult).Sized
	s.awaitAckOrRespond(ctx, rtok, sent)
}

// awaitAckOrRespond is the Tx do-activity tail: if the sent frame did not
// request an ACK the response fires immediately, otherwise the
// driver transitions Tx->Rx-for-ACK with AIFS already installed and races
// frame start against the t_ACK alarm.
func (s *Service) awaitAckOrRespond(ctx context.Context, rtok mpmc.ResponseToken, sent *frame.SizedFrame) {
	sdu, err := sent.SDU()
	if err != nil || len(sdu) < 3 || !frame.ParseFrameControl(sdu[0:2]).AckRequest() {
		s.d.SwitchOff(ctx)
		s.ch.Received(rtok, Response{Kind: ResponseTx, TxOutcome: TxSent, TxFrame: sent})
		return
	}
	seqNr := sdu[2]

	s.tempMu.Lock()
	temp := s.tempRx
	s.tempMu.Unlock()

	tr := s.d.TransitionToRx(temp, true)
	outcome := radio.ExecuteTransition(ctx, tr, func(ctx context.Context) (interface{}, error) {
		return s.waitForAck(ctx, temp, seqNr)
	}, func() { s.d.SwitchOff(ctx) })

	switch outcome.Kind {
	case radio.OutcomeEntered:
		res := outcome.PrevResult.(*radio.RxResult)
		if res.Outcome == radio.RxWindowEnded {
			// t_ACK expired with no matching ACK observed. The buffer
			// comes back as a fresh Unsized frame when a non-matching
			// frame was received into it, so it goes back into its cell.
			s.tempMu.Lock()
			s.tempRx = res.Unsized
			s.tempMu.Unlock()
			s.d.SwitchOff(ctx)
			s.ch.Received(rtok, Response{Kind: ResponseTx, TxOutcome: TxNack, TxFrame: sent})
			return
		}
		s.tempMu.Lock()
		if unsized, uerr := res.Sized.ToUnsized(); uerr == nil {
			s.tempRx = unsized
		}
		s.tempMu.Unlock()
		s.d.SwitchOff(ctx)
		s.ch.Received(rtok, Response{Kind: ResponseTx, TxOutcome: TxSent, TxFrame: sent})
	case radio.OutcomeRollback:
		// CRC error while waiting for the ACK: the radio is switched off
		// and the originating Tx is answered Nack at once; the receiver is
		// not re-armed for the rest of the t_ACK window.
		s.d.SwitchOff(ctx)
		s.ch.Received(rtok, Response{Kind: ResponseTx, TxOutcome: TxNack, TxFrame: sent})
	case radio.OutcomeFallback:
		log.Printf("driver: fallback to off awaiting ack: %v", outcome.Err)
		s.ch.Received(rtok, Response{Kind: ResponseTx, TxOutcome: TxRadioError, TxFrame: sent})
	}
}

// waitForAck races the hardware frame-start event against the t_ACK alarm
// (AIFS + SHR + PHR).
func (s *Service) waitForAck(ctx context.Context, temp *frame.UnsizedFrame, seqNr byte) (interface{}, error) {
	deadline := s.tm.Now() + s.cfg.AckWaitTicks
	alarmCh := s.tm.Schedule(ctx, deadline)

	selCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	timedOut := make(chan struct{}, 1)
	go func() {
		select {
		case <-alarmCh:
			timedOut <- struct{}{}
		case <-selCtx.Done():
		}
	}()

	err := s.d.Peripheral().WaitEvent(selCtx, radio.EventFrameStart)
	cancel()
	if err != nil {
		select {
		case <-timedOut:
			return &radio.RxResult{Outcome: radio.RxWindowEnded, Unsized: temp}, nil
		default:
			return nil, &radio.SchedulingError{State: radio.KindRx, Msg: err.Error()}
		}
	}

	result, rerr := s.d.RunRx(ctx, temp, true)
	if rerr != nil {
		return nil, rerr
	}
	res := result.(*radio.RxResult)

	sdu, serr := res.Sized.SDU()
	if serr != nil || !isMatchingAck(sdu, seqNr) {
		unsized, uerr := res.Sized.ToUnsized()
		if uerr != nil {
			return nil, &radio.SchedulingError{State: radio.KindRx, Msg: uerr.Error()}
		}
		return &radio.RxResult{Outcome: radio.RxWindowEnded, Unsized: unsized}, nil
	}
	return res, nil
}

// isMatchingAck reports whether sdu is a frame-type ACK whose sequence
// number matches seqNr.
func isMatchingAck(sdu []byte, seqNr byte) bool {
	if len(sdu) < 3 {
		return false
	}
	fc := frame.ParseFrameControl(sdu[0:2])
	return fc.Type() == frame.FrameTypeAck && sdu[2] == seqNr
}

// beginRx enters Rx: it only arms the hardware and waits for RXREADY (the
// Off->Rx, or self Rx->Rx, transition's do-activity is trivial, since
// there is no reception already in flight to finish). The response token
// is not completed here; it is carried in s.rxToken/s.rxBuf and only
// answered once a frame actually clears address filtering or the window is
// preempted.
func (s *Service) beginRx(ctx context.Context, rtok mpmc.ResponseToken, buf *frame.UnsizedFrame) {
	tr := s.d.TransitionToRx(buf, false)
	outcome := radio.ExecuteTransition(ctx, tr, func(ctx context.Context) (interface{}, error) {
		return s.d.RunOff(ctx)
	}, func() { s.d.SwitchOff(ctx) })

	if outcome.Kind != radio.OutcomeEntered {
		s.respondFromOutcome(rtok, outcome)
		return
	}

	s.rxMu.Lock()
	s.rxToken, s.rxBuf = &rtok, buf
	s.rxMu.Unlock()
}

// respondFromOutcome translates a radio.Outcome into the upper-layer
// Response. Every recovered frame is deposited back over the channel
// rather than dropped.
func (s *Service) respondFromOutcome(rtok mpmc.ResponseToken, outcome radio.Outcome) {
	switch outcome.Kind {
	case radio.OutcomeEntered:
		switch res := outcome.PrevResult.(type) {
		case *radio.TxResult:
			s.ch.Received(rtok, Response{Kind: ResponseTx, TxOutcome: TxSent, TxFrame: res.Sized})
		case *radio.RxResult:
			s.ch.Received(rtok, rxResponse(res))
		case radio.OffResult:
			s.ch.Received(rtok, Response{Kind: ResponseOff, OffResult: &res})
		}
	case radio.OutcomeRollback:
		switch e := outcome.Err.(type) {
		case *radio.TxError:
			s.ch.Received(rtok, Response{Kind: ResponseTx, TxOutcome: TxCcaBusy, TxFrame: e.Sized})
		case *radio.RxError:
			s.ch.Received(rtok, Response{Kind: ResponseRx, RxErr: e})
		default:
			s.ch.Received(rtok, Response{Kind: ResponseOff, OffErr: outcome.Err})
		}
	case radio.OutcomeFallback:
		log.Printf("driver: fallback to off: %v", outcome.Err)
		s.ch.Received(rtok, Response{Kind: ResponseOff, OffErr: outcome.Err})
	}
}

func rxResponse(res *radio.RxResult) Response {
	return Response{Kind: ResponseRx, RxResult: res}
}

// dispatchRx races the hardware frame start against a newly dispatched
// request of either direction.
func (s *Service) dispatchRx(ctx context.Context) error {
	selCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type event struct {
		frameStarted bool
		rtok         mpmc.ResponseToken
		req          Request
		err          error
	}
	evCh := make(chan event, 2)

	go func() {
		err := s.d.Peripheral().WaitEvent(selCtx, radio.EventFrameStart)
		evCh <- event{frameStarted: true, err: err}
	}()
	go func() {
		rtok, req, err := s.ch.WaitForRequest(selCtx, s.probe)
		evCh <- event{rtok: rtok, req: req, err: err}
	}()

	ev := <-evCh
	cancel()
	// Both racers always send exactly one event; the loser unblocks promptly
	// once cancel lands. Draining it matters because WaitForRequest may have
	// already dequeued a request before the cancellation reached it, and that
	// request's token must not be dropped.
	ev2 := <-evCh

	frameEv, reqEv := ev, ev2
	if !ev.frameStarted {
		frameEv, reqEv = ev2, ev
	}

	if frameEv.err == nil {
		s.handleFrameStart(ctx)
	}
	if reqEv.err == nil {
		// A newly-arrived request ends the Rx window; if a frame start beat
		// it, the frame has already been handled above and the request is
		// dispatched against whatever state that left behind.
		s.endRxWindow(ctx, reqEv.rtok, reqEv.req)
	}

	if frameEv.err != nil && reqEv.err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return nil
}

// handleFrameStart resolves preliminary frame info for the reception
// already underway and routes it to one of three outcomes: ack-and-deliver,
// deliver-without-ack, or drop-and-keep-token. This runs for every frame,
// including the very first one after beginRx, since beginRx itself never
// completes the response token.
func (s *Service) handleFrameStart(ctx context.Context) {
	info := s.d.Peripheral().FrameStartInfo()

	ackRequested, seqNr, addressOK := s.resolvePreliminaryInfo(info)

	switch {
	case !addressOK:
		s.dropInvalidFrame(ctx)
	case ackRequested:
		s.sendAck(ctx, seqNr)
	default:
		s.finishRx(ctx)
	}
}

// finishRx finalises the reception underway as a normal delivery (no ACK
// owed): it waits out the remaining reception, answers the original
// RequestRx's token, and switches off. A board that wants uninterrupted
// back-to-back reception submits a fresh RequestRx immediately.
func (s *Service) finishRx(ctx context.Context) {
	s.rxMu.Lock()
	rtok, buf := s.rxToken, s.rxBuf
	s.rxToken, s.rxBuf = nil, nil
	s.rxMu.Unlock()

	if rtok == nil {
		return
	}

	result, err := s.d.RunRx(ctx, buf, false)
	if err != nil {
		log.Printf("driver: finish rx: %v", err)
		s.d.SwitchOff(ctx)
		return
	}
	s.ch.Received(*rtok, rxResponse(result.(*radio.RxResult)))
	s.d.SwitchOff(ctx)
}

// dropInvalidFrame schedules a back-to-back Rx into the temporary buffer
// for a frame that failed address filtering. The reception already in
// flight (s.rxBuf) is finished out so its bytes aren't corrupted by a new
// task starting underneath it, logged as RxFilteredFrame, then retired
// into the temporary cell; the previously idle tempRx becomes the new
// active buffer and a fresh Rx is armed immediately (self transition, no
// state change). The original RequestRx's token is left untouched
// throughout, so the same token stays alive across any number of
// consecutive drops.
func (s *Service) dropInvalidFrame(ctx context.Context) {
	s.rxMu.Lock()
	buf := s.rxBuf
	s.rxMu.Unlock()

	result, err := s.d.RunRx(ctx, buf, false)
	if err != nil {
		log.Printf("driver: drop invalid frame: %v", err)
		return
	}
	res := result.(*radio.RxResult)

	var discarded *frame.UnsizedFrame
	if res.Sized != nil {
		filtered := &radio.RxResult{Outcome: radio.RxFilteredFrame, Sized: res.Sized}
		log.Printf("driver: dropped frame failing address filter (%d bytes)", filtered.Sized.SDULength())
		unsized, uerr := filtered.Sized.ToUnsized()
		if uerr != nil {
			log.Printf("driver: drop invalid frame: %v", uerr)
			return
		}
		discarded = unsized
	} else {
		// CRC error receiving the filtered frame: buf is still Unsized.
		discarded = res.Unsized
	}

	s.tempMu.Lock()
	next := s.tempRx
	s.tempRx = discarded
	s.tempMu.Unlock()

	tr := s.d.TransitionToRx(next, false)
	outcome := radio.ExecuteTransition(ctx, tr, func(ctx context.Context) (interface{}, error) {
		return s.d.RunOff(ctx)
	}, func() { s.d.SwitchOff(ctx) })

	if outcome.Kind != radio.OutcomeEntered {
		log.Printf("driver: re-arm after drop failed: %v", outcome.Err)
		return
	}

	s.rxMu.Lock()
	s.rxBuf = next
	s.rxMu.Unlock()
}

// sendAck arms the ACK transmission's shortcuts inside the same
// OnScheduled callback invoked synchronously from here, with no channel
// round-trip, so the AIFS deadline is honoured. Entering Tx first finishes
// the reception already underway (Rx's pending do-activity,
// altOutcomeIsError=true so a CRC failure rolls back into Rx instead of
// forcing Off): the inbound frame is delivered to its RequestRx before the
// ACK goes on air.
func (s *Service) sendAck(ctx context.Context, seqNr byte) {
	s.rxMu.Lock()
	rtok, buf := s.rxToken, s.rxBuf
	s.rxMu.Unlock()

	if rtok == nil {
		return
	}

	s.ackMu.Lock()
	ack := s.ackFrame
	s.ackMu.Unlock()

	if ack == nil {
		return
	}

	sdu, err := ack.SDU()
	if err != nil {
		return
	}
	patchAckSeqNr(sdu, seqNr)

	tr := s.d.TransitionToTx(ack)
	outcome := radio.ExecuteTransition(ctx, tr, func(ctx context.Context) (interface{}, error) {
		return s.d.RunRx(ctx, buf, true)
	}, func() { s.d.SwitchOff(ctx) })

	switch outcome.Kind {
	case radio.OutcomeEntered:
		res := outcome.PrevResult.(*radio.RxResult)
		s.rxMu.Lock()
		s.rxToken, s.rxBuf = nil, nil
		s.rxMu.Unlock()
		s.ch.Received(*rtok, rxResponse(res))

		txResult, txErr := s.d.RunTx(ctx, ack, false)
		if txErr != nil {
			log.Printf("driver: ack transmission failed: %v", txErr)
		} else if tr, ok := txResult.(*radio.TxResult); ok {
			s.ackMu.Lock()
			s.ackFrame = tr.Sized
			s.ackMu.Unlock()
		}
		s.d.SwitchOff(ctx)
	case radio.OutcomeRollback:
		// CRC error finishing the frame that requested the ACK: no Tx was
		// ever attempted, so the ack frame goes back into its cell as is
		// (the next ACK patches its sequence number again) and
		// the Rx window continues with the same token (rxToken/rxBuf
		// untouched).
		s.ackMu.Lock()
		s.ackFrame = ack
		s.ackMu.Unlock()
	case radio.OutcomeFallback:
		// Unreachable in practice: TransitionToTx installs no EnterTarget,
		// so ExecuteTransition can never report Fallback for it.
		log.Printf("driver: unexpected fallback sending ack: %v", outcome.Err)
	}
}

// endRxWindow ends the current Rx window in favour of a newly-arrived
// request: any outstanding token is completed with RxWindowEnded first,
// then the new request is dispatched exactly as dispatchOff would.
func (s *Service) endRxWindow(ctx context.Context, rtok mpmc.ResponseToken, req Request) {
	s.rxMu.Lock()
	outstanding, buf := s.rxToken, s.rxBuf
	s.rxToken, s.rxBuf = nil, nil
	s.rxMu.Unlock()

	if outstanding != nil {
		s.ch.Received(*outstanding, rxResponse(radio.RunRxEndedByPreemption(buf)))
	}

	switch req.Kind {
	case RequestTx:
		s.beginTx(ctx, rtok, req.Tx)
	case RequestRx:
		s.beginRx(ctx, rtok, req.Rx.Buffer)
	}
}

// resolvePreliminaryInfo decodes the frame-control word and sequence number
// from the raw prefix captured at FRAMESTART and resolves the frame's
// destination addressing to decide whether it is for this driver. A prefix
// too short to resolve addressing, or an invalid addressing combination,
// fails closed (addressOK=false) rather than falling back to accept-all.
func (s *Service) resolvePreliminaryInfo(info []byte) (ackRequested bool, seqNr byte, addressOK bool) {
	if len(info) < 2 {
		return false, 0, false
	}
	fc := frame.ParseFrameControl(info[0:2])
	ackRequested = fc.AckRequest()

	seqNrPresent := !fc.SeqNrSuppression()
	if seqNrPresent {
		if len(info) < 3 {
			return ackRequested, 0, false
		}
		seqNr = info[2]
	}

	stage, err := frame.NewFrameControlStage(len(info), seqNrPresent)
	if err != nil {
		return ackRequested, seqNr, false
	}
	addrStage, err := stage.WithAddressing(addressingReprFromFC(fc))
	if err != nil {
		return ackRequested, seqNr, false
	}

	dstPan, dstAddr := addrStage.DstPan(), addrStage.DstAddr()
	if (dstPan.Present && dstPan.End > len(info)) || (dstAddr.Present && dstAddr.End > len(info)) {
		return ackRequested, seqNr, false
	}

	var panID uint16
	if dstPan.Present {
		panID = readLE16(info[dstPan.Start:dstPan.End])
	}
	var addr uint64
	if dstAddr.Present {
		addr = readLEAddr(info[dstAddr.Start:dstAddr.End])
	}

	addressOK = s.localAddr.MatchesDst(dstPan.Present, panID, dstAddr.Present, fc.DstAddrMode(), addr)
	return ackRequested, seqNr, addressOK
}

// addressingReprFromFC derives the (dst_mode, src_mode, pan_ids_equal,
// compression) tuple the presence table needs from a parsed frame control
// word.
func addressingReprFromFC(fc frame.FrameControl) frame.AddressingRepr {
	repr := frame.AddressingRepr{
		DstMode: fc.DstAddrMode(),
		SrcMode: fc.SrcAddrMode(),
	}
	if fc.Version() == frame.FrameVersion2015 {
		if fc.PanIDCompression() {
			repr.Compression = frame.PanCompressionYes
		} else {
			repr.Compression = frame.PanCompressionNo
		}
		return repr
	}
	repr.Compression = frame.PanCompressionLegacy
	repr.PanIDsEqual = fc.PanIDCompression()
	return repr
}

// readLE16 decodes a little-endian 16-bit PAN ID or short address.
func readLE16(b []byte) uint16 {
	return uint16(b[0]) | uint16(b[1])<<8
}

// readLEAddr decodes a little-endian address field of any length (2 bytes
// short, 8 bytes extended) into a uint64.
func readLEAddr(b []byte) uint64 {
	var v uint64
	for i, by := range b {
		v |= uint64(by) << (8 * i)
	}
	return v
}

// patchAckSeqNr overwrites the sequence-number byte of the pre-allocated ACK
// frame in place.
func patchAckSeqNr(raw []byte, seqNr byte) {
	// ACK MPDU layout: 2 bytes frame control, 1 byte sequence number.
	if len(raw) > 2 {
		raw[2] = seqNr
	}
}
