// dot15d4 driver demo
// https://github.com/f-secure-foundry/tamago
//
// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Command dot15d4demo drives a simulated nRF52 radio through a scripted
// send/receive exchange: an ack-requesting data frame goes out, the
// scripted peer immediately acknowledges it. This is a CLI demo only; no
// GUI or production deployment surface is in scope.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/dot15d4go/dot15d4/dma"
	"github.com/dot15d4go/dot15d4/driver"
	"github.com/dot15d4go/dot15d4/frame"
	"github.com/dot15d4go/dot15d4/mpmc"
	"github.com/dot15d4go/dot15d4/radio"
	"github.com/dot15d4go/dot15d4/radiotimer"
	"github.com/dot15d4go/dot15d4/soc/nrf52"
)

func main() {
	log.SetFlags(0)

	channel := pflag.IntP("channel", "c", 15, "IEEE 802.15.4 channel (11-26)")
	txPower := pflag.IntP("tx-power", "p", 0, "transmit power in dBm")
	bufSize := pflag.IntP("buffer-size", "b", 127, "frame buffer size in bytes")
	help := pflag.BoolP("help", "h", false, "display help text")
	pflag.Parse()

	if *help {
		fmt.Fprintln(os.Stderr, "dot15d4demo: exercise the simulated radio driver end to end")
		pflag.PrintDefaults()
		return
	}

	periph := nrf52.New()
	// Scripts the peer's reply to the scripted Tx below: an immediate ACK
	// (frame type 2, sequence number 55 == 0x37), on-air bytes "02 00 37"
	// (FCS omitted here since this simulation reports CRCOK directly rather
	// than modelling the wire FCS).
	periph.FrameSource = func() ([]byte, bool) {
		return []byte{0x02, 0x00, 0x37}, true
	}

	d := radio.New(periph)
	if err := d.SetChannel(*channel); err != nil {
		log.Fatalf("dot15d4demo: %v", err)
	}
	if err := d.SetTxPower(*txPower); err != nil {
		log.Fatalf("dot15d4demo: %v", err)
	}

	pool := dma.NewPool(*bufSize, 4)
	geom := frame.Geometry{MaxSDU: *bufSize - 2, LengthFCS: 2}

	ackFrame := mustAckFrame(pool, geom)
	tempRx := mustUnsized(pool, geom)

	ch := mpmc.NewChannel[driver.Request, driver.Response](8)
	counter := &radiotimer.SoftCounter{}
	tm := radiotimer.New(counter)
	// LocalAddress only gates frames received through driver.RequestRx; this
	// demo only ever originates a Tx, so it is set here for a realistic board
	// configuration rather than because the scripted exchange exercises it.
	cfg := driver.Config{
		AIFSTicks:    12,
		SIFSTicks:    20,
		LIFSTicks:    40,
		AckWaitTicks: radiotimer.NsToTicks(384_000),
		LocalAddress: frame.LocalAddress{PANID: 0x1234, ShortAddr: 0xabcd},
	}

	svc, err := driver.NewService(d, ch, tm, cfg, ackFrame, tempRx)
	if err != nil {
		log.Fatalf("dot15d4demo: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// On real silicon the RTC peripheral free-runs and its overflow/compare
	// interrupts drive the Timer; here nothing plays that role, so
	// RunSoftClock stands in for it at real wall-clock rate.
	go radiotimer.RunSoftClock(ctx, tm, counter)
	go svc.Run(ctx)

	log.Printf("dot15d4demo: scripted exchange starting on channel %d", *channel)
	runScenario(ctx, pool, geom, ch)
}

func runScenario(ctx context.Context, pool *dma.Pool, geom frame.Geometry, ch *mpmc.Channel[driver.Request, driver.Response]) {
	sized := mustAckRequestingFrame(pool, geom, 55, []byte("hi"))

	reqTok, err := ch.TryAllocateRequestToken()
	if err != nil {
		log.Fatalf("dot15d4demo: allocate request token: %v", err)
	}

	ptok, err := ch.SendRequestPollingResponse(reqTok, mpmc.DirectionOutbound, driver.Request{
		Kind: driver.RequestTx,
		Tx:   driver.TaskTx{Frame: sized, CCA: true},
	})
	if err != nil {
		log.Fatalf("dot15d4demo: send: %v", err)
	}

	_, resp, err := ch.WaitForResponse(ctx, []mpmc.PollingResponseToken{ptok})
	if err != nil {
		log.Fatalf("dot15d4demo: waitForResponse: %v", err)
	}

	switch resp.TxOutcome {
	case driver.TxSent:
		log.Printf("dot15d4demo: frame sent successfully")
	case driver.TxCcaBusy:
		log.Printf("dot15d4demo: channel busy, frame returned")
	case driver.TxNack:
		log.Printf("dot15d4demo: no ack received")
	default:
		log.Printf("dot15d4demo: radio error")
	}
}

func mustUnsized(pool *dma.Pool, geom frame.Geometry) *frame.UnsizedFrame {
	tok, err := pool.TryAllocate(pool.Cap())
	if err != nil {
		log.Fatalf("dot15d4demo: allocate: %v", err)
	}
	f, err := frame.NewUnsizedFrame(tok, geom)
	if err != nil {
		log.Fatalf("dot15d4demo: new unsized frame: %v", err)
	}
	return f
}

func mustAckFrame(pool *dma.Pool, geom frame.Geometry) *frame.SizedFrame {
	f := mustUnsized(pool, geom)
	sized, err := f.ToSized(3)
	if err != nil {
		log.Fatalf("dot15d4demo: ack frame: %v", err)
	}
	// The template's frame control is filled once, up front; the service
	// only ever patches the sequence number byte.
	sdu, err := sized.SDU()
	if err != nil {
		log.Fatalf("dot15d4demo: ack sdu: %v", err)
	}
	frame.FrameControl(0).WithType(frame.FrameTypeAck).WithVersion(frame.FrameVersion2006).Put(sdu[0:2])
	return sized
}

// mustAckRequestingFrame builds a data frame with ack_request set and the
// given sequence number, followed by payload.
func mustAckRequestingFrame(pool *dma.Pool, geom frame.Geometry, seqNr byte, payload []byte) *frame.SizedFrame {
	f := mustUnsized(pool, geom)
	raw, err := f.Raw()
	if err != nil {
		log.Fatalf("dot15d4demo: raw: %v", err)
	}

	fc := frame.FrameControl(0).WithType(frame.FrameTypeData).WithAckRequest(true).WithVersion(frame.FrameVersion2006)
	fc.Put(raw[0:2])
	raw[2] = seqNr
	n := copy(raw[3:], payload)

	sized, err := f.ToSized(3 + n)
	if err != nil {
		log.Fatalf("dot15d4demo: sized payload: %v", err)
	}
	return sized
}
