// Host-testable 24-bit counter simulation
// https://github.com/f-secure-foundry/tamago
//
// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package radiotimer

import (
	"context"
	"sync/atomic"
	"time"
)

// SoftCounter is a Counter implementation for tests and the CLI demo: a
// manually advanceable 24-bit counter, standing in for the free-running RTC
// register a real driver reads directly.
type SoftCounter struct {
	v uint32
}

// Read implements Counter.
func (c *SoftCounter) Read() uint32 {
	return atomic.LoadUint32(&c.v) & counterMask
}

// Advance adds delta ticks to the counter, wrapping modulo 2^24. Callers
// driving a Timer against a SoftCounter are responsible for calling
// Timer.Tick when this crosses 0 or 0x800000, mirroring the overflow/half-
// overflow hardware events.
func (c *SoftCounter) Advance(delta uint32) {
	for {
		old := atomic.LoadUint32(&c.v)
		next := (old + delta) & counterMask
		if atomic.CompareAndSwapUint32(&c.v, old, next) {
			return
		}
	}
}

// Set forces the counter to an absolute value (masked to 24 bits).
func (c *SoftCounter) Set(v uint32) {
	atomic.StoreUint32(&c.v, v&counterMask)
}

// softClockInterval is the wall-clock period RunSoftClock advances the
// counter by; coarse enough to not busy the host, fine enough that AIFS/ACK
// deadlines (tens of microseconds to low milliseconds) are still observed
// with reasonable precision by a goroutine-driven simulation.
const softClockInterval = 50 * time.Microsecond

// RunSoftClock drives sc (and tm's alarms) at real wall-clock rate, standing
// in for the free-running RTC hardware and its overflow/half-overflow/
// compare-match interrupts that on real silicon advance the Timer without
// any software polling loop. Real deployments call Tick/CheckAlarms directly
// from those interrupt handlers instead; this is only needed because
// soc/nrf52 and cmd/dot15d4demo run the radio driver on a host with no such
// hardware underneath them. Blocks until ctx is cancelled.
func RunSoftClock(ctx context.Context, tm *Timer, sc *SoftCounter) {
	ticksPerInterval := uint32(NsToTicks(uint64(softClockInterval)))
	ticker := time.NewTicker(softClockInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			before := sc.Read()
			next := before + ticksPerInterval
			crossedZero := next > counterMask
			crossedHalf := before < halfOverflow && (next&counterMask) >= halfOverflow && !crossedZero
			sc.Advance(ticksPerInterval)
			if crossedZero || crossedHalf {
				tm.Tick()
			}
			tm.CheckAlarms()
		}
	}
}
