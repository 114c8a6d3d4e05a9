// Fixed-size DMA buffer pool for radio driver frames
// https://github.com/f-secure-foundry/tamago
//
// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package dma provides a fixed-pool byte buffer allocator built around a
// non-cloneable, non-copyable ownership token.
//
// The pool itself is adapted from a first-fit DMA region allocator: a stack
// of free slot indices and O(1)
// alloc/free. Unlike that allocator, slots here are fixed-size (the radio
// hardware always DMAs into same-length buffers) and allocation additionally
// exposes a FIFO backlog of blocked waiters, since the driver service must be
// able to suspend until a buffer becomes free rather than fail immediately.
package dma

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"log"
	"runtime"
	"sync"
)

// ErrOutOfMemory is returned by TryAllocate when no buffer is free.
var ErrOutOfMemory = errors.New("dma: out of memory")

// ErrTooLarge is returned when the requested size exceeds the pool's buffer
// capacity.
var ErrTooLarge = errors.New("dma: requested size exceeds buffer capacity")

// ErrForeignToken is returned by ReleaseTo when a token did not originate
// from the pool it is being returned to.
var ErrForeignToken = errors.New("dma: token does not belong to this pool")

// ErrAlreadyReleased is returned when a Token is used after having already
// been released or converted.
var ErrAlreadyReleased = errors.New("dma: token already released")

// Pool is a pinned, fixed-size pool of N equally sized buffers plus a free
// list and a FIFO backlog of allocation waiters.
//
// A Pool is safe for concurrent use: the driver service, upper-layer tasks
// and the allocator's own waiters may all call into it from different
// goroutines.
type Pool struct {
	mu sync.Mutex

	bufSize int
	storage [][]byte
	free    []int // stack of free slot indices, O(1) push/pop

	backlog *list.List // FIFO of *waiter
}

type waiter struct {
	size      int
	ch        chan int // receives the allocated slot index, closed on allocation
	delivered bool      // set under Pool.mu once deallocateSlot has popped this waiter
}

// NewPool allocates a fixed pool of count buffers, each bufSize bytes.
func NewPool(bufSize, count int) *Pool {
	p := &Pool{
		bufSize: bufSize,
		storage: make([][]byte, count),
		free:    make([]int, count),
		backlog: list.New(),
	}

	for i := 0; i < count; i++ {
		p.storage[i] = make([]byte, bufSize)
		p.free[i] = count - 1 - i
	}

	return p
}

// Cap returns the fixed per-buffer capacity of the pool.
func (p *Pool) Cap() int {
	return p.bufSize
}

// TryAllocate returns a Token over a buffer of the given logical length, or
// ErrOutOfMemory if no buffer is currently free. Never blocks.
func (p *Pool) TryAllocate(size int) (*Token, error) {
	if size > p.bufSize {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooLarge, size, p.bufSize)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.free) == 0 {
		return nil, ErrOutOfMemory
	}

	slot := p.free[len(p.free)-1]
	p.free = p.free[:len(p.free)-1]

	return p.newToken(slot, size), nil
}

// Allocate suspends until a buffer is available, waking blocked callers in
// FIFO order of arrival. Allocate does not coordinate with any other
// resource: callers holding a buffer and needing e.g. a channel slot must
// acquire the scarcer resource first themselves, or risk deadlock.
func (p *Pool) Allocate(ctx context.Context, size int) (*Token, error) {
	if tok, err := p.TryAllocate(size); err == nil {
		return tok, nil
	} else if !errors.Is(err, ErrOutOfMemory) {
		return nil, err
	}

	w := &waiter{size: size, ch: make(chan int, 1)}

	p.mu.Lock()
	elem := p.backlog.PushBack(w)
	p.mu.Unlock()

	select {
	case slot, ok := <-w.ch:
		if !ok {
			return nil, ctx.Err()
		}
		p.mu.Lock()
		tok := p.newToken(slot, size)
		p.mu.Unlock()
		return tok, nil
	case <-ctx.Done():
		p.mu.Lock()
		// Remove ourselves from the backlog if we haven't been woken yet;
		// if we lost the race (deallocateSlot already popped us), the
		// woken slot must still be returned to the free list so it is not
		// leaked.
		if !w.delivered {
			p.backlog.Remove(elem)
			p.mu.Unlock()
			return nil, ctx.Err()
		}
		p.mu.Unlock()
		select {
		case slot := <-w.ch:
			p.deallocateSlot(slot)
		default:
		}
		return nil, ctx.Err()
	}
}

func (p *Pool) newToken(slot, size int) *Token {
	t := &Token{
		pool: p,
		slot: slot,
		buf:  p.storage[slot][:size],
	}
	// The finalizer cannot prevent a leaked buffer, it only surfaces
	// the leak loudly instead of silently.
	runtime.SetFinalizer(t, (*Token).leaked)
	return t
}

// deallocateSlot returns slot to the free list or hands it directly to the
// longest-waiting backlog client.
func (p *Pool) deallocateSlot(slot int) {
	p.mu.Lock()

	if front := p.backlog.Front(); front != nil {
		p.backlog.Remove(front)
		w := front.Value.(*waiter)
		w.delivered = true
		p.mu.Unlock()
		w.ch <- slot
		close(w.ch)
		return
	}

	p.free = append(p.free, slot)
	p.mu.Unlock()
}

// Token is an exclusive ownership handle over a pool buffer slice.
//
// Token is not clonable (there is no Clone method) and not implicitly
// destructible: letting a Token go out of scope without calling Release (or
// handing it to a frame wrapper such as frame.NewUnsizedFrame) leaks the
// underlying buffer forever. Callers MUST treat an unreleased Token the same
// way the finalizer warning below treats it: a bug to fix, not a condition to
// handle at runtime.
type Token struct {
	pool     *Pool
	slot     int
	buf      []byte
	released bool
}

// Len returns the logical length requested at allocation.
func (t *Token) Len() int {
	return len(t.buf)
}

// Bytes returns the token's buffer. The returned slice aliases the pool's
// backing storage for the token's lifetime: the address is stable until
// Release.
func (t *Token) Bytes() []byte {
	return t.buf
}

// Release returns the token to its originating pool. Release is idempotent
// only in the sense that calling it twice returns ErrAlreadyReleased; it is
// not safe to use the Token after the first call regardless of the error
// returned.
func (t *Token) Release() error {
	if t.released {
		return ErrAlreadyReleased
	}

	t.released = true
	runtime.SetFinalizer(t, nil)
	t.pool.deallocateSlot(t.slot)

	return nil
}

// ReleaseTo returns the token to pool. A token may only be returned to the
// allocator it came from.
func (t *Token) ReleaseTo(pool *Pool) error {
	if pool != t.pool {
		return ErrForeignToken
	}
	return t.Release()
}

// consume marks the token as spent without returning its buffer to the pool,
// so that its storage can be moved into a new Token (see FromParts). The
// destination becomes responsible for eventually releasing the same slot.
func (t *Token) consume() (*Pool, int, []byte, error) {
	if t.released {
		return nil, 0, nil, ErrAlreadyReleased
	}

	t.released = true
	runtime.SetFinalizer(t, nil)

	return t.pool, t.slot, t.buf, nil
}

// Reslice narrows or widens (up to the pool's per-buffer capacity) the
// logical view of the token's buffer in place; used when a radio task
// returns a frame with a different SDU length than it was handed.
func (t *Token) Reslice(length int) error {
	if t.released {
		return ErrAlreadyReleased
	}
	if length > t.pool.bufSize {
		return ErrTooLarge
	}
	t.buf = t.pool.storage[t.slot][:length]
	return nil
}

// Pool returns the allocator the token was allocated from.
func (t *Token) Pool() *Pool {
	return t.pool
}

func (t *Token) leaked() {
	if !t.released {
		log.Printf("dma: buffer token leaked (slot %d never released)", t.slot)
	}
}

// FromParts reconstructs a Token from the parts produced by consume. Only
// callers inside this module's own packages are expected to use it; the
// frame package's typestate conversions move the *Token itself instead.
func FromParts(pool *Pool, slot int, buf []byte) *Token {
	t := &Token{pool: pool, slot: slot, buf: buf}
	runtime.SetFinalizer(t, (*Token).leaked)
	return t
}

// Consume is the exported form of consume: it marks t spent and hands back
// its storage without returning the slot to the pool.
func Consume(t *Token) (pool *Pool, slot int, buf []byte, err error) {
	return t.consume()
}
