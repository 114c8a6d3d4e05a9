// https://github.com/f-secure-foundry/tamago
//
// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package dma

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestTryAllocateExhaustion(t *testing.T) {
	p := NewPool(64, 2)

	a, err := p.TryAllocate(64)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := p.TryAllocate(32)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := p.TryAllocate(1); err != ErrOutOfMemory {
		t.Fatalf("expected ErrOutOfMemory, got %v", err)
	}

	if err := a.Release(); err != nil {
		t.Fatalf("release: %v", err)
	}

	c, err := p.TryAllocate(10)
	if err != nil {
		t.Fatalf("expected allocation to succeed after release: %v", err)
	}

	if err := b.Release(); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := c.Release(); err != nil {
		t.Fatalf("release: %v", err)
	}
}

func TestTryAllocateTooLarge(t *testing.T) {
	p := NewPool(16, 1)

	if _, err := p.TryAllocate(17); err == nil {
		t.Fatal("expected error for oversized request")
	}
}

func TestReleaseForeignToken(t *testing.T) {
	a := NewPool(16, 1)
	b := NewPool(16, 1)

	tok, err := a.TryAllocate(16)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}

	if err := tok.ReleaseTo(b); err != ErrForeignToken {
		t.Fatalf("expected ErrForeignToken, got %v", err)
	}

	if err := tok.ReleaseTo(a); err != nil {
		t.Fatalf("release to origin pool: %v", err)
	}
}

func TestDoubleRelease(t *testing.T) {
	p := NewPool(16, 1)

	tok, _ := p.TryAllocate(16)

	if err := tok.Release(); err != nil {
		t.Fatalf("first release: %v", err)
	}
	if err := tok.Release(); err != ErrAlreadyReleased {
		t.Fatalf("expected ErrAlreadyReleased, got %v", err)
	}
}

// TestBacklogFIFO checks that N blocked allocators are woken in wait-order
// as the single buffer is freed and passed from waiter to waiter.
func TestBacklogFIFO(t *testing.T) {
	const n = 8

	p := NewPool(8, 1)

	held, err := p.TryAllocate(8)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}

	order := make(chan int, n)
	var wg sync.WaitGroup

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Stagger registration; the loop below additionally waits
			// for each waiter to be queued, which fixes arrival order.
			time.Sleep(time.Duration(i) * time.Millisecond)
			tok, err := p.Allocate(context.Background(), 4)
			if err != nil {
				t.Errorf("allocate %d: %v", i, err)
				return
			}
			order <- i
			_ = tok.Release()
		}(i)

		for {
			p.mu.Lock()
			queued := p.backlog.Len()
			p.mu.Unlock()
			if queued == i+1 {
				break
			}
			time.Sleep(100 * time.Microsecond)
		}
	}

	// Give every waiter a chance to register in the backlog before we
	// start freeing, then free one at a time.
	time.Sleep(time.Duration(n+2) * time.Millisecond)
	_ = held.Release()

	wg.Wait()
	close(order)

	var got []int
	for v := range order {
		got = append(got, v)
	}

	for i, v := range got {
		if v != i {
			t.Fatalf("backlog not woken in FIFO order: got %v", got)
		}
	}
}

func TestAllocateCancellation(t *testing.T) {
	p := NewPool(8, 1)

	held, err := p.TryAllocate(8)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	defer held.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := p.Allocate(ctx, 4); err == nil {
		t.Fatal("expected context deadline error")
	}
}

// TestDeadlockAvoidance: two independently scarce pools only stay
// deadlock-free when every caller acquires them in the same order. A task
// that needs both a buffer and a channel slot must acquire the scarcest
// resource first, and every task must agree on the same order. Acquiring
// in a consistent order across many randomly-staggered concurrent rounds
// never deadlocks; acquiring in an inverted order in even one task can
// deadlock as soon as two tasks each hold the resource the other wants
// next.
func TestDeadlockAvoidance(t *testing.T) {
	t.Run("consistent_order_never_deadlocks", func(t *testing.T) {
		const rounds = 50

		bufPool := NewPool(8, 1)
		slotPool := NewPool(8, 1)

		acquireBoth := func(ctx context.Context) error {
			buf, err := bufPool.Allocate(ctx, 4)
			if err != nil {
				return fmt.Errorf("buffer: %w", err)
			}
			slot, err := slotPool.Allocate(ctx, 4)
			if err != nil {
				buf.Release()
				return fmt.Errorf("slot: %w", err)
			}
			slot.Release()
			buf.Release()
			return nil
		}

		for round := 0; round < rounds; round++ {
			var wg sync.WaitGroup
			errs := make(chan error, 2)

			for i := 0; i < 2; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					// Stagger arrival so which goroutine wins the race
					// for the sole buffer varies round to round.
					time.Sleep(time.Duration(round%3+i) * time.Millisecond)
					ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
					defer cancel()
					errs <- acquireBoth(ctx)
				}(i)
			}

			wg.Wait()
			close(errs)
			for err := range errs {
				if err != nil {
					t.Fatalf("round %d: consistent acquisition order deadlocked: %v", round, err)
				}
			}
		}
	})

	t.Run("inverted_order_can_deadlock", func(t *testing.T) {
		bufPool := NewPool(8, 1)
		slotPool := NewPool(8, 1)

		started := make(chan struct{}, 2)
		results := make(chan error, 2)
		// Each goroutine holds its first resource until both second-step
		// allocations have resolved, so one timeout cannot hand its
		// resource to the other waiter.
		release := make(chan struct{})

		// Buffer-then-slot, the consistent order.
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
			defer cancel()
			buf, err := bufPool.Allocate(ctx, 4)
			if err != nil {
				results <- err
				return
			}
			started <- struct{}{}
			time.Sleep(30 * time.Millisecond)
			_, err = slotPool.Allocate(ctx, 4)
			results <- err
			<-release
			buf.Release()
		}()

		// Slot-then-buffer, the inverted order: each goroutine wins the
		// resource the other needs next, so both block until ctx expires.
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
			defer cancel()
			slot, err := slotPool.Allocate(ctx, 4)
			if err != nil {
				results <- err
				return
			}
			started <- struct{}{}
			time.Sleep(30 * time.Millisecond)
			_, err = bufPool.Allocate(ctx, 4)
			results <- err
			<-release
			slot.Release()
		}()

		<-started
		<-started

		err1 := <-results
		err2 := <-results
		close(release)
		if err1 == nil || err2 == nil {
			t.Fatalf("expected both allocators to deadlock under inverted acquisition order, got %v, %v", err1, err2)
		}
	})
}
