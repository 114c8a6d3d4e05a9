// Interrupt-pinned single-task executor
// https://github.com/f-secure-foundry/tamago
//
// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package executor implements a single-task cooperative executor tied to
// one interrupt vector. On bare metal this is a wfe idle loop polled from
// an ISR; Go already has a preemptive scheduler, so this package keeps the
// task-handoff protocol (an atomic task handle transferred between
// scheduling and "ISR" context, completion signalled by the handle going
// nil) without hand-rolled polling: the piece worth reproducing is the
// handoff discipline and the cancel-before-complete race it has to avoid.
package executor

import (
	"context"
	"sync/atomic"
)

type taskHandle struct {
	cancel context.CancelFunc
}

// Executor runs at most one task at a time, the way a single IRQ handler
// services a single pending future.
type Executor struct {
	current atomic.Pointer[taskHandle]
	// interrupt is pended (buffered, capacity 1) whenever a task's waker
	// fires, standing in for an IRQ-pend register write.
	interrupt chan struct{}
}

// New creates an idle Executor.
func New() *Executor {
	return &Executor{interrupt: make(chan struct{}, 1)}
}

// pend signals the executor's interrupt, the Go analogue of writing a
// software-triggered interrupt register to wake the idle loop.
func (e *Executor) pend() {
	select {
	case e.interrupt <- struct{}{}:
	default:
	}
}

// BlockOn runs fn to completion, storing its task handle in current for
// the duration (published via atomic.Pointer's happens-before guarantee);
// fn itself runs on a dedicated goroutine while the calling goroutine
// waits for it. The executor has no method that cancels that handle, so
// BlockOn is not cancellable by the
// executor itself; only fn's own ctx handling decides whether it unwinds
// early.
func (e *Executor) BlockOn(ctx context.Context, fn func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	taskCtx, cancel := context.WithCancel(ctx)
	h := &taskHandle{cancel: cancel}
	e.current.Store(h)
	defer e.current.Store(nil)

	type outcome struct {
		result interface{}
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		r, err := fn(taskCtx)
		done <- outcome{r, err}
		e.pend()
	}()

	<-e.interrupt
	out := <-done
	return out.result, out.err
}

// Spawn runs fn on its own goroutine and returns a channel closed when it
// completes, reporting its result through the channel rather than blocking
// the caller. Unlike BlockOn, the returned cancel func lets a caller tear
// the task down early; the handle is cleared before the result is
// published so a racing cancel can never observe a completed task as
// live.
func (e *Executor) Spawn(ctx context.Context, fn func(ctx context.Context) (interface{}, error)) (<-chan SpawnResult, context.CancelFunc) {
	taskCtx, cancel := context.WithCancel(ctx)
	h := &taskHandle{cancel: cancel}
	e.current.Store(h)

	out := make(chan SpawnResult, 1)
	go func() {
		r, err := fn(taskCtx)
		e.current.CompareAndSwap(h, nil)
		out <- SpawnResult{Result: r, Err: err}
		close(out)
	}()

	return out, cancel
}

// SpawnResult is the outcome delivered on a Spawn task's completion channel.
type SpawnResult struct {
	Result interface{}
	Err    error
}

// Busy reports whether a task currently occupies the executor.
func (e *Executor) Busy() bool {
	return e.current.Load() != nil
}
