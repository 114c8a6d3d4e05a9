// Transition execution
// https://github.com/f-secure-foundry/tamago
//
// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package radio

import "context"

// OutcomeKind names one of ExecuteTransition's three completion shapes.
type OutcomeKind int

const (
	OutcomeEntered OutcomeKind = iota
	OutcomeRollback
	OutcomeFallback
)

// Outcome is the result of executing a Transition.
type Outcome struct {
	Kind OutcomeKind

	// Entered: the previous task's result and the newly-entered state.
	PrevResult interface{}
	NextState  StateKind

	// Rollback: the error, the previous task's result if run produced one
	// before failing, and the task handed back intact so the caller can
	// retry it.
	Err           error
	RecoveredTask interface{}

	// Fallback: same shape as Rollback's error/prev-result fields, but
	// NextState is always KindOff, since switch_off is infallible.
}

// Transition bundles a source/target state pair with its callbacks.
// Source == Target denotes a Self transition.
type Transition struct {
	Source StateKind
	Target StateKind

	// OnScheduled runs when the transition is constructed: it arms
	// hardware shortcuts so completion can fire without CPU involvement.
	OnScheduled func() error

	// OnTaskComplete runs immediately after Run completes; it implements
	// the arm-read-maybe-kick late-scheduling remediation.
	OnTaskComplete func() error

	// Exit is synchronous cleanup between Run and the target's Transition.
	// Only invoked for External transitions.
	Exit func()

	// EnterTarget performs the target state's blocking transition() call.
	// Only invoked for External transitions.
	EnterTarget func(ctx context.Context) error

	// Cleanup always runs last, regardless of outcome, and is told which
	// outcome was reached so it can decide whether the typestate actually
	// moved to Target (Entered), stayed in Source (Rollback), or was
	// already forced Off via offSwitch (Fallback).
	Cleanup func(OutcomeKind)

	// AltOutcomeIsError records whether Run's alternate outcome (Rx CRC
	// failure) is reported as an error instead of a result variant.
	// ExecuteTransition does not read it: the run callback decides, through
	// the altOutcomeIsError argument it passes to Driver.RunRx.
	AltOutcomeIsError bool
}

// IsExternal reports whether this transition changes state.
func (t Transition) IsExternal() bool { return t.Source != t.Target }

// ExecuteTransition drives one transition through its callback sequence:
// External transitions run
// on_scheduled -> run -> on_task_complete -> exit -> target.transition -> cleanup;
// Self transitions run on_scheduled -> run -> on_task_complete -> cleanup.
//
// run performs the state's do-activity (Run) and returns its task result or
// a task error (*RxError, *TxError); offSwitch forcibly disables the radio
// for the Fallback path and is always infallible.
func ExecuteTransition(ctx context.Context, t Transition, run func(ctx context.Context) (interface{}, error), offSwitch func()) (outcome Outcome) {
	defer func() {
		if t.Cleanup != nil {
			t.Cleanup(outcome.Kind)
		}
	}()

	if t.OnScheduled != nil {
		if err := t.OnScheduled(); err != nil {
			outcome = Outcome{Kind: OutcomeRollback, Err: err}
			return
		}
	}

	result, runErr := run(ctx)

	if t.OnTaskComplete != nil {
		if err := t.OnTaskComplete(); err != nil {
			outcome = Outcome{Kind: OutcomeRollback, Err: err, PrevResult: result, RecoveredTask: taskErrorPayload(runErr)}
			return
		}
	}

	if runErr != nil {
		outcome = Outcome{Kind: OutcomeRollback, Err: runErr, RecoveredTask: taskErrorPayload(runErr)}
		return
	}

	if !t.IsExternal() {
		outcome = Outcome{Kind: OutcomeEntered, PrevResult: result, NextState: t.Target}
		return
	}

	if t.Exit != nil {
		t.Exit()
	}

	if t.EnterTarget != nil {
		if err := t.EnterTarget(ctx); err != nil {
			offSwitch()
			outcome = Outcome{Kind: OutcomeFallback, Err: err, PrevResult: result, NextState: KindOff}
			return
		}
	}

	outcome = Outcome{Kind: OutcomeEntered, PrevResult: result, NextState: t.Target}
	return
}

// taskErrorPayload extracts the frame payload carried by a task error so it
// can be handed back to the caller intact on Rollback.
func taskErrorPayload(err error) interface{} {
	switch e := err.(type) {
	case *RxError:
		return e.Unsized
	case *TxError:
		return e.Sized
	default:
		return nil
	}
}
