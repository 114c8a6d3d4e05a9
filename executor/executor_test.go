// https://github.com/f-secure-foundry/tamago
//
// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package executor

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBlockOnReturnsResult(t *testing.T) {
	e := New()

	result, err := e.BlockOn(context.Background(), func(ctx context.Context) (interface{}, error) {
		return 42, nil
	})
	if err != nil {
		t.Fatalf("BlockOn: %v", err)
	}
	if result != 42 {
		t.Fatalf("got %v, want 42", result)
	}
	if e.Busy() {
		t.Fatal("executor should be idle after BlockOn returns")
	}
}

func TestBlockOnPropagatesError(t *testing.T) {
	e := New()
	wantErr := errors.New("boom")

	_, err := e.BlockOn(context.Background(), func(ctx context.Context) (interface{}, error) {
		return nil, wantErr
	})
	if err != wantErr {
		t.Fatalf("got %v, want %v", err, wantErr)
	}
}

func TestSpawnCancellation(t *testing.T) {
	e := New()

	started := make(chan struct{})
	out, cancel := e.Spawn(context.Background(), func(ctx context.Context) (interface{}, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})

	<-started
	cancel()

	select {
	case res := <-out:
		if res.Err == nil {
			t.Fatal("expected cancellation error")
		}
	case <-time.After(time.Second):
		t.Fatal("spawned task never observed cancellation")
	}

	if e.Busy() {
		t.Fatal("executor should be idle after spawned task completes")
	}
}
