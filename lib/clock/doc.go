// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source so that retry
// backoff, reply deadlines, and reconnect delays can be tested without
// wall-clock sleeps.
//
// Production code takes a [Clock] and is wired with [Real]. Tests use
// [Fake], whose time only moves when [FakeClock.Advance] is called:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	go client.Refresh(ctx, token) // sleeps between retries on c
//	c.WaitForTimers(1)            // the retry sleep is registered
//	c.Advance(time.Second)        // and now it fires
//
// WaitForTimers closes the race between a goroutine registering a
// sleep and the test advancing past it.
package clock
