// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package textbridge

import (
	"sync/atomic"
	"testing"
	"time"

	testutil "github.com/ZaparooProject/go-textbridge/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchdog_FiresWithGeneration(t *testing.T) {
	t.Parallel()

	fired := make(chan uint64, 1)
	w := NewWatchdog(10*time.Millisecond, func(gen uint64) { fired <- gen })

	gen := w.Arm()
	select {
	case got := <-fired:
		assert.Equal(t, gen, got)
		assert.True(t, w.Current(got))
	case <-time.After(replyTimeout):
		t.Fatal("watchdog did not fire")
	}
}

func TestWatchdog_DisarmAndRearm(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	w := NewWatchdog(time.Hour, func(uint64) { calls.Add(1) })

	first := w.Arm()
	second := w.Arm()
	assert.NotEqual(t, first, second)
	assert.False(t, w.Current(first))
	assert.True(t, w.Current(second))

	w.Disarm()
	assert.False(t, w.Armed())
	assert.False(t, w.Current(second))
	w.Disarm()
	assert.Zero(t, calls.Load())
}

func TestWatchdog_SetTimeout(t *testing.T) {
	t.Parallel()

	w := NewWatchdog(time.Second, func(uint64) {})
	w.SetTimeout(2 * time.Second)
	assert.Equal(t, 2*time.Second, w.Timeout())
}

func TestBridge_SessionTimeoutResets(t *testing.T) {
	t.Parallel()
	h := newHarness(t, WithSessionTimeout(30*time.Millisecond))

	h.send(CmdStart, 0)
	h.expect(t, RespReady, 0)
	require.Eventually(t, func() bool { return !h.b.Session().Transmitting }, replyTimeout, time.Millisecond)

	h.expectQuiet(t, 20*time.Millisecond)
	assert.Equal(t, int64(1), h.b.Stats().Timeouts)
	assert.Equal(t, KeyPass, h.b.FilterKeyEvent())

	h.send(keycodeFrame(1, 0x04, 0x00)...)
	h.expect(t, RespError, 1, ErrCodeSeq)
}

func TestBridge_SessionTimeoutNotification(t *testing.T) {
	t.Parallel()
	h := newHarness(t, WithSessionTimeout(30*time.Millisecond), WithTimeoutNotification(true))

	h.send(CmdStart, 0)
	h.expect(t, RespReady, 0)
	h.send(keycodeFrame(4, 0x04, 0x00)...)
	h.expect(t, RespAck, 4)
	h.expect(t, RespError, 4, ErrCodeTimeout)
}

func TestBridge_TimeoutDuringInjection(t *testing.T) {
	t.Parallel()
	h := newHarness(t, WithSessionTimeout(30*time.Millisecond))
	h.kb.BlockSleeps()

	h.send(CmdStart, 0)
	h.expect(t, RespReady, 0)
	h.send(keycodeFrame(1, 0x04, ModRightAlt)...)
	h.waitSleep(t)

	require.Eventually(t, func() bool { return !h.b.Session().Active() }, replyTimeout, time.Millisecond)
	_, mods := h.kb.State()
	assert.Zero(t, mods)

	h.kb.Unblock()
	h.waitInjectorExit(t)
	h.expectQuiet(t, 20*time.Millisecond)
}

func TestBridge_StaleWatchdogIgnored(t *testing.T) {
	t.Parallel()

	kb := testutil.NewRecordingKeyboard()
	b, err := New(kb, WithSessionTimeout(time.Hour))
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	b.HandleFrame([]byte{CmdStart, 0})
	b.mu.Lock()
	stale := b.watchdog.Arm()
	b.watchdog.Arm()
	b.mu.Unlock()

	b.onWatchdog(stale)
	assert.True(t, b.Session().Transmitting)
	assert.Zero(t, b.Stats().Timeouts)
	assert.Empty(t, kb.Events())
}

func TestBridge_WatchdogWhenIdleOnlyDisarms(t *testing.T) {
	t.Parallel()

	kb := testutil.NewRecordingKeyboard()
	b, err := New(kb, WithSessionTimeout(time.Hour))
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	gen := b.watchdog.Arm()
	b.onWatchdog(gen)
	assert.False(t, b.watchdog.Armed())
	assert.Zero(t, b.Stats().Timeouts)
	assert.Empty(t, kb.Events())
}

func TestBridge_SetSessionTimeout(t *testing.T) {
	t.Parallel()

	b, err := New(testutil.NewRecordingKeyboard())
	require.NoError(t, err)
	b.SetSessionTimeout(5 * time.Second)
	assert.Equal(t, 5*time.Second, b.watchdog.Timeout())
	b.SetSessionTimeout(0)
	assert.Equal(t, 5*time.Second, b.watchdog.Timeout())
}
