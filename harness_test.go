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
	"testing"
	"time"

	testutil "github.com/ZaparooProject/go-textbridge/internal/testing"
	"github.com/stretchr/testify/require"
)

const replyTimeout = 2 * time.Second

type harness struct {
	b    *Bridge
	kb   *testutil.RecordingKeyboard
	link *MockLink
}

// newHarness returns a bridge with a connected, subscribed peer whose
// injector sleeps are recorded instead of slept.
func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	kb := testutil.NewRecordingKeyboard()
	link := NewMockLink()
	opts = append([]Option{WithLink(link), WithSleep(kb.Sleep)}, opts...)
	b, err := New(kb, opts...)
	require.NoError(t, err)
	b.OnConnected()
	b.OnNotificationsEnabled(true)
	t.Cleanup(func() {
		kb.Unblock()
		_ = b.Close()
	})
	return &harness{b: b, kb: kb, link: link}
}

func (h *harness) send(frame ...byte) {
	h.b.HandleFrame(frame)
}

func (h *harness) expect(t *testing.T, want ...byte) {
	t.Helper()
	select {
	case got := <-h.link.Notifications():
		require.Equal(t, want, got, "want %s", ResponseName(want[0]))
	case <-time.After(replyTimeout):
		t.Fatalf("no reply, want % X", want)
	}
}

func (h *harness) expectQuiet(t *testing.T, d time.Duration) {
	t.Helper()
	select {
	case got := <-h.link.Notifications():
		t.Fatalf("unexpected reply % X", got)
	case <-time.After(d):
	}
}

func (h *harness) waitSleep(t *testing.T) time.Duration {
	t.Helper()
	d, err := h.kb.WaitSleep(replyTimeout)
	require.NoError(t, err)
	return d
}

func (h *harness) waitInjectorExit(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool {
		h.b.mu.Lock()
		defer h.b.mu.Unlock()
		return !h.b.injectorAlive
	}, replyTimeout, time.Millisecond)
}

func keycodeFrame(seq byte, pairs ...byte) []byte {
	return append([]byte{CmdKeycode, seq, byte(len(pairs) / 2)}, pairs...)
}

func ev(kind testutil.EventKind, code byte) testutil.Event {
	return testutil.Event{Kind: kind, Code: code}
}

func sleepEv(d time.Duration) testutil.Event {
	return testutil.Event{Kind: testutil.EventSleep, Delay: d}
}

var flushEv = testutil.Event{Kind: testutil.EventFlush}
