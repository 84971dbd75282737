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

package colink

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	textbridge "github.com/ZaparooProject/go-textbridge"
	testutil "github.com/ZaparooProject/go-textbridge/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitTimeout = 2 * time.Second

type rig struct {
	sim    *testutil.VirtualCoprocessor
	kb     *testutil.RecordingKeyboard
	conn   *Conn
	bridge *textbridge.Bridge
	done   chan error
}

func newRig(t *testing.T) *rig {
	t.Helper()
	sim := testutil.NewVirtualCoprocessor()
	kb := testutil.NewRecordingKeyboard()
	conn := New(sim, textbridge.LinkUART, WithPortName("sim"), WithAdvertisedName("Desk"),
		WithPollInterval(time.Millisecond))
	b, err := textbridge.New(kb, textbridge.WithLink(conn), textbridge.WithSleep(kb.Sleep))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	r := &rig{sim: sim, kb: kb, conn: conn, bridge: b, done: make(chan error, 1)}
	go func() { r.done <- conn.Serve(ctx, b) }()
	t.Cleanup(func() {
		cancel()
		_ = conn.Close()
		_ = b.Close()
	})
	return r
}

func (r *rig) peerReady(t *testing.T) {
	t.Helper()
	r.sim.Connect("AA:BB:CC:DD:EE:FF")
	r.sim.Subscribe(true)
	require.Eventually(t, r.bridge.Connected, waitTimeout, time.Millisecond)
	// The subscribe event follows the connect event on the wire; a frame
	// round trip proves it was handled.
	r.sim.PeerWrite([]byte{textbridge.CmdAbort, 0xEE})
	r.expect(t, textbridge.RespAck, 0xEE)
}

func (r *rig) expect(t *testing.T, want ...byte) {
	t.Helper()
	got, err := r.sim.WaitNotification(waitTimeout)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestConn_TypesOverWire(t *testing.T) {
	t.Parallel()
	r := newRig(t)
	r.peerReady(t)

	r.sim.PeerWrite([]byte{textbridge.CmdStart, 0})
	r.expect(t, textbridge.RespReady, 0)
	r.sim.PeerWrite(textbridge.EncodeKeycode(1, []textbridge.KeycodeItem{
		{Keycode: 0x0B, Modifier: textbridge.ModLeftShift},
		{Keycode: 0x0C},
	}))
	r.expect(t, textbridge.RespAck, 1)
	r.sim.PeerWrite(textbridge.EncodeDone(2))
	r.expect(t, textbridge.RespDone, 2)

	assert.Equal(t, []byte{0x0B, 0x0C}, r.kb.Presses())
	st := r.conn.Stats()
	assert.Zero(t, st.Corrupted)
	assert.Equal(t, int64(4), st.Writes, "one notify per reply")
}

func TestConn_SurvivesNoiseAndCorruption(t *testing.T) {
	t.Parallel()
	r := newRig(t)
	r.peerReady(t)

	r.sim.InjectNoise([]byte{0x55, 0xAA, 0x00, 0x13})
	r.sim.InjectChecksumError()
	r.sim.PeerWrite([]byte{textbridge.CmdStart, 3})
	r.sim.PeerWrite([]byte{textbridge.CmdStart, 4})
	r.expect(t, textbridge.RespReady, 4)

	require.Eventually(t, func() bool { return r.conn.Stats().Corrupted >= 1 }, waitTimeout, time.Millisecond)
	assert.Positive(t, r.conn.Stats().Skipped)
}

func TestConn_DisconnectResetsSession(t *testing.T) {
	t.Parallel()
	r := newRig(t)
	r.peerReady(t)

	r.sim.PeerWrite([]byte{textbridge.CmdStart, 0})
	r.expect(t, textbridge.RespReady, 0)
	r.sim.Disconnect()

	require.Eventually(t, func() bool { return !r.bridge.Connected() }, waitTimeout, time.Millisecond)
	assert.False(t, r.bridge.Session().Active())
}

func TestConn_HostCommands(t *testing.T) {
	t.Parallel()
	r := newRig(t)

	require.NoError(t, r.bridge.BeginDiscoverability())
	state := r.sim.State()
	assert.True(t, state.Advertising)
	assert.Equal(t, "Desk", state.AdvertisedAs)

	r.peerReady(t)
	assert.False(t, r.sim.State().Advertising)

	r.bridge.OnHostTransportChanged(textbridge.HostTransportNone)
	require.Eventually(t, func() bool { return !r.bridge.Connected() }, waitTimeout, time.Millisecond)
	assert.False(t, r.sim.State().Connected)
}

func TestConn_ServeStopsOnClose(t *testing.T) {
	t.Parallel()
	r := newRig(t)

	require.NoError(t, r.conn.Close())
	select {
	case err := <-r.done:
		require.NoError(t, err)
	case <-time.After(waitTimeout):
		t.Fatal("Serve did not return")
	}
	require.ErrorIs(t, r.conn.Notify([]byte{1, 2}), textbridge.ErrTransportClosed)
	require.NoError(t, r.conn.Close())
}

func TestConn_ServeStopsOnContext(t *testing.T) {
	t.Parallel()

	sim := testutil.NewVirtualCoprocessor()
	conn := New(sim, textbridge.LinkSPI)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, conn.Serve(ctx, nopHandler{}), context.Canceled)
	assert.Equal(t, textbridge.LinkSPI, conn.Type())
}

type nopHandler struct{}

func (nopHandler) HandleFrame(data []byte) int { return len(data) }
func (nopHandler) OnConnected()                {}
func (nopHandler) OnDisconnected()             {}
func (nopHandler) OnNotificationsEnabled(bool) {}

type brokenPort struct {
	readErr  error
	writeErr error
	short    bool
}

func (p *brokenPort) Read([]byte) (int, error) { return 0, p.readErr }

func (p *brokenPort) Write(b []byte) (int, error) {
	if p.short {
		return len(b) - 1, nil
	}
	return 0, p.writeErr
}

func (*brokenPort) Close() error { return nil }

func TestConn_ServeFatalReadError(t *testing.T) {
	t.Parallel()

	conn := New(&brokenPort{readErr: io.ErrUnexpectedEOF}, textbridge.LinkI2C,
		WithPortName("i2c-1"), WithPollInterval(5*time.Millisecond))
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := conn.Serve(ctx, nopHandler{})
	require.ErrorIs(t, err, context.DeadlineExceeded, "transient read errors keep serving")

	conn = New(&brokenPort{readErr: io.EOF}, textbridge.LinkI2C, WithPortName("i2c-1"))
	err = conn.Serve(context.Background(), nopHandler{})
	require.ErrorIs(t, err, io.EOF)
	assert.True(t, textbridge.IsFatal(err))
}

func TestConn_ServeGivesUpAfterRepeatedReadErrors(t *testing.T) {
	t.Parallel()

	conn := New(&brokenPort{readErr: io.ErrUnexpectedEOF}, textbridge.LinkSPI,
		WithPortName("spidev0.0"), WithPollInterval(time.Millisecond))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := conn.Serve(ctx, nopHandler{})
	require.ErrorIs(t, err, textbridge.ErrTransportRead)
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.False(t, textbridge.IsFatal(err))
	assert.True(t, textbridge.IsRetryable(err))
}

func TestConn_WriteErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		port      *brokenPort
		sentinel  error
		name      string
		retryable bool
	}{
		{name: "transient", port: &brokenPort{writeErr: errors.New("EAGAIN")}, sentinel: textbridge.ErrTransportWrite, retryable: true},
		{name: "short write", port: &brokenPort{short: true}, sentinel: textbridge.ErrTransportWrite, retryable: true},
		{name: "device gone", port: &brokenPort{writeErr: io.ErrClosedPipe}, sentinel: io.ErrClosedPipe, retryable: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			conn := New(tt.port, textbridge.LinkUART)
			err := conn.Notify([]byte{textbridge.RespAck, 1})
			require.ErrorIs(t, err, tt.sentinel)
			assert.Equal(t, tt.retryable, textbridge.IsRetryable(err))
		})
	}
}

func TestConn_NotifyTooLarge(t *testing.T) {
	t.Parallel()

	conn := New(testutil.NewVirtualCoprocessor(), textbridge.LinkUART)
	err := conn.Notify(make([]byte, 255))
	require.ErrorIs(t, err, textbridge.ErrDataTooLarge)
}
