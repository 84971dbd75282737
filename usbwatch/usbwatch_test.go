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

package usbwatch

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	textbridge "github.com/ZaparooProject/go-textbridge"
	"github.com/ZaparooProject/go-textbridge/hid"
	"github.com/ZaparooProject/go-textbridge/internal/syncutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu   syncutil.Mutex
	seen []textbridge.HostTransport
}

func (r *recorder) OnHostTransportChanged(t textbridge.HostTransport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, t)
}

func (r *recorder) Seen() []textbridge.HostTransport {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]textbridge.HostTransport(nil), r.seen...)
}

type fixture struct {
	classDir string
	state    string
	node     string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	root := t.TempDir()
	classDir := filepath.Join(root, "udc")
	require.NoError(t, os.MkdirAll(filepath.Join(classDir, "fe980000.usb"), 0o755))
	devDir := filepath.Join(root, "dev")
	require.NoError(t, os.MkdirAll(devDir, 0o755))
	f := fixture{
		classDir: classDir,
		state:    filepath.Join(classDir, "fe980000.usb", "state"),
		node:     filepath.Join(devDir, "hidg0"),
	}
	f.setState(t, "not attached")
	return f
}

func (f fixture) setState(t *testing.T, s string) {
	t.Helper()
	require.NoError(t, os.WriteFile(f.state, []byte(s+"\n"), 0o600))
}

func (f fixture) createNode(t *testing.T) {
	t.Helper()
	require.NoError(t, os.WriteFile(f.node, nil, 0o600))
}

func TestFirstUDC(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	udc, err := FirstUDC(f.classDir)
	require.NoError(t, err)
	assert.Equal(t, "fe980000.usb", udc)

	_, err = FirstUDC(t.TempDir())
	require.ErrorIs(t, err, textbridge.ErrHIDNotReady)

	_, err = FirstUDC(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}

func TestWatcher_Probe(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	w, err := New(Config{ClassDir: f.classDir, Node: f.node}, &recorder{})
	require.NoError(t, err)

	assert.Equal(t, textbridge.HostTransportNone, w.Probe())
	f.setState(t, "configured")
	assert.Equal(t, textbridge.HostTransportNone, w.Probe(), "node missing")
	f.createNode(t)
	assert.Equal(t, textbridge.HostTransportUSB, w.Probe())
	f.setState(t, "suspended")
	assert.Equal(t, textbridge.HostTransportNone, w.Probe())
}

func TestWatcher_CheckReportsChangesOnly(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rec := &recorder{}
	w, err := New(Config{UDC: "fe980000.usb", ClassDir: f.classDir}, rec)
	require.NoError(t, err)

	w.Check()
	w.Check()
	f.setState(t, "configured")
	w.Check()
	w.Check()
	f.setState(t, "not attached")
	w.Check()

	assert.Equal(t, []textbridge.HostTransport{
		textbridge.HostTransportNone,
		textbridge.HostTransportUSB,
		textbridge.HostTransportNone,
	}, rec.Seen())
}

func TestWatcher_RunSeesNodeAndState(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.setState(t, "configured")
	rec := &recorder{}
	w, err := New(Config{ClassDir: f.classDir, Node: f.node, PollInterval: 10 * time.Millisecond}, rec)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool { return len(rec.Seen()) == 1 }, 2*time.Second, 5*time.Millisecond)
	f.createNode(t)
	require.Eventually(t, func() bool { return len(rec.Seen()) == 2 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, os.Remove(f.node))
	require.Eventually(t, func() bool { return len(rec.Seen()) == 3 }, 2*time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, []textbridge.HostTransport{
		textbridge.HostTransportNone,
		textbridge.HostTransportUSB,
		textbridge.HostTransportNone,
	}, rec.Seen())
}

func TestWatcher_DrivesBridge(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	link := textbridge.NewMockLink()
	b, err := textbridge.New(hid.NewKeyboard(io.Discard), textbridge.WithLink(link))
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	w, err := New(Config{ClassDir: f.classDir}, b)
	require.NoError(t, err)

	f.setState(t, "configured")
	w.Check()
	require.NoError(t, b.BeginDiscoverability())
	assert.True(t, link.Advertising())

	f.setState(t, "not attached")
	w.Check()
	assert.False(t, b.Advertising())
	assert.False(t, link.Advertising())
}
