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

package client

import (
	"context"
	"fmt"

	textbridge "github.com/ZaparooProject/go-textbridge"
	"github.com/ZaparooProject/go-textbridge/internal/syncutil"
)

// LinkLoopback is the link type of a Loopback.
const LinkLoopback textbridge.LinkType = "loopback"

// loopbackDepth bounds buffered responses.
const loopbackDepth = 64

// Loopback connects a Sender to a bridge in the same process. It is both
// the bridge's Link and the sender's Conn.
type Loopback struct {
	bridge textbridge.LinkHandler
	resp   chan []byte
	done   chan struct{}
	mu     syncutil.Mutex
	closed bool
}

// NewLoopback creates an unattached loopback.
func NewLoopback() *Loopback {
	return &Loopback{
		resp: make(chan []byte, loopbackDepth),
		done: make(chan struct{}),
	}
}

// Attach connects the loopback to h as a peer with notifications enabled.
func (l *Loopback) Attach(h textbridge.LinkHandler) {
	l.mu.Lock()
	l.bridge = h
	l.mu.Unlock()
	h.OnConnected()
	h.OnNotificationsEnabled(true)
}

// Send hands frame to the bridge.
func (l *Loopback) Send(_ context.Context, frame []byte) error {
	l.mu.Lock()
	h, closed := l.bridge, l.closed
	l.mu.Unlock()
	if closed {
		return textbridge.NewTransportClosedError("Send", string(LinkLoopback))
	}
	if h == nil {
		return textbridge.ErrNotConnected
	}
	h.HandleFrame(frame)
	return nil
}

// Recv returns the next notification from the bridge.
func (l *Loopback) Recv(ctx context.Context) ([]byte, error) {
	select {
	case r := <-l.resp:
		return r, nil
	case <-l.done:
		return nil, textbridge.NewTransportClosedError("Recv", string(LinkLoopback))
	case <-ctx.Done():
		return nil, fmt.Errorf("loopback receive: %w", ctx.Err())
	}
}

// Notify queues frame for Recv.
func (l *Loopback) Notify(frame []byte) error {
	select {
	case l.resp <- append([]byte(nil), frame...):
		return nil
	default:
		return textbridge.NewTransportWriteError("Notify", string(LinkLoopback))
	}
}

// StartAdvertising does nothing; the loopback peer is always present.
func (*Loopback) StartAdvertising() error { return nil }

// StopAdvertising does nothing.
func (*Loopback) StopAdvertising() error { return nil }

// Disconnect detaches the peer.
func (l *Loopback) Disconnect() error {
	l.mu.Lock()
	h := l.bridge
	l.bridge = nil
	l.mu.Unlock()
	if h != nil {
		h.OnDisconnected()
	}
	return nil
}

// Close detaches and wakes pending receivers.
func (l *Loopback) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.mu.Unlock()
	close(l.done)
	return nil
}

// Type returns LinkLoopback.
func (*Loopback) Type() textbridge.LinkType {
	return LinkLoopback
}

var (
	_ textbridge.Link = (*Loopback)(nil)
	_ Conn            = (*Loopback)(nil)
)
