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

// KeyVerdict is the decision for one local key event.
type KeyVerdict int

const (
	// KeyPass lets the local key event through.
	KeyPass KeyVerdict = iota
	// KeySuppress drops the local key event.
	KeySuppress
)

func (v KeyVerdict) String() string {
	if v == KeySuppress {
		return "suppress"
	}
	return "pass"
}

// FilterKeyEvent decides whether a physical key event may reach the host.
// Local typing is suppressed while a transmission or injection is active so
// it cannot interleave with injected keys.
func (b *Bridge) FilterKeyEvent() KeyVerdict {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.session.Active() {
		return KeySuppress
	}
	return KeyPass
}

// OnHostTransportChanged reacts to the keyboard's output path changing.
// Leaving USB resets any session, stops advertising and drops the peer.
func (b *Bridge) OnHostTransportChanged(t HostTransport) {
	b.mu.Lock()
	prev := b.host
	b.host = t
	if t == HostTransportUSB {
		b.mu.Unlock()
		if prev != t {
			Debugf("host transport is %s", t)
		}
		return
	}

	Debugf("host transport switched to %s, shutting down session", t)
	b.watchdog.Disarm()
	if b.session.Active() {
		b.cleanupLocked()
	}
	link := b.link
	connected := b.connected
	b.advertising = false
	b.mu.Unlock()

	if link != nil {
		if err := link.StopAdvertising(); err != nil {
			Debugf("stop advertising: %v", err)
		}
		if connected {
			if err := link.Disconnect(); err != nil {
				Debugf("disconnect peer: %v", err)
			}
		}
	}
	b.reportState()
}

// OnConnected records that a peer connected.
func (b *Bridge) OnConnected() {
	b.mu.Lock()
	b.connected = true
	b.advertising = false
	b.mu.Unlock()
	Debugf("peer connected")
}

// OnDisconnected resets any session and forgets the peer.
func (b *Bridge) OnDisconnected() {
	b.mu.Lock()
	b.watchdog.Disarm()
	if b.session.Active() {
		Debugf("peer disconnected mid-transmission (%s)", b.session)
		b.cleanupLocked()
	}
	b.connected = false
	b.notifyEnabled = false
	b.mu.Unlock()

	Debugf("peer disconnected")
	b.reportState()
}

// OnNotificationsEnabled records whether the peer subscribed to responses.
func (b *Bridge) OnNotificationsEnabled(enabled bool) {
	b.mu.Lock()
	b.notifyEnabled = enabled
	b.mu.Unlock()
	Debugf("peer notifications enabled=%v", enabled)
}

// Connected reports whether a peer is connected.
func (b *Bridge) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected
}

// BeginDiscoverability starts advertising so a sender can connect. It does
// nothing while a peer is connected or advertising is already on.
func (b *Bridge) BeginDiscoverability() error {
	b.mu.Lock()
	link := b.link
	switch {
	case link == nil:
		b.mu.Unlock()
		return ErrLinkNotReady
	case b.connected:
		b.mu.Unlock()
		Debugf("already connected, not advertising")
		return nil
	case b.advertising:
		b.mu.Unlock()
		return nil
	}
	b.mu.Unlock()

	if err := link.StartAdvertising(); err != nil {
		return NewTransportError("StartAdvertising", string(link.Type()), err, ErrorTypeTransient)
	}

	b.mu.Lock()
	b.advertising = !b.connected
	b.mu.Unlock()
	Debugf("advertising on %s link", link.Type())
	return nil
}

// Advertising reports whether the bridge believes it is discoverable.
func (b *Bridge) Advertising() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.advertising
}
