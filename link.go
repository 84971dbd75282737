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
	"sync"
)

// Link is the outbound side of a wireless transport adapter.
type Link interface {
	// Notify sends one frame on the notify characteristic.
	Notify(frame []byte) error
	// StartAdvertising makes the bridge discoverable.
	StartAdvertising() error
	// StopAdvertising stops accepting new connections.
	StopAdvertising() error
	// Disconnect drops the current peer, if any.
	Disconnect() error
	// Close releases the adapter.
	Close() error
	// Type returns the adapter type.
	Type() LinkType
}

// LinkHandler is the inbound side of a transport adapter. *Bridge
// implements it; adapters call it from their receive goroutine.
type LinkHandler interface {
	HandleFrame(data []byte) int
	OnConnected()
	OnDisconnected()
	OnNotificationsEnabled(enabled bool)
}

// LinkType represents the type of transport adapter.
type LinkType string

const (
	// LinkUART is a BLE co-processor on a serial port.
	LinkUART LinkType = "uart"
	// LinkSPI is a BLE co-processor on an SPI bus.
	LinkSPI LinkType = "spi"
	// LinkI2C is a BLE co-processor on an I2C bus.
	LinkI2C LinkType = "i2c"
	// LinkBlueZ is the local BlueZ GATT server.
	LinkBlueZ LinkType = "bluez"
	// LinkMock represents a mock link for testing
	LinkMock LinkType = "mock"
)

// MockLink records everything the bridge sends. It is safe for concurrent use.
type MockLink struct {
	NotifyErr    error
	AdvertiseErr error
	sent         [][]byte
	mu           sync.Mutex
	advertising  bool
	disconnects  int
	closed       bool
	notifyCh     chan []byte
}

// NewMockLink creates a new mock link.
func NewMockLink() *MockLink {
	return &MockLink{notifyCh: make(chan []byte, 256)}
}

// Notify records the frame.
func (m *MockLink) Notify(frame []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.NotifyErr != nil {
		return m.NotifyErr
	}
	if m.closed {
		return ErrTransportClosed
	}
	cp := append([]byte(nil), frame...)
	m.sent = append(m.sent, cp)
	select {
	case m.notifyCh <- cp:
	default:
	}
	return nil
}

// StartAdvertising marks the link as advertising.
func (m *MockLink) StartAdvertising() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AdvertiseErr != nil {
		return m.AdvertiseErr
	}
	m.advertising = true
	return nil
}

// StopAdvertising clears the advertising flag.
func (m *MockLink) StopAdvertising() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.advertising = false
	return nil
}

// Disconnect counts forced disconnects.
func (m *MockLink) Disconnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disconnects++
	return nil
}

// Close marks the link closed.
func (m *MockLink) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Type returns LinkMock.
func (*MockLink) Type() LinkType {
	return LinkMock
}

// Sent returns a copy of every frame notified so far.
func (m *MockLink) Sent() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.sent))
	copy(out, m.sent)
	return out
}

// Notifications delivers each notified frame as it is sent.
func (m *MockLink) Notifications() <-chan []byte {
	return m.notifyCh
}

// Advertising reports whether StartAdvertising was the last advertising call.
func (m *MockLink) Advertising() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.advertising
}

// Disconnects returns how many times Disconnect was called.
func (m *MockLink) Disconnects() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.disconnects
}
