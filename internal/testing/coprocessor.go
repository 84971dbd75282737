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

package testing

import (
	"bytes"
	"errors"
	"io"
	"slices"
	"time"

	"github.com/ZaparooProject/go-textbridge/internal/syncutil"
)

// Co-processor link framing, duplicated here so the simulator checks the
// host's encoder independently.
const (
	linkStartCode1 = 0x00
	linkStartCode2 = 0xFF
	linkPostamble  = 0x00

	evtWrite        = 0x10
	evtConnected    = 0x11
	evtDisconnected = 0x12
	evtNotify       = 0x13

	cmdNotify     = 0x20
	cmdAdvStart   = 0x21
	cmdAdvStop    = 0x22
	cmdDisconnect = 0x23

	// reasonLocalHost is the HCI "connection terminated by local host" code.
	reasonLocalHost = 0x16
	// reasonRemoteUser is the HCI "remote user terminated connection" code.
	reasonRemoteUser = 0x13
)

// CoprocessorState is what the simulated radio is doing.
type CoprocessorState struct {
	PeerAddress   string
	AdvertisedAs  string
	Advertising   bool
	Connected     bool
	Notifications bool
}

// VirtualCoprocessor simulates a BLE co-processor at the wire level. It
// implements io.ReadWriter from the host's point of view: the host writes
// commands and reads events. Test code plays the remote peer with Connect,
// Subscribe, PeerWrite and Disconnect.
type VirtualCoprocessor struct {
	notifyCh            chan []byte
	notifications       [][]byte
	rxBuffer            bytes.Buffer
	txBuffer            bytes.Buffer
	state               CoprocessorState
	mu                  syncutil.Mutex
	badFrames           int
	closed              bool
	injectChecksumError bool
}

// NewVirtualCoprocessor creates an idle co-processor with no peer.
func NewVirtualCoprocessor() *VirtualCoprocessor {
	return &VirtualCoprocessor{notifyCh: make(chan []byte, 256)}
}

// Write receives host commands.
func (v *VirtualCoprocessor) Write(data []byte) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return 0, io.ErrClosedPipe
	}
	v.rxBuffer.Write(data)
	v.processReceivedData()
	return len(data), nil
}

// Read returns pending events, or 0 bytes when there are none, like a
// serial port with a read timeout.
func (v *VirtualCoprocessor) Read(buf []byte) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.txBuffer.Len() == 0 {
		if v.closed {
			return 0, io.EOF
		}
		return 0, nil
	}
	n, _ := v.txBuffer.Read(buf)
	return n, nil
}

// Close makes further reads return io.EOF once drained.
func (v *VirtualCoprocessor) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.closed = true
	return nil
}

// Connect simulates a peer connecting.
func (v *VirtualCoprocessor) Connect(addr string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.state.Connected = true
	v.state.Advertising = false
	v.state.PeerAddress = addr
	v.sendEvent(evtConnected, []byte(addr))
}

// Subscribe simulates the peer writing the notify descriptor.
func (v *VirtualCoprocessor) Subscribe(enabled bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.state.Notifications = enabled
	flag := byte(0)
	if enabled {
		flag = 1
	}
	v.sendEvent(evtNotify, []byte{flag})
}

// PeerWrite simulates the peer writing one protocol frame.
func (v *VirtualCoprocessor) PeerWrite(frame []byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.sendEvent(evtWrite, frame)
}

// Disconnect simulates the peer going away.
func (v *VirtualCoprocessor) Disconnect() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.dropPeer(reasonRemoteUser)
}

// InjectNoise puts raw bytes on the wire ahead of the next event.
func (v *VirtualCoprocessor) InjectNoise(noise []byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.txBuffer.Write(noise)
}

// InjectChecksumError corrupts the DCS of the next event.
func (v *VirtualCoprocessor) InjectChecksumError() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.injectChecksumError = true
}

// State returns the simulated radio state.
func (v *VirtualCoprocessor) State() CoprocessorState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Notifications returns every frame the host notified, in order.
func (v *VirtualCoprocessor) Notifications() [][]byte {
	v.mu.Lock()
	defer v.mu.Unlock()
	return slices.Clone(v.notifications)
}

// NotifyChan delivers each notified frame as it arrives.
func (v *VirtualCoprocessor) NotifyChan() <-chan []byte {
	return v.notifyCh
}

// BadFrames counts host frames rejected for bad checksums.
func (v *VirtualCoprocessor) BadFrames() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.badFrames
}

func (v *VirtualCoprocessor) dropPeer(reason byte) {
	if !v.state.Connected {
		return
	}
	v.state.Connected = false
	v.state.Notifications = false
	v.state.PeerAddress = ""
	v.sendEvent(evtDisconnected, []byte{reason})
}

func (v *VirtualCoprocessor) processReceivedData() {
	for {
		data := v.rxBuffer.Bytes()
		idx := bytes.Index(data, []byte{linkStartCode1, linkStartCode2})
		if idx < 0 {
			return
		}
		v.rxBuffer.Next(idx)
		data = v.rxBuffer.Bytes()
		if len(data) < 4 {
			return
		}
		length, lcs := data[2], data[3]
		if length == 0 || length+lcs != 0 {
			v.badFrames++
			v.rxBuffer.Next(2)
			continue
		}
		total := 4 + int(length) + 2
		if len(data) < total {
			return
		}
		body := data[4 : 4+int(length)+1]
		sum := byte(0)
		for _, b := range body {
			sum += b
		}
		if sum != 0 {
			v.badFrames++
			v.rxBuffer.Next(2)
			continue
		}
		typ := body[0]
		payload := slices.Clone(body[1 : len(body)-1])
		v.rxBuffer.Next(total)
		v.processCommand(typ, payload)
	}
}

func (v *VirtualCoprocessor) processCommand(typ byte, payload []byte) {
	switch typ {
	case cmdNotify:
		if !v.state.Connected || !v.state.Notifications {
			return
		}
		v.notifications = append(v.notifications, payload)
		select {
		case v.notifyCh <- payload:
		default:
		}
	case cmdAdvStart:
		if !v.state.Connected {
			v.state.Advertising = true
			v.state.AdvertisedAs = string(payload)
		}
	case cmdAdvStop:
		v.state.Advertising = false
	case cmdDisconnect:
		v.dropPeer(reasonLocalHost)
	default:
		v.badFrames++
	}
}

func (v *VirtualCoprocessor) sendEvent(typ byte, payload []byte) {
	length := byte(len(payload) + 1)
	sum := typ
	for _, b := range payload {
		sum += b
	}
	dcs := -sum
	if v.injectChecksumError {
		dcs ^= 0xFF
		v.injectChecksumError = false
	}
	v.txBuffer.Write([]byte{0x00, linkStartCode1, linkStartCode2, length, -length, typ})
	v.txBuffer.Write(payload)
	v.txBuffer.Write([]byte{dcs, linkPostamble})
}

// ErrNoNotification is returned by WaitNotification on timeout.
var ErrNoNotification = errors.New("no notification")

// Pending returns how many event bytes are waiting for the host.
func (v *VirtualCoprocessor) Pending() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.txBuffer.Len()
}

// WaitNotification waits for the next notified frame.
func (v *VirtualCoprocessor) WaitNotification(timeout time.Duration) ([]byte, error) {
	select {
	case frame := <-v.notifyCh:
		return frame, nil
	case <-time.After(timeout):
		return nil, ErrNoNotification
	}
}
