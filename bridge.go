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

// Package textbridge receives keystroke batches from one remote sender and
// types them on a USB HID keyboard, acknowledging each batch so the sender
// never outruns the injector.
package textbridge

import (
	"sync"
	"time"

	"github.com/ZaparooProject/go-textbridge/internal/syncutil"
)

// Bridge is the protocol engine. Transport adapters feed it through the
// LinkHandler methods; it drives a HIDSink and replies through a Link.
// All methods are safe for concurrent use.
//
// A DONE received while a batch is still being typed is answered after
// that batch: the peer sees ACK(seq) first, then DONE. The transmission
// stays open until then.
type Bridge struct {
	hid      HIDSink
	link     Link
	listener func(blocking bool)
	sleep    func(time.Duration)
	watchdog *Watchdog
	// injectorIdle is closed when the running injector goroutine exits.
	injectorIdle chan struct{}
	counters     counters
	buf          KeycodeBuffer
	timing       Timing
	session      Session
	// injectGen is bumped by Cleanup; a running injector stops when the
	// generation it was started with is no longer current.
	injectGen      uint64
	sessionTimeout time.Duration
	mu             syncutil.Mutex
	listenMu       sync.Mutex
	host           HostTransport
	doneSeq        byte
	doneQueued     bool
	injectorAlive  bool
	connected      bool
	notifyEnabled  bool
	advertising    bool
	notifyTimeout  bool
	reported       bool
}

// New creates a bridge that types into sink.
func New(sink HIDSink, opts ...Option) (*Bridge, error) {
	if sink == nil {
		return nil, ErrHIDNotReady
	}
	b := &Bridge{
		hid:            sink,
		timing:         DefaultTiming(),
		sessionTimeout: DefaultSessionTimeout,
		sleep:          time.Sleep,
		session:        newSession(),
		host:           HostTransportUSB,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.watchdog = NewWatchdog(b.sessionTimeout, b.onWatchdog)
	return b, nil
}

// SetLink attaches a link after construction. Adapters that need the
// bridge as their LinkHandler are created after it.
func (b *Bridge) SetLink(link Link) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.link = link
}

// Session returns a snapshot of the session state.
func (b *Bridge) Session() Session {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.session
}

// Timing returns the injection timing in effect.
func (b *Bridge) Timing() Timing {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.timing
}

// SetTiming replaces the injection timing. It takes effect from the next
// key pair.
func (b *Bridge) SetTiming(t Timing) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.timing = t
}

// SetSessionTimeout changes the idle bound of the session watchdog. It
// applies from the next time the watchdog is armed.
func (b *Bridge) SetSessionTimeout(d time.Duration) {
	if d <= 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sessionTimeout = d
	b.watchdog.SetTimeout(d)
}

// HandleFrame processes one inbound frame and returns the number of bytes
// consumed, which is always len(data). Malformed frames are dropped without
// a reply.
func (b *Bridge) HandleFrame(data []byte) int {
	b.counters.frames.Add(1)

	cmd, err := ParseCommand(data)
	if err != nil {
		b.counters.dropped.Add(1)
		Debugf("dropping frame % X: %v", data, err)
		return len(data)
	}

	b.mu.Lock()
	var out [][]byte
	switch cmd.Op {
	case CmdStart:
		out = b.startLocked(cmd)
	case CmdKeycode:
		out = b.keycodeLocked(cmd)
	case CmdDone:
		out = b.doneLocked(cmd)
	case CmdAbort:
		out = b.abortLocked(cmd)
	case CmdSetDelay:
		b.timing = cmd.Timing
		Debugf("SET_DELAY %+v", cmd.Timing)
		out = [][]byte{EncodeResponse(RespAck, 0)}
	}
	b.mu.Unlock()

	b.send(out)
	b.reportState()
	return len(data)
}

func (b *Bridge) startLocked(cmd Command) [][]byte {
	if b.session.Injecting {
		b.counters.nacks.Add(1)
		Debugf("START seq=%d while injecting seq=%d, NACK", cmd.Seq, b.session.CurrentSeq)
		return [][]byte{EncodeResponse(RespNack, cmd.Seq)}
	}
	b.session.open(cmd.Total)
	b.doneQueued = false
	b.watchdog.Arm()
	Debugf("START seq=%d total=%d", cmd.Seq, cmd.Total)
	return [][]byte{EncodeResponse(RespReady, cmd.Seq)}
}

func (b *Bridge) keycodeLocked(cmd Command) [][]byte {
	switch {
	case !b.session.Transmitting:
		b.counters.errors.Add(1)
		Debugf("KEYCODE seq=%d without START", cmd.Seq)
		return [][]byte{EncodeError(cmd.Seq, ErrCodeSeq)}
	case cmd.Seq == b.session.LastAckedSeq:
		b.counters.duplicates.Add(1)
		Debugf("KEYCODE seq=%d duplicate, re-ACK", cmd.Seq)
		return [][]byte{EncodeResponse(RespAck, cmd.Seq)}
	case b.session.Injecting || b.injectorAlive:
		b.counters.nacks.Add(1)
		Debugf("KEYCODE seq=%d busy, NACK", cmd.Seq)
		return [][]byte{EncodeResponse(RespNack, cmd.Seq)}
	}

	if err := b.buf.Load(int(cmd.Count), cmd.Pairs); err != nil {
		b.counters.errors.Add(1)
		Debugf("KEYCODE seq=%d rejected: %v", cmd.Seq, err)
		return [][]byte{EncodeError(cmd.Seq, ErrCodeOverflow)}
	}

	b.session.CurrentSeq = cmd.Seq
	b.watchdog.Arm()
	b.session.Injecting = true
	b.counters.batches.Add(1)
	Debugf("KEYCODE seq=%d count=%d", cmd.Seq, cmd.Count)

	b.injectGen++
	b.injectorAlive = true
	b.injectorIdle = make(chan struct{})
	go b.runInjection(b.injectGen, b.injectorIdle)
	return nil
}

func (b *Bridge) doneLocked(cmd Command) [][]byte {
	if b.session.Injecting {
		// Closed by the injector after it acknowledges the batch.
		b.doneQueued = true
		b.doneSeq = cmd.Seq
		Debugf("DONE seq=%d deferred until seq=%d is typed", cmd.Seq, b.session.CurrentSeq)
		return nil
	}
	b.session.Transmitting = false
	b.watchdog.Disarm()
	Debugf("DONE seq=%d", cmd.Seq)
	return [][]byte{EncodeResponse(RespDone, cmd.Seq)}
}

func (b *Bridge) abortLocked(cmd Command) [][]byte {
	b.counters.aborts.Add(1)
	Debugf("ABORT seq=%d (%s)", cmd.Seq, b.session.State())
	b.watchdog.Disarm()
	b.cleanupLocked()
	return [][]byte{EncodeResponse(RespAck, cmd.Seq)}
}

// cleanupLocked returns the bridge to idle with nothing held on the HID
// sink. It is safe to call in any state and never replies to the peer.
func (b *Bridge) cleanupLocked() {
	if b.session.Active() {
		b.counters.cleanups.Add(1)
	}
	b.session.Transmitting = false
	b.session.Injecting = false
	b.doneQueued = false
	b.injectGen++
	b.buf.Reset()

	if mods := b.session.ActiveModifiers; mods != 0 {
		b.hidErr("unregister modifiers", b.hid.UnregisterModifiers(mods))
		b.session.ActiveModifiers = 0
	}
	b.hidErr("clear", b.hid.ClearKeys())
	b.hidErr("flush", b.hid.Flush())
}

func (b *Bridge) onWatchdog(gen uint64) {
	b.mu.Lock()
	if !b.watchdog.Current(gen) {
		b.mu.Unlock()
		return
	}
	b.watchdog.Disarm()
	if !b.session.Transmitting {
		b.mu.Unlock()
		return
	}

	b.counters.timeouts.Add(1)
	last := b.session.LastAckedSeq
	Debugf("session idle for %v, resetting (%s)", b.watchdog.Timeout(), b.session)
	b.cleanupLocked()
	var out [][]byte
	if b.notifyTimeout {
		out = [][]byte{EncodeError(last, ErrCodeTimeout)}
	}
	b.mu.Unlock()

	b.send(out)
	b.reportState()
}

// SendNotification sends frame to the peer if one is connected with
// notifications enabled, and reports whether it was sent.
func (b *Bridge) SendNotification(frame []byte) bool {
	b.mu.Lock()
	link := b.link
	ready := link != nil && b.connected && b.notifyEnabled
	b.mu.Unlock()

	if !ready {
		b.counters.notifySkipped.Add(1)
		Debugf("not sending % X: no peer listening", frame)
		return false
	}
	if err := link.Notify(frame); err != nil {
		b.counters.notifyFailures.Add(1)
		Debugf("notify % X failed: %v", frame, err)
		return false
	}
	b.counters.notifications.Add(1)
	return true
}

func (b *Bridge) send(frames [][]byte) {
	for _, f := range frames {
		b.SendNotification(f)
	}
}

func (b *Bridge) hidErr(op string, err error) {
	if err != nil {
		b.counters.hidErrors.Add(1)
		Debugf("hid %s: %v", op, err)
	}
}

// reportState tells the state listener when local key blocking changes.
func (b *Bridge) reportState() {
	if b.listener == nil {
		return
	}
	b.listenMu.Lock()
	defer b.listenMu.Unlock()

	blocking := b.FilterKeyEvent() == KeySuppress
	if blocking == b.reported {
		return
	}
	b.reported = blocking
	b.listener(blocking)
}

// Close resets any active session and waits for the injector to stop.
func (b *Bridge) Close() error {
	b.mu.Lock()
	b.watchdog.Disarm()
	b.cleanupLocked()
	idle := b.injectorIdle
	alive := b.injectorAlive
	b.mu.Unlock()

	if alive {
		<-idle
	}
	b.reportState()
	return nil
}
