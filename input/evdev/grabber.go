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

package evdev

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"

	textbridge "github.com/ZaparooProject/go-textbridge"
	"github.com/ZaparooProject/go-textbridge/internal/syncutil"
)

// eventsPerRead bounds one read from the device node.
const eventsPerRead = 64

// Filter decides whether a local key event may reach the host.
// *textbridge.Bridge implements it.
type Filter interface {
	FilterKeyEvent() textbridge.KeyVerdict
}

// Device is an input device node that can be grabbed exclusively.
type Device interface {
	io.ReadCloser
	Grab(exclusive bool) error
}

// Stats counts key events seen by a Grabber.
type Stats struct {
	Passed     uint64
	Suppressed uint64
	Grabs      uint64
}

// Grabber reads key events from a Device, filters them through the bridge,
// and holds an exclusive grab while the bridge blocks local typing.
type Grabber struct {
	dev        Device
	filter     Filter
	forward    func(Event)
	name       string
	mu         syncutil.Mutex
	grabbed    bool
	passed     atomic.Uint64
	suppressed atomic.Uint64
	grabs      atomic.Uint64
}

// Option configures a Grabber.
type Option func(*Grabber)

// WithForward sets a callback for key events the filter lets through.
func WithForward(fn func(Event)) Option {
	return func(g *Grabber) {
		g.forward = fn
	}
}

// New creates a Grabber over dev.
func New(dev Device, filter Filter, name string, opts ...Option) *Grabber {
	g := &Grabber{dev: dev, filter: filter, name: name}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Open opens the input device at path and creates a Grabber for it.
func Open(path string, filter Filter, opts ...Option) (*Grabber, error) {
	dev, err := openDevice(path)
	if err != nil {
		return nil, err
	}
	return New(dev, filter, path, opts...), nil
}

// SetBlocking grabs or releases the device. It has the signature of the
// bridge's state listener.
func (g *Grabber) SetBlocking(blocking bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.grabbed == blocking {
		return
	}
	if err := g.dev.Grab(blocking); err != nil {
		textbridge.Debugf("evdev %s: grab=%v: %v", g.name, blocking, err)
		return
	}
	g.grabbed = blocking
	if blocking {
		g.grabs.Add(1)
	}
	textbridge.Debugf("evdev %s: grab=%v", g.name, blocking)
}

// Grabbed reports whether the device is currently grabbed.
func (g *Grabber) Grabbed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.grabbed
}

// Run reads events until ctx is done or the device goes away. It returns
// nil when stopped by ctx or Close.
func (g *Grabber) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		_ = g.dev.Close()
	})
	defer stop()

	buf := make([]byte, EventSize*eventsPerRead)
	var pending []byte
	for {
		n, err := g.dev.Read(buf)
		if n > 0 {
			pending = append(pending, buf[:n]...)
			pending = g.consume(pending)
		}
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, os.ErrClosed) || errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read %s: %w", g.name, err)
		}
	}
}

func (g *Grabber) consume(b []byte) []byte {
	for len(b) >= EventSize {
		ev, err := ParseEvent(b)
		b = b[EventSize:]
		if err != nil || !ev.IsKey() {
			continue
		}
		if g.filter.FilterKeyEvent() == textbridge.KeySuppress {
			g.suppressed.Add(1)
			continue
		}
		g.passed.Add(1)
		if g.forward != nil {
			g.forward(ev)
		}
	}
	return append(b[:0:0], b...)
}

// Stats returns the event counters.
func (g *Grabber) Stats() Stats {
	return Stats{
		Passed:     g.passed.Load(),
		Suppressed: g.suppressed.Load(),
		Grabs:      g.grabs.Load(),
	}
}

// Close releases the grab and closes the device.
func (g *Grabber) Close() error {
	g.SetBlocking(false)
	if err := g.dev.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		return fmt.Errorf("close %s: %w", g.name, err)
	}
	return nil
}
