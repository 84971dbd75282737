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

// Package colink drives a BLE co-processor over any byte pipe. The UART,
// SPI and I2C adapters differ only in how they move bytes; framing, event
// dispatch and host commands live here.
package colink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	textbridge "github.com/ZaparooProject/go-textbridge"
	"github.com/ZaparooProject/go-textbridge/internal/frame"
	"github.com/ZaparooProject/go-textbridge/internal/syncutil"
)

const (
	// DefaultName is advertised when no name is configured.
	DefaultName = "TextBridge"

	defaultPollInterval = 2 * time.Millisecond
	readChunk           = 256
	// maxReadErrors consecutive failed reads end Serve so the caller can
	// reopen the port.
	maxReadErrors = 50
)

// Stats counts link-level events.
type Stats struct {
	Messages   int64 // Frames decoded from the co-processor
	Corrupted  int64 // Frames dropped for a bad checksum
	Skipped    int64 // Noise bytes discarded between frames
	Unexpected int64 // Frames of a type the host does not handle
	Writes     int64 // Frames written to the co-processor
}

// Option configures a Conn.
type Option func(*Conn)

// WithPortName sets the device name used in errors and logs.
func WithPortName(name string) Option {
	return func(c *Conn) {
		c.portName = name
	}
}

// WithAdvertisedName sets the name sent with CmdAdvStart.
func WithAdvertisedName(name string) Option {
	return func(c *Conn) {
		if name != "" {
			c.advName = name
		}
	}
}

// WithPollInterval sets how long Serve waits after a read returns nothing.
func WithPollInterval(d time.Duration) Option {
	return func(c *Conn) {
		if d > 0 {
			c.poll = d
		}
	}
}

// Conn implements textbridge.Link on top of a co-processor byte pipe.
type Conn struct {
	port     io.ReadWriteCloser
	portName string
	advName  string
	linkType textbridge.LinkType
	poll     time.Duration

	messages   atomic.Int64
	corrupted  atomic.Int64
	skipped    atomic.Int64
	unexpected atomic.Int64
	writes     atomic.Int64

	writeMu syncutil.Mutex
	closed  atomic.Bool
}

// New wraps port. The caller hands ownership of port to the Conn.
func New(port io.ReadWriteCloser, typ textbridge.LinkType, opts ...Option) *Conn {
	c := &Conn{
		port:     port,
		linkType: typ,
		advName:  DefaultName,
		poll:     defaultPollInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Serve reads co-processor events and delivers them to h until ctx is done,
// the Conn is closed, or the port fails permanently. It returns nil after
// Close.
func (c *Conn) Serve(ctx context.Context, h textbridge.LinkHandler) error {
	var dec frame.Decoder
	buf := make([]byte, readChunk)
	readErrs := 0

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := c.port.Read(buf)
		if n > 0 {
			_, _ = dec.Write(buf[:n])
			c.drain(&dec, h)
		}
		if err != nil {
			if c.closed.Load() {
				return nil
			}
			if textbridge.IsFatal(err) {
				return textbridge.NewTransportError("Read", c.portName, err, textbridge.ErrorTypePermanent)
			}
			readErrs++
			textbridge.Debugf("%s read: %v", c.linkType, err)
			if readErrs >= maxReadErrors {
				return textbridge.NewTransportError("Read", c.portName,
					errors.Join(textbridge.ErrTransportRead, err), textbridge.ErrorTypeTransient)
			}
		} else {
			readErrs = 0
		}
		if n == 0 {
			if err := sleepCtx(ctx, c.poll); err != nil {
				return err
			}
		}
	}
}

func (c *Conn) drain(dec *frame.Decoder, h textbridge.LinkHandler) {
	for {
		msg, ok := dec.Next()
		if !ok {
			break
		}
		c.messages.Add(1)
		if err := frame.Dispatch(msg, h); err != nil {
			c.unexpected.Add(1)
			textbridge.Debugf("%s: %v", c.linkType, err)
		}
	}
	c.corrupted.Store(int64(dec.Corrupted))
	c.skipped.Store(int64(dec.Skipped))
}

// Notify sends one response frame to the peer.
func (c *Conn) Notify(payload []byte) error {
	return c.write("Notify", frame.CmdNotify, payload)
}

// StartAdvertising asks the co-processor to advertise under the configured
// name.
func (c *Conn) StartAdvertising() error {
	return c.write("StartAdvertising", frame.CmdAdvStart, []byte(c.advName))
}

// StopAdvertising asks the co-processor to stop advertising.
func (c *Conn) StopAdvertising() error {
	return c.write("StopAdvertising", frame.CmdAdvStop, nil)
}

// Disconnect asks the co-processor to drop the current peer.
func (c *Conn) Disconnect() error {
	return c.write("Disconnect", frame.CmdDisconnect, nil)
}

// Close closes the port. Serve returns nil once it notices.
func (c *Conn) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.port.Close(); err != nil {
		return fmt.Errorf("close %s: %w", c.portName, err)
	}
	return nil
}

// Type returns the adapter type.
func (c *Conn) Type() textbridge.LinkType {
	return c.linkType
}

// Stats returns link counters.
func (c *Conn) Stats() Stats {
	return Stats{
		Messages:   c.messages.Load(),
		Corrupted:  c.corrupted.Load(),
		Skipped:    c.skipped.Load(),
		Unexpected: c.unexpected.Load(),
		Writes:     c.writes.Load(),
	}
}

func (c *Conn) write(op string, typ byte, payload []byte) error {
	if c.closed.Load() {
		return textbridge.NewTransportClosedError(op, c.portName)
	}

	buf := frame.GetBuffer(frame.MaxFrameLength)
	defer frame.PutBuffer(buf)
	out, err := frame.AppendFrame(buf, typ, payload)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	n, err := c.port.Write(out)
	switch {
	case err != nil && textbridge.IsFatal(err):
		return textbridge.NewTransportError(op, c.portName, err, textbridge.ErrorTypePermanent)
	case err != nil:
		return textbridge.NewTransportError(op, c.portName, errors.Join(textbridge.ErrTransportWrite, err),
			textbridge.ErrorTypeTransient)
	case n != len(out):
		return textbridge.NewTransportError(op, c.portName,
			fmt.Errorf("wrote %d of %d bytes: %w", n, len(out), textbridge.ErrTransportWrite),
			textbridge.ErrorTypeTransient)
	}
	c.writes.Add(1)
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var _ textbridge.Link = (*Conn)(nil)
