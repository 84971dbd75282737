// go-pn532
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-pn532.
//
// go-pn532 is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-pn532 is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-pn532; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

// Package uart connects to a BLE co-processor on a serial port.
package uart

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	textbridge "github.com/ZaparooProject/go-textbridge"
	"github.com/ZaparooProject/go-textbridge/internal/colink"
	"go.bug.st/serial"
)

// DefaultBaudRate is the co-processor's factory UART speed.
const DefaultBaudRate = 115200

// Config selects the serial port and advertised name.
type Config struct {
	PortName       string
	AdvertisedName string
	BaudRate       int
}

// Link is a co-processor link on a serial port.
type Link struct {
	*colink.Conn
}

// opener is replaced in tests.
var opener = func(name string, mode *serial.Mode) (serial.Port, error) {
	return serial.Open(name, mode)
}

// readTimeout returns the serial read timeout. It bounds how long the
// serve loop blocks between polls; Windows drivers need a longer one.
func readTimeout() time.Duration {
	if runtime.GOOS == "windows" {
		return 100 * time.Millisecond
	}
	return 50 * time.Millisecond
}

// Open opens the serial port, retrying while the adapter may still be
// enumerating.
func Open(ctx context.Context, cfg Config) (*Link, error) {
	if cfg.BaudRate == 0 {
		cfg.BaudRate = DefaultBaudRate
	}
	mode := &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	var port serial.Port
	err := textbridge.RetryWithConfig(ctx, textbridge.LinkOpenRetryConfig(), func() error {
		p, err := opener(cfg.PortName, mode)
		if err != nil {
			return textbridge.NewTransportError("Open", cfg.PortName, err, textbridge.ErrorTypeTransient)
		}
		port = p
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open UART port %s: %w", cfg.PortName, err)
	}

	if err := port.SetReadTimeout(readTimeout()); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("failed to set UART read timeout: %w", err)
	}
	// Stale bytes from before we opened the port are not framed events.
	if err := port.ResetInputBuffer(); err != nil {
		textbridge.Debugf("UART %s reset input: %v", cfg.PortName, err)
	}

	textbridge.Debugf("UART %s open at %d baud", cfg.PortName, cfg.BaudRate)
	return newLink(port, cfg), nil
}

func newLink(port serial.Port, cfg Config) *Link {
	return &Link{Conn: colink.New(&drainingPort{Port: port, name: cfg.PortName}, textbridge.LinkUART,
		colink.WithPortName(cfg.PortName),
		colink.WithAdvertisedName(cfg.AdvertisedName),
		// The read timeout already paces the loop.
		colink.WithPollInterval(time.Millisecond),
	)}
}

// drainingPort waits for each write to leave the UART so a notification is
// on the wire before the bridge moves on.
type drainingPort struct {
	serial.Port
	name string
}

func (p *drainingPort) Write(b []byte) (int, error) {
	n, err := p.Port.Write(b)
	if err != nil {
		return n, fmt.Errorf("UART write: %w", err)
	}
	return n, p.drainWithRetry()
}

// drainWithRetry retries a drain interrupted by a signal.
func (p *drainingPort) drainWithRetry() error {
	const maxRetries = 3
	baseDelay := 2 * time.Millisecond

	for attempt := range maxRetries {
		err := p.Drain()
		if err == nil {
			return nil
		}
		if !isInterruptedSystemCall(err) || attempt == maxRetries-1 {
			return fmt.Errorf("UART %s drain failed: %w", p.name, err)
		}
		time.Sleep(baseDelay << attempt)
	}
	return nil
}

func isInterruptedSystemCall(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "interrupted system call") || strings.Contains(msg, "eintr")
}
