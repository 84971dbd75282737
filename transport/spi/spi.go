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

// Package spi connects to a BLE co-processor on an SPI bus.
//
// The co-processor is a slave that cannot push data, so the host polls a
// status byte and clocks pending event bytes out when it is set. Once a
// frame is drained the co-processor clocks out 0x00, which the frame
// decoder skips as preamble.
package spi

import (
	"fmt"
	"io"

	textbridge "github.com/ZaparooProject/go-textbridge"
	"github.com/ZaparooProject/go-textbridge/internal/colink"
	"github.com/ZaparooProject/go-textbridge/internal/frame"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

const (
	// SPI opcodes understood by the co-processor.
	spiStatRead  = 0x02
	spiDataWrite = 0x01
	spiDataRead  = 0x03
	spiReady     = 0x01

	defaultFreq = 1 * physic.MegaHertz
	mode        = spi.Mode0

	// readChunk bounds one data read transaction.
	readChunk = 64
)

// Config selects the SPI port and advertised name.
type Config struct {
	PortName       string
	AdvertisedName string
	Frequency      physic.Frequency
}

// Link is a co-processor link on an SPI port.
type Link struct {
	*colink.Conn
}

// Open initialises the host drivers and connects to the SPI port.
func Open(cfg Config) (*Link, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}

	port, err := spireg.Open(cfg.PortName)
	if err != nil {
		return nil, fmt.Errorf("failed to open SPI port %s: %w", cfg.PortName, err)
	}
	freq := cfg.Frequency
	if freq == 0 {
		freq = defaultFreq
	}
	conn, err := port.Connect(freq, mode, 8)
	if err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("failed to connect SPI: %w", err)
	}

	textbridge.Debugf("SPI %s connected at %s", cfg.PortName, freq)
	return newLink(conn, port, cfg), nil
}

func newLink(conn spi.Conn, closer io.Closer, cfg Config) *Link {
	p := &busPort{conn: conn, closer: closer, name: cfg.PortName}
	return &Link{Conn: colink.New(p, textbridge.LinkSPI,
		colink.WithPortName(cfg.PortName),
		colink.WithAdvertisedName(cfg.AdvertisedName),
	)}
}

// busPort turns status-polled SPI transactions into a byte stream.
type busPort struct {
	conn   spi.Conn
	closer io.Closer
	name   string
}

// Read returns 0 bytes while the co-processor has nothing pending.
func (p *busPort) Read(b []byte) (int, error) {
	status := [2]byte{}
	if err := p.conn.Tx([]byte{spiStatRead, 0}, status[:]); err != nil {
		return 0, fmt.Errorf("SPI status read: %w", err)
	}
	if status[1] != spiReady {
		return 0, nil
	}

	n := min(len(b), readChunk)
	w := frame.GetBuffer(n + 1)
	defer frame.PutBuffer(w)
	r := frame.GetBuffer(n + 1)
	defer frame.PutBuffer(r)
	w = append(w, spiDataRead)
	w = w[:n+1]
	clear(w[1:])
	r = r[:n+1]

	if err := p.conn.Tx(w, r); err != nil {
		return 0, fmt.Errorf("SPI data read: %w", err)
	}
	return copy(b, r[1:]), nil
}

func (p *busPort) Write(b []byte) (int, error) {
	w := frame.GetBuffer(len(b) + 1)
	defer frame.PutBuffer(w)
	w = append(w, spiDataWrite)
	w = append(w, b...)
	if err := p.conn.Tx(w, nil); err != nil {
		return 0, fmt.Errorf("SPI data write: %w", err)
	}
	return len(b), nil
}

func (p *busPort) Close() error {
	if p.closer == nil {
		return nil
	}
	if err := p.closer.Close(); err != nil {
		return fmt.Errorf("SPI %s close: %w", p.name, err)
	}
	return nil
}
