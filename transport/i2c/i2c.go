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

// Package i2c connects to a BLE co-processor on an I2C bus.
//
// Every read transaction starts with a status byte; the data that follows
// is only meaningful when the status says ready.
package i2c

import (
	"fmt"
	"strconv"
	"strings"

	textbridge "github.com/ZaparooProject/go-textbridge"
	"github.com/ZaparooProject/go-textbridge/internal/colink"
	"github.com/ZaparooProject/go-textbridge/internal/frame"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

const (
	// DefaultAddress is the co-processor's 7-bit address.
	DefaultAddress = 0x24

	statusReady  = 0x01
	maxClockFreq = 400 * physic.KiloHertz
	// readChunk bounds one read transaction, excluding the status byte.
	readChunk = 32
)

// Config selects the bus, device address and advertised name.
type Config struct {
	// BusName is a periph bus name such as "/dev/i2c-1" or "1". An
	// address suffix ("/dev/i2c-1:0x24") overrides Address.
	BusName        string
	AdvertisedName string
	Address        uint16
}

// Link is a co-processor link on an I2C bus.
type Link struct {
	*colink.Conn
}

// parseBusPath splits "/dev/i2c-1:0x24" into bus and address.
func parseBusPath(path string, fallback uint16) (bus string, addr uint16, err error) {
	bus, suffix, found := strings.Cut(path, ":")
	if !found {
		return bus, fallback, nil
	}
	v, err := strconv.ParseUint(suffix, 0, 7)
	if err != nil {
		return "", 0, fmt.Errorf("invalid I2C address %q: %w", suffix, err)
	}
	return bus, uint16(v), nil
}

// Open initialises the host drivers and opens the bus.
func Open(cfg Config) (*Link, error) {
	addr := cfg.Address
	if addr == 0 {
		addr = DefaultAddress
	}
	busName, addr, err := parseBusPath(cfg.BusName, addr)
	if err != nil {
		return nil, err
	}

	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("failed to open I2C bus %s: %w", busName, err)
	}
	if err := bus.SetSpeed(maxClockFreq); err != nil {
		textbridge.Debugf("I2C %s: keeping default speed: %v", busName, err)
	}

	textbridge.Debugf("I2C %s device 0x%02X", busName, addr)
	return newLink(bus, addr, cfg), nil
}

func newLink(bus i2c.BusCloser, addr uint16, cfg Config) *Link {
	p := &busPort{dev: &i2c.Dev{Addr: addr, Bus: bus}, bus: bus, name: cfg.BusName}
	return &Link{Conn: colink.New(p, textbridge.LinkI2C,
		colink.WithPortName(cfg.BusName),
		colink.WithAdvertisedName(cfg.AdvertisedName),
	)}
}

// busPort turns status-prefixed I2C reads into a byte stream.
type busPort struct {
	dev  *i2c.Dev
	bus  i2c.BusCloser
	name string
}

// Read returns 0 bytes while the co-processor has nothing pending.
func (p *busPort) Read(b []byte) (int, error) {
	n := min(len(b), readChunk)
	tmp := frame.GetBuffer(n + 1)
	defer frame.PutBuffer(tmp)
	tmp = tmp[:n+1]

	if err := p.dev.Tx(nil, tmp); err != nil {
		return 0, fmt.Errorf("I2C read failed: %w", err)
	}
	if tmp[0] != statusReady {
		return 0, nil
	}
	return copy(b, tmp[1:]), nil
}

func (p *busPort) Write(b []byte) (int, error) {
	if err := p.dev.Tx(b, nil); err != nil {
		return 0, fmt.Errorf("I2C write failed: %w", err)
	}
	return len(b), nil
}

func (p *busPort) Close() error {
	if err := p.bus.Close(); err != nil {
		return fmt.Errorf("I2C %s close: %w", p.name, err)
	}
	return nil
}
