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

// Package detection finds the serial port a BLE co-processor is attached to.
// Detection is passive: ports are ranked from their USB descriptors and never
// opened, since the co-processor only speaks when a peer does.
package detection

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

// Confidence ranks how likely a port is to be a co-processor.
type Confidence int

const (
	// Low means a built-in or unidentified serial port.
	Low Confidence = iota
	// Medium means a generic USB serial bridge.
	Medium
	// High means a board whose USB descriptor names a BLE co-processor.
	High
)

func (c Confidence) String() string {
	switch c {
	case Low:
		return "low"
	case Medium:
		return "medium"
	case High:
		return "high"
	default:
		return "unknown"
	}
}

// Port is a candidate serial port.
type Port struct {
	Path         string
	Name         string
	VIDPID       string
	Manufacturer string
	Product      string
	SerialNumber string
	Confidence   Confidence
}

func (p Port) String() string {
	if p.VIDPID != "" {
		return fmt.Sprintf("%s [%s] (confidence: %s)", p.Path, p.VIDPID, p.Confidence)
	}
	return fmt.Sprintf("%s (confidence: %s)", p.Path, p.Confidence)
}

// Options configures detection.
type Options struct {
	// Blocklist holds USB VID:PID pairs to skip.
	Blocklist []string
	// IgnorePaths holds device paths to skip.
	IgnorePaths []string
	// SysRoot is where sysfs is mounted. Linux only.
	SysRoot string
	// DevRoot is where device nodes live. Linux only.
	DevRoot string
	// Timeout bounds one scan.
	Timeout time.Duration
	// MinConfidence drops ports ranked below it.
	MinConfidence Confidence
}

// DefaultOptions returns the options the daemon uses for "auto".
func DefaultOptions() Options {
	return Options{
		Blocklist:     DefaultBlocklist(),
		SysRoot:       "/sys",
		DevRoot:       "/dev",
		Timeout:       5 * time.Second,
		MinConfidence: Medium,
	}
}

// ErrNoDevicesFound indicates no candidate port was found.
var ErrNoDevicesFound = errors.New("no co-processor serial port found")

// coprocessorVIDPIDs are boards that ship BLE firmware over a native USB
// serial interface.
var coprocessorVIDPIDs = []string{
	"303A:1001", // Espressif ESP32-S3/C3 USB Serial/JTAG
	"303A:4001", // Espressif TinyUSB CDC
	"1915:520F", // Nordic nRF52 USB CDC
	"2FE3:0100", // Zephyr CDC ACM sample
	"239A:8029", // Adafruit Feather nRF52840
}

// bridgeVIDPIDs are USB UART bridges commonly wired to a co-processor.
var bridgeVIDPIDs = []string{
	"067B:2303", // Prolific PL2303
	"0403:6001", // FTDI FT232
	"0403:6015", // FTDI FT231X
	"10C4:EA60", // Silicon Labs CP210x
	"1A86:7523", // QinHeng CH340
	"1A86:55D4", // QinHeng CH9102
}

var coprocessorKeywords = []string{"ble", "bluetooth", "nrf52", "esp32", "textbridge"}

// Rank returns the confidence for port.
func Rank(port *Port) Confidence {
	vidpid := strings.ToUpper(port.VIDPID)
	if slices.Contains(coprocessorVIDPIDs, vidpid) {
		return High
	}
	product := strings.ToLower(port.Product + " " + port.Manufacturer)
	for _, kw := range coprocessorKeywords {
		if strings.Contains(product, kw) {
			return High
		}
	}
	if slices.Contains(bridgeVIDPIDs, vidpid) || vidpid != "" {
		return Medium
	}
	return Low
}

// Detect lists candidate ports, best first.
func Detect(ctx context.Context, opts *Options) ([]Port, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	ports, err := listPorts(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate serial ports: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("detection: %w", err)
	}

	var out []Port
	for i := range ports {
		p := ports[i]
		if p.VIDPID != "" && IsBlocked(p.VIDPID, opts.Blocklist) {
			continue
		}
		if IsPathIgnored(p.Path, opts.IgnorePaths) {
			continue
		}
		p.Confidence = Rank(&p)
		if p.Confidence < opts.MinConfidence {
			continue
		}
		out = append(out, p)
	}
	if len(out) == 0 {
		return nil, ErrNoDevicesFound
	}

	slices.SortStableFunc(out, func(a, b Port) int {
		return cmp.Compare(b.Confidence, a.Confidence)
	})
	return out, nil
}

// FindSerialPort returns the best candidate port.
func FindSerialPort(ctx context.Context, opts *Options) (Port, error) {
	ports, err := Detect(ctx, opts)
	if err != nil {
		return Port{}, err
	}
	return ports[0], nil
}
