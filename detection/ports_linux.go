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

//go:build linux

package detection

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// maxSysfsDepth bounds the walk from a tty up to its USB device.
const maxSysfsDepth = 10

// listPorts reads USB serial ports from sysfs, then adds built-in UARTs.
func listPorts(ctx context.Context, opts *Options) ([]Port, error) {
	sysRoot := cmpOr(opts.SysRoot, "/sys")
	devRoot := cmpOr(opts.DevRoot, "/dev")

	ports, usbErr := usbPorts(ctx, sysRoot, devRoot)
	ports = append(ports, builtinPorts(devRoot)...)
	if len(ports) == 0 && usbErr != nil {
		return nil, usbErr
	}
	return ports, nil
}

func usbPorts(ctx context.Context, sysRoot, devRoot string) ([]Port, error) {
	ttyDir := filepath.Join(sysRoot, "class", "tty")
	entries, err := os.ReadDir(ttyDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", ttyDir, err)
	}

	var ports []Port
	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		resolved, err := filepath.EvalSymlinks(filepath.Join(ttyDir, entry.Name(), "device"))
		if err != nil || !strings.Contains(resolved, "/usb") {
			continue
		}
		port := Port{
			Path: filepath.Join(devRoot, entry.Name()),
			Name: entry.Name(),
		}
		readUSBAttributes(&port, resolved, sysRoot)
		ports = append(ports, port)
	}
	return ports, nil
}

// readUSBAttributes walks up from the interface to the USB device node.
func readUSBAttributes(port *Port, devicePath, sysRoot string) {
	current := devicePath
	for range maxSysfsDepth {
		if readUSBIdentifiers(port, current) {
			return
		}
		current = filepath.Dir(current)
		if current == sysRoot || current == "/" || current == "." {
			return
		}
	}
}

func readUSBIdentifiers(port *Port, path string) bool {
	vid, err := readAttr(path, "idVendor")
	if err != nil {
		return false
	}
	pid, err := readAttr(path, "idProduct")
	if err != nil {
		return false
	}
	port.VIDPID = strings.ToUpper(vid + ":" + pid)
	port.Manufacturer, _ = readAttr(path, "manufacturer")
	port.Product, _ = readAttr(path, "product")
	port.SerialNumber, _ = readAttr(path, "serial")
	return true
}

func readAttr(dir, name string) (string, error) {
	b, err := os.ReadFile(filepath.Join(dir, name)) //nolint:gosec // sysfs attribute under the scanned tree
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

func builtinPorts(devRoot string) []Port {
	var ports []Port
	for _, pattern := range []string{"ttyS*", "ttyAMA*"} {
		matches, err := filepath.Glob(filepath.Join(devRoot, pattern))
		if err != nil {
			continue
		}
		for _, path := range matches {
			ports = append(ports, Port{Path: path, Name: filepath.Base(path)})
		}
	}
	return ports
}

func cmpOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
