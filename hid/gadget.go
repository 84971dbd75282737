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

package hid

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	textbridge "github.com/ZaparooProject/go-textbridge"
)

// DefaultGadgetPath is the first HID gadget function's device node.
const DefaultGadgetPath = "/dev/hidg0"

// DefaultWriteTimeout bounds one report write. The gadget driver blocks a
// write while the host is not polling the endpoint.
const DefaultWriteTimeout = 250 * time.Millisecond

// Gadget is an opened /dev/hidgN node.
type Gadget struct {
	f       *os.File
	path    string
	timeout time.Duration
}

// OpenGadget opens a HID gadget device node for writing reports.
func OpenGadget(path string, timeout time.Duration) (*Gadget, error) {
	if path == "" {
		path = DefaultGadgetPath
	}
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return nil, textbridge.NewTransportError("OpenGadget", path,
			fmt.Errorf("%w: %w", textbridge.ErrHIDNotReady, err), textbridge.ErrorTypePermanent)
	}
	return &Gadget{f: f, path: path, timeout: timeout}, nil
}

// Write writes one report, giving up after the write timeout when the
// node supports deadlines.
func (g *Gadget) Write(p []byte) (int, error) {
	if g.timeout > 0 {
		if err := g.f.SetWriteDeadline(time.Now().Add(g.timeout)); err != nil &&
			!errors.Is(err, os.ErrNoDeadline) {
			textbridge.Debugf("hid %s: set deadline: %v", g.path, err)
		}
	}
	n, err := g.f.Write(p)
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return n, textbridge.NewTimeoutError("Write", g.path)
	}
	if err != nil {
		return n, fmt.Errorf("write %s: %w", g.path, err)
	}
	return n, nil
}

// Close closes the device node.
func (g *Gadget) Close() error {
	if err := g.f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", g.path, err)
	}
	return nil
}

// Path returns the device node path.
func (g *Gadget) Path() string {
	return g.path
}

// FunctionConfig is the configfs description of a HID gadget function.
type FunctionConfig struct {
	// Dir is the function directory, e.g.
	// /sys/kernel/config/usb_gadget/g1/functions/hid.usb0.
	Dir string
}

// WriteFunction writes the boot keyboard attributes into an existing
// configfs HID function directory. The gadget must not be bound to a UDC
// yet.
func WriteFunction(cfg FunctionConfig) error {
	attrs := []struct {
		name  string
		value []byte
	}{
		{"protocol", []byte("1")},
		{"subclass", []byte("1")},
		{"report_length", []byte("8")},
		{"report_desc", ReportDescriptor},
	}
	for _, a := range attrs {
		p := filepath.Join(cfg.Dir, a.name)
		if err := os.WriteFile(p, a.value, 0o644); err != nil { //nolint:gosec // configfs attributes are world-readable
			return fmt.Errorf("write %s: %w", p, err)
		}
	}
	return nil
}
