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

// Package usbwatch tracks whether the HID gadget is attached to a USB host
// and reports changes to the bridge.
package usbwatch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	textbridge "github.com/ZaparooProject/go-textbridge"
	"github.com/ZaparooProject/go-textbridge/internal/syncutil"
	"github.com/fsnotify/fsnotify"
)

// DefaultClassDir is where the kernel lists USB device controllers.
const DefaultClassDir = "/sys/class/udc"

// DefaultPollInterval is how often the UDC state file is read. sysfs
// attributes do not raise inotify events.
const DefaultPollInterval = 500 * time.Millisecond

// configuredState is the UDC state once the host has set a configuration.
var configuredState = []byte("configured")

// Listener receives host transport changes. *textbridge.Bridge implements it.
type Listener interface {
	OnHostTransportChanged(t textbridge.HostTransport)
}

// Config describes what to watch.
type Config struct {
	// UDC is the controller name under ClassDir. Empty picks the first one.
	UDC string
	// ClassDir defaults to DefaultClassDir.
	ClassDir string
	// Node is the gadget device node, e.g. /dev/hidg0.
	Node string
	// PollInterval defaults to DefaultPollInterval.
	PollInterval time.Duration
}

// Watcher reports HostTransportUSB while the UDC is configured and the
// gadget node exists, and HostTransportNone otherwise.
type Watcher struct {
	listener  Listener
	statePath string
	node      string
	interval  time.Duration
	mu        syncutil.Mutex
	current   textbridge.HostTransport
	known     bool
}

// New resolves the UDC and creates a Watcher.
func New(cfg Config, l Listener) (*Watcher, error) {
	classDir := cfg.ClassDir
	if classDir == "" {
		classDir = DefaultClassDir
	}
	udc := cfg.UDC
	if udc == "" {
		var err error
		if udc, err = FirstUDC(classDir); err != nil {
			return nil, err
		}
	}
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Watcher{
		listener:  l,
		statePath: filepath.Join(classDir, udc, "state"),
		node:      cfg.Node,
		interval:  interval,
	}, nil
}

// FirstUDC returns the first controller listed in classDir.
func FirstUDC(classDir string) (string, error) {
	entries, err := os.ReadDir(classDir)
	if err != nil {
		return "", fmt.Errorf("list USB device controllers: %w", err)
	}
	if len(entries) == 0 {
		return "", fmt.Errorf("no USB device controller in %s: %w", classDir, textbridge.ErrHIDNotReady)
	}
	return entries[0].Name(), nil
}

// Probe reads the current host transport without notifying anyone.
func (w *Watcher) Probe() textbridge.HostTransport {
	state, err := os.ReadFile(w.statePath)
	if err != nil || !bytes.Equal(bytes.TrimSpace(state), configuredState) {
		return textbridge.HostTransportNone
	}
	if w.node != "" {
		if _, err := os.Stat(w.node); err != nil {
			return textbridge.HostTransportNone
		}
	}
	return textbridge.HostTransportUSB
}

// Check probes the host transport and notifies the listener if it changed
// since the last check. The first check always notifies.
func (w *Watcher) Check() textbridge.HostTransport {
	t := w.Probe()
	w.mu.Lock()
	changed := !w.known || t != w.current
	w.current = t
	w.known = true
	w.mu.Unlock()

	if changed {
		textbridge.Debugf("usbwatch: host transport %s", t)
		w.listener.OnHostTransportChanged(t)
	}
	return t
}

// Run checks on every poll tick and whenever the gadget node's directory
// changes, until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	events, errs, closeWatch := w.watchNode()
	defer closeWatch()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.Check()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.Check()
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if filepath.Clean(ev.Name) == filepath.Clean(w.node) {
				w.Check()
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			textbridge.Debugf("usbwatch: %v", err)
		}
	}
}

// watchNode watches the node's parent directory so creation and removal
// are seen. Without a node, or when inotify is unavailable, it returns nil
// channels and Run falls back to polling.
func (w *Watcher) watchNode() (<-chan fsnotify.Event, <-chan error, func()) {
	if w.node == "" {
		return nil, nil, func() {}
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		textbridge.Debugf("usbwatch: inotify unavailable, polling only: %v", err)
		return nil, nil, func() {}
	}
	if err := fw.Add(filepath.Dir(w.node)); err != nil {
		textbridge.Debugf("usbwatch: watch %s: %v", filepath.Dir(w.node), err)
		_ = fw.Close()
		return nil, nil, func() {}
	}
	return fw.Events, fw.Errors, func() {
		if err := fw.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			textbridge.Debugf("usbwatch: close watcher: %v", err)
		}
	}
}
