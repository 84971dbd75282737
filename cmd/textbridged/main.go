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

// Command textbridged types text received over BLE into a USB HID keyboard
// gadget.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	textbridge "github.com/ZaparooProject/go-textbridge"
	"github.com/ZaparooProject/go-textbridge/config"
	"github.com/ZaparooProject/go-textbridge/hid"
	"github.com/ZaparooProject/go-textbridge/input/evdev"
	"github.com/ZaparooProject/go-textbridge/internal/syncutil"
	"github.com/ZaparooProject/go-textbridge/usbwatch"
)

// reconnectDelay is the pause before reopening a failed link.
const reconnectDelay = 2 * time.Second

type options struct {
	configPath string
	typeText   string
	selfTest   int
	lockTO     time.Duration
	debug      bool
	mac        bool
	enter      bool
	setup      bool
}

// Package-level flag variables
var (
	flagConfig   string
	flagType     string
	flagSelfTest int
	flagLockTO   time.Duration
	flagDebug    bool
	flagMac      bool
	flagEnter    bool
	flagSetup    bool
)

func init() {
	flag.StringVar(&flagConfig, "config", "/etc/textbridge/textbridge.toml", "Configuration file (TOML, YAML or JSON)")
	flag.StringVar(&flagType, "type", "", "Type this text through the gadget and exit")
	flag.IntVar(&flagSelfTest, "selftest", 0, "Run N randomized transmissions against an in-memory keyboard and exit")
	flag.DurationVar(&flagLockTO, "lock-timeout", 0, "Report locks held longer than this (deadlock builds only)")
	flag.BoolVar(&flagDebug, "debug", false, "Enable debug output and a session log")
	flag.BoolVar(&flagMac, "mac", false, "Use the macOS input-method toggle with -type")
	flag.BoolVar(&flagEnter, "enter", false, "Press Enter after the text with -type")
	flag.BoolVar(&flagSetup, "setup-gadget", false, "Write the HID function attributes before opening the gadget")
}

func parseOptions() *options {
	opts := &options{
		configPath: flagConfig,
		typeText:   flagType,
		selfTest:   flagSelfTest,
		lockTO:     flagLockTO,
		debug:      flagDebug,
		mac:        flagMac,
		enter:      flagEnter,
		setup:      flagSetup,
	}
	if opts.debug {
		textbridge.SetDebugEnabled(true)
	}
	if opts.lockTO > 0 {
		syncutil.SetLockTimeout(opts.lockTO)
	}
	return opts
}

func startSessionLog(cfg *config.Config) func() {
	if !cfg.Debug.Enabled && !textbridge.DebugEnabled() {
		return func() {}
	}
	textbridge.SetDebugEnabled(true)
	path, err := textbridge.InitSessionLog(cfg.Debug.LogDir)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Session log disabled: %v\n", err)
		return func() {}
	}
	_, _ = fmt.Printf("Session log: %s\n", path)
	return func() {
		if err := textbridge.CloseSessionLog(); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Failed to close session log: %v\n", err)
		}
	}
}

func openKeyboard(cfg *config.Config, setup bool) (*hid.Keyboard, error) {
	if setup {
		if cfg.HID.FunctionDir == "" {
			return nil, errors.New("-setup-gadget needs hid.function_dir")
		}
		if err := hid.WriteFunction(hid.FunctionConfig{Dir: cfg.HID.FunctionDir}); err != nil {
			return nil, err
		}
	}
	timeout := time.Duration(cfg.HID.WriteTimeoutMs) * time.Millisecond
	gadget, err := hid.OpenGadget(cfg.HID.Device, timeout)
	if err != nil {
		return nil, err
	}
	return hid.NewKeyboard(gadget), nil
}

// daemonHandler re-advertises whenever the bridge becomes reachable again.
type daemonHandler struct {
	*textbridge.Bridge
}

func (h daemonHandler) OnDisconnected() {
	h.Bridge.OnDisconnected()
	h.advertise()
}

func (h daemonHandler) OnHostTransportChanged(t textbridge.HostTransport) {
	h.Bridge.OnHostTransportChanged(t)
	if t == textbridge.HostTransportUSB {
		h.advertise()
	}
}

func (h daemonHandler) advertise() {
	if err := h.BeginDiscoverability(); err != nil && !errors.Is(err, textbridge.ErrLinkNotReady) {
		_, _ = fmt.Fprintf(os.Stderr, "Failed to start advertising: %v\n", err)
	}
}

func runDaemon(ctx context.Context, loader *config.Loader, kb textbridge.HIDSink) error {
	cfg := loader.Config()

	var grabber atomic.Pointer[evdev.Grabber]
	bridge, err := textbridge.New(kb,
		textbridge.WithTiming(cfg.Timing.BridgeTiming()),
		textbridge.WithSessionTimeout(cfg.Timing.SessionTimeout()),
		textbridge.WithTimeoutNotification(cfg.Timing.NotifyTimeout),
		textbridge.WithStateListener(func(blocking bool) {
			if g := grabber.Load(); g != nil {
				g.SetBlocking(blocking)
			}
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to create bridge: %w", err)
	}
	defer func() {
		_ = bridge.Close()
		st := bridge.Stats()
		_, _ = fmt.Printf("Typed %d keys in %d batches (%d NACKs, %d timeouts, %d HID errors)\n",
			st.Keys, st.Batches, st.Nacks, st.Timeouts, st.HIDErrors)
	}()
	handler := daemonHandler{Bridge: bridge}

	loader.OnChange(func(c *config.Config) {
		bridge.SetTiming(c.Timing.BridgeTiming())
		bridge.SetSessionTimeout(c.Timing.SessionTimeout())
		_, _ = fmt.Println("Timing reloaded")
	})
	if err := loader.Watch(ctx); err != nil {
		textbridge.Debugf("config hot reload disabled: %v", err)
	}
	go reportReloadErrors(ctx, loader)

	if cfg.Keyboard.Grab != "" {
		g, err := evdev.Open(cfg.Keyboard.Grab, bridge)
		if err != nil {
			return fmt.Errorf("failed to open keyboard: %w", err)
		}
		grabber.Store(g)
		defer func() { _ = g.Close() }()
		go func() {
			if err := g.Run(ctx); err != nil {
				_, _ = fmt.Fprintf(os.Stderr, "Keyboard grab stopped: %v\n", err)
			}
		}()
	}

	if cfg.USB.Watch {
		w, err := usbwatch.New(usbwatch.Config{
			UDC:          cfg.USB.UDC,
			Node:         cfg.HID.Device,
			PollInterval: time.Duration(cfg.USB.PollMs) * time.Millisecond,
		}, handler)
		if err != nil {
			return fmt.Errorf("failed to watch USB controller: %w", err)
		}
		go func() { _ = w.Run(ctx) }()
	}

	_, _ = fmt.Printf("Serving %s link. Press Ctrl+C to stop...\n", cfg.Link.Type)
	return serveLinks(ctx, cfg.Link, handler)
}

// serveLinks keeps a link open until ctx is done, reopening it after the
// adapter fails.
func serveLinks(ctx context.Context, lc config.LinkConfig, h daemonHandler) error {
	for {
		err := serveOnce(ctx, lc, h)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		_, _ = fmt.Fprintf(os.Stderr, "Link lost: %v (retrying in %s)\n", err, reconnectDelay)

		timer := time.NewTimer(reconnectDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func serveOnce(ctx context.Context, lc config.LinkConfig, h daemonHandler) error {
	link, err := openLink(ctx, lc)
	if err != nil {
		return err
	}
	defer func() {
		h.SetLink(nil)
		if err := link.Close(); err != nil {
			textbridge.Debugf("close link: %v", err)
		}
	}()

	h.SetLink(link)
	h.advertise()
	err = link.Serve(ctx, h)
	if h.Connected() {
		h.Bridge.OnDisconnected()
	}
	if err == nil {
		err = textbridge.ErrTransportClosed
	}
	return err
}

func reportReloadErrors(ctx context.Context, loader *config.Loader) {
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-loader.Errors():
			_, _ = fmt.Fprintf(os.Stderr, "Keeping previous configuration: %v\n", err)
		}
	}
}

func run(ctx context.Context, opts *options) error {
	loader := config.NewLoader(opts.configPath)
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	defer func() { _ = loader.Close() }()
	defer startSessionLog(cfg)()

	if opts.selfTest > 0 {
		return runSelfTest(ctx, cfg, opts.selfTest)
	}

	kb, err := openKeyboard(cfg, opts.setup)
	if err != nil {
		return err
	}
	defer func() {
		if err := kb.Close(); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Failed to close keyboard: %v\n", err)
		}
	}()

	if opts.typeText != "" {
		return runTypeMode(ctx, kb, cfg, opts)
	}
	return runDaemon(ctx, loader, kb)
}

func main() {
	flag.Parse()
	os.Exit(mainWithExitCode())
}

func mainWithExitCode() int {
	opts := parseOptions()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		_, _ = fmt.Print("\nShutting down gracefully...\n")
		cancel()
	}()

	if err := run(ctx, opts); err != nil {
		if errors.Is(err, context.Canceled) {
			return 0
		}
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
