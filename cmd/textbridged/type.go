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

package main

import (
	"context"
	"fmt"
	"unicode/utf8"

	textbridge "github.com/ZaparooProject/go-textbridge"
	"github.com/ZaparooProject/go-textbridge/client"
	"github.com/ZaparooProject/go-textbridge/config"
)

func encoderFor(opts *options) client.Encoder {
	enc := client.DefaultEncoder()
	if opts.mac {
		enc.Toggle = client.ToggleMac
	}
	enc.AppendEnter = opts.enter
	return enc
}

// loopbackBridge builds a bridge with an in-process sender attached.
func loopbackBridge(kb textbridge.HIDSink, cfg *config.Config, enc client.Encoder,
	extra ...textbridge.Option,
) (*textbridge.Bridge, *client.Sender, func(), error) {
	loop := client.NewLoopback()
	bridgeOpts := append([]textbridge.Option{
		textbridge.WithLink(loop),
		textbridge.WithTiming(cfg.Timing.BridgeTiming()),
		textbridge.WithSessionTimeout(cfg.Timing.SessionTimeout()),
	}, extra...)
	bridge, err := textbridge.New(kb, bridgeOpts...)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create bridge: %w", err)
	}
	loop.Attach(bridge)
	sender := client.NewSender(loop, client.WithEncoder(enc))
	closeFn := func() {
		_ = bridge.Close()
		_ = loop.Close()
	}
	return bridge, sender, closeFn, nil
}

// runTypeMode types opts.typeText once through the full protocol path.
func runTypeMode(ctx context.Context, kb textbridge.HIDSink, cfg *config.Config, opts *options,
	extra ...textbridge.Option,
) error {
	bridge, sender, closeFn, err := loopbackBridge(kb, cfg, encoderFor(opts), extra...)
	if err != nil {
		return err
	}
	defer closeFn()

	_, _ = fmt.Printf("Typing %d characters...\n", utf8.RuneCountInString(opts.typeText))
	if err := sender.SendText(ctx, opts.typeText); err != nil {
		return fmt.Errorf("failed to type text: %w", err)
	}

	st := bridge.Stats()
	_, _ = fmt.Printf("Done: %d keys in %d batches\n", st.Keys, st.BatchesAcked)
	return nil
}
