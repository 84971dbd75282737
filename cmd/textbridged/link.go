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

	textbridge "github.com/ZaparooProject/go-textbridge"
	"github.com/ZaparooProject/go-textbridge/config"
	"github.com/ZaparooProject/go-textbridge/detection"
	"github.com/ZaparooProject/go-textbridge/transport/bluez"
	"github.com/ZaparooProject/go-textbridge/transport/i2c"
	"github.com/ZaparooProject/go-textbridge/transport/spi"
	"github.com/ZaparooProject/go-textbridge/transport/uart"
	"periph.io/x/conn/v3/physic"
)

// servedLink is a link whose receive loop the daemon runs.
type servedLink interface {
	textbridge.Link
	Serve(ctx context.Context, h textbridge.LinkHandler) error
}

// detectPort is replaced in tests.
var detectPort = func(ctx context.Context) (detection.Port, error) {
	opts := detection.DefaultOptions()
	return detection.FindSerialPort(ctx, &opts)
}

// resolvePort turns "auto" into a detected serial port.
func resolvePort(ctx context.Context, lc config.LinkConfig) (string, error) {
	if lc.Port != config.AutoPort {
		return lc.Port, nil
	}
	port, err := detectPort(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to auto-detect co-processor: %w", err)
	}
	_, _ = fmt.Printf("Using %s\n", port)
	return port.Path, nil
}

func openLink(ctx context.Context, lc config.LinkConfig) (servedLink, error) {
	switch lc.Type {
	case config.LinkUART:
		port, err := resolvePort(ctx, lc)
		if err != nil {
			return nil, err
		}
		link, err := uart.Open(ctx, uart.Config{
			PortName:       port,
			AdvertisedName: lc.Name,
			BaudRate:       lc.BaudRate,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create UART link: %w", err)
		}
		return link, nil
	case config.LinkSPI:
		link, err := spi.Open(spi.Config{
			PortName:       lc.Port,
			AdvertisedName: lc.Name,
			Frequency:      physic.Frequency(lc.Frequency) * physic.Hertz,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create SPI link: %w", err)
		}
		return link, nil
	case config.LinkI2C:
		link, err := i2c.Open(i2c.Config{
			BusName:        lc.Port,
			AdvertisedName: lc.Name,
			Address:        lc.Address,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create I2C link: %w", err)
		}
		return link, nil
	case config.LinkBlueZ:
		link, err := bluez.Open(bluez.Config{Adapter: lc.Adapter, Name: lc.Name})
		if err != nil {
			return nil, fmt.Errorf("failed to create BlueZ link: %w", err)
		}
		return link, nil
	default:
		return nil, fmt.Errorf("unsupported link type: %s", lc.Type)
	}
}
