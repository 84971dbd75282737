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

// Package bluez runs the bridge's GATT service on the local BlueZ stack
// over the D-Bus system bus.
package bluez

import (
	"context"
	"errors"
	"fmt"
	"strings"

	textbridge "github.com/ZaparooProject/go-textbridge"
	"github.com/ZaparooProject/go-textbridge/internal/syncutil"
	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/prop"
)

// DefaultAdapter is the controller used when none is configured.
const DefaultAdapter = "hci0"

// signalDepth bounds queued bus signals.
const signalDepth = 32

// Config selects the controller and the advertised name.
type Config struct {
	Adapter string
	Name    string
}

// valueStore holds exported properties. Setting the notify
// characteristic's Value emits the PropertiesChanged signal BlueZ turns
// into a notification.
type valueStore interface {
	SetMust(iface, property string, v any)
}

// callFunc invokes a BlueZ method on path.
type callFunc func(path dbus.ObjectPath, method string, args ...any) error

// Link is a textbridge.Link backed by a BlueZ GATT application.
type Link struct {
	handler     textbridge.LinkHandler
	values      valueStore
	call        callFunc
	conn        *dbus.Conn
	paths       map[Role]dbus.ObjectPath
	adapter     dbus.ObjectPath
	peer        dbus.ObjectPath
	name        string
	value       []byte
	mu          syncutil.Mutex
	notifying   bool
	advertising bool
	closed      bool
}

// Open connects to the system bus. The GATT application is exported and
// registered by Serve.
func Open(cfg Config) (*Link, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, textbridge.NewTransportError("ConnectSystemBus", "", err, textbridge.ErrorTypePermanent)
	}
	l := newLink(cfg, func(path dbus.ObjectPath, method string, args ...any) error {
		return conn.Object(bluezService, path).Call(method, 0, args...).Err
	})
	l.conn = conn
	return l, nil
}

func newLink(cfg Config, call callFunc) *Link {
	adapter := cfg.Adapter
	if adapter == "" {
		adapter = DefaultAdapter
	}
	name := cfg.Name
	if name == "" {
		name = "TextBridge"
	}
	return &Link{
		call:    call,
		paths:   resolvePaths(),
		adapter: dbus.ObjectPath("/org/bluez/" + adapter),
		name:    name,
	}
}

// Path returns the object path exported for role.
func (l *Link) Path(role Role) dbus.ObjectPath {
	return l.paths[role]
}

// Serve exports the GATT application, registers it with BlueZ and follows
// device connection changes until ctx is done.
func (l *Link) Serve(ctx context.Context, h textbridge.LinkHandler) error {
	l.mu.Lock()
	l.handler = h
	l.mu.Unlock()

	if l.conn == nil {
		return textbridge.ErrLinkNotReady
	}
	if err := l.export(); err != nil {
		return err
	}

	signals := make(chan *dbus.Signal, signalDepth)
	l.conn.Signal(signals)
	defer l.conn.RemoveSignal(signals)
	if err := l.conn.AddMatchSignal(
		dbus.WithMatchInterface(ifaceProperties),
		dbus.WithMatchMember("PropertiesChanged"),
		dbus.WithMatchPathNamespace(l.adapter),
	); err != nil {
		return textbridge.NewTransportError("AddMatchSignal", string(l.adapter), err, textbridge.ErrorTypePermanent)
	}

	if err := l.call(l.adapter, ifaceGattManager+".RegisterApplication", appPath, map[string]dbus.Variant{}); err != nil {
		return textbridge.NewTransportError("RegisterApplication", string(l.adapter), err, textbridge.ErrorTypePermanent)
	}
	defer func() {
		if err := l.call(l.adapter, ifaceGattManager+".UnregisterApplication", appPath); err != nil {
			textbridge.Debugf("bluez: unregister application: %v", err)
		}
	}()
	textbridge.Debugf("bluez: GATT application registered on %s", l.adapter)

	for {
		select {
		case <-ctx.Done():
			return nil
		case sig, ok := <-signals:
			if !ok {
				if l.isClosed() {
					return nil
				}
				return textbridge.NewTransportClosedError("Serve", string(l.adapter))
			}
			l.handleSignal(sig)
		}
	}
}

func (l *Link) export() error {
	if err := l.conn.Export(objectManager{paths: l.paths}, appPath, ifaceObjectManager); err != nil {
		return fmt.Errorf("export object manager: %w", err)
	}

	if _, err := prop.Export(l.conn, servicePath, prop.Map{
		ifaceGattService: {
			"UUID":    {Value: ServiceUUID, Emit: prop.EmitConst},
			"Primary": {Value: true, Emit: prop.EmitConst},
		},
	}); err != nil {
		return fmt.Errorf("export service properties: %w", err)
	}

	for _, spec := range charSpecs {
		path := l.paths[spec.role]
		if err := l.conn.Export(&characteristic{link: l, role: spec.role}, path, ifaceGattChar); err != nil {
			return fmt.Errorf("export %s characteristic: %w", spec.role, err)
		}
		props, err := prop.Export(l.conn, path, prop.Map{
			ifaceGattChar: {
				"UUID":    {Value: spec.uuid, Emit: prop.EmitConst},
				"Service": {Value: servicePath, Emit: prop.EmitConst},
				"Flags":   {Value: spec.flags, Emit: prop.EmitConst},
				"Value":   {Value: []byte{}, Emit: prop.EmitTrue},
			},
		})
		if err != nil {
			return fmt.Errorf("export %s properties: %w", spec.role, err)
		}
		if spec.role == RoleNotify {
			l.mu.Lock()
			l.values = props
			l.mu.Unlock()
		}
	}

	if err := l.conn.Export(&advertisement{link: l}, advPath, ifaceAdvertisement); err != nil {
		return fmt.Errorf("export advertisement: %w", err)
	}
	if _, err := prop.Export(l.conn, advPath, prop.Map{
		ifaceAdvertisement: {
			"Type":         {Value: "peripheral", Emit: prop.EmitConst},
			"ServiceUUIDs": {Value: []string{ServiceUUID}, Emit: prop.EmitConst},
			"LocalName":    {Value: l.name, Emit: prop.EmitConst},
		},
	}); err != nil {
		return fmt.Errorf("export advertisement properties: %w", err)
	}
	return nil
}

// handleSignal follows Device1.Connected on devices under the adapter.
func (l *Link) handleSignal(sig *dbus.Signal) {
	if sig.Name != ifaceProperties+".PropertiesChanged" || len(sig.Body) < 2 {
		return
	}
	if iface, _ := sig.Body[0].(string); iface != ifaceDevice {
		return
	}
	changed, _ := sig.Body[1].(map[string]dbus.Variant)
	v, ok := changed["Connected"]
	if !ok {
		return
	}
	if connected, _ := v.Value().(bool); connected {
		l.adopt(sig.Path)
	} else {
		l.release(sig.Path)
	}
}

// adopt makes device the peer if there is none.
func (l *Link) adopt(device dbus.ObjectPath) {
	if !strings.HasPrefix(string(device), string(l.adapter)+"/") {
		return
	}
	l.mu.Lock()
	if l.peer != "" || l.handler == nil {
		l.mu.Unlock()
		return
	}
	l.peer = device
	l.advertising = false
	h := l.handler
	l.mu.Unlock()

	textbridge.Debugf("bluez: peer %s connected", device)
	h.OnConnected()
}

func (l *Link) release(device dbus.ObjectPath) {
	l.mu.Lock()
	if device != l.peer || l.handler == nil {
		l.mu.Unlock()
		return
	}
	l.peer = ""
	l.notifying = false
	h := l.handler
	l.mu.Unlock()

	textbridge.Debugf("bluez: peer %s disconnected", device)
	h.OnDisconnected()
}

func (l *Link) onWrite(device dbus.ObjectPath, value []byte) error {
	if device != "" {
		l.adopt(device)
	}
	l.mu.Lock()
	h := l.handler
	l.mu.Unlock()
	if h == nil {
		return textbridge.ErrLinkNotReady
	}
	h.HandleFrame(value)
	return nil
}

func (l *Link) setNotifying(on bool) {
	l.mu.Lock()
	changed := l.notifying != on
	l.notifying = on
	h := l.handler
	l.mu.Unlock()
	if changed && h != nil {
		h.OnNotificationsEnabled(on)
	}
}

func (l *Link) lastValue() []byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]byte(nil), l.value...)
}

func (l *Link) advertisementReleased() {
	l.mu.Lock()
	l.advertising = false
	l.mu.Unlock()
	textbridge.Debugf("bluez: advertisement released")
}

func (l *Link) isClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

// Notify sends frame as a notification on the notify characteristic.
func (l *Link) Notify(frame []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	switch {
	case l.closed:
		return textbridge.NewTransportClosedError("Notify", string(l.adapter))
	case l.values == nil:
		return textbridge.ErrLinkNotReady
	case !l.notifying:
		return textbridge.ErrNotificationsOff
	}
	l.value = append(l.value[:0], frame...)
	l.values.SetMust(ifaceGattChar, "Value", append([]byte(nil), frame...))
	return nil
}

// StartAdvertising registers the LE advertisement.
func (l *Link) StartAdvertising() error {
	l.mu.Lock()
	if l.advertising {
		l.mu.Unlock()
		return nil
	}
	l.mu.Unlock()

	if err := l.call(l.adapter, ifaceAdvManager+".RegisterAdvertisement", advPath, map[string]dbus.Variant{}); err != nil {
		return fmt.Errorf("%w: %w", textbridge.ErrAdvertisingRejected, err)
	}
	l.mu.Lock()
	l.advertising = true
	l.mu.Unlock()
	return nil
}

// StopAdvertising unregisters the LE advertisement.
func (l *Link) StopAdvertising() error {
	l.mu.Lock()
	if !l.advertising {
		l.mu.Unlock()
		return nil
	}
	l.advertising = false
	l.mu.Unlock()

	if err := l.call(l.adapter, ifaceAdvManager+".UnregisterAdvertisement", advPath); err != nil {
		return fmt.Errorf("unregister advertisement: %w", err)
	}
	return nil
}

// Disconnect drops the current peer.
func (l *Link) Disconnect() error {
	l.mu.Lock()
	peer := l.peer
	l.mu.Unlock()
	if peer == "" {
		return nil
	}
	if err := l.call(peer, ifaceDevice+".Disconnect"); err != nil {
		return fmt.Errorf("disconnect %s: %w", peer, err)
	}
	return nil
}

// Close stops advertising and closes the bus connection.
func (l *Link) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.mu.Unlock()

	var errs []error
	if err := l.StopAdvertising(); err != nil {
		errs = append(errs, err)
	}
	if l.conn != nil {
		if err := l.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close system bus: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Type returns LinkBlueZ.
func (*Link) Type() textbridge.LinkType {
	return textbridge.LinkBlueZ
}

var _ textbridge.Link = (*Link)(nil)
