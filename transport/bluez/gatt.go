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

package bluez

import (
	"fmt"

	"github.com/godbus/dbus/v5"
)

// TextBridge GATT identifiers.
const (
	ServiceUUID = "12340000-1234-1234-1234-123456789abc"
	TXUUID      = "12340001-1234-1234-1234-123456789abc"
	RXUUID      = "12340002-1234-1234-1234-123456789abc"
)

// BlueZ and freedesktop D-Bus names.
const (
	bluezService       = "org.bluez"
	ifaceGattManager   = "org.bluez.GattManager1"
	ifaceGattService   = "org.bluez.GattService1"
	ifaceGattChar      = "org.bluez.GattCharacteristic1"
	ifaceAdvManager    = "org.bluez.LEAdvertisingManager1"
	ifaceAdvertisement = "org.bluez.LEAdvertisement1"
	ifaceDevice        = "org.bluez.Device1"
	ifaceObjectManager = "org.freedesktop.DBus.ObjectManager"
	ifaceProperties    = "org.freedesktop.DBus.Properties"

	errNotPermitted = "org.bluez.Error.NotPermitted"
	errFailed       = "org.bluez.Error.Failed"
)

// Object paths this adapter exports.
const (
	appPath     dbus.ObjectPath = "/org/zaparoo/textbridge"
	servicePath                 = appPath + "/service0"
	advPath                     = appPath + "/advertisement0"
)

// Role names what a characteristic is for.
type Role string

// Characteristic roles.
const (
	// RoleWrite receives command frames from the peer.
	RoleWrite Role = "write"
	// RoleNotify carries response frames to the peer.
	RoleNotify Role = "notify"
)

type charSpec struct {
	role  Role
	uuid  string
	flags []string
}

// charSpecs lists the service's characteristics in export order.
var charSpecs = []charSpec{
	{role: RoleWrite, uuid: TXUUID, flags: []string{"write", "write-without-response"}},
	{role: RoleNotify, uuid: RXUUID, flags: []string{"notify"}},
}

// resolvePaths assigns an object path to each role.
func resolvePaths() map[Role]dbus.ObjectPath {
	paths := make(map[Role]dbus.ObjectPath, len(charSpecs))
	for i, spec := range charSpecs {
		paths[spec.role] = dbus.ObjectPath(fmt.Sprintf("%s/char%d", servicePath, i))
	}
	return paths
}

// managedObjects is the GetManagedObjects reply BlueZ reads when the
// application registers.
func managedObjects(paths map[Role]dbus.ObjectPath) map[dbus.ObjectPath]map[string]map[string]dbus.Variant {
	objs := map[dbus.ObjectPath]map[string]map[string]dbus.Variant{
		servicePath: {
			ifaceGattService: {
				"UUID":    dbus.MakeVariant(ServiceUUID),
				"Primary": dbus.MakeVariant(true),
			},
		},
	}
	for _, spec := range charSpecs {
		objs[paths[spec.role]] = map[string]map[string]dbus.Variant{
			ifaceGattChar: {
				"UUID":    dbus.MakeVariant(spec.uuid),
				"Service": dbus.MakeVariant(servicePath),
				"Flags":   dbus.MakeVariant(spec.flags),
			},
		}
	}
	return objs
}

// objectManager is exported at the application root.
type objectManager struct {
	paths map[Role]dbus.ObjectPath
}

func (m objectManager) GetManagedObjects() (map[dbus.ObjectPath]map[string]map[string]dbus.Variant, *dbus.Error) {
	return managedObjects(m.paths), nil
}

// characteristic is the GattCharacteristic1 object for one role.
type characteristic struct {
	link *Link
	role Role
}

func (c *characteristic) ReadValue(map[string]dbus.Variant) ([]byte, *dbus.Error) {
	if c.role != RoleNotify {
		return nil, dbus.NewError(errNotPermitted, []any{"write-only characteristic"})
	}
	return c.link.lastValue(), nil
}

func (c *characteristic) WriteValue(value []byte, options map[string]dbus.Variant) *dbus.Error {
	if c.role != RoleWrite {
		return dbus.NewError(errNotPermitted, []any{"notify-only characteristic"})
	}
	var device dbus.ObjectPath
	if v, ok := options["device"]; ok {
		device, _ = v.Value().(dbus.ObjectPath)
	}
	if err := c.link.onWrite(device, value); err != nil {
		return dbus.NewError(errFailed, []any{err.Error()})
	}
	return nil
}

func (c *characteristic) StartNotify() *dbus.Error {
	if c.role != RoleNotify {
		return dbus.NewError(errNotPermitted, []any{"characteristic does not notify"})
	}
	c.link.setNotifying(true)
	return nil
}

func (c *characteristic) StopNotify() *dbus.Error {
	if c.role != RoleNotify {
		return dbus.NewError(errNotPermitted, []any{"characteristic does not notify"})
	}
	c.link.setNotifying(false)
	return nil
}

// advertisement is the LEAdvertisement1 object.
type advertisement struct {
	link *Link
}

// Release is called by BlueZ when it drops the advertisement.
func (a *advertisement) Release() *dbus.Error {
	a.link.advertisementReleased()
	return nil
}
