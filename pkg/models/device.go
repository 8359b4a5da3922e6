/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package models holds the device and session types shared by the bridge,
// registry, reconciler and session packages.
package models

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

var (
	ErrInvalidDeviceID = errors.New("invalid device id")
	errEmptyDeviceID   = errors.New("device id is empty")
)

// DeviceStatus is the controller's view of a device's reachability.
type DeviceStatus string

const (
	StatusUnknown    DeviceStatus = "Unknown"
	StatusOnline     DeviceStatus = "Online"
	StatusOffline    DeviceStatus = "Offline"
	StatusConnecting DeviceStatus = "Connecting"
)

// ParseDeviceStatus maps a persisted status string onto a DeviceStatus.
// Anything unrecognised is Unknown.
func ParseDeviceStatus(s string) DeviceStatus {
	switch DeviceStatus(s) {
	case StatusOnline, StatusOffline, StatusConnecting:
		return DeviceStatus(s)
	default:
		return StatusUnknown
	}
}

// ConnectionMode describes how the bridge addresses a device.
type ConnectionMode string

const (
	ModeUSB      ConnectionMode = "usb"
	ModeWireless ConnectionMode = "wireless"
	ModeUnknown  ConnectionMode = "unknown"
)

// ModeFromID derives the connection mode from a device id. An ip:port
// endpoint is wireless, any other non-empty id is a USB serial.
func ModeFromID(id string) ConnectionMode {
	switch {
	case id == "":
		return ModeUnknown
	case strings.Contains(id, ":"):
		return ModeWireless
	default:
		return ModeUSB
	}
}

// DefaultName returns the host portion of a device id.
func DefaultName(id string) string {
	if host, _, found := strings.Cut(id, ":"); found {
		return host
	}

	return id
}

// ValidateDeviceID checks that id is usable as a bridge target.
func ValidateDeviceID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: %w", ErrInvalidDeviceID, errEmptyDeviceID)
	}

	if strings.ContainsAny(id, " \t\r\n") {
		return fmt.Errorf("%w: %q contains whitespace", ErrInvalidDeviceID, id)
	}

	if ModeFromID(id) != ModeWireless {
		return nil
	}

	host, portStr, err := net.SplitHostPort(id)
	if err != nil {
		return fmt.Errorf("%w: %q: %w", ErrInvalidDeviceID, id, err)
	}

	if host == "" {
		return fmt.Errorf("%w: %q has no host", ErrInvalidDeviceID, id)
	}

	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("%w: %q has invalid port", ErrInvalidDeviceID, id)
	}

	return nil
}

// DeviceRecord is a known device. ID is the registry key.
type DeviceRecord struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Status   DeviceStatus   `json:"status"`
	Mode     ConnectionMode `json:"mode"`
	LastSeen time.Time      `json:"last_seen,omitempty"`

	// Reconnect bookkeeping; not persisted, so a restart clears it.
	LastStatus        DeviceStatus `json:"-"`
	ReconnectAttempts int          `json:"-"`
	LastReconnectTime time.Time    `json:"-"`
}

// NewDeviceRecord returns a record with the metadata derived from id.
func NewDeviceRecord(id string) DeviceRecord {
	return DeviceRecord{
		ID:     id,
		Name:   DefaultName(id),
		Status: StatusUnknown,
		Mode:   ModeFromID(id),
	}
}

// IsWireless reports whether the record is addressed by ip:port.
func (d *DeviceRecord) IsWireless() bool {
	return d.Mode == ModeWireless
}

// DevicePatch carries a partial update. Nil fields are left untouched.
type DevicePatch struct {
	Name              *string
	Status            *DeviceStatus
	LastStatus        *DeviceStatus
	LastSeen          *time.Time
	ReconnectAttempts *int
	LastReconnectTime *time.Time
}

// Apply merges the patch into rec.
func (p *DevicePatch) Apply(rec *DeviceRecord) {
	if p.Name != nil {
		rec.Name = *p.Name
	}

	if p.Status != nil {
		rec.Status = *p.Status
	}

	if p.LastStatus != nil {
		rec.LastStatus = *p.LastStatus
	}

	if p.LastSeen != nil {
		rec.LastSeen = *p.LastSeen
	}

	if p.ReconnectAttempts != nil {
		rec.ReconnectAttempts = *p.ReconnectAttempts
	}

	if p.LastReconnectTime != nil {
		rec.LastReconnectTime = *p.LastReconnectTime
	}
}

// BridgeDevice is one line of the bridge's device listing.
type BridgeDevice struct {
	ID    string
	State string
}

// Status maps the bridge state onto a DeviceStatus. Only "device" means
// the bridge can talk to it.
func (b BridgeDevice) Status() DeviceStatus {
	if b.State == "device" {
		return StatusOnline
	}

	return StatusOffline
}

// Mode derives the connection mode from the listed id.
func (b BridgeDevice) Mode() ConnectionMode {
	return ModeFromID(b.ID)
}

// DeviceEvent is emitted when a device's logged status changes.
type DeviceEvent struct {
	DeviceID  string       `json:"device_id"`
	OldStatus DeviceStatus `json:"old_status"`
	NewStatus DeviceStatus `json:"new_status"`
	Timestamp time.Time    `json:"timestamp"`
}

// Discovery is a wireless device found by a network scan.
type Discovery struct {
	ID      string
	Host    string
	Port    int
	FoundAt time.Time
}
