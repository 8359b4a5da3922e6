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

package models

import "time"

// SessionOptions are the mirror client flags captured when a session starts.
type SessionOptions struct {
	Bitrate     string `json:"bitrate"`
	MaxSize     string `json:"max_size"`
	MaxFPS      int    `json:"fps"`
	Fullscreen  bool   `json:"fullscreen"`
	AlwaysOnTop bool   `json:"always_on_top"`
	NoControl   bool   `json:"no_control"`
	Record      bool   `json:"record"`
	RecordPath  string `json:"record_path"`
	TimeLimit   int    `json:"time_limit"` // seconds; 0 disables
	CustomArgs  string `json:"custom_options"`

	// USBSerial names the USB device to switch into TCP/IP mode when a
	// wireless target is not yet reachable. Empty picks the first online
	// USB device.
	USBSerial string `json:"-"`
}

// SessionInfo is a read-only view of a running mirror session.
type SessionInfo struct {
	ID        string         `json:"id"`
	DeviceID  string         `json:"device_id"`
	PID       int            `json:"pid"`
	Options   SessionOptions `json:"options"`
	StartedAt time.Time      `json:"started_at"`
}
