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

package bridge

import (
	"fmt"
	"strings"

	"github.com/carverauto/devmirror/pkg/models"
)

//nolint:gochecknoglobals // fixed denylist
var dangerousSubstrings = []string{"reboot", "fastboot", "recovery", "bootloader"}

// CheckCommand rejects any argument vector that could reboot the device or
// drop it into a boot mode the bridge cannot reach.
func CheckCommand(args []string) error {
	if len(args) == 0 {
		return ErrEmptyCommand
	}

	for _, arg := range args {
		lower := strings.ToLower(arg)

		for _, bad := range dangerousSubstrings {
			if strings.Contains(lower, bad) {
				return fmt.Errorf("%w: %q", ErrDangerousCommand, arg)
			}
		}
	}

	return nil
}

// ParseDevices parses `adb devices` output. The header, blank lines and
// daemon notices starting with '*' are skipped.
func ParseDevices(output string) []models.BridgeDevice {
	var devices []models.BridgeDevice

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "*") || strings.HasPrefix(line, "List of devices") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}

		devices = append(devices, models.BridgeDevice{ID: fields[0], State: fields[1]})
	}

	return devices
}

// IsConnectSuccess reports whether `adb connect` output means the device is attached.
func IsConnectSuccess(output string) bool {
	lower := strings.ToLower(output)

	return strings.Contains(lower, "already connected") || strings.Contains(lower, "connected")
}
