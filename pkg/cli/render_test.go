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

package cli

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/devmirror/pkg/models"
)

func TestDeviceRows(t *testing.T) {
	seen := time.Date(2026, 3, 1, 12, 0, 0, 0, time.Local)

	wireless := models.NewDeviceRecord("192.168.1.50:5555")
	wireless.Status = models.StatusOffline
	wireless.ReconnectAttempts = 3

	usb := models.NewDeviceRecord("R58M123ABC")
	usb.Status = models.StatusOnline
	usb.LastSeen = seen

	rows := deviceRows(
		[]models.DeviceRecord{usb, wireless},
		[]models.SessionInfo{{DeviceID: "R58M123ABC", PID: 4242}},
	)

	require.Len(t, rows, 2)
	assert.Equal(t, []string{"192.168.1.50:5555", "192.168.1.50", "wireless", "Offline", "3", "never", "-"}, rows[0])
	assert.Equal(t, []string{"R58M123ABC", "R58M123ABC", "usb", "Online", "0", "2026-03-01 12:00:00", "pid 4242"}, rows[1])
}

func TestRenderDevices(t *testing.T) {
	var buf bytes.Buffer

	renderDevices(&buf, []models.DeviceRecord{models.NewDeviceRecord("R58M123ABC")}, nil)

	assert.Contains(t, buf.String(), "R58M123ABC")
	assert.Contains(t, buf.String(), "STATUS")

	buf.Reset()
	renderDevices(&buf, nil, nil)
	assert.Contains(t, buf.String(), "No devices known")
}

func TestPrintResults(t *testing.T) {
	var buf bytes.Buffer

	printResults(&buf, "launched", map[string]error{
		"b": errors.New("device unreachable"),
		"a": nil,
	})

	out := buf.String()
	assert.Contains(t, out, "a launched")
	assert.Contains(t, out, "b: device unreachable")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("a launched")), bytes.Index(buf.Bytes(), []byte("b:")))
}

func TestSplitAddress(t *testing.T) {
	host, port, err := splitAddress("192.168.1.50", 5555)
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.50", host)
	assert.Equal(t, 5555, port)

	host, port, err = splitAddress("10.0.0.2:5556", 5555)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.2", host)
	assert.Equal(t, 5556, port)

	for _, bad := range []string{"", "10.0.0.2:abc", "10.0.0.2:0", "10.0.0.2:70000"} {
		_, _, err := splitAddress(bad, 5555)
		require.ErrorIs(t, err, errBadAddress, bad)
	}
}
