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

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModeFromID(t *testing.T) {
	tests := []struct {
		id   string
		want ConnectionMode
	}{
		{"", ModeUnknown},
		{"R58M12ABCDE", ModeUSB},
		{"emulator-5554", ModeUSB},
		{"192.168.1.50:5555", ModeWireless},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			assert.Equal(t, tt.want, ModeFromID(tt.id))
		})
	}
}

func TestDefaultName(t *testing.T) {
	assert.Equal(t, "192.168.1.50", DefaultName("192.168.1.50:5555"))
	assert.Equal(t, "R58M12ABCDE", DefaultName("R58M12ABCDE"))
}

func TestValidateDeviceID(t *testing.T) {
	valid := []string{"R58M12ABCDE", "192.168.1.50:5555", "emulator-5554"}
	for _, id := range valid {
		assert.NoError(t, ValidateDeviceID(id), id)
	}

	invalid := []string{"", "bad id", ":5555", "10.0.0.1:", "10.0.0.1:notaport", "10.0.0.1:70000"}
	for _, id := range invalid {
		err := ValidateDeviceID(id)
		require.Error(t, err, id)
		assert.ErrorIs(t, err, ErrInvalidDeviceID, id)
	}
}

func TestDevicePatchApplyLeavesAbsentFields(t *testing.T) {
	rec := NewDeviceRecord("192.168.1.50:5555")
	rec.Name = "lab phone"
	rec.ReconnectAttempts = 2

	online := StatusOnline
	patch := DevicePatch{Status: &online}
	patch.Apply(&rec)

	assert.Equal(t, StatusOnline, rec.Status)
	assert.Equal(t, "lab phone", rec.Name)
	assert.Equal(t, 2, rec.ReconnectAttempts)
	assert.Equal(t, ModeWireless, rec.Mode)
}

func TestBridgeDeviceStatus(t *testing.T) {
	assert.Equal(t, StatusOnline, BridgeDevice{ID: "abc", State: "device"}.Status())
	assert.Equal(t, StatusOffline, BridgeDevice{ID: "abc", State: "unauthorized"}.Status())
	assert.Equal(t, StatusOffline, BridgeDevice{ID: "abc", State: "offline"}.Status())
}

func TestParseDeviceStatus(t *testing.T) {
	assert.Equal(t, StatusOnline, ParseDeviceStatus("Online"))
	assert.Equal(t, StatusUnknown, ParseDeviceStatus("Error"))
	assert.Equal(t, StatusUnknown, ParseDeviceStatus(""))
}

func TestDurationJSON(t *testing.T) {
	var d Duration

	require.NoError(t, json.Unmarshal([]byte(`"10s"`), &d))
	assert.Equal(t, 10*time.Second, d.Std())

	require.NoError(t, json.Unmarshal([]byte(`2000000000`), &d))
	assert.Equal(t, 2*time.Second, d.Std())

	require.Error(t, json.Unmarshal([]byte(`true`), &d))

	out, err := json.Marshal(Duration(5 * time.Second))
	require.NoError(t, err)
	assert.JSONEq(t, `"5s"`, string(out))

	assert.Equal(t, time.Minute, Duration(0).Or(time.Minute))
}
