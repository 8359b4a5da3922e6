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

package registry

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/devmirror/pkg/logger"
	"github.com/carverauto/devmirror/pkg/models"
)

func statusPtr(s models.DeviceStatus) *models.DeviceStatus { return &s }

func TestLoadMissingFileIsEmpty(t *testing.T) {
	r := NewDeviceRegistry(filepath.Join(t.TempDir(), "devices.json"), logger.NewTestLogger())

	assert.Empty(t, r.Load())
	assert.Equal(t, 0, r.Len())
}

func TestRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "devices.json")
	r := NewDeviceRegistry(path, logger.NewTestLogger())

	seen := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	name := "Pixel"

	r.Upsert("192.168.1.77:5555", models.DevicePatch{Status: statusPtr(models.StatusOnline), LastSeen: &seen, Name: &name})
	r.Upsert("R58M123ABC", models.DevicePatch{Status: statusPtr(models.StatusOffline)})

	require.NoError(t, r.Flush())

	loaded := NewDeviceRegistry(path, logger.NewTestLogger()).Load()

	require.Len(t, loaded, 2)

	wifi := loaded["192.168.1.77:5555"]
	assert.Equal(t, "Pixel", wifi.Name)
	assert.Equal(t, models.StatusOnline, wifi.Status)
	assert.Equal(t, models.ModeWireless, wifi.Mode)
	assert.True(t, seen.Equal(wifi.LastSeen))

	usb := loaded["R58M123ABC"]
	assert.Equal(t, "R58M123ABC", usb.Name)
	assert.Equal(t, models.ModeUSB, usb.Mode)
	assert.Equal(t, models.StatusOffline, usb.Status)
}

func TestPersistedFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devices.json")
	r := NewDeviceRegistry(path, logger.NewTestLogger())

	r.Upsert("10.0.0.5:5555", models.DevicePatch{Status: statusPtr(models.StatusOnline)})
	require.NoError(t, r.Flush())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var raw map[string]map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))

	entry := raw["10.0.0.5:5555"]
	assert.Equal(t, "10.0.0.5", entry["name"])
	assert.Equal(t, "Online", entry["status"])
	assert.Equal(t, "wireless", entry["mode"])
	assert.NotContains(t, entry, "reconnect_attempts")
}

func TestConnectingIsNotPersisted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devices.json")
	r := NewDeviceRegistry(path, logger.NewTestLogger())

	r.Upsert("10.0.0.5:5555", models.DevicePatch{Status: statusPtr(models.StatusConnecting)})
	require.NoError(t, r.Flush())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "Connecting")

	loaded := NewDeviceRegistry(path, logger.NewTestLogger()).Load()
	assert.Equal(t, models.StatusOffline, loaded["10.0.0.5:5555"].Status)

	// files written before the status was filtered
	require.NoError(t, os.WriteFile(path, []byte(`{"R58M123ABC": {"status": "Connecting"}}`), 0o600))

	loaded = NewDeviceRegistry(path, logger.NewTestLogger()).Load()
	assert.Equal(t, models.StatusOffline, loaded["R58M123ABC"].Status)
}

func TestLegacyListMigration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devices.json")
	require.NoError(t, os.WriteFile(path, []byte(`["192.168.1.20:5555", "ABC123", ""]`), 0o600))

	loaded := NewDeviceRegistry(path, logger.NewTestLogger()).Load()

	require.Len(t, loaded, 2)
	assert.Equal(t, models.DeviceRecord{
		ID:     "192.168.1.20:5555",
		Name:   "192.168.1.20",
		Status: models.StatusUnknown,
		Mode:   models.ModeWireless,
	}, loaded["192.168.1.20:5555"])
	assert.Equal(t, models.ModeUSB, loaded["ABC123"].Mode)
}

func TestMalformedFileLogsOnceAndStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devices.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"broken": `), 0o600))

	var buf bytes.Buffer

	r := NewDeviceRegistry(path, logger.NewWriterLogger(&buf))

	assert.Empty(t, r.Load())
	assert.Equal(t, 1, strings.Count(buf.String(), `"level":"error"`))
}

func TestUpsertMergesFields(t *testing.T) {
	r := NewDeviceRegistry(filepath.Join(t.TempDir(), "devices.json"), nil)

	name := "Lab tablet"
	_, created := r.Upsert("192.168.1.9:5555", models.DevicePatch{Name: &name})
	assert.True(t, created)

	rec, created := r.Upsert("192.168.1.9:5555", models.DevicePatch{Status: statusPtr(models.StatusOnline)})
	assert.False(t, created)
	assert.Equal(t, "Lab tablet", rec.Name)
	assert.Equal(t, models.StatusOnline, rec.Status)
}

func TestRepeatedUpsertIsIdempotent(t *testing.T) {
	r := NewDeviceRegistry(filepath.Join(t.TempDir(), "devices.json"), nil)
	now := time.Now()

	for range 3 {
		r.Upsert("192.168.1.30:5555", models.DevicePatch{Status: statusPtr(models.StatusOnline), LastSeen: &now})
	}

	assert.Equal(t, 1, r.Len())
}

func TestListSortedAndSnapshotIsCopy(t *testing.T) {
	r := NewDeviceRegistry(filepath.Join(t.TempDir(), "devices.json"), nil)

	r.Upsert("b", models.DevicePatch{})
	r.Upsert("a", models.DevicePatch{})
	r.Upsert("c", models.DevicePatch{})

	list := r.List()
	require.Len(t, list, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{list[0].ID, list[1].ID, list[2].ID})

	snap := r.Snapshot()
	delete(snap, "a")

	_, ok := r.Get("a")
	assert.True(t, ok)
}

func TestRenameAndRemove(t *testing.T) {
	r := NewDeviceRegistry(filepath.Join(t.TempDir(), "devices.json"), nil)
	r.Upsert("192.168.1.9:5555", models.DevicePatch{})

	require.NoError(t, r.Rename("192.168.1.9:5555", "Bench"))

	rec, _ := r.Get("192.168.1.9:5555")
	assert.Equal(t, "Bench", rec.Name)

	require.NoError(t, r.Rename("192.168.1.9:5555", ""))

	rec, _ = r.Get("192.168.1.9:5555")
	assert.Equal(t, "192.168.1.9", rec.Name)

	require.ErrorIs(t, r.Rename("missing", "x"), ErrDeviceNotFound)

	assert.True(t, r.Remove("192.168.1.9:5555"))
	assert.False(t, r.Remove("192.168.1.9:5555"))
}

func TestExport(t *testing.T) {
	dir := t.TempDir()
	r := NewDeviceRegistry(filepath.Join(dir, "devices.json"), nil)
	r.Upsert("192.168.1.9:5555", models.DevicePatch{})

	out := filepath.Join(dir, "export.json")
	require.NoError(t, r.Export(out))
	require.Error(t, r.Export(""))

	loaded := NewDeviceRegistry(out, nil).Load()
	assert.Contains(t, loaded, "192.168.1.9:5555")
}

func TestSaveFailureLeavesMemoryIntact(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))

	r := NewDeviceRegistry(filepath.Join(blocker, "devices.json"), nil)
	r.Upsert("ABC", models.DevicePatch{})

	require.Error(t, r.Flush())
	assert.Equal(t, 1, r.Len())
}
