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

// Package registry is the persistent, file-backed set of known devices.
package registry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/carverauto/devmirror/pkg/logger"
	"github.com/carverauto/devmirror/pkg/models"
)

const (
	DefaultPath = "devices.json"
	filePerm    = 0o644
	dirPerm     = 0o755
)

// storedDevice is the on-disk shape of one registry entry.
type storedDevice struct {
	Name     string                `json:"name"`
	Status   models.DeviceStatus   `json:"status"`
	Mode     models.ConnectionMode `json:"mode"`
	LastSeen *time.Time            `json:"last_seen,omitempty"`
}

// DeviceRegistry holds every known device keyed by id. Reads may come from
// any goroutine; mutations are expected from a single owner.
type DeviceRegistry struct {
	mu      sync.RWMutex
	path    string
	devices map[string]models.DeviceRecord
	logger  logger.Logger
}

// NewDeviceRegistry creates an empty registry persisted at path.
func NewDeviceRegistry(path string, log logger.Logger) *DeviceRegistry {
	if path == "" {
		path = DefaultPath
	}

	if log == nil {
		log = logger.NewTestLogger()
	}

	return &DeviceRegistry{
		path:    path,
		devices: make(map[string]models.DeviceRecord),
		logger:  log,
	}
}

// Path returns the backing file.
func (r *DeviceRegistry) Path() string {
	return r.path
}

// Load replaces the in-memory contents with the backing file and returns a
// copy. A missing file yields an empty registry. A malformed file yields an
// empty registry and one logged error.
func (r *DeviceRegistry) Load() map[string]models.DeviceRecord {
	devices := make(map[string]models.DeviceRecord)

	data, err := os.ReadFile(r.path)

	switch {
	case os.IsNotExist(err):
		r.logger.Debug().Str("path", r.path).Msg("Registry file not found, starting empty")
	case err != nil:
		r.logger.Error().Err(err).Str("path", r.path).Msg("Failed to read registry")
	default:
		parsed, perr := decode(data)
		if perr != nil {
			r.logger.Error().Err(perr).Str("path", r.path).Msg("Failed to parse registry, starting empty")
		} else {
			devices = parsed
		}
	}

	r.mu.Lock()
	r.devices = devices
	r.mu.Unlock()

	r.logger.Info().Int("devices", len(devices)).Str("path", r.path).Msg("Loaded device registry")

	return copyDevices(devices)
}

// Save writes devices to the backing file. Failure is reported but the
// in-memory registry is unaffected.
func (r *DeviceRegistry) Save(devices map[string]models.DeviceRecord) error {
	return writeFile(r.path, devices)
}

// Flush persists the current contents.
func (r *DeviceRegistry) Flush() error {
	return r.Save(r.Snapshot())
}

// Export writes the current contents to path in the registry format.
func (r *DeviceRegistry) Export(path string) error {
	if path == "" {
		return errEmptyExportPath
	}

	return writeFile(path, r.Snapshot())
}

// Upsert merges patch into the record for id, creating it with default
// metadata when absent. It returns the resulting record and whether it was created.
func (r *DeviceRegistry) Upsert(id string, patch models.DevicePatch) (models.DeviceRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.devices[id]
	if !ok {
		rec = models.NewDeviceRecord(id)
	}

	patch.Apply(&rec)
	r.devices[id] = rec

	return rec, !ok
}

// Get returns the record for id.
func (r *DeviceRegistry) Get(id string) (models.DeviceRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.devices[id]

	return rec, ok
}

// List returns all records sorted by id.
func (r *DeviceRegistry) List() []models.DeviceRecord {
	r.mu.RLock()
	out := make([]models.DeviceRecord, 0, len(r.devices))

	for _, rec := range r.devices {
		out = append(out, rec)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	return out
}

// Snapshot returns a copy of the registry map.
func (r *DeviceRegistry) Snapshot() map[string]models.DeviceRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return copyDevices(r.devices)
}

// Len returns the number of known devices.
func (r *DeviceRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.devices)
}

// Remove deletes id, reporting whether it was present.
func (r *DeviceRegistry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.devices[id]; !ok {
		return false
	}

	delete(r.devices, id)

	return true
}

// Rename sets the display name of id.
func (r *DeviceRegistry) Rename(id, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.devices[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}

	if name == "" {
		name = models.DefaultName(id)
	}

	rec.Name = name
	r.devices[id] = rec

	return nil
}

func copyDevices(src map[string]models.DeviceRecord) map[string]models.DeviceRecord {
	dst := make(map[string]models.DeviceRecord, len(src))
	for id, rec := range src {
		dst[id] = rec
	}

	return dst
}

// decode accepts the current object format and the legacy list of ids.
func decode(data []byte) (map[string]models.DeviceRecord, error) {
	data = bytes.TrimSpace(data)
	devices := make(map[string]models.DeviceRecord)

	if len(data) == 0 {
		return devices, nil
	}

	switch data[0] {
	case '[':
		var ids []string
		if err := json.Unmarshal(data, &ids); err != nil {
			return nil, fmt.Errorf("legacy registry: %w", err)
		}

		for _, id := range ids {
			if id == "" {
				continue
			}

			devices[id] = models.NewDeviceRecord(id)
		}
	case '{':
		var stored map[string]storedDevice
		if err := json.Unmarshal(data, &stored); err != nil {
			return nil, fmt.Errorf("registry: %w", err)
		}

		for id, s := range stored {
			rec := models.NewDeviceRecord(id)
			if s.Name != "" {
				rec.Name = s.Name
			}

			rec.Status = storedStatus(models.ParseDeviceStatus(string(s.Status)))
			if s.LastSeen != nil {
				rec.LastSeen = *s.LastSeen
			}

			devices[id] = rec
		}
	default:
		return nil, errUnknownFormat
	}

	return devices, nil
}

func encode(devices map[string]models.DeviceRecord) ([]byte, error) {
	stored := make(map[string]storedDevice, len(devices))

	for id, rec := range devices {
		s := storedDevice{
			Name:   rec.Name,
			Status: storedStatus(rec.Status),
			Mode:   models.ModeFromID(id),
		}

		if !rec.LastSeen.IsZero() {
			seen := rec.LastSeen.UTC()
			s.LastSeen = &seen
		}

		stored[id] = s
	}

	return json.MarshalIndent(stored, "", "  ")
}

// storedStatus drops the transient Connecting state; no connect attempt
// survives a restart.
func storedStatus(status models.DeviceStatus) models.DeviceStatus {
	if status == models.StatusConnecting {
		return models.StatusOffline
	}

	return status
}

func writeFile(path string, devices map[string]models.DeviceRecord) error {
	data, err := encode(devices)
	if err != nil {
		return fmt.Errorf("failed to encode registry: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("failed to create registry directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)

		return fmt.Errorf("failed to write registry: %w", err)
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)

		return fmt.Errorf("failed to close registry: %w", err)
	}

	if err := os.Chmod(tmpName, filePerm); err != nil {
		_ = os.Remove(tmpName)

		return fmt.Errorf("failed to chmod registry: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)

		return fmt.Errorf("failed to replace registry: %w", err)
	}

	return nil
}
