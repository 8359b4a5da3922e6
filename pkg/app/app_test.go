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

package app

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/carverauto/devmirror/pkg/bridge"
	"github.com/carverauto/devmirror/pkg/logger"
	"github.com/carverauto/devmirror/pkg/models"
)

const usbID = "R58M123ABC"

func writeSettings(t *testing.T, dir string, doc map[string]interface{}) string {
	t.Helper()

	data, err := json.Marshal(doc)
	require.NoError(t, err)

	path := filepath.Join(dir, "scrcpy_config.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	return path
}

func newTestApp(t *testing.T) (*App, *bridge.MockBridge, string) {
	t.Helper()

	dir := t.TempDir()
	path := writeSettings(t, dir, map[string]interface{}{
		"adb_path":  "/opt/platform-tools/adb",
		"bitrate":   "4M",
		"pid_file":  "run/devmirror.pids",
		"reconnect": map[string]interface{}{"poll_interval": "1h"},
	})

	b := bridge.NewMockBridge(gomock.NewController(t))

	a, err := New(context.Background(), path, WithBridge(b), WithLogger(logger.NewTestLogger()))
	require.NoError(t, err)

	return a, b, dir
}

func TestNewResolvesPathsAgainstSettings(t *testing.T) {
	a, _, dir := newTestApp(t)

	assert.Equal(t, "/opt/platform-tools/adb", a.Settings.AdbPath)
	assert.Equal(t, "4M", a.Settings.Bitrate)
	assert.Equal(t, filepath.Join(dir, "devices.json"), a.Registry.Path())
	assert.NotNil(t, a.Reconciler)
	assert.NotNil(t, a.Scanner)
	assert.NotNil(t, a.Launcher)
	assert.NoError(t, a.Close())
}

func TestRunFlushesOnReturn(t *testing.T) {
	a, b, dir := newTestApp(t)

	b.EXPECT().ListDevices(gomock.Any()).Return([]models.BridgeDevice{{ID: usbID, State: "device"}}, nil).AnyTimes()

	err := a.Run(context.Background(), func(ctx context.Context) error {
		return a.Reconciler.Reconcile(ctx)
	})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "devices.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), usbID)

	_, err = os.Stat(filepath.Join(dir, "profiles.json"))
	assert.NoError(t, err)

	require.ErrorIs(t, a.Run(context.Background(), func(context.Context) error { return nil }), errAlreadyRun)
}

func TestRunReturnsCallbackError(t *testing.T) {
	a, b, _ := newTestApp(t)

	b.EXPECT().ListDevices(gomock.Any()).Return(nil, nil).AnyTimes()

	boom := errors.New("boom")

	err := a.Run(context.Background(), func(context.Context) error { return boom })
	require.ErrorIs(t, err, boom)
}

func TestRunTearsDownAfterPanic(t *testing.T) {
	a, b, dir := newTestApp(t)

	b.EXPECT().ListDevices(gomock.Any()).Return([]models.BridgeDevice{{ID: usbID, State: "device"}}, nil).AnyTimes()

	assert.PanicsWithValue(t, "dashboard crashed", func() {
		_ = a.Run(context.Background(), func(ctx context.Context) error {
			require.NoError(t, a.Reconciler.Reconcile(ctx))
			panic("dashboard crashed")
		})
	})

	data, err := os.ReadFile(filepath.Join(dir, "devices.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), usbID)

	_, err = a.Reconciler.LastPass(context.Background())
	assert.Error(t, err)
}
