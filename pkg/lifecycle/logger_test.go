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

package lifecycle

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/carverauto/devmirror/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateComponentLoggerWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devmirror.log")

	log, err := CreateComponentLogger("reconciler", &logger.Config{Level: "info", Output: path})
	require.NoError(t, err)

	log.Info().Str("device_id", "192.168.1.50:5555").Msg("device online")
	log.Debug().Msg("filtered")
	require.NoError(t, log.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := bytes.Split(bytes.TrimSpace(data), []byte("\n"))
	require.Len(t, lines, 1)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "reconciler", entry["component"])
	assert.Equal(t, "device online", entry["message"])
}

func TestNewLoggerImplRejectsBadLevel(t *testing.T) {
	_, err := NewLoggerImpl(&logger.Config{Level: "loud", Output: "stderr"})
	assert.Error(t, err)
}

func TestDebugOverridesLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devmirror.log")

	log, err := NewLoggerImpl(&logger.Config{Level: "warn", Debug: true, Output: path})
	require.NoError(t, err)

	log.Debug().Msg("probe sent")
	require.NoError(t, log.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "probe sent")
}

func TestComponentFallsBackToNop(t *testing.T) {
	assert.NotNil(t, Component(nil, "scan"))
}
