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
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/devmirror/pkg/models"
)

type fakeActions struct {
	mu       sync.Mutex
	devices  []models.DeviceRecord
	sessions []models.SessionInfo
	calls    []string
	err      error
}

func (f *fakeActions) Devices() []models.DeviceRecord {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]models.DeviceRecord(nil), f.devices...)
}

func (f *fakeActions) Sessions() []models.SessionInfo {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]models.SessionInfo(nil), f.sessions...)
}

func (f *fakeActions) record(verb, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, verb+" "+id)

	return f.err
}

func (f *fakeActions) Reconnect(_ context.Context, id string) error { return f.record("reconnect", id) }
func (f *fakeActions) Launch(_ context.Context, id string) error    { return f.record("launch", id) }
func (f *fakeActions) Stop(_ context.Context, id string) error      { return f.record("stop", id) }

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func newTestDashboard(events <-chan models.DeviceEvent) (*dashboard, *fakeActions) {
	actions := &fakeActions{devices: []models.DeviceRecord{
		models.NewDeviceRecord("R58M123ABC"),
		models.NewDeviceRecord("192.168.1.50:5555"),
	}}

	return newDashboard(context.Background(), actions, events), actions
}

func TestDashboardActionKeys(t *testing.T) {
	d, actions := newTestDashboard(nil)

	// rows are sorted, so the wireless device is selected first
	assert.Equal(t, "192.168.1.50:5555", d.selected())

	for _, k := range []string{"r", "l", "s"} {
		_, cmd := d.Update(key(k))
		require.NotNil(t, cmd, k)

		msg := cmd()
		_, _ = d.Update(msg)
	}

	assert.Equal(t, []string{
		"reconnect 192.168.1.50:5555",
		"launch 192.168.1.50:5555",
		"stop 192.168.1.50:5555",
	}, actions.calls)
	assert.Equal(t, "stopped 192.168.1.50:5555", d.status)
	assert.False(t, d.statusErr)
}

func TestDashboardActionFailure(t *testing.T) {
	d, actions := newTestDashboard(nil)
	actions.err = errors.New("device unreachable")

	_, cmd := d.Update(key("l"))
	_, _ = d.Update(cmd())

	assert.True(t, d.statusErr)
	assert.Contains(t, d.status, "device unreachable")
}

func TestDashboardCopy(t *testing.T) {
	d, _ := newTestDashboard(nil)

	var copied string

	d.copy = func(s string) error {
		copied = s
		return nil
	}

	_, cmd := d.Update(key("c"))
	assert.Nil(t, cmd)
	assert.Equal(t, "192.168.1.50:5555", copied)
	assert.Contains(t, d.status, "copied")

	d.copy = func(string) error { return errors.New("no clipboard") }

	_, _ = d.Update(key("c"))
	assert.True(t, d.statusErr)
}

func TestDashboardQuit(t *testing.T) {
	d, _ := newTestDashboard(nil)

	_, cmd := d.Update(key("q"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestDashboardNoSelection(t *testing.T) {
	d := newDashboard(context.Background(), &fakeActions{}, nil)

	_, cmd := d.Update(key("r"))
	assert.Nil(t, cmd)
	assert.True(t, d.statusErr)
}

func TestDashboardRefreshesOnEvent(t *testing.T) {
	events := make(chan models.DeviceEvent, 1)
	d, actions := newTestDashboard(events)

	actions.mu.Lock()
	actions.devices = append(actions.devices, models.NewDeviceRecord("R58M999"))
	actions.mu.Unlock()

	events <- models.DeviceEvent{
		DeviceID:  "R58M999",
		OldStatus: models.StatusUnknown,
		NewStatus: models.StatusOnline,
		Timestamp: time.Now(),
	}

	msg := waitForEvent(events)()
	_, cmd := d.Update(msg)

	assert.NotNil(t, cmd)
	assert.Len(t, d.table.Rows(), 3)
	assert.Contains(t, d.status, "R58M999")

	close(events)
	assert.Equal(t, eventsClosedMsg{}, waitForEvent(events)())
}

func TestDashboardView(t *testing.T) {
	d, _ := newTestDashboard(nil)

	view := d.View()
	assert.Contains(t, view, "devmirror")
	assert.Contains(t, view, "R58M123ABC")
	assert.Contains(t, view, "q quit")
}
