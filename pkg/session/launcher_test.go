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

package session

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/carverauto/devmirror/pkg/bridge"
	"github.com/carverauto/devmirror/pkg/logger"
	"github.com/carverauto/devmirror/pkg/models"
)

const usbID = "R58M123ABC"

var errProbe = errors.New("device offline")

type fakeProcess struct {
	pid        int
	ignoreTerm bool
	exit       chan struct{}
	once       sync.Once
	terminated atomic.Int32
	killed     atomic.Int32
}

func newFakeProcess(pid int, ignoreTerm bool) *fakeProcess {
	return &fakeProcess{pid: pid, ignoreTerm: ignoreTerm, exit: make(chan struct{})}
}

func (p *fakeProcess) Pid() int { return p.pid }

func (p *fakeProcess) Wait() error {
	<-p.exit
	return nil
}

func (p *fakeProcess) Terminate() error {
	p.terminated.Add(1)

	if !p.ignoreTerm {
		p.finish()
	}

	return nil
}

func (p *fakeProcess) Kill() error {
	p.killed.Add(1)
	p.finish()

	return nil
}

func (p *fakeProcess) finish() {
	p.once.Do(func() { close(p.exit) })
}

type startCall struct {
	path string
	args []string
}

type fakeStarter struct {
	mu         sync.Mutex
	err        error
	ignoreTerm bool
	calls      []startCall
	procs      []*fakeProcess
}

func (f *fakeStarter) Start(path string, args []string) (Process, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, startCall{path: path, args: args})

	if f.err != nil {
		return nil, f.err
	}

	p := newFakeProcess(1000+len(f.procs), f.ignoreTerm)
	f.procs = append(f.procs, p)

	return p, nil
}

func (f *fakeStarter) started() []startCall {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]startCall(nil), f.calls...)
}

func (f *fakeStarter) proc(i int) *fakeProcess {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.procs[i]
}

type starterFunc func(path string, args []string) (Process, error)

func (f starterFunc) Start(path string, args []string) (Process, error) { return f(path, args) }

type fakeController struct {
	mu        sync.Mutex
	devices   []models.DeviceRecord
	statuses  map[string][]models.DeviceStatus
	scheduled []time.Duration
}

func newFakeController(ids ...string) *fakeController {
	c := &fakeController{statuses: make(map[string][]models.DeviceStatus)}

	for _, id := range ids {
		c.devices = append(c.devices, models.NewDeviceRecord(id))
	}

	return c
}

func (c *fakeController) ReportStatus(id string, status models.DeviceStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.statuses[id] = append(c.statuses[id], status)
}

func (c *fakeController) SchedulePass(delay time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.scheduled = append(c.scheduled, delay)
}

func (c *fakeController) Devices() []models.DeviceRecord {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]models.DeviceRecord(nil), c.devices...)
}

func (c *fakeController) reported(id string) []models.DeviceStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]models.DeviceStatus(nil), c.statuses[id]...)
}

func (c *fakeController) lastStatus(id string) models.DeviceStatus {
	got := c.reported(id)
	if len(got) == 0 {
		return models.StatusUnknown
	}

	return got[len(got)-1]
}

// fakeMirror creates an executable file for the launcher to resolve.
func fakeMirror(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "scrcpy")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"), 0o755))

	return path
}

type harness struct {
	launcher *Launcher
	bridge   *bridge.MockBridge
	ctrl     *fakeController
	starter  *fakeStarter
	sleeps   []time.Duration
}

func newHarness(t *testing.T, cfg Config, ids ...string) *harness {
	t.Helper()

	mockCtrl := gomock.NewController(t)

	h := &harness{
		bridge:  bridge.NewMockBridge(mockCtrl),
		ctrl:    newFakeController(ids...),
		starter: &fakeStarter{},
	}

	if cfg.MirrorPath == "" {
		cfg.MirrorPath = fakeMirror(t)
	}

	if cfg.SuperviseInterval == 0 {
		cfg.SuperviseInterval = time.Hour
	}

	if cfg.StopGrace == 0 {
		cfg.StopGrace = 50 * time.Millisecond
	}

	h.launcher = NewLauncher(cfg, h.bridge, h.ctrl, h.starter, logger.NewTestLogger())
	h.launcher.sleep = func(_ context.Context, d time.Duration) error {
		h.sleeps = append(h.sleeps, d)
		return nil
	}

	t.Cleanup(func() {
		_ = h.launcher.StopAll(context.Background())
	})

	return h
}

func TestLaunchRequiresMirrorPath(t *testing.T) {
	mockCtrl := gomock.NewController(t)
	ctrl := newFakeController()

	l := NewLauncher(Config{}, bridge.NewMockBridge(mockCtrl), ctrl, &fakeStarter{}, nil)

	_, err := l.Launch(context.Background(), usbID, models.SessionOptions{})
	require.ErrorIs(t, err, ErrMirrorNotConfigured)

	l = NewLauncher(Config{MirrorPath: filepath.Join(t.TempDir(), "missing")},
		bridge.NewMockBridge(mockCtrl), ctrl, &fakeStarter{}, nil)

	_, err = l.Launch(context.Background(), usbID, models.SessionOptions{})
	require.ErrorIs(t, err, ErrMirrorNotConfigured)
	assert.Empty(t, ctrl.reported(usbID))
}

func TestLaunchInvalidDeviceID(t *testing.T) {
	h := newHarness(t, Config{})

	_, err := h.launcher.Launch(context.Background(), "bad id", models.SessionOptions{})

	require.ErrorIs(t, err, models.ErrInvalidDeviceID)
	assert.Equal(t, []models.DeviceStatus{models.StatusOffline}, h.ctrl.reported("bad id"))
	assert.Empty(t, h.starter.started())
}

func TestLaunchAndStop(t *testing.T) {
	pidPath := filepath.Join(t.TempDir(), "run", "devmirror.pids")
	h := newHarness(t, Config{PIDFile: pidPath})

	h.bridge.EXPECT().Probe(gomock.Any(), usbID).Return("ping", nil)

	s, err := h.launcher.Launch(context.Background(), usbID, models.SessionOptions{Bitrate: "4M"})
	require.NoError(t, err)

	assert.NotEmpty(t, s.ID)
	assert.Equal(t, usbID, s.DeviceID)
	assert.Equal(t, models.StatusOnline, h.ctrl.lastStatus(usbID))

	calls := h.starter.started()
	require.Len(t, calls, 1)
	assert.Equal(t, []string{"-s", usbID, "--video-bit-rate", "4M"}, calls[0].args)

	sessions := h.launcher.Sessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, s.PID(), sessions[0].PID)

	data, err := os.ReadFile(pidPath)
	require.NoError(t, err)
	assert.Equal(t, "owner "+strconv.Itoa(os.Getpid())+"\n1000 "+usbID+"\n", string(data))

	_, err = h.launcher.Launch(context.Background(), usbID, models.SessionOptions{})
	require.ErrorIs(t, err, ErrSessionRunning)

	require.NoError(t, h.launcher.Stop(context.Background(), usbID))

	assert.Equal(t, int32(1), h.starter.proc(0).terminated.Load())
	assert.Equal(t, int32(0), h.starter.proc(0).killed.Load())
	assert.Empty(t, h.launcher.Sessions())

	_, err = os.Stat(pidPath)
	assert.True(t, errors.Is(err, os.ErrNotExist))

	require.ErrorIs(t, h.launcher.Stop(context.Background(), usbID), ErrNoSession)
}

func TestLaunchUnreachable(t *testing.T) {
	h := newHarness(t, Config{})

	h.bridge.EXPECT().Probe(gomock.Any(), usbID).Return("", errProbe)

	_, err := h.launcher.Launch(context.Background(), usbID, models.SessionOptions{})

	require.ErrorIs(t, err, ErrDeviceUnreachable)
	assert.Equal(t, models.StatusOffline, h.ctrl.lastStatus(usbID))
	assert.Empty(t, h.starter.started())
	assert.Empty(t, h.launcher.Sessions())
}

func TestLaunchSpawnFailure(t *testing.T) {
	h := newHarness(t, Config{})
	h.starter.err = errors.New("exec format error")

	h.bridge.EXPECT().Probe(gomock.Any(), usbID).Return("ping", nil)

	_, err := h.launcher.Launch(context.Background(), usbID, models.SessionOptions{})

	require.ErrorIs(t, err, ErrSpawnFailed)
	assert.Equal(t, models.StatusOffline, h.ctrl.lastStatus(usbID))
	assert.Empty(t, h.launcher.Sessions())

	// the reservation is released after a failure
	h.starter.err = nil
	h.bridge.EXPECT().Probe(gomock.Any(), usbID).Return("ping", nil)

	_, err = h.launcher.Launch(context.Background(), usbID, models.SessionOptions{})
	require.NoError(t, err)
}

func TestWirelessLaunchSwitchesUSBDevice(t *testing.T) {
	const id = "192.168.1.50:5555"

	h := newHarness(t, Config{})

	gomock.InOrder(
		h.bridge.EXPECT().ListDevices(gomock.Any()).Return([]models.BridgeDevice{
			{ID: "EMULATOR1", State: "offline"},
			{ID: usbID, State: "device"},
		}, nil),
		h.bridge.EXPECT().SetTCPIP(gomock.Any(), usbID, 5555).Return(nil),
		h.bridge.EXPECT().Connect(gomock.Any(), id).Return("connected to "+id, nil),
		h.bridge.EXPECT().Probe(gomock.Any(), id).Return("ping", nil),
	)

	_, err := h.launcher.Launch(context.Background(), id, models.SessionOptions{})
	require.NoError(t, err)

	assert.Equal(t, []time.Duration{time.Second}, h.sleeps)
}

func TestWirelessLaunchUsesRequestedSerial(t *testing.T) {
	const id = "192.168.1.51:5556"

	h := newHarness(t, Config{})

	gomock.InOrder(
		h.bridge.EXPECT().ListDevices(gomock.Any()).Return([]models.BridgeDevice{
			{ID: usbID, State: "device"},
			{ID: "R58M999", State: "device"},
		}, nil),
		h.bridge.EXPECT().SetTCPIP(gomock.Any(), "R58M999", 5556).Return(nil),
		h.bridge.EXPECT().Connect(gomock.Any(), id).Return("", bridge.ErrConnectFailed),
		h.bridge.EXPECT().Probe(gomock.Any(), id).Return("", errProbe),
	)

	_, err := h.launcher.Launch(context.Background(), id, models.SessionOptions{USBSerial: "R58M999"})
	require.ErrorIs(t, err, ErrDeviceUnreachable)
}

func TestWirelessLaunchAlreadyOnline(t *testing.T) {
	const id = "192.168.1.50:5555"

	h := newHarness(t, Config{})

	h.bridge.EXPECT().ListDevices(gomock.Any()).Return([]models.BridgeDevice{{ID: id, State: "device"}}, nil)
	h.bridge.EXPECT().Probe(gomock.Any(), id).Return("ping", nil)

	_, err := h.launcher.Launch(context.Background(), id, models.SessionOptions{})
	require.NoError(t, err)

	assert.Empty(t, h.sleeps)
}

func TestLaunchAllIsolatesInvalidID(t *testing.T) {
	const invalid = "10.0.0.9:99999"

	h := newHarness(t, Config{}, usbID, invalid, "R58M999")

	h.bridge.EXPECT().Probe(gomock.Any(), usbID).Return("ping", nil)
	h.bridge.EXPECT().Probe(gomock.Any(), "R58M999").Return("", errProbe)

	results := h.launcher.LaunchAll(context.Background(), models.SessionOptions{Record: true, RecordPath: "rec.mp4"})

	require.Len(t, results, 3)
	assert.NoError(t, results[usbID])
	assert.ErrorIs(t, results[invalid], models.ErrInvalidDeviceID)
	assert.ErrorIs(t, results["R58M999"], ErrDeviceUnreachable)

	calls := h.starter.started()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].args, usbID+"_rec.mp4")

	assert.Equal(t, []time.Duration{2 * time.Second}, h.ctrl.scheduled)
	assert.Equal(t, models.StatusOffline, h.ctrl.lastStatus(invalid))
}

func TestRecordRefusedWhileRunning(t *testing.T) {
	h := newHarness(t, Config{Options: models.SessionOptions{Bitrate: "2M"}})

	h.bridge.EXPECT().Probe(gomock.Any(), usbID).Return("ping", nil).Times(2)

	_, err := h.launcher.Record(context.Background(), usbID, "capture.mp4")
	require.NoError(t, err)

	calls := h.starter.started()
	require.Len(t, calls, 1)
	assert.Equal(t, []string{"-s", usbID, "--record", "capture.mp4", "--video-bit-rate", "2M"}, calls[0].args)

	_, err = h.launcher.Record(context.Background(), usbID, "other.mp4")
	require.ErrorIs(t, err, ErrSessionRunning)

	require.NoError(t, h.launcher.Stop(context.Background(), usbID))

	_, err = h.launcher.Record(context.Background(), usbID, "")
	require.NoError(t, err)
	assert.Contains(t, h.starter.started()[1].args, "recording.mp4")
}

func TestSupervisionEndsUnreachableSession(t *testing.T) {
	h := newHarness(t, Config{SuperviseInterval: 10 * time.Millisecond})

	gomock.InOrder(
		h.bridge.EXPECT().Probe(gomock.Any(), usbID).Return("ping", nil),
		h.bridge.EXPECT().Probe(gomock.Any(), usbID).Return("", errProbe),
	)

	_, err := h.launcher.Launch(context.Background(), usbID, models.SessionOptions{})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(h.launcher.Sessions()) == 0
	}, 2*time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		return h.ctrl.lastStatus(usbID) == models.StatusOffline
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, int32(1), h.starter.proc(0).terminated.Load())
}

func TestSupervisionClearsExitedProcess(t *testing.T) {
	h := newHarness(t, Config{})

	h.bridge.EXPECT().Probe(gomock.Any(), usbID).Return("ping", nil)

	s, err := h.launcher.Launch(context.Background(), usbID, models.SessionOptions{})
	require.NoError(t, err)

	h.starter.proc(0).finish()

	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("process did not finish")
	}

	require.Eventually(t, func() bool {
		return len(h.launcher.Sessions()) == 0 && h.ctrl.lastStatus(usbID) == models.StatusOffline
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, []models.DeviceStatus{models.StatusOnline, models.StatusOffline}, h.ctrl.reported(usbID))
	assert.Equal(t, int32(0), h.starter.proc(0).terminated.Load())
}

func TestStopKillsAfterGrace(t *testing.T) {
	h := newHarness(t, Config{StopGrace: 20 * time.Millisecond})
	h.starter.ignoreTerm = true

	h.bridge.EXPECT().Probe(gomock.Any(), usbID).Return("ping", nil)

	_, err := h.launcher.Launch(context.Background(), usbID, models.SessionOptions{})
	require.NoError(t, err)

	require.NoError(t, h.launcher.Stop(context.Background(), usbID))

	p := h.starter.proc(0)
	assert.Equal(t, int32(1), p.terminated.Load())
	assert.Equal(t, int32(1), p.killed.Load())
}

func TestStopAll(t *testing.T) {
	h := newHarness(t, Config{})

	h.bridge.EXPECT().Probe(gomock.Any(), gomock.Any()).Return("ping", nil).Times(2)

	_, err := h.launcher.Launch(context.Background(), usbID, models.SessionOptions{})
	require.NoError(t, err)

	_, err = h.launcher.Launch(context.Background(), "R58M999", models.SessionOptions{})
	require.NoError(t, err)

	require.Len(t, h.launcher.Sessions(), 2)

	require.NoError(t, h.launcher.StopAll(context.Background()))

	assert.Empty(t, h.launcher.Sessions())
	assert.Equal(t, int32(1), h.starter.proc(0).terminated.Load())
	assert.Equal(t, int32(1), h.starter.proc(1).terminated.Load())
}

func TestStopAllWaitsForInFlightLaunch(t *testing.T) {
	h := newHarness(t, Config{})

	h.bridge.EXPECT().Probe(gomock.Any(), usbID).DoAndReturn(func(context.Context, string) (string, error) {
		time.Sleep(200 * time.Millisecond)
		return "ping", nil
	})

	type result struct {
		s   *Session
		err error
	}

	launched := make(chan result, 1)

	go func() {
		s, err := h.launcher.Launch(context.Background(), usbID, models.SessionOptions{})
		launched <- result{s: s, err: err}
	}()

	time.Sleep(50 * time.Millisecond)

	require.NoError(t, h.launcher.StopAll(context.Background()))

	var res result

	select {
	case res = <-launched:
	case <-time.After(time.Second):
		t.Fatal("in-flight launch did not return")
	}

	require.ErrorIs(t, res.err, ErrLauncherClosed)
	assert.Nil(t, res.s)
	assert.Empty(t, h.starter.started())
	assert.Empty(t, h.launcher.Sessions())

	_, err := h.launcher.Launch(context.Background(), "R58M999", models.SessionOptions{})
	require.ErrorIs(t, err, ErrLauncherClosed)
}

func TestStopAllStopsSessionSpawnedDuringShutdown(t *testing.T) {
	h := newHarness(t, Config{})

	gate := make(chan struct{})
	started := make(chan struct{})

	h.launcher.starter = starterFunc(func(path string, args []string) (Process, error) {
		close(started)
		<-gate

		return h.starter.Start(path, args)
	})

	h.bridge.EXPECT().Probe(gomock.Any(), usbID).Return("ping", nil)

	launched := make(chan error, 1)

	go func() {
		_, err := h.launcher.Launch(context.Background(), usbID, models.SessionOptions{})
		launched <- err
	}()

	<-started

	stopped := make(chan error, 1)

	go func() { stopped <- h.launcher.StopAll(context.Background()) }()

	time.Sleep(50 * time.Millisecond)
	close(gate)

	require.NoError(t, <-launched)
	require.NoError(t, <-stopped)

	assert.Empty(t, h.launcher.Sessions())
	assert.Equal(t, int32(1), h.starter.proc(0).terminated.Load())
}

func TestLaunchAllDoesNotSwitchUSBDevices(t *testing.T) {
	const id = "192.168.1.50:5555"

	h := newHarness(t, Config{}, usbID, id)

	h.bridge.EXPECT().ListDevices(gomock.Any()).Return([]models.BridgeDevice{{ID: usbID, State: "device"}}, nil)
	h.bridge.EXPECT().SetTCPIP(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
	h.bridge.EXPECT().Connect(gomock.Any(), id).Return("", bridge.ErrConnectFailed)
	h.bridge.EXPECT().Probe(gomock.Any(), usbID).Return("ping", nil)
	h.bridge.EXPECT().Probe(gomock.Any(), id).Return("", errProbe)

	results := h.launcher.LaunchAll(context.Background(), models.SessionOptions{})

	assert.NoError(t, results[usbID])
	assert.ErrorIs(t, results[id], ErrDeviceUnreachable)
	assert.Empty(t, h.sleeps)
	require.Len(t, h.starter.started(), 1)
}

func TestLaunchAllSwitchesRequestedSerial(t *testing.T) {
	const id = "192.168.1.50:5555"

	h := newHarness(t, Config{}, id)

	gomock.InOrder(
		h.bridge.EXPECT().ListDevices(gomock.Any()).Return([]models.BridgeDevice{{ID: usbID, State: "device"}}, nil),
		h.bridge.EXPECT().SetTCPIP(gomock.Any(), usbID, 5555).Return(nil),
		h.bridge.EXPECT().Connect(gomock.Any(), id).Return("connected to "+id, nil),
		h.bridge.EXPECT().Probe(gomock.Any(), id).Return("ping", nil),
	)

	results := h.launcher.LaunchAll(context.Background(), models.SessionOptions{USBSerial: usbID})

	assert.NoError(t, results[id])
	assert.Equal(t, []time.Duration{time.Second}, h.sleeps)
}

func TestSweepOrphansSkipsStaleEntries(t *testing.T) {
	pidPath := filepath.Join(t.TempDir(), "devmirror.pids")
	require.NoError(t, os.WriteFile(pidPath, []byte("not-a-pid\n4194000 R58M\n"), 0o600))

	h := newHarness(t, Config{PIDFile: pidPath})

	n, err := h.launcher.SweepOrphans(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	_, err = os.Stat(pidPath)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestSweepOrphansTerminatesMirrorProcess(t *testing.T) {
	sleepPath, err := exec.LookPath("sleep")
	if err != nil {
		t.Skip("sleep not available")
	}

	cmd := exec.Command(sleepPath, "30")
	require.NoError(t, cmd.Start())

	exited := make(chan struct{})

	go func() {
		_ = cmd.Wait()
		close(exited)
	}()

	t.Cleanup(func() { _ = cmd.Process.Kill() })

	pidPath := filepath.Join(t.TempDir(), "devmirror.pids")
	line := strings.Join([]string{strconv.Itoa(cmd.Process.Pid), usbID}, " ") + "\n"
	require.NoError(t, os.WriteFile(pidPath, []byte(line), 0o600))

	h := newHarness(t, Config{PIDFile: pidPath, MirrorPath: sleepPath})

	n, err := h.launcher.SweepOrphans(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	select {
	case <-exited:
	case <-time.After(5 * time.Second):
		t.Fatal("orphan was not terminated")
	}
}

func TestSweepOrphansLeavesLiveOwner(t *testing.T) {
	sleepPath, err := exec.LookPath("sleep")
	if err != nil {
		t.Skip("sleep not available")
	}

	cmd := exec.Command(sleepPath, "30")
	require.NoError(t, cmd.Start())

	t.Cleanup(func() {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
	})

	pid := strconv.Itoa(cmd.Process.Pid)
	pidPath := filepath.Join(t.TempDir(), "devmirror.pids")
	require.NoError(t, os.WriteFile(pidPath, []byte("owner "+pid+"\n"+pid+" "+usbID+"\n"), 0o600))

	h := newHarness(t, Config{PIDFile: pidPath, MirrorPath: sleepPath})

	n, err := h.launcher.SweepOrphans(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	data, err := os.ReadFile(pidPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "owner "+pid)
}

func TestStopRecordedSession(t *testing.T) {
	sleepPath, err := exec.LookPath("sleep")
	if err != nil {
		t.Skip("sleep not available")
	}

	cmd := exec.Command(sleepPath, "30")
	require.NoError(t, cmd.Start())

	exited := make(chan struct{})

	go func() {
		_ = cmd.Wait()
		close(exited)
	}()

	t.Cleanup(func() { _ = cmd.Process.Kill() })

	pidPath := filepath.Join(t.TempDir(), "devmirror.pids")
	require.NoError(t, os.WriteFile(pidPath, []byte(strconv.Itoa(cmd.Process.Pid)+" "+usbID+"\n"), 0o600))

	h := newHarness(t, Config{PIDFile: pidPath, MirrorPath: sleepPath})

	require.ErrorIs(t, h.launcher.Stop(context.Background(), "R58M999"), ErrNoSession)
	require.NoError(t, h.launcher.Stop(context.Background(), usbID))

	select {
	case <-exited:
	case <-time.After(5 * time.Second):
		t.Fatal("recorded session was not terminated")
	}
}

func TestMissingPIDFile(t *testing.T) {
	h := newHarness(t, Config{PIDFile: filepath.Join(t.TempDir(), "none.pids")})

	n, err := h.launcher.SweepOrphans(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestWirelessPort(t *testing.T) {
	assert.Equal(t, 5556, wirelessPort("10.0.0.2:5556", 5555))
	assert.Equal(t, 5555, wirelessPort("R58M", 5555))
	assert.Equal(t, 5555, wirelessPort("10.0.0.2:x", 5555))
}
