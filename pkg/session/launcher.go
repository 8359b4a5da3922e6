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

// Package session runs and supervises mirror client processes.
package session

import (
	"context"
	"fmt"
	"net"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/carverauto/devmirror/pkg/bridge"
	"github.com/carverauto/devmirror/pkg/logger"
	"github.com/carverauto/devmirror/pkg/metrics"
	"github.com/carverauto/devmirror/pkg/models"
)

const (
	defaultWirelessPort      = 5555
	defaultProbeTimeout      = 2 * time.Second
	defaultSuperviseInterval = 5 * time.Second
	defaultStopGrace         = 3 * time.Second
	defaultModeSwitchDelay   = 1 * time.Second
	defaultFollowUpDelay     = 2 * time.Second
)

// Controller is the part of the reconciler the launcher reports to.
type Controller interface {
	ReportStatus(id string, status models.DeviceStatus)
	SchedulePass(delay time.Duration)
	Devices() []models.DeviceRecord
}

// Config tunes the launcher.
type Config struct {
	MirrorPath string
	PIDFile    string
	// Options are used by Record.
	Options           models.SessionOptions
	WirelessPort      int
	ProbeTimeout      time.Duration
	SuperviseInterval time.Duration
	StopGrace         time.Duration
	ModeSwitchDelay   time.Duration
	FollowUpDelay     time.Duration
}

func (c *Config) applyDefaults() {
	if c.WirelessPort <= 0 {
		c.WirelessPort = defaultWirelessPort
	}

	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = defaultProbeTimeout
	}

	if c.SuperviseInterval <= 0 {
		c.SuperviseInterval = defaultSuperviseInterval
	}

	if c.StopGrace <= 0 {
		c.StopGrace = defaultStopGrace
	}

	if c.ModeSwitchDelay <= 0 {
		c.ModeSwitchDelay = defaultModeSwitchDelay
	}

	if c.FollowUpDelay <= 0 {
		c.FollowUpDelay = defaultFollowUpDelay
	}
}

// Session is one running mirror client.
type Session struct {
	ID        string
	DeviceID  string
	Options   models.SessionOptions
	StartedAt time.Time

	proc     Process
	done     chan struct{}
	exitErr  error
	stopping atomic.Bool
}

// PID returns the operating system process id.
func (s *Session) PID() int {
	return s.proc.Pid()
}

// Done is closed once the process has exited.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Info returns a read-only snapshot of the session.
func (s *Session) Info() models.SessionInfo {
	return models.SessionInfo{
		ID:        s.ID,
		DeviceID:  s.DeviceID,
		PID:       s.proc.Pid(),
		Options:   s.Options,
		StartedAt: s.StartedAt,
	}
}

// Launcher starts, supervises and stops mirror sessions, at most one per device.
type Launcher struct {
	cfg     Config
	bridge  bridge.Bridge
	ctrl    Controller
	starter Starter
	logger  logger.Logger
	pids    *pidFile

	// sleep waits between mode switch and connect.
	sleep func(ctx context.Context, d time.Duration) error

	mu        sync.Mutex
	idle      *sync.Cond
	closing   bool
	sessions  map[string]*Session
	launching map[string]struct{}
	wg        sync.WaitGroup
}

// NewLauncher creates a launcher. A nil starter uses ExecStarter.
func NewLauncher(cfg Config, b bridge.Bridge, ctrl Controller, starter Starter, log logger.Logger) *Launcher {
	cfg.applyDefaults()

	if starter == nil {
		starter = ExecStarter{}
	}

	if log == nil {
		log = logger.NewTestLogger()
	}

	l := &Launcher{
		cfg:       cfg,
		bridge:    b,
		ctrl:      ctrl,
		starter:   starter,
		logger:    log,
		pids:      newPIDFile(cfg.PIDFile),
		sleep:     sleepContext,
		sessions:  make(map[string]*Session),
		launching: make(map[string]struct{}),
	}
	l.idle = sync.NewCond(&l.mu)

	return l
}

// Launch starts a mirror session for one device.
func (l *Launcher) Launch(ctx context.Context, id string, opts models.SessionOptions) (*Session, error) {
	return l.launch(ctx, id, opts, false)
}

// Record starts a recording session with the configured options. It is
// refused while the device already has a session.
func (l *Launcher) Record(ctx context.Context, id, path string) (*Session, error) {
	if l.running(id) {
		return nil, fmt.Errorf("%w: %s", ErrSessionRunning, id)
	}

	opts := l.cfg.Options
	opts.Record = true

	if path != "" {
		opts.RecordPath = path
	}

	return l.launch(ctx, id, opts, false)
}

// LaunchAll starts a session for every known device concurrently and
// schedules a follow-up reconcile pass. One device failing never blocks
// the others.
func (l *Launcher) LaunchAll(ctx context.Context, opts models.SessionOptions) map[string]error {
	devices := l.ctrl.Devices()
	results := make(map[string]error, len(devices))

	var (
		mu sync.Mutex
		g  errgroup.Group
	)

	for _, rec := range devices {
		id := rec.ID

		g.Go(func() error {
			_, err := l.launch(ctx, id, opts, true)

			mu.Lock()
			results[id] = err
			mu.Unlock()

			return nil
		})
	}

	_ = g.Wait()

	l.ctrl.SchedulePass(l.cfg.FollowUpDelay)

	return results
}

func (l *Launcher) launch(ctx context.Context, id string, opts models.SessionOptions, bulk bool) (*Session, error) {
	path, err := l.mirrorPath()
	if err != nil {
		l.logger.Error().Err(err).Str("device_id", id).Msg("Cannot launch mirror session")

		return nil, err
	}

	if err := models.ValidateDeviceID(id); err != nil {
		l.logger.Warn().Err(err).Str("device_id", id).Msg("Refusing to launch mirror session")
		l.ctrl.ReportStatus(id, models.StatusOffline)

		return nil, err
	}

	if err := l.reserve(id); err != nil {
		return nil, err
	}
	defer l.unreserve(id)

	if models.ModeFromID(id) == models.ModeWireless {
		l.ensureWireless(ctx, id, opts.USBSerial, bulk)
	}

	if err := l.probe(ctx, id); err != nil {
		l.logger.Warn().Err(err).Str("device_id", id).Msg("Device did not answer before launch")
		l.ctrl.ReportStatus(id, models.StatusOffline)
		metrics.RecordSessionStart(ctx, false)

		return nil, fmt.Errorf("%w: %s: %w", ErrDeviceUnreachable, id, err)
	}

	if l.isClosing() {
		return nil, fmt.Errorf("%w: %s", ErrLauncherClosed, id)
	}

	args := BuildArgs(id, opts, bulk, l.logger)

	l.logger.Info().Str("device_id", id).Strs("args", args).Msg("Launching mirror session")

	proc, err := l.starter.Start(path, args)
	if err != nil {
		l.logger.Error().Err(err).Str("device_id", id).Msg("Failed to start mirror process")
		l.ctrl.ReportStatus(id, models.StatusOffline)
		metrics.RecordSessionStart(ctx, false)

		return nil, fmt.Errorf("%w: %s: %w", ErrSpawnFailed, id, err)
	}

	s := &Session{
		ID:        uuid.NewString(),
		DeviceID:  id,
		Options:   opts,
		StartedAt: time.Now(),
		proc:      proc,
		done:      make(chan struct{}),
	}

	go func() {
		s.exitErr = proc.Wait()
		close(s.done)
	}()

	l.mu.Lock()
	l.sessions[id] = s
	l.mu.Unlock()

	if err := l.pids.add(proc.Pid(), id); err != nil {
		l.logger.Warn().Err(err).Msg("Failed to record mirror process id")
	}

	l.ctrl.ReportStatus(id, models.StatusOnline)
	metrics.RecordSessionStart(ctx, true)

	l.logger.Info().
		Str("device_id", id).
		Str("session_id", s.ID).
		Int("pid", proc.Pid()).
		Msg("Mirror session started")

	l.wg.Add(1)

	go l.supervise(s)

	return s, nil
}

// mirrorPath resolves the configured mirror client binary.
func (l *Launcher) mirrorPath() (string, error) {
	path := strings.TrimSpace(l.cfg.MirrorPath)
	if path == "" {
		return "", ErrMirrorNotConfigured
	}

	resolved, err := exec.LookPath(path)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrMirrorNotConfigured, err)
	}

	return resolved, nil
}

func (l *Launcher) reserve(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closing {
		return fmt.Errorf("%w: %s", ErrLauncherClosed, id)
	}

	if _, ok := l.sessions[id]; ok {
		return fmt.Errorf("%w: %s", ErrSessionRunning, id)
	}

	if _, ok := l.launching[id]; ok {
		return fmt.Errorf("%w: %s", ErrSessionRunning, id)
	}

	l.launching[id] = struct{}{}

	return nil
}

func (l *Launcher) unreserve(id string) {
	l.mu.Lock()
	delete(l.launching, id)

	if len(l.launching) == 0 {
		l.idle.Broadcast()
	}
	l.mu.Unlock()
}

func (l *Launcher) isClosing() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.closing
}

func (l *Launcher) running(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, ok := l.sessions[id]

	return ok
}

// ensureWireless makes a best effort to bring a wireless target up before
// the probe decides. A USB device is switched into TCP/IP mode first when
// the target is not listed as online. Bulk launches only switch the serial
// named in the options.
func (l *Launcher) ensureWireless(ctx context.Context, id, usbSerial string, bulk bool) {
	devices, err := l.bridge.ListDevices(ctx)
	if err != nil {
		l.logger.Warn().Err(err).Msg("Failed to list devices before wireless launch")
	}

	for _, d := range devices {
		if d.ID == id && d.Status() == models.StatusOnline {
			return
		}
	}

	serial := usbSerial
	if serial == "" && !bulk {
		serial = firstUSB(devices)
	}

	if serial != "" {
		port := wirelessPort(id, l.cfg.WirelessPort)

		if err := l.bridge.SetTCPIP(ctx, serial, port); err != nil {
			l.logger.Warn().Err(err).Str("usb_serial", serial).Msg("Failed to switch device to TCP/IP mode")
		} else {
			l.logger.Info().Str("usb_serial", serial).Int("port", port).Msg("Switched device to TCP/IP mode")
		}

		if err := l.sleep(ctx, l.cfg.ModeSwitchDelay); err != nil {
			return
		}
	}

	if _, err := l.bridge.Connect(ctx, id); err != nil {
		l.logger.Warn().Err(err).Str("device_id", id).Msg("Wireless connect before launch failed")
	}
}

func (l *Launcher) probe(ctx context.Context, id string) error {
	pctx, cancel := context.WithTimeout(ctx, l.cfg.ProbeTimeout)
	defer cancel()

	_, err := l.bridge.Probe(pctx, id)

	return err
}

// Stop terminates the session for a device, killing it after the grace
// period. A session started by another controller is found through the pid
// file and terminated.
func (l *Launcher) Stop(ctx context.Context, id string) error {
	l.mu.Lock()
	s, ok := l.sessions[id]
	l.mu.Unlock()

	if !ok {
		return l.stopRecorded(ctx, id)
	}

	err := l.terminate(s)
	l.release(s)

	metrics.RecordSessionEnd(ctx, "stopped")

	l.logger.Info().Str("device_id", id).Str("session_id", s.ID).Msg("Mirror session stopped")

	return err
}

// StopAll stops every session concurrently and waits for supervision to end.
// New launches are refused from then on; launches already past their
// reservation are waited for and stopped with the rest.
func (l *Launcher) StopAll(ctx context.Context) error {
	l.mu.Lock()
	l.closing = true

	for len(l.launching) > 0 {
		l.idle.Wait()
	}

	ids := make([]string, 0, len(l.sessions))

	for id := range l.sessions {
		ids = append(ids, id)
	}
	l.mu.Unlock()

	var g errgroup.Group

	for _, id := range ids {
		g.Go(func() error {
			return l.Stop(ctx, id)
		})
	}

	err := g.Wait()

	l.wg.Wait()

	return err
}

// Sessions lists running sessions sorted by device id.
func (l *Launcher) Sessions() []models.SessionInfo {
	l.mu.Lock()
	out := make([]models.SessionInfo, 0, len(l.sessions))

	for _, s := range l.sessions {
		out = append(out, s.Info())
	}
	l.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].DeviceID < out[j].DeviceID })

	return out
}

// Session returns the running session for a device.
func (l *Launcher) Session(id string) (models.SessionInfo, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.sessions[id]
	if !ok {
		return models.SessionInfo{}, false
	}

	return s.Info(), true
}

// Handle returns the live session for a device.
func (l *Launcher) Handle(id string) (*Session, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.sessions[id]

	return s, ok
}

// terminate stops the process, escalating to kill after the grace period.
func (l *Launcher) terminate(s *Session) error {
	s.stopping.Store(true)

	if err := s.proc.Terminate(); err != nil {
		l.logger.Debug().Err(err).Int("pid", s.PID()).Msg("Terminate signal failed")
	}

	if waitDone(s.done, l.cfg.StopGrace) {
		return nil
	}

	l.logger.Warn().Int("pid", s.PID()).Str("device_id", s.DeviceID).Msg("Mirror process ignored terminate, killing")

	if err := s.proc.Kill(); err != nil {
		return fmt.Errorf("kill mirror process %d: %w", s.PID(), err)
	}

	if !waitDone(s.done, l.cfg.StopGrace) {
		return fmt.Errorf("%w: pid %d", errProcessStuck, s.PID())
	}

	return nil
}

// release clears the handle if it still belongs to s.
func (l *Launcher) release(s *Session) {
	l.mu.Lock()
	if cur, ok := l.sessions[s.DeviceID]; ok && cur == s {
		delete(l.sessions, s.DeviceID)
	}
	l.mu.Unlock()

	if err := l.pids.remove(s.PID()); err != nil {
		l.logger.Warn().Err(err).Msg("Failed to update pid file")
	}
}

func firstUSB(devices []models.BridgeDevice) string {
	for _, d := range devices {
		if d.Mode() == models.ModeUSB && d.Status() == models.StatusOnline {
			return d.ID
		}
	}

	return ""
}

func wirelessPort(id string, fallback int) int {
	_, portStr, err := net.SplitHostPort(id)
	if err != nil {
		return fallback
	}

	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 {
		return fallback
	}

	return port
}

func waitDone(done <-chan struct{}, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
