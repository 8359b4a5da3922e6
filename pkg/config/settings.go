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

package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/carverauto/devmirror/pkg/logger"
	"github.com/carverauto/devmirror/pkg/models"
)

const (
	DefaultSettingsPath = "scrcpy_config.json"
	DefaultProfilesPath = "profiles.json"
	DefaultDevicesPath  = "devices.json"
	DefaultPIDFile      = "devmirror.pids"

	DefaultPort       = 5555
	DefaultScanPrefix = "192.168.1"

	DefaultBitrate    = "8M"
	DefaultMaxSize    = "1440"
	DefaultFPS        = 60
	DefaultRecordPath = "recording.mp4"

	DefaultPollInterval      = 5 * time.Second
	DefaultProbeTimeout      = 2 * time.Second
	DefaultMaxAttempts       = 3
	DefaultReconnectInterval = 10 * time.Second
	DefaultScanDialTimeout   = 100 * time.Millisecond
	DefaultScanConnect       = 2 * time.Second
	DefaultScanConcurrency   = 16
	DefaultCommandTimeout    = 5 * time.Second
	DefaultModeSwitchDelay   = 1 * time.Second
	DefaultSuperviseInterval = 5 * time.Second
	DefaultStopGrace         = 3 * time.Second
	DefaultFollowUpDelay     = 2 * time.Second
)

var (
	errNegativeDuration = errors.New("duration must not be negative")
	errNegativeValue    = errors.New("value must not be negative")
	errInvalidPort      = errors.New("port must be in 1..65535")
)

// ReconnectConfig tunes the reconcile loop and its retry policy.
type ReconnectConfig struct {
	PollInterval models.Duration `json:"poll_interval"`
	ProbeTimeout models.Duration `json:"probe_timeout"`
	Interval     models.Duration `json:"interval"`
	MaxAttempts  int             `json:"max_attempts"`
}

// ScanConfig tunes the subnet scanner.
type ScanConfig struct {
	Prefix         string          `json:"prefix"`
	Port           int             `json:"port"`
	DialTimeout    models.Duration `json:"dial_timeout"`
	ConnectTimeout models.Duration `json:"connect_timeout"`
	Concurrency    int             `json:"concurrency"`
	// RateLimit caps probes per second; zero means unpaced.
	RateLimit float64 `json:"rate_limit"`
}

// SessionConfig tunes mirror session supervision.
type SessionConfig struct {
	SuperviseInterval models.Duration `json:"supervise_interval"`
	StopGrace         models.Duration `json:"stop_grace"`
	ModeSwitchDelay   models.Duration `json:"mode_switch_delay"`
	FollowUpDelay     models.Duration `json:"follow_up_delay"`
}

// Settings is the persisted controller configuration. The mirror defaults
// are embedded so the file keeps its flat keys (bitrate, fps, record, ...).
type Settings struct {
	ScrcpyPath string `json:"scrcpy_path"`
	AdbPath    string `json:"adb_path"`

	models.SessionOptions

	Wireless bool   `json:"wireless"`
	IP       string `json:"ip"`
	Port     int    `json:"port"`

	DevicesPath  string `json:"devices_path"`
	ProfilesPath string `json:"profiles_path"`
	PIDFile      string `json:"pid_file"`

	CommandTimeout models.Duration `json:"command_timeout"`
	Reconnect      ReconnectConfig `json:"reconnect"`
	Scan           ScanConfig      `json:"scan"`
	Session        SessionConfig   `json:"session"`

	Logging *logger.Config        `json:"logging"`
	Metrics *logger.MetricsConfig `json:"metrics"`

	// Profiles live in their own file.
	Profiles map[string]models.SessionOptions `json:"-"`
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	s := Settings{}
	s.applyDefaults()

	return s
}

// MirrorOptions returns the configured mirror defaults.
func (s *Settings) MirrorOptions() models.SessionOptions {
	return s.SessionOptions
}

// applyDefaults fills every zero-valued field with its default.
func (s *Settings) applyDefaults() {
	if s.Bitrate == "" {
		s.Bitrate = DefaultBitrate
	}

	if s.MaxSize == "" {
		s.MaxSize = DefaultMaxSize
	}

	if s.MaxFPS == 0 {
		s.MaxFPS = DefaultFPS
	}

	if s.RecordPath == "" {
		s.RecordPath = DefaultRecordPath
	}

	if s.Port == 0 {
		s.Port = DefaultPort
	}

	if s.DevicesPath == "" {
		s.DevicesPath = DefaultDevicesPath
	}

	if s.ProfilesPath == "" {
		s.ProfilesPath = DefaultProfilesPath
	}

	if s.PIDFile == "" {
		s.PIDFile = DefaultPIDFile
	}

	setDuration(&s.CommandTimeout, DefaultCommandTimeout)
	setDuration(&s.Reconnect.PollInterval, DefaultPollInterval)
	setDuration(&s.Reconnect.ProbeTimeout, DefaultProbeTimeout)
	setDuration(&s.Reconnect.Interval, DefaultReconnectInterval)

	if s.Reconnect.MaxAttempts == 0 {
		s.Reconnect.MaxAttempts = DefaultMaxAttempts
	}

	if s.Scan.Prefix == "" {
		s.Scan.Prefix = DefaultScanPrefix
	}

	if s.Scan.Port == 0 {
		s.Scan.Port = DefaultPort
	}

	setDuration(&s.Scan.DialTimeout, DefaultScanDialTimeout)
	setDuration(&s.Scan.ConnectTimeout, DefaultScanConnect)

	if s.Scan.Concurrency == 0 {
		s.Scan.Concurrency = DefaultScanConcurrency
	}

	setDuration(&s.Session.SuperviseInterval, DefaultSuperviseInterval)
	setDuration(&s.Session.StopGrace, DefaultStopGrace)
	setDuration(&s.Session.ModeSwitchDelay, DefaultModeSwitchDelay)
	setDuration(&s.Session.FollowUpDelay, DefaultFollowUpDelay)

	if s.Logging == nil {
		s.Logging = logger.DefaultConfig()
	} else {
		s.Logging.Fill()
	}

	if s.Metrics == nil {
		s.Metrics = &logger.MetricsConfig{}
	}

	if s.Profiles == nil {
		s.Profiles = make(map[string]models.SessionOptions)
	}
}

func setDuration(d *models.Duration, fallback time.Duration) {
	if *d == 0 {
		*d = models.Duration(fallback)
	}
}

// Validate rejects negative timings and out-of-range ports.
func (s *Settings) Validate() error {
	durations := map[string]models.Duration{
		"command_timeout":            s.CommandTimeout,
		"reconnect.poll_interval":    s.Reconnect.PollInterval,
		"reconnect.probe_timeout":    s.Reconnect.ProbeTimeout,
		"reconnect.interval":         s.Reconnect.Interval,
		"scan.dial_timeout":          s.Scan.DialTimeout,
		"scan.connect_timeout":       s.Scan.ConnectTimeout,
		"session.supervise_interval": s.Session.SuperviseInterval,
		"session.stop_grace":         s.Session.StopGrace,
		"session.mode_switch_delay":  s.Session.ModeSwitchDelay,
		"session.follow_up_delay":    s.Session.FollowUpDelay,
	}

	for name, d := range durations {
		if d < 0 {
			return fmt.Errorf("%s: %w", name, errNegativeDuration)
		}
	}

	ints := map[string]int{
		"reconnect.max_attempts": s.Reconnect.MaxAttempts,
		"scan.concurrency":       s.Scan.Concurrency,
		"fps":                    s.MaxFPS,
		"time_limit":             s.TimeLimit,
	}

	for name, v := range ints {
		if v < 0 {
			return fmt.Errorf("%s: %w", name, errNegativeValue)
		}
	}

	if s.Scan.RateLimit < 0 {
		return fmt.Errorf("scan.rate_limit: %w", errNegativeValue)
	}

	for name, port := range map[string]int{"port": s.Port, "scan.port": s.Scan.Port} {
		if port < 1 || port > 65535 {
			return fmt.Errorf("%s=%d: %w", name, port, errInvalidPort)
		}
	}

	return nil
}
