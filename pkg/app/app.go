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

// Package app wires the controller's components together and owns their
// lifetime.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/carverauto/devmirror/pkg/bridge"
	"github.com/carverauto/devmirror/pkg/config"
	"github.com/carverauto/devmirror/pkg/lifecycle"
	"github.com/carverauto/devmirror/pkg/logger"
	"github.com/carverauto/devmirror/pkg/reconciler"
	"github.com/carverauto/devmirror/pkg/registry"
	"github.com/carverauto/devmirror/pkg/scan"
	"github.com/carverauto/devmirror/pkg/session"
	"github.com/carverauto/devmirror/pkg/version"
)

const (
	serviceName     = "devmirror"
	teardownTimeout = 15 * time.Second
)

var errAlreadyRun = errors.New("app already run")

// Option overrides a dependency, mostly for tests.
type Option func(*options)

type options struct {
	bridge  bridge.Bridge
	starter session.Starter
	clock   reconciler.Clock
	logger  logger.Logger
}

// WithBridge replaces the adb client.
func WithBridge(b bridge.Bridge) Option {
	return func(o *options) { o.bridge = b }
}

// WithStarter replaces how mirror processes are started.
func WithStarter(s session.Starter) Option {
	return func(o *options) { o.starter = s }
}

// WithClock replaces the reconciler's clock.
func WithClock(c reconciler.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithLogger replaces the logger built from the settings.
func WithLogger(l logger.Logger) Option {
	return func(o *options) { o.logger = l }
}

// App holds every long-lived component.
type App struct {
	Store      *config.Store
	Settings   config.Settings
	Registry   *registry.DeviceRegistry
	Bridge     bridge.Bridge
	Scanner    *scan.Scanner
	Reconciler *reconciler.Reconciler
	Launcher   *session.Launcher

	logger logger.Logger
	closer interface{ Close() error }
	ran    bool
}

// New loads the settings at settingsPath and builds the components from them.
func New(ctx context.Context, settingsPath string, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	bootstrap := o.logger
	if bootstrap == nil {
		l, err := lifecycle.NewLoggerImpl(logger.DefaultConfig())
		if err != nil {
			return nil, fmt.Errorf("failed to initialize logger: %w", err)
		}

		bootstrap = l
	}

	store := config.NewStore(settingsPath, lifecycle.Component(bootstrap, "config"))
	settings := store.Load(ctx)

	a := &App{
		Store:    store,
		Settings: settings,
		logger:   o.logger,
	}

	if a.logger == nil {
		l, err := lifecycle.CreateComponentLogger(serviceName, settings.Logging)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize logger: %w", err)
		}

		a.logger = l
		a.closer = l
	}

	a.initMetrics(ctx)

	a.Registry = registry.NewDeviceRegistry(store.Resolve(settings.DevicesPath), lifecycle.Component(a.logger, "registry"))
	a.Registry.Load()

	a.Bridge = o.bridge
	if a.Bridge == nil {
		a.Bridge = bridge.NewADB(bridge.Config{
			Path:           settings.AdbPath,
			CommandTimeout: settings.CommandTimeout.Std(),
		}, nil, lifecycle.Component(a.logger, "bridge"))
	}

	a.Reconciler = reconciler.New(reconciler.Config{
		PollInterval:      settings.Reconnect.PollInterval.Std(),
		ProbeTimeout:      settings.Reconnect.ProbeTimeout.Std(),
		ReconnectInterval: settings.Reconnect.Interval.Std(),
		MaxAttempts:       settings.Reconnect.MaxAttempts,
		CommandTimeout:    settings.CommandTimeout.Std(),
	}, a.Bridge, a.Registry, o.clock, lifecycle.Component(a.logger, "reconciler"))

	a.Scanner = scan.NewScanner(scan.Config{
		DialTimeout:    settings.Scan.DialTimeout.Std(),
		ConnectTimeout: settings.Scan.ConnectTimeout.Std(),
		Concurrency:    settings.Scan.Concurrency,
		RateLimit:      settings.Scan.RateLimit,
	}, a.Bridge, lifecycle.Component(a.logger, "scanner"))

	a.Launcher = session.NewLauncher(session.Config{
		MirrorPath:        settings.ScrcpyPath,
		PIDFile:           store.Resolve(settings.PIDFile),
		Options:           settings.MirrorOptions(),
		WirelessPort:      settings.Port,
		ProbeTimeout:      settings.Reconnect.ProbeTimeout.Std(),
		SuperviseInterval: settings.Session.SuperviseInterval.Std(),
		StopGrace:         settings.Session.StopGrace.Std(),
		ModeSwitchDelay:   settings.Session.ModeSwitchDelay.Std(),
		FollowUpDelay:     settings.Session.FollowUpDelay.Std(),
	}, a.Bridge, a.Reconciler, o.starter, lifecycle.Component(a.logger, "session"))

	return a, nil
}

func (a *App) initMetrics(ctx context.Context) {
	if a.Settings.Metrics == nil {
		return
	}

	cfg := *a.Settings.Metrics
	if cfg.ServiceName == "" {
		cfg.ServiceName = serviceName
	}

	if _, err := logger.InitializeMetrics(ctx, &cfg); err != nil {
		if errors.Is(err, logger.ErrOTelMetricsDisabled) {
			a.logger.Debug().Msg("Metrics export disabled")
			return
		}

		a.logger.Warn().Err(err).Msg("Failed to initialize metrics export")
	}
}

// Logger returns the application logger.
func (a *App) Logger() logger.Logger {
	return a.logger
}

// Run sweeps orphaned mirror processes, starts the reconcile loop and runs
// fn. However fn ends, sessions are stopped, the loop is stopped and the
// registry and settings are written before Run returns. A panic in fn is
// re-raised after teardown.
func (a *App) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	if a.ran {
		return errAlreadyRun
	}

	a.ran = true

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.logger.Info().Str("version", version.GetFullVersion()).Msg("Starting devmirror")

	if n, err := a.Launcher.SweepOrphans(ctx); err != nil {
		a.logger.Warn().Err(err).Msg("Failed to sweep orphaned mirror processes")
	} else if n > 0 {
		a.logger.Info().Int("count", n).Msg("Swept orphaned mirror processes")
	}

	loopDone := make(chan error, 1)

	go func() {
		loopDone <- a.Reconciler.Run(ctx)
	}()

	defer func() {
		r := recover()

		a.teardown(cancel, loopDone)

		if r != nil {
			panic(r)
		}
	}()

	return fn(ctx)
}

func (a *App) teardown(cancel context.CancelFunc, loopDone <-chan error) {
	ctx, done := context.WithTimeout(context.Background(), teardownTimeout)
	defer done()

	if err := a.Launcher.StopAll(ctx); err != nil {
		a.logger.Warn().Err(err).Msg("Failed to stop every mirror session")
	}

	if err := a.Reconciler.Stop(ctx); err != nil {
		a.logger.Warn().Err(err).Msg("Reconciler did not stop cleanly")
	}

	cancel()

	select {
	case err := <-loopDone:
		if err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Warn().Err(err).Msg("Reconciler exited with error")
		}
	case <-ctx.Done():
		a.logger.Warn().Msg("Timed out waiting for reconciler to exit")
	}

	if err := a.Registry.Flush(); err != nil {
		a.logger.Error().Err(err).Msg("Failed to save device registry")
	}

	if err := a.Store.Save(); err != nil {
		a.logger.Error().Err(err).Msg("Failed to save settings")
	}

	if err := logger.ShutdownMetrics(ctx); err != nil {
		a.logger.Warn().Err(err).Msg("Failed to flush metrics")
	}
}

// Close releases the log output.
func (a *App) Close() error {
	if a.closer == nil {
		return nil
	}

	return a.closer.Close()
}
