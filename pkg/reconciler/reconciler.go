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

// Package reconciler keeps the device registry in step with what the bridge
// reports. One coordinator goroutine owns every registry write, retry
// counter and in-flight flag; blocking bridge calls run on workers that
// hand their results back to it.
package reconciler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/carverauto/devmirror/pkg/bridge"
	"github.com/carverauto/devmirror/pkg/logger"
	"github.com/carverauto/devmirror/pkg/models"
)

const (
	defaultPollInterval      = 5 * time.Second
	defaultProbeTimeout      = 2 * time.Second
	defaultReconnectInterval = 10 * time.Second
	defaultMaxAttempts       = 3
	defaultCommandTimeout    = 5 * time.Second
	updateQueueSize          = 64
)

// Config tunes the reconcile loop. Zero values take the defaults.
type Config struct {
	PollInterval      time.Duration
	ProbeTimeout      time.Duration
	ReconnectInterval time.Duration
	MaxAttempts       int
	CommandTimeout    time.Duration
}

func (c *Config) applyDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}

	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = defaultProbeTimeout
	}

	if c.ReconnectInterval <= 0 {
		c.ReconnectInterval = defaultReconnectInterval
	}

	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaultMaxAttempts
	}

	if c.CommandTimeout <= 0 {
		c.CommandTimeout = defaultCommandTimeout
	}
}

// Reconciler is the controller's single writer of device state.
type Reconciler struct {
	config Config
	bridge bridge.Bridge
	store  Store
	clock  Clock
	logger logger.Logger

	updates   chan func()
	done      chan struct{}
	exited    chan struct{}
	closeOnce sync.Once
	running   atomic.Bool
	wg        sync.WaitGroup

	// Owned by the coordinator goroutine.
	workCtx      context.Context
	inflight     map[string]bool
	passRunning  bool
	pending      int
	rerun        bool
	waiters      []chan struct{}
	nextWaiters  []chan struct{}
	lastPassTime time.Time

	subsMu sync.Mutex
	subs   map[chan models.DeviceEvent]struct{}
}

// New creates a Reconciler. A nil clock uses the wall clock.
func New(cfg Config, b bridge.Bridge, store Store, clock Clock, log logger.Logger) *Reconciler {
	cfg.applyDefaults()

	if clock == nil {
		clock = realClock{}
	}

	if log == nil {
		log = logger.NewTestLogger()
	}

	return &Reconciler{
		config:   cfg,
		bridge:   b,
		store:    store,
		clock:    clock,
		logger:   log,
		updates:  make(chan func(), updateQueueSize),
		done:     make(chan struct{}),
		exited:   make(chan struct{}),
		workCtx:  context.Background(),
		inflight: make(map[string]bool),
		subs:     make(map[chan models.DeviceEvent]struct{}),
	}
}

// Run drives the reconcile loop until ctx is cancelled or Stop is called.
// It runs one pass immediately and then one per poll interval.
func (r *Reconciler) Run(ctx context.Context) error {
	r.running.Store(true)
	defer close(r.exited)

	workCtx, cancel := context.WithCancel(ctx)
	r.workCtx = workCtx

	ticker := r.clock.Ticker(r.config.PollInterval)

	defer func() {
		ticker.Stop()
		r.closeOnce.Do(func() { close(r.done) })
		cancel()
		r.wg.Wait()
		r.flush()
		r.closeSubscribers()
		r.logger.Info().Msg("Reconciler stopped")
	}()

	r.logger.Info().Dur("interval", r.config.PollInterval).Msg("Starting reconciler")

	r.startPass()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.done:
			return nil
		case <-ticker.Chan():
			if r.passRunning {
				r.logger.Debug().Msg("Previous pass still running, skipping tick")

				continue
			}

			r.startPass()
		case fn := <-r.updates:
			fn()
		}
	}
}

// Stop ends the loop and waits for in-flight workers to drain.
func (r *Reconciler) Stop(ctx context.Context) error {
	r.closeOnce.Do(func() { close(r.done) })

	if !r.running.Load() {
		return nil
	}

	select {
	case <-r.exited:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// post hands fn to the coordinator without waiting for it to run.
func (r *Reconciler) post(fn func()) {
	select {
	case r.updates <- fn:
	case <-r.done:
	}
}

// call runs fn on the coordinator and returns its error.
func (r *Reconciler) call(ctx context.Context, fn func() error) error {
	errCh := make(chan error, 1)

	select {
	case r.updates <- func() { errCh <- fn() }:
	case <-ctx.Done():
		return ctx.Err()
	case <-r.done:
		return ErrStopped
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-r.done:
		return ErrStopped
	}
}

// spawn runs fn on a tracked worker goroutine.
func (r *Reconciler) spawn(fn func()) {
	r.wg.Add(1)

	go func() {
		defer r.wg.Done()

		fn()
	}()
}

func (r *Reconciler) flush() {
	if err := r.store.Flush(); err != nil {
		r.logger.Error().Err(err).Msg("Failed to save device registry")
	}
}

// Reconcile runs a pass and waits for it to finish. When a pass is already
// running, it waits for a fresh pass that starts after the current one.
func (r *Reconciler) Reconcile(ctx context.Context) error {
	wait := make(chan struct{})

	if err := r.call(ctx, func() error {
		r.requestPass(wait)

		return nil
	}); err != nil {
		return err
	}

	select {
	case <-wait:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-r.done:
		return ErrStopped
	}
}

// SchedulePass requests a pass after delay. The request is dropped if the
// loop stops first.
func (r *Reconciler) SchedulePass(delay time.Duration) {
	fire := r.clock.After(delay)

	go func() {
		select {
		case <-fire:
			r.post(func() { r.requestPass(nil) })
		case <-r.done:
		}
	}()
}

func (r *Reconciler) requestPass(wait chan struct{}) {
	if !r.passRunning {
		if wait != nil {
			r.waiters = append(r.waiters, wait)
		}

		r.startPass()

		return
	}

	r.rerun = true

	if wait != nil {
		r.nextWaiters = append(r.nextWaiters, wait)
	}
}

// Devices returns every known device sorted by id.
func (r *Reconciler) Devices() []models.DeviceRecord {
	return r.store.List()
}

// Device returns one known device.
func (r *Reconciler) Device(id string) (models.DeviceRecord, bool) {
	return r.store.Get(id)
}

// LastPass returns when the most recent pass finished.
func (r *Reconciler) LastPass(ctx context.Context) (time.Time, error) {
	var t time.Time

	err := r.call(ctx, func() error {
		t = r.lastPassTime

		return nil
	})

	return t, err
}

// setStatus records status for id and applies the transition rules: an
// event for every change, a log line only when Online/Offline differs from
// the last logged value.
func (r *Reconciler) setStatus(id string, status models.DeviceStatus, patch models.DevicePatch) models.DeviceRecord {
	before, existed := r.store.Get(id)

	patch.Status = &status
	rec, _ := r.store.Upsert(id, patch)

	if !existed || before.Status != status {
		r.publish(models.DeviceEvent{
			DeviceID:  id,
			OldStatus: before.Status,
			NewStatus: status,
			Timestamp: r.clock.Now(),
		})
	}

	if status != models.StatusOnline && status != models.StatusOffline {
		return rec
	}

	if rec.LastStatus == status {
		return rec
	}

	rec, _ = r.store.Upsert(id, models.DevicePatch{LastStatus: &status})

	if status == models.StatusOnline {
		r.logger.Info().Str("device_id", id).Str("mode", string(rec.Mode)).Msg("Device online")
	} else {
		r.logger.Warn().Str("device_id", id).Str("mode", string(rec.Mode)).Msg("Device offline")
	}

	return rec
}
