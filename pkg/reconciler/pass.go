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

package reconciler

import (
	"context"
	"time"

	"github.com/carverauto/devmirror/pkg/metrics"
	"github.com/carverauto/devmirror/pkg/models"
)

// startPass lists the bridge's devices on a worker. The pass ends when the
// listing, every probe it starts and every reconnect those probes trigger
// have reported back.
func (r *Reconciler) startPass() {
	r.passRunning = true
	r.pending = 1

	ctx := r.workCtx

	r.spawn(func() {
		listCtx, cancel := context.WithTimeout(ctx, r.config.CommandTimeout)
		devices, err := r.bridge.ListDevices(listCtx)
		cancel()

		r.post(func() {
			defer r.workDone()

			r.applyListing(ctx, devices, err)
		})
	})
}

func (r *Reconciler) workDone() {
	r.pending--
	if r.pending > 0 {
		return
	}

	r.passRunning = false
	r.lastPassTime = r.clock.Now()
	r.flush()

	for _, w := range r.waiters {
		close(w)
	}

	r.waiters = nil

	if r.rerun {
		r.rerun = false
		r.waiters = r.nextWaiters
		r.nextWaiters = nil
		r.startPass()
	}
}

func (r *Reconciler) applyListing(ctx context.Context, devices []models.BridgeDevice, err error) {
	if err != nil {
		r.logger.Warn().Err(err).Msg("Failed to list bridge devices")
		r.markUSBOffline()
	} else {
		r.applyVisible(devices)
	}

	for _, rec := range r.store.List() {
		if !rec.IsWireless() || r.inflight[rec.ID] {
			continue
		}

		r.startProbe(ctx, rec.ID)
	}
}

// markUSBOffline treats an unreachable bridge like an empty listing: no USB
// device can be confirmed.
func (r *Reconciler) markUSBOffline() {
	for _, rec := range r.store.List() {
		if rec.Mode == models.ModeUSB {
			r.setStatus(rec.ID, models.StatusOffline, models.DevicePatch{})
		}
	}
}

// applyVisible takes USB status from the bridge listing and makes sure every
// listed wireless endpoint is known. Known USB devices missing from the
// listing are Offline.
func (r *Reconciler) applyVisible(devices []models.BridgeDevice) {
	now := r.clock.Now()
	visible := make(map[string]bool, len(devices))

	for _, d := range devices {
		visible[d.ID] = true

		if d.Mode() != models.ModeUSB {
			if _, ok := r.store.Get(d.ID); !ok {
				r.store.Upsert(d.ID, models.DevicePatch{})
			}

			continue
		}

		var patch models.DevicePatch
		if d.Status() == models.StatusOnline {
			patch.LastSeen = &now
		}

		r.setStatus(d.ID, d.Status(), patch)
	}

	for _, rec := range r.store.List() {
		if rec.Mode == models.ModeUSB && !visible[rec.ID] {
			r.setStatus(rec.ID, models.StatusOffline, models.DevicePatch{})
		}
	}
}

func (r *Reconciler) startProbe(ctx context.Context, id string) {
	r.inflight[id] = true
	r.pending++

	r.spawn(func() {
		start := time.Now()

		probeCtx, cancel := context.WithTimeout(ctx, r.config.ProbeTimeout)
		_, err := r.bridge.Probe(probeCtx, id)
		cancel()

		metrics.RecordProbe(ctx, err == nil, time.Since(start))

		r.post(func() {
			defer r.workDone()

			r.applyProbe(ctx, id, err)
		})
	})
}

func (r *Reconciler) applyProbe(ctx context.Context, id string, err error) {
	if _, ok := r.store.Get(id); !ok {
		delete(r.inflight, id)

		return
	}

	now := r.clock.Now()

	if err == nil {
		delete(r.inflight, id)
		r.setStatus(id, models.StatusOnline, models.DevicePatch{LastSeen: &now})

		return
	}

	r.logger.Debug().Err(err).Str("device_id", id).Msg("Liveness probe failed")

	rec := r.setStatus(id, models.StatusOffline, models.DevicePatch{})

	if !r.shouldRetry(&rec, now) {
		delete(r.inflight, id)

		return
	}

	r.pending++
	r.startReconnect(ctx, id, now, false, nil)
}

// shouldRetry gates automatic reconnects on the attempt cap and the
// minimum spacing between attempts.
func (r *Reconciler) shouldRetry(rec *models.DeviceRecord, now time.Time) bool {
	if rec.ReconnectAttempts >= r.config.MaxAttempts {
		return false
	}

	if since := now.Sub(rec.LastReconnectTime); since < r.config.ReconnectInterval {
		r.logger.Debug().Str("device_id", rec.ID).Dur("since_last", since).Msg("Reconnect deferred")

		return false
	}

	return true
}

// startReconnect marks id Connecting and calls the bridge on a worker. An
// automatic attempt counts toward the current pass; a manual one reports
// to result instead.
func (r *Reconciler) startReconnect(ctx context.Context, id string, now time.Time, manual bool, result chan<- error) {
	r.inflight[id] = true
	r.setStatus(id, models.StatusConnecting, models.DevicePatch{LastReconnectTime: &now})

	r.spawn(func() {
		connectCtx, cancel := context.WithTimeout(ctx, r.config.CommandTimeout)
		out, err := r.bridge.Connect(connectCtx, id)
		cancel()

		metrics.RecordReconnect(ctx, err == nil, manual)

		r.post(func() {
			r.applyReconnect(id, out, err)

			if manual {
				r.flush()
				result <- err

				return
			}

			r.workDone()
		})
	})
}

func (r *Reconciler) applyReconnect(id, output string, err error) {
	delete(r.inflight, id)

	rec, ok := r.store.Get(id)
	if !ok {
		return
	}

	now := r.clock.Now()

	if err == nil {
		zero := 0
		r.setStatus(id, models.StatusOnline, models.DevicePatch{ReconnectAttempts: &zero, LastSeen: &now})
		r.logger.Info().Str("device_id", id).Str("output", output).Msg("Reconnected device")

		return
	}

	attempts := min(rec.ReconnectAttempts+1, r.config.MaxAttempts)
	r.setStatus(id, models.StatusOffline, models.DevicePatch{ReconnectAttempts: &attempts})

	r.logger.Debug().Err(err).Str("device_id", id).Int("attempts", attempts).Msg("Reconnect attempt failed")

	if attempts >= r.config.MaxAttempts && rec.ReconnectAttempts < r.config.MaxAttempts {
		r.logger.Warn().Str("device_id", id).Int("attempts", attempts).Msg("max reconnect attempts reached")
	}
}
