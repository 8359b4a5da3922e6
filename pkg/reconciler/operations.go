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
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/carverauto/devmirror/pkg/models"
)

const defaultWirelessPort = 5555

// Reconnect resets the retry counter of a wireless device and attempts a
// bridge connect immediately.
func (r *Reconciler) Reconnect(ctx context.Context, id string) error {
	result := make(chan error, 1)

	err := r.call(ctx, func() error {
		rec, ok := r.store.Get(id)
		if !ok {
			return fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
		}

		if !rec.IsWireless() {
			return fmt.Errorf("%w: %s", ErrNotWireless, id)
		}

		if r.inflight[id] {
			return fmt.Errorf("%w: %s", ErrInFlight, id)
		}

		zero := 0
		r.store.Upsert(id, models.DevicePatch{ReconnectAttempts: &zero})

		r.logger.Info().Str("device_id", id).Msg("Manual reconnect requested")
		r.startReconnect(r.workCtx, id, r.clock.Now(), true, result)

		return nil
	})
	if err != nil {
		return err
	}

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-r.done:
		return ErrStopped
	}
}

// ReconnectAll manually reconnects every wireless device concurrently and
// returns the per-device outcome.
func (r *Reconciler) ReconnectAll(ctx context.Context) map[string]error {
	var (
		mu      sync.Mutex
		results = make(map[string]error)
		g       errgroup.Group
	)

	for _, rec := range r.Devices() {
		if !rec.IsWireless() {
			continue
		}

		id := rec.ID

		g.Go(func() error {
			err := r.Reconnect(ctx, id)

			mu.Lock()
			results[id] = err
			mu.Unlock()

			return nil
		})
	}

	_ = g.Wait()

	return results
}

// Disconnect detaches a device through the bridge and marks it Offline.
func (r *Reconciler) Disconnect(ctx context.Context, id string) error {
	if _, ok := r.store.Get(id); !ok {
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}

	if err := r.bridge.Disconnect(ctx, id); err != nil {
		return fmt.Errorf("disconnect %s: %w", id, err)
	}

	return r.call(ctx, func() error {
		r.setStatus(id, models.StatusOffline, models.DevicePatch{})
		r.flush()

		return nil
	})
}

// WirelessID appends the default bridge port to host when it has none.
func WirelessID(host string, port int) string {
	host = strings.TrimSpace(host)
	if strings.Contains(host, ":") {
		return host
	}

	if port <= 0 {
		port = defaultWirelessPort
	}

	return net.JoinHostPort(host, strconv.Itoa(port))
}

// ConnectAddress connects to host (with port appended when missing) and
// registers it Online on success.
func (r *Reconciler) ConnectAddress(ctx context.Context, host string, port int) (string, error) {
	id := WirelessID(host, port)

	if err := models.ValidateDeviceID(id); err != nil {
		return id, err
	}

	if _, err := r.bridge.Connect(ctx, id); err != nil {
		return id, err
	}

	return id, r.call(ctx, func() error {
		r.markConnected(id, r.clock.Now())
		r.flush()

		return nil
	})
}

// Discover records a device attached by a network scan. Repeated
// discoveries of the same id refresh its status and timestamp.
func (r *Reconciler) Discover(ctx context.Context, d models.Discovery) error {
	return r.call(ctx, func() error {
		seen := d.FoundAt
		if seen.IsZero() {
			seen = r.clock.Now()
		}

		r.markConnected(d.ID, seen)
		r.flush()

		return nil
	})
}

func (r *Reconciler) markConnected(id string, seen time.Time) {
	zero := 0
	r.setStatus(id, models.StatusOnline, models.DevicePatch{ReconnectAttempts: &zero, LastSeen: &seen})
}

// ReportStatus records a status observed outside the reconcile loop, such
// as a mirror session starting or dying. Unknown devices are only added
// when they are Online.
func (r *Reconciler) ReportStatus(id string, status models.DeviceStatus) {
	r.post(func() {
		if _, ok := r.store.Get(id); !ok && status != models.StatusOnline {
			return
		}

		var patch models.DevicePatch

		if status == models.StatusOnline {
			now := r.clock.Now()
			patch.LastSeen = &now
		}

		r.setStatus(id, status, patch)
		r.flush()
	})
}

// Remove forgets a device.
func (r *Reconciler) Remove(ctx context.Context, id string) error {
	return r.call(ctx, func() error {
		if !r.store.Remove(id) {
			return fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
		}

		delete(r.inflight, id)
		r.logger.Info().Str("device_id", id).Msg("Device removed")
		r.flush()

		return nil
	})
}

// Rename sets a device's display name; an empty name restores the default.
func (r *Reconciler) Rename(ctx context.Context, id, name string) error {
	return r.call(ctx, func() error {
		if err := r.store.Rename(id, name); err != nil {
			return err
		}

		r.flush()

		return nil
	})
}
