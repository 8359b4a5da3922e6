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

	"github.com/carverauto/devmirror/pkg/models"
)

const subscriberBuffer = 64

// Subscribe streams status transitions until ctx is done or the reconciler
// stops. Slow subscribers miss events rather than stall the loop.
func (r *Reconciler) Subscribe(ctx context.Context) <-chan models.DeviceEvent {
	ch := make(chan models.DeviceEvent, subscriberBuffer)

	r.subsMu.Lock()
	select {
	case <-r.done:
		r.subsMu.Unlock()
		close(ch)

		return ch
	default:
	}

	r.subs[ch] = struct{}{}
	r.subsMu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
		case <-r.done:
		}

		r.unsubscribe(ch)
	}()

	return ch
}

func (r *Reconciler) unsubscribe(ch chan models.DeviceEvent) {
	r.subsMu.Lock()
	defer r.subsMu.Unlock()

	if _, ok := r.subs[ch]; ok {
		delete(r.subs, ch)
		close(ch)
	}
}

func (r *Reconciler) publish(ev models.DeviceEvent) {
	r.subsMu.Lock()
	defer r.subsMu.Unlock()

	for ch := range r.subs {
		select {
		case ch <- ev:
		default:
			r.logger.Debug().Str("device_id", ev.DeviceID).Msg("Dropping device event for slow subscriber")
		}
	}
}

func (r *Reconciler) closeSubscribers() {
	r.subsMu.Lock()
	defer r.subsMu.Unlock()

	for ch := range r.subs {
		close(ch)
	}

	r.subs = make(map[chan models.DeviceEvent]struct{})
}
