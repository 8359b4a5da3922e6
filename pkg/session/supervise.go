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
	"time"

	"github.com/carverauto/devmirror/pkg/metrics"
	"github.com/carverauto/devmirror/pkg/models"
)

// supervise re-probes the device while the session runs. An unreachable
// device ends the session; a process that exits on its own is cleared.
func (l *Launcher) supervise(s *Session) {
	defer l.wg.Done()

	ctx := context.Background()

	ticker := time.NewTicker(l.cfg.SuperviseInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			l.release(s)

			if s.stopping.Load() {
				return
			}

			l.logger.Warn().
				Err(s.exitErr).
				Str("device_id", s.DeviceID).
				Str("session_id", s.ID).
				Msg("Mirror process exited")

			l.ctrl.ReportStatus(s.DeviceID, models.StatusOffline)
			metrics.RecordSessionEnd(ctx, "exited")

			return
		case <-ticker.C:
			if s.stopping.Load() {
				continue
			}

			err := l.probe(ctx, s.DeviceID)
			if err == nil {
				continue
			}

			if !s.stopping.CompareAndSwap(false, true) {
				continue
			}

			l.logger.Warn().
				Err(err).
				Str("device_id", s.DeviceID).
				Str("session_id", s.ID).
				Msg("Device stopped answering, ending mirror session")

			if err := l.terminate(s); err != nil {
				l.logger.Error().Err(err).Str("device_id", s.DeviceID).Msg("Failed to stop mirror process")
			}

			l.release(s)
			l.ctrl.ReportStatus(s.DeviceID, models.StatusOffline)
			metrics.RecordSessionEnd(ctx, "unreachable")

			return
		}
	}
}
