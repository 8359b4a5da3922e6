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
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shirou/gopsutil/v3/process"
)

// SweepOrphans terminates mirror processes that a crashed previous run
// recorded in the pid file. When the recorded owner is still alive the file
// is left to it and this launcher stops tracking pids. Recycled pids running
// something else are never touched. It returns how many processes were
// terminated.
func (l *Launcher) SweepOrphans(ctx context.Context) (int, error) {
	if l.cfg.PIDFile == "" {
		return 0, nil
	}

	owner, entries, err := readPIDFile(l.cfg.PIDFile)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}

	if err != nil {
		return 0, fmt.Errorf("read pid file: %w", err)
	}

	if owner > 0 && owner != os.Getpid() && l.alive(ctx, owner) {
		l.logger.Info().
			Int("owner", owner).
			Str("path", l.cfg.PIDFile).
			Msg("Another controller owns the pid file, not tracking mirror processes")
		l.pids.disable()

		return 0, nil
	}

	swept := 0

	for pid, id := range entries {
		if l.ownsPID(pid) {
			continue
		}

		proc, ok := l.mirrorProcess(ctx, pid)
		if !ok {
			continue
		}

		if err := proc.TerminateWithContext(ctx); err != nil {
			l.logger.Warn().Err(err).Int("pid", pid).Msg("Failed to terminate orphaned mirror process")
			continue
		}

		swept++

		l.logger.Info().Int("pid", pid).Str("device_id", id).Msg("Terminated orphaned mirror process")
	}

	if err := l.pids.rewrite(); err != nil {
		return swept, err
	}

	return swept, nil
}

// stopRecorded terminates a mirror process that another controller started
// for id, found through the pid file.
func (l *Launcher) stopRecorded(ctx context.Context, id string) error {
	if l.cfg.PIDFile == "" {
		return fmt.Errorf("%w: %s", ErrNoSession, id)
	}

	_, entries, err := readPIDFile(l.cfg.PIDFile)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrNoSession, id)
	}

	for pid, owner := range entries {
		if owner != id {
			continue
		}

		proc, ok := l.mirrorProcess(ctx, pid)
		if !ok {
			continue
		}

		if err := proc.TerminateWithContext(ctx); err != nil {
			return fmt.Errorf("terminate mirror process %d: %w", pid, err)
		}

		l.logger.Info().Int("pid", pid).Str("device_id", id).Msg("Stopped mirror process owned by another controller")

		return nil
	}

	return fmt.Errorf("%w: %s", ErrNoSession, id)
}

// mirrorProcess returns the process behind pid if it is still running the
// mirror client.
func (l *Launcher) mirrorProcess(ctx context.Context, pid int) (*process.Process, bool) {
	want := mirrorName(l.cfg.MirrorPath)
	if want == "" {
		return nil, false
	}

	proc, err := process.NewProcessWithContext(ctx, int32(pid)) //nolint:gosec // pids fit in int32
	if err != nil {
		return nil, false
	}

	name, err := proc.NameWithContext(ctx)
	if err != nil || mirrorName(name) != want {
		return nil, false
	}

	return proc, true
}

func (*Launcher) alive(ctx context.Context, pid int) bool {
	ok, err := process.PidExistsWithContext(ctx, int32(pid)) //nolint:gosec // pids fit in int32

	return err == nil && ok
}

func (l *Launcher) ownsPID(pid int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, s := range l.sessions {
		if s.PID() == pid {
			return true
		}
	}

	return false
}

func mirrorName(path string) string {
	base := filepath.Base(strings.TrimSpace(path))
	if base == "." || base == string(filepath.Separator) {
		return ""
	}

	return strings.TrimSuffix(strings.ToLower(base), ".exe")
}
