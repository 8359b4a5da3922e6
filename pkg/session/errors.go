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

import "errors"

var (
	// ErrMirrorNotConfigured is returned when the mirror client path is unset or missing.
	ErrMirrorNotConfigured = errors.New("mirror client path not configured")
	// ErrSessionRunning is returned when a session or launch is already active for a device.
	ErrSessionRunning = errors.New("session already running")
	// ErrDeviceUnreachable is returned when the pre-launch probe fails.
	ErrDeviceUnreachable = errors.New("device unreachable")
	// ErrSpawnFailed is returned when the mirror process cannot be started.
	ErrSpawnFailed = errors.New("failed to start mirror process")
	// ErrNoSession is returned when stopping a device that has no session.
	ErrNoSession = errors.New("no session for device")
	// ErrLauncherClosed is returned for launches requested after StopAll.
	ErrLauncherClosed = errors.New("launcher is shutting down")

	errProcessStuck = errors.New("mirror process did not exit after kill")
)
