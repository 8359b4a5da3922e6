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

package bridge

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/carverauto/devmirror/pkg/logger"
	"github.com/carverauto/devmirror/pkg/models"
)

const (
	defaultBinary         = "adb"
	defaultCommandTimeout = 5 * time.Second
	probeToken            = "ping"
)

// Config controls how the adb binary is invoked.
type Config struct {
	Path           string
	CommandTimeout time.Duration
}

// ADB implements Bridge by shelling out to the adb binary.
type ADB struct {
	path    string
	timeout time.Duration
	runner  Runner
	logger  logger.Logger
}

var _ Bridge = (*ADB)(nil)

// NewADB returns an adb-backed Bridge. A nil runner uses ExecRunner.
func NewADB(cfg Config, runner Runner, log logger.Logger) *ADB {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		path = defaultBinary
	}

	timeout := cfg.CommandTimeout
	if timeout <= 0 {
		timeout = defaultCommandTimeout
	}

	if runner == nil {
		runner = ExecRunner{}
	}

	if log == nil {
		log = logger.NewTestLogger()
	}

	return &ADB{
		path:    path,
		timeout: timeout,
		runner:  runner,
		logger:  log,
	}
}

// Path returns the adb binary used for invocations.
func (a *ADB) Path() string {
	return a.path
}

func (a *ADB) StartServer(ctx context.Context) error {
	_, err := a.run(ctx, "start-server")

	return err
}

func (a *ADB) ListDevices(ctx context.Context) ([]models.BridgeDevice, error) {
	out, err := a.run(ctx, "devices")
	if err != nil {
		return nil, err
	}

	return ParseDevices(out), nil
}

func (a *ADB) Connect(ctx context.Context, id string) (string, error) {
	out, err := a.run(ctx, "connect", id)
	if err != nil {
		return out, fmt.Errorf("%w: %s: %w", ErrConnectFailed, id, err)
	}

	if !IsConnectSuccess(out) {
		return out, fmt.Errorf("%w: %s: %s", ErrConnectFailed, id, out)
	}

	a.logger.Debug().Str("device_id", id).Str("output", out).Msg("Bridge connect succeeded")

	return out, nil
}

func (a *ADB) Disconnect(ctx context.Context, id string) error {
	_, err := a.run(ctx, "disconnect", id)

	return err
}

func (a *ADB) SetTCPIP(ctx context.Context, id string, port int) error {
	_, err := a.run(ctx, "-s", id, "tcpip", strconv.Itoa(port))

	return err
}

func (a *ADB) Shell(ctx context.Context, id string, args ...string) (string, error) {
	if err := CheckCommand(args); err != nil {
		return "", err
	}

	full := append([]string{"-s", id, "shell"}, args...)

	return a.run(ctx, full...)
}

func (a *ADB) Exec(ctx context.Context, id string, args ...string) (string, error) {
	if err := CheckCommand(args); err != nil {
		return "", err
	}

	full := args
	if id != "" {
		full = append([]string{"-s", id}, args...)
	}

	return a.run(ctx, full...)
}

func (a *ADB) Probe(ctx context.Context, id string) (string, error) {
	return a.Shell(ctx, id, "echo", probeToken)
}

func (a *ADB) run(ctx context.Context, args ...string) (string, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	raw, err := a.runner.Run(ctx, a.path, args...)
	out := strings.TrimSpace(string(raw))

	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return out, fmt.Errorf("%w: adb %s", ErrCommandTimeout, strings.Join(args, " "))
		}

		if ctx.Err() != nil {
			return out, ctx.Err()
		}

		return out, fmt.Errorf("%w: adb %s: %w", ErrCommandFailed, strings.Join(args, " "), err)
	}

	return out, nil
}
