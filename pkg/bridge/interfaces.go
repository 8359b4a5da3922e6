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

// Package bridge drives the adb device bridge as a black-box command-line tool.
package bridge

//go:generate mockgen -destination=mock_bridge.go -package=bridge github.com/carverauto/devmirror/pkg/bridge Bridge

import (
	"context"

	"github.com/carverauto/devmirror/pkg/models"
)

// Bridge is the set of device-bridge operations the controller relies on.
type Bridge interface {
	StartServer(ctx context.Context) error
	ListDevices(ctx context.Context) ([]models.BridgeDevice, error)
	Connect(ctx context.Context, id string) (string, error)
	Disconnect(ctx context.Context, id string) error
	SetTCPIP(ctx context.Context, id string, port int) error
	Shell(ctx context.Context, id string, args ...string) (string, error)
	Exec(ctx context.Context, id string, args ...string) (string, error)
	Probe(ctx context.Context, id string) (string, error)
}

// Runner executes an external program and returns its combined output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}
