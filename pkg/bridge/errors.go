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

import "errors"

var (
	ErrDangerousCommand = errors.New("command blocked: reboot-related commands are disabled")
	ErrConnectFailed    = errors.New("bridge connect failed")
	ErrCommandTimeout   = errors.New("bridge command timed out")
	ErrCommandFailed    = errors.New("bridge command failed")
	ErrEmptyCommand     = errors.New("no bridge command provided")
)
