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
	"os/exec"
)

// Process is a started mirror client.
type Process interface {
	Pid() int
	// Wait blocks until the process exits.
	Wait() error
	// Terminate asks the process to exit.
	Terminate() error
	Kill() error
}

// Starter launches mirror client processes.
type Starter interface {
	Start(path string, args []string) (Process, error)
}

// ExecStarter starts detached operating system processes.
type ExecStarter struct{}

func (ExecStarter) Start(path string, args []string) (Process, error) {
	cmd := exec.Command(path, args...)
	detach(cmd)

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	return &execProcess{cmd: cmd}, nil
}

type execProcess struct {
	cmd *exec.Cmd
}

func (p *execProcess) Pid() int {
	return p.cmd.Process.Pid
}

func (p *execProcess) Wait() error {
	return p.cmd.Wait()
}

func (p *execProcess) Terminate() error {
	return terminate(p.cmd.Process)
}

func (p *execProcess) Kill() error {
	return p.cmd.Process.Kill()
}
