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
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
)

const ownerPrefix = "owner"

// pidFile mirrors the set of live mirror processes on disk, one
// "<pid> <device id>" line each under an "owner <pid>" header naming the
// controller, so a later run can clean up after a crash.
type pidFile struct {
	mu       sync.Mutex
	path     string
	disabled bool
	pids     map[int]string
}

func newPIDFile(path string) *pidFile {
	return &pidFile{path: path, pids: make(map[int]string)}
}

func (p *pidFile) add(pid int, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.pids[pid] = id

	return p.writeLocked()
}

func (p *pidFile) remove(pid int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.pids[pid]; !ok {
		return nil
	}

	delete(p.pids, pid)

	return p.writeLocked()
}

// disable stops tracking; another live controller owns the file.
func (p *pidFile) disable() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.disabled = true
}

// rewrite persists the current set, dropping whatever a previous run left.
func (p *pidFile) rewrite() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.writeLocked()
}

func (p *pidFile) writeLocked() error {
	if p.path == "" || p.disabled {
		return nil
	}

	if len(p.pids) == 0 {
		if err := os.Remove(p.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove pid file: %w", err)
		}

		return nil
	}

	pids := make([]int, 0, len(p.pids))
	for pid := range p.pids {
		pids = append(pids, pid)
	}

	sort.Ints(pids)

	var buf bytes.Buffer

	fmt.Fprintf(&buf, "%s %d\n", ownerPrefix, os.Getpid())

	for _, pid := range pids {
		fmt.Fprintf(&buf, "%d %s\n", pid, p.pids[pid])
	}

	if dir := filepath.Dir(p.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create pid file directory: %w", err)
		}
	}

	if err := os.WriteFile(p.path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}

	return nil
}

// readPIDFile parses a pid file into its owner and entries. Malformed
// lines are skipped.
func readPIDFile(path string) (int, map[int]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, nil, err
	}

	var owner int

	entries := make(map[int]string)

	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 2 {
			continue
		}

		if fields[0] == ownerPrefix {
			owner, _ = strconv.Atoi(fields[1])
			continue
		}

		pid, err := strconv.Atoi(fields[0])
		if err != nil || pid <= 0 {
			continue
		}

		entries[pid] = fields[1]
	}

	return owner, entries, sc.Err()
}
