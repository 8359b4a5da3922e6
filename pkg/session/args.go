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
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	"github.com/carverauto/devmirror/pkg/logger"
	"github.com/carverauto/devmirror/pkg/models"
)

const defaultRecordPath = "recording.mp4"

// BuildArgs returns the mirror client arguments for one device. In bulk mode
// the record path is made unique per device.
func BuildArgs(id string, opts models.SessionOptions, bulk bool, log logger.Logger) []string {
	args := []string{"-s", id}

	if opts.Fullscreen {
		args = append(args, "--fullscreen")
	}

	if opts.AlwaysOnTop {
		args = append(args, "--always-on-top")
	}

	if opts.NoControl {
		args = append(args, "--no-control")
	}

	if opts.Record {
		path := opts.RecordPath
		if path == "" {
			path = defaultRecordPath
		}

		if bulk {
			path = BulkRecordPath(id, path)
		}

		args = append(args, "--record", path)
	}

	if opts.TimeLimit > 0 {
		args = append(args, "--time-limit", strconv.Itoa(opts.TimeLimit))
	}

	if opts.Bitrate != "" {
		args = append(args, "--video-bit-rate", opts.Bitrate)
	}

	if opts.MaxSize != "" && opts.MaxSize != "0" {
		args = append(args, "--max-size", opts.MaxSize)
	}

	if opts.MaxFPS > 0 {
		args = append(args, "--max-fps", strconv.Itoa(opts.MaxFPS))
	}

	return append(args, ValidateCustomArgs(opts.CustomArgs, log)...)
}

// BulkRecordPath prefixes the file name with the device id so concurrent
// recordings never share a file.
func BulkRecordPath(id, path string) string {
	dir, base := filepath.Split(path)
	prefix := strings.ReplaceAll(id, ":", "_")

	return dir + prefix + "_" + base
}

// ValidateCustomArgs splits free-form options and keeps the tokens that look
// like flags or values. Rejected tokens are reported in a single warning.
func ValidateCustomArgs(s string, log logger.Logger) []string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return nil
	}

	accepted := make([]string, 0, len(fields))

	var rejected []string

	for _, tok := range fields {
		if validToken(tok) {
			accepted = append(accepted, tok)
			continue
		}

		rejected = append(rejected, tok)
	}

	if len(rejected) > 0 && log != nil {
		log.Warn().
			Strs("rejected", rejected).
			Msg("Ignoring invalid custom mirror options")
	}

	return accepted
}

func validToken(tok string) bool {
	if strings.HasPrefix(tok, "--") || strings.Contains(tok, "=") {
		return true
	}

	for _, r := range tok {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}

	return true
}
