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

package logger

import (
	"os"
	"strconv"
)

// Environment fallbacks for unset logging fields.
const (
	EnvLogLevel      = "DEVMIRROR_LOG_LEVEL"
	EnvDebug         = "DEVMIRROR_DEBUG"
	EnvLogOutput     = "DEVMIRROR_LOG_OUTPUT"
	EnvLogTimeFormat = "DEVMIRROR_LOG_TIME_FORMAT"

	defaultLevel = "info"
)

// DefaultConfig returns the logging defaults. Logs go to stderr so command
// output on stdout stays clean.
func DefaultConfig() *Config {
	c := &Config{}
	c.Fill()

	return c
}

// Fill sets every unset field from the DEVMIRROR_LOG_* environment, then
// from the defaults.
func (c *Config) Fill() {
	c.Level = firstSet(c.Level, os.Getenv(EnvLogLevel), defaultLevel)
	c.Output = firstSet(c.Output, os.Getenv(EnvLogOutput), outputStderr)
	c.TimeFormat = firstSet(c.TimeFormat, os.Getenv(EnvLogTimeFormat))

	if !c.Debug {
		if debug, err := strconv.ParseBool(os.Getenv(EnvDebug)); err == nil {
			c.Debug = debug
		}
	}
}

func firstSet(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}

	return ""
}
