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
	"io"

	"github.com/rs/zerolog"
)

// Logger is the structured logger handed to every component.
type Logger interface {
	Debug() *zerolog.Event
	Info() *zerolog.Event
	Warn() *zerolog.Event
	Error() *zerolog.Event
	WithComponent(component string) zerolog.Logger
	SetLevel(level zerolog.Level)
}

// Wrap adapts a zerolog.Logger to Logger.
func Wrap(z zerolog.Logger) Logger {
	return &zlog{z: z}
}

// NewTestLogger returns a Logger that discards everything.
func NewTestLogger() Logger {
	return Wrap(zerolog.Nop())
}

// NewWriterLogger logs to w at debug level. Tests use it to assert on output.
func NewWriterLogger(w io.Writer) Logger {
	return Wrap(zerolog.New(w).Level(zerolog.DebugLevel))
}

type zlog struct {
	z zerolog.Logger
}

func (l *zlog) Debug() *zerolog.Event { return l.z.Debug() }
func (l *zlog) Info() *zerolog.Event  { return l.z.Info() }
func (l *zlog) Warn() *zerolog.Event  { return l.z.Warn() }
func (l *zlog) Error() *zerolog.Event { return l.z.Error() }

func (l *zlog) WithComponent(component string) zerolog.Logger {
	return l.z.With().Str("component", component).Logger()
}

func (l *zlog) SetLevel(level zerolog.Level) {
	l.z = l.z.Level(level)
}
