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

// Package lifecycle builds the process logger from the logging settings.
package lifecycle

import (
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/carverauto/devmirror/pkg/logger"
)

// LoggerImpl is a logger.Logger that owns its output, such as a log file.
type LoggerImpl struct {
	logger.Logger
	closer io.Closer
}

// NewLoggerImpl creates a logger from config. A nil config uses the defaults.
func NewLoggerImpl(config *logger.Config) (*LoggerImpl, error) {
	return build(config, nil)
}

// CreateComponentLogger creates a logger whose entries carry component.
func CreateComponentLogger(component string, config *logger.Config) (*LoggerImpl, error) {
	return build(config, func(c zerolog.Context) zerolog.Context {
		return c.Str("component", component)
	})
}

func build(config *logger.Config, with func(zerolog.Context) zerolog.Context) (*LoggerImpl, error) {
	if config == nil {
		config = logger.DefaultConfig()
	}

	level, err := logger.ParseLevel(config)
	if err != nil {
		return nil, err
	}

	output, closer, err := logger.OpenOutput(config.Output)
	if err != nil {
		return nil, err
	}

	zerolog.TimeFieldFormat = time.RFC3339
	if config.TimeFormat != "" {
		zerolog.TimeFieldFormat = config.TimeFormat
	}

	ctx := zerolog.New(output).Level(level).With().Timestamp()
	if with != nil {
		ctx = with(ctx)
	}

	return &LoggerImpl{Logger: logger.Wrap(ctx.Logger()), closer: closer}, nil
}

// Close releases the log file, if any.
func (l *LoggerImpl) Close() error {
	if l.closer == nil {
		return nil
	}

	return l.closer.Close()
}

// Component derives a child of base tagged with component.
func Component(base logger.Logger, component string) logger.Logger {
	if base == nil {
		return logger.NewTestLogger()
	}

	return logger.Wrap(base.WithComponent(component))
}
