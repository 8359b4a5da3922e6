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

// Package config loads, validates and persists controller settings and
// mirror profiles.
package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/carverauto/devmirror/pkg/logger"
	"github.com/carverauto/devmirror/pkg/models"
)

const (
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "DEVMIRROR_"

	filePerm = 0o644
	dirPerm  = 0o755
)

var (
	ErrProfileNotFound  = errors.New("profile not found")
	ErrUnknownKey       = errors.New("unknown settings key")
	errEmptyProfileName = errors.New("profile name is empty")
)

// Validator is implemented by configurations that can check themselves.
type Validator interface {
	Validate() error
}

// ValidateConfig validates a configuration if it implements Validator.
func ValidateConfig(cfg interface{}) error {
	v, ok := cfg.(Validator)
	if !ok {
		return nil
	}

	return v.Validate()
}

// Store owns the settings file and the profiles file. Every mutation is
// written straight back to disk.
type Store struct {
	mu       sync.RWMutex
	path     string
	settings Settings
	file     ConfigLoader
	env      ConfigLoader
	logger   logger.Logger
}

// NewStore returns a Store backed by path, holding defaults until Load.
func NewStore(path string, log logger.Logger) *Store {
	if path == "" {
		path = DefaultSettingsPath
	}

	if log == nil {
		log = logger.NewTestLogger()
	}

	return &Store{
		path:     path,
		settings: DefaultSettings(),
		file:     &FileConfigLoader{},
		env:      NewEnvConfigLoader(log, EnvPrefix),
		logger:   log,
	}
}

// Path returns the settings file.
func (s *Store) Path() string {
	return s.path
}

// Resolve interprets a relative path against the settings file's directory.
func (s *Store) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}

	return filepath.Join(filepath.Dir(s.path), p)
}

// Load reads the settings file, overlays the environment and loads the
// profiles. It never fails: a missing or unreadable file leaves defaults.
func (s *Store) Load(ctx context.Context) Settings {
	var settings Settings

	if err := s.file.Load(ctx, s.path, &settings); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.logger.Info().Str("path", s.path).Msg("Settings file not found, using defaults")
		} else {
			s.logger.Error().Err(err).Str("path", s.path).Msg("Failed to load settings, using defaults")
		}

		settings = Settings{}
	}

	if err := s.env.Load(ctx, "", &settings); err != nil {
		s.logger.Error().Err(err).Msg("Failed to apply environment overrides")
	}

	settings.applyDefaults()

	if err := ValidateConfig(&settings); err != nil {
		s.logger.Error().Err(err).Str("path", s.path).Msg("Invalid settings, using defaults")

		settings = DefaultSettings()
	}

	settings.Profiles = s.loadProfiles(ctx, s.Resolve(settings.ProfilesPath))

	s.mu.Lock()
	s.settings = settings
	s.mu.Unlock()

	return s.Get()
}

func (s *Store) loadProfiles(ctx context.Context, path string) map[string]models.SessionOptions {
	profiles := make(map[string]models.SessionOptions)

	if err := s.file.Load(ctx, path, &profiles); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Error().Err(err).Str("path", path).Msg("Failed to load profiles")
		}

		return make(map[string]models.SessionOptions)
	}

	return profiles
}

// Get returns a copy of the current settings.
func (s *Store) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.settings.clone()
}

// Save writes the settings and profiles files.
func (s *Store) Save() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.saveLocked()
}

func (s *Store) saveLocked() error {
	if err := writeJSON(s.path, &s.settings); err != nil {
		return err
	}

	return writeJSON(s.Resolve(s.settings.ProfilesPath), s.settings.Profiles)
}

// Update applies fn to a copy of the settings, validates the result and
// persists it. On any error the previous settings are kept.
func (s *Store) Update(fn func(*Settings) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.settings.clone()
	if err := fn(&next); err != nil {
		return err
	}

	next.applyDefaults()

	if err := ValidateConfig(&next); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}

	changed := ChangedFields(&s.settings, &next)
	s.settings = next

	if len(changed) > 0 {
		s.logger.Info().Strs("fields", changed).Msg("Settings updated")
	}

	return s.saveLocked()
}

// Lookup returns the value at a dotted json key such as "reconnect.max_attempts".
func (s *Store) Lookup(key string) (interface{}, error) {
	settings := s.Get()

	doc, err := toDocument(&settings)
	if err != nil {
		return nil, err
	}

	parent, last, err := walk(doc, key)
	if err != nil {
		return nil, err
	}

	return parent[last], nil
}

// Set assigns raw to a dotted json key and persists the result. raw is
// decoded as JSON unless the current value is a string.
func (s *Store) Set(key, raw string) error {
	return s.Update(func(cfg *Settings) error {
		doc, err := toDocument(cfg)
		if err != nil {
			return err
		}

		parent, last, err := walk(doc, key)
		if err != nil {
			return err
		}

		var value interface{}
		if _, isString := parent[last].(string); isString || json.Unmarshal([]byte(raw), &value) != nil {
			value = raw
		}

		parent[last] = value

		data, err := json.Marshal(doc)
		if err != nil {
			return err
		}

		var next Settings
		if err := json.Unmarshal(data, &next); err != nil {
			return fmt.Errorf("invalid value for %s: %w", key, err)
		}

		next.Profiles = cfg.Profiles
		*cfg = next

		return nil
	})
}

// SaveProfile stores opts under name and persists the profiles file.
func (s *Store) SaveProfile(name string, opts models.SessionOptions) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errEmptyProfileName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.settings.Profiles[name] = opts

	return writeJSON(s.Resolve(s.settings.ProfilesPath), s.settings.Profiles)
}

// DeleteProfile removes name and persists the profiles file.
func (s *Store) DeleteProfile(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.settings.Profiles[name]; !ok {
		return fmt.Errorf("%w: %s", ErrProfileNotFound, name)
	}

	delete(s.settings.Profiles, name)

	return writeJSON(s.Resolve(s.settings.ProfilesPath), s.settings.Profiles)
}

// Profile returns the named profile.
func (s *Store) Profile(name string) (models.SessionOptions, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	opts, ok := s.settings.Profiles[name]

	return opts, ok
}

// ProfileNames returns the saved profile names in order.
func (s *Store) ProfileNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.settings.Profiles))
	for name := range s.settings.Profiles {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

func (s *Settings) clone() Settings {
	out := *s

	out.Profiles = make(map[string]models.SessionOptions, len(s.Profiles))
	for k, v := range s.Profiles {
		out.Profiles[k] = v
	}

	if s.Logging != nil {
		l := *s.Logging
		out.Logging = &l
	}

	if s.Metrics != nil {
		m := *s.Metrics
		out.Metrics = &m
	}

	return out
}

func toDocument(s *Settings) (map[string]interface{}, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}

	var doc map[string]interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	return doc, nil
}

func walk(doc map[string]interface{}, key string) (map[string]interface{}, string, error) {
	parts := strings.Split(key, ".")
	cur := doc

	for _, part := range parts[:len(parts)-1] {
		next, ok := cur[part].(map[string]interface{})
		if !ok {
			return nil, "", fmt.Errorf("%w: %s", ErrUnknownKey, key)
		}

		cur = next
	}

	last := parts[len(parts)-1]
	if _, ok := cur[last]; !ok {
		return nil, "", fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}

	return cur, last, nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}

	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("failed to create directory '%s': %w", dir, err)
	}

	return nil
}
