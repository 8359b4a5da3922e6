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

package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/carverauto/devmirror/pkg/logger"
	"github.com/carverauto/devmirror/pkg/models"
)

var (
	ErrDstMustBeNonNilPointer   = errors.New("dst must be a non-nil pointer")
	ErrDstMustBePointerToStruct = errors.New("dst must be a pointer to a struct")
)

//nolint:gochecknoglobals // reflect type lookup
var (
	durationType       = reflect.TypeOf(time.Duration(0))
	modelsDurationType = reflect.TypeOf(models.Duration(0))
)

// EnvConfigLoader overlays environment variables onto a struct. Names come
// from the json tags: with prefix "DEVMIRROR_", DEVMIRROR_RECONNECT_MAX_ATTEMPTS
// sets Settings.Reconnect.MaxAttempts. Embedded structs without a tag share
// their parent's prefix. When <prefix>CONFIG_JSON is set it is decoded over
// dst instead and the individual variables are ignored.
type EnvConfigLoader struct {
	logger logger.Logger
	prefix string
}

// NewEnvConfigLoader creates an EnvConfigLoader for prefix.
func NewEnvConfigLoader(log logger.Logger, prefix string) *EnvConfigLoader {
	if log == nil {
		log = logger.NewTestLogger()
	}

	return &EnvConfigLoader{logger: log, prefix: prefix}
}

// Load implements ConfigLoader. The path is ignored.
func (e *EnvConfigLoader) Load(_ context.Context, _ string, dst interface{}) error {
	if raw := os.Getenv(e.prefix + "CONFIG_JSON"); raw != "" {
		if err := json.Unmarshal([]byte(raw), dst); err != nil {
			return fmt.Errorf("failed to unmarshal %sCONFIG_JSON: %w", e.prefix, err)
		}

		e.logger.Info().Msg("Loaded settings from CONFIG_JSON")

		return nil
	}

	v := reflect.ValueOf(dst)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return ErrDstMustBeNonNilPointer
	}

	if v.Elem().Kind() != reflect.Struct {
		return ErrDstMustBePointerToStruct
	}

	if n := e.overlay(v.Elem(), e.prefix); n > 0 {
		e.logger.Info().Int("overrides", n).Msg("Applied environment overrides")
	}

	return nil
}

// overlay sets the fields of v that have a variable under prefix and
// returns how many it set. Invalid values are logged and skipped.
func (e *EnvConfigLoader) overlay(v reflect.Value, prefix string) int {
	t := v.Type()
	set := 0

	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		field := v.Field(i)

		if !field.CanSet() {
			continue
		}

		tag := f.Tag.Get("json")

		if tag == "" && f.Anonymous && field.Kind() == reflect.Struct {
			set += e.overlay(field, prefix)
			continue
		}

		name, _, _ := strings.Cut(tag, ",")
		if name == "" || name == "-" {
			continue
		}

		env := prefix + strings.ToUpper(strings.ReplaceAll(name, ".", "_"))

		if nested, ok := structField(field); ok {
			set += e.overlay(nested, env+"_")
			continue
		}

		raw := os.Getenv(env)
		if raw == "" {
			continue
		}

		if err := setField(field, raw); err != nil {
			e.logger.Warn().Err(err).Str("env", env).Msg("Ignoring invalid environment override")
			continue
		}

		e.logger.Debug().Str("env", env).Msg("Applied environment override")

		set++
	}

	return set
}

// structField returns the struct behind field, allocating nil pointers.
func structField(field reflect.Value) (reflect.Value, bool) {
	switch {
	case field.Kind() == reflect.Struct:
		return field, true
	case field.Kind() == reflect.Ptr && field.Type().Elem().Kind() == reflect.Struct:
		if field.IsNil() {
			field.Set(reflect.New(field.Type().Elem()))
		}

		return field.Elem(), true
	}

	return reflect.Value{}, false
}

// setField parses raw into field. Durations take Go syntax ("30s"); maps
// and anything else unusual take JSON.
func setField(field reflect.Value, raw string) error {
	if field.Type() == durationType || field.Type() == modelsDurationType {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", raw, err)
		}

		field.SetInt(int64(d))

		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(raw)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("invalid boolean %q: %w", raw, err)
		}

		field.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, field.Type().Bits())
		if err != nil {
			return fmt.Errorf("invalid integer %q: %w", raw, err)
		}

		field.SetInt(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(raw, field.Type().Bits())
		if err != nil {
			return fmt.Errorf("invalid number %q: %w", raw, err)
		}

		field.SetFloat(f)
	case reflect.Ptr:
		if field.IsNil() {
			field.Set(reflect.New(field.Type().Elem()))
		}

		return setField(field.Elem(), raw)
	default:
		if err := json.Unmarshal([]byte(raw), field.Addr().Interface()); err != nil {
			return fmt.Errorf("invalid %s value: %w", field.Kind(), err)
		}
	}

	return nil
}
