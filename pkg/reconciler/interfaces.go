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

package reconciler

//go:generate mockgen -destination=mock_reconciler.go -package=reconciler github.com/carverauto/devmirror/pkg/reconciler Clock,Ticker

import (
	"time"

	"github.com/carverauto/devmirror/pkg/models"
)

// Clock abstracts time-related operations.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
	Ticker(d time.Duration) Ticker
}

// Ticker abstracts the ticker behavior.
type Ticker interface {
	Chan() <-chan time.Time
	Stop()
}

// Store is the device registry as seen by the reconciler.
type Store interface {
	Upsert(id string, patch models.DevicePatch) (models.DeviceRecord, bool)
	Get(id string) (models.DeviceRecord, bool)
	List() []models.DeviceRecord
	Remove(id string) bool
	Rename(id, name string) error
	Flush() error
}
