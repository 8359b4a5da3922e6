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

// Package metrics records OpenTelemetry instruments for probes, reconnects,
// scans and mirror sessions.
package metrics

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "github.com/carverauto/devmirror"

	metricProbesTotal        = "devmirror_probes_total"
	metricProbeLatency       = "devmirror_probe_latency_seconds"
	metricReconnectsTotal    = "devmirror_reconnect_attempts_total"
	metricDiscoveriesTotal   = "devmirror_scan_discoveries_total"
	metricSessionsStarted    = "devmirror_sessions_started_total"
	metricSessionsTerminated = "devmirror_sessions_terminated_total"

	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

var (
	// instrumentation handles are cached globally to avoid re-registering OTEL instruments on every call.
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	meterOnce sync.Once
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	probeCounter metric.Int64Counter
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	probeHistogram metric.Float64Histogram
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	reconnectCounter metric.Int64Counter
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	discoveryCounter metric.Int64Counter
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	sessionStartCounter metric.Int64Counter
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	sessionStopCounter metric.Int64Counter
)

func initMeter() {
	meter := otel.Meter(meterName)

	probeCounter = int64Counter(meter, metricProbesTotal, "Total liveness probes by outcome")
	reconnectCounter = int64Counter(meter, metricReconnectsTotal, "Total automatic and manual reconnect attempts")
	discoveryCounter = int64Counter(meter, metricDiscoveriesTotal, "Total devices discovered by network scans")
	sessionStartCounter = int64Counter(meter, metricSessionsStarted, "Total mirror session launches by outcome")
	sessionStopCounter = int64Counter(meter, metricSessionsTerminated, "Total mirror sessions ended by reason")

	hist, err := meter.Float64Histogram(
		metricProbeLatency,
		metric.WithDescription("Latency of liveness probe round trips"),
		metric.WithUnit("s"),
	)
	if err != nil {
		otel.Handle(err)
	}
	probeHistogram = hist
}

func int64Counter(meter metric.Meter, name, description string) metric.Int64Counter {
	counter, err := meter.Int64Counter(name, metric.WithDescription(description))
	if err != nil {
		otel.Handle(err)
	}

	return counter
}

func outcome(ok bool) string {
	if ok {
		return OutcomeSuccess
	}

	return OutcomeFailure
}

// RecordProbe counts a liveness probe and its round-trip latency.
func RecordProbe(ctx context.Context, ok bool, duration time.Duration) {
	meterOnce.Do(initMeter)

	attrs := metric.WithAttributes(attribute.String("outcome", outcome(ok)))

	if probeCounter != nil {
		probeCounter.Add(ctx, 1, attrs)
	}

	if probeHistogram != nil {
		probeHistogram.Record(ctx, duration.Seconds(), attrs)
	}
}

// RecordReconnect counts a bridge reconnect attempt.
func RecordReconnect(ctx context.Context, ok, manual bool) {
	meterOnce.Do(initMeter)
	if reconnectCounter == nil {
		return
	}

	reconnectCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome(ok)),
		attribute.Bool("manual", manual),
	))
}

// RecordDiscovery counts a device found by a network scan.
func RecordDiscovery(ctx context.Context) {
	meterOnce.Do(initMeter)
	if discoveryCounter == nil {
		return
	}

	discoveryCounter.Add(ctx, 1)
}

// RecordSessionStart counts a mirror launch.
func RecordSessionStart(ctx context.Context, ok bool) {
	meterOnce.Do(initMeter)
	if sessionStartCounter == nil {
		return
	}

	sessionStartCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome(ok))))
}

// RecordSessionEnd counts a mirror session ending, labelled by why it ended.
func RecordSessionEnd(ctx context.Context, reason string) {
	meterOnce.Do(initMeter)
	if sessionStopCounter == nil {
		return
	}

	sessionStopCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}
