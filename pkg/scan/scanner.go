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

// Package scan sweeps a /24 for hosts answering on the bridge's TCP port
// and attaches the ones the bridge accepts.
package scan

import (
	"context"
	"net"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/carverauto/devmirror/pkg/logger"
	"github.com/carverauto/devmirror/pkg/metrics"
	"github.com/carverauto/devmirror/pkg/models"
)

const (
	DefaultPort           = 5555
	defaultDialTimeout    = 100 * time.Millisecond
	defaultConnectTimeout = 2 * time.Second
	defaultConcurrency    = 16
)

// Connector attaches a discovered endpoint through the bridge.
type Connector interface {
	Connect(ctx context.Context, id string) (string, error)
}

type dialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// Config tunes a Scanner. Zero values take the defaults.
type Config struct {
	DialTimeout    time.Duration
	ConnectTimeout time.Duration
	Concurrency    int
	// RateLimit caps probes per second; zero means unpaced.
	RateLimit float64
}

// Scanner probes every host of a /24 and reports the ones the bridge
// accepted. Only one scan runs at a time.
type Scanner struct {
	mu         sync.Mutex
	running    bool
	cancel     context.CancelFunc
	onProgress func(done, total int)

	dialTimeout    time.Duration
	connectTimeout time.Duration
	concurrency    int
	limit          rate.Limit
	connector      Connector
	dial           dialFunc
	logger         logger.Logger
}

func NewScanner(cfg Config, connector Connector, log logger.Logger) *Scanner {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = defaultDialTimeout
	}

	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}

	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}

	if log == nil {
		log = logger.NewTestLogger()
	}

	var dialer net.Dialer

	return &Scanner{
		dialTimeout:    cfg.DialTimeout,
		connectTimeout: cfg.ConnectTimeout,
		concurrency:    cfg.Concurrency,
		limit:          limit,
		connector:      connector,
		dial:           dialer.DialContext,
		logger:         log,
	}
}

// OnProgress registers a callback invoked after each host resolves.
func (s *Scanner) OnProgress(fn func(done, total int)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.onProgress = fn
}

// Running reports whether a scan is in progress.
func (s *Scanner) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.running
}

// Scan probes prefix.1 through prefix.254 on port. Discoveries arrive in
// ascending host order; the channel closes when the sweep ends or is cancelled.
func (s *Scanner) Scan(ctx context.Context, prefix string, port int) (<-chan models.Discovery, error) {
	prefix, err := NormalizePrefix(prefix)
	if err != nil {
		return nil, err
	}

	if port <= 0 {
		port = DefaultPort
	}

	hosts, err := Hosts(prefix)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()

		return nil, ErrScanAlreadyRunning
	}

	scanCtx, cancel := context.WithCancel(ctx)
	s.running = true
	s.cancel = cancel
	progress := s.onProgress
	s.mu.Unlock()

	s.logger.Info().Str("prefix", prefix).Int("port", port).Int("hosts", len(hosts)).Msg("Starting network scan")

	slots := make([]chan *models.Discovery, len(hosts))
	for i := range slots {
		slots[i] = make(chan *models.Discovery, 1)
	}

	out := make(chan models.Discovery)

	go s.dispatch(scanCtx, hosts, port, slots)
	go s.emit(scanCtx, cancel, slots, out, progress)

	return out, nil
}

// dispatch starts one probe per host, bounded by the semaphore and paced
// by the limiter. Slots it never reaches are closed so emit can finish.
func (s *Scanner) dispatch(ctx context.Context, hosts []string, port int, slots []chan *models.Discovery) {
	sem := semaphore.NewWeighted(int64(s.concurrency))
	limiter := rate.NewLimiter(s.limit, 1)

	for i, host := range hosts {
		if err := sem.Acquire(ctx, 1); err != nil {
			closeFrom(slots, i)

			return
		}

		if err := limiter.Wait(ctx); err != nil {
			sem.Release(1)
			closeFrom(slots, i)

			return
		}

		go func(slot chan<- *models.Discovery, host string) {
			defer sem.Release(1)

			slot <- s.probe(ctx, host, port)
		}(slots[i], host)
	}
}

func closeFrom(slots []chan *models.Discovery, from int) {
	for _, slot := range slots[from:] {
		close(slot)
	}
}

func (s *Scanner) emit(
	ctx context.Context, cancel context.CancelFunc, slots []chan *models.Discovery,
	out chan<- models.Discovery, progress func(done, total int)) {
	found := 0

	defer func() {
		close(out)
		cancel()

		s.mu.Lock()
		s.running = false
		s.cancel = nil
		s.mu.Unlock()

		s.logger.Info().Int("found", found).Msg("Network scan finished")
	}()

	for i, slot := range slots {
		d := <-slot

		if progress != nil {
			progress(i+1, len(slots))
		}

		if d == nil {
			continue
		}

		select {
		case out <- *d:
			found++
		case <-ctx.Done():
			return
		}
	}
}

// probe dials host:port and, when the port answers, asks the bridge to
// attach it. Only an explicit bridge success counts as a discovery.
func (s *Scanner) probe(ctx context.Context, host string, port int) *models.Discovery {
	if ctx.Err() != nil {
		return nil
	}

	addr := net.JoinHostPort(host, strconv.Itoa(port))

	dialCtx, cancel := context.WithTimeout(ctx, s.dialTimeout)
	conn, err := s.dial(dialCtx, "tcp", addr)
	cancel()

	if err != nil {
		return nil
	}

	if err := conn.Close(); err != nil {
		s.logger.Debug().Err(err).Str("addr", addr).Msg("failed to close probe connection")
	}

	connectCtx, cancel := context.WithTimeout(ctx, s.connectTimeout)
	defer cancel()

	output, err := s.connector.Connect(connectCtx, addr)
	if err != nil {
		s.logger.Debug().Err(err).Str("addr", addr).Str("output", output).Msg("Port open but bridge connect failed")

		return nil
	}

	metrics.RecordDiscovery(ctx)
	s.logger.Info().Str("device_id", addr).Msg("Discovered device")

	return &models.Discovery{
		ID:      addr,
		Host:    host,
		Port:    port,
		FoundAt: time.Now(),
	}
}

// Stop cancels the running scan, if any.
func (s *Scanner) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	return nil
}
