// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package telemetry is the validator's fire-and-forget reporting sink:
// Publish enqueues a route/payload pair and returns immediately, never
// blocking the CycleRunner that called it. A background loop drains the
// queue and POSTs each entry to the configured telemetry endpoint as soon as
// it is dequeued, with the same stop-channel / drain-on-shutdown shape as the
// teacher's churn exporter and Prometheus counters standing in for the
// exporter's live console rendering.
package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	defaultQueueSize = 1000
	maxRetries       = 3
	retrySpacing     = 500 * time.Millisecond
	drainDeadline    = 2 * time.Second
)

type entry struct {
	route   string
	payload any
}

// Sink is a non-blocking telemetry publisher. The zero value is not usable;
// construct with New.
type Sink struct {
	endpoint   string
	httpClient *http.Client
	queue      chan entry
	stop       chan struct{}
	done       chan struct{}
	startOnce  sync.Once
}

// New builds a Sink that POSTs to endpoint. If endpoint is empty, Publish
// still enqueues (so callers need no conditional) but the drain loop drops
// every entry without attempting a request — the same no-op-when-unconfigured
// posture the teacher's churn module takes when Enabled is false.
func New(endpoint string) *Sink {
	return &Sink{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		queue:      make(chan entry, defaultQueueSize),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start launches the background drain loop. Safe to call once; subsequent
// calls are no-ops.
func (s *Sink) Start() {
	s.startOnce.Do(func() {
		go s.loop()
	})
}

// Stop signals the drain loop to exit, waiting up to drainDeadline for any
// already-dequeued entry to finish sending.
func (s *Sink) Stop() {
	close(s.stop)
	select {
	case <-s.done:
	case <-time.After(drainDeadline):
	}
}

// Publish enqueues route/payload for delivery. It never blocks: on a full
// queue, the oldest pending entry is dropped to make room, matching the
// "drop oldest enqueue" rule.
func (s *Sink) Publish(route string, payload any) {
	e := entry{route: route, payload: payload}
	select {
	case s.queue <- e:
		queueDepth.Inc()
		return
	default:
	}

	select {
	case <-s.queue:
		queueDepth.Dec()
		drops.Inc()
		log.Printf("telemetry: queue full, dropped oldest entry to publish route %q", route)
	default:
	}
	select {
	case s.queue <- e:
		queueDepth.Inc()
	default:
		// Another producer won the race for the freed slot; drop this one too
		// rather than block the caller.
		drops.Inc()
	}
}

func (s *Sink) loop() {
	defer close(s.done)
	for {
		select {
		case e := <-s.queue:
			queueDepth.Dec()
			s.deliver(e)
		case <-s.stop:
			s.drainRemaining()
			return
		}
	}
}

func (s *Sink) drainRemaining() {
	deadline := time.After(drainDeadline)
	for {
		select {
		case e := <-s.queue:
			queueDepth.Dec()
			s.deliver(e)
		case <-deadline:
			return
		default:
			return
		}
	}
}

func (s *Sink) deliver(e entry) {
	if s.endpoint == "" {
		return
	}
	body, err := json.Marshal(e.payload)
	if err != nil {
		log.Printf("telemetry: marshal payload for route %q: %v", e.route, err)
		publishOutcomes.WithLabelValues("marshal_error").Inc()
		return
	}

	url := s.endpoint + "/" + e.route
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(retrySpacing)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := s.post(ctx, url, body)
		cancel()
		if err == nil {
			publishOutcomes.WithLabelValues("ok").Inc()
			return
		}
		lastErr = err
	}
	log.Printf("telemetry: giving up on route %q after %d attempts: %v", e.route, maxRetries, lastErr)
	publishOutcomes.WithLabelValues("failed").Inc()
}

func (s *Sink) post(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telemetry: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("telemetry: post: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("telemetry: endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

var (
	queueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "subnetvalidator_telemetry_queue_depth",
		Help: "Number of telemetry entries currently queued for delivery.",
	})
	drops = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "subnetvalidator_telemetry_drops_total",
		Help: "Total telemetry entries dropped because the queue was full.",
	})
	publishOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "subnetvalidator_telemetry_publish_total",
		Help: "Telemetry publish attempts by outcome (ok, failed, marshal_error).",
	}, []string{"outcome"})
)

func init() {
	prometheus.MustRegister(queueDepth, drops, publishOutcomes)
}
