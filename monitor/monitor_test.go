/*
 * This file is part of the gateway-mate distribution (https://github.com/mlipscombe/gateway-mate).
 * Copyright (c) 2021-2026 Mark Lipscombe.
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, version 3.
 *
 * This program is distributed in the hope that it will be useful, but
 * WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the GNU
 * General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program. If not, see <http://www.gnu.org/licenses/>.
 */

package monitor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakePublisher struct {
	mu       sync.Mutex
	topics   []string
	statuses []map[string]interface{}
}

func (f *fakePublisher) PublishJSON(topic string, val interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.topics = append(f.topics, topic)
	f.statuses = append(f.statuses, val.(map[string]interface{}))
	return nil
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.statuses)
}

type fixedDiscovery bool

func (d fixedDiscovery) DiscoveryEnabled() bool { return bool(d) }

func TestIsNumeric(t *testing.T) {
	tests := []struct {
		name     string
		value    interface{}
		expected bool
	}{
		{"int64", int64(42), true},
		{"float64", float64(3.14), true},
		{"string", "hello", false},
		{"bool", true, false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := isNumeric(tt.value)
			if result != tt.expected {
				t.Errorf("isNumeric(%v) = %v, want %v", tt.value, result, tt.expected)
			}
		})
	}
}

func TestUpdateGauge(t *testing.T) {
	// Test that updateGauge doesn't panic with nil gauge
	updateGauge(nil, "gw", int64(42))

	gauge := prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: "test"}, []string{"gateway"})
	updateGauge(gauge, "gw", int64(42))
	if got := testutil.ToFloat64(gauge.WithLabelValues("gw")); got != 42 {
		t.Errorf("Expected gauge 42, got %v", got)
	}

	// strings are ignored
	updateGauge(gauge, "gw", "not a number")
	if got := testutil.ToFloat64(gauge.WithLabelValues("gw")); got != 42 {
		t.Errorf("Expected gauge to stay 42, got %v", got)
	}
}

func TestStatus(t *testing.T) {
	m := newSystemMonitor(&fakePublisher{}, fixedDiscovery(true), Config{
		Topic:      "home/OMG_test/SYStoMQTT",
		Version:    "v1.0.0",
		Registerer: prometheus.NewRegistry(),
	})

	status := m.status()
	for _, key := range []string{"uptime", "freemem", "goroutines", "version", "disc"} {
		if _, ok := status[key]; !ok {
			t.Errorf("Expected %s in status", key)
		}
	}
	if status["disc"] != true {
		t.Errorf("Expected disc true, got %v", status["disc"])
	}
	if status["version"] != "v1.0.0" {
		t.Errorf("Expected version v1.0.0, got %v", status["version"])
	}
	if m.cfg.Interval != 2*time.Minute {
		t.Errorf("Expected default interval, got %s", m.cfg.Interval)
	}
}

func TestPublishRegistersGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	pub := &fakePublisher{}
	m := newSystemMonitor(pub, fixedDiscovery(false), Config{
		Topic:      "home/OMG_test/SYStoMQTT",
		Gateway:    "OMG_test",
		Registerer: reg,
	})

	m.publish()
	m.publish()

	if pub.count() != 2 {
		t.Fatalf("Expected 2 publishes, got %d", pub.count())
	}
	if pub.topics[0] != "home/OMG_test/SYStoMQTT" {
		t.Errorf("Unexpected topic %s", pub.topics[0])
	}
	if pub.statuses[0]["disc"] != false {
		t.Errorf("Expected disc false, got %v", pub.statuses[0]["disc"])
	}

	n, err := testutil.GatherAndCount(reg)
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if n != 3 {
		t.Errorf("Expected 3 gauge series, got %d", n)
	}
	if got := testutil.ToFloat64(m.gauges["goroutines"].WithLabelValues("OMG_test")); got < 1 {
		t.Errorf("Expected at least one goroutine, got %v", got)
	}
}

func TestStartSystemMonitor(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pub := &fakePublisher{}
	m := StartSystemMonitor(ctx, pub, fixedDiscovery(true), Config{
		Topic:      "home/OMG_test/SYStoMQTT",
		Interval:   time.Hour,
		Registerer: prometheus.NewRegistry(),
	})

	waitFor(t, func() bool { return pub.count() >= 1 })

	m.Trigger()
	waitFor(t, func() bool { return pub.count() >= 2 })
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}
