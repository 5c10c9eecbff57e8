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
	"reflect"
	"runtime"
	"sync"
	"time"

	cmp "github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
)

// StatePublisher is the part of the MQTT client the monitor needs.
type StatePublisher interface {
	PublishJSON(topic string, val interface{}) error
}

// DiscoveryState reports whether bridged-device discovery is on.
type DiscoveryState interface {
	DiscoveryEnabled() bool
}

// Config controls the system monitor.
type Config struct {
	// Topic receives the status document, e.g. home/OpenMQTTGateway/SYStoMQTT.
	Topic    string
	Gateway  string
	Version  string
	Interval time.Duration
	// Registerer for the status gauges. Defaults to prometheus.DefaultRegisterer.
	Registerer prometheus.Registerer
}

// SystemMonitor periodically publishes the gateway status that the gateway
// entities read their state from.
type SystemMonitor struct {
	cfg        Config
	mqttClient StatePublisher
	discovery  DiscoveryState
	started    time.Time
	trigger    chan struct{}

	mu     sync.Mutex
	cache  map[string]interface{}
	gauges map[string]*prometheus.GaugeVec
}

// StartSystemMonitor publishes the status immediately and then every
// cfg.Interval until ctx is done.
func StartSystemMonitor(ctx context.Context, mqttClient StatePublisher, discovery DiscoveryState, cfg Config) *SystemMonitor {
	m := newSystemMonitor(mqttClient, discovery, cfg)

	go func() {
		ticker := time.NewTicker(m.cfg.Interval)
		defer ticker.Stop()

		m.publish()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			case <-m.trigger:
			}
			m.publish()
		}
	}()

	return m
}

func newSystemMonitor(mqttClient StatePublisher, discovery DiscoveryState, cfg Config) *SystemMonitor {
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Minute
	}
	if cfg.Registerer == nil {
		cfg.Registerer = prometheus.DefaultRegisterer
	}
	return &SystemMonitor{
		cfg:        cfg,
		mqttClient: mqttClient,
		discovery:  discovery,
		started:    time.Now(),
		trigger:    make(chan struct{}, 1),
		cache:      make(map[string]interface{}),
		gauges:     make(map[string]*prometheus.GaugeVec),
	}
}

// Trigger requests an immediate status publish.
func (m *SystemMonitor) Trigger() {
	select {
	case m.trigger <- struct{}{}:
	default:
	}
}

func (m *SystemMonitor) status() map[string]interface{} {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return map[string]interface{}{
		"uptime":     int64(time.Since(m.started).Seconds()),
		"freemem":    int64(mem.HeapIdle - mem.HeapReleased),
		"goroutines": int64(runtime.NumGoroutine()),
		"version":    m.cfg.Version,
		"disc":       m.discovery.DiscoveryEnabled(),
	}
}

func (m *SystemMonitor) publish() {
	status := m.status()

	m.mu.Lock()
	for key, value := range status {
		// Register prometheus gauge if numeric and not exists
		if m.gauges[key] == nil && isNumeric(value) {
			m.gauges[key] = prometheus.NewGaugeVec(
				prometheus.GaugeOpts{
					Namespace: "gateway_mate",
					Subsystem: "system",
					Name:      key,
				},
				[]string{"gateway"},
			)
			if err := m.cfg.Registerer.Register(m.gauges[key]); err != nil {
				log.Debugf("gauge %s not registered: %v", key, err)
			}
		}

		if !cmp.Equal(m.cache[key], value) {
			m.cache[key] = value
			updateGauge(m.gauges[key], m.cfg.Gateway, value)
		}
	}
	m.mu.Unlock()

	if err := m.mqttClient.PublishJSON(m.cfg.Topic, status); err != nil {
		log.Debugf("Failed to publish system status: %v", err)
	}
}

func isNumeric(value interface{}) bool {
	if value == nil {
		return false
	}
	dataType := reflect.TypeOf(value).Kind()
	return dataType == reflect.Float64 || dataType == reflect.Int64
}

func updateGauge(gauge *prometheus.GaugeVec, gateway string, value interface{}) {
	if gauge == nil {
		return
	}
	switch v := value.(type) {
	case float64:
		gauge.WithLabelValues(gateway).Set(v)
	case int64:
		gauge.WithLabelValues(gateway).Set(float64(v))
	}
}
