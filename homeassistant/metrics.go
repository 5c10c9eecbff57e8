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

package homeassistant

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts discovery activity. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	published *prometheus.CounterVec
	rejected  *prometheus.CounterVec
	cycles    prometheus.Counter
	autoOff   prometheus.Counter
}

// NewMetrics creates the discovery counters and registers them with reg,
// if reg is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		published: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gateway_mate",
				Subsystem: "discovery",
				Name:      "published_total",
				Help:      "Discovery messages handed to the MQTT client.",
			},
			[]string{"component"},
		),
		rejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gateway_mate",
				Subsystem: "discovery",
				Name:      "rejected_total",
				Help:      "Discovery messages refused by validation.",
			},
			[]string{"reason"},
		),
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gateway_mate",
			Subsystem: "discovery",
			Name:      "cycles_total",
			Help:      "Full discovery publication cycles.",
		}),
		autoOff: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gateway_mate",
			Subsystem: "discovery",
			Name:      "auto_off_total",
			Help:      "Times the auto-off timer switched discovery off.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.published, m.rejected, m.cycles, m.autoOff)
	}
	return m
}

func (m *Metrics) incPublished(component Component) {
	if m == nil {
		return
	}
	m.published.WithLabelValues(string(component)).Inc()
}

func (m *Metrics) incRejected(err error) {
	if m == nil {
		return
	}
	reason := "invalid"
	switch {
	case errors.Is(err, ErrUnknownDeviceClass):
		reason = "device_class"
	case errors.Is(err, ErrUnknownUnit):
		reason = "unit"
	case errors.Is(err, ErrMissingField):
		reason = "missing_field"
	}
	m.rejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) incCycles() {
	if m == nil {
		return
	}
	m.cycles.Inc()
}

func (m *Metrics) incAutoOff() {
	if m == nil {
		return
	}
	m.autoOff.Inc()
}
