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

// Package catalog loads the list of bridged devices announced to Home
// Assistant from a YAML file.
package catalog

import (
	"errors"
	"fmt"
	"os"

	"github.com/mlipscombe/gateway-mate/homeassistant"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// ErrRowWidth is returned when a sensor row does not have exactly
// len(homeassistant.SensorListRow) columns.
var ErrRowWidth = errors.New("sensor row must have 9 columns")

// Catalog is the decoded devices file.
type Catalog struct {
	Devices  []Device  `yaml:"devices"`
	Triggers []Trigger `yaml:"triggers"`
}

// Device is a bridged device and its sensor rows. Each row holds, in order:
// component, name, availability topic, device class, value template,
// payload on, payload off, unit and a reserved unit column.
type Device struct {
	MAC          string     `yaml:"mac"`
	Name         string     `yaml:"name"`
	Manufacturer string     `yaml:"manufacturer"`
	Model        string     `yaml:"model"`
	Sensors      [][]string `yaml:"sensors"`

	rows []homeassistant.SensorListRow
}

// Trigger is a gateway device trigger.
type Trigger struct {
	Topic         string `yaml:"topic"`
	Type          string `yaml:"type"`
	Subtype       string `yaml:"subtype"`
	ObjectID      string `yaml:"object_id"`
	ValueTemplate string `yaml:"value_template"`
}

// Load reads and validates the catalogue at path.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes a catalogue. Every sensor row must have exactly nine
// columns; empty strings fill unused ones.
func Parse(data []byte) (*Catalog, error) {
	c := &Catalog{}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("decoding catalog: %w", err)
	}

	for i := range c.Devices {
		d := &c.Devices[i]
		if d.MAC == "" {
			return nil, fmt.Errorf("device %d: mac is required", i)
		}
		d.rows = make([]homeassistant.SensorListRow, len(d.Sensors))
		for j, sensor := range d.Sensors {
			if len(sensor) != len(homeassistant.SensorListRow{}) {
				return nil, fmt.Errorf("device %s row %d has %d columns: %w", d.MAC, j, len(sensor), ErrRowWidth)
			}
			copy(d.rows[j][:], sensor)
		}
	}

	return c, nil
}

// Rows returns the device's sensor rows.
func (d *Device) Rows() []homeassistant.SensorListRow {
	return d.rows
}

// Register adds the catalogue to p. Devices are published only while
// discovery is enabled; triggers belong to the gateway and are published on
// every cycle.
func (c *Catalog) Register(p *homeassistant.Publisher) {
	p.AddSource(c.PublishDevices)
	p.AddGatewaySource(c.PublishTriggers)
}

// PublishDevices announces every device in the catalogue.
func (c *Catalog) PublishDevices(p *homeassistant.Publisher) {
	entities := 0
	for i := range c.Devices {
		d := &c.Devices[i]
		entities += p.CreateDiscoveryFromList(d.MAC, d.rows, len(d.rows), d.Name, d.Manufacturer, d.Model)
	}
	log.Infof("Published %d entities for %d catalog devices", entities, len(c.Devices))
}

// PublishTriggers announces every gateway trigger in the catalogue.
func (c *Catalog) PublishTriggers(p *homeassistant.Publisher) {
	triggers := 0
	for _, t := range c.Triggers {
		if err := p.AnnounceGatewayTrigger(t.Topic, t.Type, t.Subtype, t.ObjectID, t.ValueTemplate); err != nil {
			continue
		}
		triggers++
	}
	if len(c.Triggers) > 0 {
		log.Infof("Published %d of %d catalog triggers", triggers, len(c.Triggers))
	}
}
